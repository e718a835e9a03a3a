// cmd/zrldactl/main.go
// Command zrldactl runs maintenance tasks against the wallet database:
// schema migration, a one-off allocation sweep, or a single user's run.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	app "zrlda-finance/internal"
	"zrlda-finance/internal/util"
	"zrlda-finance/pkg/db"
)

var (
	timeout  time.Duration
	userID   int64
	walletID int64
)

var rootCmd = &cobra.Command{
	Use:           "zrldactl",
	Short:         "Operate the Zrlda allocation engine",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApplication(cmd.Context(), func(ctx context.Context, a *app.Application) error {
			return db.Migrate(ctx, a.DB, a.Logger)
		})
	},
}

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Run allocations once for every user with active rules",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApplication(cmd.Context(), func(ctx context.Context, a *app.Application) error {
			result, err := a.Sweeper.SweepOnce(ctx)
			if err != nil {
				return err
			}
			return printJSON(cmd, result)
		})
	},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run allocations for one user and print the report",
	RunE: func(cmd *cobra.Command, args []string) error {
		if userID <= 0 {
			return errors.New("--user is required")
		}
		return withApplication(cmd.Context(), func(ctx context.Context, a *app.Application) error {
			source := walletID
			if source == 0 {
				wallets, err := a.WalletService.ListWallets(ctx, userID)
				if err != nil {
					return err
				}
				for _, w := range wallets {
					if w.IsMain() {
						source = w.ID
						break
					}
				}
				if source == 0 {
					return fmt.Errorf("user %d: %w", userID, util.ErrWalletNotFound)
				}
			}
			report, err := a.AllocationService.RunAllocations(ctx, userID, source)
			if err != nil {
				return err
			}
			return printJSON(cmd, report)
		})
	},
}

func init() {
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 5*time.Minute, "Operation timeout")
	runCmd.Flags().Int64Var(&userID, "user", 0, "User id to run allocations for")
	runCmd.Flags().Int64Var(&walletID, "wallet", 0, "Main wallet id (default: the user's main wallet)")

	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(sweepCmd)
	rootCmd.AddCommand(runCmd)
}

// withApplication initializes the application for one command and shuts it
// down afterwards.
func withApplication(ctx context.Context, fn func(ctx context.Context, a *app.Application) error) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	application := app.NewApplication()
	if err := application.Initialize(ctx); err != nil {
		return err
	}
	defer func() { _ = application.Shutdown(context.Background()) }()

	return fn(ctx, application)
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
