// cmd/api/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	app "zrlda-finance/internal"
)

const shutdownTimeout = 30 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application := app.NewApplication()
	if err := application.Initialize(ctx); err != nil {
		application.Logger.Error("Failed to initialize application", "error", err)
		os.Exit(1)
	}

	if err := serve(ctx, application); err != nil {
		application.Logger.Error("Server stopped with error", "error", err)
		os.Exit(1)
	}
	application.Logger.Info("Application gracefully stopped.")
}

// serve runs the HTTP server and the allocation sweeper until ctx is
// cancelled, then drains both and releases the application's resources.
func serve(ctx context.Context, application *app.Application) error {
	server := &http.Server{
		Addr:         ":" + application.Config.ServerPort,
		Handler:      application.HTTPHandler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 60 * time.Second, // Webhook requests include an allocation run
		IdleTimeout:  120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		application.Logger.Info("Starting HTTP server", "port", application.Config.ServerPort)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	// Time-based trigger for rules that should not wait for a deposit
	application.Sweeper.Start(gctx)

	g.Go(func() error {
		<-gctx.Done()
		application.Logger.Info("Shutting down HTTP server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return shutdown(shutdownCtx, server, application)
	})

	return g.Wait()
}

// shutdowner is satisfied by *http.Server and *app.Application.
type shutdowner interface {
	Shutdown(ctx context.Context) error
}

// shutdown drains the HTTP server, then stops the sweeper and closes Redis
// and the database. The application is released even if draining fails.
func shutdown(ctx context.Context, server, application shutdowner) error {
	serverErr := server.Shutdown(ctx)
	if serverErr != nil {
		serverErr = fmt.Errorf("shutdown http server: %w", serverErr)
	}
	return errors.Join(serverErr, application.Shutdown(ctx))
}
