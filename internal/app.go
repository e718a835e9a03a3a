// internal/app.go
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"

	router "zrlda-finance/internal/api"
	"zrlda-finance/internal/api/handler"
	"zrlda-finance/internal/auth"
	"zrlda-finance/internal/cache"
	"zrlda-finance/internal/config"
	"zrlda-finance/internal/repository"
	"zrlda-finance/internal/repository/postgres"
	"zrlda-finance/internal/scheduler"
	"zrlda-finance/internal/service"
	"zrlda-finance/internal/util"
	"zrlda-finance/pkg/db"
)

// Application holds all the initialized components of the application.
type Application struct {
	Config *config.AppConfig
	Logger *slog.Logger
	DB     *sqlx.DB
	Redis  *redis.Client // nil when REDIS_ADDR is unset

	// Repositories
	UserRepository           repository.UserRepository
	WalletRepository         repository.WalletRepository
	TransactionRepository    repository.TransactionRepository
	AllocationRuleRepository repository.AllocationRuleRepository

	// Services
	WalletService     service.WalletService
	AllocationService service.AllocationService
	RuleService       service.RuleService
	DepositService    service.DepositService

	Sweeper *scheduler.Sweeper

	// HTTP API
	HTTPHandler http.Handler
}

// NewApplication creates a new Application instance.
func NewApplication() *Application {
	return &Application{}
}

// Initialize initializes all application components.
func (app *Application) Initialize(ctx context.Context) error {
	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		app.Logger = util.GetLogger()
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	app.Config = cfg

	// 2. Initialize Logger
	util.InitLogger(cfg.LogLevel)
	app.Logger = util.GetLogger()
	app.Logger.Info("Application configuration loaded successfully.")

	// 3. Connect to Database
	database, err := db.NewPostgresDB(ctx, app.Config.DB)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	app.DB = database
	app.Logger.Info("Database connection established.")

	// 4. Connect to Redis, if configured
	var guard cache.EventGuard = cache.NoopEventGuard{}
	if cfg.Redis.Addr != "" {
		rdb, err := cache.NewRedisClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return err
		}
		app.Redis = rdb
		guard = cache.NewRedisEventGuard(rdb, "zrlda:deposit:", cfg.Redis.IdempotencyTTL)
		app.Logger.Info("Redis connection established.", "addr", cfg.Redis.Addr)
	} else {
		app.Logger.Warn("REDIS_ADDR not set, deposit idempotency relies on the database only")
	}

	// 5. Initialize Repositories
	app.UserRepository = postgres.NewUserRepository()
	app.WalletRepository = postgres.NewWalletRepository()
	app.TransactionRepository = postgres.NewTransactionRepository()
	app.AllocationRuleRepository = postgres.NewAllocationRuleRepository()
	app.Logger.Info("Repositories initialized.")

	// 6. Initialize Services
	// Pass the concrete db.BeginTx, db.CommitTx, db.RollbackTx functions from pkg/db
	app.WalletService = service.NewWalletService(
		app.DB, // This is the DBTxBeginner
		app.DB, // This is the DBExecutor
		app.UserRepository,
		app.WalletRepository,
		app.TransactionRepository,
		db.BeginTx,
		db.CommitTx,
		db.RollbackTx,
	)
	app.AllocationService = service.NewAllocationService(
		app.DB,
		app.DB,
		app.WalletRepository,
		app.AllocationRuleRepository,
		app.TransactionRepository,
		db.BeginTx,
		db.CommitTx,
		db.RollbackTx,
		app.Logger.With("component", "allocation"),
		service.AllocationOptions{
			Precision:   cfg.Allocation.Precision,
			RuleTimeout: cfg.Allocation.RuleTimeout,
		},
	)
	app.RuleService = service.NewRuleService(app.DB, app.WalletRepository, app.AllocationRuleRepository)
	app.DepositService = service.NewDepositService(
		app.DB,
		app.DB,
		app.WalletRepository,
		app.TransactionRepository,
		app.AllocationService,
		guard,
		db.BeginTx,
		db.CommitTx,
		db.RollbackTx,
		app.Logger.With("component", "deposit"),
	)
	app.Sweeper = scheduler.NewSweeper(
		app.DB,
		app.AllocationRuleRepository,
		app.AllocationService,
		cfg.Allocation.SweepInterval,
		cfg.Allocation.SweepConcurrency,
		app.Logger,
	)
	app.Logger.Info("Services initialized.")

	// 7. Initialize HTTP Handlers and Router
	issueToken := func(userID int64) (string, error) {
		return auth.GenerateToken(userID, cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	}
	app.HTTPHandler = router.NewRouter(router.Handlers{
		Wallet:     handler.NewWalletHandler(app.WalletService, issueToken, app.Logger),
		Allocation: handler.NewAllocationHandler(app.RuleService, app.WalletService, app.AllocationService, app.Logger),
		Webhook:    handler.NewWebhookHandler(app.DepositService, app.Logger),
	}, cfg.Auth.JWTSecret, cfg.Auth.WebhookSecret)
	app.Logger.Info("HTTP router and handlers initialized.")

	return nil
}

// Shutdown gracefully shuts down application resources.
func (app *Application) Shutdown(ctx context.Context) error {
	app.Logger.Info("Shutting down application...")
	if app.Sweeper != nil {
		app.Sweeper.Stop()
	}
	if app.Redis != nil {
		if err := app.Redis.Close(); err != nil {
			app.Logger.Error("Failed to close Redis connection", "error", err)
		}
	}
	if app.DB != nil {
		if err := app.DB.Close(); err != nil {
			app.Logger.Error("Failed to close database connection", "error", err)
			return fmt.Errorf("failed to close database connection: %w", err)
		}
		app.Logger.Info("Database connection closed.")
	}
	app.Logger.Info("Application shut down gracefully.")
	return nil
}
