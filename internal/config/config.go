// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv" // For loading .env files

	"zrlda-finance/pkg/db" // Import db package for its Config struct
)

// AppConfig holds all application-wide configurations.
type AppConfig struct {
	ServerPort string
	LogLevel   string
	DB         db.Config
	Redis      RedisConfig
	Auth       AuthConfig
	Allocation AllocationConfig
}

// RedisConfig configures the webhook idempotency guard. An empty Addr
// disables Redis; deposits are then deduplicated by the database only.
type RedisConfig struct {
	Addr           string
	Password       string
	DB             int
	IdempotencyTTL time.Duration
}

// AuthConfig holds the shared secrets for inbound requests.
type AuthConfig struct {
	WebhookSecret string // Bearer token the banking partner presents
	JWTSecret     string // HS256 key for user tokens
	TokenTTL      time.Duration
}

// AllocationConfig tunes the auto-allocation engine.
type AllocationConfig struct {
	Precision        int32         // Decimal places amounts are rounded to
	RuleTimeout      time.Duration // Deadline for one rule's store operations
	SweepInterval    time.Duration // 0 disables the periodic sweep
	SweepConcurrency int
}

// LoadConfig loads configuration from environment variables, after reading a
// .env file if one is present.
// It returns an AppConfig instance or an error if any required variable is missing or invalid.
func LoadConfig() (*AppConfig, error) {
	_ = godotenv.Load() // Load .env file if present

	dbPort, err := intEnv("DB_PORT", 5432)
	if err != nil {
		return nil, err
	}
	maxOpen, err := intEnv("DB_MAX_OPEN_CONNS", 25)
	if err != nil {
		return nil, err
	}
	maxIdle, err := intEnv("DB_MAX_IDLE_CONNS", 10)
	if err != nil {
		return nil, err
	}
	connLifetime, err := durationEnv("DB_CONN_MAX_LIFETIME", 5*time.Minute)
	if err != nil {
		return nil, err
	}
	redisDB, err := intEnv("REDIS_DB", 0)
	if err != nil {
		return nil, err
	}
	idemTTL, err := durationEnv("IDEMPOTENCY_TTL", 24*time.Hour)
	if err != nil {
		return nil, err
	}
	tokenTTL, err := durationEnv("JWT_TTL", 24*time.Hour)
	if err != nil {
		return nil, err
	}
	precision, err := intEnv("ALLOCATION_PRECISION", 2)
	if err != nil {
		return nil, err
	}
	if precision < 0 || precision > 4 {
		return nil, fmt.Errorf("invalid ALLOCATION_PRECISION %d: must be between 0 and 4", precision)
	}
	ruleTimeout, err := durationEnv("ALLOCATION_RULE_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, err
	}
	sweepInterval, err := durationEnv("ALLOCATION_SWEEP_INTERVAL", time.Hour)
	if err != nil {
		return nil, err
	}
	sweepConcurrency, err := intEnv("ALLOCATION_SWEEP_CONCURRENCY", 4)
	if err != nil {
		return nil, err
	}
	if sweepConcurrency < 1 {
		return nil, fmt.Errorf("invalid ALLOCATION_SWEEP_CONCURRENCY %d: must be at least 1", sweepConcurrency)
	}

	webhookSecret := os.Getenv("WEBHOOK_SECRET")
	if webhookSecret == "" {
		return nil, fmt.Errorf("WEBHOOK_SECRET is required")
	}
	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	return &AppConfig{
		ServerPort: stringEnv("SERVER_PORT", "8080"),
		LogLevel:   stringEnv("LOG_LEVEL", "info"),
		DB: db.Config{
			Host:     stringEnv("DB_HOST", "localhost"), // Default to localhost for local development
			Port:     dbPort,
			User:     stringEnv("DB_USER", "user"),
			Password: stringEnv("DB_PASSWORD", "password"),
			DBName:   stringEnv("DB_NAME", "zrlda"),
			SSLMode:  stringEnv("DB_SSLMODE", "disable"),

			MaxOpenConns:    maxOpen,
			MaxIdleConns:    maxIdle,
			ConnMaxLifetime: connLifetime,
		},
		Redis: RedisConfig{
			Addr:           os.Getenv("REDIS_ADDR"),
			Password:       os.Getenv("REDIS_PASSWORD"),
			DB:             redisDB,
			IdempotencyTTL: idemTTL,
		},
		Auth: AuthConfig{
			WebhookSecret: webhookSecret,
			JWTSecret:     jwtSecret,
			TokenTTL:      tokenTTL,
		},
		Allocation: AllocationConfig{
			Precision:        int32(precision),
			RuleTimeout:      ruleTimeout,
			SweepInterval:    sweepInterval,
			SweepConcurrency: sweepConcurrency,
		},
	}, nil
}

func stringEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func intEnv(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func durationEnv(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("invalid %s: must not be negative", key)
	}
	return d, nil
}
