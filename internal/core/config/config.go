package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type Config struct {
	Port     string
	Env      string
	LogLevel string
	LogFile  string

	StoreDriver string
	DatabaseURL string
	SQLitePath  string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	LockTTL       time.Duration

	AdminToken    string
	WebhookSecret string

	PointsPerCurrencyUnit int64
	MaxTxAttempts         int
	WorkerInterval        time.Duration
}

// LoadConfig reads the .env file, if any, then the process environment.
func LoadConfig() *Config {
	// The file is optional in production.
	if err := godotenv.Load(); err != nil {
		slog.Debug("No .env file found, relying on System Env Variables")
	}

	return &Config{
		Port:     getEnv("PORT", "3000"),
		Env:      getEnv("ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		LogFile:  getEnv("LOG_FILE", ""),

		StoreDriver: getEnv("STORE_DRIVER", DriverPostgres),
		DatabaseURL: getEnv("DATABASE_URL", ""),
		SQLitePath:  getEnv("SQLITE_PATH", "loyalty.db"),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),
		LockTTL:       getEnvDuration("LOCK_TTL", 10*time.Second),

		AdminToken:    getEnv("ADMIN_TOKEN", ""),
		WebhookSecret: getEnv("WEBHOOK_SECRET", ""),

		PointsPerCurrencyUnit: int64(getEnvInt("POINTS_PER_CURRENCY_UNIT", 1000)),
		MaxTxAttempts:         getEnvInt("MAX_TX_ATTEMPTS", 3),
		WorkerInterval:        getEnvDuration("WORKER_INTERVAL", 5*time.Second),
	}
}

// Validate reports settings the service cannot start with.
func (c *Config) Validate() error {
	switch c.StoreDriver {
	case DriverPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for the %s driver", DriverPostgres)
		}
	case DriverSQLite:
		if c.SQLitePath == "" {
			return fmt.Errorf("SQLITE_PATH is required for the %s driver", DriverSQLite)
		}
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}
	if c.PointsPerCurrencyUnit <= 0 {
		return fmt.Errorf("POINTS_PER_CURRENCY_UNIT must be positive")
	}
	if c.MaxTxAttempts <= 0 {
		return fmt.Errorf("MAX_TX_ATTEMPTS must be positive")
	}
	if c.WorkerInterval <= 0 {
		return fmt.Errorf("WORKER_INTERVAL must be positive")
	}
	return nil
}

// Helper to get env with a default fallback
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v, err := strconv.Atoi(getEnv(key, ""))
	if err != nil {
		return fallback
	}
	return v
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v, err := time.ParseDuration(getEnv(key, ""))
	if err != nil {
		return fallback
	}
	return v
}
