package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"PortfolioLedger/internal/ledger"
	"PortfolioLedger/internal/persistence"
)

// Config holds application configuration
type Config struct {
	DBDriver string
	DBDSN    string
	NATSURL  string // empty disables NATS ingestion and publishing

	HTTPAddr    string
	GRPCAddr    string
	MetricsAddr string

	LogLevel string
	Timezone string // IANA name; end-of-day boundaries

	IdempotencyLRUCapacity int
	IdempotencyWarmLimit   int
	PublishChanSize        int
	IngestChanSize         int

	EODCron string // empty disables the end-of-day summary job

	DefaultOwner    string // created at startup when absent; empty skips
	DefaultCurrency string
}

// Load reads an optional .env file, then environment variables.
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg := &Config{
		DBDriver:               getEnv("PORTFOLIO_DB_DRIVER", "sqlite"),
		DBDSN:                  getEnv("PORTFOLIO_DB_DSN", "./data/portfolio.db"),
		NATSURL:                getEnv("PORTFOLIO_NATS_URL", ""),
		HTTPAddr:               getEnv("PORTFOLIO_HTTP_ADDR", ":8080"),
		GRPCAddr:               getEnv("PORTFOLIO_GRPC_ADDR", ":9090"),
		MetricsAddr:            getEnv("PORTFOLIO_METRICS_ADDR", ":9091"),
		LogLevel:               getEnv("PORTFOLIO_LOG_LEVEL", "info"),
		Timezone:               getEnv("PORTFOLIO_TIMEZONE", "UTC"),
		IdempotencyLRUCapacity: getEnvAsInt("PORTFOLIO_IDEMPOTENCY_LRU_CAPACITY", 100_000),
		IdempotencyWarmLimit:   getEnvAsInt("PORTFOLIO_IDEMPOTENCY_WARM_LIMIT", 10_000),
		PublishChanSize:        getEnvAsInt("PORTFOLIO_PUBLISH_CHAN_SIZE", 4096),
		IngestChanSize:         getEnvAsInt("PORTFOLIO_INGEST_CHAN_SIZE", 1024),
		EODCron:                getEnvAllowEmpty("PORTFOLIO_EOD_CRON", "0 5 0 * * *"),
		DefaultOwner:           getEnv("PORTFOLIO_DEFAULT_OWNER", ""),
		DefaultCurrency:        getEnv("PORTFOLIO_DEFAULT_CURRENCY", "USD"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks if required configuration is present and well-formed.
func (c *Config) Validate() error {
	if _, err := persistence.ParseDialect(c.DBDriver); err != nil {
		return fmt.Errorf("PORTFOLIO_DB_DRIVER: %w", err)
	}
	if c.DBDSN == "" {
		return fmt.Errorf("PORTFOLIO_DB_DSN is required")
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	if _, err := ledger.ParseCurrency(c.DefaultCurrency); err != nil {
		return fmt.Errorf("PORTFOLIO_DEFAULT_CURRENCY: %w", err)
	}
	if c.PublishChanSize <= 0 || c.IngestChanSize <= 0 {
		return fmt.Errorf("channel sizes must be positive")
	}
	return nil
}

// Location resolves Timezone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("PORTFOLIO_TIMEZONE %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// Currency is the parsed DefaultCurrency.
func (c *Config) Currency() ledger.Currency {
	cur, _ := ledger.ParseCurrency(c.DefaultCurrency)
	return cur
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAllowEmpty distinguishes unset (default) from set-but-empty.
func getEnvAllowEmpty(key, defaultValue string) string {
	if value, ok := os.LookupEnv(key); ok {
		return strings.TrimSpace(value)
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}
