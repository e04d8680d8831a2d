package config_test

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PortfolioLedger/internal/config"
	"PortfolioLedger/internal/ledger"
)

// chdir mirrors testing.T.Chdir (Go 1.24+) for older toolchains.
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(prev) })
}

func TestLoad_Defaults(t *testing.T) {
	chdir(t, t.TempDir()) // no stray .env

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.DBDriver)
	assert.Equal(t, "", cfg.NATSURL)
	assert.Equal(t, "0 5 0 * * *", cfg.EODCron)
	assert.Equal(t, 100_000, cfg.IdempotencyLRUCapacity)
	assert.Equal(t, ledger.CurrencyUSD, cfg.Currency())

	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, "UTC", loc.String())
}

func TestLoad_Environment(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("PORTFOLIO_DB_DRIVER", "postgres")
	t.Setenv("PORTFOLIO_DB_DSN", "postgres://u:p@localhost/db")
	t.Setenv("PORTFOLIO_TIMEZONE", "America/Toronto")
	t.Setenv("PORTFOLIO_EOD_CRON", "")
	t.Setenv("PORTFOLIO_PUBLISH_CHAN_SIZE", "12")
	t.Setenv("PORTFOLIO_IDEMPOTENCY_LRU_CAPACITY", "not-a-number")
	t.Setenv("PORTFOLIO_DEFAULT_CURRENCY", "cad")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.DBDriver)
	assert.Empty(t, cfg.EODCron, "explicitly empty disables the job")
	assert.Equal(t, 12, cfg.PublishChanSize)
	assert.Equal(t, 100_000, cfg.IdempotencyLRUCapacity, "malformed ints fall back to the default")
	assert.Equal(t, ledger.CurrencyCAD, cfg.Currency())
}

func TestLoad_Rejections(t *testing.T) {
	tests := []struct {
		key, value string
	}{
		{"PORTFOLIO_DB_DRIVER", "mysql"},
		{"PORTFOLIO_TIMEZONE", "Mars/Olympus"},
		{"PORTFOLIO_DEFAULT_CURRENCY", "EUR"},
		{"PORTFOLIO_INGEST_CHAN_SIZE", "-1"},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			chdir(t, t.TempDir())
			t.Setenv(tt.key, tt.value)
			_, err := config.Load()
			assert.Error(t, err)
		})
	}
}
