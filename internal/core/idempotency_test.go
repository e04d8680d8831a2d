package core_test

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PortfolioLedger/internal/core"
	"PortfolioLedger/internal/observability"
)

type stubDB map[string]bool

func (s stubDB) ExternalIDExists(_ context.Context, id string) (bool, error) {
	if id == "boom" {
		return false, errors.New("db down")
	}
	return s[id], nil
}

func TestIdempotencyLRU_EvictsLeastRecentlyUsed(t *testing.T) {
	lru := core.NewIdempotencyLRU(2)

	assert.False(t, lru.Add("a"))
	assert.False(t, lru.Add("b"))
	assert.True(t, lru.Contains("a"), "promotes a")
	assert.True(t, lru.Add("c"), "evicts b")

	assert.True(t, lru.Contains("a"))
	assert.False(t, lru.Contains("b"))
	assert.True(t, lru.Contains("c"))
	assert.Equal(t, 2, lru.Size())
	assert.Equal(t, int64(1), lru.Evictions())

	assert.False(t, lru.Add("c"), "re-adding is a promotion")
}

func TestIdempotencyLRU_WarmFromKeys(t *testing.T) {
	lru := core.NewIdempotencyLRU(0)
	lru.WarmFromKeys([]string{"x", "y"})
	assert.Equal(t, 1, lru.Size(), "capacity is at least one")
	assert.True(t, lru.Contains("y"))
}

func TestIdempotencyChecker_TwoTiers(t *testing.T) {
	ctx := context.Background()
	metrics := observability.NewMetricsWith(prometheus.NewRegistry())
	ic := core.NewIdempotencyChecker(8, metrics)
	db := stubDB{"stored": true}

	dup, err := ic.IsDuplicate(ctx, "deposit", "fresh", db)
	require.NoError(t, err)
	assert.False(t, dup)

	dup, err = ic.IsDuplicate(ctx, "deposit", "stored", db)
	require.NoError(t, err)
	assert.True(t, dup)
	assert.True(t, ic.SeenRecently("deposit", "stored"), "db hit is cached")

	ic.MarkProcessed("fresh")
	dup, err = ic.IsDuplicate(ctx, "deposit", "fresh", nil)
	require.NoError(t, err)
	assert.True(t, dup)

	_, err = ic.IsDuplicate(ctx, "deposit", "boom", db)
	assert.Error(t, err)

	assert.Equal(t, 1.0, promtest.ToFloat64(metrics.IdempotencyDuplicates.WithLabelValues("deposit", "db")))
	assert.Equal(t, 2.0, promtest.ToFloat64(metrics.IdempotencyDuplicates.WithLabelValues("deposit", "lru")))
}
