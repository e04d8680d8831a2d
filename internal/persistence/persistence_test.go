package persistence_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PortfolioLedger/internal/ledger"
	"PortfolioLedger/internal/persistence"
	"PortfolioLedger/internal/testutil"
)

func ms(day, hour int) int64 {
	return time.Date(2024, time.January, day, hour, 0, 0, 0, time.UTC).UnixMilli()
}

func bar(close string, volume int64) ledger.OHLCV {
	c := decimal.RequireFromString(close)
	return ledger.OHLCV{Open: c, High: c, Low: c, Close: c, AdjustedClose: c, Volume: volume}
}

// ===== Test: Migrator =====

func TestMigrator_UpIsIdempotentAndDownRollsBack(t *testing.T) {
	store := testutil.SetupSQLiteStore(t)
	ctx := context.Background()

	m, err := persistence.NewMigrator(store.DB(), store.Dialect())
	require.NoError(t, err)
	require.NoError(t, m.Up(ctx), "second Up is a no-op")

	status, err := m.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{
		"000001_reference.up.sql":   true,
		"000002_ledger.up.sql":      true,
		"000003_external_id.up.sql": true,
	}, status)

	require.NoError(t, m.Down(ctx))
	status, err = m.Status(ctx)
	require.NoError(t, err)
	assert.False(t, status["000003_external_id.up.sql"])
	assert.True(t, status["000002_ledger.up.sql"])

	_, err = store.DB().ExecContext(ctx, `SELECT 1 FROM external_id`)
	assert.Error(t, err, "external id table dropped")

	require.NoError(t, m.Down(ctx))
	status, err = m.Status(ctx)
	require.NoError(t, err)
	assert.False(t, status["000002_ledger.up.sql"])

	_, err = store.DB().ExecContext(ctx, `SELECT 1 FROM cash_snapshot`)
	assert.Error(t, err, "ledger tables dropped")

	require.NoError(t, m.Up(ctx))
}

// ===== Test: Symbols =====

func TestSymbols_ResolveOrCreate(t *testing.T) {
	store := testutil.SetupSQLiteStore(t)
	ctx := context.Background()
	q := store.Reader()

	first, err := q.ResolveOrCreateSymbol(ctx, " aapl ", "Apple")
	require.NoError(t, err)
	assert.Equal(t, "AAPL", first.Ticker)

	again, err := q.ResolveOrCreateSymbol(ctx, "AAPL", "Something else")
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)
	assert.Equal(t, "Apple", again.DisplayName, "display name is not overwritten")

	_, err = q.ResolveOrCreateSymbol(ctx, "   ", "")
	assert.ErrorIs(t, err, ledger.ErrInvalidInput)

	_, err = q.ResolveOrCreateSymbol(ctx, "msft", "")
	require.NoError(t, err)
	all, err := q.ListSymbols(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "AAPL", all[0].Ticker)
	assert.Equal(t, "MSFT", all[1].Ticker)

	_, err = q.GetSymbol(ctx, "GOOG")
	assert.ErrorIs(t, err, ledger.ErrNotFound)
}

func TestSymbols_DeleteRefusesReferenced(t *testing.T) {
	store := testutil.SetupSQLiteStore(t)
	ctx := context.Background()
	q := store.Reader()

	_, err := q.AddPrice(ctx, "AAPL", ms(2, 16), bar("10", 1))
	require.NoError(t, err)
	_, err = q.ResolveOrCreateSymbol(ctx, "FREE", "")
	require.NoError(t, err)

	_, err = q.DeleteSymbol(ctx, "AAPL")
	assert.ErrorIs(t, err, ledger.ErrConflict)

	deleted, err := q.DeleteSymbol(ctx, "free")
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = q.DeleteSymbol(ctx, "FREE")
	require.NoError(t, err)
	assert.False(t, deleted, "already gone")
}

// ===== Test: Prices =====

func TestPrices_LatestAndDayWindow(t *testing.T) {
	store := testutil.SetupSQLiteStore(t)
	ctx := context.Background()
	q := store.Reader()

	for _, p := range []struct {
		at    int64
		close string
	}{
		{ms(2, 16), "10"},
		{ms(3, 16), "11"},
		{ms(5, 16), "12"},
	} {
		_, err := q.AddPrice(ctx, "AAPL", p.at, bar(p.close, 100))
		require.NoError(t, err)
	}

	latest, err := q.LatestPrice(ctx, "aapl", 0, 0)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.True(t, latest.Close.Equal(decimal.NewFromInt(12)))
	assert.Equal(t, "AAPL", latest.Ticker)

	asOf, err := q.LatestPrice(ctx, "AAPL", ms(4, 12), 0)
	require.NoError(t, err)
	require.NotNil(t, asOf)
	assert.True(t, asOf.Close.Equal(decimal.NewFromInt(11)), "latest at or before")

	sameDay, err := q.LatestPrice(ctx, "AAPL", ms(4, 12), ms(4, 0))
	require.NoError(t, err)
	assert.Nil(t, sameDay, "no bar on day 4")

	unknown, err := q.LatestPrice(ctx, "ZZZ", 0, 0)
	require.NoError(t, err)
	assert.Nil(t, unknown)

	list, err := q.ListPrices(ctx, "AAPL")
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Less(t, list[0].Timestamp, list[2].Timestamp)

	stamps, err := q.LatestPriceTimestamps(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"AAPL": ms(5, 16)}, stamps)
}

func TestPrices_Rejections(t *testing.T) {
	store := testutil.SetupSQLiteStore(t)
	ctx := context.Background()
	q := store.Reader()

	_, err := q.AddPrice(ctx, "AAPL", ms(2, 16), bar("10", -1))
	assert.ErrorIs(t, err, ledger.ErrInvalidInput)

	_, err = q.AddPrice(ctx, "AAPL", ms(2, 16), bar("10", 1))
	require.NoError(t, err)
	_, err = q.AddPrice(ctx, "AAPL", ms(2, 16), bar("11", 1))
	assert.ErrorIs(t, err, ledger.ErrConflict)
}

// ===== Test: Snapshots and ledgers =====

func TestLedger_SnapshotsAndExternalIDs(t *testing.T) {
	store := testutil.SetupSQLiteStore(t)
	ctx := context.Background()

	var owner ledger.Owner
	err := store.WithTx(ctx, func(q *persistence.Queries) error {
		var err error
		owner, err = q.CreateOwner(ctx, "carol", ledger.CurrencyCAD)
		if err != nil {
			return err
		}
		if _, err := q.InsertCashMovement(ctx, ledger.CashMovement{
			ExternalID: "x1", OwnerID: owner.ID, Timestamp: ms(2, 9),
			Amount: decimal.NewFromInt(100), Type: ledger.MovementDeposit,
		}); err != nil {
			return err
		}
		_, err = q.InsertCashSnapshot(ctx, ledger.CashSnapshot{OwnerID: owner.ID, Timestamp: ms(2, 9), Cash: decimal.NewFromInt(100)})
		return err
	})
	require.NoError(t, err)

	q := store.Reader()

	exists, err := q.ExternalIDExists(ctx, "x1")
	require.NoError(t, err)
	assert.True(t, exists)

	_, err = q.InsertCashMovement(ctx, ledger.CashMovement{
		ExternalID: "x1", OwnerID: owner.ID, Timestamp: ms(2, 10),
		Amount: decimal.NewFromInt(1), Type: ledger.MovementDeposit,
	})
	assert.ErrorIs(t, err, ledger.ErrDuplicateOperation)

	_, err = q.InsertCashSnapshot(ctx, ledger.CashSnapshot{OwnerID: owner.ID, Timestamp: ms(2, 9), Cash: decimal.NewFromInt(5)})
	assert.ErrorIs(t, err, ledger.ErrConflict)

	_, err = q.InsertCashSnapshot(ctx, ledger.CashSnapshot{OwnerID: owner.ID, Timestamp: ms(2, 11), Cash: decimal.NewFromInt(-5)})
	assert.ErrorIs(t, err, ledger.ErrInsufficientFunds)

	balance, err := q.CashBalance(ctx, owner.ID, ms(2, 8))
	require.NoError(t, err)
	assert.True(t, balance.IsZero())

	latest, err := q.LatestActivity(ctx, owner.ID)
	require.NoError(t, err)
	assert.Equal(t, ms(2, 9), latest)

	ids, err := q.RecentExternalIDs(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"x1"}, ids)
}

func TestLedger_ExternalIDsSharedAcrossOwnersAndLedgers(t *testing.T) {
	store := testutil.SetupSQLiteStore(t)
	ctx := context.Background()
	q := store.Reader()

	erin, err := q.CreateOwner(ctx, "erin", ledger.CurrencyUSD)
	require.NoError(t, err)
	frank, err := q.CreateOwner(ctx, "frank", ledger.CurrencyUSD)
	require.NoError(t, err)
	ibm, err := q.ResolveOrCreateSymbol(ctx, "IBM", "")
	require.NoError(t, err)

	_, err = q.InsertCashMovement(ctx, ledger.CashMovement{
		ExternalID: "shared-1", OwnerID: erin.ID, Timestamp: ms(2, 9),
		Amount: decimal.NewFromInt(100), Type: ledger.MovementDeposit,
	})
	require.NoError(t, err)

	// No pre-check here: the insert itself must refuse the reused id.
	err = store.WithTx(ctx, func(tx *persistence.Queries) error {
		_, err := tx.InsertPositionEvent(ctx, ledger.PositionEvent{
			ExternalID: "shared-1", OwnerID: frank.ID, Timestamp: ms(2, 9),
			SymbolID: ibm.ID, Quantity: decimal.NewFromInt(1), Price: decimal.NewFromInt(10),
			Type: ledger.TransactionBuy,
		})
		return err
	})
	assert.ErrorIs(t, err, ledger.ErrDuplicateOperation)

	events, err := q.PositionEvents(ctx, frank.ID, "")
	require.NoError(t, err)
	assert.Empty(t, events)

	_, err = q.InsertCashMovement(ctx, ledger.CashMovement{
		ExternalID: "shared-1", OwnerID: frank.ID, Timestamp: ms(2, 10),
		Amount: decimal.NewFromInt(5), Type: ledger.MovementDeposit,
	})
	assert.ErrorIs(t, err, ledger.ErrDuplicateOperation)
}

func TestLedger_OpenPositionsSkipsLiquidated(t *testing.T) {
	store := testutil.SetupSQLiteStore(t)
	ctx := context.Background()
	q := store.Reader()

	owner, err := q.CreateOwner(ctx, "dave", ledger.CurrencyUSD)
	require.NoError(t, err)
	aapl, err := q.ResolveOrCreateSymbol(ctx, "AAPL", "")
	require.NoError(t, err)
	msft, err := q.ResolveOrCreateSymbol(ctx, "MSFT", "")
	require.NoError(t, err)

	snaps := []ledger.PositionSnapshot{
		{OwnerID: owner.ID, SymbolID: aapl.ID, Timestamp: ms(2, 10), Size: decimal.NewFromInt(5), AveragePrice: decimal.NewFromInt(10), MarketPrice: decimal.NewFromInt(10)},
		{OwnerID: owner.ID, SymbolID: msft.ID, Timestamp: ms(2, 11), Size: decimal.NewFromInt(2), AveragePrice: decimal.NewFromInt(20), MarketPrice: decimal.NewFromInt(20)},
		{OwnerID: owner.ID, SymbolID: aapl.ID, Timestamp: ms(3, 10), Size: decimal.Zero, AveragePrice: decimal.NewFromInt(10), MarketPrice: decimal.NewFromInt(12)},
	}
	for _, s := range snaps {
		_, err := q.InsertPositionSnapshot(ctx, s)
		require.NoError(t, err)
	}

	open, err := q.OpenPositions(ctx, owner.ID, 0)
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, "MSFT", open[0].Ticker)

	historical, err := q.OpenPositions(ctx, owner.ID, ms(2, 23))
	require.NoError(t, err)
	require.Len(t, historical, 2)
	assert.Equal(t, "AAPL", historical[0].Ticker)

	_, err = q.InsertPositionSnapshot(ctx, ledger.PositionSnapshot{
		OwnerID: owner.ID, SymbolID: aapl.ID, Timestamp: ms(4, 10), Size: decimal.NewFromInt(-1),
	})
	assert.ErrorIs(t, err, ledger.ErrInvalidOperation)
}

// ===== Test: Watchlist =====

func TestWatchlist_AddRemove(t *testing.T) {
	store := testutil.SetupSQLiteStore(t)
	ctx := context.Background()
	q := store.Reader()

	owner, err := q.CreateOwner(ctx, "erin", ledger.CurrencyUSD)
	require.NoError(t, err)
	sym, err := q.ResolveOrCreateSymbol(ctx, "AAPL", "")
	require.NoError(t, err)

	require.NoError(t, q.AddWatch(ctx, owner.ID, sym.ID))
	require.NoError(t, q.AddWatch(ctx, owner.ID, sym.ID), "idempotent")

	list, err := q.Watchlist(ctx, owner.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)

	removed, err := q.RemoveWatch(ctx, owner.ID, sym.ID)
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = q.RemoveWatch(ctx, owner.ID, sym.ID)
	require.NoError(t, err)
	assert.False(t, removed)
}

// ===== Test: Transactions =====

func TestWithTx_RollsBackOnError(t *testing.T) {
	store := testutil.SetupSQLiteStore(t)
	ctx := context.Background()

	err := store.WithTx(ctx, func(q *persistence.Queries) error {
		if _, err := q.CreateOwner(ctx, "frank", ledger.CurrencyUSD); err != nil {
			return err
		}
		return ledger.ErrInvalidOperation
	})
	require.ErrorIs(t, err, ledger.ErrInvalidOperation)

	_, err = store.Reader().OwnerByName(ctx, "frank")
	assert.ErrorIs(t, err, ledger.ErrNotFound)
}

func TestParseDialect(t *testing.T) {
	d, err := persistence.ParseDialect("postgresql")
	require.NoError(t, err)
	assert.Equal(t, persistence.DialectPostgres, d)

	_, err = persistence.ParseDialect("mysql")
	assert.Error(t, err)
}
