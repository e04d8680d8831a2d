package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"PortfolioLedger/internal/ledger"
)

const priceColumns = `p.id, p.symbol_id, s.ticker, p.timestamp,
	p.open, p.high, p.low, p.close, p.adjusted_close, p.volume`

// AddPrice records an OHLCV bar, creating the symbol if needed. A second bar
// for the same (symbol, timestamp) is ErrConflict.
func (q *Queries) AddPrice(ctx context.Context, ticker string, timestamp int64, bar ledger.OHLCV) (ledger.PricePoint, error) {
	if err := bar.Validate(); err != nil {
		return ledger.PricePoint{}, err
	}
	if timestamp <= 0 {
		return ledger.PricePoint{}, fmt.Errorf("%w: timestamp must be positive epoch millis, got %d", ledger.ErrInvalidInput, timestamp)
	}

	sym, err := q.ResolveOrCreateSymbol(ctx, ticker, "")
	if err != nil {
		return ledger.PricePoint{}, err
	}

	id, err := q.insertReturningID(ctx, `
		INSERT INTO price (symbol_id, timestamp, open, high, low, close, adjusted_close, volume)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`,
		sym.ID, timestamp, bar.Open, bar.High, bar.Low, bar.Close, bar.AdjustedClose, bar.Volume,
	)
	if err != nil {
		return ledger.PricePoint{}, fmt.Errorf("add price %s@%d: %w", sym.Ticker, timestamp, classify(err, ledger.ErrConflict))
	}

	return ledger.PricePoint{
		ID:        id,
		SymbolID:  sym.ID,
		Ticker:    sym.Ticker,
		Timestamp: timestamp,
		OHLCV:     bar,
	}, nil
}

// LatestPrice returns the newest bar for ticker with notBefore <= timestamp <=
// asOf. A non-positive bound is open. Unknown symbols and empty windows yield
// (nil, nil).
func (q *Queries) LatestPrice(ctx context.Context, ticker string, asOf, notBefore int64) (*ledger.PricePoint, error) {
	t, err := ledger.NormalizeTicker(ticker)
	if err != nil {
		return nil, err
	}

	var (
		where = []string{"s.ticker = ?"}
		args  = []interface{}{t}
	)
	if asOf > 0 {
		where = append(where, "p.timestamp <= ?")
		args = append(args, asOf)
	}
	if notBefore > 0 {
		where = append(where, "p.timestamp >= ?")
		args = append(args, notBefore)
	}

	var pp ledger.PricePoint
	err = q.get(ctx, &pp, `
		SELECT `+priceColumns+`
		FROM price p JOIN symbol s ON s.id = p.symbol_id
		WHERE `+strings.Join(where, " AND ")+`
		ORDER BY p.timestamp DESC
		LIMIT 1`, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest price %s: %w", t, err)
	}
	return &pp, nil
}

// ListPrices returns every bar for ticker in ascending timestamp order.
func (q *Queries) ListPrices(ctx context.Context, ticker string) ([]ledger.PricePoint, error) {
	t, err := ledger.NormalizeTicker(ticker)
	if err != nil {
		return nil, err
	}

	var out []ledger.PricePoint
	if err := q.selectAll(ctx, &out, `
		SELECT `+priceColumns+`
		FROM price p JOIN symbol s ON s.id = p.symbol_id
		WHERE s.ticker = ?
		ORDER BY p.timestamp`, t); err != nil {
		return nil, fmt.Errorf("list prices %s: %w", t, err)
	}
	return out, nil
}

// LatestPriceTimestamps maps each ticker with at least one bar to the
// timestamp of its newest bar.
func (q *Queries) LatestPriceTimestamps(ctx context.Context) (map[string]int64, error) {
	var rows []struct {
		Ticker    string `db:"ticker"`
		Timestamp int64  `db:"timestamp"`
	}
	if err := q.selectAll(ctx, &rows, `
		SELECT s.ticker AS ticker, MAX(p.timestamp) AS timestamp
		FROM price p JOIN symbol s ON s.id = p.symbol_id
		GROUP BY s.ticker`); err != nil {
		return nil, fmt.Errorf("latest price timestamps: %w", err)
	}

	out := make(map[string]int64, len(rows))
	for _, r := range rows {
		out[r.Ticker] = r.Timestamp
	}
	return out, nil
}
