package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"PortfolioLedger/internal/ledger"
)

const positionColumns = `ps.id, ps.owner_id, ps.symbol_id, s.ticker, ps.timestamp,
	ps.size, ps.average_price, ps.market_price`

// LatestPositionSnapshot returns the newest snapshot for (owner, symbol) at or
// before asOf (any time when asOf is non-positive). The row may have zero
// size; callers decide what a liquidated position means. nil when absent.
func (q *Queries) LatestPositionSnapshot(ctx context.Context, ownerID, symbolID, asOf int64) (*ledger.PositionSnapshot, error) {
	query := `
		SELECT ` + positionColumns + `
		FROM position_snapshot ps JOIN symbol s ON s.id = ps.symbol_id
		WHERE ps.owner_id = ? AND ps.symbol_id = ?`
	args := []interface{}{ownerID, symbolID}
	if asOf > 0 {
		query += ` AND ps.timestamp <= ?`
		args = append(args, asOf)
	}
	query += ` ORDER BY ps.timestamp DESC LIMIT 1`

	var snap ledger.PositionSnapshot
	err := q.get(ctx, &snap, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest position owner %d symbol %d: %w", ownerID, symbolID, err)
	}
	return &snap, nil
}

// OpenPositions returns, per symbol, the latest snapshot at or before asOf
// whose size is positive, ordered by ticker.
func (q *Queries) OpenPositions(ctx context.Context, ownerID, asOf int64) ([]ledger.PositionSnapshot, error) {
	bound := ""
	args := []interface{}{ownerID}
	if asOf > 0 {
		bound = ` AND x.timestamp <= ?`
		args = append(args, asOf)
	}

	var rows []ledger.PositionSnapshot
	if err := q.selectAll(ctx, &rows, `
		SELECT `+positionColumns+`
		FROM position_snapshot ps JOIN symbol s ON s.id = ps.symbol_id
		WHERE ps.owner_id = ? AND ps.timestamp = (
			SELECT MAX(x.timestamp) FROM position_snapshot x
			WHERE x.owner_id = ps.owner_id AND x.symbol_id = ps.symbol_id`+bound+`
		)
		ORDER BY s.ticker`, args...); err != nil {
		return nil, fmt.Errorf("open positions owner %d: %w", ownerID, err)
	}

	open := rows[:0]
	for _, r := range rows {
		if r.IsOpen() {
			open = append(open, r)
		}
	}
	return open, nil
}

// InsertPositionSnapshot writes a position row. Negative sizes are refused
// with ErrInvalidOperation; a second row for the same (owner, symbol,
// timestamp) is ErrConflict.
func (q *Queries) InsertPositionSnapshot(ctx context.Context, snap ledger.PositionSnapshot) (ledger.PositionSnapshot, error) {
	if snap.Size.IsNegative() {
		return snap, fmt.Errorf("%w: position size would be negative (%s)", ledger.ErrInvalidOperation, snap.Size)
	}

	id, err := q.insertReturningID(ctx, `
		INSERT INTO position_snapshot (owner_id, symbol_id, timestamp, size, average_price, market_price)
		VALUES (?, ?, ?, ?, ?, ?) RETURNING id`,
		snap.OwnerID, snap.SymbolID, snap.Timestamp, snap.Size, snap.AveragePrice, snap.MarketPrice,
	)
	if err != nil {
		return snap, fmt.Errorf("insert position snapshot owner %d symbol %d at %d: %w",
			snap.OwnerID, snap.SymbolID, snap.Timestamp, classify(err, ledger.ErrConflict))
	}
	snap.ID = id
	return snap, nil
}
