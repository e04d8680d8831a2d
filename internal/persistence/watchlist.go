package persistence

import (
	"context"
	"fmt"

	"PortfolioLedger/internal/ledger"
)

// IsWatching reports whether the owner watches the symbol.
func (q *Queries) IsWatching(ctx context.Context, ownerID, symbolID int64) (bool, error) {
	var n int
	if err := q.get(ctx, &n,
		`SELECT COUNT(*) FROM watch_entry WHERE owner_id = ? AND symbol_id = ?`,
		ownerID, symbolID,
	); err != nil {
		return false, fmt.Errorf("is watching owner %d symbol %d: %w", ownerID, symbolID, err)
	}
	return n > 0, nil
}

// AddWatch is idempotent.
func (q *Queries) AddWatch(ctx context.Context, ownerID, symbolID int64) error {
	if _, err := q.exec(ctx,
		`INSERT INTO watch_entry (owner_id, symbol_id) VALUES (?, ?) ON CONFLICT (owner_id, symbol_id) DO NOTHING`,
		ownerID, symbolID,
	); err != nil {
		return fmt.Errorf("add watch owner %d symbol %d: %w", ownerID, symbolID, classify(err, ledger.ErrConflict))
	}
	return nil
}

// RemoveWatch deletes the entry and reports whether one existed.
func (q *Queries) RemoveWatch(ctx context.Context, ownerID, symbolID int64) (bool, error) {
	res, err := q.exec(ctx,
		`DELETE FROM watch_entry WHERE owner_id = ? AND symbol_id = ?`,
		ownerID, symbolID,
	)
	if err != nil {
		return false, fmt.Errorf("remove watch owner %d symbol %d: %w", ownerID, symbolID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("remove watch owner %d symbol %d: %w", ownerID, symbolID, err)
	}
	return n > 0, nil
}

// Watchlist returns the owner's watched symbols ordered by ticker.
func (q *Queries) Watchlist(ctx context.Context, ownerID int64) ([]ledger.Symbol, error) {
	var out []ledger.Symbol
	if err := q.selectAll(ctx, &out, `
		SELECT s.id, s.ticker, s.display_name
		FROM watch_entry w JOIN symbol s ON s.id = w.symbol_id
		WHERE w.owner_id = ?
		ORDER BY s.ticker`, ownerID); err != nil {
		return nil, fmt.Errorf("watchlist owner %d: %w", ownerID, err)
	}
	return out, nil
}
