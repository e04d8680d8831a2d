package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"PortfolioLedger/internal/ledger"
)

const symbolColumns = `id, ticker, display_name`

// ResolveOrCreateSymbol returns the symbol for ticker, inserting it when
// absent. An existing display name is never overwritten.
func (q *Queries) ResolveOrCreateSymbol(ctx context.Context, ticker, displayName string) (ledger.Symbol, error) {
	t, err := ledger.NormalizeTicker(ticker)
	if err != nil {
		return ledger.Symbol{}, err
	}

	if _, err := q.exec(ctx,
		`INSERT INTO symbol (ticker, display_name) VALUES (?, ?) ON CONFLICT (ticker) DO NOTHING`,
		t, displayName,
	); err != nil {
		return ledger.Symbol{}, fmt.Errorf("upsert symbol %s: %w", t, err)
	}

	sym, err := q.symbolByTicker(ctx, t)
	if err != nil {
		return ledger.Symbol{}, fmt.Errorf("resolve symbol %s: %w", t, err)
	}
	return sym, nil
}

// GetSymbol looks a symbol up by ticker.
func (q *Queries) GetSymbol(ctx context.Context, ticker string) (ledger.Symbol, error) {
	t, err := ledger.NormalizeTicker(ticker)
	if err != nil {
		return ledger.Symbol{}, err
	}
	sym, err := q.symbolByTicker(ctx, t)
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.Symbol{}, fmt.Errorf("symbol %s: %w", t, ledger.ErrNotFound)
	}
	if err != nil {
		return ledger.Symbol{}, fmt.Errorf("get symbol %s: %w", t, err)
	}
	return sym, nil
}

// ListSymbols returns every registered symbol ordered by ticker.
func (q *Queries) ListSymbols(ctx context.Context) ([]ledger.Symbol, error) {
	var out []ledger.Symbol
	if err := q.selectAll(ctx, &out, `SELECT `+symbolColumns+` FROM symbol ORDER BY ticker`); err != nil {
		return nil, fmt.Errorf("list symbols: %w", err)
	}
	return out, nil
}

// DeleteSymbol removes an unreferenced symbol. It returns false when the
// ticker is unknown and ErrConflict while prices, positions, watches or
// transactions still point at it.
func (q *Queries) DeleteSymbol(ctx context.Context, ticker string) (bool, error) {
	t, err := ledger.NormalizeTicker(ticker)
	if err != nil {
		return false, err
	}

	sym, err := q.symbolByTicker(ctx, t)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("get symbol %s: %w", t, err)
	}

	var refs int
	if err := q.get(ctx, &refs, `
		SELECT (SELECT COUNT(*) FROM price WHERE symbol_id = ?)
		     + (SELECT COUNT(*) FROM watch_entry WHERE symbol_id = ?)
		     + (SELECT COUNT(*) FROM position_event WHERE symbol_id = ?)
		     + (SELECT COUNT(*) FROM position_snapshot WHERE symbol_id = ?)`,
		sym.ID, sym.ID, sym.ID, sym.ID,
	); err != nil {
		return false, fmt.Errorf("count symbol %s references: %w", t, err)
	}
	if refs > 0 {
		return false, fmt.Errorf("%w: symbol %s is referenced by %d rows", ledger.ErrConflict, t, refs)
	}

	if _, err := q.exec(ctx, `DELETE FROM symbol WHERE id = ?`, sym.ID); err != nil {
		if isForeignKeyViolation(err) {
			return false, fmt.Errorf("%w: symbol %s is referenced", ledger.ErrConflict, t)
		}
		return false, fmt.Errorf("delete symbol %s: %w", t, err)
	}
	return true, nil
}

func (q *Queries) symbolByTicker(ctx context.Context, ticker string) (ledger.Symbol, error) {
	var sym ledger.Symbol
	err := q.get(ctx, &sym, `SELECT `+symbolColumns+` FROM symbol WHERE ticker = ?`, ticker)
	return sym, err
}
