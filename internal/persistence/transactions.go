package persistence

import (
	"context"
	"fmt"

	"PortfolioLedger/internal/ledger"
)

// InsertPositionEvent appends a transaction ledger row. A reused external id
// is ErrDuplicateOperation.
func (q *Queries) InsertPositionEvent(ctx context.Context, ev ledger.PositionEvent) (ledger.PositionEvent, error) {
	if err := ev.Type.Validate(); err != nil {
		return ev, err
	}
	if err := q.claimExternalID(ctx, ev.ExternalID, ev.OwnerID, "position"); err != nil {
		return ev, err
	}

	id, err := q.insertReturningID(ctx, `
		INSERT INTO position_event (external_id, owner_id, timestamp, symbol_id, quantity, price, type, fees)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`,
		ev.ExternalID, ev.OwnerID, ev.Timestamp, ev.SymbolID, ev.Quantity, ev.Price, string(ev.Type), ev.Fees,
	)
	if err != nil {
		return ev, fmt.Errorf("insert position event %s: %w", ev.ExternalID, classify(err, ledger.ErrDuplicateOperation))
	}
	ev.ID = id
	return ev, nil
}

// PositionEvents lists an owner's transactions in time order, optionally for
// one ticker.
func (q *Queries) PositionEvents(ctx context.Context, ownerID int64, ticker string) ([]ledger.PositionEvent, error) {
	query := `
		SELECT pe.id, pe.external_id, pe.owner_id, pe.timestamp, pe.symbol_id, s.ticker,
			pe.quantity, pe.price, pe.type, pe.fees
		FROM position_event pe JOIN symbol s ON s.id = pe.symbol_id
		WHERE pe.owner_id = ?`
	args := []interface{}{ownerID}
	if ticker != "" {
		t, err := ledger.NormalizeTicker(ticker)
		if err != nil {
			return nil, err
		}
		query += ` AND s.ticker = ?`
		args = append(args, t)
	}
	query += ` ORDER BY pe.timestamp, pe.id`

	var out []ledger.PositionEvent
	if err := q.selectAll(ctx, &out, query, args...); err != nil {
		return nil, fmt.Errorf("list transactions owner %d: %w", ownerID, err)
	}
	return out, nil
}
