package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"PortfolioLedger/internal/ledger"
)

// InsertCashMovement appends a cash ledger row. A reused external id is
// ErrDuplicateOperation.
func (q *Queries) InsertCashMovement(ctx context.Context, m ledger.CashMovement) (ledger.CashMovement, error) {
	if err := m.Type.Validate(); err != nil {
		return m, err
	}
	if err := q.claimExternalID(ctx, m.ExternalID, m.OwnerID, "cash"); err != nil {
		return m, err
	}

	id, err := q.insertReturningID(ctx, `
		INSERT INTO cash_movement (external_id, owner_id, timestamp, amount, type, fees)
		VALUES (?, ?, ?, ?, ?, ?) RETURNING id`,
		m.ExternalID, m.OwnerID, m.Timestamp, m.Amount, string(m.Type), m.Fees,
	)
	if err != nil {
		return m, fmt.Errorf("insert cash movement %s: %w", m.ExternalID, classify(err, ledger.ErrDuplicateOperation))
	}
	m.ID = id
	return m, nil
}

// CashMovements lists an owner's movements in time order, bounded by
// from <= timestamp <= to where a non-positive bound is open.
func (q *Queries) CashMovements(ctx context.Context, ownerID, from, to int64) ([]ledger.CashMovement, error) {
	where := []string{"owner_id = ?"}
	args := []interface{}{ownerID}
	if from > 0 {
		where = append(where, "timestamp >= ?")
		args = append(args, from)
	}
	if to > 0 {
		where = append(where, "timestamp <= ?")
		args = append(args, to)
	}

	var out []ledger.CashMovement
	if err := q.selectAll(ctx, &out, `
		SELECT id, external_id, owner_id, timestamp, amount, type, fees
		FROM cash_movement
		WHERE `+strings.Join(where, " AND ")+`
		ORDER BY timestamp, id`, args...); err != nil {
		return nil, fmt.Errorf("list cash movements for owner %d: %w", ownerID, err)
	}
	return out, nil
}

// LatestCashSnapshot returns the newest snapshot at or before asOf (any time
// when asOf is non-positive), or nil when the owner has none.
func (q *Queries) LatestCashSnapshot(ctx context.Context, ownerID, asOf int64) (*ledger.CashSnapshot, error) {
	query := `SELECT id, owner_id, timestamp, cash FROM cash_snapshot WHERE owner_id = ?`
	args := []interface{}{ownerID}
	if asOf > 0 {
		query += ` AND timestamp <= ?`
		args = append(args, asOf)
	}
	query += ` ORDER BY timestamp DESC LIMIT 1`

	var snap ledger.CashSnapshot
	err := q.get(ctx, &snap, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest cash snapshot for owner %d: %w", ownerID, err)
	}
	return &snap, nil
}

// CashBalance is the cash of the latest snapshot at or before asOf, zero when
// there is none.
func (q *Queries) CashBalance(ctx context.Context, ownerID, asOf int64) (decimal.Decimal, error) {
	snap, err := q.LatestCashSnapshot(ctx, ownerID, asOf)
	if err != nil {
		return decimal.Zero, err
	}
	if snap == nil {
		return decimal.Zero, nil
	}
	return snap.Cash, nil
}

// InsertCashSnapshot writes a balance row. A second row for the same
// (owner, timestamp) is ErrConflict.
func (q *Queries) InsertCashSnapshot(ctx context.Context, snap ledger.CashSnapshot) (ledger.CashSnapshot, error) {
	if snap.Cash.IsNegative() {
		return snap, fmt.Errorf("%w: cash snapshot would be negative (%s)", ledger.ErrInsufficientFunds, snap.Cash)
	}

	id, err := q.insertReturningID(ctx,
		`INSERT INTO cash_snapshot (owner_id, timestamp, cash) VALUES (?, ?, ?) RETURNING id`,
		snap.OwnerID, snap.Timestamp, snap.Cash,
	)
	if err != nil {
		return snap, fmt.Errorf("insert cash snapshot owner %d at %d: %w", snap.OwnerID, snap.Timestamp, classify(err, ledger.ErrConflict))
	}
	snap.ID = id
	return snap, nil
}
