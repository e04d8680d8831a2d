package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"PortfolioLedger/internal/ledger"
)

// CreateOwner registers a new owner. A taken name is ErrConflict.
func (q *Queries) CreateOwner(ctx context.Context, name string, currency ledger.Currency) (ledger.Owner, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return ledger.Owner{}, fmt.Errorf("%w: owner name is required", ledger.ErrInvalidInput)
	}
	if _, err := ledger.ParseCurrency(string(currency)); err != nil {
		return ledger.Owner{}, err
	}

	id, err := q.insertReturningID(ctx,
		`INSERT INTO owner (name, currency) VALUES (?, ?) RETURNING id`,
		name, string(currency),
	)
	if err != nil {
		return ledger.Owner{}, fmt.Errorf("create owner %s: %w", name, classify(err, ledger.ErrConflict))
	}
	return ledger.Owner{ID: id, Name: name, Currency: currency}, nil
}

// OwnerByName returns ErrNotFound for unknown names.
func (q *Queries) OwnerByName(ctx context.Context, name string) (ledger.Owner, error) {
	var o ledger.Owner
	err := q.get(ctx, &o, `SELECT id, name, currency FROM owner WHERE name = ?`, strings.TrimSpace(name))
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.Owner{}, fmt.Errorf("owner %q: %w", name, ledger.ErrNotFound)
	}
	if err != nil {
		return ledger.Owner{}, fmt.Errorf("get owner %q: %w", name, err)
	}
	return o, nil
}

// OwnerByID returns ErrNotFound for unknown ids.
func (q *Queries) OwnerByID(ctx context.Context, id int64) (ledger.Owner, error) {
	var o ledger.Owner
	err := q.get(ctx, &o, `SELECT id, name, currency FROM owner WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.Owner{}, fmt.Errorf("owner %d: %w", id, ledger.ErrNotFound)
	}
	if err != nil {
		return ledger.Owner{}, fmt.Errorf("get owner %d: %w", id, err)
	}
	return o, nil
}

// ListOwners returns all owners ordered by name.
func (q *Queries) ListOwners(ctx context.Context) ([]ledger.Owner, error) {
	var out []ledger.Owner
	if err := q.selectAll(ctx, &out, `SELECT id, name, currency FROM owner ORDER BY name`); err != nil {
		return nil, fmt.Errorf("list owners: %w", err)
	}
	return out, nil
}
