package query

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"PortfolioLedger/internal/ledger"
)

// CurrentCash is the owner's cash at asOf (latest when zero); zero before
// the first cash operation.
func (qs *QueryService) CurrentCash(ctx context.Context, ownerID, asOf int64) (decimal.Decimal, error) {
	return qs.store.Reader().CashBalance(ctx, ownerID, asOf)
}

// EODBalance is the owner's cash at the end of day (today when zero).
func (qs *QueryService) EODBalance(ctx context.Context, ownerID int64, day time.Time) (decimal.Decimal, error) {
	return qs.CurrentCash(ctx, ownerID, qs.EndOfDay(day))
}

// CashHistory lists movements with from <= timestamp <= to (open bounds when
// zero).
func (qs *QueryService) CashHistory(ctx context.Context, ownerID, from, to int64) ([]ledger.CashMovement, error) {
	return qs.store.Reader().CashMovements(ctx, ownerID, from, to)
}

// GetCash builds the API view of CurrentCash.
func (qs *QueryService) GetCash(ctx context.Context, owner ledger.Owner, asOf int64) (*CashResponse, error) {
	cash, err := qs.CurrentCash(ctx, owner.ID, asOf)
	if err != nil {
		return nil, err
	}
	return &CashResponse{Owner: owner.Name, Currency: owner.Currency, Cash: cash, AsOf: asOf}, nil
}

// GetEODCash builds the API view of EODBalance.
func (qs *QueryService) GetEODCash(ctx context.Context, owner ledger.Owner, day time.Time) (*CashResponse, error) {
	if day.IsZero() {
		day = qs.Today()
	}
	asOf := qs.EndOfDay(day)
	cash, err := qs.CurrentCash(ctx, owner.ID, asOf)
	if err != nil {
		return nil, err
	}
	return &CashResponse{
		Owner:    owner.Name,
		Currency: owner.Currency,
		Cash:     cash,
		AsOf:     asOf,
		Day:      day.In(qs.loc).Format(time.DateOnly),
	}, nil
}
