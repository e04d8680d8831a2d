package query

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"PortfolioLedger/internal/ledger"
	"PortfolioLedger/internal/persistence"
)

// CurrentPosition is the owner's open position in ticker at asOf (latest when
// zero), or nil. The market price is replaced by the close of the latest
// price at or before asOf when such a price exists; this is not persisted.
func (qs *QueryService) CurrentPosition(ctx context.Context, ownerID int64, ticker string, asOf int64) (*ledger.PositionSnapshot, error) {
	q := qs.store.Reader()

	sym, err := q.GetSymbol(ctx, ticker)
	if errors.Is(err, ledger.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	pos, err := q.LatestPositionSnapshot(ctx, ownerID, sym.ID, asOf)
	if err != nil {
		return nil, err
	}
	if !pos.IsOpen() {
		return nil, nil
	}

	if err := qs.attachMarketPrice(ctx, q, pos, asOf); err != nil {
		return nil, err
	}
	return pos, nil
}

// EODPosition is CurrentPosition at the end of day (today when zero).
func (qs *QueryService) EODPosition(ctx context.Context, ownerID int64, ticker string, day time.Time) (*ledger.PositionSnapshot, error) {
	return qs.CurrentPosition(ctx, ownerID, ticker, qs.EndOfDay(day))
}

// Positions lists every open position at asOf ordered by ticker.
func (qs *QueryService) Positions(ctx context.Context, ownerID, asOf int64) ([]ledger.PositionSnapshot, error) {
	q := qs.store.Reader()

	positions, err := q.OpenPositions(ctx, ownerID, asOf)
	if err != nil {
		return nil, err
	}
	for i := range positions {
		if err := qs.attachMarketPrice(ctx, q, &positions[i], asOf); err != nil {
			return nil, err
		}
	}
	return positions, nil
}

// Watchlist returns the owner's watched symbols ordered by ticker.
func (qs *QueryService) Watchlist(ctx context.Context, ownerID int64) ([]ledger.Symbol, error) {
	return qs.store.Reader().Watchlist(ctx, ownerID)
}

// IsWatching reports whether the owner watches ticker.
func (qs *QueryService) IsWatching(ctx context.Context, ownerID int64, ticker string) (bool, error) {
	q := qs.store.Reader()
	sym, err := q.GetSymbol(ctx, ticker)
	if errors.Is(err, ledger.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return q.IsWatching(ctx, ownerID, sym.ID)
}

// Transactions lists the owner's buys, sells and in-kind deposits in time
// order, optionally for one ticker.
func (qs *QueryService) Transactions(ctx context.Context, ownerID int64, ticker string) ([]ledger.PositionEvent, error) {
	return qs.store.Reader().PositionEvents(ctx, ownerID, ticker)
}

// GetPosition builds the API view of CurrentPosition; ErrNoPosition when
// nothing is held.
func (qs *QueryService) GetPosition(ctx context.Context, owner ledger.Owner, ticker string, asOf int64) (*PositionResponse, error) {
	pos, err := qs.CurrentPosition(ctx, owner.ID, ticker, asOf)
	if err != nil {
		return nil, err
	}
	if pos == nil {
		return nil, noPosition(owner, ticker)
	}
	return newPositionResponse(owner.Name, pos, asOf), nil
}

// GetEODPosition builds the API view of EODPosition.
func (qs *QueryService) GetEODPosition(ctx context.Context, owner ledger.Owner, ticker string, day time.Time) (*PositionResponse, error) {
	return qs.GetPosition(ctx, owner, ticker, qs.EndOfDay(day))
}

// GetSummary values cash and every open position at asOf.
func (qs *QueryService) GetSummary(ctx context.Context, owner ledger.Owner, asOf int64) (*SummaryResponse, error) {
	cash, err := qs.CurrentCash(ctx, owner.ID, asOf)
	if err != nil {
		return nil, err
	}
	positions, err := qs.Positions(ctx, owner.ID, asOf)
	if err != nil {
		return nil, err
	}

	resp := &SummaryResponse{
		Owner:       owner.Name,
		Currency:    owner.Currency,
		AsOf:        asOf,
		Cash:        cash,
		Positions:   make([]PositionResponse, 0, len(positions)),
		MarketValue: decimal.Zero,
	}
	for i := range positions {
		pr := newPositionResponse(owner.Name, &positions[i], asOf)
		resp.Positions = append(resp.Positions, *pr)
		resp.MarketValue = resp.MarketValue.Add(pr.MarketValue)
	}
	resp.TotalValue = cash.Add(resp.MarketValue)
	return resp, nil
}

// GetEODSummary is GetSummary at the end of day.
func (qs *QueryService) GetEODSummary(ctx context.Context, owner ledger.Owner, day time.Time) (*SummaryResponse, error) {
	if day.IsZero() {
		day = qs.Today()
	}
	resp, err := qs.GetSummary(ctx, owner, qs.EndOfDay(day))
	if err != nil {
		return nil, err
	}
	resp.Day = day.In(qs.loc).Format(time.DateOnly)
	return resp, nil
}

func (qs *QueryService) attachMarketPrice(ctx context.Context, q *persistence.Queries, pos *ledger.PositionSnapshot, asOf int64) error {
	price, err := q.LatestPrice(ctx, pos.Ticker, asOf, 0)
	if err != nil {
		return err
	}
	if price != nil {
		pos.MarketPrice = price.Close
	}
	return nil
}

func noPosition(owner ledger.Owner, ticker string) error {
	return fmt.Errorf("%w: %s holds no %s", ledger.ErrNoPosition, owner.Name, ticker)
}
