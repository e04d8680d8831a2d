package query

import (
	"context"
	"fmt"
	"time"

	"PortfolioLedger/internal/ledger"
	fpmath "PortfolioLedger/internal/math"
	"PortfolioLedger/internal/persistence"
)

// QueryService provides read-only, point-in-time access to the ledger.
// Every read sees committed data only and never takes an owner lock.
type QueryService struct {
	store *persistence.Store
	loc   *time.Location
	now   func() time.Time
}

// NewQueryService creates a service whose calendar days are evaluated in loc
// (UTC when nil).
func NewQueryService(store *persistence.Store, loc *time.Location) *QueryService {
	if loc == nil {
		loc = time.UTC
	}
	return &QueryService{store: store, loc: loc, now: time.Now}
}

// Location is the time zone of end-of-day boundaries.
func (qs *QueryService) Location() *time.Location {
	return qs.loc
}

// Today is the current calendar day in the service's time zone.
func (qs *QueryService) Today() time.Time {
	return qs.now().In(qs.loc)
}

// EndOfDay is the last millisecond of day, or of today when day is zero.
func (qs *QueryService) EndOfDay(day time.Time) int64 {
	if day.IsZero() {
		day = qs.Today()
	}
	return fpmath.EndOfDay(day, qs.loc)
}

// ParseDay parses YYYY-MM-DD in the service's time zone. Empty means today.
func (qs *QueryService) ParseDay(s string) (time.Time, error) {
	if s == "" {
		return qs.Today(), nil
	}
	day, err := fpmath.ParseDay(s, qs.loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: day %q: %v", ledger.ErrInvalidInput, s, err)
	}
	return day, nil
}

// --- Owners ---

func (qs *QueryService) Owner(ctx context.Context, name string) (ledger.Owner, error) {
	return qs.store.Reader().OwnerByName(ctx, name)
}

func (qs *QueryService) Owners(ctx context.Context) ([]ledger.Owner, error) {
	return qs.store.Reader().ListOwners(ctx)
}

// --- Symbols & prices ---

func (qs *QueryService) Symbol(ctx context.Context, ticker string) (ledger.Symbol, error) {
	return qs.store.Reader().GetSymbol(ctx, ticker)
}

func (qs *QueryService) Symbols(ctx context.Context) ([]ledger.Symbol, error) {
	return qs.store.Reader().ListSymbols(ctx)
}

// Prices lists every bar of ticker in time order.
func (qs *QueryService) Prices(ctx context.Context, ticker string) ([]ledger.PricePoint, error) {
	return qs.store.Reader().ListPrices(ctx, ticker)
}

// LatestPrice returns the newest bar at or before asOf (globally newest when
// asOf is zero). With sameDay the bar must also fall on asOf's calendar day.
func (qs *QueryService) LatestPrice(ctx context.Context, ticker string, asOf int64, sameDay bool) (*ledger.PricePoint, error) {
	var notBefore int64
	if sameDay && asOf > 0 {
		notBefore = fpmath.StartOfDay(asOf, qs.loc)
	}
	return qs.store.Reader().LatestPrice(ctx, ticker, asOf, notBefore)
}

// EODPrice is the last bar of day (today when zero), nil when the day has
// none.
func (qs *QueryService) EODPrice(ctx context.Context, ticker string, day time.Time) (*ledger.PricePoint, error) {
	return qs.LatestPrice(ctx, ticker, qs.EndOfDay(day), true)
}

// LatestPriceTimestamps maps each ticker to its newest bar's timestamp.
func (qs *QueryService) LatestPriceTimestamps(ctx context.Context) (map[string]int64, error) {
	return qs.store.Reader().LatestPriceTimestamps(ctx)
}
