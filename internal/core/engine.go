package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"PortfolioLedger/internal/event"
	"PortfolioLedger/internal/ledger"
	fpmath "PortfolioLedger/internal/math"
	"PortfolioLedger/internal/observability"
	"PortfolioLedger/internal/persistence"
	"PortfolioLedger/internal/query"
)

// Engine applies ledger operations. Each operation runs in one database
// transaction under the owner's lock; on any error nothing is written.
type Engine struct {
	store       *persistence.Store
	reader      *query.QueryService
	idempotency *IdempotencyChecker
	locks       *ownerLocks
	metrics     *observability.Metrics
	log         zerolog.Logger

	publishChan chan<- *event.EventEnvelope
}

// Config wires optional collaborators. A nil PublishChan disables outbound
// events; nil Metrics disables instrumentation.
type Config struct {
	Location            *time.Location // end-of-day boundaries, UTC when nil
	IdempotencyCapacity int
	PublishChan         chan<- *event.EventEnvelope
	Metrics             *observability.Metrics
	Logger              zerolog.Logger
}

// Receipt describes the state right after a committed operation.
type Receipt struct {
	Owner       ledger.Owner             `json:"owner"`
	ExternalID  string                   `json:"external_id"`
	Timestamp   int64                    `json:"timestamp"`
	Cash        decimal.Decimal          `json:"cash"`
	Symbol      string                   `json:"symbol,omitempty"`
	Position    *ledger.PositionSnapshot `json:"position,omitempty"`
	RealizedPnL *decimal.Decimal         `json:"realized_pnl,omitempty"` // sells only
	Watching    bool                     `json:"watching"`
}

func NewEngine(store *persistence.Store, cfg Config) *Engine {
	capacity := cfg.IdempotencyCapacity
	if capacity <= 0 {
		capacity = 100_000
	}

	return &Engine{
		store:       store,
		reader:      query.NewQueryService(store, cfg.Location),
		idempotency: NewIdempotencyChecker(capacity, cfg.Metrics),
		locks:       newOwnerLocks(),
		metrics:     cfg.Metrics,
		log:         cfg.Logger.With().Str("component", "engine").Logger(),
		publishChan: cfg.PublishChan,
	}
}

// WarmIdempotency loads the most recent external ids into the LRU.
func (e *Engine) WarmIdempotency(ctx context.Context, limit int) error {
	ids, err := e.store.Reader().RecentExternalIDs(ctx, limit)
	if err != nil {
		return err
	}
	e.idempotency.Warm(ids)
	e.log.Info().Int("count", len(ids)).Msg("idempotency cache warmed")
	return nil
}

// --- Owners ---

// CreateOwner registers an owner; a taken name is ErrConflict.
func (e *Engine) CreateOwner(ctx context.Context, name string, currency ledger.Currency) (ledger.Owner, error) {
	var owner ledger.Owner
	err := e.store.WithTx(ctx, func(q *persistence.Queries) error {
		var err error
		owner, err = q.CreateOwner(ctx, name, currency)
		return err
	})
	if err != nil {
		return ledger.Owner{}, err
	}
	e.log.Info().Str("owner", owner.Path()).Str("currency", owner.Currency.String()).Msg("owner created")
	return owner, nil
}

// EnsureOwner returns the named owner, creating it when absent. An existing
// owner keeps its currency.
func (e *Engine) EnsureOwner(ctx context.Context, name string, currency ledger.Currency) (ledger.Owner, error) {
	owner, err := e.store.Reader().OwnerByName(ctx, name)
	if err == nil {
		return owner, nil
	}
	if !errors.Is(err, ledger.ErrNotFound) {
		return ledger.Owner{}, err
	}

	owner, err = e.CreateOwner(ctx, name, currency)
	if errors.Is(err, ledger.ErrConflict) {
		// Lost a creation race; the winner's row is authoritative.
		return e.store.Reader().OwnerByName(ctx, name)
	}
	return owner, err
}

// Account binds the engine to the named owner.
func (e *Engine) Account(ctx context.Context, name string) (*Account, error) {
	owner, err := e.store.Reader().OwnerByName(ctx, name)
	if err != nil {
		return nil, err
	}
	return NewAccount(e, e.reader, owner), nil
}

// Reader is the query service over the engine's store.
func (e *Engine) Reader() *query.QueryService {
	return e.reader
}

// --- Cash operations ---

// Deposit records amount-fees as a DEPOSIT movement and raises cash by the
// same net amount.
func (e *Engine) Deposit(ctx context.Context, owner ledger.Owner, req ledger.CashRequest) (*Receipt, error) {
	const op = "deposit"
	if err := req.ValidateDeposit(); err != nil {
		return nil, e.reject(op, owner, req.ExternalID, err)
	}

	net := req.Amount.Sub(req.Fees)
	return e.apply(ctx, op, owner, req.ExternalID, req.Timestamp, func(q *persistence.Queries, r *Receipt) (*event.EventEnvelope, error) {
		mv, err := q.InsertCashMovement(ctx, ledger.CashMovement{
			ExternalID: req.ExternalID,
			OwnerID:    owner.ID,
			Timestamp:  req.Timestamp,
			Amount:     net,
			Type:       ledger.MovementDeposit,
			Fees:       req.Fees,
		})
		if err != nil {
			return nil, err
		}

		if r.Cash, err = e.applyCashDelta(ctx, q, owner, req.Timestamp, net); err != nil {
			return nil, err
		}
		return event.NewEnvelope(event.EventTypeDeposit, req.ExternalID, req.Timestamp, mv)
	})
}

// Withdraw removes amount+fees from cash and records -amount as a WITHDRAW
// movement. A total above the current balance is ErrInsufficientFunds.
func (e *Engine) Withdraw(ctx context.Context, owner ledger.Owner, req ledger.CashRequest) (*Receipt, error) {
	const op = "withdraw"
	if err := req.Validate(); err != nil {
		return nil, e.reject(op, owner, req.ExternalID, err)
	}

	total := req.Amount.Add(req.Fees)
	return e.apply(ctx, op, owner, req.ExternalID, req.Timestamp, func(q *persistence.Queries, r *Receipt) (*event.EventEnvelope, error) {
		cash, err := q.CashBalance(ctx, owner.ID, 0)
		if err != nil {
			return nil, err
		}
		if total.GreaterThan(cash) {
			return nil, fmt.Errorf("%w: withdraw %s plus fees %s exceeds cash %s",
				ledger.ErrInsufficientFunds, req.Amount, req.Fees, cash)
		}

		mv, err := q.InsertCashMovement(ctx, ledger.CashMovement{
			ExternalID: req.ExternalID,
			OwnerID:    owner.ID,
			Timestamp:  req.Timestamp,
			Amount:     req.Amount.Neg(),
			Type:       ledger.MovementWithdraw,
			Fees:       req.Fees,
		})
		if err != nil {
			return nil, err
		}

		if r.Cash, err = e.applyCashDelta(ctx, q, owner, req.Timestamp, total.Neg()); err != nil {
			return nil, err
		}
		return event.NewEnvelope(event.EventTypeWithdrawal, req.ExternalID, req.Timestamp, mv)
	})
}

// --- Position operations ---

// Buy acquires shares for qty*price+fees of cash and starts watching the
// symbol.
func (e *Engine) Buy(ctx context.Context, owner ledger.Owner, req ledger.TradeRequest) (*Receipt, error) {
	const op = "buy"
	if err := req.Validate(); err != nil {
		return nil, e.reject(op, owner, req.ExternalID, err)
	}

	total := fpmath.ComputeNotional(req.Quantity, req.Price).Add(req.Fees)
	return e.apply(ctx, op, owner, req.ExternalID, req.Timestamp, func(q *persistence.Queries, r *Receipt) (*event.EventEnvelope, error) {
		sym, err := q.ResolveOrCreateSymbol(ctx, req.Symbol, req.DisplayName)
		if err != nil {
			return nil, err
		}
		r.Symbol = sym.Ticker

		cash, err := q.CashBalance(ctx, owner.ID, 0)
		if err != nil {
			return nil, err
		}
		if total.GreaterThan(cash) {
			return nil, fmt.Errorf("%w: buy %s %s at %s plus fees %s costs %s, cash is %s",
				ledger.ErrInsufficientFunds, req.Quantity, sym.Ticker, req.Price, req.Fees, total, cash)
		}

		if err := q.AddWatch(ctx, owner.ID, sym.ID); err != nil {
			return nil, err
		}
		r.Watching = true

		pe, err := q.InsertPositionEvent(ctx, ledger.PositionEvent{
			ExternalID: req.ExternalID,
			OwnerID:    owner.ID,
			Timestamp:  req.Timestamp,
			SymbolID:   sym.ID,
			Ticker:     sym.Ticker,
			Quantity:   req.Quantity,
			Price:      req.Price,
			Type:       ledger.TransactionBuy,
			Fees:       req.Fees,
		})
		if err != nil {
			return nil, err
		}

		if r.Cash, err = e.applyCashDelta(ctx, q, owner, req.Timestamp, total.Neg()); err != nil {
			return nil, err
		}
		if r.Position, err = e.applyPositionDelta(ctx, q, owner, sym, req.Timestamp, req.Quantity, req.Price); err != nil {
			return nil, err
		}

		env, err := event.NewEnvelope(event.EventTypeBuy, req.ExternalID, req.Timestamp, pe)
		if err != nil {
			return nil, err
		}
		return env.WithSymbol(sym.Ticker), nil
	})
}

// Sell disposes of shares for qty*price-fees of cash. Selling the whole
// position liquidates it and stops watching the symbol.
func (e *Engine) Sell(ctx context.Context, owner ledger.Owner, req ledger.TradeRequest) (*Receipt, error) {
	const op = "sell"
	if err := req.Validate(); err != nil {
		return nil, e.reject(op, owner, req.ExternalID, err)
	}

	proceeds := fpmath.ComputeNotional(req.Quantity, req.Price).Sub(req.Fees)
	return e.apply(ctx, op, owner, req.ExternalID, req.Timestamp, func(q *persistence.Queries, r *Receipt) (*event.EventEnvelope, error) {
		sym, err := q.GetSymbol(ctx, req.Symbol)
		if errors.Is(err, ledger.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s holds no %s", ledger.ErrNoPosition, owner.Name, req.Symbol)
		}
		if err != nil {
			return nil, err
		}
		r.Symbol = sym.Ticker

		pos, err := q.LatestPositionSnapshot(ctx, owner.ID, sym.ID, 0)
		if err != nil {
			return nil, err
		}
		if !pos.IsOpen() {
			return nil, fmt.Errorf("%w: %s holds no %s", ledger.ErrNoPosition, owner.Name, sym.Ticker)
		}
		if req.Quantity.GreaterThan(pos.Size) {
			return nil, fmt.Errorf("%w: sell %s %s exceeds position %s",
				ledger.ErrInvalidOperation, req.Quantity, sym.Ticker, pos.Size)
		}
		realized := fpmath.ComputeRealizedPnL(req.Price, pos.AveragePrice, req.Quantity, req.Fees)
		r.RealizedPnL = &realized

		pe, err := q.InsertPositionEvent(ctx, ledger.PositionEvent{
			ExternalID: req.ExternalID,
			OwnerID:    owner.ID,
			Timestamp:  req.Timestamp,
			SymbolID:   sym.ID,
			Ticker:     sym.Ticker,
			Quantity:   req.Quantity.Neg(),
			Price:      req.Price,
			Type:       ledger.TransactionSell,
			Fees:       req.Fees,
		})
		if err != nil {
			return nil, err
		}

		if r.Cash, err = e.applyCashDelta(ctx, q, owner, req.Timestamp, proceeds); err != nil {
			return nil, err
		}
		if r.Position, err = e.applyPositionDelta(ctx, q, owner, sym, req.Timestamp, req.Quantity.Neg(), req.Price); err != nil {
			return nil, err
		}

		r.Watching = true
		if r.Position == nil {
			if _, err := q.RemoveWatch(ctx, owner.ID, sym.ID); err != nil {
				return nil, err
			}
			r.Watching = false
			e.log.Debug().Str("owner", owner.Path()).Str("symbol", sym.Ticker).Msg("position liquidated, watch removed")
		}

		env, err := event.NewEnvelope(event.EventTypeSell, req.ExternalID, req.Timestamp, event.Disposal{
			PositionEvent: pe,
			RealizedPnL:   realized,
		})
		if err != nil {
			return nil, err
		}
		return env.WithSymbol(sym.Ticker), nil
	})
}

// DepositInKind transfers shares in at a cost basis per share (req.Price).
// Only fees touch cash.
func (e *Engine) DepositInKind(ctx context.Context, owner ledger.Owner, req ledger.TradeRequest) (*Receipt, error) {
	const op = "deposit_in_kind"
	if err := req.Validate(); err != nil {
		return nil, e.reject(op, owner, req.ExternalID, err)
	}

	return e.apply(ctx, op, owner, req.ExternalID, req.Timestamp, func(q *persistence.Queries, r *Receipt) (*event.EventEnvelope, error) {
		cash, err := q.CashBalance(ctx, owner.ID, 0)
		if err != nil {
			return nil, err
		}
		if req.Fees.GreaterThan(cash) {
			return nil, fmt.Errorf("%w: in-kind fees %s exceed cash %s", ledger.ErrInsufficientFunds, req.Fees, cash)
		}
		r.Cash = cash

		sym, err := q.ResolveOrCreateSymbol(ctx, req.Symbol, req.DisplayName)
		if err != nil {
			return nil, err
		}
		r.Symbol = sym.Ticker

		pe, err := q.InsertPositionEvent(ctx, ledger.PositionEvent{
			ExternalID: req.ExternalID,
			OwnerID:    owner.ID,
			Timestamp:  req.Timestamp,
			SymbolID:   sym.ID,
			Ticker:     sym.Ticker,
			Quantity:   req.Quantity,
			Price:      req.Price,
			Type:       ledger.TransactionDepositInKind,
			Fees:       req.Fees,
		})
		if err != nil {
			return nil, err
		}

		if req.Fees.IsPositive() {
			if r.Cash, err = e.applyCashDelta(ctx, q, owner, req.Timestamp, req.Fees.Neg()); err != nil {
				return nil, err
			}
		}

		if err := q.AddWatch(ctx, owner.ID, sym.ID); err != nil {
			return nil, err
		}
		r.Watching = true

		if r.Position, err = e.applyPositionDelta(ctx, q, owner, sym, req.Timestamp, req.Quantity, req.Price); err != nil {
			return nil, err
		}

		env, err := event.NewEnvelope(event.EventTypeDepositInKind, req.ExternalID, req.Timestamp, pe)
		if err != nil {
			return nil, err
		}
		return env.WithSymbol(sym.Ticker), nil
	})
}

// --- Watchlist ---

// StartWatching adds the symbol to the owner's watchlist, creating the symbol
// if needed. Watching an already watched symbol is a no-op.
func (e *Engine) StartWatching(ctx context.Context, owner ledger.Owner, ticker, displayName string) (ledger.Symbol, error) {
	const op = "start_watching"
	var sym ledger.Symbol
	_, err := e.apply(ctx, op, owner, "", 0, func(q *persistence.Queries, r *Receipt) (*event.EventEnvelope, error) {
		var err error
		if sym, err = q.ResolveOrCreateSymbol(ctx, ticker, displayName); err != nil {
			return nil, err
		}
		already, err := q.IsWatching(ctx, owner.ID, sym.ID)
		if err != nil {
			return nil, err
		}
		if already {
			return nil, nil
		}
		if err := q.AddWatch(ctx, owner.ID, sym.ID); err != nil {
			return nil, err
		}
		env, err := event.NewEnvelope(event.EventTypeWatchStarted, "", 0, sym)
		if err != nil {
			return nil, err
		}
		return env.WithSymbol(sym.Ticker), nil
	})
	if err != nil {
		return ledger.Symbol{}, err
	}
	return sym, nil
}

// StopWatching removes the symbol from the watchlist. It is a logged no-op,
// returning false, when the symbol is not watched or is still held.
func (e *Engine) StopWatching(ctx context.Context, owner ledger.Owner, ticker string) (bool, error) {
	const op = "stop_watching"
	t, err := ledger.NormalizeTicker(ticker)
	if err != nil {
		return false, e.reject(op, owner, "", err)
	}

	var removed bool
	_, err = e.apply(ctx, op, owner, "", 0, func(q *persistence.Queries, r *Receipt) (*event.EventEnvelope, error) {
		sym, err := q.GetSymbol(ctx, t)
		if errors.Is(err, ledger.ErrNotFound) {
			e.log.Info().Str("owner", owner.Path()).Str("symbol", t).Msg("stop watching: unknown symbol, nothing to do")
			return nil, nil
		}
		if err != nil {
			return nil, err
		}

		pos, err := q.LatestPositionSnapshot(ctx, owner.ID, sym.ID, 0)
		if err != nil {
			return nil, err
		}
		if pos.IsOpen() {
			e.log.Info().Str("owner", owner.Path()).Str("symbol", t).
				Str("size", pos.Size.String()).Msg("stop watching: position still open, keeping watch")
			return nil, nil
		}

		if removed, err = q.RemoveWatch(ctx, owner.ID, sym.ID); err != nil {
			return nil, err
		}
		if !removed {
			e.log.Info().Str("owner", owner.Path()).Str("symbol", t).Msg("stop watching: not watching")
			return nil, nil
		}

		env, err := event.NewEnvelope(event.EventTypeWatchStopped, "", 0, sym)
		if err != nil {
			return nil, err
		}
		return env.WithSymbol(sym.Ticker), nil
	})
	if err != nil {
		return false, err
	}
	return removed, nil
}

// --- Reference data ---

// RecordPrice stores an OHLCV bar; a repeated (symbol, timestamp) is
// ErrConflict.
func (e *Engine) RecordPrice(ctx context.Context, ticker string, timestamp int64, bar ledger.OHLCV) (ledger.PricePoint, error) {
	const op = "price"
	start := time.Now()

	var pp ledger.PricePoint
	err := e.store.WithTx(ctx, func(q *persistence.Queries) error {
		var err error
		pp, err = q.AddPrice(ctx, ticker, timestamp, bar)
		return err
	})
	if err != nil {
		return ledger.PricePoint{}, e.reject(op, ledger.Owner{}, "", err)
	}
	e.observe(op, start)

	if env, err := event.NewEnvelope(event.EventTypePrice, "", timestamp, pp); err == nil {
		e.Publish(env.WithSymbol(pp.Ticker))
	}
	return pp, nil
}

// DeleteSymbol removes an unreferenced symbol; false when unknown.
func (e *Engine) DeleteSymbol(ctx context.Context, ticker string) (bool, error) {
	var deleted bool
	err := e.store.WithTx(ctx, func(q *persistence.Queries) error {
		var err error
		deleted, err = q.DeleteSymbol(ctx, ticker)
		return err
	})
	if err != nil {
		return false, err
	}
	if deleted {
		e.log.Info().Str("symbol", strings.ToUpper(strings.TrimSpace(ticker))).Msg("symbol deleted")
	}
	return deleted, nil
}

// --- Outbound ---

// Publish hands an envelope to the outbound publisher without blocking.
// It reports whether the envelope was accepted; envelopes are dropped when
// the channel is full or publishing is disabled.
func (e *Engine) Publish(env *event.EventEnvelope) bool {
	if e.publishChan == nil || env == nil {
		return false
	}
	select {
	case e.publishChan <- env:
		return true
	default:
		if e.metrics != nil {
			e.metrics.PublishDrops.Inc()
		}
		e.log.Warn().Str("event_type", env.EventType.String()).Str("event_id", env.EventID).Msg("publish channel full, event dropped")
		return false
	}
}

// --- Internals ---

type applyFunc func(q *persistence.Queries, r *Receipt) (*event.EventEnvelope, error)

// apply is the common pipeline of every owner-scoped operation:
// tier-1 dedup, owner lock, transaction with row lock, tier-2 dedup,
// forward-only check, the operation itself, commit, then emit.
func (e *Engine) apply(ctx context.Context, op string, owner ledger.Owner, externalID string, ts int64, fn applyFunc) (*Receipt, error) {
	start := time.Now()

	if externalID != "" && e.idempotency.SeenRecently(op, externalID) {
		return nil, e.reject(op, owner, externalID, duplicate(externalID))
	}

	unlock := e.locks.lock(owner.ID)
	defer unlock()

	receipt := &Receipt{Owner: owner, ExternalID: externalID, Timestamp: ts}
	var env *event.EventEnvelope

	err := e.store.WithTx(ctx, func(q *persistence.Queries) error {
		if err := q.LockOwner(ctx, owner.ID); err != nil {
			return err
		}

		if externalID != "" {
			dup, err := e.idempotency.IsDuplicate(ctx, op, externalID, q)
			if err != nil {
				return err
			}
			if dup {
				return duplicate(externalID)
			}
		}

		if ts > 0 {
			latest, err := q.LatestActivity(ctx, owner.ID)
			if err != nil {
				return err
			}
			if ts < latest {
				return fmt.Errorf("%w: timestamp %d precedes latest recorded activity %d of %s",
					ledger.ErrInvalidOperation, ts, latest, owner.Name)
			}
		}

		var err error
		env, err = fn(q, receipt)
		return err
	})
	if err != nil {
		return nil, e.reject(op, owner, externalID, err)
	}

	if externalID != "" {
		e.idempotency.MarkProcessed(externalID)
	}
	e.observe(op, start)
	e.log.Debug().Str("op", op).Str("owner", owner.Path()).Str("external_id", externalID).
		Int64("timestamp", ts).Str("cash", receipt.Cash.String()).Msg("operation applied")

	if env != nil {
		e.Publish(env.WithOwner(owner.ID, owner.Name))
	}
	return receipt, nil
}

// applyCashDelta writes a new cash snapshot at ts. A negative result is
// ErrInsufficientFunds.
func (e *Engine) applyCashDelta(ctx context.Context, q *persistence.Queries, owner ledger.Owner, ts int64, delta decimal.Decimal) (decimal.Decimal, error) {
	current, err := q.CashBalance(ctx, owner.ID, 0)
	if err != nil {
		return decimal.Zero, err
	}

	next := current.Add(delta)
	if next.IsNegative() {
		return decimal.Zero, fmt.Errorf("%w: cash %s with delta %s would be %s",
			ledger.ErrInsufficientFunds, current, delta, next)
	}

	snap, err := q.InsertCashSnapshot(ctx, ledger.CashSnapshot{
		OwnerID:   owner.ID,
		Timestamp: ts,
		Cash:      fpmath.CashConfig.Round(next, fpmath.RoundHalfEven),
	})
	if err != nil {
		return decimal.Zero, err
	}
	return snap.Cash, nil
}

// applyPositionDelta writes a new position snapshot at ts. Acquisitions
// re-average the cost; disposals keep it. A zero result is written as a
// zero-size row and returned as nil.
func (e *Engine) applyPositionDelta(ctx context.Context, q *persistence.Queries, owner ledger.Owner, sym ledger.Symbol, ts int64, qty, price decimal.Decimal) (*ledger.PositionSnapshot, error) {
	prev, err := q.LatestPositionSnapshot(ctx, owner.ID, sym.ID, 0)
	if err != nil {
		return nil, err
	}

	size, avg := decimal.Zero, decimal.Zero
	if prev != nil {
		size, avg = prev.Size, prev.AveragePrice
	}

	newSize := size.Add(qty)
	if newSize.IsNegative() {
		return nil, fmt.Errorf("%w: %s position %s with delta %s would be negative",
			ledger.ErrInvalidOperation, sym.Ticker, size, qty)
	}
	if qty.IsPositive() {
		avg = fpmath.ComputeAvgEntryPrice(size, avg, qty, price)
	}

	snap, err := q.InsertPositionSnapshot(ctx, ledger.PositionSnapshot{
		OwnerID:      owner.ID,
		SymbolID:     sym.ID,
		Ticker:       sym.Ticker,
		Timestamp:    ts,
		Size:         newSize,
		AveragePrice: avg,
		MarketPrice:  price,
	})
	if err != nil {
		return nil, err
	}
	if !snap.IsOpen() {
		return nil, nil
	}
	return &snap, nil
}

func (e *Engine) reject(op string, owner ledger.Owner, externalID string, err error) error {
	if e.metrics != nil {
		e.metrics.OpsRejected.WithLabelValues(op, ledger.KindLabel(err)).Inc()
	}

	evt := e.log.Warn()
	if ledger.Kind(err) == nil {
		evt = e.log.Error()
	}
	evt.Err(err).Str("op", op).Str("owner", owner.Name).Str("external_id", externalID).Msg("operation rejected")
	return err
}

func (e *Engine) observe(op string, start time.Time) {
	if e.metrics == nil {
		return
	}
	e.metrics.OpsApplied.WithLabelValues(op).Inc()
	e.metrics.OpDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

func duplicate(externalID string) error {
	return fmt.Errorf("%w: external id %q already applied", ledger.ErrDuplicateOperation, externalID)
}

// ownerLocks serializes operations per owner within the process. The row
// lock taken inside the transaction covers other processes.
type ownerLocks struct {
	mu    sync.Mutex
	locks map[int64]*sync.Mutex
}

func newOwnerLocks() *ownerLocks {
	return &ownerLocks{locks: make(map[int64]*sync.Mutex)}
}

func (l *ownerLocks) lock(ownerID int64) func() {
	l.mu.Lock()
	m, ok := l.locks[ownerID]
	if !ok {
		m = &sync.Mutex{}
		l.locks[ownerID] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}
