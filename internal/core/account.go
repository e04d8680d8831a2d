package core

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"PortfolioLedger/internal/ledger"
	"PortfolioLedger/internal/query"
)

// Account is the operation surface of one owner. Writes go through the
// engine; reads go through a query service over the same store.
type Account struct {
	engine *Engine
	reader *query.QueryService
	owner  ledger.Owner
}

// NewAccount binds an owner to an engine and a query service.
func NewAccount(engine *Engine, reader *query.QueryService, owner ledger.Owner) *Account {
	return &Account{engine: engine, reader: reader, owner: owner}
}

// Owner returns the bound owner.
func (a *Account) Owner() ledger.Owner {
	return a.owner
}

func (a *Account) Deposit(ctx context.Context, externalID string, timestamp int64, amount, fees decimal.Decimal) (*Receipt, error) {
	return a.engine.Deposit(ctx, a.owner, ledger.CashRequest{
		ExternalID: externalID,
		Timestamp:  timestamp,
		Amount:     amount,
		Fees:       fees,
	})
}

func (a *Account) Withdraw(ctx context.Context, externalID string, timestamp int64, amount, fees decimal.Decimal) (*Receipt, error) {
	return a.engine.Withdraw(ctx, a.owner, ledger.CashRequest{
		ExternalID: externalID,
		Timestamp:  timestamp,
		Amount:     amount,
		Fees:       fees,
	})
}

func (a *Account) Buy(ctx context.Context, externalID string, timestamp int64, symbol string, qty, price, fees decimal.Decimal) (*Receipt, error) {
	return a.engine.Buy(ctx, a.owner, ledger.TradeRequest{
		ExternalID: externalID,
		Timestamp:  timestamp,
		Symbol:     symbol,
		Quantity:   qty,
		Price:      price,
		Fees:       fees,
	})
}

func (a *Account) Sell(ctx context.Context, externalID string, timestamp int64, symbol string, qty, price, fees decimal.Decimal) (*Receipt, error) {
	return a.engine.Sell(ctx, a.owner, ledger.TradeRequest{
		ExternalID: externalID,
		Timestamp:  timestamp,
		Symbol:     symbol,
		Quantity:   qty,
		Price:      price,
		Fees:       fees,
	})
}

// DepositInKind transfers qty shares in at costBasis per share.
func (a *Account) DepositInKind(ctx context.Context, externalID string, timestamp int64, symbol string, qty, costBasis, fees decimal.Decimal) (*Receipt, error) {
	return a.engine.DepositInKind(ctx, a.owner, ledger.TradeRequest{
		ExternalID: externalID,
		Timestamp:  timestamp,
		Symbol:     symbol,
		Quantity:   qty,
		Price:      costBasis,
		Fees:       fees,
	})
}

func (a *Account) StartWatching(ctx context.Context, symbol, displayName string) (ledger.Symbol, error) {
	return a.engine.StartWatching(ctx, a.owner, symbol, displayName)
}

func (a *Account) StopWatching(ctx context.Context, symbol string) (bool, error) {
	return a.engine.StopWatching(ctx, a.owner, symbol)
}

// CurrentCash at asOf; zero asOf means latest.
func (a *Account) CurrentCash(ctx context.Context, asOf int64) (decimal.Decimal, error) {
	return a.reader.CurrentCash(ctx, a.owner.ID, asOf)
}

// CurrentPosition at asOf; nil when nothing is held.
func (a *Account) CurrentPosition(ctx context.Context, symbol string, asOf int64) (*ledger.PositionSnapshot, error) {
	return a.reader.CurrentPosition(ctx, a.owner.ID, symbol, asOf)
}

// EODBalance is cash at the end of day; a zero day means today.
func (a *Account) EODBalance(ctx context.Context, day time.Time) (decimal.Decimal, error) {
	return a.reader.EODBalance(ctx, a.owner.ID, day)
}

// EODPosition is the position at the end of day; a zero day means today.
func (a *Account) EODPosition(ctx context.Context, symbol string, day time.Time) (*ledger.PositionSnapshot, error) {
	return a.reader.EODPosition(ctx, a.owner.ID, symbol, day)
}

func (a *Account) Watchlist(ctx context.Context) ([]ledger.Symbol, error) {
	return a.reader.Watchlist(ctx, a.owner.ID)
}

func (a *Account) IsWatching(ctx context.Context, symbol string) (bool, error) {
	return a.reader.IsWatching(ctx, a.owner.ID, symbol)
}

func (a *Account) Positions(ctx context.Context, asOf int64) ([]ledger.PositionSnapshot, error) {
	return a.reader.Positions(ctx, a.owner.ID, asOf)
}

func (a *Account) CashHistory(ctx context.Context, from, to int64) ([]ledger.CashMovement, error) {
	return a.reader.CashHistory(ctx, a.owner.ID, from, to)
}

func (a *Account) Transactions(ctx context.Context, symbol string) ([]ledger.PositionEvent, error) {
	return a.reader.Transactions(ctx, a.owner.ID, symbol)
}
