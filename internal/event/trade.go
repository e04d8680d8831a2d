package event

import (
	"github.com/shopspring/decimal"

	"PortfolioLedger/internal/ledger"
)

// Side represents trade direction
type Side int32

const (
	SideBuy Side = iota + 1
	SideSell
)

// TradeFill is an executed buy or sell of shares.
// Idempotency key: external_id.
type TradeFill struct {
	TradeSide   Side            `json:"-"`
	ExternalID  string          `json:"external_id"`
	Owner       string          `json:"owner"`
	Timestamp   int64           `json:"timestamp"`
	Symbol      string          `json:"symbol"`
	DisplayName string          `json:"display_name,omitempty"`
	Quantity    decimal.Decimal `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
	Fees        decimal.Decimal `json:"fees"`
}

func (t *TradeFill) IdempotencyKey() string {
	return t.ExternalID
}

func (t *TradeFill) EventType() EventType {
	if t.TradeSide == SideSell {
		return EventTypeSell
	}
	return EventTypeBuy
}

func (t *TradeFill) OwnerName() string {
	return t.Owner
}

func (t *TradeFill) EventTimestamp() int64 {
	return t.Timestamp
}

func (t *TradeFill) Request() ledger.TradeRequest {
	return ledger.TradeRequest{
		ExternalID:  t.ExternalID,
		Timestamp:   t.Timestamp,
		Symbol:      t.Symbol,
		DisplayName: t.DisplayName,
		Quantity:    t.Quantity,
		Price:       t.Price,
		Fees:        t.Fees,
	}
}

// Disposal is the outbound payload of a sell: the transaction row plus the
// gain realized against the average cost, net of fees.
type Disposal struct {
	ledger.PositionEvent
	RealizedPnL decimal.Decimal `json:"realized_pnl"`
}

// InKindDeposit transfers shares into the portfolio at a cost basis per share.
// Idempotency key: external_id.
type InKindDeposit struct {
	ExternalID  string          `json:"external_id"`
	Owner       string          `json:"owner"`
	Timestamp   int64           `json:"timestamp"`
	Symbol      string          `json:"symbol"`
	DisplayName string          `json:"display_name,omitempty"`
	Quantity    decimal.Decimal `json:"quantity"`
	CostBasis   decimal.Decimal `json:"cost_basis"`
	Fees        decimal.Decimal `json:"fees"`
}

func (d *InKindDeposit) IdempotencyKey() string {
	return d.ExternalID
}

func (d *InKindDeposit) EventType() EventType {
	return EventTypeDepositInKind
}

func (d *InKindDeposit) OwnerName() string {
	return d.Owner
}

func (d *InKindDeposit) EventTimestamp() int64 {
	return d.Timestamp
}

func (d *InKindDeposit) Request() ledger.TradeRequest {
	return ledger.TradeRequest{
		ExternalID:  d.ExternalID,
		Timestamp:   d.Timestamp,
		Symbol:      d.Symbol,
		DisplayName: d.DisplayName,
		Quantity:    d.Quantity,
		Price:       d.CostBasis,
		Fees:        d.Fees,
	}
}
