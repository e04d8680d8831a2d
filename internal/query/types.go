package query

import (
	"github.com/shopspring/decimal"

	"PortfolioLedger/internal/ledger"
)

// CashResponse is an owner's cash balance at an instant.
type CashResponse struct {
	Owner    string          `json:"owner"`
	Currency ledger.Currency `json:"currency"`
	Cash     decimal.Decimal `json:"cash"`
	AsOf     int64           `json:"as_of,omitempty"` // 0 means latest
	Day      string          `json:"day,omitempty"`   // set for end-of-day views
}

// PositionResponse represents a position for API queries. MarketPrice is the
// close of the latest known price at or before AsOf when one exists,
// otherwise the price of the last transaction.
type PositionResponse struct {
	Owner         string          `json:"owner"`
	Symbol        string          `json:"symbol"`
	Size          decimal.Decimal `json:"size"`
	AveragePrice  decimal.Decimal `json:"average_price"`
	MarketPrice   decimal.Decimal `json:"market_price"`
	MarketValue   decimal.Decimal `json:"market_value"`
	CostBasis     decimal.Decimal `json:"cost_basis"`
	UnrealizedPnL decimal.Decimal `json:"unrealized_pnl"` // Derived at query time
	UpdatedAt     int64           `json:"updated_at"`
	AsOf          int64           `json:"as_of,omitempty"`
}

// SummaryResponse is an owner's whole portfolio at an instant.
type SummaryResponse struct {
	Owner       string             `json:"owner"`
	Currency    ledger.Currency    `json:"currency"`
	Day         string             `json:"day,omitempty"`
	AsOf        int64              `json:"as_of"`
	Cash        decimal.Decimal    `json:"cash"`
	Positions   []PositionResponse `json:"positions"`
	MarketValue decimal.Decimal    `json:"market_value"`
	TotalValue  decimal.Decimal    `json:"total_value"`
}

func newPositionResponse(owner string, p *ledger.PositionSnapshot, asOf int64) *PositionResponse {
	return &PositionResponse{
		Owner:         owner,
		Symbol:        p.Ticker,
		Size:          p.Size,
		AveragePrice:  p.AveragePrice,
		MarketPrice:   p.MarketPrice,
		MarketValue:   p.MarketValue(),
		CostBasis:     p.CostBasis(),
		UnrealizedPnL: p.UnrealizedPnL(),
		UpdatedAt:     p.Timestamp,
		AsOf:          asOf,
	}
}
