package ledger

import "github.com/shopspring/decimal"

// CashSnapshot is the materialized cash balance after one cash-affecting
// operation. Unique per (owner, timestamp).
type CashSnapshot struct {
	ID        int64           `db:"id" json:"id"`
	OwnerID   int64           `db:"owner_id" json:"owner_id"`
	Timestamp int64           `db:"timestamp" json:"timestamp"`
	Cash      decimal.Decimal `db:"cash" json:"cash"`
}

// PositionSnapshot is the materialized position after one position-affecting
// operation. Unique per (owner, symbol, timestamp). A zero Size row marks a
// liquidation.
type PositionSnapshot struct {
	ID           int64           `db:"id" json:"id"`
	OwnerID      int64           `db:"owner_id" json:"owner_id"`
	SymbolID     int64           `db:"symbol_id" json:"symbol_id"`
	Ticker       string          `db:"ticker" json:"ticker"`
	Timestamp    int64           `db:"timestamp" json:"timestamp"`
	Size         decimal.Decimal `db:"size" json:"size"`
	AveragePrice decimal.Decimal `db:"average_price" json:"average_price"`
	MarketPrice  decimal.Decimal `db:"market_price" json:"market_price"`
}

// IsOpen reports whether the snapshot represents a held position.
func (p *PositionSnapshot) IsOpen() bool {
	return p != nil && p.Size.IsPositive()
}

// MarketValue is Size * MarketPrice.
func (p *PositionSnapshot) MarketValue() decimal.Decimal {
	return p.Size.Mul(p.MarketPrice)
}

// CostBasis is Size * AveragePrice.
func (p *PositionSnapshot) CostBasis() decimal.Decimal {
	return p.Size.Mul(p.AveragePrice)
}

// UnrealizedPnL is MarketValue - CostBasis.
func (p *PositionSnapshot) UnrealizedPnL() decimal.Decimal {
	return p.MarketValue().Sub(p.CostBasis())
}
