package event

import (
	"fmt"

	"PortfolioLedger/internal/ledger"
)

// PriceObservation is one OHLCV bar for a symbol.
// Idempotency key: symbol@timestamp; the (symbol, timestamp) unique index
// rejects replays.
type PriceObservation struct {
	Symbol    string `json:"symbol"`
	Timestamp int64  `json:"timestamp"`
	ledger.OHLCV
}

func (p *PriceObservation) IdempotencyKey() string {
	return fmt.Sprintf("%s@%d", p.Symbol, p.Timestamp)
}

func (p *PriceObservation) EventType() EventType {
	return EventTypePrice
}

func (p *PriceObservation) OwnerName() string {
	return ""
}

func (p *PriceObservation) EventTimestamp() int64 {
	return p.Timestamp
}
