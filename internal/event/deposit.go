package event

import (
	"github.com/shopspring/decimal"

	"PortfolioLedger/internal/ledger"
)

// CashDeposit adds cash to an owner. Idempotency key: external_id.
type CashDeposit struct {
	ExternalID string          `json:"external_id"`
	Owner      string          `json:"owner"`
	Timestamp  int64           `json:"timestamp"`
	Amount     decimal.Decimal `json:"amount"`
	Fees       decimal.Decimal `json:"fees"`
}

func (d *CashDeposit) IdempotencyKey() string {
	return d.ExternalID
}

func (d *CashDeposit) EventType() EventType {
	return EventTypeDeposit
}

func (d *CashDeposit) OwnerName() string {
	return d.Owner
}

func (d *CashDeposit) EventTimestamp() int64 {
	return d.Timestamp
}

func (d *CashDeposit) Request() ledger.CashRequest {
	return ledger.CashRequest{
		ExternalID: d.ExternalID,
		Timestamp:  d.Timestamp,
		Amount:     d.Amount,
		Fees:       d.Fees,
	}
}
