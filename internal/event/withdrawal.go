package event

import (
	"github.com/shopspring/decimal"

	"PortfolioLedger/internal/ledger"
)

// CashWithdrawal removes amount plus fees from an owner's cash.
// Idempotency key: external_id.
type CashWithdrawal struct {
	ExternalID string          `json:"external_id"`
	Owner      string          `json:"owner"`
	Timestamp  int64           `json:"timestamp"`
	Amount     decimal.Decimal `json:"amount"`
	Fees       decimal.Decimal `json:"fees"`
}

func (w *CashWithdrawal) IdempotencyKey() string {
	return w.ExternalID
}

func (w *CashWithdrawal) EventType() EventType {
	return EventTypeWithdrawal
}

func (w *CashWithdrawal) OwnerName() string {
	return w.Owner
}

func (w *CashWithdrawal) EventTimestamp() int64 {
	return w.Timestamp
}

func (w *CashWithdrawal) Request() ledger.CashRequest {
	return ledger.CashRequest{
		ExternalID: w.ExternalID,
		Timestamp:  w.Timestamp,
		Amount:     w.Amount,
		Fees:       w.Fees,
	}
}
