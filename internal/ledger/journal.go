package ledger

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// MovementType is the kind of a cash ledger row.
type MovementType string

const (
	MovementDeposit  MovementType = "DEPOSIT"
	MovementWithdraw MovementType = "WITHDRAW"
)

func (t MovementType) Validate() error {
	switch t {
	case MovementDeposit, MovementWithdraw:
		return nil
	}
	return fmt.Errorf("%w: unknown movement type %q", ErrInvalidInput, string(t))
}

// TransactionType is the kind of a position ledger row.
type TransactionType string

const (
	TransactionBuy           TransactionType = "BUY"
	TransactionSell          TransactionType = "SELL"
	TransactionDepositInKind TransactionType = "DEPOSIT_IN_KIND"
)

func (t TransactionType) Validate() error {
	switch t {
	case TransactionBuy, TransactionSell, TransactionDepositInKind:
		return nil
	}
	return fmt.Errorf("%w: unknown transaction type %q", ErrInvalidInput, string(t))
}

// CashMovement is an append-only cash ledger row.
// Amount is signed: positive for deposits, negative for withdrawals.
type CashMovement struct {
	ID         int64           `db:"id" json:"id"`
	ExternalID string          `db:"external_id" json:"external_id"`
	OwnerID    int64           `db:"owner_id" json:"owner_id"`
	Timestamp  int64           `db:"timestamp" json:"timestamp"`
	Amount     decimal.Decimal `db:"amount" json:"amount"`
	Type       MovementType    `db:"type" json:"type"`
	Fees       decimal.Decimal `db:"fees" json:"fees"`
}

// PositionEvent is an append-only transaction ledger row.
// Quantity is signed: positive for acquisitions, negative for disposals.
type PositionEvent struct {
	ID         int64           `db:"id" json:"id"`
	ExternalID string          `db:"external_id" json:"external_id"`
	OwnerID    int64           `db:"owner_id" json:"owner_id"`
	Timestamp  int64           `db:"timestamp" json:"timestamp"`
	SymbolID   int64           `db:"symbol_id" json:"symbol_id"`
	Ticker     string          `db:"ticker" json:"ticker"`
	Quantity   decimal.Decimal `db:"quantity" json:"quantity"`
	Price      decimal.Decimal `db:"price" json:"price"`
	Type       TransactionType `db:"type" json:"type"`
	Fees       decimal.Decimal `db:"fees" json:"fees"`
}
