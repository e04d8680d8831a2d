package ledger

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// CashRequest is the input of a deposit or withdrawal.
type CashRequest struct {
	ExternalID string
	Timestamp  int64
	Amount     decimal.Decimal
	Fees       decimal.Decimal
}

// TradeRequest is the input of a buy, sell or deposit-in-kind. For
// deposit-in-kind, Price is the cost basis per share.
type TradeRequest struct {
	ExternalID  string
	Timestamp   int64
	Symbol      string
	DisplayName string
	Quantity    decimal.Decimal
	Price       decimal.Decimal
	Fees        decimal.Decimal
}

// Validate checks the boundary rules for a cash request.
func (r *CashRequest) Validate() error {
	if err := validateExternalID(r.ExternalID); err != nil {
		return err
	}
	if err := validateTimestamp(r.Timestamp); err != nil {
		return err
	}
	if !r.Amount.IsPositive() {
		return fmt.Errorf("%w: amount must be positive, got %s", ErrInvalidInput, r.Amount)
	}
	if r.Fees.IsNegative() {
		return fmt.Errorf("%w: fees must not be negative, got %s", ErrInvalidInput, r.Fees)
	}
	return nil
}

// ValidateDeposit adds the deposit rule that fees are paid out of the
// deposited amount, so they may not exceed it.
func (r *CashRequest) ValidateDeposit() error {
	if err := r.Validate(); err != nil {
		return err
	}
	if r.Fees.GreaterThan(r.Amount) {
		return fmt.Errorf("%w: deposit fees %s exceed amount %s", ErrInvalidInput, r.Fees, r.Amount)
	}
	return nil
}

// Validate checks the boundary rules for a trade request and normalizes the
// symbol in place.
func (r *TradeRequest) Validate() error {
	if err := validateExternalID(r.ExternalID); err != nil {
		return err
	}
	if err := validateTimestamp(r.Timestamp); err != nil {
		return err
	}
	ticker, err := NormalizeTicker(r.Symbol)
	if err != nil {
		return err
	}
	r.Symbol = ticker
	if !r.Quantity.IsPositive() {
		return fmt.Errorf("%w: quantity must be positive, got %s", ErrInvalidInput, r.Quantity)
	}
	if r.Price.IsNegative() {
		return fmt.Errorf("%w: price must not be negative, got %s", ErrInvalidInput, r.Price)
	}
	if r.Fees.IsNegative() {
		return fmt.Errorf("%w: fees must not be negative, got %s", ErrInvalidInput, r.Fees)
	}
	return nil
}

func validateExternalID(id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("%w: external id is required", ErrInvalidInput)
	}
	return nil
}

func validateTimestamp(ts int64) error {
	if ts <= 0 {
		return fmt.Errorf("%w: timestamp must be positive epoch millis, got %d", ErrInvalidInput, ts)
	}
	return nil
}
