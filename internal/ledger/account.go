package ledger

import (
	"fmt"
	"strings"
)

// Currency is the reporting currency of an owner. Fixed at creation.
type Currency string

const (
	CurrencyUSD Currency = "USD"
	CurrencyCAD Currency = "CAD"
)

// ParseCurrency validates a currency code (case-insensitive).
func ParseCurrency(s string) (Currency, error) {
	switch c := Currency(strings.ToUpper(strings.TrimSpace(s))); c {
	case CurrencyUSD, CurrencyCAD:
		return c, nil
	default:
		return "", fmt.Errorf("%w: unknown currency %q", ErrInvalidInput, s)
	}
}

func (c Currency) String() string {
	return string(c)
}

// Owner is the portfolio whose cash and positions are tracked.
type Owner struct {
	ID       int64    `db:"id" json:"id"`
	Name     string   `db:"name" json:"name"`
	Currency Currency `db:"currency" json:"currency"`
}

// Path returns the string representation for logging and NATS subjects.
func (o Owner) Path() string {
	return fmt.Sprintf("owner:%d:%s", o.ID, o.Name)
}
