package ledger

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Symbol is a tradable ticker. Ticker is unique and upper-case.
type Symbol struct {
	ID          int64  `db:"id" json:"id"`
	Ticker      string `db:"ticker" json:"ticker"`
	DisplayName string `db:"display_name" json:"display_name,omitempty"`
}

// NormalizeTicker trims and upper-cases a ticker, rejecting empty input.
func NormalizeTicker(ticker string) (string, error) {
	t := strings.ToUpper(strings.TrimSpace(ticker))
	if t == "" {
		return "", fmt.Errorf("%w: empty symbol", ErrInvalidInput)
	}
	if strings.ContainsAny(t, " \t\r\n") {
		return "", fmt.Errorf("%w: malformed symbol %q", ErrInvalidInput, ticker)
	}
	return t, nil
}

// OHLCV is one bar of market data.
type OHLCV struct {
	Open          decimal.Decimal `db:"open" json:"open"`
	High          decimal.Decimal `db:"high" json:"high"`
	Low           decimal.Decimal `db:"low" json:"low"`
	Close         decimal.Decimal `db:"close" json:"close"`
	AdjustedClose decimal.Decimal `db:"adjusted_close" json:"adjusted_close"`
	Volume        int64           `db:"volume" json:"volume"`
}

// Validate rejects negative volume.
func (b OHLCV) Validate() error {
	if b.Volume < 0 {
		return fmt.Errorf("%w: negative volume %d", ErrInvalidInput, b.Volume)
	}
	return nil
}

// PricePoint is an immutable price observation, unique per (symbol, timestamp).
type PricePoint struct {
	ID        int64  `db:"id" json:"id"`
	SymbolID  int64  `db:"symbol_id" json:"symbol_id"`
	Ticker    string `db:"ticker" json:"ticker"`
	Timestamp int64  `db:"timestamp" json:"timestamp"`
	OHLCV
}
