package math

import (
	"github.com/shopspring/decimal"
)

// DecimalConfig defines the precision kept when storing derived values.
type DecimalConfig struct {
	DecimalPrecision int32 // Number of decimal places
}

var (
	// Standard configs
	PriceConfig = DecimalConfig{DecimalPrecision: 8}  // average prices
	CashConfig  = DecimalConfig{DecimalPrecision: 10} // balances
)

type RoundingMode int

const (
	RoundHalfEven RoundingMode = iota // Banker's rounding (default)
	RoundDown
	RoundUp
)

// Round applies the rounding mode at the config's precision.
func (c DecimalConfig) Round(v decimal.Decimal, mode RoundingMode) decimal.Decimal {
	switch mode {
	case RoundDown:
		return v.RoundFloor(c.DecimalPrecision)
	case RoundUp:
		return v.RoundCeil(c.DecimalPrecision)
	default:
		return v.RoundBank(c.DecimalPrecision)
	}
}

// ComputeAvgEntryPrice calculates the weighted average cost after an
// acquisition of fillQty at fillPrice:
//
//	(oldAvg*oldSize + fillPrice*fillQty) / (oldSize + fillQty)
func ComputeAvgEntryPrice(oldSize, oldAvg, fillQty, fillPrice decimal.Decimal) decimal.Decimal {
	if oldSize.IsZero() {
		return fillPrice
	}

	numerator := oldAvg.Mul(oldSize).Add(fillPrice.Mul(fillQty))
	denominator := oldSize.Add(fillQty)
	if denominator.IsZero() {
		return oldAvg
	}

	return PriceConfig.Round(numerator.Div(denominator), RoundHalfEven)
}

// ComputeNotional calculates quantity * price.
func ComputeNotional(quantity, price decimal.Decimal) decimal.Decimal {
	return quantity.Mul(price)
}

// ComputeRealizedPnL calculates the gain of disposing closeQty at fillPrice
// against an average cost, net of fees.
func ComputeRealizedPnL(fillPrice, avgPrice, closeQty, fees decimal.Decimal) decimal.Decimal {
	return fillPrice.Sub(avgPrice).Mul(closeQty).Sub(fees)
}
