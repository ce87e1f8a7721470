// Package formulas holds the pure numeric helpers used to derive published figures.
package formulas

import (
	"math"

	"github.com/shopspring/decimal"
)

// PercentChange returns the day-over-day change of current against prior, in percent,
// rounded to two decimals.
//
// When prior is missing or zero the change falls back to the intraday move
// (current against open) and fallback is reported as true; with no usable open
// either the value is 0. The result is always finite.
func PercentChange(current float64, prior *float64, open *float64) (value float64, fallback bool) {
	if prior != nil && *prior != 0 {
		return Round2((current - *prior) / *prior * 100), false
	}

	if open != nil && *open != 0 {
		return Round2((current - *open) / *open * 100), true
	}

	return 0, true
}

// Round2 rounds to two decimal places, half away from zero.
//
// Rounding is done on the shortest decimal representation of v, so 1.005
// becomes 1.01 rather than the 1.00 a binary float multiply-and-round yields.
// NaN and infinities collapse to 0.
func Round2(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	f, _ := decimal.NewFromFloat(v).Round(2).Float64()
	return f
}
