// Package format renders monetary and ratio values for display.
package format

import (
	"math"
	"strings"

	"github.com/iwvelando/risk-forecast/pkg/constants"
	"github.com/shopspring/decimal"
)

// Currency returns a currency string with a dollar sign and thousands separators (e.g., "-$1,234.56").
func Currency(amount float64) string {
	if !finite(amount) {
		return "n/a"
	}
	d := decimal.NewFromFloat(amount).Round(constants.DecimalPrecision)
	formatted := formatPositiveCurrency(d.Abs())
	if d.IsNegative() {
		return "-$" + formatted
	}
	return "$" + formatted
}

// Percent renders a ratio as a percentage with one decimal (0.1234 -> "12.3%").
func Percent(ratio float64) string {
	if !finite(ratio) {
		return "n/a"
	}
	return decimal.NewFromFloat(ratio).Shift(2).StringFixed(1) + "%"
}

func formatPositiveCurrency(value decimal.Decimal) string {
	formatted := value.StringFixed(constants.DecimalPrecision)
	intPart, decPart, _ := strings.Cut(formatted, ".")

	if len(intPart) > 3 {
		var builder strings.Builder
		for i, digit := range intPart {
			if i > 0 && (len(intPart)-i)%3 == 0 {
				builder.WriteByte(',')
			}
			builder.WriteRune(digit)
		}
		intPart = builder.String()
	}

	return intPart + "." + decPart
}

// finite guards decimal.NewFromFloat, which panics on NaN and Inf.
func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
