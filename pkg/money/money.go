package money

import (
	"github.com/shopspring/decimal"
)

var centsPerDollar = decimal.NewFromInt(100)

// FromCents converts an integer cent amount to a decimal dollar value.
func FromCents(cents int) decimal.Decimal {
	return decimal.NewFromInt(int64(cents)).Div(centsPerDollar)
}

// FormatUSD renders a cent amount as a dollar string, e.g. 1999 -> "$19.99".
func FormatUSD(cents int) string {
	return "$" + FromCents(cents).StringFixed(2)
}

// ToCents converts a decimal dollar value to cents, rounding half up.
func ToCents(d decimal.Decimal) int {
	return int(d.Mul(centsPerDollar).Round(0).IntPart())
}
