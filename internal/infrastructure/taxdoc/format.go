package taxdoc

import "github.com/shopspring/decimal"

// Amount renders a monetary value with exactly 2 decimal places.
// decimal formatting is locale independent: the separator is always a dot.
func Amount(d decimal.Decimal) string {
	return d.StringFixed(2)
}

// Quantity renders quantities and unit prices with up to 6 decimal places,
// trailing zeros trimmed
func Quantity(d decimal.Decimal) string {
	return d.Round(6).String()
}
