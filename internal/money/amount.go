package money

import (
	"errors"
	"regexp"

	"github.com/shopspring/decimal"
)

// ErrInvalidAmount indicates user input that does not form a plain decimal
// number.
var ErrInvalidAmount = errors.New("invalid amount")

// inputPattern matches what the amount field accepts while typing: digits,
// optionally followed by a dot and more digits. No signs, no grouping.
var inputPattern = regexp.MustCompile(`^\d+(\.\d+)?$`)

// ParseInput converts a user-edited amount string into a decimal value. A
// trailing dot ("12.") is tolerated as an intermediate editing state and
// parsed as the integer part.
func ParseInput(s string) (decimal.Decimal, error) {
	if len(s) > 1 && s[len(s)-1] == '.' {
		s = s[:len(s)-1]
	}
	if !inputPattern.MatchString(s) {
		return decimal.Decimal{}, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, ErrInvalidAmount
	}
	return d, nil
}

// Format renders an amount with two decimal places for display.
func Format(d decimal.Decimal) string {
	return d.StringFixed(2)
}

// Percentage returns pct percent of amount, e.g. Percentage(200, 2) == 4.
func Percentage(amount, pct decimal.Decimal) decimal.Decimal {
	return amount.Mul(pct).Div(decimal.NewFromInt(100))
}
