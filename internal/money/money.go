package money

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Places is the number of fractional digits every monetary value is rounded to.
const Places = 2

// Zero is the zero amount.
var Zero = decimal.Zero

// Round rounds the amount to two decimal places, halves away from zero.
func Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(Places)
}

// NonNegative returns d or zero when d is negative.
func NonNegative(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}

// Parse converts a textual amount such as "19.99" into a rounded decimal.
func Parse(value string) (decimal.Decimal, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return decimal.Zero, fmt.Errorf("money: empty amount")
	}
	d, err := decimal.NewFromString(trimmed)
	if err != nil {
		return decimal.Zero, fmt.Errorf("money: parse %q: %w", value, err)
	}
	return Round(d), nil
}

// MustParse is Parse for constants and tests.
func MustParse(value string) decimal.Decimal {
	d, err := Parse(value)
	if err != nil {
		panic(err)
	}
	return d
}

// Format renders the amount with exactly two fractional digits.
func Format(d decimal.Decimal) string {
	return d.StringFixed(Places)
}
