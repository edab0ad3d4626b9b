package discount

import (
	"github.com/shopspring/decimal"

	"github.com/noah-isme/toko-pricing/internal/money"
)

var hundred = decimal.NewFromInt(100)

// Amount converts a validated discount into the amount taken off subtotal.
// The result is rounded to cents and never exceeds subtotal.
func Amount(d Discount, subtotal decimal.Decimal) decimal.Decimal {
	if !subtotal.IsPositive() || d.Value.IsNegative() {
		return decimal.Zero
	}
	var amount decimal.Decimal
	switch d.Kind {
	case KindPercentage:
		amount = money.Round(subtotal.Mul(d.Value).Div(hundred))
	case KindFixedAmount:
		amount = money.Round(decimal.Min(d.Value, subtotal))
	default:
		return decimal.Zero
	}
	if amount.GreaterThan(subtotal) {
		amount = subtotal
	}
	return money.NonNegative(amount)
}
