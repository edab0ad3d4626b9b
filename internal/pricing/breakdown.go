package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/noah-isme/toko-pricing/internal/money"
)

// Breakdown is the priced view of a cart handed to the payment step.
type Breakdown struct {
	Subtotal       decimal.Decimal
	DiscountAmount decimal.Decimal
	Tax            decimal.Decimal
	Shipping       decimal.Decimal
	GrandTotal     decimal.Decimal
	Currency       string
}

// Assemble combines the components into a breakdown:
// grandTotal = subtotal - discount + tax + shipping, never negative.
func Assemble(subtotal, discountAmount, tax, shipping decimal.Decimal) Breakdown {
	subtotal = money.NonNegative(money.Round(subtotal))
	discountAmount = money.NonNegative(money.Round(discountAmount))
	if discountAmount.GreaterThan(subtotal) {
		discountAmount = subtotal
	}
	tax = money.NonNegative(money.Round(tax))
	shipping = money.NonNegative(money.Round(shipping))
	total := subtotal.Sub(discountAmount).Add(tax).Add(shipping)
	return Breakdown{
		Subtotal:       subtotal,
		DiscountAmount: discountAmount,
		Tax:            tax,
		Shipping:       shipping,
		GrandTotal:     money.NonNegative(money.Round(total)),
	}
}
