package pricing

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/toko-pricing/internal/money"
)

// DefaultTaxRate is applied when no store setting or configuration overrides it.
var DefaultTaxRate = decimal.RequireFromString("0.08")

// TaxRateSource provides the flat tax rate, e.g. 0.08 for 8%.
type TaxRateSource interface {
	TaxRate(ctx context.Context) (decimal.Decimal, error)
}

// FixedTaxRate is a TaxRateSource returning a constant rate.
type FixedTaxRate struct {
	Rate decimal.Decimal
}

// TaxRate implements TaxRateSource.
func (f FixedTaxRate) TaxRate(context.Context) (decimal.Decimal, error) {
	return f.Rate, nil
}

// Tax applies rate to the pre-discount subtotal.
func Tax(subtotal, rate decimal.Decimal) decimal.Decimal {
	if !subtotal.IsPositive() || !rate.IsPositive() {
		return decimal.Zero
	}
	return money.Round(subtotal.Mul(rate))
}
