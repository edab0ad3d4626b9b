package pricing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/noah-isme/toko-pricing/internal/discount"
)

// Input is the snapshot a total is computed from. Lines must not be mutated during a call;
// if the cart changes the caller computes again from scratch.
type Input struct {
	Lines      []CartLine
	Code       string
	CustomerID uuid.UUID
	Now        time.Time
	Shipping   decimal.Decimal
	// NoDiscount prices the cart without any code or automatic discount.
	NoDiscount bool
}

// Result carries the breakdown and the discount it was computed with, if any.
type Result struct {
	Breakdown Breakdown
	Discount  *discount.Discount
}

// DiscountID returns the applied discount id for later redemption recording.
func (r Result) DiscountID() *uuid.UUID {
	if r.Discount == nil {
		return nil
	}
	id := r.Discount.ID
	return &id
}

// Engine computes order totals. It holds no state between calls and is safe for concurrent use.
type Engine struct {
	Resolver *discount.Resolver
	TaxRates TaxRateSource
	Currency string
	Now      func() time.Time
}

// ComputeOrderTotal prices a cart snapshot with an optional promotional code.
// A code takes priority over automatic discounts and at most one discount applies.
func (e *Engine) ComputeOrderTotal(ctx context.Context, in Input) (Result, error) {
	if e == nil || e.TaxRates == nil {
		return Result{}, errors.New("pricing engine not configured")
	}
	ctx, span := otel.Tracer("pricing").Start(ctx, "pricing.ComputeOrderTotal")
	defer span.End()

	res, err := e.compute(ctx, in)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Result{}, err
	}
	span.SetAttributes(
		attribute.Int("pricing.lines", len(in.Lines)),
		attribute.String("pricing.grand_total", res.Breakdown.GrandTotal.StringFixed(2)),
		attribute.Bool("pricing.discounted", res.Discount != nil),
	)
	return res, nil
}

func (e *Engine) compute(ctx context.Context, in Input) (Result, error) {
	subtotal, err := Subtotal(in.Lines)
	if err != nil {
		return Result{}, err
	}
	now := in.Now
	if now.IsZero() {
		now = e.now()
	}

	var (
		applied *discount.Discount
		amount  = decimal.Zero
	)
	if !in.NoDiscount {
		applied, amount, err = e.selectDiscount(ctx, in.Code, subtotal, in.CustomerID, now)
		if err != nil {
			return Result{}, err
		}
	}

	rate, err := e.TaxRates.TaxRate(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("load tax rate: %w", err)
	}
	breakdown := Assemble(subtotal, amount, Tax(subtotal, rate), in.Shipping)
	breakdown.Currency = e.Currency
	return Result{Breakdown: breakdown, Discount: applied}, nil
}

func (e *Engine) selectDiscount(ctx context.Context, code string, subtotal decimal.Decimal, customerID uuid.UUID, now time.Time) (*discount.Discount, decimal.Decimal, error) {
	if e.Resolver == nil {
		return nil, decimal.Zero, nil
	}
	if discount.NormalizeCode(code) != "" {
		d, err := e.Resolver.Resolve(ctx, code, subtotal, customerID, now)
		if err != nil {
			return nil, decimal.Zero, err
		}
		return &d, discount.Amount(d, subtotal), nil
	}

	eligible, err := e.Resolver.Automatic(ctx, subtotal, customerID, now)
	if err != nil {
		return nil, decimal.Zero, err
	}
	var (
		best       *discount.Discount
		bestAmount = decimal.Zero
	)
	for i := range eligible {
		amount := discount.Amount(eligible[i], subtotal)
		if best == nil || amount.GreaterThan(bestAmount) {
			best = &eligible[i]
			bestAmount = amount
		}
	}
	if best == nil || bestAmount.IsZero() {
		return nil, decimal.Zero, nil
	}
	return best, bestAmount, nil
}

func (e *Engine) now() time.Time {
	if e != nil && e.Now != nil {
		return e.Now()
	}
	return time.Now()
}
