package discount

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Finder looks up discount definitions.
type Finder interface {
	// FindActiveByCode returns the active discount whose code matches case-insensitively,
	// or ErrNotFound.
	FindActiveByCode(ctx context.Context, code string) (Discount, error)
	// ListActiveAutomatic returns active automatic discounts, oldest first.
	ListActiveAutomatic(ctx context.Context) ([]Discount, error)
}

// UsageCounter reads redemption counts backing usage limits.
type UsageCounter interface {
	CountRedemptions(ctx context.Context, discountID uuid.UUID) (int64, error)
	CountCustomerRedemptions(ctx context.Context, discountID, customerID uuid.UUID) (int64, error)
}

// Resolver validates discount eligibility against a subtotal, an instant and usage counts.
// Its verdict is advisory: the order-commit step re-checks usage under a row lock.
type Resolver struct {
	Finder Finder
	Usage  UsageCounter
}

// Resolve looks up a shopper-entered code and validates it.
func (r *Resolver) Resolve(ctx context.Context, code string, subtotal decimal.Decimal, customerID uuid.UUID, now time.Time) (Discount, error) {
	if r == nil || r.Finder == nil || r.Usage == nil {
		return Discount{}, errors.New("discount resolver not configured")
	}
	normalized := NormalizeCode(code)
	if normalized == "" {
		return Discount{}, &RejectionError{Reason: ErrCodeNotFound}
	}
	d, err := r.Finder.FindActiveByCode(ctx, normalized)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Discount{}, &RejectionError{Reason: ErrCodeNotFound, Code: normalized}
		}
		return Discount{}, fmt.Errorf("find discount %s: %w", normalized, err)
	}
	if !d.IsActive || d.Code == nil || !strings.EqualFold(*d.Code, normalized) {
		return Discount{}, &RejectionError{Reason: ErrCodeNotFound, Code: normalized}
	}
	if err := r.Validate(ctx, d, subtotal, customerID, now); err != nil {
		return Discount{}, err
	}
	return d, nil
}

// Automatic returns every active automatic discount that passes validation, in listing order.
func (r *Resolver) Automatic(ctx context.Context, subtotal decimal.Decimal, customerID uuid.UUID, now time.Time) ([]Discount, error) {
	if r == nil || r.Finder == nil || r.Usage == nil {
		return nil, errors.New("discount resolver not configured")
	}
	candidates, err := r.Finder.ListActiveAutomatic(ctx)
	if err != nil {
		return nil, fmt.Errorf("list automatic discounts: %w", err)
	}
	var eligible []Discount
	for _, d := range candidates {
		if !d.IsActive || !d.Automatic() {
			continue
		}
		if err := r.Validate(ctx, d, subtotal, customerID, now); err != nil {
			if IsRejection(err) {
				continue
			}
			return nil, err
		}
		eligible = append(eligible, d)
	}
	return eligible, nil
}

// Validate runs the window, minimum purchase and usage checks in that order.
func (r *Resolver) Validate(ctx context.Context, d Discount, subtotal decimal.Decimal, customerID uuid.UUID, now time.Time) error {
	if err := CheckWindow(d, now); err != nil {
		return err
	}
	if err := CheckMinimum(d, subtotal); err != nil {
		return err
	}
	return r.checkUsage(ctx, d, customerID)
}

func (r *Resolver) checkUsage(ctx context.Context, d Discount, customerID uuid.UUID) error {
	if d.UsageLimit != nil {
		used, err := r.Usage.CountRedemptions(ctx, d.ID)
		if err != nil {
			return fmt.Errorf("count redemptions: %w", err)
		}
		if err := CheckUsage(d, used); err != nil {
			return err
		}
	}
	if d.UsageLimitPerCustomer != nil && customerID != uuid.Nil {
		used, err := r.Usage.CountCustomerRedemptions(ctx, d.ID, customerID)
		if err != nil {
			return fmt.Errorf("count customer redemptions: %w", err)
		}
		if err := CheckCustomerUsage(d, used); err != nil {
			return err
		}
	}
	return nil
}

// CheckWindow rejects discounts outside [StartsAt, EndsAt]. A nil bound is open.
func CheckWindow(d Discount, now time.Time) error {
	if d.StartsAt != nil && now.Before(*d.StartsAt) {
		rej := reject(ErrCodeNotYetActive, d)
		rej.StartsAt = d.StartsAt
		return rej
	}
	if d.EndsAt != nil && now.After(*d.EndsAt) {
		rej := reject(ErrCodeExpired, d)
		rej.EndsAt = d.EndsAt
		return rej
	}
	return nil
}

// CheckMinimum rejects subtotals strictly below the minimum purchase amount.
func CheckMinimum(d Discount, subtotal decimal.Decimal) error {
	if subtotal.LessThan(d.MinimumPurchaseAmount) {
		rej := reject(ErrMinimumPurchaseNotMet, d)
		rej.MinimumPurchase = d.MinimumPurchaseAmount
		return rej
	}
	return nil
}

// CheckUsage rejects when the global quota is reached.
func CheckUsage(d Discount, used int64) error {
	if d.UsageLimit != nil && used >= int64(*d.UsageLimit) {
		rej := reject(ErrUsageLimitExceeded, d)
		rej.Limit = *d.UsageLimit
		rej.Used = used
		return rej
	}
	return nil
}

// CheckCustomerUsage rejects when the customer's quota is reached.
func CheckCustomerUsage(d Discount, used int64) error {
	if d.UsageLimitPerCustomer != nil && used >= int64(*d.UsageLimitPerCustomer) {
		rej := reject(ErrCustomerUsageLimitExceeded, d)
		rej.Limit = *d.UsageLimitPerCustomer
		rej.Used = used
		return rej
	}
	return nil
}
