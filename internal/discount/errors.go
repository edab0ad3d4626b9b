package discount

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	// ErrNotFound is returned by finders when no active discount matches.
	ErrNotFound = errors.New("discount not found")

	// ErrCodeNotFound indicates the entered code does not match an active discount.
	ErrCodeNotFound = errors.New("discount code not found")
	// ErrCodeNotYetActive indicates the discount window has not opened.
	ErrCodeNotYetActive = errors.New("discount code not yet active")
	// ErrCodeExpired indicates the discount window has closed.
	ErrCodeExpired = errors.New("discount code expired")
	// ErrMinimumPurchaseNotMet indicates the subtotal is below the discount minimum.
	ErrMinimumPurchaseNotMet = errors.New("minimum purchase not met")
	// ErrUsageLimitExceeded indicates the discount exhausted its global quota.
	ErrUsageLimitExceeded = errors.New("discount usage limit exceeded")
	// ErrCustomerUsageLimitExceeded indicates the customer exhausted their allowance.
	ErrCustomerUsageLimitExceeded = errors.New("discount customer usage limit exceeded")
)

// RejectionError explains why a discount cannot be applied. Reason is one of the
// sentinel errors above and is reachable with errors.Is.
type RejectionError struct {
	Reason          error
	Code            string
	DiscountID      uuid.UUID
	MinimumPurchase decimal.Decimal
	Limit           int32
	Used            int64
	StartsAt        *time.Time
	EndsAt          *time.Time
}

func (e *RejectionError) Error() string {
	if e == nil || e.Reason == nil {
		return "discount rejected"
	}
	if e.Code != "" {
		return fmt.Sprintf("%s: %s", e.Reason.Error(), e.Code)
	}
	return e.Reason.Error()
}

func (e *RejectionError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Reason
}

// Details exposes the context needed to render a specific message.
func (e *RejectionError) Details() map[string]any {
	if e == nil {
		return nil
	}
	out := map[string]any{}
	if e.Code != "" {
		out["code"] = e.Code
	}
	switch {
	case errors.Is(e.Reason, ErrMinimumPurchaseNotMet):
		out["minimumPurchaseAmount"] = e.MinimumPurchase.StringFixed(2)
	case errors.Is(e.Reason, ErrUsageLimitExceeded), errors.Is(e.Reason, ErrCustomerUsageLimitExceeded):
		out["limit"] = e.Limit
		out["used"] = e.Used
	case errors.Is(e.Reason, ErrCodeNotYetActive):
		if e.StartsAt != nil {
			out["startsAt"] = e.StartsAt.UTC().Format(time.RFC3339)
		}
	case errors.Is(e.Reason, ErrCodeExpired):
		if e.EndsAt != nil {
			out["endsAt"] = e.EndsAt.UTC().Format(time.RFC3339)
		}
	}
	return out
}

// IsRejection reports whether err is a deterministic discount rejection.
func IsRejection(err error) bool {
	var target *RejectionError
	return errors.As(err, &target)
}

// IsUsageRejection reports whether err is caused by an exhausted usage quota.
func IsUsageRejection(err error) bool {
	return errors.Is(err, ErrUsageLimitExceeded) || errors.Is(err, ErrCustomerUsageLimitExceeded)
}

func reject(reason error, d Discount) *RejectionError {
	return &RejectionError{Reason: reason, Code: d.CodeString(), DiscountID: d.ID}
}
