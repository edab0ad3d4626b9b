package discount

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Kind enumerates how a discount value is interpreted.
type Kind string

const (
	// KindPercentage treats Value as a percentage of the subtotal.
	KindPercentage Kind = "percentage"
	// KindFixedAmount treats Value as a flat amount off the subtotal.
	KindFixedAmount Kind = "fixed_amount"
)

// Discount is a promotional rule as defined by the back-office. It is read-only to pricing.
type Discount struct {
	ID                    uuid.UUID       `json:"id"`
	Code                  *string         `json:"code,omitempty"`
	Kind                  Kind            `json:"type"`
	Value                 decimal.Decimal `json:"value"`
	IsActive              bool            `json:"isActive"`
	IsAutomatic           bool            `json:"isAutomatic"`
	MinimumPurchaseAmount decimal.Decimal `json:"minimumPurchaseAmount"`
	UsageLimit            *int32          `json:"usageLimit,omitempty"`
	UsageLimitPerCustomer *int32          `json:"usageLimitPerCustomer,omitempty"`
	StartsAt              *time.Time      `json:"startsAt,omitempty"`
	EndsAt                *time.Time      `json:"endsAt,omitempty"`
	CreatedAt             time.Time       `json:"createdAt"`
}

// Automatic reports whether the discount applies without a shopper-entered code.
func (d Discount) Automatic() bool {
	return d.IsAutomatic && (d.Code == nil || strings.TrimSpace(*d.Code) == "")
}

// CodeString returns the code or an empty string for automatic discounts.
func (d Discount) CodeString() string {
	if d.Code == nil {
		return ""
	}
	return *d.Code
}

// Redemption is the append-only usage record written by the order-commit step.
type Redemption struct {
	DiscountID       uuid.UUID
	CustomerID       uuid.UUID
	OrderID          uuid.UUID
	AmountDiscounted decimal.Decimal
	CreatedAt        time.Time
}

// NormalizeCode canonicalises a shopper-entered code for lookup.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
