package checkout

import (
	"errors"
	"net/http"

	"github.com/noah-isme/toko-pricing/internal/common"
	"github.com/noah-isme/toko-pricing/internal/discount"
	"github.com/noah-isme/toko-pricing/internal/lock"
	"github.com/noah-isme/toko-pricing/internal/pricing"
	"github.com/noah-isme/toko-pricing/internal/repo"
)

var rejectionCodes = []struct {
	reason error
	code   string
	label  string
}{
	{discount.ErrCodeNotFound, "CODE_NOT_FOUND", "code_not_found"},
	{discount.ErrCodeNotYetActive, "CODE_NOT_YET_ACTIVE", "code_not_yet_active"},
	{discount.ErrCodeExpired, "CODE_EXPIRED", "code_expired"},
	{discount.ErrMinimumPurchaseNotMet, "MINIMUM_PURCHASE_NOT_MET", "minimum_purchase_not_met"},
	{discount.ErrUsageLimitExceeded, "USAGE_LIMIT_EXCEEDED", "usage_limit_exceeded"},
	{discount.ErrCustomerUsageLimitExceeded, "CUSTOMER_USAGE_LIMIT_EXCEEDED", "customer_usage_limit_exceeded"},
}

func rejectionCode(err error) (code, label string, ok bool) {
	for _, rc := range rejectionCodes {
		if errors.Is(err, rc.reason) {
			return rc.code, rc.label, true
		}
	}
	return "", "", false
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case discount.IsRejection(err):
		return "rejected"
	case errors.Is(err, pricing.ErrInsufficientStock), errors.Is(err, pricing.ErrInvalidLine):
		return "invalid_cart"
	default:
		return "error"
	}
}

func reasonLabel(err error) string {
	if !discount.IsRejection(err) {
		return ""
	}
	_, label, _ := rejectionCode(err)
	return label
}

func commitLabel(err error) string {
	if discount.IsUsageRejection(err) {
		return "usage_guard_rejected"
	}
	return resultLabel(err)
}

// toAppError maps domain failures onto API error codes.
func toAppError(err error) *common.AppError {
	var appErr *common.AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	var rejected *CommitRejectedError
	if errors.As(err, &rejected) {
		code, _, _ := rejectionCode(rejected.Err)
		details := map[string]any{}
		var rej *discount.RejectionError
		if errors.As(rejected.Err, &rej) {
			for k, v := range rej.Details() {
				details[k] = v
			}
		}
		// Every exhausted quota at commit is a usage-limit conflict; the exact
		// quota stays visible in details.
		if discount.IsUsageRejection(rejected.Err) {
			details["reason"] = code
			code = "USAGE_LIMIT_EXCEEDED"
		}
		if rejected.Fallback != nil {
			details["quote"] = newQuoteResponse(*rejected.Fallback)
		}
		return common.NewAppError(code, "discount is no longer available; order was repriced without it", http.StatusConflict, err).
			WithDetails(details)
	}

	var rej *discount.RejectionError
	if errors.As(err, &rej) {
		code, _, _ := rejectionCode(err)
		return common.NewAppError(code, rej.Error(), http.StatusUnprocessableEntity, err).WithDetails(rej.Details())
	}

	var stock *pricing.StockError
	switch {
	case errors.As(err, &stock):
		return common.NewAppError("INSUFFICIENT_STOCK", "requested quantity exceeds available stock", http.StatusUnprocessableEntity, err).
			WithDetails(map[string]any{
				"productId": stock.ProductID.String(),
				"requested": stock.Requested,
				"available": stock.Available,
			})
	case errors.Is(err, pricing.ErrInvalidLine):
		return common.NewAppError("INVALID_CART_LINE", err.Error(), http.StatusUnprocessableEntity, err)
	case errors.Is(err, repo.ErrCartNotFound):
		return common.NewAppError("CART_NOT_FOUND", "cart not found", http.StatusNotFound, err)
	case errors.Is(err, repo.ErrCartNotActive):
		return common.NewAppError("CART_NOT_ACTIVE", "cart has already been checked out", http.StatusConflict, err)
	case errors.Is(err, repo.ErrDuplicateRedemption):
		return common.NewAppError("ALREADY_COMMITTED", "order already recorded", http.StatusConflict, err)
	case errors.Is(err, ErrCartForbidden):
		return common.NewAppError("FORBIDDEN", "cart belongs to another customer", http.StatusForbidden, err)
	case errors.Is(err, ErrEmptyCart):
		return common.NewAppError("CART_EMPTY", "cart has no items", http.StatusUnprocessableEntity, err)
	case errors.Is(err, ErrCustomerRequired):
		return common.NewAppError("UNAUTHORIZED", "authentication required", http.StatusUnauthorized, err)
	case errors.Is(err, lock.ErrNotAcquired):
		return common.NewAppError("CHECKOUT_IN_PROGRESS", "another checkout for this cart is in progress", http.StatusConflict, err)
	default:
		return common.NewAppError("INTERNAL", "internal server error", http.StatusInternalServerError, err)
	}
}
