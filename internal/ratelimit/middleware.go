package ratelimit

import (
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/noah-isme/toko-pricing/internal/common"
)

// Handler throttles requests per key. Scope separates budgets of different
// endpoints sharing one Limiter. A failing Limiter lets traffic through.
type Handler struct {
	Limiter Limiter
	Scope   string
	Key     func(*http.Request) string
	OnError func(error)
	Now     func() time.Time
}

func (h Handler) Middleware(next http.Handler) http.Handler {
	if h.Limiter == nil || h.Key == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := h.Key(r)
		if h.Scope != "" {
			key = h.Scope + ":" + key
		}
		decision, err := h.Limiter.Allow(r.Context(), key)
		if err != nil {
			if h.OnError != nil {
				h.OnError(err)
			}
			next.ServeHTTP(w, r)
			return
		}
		writeHeaders(w.Header(), decision)
		if decision.Allowed {
			next.ServeHTTP(w, r)
			return
		}
		wait := h.retryAfter(decision.ResetAt)
		w.Header().Set("Retry-After", strconv.Itoa(wait))
		common.WriteError(w, common.NewAppError("RATE_LIMITED", "too many pricing requests, retry later", http.StatusTooManyRequests, nil).
			WithDetails(map[string]any{"retryAfterSeconds": wait}))
	})
}

func writeHeaders(h http.Header, d Decision) {
	h.Set("X-RateLimit-Limit", strconv.FormatInt(d.Limit, 10))
	h.Set("X-RateLimit-Remaining", strconv.FormatInt(d.Remaining, 10))
	h.Set("X-RateLimit-Reset", strconv.FormatInt(d.ResetAt.Unix(), 10))
}

// retryAfter rounds up to whole seconds, never below 1.
func (h Handler) retryAfter(reset time.Time) int {
	now := time.Now()
	if h.Now != nil {
		now = h.Now()
	}
	secs := int(math.Ceil(reset.Sub(now).Seconds()))
	if secs < 1 {
		return 1
	}
	return secs
}
