package obs

import (
	"context"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
)

type requestInfoKey struct{}

// RequestInfo carries facts learned deep in the handler chain (matched route,
// authenticated customer) back out to the logging and metrics middleware.
type RequestInfo struct {
	mu       sync.Mutex
	route    string
	customer string
}

// WithRequestInfo attaches a fresh RequestInfo to ctx.
func WithRequestInfo(ctx context.Context) (context.Context, *RequestInfo) {
	info := &RequestInfo{}
	return context.WithValue(ctx, requestInfoKey{}, info), info
}

// RequestInfoFrom returns the RequestInfo on ctx, or nil. All methods are nil-safe.
func RequestInfoFrom(ctx context.Context) *RequestInfo {
	info, _ := ctx.Value(requestInfoKey{}).(*RequestInfo)
	return info
}

func (i *RequestInfo) SetRoute(route string) {
	if i == nil {
		return
	}
	i.mu.Lock()
	i.route = route
	i.mu.Unlock()
}

func (i *RequestInfo) Route() string {
	if i == nil {
		return ""
	}
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.route
}

// SetCustomer records the authenticated customer for the request log.
func (i *RequestInfo) SetCustomer(id string) {
	if i == nil {
		return
	}
	i.mu.Lock()
	i.customer = id
	i.mu.Unlock()
}

func (i *RequestInfo) Customer() string {
	if i == nil {
		return ""
	}
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.customer
}

// TrackRequest installs a RequestInfo. Mount it before the logging and metrics middleware.
func TrackRequest(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, _ := WithRequestInfo(r.Context())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// routeOf must run after the router has matched: chi fills the pattern on the
// shared route context while the request travels down.
func routeOf(r *http.Request) string {
	if route := RequestInfoFrom(r.Context()).Route(); route != "" {
		return route
	}
	if rc := chi.RouteContext(r.Context()); rc != nil {
		return rc.RoutePattern()
	}
	return ""
}
