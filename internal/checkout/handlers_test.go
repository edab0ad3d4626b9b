package checkout

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-pricing/internal/common"
	"github.com/noah-isme/toko-pricing/internal/discount"
	"github.com/noah-isme/toko-pricing/internal/money"
)

type envelope struct {
	Data  json.RawMessage  `json:"data"`
	Error common.ErrorBody `json:"error"`
}

func newRouter(svc *Service, customer uuid.UUID) http.Handler {
	h := &Handler{Service: svc, Logger: zerolog.Nop()}
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if customer != uuid.Nil {
				r = r.WithContext(common.WithCustomerID(r.Context(), customer))
			}
			next.ServeHTTP(w, r)
		})
	})
	r.Post("/api/v1/carts/{id}/quote", h.Quote)
	r.Post("/api/v1/checkout", h.Commit)
	return r
}

func do(t *testing.T, h http.Handler, path, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	var env envelope
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &env))
	return rr, env
}

func TestQuoteHandlerRendersBreakdown(t *testing.T) {
	store := newMemStore()
	store.addDiscount(summer20())
	cartID := store.addCart(nil, line("100", 1))

	rr, env := do(t, newRouter(newService(store), uuid.Nil), "/api/v1/carts/"+cartID.String()+"/quote", `{"code":"SUMMER20"}`)
	require.Equal(t, http.StatusOK, rr.Code)

	var got quoteResponse
	require.NoError(t, json.Unmarshal(env.Data, &got))
	require.Equal(t, "100.00", got.Subtotal)
	require.Equal(t, "20.00", got.DiscountAmount)
	require.Equal(t, "8.00", got.Tax)
	require.Equal(t, "0.00", got.Shipping)
	require.Equal(t, "88.00", got.GrandTotal)
	require.Equal(t, "USD", got.Currency)
	require.NotNil(t, got.Discount)
	require.Equal(t, "SUMMER20", *got.Discount.Code)
}

func TestQuoteHandlerEmptyBodyUsesNoCode(t *testing.T) {
	store := newMemStore()
	cartID := store.addCart(nil, line("10", 1))

	rr, env := do(t, newRouter(newService(store), uuid.Nil), "/api/v1/carts/"+cartID.String()+"/quote", ``)
	require.Equal(t, http.StatusOK, rr.Code)
	var got quoteResponse
	require.NoError(t, json.Unmarshal(env.Data, &got))
	require.Equal(t, "10.80", got.GrandTotal)
	require.Nil(t, got.Discount)
}

func TestQuoteHandlerMinimumNotMet(t *testing.T) {
	store := newMemStore()
	store.addDiscount(summer20())
	cartID := store.addCart(nil, line("40", 1))

	rr, env := do(t, newRouter(newService(store), uuid.Nil), "/api/v1/carts/"+cartID.String()+"/quote", `{"code":"SUMMER20"}`)
	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	require.Equal(t, "MINIMUM_PURCHASE_NOT_MET", env.Error.Code)
	details, ok := env.Error.Details.(map[string]any)
	require.True(t, ok)
	require.Equal(t, "50.00", details["minimumPurchaseAmount"])
}

func TestQuoteHandlerInsufficientStock(t *testing.T) {
	store := newMemStore()
	ln := line("10", 3)
	ln.AvailableStock = 2
	cartID := store.addCart(nil, ln)

	rr, env := do(t, newRouter(newService(store), uuid.Nil), "/api/v1/carts/"+cartID.String()+"/quote", `{}`)
	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	require.Equal(t, "INSUFFICIENT_STOCK", env.Error.Code)
	details := env.Error.Details.(map[string]any)
	require.Equal(t, ln.ProductID.String(), details["productId"])
	require.EqualValues(t, 2, details["available"])
}

func TestQuoteHandlerBadInput(t *testing.T) {
	store := newMemStore()
	router := newRouter(newService(store), uuid.Nil)

	rr, env := do(t, router, "/api/v1/carts/not-a-uuid/quote", `{}`)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Equal(t, "INVALID_CART_ID", env.Error.Code)

	rr, env = do(t, router, "/api/v1/carts/"+uuid.NewString()+"/quote", `{}`)
	require.Equal(t, http.StatusNotFound, rr.Code)
	require.Equal(t, "CART_NOT_FOUND", env.Error.Code)
}

func TestCommitHandler(t *testing.T) {
	store := newMemStore()
	store.addDiscount(summer20())
	customer := uuid.New()
	cartID := store.addCart(&customer, line("100", 1))

	router := newRouter(newService(store), customer)
	rr, env := do(t, router, "/api/v1/checkout", `{"cartId":"`+cartID.String()+`","code":"summer20"}`)
	require.Equal(t, http.StatusCreated, rr.Code)

	var got orderResponse
	require.NoError(t, json.Unmarshal(env.Data, &got))
	require.Equal(t, "PENDING_PAYMENT", got.Status)
	require.Equal(t, "88.00", got.GrandTotal)
	require.NotNil(t, got.DiscountID)

	rr, env = do(t, router, "/api/v1/checkout", `{"cartId":"`+cartID.String()+`"}`)
	require.Equal(t, http.StatusConflict, rr.Code)
	require.Equal(t, "CART_NOT_ACTIVE", env.Error.Code)
}

func TestQuoteHandlerHidesOwnedCartFromAnonymous(t *testing.T) {
	store := newMemStore()
	owner := uuid.New()
	cartID := store.addCart(&owner, line("42", 1))

	rr, env := do(t, newRouter(newService(store), uuid.Nil), "/api/v1/carts/"+cartID.String()+"/quote", `{}`)
	require.Equal(t, http.StatusForbidden, rr.Code)
	require.Equal(t, "FORBIDDEN", env.Error.Code)
	require.Nil(t, env.Data)

	rr, _ = do(t, newRouter(newService(store), owner), "/api/v1/carts/"+cartID.String()+"/quote", `{}`)
	require.Equal(t, http.StatusOK, rr.Code)
}

func TestCommitHandlerCustomerQuotaReportedAsUsageLimit(t *testing.T) {
	store := newMemStore()
	d := discount.Discount{ID: uuid.New(), Code: ptr("ONEEACH"), Kind: discount.KindFixedAmount, Value: money.MustParse("5"), IsActive: true, UsageLimitPerCustomer: ptr(int32(1))}
	store.addDiscount(d)
	customer := uuid.New()
	store.state.redemptions = append(store.state.redemptions, discount.Redemption{DiscountID: d.ID, CustomerID: customer, OrderID: uuid.New()})
	cartID := store.addCart(&customer, line("20", 1))

	rr, env := do(t, newRouter(newService(store), customer), "/api/v1/checkout", `{"cartId":"`+cartID.String()+`","code":"ONEEACH"}`)
	require.Equal(t, http.StatusConflict, rr.Code)
	require.Equal(t, "USAGE_LIMIT_EXCEEDED", env.Error.Code)

	details := env.Error.Details.(map[string]any)
	require.Equal(t, "CUSTOMER_USAGE_LIMIT_EXCEEDED", details["reason"])
	require.EqualValues(t, 1, details["used"])
	quote := details["quote"].(map[string]any)
	require.Equal(t, "21.60", quote["grandTotal"])
}

func TestCommitHandlerRequiresAuth(t *testing.T) {
	rr, env := do(t, newRouter(newService(newMemStore()), uuid.Nil), "/api/v1/checkout", `{"cartId":"`+uuid.NewString()+`"}`)
	require.Equal(t, http.StatusUnauthorized, rr.Code)
	require.Equal(t, "UNAUTHORIZED", env.Error.Code)
}

func TestCommitHandlerValidation(t *testing.T) {
	rr, env := do(t, newRouter(newService(newMemStore()), uuid.New()), "/api/v1/checkout", `{"code":"X"}`)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Equal(t, "VALIDATION_FAILED", env.Error.Code)
}

func TestCommitHandlerUsageGuardConflict(t *testing.T) {
	store := newMemStore()
	d := discount.Discount{ID: uuid.New(), Code: ptr("ONCE"), Kind: discount.KindFixedAmount, Value: money.MustParse("10"), IsActive: true, UsageLimit: ptr(int32(1))}
	store.addDiscount(d)
	store.state.redemptions = append(store.state.redemptions, discount.Redemption{DiscountID: d.ID, CustomerID: uuid.New(), OrderID: uuid.New()})
	customer := uuid.New()
	cartID := store.addCart(&customer, line("50", 1))

	rr, env := do(t, newRouter(newService(store), customer), "/api/v1/checkout", `{"cartId":"`+cartID.String()+`","code":"ONCE"}`)
	require.Equal(t, http.StatusConflict, rr.Code)
	require.Equal(t, "USAGE_LIMIT_EXCEEDED", env.Error.Code)

	details := env.Error.Details.(map[string]any)
	require.Equal(t, "USAGE_LIMIT_EXCEEDED", details["reason"])
	require.EqualValues(t, 1, details["limit"])
	quote, ok := details["quote"].(map[string]any)
	require.True(t, ok)
	require.Equal(t, "54.00", quote["grandTotal"])
	require.Equal(t, "0.00", quote["discountAmount"])
}
