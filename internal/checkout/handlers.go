package checkout

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/noah-isme/toko-pricing/internal/common"
	"github.com/noah-isme/toko-pricing/internal/money"
	"github.com/noah-isme/toko-pricing/internal/pricing"
)

// Handler exposes quote and checkout endpoints.
type Handler struct {
	Service *Service
	Logger  zerolog.Logger
}

type quoteRequest struct {
	Code string `json:"code" validate:"omitempty,max=64"`
}

type commitRequest struct {
	CartID string `json:"cartId" validate:"required,uuid"`
	Code   string `json:"code" validate:"omitempty,max=64"`
}

type discountResponse struct {
	ID    string  `json:"id"`
	Code  *string `json:"code,omitempty"`
	Kind  string  `json:"kind"`
	Value string  `json:"value"`
}

type breakdownResponse struct {
	Currency       string `json:"currency"`
	Subtotal       string `json:"subtotal"`
	DiscountAmount string `json:"discountAmount"`
	Tax            string `json:"tax"`
	Shipping       string `json:"shipping"`
	GrandTotal     string `json:"grandTotal"`
}

type quoteResponse struct {
	CartID string `json:"cartId"`
	breakdownResponse
	Discount   *discountResponse `json:"discount,omitempty"`
	ComputedAt time.Time         `json:"computedAt"`
}

type orderResponse struct {
	OrderID string `json:"orderId"`
	Status  string `json:"status"`
	breakdownResponse
	DiscountID *string   `json:"discountId,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

func newBreakdownResponse(b pricing.Breakdown) breakdownResponse {
	return breakdownResponse{
		Currency:       b.Currency,
		Subtotal:       money.Format(b.Subtotal),
		DiscountAmount: money.Format(b.DiscountAmount),
		Tax:            money.Format(b.Tax),
		Shipping:       money.Format(b.Shipping),
		GrandTotal:     money.Format(b.GrandTotal),
	}
}

func newQuoteResponse(q Quote) quoteResponse {
	resp := quoteResponse{
		CartID:            q.CartID.String(),
		breakdownResponse: newBreakdownResponse(q.Breakdown),
		ComputedAt:        q.ComputedAt.UTC(),
	}
	if d := q.Discount; d != nil {
		resp.Discount = &discountResponse{ID: d.ID.String(), Code: d.Code, Kind: string(d.Kind), Value: d.Value.String()}
	}
	return resp
}

func newOrderResponse(res CommitResult) orderResponse {
	resp := orderResponse{
		OrderID:           res.OrderID.String(),
		Status:            res.Status,
		breakdownResponse: newBreakdownResponse(res.Breakdown),
		CreatedAt:         res.CreatedAt.UTC(),
	}
	if res.DiscountID != nil {
		id := res.DiscountID.String()
		resp.DiscountID = &id
	}
	return resp
}

// Quote handles POST /api/v1/carts/{id}/quote.
func (h *Handler) Quote(w http.ResponseWriter, r *http.Request) {
	cartID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "INVALID_CART_ID", "cart id must be a UUID", nil)
		return
	}
	var req quoteRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	customerID, _ := common.CustomerID(r.Context())

	quote, err := h.Service.Quote(r.Context(), QuoteInput{CartID: cartID, Code: req.Code, CustomerID: customerID})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	common.Data(w, http.StatusOK, newQuoteResponse(quote))
}

// Commit handles POST /api/v1/checkout.
func (h *Handler) Commit(w http.ResponseWriter, r *http.Request) {
	customerID, ok := common.CustomerID(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		return
	}
	var req commitRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	cartID, err := uuid.Parse(req.CartID)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "INVALID_CART_ID", "cart id must be a UUID", nil)
		return
	}

	res, err := h.Service.Commit(r.Context(), CommitInput{CartID: cartID, Code: req.Code, CustomerID: customerID})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	common.Data(w, http.StatusCreated, newOrderResponse(res))
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	appErr := toAppError(err)
	if appErr.HTTPStatus >= http.StatusInternalServerError {
		h.Logger.Error().Err(err).Str("path", r.URL.Path).Msg("checkout request failed")
	}
	common.WriteError(w, appErr)
}
