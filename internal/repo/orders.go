package repo

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/toko-pricing/internal/pricing"
)

// OrderStatusPendingPayment is the status of a committed order awaiting payment capture.
const OrderStatusPendingPayment = "PENDING_PAYMENT"

// NewOrder carries the values persisted when an order is committed.
type NewOrder struct {
	CustomerID uuid.UUID
	CartID     uuid.UUID
	Status     string
	Breakdown  pricing.Breakdown
	DiscountID *uuid.UUID
}

// Order is a committed order row.
type Order struct {
	ID         uuid.UUID
	CustomerID uuid.UUID
	CartID     uuid.UUID
	Status     string
	Breakdown  pricing.Breakdown
	DiscountID *uuid.UUID
	CreatedAt  time.Time
}

// InsertOrder persists an order with its pricing breakdown.
func (q *Queries) InsertOrder(ctx context.Context, in NewOrder) (Order, error) {
	status := in.Status
	if status == "" {
		status = OrderStatusPendingPayment
	}
	b := in.Breakdown
	o := Order{
		CustomerID: in.CustomerID,
		CartID:     in.CartID,
		Status:     status,
		Breakdown:  b,
		DiscountID: in.DiscountID,
	}
	err := q.db.QueryRow(ctx, `INSERT INTO orders
		(customer_id, cart_id, status, currency, subtotal, discount_amount, tax, shipping, grand_total, discount_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at`,
		in.CustomerID, in.CartID, status, b.Currency, b.Subtotal, b.DiscountAmount, b.Tax, b.Shipping, b.GrandTotal, in.DiscountID,
	).Scan(&o.ID, &o.CreatedAt)
	if err != nil {
		return Order{}, fmt.Errorf("q.InsertOrder: %w", err)
	}
	return o, nil
}
