package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/noah-isme/toko-pricing/internal/pricing"
)

// Cart statuses.
const (
	CartStatusActive     = "active"
	CartStatusCheckedOut = "checked_out"
)

// Cart is a priced-ready snapshot of a stored cart.
type Cart struct {
	ID         uuid.UUID
	CustomerID *uuid.UUID
	Status     string
	UpdatedAt  time.Time
	Lines      []pricing.CartLine
}

// Active reports whether the cart can still be checked out.
func (c Cart) Active() bool {
	return c.Status == CartStatusActive
}

// LoadCart reads a cart and its lines joined with current product price and stock.
func (q *Queries) LoadCart(ctx context.Context, cartID uuid.UUID) (Cart, error) {
	return q.loadCart(ctx, cartID, false)
}

// LockCart is LoadCart holding a row lock on the cart until the transaction ends.
func (q *Queries) LockCart(ctx context.Context, cartID uuid.UUID) (Cart, error) {
	return q.loadCart(ctx, cartID, true)
}

func (q *Queries) loadCart(ctx context.Context, cartID uuid.UUID, forUpdate bool) (Cart, error) {
	query := `SELECT id, customer_id, status, updated_at FROM carts WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	var c Cart
	if err := q.db.QueryRow(ctx, query, cartID).Scan(&c.ID, &c.CustomerID, &c.Status, &c.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Cart{}, ErrCartNotFound
		}
		return Cart{}, fmt.Errorf("q.LoadCart: %w", err)
	}
	lines, err := q.listCartLines(ctx, cartID)
	if err != nil {
		return Cart{}, err
	}
	c.Lines = lines
	return c, nil
}

func (q *Queries) listCartLines(ctx context.Context, cartID uuid.UUID) ([]pricing.CartLine, error) {
	rows, err := q.db.Query(ctx, `SELECT ci.product_id, p.price, ci.qty, p.stock
		FROM cart_items ci
		JOIN products p ON p.id = ci.product_id
		WHERE ci.cart_id = $1
		ORDER BY ci.created_at, ci.id`, cartID)
	if err != nil {
		return nil, fmt.Errorf("q.ListCartLines: %w", err)
	}
	defer rows.Close()

	var lines []pricing.CartLine
	for rows.Next() {
		var line pricing.CartLine
		if err := rows.Scan(&line.ProductID, &line.UnitPrice, &line.Quantity, &line.AvailableStock); err != nil {
			return nil, fmt.Errorf("scan cart line: %w", err)
		}
		lines = append(lines, line)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("q.ListCartLines: %w", err)
	}
	return lines, nil
}

// MarkCartCheckedOut closes an active cart.
func (q *Queries) MarkCartCheckedOut(ctx context.Context, cartID uuid.UUID) error {
	tag, err := q.db.Exec(ctx, `UPDATE carts SET status = $2, updated_at = now() WHERE id = $1 AND status = $3`,
		cartID, CartStatusCheckedOut, CartStatusActive)
	if err != nil {
		return fmt.Errorf("q.MarkCartCheckedOut: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrCartNotActive
	}
	return nil
}
