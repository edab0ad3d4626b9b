package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/noah-isme/toko-pricing/internal/discount"
)

const discountColumns = `id, code, kind::text, value, is_active, is_automatic, minimum_purchase_amount,
	usage_limit, usage_limit_per_customer, starts_at, ends_at, created_at`

func scanDiscount(row pgx.Row) (discount.Discount, error) {
	var (
		d    discount.Discount
		kind string
	)
	err := row.Scan(
		&d.ID, &d.Code, &kind, &d.Value, &d.IsActive, &d.IsAutomatic, &d.MinimumPurchaseAmount,
		&d.UsageLimit, &d.UsageLimitPerCustomer, &d.StartsAt, &d.EndsAt, &d.CreatedAt,
	)
	if err != nil {
		return discount.Discount{}, err
	}
	d.Kind = discount.Kind(kind)
	return d, nil
}

// FindActiveByCode implements discount.Finder. The code is matched case-insensitively.
func (q *Queries) FindActiveByCode(ctx context.Context, code string) (discount.Discount, error) {
	row := q.db.QueryRow(ctx, `SELECT `+discountColumns+`
		FROM discounts
		WHERE code IS NOT NULL AND upper(code) = upper($1) AND is_active
		LIMIT 1`, code)
	d, err := scanDiscount(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return discount.Discount{}, discount.ErrNotFound
		}
		return discount.Discount{}, fmt.Errorf("q.FindActiveByCode: %w", err)
	}
	return d, nil
}

// ListActiveAutomatic implements discount.Finder.
func (q *Queries) ListActiveAutomatic(ctx context.Context) ([]discount.Discount, error) {
	rows, err := q.db.Query(ctx, `SELECT `+discountColumns+`
		FROM discounts
		WHERE is_active AND is_automatic AND code IS NULL
		ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("q.ListActiveAutomatic: %w", err)
	}
	defer rows.Close()

	var out []discount.Discount
	for rows.Next() {
		d, err := scanDiscount(rows)
		if err != nil {
			return nil, fmt.Errorf("scan discount: %w", err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("q.ListActiveAutomatic: %w", err)
	}
	return out, nil
}

// LockDiscount loads a discount by id holding a row lock until the transaction ends.
// Concurrent commits redeeming the same discount serialise here.
func (q *Queries) LockDiscount(ctx context.Context, id uuid.UUID) (discount.Discount, error) {
	d, err := scanDiscount(q.db.QueryRow(ctx, `SELECT `+discountColumns+` FROM discounts WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return discount.Discount{}, discount.ErrNotFound
		}
		return discount.Discount{}, fmt.Errorf("q.LockDiscount: %w", err)
	}
	return d, nil
}

// CountRedemptions implements discount.UsageCounter.
func (q *Queries) CountRedemptions(ctx context.Context, discountID uuid.UUID) (int64, error) {
	var n int64
	if err := q.db.QueryRow(ctx, `SELECT count(*) FROM discount_redemptions WHERE discount_id = $1`, discountID).Scan(&n); err != nil {
		return 0, fmt.Errorf("q.CountRedemptions: %w", err)
	}
	return n, nil
}

// CountCustomerRedemptions implements discount.UsageCounter.
func (q *Queries) CountCustomerRedemptions(ctx context.Context, discountID, customerID uuid.UUID) (int64, error) {
	var n int64
	err := q.db.QueryRow(ctx, `SELECT count(*) FROM discount_redemptions WHERE discount_id = $1 AND customer_id = $2`,
		discountID, customerID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("q.CountCustomerRedemptions: %w", err)
	}
	return n, nil
}

// InsertRedemption appends a usage record. At most one redemption exists per order.
func (q *Queries) InsertRedemption(ctx context.Context, r discount.Redemption) error {
	_, err := q.db.Exec(ctx, `INSERT INTO discount_redemptions (discount_id, customer_id, order_id, amount_discounted)
		VALUES ($1, $2, $3, $4)`, r.DiscountID, r.CustomerID, r.OrderID, r.AmountDiscounted)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateRedemption
		}
		return fmt.Errorf("q.InsertRedemption: %w", err)
	}
	return nil
}
