package checkout

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/toko-pricing/internal/discount"
	"github.com/noah-isme/toko-pricing/internal/repo"
)

// Tx is the transactional view used while committing an order.
type Tx interface {
	discount.Finder
	discount.UsageCounter
	LockCart(ctx context.Context, cartID uuid.UUID) (repo.Cart, error)
	LockDiscount(ctx context.Context, id uuid.UUID) (discount.Discount, error)
	InsertOrder(ctx context.Context, in repo.NewOrder) (repo.Order, error)
	InsertRedemption(ctx context.Context, r discount.Redemption) error
	MarkCartCheckedOut(ctx context.Context, cartID uuid.UUID) error
}

// Store reads cart snapshots and runs commit transactions.
type Store interface {
	LoadCart(ctx context.Context, cartID uuid.UUID) (repo.Cart, error)
	WithinTx(ctx context.Context, fn func(Tx) error) error
}

// Locker serialises work on a key across API instances.
type Locker interface {
	WithLock(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) error) error
}

// PostgresStore adapts repo.Store to Store.
type PostgresStore struct {
	S *repo.Store
}

// LoadCart implements Store.
func (p PostgresStore) LoadCart(ctx context.Context, cartID uuid.UUID) (repo.Cart, error) {
	return p.S.LoadCart(ctx, cartID)
}

// WithinTx implements Store.
func (p PostgresStore) WithinTx(ctx context.Context, fn func(Tx) error) error {
	return p.S.InTx(ctx, func(q *repo.Queries) error {
		return fn(q)
	})
}
