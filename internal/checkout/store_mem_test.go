package checkout

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/toko-pricing/internal/discount"
	"github.com/noah-isme/toko-pricing/internal/pricing"
	"github.com/noah-isme/toko-pricing/internal/repo"
)

// memStore is an in-memory Store whose transactions are serialised and applied
// only when the callback succeeds.
type memStore struct {
	mu    sync.Mutex
	state *memState

	failRedemption error
}

type memState struct {
	carts       map[uuid.UUID]repo.Cart
	discounts   []discount.Discount
	redemptions []discount.Redemption
	orders      []repo.Order
}

func newMemStore() *memStore {
	return &memStore{state: &memState{carts: map[uuid.UUID]repo.Cart{}}}
}

func (s *memState) clone() *memState {
	cp := &memState{
		carts:       make(map[uuid.UUID]repo.Cart, len(s.carts)),
		discounts:   append([]discount.Discount(nil), s.discounts...),
		redemptions: append([]discount.Redemption(nil), s.redemptions...),
		orders:      append([]repo.Order(nil), s.orders...),
	}
	for k, v := range s.carts {
		cp.carts[k] = v
	}
	return cp
}

func (s *memStore) addCart(customer *uuid.UUID, lines ...pricing.CartLine) uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := uuid.New()
	s.state.carts[id] = repo.Cart{ID: id, CustomerID: customer, Status: repo.CartStatusActive, Lines: lines}
	return id
}

func (s *memStore) addDiscount(d discount.Discount) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.discounts = append(s.state.discounts, d)
}

func (s *memStore) snapshot() *memState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.clone()
}

func (s *memStore) LoadCart(_ context.Context, cartID uuid.UUID) (repo.Cart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.loadCart(cartID)
}

func (s *memStore) WithinTx(ctx context.Context, fn func(Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	work := &memTx{state: s.state.clone(), failRedemption: s.failRedemption}
	if err := fn(work); err != nil {
		return err
	}
	s.state = work.state
	return nil
}

// Discounts and Usage views for quotes.
func (s *memStore) FindActiveByCode(ctx context.Context, code string) (discount.Discount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return (&memTx{state: s.state}).FindActiveByCode(ctx, code)
}

func (s *memStore) ListActiveAutomatic(ctx context.Context) ([]discount.Discount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return (&memTx{state: s.state}).ListActiveAutomatic(ctx)
}

func (s *memStore) CountRedemptions(ctx context.Context, id uuid.UUID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return (&memTx{state: s.state}).CountRedemptions(ctx, id)
}

func (s *memStore) CountCustomerRedemptions(ctx context.Context, id, customerID uuid.UUID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return (&memTx{state: s.state}).CountCustomerRedemptions(ctx, id, customerID)
}

func (s *memState) loadCart(cartID uuid.UUID) (repo.Cart, error) {
	cart, ok := s.carts[cartID]
	if !ok {
		return repo.Cart{}, repo.ErrCartNotFound
	}
	return cart, nil
}

type memTx struct {
	state          *memState
	failRedemption error
}

func (t *memTx) FindActiveByCode(_ context.Context, code string) (discount.Discount, error) {
	for _, d := range t.state.discounts {
		if d.IsActive && d.Code != nil && strings.EqualFold(*d.Code, code) {
			return d, nil
		}
	}
	return discount.Discount{}, discount.ErrNotFound
}

func (t *memTx) ListActiveAutomatic(context.Context) ([]discount.Discount, error) {
	var out []discount.Discount
	for _, d := range t.state.discounts {
		if d.IsActive && d.Automatic() {
			out = append(out, d)
		}
	}
	return out, nil
}

func (t *memTx) CountRedemptions(_ context.Context, id uuid.UUID) (int64, error) {
	var n int64
	for _, r := range t.state.redemptions {
		if r.DiscountID == id {
			n++
		}
	}
	return n, nil
}

func (t *memTx) CountCustomerRedemptions(_ context.Context, id, customerID uuid.UUID) (int64, error) {
	var n int64
	for _, r := range t.state.redemptions {
		if r.DiscountID == id && r.CustomerID == customerID {
			n++
		}
	}
	return n, nil
}

func (t *memTx) LockCart(_ context.Context, cartID uuid.UUID) (repo.Cart, error) {
	return t.state.loadCart(cartID)
}

func (t *memTx) LockDiscount(_ context.Context, id uuid.UUID) (discount.Discount, error) {
	for _, d := range t.state.discounts {
		if d.ID == id {
			return d, nil
		}
	}
	return discount.Discount{}, discount.ErrNotFound
}

func (t *memTx) InsertOrder(_ context.Context, in repo.NewOrder) (repo.Order, error) {
	order := repo.Order{
		ID:         uuid.New(),
		CustomerID: in.CustomerID,
		CartID:     in.CartID,
		Status:     in.Status,
		Breakdown:  in.Breakdown,
		DiscountID: in.DiscountID,
		CreatedAt:  time.Now(),
	}
	t.state.orders = append(t.state.orders, order)
	return order, nil
}

func (t *memTx) InsertRedemption(_ context.Context, r discount.Redemption) error {
	if t.failRedemption != nil {
		return t.failRedemption
	}
	for _, existing := range t.state.redemptions {
		if existing.OrderID == r.OrderID {
			return repo.ErrDuplicateRedemption
		}
	}
	t.state.redemptions = append(t.state.redemptions, r)
	return nil
}

func (t *memTx) MarkCartCheckedOut(_ context.Context, cartID uuid.UUID) error {
	cart, ok := t.state.carts[cartID]
	if !ok || !cart.Active() {
		return repo.ErrCartNotActive
	}
	cart.Status = repo.CartStatusCheckedOut
	t.state.carts[cartID] = cart
	return nil
}

type recordingLocker struct {
	mu   sync.Mutex
	keys []string
	err  error
}

func (l *recordingLocker) WithLock(ctx context.Context, key string, _ time.Duration, fn func(context.Context) error) error {
	l.mu.Lock()
	l.keys = append(l.keys, key)
	err := l.err
	l.mu.Unlock()
	if err != nil {
		return err
	}
	return fn(ctx)
}

var errInjected = errors.New("injected failure")
