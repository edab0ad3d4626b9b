package checkout

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/noah-isme/toko-pricing/internal/discount"
	"github.com/noah-isme/toko-pricing/internal/lock"
	"github.com/noah-isme/toko-pricing/internal/money"
	"github.com/noah-isme/toko-pricing/internal/pricing"
	"github.com/noah-isme/toko-pricing/internal/repo"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var fixedNow = time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)

func ptr[T any](v T) *T { return &v }

func line(price string, qty int32) pricing.CartLine {
	return pricing.CartLine{ProductID: uuid.New(), UnitPrice: money.MustParse(price), Quantity: qty, AvailableStock: 100}
}

func summer20() discount.Discount {
	return discount.Discount{
		ID:                    uuid.New(),
		Code:                  ptr("SUMMER20"),
		Kind:                  discount.KindPercentage,
		Value:                 decimal.NewFromInt(20),
		IsActive:              true,
		MinimumPurchaseAmount: money.MustParse("50"),
	}
}

func newService(store *memStore) *Service {
	return &Service{
		Store:     store,
		Discounts: store,
		Usage:     store,
		TaxRates:  pricing.FixedTaxRate{Rate: pricing.DefaultTaxRate},
		Currency:  "USD",
		Now:       func() time.Time { return fixedNow },
		Logger:    zerolog.Nop(),
	}
}

func TestQuoteAppliesCode(t *testing.T) {
	store := newMemStore()
	store.addDiscount(summer20())
	cartID := store.addCart(nil, line("40", 2), line("20", 1))

	q, err := newService(store).Quote(context.Background(), QuoteInput{CartID: cartID, Code: "summer20"})
	require.NoError(t, err)
	require.Equal(t, "100.00", money.Format(q.Breakdown.Subtotal))
	require.Equal(t, "20.00", money.Format(q.Breakdown.DiscountAmount))
	require.Equal(t, "8.00", money.Format(q.Breakdown.Tax))
	require.Equal(t, "88.00", money.Format(q.Breakdown.GrandTotal))
	require.Equal(t, fixedNow, q.ComputedAt)
	require.NotNil(t, q.Discount)
}

func TestQuoteErrors(t *testing.T) {
	store := newMemStore()
	owner := uuid.New()
	cartID := store.addCart(&owner, line("10", 1))
	svc := newService(store)

	_, err := svc.Quote(context.Background(), QuoteInput{CartID: uuid.New()})
	require.ErrorIs(t, err, repo.ErrCartNotFound)

	_, err = svc.Quote(context.Background(), QuoteInput{CartID: cartID, CustomerID: uuid.New()})
	require.ErrorIs(t, err, ErrCartForbidden)

	_, err = svc.Quote(context.Background(), QuoteInput{CartID: cartID, CustomerID: owner, Code: "NOPE"})
	require.ErrorIs(t, err, discount.ErrCodeNotFound)
}

func TestQuoteOwnedCartRequiresOwner(t *testing.T) {
	store := newMemStore()
	owner := uuid.New()
	owned := store.addCart(&owner, line("42", 1))
	guest := store.addCart(nil, line("42", 1))
	svc := newService(store)
	ctx := context.Background()

	_, err := svc.Quote(ctx, QuoteInput{CartID: owned})
	require.ErrorIs(t, err, ErrCartForbidden)

	q, err := svc.Quote(ctx, QuoteInput{CartID: owned, CustomerID: owner})
	require.NoError(t, err)
	require.Equal(t, "42.00", money.Format(q.Breakdown.Subtotal))

	q, err = svc.Quote(ctx, QuoteInput{CartID: guest})
	require.NoError(t, err)
	require.Equal(t, "42.00", money.Format(q.Breakdown.Subtotal))

	q, err = svc.Quote(ctx, QuoteInput{CartID: guest, CustomerID: uuid.New()})
	require.NoError(t, err)
	require.Equal(t, guest, q.CartID)
}

func TestCommitRecordsOrderAndRedemption(t *testing.T) {
	store := newMemStore()
	d := summer20()
	store.addDiscount(d)
	customer := uuid.New()
	cartID := store.addCart(&customer, line("100", 1))
	locker := &recordingLocker{}
	svc := newService(store)
	svc.Locker = locker

	res, err := svc.Commit(context.Background(), CommitInput{CartID: cartID, Code: "SUMMER20", CustomerID: customer})
	require.NoError(t, err)
	require.Equal(t, repo.OrderStatusPendingPayment, res.Status)
	require.Equal(t, "88.00", money.Format(res.Breakdown.GrandTotal))
	require.Equal(t, d.ID, *res.DiscountID)
	require.Equal(t, []string{"checkout:cart:" + cartID.String()}, locker.keys)

	state := store.snapshot()
	require.Len(t, state.orders, 1)
	require.Len(t, state.redemptions, 1)
	require.Equal(t, res.OrderID, state.redemptions[0].OrderID)
	require.Equal(t, "20.00", money.Format(state.redemptions[0].AmountDiscounted))
	require.Equal(t, repo.CartStatusCheckedOut, state.carts[cartID].Status)

	_, err = svc.Commit(context.Background(), CommitInput{CartID: cartID, Code: "SUMMER20", CustomerID: customer})
	require.ErrorIs(t, err, repo.ErrCartNotActive)
}

func TestCommitRequiresCustomer(t *testing.T) {
	store := newMemStore()
	cartID := store.addCart(nil, line("10", 1))
	_, err := newService(store).Commit(context.Background(), CommitInput{CartID: cartID})
	require.ErrorIs(t, err, ErrCustomerRequired)
}

func TestCommitRejectsForeignAndEmptyCarts(t *testing.T) {
	store := newMemStore()
	owner := uuid.New()
	foreign := store.addCart(&owner, line("10", 1))
	empty := store.addCart(nil)
	svc := newService(store)

	_, err := svc.Commit(context.Background(), CommitInput{CartID: foreign, CustomerID: uuid.New()})
	require.ErrorIs(t, err, ErrCartForbidden)

	_, err = svc.Commit(context.Background(), CommitInput{CartID: empty, CustomerID: uuid.New()})
	require.ErrorIs(t, err, ErrEmptyCart)
}

func TestCommitUsageGuardReturnsFallbackQuote(t *testing.T) {
	store := newMemStore()
	d := discount.Discount{
		ID:         uuid.New(),
		Code:       ptr("ONCE"),
		Kind:       discount.KindFixedAmount,
		Value:      money.MustParse("10"),
		IsActive:   true,
		UsageLimit: ptr(int32(1)),
	}
	store.addDiscount(d)
	store.state.redemptions = append(store.state.redemptions, discount.Redemption{DiscountID: d.ID, CustomerID: uuid.New(), OrderID: uuid.New()})
	customer := uuid.New()
	cartID := store.addCart(&customer, line("50", 1))

	_, err := newService(store).Commit(context.Background(), CommitInput{CartID: cartID, Code: "ONCE", CustomerID: customer})

	var rejected *CommitRejectedError
	require.True(t, errors.As(err, &rejected))
	require.ErrorIs(t, err, discount.ErrUsageLimitExceeded)
	require.NotNil(t, rejected.Fallback)
	require.Nil(t, rejected.Fallback.Discount)
	require.Equal(t, "54.00", money.Format(rejected.Fallback.Breakdown.GrandTotal))

	state := store.snapshot()
	require.Empty(t, state.orders)
	require.Equal(t, repo.CartStatusActive, state.carts[cartID].Status)
}

func TestCommitRollsBackOnRedemptionFailure(t *testing.T) {
	store := newMemStore()
	store.addDiscount(summer20())
	store.failRedemption = errInjected
	customer := uuid.New()
	cartID := store.addCart(&customer, line("100", 1))

	_, err := newService(store).Commit(context.Background(), CommitInput{CartID: cartID, Code: "SUMMER20", CustomerID: customer})
	require.ErrorIs(t, err, errInjected)

	state := store.snapshot()
	require.Empty(t, state.orders)
	require.Equal(t, repo.CartStatusActive, state.carts[cartID].Status)
}

func TestCommitLockFailureSkipsWork(t *testing.T) {
	store := newMemStore()
	customer := uuid.New()
	cartID := store.addCart(&customer, line("10", 1))
	svc := newService(store)
	svc.Locker = &recordingLocker{err: lock.ErrNotAcquired}

	_, err := svc.Commit(context.Background(), CommitInput{CartID: cartID, CustomerID: customer})
	require.ErrorIs(t, err, lock.ErrNotAcquired)
	require.Empty(t, store.snapshot().orders)
}

func TestConcurrentCommitsHonourSingleUse(t *testing.T) {
	store := newMemStore()
	d := discount.Discount{
		ID:         uuid.New(),
		Code:       ptr("FIRST1"),
		Kind:       discount.KindPercentage,
		Value:      decimal.NewFromInt(50),
		IsActive:   true,
		UsageLimit: ptr(int32(1)),
	}
	store.addDiscount(d)
	svc := newService(store)

	const shoppers = 8
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		ok       int
		rejected int
	)
	for i := 0; i < shoppers; i++ {
		customer := uuid.New()
		cartID := store.addCart(&customer, line("30", 1))
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Commit(context.Background(), CommitInput{CartID: cartID, Code: "FIRST1", CustomerID: customer})
			mu.Lock()
			defer mu.Unlock()
			var rej *CommitRejectedError
			switch {
			case err == nil:
				ok++
			case errors.As(err, &rej):
				rejected++
			}
		}()
	}
	wg.Wait()

	require.Equal(t, 1, ok)
	require.Equal(t, shoppers-1, rejected)
	require.Len(t, store.snapshot().redemptions, 1)
}

func TestCustomerLimitEnforcedAtCommit(t *testing.T) {
	store := newMemStore()
	d := discount.Discount{
		ID:                    uuid.New(),
		Code:                  ptr("ONEEACH"),
		Kind:                  discount.KindFixedAmount,
		Value:                 money.MustParse("5"),
		IsActive:              true,
		UsageLimitPerCustomer: ptr(int32(1)),
	}
	store.addDiscount(d)
	customer := uuid.New()
	first := store.addCart(&customer, line("20", 1))
	second := store.addCart(&customer, line("20", 1))
	svc := newService(store)

	_, err := svc.Commit(context.Background(), CommitInput{CartID: first, Code: "ONEEACH", CustomerID: customer})
	require.NoError(t, err)

	_, err = svc.Commit(context.Background(), CommitInput{CartID: second, Code: "ONEEACH", CustomerID: customer})
	require.ErrorIs(t, err, discount.ErrCustomerUsageLimitExceeded)

	other := uuid.New()
	third := store.addCart(&other, line("20", 1))
	_, err = svc.Commit(context.Background(), CommitInput{CartID: third, Code: "ONEEACH", CustomerID: other})
	require.NoError(t, err)
}

func TestGuardUsageRejectsDeactivatedDiscount(t *testing.T) {
	store := newMemStore()
	d := summer20()
	d.IsActive = false
	store.addDiscount(d)
	tx := &memTx{state: store.snapshot()}

	err := guardUsage(context.Background(), tx, d.ID, uuid.New())
	require.ErrorIs(t, err, discount.ErrCodeNotFound)

	err = guardUsage(context.Background(), tx, uuid.New(), uuid.New())
	require.ErrorIs(t, err, discount.ErrCodeNotFound)
}
