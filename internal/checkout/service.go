package checkout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/toko-pricing/internal/discount"
	"github.com/noah-isme/toko-pricing/internal/obs"
	"github.com/noah-isme/toko-pricing/internal/pricing"
	"github.com/noah-isme/toko-pricing/internal/repo"
)

var (
	// ErrCustomerRequired is returned when committing without an authenticated customer.
	ErrCustomerRequired = errors.New("customer is required for checkout")
	// ErrCartForbidden is returned when the cart belongs to another customer.
	ErrCartForbidden = errors.New("cart does not belong to customer")
	// ErrEmptyCart is returned when committing a cart without lines.
	ErrEmptyCart = errors.New("cart is empty")
)

// CommitRejectedError is returned when the commit-time usage guard rejects the discount.
// Fallback is the cart priced again without any discount so the shopper can be re-prompted.
type CommitRejectedError struct {
	Err      error
	Fallback *Quote
}

func (e *CommitRejectedError) Error() string {
	return fmt.Sprintf("checkout rejected: %v", e.Err)
}

func (e *CommitRejectedError) Unwrap() error { return e.Err }

// QuoteInput identifies the cart to price.
type QuoteInput struct {
	CartID     uuid.UUID
	Code       string
	CustomerID uuid.UUID
}

// Quote is the priced view of a stored cart at a point in time.
type Quote struct {
	CartID     uuid.UUID
	Breakdown  pricing.Breakdown
	Discount   *discount.Discount
	ComputedAt time.Time
}

// CommitInput identifies the cart to turn into an order.
type CommitInput struct {
	CartID     uuid.UUID
	Code       string
	CustomerID uuid.UUID
}

// CommitResult describes the committed order handed to payment capture.
type CommitResult struct {
	OrderID    uuid.UUID
	Status     string
	Breakdown  pricing.Breakdown
	DiscountID *uuid.UUID
	CreatedAt  time.Time
}

// Service prices carts for display and commits them as orders.
type Service struct {
	Store Store
	// Discounts and Usage back display-time quotes and may be cached.
	// Commits always read through the transaction.
	Discounts discount.Finder
	Usage     discount.UsageCounter
	TaxRates  pricing.TaxRateSource
	Currency  string
	Shipping  decimal.Decimal
	Locker    Locker
	LockTTL   time.Duration
	Now       func() time.Time
	Logger    zerolog.Logger
}

// Quote prices the stored cart. The result is advisory and re-evaluated on commit.
func (s *Service) Quote(ctx context.Context, in QuoteInput) (Quote, error) {
	if s == nil || s.Store == nil || s.Discounts == nil || s.Usage == nil {
		return Quote{}, errors.New("checkout service not configured")
	}
	cart, err := s.Store.LoadCart(ctx, in.CartID)
	if err != nil {
		return Quote{}, err
	}
	if !ownedBy(cart, in.CustomerID) {
		return Quote{}, ErrCartForbidden
	}
	engine := s.engine(s.Discounts, s.Usage)
	now := s.now()
	res, err := engine.ComputeOrderTotal(ctx, pricing.Input{
		Lines:      cart.Lines,
		Code:       in.Code,
		CustomerID: in.CustomerID,
		Now:        now,
		Shipping:   s.Shipping,
	})
	obs.ObserveQuote(resultLabel(err), reasonLabel(err))
	if err != nil {
		return Quote{}, err
	}
	return Quote{CartID: cart.ID, Breakdown: res.Breakdown, Discount: res.Discount, ComputedAt: now}, nil
}

// Commit re-prices the cart inside a transaction and records the order. When a discount
// applies its row is locked and usage recounted before the redemption is inserted, so
// concurrent commits cannot exceed a usage limit.
func (s *Service) Commit(ctx context.Context, in CommitInput) (CommitResult, error) {
	if s == nil || s.Store == nil {
		return CommitResult{}, errors.New("checkout service not configured")
	}
	if in.CustomerID == uuid.Nil {
		return CommitResult{}, ErrCustomerRequired
	}

	var out CommitResult
	run := func(ctx context.Context) error {
		return s.Store.WithinTx(ctx, func(tx Tx) error {
			res, err := s.commitTx(ctx, tx, in)
			if err != nil {
				return err
			}
			out = res
			return nil
		})
	}

	var err error
	if s.Locker != nil {
		err = s.Locker.WithLock(ctx, lockKey(in.CartID), s.lockTTL(), run)
	} else {
		err = run(ctx)
	}

	logger := s.Logger.With().Str("cart_id", in.CartID.String()).Str("customer_id", in.CustomerID.String()).Logger()
	if err != nil {
		obs.ObserveCommit(commitLabel(err))
		if discount.IsUsageRejection(err) {
			logger.Warn().Err(err).Msg("checkout usage guard rejected discount")
			fallback, ferr := s.fallbackQuote(ctx, in)
			if ferr != nil {
				logger.Error().Err(ferr).Msg("reprice cart without discount")
				return CommitResult{}, &CommitRejectedError{Err: err}
			}
			return CommitResult{}, &CommitRejectedError{Err: err, Fallback: &fallback}
		}
		return CommitResult{}, err
	}

	obs.ObserveCommit("committed")
	evt := logger.Info().
		Str("order_id", out.OrderID.String()).
		Str("grand_total", out.Breakdown.GrandTotal.StringFixed(2))
	if out.DiscountID != nil {
		evt = evt.Str("discount_id", out.DiscountID.String())
	}
	evt.Msg("order committed")
	return out, nil
}

func (s *Service) commitTx(ctx context.Context, tx Tx, in CommitInput) (CommitResult, error) {
	cart, err := tx.LockCart(ctx, in.CartID)
	if err != nil {
		return CommitResult{}, err
	}
	if !cart.Active() {
		return CommitResult{}, repo.ErrCartNotActive
	}
	if !ownedBy(cart, in.CustomerID) {
		return CommitResult{}, ErrCartForbidden
	}
	if len(cart.Lines) == 0 {
		return CommitResult{}, ErrEmptyCart
	}

	res, err := s.engine(tx, tx).ComputeOrderTotal(ctx, pricing.Input{
		Lines:      cart.Lines,
		Code:       in.Code,
		CustomerID: in.CustomerID,
		Now:        s.now(),
		Shipping:   s.Shipping,
	})
	if err != nil {
		return CommitResult{}, err
	}
	if res.Discount != nil {
		if err := guardUsage(ctx, tx, res.Discount.ID, in.CustomerID); err != nil {
			return CommitResult{}, err
		}
	}

	order, err := tx.InsertOrder(ctx, repo.NewOrder{
		CustomerID: in.CustomerID,
		CartID:     cart.ID,
		Status:     repo.OrderStatusPendingPayment,
		Breakdown:  res.Breakdown,
		DiscountID: res.DiscountID(),
	})
	if err != nil {
		return CommitResult{}, err
	}
	if res.Discount != nil {
		if err := tx.InsertRedemption(ctx, discount.Redemption{
			DiscountID:       res.Discount.ID,
			CustomerID:       in.CustomerID,
			OrderID:          order.ID,
			AmountDiscounted: res.Breakdown.DiscountAmount,
		}); err != nil {
			return CommitResult{}, err
		}
	}
	if err := tx.MarkCartCheckedOut(ctx, cart.ID); err != nil {
		return CommitResult{}, err
	}
	return CommitResult{
		OrderID:    order.ID,
		Status:     order.Status,
		Breakdown:  order.Breakdown,
		DiscountID: order.DiscountID,
		CreatedAt:  order.CreatedAt,
	}, nil
}

// guardUsage recounts redemptions while holding the discount row lock.
func guardUsage(ctx context.Context, tx Tx, discountID, customerID uuid.UUID) error {
	d, err := tx.LockDiscount(ctx, discountID)
	if err != nil {
		if errors.Is(err, discount.ErrNotFound) {
			return &discount.RejectionError{Reason: discount.ErrCodeNotFound, DiscountID: discountID}
		}
		return err
	}
	if !d.IsActive {
		return &discount.RejectionError{Reason: discount.ErrCodeNotFound, Code: d.CodeString(), DiscountID: d.ID}
	}
	if d.UsageLimit != nil {
		used, err := tx.CountRedemptions(ctx, d.ID)
		if err != nil {
			return err
		}
		if err := discount.CheckUsage(d, used); err != nil {
			return err
		}
	}
	if d.UsageLimitPerCustomer != nil {
		used, err := tx.CountCustomerRedemptions(ctx, d.ID, customerID)
		if err != nil {
			return err
		}
		if err := discount.CheckCustomerUsage(d, used); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) fallbackQuote(ctx context.Context, in CommitInput) (Quote, error) {
	cart, err := s.Store.LoadCart(ctx, in.CartID)
	if err != nil {
		return Quote{}, err
	}
	now := s.now()
	res, err := s.engine(nil, nil).ComputeOrderTotal(ctx, pricing.Input{
		Lines:      cart.Lines,
		CustomerID: in.CustomerID,
		Now:        now,
		Shipping:   s.Shipping,
		NoDiscount: true,
	})
	if err != nil {
		return Quote{}, err
	}
	return Quote{CartID: cart.ID, Breakdown: res.Breakdown, ComputedAt: now}, nil
}

func (s *Service) engine(finder discount.Finder, usage discount.UsageCounter) *pricing.Engine {
	e := &pricing.Engine{TaxRates: s.taxRates(), Currency: s.Currency, Now: s.Now}
	if finder != nil && usage != nil {
		e.Resolver = &discount.Resolver{Finder: finder, Usage: usage}
	}
	return e
}

func (s *Service) taxRates() pricing.TaxRateSource {
	if s.TaxRates == nil {
		return pricing.FixedTaxRate{Rate: pricing.DefaultTaxRate}
	}
	return s.TaxRates
}

func (s *Service) lockTTL() time.Duration {
	if s.LockTTL <= 0 {
		return 10 * time.Second
	}
	return s.LockTTL
}

func (s *Service) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// ownedBy reports whether customerID may see cart. Guest carts are open to
// anyone; owned carts only to their owner.
func ownedBy(cart repo.Cart, customerID uuid.UUID) bool {
	if cart.CustomerID == nil {
		return true
	}
	return customerID != uuid.Nil && *cart.CustomerID == customerID
}

func lockKey(cartID uuid.UUID) string {
	return "checkout:cart:" + cartID.String()
}
