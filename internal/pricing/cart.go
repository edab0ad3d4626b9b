package pricing

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/toko-pricing/internal/money"
)

var (
	// ErrInsufficientStock is returned when a line asks for more units than are available.
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrInvalidLine is returned for non-positive quantities or negative prices.
	ErrInvalidLine = errors.New("invalid cart line")
)

// CartLine is one immutable entry of a cart snapshot.
type CartLine struct {
	ProductID      uuid.UUID
	UnitPrice      decimal.Decimal
	Quantity       int32
	AvailableStock int32
}

// StockError reports the first line whose quantity exceeds available stock.
type StockError struct {
	ProductID uuid.UUID
	Requested int32
	Available int32
}

func (e *StockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s: requested %d, available %d", e.ProductID, e.Requested, e.Available)
}

func (e *StockError) Unwrap() error { return ErrInsufficientStock }

// Subtotal sums unitPrice × quantity over the lines, rounded to cents.
// Any over-stocked line fails the whole computation; lines are never clamped.
func Subtotal(lines []CartLine) (decimal.Decimal, error) {
	total := decimal.Zero
	for _, line := range lines {
		if line.Quantity <= 0 || line.UnitPrice.IsNegative() {
			return decimal.Zero, fmt.Errorf("product %s: %w", line.ProductID, ErrInvalidLine)
		}
		if line.Quantity > line.AvailableStock {
			return decimal.Zero, &StockError{ProductID: line.ProductID, Requested: line.Quantity, Available: line.AvailableStock}
		}
		total = total.Add(line.UnitPrice.Mul(decimal.NewFromInt32(line.Quantity)))
	}
	return money.Round(total), nil
}
