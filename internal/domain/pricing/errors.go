package pricing

import (
	"fmt"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

var (
	// ErrEmptyCart is returned when there is nothing to price.
	ErrEmptyCart = errors.New("cart must contain at least one item")
	// ErrCouponNotFound covers missing, inactive and expired coupons alike.
	ErrCouponNotFound = errors.New("coupon is invalid or expired")
)

// InvalidQuantityError indicates a line item with a negative quantity, or
// one so large that the order amounts no longer fit the store.
type InvalidQuantityError struct {
	ProductID string
	Quantity  int
}

func (e *InvalidQuantityError) Error() string {
	if e.Quantity < 0 {
		return fmt.Sprintf("quantity must be greater than 0 for product %s", e.ProductID)
	}
	return fmt.Sprintf("quantity %d is too large for product %s", e.Quantity, e.ProductID)
}

// ProductNotFoundError indicates a line item referencing an unknown product.
type ProductNotFoundError struct {
	ProductID string
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("product %s not found", e.ProductID)
}

// ProductInactiveError indicates a line item referencing a product that is
// no longer sold.
type ProductInactiveError struct {
	ProductID string
	Name      string
}

func (e *ProductInactiveError) Error() string {
	return fmt.Sprintf("product %s is not available", e.Name)
}

// MinimumPurchaseError indicates the subtotal is below the coupon minimum.
// Minimum is the required amount, kept for display.
type MinimumPurchaseError struct {
	Minimum decimal.Decimal
}

func (e *MinimumPurchaseError) Error() string {
	return fmt.Sprintf("coupon requires a minimum purchase of %s", e.Minimum.StringFixed(2))
}
