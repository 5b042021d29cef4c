package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/techstore/internal/domain/delivery"
)

// ErrNotFound is returned when an order does not exist or is not visible to
// the caller.
var ErrNotFound = errors.New("order not found")

// PaymentMethod is how the customer intends to pay.
type PaymentMethod string

const (
	PaymentCreditCard    PaymentMethod = "CREDIT_CARD"
	PaymentPix           PaymentMethod = "PIX"
	PaymentBoleto        PaymentMethod = "BOLETO"
	PaymentOnlineDebit   PaymentMethod = "ONLINE_DEBIT"
	PaymentDigitalWallet PaymentMethod = "DIGITAL_WALLET"
)

// Valid reports whether m is an accepted payment method.
func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentCreditCard, PaymentPix, PaymentBoleto, PaymentOnlineDebit, PaymentDigitalWallet:
		return true
	}
	return false
}

// Order is a placed customer order with its priced items.
type Order struct {
	ID            string
	UserID        string
	AddressID     string
	CouponID      string
	CouponCode    string
	Status        Status
	PaymentMethod PaymentMethod
	Items         []Item
	Subtotal      decimal.Decimal
	ShippingFee   decimal.Decimal
	Discount      decimal.Decimal
	Total         decimal.Decimal
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Item is one priced line of an order.
type Item struct {
	ProductID string
	Name      string
	Quantity  int
	UnitPrice decimal.Decimal
	LineTotal decimal.Decimal
}

// Repository defines persistence operations for orders.
type Repository interface {
	// Create writes the order, its items and its delivery record in one
	// transaction. When CouponID is set it also consumes one coupon use and
	// fails with coupon.ErrUsageLimitReached if the cap is exhausted, or with
	// coupon.ErrFirstOrderOnly if a FIRST_ORDER coupon meets an earlier
	// active order of the same user.
	Create(ctx context.Context, o *Order, d *delivery.Delivery) error
	// CountActiveByUser counts the user's orders that were not cancelled.
	CountActiveByUser(ctx context.Context, userID string) (int, error)
	// ListByUser returns the user's orders with items, newest first.
	ListByUser(ctx context.Context, userID string) ([]Order, error)
	// ListAll returns every order with items, newest first.
	ListAll(ctx context.Context) ([]Order, error)
	Get(ctx context.Context, id string) (*Order, error)
	// UpdateStatus moves an order from one status to another, failing with
	// ErrStatusConflict if the stored status is no longer from.
	UpdateStatus(ctx context.Context, id string, from, to Status, at time.Time) error
}
