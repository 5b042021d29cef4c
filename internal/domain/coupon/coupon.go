package coupon

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// DiscountKind enumerates the supported coupon discount strategies.
type DiscountKind string

const (
	// DiscountPercentage takes a percentage of the subtotal, optionally capped
	// by MaxDiscountAmount.
	DiscountPercentage DiscountKind = "PERCENTAGE"
	// DiscountFixed takes a fixed amount. It is not capped at the subtotal.
	DiscountFixed DiscountKind = "FIXED"
)

// UsageKind classifies who may redeem a coupon.
type UsageKind string

const (
	UsageGeneral     UsageKind = "GENERAL"
	UsageFirstOrder  UsageKind = "FIRST_ORDER"
	UsagePromotional UsageKind = "PROMOTIONAL"
)

var (
	// ErrNotFound is returned by repositories when no coupon matches a code.
	ErrNotFound = errors.New("coupon not found")
	// ErrDuplicateCode is returned when creating a coupon whose code is taken.
	ErrDuplicateCode = errors.New("coupon code already exists")
	// ErrUsageLimitReached is returned by the order store when the
	// conditional usage increment matched no row.
	ErrUsageLimitReached = errors.New("coupon usage limit reached")
	// ErrFirstOrderOnly is returned when a FIRST_ORDER coupon is redeemed by a
	// customer who already has orders.
	ErrFirstOrderOnly = errors.New("coupon is only valid on the first order")
)

var hundred = decimal.NewFromInt(100)

// Coupon is a discount rule identified by a unique, case-insensitive code.
type Coupon struct {
	ID                string
	Code              string
	Description       string
	DiscountKind      DiscountKind
	DiscountValue     decimal.Decimal
	MaxDiscountAmount decimal.NullDecimal
	MinimumPurchase   decimal.NullDecimal
	ExpiresAt         time.Time
	Active            bool
	UsageKind         UsageKind
	// MaxUses is nil for unlimited coupons.
	MaxUses     *int
	CurrentUses int
	CreatedAt   time.Time
}

// NormalizeCode returns the canonical (upper-case, trimmed) form of a code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Expired reports whether the coupon expired strictly before now.
func (c *Coupon) Expired(now time.Time) bool {
	return c.ExpiresAt.Before(now)
}

// Validate checks the coupon rule invariants.
func (c *Coupon) Validate() error {
	if NormalizeCode(c.Code) == "" {
		return errors.New("code is required")
	}
	if !c.DiscountValue.IsPositive() {
		return errors.New("discount value must be greater than 0")
	}
	switch c.DiscountKind {
	case DiscountPercentage:
		if c.DiscountValue.GreaterThan(hundred) {
			return errors.New("percentage discount must not exceed 100")
		}
	case DiscountFixed:
		if c.MaxDiscountAmount.Valid {
			return errors.New("max discount amount only applies to percentage coupons")
		}
	default:
		return errors.Errorf("unsupported discount kind: %q", c.DiscountKind)
	}
	switch c.UsageKind {
	case UsageGeneral, UsageFirstOrder, UsagePromotional:
	default:
		return errors.Errorf("unsupported usage kind: %q", c.UsageKind)
	}
	if c.MaxUses != nil && *c.MaxUses < 0 {
		return errors.New("max uses must not be negative")
	}
	return nil
}

// Repository provides lookup and mutation of coupons.
type Repository interface {
	// FindByCode returns the coupon with the given code regardless of its
	// active flag or expiry. Matching is case-insensitive.
	FindByCode(ctx context.Context, code string) (*Coupon, error)
	// ListAvailable returns active coupons expiring at or after now, soonest
	// expiry first.
	ListAvailable(ctx context.Context, now time.Time) ([]Coupon, error)
	Create(ctx context.Context, c *Coupon) error
}
