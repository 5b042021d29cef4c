// Package pricing computes order totals: priced line items, the shipping fee
// and the coupon discount. It performs no I/O; products and coupons are
// supplied through lookups built from already-fetched rows.
package pricing

import (
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/techstore/internal/domain/coupon"
)

var (
	// FreeShippingThreshold is the subtotal above which shipping is free.
	FreeShippingThreshold = decimal.RequireFromString("299.00")
	// FlatShippingFee is charged when the subtotal does not exceed the threshold.
	FlatShippingFee = decimal.RequireFromString("15.90")

	// MaxAmount bounds every stored money value, which is NUMERIC(12,2).
	MaxAmount = decimal.RequireFromString("9999999999.99")

	hundred = decimal.NewFromInt(100)
)

// MaxQuantity is the largest quantity accepted for a single line item.
const MaxQuantity = 10000

// LineItemRequest is one product/quantity pair of a cart. A zero Quantity
// means the quantity was omitted and defaults to 1.
type LineItemRequest struct {
	ProductID string
	Quantity  int
}

// Product is the subset of a catalog product the engine needs.
type Product struct {
	ID     string
	Name   string
	Price  decimal.Decimal
	Active bool
}

// PricedLineItem is a line item with its resolved unit price.
type PricedLineItem struct {
	ProductID string
	Name      string
	Quantity  int
	UnitPrice decimal.Decimal
	LineTotal decimal.Decimal
}

// AppliedCoupon identifies the coupon behind a discount together with the
// usage fields the order store needs to enforce caps.
type AppliedCoupon struct {
	ID          string
	Code        string
	UsageKind   coupon.UsageKind
	MaxUses     *int
	CurrentUses int
}

// OrderSummary is the result of pricing a cart.
type OrderSummary struct {
	LineItems      []PricedLineItem
	Subtotal       decimal.Decimal
	ShippingFee    decimal.Decimal
	DiscountAmount decimal.Decimal
	// Total may be zero or negative when a fixed discount exceeds the
	// subtotal plus shipping.
	Total         decimal.Decimal
	AppliedCoupon *AppliedCoupon
}

// ComputeLineItems resolves every cart item against the product lookup.
// The result preserves input order and prices repeated products independently.
func ComputeLineItems(items []LineItemRequest, products ProductLookup) ([]PricedLineItem, error) {
	if len(items) == 0 {
		return nil, ErrEmptyCart
	}

	priced := make([]PricedLineItem, 0, len(items))
	subtotal := decimal.Zero
	for _, item := range items {
		qty := item.Quantity
		if qty < 0 || qty > MaxQuantity {
			return nil, &InvalidQuantityError{ProductID: item.ProductID, Quantity: qty}
		}
		if qty == 0 {
			qty = 1
		}

		p, ok := products(item.ProductID)
		if !ok {
			return nil, &ProductNotFoundError{ProductID: item.ProductID}
		}
		if !p.Active {
			return nil, &ProductInactiveError{ProductID: p.ID, Name: p.Name}
		}

		lineTotal := p.Price.Mul(decimal.NewFromInt(int64(qty)))
		subtotal = subtotal.Add(lineTotal)
		if subtotal.GreaterThan(MaxAmount) {
			return nil, &InvalidQuantityError{ProductID: p.ID, Quantity: qty}
		}

		priced = append(priced, PricedLineItem{
			ProductID: p.ID,
			Name:      p.Name,
			Quantity:  qty,
			UnitPrice: p.Price,
			LineTotal: lineTotal,
		})
	}
	return priced, nil
}

// Subtotal sums the line totals.
func Subtotal(items []PricedLineItem) decimal.Decimal {
	sum := decimal.Zero
	for _, item := range items {
		sum = sum.Add(item.LineTotal)
	}
	return sum
}

// ComputeShippingFee is free strictly above FreeShippingThreshold and
// FlatShippingFee otherwise.
func ComputeShippingFee(subtotal decimal.Decimal) decimal.Decimal {
	if subtotal.GreaterThan(FreeShippingThreshold) {
		return decimal.Zero
	}
	return FlatShippingFee
}

// ResolveCoupon finds the coupon for code and computes its discount against
// subtotal. Missing, inactive and expired coupons all yield ErrCouponNotFound.
// Usage caps and first-order eligibility are left to the order store.
func ResolveCoupon(code string, subtotal decimal.Decimal, now time.Time, coupons CouponLookup) (coupon.Coupon, decimal.Decimal, error) {
	c, ok := coupons(coupon.NormalizeCode(code))
	if !ok || !c.Active || c.Expired(now) {
		return coupon.Coupon{}, decimal.Zero, ErrCouponNotFound
	}

	if c.MinimumPurchase.Valid && subtotal.LessThan(c.MinimumPurchase.Decimal) {
		return coupon.Coupon{}, decimal.Zero, &MinimumPurchaseError{Minimum: c.MinimumPurchase.Decimal}
	}

	var discount decimal.Decimal
	switch c.DiscountKind {
	case coupon.DiscountPercentage:
		discount = subtotal.Mul(c.DiscountValue).Div(hundred)
		if c.MaxDiscountAmount.Valid && discount.GreaterThan(c.MaxDiscountAmount.Decimal) {
			discount = c.MaxDiscountAmount.Decimal
		}
	case coupon.DiscountFixed:
		discount = c.DiscountValue
	default:
		return coupon.Coupon{}, decimal.Zero, errors.Errorf("unsupported discount kind: %q", c.DiscountKind)
	}

	return c, discount.Round(2), nil
}

// PriceOrder runs the whole pipeline: line items, subtotal, shipping and the
// optional coupon. An empty couponCode means no coupon. Any failure aborts
// the computation without a partial summary.
func PriceOrder(
	items []LineItemRequest,
	couponCode string,
	products ProductLookup,
	coupons CouponLookup,
	now time.Time,
) (OrderSummary, error) {
	lines, err := ComputeLineItems(items, products)
	if err != nil {
		return OrderSummary{}, err
	}

	subtotal := Subtotal(lines)
	shipping := ComputeShippingFee(subtotal)

	discount := decimal.Zero
	var applied *AppliedCoupon
	if couponCode != "" {
		c, amount, err := ResolveCoupon(couponCode, subtotal, now, coupons)
		if err != nil {
			return OrderSummary{}, err
		}
		discount = amount
		applied = &AppliedCoupon{
			ID:          c.ID,
			Code:        c.Code,
			UsageKind:   c.UsageKind,
			MaxUses:     c.MaxUses,
			CurrentUses: c.CurrentUses,
		}
	}

	return OrderSummary{
		LineItems:      lines,
		Subtotal:       subtotal,
		ShippingFee:    shipping,
		DiscountAmount: discount,
		Total:          subtotal.Add(shipping).Sub(discount),
		AppliedCoupon:  applied,
	}, nil
}
