package pricing

import (
	"github.com/xenking/techstore/internal/domain/coupon"
)

// ProductLookup resolves a product reference to its pricing snapshot.
type ProductLookup func(productID string) (Product, bool)

// CouponLookup resolves a normalized (upper-case) coupon code.
type CouponLookup func(code string) (coupon.Coupon, bool)

// ProductsByID builds a ProductLookup over a prefetched product set.
func ProductsByID(products []Product) ProductLookup {
	byID := make(map[string]Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}
	return func(id string) (Product, bool) {
		p, ok := byID[id]
		return p, ok
	}
}

// CouponByCode builds a CouponLookup over a single prefetched coupon. A nil
// coupon yields a lookup that never matches.
func CouponByCode(c *coupon.Coupon) CouponLookup {
	return func(code string) (coupon.Coupon, bool) {
		if c == nil || coupon.NormalizeCode(c.Code) != code {
			return coupon.Coupon{}, false
		}
		return *c, true
	}
}

// NoCoupons is a CouponLookup that never matches.
func NoCoupons(string) (coupon.Coupon, bool) {
	return coupon.Coupon{}, false
}
