package handler

import (
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/techstore/internal/domain/coupon"
	"github.com/xenking/techstore/internal/domain/pricing"
)

type couponRequest struct {
	Code              string              `json:"code"`
	Description       string              `json:"description"`
	DiscountKind      string              `json:"discountKind"`
	DiscountValue     decimal.Decimal     `json:"discountValue"`
	MaxDiscountAmount decimal.NullDecimal `json:"maxDiscountAmount"`
	MinimumPurchase   decimal.NullDecimal `json:"minimumPurchase"`
	ExpiresAt         time.Time           `json:"expiresAt"`
	Active            *bool               `json:"active"`
	UsageKind         string              `json:"usageKind"`
	MaxUses           *int                `json:"maxUses"`
}

func (c couponRequest) coupon() coupon.Coupon {
	usage := coupon.UsageKind(c.UsageKind)
	if usage == "" {
		usage = coupon.UsageGeneral
	}
	active := true
	if c.Active != nil {
		active = *c.Active
	}
	return coupon.Coupon{
		Code:              c.Code,
		Description:       c.Description,
		DiscountKind:      coupon.DiscountKind(c.DiscountKind),
		DiscountValue:     c.DiscountValue,
		MaxDiscountAmount: c.MaxDiscountAmount,
		MinimumPurchase:   c.MinimumPurchase,
		ExpiresAt:         c.ExpiresAt,
		Active:            active,
		UsageKind:         usage,
		MaxUses:           c.MaxUses,
	}
}

type validateCouponRequest struct {
	Code           string          `json:"code"`
	PurchaseAmount decimal.Decimal `json:"purchaseAmount"`
}

// ListCoupons handles GET /api/coupons.
func (h *Handler) ListCoupons(w http.ResponseWriter, r *http.Request) {
	list, err := h.coupons.ListAvailable(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeArray(w, list, encodeCoupon)
}

// CreateCoupon handles POST /api/coupons.
func (h *Handler) CreateCoupon(w http.ResponseWriter, r *http.Request) {
	var req couponRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	c, err := h.coupons.Create(r.Context(), req.coupon())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) { encodeCoupon(e, c) })
}

// ValidateCoupon handles POST /api/coupons/validate. It quotes the discount
// without consuming the coupon.
func (h *Handler) ValidateCoupon(w http.ResponseWriter, r *http.Request) {
	var req validateCouponRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	q, err := h.orders.QuoteCoupon(r.Context(), req.Code, req.PurchaseAmount)
	if err != nil {
		// Checkout reports a bad coupon as a bad request; here the coupon
		// itself is the resource.
		if errors.Is(err, pricing.ErrCouponNotFound) {
			writeMessage(w, http.StatusNotFound, pricing.ErrCouponNotFound.Error())
			return
		}
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("valid")
		e.Bool(true)
		e.FieldStart("coupon")
		encodeCoupon(e, &q.Coupon)
		e.FieldStart("discount")
		money(e, q.Discount)
		e.FieldStart("finalAmount")
		money(e, q.FinalAmount)
		e.ObjEnd()
	})
}
