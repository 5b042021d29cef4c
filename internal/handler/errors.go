package handler

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/techstore/internal/domain/address"
	"github.com/xenking/techstore/internal/domain/coupon"
	"github.com/xenking/techstore/internal/domain/delivery"
	"github.com/xenking/techstore/internal/domain/order"
	"github.com/xenking/techstore/internal/domain/pricing"
	"github.com/xenking/techstore/internal/domain/product"
	"github.com/xenking/techstore/internal/domain/user"
)

// errBadBody is returned for request bodies that are not valid JSON.
var errBadBody = errors.New("invalid request body")

// sentinels maps domain errors to HTTP status codes.
var sentinels = []struct {
	err    error
	status int
}{
	{errBadBody, http.StatusBadRequest},
	{pricing.ErrEmptyCart, http.StatusBadRequest},
	{pricing.ErrCouponNotFound, http.StatusBadRequest},
	{order.ErrInvalidPaymentMethod, http.StatusBadRequest},
	{order.ErrAddressRequired, http.StatusBadRequest},
	{order.ErrCouponCodeRequired, http.StatusBadRequest},
	{order.ErrInvalidStatus, http.StatusBadRequest},
	{delivery.ErrInvalidStatus, http.StatusBadRequest},
	{address.ErrInvalidPostalCode, http.StatusBadRequest},

	{user.ErrInvalidCredentials, http.StatusUnauthorized},
	{user.ErrInvalidToken, http.StatusUnauthorized},

	{order.ErrNotFound, http.StatusNotFound},
	{order.ErrAddressNotFound, http.StatusNotFound},
	{product.ErrNotFound, http.StatusNotFound},
	{coupon.ErrNotFound, http.StatusNotFound},
	{address.ErrNotFound, http.StatusNotFound},
	{address.ErrPostalCodeNotFound, http.StatusNotFound},
	{delivery.ErrNotFound, http.StatusNotFound},
	{user.ErrNotFound, http.StatusNotFound},

	{order.ErrStatusConflict, http.StatusConflict},
	{user.ErrAlreadyExists, http.StatusConflict},
	{coupon.ErrDuplicateCode, http.StatusConflict},

	{coupon.ErrUsageLimitReached, http.StatusUnprocessableEntity},
	{coupon.ErrFirstOrderOnly, http.StatusUnprocessableEntity},
}

// statusOf returns the HTTP status for err, or 500 for unknown errors.
func statusOf(err error) int {
	var (
		productErr  *product.ValidationError
		couponErr   *coupon.ValidationError
		userErr     *user.ValidationError
		addressErr  *address.ValidationError
		quantityErr *pricing.InvalidQuantityError
		inactiveErr *pricing.ProductInactiveError
		minimumErr  *pricing.MinimumPurchaseError
		missingErr  *pricing.ProductNotFoundError
		stepErr     *order.TransitionError
	)
	switch {
	case errors.As(err, &productErr), errors.As(err, &couponErr),
		errors.As(err, &userErr), errors.As(err, &addressErr),
		errors.As(err, &quantityErr), errors.As(err, &inactiveErr),
		errors.As(err, &minimumErr):
		return http.StatusBadRequest
	case errors.As(err, &missingErr):
		return http.StatusNotFound
	case errors.As(err, &stepErr):
		return http.StatusConflict
	}
	for _, s := range sentinels {
		if errors.Is(err, s.err) {
			return s.status
		}
	}
	return http.StatusInternalServerError
}

// writeError maps err to a status code and writes the error envelope.
// Unknown errors are logged and hidden behind a generic message.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusOf(err)
	if status == http.StatusInternalServerError {
		zctx.From(r.Context()).Error("Request failed",
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		writeMessage(w, status, "internal server error")
		return
	}

	var minimumErr *pricing.MinimumPurchaseError
	if errors.As(err, &minimumErr) {
		writeJSON(w, status, func(e *jx.Encoder) {
			e.ObjStart()
			e.FieldStart("code")
			e.Int(status)
			e.FieldStart("message")
			e.Str(err.Error())
			e.FieldStart("minimumPurchase")
			money(e, minimumErr.Minimum)
			e.ObjEnd()
		})
		return
	}
	writeMessage(w, status, rootMessage(err))
}

// rootMessage drops the wrapping context added by services, keeping the
// message of the domain error clients can act on.
func rootMessage(err error) string {
	for _, s := range sentinels {
		if errors.Is(err, s.err) {
			return s.err.Error()
		}
	}
	return err.Error()
}
