package handler

import (
	"net/http"
	"time"

	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/techstore/internal/domain/address"
	"github.com/xenking/techstore/internal/domain/coupon"
	"github.com/xenking/techstore/internal/domain/delivery"
	"github.com/xenking/techstore/internal/domain/order"
	"github.com/xenking/techstore/internal/domain/product"
	"github.com/xenking/techstore/internal/domain/user"
)

func writeJSON(w http.ResponseWriter, status int, fn func(e *jx.Encoder)) {
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)
	fn(e)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("code")
		e.Int(status)
		e.FieldStart("message")
		e.Str(msg)
		e.ObjEnd()
	})
}

func writeArray[T any](w http.ResponseWriter, items []T, enc func(*jx.Encoder, *T)) {
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ArrStart()
		for i := range items {
			enc(e, &items[i])
		}
		e.ArrEnd()
	})
}

// money writes d as a JSON number with two decimals.
func money(e *jx.Encoder, d decimal.Decimal) {
	e.Raw([]byte(d.StringFixed(2)))
}

func nullMoney(e *jx.Encoder, d decimal.NullDecimal) {
	if !d.Valid {
		e.Null()
		return
	}
	money(e, d.Decimal)
}

func timestamp(e *jx.Encoder, t time.Time) {
	e.Str(t.UTC().Format(time.RFC3339))
}

func encodeUser(e *jx.Encoder, u *user.User) {
	e.ObjStart()
	e.FieldStart("id")
	e.Str(u.ID)
	e.FieldStart("username")
	e.Str(u.Username)
	e.FieldStart("name")
	e.Str(u.Name)
	e.FieldStart("email")
	e.Str(u.Email)
	e.FieldStart("phone")
	e.Str(u.Phone)
	e.FieldStart("cpf")
	e.Str(u.CPF)
	e.FieldStart("role")
	e.Str(string(u.Role))
	e.FieldStart("createdAt")
	timestamp(e, u.CreatedAt)
	e.ObjEnd()
}

func encodeSession(e *jx.Encoder, s *user.Session) {
	e.ObjStart()
	e.FieldStart("token")
	e.Str(s.Token)
	e.FieldStart("expiresAt")
	timestamp(e, s.ExpiresAt)
	e.FieldStart("user")
	encodeUser(e, s.User)
	e.ObjEnd()
}

func encodeProduct(e *jx.Encoder, p *product.Product) {
	e.ObjStart()
	e.FieldStart("id")
	e.Str(p.ID)
	e.FieldStart("name")
	e.Str(p.Name)
	e.FieldStart("model")
	e.Str(p.Model)
	e.FieldStart("description")
	e.Str(p.Description)
	e.FieldStart("price")
	money(e, p.Price)
	e.FieldStart("imageUrl")
	e.Str(p.ImageURL)
	e.FieldStart("active")
	e.Bool(p.Active)
	e.FieldStart("createdAt")
	timestamp(e, p.CreatedAt)
	e.ObjEnd()
}

func encodeCoupon(e *jx.Encoder, c *coupon.Coupon) {
	e.ObjStart()
	e.FieldStart("id")
	e.Str(c.ID)
	e.FieldStart("code")
	e.Str(c.Code)
	e.FieldStart("description")
	e.Str(c.Description)
	e.FieldStart("discountKind")
	e.Str(string(c.DiscountKind))
	e.FieldStart("discountValue")
	money(e, c.DiscountValue)
	e.FieldStart("maxDiscountAmount")
	nullMoney(e, c.MaxDiscountAmount)
	e.FieldStart("minimumPurchase")
	nullMoney(e, c.MinimumPurchase)
	e.FieldStart("expiresAt")
	timestamp(e, c.ExpiresAt)
	e.FieldStart("active")
	e.Bool(c.Active)
	e.FieldStart("usageKind")
	e.Str(string(c.UsageKind))
	e.FieldStart("maxUses")
	if c.MaxUses != nil {
		e.Int(*c.MaxUses)
	} else {
		e.Null()
	}
	e.FieldStart("currentUses")
	e.Int(c.CurrentUses)
	e.ObjEnd()
}

func encodeOrder(e *jx.Encoder, o *order.Order) {
	e.ObjStart()
	e.FieldStart("id")
	e.Str(o.ID)
	e.FieldStart("userId")
	e.Str(o.UserID)
	e.FieldStart("addressId")
	e.Str(o.AddressID)
	e.FieldStart("couponCode")
	e.Str(o.CouponCode)
	e.FieldStart("status")
	e.Str(string(o.Status))
	e.FieldStart("paymentMethod")
	e.Str(string(o.PaymentMethod))
	e.FieldStart("items")
	e.ArrStart()
	for _, it := range o.Items {
		e.ObjStart()
		e.FieldStart("productId")
		e.Str(it.ProductID)
		e.FieldStart("name")
		e.Str(it.Name)
		e.FieldStart("quantity")
		e.Int(it.Quantity)
		e.FieldStart("unitPrice")
		money(e, it.UnitPrice)
		e.FieldStart("lineTotal")
		money(e, it.LineTotal)
		e.ObjEnd()
	}
	e.ArrEnd()
	e.FieldStart("subtotal")
	money(e, o.Subtotal)
	e.FieldStart("shippingFee")
	money(e, o.ShippingFee)
	e.FieldStart("discount")
	money(e, o.Discount)
	e.FieldStart("total")
	money(e, o.Total)
	e.FieldStart("createdAt")
	timestamp(e, o.CreatedAt)
	e.FieldStart("updatedAt")
	timestamp(e, o.UpdatedAt)
	e.ObjEnd()
}

func encodeLocation(e *jx.Encoder, l *address.Location) {
	e.ObjStart()
	e.FieldStart("postalCode")
	e.Str(l.PostalCode)
	e.FieldStart("street")
	e.Str(l.Street)
	e.FieldStart("complement")
	e.Str(l.Complement)
	e.FieldStart("district")
	e.Str(l.District)
	e.FieldStart("city")
	e.Str(l.City)
	e.FieldStart("state")
	e.Str(l.State)
	e.ObjEnd()
}

func encodeAddress(e *jx.Encoder, a *address.Address) {
	e.ObjStart()
	e.FieldStart("id")
	e.Str(a.ID)
	e.FieldStart("postalCode")
	e.Str(a.PostalCode)
	e.FieldStart("street")
	e.Str(a.Street)
	e.FieldStart("number")
	e.Str(a.Number)
	e.FieldStart("complement")
	e.Str(a.Complement)
	e.FieldStart("district")
	e.Str(a.District)
	e.FieldStart("city")
	e.Str(a.City)
	e.FieldStart("state")
	e.Str(a.State)
	e.FieldStart("label")
	e.Str(a.Label)
	e.FieldStart("primary")
	e.Bool(a.Primary)
	e.FieldStart("createdAt")
	timestamp(e, a.CreatedAt)
	e.ObjEnd()
}

func encodeDelivery(e *jx.Encoder, d *delivery.Delivery) {
	e.ObjStart()
	e.FieldStart("id")
	e.Str(d.ID)
	e.FieldStart("orderId")
	e.Str(d.OrderID)
	e.FieldStart("status")
	e.Str(string(d.Status))
	e.FieldStart("trackingCode")
	e.Str(d.TrackingCode)
	e.FieldStart("carrier")
	e.Str(d.Carrier)
	e.FieldStart("estimatedAt")
	timestamp(e, d.EstimatedAt)
	e.FieldStart("deliveredAt")
	if d.DeliveredAt != nil {
		timestamp(e, *d.DeliveredAt)
	} else {
		e.Null()
	}
	e.ObjEnd()
}
