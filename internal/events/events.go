// Package events publishes order lifecycle events.
package events

import (
	"context"
	"time"

	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"
)

// Event types.
const (
	TypeOrderCreated       = "order.created"
	TypeOrderStatusChanged = "order.status_changed"
)

// Event is a message routed by Key.
type Event interface {
	Type() string
	Key() string
	Encode(e *jx.Encoder)
}

// Publisher delivers events to downstream consumers.
type Publisher interface {
	Publish(ctx context.Context, events ...Event) error
	Close() error
}

// OrderCreated is emitted once an order has been committed.
type OrderCreated struct {
	OrderID    string
	UserID     string
	Total      decimal.Decimal
	CouponCode string
	ItemCount  int
	CreatedAt  time.Time
}

func (OrderCreated) Type() string { return TypeOrderCreated }

func (o OrderCreated) Key() string { return o.OrderID }

func (o OrderCreated) Encode(e *jx.Encoder) {
	e.ObjStart()
	e.FieldStart("type")
	e.Str(TypeOrderCreated)
	e.FieldStart("orderId")
	e.Str(o.OrderID)
	e.FieldStart("userId")
	e.Str(o.UserID)
	e.FieldStart("total")
	e.Raw([]byte(o.Total.StringFixed(2)))
	if o.CouponCode != "" {
		e.FieldStart("couponCode")
		e.Str(o.CouponCode)
	}
	e.FieldStart("itemCount")
	e.Int(o.ItemCount)
	e.FieldStart("createdAt")
	e.Str(o.CreatedAt.UTC().Format(time.RFC3339))
	e.ObjEnd()
}

// OrderStatusChanged is emitted after an administrative status transition.
type OrderStatusChanged struct {
	OrderID   string
	From      string
	To        string
	ChangedAt time.Time
}

func (OrderStatusChanged) Type() string { return TypeOrderStatusChanged }

func (o OrderStatusChanged) Key() string { return o.OrderID }

func (o OrderStatusChanged) Encode(e *jx.Encoder) {
	e.ObjStart()
	e.FieldStart("type")
	e.Str(TypeOrderStatusChanged)
	e.FieldStart("orderId")
	e.Str(o.OrderID)
	e.FieldStart("from")
	e.Str(o.From)
	e.FieldStart("to")
	e.Str(o.To)
	e.FieldStart("changedAt")
	e.Str(o.ChangedAt.UTC().Format(time.RFC3339))
	e.ObjEnd()
}

// Marshal encodes ev as JSON.
func Marshal(ev Event) []byte {
	var e jx.Encoder
	ev.Encode(&e)
	return e.Bytes()
}

// Nop discards every event.
type Nop struct{}

func (Nop) Publish(context.Context, ...Event) error { return nil }

func (Nop) Close() error { return nil }
