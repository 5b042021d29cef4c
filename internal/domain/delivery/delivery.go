package delivery

import (
	"context"
	"time"

	"github.com/go-faster/errors"
)

// Status is the shipping state of an order.
type Status string

const (
	StatusAwaitingShipment Status = "AWAITING_SHIPMENT"
	StatusInTransit        Status = "IN_TRANSIT"
	StatusOutForDelivery   Status = "OUT_FOR_DELIVERY"
	StatusDelivered        Status = "DELIVERED"
	StatusLost             Status = "LOST"
	StatusReturned         Status = "RETURNED"
)

// Valid reports whether s is a known delivery status.
func (s Status) Valid() bool {
	switch s {
	case StatusAwaitingShipment, StatusInTransit, StatusOutForDelivery,
		StatusDelivered, StatusLost, StatusReturned:
		return true
	}
	return false
}

const (
	// DefaultCarrier ships every new order.
	DefaultCarrier = "TechStore Express"
	// DefaultLeadTime is added to the order date for the first estimate.
	DefaultLeadTime = 7 * 24 * time.Hour
)

var (
	// ErrNotFound is returned when an order has no delivery record or the
	// order belongs to another user.
	ErrNotFound = errors.New("delivery not found")
	// ErrInvalidStatus is returned for unknown delivery statuses.
	ErrInvalidStatus = errors.New("invalid delivery status")
)

// Delivery tracks the shipment of one order.
type Delivery struct {
	ID      string
	OrderID string
	// UserID is the owner of the order, filled on reads.
	UserID       string
	EstimatedAt  time.Time
	DeliveredAt  *time.Time
	TrackingCode string
	Carrier      string
	Status       Status
}

// New returns the delivery record created alongside a new order.
func New(id, orderID string, orderedAt time.Time) *Delivery {
	return &Delivery{
		ID:          id,
		OrderID:     orderID,
		EstimatedAt: orderedAt.Add(DefaultLeadTime),
		Carrier:     DefaultCarrier,
		Status:      StatusAwaitingShipment,
	}
}

// Update holds a partial delivery modification. Nil or empty fields are left
// unchanged.
type Update struct {
	Status       *Status
	TrackingCode *string
	Carrier      *string
	EstimatedAt  *time.Time
}

// Repository provides delivery persistence. Records are created by the order
// store together with their order.
type Repository interface {
	GetByOrderID(ctx context.Context, orderID string) (*Delivery, error)
	Update(ctx context.Context, d *Delivery) error
}
