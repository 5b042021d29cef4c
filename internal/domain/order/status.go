package order

import (
	"fmt"

	"github.com/go-faster/errors"
)

// Status is the lifecycle state of an order.
type Status string

const (
	StatusPendingPayment    Status = "PENDING_PAYMENT"
	StatusProcessingPayment Status = "PROCESSING_PAYMENT"
	StatusPaid              Status = "PAID"
	StatusPicking           Status = "PICKING"
	StatusShipped           Status = "SHIPPED"
	StatusDelivered         Status = "DELIVERED"
	StatusCancelled         Status = "CANCELLED"
)

var (
	// ErrInvalidStatus is returned for unknown status values.
	ErrInvalidStatus = errors.New("invalid order status")
	// ErrStatusConflict is returned when the order changed concurrently.
	ErrStatusConflict = errors.New("order status changed concurrently")
)

var transitions = map[Status][]Status{
	StatusPendingPayment:    {StatusProcessingPayment, StatusPaid, StatusCancelled},
	StatusProcessingPayment: {StatusPaid, StatusPendingPayment, StatusCancelled},
	StatusPaid:              {StatusPicking, StatusCancelled},
	StatusPicking:           {StatusShipped, StatusCancelled},
	StatusShipped:           {StatusDelivered},
	StatusDelivered:         nil,
	StatusCancelled:         nil,
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	_, ok := transitions[s]
	return ok
}

// Terminal reports whether no transition leaves s.
func (s Status) Terminal() bool {
	return s.Valid() && len(transitions[s]) == 0
}

// CanTransition reports whether an order may move from s to next.
func (s Status) CanTransition(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// TransitionError indicates a status change the lifecycle does not allow.
type TransitionError struct {
	From Status
	To   Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot change order status from %s to %s", e.From, e.To)
}
