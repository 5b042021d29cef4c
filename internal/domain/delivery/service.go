package delivery

import (
	"context"
	"time"

	"github.com/go-faster/errors"
)

// Service exposes delivery tracking.
type Service struct {
	repo Repository
	now  func() time.Time
}

// NewService creates a delivery Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// GetForUser returns the delivery of an order owned by userID.
func (s *Service) GetForUser(ctx context.Context, userID, orderID string) (*Delivery, error) {
	d, err := s.repo.GetByOrderID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if d.UserID != userID {
		return nil, ErrNotFound
	}
	return d, nil
}

// Update applies an administrative change. Moving to DELIVERED stamps the
// delivery time.
func (s *Service) Update(ctx context.Context, orderID string, u Update) (*Delivery, error) {
	if u.Status != nil && !u.Status.Valid() {
		return nil, ErrInvalidStatus
	}

	d, err := s.repo.GetByOrderID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if u.Status != nil {
		d.Status = *u.Status
		if d.Status == StatusDelivered {
			now := s.now()
			d.DeliveredAt = &now
		}
	}
	if u.TrackingCode != nil && *u.TrackingCode != "" {
		d.TrackingCode = *u.TrackingCode
	}
	if u.Carrier != nil && *u.Carrier != "" {
		d.Carrier = *u.Carrier
	}
	if u.EstimatedAt != nil && !u.EstimatedAt.IsZero() {
		d.EstimatedAt = *u.EstimatedAt
	}

	if err := s.repo.Update(ctx, d); err != nil {
		return nil, errors.Wrap(err, "update delivery")
	}
	return d, nil
}
