package coupon

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
)

// ValidationError wraps a rejected coupon definition.
type ValidationError struct {
	Err error
}

func (e *ValidationError) Error() string { return e.Err.Error() }

func (e *ValidationError) Unwrap() error { return e.Err }

// Service manages the coupon catalog. Discount computation lives in the
// pricing engine; this service only lists and creates coupons.
type Service struct {
	repo Repository
	now  func() time.Time
}

// NewService creates a coupon Service backed by the given Repository.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// ListAvailable returns coupons a customer can currently redeem.
func (s *Service) ListAvailable(ctx context.Context) ([]Coupon, error) {
	coupons, err := s.repo.ListAvailable(ctx, s.now())
	if err != nil {
		return nil, errors.Wrap(err, "list coupons")
	}
	return coupons, nil
}

// Create validates and stores a new coupon. The code is stored upper-case.
func (s *Service) Create(ctx context.Context, c Coupon) (*Coupon, error) {
	c.Code = NormalizeCode(c.Code)
	if err := c.Validate(); err != nil {
		return nil, &ValidationError{Err: err}
	}
	if c.ExpiresAt.IsZero() {
		return nil, &ValidationError{Err: errors.New("expiry date is required")}
	}

	c.ID = uuid.New().String()
	c.CurrentUses = 0
	c.CreatedAt = s.now()

	if err := s.repo.Create(ctx, &c); err != nil {
		return nil, errors.Wrap(err, "create coupon")
	}
	return &c, nil
}
