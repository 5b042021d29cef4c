package product

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
)

// ValidationError wraps a rejected product payload.
type ValidationError struct {
	Err error
}

func (e *ValidationError) Error() string { return e.Err.Error() }

func (e *ValidationError) Unwrap() error { return e.Err }

// Service implements catalog management on top of a Repository.
type Service struct {
	repo Repository
	now  func() time.Time
}

// NewService creates a product Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// List returns the active catalog.
func (s *Service) List(ctx context.Context) ([]Product, error) {
	products, err := s.repo.ListActive(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list products")
	}
	return products, nil
}

// Get returns a product by ID, including inactive ones.
func (s *Service) Get(ctx context.Context, id string) (*Product, error) {
	return s.repo.GetByID(ctx, id)
}

// Create validates and stores a new active product.
func (s *Service) Create(ctx context.Context, p Product) (*Product, error) {
	if err := p.Validate(); err != nil {
		return nil, &ValidationError{Err: err}
	}
	p.ID = uuid.New().String()
	p.Active = true
	p.CreatedAt = s.now()

	if err := s.repo.Create(ctx, &p); err != nil {
		return nil, errors.Wrap(err, "create product")
	}
	return &p, nil
}

// Update applies a partial modification and re-validates the result.
func (s *Service) Update(ctx context.Context, id string, u Update) (*Product, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	u.Apply(p)
	if err := p.Validate(); err != nil {
		return nil, &ValidationError{Err: err}
	}
	if err := s.repo.Update(ctx, p); err != nil {
		return nil, errors.Wrap(err, "update product")
	}
	return p, nil
}

// Deactivate withdraws a product from sale without deleting it.
func (s *Service) Deactivate(ctx context.Context, id string) error {
	return s.repo.Deactivate(ctx, id)
}
