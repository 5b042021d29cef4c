package address

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
)

// ValidationError wraps a rejected address payload.
type ValidationError struct {
	Err error
}

func (e *ValidationError) Error() string { return e.Err.Error() }

func (e *ValidationError) Unwrap() error { return e.Err }

// Service manages a user's address book.
type Service struct {
	repo    Repository
	locator Locator
	now     func() time.Time
}

// NewService creates an address Service.
func NewService(repo Repository, locator Locator) *Service {
	return &Service{repo: repo, locator: locator, now: time.Now}
}

// LookupPostalCode resolves a CEP through the configured Locator.
func (s *Service) LookupPostalCode(ctx context.Context, cep string) (*Location, error) {
	normalized, err := NormalizePostalCode(cep)
	if err != nil {
		return nil, err
	}
	loc, err := s.locator.Lookup(ctx, normalized)
	if err != nil {
		if errors.Is(err, ErrPostalCodeNotFound) {
			return nil, err
		}
		return nil, errors.Wrap(err, "lookup postal code")
	}
	return loc, nil
}

// Create stores a new address for userID.
func (s *Service) Create(ctx context.Context, userID string, a Address) (*Address, error) {
	if err := a.Validate(); err != nil {
		return nil, &ValidationError{Err: err}
	}
	a.ID = uuid.New().String()
	a.UserID = userID
	a.CreatedAt = s.now()

	if err := s.repo.Create(ctx, &a); err != nil {
		return nil, errors.Wrap(err, "create address")
	}
	return &a, nil
}

// List returns the addresses of userID.
func (s *Service) List(ctx context.Context, userID string) ([]Address, error) {
	list, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "list addresses")
	}
	return list, nil
}

// Get returns one address owned by userID.
func (s *Service) Get(ctx context.Context, userID, id string) (*Address, error) {
	return s.repo.Get(ctx, userID, id)
}

// Update applies a partial modification to an address owned by userID.
func (s *Service) Update(ctx context.Context, userID, id string, u Update) (*Address, error) {
	a, err := s.repo.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	u.Apply(a)
	if err := a.Validate(); err != nil {
		return nil, &ValidationError{Err: err}
	}
	if err := s.repo.Update(ctx, a); err != nil {
		return nil, errors.Wrap(err, "update address")
	}
	return a, nil
}

// Delete removes an address owned by userID.
func (s *Service) Delete(ctx context.Context, userID, id string) error {
	return s.repo.Delete(ctx, userID, id)
}
