package product

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/techstore/internal/domain/pricing"
)

// ErrNotFound is returned when a requested product does not exist.
var ErrNotFound = errors.New("product not found")

// Product represents a catalog item available for purchase.
type Product struct {
	ID          string
	Name        string
	Description string
	Model       string
	Price       decimal.Decimal
	ImageURL    string
	// Active is false once the product has been withdrawn from sale. Inactive
	// products remain readable by ID so past orders keep resolving.
	Active    bool
	CreatedAt time.Time
}

// Snapshot returns the fields the pricing engine works with.
func (p *Product) Snapshot() pricing.Product {
	return pricing.Product{
		ID:     p.ID,
		Name:   p.Name,
		Price:  p.Price,
		Active: p.Active,
	}
}

// Validate checks the required catalog fields.
func (p *Product) Validate() error {
	if p.Name == "" {
		return errors.New("name is required")
	}
	if p.Model == "" {
		return errors.New("model is required")
	}
	if !p.Price.IsPositive() {
		return errors.New("price must be greater than 0")
	}
	return nil
}

// Update holds a partial product modification. Nil fields are left unchanged.
type Update struct {
	Name        *string
	Description *string
	Model       *string
	Price       *decimal.Decimal
	ImageURL    *string
	Active      *bool
}

// Apply writes the non-nil fields of u onto p.
func (u Update) Apply(p *Product) {
	if u.Name != nil {
		p.Name = *u.Name
	}
	if u.Description != nil {
		p.Description = *u.Description
	}
	if u.Model != nil {
		p.Model = *u.Model
	}
	if u.Price != nil {
		p.Price = *u.Price
	}
	if u.ImageURL != nil {
		p.ImageURL = *u.ImageURL
	}
	if u.Active != nil {
		p.Active = *u.Active
	}
}

// Repository defines persistence operations for the product catalog.
type Repository interface {
	// ListActive returns active products ordered by name.
	ListActive(ctx context.Context) ([]Product, error)
	GetByID(ctx context.Context, id string) (*Product, error)
	// GetByIDs returns the products matching any of the given IDs, active or
	// not. Missing IDs are silently skipped.
	GetByIDs(ctx context.Context, ids []string) ([]Product, error)
	Create(ctx context.Context, p *Product) error
	Update(ctx context.Context, p *Product) error
	Deactivate(ctx context.Context, id string) error
}
