package address

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/go-faster/errors"
)

var (
	// ErrNotFound is returned when the address does not exist or belongs to
	// another user.
	ErrNotFound = errors.New("address not found")
	// ErrInvalidPostalCode is returned for CEPs not shaped like 00000-000.
	ErrInvalidPostalCode = errors.New("invalid postal code, use the format 00000-000 or 00000000")
	// ErrPostalCodeNotFound is returned when the lookup service knows no such CEP.
	ErrPostalCodeNotFound = errors.New("postal code not found")
)

var postalCodePattern = regexp.MustCompile(`^\d{5}-?\d{3}$`)

// NormalizePostalCode validates cep and strips its hyphen.
func NormalizePostalCode(cep string) (string, error) {
	cep = strings.TrimSpace(cep)
	if !postalCodePattern.MatchString(cep) {
		return "", ErrInvalidPostalCode
	}
	return strings.Replace(cep, "-", "", 1), nil
}

// Address is a delivery address owned by one user.
type Address struct {
	ID         string
	UserID     string
	PostalCode string
	Street     string
	Complement string
	District   string
	City       string
	State      string
	Number     string
	Label      string
	// Primary marks the default address. At most one address per user is
	// primary.
	Primary   bool
	CreatedAt time.Time
}

// Validate checks the required fields.
func (a *Address) Validate() error {
	if a.PostalCode == "" || a.Street == "" || a.District == "" ||
		a.City == "" || a.State == "" || a.Number == "" {
		return errors.New("postal code, street, district, city, state and number are required")
	}
	return nil
}

// Update holds a partial address modification. Nil fields are left unchanged.
type Update struct {
	PostalCode *string
	Street     *string
	Complement *string
	District   *string
	City       *string
	State      *string
	Number     *string
	Label      *string
	Primary    *bool
}

// Apply writes the non-nil fields of u onto a. Empty strings do not clear
// required fields.
func (u Update) Apply(a *Address) {
	setRequired := func(dst *string, v *string) {
		if v != nil && *v != "" {
			*dst = *v
		}
	}
	setRequired(&a.PostalCode, u.PostalCode)
	setRequired(&a.Street, u.Street)
	setRequired(&a.District, u.District)
	setRequired(&a.City, u.City)
	setRequired(&a.State, u.State)
	setRequired(&a.Number, u.Number)
	if u.Complement != nil {
		a.Complement = *u.Complement
	}
	if u.Label != nil {
		a.Label = *u.Label
	}
	if u.Primary != nil {
		a.Primary = *u.Primary
	}
}

// Location is what a postal code lookup resolves to.
type Location struct {
	PostalCode string
	Street     string
	Complement string
	District   string
	City       string
	State      string
}

// Locator resolves a normalized postal code.
type Locator interface {
	Lookup(ctx context.Context, postalCode string) (*Location, error)
}

// Repository provides address persistence. Writes of a primary address
// unmark the user's other addresses in the same transaction.
type Repository interface {
	Create(ctx context.Context, a *Address) error
	// ListByUser returns the primary address first, then newest first.
	ListByUser(ctx context.Context, userID string) ([]Address, error)
	Get(ctx context.Context, userID, id string) (*Address, error)
	Update(ctx context.Context, a *Address) error
	Delete(ctx context.Context, userID, id string) error
}
