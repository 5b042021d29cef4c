package user

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/go-faster/errors"

	"github.com/xenking/techstore/internal/domain/auth"
)

var (
	// ErrNotFound is returned by repositories when no account matches.
	ErrNotFound = errors.New("user not found")
	// ErrAlreadyExists is returned when the username, email or CPF is taken.
	ErrAlreadyExists = errors.New("username, email or CPF already registered")
	// ErrInvalidCredentials covers both unknown accounts and wrong passwords.
	ErrInvalidCredentials = errors.New("invalid credentials")
)

var cpfPattern = regexp.MustCompile(`^\d{3}\.\d{3}\.\d{3}-\d{2}$`)

// User is a registered account.
type User struct {
	ID           string
	Username     string
	Name         string
	Email        string
	PasswordHash string
	Phone        string
	CPF          string
	Role         auth.Role
	CreatedAt    time.Time
}

// Identity returns the token subject for u.
func (u *User) Identity() auth.Identity {
	return auth.Identity{UserID: u.ID, Role: u.Role}
}

// Registration is the input of Service.Register.
type Registration struct {
	Username string
	Name     string
	Email    string
	Password string
	Phone    string
	CPF      string
}

func (r *Registration) normalize() {
	r.Username = strings.TrimSpace(r.Username)
	r.Name = strings.TrimSpace(r.Name)
	r.Email = strings.TrimSpace(r.Email)
	r.Phone = strings.TrimSpace(r.Phone)
	r.CPF = strings.TrimSpace(r.CPF)
}

func (r *Registration) validate() error {
	if r.Username == "" || r.Name == "" || r.Email == "" || r.Password == "" {
		return errors.New("username, name, email and password are required")
	}
	if r.CPF != "" && !cpfPattern.MatchString(r.CPF) {
		return errors.New("invalid CPF, use the format XXX.XXX.XXX-XX")
	}
	return nil
}

// Repository provides account persistence.
type Repository interface {
	// Create stores a new account, returning ErrAlreadyExists on a unique
	// username, email or CPF conflict.
	Create(ctx context.Context, u *User) error
	GetByID(ctx context.Context, id string) (*User, error)
	// FindByLogin matches identifier case-insensitively against username,
	// name and email.
	FindByLogin(ctx context.Context, identifier string) (*User, error)
}
