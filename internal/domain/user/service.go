package user

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/xenking/techstore/internal/domain/auth"
)

// ValidationError wraps a rejected registration payload.
type ValidationError struct {
	Err error
}

func (e *ValidationError) Error() string { return e.Err.Error() }

func (e *ValidationError) Unwrap() error { return e.Err }

// Session is an authenticated account together with its bearer token.
type Session struct {
	User      *User
	Token     string
	ExpiresAt time.Time
}

// Service implements registration, login and token verification.
type Service struct {
	repo       Repository
	tokens     *Tokens
	bcryptCost int
	now        func() time.Time
}

// NewService creates a user Service. A zero bcryptCost selects
// bcrypt.DefaultCost.
func NewService(repo Repository, tokens *Tokens, bcryptCost int) *Service {
	if bcryptCost == 0 {
		bcryptCost = bcrypt.DefaultCost
	}
	return &Service{
		repo:       repo,
		tokens:     tokens,
		bcryptCost: bcryptCost,
		now:        time.Now,
	}
}

// Register creates a CUSTOMER account and signs it in.
func (s *Service) Register(ctx context.Context, r Registration) (*Session, error) {
	r.normalize()
	if err := r.validate(); err != nil {
		return nil, &ValidationError{Err: err}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(r.Password), s.bcryptCost)
	if err != nil {
		return nil, errors.Wrap(err, "hash password")
	}

	u := &User{
		ID:           uuid.New().String(),
		Username:     r.Username,
		Name:         r.Name,
		Email:        r.Email,
		PasswordHash: string(hash),
		Phone:        r.Phone,
		CPF:          r.CPF,
		Role:         auth.RoleCustomer,
		CreatedAt:    s.now(),
	}
	if err := s.repo.Create(ctx, u); err != nil {
		return nil, errors.Wrap(err, "create user")
	}

	return s.session(u)
}

// Login checks the password of the account matching identifier.
func (s *Service) Login(ctx context.Context, identifier, password string) (*Session, error) {
	if identifier == "" || password == "" {
		return nil, &ValidationError{Err: errors.New("username and password are required")}
	}

	u, err := s.repo.FindByLogin(ctx, identifier)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, errors.Wrap(err, "find user")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	return s.session(u)
}

// Authenticate verifies a bearer token.
func (s *Service) Authenticate(token string) (auth.Identity, error) {
	return s.tokens.Verify(token)
}

// Get returns the account behind an identity.
func (s *Service) Get(ctx context.Context, id string) (*User, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) session(u *User) (*Session, error) {
	token, expires, err := s.tokens.Issue(u.Identity())
	if err != nil {
		return nil, err
	}
	return &Session{User: u, Token: token, ExpiresAt: expires}, nil
}
