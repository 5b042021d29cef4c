package user

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/xenking/techstore/internal/domain/auth"
)

type mockUserRepo struct {
	users     []*User
	createErr error
	findErr   error
}

func (m *mockUserRepo) Create(_ context.Context, u *User) error {
	if m.createErr != nil {
		return m.createErr
	}
	for _, existing := range m.users {
		if existing.Username == u.Username || existing.Email == u.Email ||
			(u.CPF != "" && existing.CPF == u.CPF) {
			return ErrAlreadyExists
		}
	}
	m.users = append(m.users, u)
	return nil
}

func (m *mockUserRepo) GetByID(_ context.Context, id string) (*User, error) {
	for _, u := range m.users {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, ErrNotFound
}

func (m *mockUserRepo) FindByLogin(_ context.Context, identifier string) (*User, error) {
	if m.findErr != nil {
		return nil, m.findErr
	}
	for _, u := range m.users {
		if strings.EqualFold(u.Username, identifier) ||
			strings.EqualFold(u.Name, identifier) ||
			strings.EqualFold(u.Email, identifier) {
			return u, nil
		}
	}
	return nil, ErrNotFound
}

func newTestService(repo Repository) *Service {
	return NewService(repo, NewTokens([]byte("test-secret"), time.Hour), bcrypt.MinCost)
}

func validRegistration() Registration {
	return Registration{
		Username: "maria",
		Name:     "Maria Silva",
		Email:    "maria@example.com",
		Password: "s3cret",
		CPF:      "123.456.789-09",
	}
}

func TestService_Register(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(r *Registration)
		wantErr string
	}{
		{name: "valid", mutate: func(*Registration) {}},
		{name: "without cpf", mutate: func(r *Registration) { r.CPF = "" }},
		{name: "missing email", mutate: func(r *Registration) { r.Email = "  " }, wantErr: "username, name, email and password are required"},
		{name: "missing password", mutate: func(r *Registration) { r.Password = "" }, wantErr: "username, name, email and password are required"},
		{name: "malformed cpf", mutate: func(r *Registration) { r.CPF = "12345678909" }, wantErr: "invalid CPF, use the format XXX.XXX.XXX-XX"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &mockUserRepo{}
			svc := newTestService(repo)

			r := validRegistration()
			tt.mutate(&r)
			sess, err := svc.Register(context.Background(), r)

			if tt.wantErr != "" {
				var vErr *ValidationError
				require.ErrorAs(t, err, &vErr)
				assert.EqualError(t, err, tt.wantErr)
				assert.Empty(t, repo.users)
				return
			}

			require.NoError(t, err)
			assert.NotEmpty(t, sess.Token)
			assert.Equal(t, auth.RoleCustomer, sess.User.Role)
			assert.NotEqual(t, r.Password, sess.User.PasswordHash)
			require.NoError(t, bcrypt.CompareHashAndPassword([]byte(sess.User.PasswordHash), []byte(r.Password)))
		})
	}
}

func TestService_RegisterDuplicate(t *testing.T) {
	repo := &mockUserRepo{}
	svc := newTestService(repo)

	_, err := svc.Register(context.Background(), validRegistration())
	require.NoError(t, err)

	again := validRegistration()
	again.Username = "other"
	_, err = svc.Register(context.Background(), again)
	require.ErrorIs(t, err, ErrAlreadyExists)
}

func TestService_Login(t *testing.T) {
	repo := &mockUserRepo{}
	svc := newTestService(repo)
	_, err := svc.Register(context.Background(), validRegistration())
	require.NoError(t, err)

	tests := []struct {
		name       string
		identifier string
		password   string
		wantErr    error
	}{
		{name: "by username", identifier: "maria", password: "s3cret"},
		{name: "by email any case", identifier: "MARIA@example.com", password: "s3cret"},
		{name: "by name", identifier: "maria silva", password: "s3cret"},
		{name: "wrong password", identifier: "maria", password: "nope", wantErr: ErrInvalidCredentials},
		{name: "unknown user", identifier: "joao", password: "s3cret", wantErr: ErrInvalidCredentials},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sess, err := svc.Login(context.Background(), tt.identifier, tt.password)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "maria", sess.User.Username)

			id, err := svc.Authenticate(sess.Token)
			require.NoError(t, err)
			assert.Equal(t, sess.User.ID, id.UserID)
			assert.Equal(t, auth.RoleCustomer, id.Role)
		})
	}
}

func TestService_LoginValidation(t *testing.T) {
	svc := newTestService(&mockUserRepo{})
	_, err := svc.Login(context.Background(), "", "x")
	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
}

func TestService_LoginRepoError(t *testing.T) {
	svc := newTestService(&mockUserRepo{findErr: errors.New("db down")})
	_, err := svc.Login(context.Background(), "maria", "s3cret")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrInvalidCredentials)
}

func TestTokens(t *testing.T) {
	issuedAt := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	tokens := NewTokens([]byte("secret"), time.Hour)
	tokens.now = func() time.Time { return issuedAt }

	tok, expires, err := tokens.Issue(auth.Identity{UserID: "u1", Role: auth.RoleAdmin})
	require.NoError(t, err)
	assert.Equal(t, issuedAt.Add(time.Hour), expires)

	t.Run("round trip", func(t *testing.T) {
		id, err := tokens.Verify(tok)
		require.NoError(t, err)
		assert.Equal(t, auth.Identity{UserID: "u1", Role: auth.RoleAdmin}, id)
	})

	t.Run("expired", func(t *testing.T) {
		later := NewTokens([]byte("secret"), time.Hour)
		later.now = func() time.Time { return issuedAt.Add(2 * time.Hour) }
		_, err := later.Verify(tok)
		require.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("wrong secret", func(t *testing.T) {
		other := NewTokens([]byte("other"), time.Hour)
		other.now = tokens.now
		_, err := other.Verify(tok)
		require.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := tokens.Verify("not.a.token")
		require.ErrorIs(t, err, ErrInvalidToken)
	})
}
