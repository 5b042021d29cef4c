package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/techstore/internal/domain/auth"
	"github.com/xenking/techstore/internal/domain/user"
)

const (
	userColumns = `id, username, name, email, password_hash, phone, COALESCE(cpf, ''), role, created_at`

	createUserSQL = `INSERT INTO users (id, username, name, email, password_hash, phone, cpf, role, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	getUserByIDSQL = `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	findUserByLoginSQL = `SELECT ` + userColumns + ` FROM users
		WHERE LOWER(username) = LOWER($1) OR LOWER(email) = LOWER($1) OR LOWER(name) = LOWER($1)
		ORDER BY LOWER(username) = LOWER($1) DESC, LOWER(email) = LOWER($1) DESC, created_at
		LIMIT 1`

	upsertUserSQL = `INSERT INTO users (id, username, name, email, password_hash, phone, cpf, role, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (username) DO UPDATE
		SET name = EXCLUDED.name, email = EXCLUDED.email, password_hash = EXCLUDED.password_hash, role = EXCLUDED.role`
)

var _ user.Repository = (*UserRepository)(nil)

// UserRepository implements user.Repository backed by PostgreSQL.
type UserRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository returns a UserRepository that uses the given pool.
func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

func (r *UserRepository) Create(ctx context.Context, u *user.User) error {
	_, err := r.pool.Exec(ctx, createUserSQL, userArgs(u)...)
	if err != nil {
		if isUniqueViolation(err) {
			return user.ErrAlreadyExists
		}
		return fmt.Errorf("creating user %q: %w", u.Username, err)
	}
	return nil
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*user.User, error) {
	return r.one(ctx, getUserByIDSQL, id)
}

// FindByLogin prefers a username match, then email, then display name.
func (r *UserRepository) FindByLogin(ctx context.Context, identifier string) (*user.User, error) {
	return r.one(ctx, findUserByLoginSQL, identifier)
}

// Upsert creates or refreshes an account by username. Used by the seed tool
// to provision the administrator.
func (r *UserRepository) Upsert(ctx context.Context, u *user.User) error {
	if _, err := r.pool.Exec(ctx, upsertUserSQL, userArgs(u)...); err != nil {
		return fmt.Errorf("upserting user %q: %w", u.Username, err)
	}
	return nil
}

func (r *UserRepository) one(ctx context.Context, query, arg string) (*user.User, error) {
	rows, err := r.pool.Query(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("getting user %q: %w", arg, err)
	}

	u, err := pgx.CollectExactlyOneRow(rows, scanUser)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, user.ErrNotFound
		}
		return nil, fmt.Errorf("getting user %q: %w", arg, err)
	}
	return &u, nil
}

func userArgs(u *user.User) []any {
	return []any{
		u.ID, u.Username, u.Name, u.Email, u.PasswordHash, u.Phone, nullable(u.CPF), string(u.Role), u.CreatedAt,
	}
}

func scanUser(row pgx.CollectableRow) (user.User, error) {
	var (
		u    user.User
		role string
	)
	err := row.Scan(&u.ID, &u.Username, &u.Name, &u.Email, &u.PasswordHash, &u.Phone, &u.CPF, &role, &u.CreatedAt)
	if err != nil {
		return user.User{}, err
	}
	u.Role = auth.Role(role)
	return u, nil
}
