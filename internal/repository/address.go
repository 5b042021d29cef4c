package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/techstore/internal/domain/address"
)

const (
	addressColumns = `id, user_id, postal_code, street, complement, district, city, state, number, label, is_primary, created_at`

	unmarkPrimarySQL = `UPDATE addresses SET is_primary = FALSE
		WHERE user_id = $1 AND id <> $2 AND is_primary`

	createAddressSQL = `INSERT INTO addresses (` + addressColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	listAddressesSQL = `SELECT ` + addressColumns + `
		FROM addresses WHERE user_id = $1 ORDER BY is_primary DESC, created_at DESC, id`

	getAddressSQL = `SELECT ` + addressColumns + `
		FROM addresses WHERE id = $1 AND user_id = $2`

	updateAddressSQL = `UPDATE addresses
		SET postal_code = $3, street = $4, complement = $5, district = $6, city = $7, state = $8,
			number = $9, label = $10, is_primary = $11
		WHERE id = $1 AND user_id = $2`

	deleteAddressSQL = `DELETE FROM addresses WHERE id = $1 AND user_id = $2`
)

var _ address.Repository = (*AddressRepository)(nil)

// AddressRepository implements address.Repository backed by PostgreSQL.
type AddressRepository struct {
	pool *pgxpool.Pool
}

// NewAddressRepository returns an AddressRepository that uses the given pool.
func NewAddressRepository(pool *pgxpool.Pool) *AddressRepository {
	return &AddressRepository{pool: pool}
}

func (r *AddressRepository) Create(ctx context.Context, a *address.Address) error {
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if err := unmarkPrimary(ctx, tx, a); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, createAddressSQL,
			a.ID, a.UserID, a.PostalCode, a.Street, a.Complement, a.District, a.City, a.State,
			a.Number, a.Label, a.Primary, a.CreatedAt,
		)
		return err
	})
	if err != nil {
		return fmt.Errorf("creating address: %w", err)
	}
	return nil
}

func (r *AddressRepository) ListByUser(ctx context.Context, userID string) ([]address.Address, error) {
	rows, err := r.pool.Query(ctx, listAddressesSQL, userID)
	if err != nil {
		return nil, fmt.Errorf("listing addresses: %w", err)
	}
	return pgx.CollectRows(rows, scanAddress)
}

// Get returns the address only if it belongs to userID.
func (r *AddressRepository) Get(ctx context.Context, userID, id string) (*address.Address, error) {
	rows, err := r.pool.Query(ctx, getAddressSQL, id, userID)
	if err != nil {
		return nil, fmt.Errorf("getting address %q: %w", id, err)
	}

	a, err := pgx.CollectExactlyOneRow(rows, scanAddress)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, address.ErrNotFound
		}
		return nil, fmt.Errorf("getting address %q: %w", id, err)
	}
	return &a, nil
}

func (r *AddressRepository) Update(ctx context.Context, a *address.Address) error {
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if err := unmarkPrimary(ctx, tx, a); err != nil {
			return err
		}
		tag, err := tx.Exec(ctx, updateAddressSQL,
			a.ID, a.UserID, a.PostalCode, a.Street, a.Complement, a.District, a.City, a.State,
			a.Number, a.Label, a.Primary,
		)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return address.ErrNotFound
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, address.ErrNotFound) {
			return err
		}
		return fmt.Errorf("updating address %q: %w", a.ID, err)
	}
	return nil
}

// Delete removes the address. Orders that referenced it keep their history
// with a NULL address.
func (r *AddressRepository) Delete(ctx context.Context, userID, id string) error {
	tag, err := r.pool.Exec(ctx, deleteAddressSQL, id, userID)
	if err != nil {
		return fmt.Errorf("deleting address %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return address.ErrNotFound
	}
	return nil
}

func unmarkPrimary(ctx context.Context, tx pgx.Tx, a *address.Address) error {
	if !a.Primary {
		return nil
	}
	if _, err := tx.Exec(ctx, unmarkPrimarySQL, a.UserID, a.ID); err != nil {
		return fmt.Errorf("unmarking primary address: %w", err)
	}
	return nil
}

func scanAddress(row pgx.CollectableRow) (address.Address, error) {
	var a address.Address
	err := row.Scan(
		&a.ID, &a.UserID, &a.PostalCode, &a.Street, &a.Complement, &a.District, &a.City, &a.State,
		&a.Number, &a.Label, &a.Primary, &a.CreatedAt,
	)
	return a, err
}
