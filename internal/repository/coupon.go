package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/techstore/internal/domain/coupon"
)

const (
	couponColumns = `id, code, description, discount_kind, discount_value, max_discount_amount,
		minimum_purchase, expires_at, active, usage_kind, max_uses, current_uses, created_at`

	findCouponByCodeSQL = `SELECT ` + couponColumns + `
		FROM coupons WHERE code = UPPER($1)`

	listAvailableCouponsSQL = `SELECT ` + couponColumns + `
		FROM coupons WHERE active AND expires_at >= $1 ORDER BY expires_at, code`

	createCouponSQL = `INSERT INTO coupons (` + couponColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	upsertCouponSQL = `INSERT INTO coupons (` + couponColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (code) DO UPDATE
		SET description = EXCLUDED.description, discount_kind = EXCLUDED.discount_kind,
			discount_value = EXCLUDED.discount_value, max_discount_amount = EXCLUDED.max_discount_amount,
			minimum_purchase = EXCLUDED.minimum_purchase, expires_at = EXCLUDED.expires_at,
			active = EXCLUDED.active, usage_kind = EXCLUDED.usage_kind, max_uses = EXCLUDED.max_uses`
)

var _ coupon.Repository = (*CouponRepository)(nil)

// CouponRepository implements coupon.Repository backed by PostgreSQL.
type CouponRepository struct {
	pool *pgxpool.Pool
}

// NewCouponRepository returns a CouponRepository that uses the given pool.
func NewCouponRepository(pool *pgxpool.Pool) *CouponRepository {
	return &CouponRepository{pool: pool}
}

// FindByCode looks up a coupon by code. Codes are stored upper-case, so the
// argument is upper-cased in the query.
func (r *CouponRepository) FindByCode(ctx context.Context, code string) (*coupon.Coupon, error) {
	rows, err := r.pool.Query(ctx, findCouponByCodeSQL, code)
	if err != nil {
		return nil, fmt.Errorf("finding coupon %q: %w", code, err)
	}

	c, err := pgx.CollectExactlyOneRow(rows, scanCoupon)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, coupon.ErrNotFound
		}
		return nil, fmt.Errorf("finding coupon %q: %w", code, err)
	}
	return &c, nil
}

func (r *CouponRepository) ListAvailable(ctx context.Context, now time.Time) ([]coupon.Coupon, error) {
	rows, err := r.pool.Query(ctx, listAvailableCouponsSQL, now)
	if err != nil {
		return nil, fmt.Errorf("listing coupons: %w", err)
	}
	return pgx.CollectRows(rows, scanCoupon)
}

func (r *CouponRepository) Create(ctx context.Context, c *coupon.Coupon) error {
	_, err := r.pool.Exec(ctx, createCouponSQL, couponArgs(c)...)
	if err != nil {
		if isUniqueViolation(err) {
			return coupon.ErrDuplicateCode
		}
		return fmt.Errorf("creating coupon %q: %w", c.Code, err)
	}
	return nil
}

// Upsert inserts coupons or refreshes their rules by code, keeping the
// recorded usage count. Used by the seed and ingest tools.
func (r *CouponRepository) Upsert(ctx context.Context, coupons []coupon.Coupon) error {
	batch := &pgx.Batch{}
	for i := range coupons {
		batch.Queue(upsertCouponSQL, couponArgs(&coupons[i])...)
	}
	if err := r.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("upserting coupons: %w", err)
	}
	return nil
}

func couponArgs(c *coupon.Coupon) []any {
	return []any{
		c.ID, c.Code, c.Description, string(c.DiscountKind), c.DiscountValue, c.MaxDiscountAmount,
		c.MinimumPurchase, c.ExpiresAt, c.Active, string(c.UsageKind), c.MaxUses, c.CurrentUses, c.CreatedAt,
	}
}

func scanCoupon(row pgx.CollectableRow) (coupon.Coupon, error) {
	var (
		c            coupon.Coupon
		discountKind string
		usageKind    string
	)
	err := row.Scan(
		&c.ID, &c.Code, &c.Description, &discountKind, &c.DiscountValue, &c.MaxDiscountAmount,
		&c.MinimumPurchase, &c.ExpiresAt, &c.Active, &usageKind, &c.MaxUses, &c.CurrentUses, &c.CreatedAt,
	)
	if err != nil {
		return coupon.Coupon{}, err
	}
	c.DiscountKind = coupon.DiscountKind(discountKind)
	c.UsageKind = coupon.UsageKind(usageKind)
	return c, nil
}
