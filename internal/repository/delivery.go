package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/techstore/internal/domain/delivery"
)

const (
	getDeliveryByOrderSQL = `SELECT d.id, d.order_id, o.user_id, d.estimated_at, d.delivered_at,
			d.tracking_code, d.carrier, d.status
		FROM deliveries d JOIN orders o ON o.id = d.order_id
		WHERE d.order_id = $1`

	updateDeliverySQL = `UPDATE deliveries
		SET estimated_at = $2, delivered_at = $3, tracking_code = $4, carrier = $5, status = $6
		WHERE order_id = $1`
)

var _ delivery.Repository = (*DeliveryRepository)(nil)

// DeliveryRepository implements delivery.Repository backed by PostgreSQL.
type DeliveryRepository struct {
	pool *pgxpool.Pool
}

// NewDeliveryRepository returns a DeliveryRepository that uses the given pool.
func NewDeliveryRepository(pool *pgxpool.Pool) *DeliveryRepository {
	return &DeliveryRepository{pool: pool}
}

// GetByOrderID returns the delivery of an order together with the order
// owner.
func (r *DeliveryRepository) GetByOrderID(ctx context.Context, orderID string) (*delivery.Delivery, error) {
	rows, err := r.pool.Query(ctx, getDeliveryByOrderSQL, orderID)
	if err != nil {
		return nil, fmt.Errorf("getting delivery for order %q: %w", orderID, err)
	}

	d, err := pgx.CollectExactlyOneRow(rows, scanDelivery)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, delivery.ErrNotFound
		}
		return nil, fmt.Errorf("getting delivery for order %q: %w", orderID, err)
	}
	return &d, nil
}

func (r *DeliveryRepository) Update(ctx context.Context, d *delivery.Delivery) error {
	tag, err := r.pool.Exec(ctx, updateDeliverySQL,
		d.OrderID, d.EstimatedAt, d.DeliveredAt, d.TrackingCode, d.Carrier, string(d.Status),
	)
	if err != nil {
		return fmt.Errorf("updating delivery for order %q: %w", d.OrderID, err)
	}
	if tag.RowsAffected() == 0 {
		return delivery.ErrNotFound
	}
	return nil
}

func scanDelivery(row pgx.CollectableRow) (delivery.Delivery, error) {
	var (
		d      delivery.Delivery
		status string
	)
	err := row.Scan(&d.ID, &d.OrderID, &d.UserID, &d.EstimatedAt, &d.DeliveredAt, &d.TrackingCode, &d.Carrier, &status)
	if err != nil {
		return delivery.Delivery{}, err
	}
	d.Status = delivery.Status(status)
	return d, nil
}
