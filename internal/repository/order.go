package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/techstore/internal/domain/coupon"
	"github.com/xenking/techstore/internal/domain/delivery"
	"github.com/xenking/techstore/internal/domain/order"
)

const (
	consumeCouponSQL = `UPDATE coupons SET current_uses = current_uses + 1
		WHERE id = $1 AND (max_uses IS NULL OR current_uses < max_uses)
		RETURNING usage_kind`

	lockUserSQL = `SELECT id FROM users WHERE id = $1 FOR UPDATE`

	createOrderSQL = `INSERT INTO orders (id, user_id, address_id, coupon_id, coupon_code, status,
		payment_method, subtotal, shipping_fee, discount, total, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	createOrderItemSQL = `INSERT INTO order_items (order_id, line_no, product_id, name, quantity, unit_price, line_total)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	createDeliverySQL = `INSERT INTO deliveries (id, order_id, estimated_at, delivered_at, tracking_code, carrier, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	orderColumns = `id, user_id, COALESCE(address_id, ''), COALESCE(coupon_id, ''), coupon_code, status,
		payment_method, subtotal, shipping_fee, discount, total, created_at, updated_at`

	countActiveOrdersSQL = `SELECT count(*) FROM orders WHERE user_id = $1 AND status <> $2`

	listOrdersByUserSQL = `SELECT ` + orderColumns + `
		FROM orders WHERE user_id = $1 ORDER BY created_at DESC, id`

	listAllOrdersSQL = `SELECT ` + orderColumns + `
		FROM orders ORDER BY created_at DESC, id`

	getOrderSQL = `SELECT ` + orderColumns + `
		FROM orders WHERE id = $1`

	listOrderItemsSQL = `SELECT order_id, product_id, name, quantity, unit_price, line_total
		FROM order_items WHERE order_id = ANY($1) ORDER BY order_id, line_no`

	updateOrderStatusSQL = `UPDATE orders SET status = $3, updated_at = $4
		WHERE id = $1 AND status = $2`
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Create persists a new order with its items and delivery record. A coupon
// use is consumed in the same transaction with a conditional update, so
// concurrent orders can never push current_uses past max_uses. For
// FIRST_ORDER coupons the user row is locked before counting earlier
// orders, which serializes concurrent checkouts of the same user.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order, d *delivery.Delivery) error {
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if o.CouponID != "" {
			if err := consumeCoupon(ctx, tx, o); err != nil {
				return err
			}
		}

		_, err := tx.Exec(ctx, createOrderSQL,
			o.ID, o.UserID, nullable(o.AddressID), nullable(o.CouponID), o.CouponCode, string(o.Status),
			string(o.PaymentMethod), o.Subtotal, o.ShippingFee, o.Discount, o.Total, o.CreatedAt, o.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("inserting order: %w", err)
		}

		batch := &pgx.Batch{}
		for i, it := range o.Items {
			batch.Queue(createOrderItemSQL, o.ID, i+1, it.ProductID, it.Name, it.Quantity, it.UnitPrice, it.LineTotal)
		}
		batch.Queue(createDeliverySQL,
			d.ID, d.OrderID, d.EstimatedAt, d.DeliveredAt, d.TrackingCode, d.Carrier, string(d.Status),
		)
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("inserting order items and delivery: %w", err)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, coupon.ErrUsageLimitReached) || errors.Is(err, coupon.ErrFirstOrderOnly) {
			return err
		}
		return fmt.Errorf("creating order %q: %w", o.ID, err)
	}
	return nil
}

func consumeCoupon(ctx context.Context, tx pgx.Tx, o *order.Order) error {
	var usage string
	if err := tx.QueryRow(ctx, consumeCouponSQL, o.CouponID).Scan(&usage); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return coupon.ErrUsageLimitReached
		}
		return fmt.Errorf("consuming coupon %q: %w", o.CouponCode, err)
	}
	if coupon.UsageKind(usage) != coupon.UsageFirstOrder {
		return nil
	}

	var locked string
	if err := tx.QueryRow(ctx, lockUserSQL, o.UserID).Scan(&locked); err != nil {
		return fmt.Errorf("locking user %q: %w", o.UserID, err)
	}
	var n int
	if err := tx.QueryRow(ctx, countActiveOrdersSQL, o.UserID, string(order.StatusCancelled)).Scan(&n); err != nil {
		return fmt.Errorf("counting orders for user %q: %w", o.UserID, err)
	}
	if n > 0 {
		return coupon.ErrFirstOrderOnly
	}
	return nil
}

func (r *OrderRepository) CountActiveByUser(ctx context.Context, userID string) (int, error) {
	var n int
	if err := r.pool.QueryRow(ctx, countActiveOrdersSQL, userID, string(order.StatusCancelled)).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting orders for user %q: %w", userID, err)
	}
	return n, nil
}

func (r *OrderRepository) ListByUser(ctx context.Context, userID string) ([]order.Order, error) {
	rows, err := r.pool.Query(ctx, listOrdersByUserSQL, userID)
	if err != nil {
		return nil, fmt.Errorf("listing orders for user %q: %w", userID, err)
	}
	return r.collectWithItems(ctx, rows)
}

func (r *OrderRepository) ListAll(ctx context.Context) ([]order.Order, error) {
	rows, err := r.pool.Query(ctx, listAllOrdersSQL)
	if err != nil {
		return nil, fmt.Errorf("listing orders: %w", err)
	}
	return r.collectWithItems(ctx, rows)
}

func (r *OrderRepository) Get(ctx context.Context, id string) (*order.Order, error) {
	rows, err := r.pool.Query(ctx, getOrderSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting order %q: %w", id, err)
	}

	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("getting order %q: %w", id, err)
	}

	orders := []order.Order{o}
	if err := r.attachItems(ctx, orders); err != nil {
		return nil, err
	}
	return &orders[0], nil
}

func (r *OrderRepository) UpdateStatus(ctx context.Context, id string, from, to order.Status, at time.Time) error {
	tag, err := r.pool.Exec(ctx, updateOrderStatusSQL, id, string(from), string(to), at)
	if err != nil {
		return fmt.Errorf("updating order %q status: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return order.ErrStatusConflict
	}
	return nil
}

func (r *OrderRepository) collectWithItems(ctx context.Context, rows pgx.Rows) ([]order.Order, error) {
	orders, err := pgx.CollectRows(rows, scanOrder)
	if err != nil {
		return nil, fmt.Errorf("scanning orders: %w", err)
	}
	if err := r.attachItems(ctx, orders); err != nil {
		return nil, err
	}
	return orders, nil
}

// attachItems loads the items of all given orders with a single query.
func (r *OrderRepository) attachItems(ctx context.Context, orders []order.Order) error {
	if len(orders) == 0 {
		return nil
	}

	ids := make([]string, len(orders))
	index := make(map[string]int, len(orders))
	for i, o := range orders {
		ids[i] = o.ID
		index[o.ID] = i
	}

	rows, err := r.pool.Query(ctx, listOrderItemsSQL, ids)
	if err != nil {
		return fmt.Errorf("listing order items: %w", err)
	}

	var (
		orderID string
		it      order.Item
	)
	_, err = pgx.ForEachRow(rows,
		[]any{&orderID, &it.ProductID, &it.Name, &it.Quantity, &it.UnitPrice, &it.LineTotal},
		func() error {
			i := index[orderID]
			orders[i].Items = append(orders[i].Items, it)
			return nil
		},
	)
	if err != nil {
		return fmt.Errorf("scanning order items: %w", err)
	}
	return nil
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var (
		o             order.Order
		status        string
		paymentMethod string
	)
	err := row.Scan(
		&o.ID, &o.UserID, &o.AddressID, &o.CouponID, &o.CouponCode, &status,
		&paymentMethod, &o.Subtotal, &o.ShippingFee, &o.Discount, &o.Total, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return order.Order{}, err
	}
	o.Status = order.Status(status)
	o.PaymentMethod = order.PaymentMethod(paymentMethod)
	return o, nil
}
