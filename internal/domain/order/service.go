package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"github.com/xenking/techstore/internal/domain/address"
	"github.com/xenking/techstore/internal/domain/coupon"
	"github.com/xenking/techstore/internal/domain/delivery"
	"github.com/xenking/techstore/internal/domain/pricing"
	"github.com/xenking/techstore/internal/domain/product"
	"github.com/xenking/techstore/internal/events"
)

const instrumentationName = "github.com/xenking/techstore/internal/domain/order"

// Sentinel errors for order placement.
var (
	ErrInvalidPaymentMethod = errors.New("payment method is required and must be one of CREDIT_CARD, PIX, BOLETO, ONLINE_DEBIT, DIGITAL_WALLET")
	ErrAddressRequired      = errors.New("delivery address is required")
	ErrAddressNotFound      = errors.New("delivery address not found")
	ErrCouponCodeRequired   = errors.New("coupon code is required")
)

// PlaceOrderRequest holds the input for placing an order.
type PlaceOrderRequest struct {
	UserID        string
	Items         []pricing.LineItemRequest
	CouponCode    string
	PaymentMethod PaymentMethod
	AddressID     string
}

// CouponQuote is the outcome of checking a coupon against a purchase amount.
type CouponQuote struct {
	Coupon      coupon.Coupon
	Discount    decimal.Decimal
	FinalAmount decimal.Decimal
}

// Deps lists the collaborators of a Service. Nil providers fall back to
// no-op telemetry and a nil Events publisher discards events.
type Deps struct {
	Products       product.Repository
	Coupons        coupon.Repository
	Addresses      address.Repository
	Orders         Repository
	Events         events.Publisher
	TracerProvider trace.TracerProvider
	MeterProvider  metric.MeterProvider
}

// Service encapsulates order placement and lifecycle management.
type Service struct {
	products  product.Repository
	coupons   coupon.Repository
	addresses address.Repository
	orders    Repository
	events    events.Publisher

	tracer         trace.Tracer
	ordersPlaced   metric.Int64Counter
	orderTotal     metric.Float64Histogram
	pricingFailure metric.Int64Counter

	now   func() time.Time
	newID func() string
}

// NewService creates an order Service with the required domain dependencies.
func NewService(deps Deps) (*Service, error) {
	if deps.TracerProvider == nil {
		deps.TracerProvider = tracenoop.NewTracerProvider()
	}
	if deps.MeterProvider == nil {
		deps.MeterProvider = metricnoop.NewMeterProvider()
	}
	if deps.Events == nil {
		deps.Events = events.Nop{}
	}

	meter := deps.MeterProvider.Meter(instrumentationName)
	placed, err := meter.Int64Counter("techstore.orders.placed",
		metric.WithDescription("Orders committed"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "orders placed counter")
	}
	total, err := meter.Float64Histogram("techstore.orders.total",
		metric.WithDescription("Order total amount"),
		metric.WithUnit("BRL"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "order total histogram")
	}
	failures, err := meter.Int64Counter("techstore.pricing.failures",
		metric.WithDescription("Orders rejected while pricing, by reason"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "pricing failures counter")
	}

	return &Service{
		products:       deps.Products,
		coupons:        deps.Coupons,
		addresses:      deps.Addresses,
		orders:         deps.Orders,
		events:         deps.Events,
		tracer:         deps.TracerProvider.Tracer(instrumentationName),
		ordersPlaced:   placed,
		orderTotal:     total,
		pricingFailure: failures,
		now:            time.Now,
		newID:          func() string { return uuid.New().String() },
	}, nil
}

// PlaceOrder prices the cart, checks coupon eligibility and persists the
// order with its delivery record.
func (s *Service) PlaceOrder(ctx context.Context, req PlaceOrderRequest) (_ *Order, rerr error) {
	ctx, span := s.tracer.Start(ctx, "order.PlaceOrder",
		trace.WithAttributes(
			attribute.Int("order.items", len(req.Items)),
			attribute.Bool("order.coupon", req.CouponCode != ""),
		),
	)
	defer func() {
		if rerr != nil {
			span.RecordError(rerr)
			span.SetStatus(codes.Error, rerr.Error())
		}
		span.End()
	}()

	if len(req.Items) == 0 {
		return nil, s.failed(ctx, pricing.ErrEmptyCart)
	}
	if !req.PaymentMethod.Valid() {
		return nil, ErrInvalidPaymentMethod
	}
	if req.AddressID == "" {
		return nil, ErrAddressRequired
	}
	if _, err := s.addresses.Get(ctx, req.UserID, req.AddressID); err != nil {
		if errors.Is(err, address.ErrNotFound) {
			return nil, ErrAddressNotFound
		}
		return nil, errors.Wrap(err, "get address")
	}

	products, err := s.fetchProducts(ctx, req.Items)
	if err != nil {
		return nil, err
	}
	found, err := s.fetchCoupon(ctx, req.CouponCode)
	if err != nil {
		return nil, err
	}

	now := s.now()
	summary, err := pricing.PriceOrder(req.Items, req.CouponCode, products, pricing.CouponByCode(found), now)
	if err != nil {
		return nil, s.failed(ctx, err)
	}

	if applied := summary.AppliedCoupon; applied != nil {
		if err := s.checkCouponEligibility(ctx, req.UserID, applied); err != nil {
			return nil, s.failed(ctx, err)
		}
	}

	o := newOrder(s.newID(), req, summary, now)
	d := delivery.New(s.newID(), o.ID, now)
	if err := s.orders.Create(ctx, o, d); err != nil {
		if errors.Is(err, coupon.ErrUsageLimitReached) || errors.Is(err, coupon.ErrFirstOrderOnly) {
			return nil, s.failed(ctx, err)
		}
		return nil, errors.Wrap(err, "create order")
	}

	s.ordersPlaced.Add(ctx, 1, metric.WithAttributes(
		attribute.String("payment_method", string(o.PaymentMethod)),
	))
	s.orderTotal.Record(ctx, o.Total.InexactFloat64())
	span.SetAttributes(attribute.String("order.id", o.ID))

	s.publish(ctx, events.OrderCreated{
		OrderID:    o.ID,
		UserID:     o.UserID,
		Total:      o.Total,
		CouponCode: o.CouponCode,
		ItemCount:  len(o.Items),
		CreatedAt:  o.CreatedAt,
	})

	return o, nil
}

// QuoteCoupon checks code against a purchase amount without placing an
// order.
func (s *Service) QuoteCoupon(ctx context.Context, code string, amount decimal.Decimal) (*CouponQuote, error) {
	if coupon.NormalizeCode(code) == "" {
		return nil, ErrCouponCodeRequired
	}
	found, err := s.fetchCoupon(ctx, code)
	if err != nil {
		return nil, err
	}
	c, discount, err := pricing.ResolveCoupon(code, amount, s.now(), pricing.CouponByCode(found))
	if err != nil {
		return nil, err
	}
	return &CouponQuote{
		Coupon:      c,
		Discount:    discount,
		FinalAmount: amount.Sub(discount),
	}, nil
}

// ListByUser returns the caller's orders, newest first.
func (s *Service) ListByUser(ctx context.Context, userID string) ([]Order, error) {
	orders, err := s.orders.ListByUser(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "list orders")
	}
	return orders, nil
}

// ListAll returns every order, newest first.
func (s *Service) ListAll(ctx context.Context) ([]Order, error) {
	orders, err := s.orders.ListAll(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list all orders")
	}
	return orders, nil
}

// GetForUser returns one order owned by userID.
func (s *Service) GetForUser(ctx context.Context, userID, id string) (*Order, error) {
	o, err := s.orders.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if o.UserID != userID {
		return nil, ErrNotFound
	}
	return o, nil
}

// UpdateStatus moves an order along its lifecycle.
func (s *Service) UpdateStatus(ctx context.Context, id string, next Status) (*Order, error) {
	if !next.Valid() {
		return nil, ErrInvalidStatus
	}

	o, err := s.orders.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !o.Status.CanTransition(next) {
		return nil, &TransitionError{From: o.Status, To: next}
	}

	now := s.now()
	if err := s.orders.UpdateStatus(ctx, id, o.Status, next, now); err != nil {
		if errors.Is(err, ErrStatusConflict) {
			return nil, err
		}
		return nil, errors.Wrap(err, "update order status")
	}

	prev := o.Status
	o.Status = next
	o.UpdatedAt = now

	s.publish(ctx, events.OrderStatusChanged{
		OrderID:   o.ID,
		From:      string(prev),
		To:        string(next),
		ChangedAt: now,
	})
	return o, nil
}

func (s *Service) fetchProducts(ctx context.Context, items []pricing.LineItemRequest) (pricing.ProductLookup, error) {
	seen := make(map[string]struct{}, len(items))
	ids := make([]string, 0, len(items))
	for _, item := range items {
		if _, ok := seen[item.ProductID]; ok {
			continue
		}
		seen[item.ProductID] = struct{}{}
		ids = append(ids, item.ProductID)
	}

	fetched, err := s.products.GetByIDs(ctx, ids)
	if err != nil {
		return nil, errors.Wrap(err, "get products")
	}
	snapshots := make([]pricing.Product, len(fetched))
	for i := range fetched {
		snapshots[i] = fetched[i].Snapshot()
	}
	return pricing.ProductsByID(snapshots), nil
}

// fetchCoupon returns nil without error when code is empty or unknown.
func (s *Service) fetchCoupon(ctx context.Context, code string) (*coupon.Coupon, error) {
	code = coupon.NormalizeCode(code)
	if code == "" {
		return nil, nil
	}
	c, err := s.coupons.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, coupon.ErrNotFound) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "find coupon")
	}
	return c, nil
}

// checkCouponEligibility rejects exhausted caps and repeat FIRST_ORDER use.
// Both are re-checked inside the transaction that stores the order.
func (s *Service) checkCouponEligibility(ctx context.Context, userID string, c *pricing.AppliedCoupon) error {
	if c.MaxUses != nil && c.CurrentUses >= *c.MaxUses {
		return coupon.ErrUsageLimitReached
	}
	if c.UsageKind != coupon.UsageFirstOrder {
		return nil
	}
	n, err := s.orders.CountActiveByUser(ctx, userID)
	if err != nil {
		return errors.Wrap(err, "count orders")
	}
	if n > 0 {
		return coupon.ErrFirstOrderOnly
	}
	return nil
}

func (s *Service) failed(ctx context.Context, err error) error {
	s.pricingFailure.Add(ctx, 1, metric.WithAttributes(
		attribute.String("reason", failureReason(err)),
	))
	return err
}

func (s *Service) publish(ctx context.Context, ev events.Event) {
	if err := s.events.Publish(ctx, ev); err != nil {
		zctx.From(ctx).Warn("Publish event",
			zap.String("type", ev.Type()),
			zap.String("key", ev.Key()),
			zap.Error(err),
		)
	}
}

func failureReason(err error) string {
	var (
		invalidQty *pricing.InvalidQuantityError
		notFound   *pricing.ProductNotFoundError
		inactive   *pricing.ProductInactiveError
		minimum    *pricing.MinimumPurchaseError
	)
	switch {
	case errors.Is(err, pricing.ErrEmptyCart):
		return "empty_cart"
	case errors.As(err, &invalidQty):
		return "invalid_quantity"
	case errors.As(err, &notFound):
		return "product_not_found"
	case errors.As(err, &inactive):
		return "product_inactive"
	case errors.Is(err, pricing.ErrCouponNotFound):
		return "coupon_not_found"
	case errors.As(err, &minimum):
		return "minimum_purchase"
	case errors.Is(err, coupon.ErrUsageLimitReached):
		return "coupon_exhausted"
	case errors.Is(err, coupon.ErrFirstOrderOnly):
		return "coupon_first_order"
	default:
		return "other"
	}
}

func newOrder(id string, req PlaceOrderRequest, summary pricing.OrderSummary, now time.Time) *Order {
	items := make([]Item, len(summary.LineItems))
	for i, li := range summary.LineItems {
		items[i] = Item{
			ProductID: li.ProductID,
			Name:      li.Name,
			Quantity:  li.Quantity,
			UnitPrice: li.UnitPrice,
			LineTotal: li.LineTotal,
		}
	}

	o := &Order{
		ID:            id,
		UserID:        req.UserID,
		AddressID:     req.AddressID,
		Status:        StatusPendingPayment,
		PaymentMethod: req.PaymentMethod,
		Items:         items,
		Subtotal:      summary.Subtotal,
		ShippingFee:   summary.ShippingFee,
		Discount:      summary.DiscountAmount,
		Total:         summary.Total,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if c := summary.AppliedCoupon; c != nil {
		o.CouponID = c.ID
		o.CouponCode = c.Code
	}
	return o
}
