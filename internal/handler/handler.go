// Package handler exposes the TechStore domain services over HTTP.
package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/techstore/internal/domain/address"
	"github.com/xenking/techstore/internal/domain/auth"
	"github.com/xenking/techstore/internal/domain/coupon"
	"github.com/xenking/techstore/internal/domain/delivery"
	"github.com/xenking/techstore/internal/domain/order"
	"github.com/xenking/techstore/internal/domain/product"
	"github.com/xenking/techstore/internal/domain/user"
)

// Users is the account service used by the auth routes and middleware.
type Users interface {
	Register(ctx context.Context, r user.Registration) (*user.Session, error)
	Login(ctx context.Context, identifier, password string) (*user.Session, error)
	Authenticate(token string) (auth.Identity, error)
	Get(ctx context.Context, id string) (*user.User, error)
}

// Products is the catalog service.
type Products interface {
	List(ctx context.Context) ([]product.Product, error)
	Get(ctx context.Context, id string) (*product.Product, error)
	Create(ctx context.Context, p product.Product) (*product.Product, error)
	Update(ctx context.Context, id string, u product.Update) (*product.Product, error)
	Deactivate(ctx context.Context, id string) error
}

// Coupons is the coupon catalog service.
type Coupons interface {
	ListAvailable(ctx context.Context) ([]coupon.Coupon, error)
	Create(ctx context.Context, c coupon.Coupon) (*coupon.Coupon, error)
}

// Orders is the order placement and lifecycle service.
type Orders interface {
	PlaceOrder(ctx context.Context, req order.PlaceOrderRequest) (*order.Order, error)
	QuoteCoupon(ctx context.Context, code string, amount decimal.Decimal) (*order.CouponQuote, error)
	ListByUser(ctx context.Context, userID string) ([]order.Order, error)
	ListAll(ctx context.Context) ([]order.Order, error)
	GetForUser(ctx context.Context, userID, id string) (*order.Order, error)
	UpdateStatus(ctx context.Context, id string, next order.Status) (*order.Order, error)
}

// Addresses is the address book service.
type Addresses interface {
	LookupPostalCode(ctx context.Context, cep string) (*address.Location, error)
	Create(ctx context.Context, userID string, a address.Address) (*address.Address, error)
	List(ctx context.Context, userID string) ([]address.Address, error)
	Get(ctx context.Context, userID, id string) (*address.Address, error)
	Update(ctx context.Context, userID, id string, u address.Update) (*address.Address, error)
	Delete(ctx context.Context, userID, id string) error
}

// Deliveries is the shipment tracking service.
type Deliveries interface {
	GetForUser(ctx context.Context, userID, orderID string) (*delivery.Delivery, error)
	Update(ctx context.Context, orderID string, u delivery.Update) (*delivery.Delivery, error)
}

var (
	_ Users      = (*user.Service)(nil)
	_ Products   = (*product.Service)(nil)
	_ Coupons    = (*coupon.Service)(nil)
	_ Orders     = (*order.Service)(nil)
	_ Addresses  = (*address.Service)(nil)
	_ Deliveries = (*delivery.Service)(nil)
)

// Handler serves the /api routes.
type Handler struct {
	users      Users
	products   Products
	coupons    Coupons
	orders     Orders
	addresses  Addresses
	deliveries Deliveries
}

// Deps lists the services behind the API.
type Deps struct {
	Users      Users
	Products   Products
	Coupons    Coupons
	Orders     Orders
	Addresses  Addresses
	Deliveries Deliveries
}

// New constructs a Handler.
func New(deps Deps) *Handler {
	return &Handler{
		users:      deps.Users,
		products:   deps.Products,
		coupons:    deps.Coupons,
		orders:     deps.Orders,
		addresses:  deps.Addresses,
		deliveries: deps.Deliveries,
	}
}

// Routes mounts the API under /api on r.
func (h *Handler) Routes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Get("/", h.Index)

		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", h.Register)
			r.Post("/login", h.Login)
			r.With(h.RequireAuth).Get("/verify", h.Verify)
		})

		r.Route("/products", func(r chi.Router) {
			r.Get("/", h.ListProducts)
			r.Get("/{id}", h.GetProduct)
			r.Group(func(r chi.Router) {
				r.Use(h.RequireAuth, RequireAdmin)
				r.Post("/", h.CreateProduct)
				r.Put("/{id}", h.UpdateProduct)
				r.Delete("/{id}", h.DeactivateProduct)
			})
		})

		r.Route("/coupons", func(r chi.Router) {
			r.Use(h.RequireAuth)
			r.Get("/", h.ListCoupons)
			r.Post("/validate", h.ValidateCoupon)
			r.With(RequireAdmin).Post("/", h.CreateCoupon)
		})

		r.Route("/orders", func(r chi.Router) {
			r.Use(h.RequireAuth)
			r.Post("/", h.PlaceOrder)
			r.Get("/", h.ListOrders)
			r.With(RequireAdmin).Get("/admin/all", h.ListAllOrders)
			r.Get("/{id}", h.GetOrder)
			r.With(RequireAdmin).Put("/{id}/status", h.UpdateOrderStatus)
		})

		r.Route("/addresses", func(r chi.Router) {
			r.Get("/postal-code/{cep}", h.LookupPostalCode)
			r.Group(func(r chi.Router) {
				r.Use(h.RequireAuth)
				r.Post("/", h.CreateAddress)
				r.Get("/", h.ListAddresses)
				r.Get("/{id}", h.GetAddress)
				r.Put("/{id}", h.UpdateAddress)
				r.Delete("/{id}", h.DeleteAddress)
			})
		})

		r.Route("/delivery", func(r chi.Router) {
			r.Use(h.RequireAuth)
			r.Get("/{orderId}", h.GetDelivery)
			r.With(RequireAdmin).Put("/{orderId}", h.UpdateDelivery)
		})
	})
}

// NewRouter returns a chi router serving h. Middlewares run inside the
// router, after route matching has set up the chi route context.
func NewRouter(h *Handler, middlewares ...func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(middlewares...)
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeMessage(w, http.StatusNotFound, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeMessage(w, http.StatusMethodNotAllowed, "method not allowed")
	})
	h.Routes(r)
	return r
}

// Index answers GET /api.
func (h *Handler) Index(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("message")
		e.Str("TechStore API running")
		e.ObjEnd()
	})
}
