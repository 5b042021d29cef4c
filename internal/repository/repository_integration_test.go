//go:build integration

package repository

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tc "github.com/testcontainers/testcontainers-go/modules/compose"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/xenking/techstore/internal/domain/address"
	"github.com/xenking/techstore/internal/domain/auth"
	"github.com/xenking/techstore/internal/domain/coupon"
	"github.com/xenking/techstore/internal/domain/delivery"
	"github.com/xenking/techstore/internal/domain/order"
	"github.com/xenking/techstore/internal/domain/product"
	"github.com/xenking/techstore/internal/domain/user"
)

var pool *pgxpool.Pool

func TestMain(m *testing.M) {
	os.Exit(testMain(m))
}

func testMain(m *testing.M) int {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	dc, err := tc.NewDockerCompose("testdata/docker-compose.yml")
	if err != nil {
		log.Fatalf("compose init: %v", err)
	}
	defer func() {
		if err := dc.Down(context.Background(), tc.RemoveOrphans(true), tc.RemoveVolumes(true)); err != nil {
			log.Printf("compose down: %v", err)
		}
	}()

	err = dc.
		WaitForService("postgres", wait.ForLog("database system is ready to accept connections").WithOccurrence(2)).
		Up(ctx, tc.Wait(true))
	if err != nil {
		log.Fatalf("compose up: %v", err)
	}

	pg, err := dc.ServiceContainer(ctx, "postgres")
	if err != nil {
		log.Fatalf("postgres container: %v", err)
	}
	host, err := pg.Host(ctx)
	if err != nil {
		log.Fatalf("host: %v", err)
	}
	port, err := pg.MappedPort(ctx, "5432/tcp")
	if err != nil {
		log.Fatalf("mapped port: %v", err)
	}

	url := fmt.Sprintf("postgres://techstore:techstore@%s:%s/techstore?sslmode=disable", host, port.Port())
	pool, err = NewPool(ctx, url)
	if err != nil {
		log.Fatalf("pool: %v", err)
	}
	defer pool.Close()

	if err := RunMigrations(ctx, pool); err != nil {
		log.Fatalf("migrate: %v", err)
	}
	// The schema is idempotent.
	if err := RunMigrations(ctx, pool); err != nil {
		log.Fatalf("migrate twice: %v", err)
	}

	return m.Run()
}

var testNow = time.Now().UTC().Truncate(time.Microsecond)

func createUser(t *testing.T) *user.User {
	t.Helper()
	id := uuid.NewString()
	u := &user.User{
		ID:           id,
		Username:     "u-" + id[:8],
		Name:         "User " + id[:8],
		Email:        id[:8] + "@example.com",
		PasswordHash: "hash",
		Role:         auth.RoleCustomer,
		CreatedAt:    testNow,
	}
	require.NoError(t, NewUserRepository(pool).Create(context.Background(), u))
	return u
}

func createProduct(t *testing.T, price string) *product.Product {
	t.Helper()
	p := &product.Product{
		ID:        uuid.NewString(),
		Name:      "Product " + price,
		Model:     "M-" + price,
		Price:     decimal.RequireFromString(price),
		Active:    true,
		CreatedAt: testNow,
	}
	require.NoError(t, NewProductRepository(pool).Create(context.Background(), p))
	return p
}

func createCoupon(t *testing.T, maxUses *int) *coupon.Coupon {
	t.Helper()
	return createCouponWithUsage(t, coupon.UsageGeneral, maxUses)
}

func createCouponWithUsage(t *testing.T, usage coupon.UsageKind, maxUses *int) *coupon.Coupon {
	t.Helper()
	c := &coupon.Coupon{
		ID:            uuid.NewString(),
		Code:          coupon.NormalizeCode("C" + uuid.NewString()[:8]),
		DiscountKind:  coupon.DiscountPercentage,
		DiscountValue: decimal.NewFromInt(10),
		ExpiresAt:     testNow.Add(24 * time.Hour),
		Active:        true,
		UsageKind:     usage,
		MaxUses:       maxUses,
		CreatedAt:     testNow,
	}
	require.NoError(t, NewCouponRepository(pool).Create(context.Background(), c))
	return c
}

func newOrder(u *user.User, p *product.Product, c *coupon.Coupon) (*order.Order, *delivery.Delivery) {
	o := &order.Order{
		ID:            uuid.NewString(),
		UserID:        u.ID,
		Status:        order.StatusPendingPayment,
		PaymentMethod: order.PaymentPix,
		Items: []order.Item{{
			ProductID: p.ID, Name: p.Name, Quantity: 2, UnitPrice: p.Price, LineTotal: p.Price.Mul(decimal.NewFromInt(2)),
		}},
		Subtotal:    p.Price.Mul(decimal.NewFromInt(2)),
		ShippingFee: decimal.RequireFromString("15.90"),
		Discount:    decimal.Zero,
		CreatedAt:   testNow,
		UpdatedAt:   testNow,
	}
	if c != nil {
		o.CouponID = c.ID
		o.CouponCode = c.Code
	}
	o.Total = o.Subtotal.Add(o.ShippingFee)
	return o, delivery.New(uuid.NewString(), o.ID, o.CreatedAt)
}

func TestProductRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewProductRepository(pool)
	p := createProduct(t, "129.90")

	got, err := repo.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.True(t, p.Price.Equal(got.Price))

	require.NoError(t, repo.Deactivate(ctx, p.ID))

	active, err := repo.ListActive(ctx)
	require.NoError(t, err)
	for _, a := range active {
		assert.NotEqual(t, p.ID, a.ID)
	}

	byIDs, err := repo.GetByIDs(ctx, []string{p.ID, "missing"})
	require.NoError(t, err)
	require.Len(t, byIDs, 1)
	assert.False(t, byIDs[0].Active)

	_, err = repo.GetByID(ctx, "missing")
	require.ErrorIs(t, err, product.ErrNotFound)
	require.ErrorIs(t, repo.Deactivate(ctx, "missing"), product.ErrNotFound)
}

func TestCouponRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewCouponRepository(pool)
	c := createCoupon(t, nil)

	got, err := repo.FindByCode(ctx, strings.ToLower(c.Code))
	require.NoError(t, err)
	assert.Equal(t, c.ID, got.ID)
	assert.Nil(t, got.MaxUses)
	assert.False(t, got.MaxDiscountAmount.Valid)

	dup := *c
	dup.ID = uuid.NewString()
	require.ErrorIs(t, repo.Create(ctx, &dup), coupon.ErrDuplicateCode)

	_, err = repo.FindByCode(ctx, "NOPE-NOPE")
	require.ErrorIs(t, err, coupon.ErrNotFound)

	available, err := repo.ListAvailable(ctx, testNow)
	require.NoError(t, err)
	codes := make([]string, 0, len(available))
	for _, a := range available {
		codes = append(codes, a.Code)
	}
	assert.Contains(t, codes, c.Code)
}

func TestOrderRepository_CreateAndRead(t *testing.T) {
	ctx := context.Background()
	repo := NewOrderRepository(pool)
	u := createUser(t)
	p := createProduct(t, "49.95")
	c := createCoupon(t, nil)

	o, d := newOrder(u, p, c)
	require.NoError(t, repo.Create(ctx, o, d))

	got, err := repo.Get(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, c.Code, got.CouponCode)
	require.Len(t, got.Items, 1)
	assert.True(t, got.Items[0].LineTotal.Equal(decimal.RequireFromString("99.90")))

	listed, err := repo.ListByUser(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Len(t, listed[0].Items, 1)

	n, err := repo.CountActiveByUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	stored, err := NewCouponRepository(pool).FindByCode(ctx, c.Code)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.CurrentUses)

	dl, err := NewDeliveryRepository(pool).GetByOrderID(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, u.ID, dl.UserID)
	assert.Equal(t, delivery.StatusAwaitingShipment, dl.Status)

	require.NoError(t, repo.UpdateStatus(ctx, o.ID, order.StatusPendingPayment, order.StatusCancelled, testNow))
	require.ErrorIs(t, repo.UpdateStatus(ctx, o.ID, order.StatusPendingPayment, order.StatusPaid, testNow), order.ErrStatusConflict)

	n, err = repo.CountActiveByUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = repo.Get(ctx, "missing")
	require.ErrorIs(t, err, order.ErrNotFound)
}

func TestOrderRepository_CouponCapUnderConcurrency(t *testing.T) {
	ctx := context.Background()
	repo := NewOrderRepository(pool)
	u := createUser(t)
	p := createProduct(t, "10.00")
	limit := 3
	c := createCoupon(t, &limit)

	const attempts = 10
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		ok       int
		rejected int
	)
	for range attempts {
		wg.Add(1)
		go func() {
			defer wg.Done()
			o, d := newOrder(u, p, c)
			err := repo.Create(ctx, o, d)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case assert.ErrorIs(t, err, coupon.ErrUsageLimitReached):
				rejected++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, limit, ok)
	assert.Equal(t, attempts-limit, rejected)

	stored, err := NewCouponRepository(pool).FindByCode(ctx, c.Code)
	require.NoError(t, err)
	assert.Equal(t, limit, stored.CurrentUses)

	orders, err := repo.ListByUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Len(t, orders, limit, "rejected orders leave no rows")
}

func TestUserRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewUserRepository(pool)
	u := createUser(t)

	got, err := repo.FindByLogin(ctx, u.Email)
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	got, err = repo.FindByLogin(ctx, "U-"+u.Username[2:])
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	dup := *u
	dup.ID = uuid.NewString()
	dup.Username = "other-" + u.Username
	require.ErrorIs(t, repo.Create(ctx, &dup), user.ErrAlreadyExists)

	_, err = repo.GetByID(ctx, "missing")
	require.ErrorIs(t, err, user.ErrNotFound)
}

func TestAddressRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewAddressRepository(pool)
	u := createUser(t)
	other := createUser(t)

	mk := func(primary bool) *address.Address {
		a := &address.Address{
			ID: uuid.NewString(), UserID: u.ID, PostalCode: "01310100", Street: "Avenida Paulista",
			District: "Bela Vista", City: "São Paulo", State: "SP", Number: "1000",
			Primary: primary, CreatedAt: time.Now().UTC(),
		}
		require.NoError(t, repo.Create(ctx, a))
		return a
	}

	first := mk(true)
	second := mk(true)

	list, err := repo.ListByUser(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID)
	assert.True(t, list[0].Primary)
	assert.False(t, list[1].Primary)

	first.Primary = true
	require.NoError(t, repo.Update(ctx, first))
	list, err = repo.ListByUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, list[0].ID)

	_, err = repo.Get(ctx, other.ID, first.ID)
	require.ErrorIs(t, err, address.ErrNotFound)
	require.ErrorIs(t, repo.Delete(ctx, other.ID, first.ID), address.ErrNotFound)
	require.NoError(t, repo.Delete(ctx, u.ID, first.ID))
}

func TestOrderRepository_FirstOrderUnderConcurrency(t *testing.T) {
	ctx := context.Background()
	repo := NewOrderRepository(pool)
	u := createUser(t)
	p := createProduct(t, "10.00")
	welcome := createCouponWithUsage(t, coupon.UsageFirstOrder, nil)
	other := createCouponWithUsage(t, coupon.UsageFirstOrder, nil)

	const attempts = 8
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		ok       int
		rejected int
	)
	for i := range attempts {
		c := welcome
		if i%2 == 1 {
			c = other
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			o, d := newOrder(u, p, c)
			err := repo.Create(ctx, o, d)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case assert.ErrorIs(t, err, coupon.ErrFirstOrderOnly):
				rejected++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, ok)
	assert.Equal(t, attempts-1, rejected)

	n, err := repo.CountActiveByUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	coupons := NewCouponRepository(pool)
	w, err := coupons.FindByCode(ctx, welcome.Code)
	require.NoError(t, err)
	o, err := coupons.FindByCode(ctx, other.Code)
	require.NoError(t, err)
	assert.Equal(t, 1, w.CurrentUses+o.CurrentUses, "rejected orders roll back their coupon use")
}
