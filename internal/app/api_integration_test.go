//go:build integration

package app

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tc "github.com/testcontainers/testcontainers-go/modules/compose"
	"github.com/testcontainers/testcontainers-go/wait"
	"golang.org/x/crypto/bcrypt"

	"github.com/xenking/techstore/internal/domain/auth"
	"github.com/xenking/techstore/internal/domain/coupon"
	"github.com/xenking/techstore/internal/domain/product"
	"github.com/xenking/techstore/internal/domain/user"
	"github.com/xenking/techstore/internal/events"
	"github.com/xenking/techstore/internal/handler"
	"github.com/xenking/techstore/internal/postalcode"
	"github.com/xenking/techstore/internal/repository"
)

const adminPassword = "admin-secret"

var (
	baseURL    string
	httpClient = &http.Client{Timeout: 10 * time.Second}
	laptop     = product.Product{
		ID: uuid.New().String(), Name: "Notebook", Model: "NB-1",
		Price: decimal.RequireFromString("1000.00"), Active: true,
	}
	cable = product.Product{
		ID: uuid.New().String(), Name: "Cable", Model: "C-1",
		Price: decimal.RequireFromString("20.00"), Active: true,
	}
)

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

	pool, err := repository.NewPool(ctx,
		fmt.Sprintf("postgres://techstore:techstore@%s:%s/techstore?sslmode=disable", host, port.Port()))
	if err != nil {
		log.Fatalf("pool: %v", err)
	}
	defer pool.Close()
	if err := repository.RunMigrations(ctx, pool); err != nil {
		log.Fatalf("migrate: %v", err)
	}
	if err := seed(ctx, pool); err != nil {
		log.Fatalf("seed: %v", err)
	}

	viacep := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/01001000/json/" {
			_, _ = w.Write([]byte(`{"erro": true}`))
			return
		}
		_, _ = w.Write([]byte(`{"cep":"01001-000","logradouro":"Praça da Sé","bairro":"Sé","localidade":"São Paulo","uf":"SP"}`))
	}))
	defer viacep.Close()

	cfg := &Config{
		Auth:       AuthConfig{JWTSecret: "integration", TokenTTL: time.Hour, BCryptCost: bcrypt.MinCost},
		PostalCode: postalcode.Config{BaseURL: viacep.URL, Timeout: 5 * time.Second},
	}
	h, err := newHandler(pool, cfg, events.Nop{}, nil, nil)
	if err != nil {
		log.Fatalf("handler: %v", err)
	}
	srv := httptest.NewServer(handler.NewRouter(h))
	defer srv.Close()
	baseURL = srv.URL

	return m.Run()
}

func seed(ctx context.Context, pool *pgxpool.Pool) error {
	now := time.Now()
	if err := repository.NewProductRepository(pool).Upsert(ctx, []product.Product{laptop, cable}); err != nil {
		return err
	}
	one := 1
	coupons := []coupon.Coupon{
		{
			ID: uuid.New().String(), Code: "WELCOME10", DiscountKind: coupon.DiscountPercentage,
			DiscountValue: decimal.NewFromInt(10), MaxDiscountAmount: decimal.NewNullDecimal(decimal.NewFromInt(50)),
			ExpiresAt: now.Add(time.Hour), Active: true, UsageKind: coupon.UsageFirstOrder, CreatedAt: now,
		},
		{
			ID: uuid.New().String(), Code: "ONCE", DiscountKind: coupon.DiscountFixed,
			DiscountValue: decimal.NewFromInt(5), ExpiresAt: now.Add(time.Hour), Active: true,
			UsageKind: coupon.UsagePromotional, MaxUses: &one, CreatedAt: now,
		},
		{
			ID: uuid.New().String(), Code: "BIGSPENDER", DiscountKind: coupon.DiscountFixed,
			DiscountValue: decimal.NewFromInt(100), MinimumPurchase: decimal.NewNullDecimal(decimal.NewFromInt(5000)),
			ExpiresAt: now.Add(time.Hour), Active: true, UsageKind: coupon.UsageGeneral, CreatedAt: now,
		},
	}
	if err := repository.NewCouponRepository(pool).Upsert(ctx, coupons); err != nil {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(adminPassword), bcrypt.MinCost)
	if err != nil {
		return err
	}
	return repository.NewUserRepository(pool).Upsert(ctx, &user.User{
		ID: uuid.New().String(), Username: "admin", Name: "Admin", Email: "admin@example.com",
		PasswordHash: string(hash), Role: auth.RoleAdmin, CreatedAt: now,
	})
}

func call(t *testing.T, method, path, token string, body any) (int, map[string]any) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequestWithContext(context.Background(), method, baseURL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := httpClient.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	var out map[string]any
	if resp.StatusCode != http.StatusNoContent {
		var raw json.RawMessage
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&raw))
		if len(raw) > 0 && raw[0] == '{' {
			require.NoError(t, json.Unmarshal(raw, &out))
		}
	}
	return resp.StatusCode, out
}

func register(t *testing.T) string {
	t.Helper()
	name := "user" + uuid.New().String()[:8]
	status, body := call(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"username": name, "name": name, "email": name + "@example.com", "password": "s3cret",
	})
	require.Equal(t, http.StatusCreated, status, body)
	return body["token"].(string)
}

func login(t *testing.T, username, password string) string {
	t.Helper()
	status, body := call(t, http.MethodPost, "/api/auth/login", "", map[string]string{
		"username": username, "password": password,
	})
	require.Equal(t, http.StatusOK, status, body)
	return body["token"].(string)
}

func createAddress(t *testing.T, token string) string {
	t.Helper()
	status, loc := call(t, http.MethodGet, "/api/addresses/postal-code/01001-000", "", nil)
	require.Equal(t, http.StatusOK, status, loc)

	status, body := call(t, http.MethodPost, "/api/addresses", token, map[string]any{
		"postalCode": loc["postalCode"], "street": loc["street"], "district": loc["district"],
		"city": loc["city"], "state": loc["state"], "number": "100", "primary": true,
	})
	require.Equal(t, http.StatusCreated, status, body)
	return body["id"].(string)
}

func placeOrder(t *testing.T, token, addressID, couponCode string, items ...map[string]any) (int, map[string]any) {
	t.Helper()
	return call(t, http.MethodPost, "/api/orders", token, map[string]any{
		"items": items, "paymentMethod": "PIX", "addressId": addressID, "couponCode": couponCode,
	})
}

func item(p product.Product, qty int) map[string]any {
	return map[string]any{"productId": p.ID, "quantity": qty}
}

func TestCheckout_FirstOrderCoupon(t *testing.T) {
	token := register(t)
	addressID := createAddress(t, token)

	status, o := placeOrder(t, token, addressID, "welcome10", item(laptop, 1))
	require.Equal(t, http.StatusCreated, status, o)
	assert.EqualValues(t, 1000, o["subtotal"])
	assert.EqualValues(t, 0, o["shippingFee"])
	assert.EqualValues(t, 50, o["discount"], "percentage discount is capped")
	assert.EqualValues(t, 950, o["total"])
	assert.Equal(t, "WELCOME10", o["couponCode"])

	status, body := placeOrder(t, token, addressID, "WELCOME10", item(cable, 1))
	assert.Equal(t, http.StatusUnprocessableEntity, status, body)

	status, o = placeOrder(t, token, addressID, "", item(cable, 2))
	require.Equal(t, http.StatusCreated, status, o)
	assert.EqualValues(t, 15.9, o["shippingFee"])
	assert.EqualValues(t, 55.9, o["total"])
}

func TestCheckout_Rejections(t *testing.T) {
	token := register(t)
	addressID := createAddress(t, token)

	tests := []struct {
		name   string
		coupon string
		items  []map[string]any
		want   int
	}{
		{name: "empty cart", want: http.StatusBadRequest},
		{name: "unknown product", items: []map[string]any{{"productId": "nope", "quantity": 1}}, want: http.StatusNotFound},
		{name: "negative quantity", items: []map[string]any{item(cable, -1)}, want: http.StatusBadRequest},
		{name: "quantity beyond integer column", items: []map[string]any{{"productId": cable.ID, "quantity": int64(5_000_000_000)}}, want: http.StatusBadRequest},
		{name: "quantity above limit", items: []map[string]any{item(laptop, 10_001)}, want: http.StatusBadRequest},
		{name: "unknown coupon", coupon: "NOPE", items: []map[string]any{item(cable, 1)}, want: http.StatusBadRequest},
		{name: "below minimum", coupon: "BIGSPENDER", items: []map[string]any{item(cable, 1)}, want: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := placeOrder(t, token, addressID, tt.coupon, tt.items...)
			assert.Equal(t, tt.want, status, body)
		})
	}
}

func TestCheckout_UsageCapAcrossUsers(t *testing.T) {
	first := register(t)
	status, body := placeOrder(t, first, createAddress(t, first), "ONCE", item(cable, 1))
	require.Equal(t, http.StatusCreated, status, body)

	second := register(t)
	status, body = placeOrder(t, second, createAddress(t, second), "ONCE", item(cable, 1))
	assert.Equal(t, http.StatusUnprocessableEntity, status, body)
}

func TestValidateCoupon(t *testing.T) {
	token := register(t)

	status, body := call(t, http.MethodPost, "/api/coupons/validate", token, map[string]any{
		"code": "welcome10", "purchaseAmount": 200,
	})
	require.Equal(t, http.StatusOK, status, body)
	assert.EqualValues(t, 20, body["discount"])
	assert.EqualValues(t, 180, body["finalAmount"])

	status, _ = call(t, http.MethodPost, "/api/coupons/validate", token, map[string]any{"code": "missing"})
	assert.Equal(t, http.StatusNotFound, status)
}

func TestOrderLifecycle(t *testing.T) {
	customer := register(t)
	admin := login(t, "admin", adminPassword)

	status, o := placeOrder(t, customer, createAddress(t, customer), "", item(laptop, 1))
	require.Equal(t, http.StatusCreated, status, o)
	id := o["id"].(string)

	status, _ = call(t, http.MethodPut, "/api/orders/"+id+"/status", customer, map[string]string{"status": "PAID"})
	assert.Equal(t, http.StatusForbidden, status)

	for _, next := range []string{"PAID", "PICKING", "SHIPPED"} {
		status, body := call(t, http.MethodPut, "/api/orders/"+id+"/status", admin, map[string]string{"status": next})
		require.Equal(t, http.StatusOK, status, body)
		assert.Equal(t, next, body["status"])
	}
	status, _ = call(t, http.MethodPut, "/api/orders/"+id+"/status", admin, map[string]string{"status": "PAID"})
	assert.Equal(t, http.StatusConflict, status)

	status, d := call(t, http.MethodGet, "/api/delivery/"+id, customer, nil)
	require.Equal(t, http.StatusOK, status, d)
	assert.Equal(t, "AWAITING_SHIPMENT", d["status"])

	status, d = call(t, http.MethodPut, "/api/delivery/"+id, admin, map[string]string{"status": "DELIVERED", "trackingCode": "BR1"})
	require.Equal(t, http.StatusOK, status, d)
	assert.NotNil(t, d["deliveredAt"])

	other := register(t)
	status, _ = call(t, http.MethodGet, "/api/orders/"+id, other, nil)
	assert.Equal(t, http.StatusNotFound, status)
	status, _ = call(t, http.MethodGet, "/api/delivery/"+id, other, nil)
	assert.Equal(t, http.StatusNotFound, status)
}
