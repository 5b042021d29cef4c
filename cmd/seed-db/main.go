package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"github.com/xenking/techstore/db"
	"github.com/xenking/techstore/internal/domain/auth"
	"github.com/xenking/techstore/internal/domain/coupon"
	"github.com/xenking/techstore/internal/domain/product"
	"github.com/xenking/techstore/internal/domain/user"
	"github.com/xenking/techstore/internal/repository"
)

type productJSON struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Model       string          `json:"model"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	ImageURL    string          `json:"imageUrl"`
}

type options struct {
	databaseURL   string
	productsFile  string
	adminUser     string
	adminEmail    string
	adminPassword string
}

func main() {
	var opts options

	flag.StringVar(&opts.databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&opts.productsFile, "products-file", "", "path to products JSON file (defaults to the embedded catalog)")
	flag.StringVar(&opts.adminUser, "admin-username", "admin", "administrator username")
	flag.StringVar(&opts.adminEmail, "admin-email", "admin@techstore.local", "administrator e-mail")
	flag.StringVar(&opts.adminPassword, "admin-password", "", "administrator password (or TECHSTORE_SEED_ADMIN_PASSWORD env)")
	flag.Parse()

	if opts.databaseURL == "" {
		opts.databaseURL = os.Getenv("DATABASE_URL")
	}
	if opts.databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if opts.adminPassword == "" {
		opts.adminPassword = os.Getenv("TECHSTORE_SEED_ADMIN_PASSWORD")
	}
	if opts.adminPassword == "" {
		slog.Error("admin password is required: set --admin-password or TECHSTORE_SEED_ADMIN_PASSWORD")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, opts); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, opts options) error {
	slog.Info("connecting to database")

	pool, err := repository.NewPool(ctx, opts.databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	data := db.Products
	if opts.productsFile != "" {
		slog.Info("reading products file", slog.String("path", opts.productsFile))
		if data, err = os.ReadFile(opts.productsFile); err != nil {
			return errors.Wrap(err, "read products file")
		}
	}
	products, err := parseProducts(data, time.Now())
	if err != nil {
		return errors.Wrap(err, "parse products")
	}

	slog.Info("upserting products", slog.Int("count", len(products)))
	if err := repository.NewProductRepository(pool).Upsert(ctx, products); err != nil {
		return errors.Wrap(err, "seed products")
	}

	coupons := demoCoupons(time.Now())
	if err := repository.NewCouponRepository(pool).Upsert(ctx, coupons); err != nil {
		return errors.Wrap(err, "seed coupons")
	}
	for _, c := range coupons {
		slog.Info("upserted coupon", slog.String("code", c.Code), slog.String("description", c.Description))
	}

	admin, err := adminUser(opts)
	if err != nil {
		return errors.Wrap(err, "build admin")
	}
	if err := repository.NewUserRepository(pool).Upsert(ctx, admin); err != nil {
		return errors.Wrap(err, "seed admin")
	}
	slog.Info("upserted admin", slog.String("username", admin.Username))

	return nil
}

// parseProducts decodes and validates the catalog file.
func parseProducts(data []byte, now time.Time) ([]product.Product, error) {
	var raw []productJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, errors.Wrap(err, "decode JSON")
	}

	products := make([]product.Product, 0, len(raw))
	for _, r := range raw {
		p := product.Product{
			ID:          r.ID,
			Name:        r.Name,
			Model:       r.Model,
			Description: r.Description,
			Price:       r.Price,
			ImageURL:    r.ImageURL,
			Active:      true,
			CreatedAt:   now,
		}
		if p.ID == "" {
			return nil, errors.Errorf("product %q has no id", p.Name)
		}
		if err := p.Validate(); err != nil {
			return nil, errors.Wrapf(err, "product %s", p.ID)
		}
		products = append(products, p)
	}
	return products, nil
}

func demoCoupons(now time.Time) []coupon.Coupon {
	expires := now.AddDate(1, 0, 0)
	hundred := 100
	return []coupon.Coupon{
		{
			ID:                uuid.New().String(),
			Code:              "WELCOME10",
			Description:       "10% off the first order, up to R$ 50",
			DiscountKind:      coupon.DiscountPercentage,
			DiscountValue:     decimal.NewFromInt(10),
			MaxDiscountAmount: decimal.NewNullDecimal(decimal.NewFromInt(50)),
			ExpiresAt:         expires,
			Active:            true,
			UsageKind:         coupon.UsageFirstOrder,
			CreatedAt:         now,
		},
		{
			ID:              uuid.New().String(),
			Code:            "TECH50",
			Description:     "R$ 50 off purchases from R$ 500",
			DiscountKind:    coupon.DiscountFixed,
			DiscountValue:   decimal.NewFromInt(50),
			MinimumPurchase: decimal.NewNullDecimal(decimal.NewFromInt(500)),
			ExpiresAt:       expires,
			Active:          true,
			UsageKind:       coupon.UsageGeneral,
			CreatedAt:       now,
		},
		{
			ID:                uuid.New().String(),
			Code:              "BLACKFRIDAY",
			Description:       "25% off, limited to the first 100 orders",
			DiscountKind:      coupon.DiscountPercentage,
			DiscountValue:     decimal.NewFromInt(25),
			MaxDiscountAmount: decimal.NewNullDecimal(decimal.NewFromInt(300)),
			ExpiresAt:         expires,
			Active:            true,
			UsageKind:         coupon.UsagePromotional,
			MaxUses:           &hundred,
			CreatedAt:         now,
		},
	}
}

func adminUser(opts options) (*user.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(opts.adminPassword), bcrypt.DefaultCost)
	if err != nil {
		return nil, errors.Wrap(err, "hash password")
	}
	return &user.User{
		ID:           uuid.New().String(),
		Username:     opts.adminUser,
		Name:         "Administrator",
		Email:        opts.adminEmail,
		PasswordHash: string(hash),
		Role:         auth.RoleAdmin,
		CreatedAt:    time.Now(),
	}, nil
}
