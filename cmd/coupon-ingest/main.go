package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/techstore/internal/domain/coupon"
	"github.com/xenking/techstore/internal/repository"
)

type options struct {
	databaseURL string
	pattern     string
	batchSize   int
	capacity    uint
	fpr         float64

	kind        string
	value       string
	maxDiscount string
	minPurchase string
	usage       string
	maxUses     int
	expiresIn   time.Duration
	description string
}

func main() {
	var opts options

	flag.StringVar(&opts.databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&opts.pattern, "files", "data/*.gz", "glob of gzip-compressed code lists, one code per line")
	flag.IntVar(&opts.batchSize, "batch-size", 1000, "coupons per upsert batch")
	flag.UintVar(&opts.capacity, "expected-codes", 10_000_000, "expected number of distinct codes, sizes the bloom filter")
	flag.Float64Var(&opts.fpr, "false-positive-rate", 0.0001, "bloom filter false positive rate")

	flag.StringVar(&opts.kind, "kind", string(coupon.DiscountPercentage), "discount kind: PERCENTAGE or FIXED")
	flag.StringVar(&opts.value, "value", "10", "discount value")
	flag.StringVar(&opts.maxDiscount, "max-discount", "", "cap for percentage discounts")
	flag.StringVar(&opts.minPurchase, "min-purchase", "", "minimum purchase amount")
	flag.StringVar(&opts.usage, "usage", string(coupon.UsagePromotional), "usage kind: GENERAL, FIRST_ORDER or PROMOTIONAL")
	flag.IntVar(&opts.maxUses, "max-uses", 1, "redemptions allowed per code, 0 for unlimited")
	flag.DurationVar(&opts.expiresIn, "expires-in", 30*24*time.Hour, "validity period from now")
	flag.StringVar(&opts.description, "description", "Imported promo code", "coupon description")
	flag.Parse()

	if opts.databaseURL == "" {
		opts.databaseURL = os.Getenv("DATABASE_URL")
	}
	if opts.databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, opts); err != nil {
		slog.Error("coupon ingest failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("coupon ingest completed successfully")
}

func run(ctx context.Context, opts options) error {
	template, err := opts.rule(time.Now())
	if err != nil {
		return errors.Wrap(err, "discount rule")
	}

	files, err := filepath.Glob(opts.pattern)
	if err != nil {
		return errors.Wrap(err, "match files")
	}
	if len(files) == 0 {
		return errors.Errorf("no files match %q", opts.pattern)
	}

	slog.Info("connecting to database")

	pool, err := repository.NewPool(ctx, opts.databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	ing := &ingester{
		template:  template,
		batchSize: opts.batchSize,
		capacity:  opts.capacity,
		fpr:       opts.fpr,
		sink:      repository.NewCouponRepository(pool),
	}
	stats, err := ing.Run(ctx, files)
	if err != nil {
		return err
	}

	slog.Info("ingest summary",
		slog.Int("files", len(files)),
		slog.Uint64("lines", stats.Lines),
		slog.Uint64("rejected", stats.Rejected),
		slog.Uint64("duplicates", stats.Duplicates),
		slog.Uint64("written", stats.Written),
	)
	return nil
}

// rule builds the coupon every imported code is stamped with.
func (o options) rule(now time.Time) (coupon.Coupon, error) {
	value, err := decimal.NewFromString(o.value)
	if err != nil {
		return coupon.Coupon{}, errors.Wrap(err, "parse value")
	}
	c := coupon.Coupon{
		Code:          "TEMPLATE",
		Description:   o.description,
		DiscountKind:  coupon.DiscountKind(o.kind),
		DiscountValue: value,
		ExpiresAt:     now.Add(o.expiresIn),
		Active:        true,
		UsageKind:     coupon.UsageKind(o.usage),
		CreatedAt:     now,
	}
	if c.MaxDiscountAmount, err = optionalAmount(o.maxDiscount); err != nil {
		return coupon.Coupon{}, errors.Wrap(err, "parse max discount")
	}
	if c.MinimumPurchase, err = optionalAmount(o.minPurchase); err != nil {
		return coupon.Coupon{}, errors.Wrap(err, "parse minimum purchase")
	}
	if o.maxUses > 0 {
		maxUses := o.maxUses
		c.MaxUses = &maxUses
	}
	if o.expiresIn <= 0 {
		return coupon.Coupon{}, errors.New("expires-in must be positive")
	}
	if err := c.Validate(); err != nil {
		return coupon.Coupon{}, err
	}
	return c, nil
}

func optionalAmount(s string) (decimal.NullDecimal, error) {
	if s == "" {
		return decimal.NullDecimal{}, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.NullDecimal{}, err
	}
	return decimal.NewNullDecimal(d), nil
}
