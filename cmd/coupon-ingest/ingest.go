package main

import (
	"bufio"
	"context"
	"log/slog"
	"os"
	"sync/atomic"
	"unicode"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"github.com/google/uuid"
	pgzip "github.com/klauspost/pgzip"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/techstore/internal/domain/coupon"
)

const (
	minCodeLen    = 4
	maxCodeLen    = 32
	progressEvery = 1_000_000
)

// couponSink stores a batch of coupons, keeping existing usage counters.
type couponSink interface {
	Upsert(ctx context.Context, coupons []coupon.Coupon) error
}

// Stats summarizes one ingest run.
type Stats struct {
	Lines      uint64
	Rejected   uint64
	Duplicates uint64
	Written    uint64
}

// ingester streams code lists concurrently and upserts each distinct code
// once. Codes the bloom filter reports as seen are skipped, so a false
// positive drops a code with probability fpr.
type ingester struct {
	template  coupon.Coupon
	batchSize int
	capacity  uint
	fpr       float64
	sink      couponSink
	newID     func() string
}

func (ing *ingester) Run(ctx context.Context, files []string) (Stats, error) {
	var (
		stats    Stats
		lines    atomic.Uint64
		rejected atomic.Uint64
	)
	codes := make(chan string, 4096)

	g, gctx := errgroup.WithContext(ctx)
	readers, rctx := errgroup.WithContext(gctx)
	for _, path := range files {
		readers.Go(func() error {
			return streamCodes(rctx, path, codes, &lines, &rejected)
		})
	}
	g.Go(func() error {
		defer close(codes)
		return readers.Wait()
	})
	g.Go(func() error {
		dup, written, err := ing.consume(gctx, codes)
		stats.Duplicates = dup
		stats.Written = written
		return err
	})

	err := g.Wait()
	stats.Lines = lines.Load()
	stats.Rejected = rejected.Load()
	return stats, err
}

// consume dedupes codes and writes them in batches. It is the only reader
// of the bloom filter, which is not safe for concurrent use.
func (ing *ingester) consume(ctx context.Context, codes <-chan string) (duplicates, written uint64, err error) {
	filter := bloom.NewWithEstimates(ing.capacity, ing.fpr)
	newID := ing.newID
	if newID == nil {
		newID = func() string { return uuid.New().String() }
	}
	batchSize := max(ing.batchSize, 1)
	batch := make([]coupon.Coupon, 0, batchSize)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := ing.sink.Upsert(ctx, batch); err != nil {
			return errors.Wrapf(err, "upsert %d coupons", len(batch))
		}
		written += uint64(len(batch))
		if written%progressEvery < uint64(len(batch)) {
			slog.Info("write progress", slog.Uint64("written", written))
		}
		batch = batch[:0]
		return nil
	}

	for code := range codes {
		if filter.TestOrAddString(code) {
			duplicates++
			continue
		}
		c := ing.template
		c.ID = newID()
		c.Code = code
		batch = append(batch, c)
		if len(batch) == batchSize {
			if err := flush(); err != nil {
				return duplicates, written, err
			}
		}
	}
	if err := ctx.Err(); err != nil {
		return duplicates, written, err
	}
	return duplicates, written, flush()
}

// streamCodes sends every well-formed code of a gzip file, upper-cased.
func streamCodes(ctx context.Context, path string, out chan<- string, lines, rejected *atomic.Uint64) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return errors.Wrapf(err, "create gzip reader for %s", path)
	}
	defer func() { _ = gz.Close() }()

	scanner := bufio.NewScanner(gz)
	for scanner.Scan() {
		if n := lines.Add(1); n%progressEvery == 0 {
			slog.Info("read progress", slog.Uint64("lines", n))
		}
		code := coupon.NormalizeCode(scanner.Text())
		if !validCode(code) {
			rejected.Add(1)
			continue
		}
		select {
		case out <- code:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if err := scanner.Err(); err != nil {
		return errors.Wrapf(err, "scan %s", path)
	}
	return nil
}

func validCode(code string) bool {
	if len(code) < minCodeLen || len(code) > maxCodeLen {
		return false
	}
	for _, r := range code {
		if r > unicode.MaxASCII || !(unicode.IsUpper(r) || unicode.IsDigit(r) || r == '-' || r == '_') {
			return false
		}
	}
	return true
}
