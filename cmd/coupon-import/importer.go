package main

import (
	"context"
	"encoding/csv"
	"io"
	"os"
	"strings"
	"time"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/storefront-admin/internal/domain/coupon"
)

// couponStore is the subset of the coupon repository the import needs.
type couponStore interface {
	EachCode(ctx context.Context, fn func(code string)) error
	CopyFrom(ctx context.Context, rules []coupon.Rule) (int64, error)
	Upsert(ctx context.Context, rule coupon.Rule) error
}

type importConfig struct {
	// Capacity is the expected number of distinct codes, existing and imported.
	Capacity  uint
	FPR       float64
	BatchSize int
}

type importStats struct {
	Rows     int64
	Copied   int64
	Upserted int64
}

// importer loads coupon rules from CSV files into the store. Codes the
// bloom filter has never seen are bulk copied. Possible duplicates, which
// include false positives, go through an upsert.
type importer struct {
	store couponStore
	cfg   importConfig
	lg    *zap.Logger

	seen    *bloom.BloomFilter
	pending []coupon.Rule
	index   map[string]int
	stats   importStats
}

func newImporter(lg *zap.Logger, store couponStore, cfg importConfig) *importer {
	if cfg.Capacity == 0 {
		cfg.Capacity = 1_000_000
	}
	if cfg.FPR <= 0 {
		cfg.FPR = 0.001
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 5000
	}
	return &importer{
		store: store,
		cfg:   cfg,
		lg:    lg,
		seen:  bloom.NewWithEstimates(cfg.Capacity, cfg.FPR),
		index: make(map[string]int, cfg.BatchSize),
	}
}

// Run parses files concurrently and writes their rules from a single
// goroutine.
func (im *importer) Run(ctx context.Context, files []string) (importStats, error) {
	var existing int
	if err := im.store.EachCode(ctx, func(code string) {
		im.seen.AddString(code)
		existing++
	}); err != nil {
		return importStats{}, errors.Wrap(err, "load existing codes")
	}
	im.lg.Info("Loaded existing codes", zap.Int("count", existing))

	rules := make(chan coupon.Rule, im.cfg.BatchSize)
	g, gctx := errgroup.WithContext(ctx)

	parsers, pctx := errgroup.WithContext(gctx)
	for _, f := range files {
		parsers.Go(func() error {
			return parseFile(pctx, f, rules)
		})
	}
	g.Go(func() error {
		defer close(rules)
		return parsers.Wait()
	})
	g.Go(func() error {
		for r := range rules {
			if err := im.add(gctx, r); err != nil {
				return err
			}
		}
		return im.flush(gctx)
	})

	if err := g.Wait(); err != nil {
		return im.stats, err
	}
	return im.stats, nil
}

func (im *importer) add(ctx context.Context, r coupon.Rule) error {
	im.stats.Rows++

	if i, ok := im.index[r.Code]; ok {
		im.pending[i] = r
		return nil
	}
	if im.seen.TestString(r.Code) {
		if err := im.store.Upsert(ctx, r); err != nil {
			return errors.Wrapf(err, "upsert coupon %s", r.Code)
		}
		im.stats.Upserted++
		return nil
	}

	im.seen.AddString(r.Code)
	im.index[r.Code] = len(im.pending)
	im.pending = append(im.pending, r)
	if len(im.pending) >= im.cfg.BatchSize {
		return im.flush(ctx)
	}
	return nil
}

func (im *importer) flush(ctx context.Context) error {
	if len(im.pending) == 0 {
		return nil
	}
	n, err := im.store.CopyFrom(ctx, im.pending)
	if err != nil {
		return errors.Wrap(err, "copy coupons")
	}
	im.stats.Copied += n
	im.lg.Info("Copied batch", zap.Int64("rows", n), zap.Int64("total", im.stats.Copied))

	im.pending = im.pending[:0]
	clear(im.index)
	return nil
}

// parseFile streams CSV rows of code,type,amount[,expires_at] from path,
// gunzipping files with a .gz suffix. A leading header row is skipped.
func parseFile(ctx context.Context, path string, out chan<- coupon.Rule) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	var src io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		gz, err := pgzip.NewReader(f)
		if err != nil {
			return errors.Wrapf(err, "create gzip reader for %s", path)
		}
		defer func() { _ = gz.Close() }()
		src = gz
	}

	r := csv.NewReader(src)
	r.FieldsPerRecord = -1
	r.ReuseRecord = true
	r.TrimLeadingSpace = true

	for line := 1; ; line++ {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return errors.Wrapf(err, "read %s", path)
		}
		if line == 1 && strings.EqualFold(rec[0], "code") {
			continue
		}

		rule, err := parseRecord(rec)
		if err != nil {
			return errors.Wrapf(err, "%s:%d", path, line)
		}
		select {
		case out <- rule:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func parseRecord(rec []string) (coupon.Rule, error) {
	if len(rec) < 3 || len(rec) > 4 {
		return coupon.Rule{}, errors.Errorf("want 3 or 4 fields, got %d", len(rec))
	}

	rule := coupon.Rule{
		Code: coupon.NormalizeCode(rec[0]),
		Type: coupon.Type(strings.ToLower(rec[1])),
	}
	if rule.Code == "" {
		return coupon.Rule{}, errors.New("empty code")
	}
	if !rule.Type.Valid() {
		return coupon.Rule{}, errors.Errorf("unknown type %q", rec[1])
	}

	amount, err := decimal.NewFromString(rec[2])
	if err != nil {
		return coupon.Rule{}, errors.Wrap(err, "parse amount")
	}
	if amount.IsNegative() {
		return coupon.Rule{}, errors.Errorf("negative amount %s", amount)
	}
	rule.Amount = amount

	if len(rec) == 4 && rec[3] != "" {
		at, err := time.Parse(time.RFC3339, rec[3])
		if err != nil {
			return coupon.Rule{}, errors.Wrap(err, "parse expires_at")
		}
		rule.ExpiresAt = &at
	}
	return rule, nil
}
