package main

import (
	"context"
	"flag"
	"os"
	"os/signal"

	"github.com/go-faster/errors"
	"go.uber.org/zap"

	"github.com/xenking/storefront-admin/internal/storage/postgres"
)

func main() {
	var (
		databaseURL string
		capacity    uint
		batchSize   int
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.UintVar(&capacity, "capacity", 1_000_000, "expected number of distinct coupon codes")
	flag.IntVar(&batchSize, "batch-size", 5000, "rows per COPY batch")
	flag.Parse()

	lg, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer func() { _ = lg.Sync() }()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		lg.Fatal("database URL is required: set --database-url or DATABASE_URL")
	}
	files := flag.Args()
	if len(files) == 0 {
		lg.Fatal("usage: coupon-import [flags] FILE.csv[.gz]...")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, lg, databaseURL, files, importConfig{Capacity: capacity, BatchSize: batchSize}); err != nil {
		lg.Fatal("Coupon import failed", zap.Error(err))
	}
}

func run(ctx context.Context, lg *zap.Logger, databaseURL string, files []string, cfg importConfig) error {
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			return errors.Wrapf(err, "check file %s", f)
		}
	}

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	stats, err := newImporter(lg, postgres.NewCouponRepository(pool), cfg).Run(ctx, files)
	if err != nil {
		return err
	}
	lg.Info("Coupon import completed",
		zap.Int("files", len(files)),
		zap.Int64("rows", stats.Rows),
		zap.Int64("copied", stats.Copied),
		zap.Int64("upserted", stats.Upserted),
	)
	return nil
}
