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

	"github.com/xenking/dash-orders/internal/ingest"
	"github.com/xenking/dash-orders/internal/storage/postgres"
)

type options struct {
	databaseURL string
	pattern     string
	capacity    uint
	dryRun      bool

	kind         string
	value        string
	minOrder     string
	maxDiscount  string
	startsAt     string
	endsAt       string
	merchantID   string
	totalLimit   int
	perUserLimit int
	description  string
}

func main() {
	var o options

	flag.StringVar(&o.databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&o.pattern, "files", "data/coupons-*.csv.gz", "glob of gzip CSV code files, one per partner")
	flag.UintVar(&o.capacity, "capacity", 1_000_000, "expected codes per file (bloom filter sizing)")
	flag.BoolVar(&o.dryRun, "dry-run", false, "scan and report without writing")
	flag.StringVar(&o.kind, "kind", "fixed", "discount kind: fixed or percentage")
	flag.StringVar(&o.value, "value", "", "discount value (amount or percent)")
	flag.StringVar(&o.minOrder, "min-order", "0", "minimum item subtotal")
	flag.StringVar(&o.maxDiscount, "max-discount", "", "cap for percentage discounts")
	flag.StringVar(&o.startsAt, "starts-at", "", "validity start, RFC 3339 (default now)")
	flag.StringVar(&o.endsAt, "ends-at", "", "validity end, RFC 3339")
	flag.StringVar(&o.merchantID, "merchant", "", "restrict codes to a merchant")
	flag.IntVar(&o.totalLimit, "total-limit", 1, "redemptions per code across all users (0 = unlimited)")
	flag.IntVar(&o.perUserLimit, "per-user-limit", 1, "redemptions per code per user")
	flag.StringVar(&o.description, "description", "", "coupon description")
	flag.Parse()

	if o.databaseURL == "" {
		o.databaseURL = os.Getenv("DATABASE_URL")
	}
	if o.databaseURL == "" && !o.dryRun {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, o); err != nil {
		slog.Error("coupon ingest failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("coupon ingest completed successfully")
}

func run(ctx context.Context, o options) error {
	tpl, err := o.template(time.Now())
	if err != nil {
		return errors.Wrap(err, "campaign terms")
	}

	files, err := filepath.Glob(o.pattern)
	if err != nil {
		return errors.Wrap(err, "match files")
	}

	res, err := ingest.Scan(ctx, files, ingest.ScanConfig{Capacity: o.capacity})
	if err != nil {
		return errors.Wrap(err, "scan files")
	}

	slog.Info("scan complete",
		slog.Int("codes", len(res.Codes)),
		slog.Int("duplicates", len(res.Duplicates)),
		slog.Int("invalid", res.Invalid),
	)
	for _, code := range res.Duplicates {
		slog.Warn("code issued to more than one partner, skipped", slog.String("code", code))
	}

	if o.dryRun || len(res.Codes) == 0 {
		return nil
	}

	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, o.databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := ingest.Write(ctx, postgres.NewSeeder(pool), tpl, res.Codes); err != nil {
		return errors.Wrap(err, "write coupons to database")
	}

	return nil
}

func (o options) template(now time.Time) (ingest.Template, error) {
	tpl := ingest.Template{
		Kind:         o.kind,
		MerchantID:   o.merchantID,
		TotalLimit:   o.totalLimit,
		PerUserLimit: o.perUserLimit,
		Description:  o.description,
		StartsAt:     now.UTC(),
	}

	var err error
	if tpl.Value, err = decimal.NewFromString(o.value); err != nil {
		return tpl, errors.Wrap(err, "value")
	}
	if tpl.MinOrderAmount, err = decimal.NewFromString(o.minOrder); err != nil {
		return tpl, errors.Wrap(err, "min-order")
	}
	if o.maxDiscount != "" {
		v, err := decimal.NewFromString(o.maxDiscount)
		if err != nil {
			return tpl, errors.Wrap(err, "max-discount")
		}
		tpl.MaxDiscount = decimal.NewNullDecimal(v)
	}
	if o.startsAt != "" {
		if tpl.StartsAt, err = time.Parse(time.RFC3339, o.startsAt); err != nil {
			return tpl, errors.Wrap(err, "starts-at")
		}
	}
	if o.endsAt == "" {
		return tpl, errors.New("ends-at is required")
	}
	if tpl.EndsAt, err = time.Parse(time.RFC3339, o.endsAt); err != nil {
		return tpl, errors.Wrap(err, "ends-at")
	}
	return tpl, nil
}
