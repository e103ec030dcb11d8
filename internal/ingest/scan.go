// Package ingest imports coupon code batches distributed to partners as
// gzip-compressed CSV files.
package ingest

import (
	"context"
	"encoding/csv"
	"io"
	"log/slog"
	"math/bits"
	"os"
	"slices"
	"strings"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"github.com/klauspost/pgzip"
	"golang.org/x/sync/errgroup"
)

const (
	// MaxFiles bounds one scan; file membership is tracked in a uint bitmask.
	MaxFiles = bits.UintSize

	minCodeLen    = 4
	maxCodeLen    = 32
	progressEvery = 1_000_000
)

// ScanConfig tunes the bloom filters built per file.
type ScanConfig struct {
	// Capacity is the expected number of codes per file.
	Capacity uint
	// FalsePositiveRate of each per-file filter.
	FalsePositiveRate float64
}

// Result of scanning a batch of files.
type Result struct {
	// Codes found in exactly one file, sorted.
	Codes []string
	// Duplicates are codes found in two or more files, sorted. Such a code was
	// handed to more than one partner and is not imported.
	Duplicates []string
	// Invalid counts records whose code is malformed.
	Invalid int
}

// Scan reads every file twice. Pass 1 builds a bloom filter per file; pass 2
// collects each file's codes and marks the ones that other files' filters
// may contain. A code is a duplicate only when two files both mark it, so
// filter false positives never reject a code.
func Scan(ctx context.Context, files []string, cfg ScanConfig) (*Result, error) {
	if len(files) == 0 {
		return nil, errors.New("no input files")
	}
	if len(files) > MaxFiles {
		return nil, errors.Errorf("at most %d files per scan", MaxFiles)
	}
	if cfg.Capacity == 0 {
		cfg.Capacity = 1_000_000
	}
	if cfg.FalsePositiveRate <= 0 {
		cfg.FalsePositiveRate = 0.001
	}

	slog.Info("pass 1: building bloom filters", slog.Int("files", len(files)))
	filters, err := buildFilters(ctx, files, cfg)
	if err != nil {
		return nil, errors.Wrap(err, "build bloom filters")
	}

	slog.Info("pass 2: collecting codes")
	return collect(ctx, files, filters)
}

func buildFilters(ctx context.Context, files []string, cfg ScanConfig) ([]*bloom.BloomFilter, error) {
	filters := make([]*bloom.BloomFilter, len(files))

	g, ctx := errgroup.WithContext(ctx)
	for i, path := range files {
		g.Go(func() error {
			filter := bloom.NewWithEstimates(cfg.Capacity, cfg.FalsePositiveRate)
			var count uint64
			if err := readCodes(ctx, path, func(code string) {
				filter.AddString(code)
				count++
				if count%progressEvery == 0 {
					slog.Info("pass 1 progress", slog.Int("file", i+1), slog.Uint64("codes", count))
				}
			}, nil); err != nil {
				return errors.Wrapf(err, "file %d", i+1)
			}
			slog.Info("pass 1 complete", slog.Int("file", i+1), slog.Uint64("total_codes", count))
			filters[i] = filter
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return filters, nil
}

type fileCodes struct {
	codes   map[string]struct{}
	marked  map[string]uint
	invalid int
}

func collect(ctx context.Context, files []string, filters []*bloom.BloomFilter) (*Result, error) {
	results := make([]fileCodes, len(files))

	g, ctx := errgroup.WithContext(ctx)
	for i, path := range files {
		g.Go(func() error {
			fc := fileCodes{codes: map[string]struct{}{}, marked: map[string]uint{}}
			bit := uint(1) << uint(i)
			err := readCodes(ctx, path, func(code string) {
				fc.codes[code] = struct{}{}
				for j, f := range filters {
					if j != i && f.TestString(code) {
						fc.marked[code] |= bit
						return
					}
				}
			}, func() { fc.invalid++ })
			if err != nil {
				return errors.Wrapf(err, "file %d", i+1)
			}
			slog.Info("pass 2 complete",
				slog.Int("file", i+1),
				slog.Int("codes", len(fc.codes)),
				slog.Int("candidates", len(fc.marked)),
			)
			results[i] = fc
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	merged := make(map[string]uint)
	for _, fc := range results {
		for code, mask := range fc.marked {
			merged[code] |= mask
		}
	}

	res := &Result{}
	seen := make(map[string]struct{})
	for _, fc := range results {
		res.Invalid += fc.invalid
		for code := range fc.codes {
			if _, ok := seen[code]; ok {
				continue
			}
			seen[code] = struct{}{}
			if bits.OnesCount(merged[code]) >= 2 {
				res.Duplicates = append(res.Duplicates, code)
				continue
			}
			res.Codes = append(res.Codes, code)
		}
	}
	slices.Sort(res.Codes)
	slices.Sort(res.Duplicates)
	return res, nil
}

// readCodes streams the first column of a gzip CSV file, calling fn with each
// normalized code and invalid for each malformed one. A leading "code" header
// and '#' comment lines are skipped.
func readCodes(ctx context.Context, path string, fn func(code string), invalid func()) error {
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

	r := csv.NewReader(gz)
	r.Comment = '#'
	r.FieldsPerRecord = -1
	r.ReuseRecord = true

	for line := 0; ; line++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return errors.Wrapf(err, "read %s", path)
		}
		if line == 0 && strings.EqualFold(strings.TrimSpace(rec[0]), "code") {
			continue
		}
		code, ok := NormalizeCode(rec[0])
		if !ok {
			if invalid != nil {
				invalid()
			}
			continue
		}
		fn(code)
	}
}

// NormalizeCode upper-cases and trims a code, reporting whether it is
// 4-32 ASCII letters, digits, '-' or '_'.
func NormalizeCode(raw string) (string, bool) {
	code := strings.ToUpper(strings.TrimSpace(raw))
	if len(code) < minCodeLen || len(code) > maxCodeLen {
		return "", false
	}
	for i := range len(code) {
		c := code[i]
		if (c < 'A' || c > 'Z') && (c < '0' || c > '9') && c != '-' && c != '_' {
			return "", false
		}
	}
	return code, true
}
