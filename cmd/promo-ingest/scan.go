package main

import (
	"bufio"
	"context"
	"log/slog"
	"math/bits"
	"os"
	"strconv"
	"strings"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/chorbazzar/internal/domain/pricing"
)

const (
	bloomFPR      = 0.001
	progressEvery = 100_000
	minCodeLen    = 4
	maxCodeLen    = 32
	// maxFiles is bounded by the width of the per-code file bitmask.
	maxFiles = bits.UintSize
)

// parseRule parses one promotion line:
//
//	CODE,discount_type,value,min_items[,description]
//
// The description may contain commas.
func parseRule(line string) (pricing.Rule, error) {
	parts := strings.SplitN(line, ",", 5)
	if len(parts) < 4 {
		return pricing.Rule{}, errors.Errorf("expected at least 4 fields, got %d", len(parts))
	}

	code := pricing.NormalizeCode(parts[0])
	if len(code) < minCodeLen || len(code) > maxCodeLen {
		return pricing.Rule{}, errors.Errorf("code %q must be %d to %d characters", code, minCodeLen, maxCodeLen)
	}

	dt := pricing.DiscountType(strings.TrimSpace(parts[1]))
	if !dt.Valid() {
		return pricing.Rule{}, errors.Errorf("unknown discount type %q", dt)
	}

	value, err := decimal.NewFromString(strings.TrimSpace(parts[2]))
	if err != nil {
		return pricing.Rule{}, errors.Wrap(err, "parse value")
	}
	if value.IsNegative() || (dt == pricing.DiscountPercentage && value.GreaterThan(decimal.NewFromInt(100))) {
		return pricing.Rule{}, errors.Errorf("value %s out of range for %s", value, dt)
	}

	minItems, err := strconv.Atoi(strings.TrimSpace(parts[3]))
	if err != nil || minItems < 0 {
		return pricing.Rule{}, errors.Errorf("invalid min_items %q", parts[3])
	}

	rule := pricing.Rule{
		Code:         code,
		DiscountType: dt,
		Value:        value,
		MinItems:     minItems,
	}
	if len(parts) == 5 {
		rule.Description = strings.TrimSpace(parts[4])
	}
	return rule, nil
}

// streamRules opens a gzip-compressed promotion file and calls fn for each
// valid rule until fn returns false. Blank lines and lines starting with '#'
// are skipped; malformed lines are logged and skipped.
func streamRules(ctx context.Context, path string, fn func(rule pricing.Rule) bool) error {
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
	lineNo := 0
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		lineNo++

		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		rule, err := parseRule(line)
		if err != nil {
			slog.Warn("skipping malformed line",
				slog.String("file", fileLabel(path)),
				slog.Int("line", lineNo),
				slog.String("error", err.Error()),
			)
			continue
		}
		if !fn(rule) {
			return nil
		}
	}

	if err := scanner.Err(); err != nil {
		return errors.Wrapf(err, "scan %s", path)
	}
	return nil
}

// buildBloomFilters creates one bloom filter per file, concurrently.
func buildBloomFilters(ctx context.Context, files []string, capacity uint) ([]*bloom.BloomFilter, error) {
	filters := make([]*bloom.BloomFilter, len(files))

	g, ctx := errgroup.WithContext(ctx)
	for i, path := range files {
		g.Go(func() error {
			filter := bloom.NewWithEstimates(capacity, bloomFPR)
			count := 0
			if err := streamRules(ctx, path, func(rule pricing.Rule) bool {
				filter.AddString(rule.Code)
				count++
				return true
			}); err != nil {
				return errors.Wrapf(err, "build filter for %s", fileLabel(path))
			}

			slog.Info("pass 1 complete", slog.String("file", fileLabel(path)), slog.Int("codes", count))
			filters[i] = filter
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return filters, nil
}

// findConflicts re-streams each file, keeping codes that test positive in
// another file's filter, and returns the codes actually seen in two or more
// files. Bloom false positives are discarded by the merge since each file
// only sets its own bit.
func findConflicts(ctx context.Context, files []string, filters []*bloom.BloomFilter) (map[string]struct{}, error) {
	candidates := make([]map[string]uint, len(files))

	g, ctx := errgroup.WithContext(ctx)
	for i, path := range files {
		g.Go(func() error {
			found := make(map[string]uint)
			fileBit := uint(1) << uint(i)

			if err := streamRules(ctx, path, func(rule pricing.Rule) bool {
				for j, f := range filters {
					if j != i && f.TestString(rule.Code) {
						found[rule.Code] |= fileBit
						break
					}
				}
				return true
			}); err != nil {
				return errors.Wrapf(err, "scan %s for conflicts", fileLabel(path))
			}

			slog.Info("pass 2 complete", slog.String("file", fileLabel(path)), slog.Int("candidates", len(found)))
			candidates[i] = found
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	merged := make(map[string]uint)
	for _, found := range candidates {
		for code, mask := range found {
			merged[code] |= mask
		}
	}

	conflicts := make(map[string]struct{})
	for code, mask := range merged {
		if bits.OnesCount(mask) >= 2 {
			conflicts[code] = struct{}{}
		}
	}
	return conflicts, nil
}
