package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/go-faster/errors"

	"github.com/xenking/chorbazzar/internal/domain/pricing"
	"github.com/xenking/chorbazzar/internal/storage/postgres"
)

func main() {
	var (
		dataDir     string
		databaseURL string
		capacity    uint
		dryRun      bool
	)

	flag.StringVar(&dataDir, "data-dir", "data", "directory containing *.csv.gz promotion files")
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.UintVar(&capacity, "capacity", 1_000_000, "expected promotion codes per file, sizes the bloom filters")
	flag.BoolVar(&dryRun, "dry-run", false, "scan files and report conflicts without writing")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" && !dryRun {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, dataDir, databaseURL, capacity, dryRun); err != nil {
		slog.Error("promotion ingest failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("promotion ingest completed successfully")
}

func run(ctx context.Context, dataDir, databaseURL string, capacity uint, dryRun bool) error {
	files, err := filepath.Glob(filepath.Join(dataDir, "*.csv.gz"))
	if err != nil {
		return errors.Wrap(err, "list promotion files")
	}
	if len(files) == 0 {
		return errors.Errorf("no *.csv.gz files in %s", dataDir)
	}
	if len(files) > maxFiles {
		return errors.Errorf("at most %d files per run, got %d", maxFiles, len(files))
	}

	// Pass 1: one bloom filter of codes per campaign file.
	slog.Info("pass 1: building bloom filters", slog.Int("files", len(files)))

	filters, err := buildBloomFilters(ctx, files, capacity)
	if err != nil {
		return errors.Wrap(err, "build bloom filters")
	}

	// Pass 2: codes defined by more than one campaign are ambiguous.
	slog.Info("pass 2: finding conflicting codes")

	conflicts, err := findConflicts(ctx, files, filters)
	if err != nil {
		return errors.Wrap(err, "find conflicts")
	}
	for _, code := range sample(conflicts, 20) {
		slog.Warn("code defined in several files, skipping", slog.String("code", code))
	}
	slog.Info("conflicts found", slog.Int("count", len(conflicts)))

	if dryRun {
		return nil
	}

	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	// Pass 3: upsert every unambiguous rule.
	written, err := writePromotions(ctx, postgres.NewPromotionRepository(pool), files, conflicts)
	if err != nil {
		return errors.Wrap(err, "write promotions")
	}
	slog.Info("promotions written", slog.Int("count", written))
	return nil
}

type promotionUpserter interface {
	Upsert(ctx context.Context, rule pricing.Rule) error
}

// writePromotions streams files in order and upserts rules whose code is not
// in conflicts. Within one file the last line for a code wins.
func writePromotions(ctx context.Context, repo promotionUpserter, files []string, conflicts map[string]struct{}) (int, error) {
	written := 0
	for idx, path := range files {
		var upsertErr error
		if err := streamRules(ctx, path, func(rule pricing.Rule) bool {
			if _, ok := conflicts[rule.Code]; ok {
				return true
			}
			if err := repo.Upsert(ctx, rule); err != nil {
				upsertErr = errors.Wrapf(err, "upsert promotion %s", rule.Code)
				return false
			}
			written++
			if written%progressEvery == 0 {
				slog.Info("write progress", slog.Int("file", idx+1), slog.Int("written", written))
			}
			return true
		}); err != nil {
			return written, err
		}
		if upsertErr != nil {
			return written, upsertErr
		}
	}
	return written, nil
}

func sample(set map[string]struct{}, n int) []string {
	out := make([]string, 0, min(n, len(set)))
	for code := range set {
		if len(out) == n {
			break
		}
		out = append(out, code)
	}
	return out
}

func fileLabel(path string) string {
	return strings.TrimSuffix(filepath.Base(path), ".csv.gz")
}
