package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"

	"github.com/go-faster/errors"

	"github.com/xenking/chorbazzar/db"
	"github.com/xenking/chorbazzar/internal/domain/pricing"
	"github.com/xenking/chorbazzar/internal/domain/product"
	"github.com/xenking/chorbazzar/internal/storage/postgres"
)

func main() {
	var (
		databaseURL  string
		productsFile string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&productsFile, "products-file", "", "path to a products JSON file (defaults to the embedded catalog)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, productsFile); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, productsFile string) error {
	catalog, err := loadCatalog(productsFile)
	if err != nil {
		return err
	}

	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	if err := seedProducts(ctx, postgres.NewProductRepository(pool), catalog); err != nil {
		return errors.Wrap(err, "seed products")
	}
	if err := seedPromotions(ctx, postgres.NewPromotionRepository(pool), pricing.DefaultRules()); err != nil {
		return errors.Wrap(err, "seed promotions")
	}
	return nil
}

func loadCatalog(path string) (*product.Static, error) {
	data := db.Products
	if path != "" {
		slog.Info("reading products file", slog.String("path", path))

		var err error
		if data, err = os.ReadFile(path); err != nil {
			return nil, errors.Wrap(err, "read products file")
		}
	}
	return product.ParseStatic(data)
}

type productUpserter interface {
	Upsert(ctx context.Context, p product.Product) error
}

func seedProducts(ctx context.Context, repo productUpserter, catalog *product.Static) error {
	products, err := catalog.List(ctx)
	if err != nil {
		return err
	}

	slog.Info("upserting products", slog.Int("count", len(products)))

	for _, p := range products {
		if err := repo.Upsert(ctx, p); err != nil {
			return errors.Wrapf(err, "upsert product %s", p.ID)
		}

		slog.Info("upserted product", slog.String("id", p.ID), slog.String("title", p.Title))
	}
	return nil
}

type promotionUpserter interface {
	Upsert(ctx context.Context, rule pricing.Rule) error
}

func seedPromotions(ctx context.Context, repo promotionUpserter, rules []pricing.Rule) error {
	slog.Info("seeding promotions", slog.Int("count", len(rules)))

	for _, r := range rules {
		if err := repo.Upsert(ctx, r); err != nil {
			return errors.Wrapf(err, "upsert promotion %s", r.Code)
		}

		slog.Info("upserted promotion", slog.String("code", r.Code), slog.String("description", r.Description))
	}
	return nil
}
