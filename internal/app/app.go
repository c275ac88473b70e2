package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/chorbazzar/db"
	"github.com/xenking/chorbazzar/internal/domain/order"
	"github.com/xenking/chorbazzar/internal/domain/pricing"
	"github.com/xenking/chorbazzar/internal/domain/product"
	"github.com/xenking/chorbazzar/internal/events"
	"github.com/xenking/chorbazzar/internal/handler"
	"github.com/xenking/chorbazzar/internal/session"
	"github.com/xenking/chorbazzar/internal/storage"
	"github.com/xenking/chorbazzar/internal/storage/file"
	"github.com/xenking/chorbazzar/internal/storage/memory"
	"github.com/xenking/chorbazzar/internal/storage/postgres"
	"github.com/xenking/chorbazzar/internal/storage/redis"
	"github.com/xenking/chorbazzar/pkg/health"
	"github.com/xenking/chorbazzar/pkg/httpmiddleware"
)

const serviceName = "storefront-api"

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing",
		zap.String("addr", cfg.Addr),
		zap.String("storage", cfg.Storage.Driver),
	)

	healthSvc := health.New()
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))

	// PostgreSQL backs the catalog, promotions and orders when configured.
	var pool *pgxpool.Pool
	if cfg.DatabaseURL != "" {
		var err error
		if pool, err = postgres.NewPool(ctx, cfg.DatabaseURL); err != nil {
			return errors.Wrap(err, "create db pool")
		}
		defer pool.Close()

		if err := postgres.RunMigrations(ctx, pool); err != nil {
			return errors.Wrap(err, "run migrations")
		}
		healthSvc.AddReadinessCheck("postgres", 5*time.Second, health.PingCheck(pool))
	}

	records, closeRecords, err := openStorage(ctx, m, cfg, pool)
	if err != nil {
		return errors.Wrap(err, "open storage")
	}
	defer closeRecords()
	if p, ok := records.(storage.Pinger); ok {
		healthSvc.AddReadinessCheck("storage", 5*time.Second, health.PingCheck(p))
	}

	var (
		catalog  product.Repository
		registry pricing.Registry
		orders   order.Repository
	)
	if pool != nil {
		promotions := postgres.NewPromotionRepository(pool)
		guarded, err := pricing.NewGuardedRegistry(ctx, promotions, promotions)
		if err != nil {
			return errors.Wrap(err, "load promotion codes")
		}
		catalog = postgres.NewProductRepository(pool)
		registry = guarded
		orders = postgres.NewOrderRepository(pool)
	} else {
		static, err := product.ParseStatic(db.Products)
		if err != nil {
			return errors.Wrap(err, "load seed catalog")
		}
		catalog = static
		registry = pricing.NewTable(pricing.DefaultRules()...)
		orders = order.NewMemoryRepository()
	}

	pricingCfg, err := cfg.Pricing.Parse()
	if err != nil {
		return errors.Wrap(err, "pricing config")
	}
	engine := pricing.NewEngine(pricingCfg, registry)

	var publisher order.Publisher
	if cfg.Events.AMQPURL != "" {
		p, err := events.Dial(cfg.Events.AMQPURL, cfg.Events.Exchange)
		if err != nil {
			return errors.Wrap(err, "connect events")
		}
		defer func() {
			if err := p.Close(); err != nil {
				lg.Warn("Close events publisher", zap.Error(err))
			}
		}()
		publisher = p
	}

	sessions := session.NewRegistry(session.Config{
		Storage:  records,
		Engine:   engine,
		IdleTTL:  cfg.Session.IdleTTL,
		ToastTTL: cfg.Session.ToastTTL,
		Logger:   lg,
		Meter:    m.MeterProvider().Meter(serviceName),
	})
	checkout := order.NewService(catalog, order.SimulatedPayment{Delay: cfg.Checkout.PaymentDelay}, orders, publisher)

	mux := handler.New(handler.Config{ImageBaseURL: cfg.ImageBaseURL}, catalog, sessions, checkout).Routes()
	mux.Get("/livez", healthSvc.LiveEndpoint)
	mux.Get("/readyz", healthSvc.ReadyEndpoint)

	g, gctx := errgroup.WithContext(ctx)
	healthSvc.Start(gctx, 10*time.Second)
	healthSvc.SetReady(true)

	routeFinder := httpmiddleware.ChiRouteFinder(mux)
	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		// Checkout waits for the simulated payment.
		WriteTimeout:   10*time.Second + cfg.Checkout.PaymentDelay,
		IdleTimeout:    120 * time.Second,
		MaxHeaderBytes: 1 << 20,
		Addr:           cfg.Addr,
		Handler: httpmiddleware.Wrap(mux,
			httpmiddleware.InjectLogger(lg),
			httpmiddleware.RequestID(),
			httpmiddleware.Recovery(),
			httpmiddleware.CORS(httpmiddleware.CORSConfig{
				AllowOrigins:     cfg.CORS.Origins,
				AllowHeaders:     []string{"Content-Type", handler.SessionHeader, httpmiddleware.RequestIDHeader},
				ExposeHeaders:    []string{handler.SessionHeader, httpmiddleware.RequestIDHeader},
				AllowCredentials: cfg.CORS.AllowCredentials,
				MaxAge:           86400,
			}),
			httpmiddleware.RateLimitWithCleanup(gctx, httpmiddleware.RateLimitConfig{
				Max:     cfg.RateLimit.Max,
				Window:  cfg.RateLimit.Window,
				KeyFunc: httpmiddleware.HeaderOrIP(handler.SessionHeader),
			}),
			httpmiddleware.Instrument(serviceName, routeFinder, m.TracerProvider(), m.MeterProvider()),
			httpmiddleware.LogRequests(routeFinder),
		),
	}

	g.Go(func() error {
		return sessions.Run(gctx)
	})
	// Graceful shutdown: wait for context cancellation, drain, then stop.
	g.Go(func() error {
		<-gctx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		healthSvc.Stop()
		return nil
	})
	g.Go(func() error {
		lg.Info("Server listening", zap.String("addr", cfg.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "server")
		}
		return nil
	})

	return g.Wait()
}

// openStorage returns the record store selected by cfg.Storage.Driver and a
// function releasing it.
func openStorage(ctx context.Context, m *app.Telemetry, cfg *Config, pool *pgxpool.Pool) (storage.Store, func(), error) {
	noop := func() {}
	switch cfg.Storage.Driver {
	case DriverMemory:
		return memory.New(), noop, nil
	case DriverFile:
		s, err := file.New(cfg.Storage.Dir)
		if err != nil {
			return nil, nil, err
		}
		return s, noop, nil
	case DriverPostgres:
		if pool == nil {
			return nil, nil, errors.New("postgres storage requires a database URL")
		}
		return postgres.NewRecordStore(pool), noop, nil
	case DriverRedis:
		rc := cfg.Storage.Redis
		s, err := redis.New(ctx, redis.Options{
			Addr:           rc.Addr,
			Password:       rc.Password,
			DB:             rc.DB,
			Prefix:         rc.Prefix,
			TracerProvider: m.TracerProvider(),
			MeterProvider:  m.MeterProvider(),
		})
		if err != nil {
			return nil, nil, err
		}
		return s, func() { _ = s.Close() }, nil
	default:
		return nil, nil, errors.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
}
