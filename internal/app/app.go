// Package app wires storage, the order service and the HTTP server.
package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"go.uber.org/zap"

	"github.com/xenking/dash-orders/internal/domain/order"
	"github.com/xenking/dash-orders/internal/fixture"
	"github.com/xenking/dash-orders/internal/handler"
	"github.com/xenking/dash-orders/internal/messaging"
	"github.com/xenking/dash-orders/internal/storage/memory"
	"github.com/xenking/dash-orders/internal/storage/postgres"
	"github.com/xenking/dash-orders/pkg/health"
	"github.com/xenking/dash-orders/pkg/httpmiddleware"
)

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing",
		zap.String("addr", cfg.Addr),
		zap.String("storage", cfg.Storage),
	)

	healthSvc := health.New()
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))

	deps, closeStorage, err := openStorage(ctx, cfg, healthSvc)
	if err != nil {
		return err
	}
	defer closeStorage()

	events, closeEvents, err := openEvents(cfg, healthSvc)
	if err != nil {
		return err
	}
	defer closeEvents(lg)

	deps.Events = events
	deps.MeterProvider = m.MeterProvider()
	orderService, err := order.NewService(deps)
	if err != nil {
		return errors.Wrap(err, "create order service")
	}

	healthSvc.Start(ctx, 10*time.Second)
	healthSvc.SetReady(true)

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler:           NewRouter(ctx, cfg, lg, m, healthSvc, orderService),
	}

	// Graceful shutdown: wait for context cancellation, drain, then stop.
	shutdownDone := make(chan struct{})
	go func() {
		<-ctx.Done()
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
		close(shutdownDone)
	}()

	lg.Info("Server listening", zap.String("addr", cfg.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server")
	}
	<-shutdownDone
	return nil
}

// NewRouter builds the HTTP handler: probes at the root, the rate limited
// API under /api.
func NewRouter(
	ctx context.Context,
	cfg *Config,
	lg *zap.Logger,
	t httpmiddleware.Telemetry,
	healthSvc *health.Health,
	orders handler.OrderService,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		httpmiddleware.RequestID(),
		httpmiddleware.InjectLogger(lg),
		httpmiddleware.Recovery(),
		httpmiddleware.Instrument("orders-api", t),
		httpmiddleware.Labeler(),
		httpmiddleware.LogRequests(),
	)
	r.NotFound(handler.NotFound)
	r.MethodNotAllowed(handler.MethodNotAllowed)

	healthSvc.Routes(r)
	r.Group(func(r chi.Router) {
		r.Use(httpmiddleware.RateLimitWithCleanup(ctx, httpmiddleware.RateLimitConfig{
			Max:     cfg.RateLimit.Max,
			Window:  cfg.RateLimit.Window,
			KeyFunc: httpmiddleware.HeaderOrIP(handler.UserIDHeader),
		}))
		handler.NewHandler(orders).Routes(r)
	})
	return r
}

// openStorage returns service dependencies backed by the configured driver.
// The seed file, when set, is applied on every start; fixtures are upserts.
func openStorage(ctx context.Context, cfg *Config, healthSvc *health.Health) (order.ServiceDeps, func(), error) {
	var (
		deps order.ServiceDeps
		sink fixture.Sink
	)
	closeFn := func() {}
	switch cfg.Storage {
	case StorageMemory:
		s := memory.New()
		deps = order.ServiceDeps{
			Merchants:  s.Merchants(),
			Addresses:  s.Addresses(),
			Products:   s.Products(),
			Coupons:    s.Coupons(),
			Orders:     s.Orders(),
			UnitOfWork: s,
		}
		sink = s
	case StoragePostgres:
		pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return deps, nil, errors.Wrap(err, "create db pool")
		}
		if err := postgres.RunMigrations(ctx, pool); err != nil {
			pool.Close()
			return deps, nil, errors.Wrap(err, "run migrations")
		}
		healthSvc.AddReadinessCheck("postgres", 5*time.Second, health.PingCheck(pool))
		deps = order.ServiceDeps{
			Merchants:  postgres.NewMerchantRepository(pool),
			Addresses:  postgres.NewAddressRepository(pool),
			Products:   postgres.NewProductRepository(pool),
			Coupons:    postgres.NewCouponRepository(pool),
			Orders:     postgres.NewOrderRepository(pool),
			UnitOfWork: postgres.NewUnitOfWork(pool),
		}
		sink = postgres.NewSeeder(pool)
		closeFn = pool.Close
	default:
		return deps, nil, errors.Errorf("unknown storage driver %q", cfg.Storage)
	}

	if cfg.SeedFile != "" {
		fx, err := fixture.LoadFile(cfg.SeedFile)
		if err == nil {
			err = fixture.Apply(ctx, sink, fx)
		}
		if err != nil {
			closeFn()
			return deps, nil, errors.Wrapf(err, "seed from %s", cfg.SeedFile)
		}
	}
	return deps, closeFn, nil
}

// openEvents connects the event publisher. Without a broker URL events go
// to the log.
func openEvents(cfg *Config, healthSvc *health.Health) (order.EventPublisher, func(*zap.Logger), error) {
	if cfg.AMQP.URL == "" {
		return messaging.LogPublisher{}, func(*zap.Logger) {}, nil
	}
	pub, err := messaging.Dial(messaging.Config{URL: cfg.AMQP.URL, Exchange: cfg.AMQP.Exchange})
	if err != nil {
		return nil, nil, errors.Wrap(err, "connect event broker")
	}
	healthSvc.AddReadinessCheck("amqp", time.Second, health.PingCheck(pub))
	return pub, func(lg *zap.Logger) {
		if err := pub.Close(); err != nil {
			lg.Warn("Close event publisher", zap.Error(err))
		}
	}, nil
}
