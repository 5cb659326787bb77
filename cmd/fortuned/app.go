package main

import (
	"context"
	"fmt"
	"time"

	"fortune-letter/internal/config"
	"fortune-letter/internal/database"
	"fortune-letter/internal/infrastructure/generator"
	"fortune-letter/internal/infrastructure/payment"
	"fortune-letter/internal/lock"
	"fortune-letter/internal/logging"
	"fortune-letter/internal/metrics"
	"fortune-letter/internal/repo"
	"fortune-letter/internal/server"
	"fortune-letter/internal/service"
	"fortune-letter/internal/tracing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
)

// app holds the process-wide dependencies, built once from configuration.
type app struct {
	cfg      *config.Config
	log      *zap.Logger
	registry *prometheus.Registry
	metrics  *metrics.Metrics
	store    repo.Store
	locker   service.Locker
	health   server.HealthFunc
	orders   service.OrderService
	closers  []func() error
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	log, err := logging.New("fortune-letter", cfg.Env)
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	a := &app{
		cfg:      cfg,
		log:      log,
		registry: registry,
		metrics:  metrics.New(registry),
	}

	if cfg.Tracing.Enabled {
		tp := tracing.NewProvider("fortune-letter", cfg.Tracing.SampleRatio, log.With(zap.String("component", "tracing")))
		a.closers = append(a.closers, func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return tp.Shutdown(ctx)
		})
	}

	switch cfg.Store {
	case config.StorePostgres:
		db, err := database.NewPostgres(ctx, cfg.Database.DSN())
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, db.Close)
		a.store = repo.NewPostgresStore(db.DB())
		a.locker = repo.NewAdvisoryLocker(db.DB())
		a.health = db.Health
	default:
		a.store = repo.NewMemoryStore()
		a.locker = lock.NewKeyed()
		a.health = func(context.Context) map[string]string {
			return map[string]string{"status": "up", "store": config.StoreMemory}
		}
		log.Warn("using in-memory store, data will not survive a restart")
	}

	provider, err := payment.NewProvider(payment.Config{
		Provider:   cfg.Payment.Provider,
		TossSecret: cfg.Payment.TossSecret,
		TossAPI:    cfg.Payment.TossAPI,
		Timeout:    cfg.Payment.Timeout,
	})
	if err != nil {
		a.close()
		return nil, err
	}

	gen, err := generator.New(cfg.Generation.Kind, cfg.Generation.APIKey, cfg.Generation.BaseURL, cfg.Generation.Model)
	if err != nil {
		a.close()
		return nil, err
	}

	a.orders = service.NewOrderService(a.store, provider, gen, a.locker,
		service.WithLogger(log.With(zap.String("component", "order_service"))),
		service.WithMetrics(a.metrics),
		service.WithPrice(cfg.Price),
		service.WithOrderName(cfg.OrderName),
		service.WithTimeouts(cfg.Payment.Timeout, cfg.Generation.Timeout),
	)

	log.Info("app_ready",
		zap.String("store", cfg.Store),
		zap.String("payment_provider", provider.Name()),
		zap.String("model", gen.Model()),
		zap.Int64("price", cfg.Price),
	)
	return a, nil
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.log.Warn("close_failed", zap.Error(err))
		}
	}
	_ = a.log.Sync()
}
