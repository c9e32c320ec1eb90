package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/laglue/storefront/api/middleware"
	"github.com/laglue/storefront/api/routes"
	"github.com/laglue/storefront/internal/auth"
	"github.com/laglue/storefront/internal/catalogsync"
	"github.com/laglue/storefront/internal/checkout"
	"github.com/laglue/storefront/internal/ordercode"
	"github.com/laglue/storefront/internal/platform"
	"github.com/laglue/storefront/internal/storefront"
	"github.com/laglue/storefront/pkg/config"
	"github.com/laglue/storefront/pkg/events"
	"github.com/laglue/storefront/pkg/instance"
	"github.com/laglue/storefront/pkg/kv"
	"github.com/laglue/storefront/pkg/logger"
	"github.com/laglue/storefront/pkg/metrics"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	instanceID := instance.GetID()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"instance": instanceID,
	})

	backend, err := platform.OpenBackend(ctx, cfg, logg)
	if err != nil {
		logg.Error(ctx, "failed to open store", err)
		os.Exit(1)
	}
	defer func() {
		if err := backend.Close(); err != nil {
			logg.Error(context.Background(), "error closing store", err)
		}
	}()
	store := backend.Store

	holder, loader, err := platform.LoadCatalog(ctx, cfg.Sync, store, logg)
	if err != nil {
		logg.Error(ctx, "failed to load catalog", err)
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	syncService, err := catalogsync.NewService(catalogsync.ServiceParams{
		Logger:   logg,
		Loader:   loader,
		Holder:   holder,
		Store:    store,
		Notifier: store,
		Metrics:  metrics.NewSyncMetrics(registry),
		Interval: cfg.Sync.Interval,
		Throttle: cfg.Sync.Throttle,
		StampKey: kv.InstanceKey(instanceID, kv.KeyLastSync),
	})
	if err != nil {
		logg.Error(ctx, "failed to create sync service", err)
		os.Exit(1)
	}

	profiles, err := auth.NewProfileStore(store, logg)
	if err != nil {
		logg.Error(ctx, "failed to create profile store", err)
		os.Exit(1)
	}
	sessions, err := storefront.NewRegistry(storefront.RegistryParams{
		Store:      store,
		Catalog:    holder,
		Profiles:   profiles,
		Storefront: cfg.Storefront,
		Logger:     logg,
		IdleTTL:    cfg.Device.IdleTTL,
	})
	if err != nil {
		logg.Error(ctx, "failed to create session registry", err)
		os.Exit(1)
	}

	codes, err := ordercode.NewGenerator(ordercode.ParamsFromConfig(cfg.Storefront, store, logg))
	if err != nil {
		logg.Error(ctx, "failed to create order code generator", err)
		os.Exit(1)
	}

	publisher, err := events.New(ctx, cfg, logg)
	if err != nil {
		logg.Error(ctx, "failed to create event publisher", err)
		os.Exit(1)
	}
	defer func() {
		if err := publisher.Close(); err != nil {
			logg.Error(context.Background(), "error closing event publisher", err)
		}
	}()

	checkoutService, err := checkout.NewService(checkout.ServiceParams{
		Store:          store,
		Codes:          codes,
		Publisher:      publisher,
		PublishTimeout: cfg.Events.Timeout,
		Metrics:        metrics.NewOrderMetrics(registry),
		Storefront:     cfg.Storefront,
		Logger:         logg,
	})
	if err != nil {
		logg.Error(ctx, "failed to create checkout service", err)
		os.Exit(1)
	}

	var limiter middleware.RateLimiter = middleware.NewMemoryRateLimiter(nil)
	if backend.Redis != nil {
		limiter = backend.Redis
	}

	go func() {
		if err := syncService.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logg.Error(ctx, "catalog sync stopped unexpectedly", err)
		}
	}()

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx = logg.WithField(ctx, "addr", addr)

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.RouterParams{
			Config:      cfg,
			Logger:      logg,
			Store:       store,
			Health:      store,
			Catalog:     holder,
			Sessions:    sessions,
			Checkout:    checkoutService,
			Codes:       codes,
			RateLimiter: limiter,
			Metrics:     registry,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logg.Info(ctx, "starting api server")
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		logg.Info(ctx, "shutting down api server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "graceful shutdown failed", err)
		}
		checkoutService.Wait()
	}
}
