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
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/laglue/storefront/internal/catalogsync"
	"github.com/laglue/storefront/internal/platform"
	"github.com/laglue/storefront/pkg/config"
	"github.com/laglue/storefront/pkg/instance"
	"github.com/laglue/storefront/pkg/kv"
	"github.com/laglue/storefront/pkg/logger"
	"github.com/laglue/storefront/pkg/metrics"
)

// sync-worker runs the catalog poller without the HTTP API so a shared store
// keeps its catalog migrated and observed even when no api replica is up.
func main() {
	logg := logger.New(logger.Options{ServiceName: "sync-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "sync-worker",
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

	holder, loader, err := platform.LoadCatalog(ctx, cfg.Sync, backend.Store, logg)
	if err != nil {
		logg.Error(ctx, "failed to load catalog", err)
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	service, err := catalogsync.NewService(catalogsync.ServiceParams{
		Logger:   logg,
		Loader:   loader,
		Holder:   holder,
		Store:    backend.Store,
		Notifier: backend.Store,
		Metrics:  metrics.NewSyncMetrics(registry),
		Interval: cfg.Sync.Interval,
		Throttle: cfg.Sync.Throttle,
		StampKey: kv.InstanceKey(instanceID, kv.KeyLastSync),
	})
	if err != nil {
		logg.Error(ctx, "failed to create sync service", err)
		os.Exit(1)
	}

	var metricsServer *http.Server
	if cfg.Metrics.Enabled {
		mux := http.NewServeMux()
		mux.Handle(cfg.Metrics.Path, promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
		metricsServer = &http.Server{
			Addr:              ":" + cfg.App.Port,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logg.Error(ctx, "metrics server stopped", err)
			}
		}()
	}

	logg.Info(ctx, "starting sync worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "sync worker stopped unexpectedly", err)
		os.Exit(1)
	}

	if metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}

	logg.Info(ctx, "sync worker shutting down gracefully")
}
