package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/w3bsuki/driplo-final/internal/bootstrap"
	"github.com/w3bsuki/driplo-final/pkg/metrics"
	"github.com/w3bsuki/driplo-final/pkg/outbox"
	"github.com/w3bsuki/driplo-final/pkg/outbox/registry"
	"github.com/w3bsuki/driplo-final/pkg/pubsub"
)

const serviceName = "outbox-publisher"

func main() {
	cfg, logg := bootstrap.MustLoad(serviceName)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env, "serviceKind": serviceName})

	dbClient := bootstrap.MustDB(ctx, cfg, logg)
	defer bootstrap.Closer(logg, "database", dbClient.Close)()

	broker, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg)
	if err != nil {
		bootstrap.Exit(logg, "failed to bootstrap pubsub", err)
	}
	defer bootstrap.Closer(logg, "pubsub client", broker.Close)()

	events, err := registry.New(cfg.PubSub)
	if err != nil {
		bootstrap.Exit(logg, "failed to build event registry", err)
	}
	service, err := NewService(ServiceParams{
		Outbox:      cfg.Outbox,
		Logger:      logg,
		DB:          dbClient,
		Broker:      broker,
		Events:      outbox.NewRepository(dbClient.DB()),
		Registry:    events,
		DeadLetters: outbox.NewDeadLetters(dbClient.DB()),
		Metrics:     metrics.NewOutboxMetrics(prometheus.DefaultRegisterer),
	})
	if err != nil {
		bootstrap.Exit(logg, "failed to create outbox publisher", err)
	}

	metricsServer := metrics.Serve(ctx, logg, cfg.Outbox.MetricsAddr)
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	logg.Info(ctx, "starting outbox publisher")
	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "outbox publisher stopped unexpectedly", err)
		return
	}
	logg.Info(ctx, "outbox publisher shutting down gracefully")
}
