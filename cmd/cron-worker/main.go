package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/w3bsuki/driplo-final/internal/bootstrap"
	"github.com/w3bsuki/driplo-final/internal/cron"
	"github.com/w3bsuki/driplo-final/internal/listings"
	"github.com/w3bsuki/driplo-final/internal/payments"
	"github.com/w3bsuki/driplo-final/internal/payouts"
	"github.com/w3bsuki/driplo-final/internal/profiles"
	"github.com/w3bsuki/driplo-final/internal/transactions"
	"github.com/w3bsuki/driplo-final/pkg/metrics"
	"github.com/w3bsuki/driplo-final/pkg/outbox"
	"github.com/w3bsuki/driplo-final/pkg/redis"
	stripegw "github.com/w3bsuki/driplo-final/pkg/stripe"
)

const (
	lockKeyFormat       = "driplo:cron-worker:lock:%s"
	outboxRetentionRows = 500
)

func main() {
	cfg, logg := bootstrap.MustLoad("cron-worker")

	dbClient := bootstrap.MustDB(context.Background(), cfg, logg)
	defer bootstrap.Closer(logg, "database", dbClient.Close)()

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		bootstrap.Exit(logg, "failed to bootstrap redis", err)
	}
	defer bootstrap.Closer(logg, "redis", redisClient.Close)()

	stripeClient, err := stripegw.NewClient(context.Background(), cfg.Stripe, logg)
	if err != nil {
		bootstrap.Exit(logg, "failed to bootstrap stripe", err)
	}

	cronMetrics := metrics.NewCronJobMetrics(prometheus.DefaultRegisterer)
	paymentMetrics := metrics.NewPaymentMetrics(prometheus.DefaultRegisterer)

	gateway, err := stripegw.NewGateway(stripegw.GatewayParams{
		Client:            stripeClient,
		RequestsPerSecond: cfg.Stripe.RequestsPerS,
		Burst:             cfg.Stripe.RequestsBurst,
		Metrics:           paymentMetrics,
	})
	if err != nil {
		bootstrap.Exit(logg, "failed to create stripe gateway", err)
	}

	gormDB := dbClient.DB()
	outboxRepo := outbox.NewRepository(gormDB)
	transactionsRepo := transactions.NewRepository(gormDB)

	paymentsService, err := payments.NewService(payments.ServiceParams{
		Tx:            dbClient,
		Gateway:       gateway,
		Listings:      listings.NewRepository(gormDB),
		Transactions:  transactionsRepo,
		Payouts:       payouts.NewRepository(gormDB),
		Profiles:      profiles.NewRepository(gormDB),
		Outbox:        outbox.NewService(outboxRepo, logg),
		Config:        cfg.Payments,
		PublicBaseURL: cfg.App.PublicBaseURL,
		Metrics:       paymentMetrics,
		Logger:        logg,
	})
	if err != nil {
		bootstrap.Exit(logg, "failed to create payments service", err)
	}

	pendingJob, err := cron.NewPendingPaymentReconcileJob(cron.PendingPaymentReconcileJobParams{
		Logger:       logg,
		Transactions: transactionsRepo,
		Payments:     paymentsService,
		PendingAfter: cfg.Cron.PendingAfter,
		BatchSize:    cfg.Cron.ReconcileBatch,
	})
	if err != nil {
		bootstrap.Exit(logg, "failed to create pending payment job", err)
	}

	listingJob, err := cron.NewListingSoldReconcileJob(cron.ListingSoldReconcileJobParams{
		Logger:       logg,
		Transactions: transactionsRepo,
		Payments:     paymentsService,
		BatchSize:    cfg.Cron.ReconcileBatch,
	})
	if err != nil {
		bootstrap.Exit(logg, "failed to create listing reconcile job", err)
	}

	retentionJob, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:      logg,
		DB:          dbClient,
		Repository:  outboxRepo,
		DeadLetters: outbox.NewDeadLetters(dbClient.DB()),
		Retention:   cfg.Outbox.RetentionDays,
		DLQDays:     cfg.Outbox.DLQRetention,
		BatchSize:   outboxRetentionRows,
	})
	if err != nil {
		bootstrap.Exit(logg, "failed to create outbox retention job", err)
	}

	lock, err := cron.NewRedisLock(redisClient, lockKey(cfg.App.Env), cfg.Cron.LockTTL)
	if err != nil {
		bootstrap.Exit(logg, "failed to create cron lock", err)
	}

	registry, err := cron.NewRegistry(pendingJob, listingJob, retentionJob)
	if err != nil {
		bootstrap.Exit(logg, "failed to register cron jobs", err)
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:     logg,
		Registry:   registry,
		Lock:       lock,
		Metrics:    cronMetrics,
		Interval:   cfg.Cron.Interval,
		JobTimeout: cfg.Cron.JobTimeout,
	})
	if err != nil {
		bootstrap.Exit(logg, "failed to create cron service", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
	})

	metricsServer := metrics.Serve(ctx, logg, cfg.Cron.MetricsAddr)
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	logg.Info(ctx, "starting cron worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		bootstrap.Exit(logg, "cron worker stopped unexpectedly", err)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}

func lockKey(env string) string {
	if env == "" {
		env = "local"
	}
	return fmt.Sprintf(lockKeyFormat, env)
}
