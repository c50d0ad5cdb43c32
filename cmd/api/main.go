package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/w3bsuki/driplo-final/api/routes"
	"github.com/w3bsuki/driplo-final/internal/audit"
	"github.com/w3bsuki/driplo-final/internal/bootstrap"
	"github.com/w3bsuki/driplo-final/internal/listings"
	"github.com/w3bsuki/driplo-final/internal/messaging"
	"github.com/w3bsuki/driplo-final/internal/payments"
	"github.com/w3bsuki/driplo-final/internal/payouts"
	"github.com/w3bsuki/driplo-final/internal/profiles"
	"github.com/w3bsuki/driplo-final/internal/transactions"
	stripewebhook "github.com/w3bsuki/driplo-final/internal/webhooks/stripe"
	"github.com/w3bsuki/driplo-final/pkg/auth"
	"github.com/w3bsuki/driplo-final/pkg/metrics"
	"github.com/w3bsuki/driplo-final/pkg/outbox"
	"github.com/w3bsuki/driplo-final/pkg/redis"
	stripegw "github.com/w3bsuki/driplo-final/pkg/stripe"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg, logg := bootstrap.MustLoad("api")

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
	outboxService := outbox.NewService(outbox.NewRepository(gormDB), logg)
	listingsRepo := listings.NewRepository(gormDB)
	transactionsRepo := transactions.NewRepository(gormDB)
	payoutsRepo := payouts.NewRepository(gormDB)

	paymentsService, err := payments.NewService(payments.ServiceParams{
		Tx:            dbClient,
		Gateway:       gateway,
		Listings:      listingsRepo,
		Transactions:  transactionsRepo,
		Payouts:       payoutsRepo,
		Profiles:      profiles.NewRepository(gormDB),
		Outbox:        outboxService,
		Config:        cfg.Payments,
		PublicBaseURL: cfg.App.PublicBaseURL,
		Metrics:       paymentMetrics,
		Logger:        logg,
	})
	if err != nil {
		bootstrap.Exit(logg, "failed to create payments service", err)
	}

	auditService, err := audit.NewService(audit.NewRepository(gormDB))
	if err != nil {
		bootstrap.Exit(logg, "failed to create audit service", err)
	}

	payoutsService, err := payouts.NewService(payouts.ServiceParams{
		Tx:           dbClient,
		Payouts:      payoutsRepo,
		Transactions: transactionsRepo,
		Audit:        auditService,
		Outbox:       outboxService,
		Metrics:      paymentMetrics,
		Logger:       logg,
	})
	if err != nil {
		bootstrap.Exit(logg, "failed to create payouts service", err)
	}

	messagingService, err := messaging.NewService(messaging.ServiceParams{
		Tx:       dbClient,
		Repo:     messaging.NewRepository(gormDB),
		Listings: listingsRepo,
		Outbox:   outboxService,
		Logger:   logg,
	})
	if err != nil {
		bootstrap.Exit(logg, "failed to create messaging service", err)
	}

	webhookService, err := stripewebhook.NewService(stripewebhook.ServiceParams{
		Payments: paymentsService,
		Logger:   logg,
	})
	if err != nil {
		bootstrap.Exit(logg, "failed to create stripe webhook service", err)
	}
	webhookGuard, err := stripewebhook.NewIdempotencyGuard(redisClient, cfg.RateLimit.WebhookTTL, "stripe-webhook")
	if err != nil {
		bootstrap.Exit(logg, "failed to create stripe webhook guard", err)
	}
	tokens, err := auth.NewTokens(cfg.JWT)
	if err != nil {
		bootstrap.Exit(logg, "failed to configure token verification", err)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":          cfg.App.Env,
		"addr":         addr,
		"stripe_env":   stripeClient.Environment(),
		"service_kind": cfg.Service.Kind,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.Params{
			Config:        cfg,
			Logger:        logg,
			DB:            dbClient,
			Redis:         redisClient,
			Gatherer:      prometheus.DefaultGatherer,
			Tokens:        tokens,
			Payments:      paymentsService,
			Payouts:       payoutsService,
			Messaging:     messagingService,
			Stripe:        stripeClient,
			StripeWebhook: webhookService,
			WebhookGuard:  webhookGuard,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			bootstrap.Exit(logg, "api server stopped unexpectedly", err)
		}
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "api server shutdown failed", err)
		}
		logg.Info(ctx, "api server shut down gracefully")
	}
}
