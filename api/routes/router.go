package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/w3bsuki/driplo-final/api/controllers"
	webhookcontrollers "github.com/w3bsuki/driplo-final/api/controllers/webhooks"
	"github.com/w3bsuki/driplo-final/api/middleware"
	"github.com/w3bsuki/driplo-final/internal/messaging"
	"github.com/w3bsuki/driplo-final/internal/payments"
	"github.com/w3bsuki/driplo-final/internal/payouts"
	stripewebhook "github.com/w3bsuki/driplo-final/internal/webhooks/stripe"
	"github.com/w3bsuki/driplo-final/pkg/auth"
	"github.com/w3bsuki/driplo-final/pkg/config"
	"github.com/w3bsuki/driplo-final/pkg/enums"
	"github.com/w3bsuki/driplo-final/pkg/logger"
	"github.com/w3bsuki/driplo-final/pkg/redis"
)

type signingClient interface {
	SigningSecret() string
}

// Params carries everything the router hands to controllers.
type Params struct {
	Config   *config.Config
	Logger   *logger.Logger
	DB       controllers.Pinger
	Redis    *redis.Client
	Gatherer prometheus.Gatherer
	Tokens   *auth.Tokens

	Payments  payments.Service
	Payouts   payouts.Service
	Messaging messaging.Service

	Stripe        signingClient
	StripeWebhook webhookcontrollers.StripeWebhookService
	WebhookGuard  *stripewebhook.IdempotencyGuard
}

func NewRouter(p Params) http.Handler {
	cfg := p.Config
	logg := p.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	rateLimit := func(policy middleware.RateLimitPolicy) func(http.Handler) http.Handler {
		if p.Redis == nil {
			return func(next http.Handler) http.Handler { return next }
		}
		return middleware.RateLimit(policy, p.Redis, logg)
	}
	paymentPolicy := middleware.RateLimitPolicy{Name: "payments", Limit: cfg.RateLimit.PaymentLimit, Window: cfg.RateLimit.Window}
	messagePolicy := middleware.RateLimitPolicy{Name: "messages", Limit: cfg.RateLimit.MessageLimit, Window: cfg.RateLimit.Window}
	adminPolicy := middleware.RateLimitPolicy{Name: "admin", Limit: cfg.RateLimit.AdminLimit, Window: cfg.RateLimit.Window}

	deps := map[string]controllers.Pinger{"db": p.DB}
	if p.Redis != nil {
		deps["redis"] = p.Redis
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/", controllers.HealthLive())
		r.Get("/live", controllers.HealthLive())
		r.Get("/ready", controllers.HealthReady(deps, logg))
	})
	r.Method(http.MethodGet, "/metrics", controllers.Metrics(p.Gatherer))

	r.Post("/api/v1/webhooks/stripe", webhookcontrollers.StripeWebhook(p.StripeWebhook, p.Stripe, p.WebhookGuard, logg))

	r.Group(func(r chi.Router) {
		r.Use(middleware.Auth(p.Tokens, logg))
		if cfg.RateLimit.IdempotencyOn && p.Redis != nil {
			r.Use(middleware.Idempotency(p.Redis, logg))
		}

		r.Route("/api/v1", func(r chi.Router) {
			r.Group(func(r chi.Router) {
				r.Use(rateLimit(paymentPolicy))
				r.Post("/payment-intent", controllers.CreatePaymentIntent(p.Payments, logg))
				r.Post("/payment-confirm", controllers.ConfirmPayment(p.Payments, logg))
				r.Post("/manual-payment", controllers.CreateManualPayment(p.Payments, logg))
			})

			r.Route("/conversations", func(r chi.Router) {
				r.Get("/", controllers.ListConversations(p.Messaging, logg))
				r.Get("/archived", controllers.ListArchivedConversations(p.Messaging, logg))
				r.With(rateLimit(messagePolicy)).Post("/", controllers.StartConversation(p.Messaging, logg))
				r.Route("/{conversationId}", func(r chi.Router) {
					r.Get("/", controllers.GetConversation(p.Messaging, logg))
					r.With(rateLimit(messagePolicy)).Post("/messages", controllers.SendMessage(p.Messaging, logg))
					r.Post("/archive", controllers.ArchiveConversation(p.Messaging, logg))
					r.Post("/unarchive", controllers.UnarchiveConversation(p.Messaging, logg))
				})
			})
		})

		r.Route("/api/admin", func(r chi.Router) {
			r.Use(middleware.RequireRole(string(enums.UserRoleAdmin), logg))
			r.Use(rateLimit(adminPolicy))
			r.Post("/payouts/batch", controllers.AdminPayoutBatch(p.Payouts, logg))
		})
	})

	return r
}
