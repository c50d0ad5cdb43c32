package webhooks

import (
	"context"
	"io"
	"net/http"

	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/webhook"

	"github.com/w3bsuki/driplo-final/api/responses"
	stripewebhook "github.com/w3bsuki/driplo-final/internal/webhooks/stripe"
	pkgerrors "github.com/w3bsuki/driplo-final/pkg/errors"
	"github.com/w3bsuki/driplo-final/pkg/logger"
)

type StripeWebhookService interface {
	HandleEvent(ctx context.Context, event *stripe.Event) error
}

type stripeWebhookGuard interface {
	Claim(ctx context.Context, eventID string) (stripewebhook.ClaimState, error)
	Complete(ctx context.Context, eventID string) error
	Release(ctx context.Context, eventID string) error
}

type stripeClient interface {
	SigningSecret() string
}

// StripeWebhook verifies and applies payment intent events delivered by Stripe.
// Each event id is applied at most once. A delivery that arrives while another
// is still applying the same event gets 409, and a failed apply releases the
// claim; both make Stripe redeliver later.
func StripeWebhook(svc StripeWebhookService, client stripeClient, guard stripeWebhookGuard, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "webhook service unavailable"))
			return
		}
		if client == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "stripe client unavailable"))
			return
		}
		if guard == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "idempotency guard unavailable"))
			return
		}

		payload, err := io.ReadAll(r.Body)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read request body"))
			return
		}

		sigHeader := r.Header.Get("Stripe-Signature")
		if sigHeader == "" {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "stripe signature missing"))
			return
		}

		event, err := webhook.ConstructEvent(payload, sigHeader, client.SigningSecret())
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid stripe signature"))
			return
		}

		ctx = logWith(ctx, logg, event)
		state, err := guard.Claim(ctx, event.ID)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "webhook idempotency unavailable"))
			return
		}
		switch state {
		case stripewebhook.ClaimDone:
			responses.WriteSuccess(w, map[string]bool{"duplicate": true})
			return
		case stripewebhook.ClaimInProgress:
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeConflict, "event is already being processed"))
			return
		}

		if err := svc.HandleEvent(ctx, &event); err != nil {
			if relErr := guard.Release(context.WithoutCancel(ctx), event.ID); relErr != nil && logg != nil {
				logg.Error(ctx, "stripe.webhook.release_failed", relErr)
			}
			responses.WriteError(ctx, logg, w, err)
			return
		}
		if err := guard.Complete(context.WithoutCancel(ctx), event.ID); err != nil && logg != nil {
			logg.Error(ctx, "stripe.webhook.complete_failed", err)
		}

		if logg != nil {
			logg.Info(ctx, "stripe.webhook.processed")
		}
		responses.WriteSuccess(w, map[string]bool{"received": true})
	}
}

func logWith(ctx context.Context, logg *logger.Logger, event stripe.Event) context.Context {
	if logg == nil {
		return ctx
	}
	return logg.WithFields(ctx, map[string]any{"event_id": event.ID, "event_type": string(event.Type)})
}
