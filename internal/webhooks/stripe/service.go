package stripewebhook

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/stripe/stripe-go/v84"

	"github.com/w3bsuki/driplo-final/internal/payments"
	pkgerrors "github.com/w3bsuki/driplo-final/pkg/errors"
	"github.com/w3bsuki/driplo-final/pkg/logger"
)

type gatewayEventHandler interface {
	HandleGatewayEvent(ctx context.Context, event payments.GatewayEvent) (payments.Outcome, error)
}

type ServiceParams struct {
	Payments gatewayEventHandler
	Logger   *logger.Logger
}

// Service translates verified Stripe events into payment state changes.
type Service struct {
	payments gatewayEventHandler
	logg     *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Payments == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "payments service required")
	}
	return &Service{payments: params.Payments, logg: params.Logger}, nil
}

// HandleEvent acknowledges event types it does not act on.
func (s *Service) HandleEvent(ctx context.Context, event *stripe.Event) error {
	if event == nil || event.Data == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "stripe event data required")
	}

	var kind payments.GatewayEventType
	switch event.Type {
	case stripe.EventTypePaymentIntentSucceeded:
		kind = payments.GatewayEventSucceeded
	case stripe.EventTypePaymentIntentPaymentFailed:
		kind = payments.GatewayEventFailed
	case stripe.EventTypePaymentIntentCanceled:
		kind = payments.GatewayEventCanceled
	default:
		return nil
	}

	var intent stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode payment intent event")
	}

	outcome, err := s.payments.HandleGatewayEvent(ctx, payments.GatewayEvent{
		Type:          kind,
		IntentID:      intent.ID,
		FailureReason: failureReason(&intent),
	})
	if err != nil {
		return err
	}
	if s.logg != nil {
		s.logg.Info(s.logg.WithFields(ctx, map[string]any{
			"stripe_event_id":   event.ID,
			"event_type":        string(event.Type),
			"payment_intent_id": intent.ID,
			"outcome":           string(outcome),
		}), "stripe payment event applied")
	}
	return nil
}

func failureReason(intent *stripe.PaymentIntent) string {
	if intent.LastPaymentError != nil {
		if msg := strings.TrimSpace(intent.LastPaymentError.Msg); msg != "" {
			return msg
		}
		if code := string(intent.LastPaymentError.Code); code != "" {
			return code
		}
	}
	if intent.CancellationReason != "" {
		return "canceled: " + string(intent.CancellationReason)
	}
	return ""
}
