package stripe

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/paymentintent"
	"golang.org/x/time/rate"

	pkgerrors "github.com/w3bsuki/driplo-final/pkg/errors"
	"github.com/w3bsuki/driplo-final/pkg/metrics"
	"github.com/w3bsuki/driplo-final/pkg/types"
)

// PaymentFailedMessage is shown to buyers whenever the card network declines.
const PaymentFailedMessage = "Payment failed. Please try again."

// IntentStatus is the gateway-side lifecycle of a payment intent.
type IntentStatus string

const (
	IntentSucceeded      IntentStatus = "succeeded"
	IntentRequiresAction IntentStatus = "requires_action"
	IntentProcessing     IntentStatus = "processing"
	IntentCanceled       IntentStatus = "canceled"
	IntentFailed         IntentStatus = "failed"
	IntentOpen           IntentStatus = "open"
)

// Intent is the gateway view of a payment intent.
type Intent struct {
	ID            string
	ClientSecret  string
	Status        IntentStatus
	AmountCents   int64
	Currency      string
	ActionURL     string
	FailureReason string
	Metadata      map[string]string
}

type CreateIntentRequest struct {
	AmountCents    int64
	Currency       string
	Description    string
	ReceiptEmail   string
	Metadata       map[string]string
	IdempotencyKey string
}

type ConfirmIntentRequest struct {
	IntentID        string
	PaymentMethodID string
	ReturnURL       string
	Shipping        *types.ShippingAddress
	Billing         *types.ShippingAddress
	IdempotencyKey  string
}

// intentAPI is the slice of the Stripe SDK the gateway calls.
type intentAPI struct {
	create  func(*stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
	confirm func(string, *stripe.PaymentIntentConfirmParams) (*stripe.PaymentIntent, error)
	cancel  func(string, *stripe.PaymentIntentCancelParams) (*stripe.PaymentIntent, error)
	get     func(string, *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
}

func defaultIntentAPI() intentAPI {
	return intentAPI{
		create:  paymentintent.New,
		confirm: paymentintent.Confirm,
		cancel:  paymentintent.Cancel,
		get:     paymentintent.Get,
	}
}

// GatewayParams configure the payment gateway adapter.
type GatewayParams struct {
	Client            *Client
	RequestsPerSecond float64
	Burst             int
	Metrics           *metrics.PaymentMetrics
}

// Gateway adapts Stripe payment intents to the marketplace checkout flow.
// Outbound calls share one token bucket so bursts cannot trip Stripe's rate limits.
type Gateway struct {
	api     intentAPI
	limiter *rate.Limiter
	metrics *metrics.PaymentMetrics
}

// NewGateway builds the adapter. The Stripe key must already be configured via NewClient.
func NewGateway(params GatewayParams) (*Gateway, error) {
	if params.Client == nil {
		return nil, errors.New("stripe client required")
	}
	return newGateway(defaultIntentAPI(), params.RequestsPerSecond, params.Burst, params.Metrics), nil
}

func newGateway(api intentAPI, rps float64, burst int, m *metrics.PaymentMetrics) *Gateway {
	limit := rate.Inf
	if rps > 0 {
		limit = rate.Limit(rps)
	}
	if burst <= 0 {
		burst = 1
	}
	return &Gateway{
		api:     api,
		limiter: rate.NewLimiter(limit, burst),
		metrics: m,
	}
}

func (g *Gateway) CreateIntent(ctx context.Context, req CreateIntentRequest) (*Intent, error) {
	if req.AmountCents <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive")
	}
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(req.AmountCents),
		Currency: stripe.String(strings.ToLower(req.Currency)),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	if req.Description != "" {
		params.Description = stripe.String(req.Description)
	}
	if req.ReceiptEmail != "" {
		params.ReceiptEmail = stripe.String(req.ReceiptEmail)
	}
	for key, value := range req.Metadata {
		params.AddMetadata(key, value)
	}
	if req.IdempotencyKey != "" {
		params.SetIdempotencyKey(req.IdempotencyKey)
	}

	var pi *stripe.PaymentIntent
	err := g.call(ctx, "create_intent", func() (err error) {
		params.Context = ctx
		pi, err = g.api.create(params)
		return err
	})
	if err != nil {
		return nil, err
	}
	return toIntent(pi), nil
}

func (g *Gateway) ConfirmIntent(ctx context.Context, req ConfirmIntentRequest) (*Intent, error) {
	if req.IntentID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment intent id required")
	}
	params := &stripe.PaymentIntentConfirmParams{}
	if req.PaymentMethodID != "" {
		params.PaymentMethod = stripe.String(req.PaymentMethodID)
	}
	if req.ReturnURL != "" {
		params.ReturnURL = stripe.String(req.ReturnURL)
	}
	if req.Shipping != nil {
		params.Shipping = shippingParams(*req.Shipping)
	}
	if req.Billing != nil {
		params.PaymentMethodData = &stripe.PaymentIntentPaymentMethodDataParams{
			Type: stripe.String(string(stripe.PaymentMethodTypeCard)),
			BillingDetails: &stripe.PaymentIntentPaymentMethodDataBillingDetailsParams{
				Name:    stripe.String(req.Billing.Name),
				Address: addressParams(*req.Billing),
			},
		}
	}
	if req.IdempotencyKey != "" {
		params.SetIdempotencyKey(req.IdempotencyKey)
	}

	var pi *stripe.PaymentIntent
	err := g.call(ctx, "confirm_intent", func() (err error) {
		params.Context = ctx
		pi, err = g.api.confirm(req.IntentID, params)
		return err
	})
	if err != nil {
		return nil, err
	}
	return toIntent(pi), nil
}

// CancelIntent voids an intent that will never be captured.
func (g *Gateway) CancelIntent(ctx context.Context, intentID, reason string) error {
	if intentID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "payment intent id required")
	}
	params := &stripe.PaymentIntentCancelParams{}
	if reason != "" {
		params.CancellationReason = stripe.String(reason)
	}
	return g.call(ctx, "cancel_intent", func() error {
		params.Context = ctx
		_, err := g.api.cancel(intentID, params)
		return err
	})
}

func (g *Gateway) GetIntent(ctx context.Context, intentID string) (*Intent, error) {
	if intentID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment intent id required")
	}
	params := &stripe.PaymentIntentParams{}
	var pi *stripe.PaymentIntent
	err := g.call(ctx, "get_intent", func() (err error) {
		params.Context = ctx
		pi, err = g.api.get(intentID, params)
		return err
	})
	if err != nil {
		return nil, err
	}
	return toIntent(pi), nil
}

func (g *Gateway) call(ctx context.Context, name string, fn func() error) error {
	if err := g.limiter.Wait(ctx); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeUpstream, err, "payment provider throttled")
	}
	start := time.Now()
	err := fn()
	g.metrics.ObserveGatewayCall(name, time.Since(start), err)
	if err != nil {
		return mapStripeError(err, name)
	}
	return nil
}

// mapStripeError turns card declines into PAYMENT_FAILED and everything else into UPSTREAM_ERROR.
func mapStripeError(err error, op string) error {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) && stripeErr.Type == stripe.ErrorTypeCard {
		return pkgerrors.Wrap(pkgerrors.CodePaymentFailed, err, PaymentFailedMessage)
	}
	return pkgerrors.Wrap(pkgerrors.CodeUpstream, err, fmt.Sprintf("stripe %s failed", op))
}

func toIntent(pi *stripe.PaymentIntent) *Intent {
	if pi == nil {
		return nil
	}
	intent := &Intent{
		ID:           pi.ID,
		ClientSecret: pi.ClientSecret,
		Status:       mapStatus(pi),
		AmountCents:  pi.Amount,
		Currency:     string(pi.Currency),
		Metadata:     pi.Metadata,
	}
	if pi.NextAction != nil && pi.NextAction.RedirectToURL != nil {
		intent.ActionURL = pi.NextAction.RedirectToURL.URL
	}
	if pi.LastPaymentError != nil {
		intent.FailureReason = pi.LastPaymentError.Msg
	}
	if intent.Status == IntentCanceled && intent.FailureReason == "" && pi.CancellationReason != "" {
		intent.FailureReason = "canceled: " + string(pi.CancellationReason)
	}
	return intent
}

func mapStatus(pi *stripe.PaymentIntent) IntentStatus {
	switch pi.Status {
	case stripe.PaymentIntentStatusSucceeded:
		return IntentSucceeded
	case stripe.PaymentIntentStatusRequiresAction:
		return IntentRequiresAction
	case stripe.PaymentIntentStatusProcessing:
		return IntentProcessing
	case stripe.PaymentIntentStatusCanceled:
		return IntentCanceled
	case stripe.PaymentIntentStatusRequiresPaymentMethod:
		// a confirmed intent falls back here after a decline
		if pi.LastPaymentError != nil {
			return IntentFailed
		}
		return IntentOpen
	default:
		return IntentOpen
	}
}

func shippingParams(addr types.ShippingAddress) *stripe.ShippingDetailsParams {
	return &stripe.ShippingDetailsParams{
		Name:    stripe.String(addr.Name),
		Address: addressParams(addr),
	}
}

func addressParams(addr types.ShippingAddress) *stripe.AddressParams {
	address := &stripe.AddressParams{
		Line1:      stripe.String(addr.AddressLine1),
		City:       stripe.String(addr.City),
		PostalCode: stripe.String(addr.PostalCode),
		Country:    stripe.String(addr.Country),
	}
	if addr.AddressLine2 != "" {
		address.Line2 = stripe.String(addr.AddressLine2)
	}
	if addr.State != "" {
		address.State = stripe.String(addr.State)
	}
	return address
}

// IntentIDFromClientSecret strips the secret suffix: "pi_123_secret_abc" -> "pi_123".
func IntentIDFromClientSecret(secret string) (string, error) {
	secret = strings.TrimSpace(secret)
	idx := strings.Index(secret, "_secret_")
	if idx <= 0 || !strings.HasPrefix(secret, "pi_") {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "invalid client secret")
	}
	return secret[:idx], nil
}
