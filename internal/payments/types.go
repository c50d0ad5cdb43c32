package payments

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	stripegw "github.com/w3bsuki/driplo-final/pkg/stripe"
	"github.com/w3bsuki/driplo-final/pkg/types"
)

// Gateway is the payment provider surface the orchestration needs.
type Gateway interface {
	CreateIntent(ctx context.Context, req stripegw.CreateIntentRequest) (*stripegw.Intent, error)
	ConfirmIntent(ctx context.Context, req stripegw.ConfirmIntentRequest) (*stripegw.Intent, error)
	CancelIntent(ctx context.Context, intentID, reason string) error
	GetIntent(ctx context.Context, intentID string) (*stripegw.Intent, error)
}

type CreateIntentInput struct {
	ListingID       uuid.UUID
	BuyerID         uuid.UUID
	BuyerEmail      string
	ShippingAddress types.ShippingAddress
}

type CreateIntentResult struct {
	ClientSecret    string          `json:"client_secret"`
	OrderID         string          `json:"order_id"`
	TotalAmount     decimal.Decimal `json:"total_amount"`
	PaymentIntentID string          `json:"-"`
}

// ConfirmInput accepts either the client secret or the bare intent id.
type ConfirmInput struct {
	BuyerID         uuid.UUID
	ClientSecret    string
	PaymentIntentID string
	PaymentMethodID string
	ShippingAddress *types.ShippingAddress
}

// Outcome tags the result of driving a payment forward.
type Outcome string

const (
	OutcomeCompleted      Outcome = "completed"
	OutcomeRequiresAction Outcome = "requires_action"
	OutcomeProcessing     Outcome = "processing"
	OutcomeFailed         Outcome = "failed"
	OutcomeUnchanged      Outcome = "unchanged"
)

type ConfirmResult struct {
	Outcome       Outcome
	OrderID       string
	ClientSecret  string
	ActionURL     string
	FailureReason string
}

type ManualInput struct {
	ListingID       uuid.UUID
	BuyerID         uuid.UUID
	ShippingAddress types.ShippingAddress
}

type ManualResult struct {
	OrderID      string          `json:"order_id"`
	TotalAmount  decimal.Decimal `json:"total_amount"`
	Revtag       string          `json:"revtag"`
	Instructions string          `json:"instructions"`
}

// GatewayEventType names the webhook events the service reacts to.
type GatewayEventType string

const (
	GatewayEventSucceeded GatewayEventType = "payment_intent.succeeded"
	GatewayEventFailed    GatewayEventType = "payment_intent.payment_failed"
	GatewayEventCanceled  GatewayEventType = "payment_intent.canceled"
)

type GatewayEvent struct {
	Type          GatewayEventType
	IntentID      string
	FailureReason string
}
