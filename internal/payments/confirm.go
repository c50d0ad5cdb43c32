package payments

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/w3bsuki/driplo-final/pkg/enums"
	pkgerrors "github.com/w3bsuki/driplo-final/pkg/errors"
	stripegw "github.com/w3bsuki/driplo-final/pkg/stripe"
)

// ConfirmPayment confirms the buyer's intent at the gateway and applies the result. A
// transaction that is already terminal short-circuits without calling the gateway.
func (s *service) ConfirmPayment(ctx context.Context, input ConfirmInput) (*ConfirmResult, error) {
	if input.BuyerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	intentID, err := resolveIntentID(input)
	if err != nil {
		return nil, err
	}
	paymentMethod := strings.TrimSpace(input.PaymentMethodID)
	if paymentMethod == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment_method_id is required")
	}

	txn, err := s.transactions.FindByPaymentIntentID(ctx, intentID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "load transaction")
	}
	if txn == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, MsgTransactionNotFound)
	}
	if txn.BuyerID != input.BuyerID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "Not authorized to confirm this payment")
	}
	ctx = s.logCtx(ctx, txn.ID)

	switch txn.Status {
	case enums.TransactionStatusCompleted:
		s.metrics.IncOutcome("confirm", "replayed")
		return &ConfirmResult{Outcome: OutcomeCompleted, OrderID: txn.ID}, nil
	case enums.TransactionStatusFailed:
		s.metrics.IncOutcome("confirm", "replayed")
		return &ConfirmResult{Outcome: OutcomeFailed, OrderID: txn.ID, FailureReason: deref(txn.FailureReason)}, nil
	}

	// the buyer's address doubles as the card billing address
	address := txn.ShippingAddress
	if input.ShippingAddress != nil {
		address = input.ShippingAddress.Normalize()
	}
	intent, err := s.gateway.ConfirmIntent(ctx, stripegw.ConfirmIntentRequest{
		IntentID:        intentID,
		PaymentMethodID: paymentMethod,
		ReturnURL:       s.returnURL,
		Shipping:        &address,
		Billing:         &address,
		IdempotencyKey:  fmt.Sprintf("confirm-%s-%s", intentID, paymentMethod),
	})
	if err != nil {
		s.metrics.IncOutcome("confirm", string(pkgerrors.CodeOf(err)))
		return nil, err
	}

	switch intent.Status {
	case stripegw.IntentSucceeded:
		outcome, err := s.complete(ctx, *txn)
		if err != nil {
			return nil, err
		}
		if outcome != OutcomeCompleted {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "Payment could not be applied to this order")
		}
		return &ConfirmResult{Outcome: OutcomeCompleted, OrderID: txn.ID}, nil
	case stripegw.IntentRequiresAction:
		s.metrics.IncOutcome("confirm", "requires_action")
		secret := input.ClientSecret
		if secret == "" {
			secret = intent.ClientSecret
		}
		return &ConfirmResult{
			Outcome:      OutcomeRequiresAction,
			OrderID:      txn.ID,
			ClientSecret: secret,
			ActionURL:    intent.ActionURL,
		}, nil
	case stripegw.IntentProcessing:
		s.metrics.IncOutcome("confirm", "processing")
		return &ConfirmResult{Outcome: OutcomeProcessing, OrderID: txn.ID}, nil
	default:
		// the transaction stays pending until the gateway reports a definitive failure
		s.metrics.IncOutcome("confirm", "failed")
		reason := intent.FailureReason
		if reason == "" {
			reason = string(intent.Status)
		}
		s.logWarn(ctx, map[string]any{"payment_intent_id": intentID, "reason": reason}, "payment confirmation did not succeed")
		return &ConfirmResult{Outcome: OutcomeFailed, OrderID: txn.ID, FailureReason: reason}, nil
	}
}

func resolveIntentID(input ConfirmInput) (string, error) {
	if id := strings.TrimSpace(input.PaymentIntentID); id != "" {
		return id, nil
	}
	if strings.TrimSpace(input.ClientSecret) == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "client_secret is required")
	}
	return stripegw.IntentIDFromClientSecret(input.ClientSecret)
}
