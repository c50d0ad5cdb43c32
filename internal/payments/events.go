package payments

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"github.com/w3bsuki/driplo-final/pkg/db/models"
	"github.com/w3bsuki/driplo-final/pkg/enums"
	pkgerrors "github.com/w3bsuki/driplo-final/pkg/errors"
	stripegw "github.com/w3bsuki/driplo-final/pkg/stripe"
)

// HandleGatewayEvent applies an asynchronous gateway notification. Unknown intents and
// unhandled event types are acknowledged without changes. A decline leaves the transaction
// pending; only a canceled intent fails it.
func (s *service) HandleGatewayEvent(ctx context.Context, event GatewayEvent) (Outcome, error) {
	intentID := strings.TrimSpace(event.IntentID)
	if intentID == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "payment intent id required")
	}

	txn, err := s.transactions.FindByPaymentIntentID(ctx, intentID)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodePersistence, err, "load transaction")
	}
	if txn == nil {
		s.logWarn(ctx, map[string]any{
			"payment_intent_id": intentID,
			"event_type":        event.Type,
		}, "gateway event for unknown payment intent")
		return OutcomeUnchanged, nil
	}
	ctx = s.logCtx(ctx, txn.ID)

	switch event.Type {
	case GatewayEventSucceeded:
		return s.complete(ctx, *txn)
	case GatewayEventFailed:
		return s.recordDecline(ctx, *txn, failureReason(event))
	case GatewayEventCanceled:
		return s.fail(ctx, *txn, failureReason(event))
	default:
		return OutcomeUnchanged, nil
	}
}

func failureReason(event GatewayEvent) string {
	if reason := strings.TrimSpace(event.FailureReason); reason != "" {
		return reason
	}
	return string(event.Type)
}

func (s *service) recordDecline(ctx context.Context, txn models.Transaction, reason string) (Outcome, error) {
	if txn.Status != enums.TransactionStatusPending {
		return OutcomeUnchanged, nil
	}
	if _, err := s.transactions.RecordDecline(ctx, txn.ID, reason, s.now()); err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodePersistence, err, "record payment decline")
	}
	s.metrics.IncOutcome("gateway_event", "declined")
	s.logWarn(ctx, map[string]any{"order_id": txn.ID, "reason": reason}, "payment attempt declined")
	return OutcomeUnchanged, nil
}

// Reconcile asks the gateway about a transaction stuck in pending and applies only definitive
// answers: succeeded completes it, canceled fails it.
func (s *service) Reconcile(ctx context.Context, txn models.Transaction) (Outcome, error) {
	if txn.Status != enums.TransactionStatusPending || txn.PaymentMethod.Manual() || txn.StripePaymentIntentID == nil {
		return OutcomeUnchanged, nil
	}
	intent, err := s.gateway.GetIntent(ctx, *txn.StripePaymentIntentID)
	if err != nil {
		return "", err
	}
	switch intent.Status {
	case stripegw.IntentSucceeded:
		return s.complete(ctx, txn)
	case stripegw.IntentCanceled:
		reason := intent.FailureReason
		if reason == "" {
			reason = "canceled"
		}
		return s.fail(ctx, txn, reason)
	default:
		return OutcomeUnchanged, nil
	}
}

// RepairListing re-applies active -> sold for a completed transaction whose listing drifted.
func (s *service) RepairListing(ctx context.Context, txn models.Transaction) (bool, error) {
	if txn.Status != enums.TransactionStatusCompleted {
		return false, nil
	}
	var repaired bool
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		repaired, err = s.markListingSold(ctx, tx, txn, s.now())
		return err
	})
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "repair listing status")
	}
	if repaired {
		s.logInfo(ctx, map[string]any{"order_id": txn.ID, "listing_id": txn.ListingID.String()}, "listing marked sold by reconcile")
	}
	return repaired, nil
}
