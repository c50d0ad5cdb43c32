package payments

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/w3bsuki/driplo-final/pkg/db/models"
	"github.com/w3bsuki/driplo-final/pkg/enums"
	pkgerrors "github.com/w3bsuki/driplo-final/pkg/errors"
	"github.com/w3bsuki/driplo-final/pkg/outbox"
	"github.com/w3bsuki/driplo-final/pkg/outbox/payloads"
)

const defaultPayoutMethod = "revolut"

// complete applies a captured payment: transaction pending -> completed, listing active -> sold,
// a processing seller payout and the matching outbox events, all in one DB transaction. Every
// write is conditional, so replays from webhooks or the reconcile job are harmless.
func (s *service) complete(ctx context.Context, txn models.Transaction) (Outcome, error) {
	now := s.now()
	outcome := OutcomeCompleted

	revtag := deref(txn.SellerRevtag)
	if revtag == "" {
		tag, err := s.profiles.RevtagFor(ctx, txn.SellerID)
		if err != nil {
			return "", pkgerrors.Wrap(pkgerrors.CodePersistence, err, "load seller profile")
		}
		revtag = tag
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		txnRepo := s.transactions.WithTx(tx)

		moved, err := txnRepo.MarkCompleted(ctx, txn.ID, now)
		if err != nil {
			return err
		}
		if moved == 0 {
			current, err := txnRepo.FindByID(ctx, txn.ID)
			if err != nil {
				return err
			}
			if current == nil || current.Status != enums.TransactionStatusCompleted {
				// captured at the gateway but closed locally; needs an operator
				outcome = OutcomeUnchanged
				return nil
			}
		} else {
			if err := s.queuePayout(ctx, tx, txn, revtag); err != nil {
				return err
			}
			if err := s.outbox.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventPaymentCompleted,
				AggregateType: enums.AggregateTransaction,
				AggregateID:   txn.ID,
				OccurredAt:    now,
				Data: payloads.PaymentCompletedEvent{
					OrderID:         txn.ID,
					ListingID:       txn.ListingID,
					BuyerID:         txn.BuyerID,
					SellerID:        txn.SellerID,
					PaymentIntentID: deref(txn.StripePaymentIntentID),
					TotalAmount:     txn.TotalAmount,
					SellerPayout:    txn.SellerPayoutAmount,
					CompletedAt:     now,
				},
			}); err != nil {
				return err
			}
		}

		_, err = s.markListingSold(ctx, tx, txn, now)
		return err
	})
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodePersistence, err, "Failed to record payment")
	}

	fields := map[string]any{
		"order_id":          txn.ID,
		"payment_intent_id": deref(txn.StripePaymentIntentID),
		"listing_id":        txn.ListingID.String(),
	}
	if outcome == OutcomeUnchanged {
		s.metrics.IncOutcome("complete", "conflict")
		if s.logg != nil {
			s.logg.Error(s.logg.WithFields(ctx, fields), "payment captured for a transaction that is no longer pending", nil)
		}
		return outcome, nil
	}
	s.metrics.IncOutcome("complete", "completed")
	s.logInfo(ctx, fields, "transaction completed")
	return outcome, nil
}

func (s *service) markListingSold(ctx context.Context, tx *gorm.DB, txn models.Transaction, at time.Time) (bool, error) {
	sold, err := s.listings.WithTx(tx).MarkSold(ctx, txn.ListingID, at)
	if err != nil {
		return false, err
	}
	if sold == 0 {
		return false, nil
	}
	err = s.outbox.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventListingSold,
		AggregateType: enums.AggregateListing,
		AggregateID:   txn.ListingID.String(),
		OccurredAt:    at,
		Data: payloads.ListingSoldEvent{
			ListingID: txn.ListingID,
			OrderID:   txn.ID,
			SellerID:  txn.SellerID,
			SoldAt:    at,
		},
	})
	return err == nil, err
}

func (s *service) queuePayout(ctx context.Context, tx *gorm.DB, txn models.Transaction, revtag string) error {
	return s.payouts.WithTx(tx).Create(ctx, &models.SellerPayout{
		TransactionID: txn.ID,
		SellerID:      txn.SellerID,
		Amount:        txn.SellerPayoutAmount,
		SellerRevtag:  &revtag,
		PayoutMethod:  defaultPayoutMethod,
		Status:        enums.PayoutStatusProcessing,
	})
}

// fail closes a pending transaction after the gateway explicitly reported failure.
func (s *service) fail(ctx context.Context, txn models.Transaction, reason string) (Outcome, error) {
	now := s.now()
	var moved int64
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		moved, err = s.transactions.WithTx(tx).MarkFailed(ctx, txn.ID, reason, now)
		if err != nil || moved == 0 {
			return err
		}
		return s.outbox.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventPaymentFailed,
			AggregateType: enums.AggregateTransaction,
			AggregateID:   txn.ID,
			OccurredAt:    now,
			Data: payloads.PaymentFailedEvent{
				OrderID:         txn.ID,
				PaymentIntentID: deref(txn.StripePaymentIntentID),
				Reason:          reason,
				FailedAt:        now,
			},
		})
	})
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodePersistence, err, "Failed to record payment failure")
	}
	if moved == 0 {
		return OutcomeUnchanged, nil
	}
	s.metrics.IncOutcome("fail", "failed")
	s.logWarn(ctx, map[string]any{"order_id": txn.ID, "reason": reason}, "transaction failed")
	return OutcomeFailed, nil
}

func deref(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
