package payments

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/w3bsuki/driplo-final/pkg/enums"
	pkgerrors "github.com/w3bsuki/driplo-final/pkg/errors"
	"github.com/w3bsuki/driplo-final/pkg/outbox"
	"github.com/w3bsuki/driplo-final/pkg/outbox/payloads"
)

// CreateManualPayment records a pending transaction settled by a Revolut transfer the buyer
// makes themselves. An admin reconciles it out of band.
func (s *service) CreateManualPayment(ctx context.Context, input ManualInput) (*ManualResult, error) {
	listing, breakdown, err := s.loadAndPrice(ctx, input.ListingID, input.BuyerID)
	if err != nil {
		s.metrics.IncOutcome("manual_payment", "rejected")
		return nil, err
	}

	revtag, err := s.profiles.RevtagFor(ctx, listing.SellerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "load seller profile")
	}

	orderID := orderReference(s.manualPrefix, s.now(), listing.ID, uuid.New())
	ctx = s.logCtx(ctx, orderID)
	instructions := fmt.Sprintf("Please send %s %s to %s via Revolut",
		breakdown.Total.StringFixed(2), strings.ToUpper(s.currency), revtag)

	txn := s.newTransaction(orderID, listing, input.BuyerID, breakdown, enums.PaymentMethodRevolutManual)
	txn.SellerRevtag = &revtag
	txn.PaymentInstructions = &instructions
	txn.ShippingAddress = input.ShippingAddress.Normalize()

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.transactions.WithTx(tx).Create(ctx, txn); err != nil {
			return err
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventManualPaymentCreated,
			AggregateType: enums.AggregateTransaction,
			AggregateID:   orderID,
			Actor:         &outbox.ActorRef{UserID: input.BuyerID, Role: string(enums.UserRoleUser)},
			Data: payloads.ManualPaymentCreatedEvent{
				OrderID:      orderID,
				ListingID:    listing.ID,
				BuyerID:      input.BuyerID,
				SellerID:     listing.SellerID,
				TotalAmount:  breakdown.Total,
				SellerRevtag: revtag,
			},
		})
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "Failed to create transaction")
	}

	s.metrics.IncOutcome("manual_payment", "created")
	s.logInfo(ctx, map[string]any{"seller_revtag": revtag}, "manual payment created")

	return &ManualResult{
		OrderID:      orderID,
		TotalAmount:  breakdown.Total,
		Revtag:       revtag,
		Instructions: instructions,
	}, nil
}
