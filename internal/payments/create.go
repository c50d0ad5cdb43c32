package payments

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/w3bsuki/driplo-final/pkg/enums"
	"github.com/w3bsuki/driplo-final/pkg/outbox"
	"github.com/w3bsuki/driplo-final/pkg/outbox/payloads"
	stripegw "github.com/w3bsuki/driplo-final/pkg/stripe"
)

// CreatePaymentIntent validates and prices the listing, opens a gateway intent and records a
// pending transaction. If the local write fails the intent is canceled before returning.
func (s *service) CreatePaymentIntent(ctx context.Context, input CreateIntentInput) (*CreateIntentResult, error) {
	listing, breakdown, err := s.loadAndPrice(ctx, input.ListingID, input.BuyerID)
	if err != nil {
		s.metrics.IncOutcome("create_intent", "rejected")
		return nil, err
	}

	orderID := orderReference(s.orderPrefix, s.now(), listing.ID, uuid.New())
	ctx = s.logCtx(ctx, orderID)

	intent, err := s.gateway.CreateIntent(ctx, stripegw.CreateIntentRequest{
		AmountCents:  breakdown.TotalCents,
		Currency:     s.currency,
		Description:  fmt.Sprintf("Purchase: %s", listing.Title),
		ReceiptEmail: input.BuyerEmail,
		Metadata: map[string]string{
			"order_id":      orderID,
			"listing_id":    listing.ID.String(),
			"buyer_id":      input.BuyerID.String(),
			"seller_id":     listing.SellerID.String(),
			"item_price":    breakdown.ItemPrice.StringFixed(2),
			"shipping_cost": breakdown.ShippingCost.StringFixed(2),
			"buyer_fee":     breakdown.BuyerFee.StringFixed(2),
			"seller_payout": breakdown.SellerPayout.StringFixed(2),
		},
		IdempotencyKey: orderID,
	})
	if err != nil {
		s.metrics.IncOutcome("create_intent", "gateway_error")
		return nil, err
	}

	txn := s.newTransaction(orderID, listing, input.BuyerID, breakdown, enums.PaymentMethodStripe)
	txn.StripePaymentIntentID = &intent.ID
	txn.ShippingAddress = input.ShippingAddress.Normalize()

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.transactions.WithTx(tx).Create(ctx, txn); err != nil {
			return err
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventPaymentIntentCreated,
			AggregateType: enums.AggregateTransaction,
			AggregateID:   orderID,
			Actor:         &outbox.ActorRef{UserID: input.BuyerID, Role: string(enums.UserRoleUser)},
			Data: payloads.PaymentIntentCreatedEvent{
				OrderID:         orderID,
				ListingID:       listing.ID,
				BuyerID:         input.BuyerID,
				SellerID:        listing.SellerID,
				PaymentIntentID: intent.ID,
				TotalAmount:     breakdown.Total,
				Currency:        s.currency,
			},
		})
	})
	if err != nil {
		return nil, s.compensate(ctx, intent.ID, err)
	}

	s.metrics.IncOutcome("create_intent", "created")
	s.logInfo(ctx, map[string]any{
		"payment_intent_id": intent.ID,
		"total_cents":       breakdown.TotalCents,
	}, "payment intent created")

	return &CreateIntentResult{
		ClientSecret:    intent.ClientSecret,
		OrderID:         orderID,
		TotalAmount:     breakdown.Total,
		PaymentIntentID: intent.ID,
	}, nil
}

func (s *service) logCtx(ctx context.Context, orderID string) context.Context {
	if s.logg == nil {
		return ctx
	}
	return s.logg.WithOrderID(ctx, orderID)
}
