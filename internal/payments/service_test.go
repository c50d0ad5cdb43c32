package payments

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/w3bsuki/driplo-final/internal/listings"
	"github.com/w3bsuki/driplo-final/internal/payouts"
	"github.com/w3bsuki/driplo-final/internal/pricing"
	"github.com/w3bsuki/driplo-final/internal/profiles"
	"github.com/w3bsuki/driplo-final/internal/transactions"
	"github.com/w3bsuki/driplo-final/pkg/config"
	"github.com/w3bsuki/driplo-final/pkg/db/dbtest"
	"github.com/w3bsuki/driplo-final/pkg/db/models"
	"github.com/w3bsuki/driplo-final/pkg/enums"
	pkgerrors "github.com/w3bsuki/driplo-final/pkg/errors"
	"github.com/w3bsuki/driplo-final/pkg/outbox"
	stripegw "github.com/w3bsuki/driplo-final/pkg/stripe"
	"github.com/w3bsuki/driplo-final/pkg/types"
)

type fakeGateway struct {
	createFn  func(req stripegw.CreateIntentRequest) (*stripegw.Intent, error)
	confirmFn func(req stripegw.ConfirmIntentRequest) (*stripegw.Intent, error)
	cancelFn  func(id, reason string) error
	getFn     func(id string) (*stripegw.Intent, error)

	creates  []stripegw.CreateIntentRequest
	confirms []stripegw.ConfirmIntentRequest
	cancels  []string
}

func (f *fakeGateway) CreateIntent(_ context.Context, req stripegw.CreateIntentRequest) (*stripegw.Intent, error) {
	f.creates = append(f.creates, req)
	if f.createFn != nil {
		return f.createFn(req)
	}
	return &stripegw.Intent{ID: "pi_test", ClientSecret: "pi_test_secret_abc", Status: stripegw.IntentOpen, AmountCents: req.AmountCents}, nil
}

func (f *fakeGateway) ConfirmIntent(_ context.Context, req stripegw.ConfirmIntentRequest) (*stripegw.Intent, error) {
	f.confirms = append(f.confirms, req)
	if f.confirmFn != nil {
		return f.confirmFn(req)
	}
	return &stripegw.Intent{ID: req.IntentID, Status: stripegw.IntentSucceeded}, nil
}

func (f *fakeGateway) CancelIntent(_ context.Context, id, reason string) error {
	f.cancels = append(f.cancels, id+":"+reason)
	if f.cancelFn != nil {
		return f.cancelFn(id, reason)
	}
	return nil
}

func (f *fakeGateway) GetIntent(_ context.Context, id string) (*stripegw.Intent, error) {
	if f.getFn != nil {
		return f.getFn(id)
	}
	return &stripegw.Intent{ID: id, Status: stripegw.IntentOpen}, nil
}

// failingCreateRepo rejects inserts to exercise the compensating cancel.
type failingCreateRepo struct {
	transactions.Repository
	err error
}

func (f failingCreateRepo) WithTx(*gorm.DB) transactions.Repository { return f }
func (f failingCreateRepo) Create(context.Context, *models.Transaction) error {
	return f.err
}

type harness struct {
	db      *gorm.DB
	gateway *fakeGateway
	svc     Service
	now     time.Time
}

func newHarness(t *testing.T, mutate func(*ServiceParams)) *harness {
	t.Helper()
	db := dbtest.Open(t)
	h := &harness{
		db:      db,
		gateway: &fakeGateway{},
		now:     time.Date(2026, 1, 5, 12, 0, 0, 0, time.UTC),
	}
	params := ServiceParams{
		Tx:           dbtest.TxRunner{DB: db},
		Gateway:      h.gateway,
		Listings:     listings.NewRepository(db),
		Transactions: transactions.NewRepository(db),
		Payouts:      payouts.NewRepository(db),
		Profiles:     profiles.NewRepository(db),
		Outbox:       outbox.NewService(outbox.NewRepository(db), nil),
		Config: config.PaymentsConfig{
			BuyerFeePercent: "5",
			BuyerFeeFixed:   "1.00",
			Currency:        "usd",
			OrderPrefix:     "DRIPLO",
			ManualPrefix:    "REV",
		},
		PublicBaseURL: "https://driplo.test/",
		Now:           func() time.Time { return h.now },
	}
	if mutate != nil {
		mutate(&params)
	}
	svc, err := NewService(params)
	require.NoError(t, err)
	h.svc = svc
	return h
}

func (h *harness) seedListing(t *testing.T, status enums.ListingStatus) *models.Listing {
	t.Helper()
	listing := &models.Listing{
		SellerID:     uuid.New(),
		Title:        "Vintage denim jacket",
		Price:        decimal.RequireFromString("40.00"),
		ShippingCost: decimal.RequireFromString("5.00"),
		Status:       status,
	}
	require.NoError(t, h.db.Create(listing).Error)
	return listing
}

func address() types.ShippingAddress {
	return types.ShippingAddress{
		Name:         " Ana Buyer ",
		AddressLine1: "1 Vitosha Blvd",
		City:         "Sofia",
		State:        "Sofia City",
		PostalCode:   "1000",
	}
}

func (h *harness) transaction(t *testing.T, id string) models.Transaction {
	t.Helper()
	var txn models.Transaction
	require.NoError(t, h.db.Where("id = ?", id).First(&txn).Error)
	return txn
}

func (h *harness) listing(t *testing.T, id uuid.UUID) models.Listing {
	t.Helper()
	var listing models.Listing
	require.NoError(t, h.db.Where("id = ?", id).First(&listing).Error)
	return listing
}

func (h *harness) countEvents(t *testing.T, eventType enums.OutboxEventType) int64 {
	t.Helper()
	var n int64
	require.NoError(t, h.db.Model(&models.OutboxEvent{}).Where("event_type = ?", eventType).Count(&n).Error)
	return n
}

func TestCreatePaymentIntentPersistsPendingTransaction(t *testing.T) {
	h := newHarness(t, nil)
	listing := h.seedListing(t, enums.ListingStatusActive)
	buyer := uuid.New()

	res, err := h.svc.CreatePaymentIntent(context.Background(), CreateIntentInput{
		ListingID:       listing.ID,
		BuyerID:         buyer,
		BuyerEmail:      "ana@example.com",
		ShippingAddress: address(),
	})
	require.NoError(t, err)

	assert.Equal(t, "pi_test_secret_abc", res.ClientSecret)
	assert.True(t, res.TotalAmount.Equal(decimal.RequireFromString("48.25")))
	suffix := listing.ID.String()[len(listing.ID.String())-6:]
	assert.Regexp(t, regexp.MustCompile(`^DRIPLO-\d+-`+suffix+`-[0-9a-f]{6}$`), res.OrderID)

	require.Len(t, h.gateway.creates, 1)
	req := h.gateway.creates[0]
	assert.Equal(t, int64(4825), req.AmountCents)
	assert.Equal(t, "usd", req.Currency)
	assert.Equal(t, res.OrderID, req.IdempotencyKey)
	assert.Equal(t, "Purchase: Vintage denim jacket", req.Description)
	assert.Equal(t, res.OrderID, req.Metadata["order_id"])
	assert.Equal(t, buyer.String(), req.Metadata["buyer_id"])
	assert.Equal(t, "3.25", req.Metadata["buyer_fee"])
	assert.Equal(t, "45.00", req.Metadata["seller_payout"])

	txn := h.transaction(t, res.OrderID)
	assert.Equal(t, enums.TransactionStatusPending, txn.Status)
	assert.Equal(t, enums.PaymentMethodStripe, txn.PaymentMethod)
	assert.Equal(t, "pi_test", *txn.StripePaymentIntentID)
	assert.True(t, txn.TotalAmount.Equal(decimal.RequireFromString("48.25")))
	assert.Equal(t, "Ana Buyer", txn.ShippingAddress.Name)
	assert.Equal(t, types.DefaultShippingCountry, txn.ShippingAddress.Country)
	assert.Equal(t, int64(1), h.countEvents(t, enums.EventPaymentIntentCreated))
	assert.Empty(t, h.gateway.cancels)
}

func TestCreatePaymentIntentCancelsIntentWhenInsertFails(t *testing.T) {
	h := newHarness(t, func(p *ServiceParams) {
		p.Transactions = failingCreateRepo{Repository: p.Transactions, err: errors.New("insert failed")}
	})
	h.gateway.createFn = func(req stripegw.CreateIntentRequest) (*stripegw.Intent, error) {
		return &stripegw.Intent{ID: "pi_orphan", ClientSecret: "pi_orphan_secret_x"}, nil
	}
	listing := h.seedListing(t, enums.ListingStatusActive)

	_, err := h.svc.CreatePaymentIntent(context.Background(), CreateIntentInput{
		ListingID:       listing.ID,
		BuyerID:         uuid.New(),
		ShippingAddress: address(),
	})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodePersistence, pkgerrors.CodeOf(err))
	assert.Equal(t, []string{"pi_orphan:abandoned"}, h.gateway.cancels)
	assert.Zero(t, h.countEvents(t, enums.EventPaymentIntentCreated))
}

func TestCreatePaymentIntentReportsCancelFailure(t *testing.T) {
	h := newHarness(t, func(p *ServiceParams) {
		p.Transactions = failingCreateRepo{Repository: p.Transactions, err: errors.New("insert failed")}
	})
	h.gateway.cancelFn = func(string, string) error { return errors.New("gateway timeout") }
	listing := h.seedListing(t, enums.ListingStatusActive)

	_, err := h.svc.CreatePaymentIntent(context.Background(), CreateIntentInput{
		ListingID: listing.ID,
		BuyerID:   uuid.New(),
	})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodePersistence, pkgerrors.CodeOf(err))
	cause := errors.Unwrap(err)
	require.NotNil(t, cause)
	assert.Contains(t, cause.Error(), "insert failed")
	assert.Contains(t, cause.Error(), "gateway timeout")
	assert.Len(t, h.gateway.cancels, 1)
}

func TestCreatePaymentIntentRejectsBeforeGatewayCall(t *testing.T) {
	h := newHarness(t, nil)
	active := h.seedListing(t, enums.ListingStatusActive)
	sold := h.seedListing(t, enums.ListingStatusSold)

	cases := []struct {
		name  string
		input CreateIntentInput
		code  pkgerrors.Code
		msg   string
	}{
		{"own item", CreateIntentInput{ListingID: active.ID, BuyerID: active.SellerID}, pkgerrors.CodeForbidden, pricing.MsgCannotBuyOwnItem},
		{"not active", CreateIntentInput{ListingID: sold.ID, BuyerID: uuid.New()}, pkgerrors.CodeConflict, pricing.MsgListingUnavailable},
		{"missing", CreateIntentInput{ListingID: uuid.New(), BuyerID: uuid.New()}, pkgerrors.CodeNotFound, pricing.MsgListingNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := h.svc.CreatePaymentIntent(context.Background(), tc.input)
			require.Error(t, err)
			assert.Equal(t, tc.code, pkgerrors.CodeOf(err))
			assert.Equal(t, tc.msg, pkgerrors.As(err).Message())
		})
	}
	assert.Empty(t, h.gateway.creates)
}

func (h *harness) pendingOrder(t *testing.T) (*CreateIntentResult, *models.Listing, uuid.UUID) {
	t.Helper()
	listing := h.seedListing(t, enums.ListingStatusActive)
	buyer := uuid.New()
	res, err := h.svc.CreatePaymentIntent(context.Background(), CreateIntentInput{
		ListingID:       listing.ID,
		BuyerID:         buyer,
		ShippingAddress: address(),
	})
	require.NoError(t, err)
	return res, listing, buyer
}

func TestConfirmPaymentCompletesAndIsIdempotent(t *testing.T) {
	h := newHarness(t, nil)
	order, listing, buyer := h.pendingOrder(t)

	input := ConfirmInput{
		BuyerID:         buyer,
		ClientSecret:    order.ClientSecret,
		PaymentMethodID: "pm_card_visa",
	}
	res, err := h.svc.ConfirmPayment(context.Background(), input)
	require.NoError(t, err)
	assert.Equal(t, OutcomeCompleted, res.Outcome)
	assert.Equal(t, order.OrderID, res.OrderID)

	require.Len(t, h.gateway.confirms, 1)
	req := h.gateway.confirms[0]
	assert.Equal(t, "pi_test", req.IntentID)
	assert.Equal(t, "https://driplo.test/order-confirmation", req.ReturnURL)
	assert.Equal(t, "confirm-pi_test-pm_card_visa", req.IdempotencyKey)
	require.NotNil(t, req.Shipping)
	assert.Equal(t, "Ana Buyer", req.Shipping.Name)
	require.NotNil(t, req.Billing, "billing falls back to the stored shipping snapshot")
	assert.Equal(t, "Ana Buyer", req.Billing.Name)
	assert.Equal(t, "1 Vitosha Blvd", req.Billing.AddressLine1)
	assert.Equal(t, types.DefaultShippingCountry, req.Billing.Country)

	txn := h.transaction(t, order.OrderID)
	assert.Equal(t, enums.TransactionStatusCompleted, txn.Status)
	assert.NotNil(t, txn.CompletedAt)
	sold := h.listing(t, listing.ID)
	assert.Equal(t, enums.ListingStatusSold, sold.Status)

	var payout models.SellerPayout
	require.NoError(t, h.db.Where("transaction_id = ?", order.OrderID).First(&payout).Error)
	assert.Equal(t, enums.PayoutStatusProcessing, payout.Status)
	assert.True(t, payout.Amount.Equal(decimal.RequireFromString("45")))
	assert.Equal(t, profiles.UnknownRevtag, *payout.SellerRevtag)

	// second confirm short-circuits on the terminal state
	again, err := h.svc.ConfirmPayment(context.Background(), input)
	require.NoError(t, err)
	assert.Equal(t, OutcomeCompleted, again.Outcome)
	assert.Len(t, h.gateway.confirms, 1)
	assert.Equal(t, int64(1), h.countEvents(t, enums.EventPaymentCompleted))
	assert.Equal(t, int64(1), h.countEvents(t, enums.EventListingSold))
}

func TestConfirmPaymentBillsSuppliedAddress(t *testing.T) {
	h := newHarness(t, nil)
	order, _, buyer := h.pendingOrder(t)

	supplied := address()
	supplied.Name = "Ana B. Buyer"
	supplied.City = " Plovdiv "
	_, err := h.svc.ConfirmPayment(context.Background(), ConfirmInput{
		BuyerID:         buyer,
		ClientSecret:    order.ClientSecret,
		PaymentMethodID: "pm_card_visa",
		ShippingAddress: &supplied,
	})
	require.NoError(t, err)

	require.Len(t, h.gateway.confirms, 1)
	billing := h.gateway.confirms[0].Billing
	require.NotNil(t, billing)
	assert.Equal(t, "Ana B. Buyer", billing.Name)
	assert.Equal(t, "Plovdiv", billing.City)
}

func TestConfirmPaymentRequiresActionLeavesStateAlone(t *testing.T) {
	h := newHarness(t, nil)
	order, listing, buyer := h.pendingOrder(t)
	h.gateway.confirmFn = func(req stripegw.ConfirmIntentRequest) (*stripegw.Intent, error) {
		return &stripegw.Intent{ID: req.IntentID, Status: stripegw.IntentRequiresAction, ActionURL: "https://3ds.test/challenge"}, nil
	}

	res, err := h.svc.ConfirmPayment(context.Background(), ConfirmInput{
		BuyerID:         buyer,
		ClientSecret:    order.ClientSecret,
		PaymentMethodID: "pm_3ds",
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomeRequiresAction, res.Outcome)
	assert.Equal(t, order.ClientSecret, res.ClientSecret)
	assert.Equal(t, "https://3ds.test/challenge", res.ActionURL)

	assert.Equal(t, enums.TransactionStatusPending, h.transaction(t, order.OrderID).Status)
	assert.Equal(t, enums.ListingStatusActive, h.listing(t, listing.ID).Status)
}

func TestConfirmPaymentFailureKeepsTransactionPending(t *testing.T) {
	h := newHarness(t, nil)
	order, _, buyer := h.pendingOrder(t)
	h.gateway.confirmFn = func(req stripegw.ConfirmIntentRequest) (*stripegw.Intent, error) {
		return &stripegw.Intent{ID: req.IntentID, Status: stripegw.IntentFailed, FailureReason: "insufficient funds"}, nil
	}

	res, err := h.svc.ConfirmPayment(context.Background(), ConfirmInput{
		BuyerID:         buyer,
		PaymentIntentID: "pi_test",
		PaymentMethodID: "pm_low_balance",
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomeFailed, res.Outcome)
	assert.Equal(t, "insufficient funds", res.FailureReason)
	assert.Equal(t, enums.TransactionStatusPending, h.transaction(t, order.OrderID).Status)
}

func TestConfirmPaymentGatewayDeclinePropagates(t *testing.T) {
	h := newHarness(t, nil)
	_, _, buyer := h.pendingOrder(t)
	h.gateway.confirmFn = func(stripegw.ConfirmIntentRequest) (*stripegw.Intent, error) {
		return nil, pkgerrors.New(pkgerrors.CodePaymentFailed, stripegw.PaymentFailedMessage)
	}

	_, err := h.svc.ConfirmPayment(context.Background(), ConfirmInput{
		BuyerID:         buyer,
		PaymentIntentID: "pi_test",
		PaymentMethodID: "pm_declined",
	})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodePaymentFailed, pkgerrors.CodeOf(err))
}

func TestConfirmPaymentRejectsOtherBuyer(t *testing.T) {
	h := newHarness(t, nil)
	order, _, _ := h.pendingOrder(t)

	_, err := h.svc.ConfirmPayment(context.Background(), ConfirmInput{
		BuyerID:         uuid.New(),
		ClientSecret:    order.ClientSecret,
		PaymentMethodID: "pm_card",
	})
	assert.Equal(t, pkgerrors.CodeForbidden, pkgerrors.CodeOf(err))
	assert.Empty(t, h.gateway.confirms)

	_, err = h.svc.ConfirmPayment(context.Background(), ConfirmInput{
		BuyerID:         uuid.New(),
		ClientSecret:    "not-a-secret",
		PaymentMethodID: "pm_card",
	})
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err))
}

func TestCreateManualPayment(t *testing.T) {
	h := newHarness(t, nil)
	listing := h.seedListing(t, enums.ListingStatusActive)
	tag := "mila_sells"
	require.NoError(t, h.db.Create(&models.Profile{ID: listing.SellerID, Username: "mila", Revtag: &tag, Role: enums.UserRoleUser}).Error)

	res, err := h.svc.CreateManualPayment(context.Background(), ManualInput{
		ListingID:       listing.ID,
		BuyerID:         uuid.New(),
		ShippingAddress: address(),
	})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(res.OrderID, "REV-"))
	assert.Equal(t, "@mila_sells", res.Revtag)
	assert.Equal(t, "Please send 48.25 USD to @mila_sells via Revolut", res.Instructions)
	assert.Empty(t, h.gateway.creates)

	txn := h.transaction(t, res.OrderID)
	assert.Equal(t, enums.PaymentMethodRevolutManual, txn.PaymentMethod)
	assert.Equal(t, enums.TransactionStatusPending, txn.Status)
	assert.Nil(t, txn.StripePaymentIntentID)
	assert.Equal(t, res.Instructions, *txn.PaymentInstructions)
	assert.Equal(t, int64(1), h.countEvents(t, enums.EventManualPaymentCreated))
}

func TestHandleGatewayEvent(t *testing.T) {
	h := newHarness(t, nil)
	order, listing, buyer := h.pendingOrder(t)
	ctx := context.Background()

	outcome, err := h.svc.HandleGatewayEvent(ctx, GatewayEvent{Type: GatewayEventFailed, IntentID: "pi_test", FailureReason: "card_declined"})
	require.NoError(t, err)
	assert.Equal(t, OutcomeUnchanged, outcome)

	txn := h.transaction(t, order.OrderID)
	assert.Equal(t, enums.TransactionStatusPending, txn.Status, "a decline keeps the order open for another card")
	assert.Nil(t, txn.FailedAt)
	require.NotNil(t, txn.FailureReason)
	assert.Equal(t, "card_declined", *txn.FailureReason)
	assert.Equal(t, int64(0), h.countEvents(t, enums.EventPaymentFailed))

	// the buyer retries with another card and it goes through
	res, err := h.svc.ConfirmPayment(ctx, ConfirmInput{BuyerID: buyer, ClientSecret: order.ClientSecret, PaymentMethodID: "pm_card_mastercard"})
	require.NoError(t, err)
	assert.Equal(t, OutcomeCompleted, res.Outcome)
	assert.Len(t, h.gateway.confirms, 1)

	outcome, err = h.svc.HandleGatewayEvent(ctx, GatewayEvent{Type: GatewayEventSucceeded, IntentID: "pi_test"})
	require.NoError(t, err)
	assert.Equal(t, OutcomeCompleted, outcome, "the webhook replays a sale confirm already applied")
	assert.Equal(t, enums.TransactionStatusCompleted, h.transaction(t, order.OrderID).Status)
	assert.Equal(t, enums.ListingStatusSold, h.listing(t, listing.ID).Status)

	assert.Equal(t, int64(1), h.countEvents(t, enums.EventPaymentCompleted))

	// a decline after completion is ignored
	outcome, err = h.svc.HandleGatewayEvent(ctx, GatewayEvent{Type: GatewayEventFailed, IntentID: "pi_test", FailureReason: "card_declined"})
	require.NoError(t, err)
	assert.Equal(t, OutcomeUnchanged, outcome)
	assert.Equal(t, enums.TransactionStatusCompleted, h.transaction(t, order.OrderID).Status)

	outcome, err = h.svc.HandleGatewayEvent(ctx, GatewayEvent{Type: GatewayEventSucceeded, IntentID: "pi_unknown"})
	require.NoError(t, err)
	assert.Equal(t, OutcomeUnchanged, outcome)
}

func TestHandleGatewayEventCanceledFailsTransaction(t *testing.T) {
	h := newHarness(t, nil)
	order, listing, buyer := h.pendingOrder(t)
	ctx := context.Background()

	outcome, err := h.svc.HandleGatewayEvent(ctx, GatewayEvent{Type: GatewayEventCanceled, IntentID: "pi_test"})
	require.NoError(t, err)
	assert.Equal(t, OutcomeFailed, outcome)

	txn := h.transaction(t, order.OrderID)
	assert.Equal(t, enums.TransactionStatusFailed, txn.Status)
	assert.Equal(t, string(GatewayEventCanceled), *txn.FailureReason)
	assert.Equal(t, int64(1), h.countEvents(t, enums.EventPaymentFailed))
	assert.Equal(t, enums.ListingStatusActive, h.listing(t, listing.ID).Status)

	// a canceled intent cannot be confirmed again
	res, err := h.svc.ConfirmPayment(ctx, ConfirmInput{BuyerID: buyer, ClientSecret: order.ClientSecret, PaymentMethodID: "pm_card_visa"})
	require.NoError(t, err)
	assert.Equal(t, OutcomeFailed, res.Outcome)
	assert.Empty(t, h.gateway.confirms)
}

func TestHandleGatewayEventSucceededReplays(t *testing.T) {
	h := newHarness(t, nil)
	order, listing, _ := h.pendingOrder(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		outcome, err := h.svc.HandleGatewayEvent(ctx, GatewayEvent{Type: GatewayEventSucceeded, IntentID: "pi_test"})
		require.NoError(t, err)
		assert.Equal(t, OutcomeCompleted, outcome)
	}
	assert.Equal(t, enums.TransactionStatusCompleted, h.transaction(t, order.OrderID).Status)
	assert.Equal(t, enums.ListingStatusSold, h.listing(t, listing.ID).Status)

	var payouts int64
	require.NoError(t, h.db.Model(&models.SellerPayout{}).Count(&payouts).Error)
	assert.Equal(t, int64(1), payouts)
}

func TestReconcile(t *testing.T) {
	h := newHarness(t, nil)
	order, _, _ := h.pendingOrder(t)
	ctx := context.Background()

	h.gateway.getFn = func(id string) (*stripegw.Intent, error) {
		return &stripegw.Intent{ID: id, Status: stripegw.IntentFailed}, nil
	}
	outcome, err := h.svc.Reconcile(ctx, h.transaction(t, order.OrderID))
	require.NoError(t, err)
	assert.Equal(t, OutcomeUnchanged, outcome, "only explicit cancellation fails a transaction")

	h.gateway.getFn = func(id string) (*stripegw.Intent, error) {
		return &stripegw.Intent{ID: id, Status: stripegw.IntentCanceled, FailureReason: "canceled: abandoned"}, nil
	}
	outcome, err = h.svc.Reconcile(ctx, h.transaction(t, order.OrderID))
	require.NoError(t, err)
	assert.Equal(t, OutcomeFailed, outcome)
	assert.Equal(t, enums.TransactionStatusFailed, h.transaction(t, order.OrderID).Status)
}

func TestReconcileSkipsManualPayments(t *testing.T) {
	h := newHarness(t, nil)
	order, _, _ := h.pendingOrder(t)
	h.gateway.getFn = func(string) (*stripegw.Intent, error) {
		t.Fatal("manual payments must not reach the gateway")
		return nil, nil
	}

	txn := h.transaction(t, order.OrderID)
	txn.PaymentMethod = enums.PaymentMethodRevolutManual
	outcome, err := h.svc.Reconcile(context.Background(), txn)
	require.NoError(t, err)
	assert.Equal(t, OutcomeUnchanged, outcome)
}

func TestRepairListing(t *testing.T) {
	h := newHarness(t, nil)
	order, listing, _ := h.pendingOrder(t)
	ctx := context.Background()

	txn := h.transaction(t, order.OrderID)
	repaired, err := h.svc.RepairListing(ctx, txn)
	require.NoError(t, err)
	assert.False(t, repaired, "pending transactions are not repaired")

	require.NoError(t, h.db.Model(&models.Transaction{}).Where("id = ?", txn.ID).Update("status", enums.TransactionStatusCompleted).Error)
	txn = h.transaction(t, order.OrderID)

	repaired, err = h.svc.RepairListing(ctx, txn)
	require.NoError(t, err)
	assert.True(t, repaired)
	assert.Equal(t, enums.ListingStatusSold, h.listing(t, listing.ID).Status)

	repaired, err = h.svc.RepairListing(ctx, txn)
	require.NoError(t, err)
	assert.False(t, repaired)
}

func TestOrderReference(t *testing.T) {
	id := uuid.MustParse("6f1c2a52-3b0e-4d8a-9b61-0a1b2c3d4e5f")
	at := time.UnixMilli(1767614400000)
	nonce := uuid.MustParse("a1b2c3d4-0000-4000-8000-000000000000")
	assert.Equal(t, "DRIPLO-1767614400000-3d4e5f-a1b2c3", orderReference("DRIPLO", at, id, nonce))
}

func TestCreatePaymentIntentSameListingSameInstantGetsDistinctOrders(t *testing.T) {
	h := newHarness(t, nil)
	listing := h.seedListing(t, enums.ListingStatusActive)
	intents := 0
	h.gateway.createFn = func(req stripegw.CreateIntentRequest) (*stripegw.Intent, error) {
		intents++
		id := fmt.Sprintf("pi_%d", intents)
		return &stripegw.Intent{ID: id, ClientSecret: id + "_secret_x", Status: stripegw.IntentOpen}, nil
	}

	first, err := h.svc.CreatePaymentIntent(context.Background(), CreateIntentInput{ListingID: listing.ID, BuyerID: uuid.New(), ShippingAddress: address()})
	require.NoError(t, err)
	second, err := h.svc.CreatePaymentIntent(context.Background(), CreateIntentInput{ListingID: listing.ID, BuyerID: uuid.New(), ShippingAddress: address()})
	require.NoError(t, err)

	assert.NotEqual(t, first.OrderID, second.OrderID)
	require.Len(t, h.gateway.creates, 2)
	assert.NotEqual(t, h.gateway.creates[0].IdempotencyKey, h.gateway.creates[1].IdempotencyKey)
}
