// Package payments orchestrates checkout against the card gateway and the manual transfer path.
package payments

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/w3bsuki/driplo-final/internal/listings"
	"github.com/w3bsuki/driplo-final/internal/payouts"
	"github.com/w3bsuki/driplo-final/internal/pricing"
	"github.com/w3bsuki/driplo-final/internal/transactions"
	"github.com/w3bsuki/driplo-final/pkg/config"
	"github.com/w3bsuki/driplo-final/pkg/db/models"
	"github.com/w3bsuki/driplo-final/pkg/enums"
	pkgerrors "github.com/w3bsuki/driplo-final/pkg/errors"
	"github.com/w3bsuki/driplo-final/pkg/logger"
	"github.com/w3bsuki/driplo-final/pkg/metrics"
	"github.com/w3bsuki/driplo-final/pkg/outbox"
)

const (
	cancelReasonAbandoned = "abandoned"
	compensationTimeout   = 10 * time.Second
	confirmationPath      = "/order-confirmation"

	MsgTransactionNotFound = "Transaction not found"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
	EmitIfNotExists(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type revtagLookup interface {
	RevtagFor(ctx context.Context, id uuid.UUID) (string, error)
}

// Service drives a purchase from intent creation to a terminal transaction.
type Service interface {
	CreatePaymentIntent(ctx context.Context, input CreateIntentInput) (*CreateIntentResult, error)
	ConfirmPayment(ctx context.Context, input ConfirmInput) (*ConfirmResult, error)
	CreateManualPayment(ctx context.Context, input ManualInput) (*ManualResult, error)
	HandleGatewayEvent(ctx context.Context, event GatewayEvent) (Outcome, error)
	Reconcile(ctx context.Context, txn models.Transaction) (Outcome, error)
	RepairListing(ctx context.Context, txn models.Transaction) (bool, error)
}

type ServiceParams struct {
	Tx            txRunner
	Gateway       Gateway
	Listings      listings.Repository
	Transactions  transactions.Repository
	Payouts       payouts.Repository
	Profiles      revtagLookup
	Outbox        outboxPublisher
	Config        config.PaymentsConfig
	PublicBaseURL string
	Metrics       *metrics.PaymentMetrics
	Logger        *logger.Logger
	Now           func() time.Time
}

type service struct {
	tx           txRunner
	gateway      Gateway
	listings     listings.Repository
	transactions transactions.Repository
	payouts      payouts.Repository
	profiles     revtagLookup
	outbox       outboxPublisher
	policy       pricing.FeePolicy
	currency     string
	orderPrefix  string
	manualPrefix string
	returnURL    string
	metrics      *metrics.PaymentMetrics
	logg         *logger.Logger
	now          func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	switch {
	case params.Tx == nil:
		return nil, fmt.Errorf("tx runner required")
	case params.Gateway == nil:
		return nil, fmt.Errorf("payment gateway required")
	case params.Listings == nil:
		return nil, fmt.Errorf("listings repository required")
	case params.Transactions == nil:
		return nil, fmt.Errorf("transactions repository required")
	case params.Payouts == nil:
		return nil, fmt.Errorf("payouts repository required")
	case params.Profiles == nil:
		return nil, fmt.Errorf("profile lookup required")
	case params.Outbox == nil:
		return nil, fmt.Errorf("outbox publisher required")
	}

	currency := strings.ToLower(strings.TrimSpace(params.Config.Currency))
	if currency == "" {
		currency = "usd"
	}
	orderPrefix := strings.TrimSpace(params.Config.OrderPrefix)
	if orderPrefix == "" {
		orderPrefix = "DRIPLO"
	}
	manualPrefix := strings.TrimSpace(params.Config.ManualPrefix)
	if manualPrefix == "" {
		manualPrefix = "REV"
	}
	policy := pricing.DefaultFeePolicy()
	if params.Config.BuyerFeePercent != "" {
		policy = pricing.FeePolicy{Percent: params.Config.FeePercent(), Fixed: params.Config.FeeFixed()}
	}
	now := params.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}

	return &service{
		tx:           params.Tx,
		gateway:      params.Gateway,
		listings:     params.Listings,
		transactions: params.Transactions,
		payouts:      params.Payouts,
		profiles:     params.Profiles,
		outbox:       params.Outbox,
		policy:       policy,
		currency:     currency,
		orderPrefix:  orderPrefix,
		manualPrefix: manualPrefix,
		returnURL:    strings.TrimRight(params.PublicBaseURL, "/") + confirmationPath,
		metrics:      params.Metrics,
		logg:         params.Logger,
		now:          now,
	}, nil
}

// orderReference builds PREFIX-<unix ms>-<last 6 chars of the listing id>-<6 hex of nonce>.
// It doubles as the gateway idempotency key and must differ between concurrent checkouts.
func orderReference(prefix string, at time.Time, listingID, nonce uuid.UUID) string {
	id := listingID.String()
	return fmt.Sprintf("%s-%d-%s-%x", prefix, at.UnixMilli(), id[len(id)-6:], nonce[:3])
}

func (s *service) loadAndPrice(ctx context.Context, listingID, buyerID uuid.UUID) (*models.Listing, pricing.Breakdown, error) {
	if listingID == uuid.Nil {
		return nil, pricing.Breakdown{}, pkgerrors.New(pkgerrors.CodeValidation, "listing_id is required")
	}
	if buyerID == uuid.Nil {
		return nil, pricing.Breakdown{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	listing, err := s.listings.FindByID(ctx, listingID)
	if err != nil {
		return nil, pricing.Breakdown{}, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "load listing")
	}
	breakdown, err := pricing.ForListing(listing, buyerID, s.policy)
	if err != nil {
		return nil, pricing.Breakdown{}, err
	}
	return listing, breakdown, nil
}

func (s *service) newTransaction(id string, listing *models.Listing, buyerID uuid.UUID, b pricing.Breakdown, method enums.PaymentMethod) *models.Transaction {
	return &models.Transaction{
		ID:                 id,
		ListingID:          listing.ID,
		BuyerID:            buyerID,
		SellerID:           listing.SellerID,
		Amount:             b.Subtotal,
		BuyerFeeAmount:     b.BuyerFee,
		BuyerFeePercentage: b.FeePercentage,
		TotalAmount:        b.Total,
		PlatformFeeAmount:  b.BuyerFee,
		SellerPayoutAmount: b.SellerPayout,
		Currency:           s.currency,
		Status:             enums.TransactionStatusPending,
		PaymentMethod:      method,
		SellerPayoutStatus: enums.SellerPayoutStatusPending,
	}
}

// compensate cancels an intent whose local record could not be written. It runs detached
// from the request context so a client disconnect cannot skip it.
func (s *service) compensate(ctx context.Context, intentID string, cause error) error {
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), compensationTimeout)
	defer cancel()

	cancelErr := s.gateway.CancelIntent(cctx, intentID, cancelReasonAbandoned)
	if cancelErr != nil {
		s.metrics.IncOutcome("create_intent", "compensation_failed")
		if s.logg != nil {
			s.logg.Error(s.logg.WithPaymentIntentID(ctx, intentID), "failed to cancel orphaned payment intent", cancelErr)
		}
	} else {
		s.metrics.IncOutcome("create_intent", "compensated")
		if s.logg != nil {
			s.logg.Warn(s.logg.WithPaymentIntentID(ctx, intentID), "payment intent canceled after persistence failure")
		}
	}
	return pkgerrors.Wrap(pkgerrors.CodePersistence, multierr.Append(cause, cancelErr), "Failed to create transaction")
}

func (s *service) logInfo(ctx context.Context, fields map[string]any, msg string) {
	if s.logg == nil {
		return
	}
	s.logg.Info(s.logg.WithFields(ctx, fields), msg)
}

func (s *service) logWarn(ctx context.Context, fields map[string]any, msg string) {
	if s.logg == nil {
		return
	}
	s.logg.Warn(s.logg.WithFields(ctx, fields), msg)
}
