package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/w3bsuki/driplo-final/pkg/enums"
	"github.com/w3bsuki/driplo-final/pkg/types"
)

// Transaction is one purchase attempt keyed by its public order reference.
type Transaction struct {
	ID                    string                   `gorm:"column:id;primaryKey"`
	ListingID             uuid.UUID                `gorm:"column:listing_id;type:uuid;not null"`
	BuyerID               uuid.UUID                `gorm:"column:buyer_id;type:uuid;not null"`
	SellerID              uuid.UUID                `gorm:"column:seller_id;type:uuid;not null"`
	Amount                decimal.Decimal          `gorm:"column:amount;type:numeric(10,2);not null"`
	BuyerFeeAmount        decimal.Decimal          `gorm:"column:buyer_fee_amount;type:numeric(10,2);not null"`
	BuyerFeePercentage    decimal.Decimal          `gorm:"column:buyer_fee_percentage;type:numeric(5,2);not null"`
	TotalAmount           decimal.Decimal          `gorm:"column:total_amount;type:numeric(10,2);not null"`
	PlatformFeeAmount     decimal.Decimal          `gorm:"column:platform_fee_amount;type:numeric(10,2);not null"`
	SellerPayoutAmount    decimal.Decimal          `gorm:"column:seller_payout_amount;type:numeric(10,2);not null"`
	Currency              string                   `gorm:"column:currency;not null"`
	Status                enums.TransactionStatus  `gorm:"column:status;type:transaction_status;not null;default:'pending'"`
	PaymentMethod         enums.PaymentMethod      `gorm:"column:payment_method;type:payment_method;not null"`
	StripePaymentIntentID *string                  `gorm:"column:stripe_payment_intent_id"`
	SellerPayoutStatus    enums.SellerPayoutStatus `gorm:"column:seller_payout_status;type:seller_payout_status;not null;default:'pending'"`
	SellerRevtag          *string                  `gorm:"column:seller_revtag"`
	PaymentInstructions   *string                  `gorm:"column:payment_instructions"`
	ShippingAddress       types.ShippingAddress    `gorm:"column:shipping_address;type:jsonb;not null"`
	FailureReason         *string                  `gorm:"column:failure_reason"`
	CompletedAt           *time.Time               `gorm:"column:completed_at"`
	FailedAt              *time.Time               `gorm:"column:failed_at"`
	PayoutProcessedAt     *time.Time               `gorm:"column:payout_processed_at"`
	CreatedAt             time.Time                `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt             time.Time                `gorm:"column:updated_at;autoUpdateTime"`
}
