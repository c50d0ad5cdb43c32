package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/w3bsuki/driplo-final/pkg/enums"
)

// SellerPayout is the seller's share of one completed transaction.
type SellerPayout struct {
	ID            uuid.UUID          `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	TransactionID string             `gorm:"column:transaction_id;not null"`
	SellerID      uuid.UUID          `gorm:"column:seller_id;type:uuid;not null"`
	Amount        decimal.Decimal    `gorm:"column:amount;type:numeric(10,2);not null"`
	SellerRevtag  *string            `gorm:"column:seller_revtag"`
	PayoutMethod  string             `gorm:"column:payout_method;not null;default:'revolut'"`
	Status        enums.PayoutStatus `gorm:"column:status;type:payout_status;not null;default:'processing'"`
	ProcessedBy   *uuid.UUID         `gorm:"column:processed_by;type:uuid"`
	ProcessedAt   *time.Time         `gorm:"column:processed_at"`
	AdminNotes    *string            `gorm:"column:admin_notes"`
	CreatedAt     time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}

func (p *SellerPayout) BeforeCreate(*gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
