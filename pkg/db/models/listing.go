package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/w3bsuki/driplo-final/pkg/enums"
)

// Listing is a sellable item owned by one seller.
type Listing struct {
	ID           uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	SellerID     uuid.UUID           `gorm:"column:seller_id;type:uuid;not null"`
	Title        string              `gorm:"column:title;not null"`
	Price        decimal.Decimal     `gorm:"column:price;type:numeric(10,2);not null"`
	ShippingCost decimal.Decimal     `gorm:"column:shipping_cost;type:numeric(10,2);not null;default:0"`
	Status       enums.ListingStatus `gorm:"column:status;type:listing_status;not null;default:'draft'"`
	SoldAt       *time.Time          `gorm:"column:sold_at"`
	CreatedAt    time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

func (l *Listing) BeforeCreate(*gorm.DB) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	return nil
}
