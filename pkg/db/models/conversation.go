package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Conversation is a buyer/seller thread about one listing. Archive flags are per participant.
type Conversation struct {
	ID               uuid.UUID  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ListingID        uuid.UUID  `gorm:"column:listing_id;type:uuid;not null"`
	BuyerID          uuid.UUID  `gorm:"column:buyer_id;type:uuid;not null"`
	SellerID         uuid.UUID  `gorm:"column:seller_id;type:uuid;not null"`
	LastMessageAt    *time.Time `gorm:"column:last_message_at"`
	ArchivedByBuyer  bool       `gorm:"column:archived_by_buyer;not null;default:false"`
	ArchivedBySeller bool       `gorm:"column:archived_by_seller;not null;default:false"`
	CreatedAt        time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

func (c *Conversation) BeforeCreate(*gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

// IsParticipant reports whether userID is the buyer or the seller.
func (c Conversation) IsParticipant(userID uuid.UUID) bool {
	return userID == c.BuyerID || userID == c.SellerID
}
