package payloads

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/w3bsuki/driplo-final/pkg/enums"
)

// PaymentIntentCreatedEvent is emitted when a card checkout opens a pending transaction.
type PaymentIntentCreatedEvent struct {
	OrderID         string          `json:"order_id"`
	ListingID       uuid.UUID       `json:"listing_id"`
	BuyerID         uuid.UUID       `json:"buyer_id"`
	SellerID        uuid.UUID       `json:"seller_id"`
	PaymentIntentID string          `json:"payment_intent_id"`
	TotalAmount     decimal.Decimal `json:"total_amount"`
	Currency        string          `json:"currency"`
}

// ManualPaymentCreatedEvent is emitted when a buyer chooses a manual transfer.
type ManualPaymentCreatedEvent struct {
	OrderID      string          `json:"order_id"`
	ListingID    uuid.UUID       `json:"listing_id"`
	BuyerID      uuid.UUID       `json:"buyer_id"`
	SellerID     uuid.UUID       `json:"seller_id"`
	TotalAmount  decimal.Decimal `json:"total_amount"`
	SellerRevtag string          `json:"seller_revtag"`
}

// PaymentCompletedEvent signals that funds were captured for an order.
type PaymentCompletedEvent struct {
	OrderID         string          `json:"order_id"`
	ListingID       uuid.UUID       `json:"listing_id"`
	BuyerID         uuid.UUID       `json:"buyer_id"`
	SellerID        uuid.UUID       `json:"seller_id"`
	PaymentIntentID string          `json:"payment_intent_id,omitempty"`
	TotalAmount     decimal.Decimal `json:"total_amount"`
	SellerPayout    decimal.Decimal `json:"seller_payout"`
	CompletedAt     time.Time       `json:"completed_at"`
}

// PaymentFailedEvent carries the gateway failure reason.
type PaymentFailedEvent struct {
	OrderID         string    `json:"order_id"`
	PaymentIntentID string    `json:"payment_intent_id,omitempty"`
	Reason          string    `json:"reason"`
	FailedAt        time.Time `json:"failed_at"`
}

// ListingSoldEvent is emitted when a listing leaves the active catalog.
type ListingSoldEvent struct {
	ListingID uuid.UUID `json:"listing_id"`
	OrderID   string    `json:"order_id"`
	SellerID  uuid.UUID `json:"seller_id"`
	SoldAt    time.Time `json:"sold_at"`
}

// PayoutProcessedEvent is emitted once per payout an admin approved or rejected.
type PayoutProcessedEvent struct {
	PayoutID      uuid.UUID          `json:"payout_id"`
	TransactionID string             `json:"transaction_id"`
	SellerID      uuid.UUID          `json:"seller_id"`
	Amount        decimal.Decimal    `json:"amount"`
	Status        enums.PayoutStatus `json:"status"`
	AdminID       uuid.UUID          `json:"admin_id"`
	ProcessedAt   time.Time          `json:"processed_at"`
}

// MessageSentEvent lets notification consumers alert the recipient.
type MessageSentEvent struct {
	ConversationID uuid.UUID `json:"conversation_id"`
	MessageID      uuid.UUID `json:"message_id"`
	ListingID      uuid.UUID `json:"listing_id"`
	SenderID       uuid.UUID `json:"sender_id"`
	RecipientID    uuid.UUID `json:"recipient_id"`
}
