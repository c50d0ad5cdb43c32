// Package messaging implements buyer/seller conversations scoped to a listing.
package messaging

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/w3bsuki/driplo-final/internal/listings"
	dbpkg "github.com/w3bsuki/driplo-final/pkg/db"
	"github.com/w3bsuki/driplo-final/pkg/db/models"
	"github.com/w3bsuki/driplo-final/pkg/enums"
	pkgerrors "github.com/w3bsuki/driplo-final/pkg/errors"
	"github.com/w3bsuki/driplo-final/pkg/logger"
	"github.com/w3bsuki/driplo-final/pkg/outbox"
	"github.com/w3bsuki/driplo-final/pkg/outbox/payloads"
	"github.com/w3bsuki/driplo-final/pkg/pagination"
)

const (
	MaxMessageLength = 1000

	MsgConversationNotFound = "Conversation not found"
	MsgNotParticipant       = "Not a participant in this conversation"
	MsgEmptyMessage         = "Message cannot be empty"
	MsgMessageTooLong       = "Message is too long (max 1000 characters)"
	MsgOwnListing           = "Cannot message your own listing"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service is the conversation surface exposed to controllers.
type Service interface {
	ListConversations(ctx context.Context, userID uuid.UUID, params pagination.Params) (*Page, error)
	ListArchived(ctx context.Context, userID uuid.UUID, params pagination.Params) (*Page, error)
	StartConversation(ctx context.Context, input StartInput) (*models.Conversation, error)
	GetConversation(ctx context.Context, conversationID, userID uuid.UUID) (*Thread, error)
	SendMessage(ctx context.Context, conversationID, senderID uuid.UUID, content string) (*models.Message, error)
	Archive(ctx context.Context, conversationID, userID uuid.UUID) error
	Unarchive(ctx context.Context, conversationID, userID uuid.UUID) error
}

type Page struct {
	Conversations []Summary
	NextCursor    string
}

// Thread is a conversation with its messages in send order.
type Thread struct {
	Conversation models.Conversation
	Messages     []models.Message
}

type StartInput struct {
	ListingID uuid.UUID
	BuyerID   uuid.UUID
	Message   string
}

type ServiceParams struct {
	Tx       txRunner
	Repo     Repository
	Listings listings.Repository
	Outbox   outboxPublisher
	Logger   *logger.Logger
	Now      func() time.Time
}

type service struct {
	tx       txRunner
	repo     Repository
	listings listings.Repository
	outbox   outboxPublisher
	logg     *logger.Logger
	now      func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	if params.Tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if params.Repo == nil {
		return nil, fmt.Errorf("messaging repository required")
	}
	if params.Listings == nil {
		return nil, fmt.Errorf("listings repository required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	now := params.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &service{
		tx:       params.Tx,
		repo:     params.Repo,
		listings: params.Listings,
		outbox:   params.Outbox,
		logg:     params.Logger,
		now:      now,
	}, nil
}

func (s *service) ListConversations(ctx context.Context, userID uuid.UUID, params pagination.Params) (*Page, error) {
	return s.list(ctx, userID, false, params)
}

func (s *service) ListArchived(ctx context.Context, userID uuid.UUID, params pagination.Params) (*Page, error) {
	return s.list(ctx, userID, true, params)
}

func (s *service) list(ctx context.Context, userID uuid.UUID, archived bool, params pagination.Params) (*Page, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	cursor, err := params.Decode()
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}

	limit := params.PageSize()
	rows, err := s.repo.ListForUser(ctx, userID, archived, cursor, limit+1)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "Failed to load conversations")
	}

	page := &Page{}
	page.Conversations, page.NextCursor = pagination.Trim(rows, limit, func(c Summary) pagination.Cursor {
		return pagination.Cursor{SortAt: c.UpdatedAt, ID: c.ID}
	})
	return page, nil
}

// StartConversation returns the existing thread for (listing, buyer) or opens one.
// A non-empty message is sent on the thread either way.
func (s *service) StartConversation(ctx context.Context, input StartInput) (*models.Conversation, error) {
	if input.BuyerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	content := strings.TrimSpace(input.Message)
	if content != "" {
		if err := validateContent(content); err != nil {
			return nil, err
		}
	}

	listing, err := s.listings.FindByID(ctx, input.ListingID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "Failed to load listing")
	}
	if listing == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "Listing not found")
	}
	if listing.SellerID == input.BuyerID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, MsgOwnListing)
	}

	conv, err := s.findOrCreate(ctx, listing, input.BuyerID)
	if err != nil {
		return nil, err
	}
	if content == "" {
		return conv, nil
	}
	if _, err := s.send(ctx, conv, input.BuyerID, content); err != nil {
		return nil, err
	}
	refreshed, err := s.repo.FindConversation(ctx, conv.ID)
	if err != nil || refreshed == nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "Failed to load conversation")
	}
	return refreshed, nil
}

func (s *service) findOrCreate(ctx context.Context, listing *models.Listing, buyerID uuid.UUID) (*models.Conversation, error) {
	existing, err := s.repo.FindByListingAndBuyer(ctx, listing.ID, buyerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "Failed to load conversation")
	}
	if existing != nil {
		return existing, nil
	}

	now := s.now()
	conv := &models.Conversation{
		ListingID: listing.ID,
		BuyerID:   buyerID,
		SellerID:  listing.SellerID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.CreateConversation(ctx, conv); err != nil {
		if !dbpkg.IsUniqueViolation(err, "") {
			return nil, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "Failed to start conversation")
		}
		// lost the race to a concurrent start for the same pair
		existing, err = s.repo.FindByListingAndBuyer(ctx, listing.ID, buyerID)
		if err != nil || existing == nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "Failed to start conversation")
		}
		return existing, nil
	}
	return conv, nil
}

// GetConversation marks the other party's messages read before loading the thread.
func (s *service) GetConversation(ctx context.Context, conversationID, userID uuid.UUID) (*Thread, error) {
	conv, err := s.participantConversation(ctx, conversationID, userID)
	if err != nil {
		return nil, err
	}

	if _, err := s.repo.MarkRead(ctx, conv.ID, userID, s.now()); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "Failed to mark messages read")
	}
	msgs, err := s.repo.ListMessages(ctx, conv.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "Failed to load messages")
	}
	return &Thread{Conversation: *conv, Messages: msgs}, nil
}

func (s *service) SendMessage(ctx context.Context, conversationID, senderID uuid.UUID, content string) (*models.Message, error) {
	content = strings.TrimSpace(content)
	if err := validateContent(content); err != nil {
		return nil, err
	}
	conv, err := s.participantConversation(ctx, conversationID, senderID)
	if err != nil {
		return nil, err
	}
	return s.send(ctx, conv, senderID, content)
}

func (s *service) send(ctx context.Context, conv *models.Conversation, senderID uuid.UUID, content string) (*models.Message, error) {
	now := s.now()
	recipientID := conv.BuyerID
	if senderID == conv.BuyerID {
		recipientID = conv.SellerID
	}
	msg := &models.Message{
		ConversationID: conv.ID,
		SenderID:       senderID,
		Content:        content,
		CreatedAt:      now,
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.InsertMessage(ctx, msg); err != nil {
			return err
		}
		if err := repo.Touch(ctx, conv.ID, now, archiveColumn(*conv, recipientID)); err != nil {
			return err
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventMessageSent,
			AggregateType: enums.AggregateConversation,
			AggregateID:   conv.ID.String(),
			Actor:         &outbox.ActorRef{UserID: senderID, Role: string(enums.UserRoleUser)},
			OccurredAt:    now,
			Data: payloads.MessageSentEvent{
				ConversationID: conv.ID,
				MessageID:      msg.ID,
				ListingID:      conv.ListingID,
				SenderID:       senderID,
				RecipientID:    recipientID,
			},
		})
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "Failed to send message")
	}

	if s.logg != nil {
		s.logg.Debug(s.logg.WithFields(ctx, map[string]any{
			"conversation_id": conv.ID.String(),
			"message_id":      msg.ID.String(),
		}), "message sent")
	}
	return msg, nil
}

func (s *service) Archive(ctx context.Context, conversationID, userID uuid.UUID) error {
	return s.setArchived(ctx, conversationID, userID, true)
}

func (s *service) Unarchive(ctx context.Context, conversationID, userID uuid.UUID) error {
	return s.setArchived(ctx, conversationID, userID, false)
}

func (s *service) setArchived(ctx context.Context, conversationID, userID uuid.UUID, archived bool) error {
	conv, err := s.participantConversation(ctx, conversationID, userID)
	if err != nil {
		return err
	}
	if err := s.repo.SetArchived(ctx, conv.ID, archiveColumn(*conv, userID), archived, s.now()); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodePersistence, err, "Failed to update conversation")
	}
	return nil
}

func (s *service) participantConversation(ctx context.Context, conversationID, userID uuid.UUID) (*models.Conversation, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	conv, err := s.repo.FindConversation(ctx, conversationID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "Failed to load conversation")
	}
	if conv == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, MsgConversationNotFound)
	}
	if !conv.IsParticipant(userID) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, MsgNotParticipant)
	}
	return conv, nil
}

func validateContent(content string) error {
	if content == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, MsgEmptyMessage)
	}
	if utf8.RuneCountInString(content) > MaxMessageLength {
		return pkgerrors.New(pkgerrors.CodeValidation, MsgMessageTooLong)
	}
	return nil
}

// archiveColumn names the archive flag that belongs to userID.
func archiveColumn(conv models.Conversation, userID uuid.UUID) string {
	if userID == conv.BuyerID {
		return "archived_by_buyer"
	}
	return "archived_by_seller"
}
