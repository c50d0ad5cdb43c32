package messaging

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/w3bsuki/driplo-final/pkg/db/models"
	"github.com/w3bsuki/driplo-final/pkg/pagination"
)

// Summary is a conversation row annotated with the caller's unread count.
type Summary struct {
	models.Conversation
	UnreadCount int64 `gorm:"column:unread_count"`
}

// Repository persists conversations and their messages.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateConversation(ctx context.Context, conv *models.Conversation) error
	FindConversation(ctx context.Context, id uuid.UUID) (*models.Conversation, error)
	FindByListingAndBuyer(ctx context.Context, listingID, buyerID uuid.UUID) (*models.Conversation, error)
	ListForUser(ctx context.Context, userID uuid.UUID, archived bool, cursor *pagination.Cursor, limit int) ([]Summary, error)
	InsertMessage(ctx context.Context, msg *models.Message) error
	ListMessages(ctx context.Context, conversationID uuid.UUID) ([]models.Message, error)
	MarkRead(ctx context.Context, conversationID, readerID uuid.UUID, at time.Time) (int64, error)
	Touch(ctx context.Context, conversationID uuid.UUID, at time.Time, unarchiveColumn string) error
	SetArchived(ctx context.Context, conversationID uuid.UUID, column string, archived bool, at time.Time) error
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CreateConversation(ctx context.Context, conv *models.Conversation) error {
	return r.db.WithContext(ctx).Create(conv).Error
}

func (r *repository) FindConversation(ctx context.Context, id uuid.UUID) (*models.Conversation, error) {
	return r.first(ctx, "id = ?", id)
}

func (r *repository) FindByListingAndBuyer(ctx context.Context, listingID, buyerID uuid.UUID) (*models.Conversation, error) {
	return r.first(ctx, "listing_id = ? AND buyer_id = ?", listingID, buyerID)
}

func (r *repository) first(ctx context.Context, query string, args ...any) (*models.Conversation, error) {
	var conv models.Conversation
	err := r.db.WithContext(ctx).Where(query, args...).First(&conv).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

// ListForUser pages the user's conversations by (updated_at DESC, id DESC).
// archived selects against the caller's own flag only.
func (r *repository) ListForUser(ctx context.Context, userID uuid.UUID, archived bool, cursor *pagination.Cursor, limit int) ([]Summary, error) {
	unread := r.db.Model(&models.Message{}).
		Select("COUNT(*)").
		Where("messages.conversation_id = conversations.id AND messages.is_read = ? AND messages.sender_id <> ?", false, userID)

	q := r.db.WithContext(ctx).
		Model(&models.Conversation{}).
		Select("conversations.*, (?) AS unread_count", unread).
		Where("(conversations.buyer_id = ? AND conversations.archived_by_buyer = ?) OR (conversations.seller_id = ? AND conversations.archived_by_seller = ?)",
			userID, archived, userID, archived)
	if cursor != nil {
		q = q.Where("conversations.updated_at < ? OR (conversations.updated_at = ? AND conversations.id < ?)",
			cursor.SortAt, cursor.SortAt, cursor.ID)
	}

	var rows []Summary
	err := q.Order("conversations.updated_at DESC").
		Order("conversations.id DESC").
		Limit(limit).
		Scan(&rows).Error
	return rows, err
}

func (r *repository) InsertMessage(ctx context.Context, msg *models.Message) error {
	return r.db.WithContext(ctx).Create(msg).Error
}

func (r *repository) ListMessages(ctx context.Context, conversationID uuid.UUID) ([]models.Message, error) {
	var msgs []models.Message
	err := r.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("created_at ASC").
		Order("id ASC").
		Find(&msgs).Error
	return msgs, err
}

// MarkRead flags every unread message the other participant sent.
func (r *repository) MarkRead(ctx context.Context, conversationID, readerID uuid.UUID, at time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Message{}).
		Where("conversation_id = ? AND is_read = ? AND sender_id <> ?", conversationID, false, readerID).
		Updates(map[string]any{"is_read": true, "read_at": at})
	return res.RowsAffected, res.Error
}

func (r *repository) Touch(ctx context.Context, conversationID uuid.UUID, at time.Time, unarchiveColumn string) error {
	updates := map[string]any{
		"last_message_at": at,
		"updated_at":      at,
	}
	if unarchiveColumn != "" {
		updates[unarchiveColumn] = false
	}
	return r.db.WithContext(ctx).
		Model(&models.Conversation{}).
		Where("id = ?", conversationID).
		Updates(updates).Error
}

func (r *repository) SetArchived(ctx context.Context, conversationID uuid.UUID, column string, archived bool, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.Conversation{}).
		Where("id = ?", conversationID).
		Updates(map[string]any{column: archived, "updated_at": at}).Error
}
