package transactions

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/w3bsuki/driplo-final/pkg/db/models"
	"github.com/w3bsuki/driplo-final/pkg/enums"
)

// Repository persists transactions. Every status write is guarded by the expected prior
// state and reports rows affected; zero means the row had already moved.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, txn *models.Transaction) error
	FindByID(ctx context.Context, id string) (*models.Transaction, error)
	FindByPaymentIntentID(ctx context.Context, intentID string) (*models.Transaction, error)
	MarkCompleted(ctx context.Context, id string, at time.Time) (int64, error)
	MarkFailed(ctx context.Context, id, reason string, at time.Time) (int64, error)
	RecordDecline(ctx context.Context, id, reason string, at time.Time) (int64, error)
	SetPayoutStatus(ctx context.Context, id string, status enums.SellerPayoutStatus, at time.Time) (int64, error)
	ListPendingStripeBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.Transaction, error)
	ListCompletedWithUnsoldListing(ctx context.Context, limit int) ([]models.Transaction, error)
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

func (r *repository) Create(ctx context.Context, txn *models.Transaction) error {
	return r.db.WithContext(ctx).Create(txn).Error
}

// FindByID returns nil, nil when no row matches.
func (r *repository) FindByID(ctx context.Context, id string) (*models.Transaction, error) {
	return r.first(ctx, "id = ?", id)
}

func (r *repository) FindByPaymentIntentID(ctx context.Context, intentID string) (*models.Transaction, error) {
	return r.first(ctx, "stripe_payment_intent_id = ?", intentID)
}

func (r *repository) first(ctx context.Context, query string, args ...any) (*models.Transaction, error) {
	var txn models.Transaction
	err := r.db.WithContext(ctx).Where(query, args...).First(&txn).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &txn, nil
}

func (r *repository) MarkCompleted(ctx context.Context, id string, at time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Transaction{}).
		Where("id = ? AND status = ?", id, enums.TransactionStatusPending).
		Updates(map[string]any{
			"status":         enums.TransactionStatusCompleted,
			"completed_at":   at,
			"failure_reason": nil,
			"updated_at":     at,
		})
	return res.RowsAffected, res.Error
}

func (r *repository) MarkFailed(ctx context.Context, id, reason string, at time.Time) (int64, error) {
	updates := map[string]any{
		"status":     enums.TransactionStatusFailed,
		"failed_at":  at,
		"updated_at": at,
	}
	if reason != "" {
		updates["failure_reason"] = reason
	}
	res := r.db.WithContext(ctx).
		Model(&models.Transaction{}).
		Where("id = ? AND status = ?", id, enums.TransactionStatusPending).
		Updates(updates)
	return res.RowsAffected, res.Error
}

// RecordDecline notes why the latest attempt was declined. The transaction stays pending
// because the buyer may retry with another payment method.
func (r *repository) RecordDecline(ctx context.Context, id, reason string, at time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Transaction{}).
		Where("id = ? AND status = ?", id, enums.TransactionStatusPending).
		Updates(map[string]any{
			"failure_reason": reason,
			"updated_at":     at,
		})
	return res.RowsAffected, res.Error
}

// SetPayoutStatus mirrors an admin payout decision. Completed payouts also stamp payout_processed_at.
func (r *repository) SetPayoutStatus(ctx context.Context, id string, status enums.SellerPayoutStatus, at time.Time) (int64, error) {
	if !CanTransitionPayout(enums.SellerPayoutStatusPending, status) {
		return 0, EnsurePayoutTransition(enums.SellerPayoutStatusPending, status)
	}
	updates := map[string]any{
		"seller_payout_status": status,
		"updated_at":           at,
	}
	if status == enums.SellerPayoutStatusCompleted {
		updates["payout_processed_at"] = at
	}
	res := r.db.WithContext(ctx).
		Model(&models.Transaction{}).
		Where("id = ? AND seller_payout_status = ?", id, enums.SellerPayoutStatusPending).
		Updates(updates)
	return res.RowsAffected, res.Error
}

// ListPendingStripeBefore returns gateway-backed transactions still pending at cutoff, oldest first.
func (r *repository) ListPendingStripeBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.Transaction, error) {
	var rows []models.Transaction
	err := r.db.WithContext(ctx).
		Where("status = ? AND payment_method = ? AND stripe_payment_intent_id IS NOT NULL AND created_at < ?",
			enums.TransactionStatusPending, enums.PaymentMethodStripe, cutoff).
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

// ListCompletedWithUnsoldListing finds completed purchases whose listing is still active.
func (r *repository) ListCompletedWithUnsoldListing(ctx context.Context, limit int) ([]models.Transaction, error) {
	var rows []models.Transaction
	err := r.db.WithContext(ctx).
		Table("transactions AS t").
		Select("t.*").
		Joins("JOIN listings l ON l.id = t.listing_id").
		Where("t.status = ? AND l.status = ?", enums.TransactionStatusCompleted, enums.ListingStatusActive).
		Order("t.completed_at ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}
