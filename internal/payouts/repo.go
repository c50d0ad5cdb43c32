package payouts

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/w3bsuki/driplo-final/pkg/db/models"
	"github.com/w3bsuki/driplo-final/pkg/enums"
)

// Resolution is the write applied to every payout in a batch.
type Resolution struct {
	Status      enums.PayoutStatus
	ProcessedBy uuid.UUID
	ProcessedAt time.Time
	Notes       *string
}

// Repository persists seller payouts.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, payout *models.SellerPayout) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.SellerPayout, error)
	ResolveProcessing(ctx context.Context, ids []uuid.UUID, res Resolution) ([]models.SellerPayout, error)
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

func (r *repository) Create(ctx context.Context, payout *models.SellerPayout) error {
	return r.db.WithContext(ctx).Create(payout).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.SellerPayout, error) {
	var payout models.SellerPayout
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&payout).Error; err != nil {
		return nil, err
	}
	return &payout, nil
}

// ResolveProcessing issues one UPDATE ... WHERE id IN (...) AND status = 'processing' RETURNING *.
// Rows already resolved by another admin are left alone and simply absent from the result.
func (r *repository) ResolveProcessing(ctx context.Context, ids []uuid.UUID, res Resolution) ([]models.SellerPayout, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = id.String()
	}

	var updated []models.SellerPayout
	err := r.db.WithContext(ctx).
		Model(&updated).
		Clauses(clause.Returning{}).
		Where("id IN ? AND status = ?", keys, enums.PayoutStatusProcessing).
		Updates(map[string]any{
			"status":       res.Status,
			"processed_by": res.ProcessedBy,
			"processed_at": res.ProcessedAt,
			"admin_notes":  res.Notes,
			"updated_at":   res.ProcessedAt,
		}).Error
	if err != nil {
		return nil, err
	}
	return updated, nil
}
