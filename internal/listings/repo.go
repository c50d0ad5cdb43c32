package listings

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/w3bsuki/driplo-final/pkg/db/models"
	"github.com/w3bsuki/driplo-final/pkg/enums"
)

// Repository reads listings and flips them to sold.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindByID(ctx context.Context, id uuid.UUID) (*models.Listing, error)
	MarkSold(ctx context.Context, id uuid.UUID, soldAt time.Time) (int64, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository binds the listings repository to db.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// FindByID returns nil, nil when the listing does not exist.
func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Listing, error) {
	var listing models.Listing
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&listing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &listing, nil
}

// MarkSold moves an active listing to sold. Zero rows means another writer got there first.
func (r *repository) MarkSold(ctx context.Context, id uuid.UUID, soldAt time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Listing{}).
		Where("id = ? AND status = ?", id, enums.ListingStatusActive).
		Updates(map[string]any{
			"status":     enums.ListingStatusSold,
			"sold_at":    soldAt,
			"updated_at": soldAt,
		})
	return res.RowsAffected, res.Error
}
