package audit

import (
	"context"

	"gorm.io/gorm"

	"github.com/w3bsuki/driplo-final/pkg/db/models"
)

// Repository manages persistence for admin audit entries.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, entry *models.AdminAuditLog) error
	ListByTarget(ctx context.Context, targetType, targetID string) ([]models.AdminAuditLog, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns an audit repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, entry *models.AdminAuditLog) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *repository) ListByTarget(ctx context.Context, targetType, targetID string) ([]models.AdminAuditLog, error) {
	var entries []models.AdminAuditLog
	if err := r.db.WithContext(ctx).
		Where("target_type = ? AND target_id = ?", targetType, targetID).
		Order("created_at ASC").
		Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}
