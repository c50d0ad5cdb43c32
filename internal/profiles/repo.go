package profiles

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/w3bsuki/driplo-final/pkg/db/models"
)

// UnknownRevtag is shown when a seller has not set up manual payouts yet.
const UnknownRevtag = "@unknown"

type Repository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Profile, error)
	RevtagFor(ctx context.Context, id uuid.UUID) (string, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

// FindByID returns nil, nil for unknown profiles.
func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Profile, error) {
	var profile models.Profile
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&profile).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

// RevtagFor returns the seller's payout tag, normalized to start with "@".
func (r *repository) RevtagFor(ctx context.Context, id uuid.UUID) (string, error) {
	profile, err := r.FindByID(ctx, id)
	if err != nil {
		return "", err
	}
	if profile == nil || profile.Revtag == nil {
		return UnknownRevtag, nil
	}
	return NormalizeRevtag(*profile.Revtag), nil
}

func NormalizeRevtag(tag string) string {
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return UnknownRevtag
	}
	if !strings.HasPrefix(tag, "@") {
		tag = "@" + tag
	}
	return tag
}
