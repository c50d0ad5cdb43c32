package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/w3bsuki/driplo-final/pkg/db/models"
	"github.com/w3bsuki/driplo-final/pkg/enums"
)

// TargetSellerPayout is the target_type recorded for payout decisions.
const TargetSellerPayout = "payout"

// Service records admin actions, one entry per affected row.
type Service interface {
	Record(ctx context.Context, tx *gorm.DB, entry Entry) (*models.AdminAuditLog, error)
	ListByTarget(ctx context.Context, targetType, targetID string) ([]models.AdminAuditLog, error)
}

// Entry is the immutable data an audit row requires. Details is marshalled to jsonb.
type Entry struct {
	AdminID    uuid.UUID
	Action     enums.AuditAction
	TargetType string
	TargetID   string
	Details    any
}

type service struct {
	repo Repository
}

// NewService wires an audit service with the provided repository.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("audit repository required")
	}
	return &service{repo: repo}, nil
}

// Record writes the entry on tx when given so it commits with the audited change.
func (s *service) Record(ctx context.Context, tx *gorm.DB, entry Entry) (*models.AdminAuditLog, error) {
	if entry.AdminID == uuid.Nil {
		return nil, fmt.Errorf("admin id is required")
	}
	if !entry.Action.IsValid() {
		return nil, fmt.Errorf("invalid audit action %q", entry.Action)
	}
	if strings.TrimSpace(entry.TargetType) == "" || strings.TrimSpace(entry.TargetID) == "" {
		return nil, fmt.Errorf("audit target is required")
	}

	var details json.RawMessage
	if entry.Details != nil {
		raw, err := json.Marshal(entry.Details)
		if err != nil {
			return nil, fmt.Errorf("marshal audit details: %w", err)
		}
		details = raw
	}

	row := &models.AdminAuditLog{
		AdminID:    entry.AdminID,
		Action:     entry.Action,
		TargetType: entry.TargetType,
		TargetID:   entry.TargetID,
		Details:    details,
	}
	if err := s.repo.WithTx(tx).Create(ctx, row); err != nil {
		return nil, err
	}
	return row, nil
}

func (s *service) ListByTarget(ctx context.Context, targetType, targetID string) ([]models.AdminAuditLog, error) {
	return s.repo.ListByTarget(ctx, targetType, targetID)
}
