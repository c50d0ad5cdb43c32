package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/w3bsuki/driplo-final/pkg/enums"
)

// AdminAuditLog records one administrative action against one target row.
type AdminAuditLog struct {
	ID         uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	AdminID    uuid.UUID         `gorm:"column:admin_id;type:uuid;not null"`
	Action     enums.AuditAction `gorm:"column:action;not null"`
	TargetType string            `gorm:"column:target_type;not null"`
	TargetID   string            `gorm:"column:target_id;not null"`
	Details    json.RawMessage   `gorm:"column:details;type:jsonb"`
	CreatedAt  time.Time         `gorm:"column:created_at;autoCreateTime"`
}

func (a *AdminAuditLog) BeforeCreate(*gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}
