package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/w3bsuki/driplo-final/pkg/enums"
)

// Profile is the marketplace identity behind buyers, sellers and admins.
type Profile struct {
	ID        uuid.UUID      `gorm:"column:id;type:uuid;primaryKey"`
	Username  string         `gorm:"column:username;not null"`
	Revtag    *string        `gorm:"column:revtag"`
	Role      enums.UserRole `gorm:"column:role;type:user_role;not null;default:'user'"`
	CreatedAt time.Time      `gorm:"column:created_at;autoCreateTime"`
}
