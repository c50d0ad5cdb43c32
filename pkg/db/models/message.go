package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Message struct {
	ID             uuid.UUID  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ConversationID uuid.UUID  `gorm:"column:conversation_id;type:uuid;not null"`
	SenderID       uuid.UUID  `gorm:"column:sender_id;type:uuid;not null"`
	Content        string     `gorm:"column:content;not null"`
	IsRead         bool       `gorm:"column:is_read;not null;default:false"`
	ReadAt         *time.Time `gorm:"column:read_at"`
	CreatedAt      time.Time  `gorm:"column:created_at;autoCreateTime"`
}

func (m *Message) BeforeCreate(*gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}
