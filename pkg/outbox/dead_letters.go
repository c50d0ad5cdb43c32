package outbox

import (
	"context"
	"errors"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/w3bsuki/driplo-final/pkg/db/models"
	"github.com/w3bsuki/driplo-final/pkg/enums"
)

const deadLetterMessageLimit = 1024

// ErrDeadLetterNotFound is returned by Get when no row exists for the event.
var ErrDeadLetterNotFound = errors.New("dead letter not found")

// DeadLetters keeps a copy of every outbox row the publisher stopped retrying.
type DeadLetters struct {
	db  *gorm.DB
	now func() time.Time
}

func NewDeadLetters(db *gorm.DB) *DeadLetters {
	return &DeadLetters{db: db, now: time.Now}
}

// BuryTx copies the event into outbox_dlq inside tx.
func (d *DeadLetters) BuryTx(tx *gorm.DB, event models.OutboxEvent, reason enums.OutboxDLQErrorReason, cause error) error {
	if tx == nil {
		return errors.New("transaction required")
	}
	if !reason.IsValid() {
		return errors.New("invalid dead letter reason")
	}
	row := models.OutboxDLQ{
		EventID:       event.ID,
		EventType:     event.EventType,
		AggregateType: event.AggregateType,
		AggregateID:   event.AggregateID,
		Payload:       event.Payload,
		ErrorReason:   reason,
		AttemptCount:  event.AttemptCount,
		FailedAt:      d.now().UTC(),
	}
	if cause != nil {
		msg := clip(cause.Error(), deadLetterMessageLimit)
		row.ErrorMessage = &msg
	}
	return tx.Create(&row).Error
}

func (d *DeadLetters) Get(ctx context.Context, eventID uuid.UUID) (models.OutboxDLQ, error) {
	var row models.OutboxDLQ
	err := d.db.WithContext(ctx).Where("event_id = ?", eventID).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.OutboxDLQ{}, ErrDeadLetterNotFound
	}
	return row, err
}

// Recent lists the newest dead letters first.
func (d *DeadLetters) Recent(ctx context.Context, limit int) ([]models.OutboxDLQ, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	var rows []models.OutboxDLQ
	err := d.db.WithContext(ctx).Order("failed_at DESC").Limit(limit).Find(&rows).Error
	return rows, err
}

// clip cuts s to at most n bytes without splitting a rune.
func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	s = s[:n]
	for len(s) > 0 && !utf8.ValidString(s) {
		s = s[:len(s)-1]
	}
	return s
}

// DeleteBefore removes up to limit dead letters that failed before cutoff.
func (d *DeadLetters) DeleteBefore(tx *gorm.DB, cutoff time.Time, limit int) (int64, error) {
	if tx == nil {
		tx = d.db
	}
	sub := tx.Model(&models.OutboxDLQ{}).Select("id").Where("failed_at < ?", cutoff).Order("failed_at ASC").Limit(limit)
	res := tx.Where("id IN (?)", sub).Delete(&models.OutboxDLQ{})
	return res.RowsAffected, res.Error
}
