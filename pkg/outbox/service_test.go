package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/w3bsuki/driplo-final/pkg/db/dbtest"
	"github.com/w3bsuki/driplo-final/pkg/db/models"
	"github.com/w3bsuki/driplo-final/pkg/enums"
)

func TestEmitWritesEnvelope(t *testing.T) {
	db := dbtest.Open(t)
	svc := NewService(NewRepository(db), nil)

	err := db.Transaction(func(tx *gorm.DB) error {
		return svc.Emit(context.Background(), tx, DomainEvent{
			EventType:     enums.EventPaymentCompleted,
			AggregateType: enums.AggregateTransaction,
			AggregateID:   "DRIPLO-1700000000000-abc123",
			Data:          map[string]string{"order_id": "DRIPLO-1700000000000-abc123"},
		})
	})
	require.NoError(t, err)

	var rows []models.OutboxEvent
	require.NoError(t, db.Find(&rows).Error)
	require.Len(t, rows, 1)
	assert.Equal(t, "DRIPLO-1700000000000-abc123", rows[0].AggregateID)

	envelope, err := DecodeEnvelope(rows[0].Payload)
	require.NoError(t, err)
	assert.Equal(t, 1, envelope.Version)
	assert.NotEmpty(t, envelope.EventID)
	assert.JSONEq(t, `{"order_id":"DRIPLO-1700000000000-abc123"}`, string(envelope.Data))
}

func TestEmitValidatesEvent(t *testing.T) {
	db := dbtest.Open(t)
	svc := NewService(NewRepository(db), nil)

	err := svc.Emit(context.Background(), db, DomainEvent{
		EventType:     enums.EventListingSold,
		AggregateType: enums.AggregateListing,
	})
	assert.Error(t, err)

	err = svc.Emit(context.Background(), nil, DomainEvent{})
	assert.Error(t, err)
}

func TestEmitIfNotExistsSkipsDuplicates(t *testing.T) {
	db := dbtest.Open(t)
	svc := NewService(NewRepository(db), nil)
	event := DomainEvent{
		EventType:     enums.EventListingSold,
		AggregateType: enums.AggregateListing,
		AggregateID:   "5b0e8a5e-7f6c-4c1e-9a57-4d1f3b7c2a10",
		Data:          map[string]string{},
	}

	for i := 0; i < 2; i++ {
		require.NoError(t, svc.EmitIfNotExists(context.Background(), db, event))
	}

	var count int64
	require.NoError(t, db.Model(&models.OutboxEvent{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestRepositoryPublishLifecycle(t *testing.T) {
	db := dbtest.Open(t)
	repo := NewRepository(db)
	svc := NewService(repo, nil)

	for _, id := range []string{"a", "b"} {
		require.NoError(t, svc.Emit(context.Background(), db, DomainEvent{
			EventType:     enums.EventMessageSent,
			AggregateType: enums.AggregateConversation,
			AggregateID:   id,
			Data:          map[string]string{},
		}))
	}

	rows, err := repo.FetchUnpublishedForPublish(db, 10, 3)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	require.NoError(t, repo.MarkPublishedTx(db, rows[0].ID))
	require.NoError(t, repo.MarkFailedTx(db, rows[1].ID, errors.New("pubsub unavailable")))

	pending, err := repo.FetchUnpublishedForPublish(db, 10, 3)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, 1, pending[0].AttemptCount)
	require.NotNil(t, pending[0].LastError)
	assert.Equal(t, "pubsub unavailable", *pending[0].LastError)

	require.NoError(t, repo.MarkTerminalTx(db, pending[0].ID, errors.New("bad payload"), 3))
	pending, err = repo.FetchUnpublishedForPublish(db, 10, 3)
	require.NoError(t, err)
	assert.Empty(t, pending)

	deleted, err := repo.DeletePublishedBefore(db, time.Now().UTC().Add(time.Minute), 100)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)
}

func TestDecodeEnvelopeRejectsUnreadablePayloads(t *testing.T) {
	cases := map[string]string{
		"not json":       `{`,
		"future version": `{"version":2,"event_id":"e1","data":{}}`,
		"no event id":    `{"version":1,"data":{}}`,
		"null data":      `{"version":1,"event_id":"e1","data":null}`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeEnvelope([]byte(raw))
			assert.Error(t, err)
		})
	}

	_, err := DecodeEnvelope([]byte(`{"version":9,"event_id":"e1","data":{}}`))
	assert.ErrorIs(t, err, ErrEnvelopeVersion)
}

func TestDeadLettersBuryAndLookup(t *testing.T) {
	db := dbtest.Open(t)
	letters := NewDeadLetters(db)
	letters.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }

	event := models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     enums.EventPaymentFailed,
		AggregateType: enums.AggregateTransaction,
		AggregateID:   "DRIPLO-1-abcdef",
		Payload:       json.RawMessage(`{}`),
		AttemptCount:  4,
	}
	cause := errors.New(strings.Repeat("é", deadLetterMessageLimit))
	require.NoError(t, letters.BuryTx(db, event, enums.OutboxDLQReasonMaxAttempts, cause))

	stored, err := letters.Get(context.Background(), event.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OutboxDLQReasonMaxAttempts, stored.ErrorReason)
	assert.Equal(t, 4, stored.AttemptCount)
	require.NotNil(t, stored.ErrorMessage)
	assert.LessOrEqual(t, len(*stored.ErrorMessage), deadLetterMessageLimit)
	assert.True(t, utf8.ValidString(*stored.ErrorMessage))

	_, err = letters.Get(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrDeadLetterNotFound)

	rows, err := letters.Recent(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, rows, 1)

	assert.Error(t, letters.BuryTx(db, event, "gave_up", nil))
}
