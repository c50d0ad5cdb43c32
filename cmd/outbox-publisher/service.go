package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/w3bsuki/driplo-final/pkg/config"
	"github.com/w3bsuki/driplo-final/pkg/db/models"
	"github.com/w3bsuki/driplo-final/pkg/enums"
	"github.com/w3bsuki/driplo-final/pkg/logger"
	"github.com/w3bsuki/driplo-final/pkg/metrics"
	"github.com/w3bsuki/driplo-final/pkg/outbox/registry"
)

const (
	defaultBatchSize   = 50
	defaultPoll        = 500 * time.Millisecond
	defaultMaxAttempts = 10
	publishTimeout     = 15 * time.Second
	maxIdleBackoff     = 10 * time.Second
	jitterWindow       = 250 * time.Millisecond
)

type database interface {
	Ping(context.Context) error
	WithTx(context.Context, func(tx *gorm.DB) error) error
}

// broker publishes one message and waits for the ack.
type broker interface {
	Ping(context.Context) error
	Send(ctx context.Context, topic string, msg *gcppubsub.Message) (string, error)
}

type eventStore interface {
	FetchUnpublishedForPublish(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error)
	MarkPublishedTx(tx *gorm.DB, id uuid.UUID) error
	MarkFailedTx(tx *gorm.DB, id uuid.UUID, err error) error
	MarkTerminalTx(tx *gorm.DB, id uuid.UUID, err error, terminalAttempts int) error
}

type deadLetterStore interface {
	BuryTx(tx *gorm.DB, event models.OutboxEvent, reason enums.OutboxDLQErrorReason, cause error) error
}

type resolver interface {
	Resolve(models.OutboxEvent) (registry.Resolved, error)
}

type ServiceParams struct {
	Outbox      config.OutboxConfig
	Logger      *logger.Logger
	DB          database
	Broker      broker
	Events      eventStore
	Registry    resolver
	DeadLetters deadLetterStore
	Metrics     *metrics.OutboxMetrics
}

// Service drains outbox_events to Pub/Sub. Rows are claimed with SKIP LOCKED so several
// publishers can run side by side.
type Service struct {
	logg        *logger.Logger
	db          database
	broker      broker
	events      eventStore
	registry    resolver
	deadLetters deadLetterStore
	metrics     *metrics.OutboxMetrics
	batchSize   int
	maxAttempts int
	poll        time.Duration
}

func NewService(p ServiceParams) (*Service, error) {
	switch {
	case p.Logger == nil:
		return nil, errors.New("logger is required")
	case p.DB == nil:
		return nil, errors.New("database is required")
	case p.Broker == nil:
		return nil, errors.New("broker is required")
	case p.Events == nil:
		return nil, errors.New("event store is required")
	case p.Registry == nil:
		return nil, errors.New("event registry is required")
	case p.DeadLetters == nil:
		return nil, errors.New("dead letter store is required")
	}
	s := &Service{
		logg:        p.Logger,
		db:          p.DB,
		broker:      p.Broker,
		events:      p.Events,
		registry:    p.Registry,
		deadLetters: p.DeadLetters,
		metrics:     p.Metrics,
		batchSize:   orDefault(p.Outbox.BatchSize, defaultBatchSize),
		maxAttempts: orDefault(p.Outbox.MaxAttempts, defaultMaxAttempts),
		poll:        defaultPoll,
	}
	if p.Outbox.PollIntervalMS > 0 {
		s.poll = time.Duration(p.Outbox.PollIntervalMS) * time.Millisecond
	}
	return s, nil
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

// Run polls until ctx is done. A full batch is followed immediately by the next one.
// Batch errors back off exponentially up to maxIdleBackoff.
func (s *Service) Run(ctx context.Context) error {
	if err := s.db.Ping(ctx); err != nil {
		return fmt.Errorf("database ping: %w", err)
	}
	if err := s.broker.Ping(ctx); err != nil {
		return fmt.Errorf("pubsub ping: %w", err)
	}

	p := newPacer(s.poll, maxIdleBackoff)
	for {
		rows, err := s.drain(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.logg.Error(ctx, "outbox.batch_failed", err)
		}
		if err := sleep(ctx, p.next(rows, err)); err != nil {
			s.logg.Info(ctx, "outbox publisher stopping")
			return err
		}
	}
}

type verdict int

const (
	verdictPublished verdict = iota
	verdictRetry
	verdictDead
)

// outcome is what happened to one row before it is written back.
type outcome struct {
	verdict verdict
	reason  enums.OutboxDLQErrorReason
	err     error
	topic   string
	eventID string
}

// drain claims one batch, publishes each row and records the result in the same transaction.
func (s *Service) drain(ctx context.Context) (int, error) {
	claimed := 0
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		rows, err := s.events.FetchUnpublishedForPublish(tx, s.batchSize, s.maxAttempts)
		if err != nil {
			return fmt.Errorf("fetch batch: %w", err)
		}
		claimed = len(rows)
		s.metrics.ObserveBatch(claimed)
		for _, row := range rows {
			if err := s.settle(ctx, tx, row, s.dispatch(ctx, row)); err != nil {
				return err
			}
		}
		return nil
	})
	return claimed, err
}

func (s *Service) dispatch(ctx context.Context, row models.OutboxEvent) outcome {
	resolved, err := s.registry.Resolve(row)
	if err != nil {
		return outcome{verdict: verdictDead, reason: enums.OutboxDLQReasonNonRetryable, err: err}
	}
	out := outcome{topic: resolved.Route.Topic, eventID: resolved.Envelope.EventID}

	sendCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	start := time.Now()
	_, err = s.broker.Send(sendCtx, out.topic, message(row, resolved))
	s.metrics.ObservePublish(time.Since(start))

	switch {
	case err == nil:
		out.verdict = verdictPublished
	case registry.IsPermanent(err):
		out.verdict, out.reason, out.err = verdictDead, enums.OutboxDLQReasonNonRetryable, err
	case row.AttemptCount+1 >= s.maxAttempts:
		out.verdict, out.reason = verdictDead, enums.OutboxDLQReasonMaxAttempts
		out.err = fmt.Errorf("gave up after %d attempts: %w", row.AttemptCount+1, err)
	default:
		out.verdict, out.err = verdictRetry, err
	}
	return out
}

func (s *Service) settle(ctx context.Context, tx *gorm.DB, row models.OutboxEvent, out outcome) error {
	ctx = s.logg.WithFields(ctx, rowFields(row, out))
	switch out.verdict {
	case verdictPublished:
		if err := s.events.MarkPublishedTx(tx, row.ID); err != nil {
			return fmt.Errorf("mark %s published: %w", row.ID, err)
		}
		s.metrics.Count(string(row.EventType), metrics.OutboxPublished)
		s.logg.Info(ctx, "outbox.published")
	case verdictRetry:
		if err := s.events.MarkFailedTx(tx, row.ID, out.err); err != nil {
			return fmt.Errorf("mark %s failed: %w", row.ID, err)
		}
		s.metrics.Count(string(row.EventType), metrics.OutboxRetried)
		s.logg.Warn(s.logg.WithField(ctx, "error", out.err.Error()), "outbox.publish_retry")
	case verdictDead:
		if err := s.deadLetters.BuryTx(tx, row, out.reason, out.err); err != nil {
			return fmt.Errorf("dead-letter %s: %w", row.ID, err)
		}
		if err := s.events.MarkTerminalTx(tx, row.ID, out.err, s.maxAttempts); err != nil {
			return fmt.Errorf("mark %s terminal: %w", row.ID, err)
		}
		s.metrics.Count(string(row.EventType), metrics.OutboxDeadLetter)
		s.logg.Warn(s.logg.WithField(ctx, "error", out.err.Error()), "outbox.dead_lettered")
	}
	return nil
}

// message carries the stored envelope unchanged. The ordering key keeps one aggregate's
// events in commit order.
func message(row models.OutboxEvent, resolved registry.Resolved) *gcppubsub.Message {
	return &gcppubsub.Message{
		Data:        row.Payload,
		OrderingKey: string(row.AggregateType) + ":" + row.AggregateID,
		Attributes: map[string]string{
			"event_id":       resolved.Envelope.EventID,
			"event_type":     string(row.EventType),
			"aggregate_type": string(row.AggregateType),
			"aggregate_id":   row.AggregateID,
			"occurred_at":    resolved.Envelope.OccurredAt.Format(time.RFC3339Nano),
		},
	}
}

func rowFields(row models.OutboxEvent, out outcome) map[string]any {
	fields := map[string]any{
		"outbox_id":      row.ID.String(),
		"event_type":     row.EventType,
		"aggregate_type": row.AggregateType,
		"aggregate_id":   row.AggregateID,
		"attempt_count":  row.AttemptCount,
	}
	if out.eventID != "" {
		fields["event_id"] = out.eventID
	}
	if out.topic != "" {
		fields["topic"] = out.topic
	}
	if out.reason != "" {
		fields["dead_letter_reason"] = out.reason
	}
	return fields
}

// pacer picks the pause before the next batch.
type pacer struct {
	base, ceiling, backoff time.Duration
	rng                    *rand.Rand
}

func newPacer(base, ceiling time.Duration) *pacer {
	return &pacer{base: base, ceiling: ceiling, rng: rand.New(rand.NewSource(time.Now().UnixNano()))}
}

func (p *pacer) next(rows int, err error) time.Duration {
	if err != nil {
		if p.backoff == 0 {
			p.backoff = p.base
		}
		p.backoff = min(p.backoff*2, p.ceiling)
		return p.backoff + p.jitter()
	}
	p.backoff = 0
	if rows > 0 {
		return 0
	}
	return p.base + p.jitter()
}

func (p *pacer) jitter() time.Duration {
	return time.Duration(p.rng.Int63n(int64(jitterWindow)))
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
