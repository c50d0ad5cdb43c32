package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/w3bsuki/driplo-final/pkg/logger"
)

const (
	outboxRetentionDays     = 30
	deadLetterRetentionDays = 90
	outboxRetentionBatch    = 500
)

// pruner deletes at most limit rows older than cutoff and reports how many went.
type pruner interface {
	DeletePublishedBefore(tx *gorm.DB, cutoff time.Time, limit int) (int64, error)
}

type deadLetterPruner interface {
	DeleteBefore(tx *gorm.DB, cutoff time.Time, limit int) (int64, error)
}

type OutboxRetentionJobParams struct {
	Logger      *logger.Logger
	DB          txRunner
	Repository  pruner
	DeadLetters deadLetterPruner
	Retention   int
	DLQDays     int
	BatchSize   int
}

type outboxRetentionJob struct {
	logg  *logger.Logger
	db    txRunner
	steps []pruneStep
	batch int
	now   func() time.Time
}

type pruneStep struct {
	name string
	days int
	run  func(tx *gorm.DB, cutoff time.Time, limit int) (int64, error)
}

// NewOutboxRetentionJob prunes published outbox rows and, when DeadLetters is set, old
// dead letters. Each table has its own window.
func NewOutboxRetentionJob(p OutboxRetentionJobParams) (Job, error) {
	switch {
	case p.Logger == nil:
		return nil, errors.New("logger required")
	case p.DB == nil:
		return nil, errors.New("db runner required")
	case p.Repository == nil:
		return nil, errors.New("outbox repository required")
	}
	j := &outboxRetentionJob{
		logg:  p.Logger,
		db:    p.DB,
		batch: positiveOr(p.BatchSize, outboxRetentionBatch),
		now:   time.Now,
	}
	j.steps = append(j.steps, pruneStep{"outbox_events", positiveOr(p.Retention, outboxRetentionDays), p.Repository.DeletePublishedBefore})
	if p.DeadLetters != nil {
		j.steps = append(j.steps, pruneStep{"outbox_dlq", positiveOr(p.DLQDays, deadLetterRetentionDays), p.DeadLetters.DeleteBefore})
	}
	return j, nil
}

func positiveOr(v, def int) int {
	if v > 0 {
		return v
	}
	return def
}

func (j *outboxRetentionJob) Name() string { return "outbox-retention" }

func (j *outboxRetentionJob) Run(ctx context.Context) error {
	now := j.now().UTC()
	for _, step := range j.steps {
		cutoff := now.AddDate(0, 0, -step.days)
		total, err := j.prune(ctx, step, cutoff)
		if err != nil {
			return fmt.Errorf("prune %s: %w", step.name, err)
		}
		j.logg.Info(j.logg.WithFields(ctx, map[string]any{
			"table":          step.name,
			"cutoff":         cutoff,
			"retention_days": step.days,
			"rows_deleted":   total,
		}), "cron.retention_pruned")
	}
	return nil
}

// prune deletes one batch per transaction until a short batch shows nothing older remains.
func (j *outboxRetentionJob) prune(ctx context.Context, step pruneStep, cutoff time.Time) (int64, error) {
	var total int64
	for {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		var n int64
		err := j.db.WithTx(ctx, func(tx *gorm.DB) (err error) {
			n, err = step.run(tx, cutoff, j.batch)
			return err
		})
		if err != nil {
			return total, err
		}
		total += n
		if n < int64(j.batch) {
			return total, nil
		}
	}
}
