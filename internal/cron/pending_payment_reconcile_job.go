package cron

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/w3bsuki/driplo-final/internal/payments"
	"github.com/w3bsuki/driplo-final/pkg/db/models"
	"github.com/w3bsuki/driplo-final/pkg/logger"
)

const (
	defaultPendingAfter   = 30 * time.Minute
	defaultReconcileBatch = 100
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type pendingTransactionsRepo interface {
	ListPendingStripeBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.Transaction, error)
}

type paymentReconciler interface {
	Reconcile(ctx context.Context, txn models.Transaction) (payments.Outcome, error)
}

type PendingPaymentReconcileJobParams struct {
	Logger       *logger.Logger
	Transactions pendingTransactionsRepo
	Payments     paymentReconciler
	PendingAfter time.Duration
	BatchSize    int
}

// NewPendingPaymentReconcileJob settles card transactions whose confirmation never reached us.
func NewPendingPaymentReconcileJob(params PendingPaymentReconcileJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Transactions == nil {
		return nil, fmt.Errorf("transactions repository required")
	}
	if params.Payments == nil {
		return nil, fmt.Errorf("payments service required")
	}
	after := params.PendingAfter
	if after <= 0 {
		after = defaultPendingAfter
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultReconcileBatch
	}
	return &pendingPaymentReconcileJob{
		logg:     params.Logger,
		txns:     params.Transactions,
		payments: params.Payments,
		after:    after,
		batch:    batch,
		now:      time.Now,
	}, nil
}

type pendingPaymentReconcileJob struct {
	logg     *logger.Logger
	txns     pendingTransactionsRepo
	payments paymentReconciler
	after    time.Duration
	batch    int
	now      func() time.Time
}

func (j *pendingPaymentReconcileJob) Name() string { return "pending-payment-reconcile" }

func (j *pendingPaymentReconcileJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.after)
	rows, err := j.txns.ListPendingStripeBefore(ctx, cutoff, j.batch)
	if err != nil {
		return fmt.Errorf("query pending transactions: %w", err)
	}

	var errs error
	counts := map[payments.Outcome]int{}
	for _, txn := range rows {
		if err := ctx.Err(); err != nil {
			return multierr.Append(errs, err)
		}
		outcome, err := j.payments.Reconcile(ctx, txn)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("reconcile %s: %w", txn.ID, err))
			continue
		}
		counts[outcome]++
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"cutoff":    cutoff,
		"scanned":   len(rows),
		"completed": counts[payments.OutcomeCompleted],
		"failed":    counts[payments.OutcomeFailed],
		"errors":    len(multierr.Errors(errs)),
	})
	j.logg.Info(logCtx, "pending payment reconcile complete")
	return errs
}
