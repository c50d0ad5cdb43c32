package cron

import (
	"context"
	"fmt"

	"go.uber.org/multierr"

	"github.com/w3bsuki/driplo-final/pkg/db/models"
	"github.com/w3bsuki/driplo-final/pkg/logger"
)

type unsoldListingsRepo interface {
	ListCompletedWithUnsoldListing(ctx context.Context, limit int) ([]models.Transaction, error)
}

type listingRepairer interface {
	RepairListing(ctx context.Context, txn models.Transaction) (bool, error)
}

type ListingSoldReconcileJobParams struct {
	Logger       *logger.Logger
	Transactions unsoldListingsRepo
	Payments     listingRepairer
	BatchSize    int
}

// NewListingSoldReconcileJob re-applies the sold transition for completed purchases whose listing
// stayed active.
func NewListingSoldReconcileJob(params ListingSoldReconcileJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Transactions == nil {
		return nil, fmt.Errorf("transactions repository required")
	}
	if params.Payments == nil {
		return nil, fmt.Errorf("payments service required")
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultReconcileBatch
	}
	return &listingSoldReconcileJob{
		logg:     params.Logger,
		txns:     params.Transactions,
		payments: params.Payments,
		batch:    batch,
	}, nil
}

type listingSoldReconcileJob struct {
	logg     *logger.Logger
	txns     unsoldListingsRepo
	payments listingRepairer
	batch    int
}

func (j *listingSoldReconcileJob) Name() string { return "listing-sold-reconcile" }

func (j *listingSoldReconcileJob) Run(ctx context.Context) error {
	rows, err := j.txns.ListCompletedWithUnsoldListing(ctx, j.batch)
	if err != nil {
		return fmt.Errorf("query unsold listings: %w", err)
	}

	var errs error
	repaired := 0
	for _, txn := range rows {
		ok, err := j.payments.RepairListing(ctx, txn)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("repair listing %s: %w", txn.ListingID, err))
			continue
		}
		if ok {
			repaired++
		}
	}

	if len(rows) > 0 {
		logCtx := j.logg.WithFields(ctx, map[string]any{"scanned": len(rows), "repaired": repaired})
		j.logg.Warn(logCtx, "listings drifted from completed transactions")
	}
	return errs
}
