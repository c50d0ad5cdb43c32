// Package payouts lets admins approve or reject seller payouts in bounded batches.
package payouts

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/w3bsuki/driplo-final/internal/audit"
	"github.com/w3bsuki/driplo-final/internal/transactions"
	"github.com/w3bsuki/driplo-final/pkg/db/models"
	"github.com/w3bsuki/driplo-final/pkg/enums"
	pkgerrors "github.com/w3bsuki/driplo-final/pkg/errors"
	"github.com/w3bsuki/driplo-final/pkg/logger"
	"github.com/w3bsuki/driplo-final/pkg/metrics"
	"github.com/w3bsuki/driplo-final/pkg/outbox"
	"github.com/w3bsuki/driplo-final/pkg/outbox/payloads"
)

const (
	// MaxBatchSize caps how many payouts one call may touch.
	MaxBatchSize = 50

	MsgNotProcessable = "Payout not found or not in processing status"
	maxNotesLength    = 1000
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service processes admin payout batches.
type Service interface {
	BatchProcess(ctx context.Context, input BatchInput) (*BatchResult, error)
}

type BatchInput struct {
	AdminID   uuid.UUID
	PayoutIDs []string
	Action    enums.PayoutAction
	Notes     string
}

type BatchFailure struct {
	ID    string `json:"id"`
	Error string `json:"error"`
}

type BatchResults struct {
	Successful []string       `json:"successful"`
	Failed     []BatchFailure `json:"failed"`
}

type BatchSummary struct {
	Total      int `json:"total"`
	Successful int `json:"successful"`
	Failed     int `json:"failed"`
}

// BatchResult reports per-item outcomes; a batch never succeeds or fails as a whole.
type BatchResult struct {
	Message string       `json:"message"`
	Results BatchResults `json:"results"`
	Summary BatchSummary `json:"summary"`
}

type ServiceParams struct {
	Tx           txRunner
	Payouts      Repository
	Transactions transactions.Repository
	Audit        audit.Service
	Outbox       outboxPublisher
	Metrics      *metrics.PaymentMetrics
	Logger       *logger.Logger
	Now          func() time.Time
}

type service struct {
	tx           txRunner
	payouts      Repository
	transactions transactions.Repository
	audit        audit.Service
	outbox       outboxPublisher
	metrics      *metrics.PaymentMetrics
	logg         *logger.Logger
	now          func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	if params.Tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if params.Payouts == nil {
		return nil, fmt.Errorf("payout repository required")
	}
	if params.Transactions == nil {
		return nil, fmt.Errorf("transactions repository required")
	}
	if params.Audit == nil {
		return nil, fmt.Errorf("audit service required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	now := params.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &service{
		tx:           params.Tx,
		payouts:      params.Payouts,
		transactions: params.Transactions,
		audit:        params.Audit,
		outbox:       params.Outbox,
		metrics:      params.Metrics,
		logg:         params.Logger,
		now:          now,
	}, nil
}

func (s *service) BatchProcess(ctx context.Context, input BatchInput) (*BatchResult, error) {
	ids, err := validateBatch(input)
	if err != nil {
		return nil, err
	}

	var notes *string
	if trimmed := strings.TrimSpace(input.Notes); trimmed != "" {
		notes = &trimmed
	}
	processedAt := s.now()
	resolution := Resolution{
		Status:      input.Action.TargetStatus(),
		ProcessedBy: input.AdminID,
		ProcessedAt: processedAt,
		Notes:       notes,
	}

	var updated []models.SellerPayout
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		rows, err := s.payouts.WithTx(tx).ResolveProcessing(ctx, ids, resolution)
		if err != nil {
			return err
		}
		txnRepo := s.transactions.WithTx(tx)
		for _, payout := range rows {
			if err := s.applySideEffects(ctx, tx, txnRepo, payout, input, notes, processedAt); err != nil {
				return err
			}
		}
		updated = rows
		return nil
	})
	if err != nil {
		if pkgerrors.As(err) != nil {
			return nil, err
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "Failed to process batch payouts")
	}

	result := buildResult(input.Action, ids, updated)
	s.metrics.AddPayouts(string(input.Action), result.Summary.Successful, result.Summary.Failed)
	if s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"admin_id":   input.AdminID.String(),
			"action":     input.Action,
			"successful": result.Summary.Successful,
			"failed":     result.Summary.Failed,
		})
		s.logg.Info(logCtx, "payout batch processed")
	}
	return result, nil
}

func (s *service) applySideEffects(
	ctx context.Context,
	tx *gorm.DB,
	txnRepo transactions.Repository,
	payout models.SellerPayout,
	input BatchInput,
	notes *string,
	processedAt time.Time,
) error {
	mirrored, err := txnRepo.SetPayoutStatus(ctx, payout.TransactionID, input.Action.SellerPayoutStatus(), processedAt)
	if err != nil {
		return err
	}
	if mirrored == 0 && s.logg != nil {
		s.logg.Warn(s.logg.WithFields(ctx, map[string]any{
			"payout_id": payout.ID.String(),
			"order_id":  payout.TransactionID,
		}), "transaction payout status already resolved")
	}

	details := map[string]any{
		"amount":          payout.Amount.StringFixed(2),
		"seller_id":       payout.SellerID.String(),
		"transaction_id":  payout.TransactionID,
		"notes":           notes,
		"batch_operation": true,
	}
	if _, err := s.audit.Record(ctx, tx, audit.Entry{
		AdminID:    input.AdminID,
		Action:     input.Action.AuditAction(),
		TargetType: audit.TargetSellerPayout,
		TargetID:   payout.ID.String(),
		Details:    details,
	}); err != nil {
		return err
	}

	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventPayoutProcessed,
		AggregateType: enums.AggregateSellerPayout,
		AggregateID:   payout.ID.String(),
		Actor:         &outbox.ActorRef{UserID: input.AdminID, Role: string(enums.UserRoleAdmin)},
		OccurredAt:    processedAt,
		Data: payloads.PayoutProcessedEvent{
			PayoutID:      payout.ID,
			TransactionID: payout.TransactionID,
			SellerID:      payout.SellerID,
			Amount:        payout.Amount,
			Status:        payout.Status,
			AdminID:       input.AdminID,
			ProcessedAt:   processedAt,
		},
	})
}

// validateBatch parses ids in request order and collapses duplicates.
func validateBatch(input BatchInput) ([]uuid.UUID, error) {
	if input.AdminID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "Admin access required")
	}
	if len(input.PayoutIDs) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "Invalid payout IDs")
	}
	if len(input.PayoutIDs) > MaxBatchSize {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "Cannot process more than %d payouts at once", MaxBatchSize)
	}
	if !input.Action.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, `Invalid action. Must be "approve" or "reject"`)
	}
	if len(input.Notes) > maxNotesLength {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "Notes are too long")
	}

	seen := make(map[uuid.UUID]struct{}, len(input.PayoutIDs))
	ids := make([]uuid.UUID, 0, len(input.PayoutIDs))
	for _, raw := range input.PayoutIDs {
		id, err := uuid.Parse(strings.TrimSpace(raw))
		if err != nil {
			return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "Invalid payout ID: %s", raw)
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids, nil
}

func buildResult(action enums.PayoutAction, requested []uuid.UUID, updated []models.SellerPayout) *BatchResult {
	done := make(map[uuid.UUID]struct{}, len(updated))
	for _, payout := range updated {
		done[payout.ID] = struct{}{}
	}

	results := BatchResults{
		Successful: make([]string, 0, len(updated)),
		Failed:     []BatchFailure{},
	}
	for _, id := range requested {
		if _, ok := done[id]; ok {
			results.Successful = append(results.Successful, id.String())
			continue
		}
		results.Failed = append(results.Failed, BatchFailure{ID: id.String(), Error: MsgNotProcessable})
	}

	summary := BatchSummary{
		Total:      len(requested),
		Successful: len(results.Successful),
		Failed:     len(results.Failed),
	}
	return &BatchResult{
		Message: fmt.Sprintf("Batch %s completed: %d successful, %d failed", action, summary.Successful, summary.Failed),
		Results: results,
		Summary: summary,
	}
}
