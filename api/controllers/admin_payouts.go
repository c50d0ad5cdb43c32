package controllers

import (
	"net/http"

	"github.com/w3bsuki/driplo-final/api/middleware"
	"github.com/w3bsuki/driplo-final/api/responses"
	"github.com/w3bsuki/driplo-final/api/validators"
	"github.com/w3bsuki/driplo-final/internal/payouts"
	"github.com/w3bsuki/driplo-final/pkg/enums"
	pkgerrors "github.com/w3bsuki/driplo-final/pkg/errors"
	"github.com/w3bsuki/driplo-final/pkg/logger"
)

type payoutBatchRequest struct {
	PayoutIDs []string `json:"payout_ids"`
	Action    string   `json:"action"`
	Notes     string   `json:"notes,omitempty"`
}

// AdminPayoutBatch approves or rejects up to payouts.MaxBatchSize pending payouts in one call.
// Per-item failures are reported in the body; the request itself still succeeds.
func AdminPayoutBatch(svc payouts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payouts service unavailable"))
			return
		}

		var payload payoutBatchRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.BatchProcess(r.Context(), payouts.BatchInput{
			AdminID:   middleware.UserUUIDFromContext(r.Context()),
			PayoutIDs: payload.PayoutIDs,
			Action:    enums.PayoutAction(payload.Action),
			Notes:     payload.Notes,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}
