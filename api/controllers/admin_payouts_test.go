package controllers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/w3bsuki/driplo-final/internal/payouts"
	"github.com/w3bsuki/driplo-final/pkg/enums"
	pkgerrors "github.com/w3bsuki/driplo-final/pkg/errors"
)

type stubPayoutsService struct {
	fn func(ctx context.Context, input payouts.BatchInput) (*payouts.BatchResult, error)
}

func (s stubPayoutsService) BatchProcess(ctx context.Context, input payouts.BatchInput) (*payouts.BatchResult, error) {
	return s.fn(ctx, input)
}

func TestAdminPayoutBatchReturnsPerItemResults(t *testing.T) {
	admin := uuid.New()
	ok := uuid.NewString()
	bad := uuid.NewString()
	svc := stubPayoutsService{
		fn: func(ctx context.Context, input payouts.BatchInput) (*payouts.BatchResult, error) {
			assert.Equal(t, admin, input.AdminID)
			assert.Equal(t, enums.PayoutActionApprove, input.Action)
			assert.Equal(t, []string{ok, bad}, input.PayoutIDs)
			return &payouts.BatchResult{
				Message: "Processed 2 payouts",
				Results: payouts.BatchResults{
					Successful: []string{ok},
					Failed:     []payouts.BatchFailure{{ID: bad, Error: "Payout not found or already processed"}},
				},
				Summary: payouts.BatchSummary{Total: 2, Successful: 1, Failed: 1},
			}, nil
		},
	}

	body := `{"payout_ids":["` + ok + `","` + bad + `"],"action":"approve","notes":"weekly run"}`
	rec := httptest.NewRecorder()
	AdminPayoutBatch(svc, nil).ServeHTTP(rec, authedRequest(http.MethodPost, "/api/admin/payouts/batch", body, admin))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var out payouts.BatchResult
	decodeData(t, rec, &out)
	assert.Equal(t, []string{ok}, out.Results.Successful)
	require.Len(t, out.Results.Failed, 1)
	assert.Equal(t, bad, out.Results.Failed[0].ID)
	assert.Equal(t, 1, out.Summary.Failed)
}

func TestAdminPayoutBatchSurfacesValidationErrors(t *testing.T) {
	svc := stubPayoutsService{
		fn: func(context.Context, payouts.BatchInput) (*payouts.BatchResult, error) {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "Cannot process more than 50 payouts at once")
		},
	}

	rec := httptest.NewRecorder()
	AdminPayoutBatch(svc, nil).ServeHTTP(rec, authedRequest(http.MethodPost, "/api/admin/payouts/batch", `{"payout_ids":[],"action":"approve"}`, uuid.New()))

	require.Equal(t, http.StatusBadRequest, rec.Code)
	_, msg := decodeError(t, rec)
	assert.Equal(t, "Cannot process more than 50 payouts at once", msg)
}

func TestAdminPayoutBatchRejectsUnknownFields(t *testing.T) {
	rec := httptest.NewRecorder()
	AdminPayoutBatch(stubPayoutsService{}, nil).ServeHTTP(rec, authedRequest(http.MethodPost, "/api/admin/payouts/batch", `{"ids":[]}`, uuid.New()))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}
