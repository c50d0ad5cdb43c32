package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/w3bsuki/driplo-final/api/middleware"
	"github.com/w3bsuki/driplo-final/internal/payments"
	"github.com/w3bsuki/driplo-final/pkg/db/models"
	pkgerrors "github.com/w3bsuki/driplo-final/pkg/errors"
)

type stubPaymentsService struct {
	createFn  func(ctx context.Context, input payments.CreateIntentInput) (*payments.CreateIntentResult, error)
	confirmFn func(ctx context.Context, input payments.ConfirmInput) (*payments.ConfirmResult, error)
	manualFn  func(ctx context.Context, input payments.ManualInput) (*payments.ManualResult, error)
}

func (s stubPaymentsService) CreatePaymentIntent(ctx context.Context, input payments.CreateIntentInput) (*payments.CreateIntentResult, error) {
	return s.createFn(ctx, input)
}

func (s stubPaymentsService) ConfirmPayment(ctx context.Context, input payments.ConfirmInput) (*payments.ConfirmResult, error) {
	return s.confirmFn(ctx, input)
}

func (s stubPaymentsService) CreateManualPayment(ctx context.Context, input payments.ManualInput) (*payments.ManualResult, error) {
	return s.manualFn(ctx, input)
}

func (stubPaymentsService) HandleGatewayEvent(context.Context, payments.GatewayEvent) (payments.Outcome, error) {
	return payments.OutcomeUnchanged, nil
}

func (stubPaymentsService) Reconcile(context.Context, models.Transaction) (payments.Outcome, error) {
	return payments.OutcomeUnchanged, nil
}

func (stubPaymentsService) RepairListing(context.Context, models.Transaction) (bool, error) {
	return false, nil
}

const shippingJSON = `{"name":"Ana","address_line1":"1 Main St","city":"Sofia","state":"SF","postal_code":"1000"}`

func authedRequest(method, target, body string, userID uuid.UUID) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req.WithContext(middleware.WithUserID(req.Context(), userID.String()))
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder, dest any) {
	t.Helper()
	envelope := struct {
		Data any `json:"data"`
	}{Data: dest}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&envelope))
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) (string, string) {
	t.Helper()
	var envelope struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&envelope))
	return envelope.Error.Code, envelope.Error.Message
}

func TestCreatePaymentIntentReturnsCreated(t *testing.T) {
	buyer := uuid.New()
	listing := uuid.New()
	svc := stubPaymentsService{
		createFn: func(ctx context.Context, input payments.CreateIntentInput) (*payments.CreateIntentResult, error) {
			assert.Equal(t, buyer, input.BuyerID)
			assert.Equal(t, listing, input.ListingID)
			assert.Equal(t, "Sofia", input.ShippingAddress.City)
			return &payments.CreateIntentResult{
				ClientSecret: "pi_1_secret_x",
				OrderID:      "order-1",
				TotalAmount:  decimal.RequireFromString("25.99"),
			}, nil
		},
	}

	body := `{"listing_id":"` + listing.String() + `","shipping_address":` + shippingJSON + `}`
	rec := httptest.NewRecorder()
	CreatePaymentIntent(svc, nil).ServeHTTP(rec, authedRequest(http.MethodPost, "/api/v1/payment-intent", body, buyer))

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var out map[string]any
	decodeData(t, rec, &out)
	assert.Equal(t, "pi_1_secret_x", out["client_secret"])
	assert.Equal(t, "order-1", out["order_id"])
}

func TestCreatePaymentIntentValidatesBody(t *testing.T) {
	svc := stubPaymentsService{
		createFn: func(context.Context, payments.CreateIntentInput) (*payments.CreateIntentResult, error) {
			t.Fatal("service must not be called")
			return nil, nil
		},
	}

	rec := httptest.NewRecorder()
	CreatePaymentIntent(svc, nil).ServeHTTP(rec, authedRequest(http.MethodPost, "/api/v1/payment-intent", `{"shipping_address":`+shippingJSON+`}`, uuid.New()))

	require.Equal(t, http.StatusBadRequest, rec.Code)
	code, _ := decodeError(t, rec)
	assert.Equal(t, string(pkgerrors.CodeValidation), code)
}

func TestConfirmPaymentOutcomes(t *testing.T) {
	cases := []struct {
		name   string
		result payments.ConfirmResult
		status int
		check  func(t *testing.T, rec *httptest.ResponseRecorder)
	}{
		{
			name:   "completed",
			result: payments.ConfirmResult{Outcome: payments.OutcomeCompleted, OrderID: "o-1"},
			status: http.StatusOK,
			check: func(t *testing.T, rec *httptest.ResponseRecorder) {
				var out confirmPaymentResponse
				decodeData(t, rec, &out)
				assert.Equal(t, "completed", out.Status)
				assert.Equal(t, "/order-confirmation?order_id=o-1", out.RedirectURL)
			},
		},
		{
			name:   "requires action",
			result: payments.ConfirmResult{Outcome: payments.OutcomeRequiresAction, OrderID: "o-2", ClientSecret: "cs", ActionURL: "https://3ds"},
			status: http.StatusOK,
			check: func(t *testing.T, rec *httptest.ResponseRecorder) {
				var out confirmPaymentResponse
				decodeData(t, rec, &out)
				assert.True(t, out.RequiresAction)
				assert.Equal(t, "cs", out.ClientSecret)
				assert.Equal(t, "https://3ds", out.ActionURL)
			},
		},
		{
			name:   "processing",
			result: payments.ConfirmResult{Outcome: payments.OutcomeProcessing, OrderID: "o-3"},
			status: http.StatusOK,
			check: func(t *testing.T, rec *httptest.ResponseRecorder) {
				var out confirmPaymentResponse
				decodeData(t, rec, &out)
				assert.Equal(t, "processing", out.Status)
			},
		},
		{
			name:   "failed",
			result: payments.ConfirmResult{Outcome: payments.OutcomeFailed, OrderID: "o-4", FailureReason: "card_declined"},
			status: http.StatusPaymentRequired,
			check: func(t *testing.T, rec *httptest.ResponseRecorder) {
				code, msg := decodeError(t, rec)
				assert.Equal(t, string(pkgerrors.CodePaymentFailed), code)
				assert.Equal(t, "Payment failed. Please try again.", msg)
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			result := tc.result
			svc := stubPaymentsService{
				confirmFn: func(ctx context.Context, input payments.ConfirmInput) (*payments.ConfirmResult, error) {
					assert.Equal(t, "pm_card", input.PaymentMethodID)
					return &result, nil
				},
			}
			rec := httptest.NewRecorder()
			body := `{"client_secret":"pi_1_secret_x","payment_method_id":"pm_card"}`
			ConfirmPayment(svc, nil).ServeHTTP(rec, authedRequest(http.MethodPost, "/api/v1/confirm-payment", body, uuid.New()))
			require.Equal(t, tc.status, rec.Code, rec.Body.String())
			tc.check(t, rec)
		})
	}
}

func TestConfirmPaymentRequiresIntentReference(t *testing.T) {
	rec := httptest.NewRecorder()
	ConfirmPayment(stubPaymentsService{}, nil).ServeHTTP(rec, authedRequest(http.MethodPost, "/api/v1/confirm-payment", `{"payment_method_id":"pm_card"}`, uuid.New()))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestConfirmPaymentPropagatesServiceError(t *testing.T) {
	svc := stubPaymentsService{
		confirmFn: func(context.Context, payments.ConfirmInput) (*payments.ConfirmResult, error) {
			return nil, pkgerrors.New(pkgerrors.CodeForbidden, "Unauthorized")
		},
	}
	rec := httptest.NewRecorder()
	ConfirmPayment(svc, nil).ServeHTTP(rec, authedRequest(http.MethodPost, "/api/v1/confirm-payment", `{"payment_intent_id":"pi_1","payment_method_id":"pm"}`, uuid.New()))
	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestCreateManualPaymentReturnsInstructions(t *testing.T) {
	svc := stubPaymentsService{
		manualFn: func(ctx context.Context, input payments.ManualInput) (*payments.ManualResult, error) {
			return &payments.ManualResult{
				OrderID:      "order-9",
				TotalAmount:  decimal.RequireFromString("40.00"),
				Revtag:       "@seller",
				Instructions: "Send the transfer with order-9 as reference",
			}, nil
		},
	}

	listing := uuid.New()
	body := `{"listing_id":"` + listing.String() + `","shipping_address":` + shippingJSON + `}`
	rec := httptest.NewRecorder()
	CreateManualPayment(svc, nil).ServeHTTP(rec, authedRequest(http.MethodPost, "/api/v1/manual-payment", body, uuid.New()))

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var out map[string]any
	decodeData(t, rec, &out)
	assert.Equal(t, "@seller", out["revtag"])
	assert.Equal(t, "order-9", out["order_id"])
}

func TestPaymentsControllersRequireService(t *testing.T) {
	rec := httptest.NewRecorder()
	CreatePaymentIntent(nil, nil).ServeHTTP(rec, authedRequest(http.MethodPost, "/", "{}", uuid.New()))
	require.Equal(t, http.StatusInternalServerError, rec.Code)
}
