package controllers

import (
	"net/http"
	"net/url"

	"github.com/google/uuid"

	"github.com/w3bsuki/driplo-final/api/middleware"
	"github.com/w3bsuki/driplo-final/api/responses"
	"github.com/w3bsuki/driplo-final/api/validators"
	"github.com/w3bsuki/driplo-final/internal/payments"
	pkgerrors "github.com/w3bsuki/driplo-final/pkg/errors"
	"github.com/w3bsuki/driplo-final/pkg/logger"
	stripegw "github.com/w3bsuki/driplo-final/pkg/stripe"
	"github.com/w3bsuki/driplo-final/pkg/types"
)

const orderConfirmationPath = "/order-confirmation"

type createPaymentIntentRequest struct {
	ListingID       uuid.UUID             `json:"listing_id" validate:"required"`
	BuyerEmail      string                `json:"buyer_email,omitempty" validate:"omitempty,email"`
	ShippingAddress types.ShippingAddress `json:"shipping_address" validate:"required"`
}

// CreatePaymentIntent opens a card checkout for one listing.
func CreatePaymentIntent(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payments service unavailable"))
			return
		}

		var payload createPaymentIntentRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.CreatePaymentIntent(r.Context(), payments.CreateIntentInput{
			ListingID:       payload.ListingID,
			BuyerID:         middleware.UserUUIDFromContext(r.Context()),
			BuyerEmail:      payload.BuyerEmail,
			ShippingAddress: payload.ShippingAddress,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}

type confirmPaymentRequest struct {
	ClientSecret    string                 `json:"client_secret,omitempty" validate:"required_without=PaymentIntentID"`
	PaymentIntentID string                 `json:"payment_intent_id,omitempty"`
	PaymentMethodID string                 `json:"payment_method_id" validate:"required"`
	ShippingAddress *types.ShippingAddress `json:"shipping_address,omitempty"`
}

type confirmPaymentResponse struct {
	Status         string `json:"status,omitempty"`
	OrderID        string `json:"order_id"`
	RedirectURL    string `json:"redirect_url,omitempty"`
	RequiresAction bool   `json:"requires_action,omitempty"`
	ClientSecret   string `json:"client_secret,omitempty"`
	ActionURL      string `json:"action_url,omitempty"`
}

// ConfirmPayment confirms a card payment and reports the next step for the client.
func ConfirmPayment(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payments service unavailable"))
			return
		}

		var payload confirmPaymentRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.ConfirmPayment(r.Context(), payments.ConfirmInput{
			BuyerID:         middleware.UserUUIDFromContext(r.Context()),
			ClientSecret:    payload.ClientSecret,
			PaymentIntentID: payload.PaymentIntentID,
			PaymentMethodID: payload.PaymentMethodID,
			ShippingAddress: payload.ShippingAddress,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		switch result.Outcome {
		case payments.OutcomeCompleted:
			responses.WriteSuccess(w, confirmPaymentResponse{
				Status:      string(payments.OutcomeCompleted),
				OrderID:     result.OrderID,
				RedirectURL: orderConfirmationPath + "?order_id=" + url.QueryEscape(result.OrderID),
			})
		case payments.OutcomeRequiresAction:
			responses.WriteSuccess(w, confirmPaymentResponse{
				OrderID:        result.OrderID,
				RequiresAction: true,
				ClientSecret:   result.ClientSecret,
				ActionURL:      result.ActionURL,
			})
		case payments.OutcomeProcessing:
			responses.WriteSuccess(w, confirmPaymentResponse{
				Status:  string(payments.OutcomeProcessing),
				OrderID: result.OrderID,
			})
		default:
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodePaymentFailed, stripegw.PaymentFailedMessage).
				WithDetails(map[string]any{"order_id": result.OrderID}))
		}
	}
}

type manualPaymentRequest struct {
	ListingID       uuid.UUID             `json:"listing_id" validate:"required"`
	ShippingAddress types.ShippingAddress `json:"shipping_address" validate:"required"`
}

// CreateManualPayment records a pending bank-transfer purchase and returns transfer instructions.
func CreateManualPayment(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payments service unavailable"))
			return
		}

		var payload manualPaymentRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.CreateManualPayment(r.Context(), payments.ManualInput{
			ListingID:       payload.ListingID,
			BuyerID:         middleware.UserUUIDFromContext(r.Context()),
			ShippingAddress: payload.ShippingAddress,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}
