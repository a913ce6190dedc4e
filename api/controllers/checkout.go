package controllers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/gabrielmoura/cineprime-backend/api/responses"
	"github.com/gabrielmoura/cineprime-backend/api/validators"
	checkoutsvc "github.com/gabrielmoura/cineprime-backend/internal/checkout"
	"github.com/gabrielmoura/cineprime-backend/pkg/db/models"
	"github.com/gabrielmoura/cineprime-backend/pkg/enums"
	pkgerrors "github.com/gabrielmoura/cineprime-backend/pkg/errors"
	"github.com/gabrielmoura/cineprime-backend/pkg/logger"
)

// CreateIntent opens a payment intent for a subscription plan.
func CreateIntent(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		var payload createIntentRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		plan, err := enums.ParsePlan(payload.Plan)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid plan"))
			return
		}
		provider, err := enums.ParseProvider(payload.Provider)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid provider"))
			return
		}

		intent, err := svc.CreateIntent(r.Context(), checkoutsvc.CreateIntentInput{
			UserID:   payload.UserID,
			Plan:     plan,
			Provider: provider,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, newIntentResponse(intent))
	}
}

// AttachProviderRef stores the provider-assigned transaction id on an
// open intent so the later webhook can correlate by it.
func AttachProviderRef(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		intentID, err := uuid.Parse(chi.URLParam(r, "intentID"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid intent id"))
			return
		}

		var payload attachProviderRefRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.AttachProviderRef(r.Context(), intentID, payload.ProviderPaymentID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]string{
			"intent_id":           intentID.String(),
			"provider_payment_id": payload.ProviderPaymentID,
		})
	}
}

type attachProviderRefRequest struct {
	ProviderPaymentID string `json:"provider_payment_id" validate:"required"`
}

type createIntentRequest struct {
	UserID   uuid.UUID `json:"user_id" validate:"required,uuid4"`
	Plan     string    `json:"plan" validate:"required"`
	Provider string    `json:"provider" validate:"required"`
}

type intentResponse struct {
	IntentID    uuid.UUID `json:"intent_id"`
	Plan        string    `json:"plan"`
	Amount      string    `json:"amount"`
	Status      string    `json:"status"`
	Provider    string    `json:"provider"`
	ProviderRef *string   `json:"provider_ref,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

func newIntentResponse(intent *models.PaymentIntent) intentResponse {
	return intentResponse{
		IntentID:    intent.ID,
		Plan:        intent.Plan.String(),
		Amount:      intent.Amount.StringFixed(2),
		Status:      intent.Status.String(),
		Provider:    intent.Provider.String(),
		ProviderRef: intent.ProviderRef,
		CreatedAt:   intent.CreatedAt,
	}
}
