package checkout

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/gabrielmoura/cineprime-backend/internal/payments"
	"github.com/gabrielmoura/cineprime-backend/internal/users"
	"github.com/gabrielmoura/cineprime-backend/pkg/db/models"
	"github.com/gabrielmoura/cineprime-backend/pkg/enums"
	pkgerrors "github.com/gabrielmoura/cineprime-backend/pkg/errors"
)

// CreateIntentInput is the request to open a payment intent for a plan.
type CreateIntentInput struct {
	UserID   uuid.UUID      `validate:"required"`
	Plan     enums.Plan     `validate:"required"`
	Provider enums.Provider `validate:"required"`
}

// Service opens payment intents priced from the plan catalog. The intent
// id doubles as the correlation handle the webhook pipeline resolves
// later, so it is minted here rather than by the database.
type Service interface {
	CreateIntent(ctx context.Context, input CreateIntentInput) (*models.PaymentIntent, error)
	AttachProviderRef(ctx context.Context, intentID uuid.UUID, providerPaymentID string) error
}

type service struct {
	intents  payments.Repository
	users    users.Repository
	validate *validator.Validate
}

// NewService builds the checkout service.
func NewService(intentRepo payments.Repository, userRepo users.Repository) (Service, error) {
	if intentRepo == nil {
		return nil, fmt.Errorf("intent repository required")
	}
	if userRepo == nil {
		return nil, fmt.Errorf("user repository required")
	}
	return &service{
		intents:  intentRepo,
		users:    userRepo,
		validate: validator.New(),
	}, nil
}

func (s *service) CreateIntent(ctx context.Context, input CreateIntentInput) (*models.PaymentIntent, error) {
	if err := s.validate.Struct(input); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid checkout input")
	}
	if !input.Plan.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown plan")
	}
	if !input.Provider.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown provider")
	}

	user, err := s.users.FindByID(ctx, input.UserID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
	}

	intent := &models.PaymentIntent{
		ID:       uuid.New(),
		UserID:   user.ID,
		Plan:     input.Plan,
		Amount:   input.Plan.Price(),
		Status:   enums.PaymentStatusPending,
		Provider: input.Provider,
	}

	// Mercado Pago checkouts carry the composite external reference the
	// webhook pipeline parses back into an intent id. The other providers
	// assign their own transaction id at session creation.
	if input.Provider == enums.ProviderMercadoPago {
		ref := fmt.Sprintf("%s_%s_%s", user.ID, input.Plan, intent.ID)
		intent.ProviderRef = &ref
	}

	if err := s.intents.Create(ctx, intent); err != nil {
		return nil, err
	}
	return intent, nil
}

// AttachProviderRef records the transaction id the provider assigned when
// the charge session was created. PushinPay and Stripe webhooks correlate
// by that id, so an intent without it can only be matched by email.
func (s *service) AttachProviderRef(ctx context.Context, intentID uuid.UUID, providerPaymentID string) error {
	providerPaymentID = strings.TrimSpace(providerPaymentID)
	if providerPaymentID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "provider payment id required")
	}

	intent, err := s.intents.FindByID(ctx, intentID)
	if err != nil {
		return err
	}
	if intent == nil {
		return pkgerrors.New(pkgerrors.CodeNotFound, "intent not found")
	}

	// PushinPay transaction ids are UUIDs matched case-insensitively; the
	// webhook adapter uppercases them, so the stored copy must agree.
	if intent.Provider == enums.ProviderPushinPay {
		providerPaymentID = strings.ToUpper(providerPaymentID)
	}

	updated, err := s.intents.AttachProviderPaymentID(ctx, intentID, providerPaymentID)
	if err != nil {
		return err
	}
	if !updated {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "intent is no longer pending")
	}
	return nil
}
