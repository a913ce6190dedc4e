package checkout

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/gabrielmoura/cineprime-backend/internal/payments"
	"github.com/gabrielmoura/cineprime-backend/internal/users"
	"github.com/gabrielmoura/cineprime-backend/pkg/db/models"
	"github.com/gabrielmoura/cineprime-backend/pkg/enums"
	pkgerrors "github.com/gabrielmoura/cineprime-backend/pkg/errors"
)

type stubIntentRepo struct {
	created  []*models.PaymentIntent
	attached map[uuid.UUID]string
}

func (s *stubIntentRepo) WithTx(tx *gorm.DB) payments.Repository { return s }

func (s *stubIntentRepo) Create(_ context.Context, intent *models.PaymentIntent) error {
	s.created = append(s.created, intent)
	return nil
}

func (s *stubIntentRepo) FindByID(_ context.Context, id uuid.UUID) (*models.PaymentIntent, error) {
	for _, intent := range s.created {
		if intent.ID == id {
			return intent, nil
		}
	}
	return nil, nil
}

func (s *stubIntentRepo) FindByProviderPaymentID(_ context.Context, _ enums.Provider, _ string) (*models.PaymentIntent, error) {
	return nil, nil
}

func (s *stubIntentRepo) FindLatestPendingByUser(_ context.Context, _ uuid.UUID, _ enums.Provider) (*models.PaymentIntent, error) {
	return nil, nil
}

func (s *stubIntentRepo) AttachProviderPaymentID(_ context.Context, id uuid.UUID, providerPaymentID string) (bool, error) {
	for _, intent := range s.created {
		if intent.ID == id && intent.Status == enums.PaymentStatusPending {
			if s.attached == nil {
				s.attached = map[uuid.UUID]string{}
			}
			s.attached[id] = providerPaymentID
			intent.ProviderPaymentID = &providerPaymentID
			return true, nil
		}
	}
	return false, nil
}

func (s *stubIntentRepo) MarkPaid(_ context.Context, _ uuid.UUID, _ *string) (bool, error) {
	return false, nil
}

func (s *stubIntentRepo) MarkTerminal(_ context.Context, _ uuid.UUID, _ enums.PaymentStatus) (bool, error) {
	return false, nil
}

type stubUserRepo struct {
	users map[uuid.UUID]*models.User
}

func (s *stubUserRepo) WithTx(tx *gorm.DB) users.Repository { return s }

func (s *stubUserRepo) FindByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	return s.users[id], nil
}

func (s *stubUserRepo) FindByEmail(_ context.Context, _ string) (*models.User, error) {
	return nil, nil
}

func (s *stubUserRepo) UpdateEntitlement(_ context.Context, _ uuid.UUID, _ users.EntitlementUpdate) error {
	return nil
}

func TestCreateIntentPricesFromCatalog(t *testing.T) {
	user := &models.User{ID: uuid.New(), Email: "viewer@example.com"}
	intents := &stubIntentRepo{}
	svc, err := NewService(intents, &stubUserRepo{users: map[uuid.UUID]*models.User{user.ID: user}})
	if err != nil {
		t.Fatalf("service setup: %v", err)
	}

	intent, err := svc.CreateIntent(context.Background(), CreateIntentInput{
		UserID:   user.ID,
		Plan:     enums.PlanQuarterly,
		Provider: enums.ProviderPushinPay,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !intent.Amount.Equal(decimal.RequireFromString("49.90")) {
		t.Fatalf("expected catalog price 49.90, got %s", intent.Amount)
	}
	if intent.Status != enums.PaymentStatusPending {
		t.Fatalf("expected pending, got %s", intent.Status)
	}
	if intent.ProviderRef != nil {
		t.Fatalf("pushinpay intents carry no composite ref")
	}
	if len(intents.created) != 1 {
		t.Fatalf("intent must be persisted")
	}
}

func TestCreateIntentMercadoPagoCompositeRef(t *testing.T) {
	user := &models.User{ID: uuid.New(), Email: "viewer@example.com"}
	svc, _ := NewService(&stubIntentRepo{}, &stubUserRepo{users: map[uuid.UUID]*models.User{user.ID: user}})

	intent, err := svc.CreateIntent(context.Background(), CreateIntentInput{
		UserID:   user.ID,
		Plan:     enums.PlanMonthly,
		Provider: enums.ProviderMercadoPago,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if intent.ProviderRef == nil {
		t.Fatalf("mercadopago intents must carry the composite ref")
	}
	parts := strings.Split(*intent.ProviderRef, "_")
	if len(parts) != 3 {
		t.Fatalf("expected userId_plan_intentId, got %q", *intent.ProviderRef)
	}
	if parts[0] != user.ID.String() || parts[1] != "monthly" || parts[2] != intent.ID.String() {
		t.Fatalf("composite ref segments wrong: %q", *intent.ProviderRef)
	}
}

func TestCreateIntentUnknownUser(t *testing.T) {
	svc, _ := NewService(&stubIntentRepo{}, &stubUserRepo{users: map[uuid.UUID]*models.User{}})

	_, err := svc.CreateIntent(context.Background(), CreateIntentInput{
		UserID:   uuid.New(),
		Plan:     enums.PlanMonthly,
		Provider: enums.ProviderStripe,
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestCreateIntentInvalidInput(t *testing.T) {
	svc, _ := NewService(&stubIntentRepo{}, &stubUserRepo{users: map[uuid.UUID]*models.User{}})

	_, err := svc.CreateIntent(context.Background(), CreateIntentInput{
		UserID:   uuid.New(),
		Plan:     enums.Plan("weekly"),
		Provider: enums.ProviderStripe,
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestAttachProviderRefLinksPendingIntent(t *testing.T) {
	user := &models.User{ID: uuid.New(), Email: "viewer@example.com"}
	intents := &stubIntentRepo{}
	svc, _ := NewService(intents, &stubUserRepo{users: map[uuid.UUID]*models.User{user.ID: user}})

	intent, err := svc.CreateIntent(context.Background(), CreateIntentInput{
		UserID:   user.ID,
		Plan:     enums.PlanMonthly,
		Provider: enums.ProviderPushinPay,
	})
	if err != nil {
		t.Fatalf("create intent: %v", err)
	}

	if err := svc.AttachProviderRef(context.Background(), intent.ID, "9c0f7b1e-2d4a-4f6b-8a1c-3e5d7f9b0a2c"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// PushinPay ids are stored uppercased, matching the webhook adapter.
	if got := intents.attached[intent.ID]; got != "9C0F7B1E-2D4A-4F6B-8A1C-3E5D7F9B0A2C" {
		t.Fatalf("expected uppercased transaction id, got %q", got)
	}
}

func TestAttachProviderRefUnknownIntent(t *testing.T) {
	svc, _ := NewService(&stubIntentRepo{}, &stubUserRepo{users: map[uuid.UUID]*models.User{}})

	err := svc.AttachProviderRef(context.Background(), uuid.New(), "ABC-123")
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestAttachProviderRefSettledIntent(t *testing.T) {
	user := &models.User{ID: uuid.New(), Email: "viewer@example.com"}
	intents := &stubIntentRepo{}
	svc, _ := NewService(intents, &stubUserRepo{users: map[uuid.UUID]*models.User{user.ID: user}})

	intent, err := svc.CreateIntent(context.Background(), CreateIntentInput{
		UserID:   user.ID,
		Plan:     enums.PlanMonthly,
		Provider: enums.ProviderPushinPay,
	})
	if err != nil {
		t.Fatalf("create intent: %v", err)
	}
	intent.Status = enums.PaymentStatusPaid

	err = svc.AttachProviderRef(context.Background(), intent.ID, "ABC-123")
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict, got %v", err)
	}
}

func TestAttachProviderRefEmptyID(t *testing.T) {
	svc, _ := NewService(&stubIntentRepo{}, &stubUserRepo{users: map[uuid.UUID]*models.User{}})

	err := svc.AttachProviderRef(context.Background(), uuid.New(), "   ")
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}
