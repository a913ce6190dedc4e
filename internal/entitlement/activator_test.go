package entitlement

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/gabrielmoura/cineprime-backend/internal/ledger"
	"github.com/gabrielmoura/cineprime-backend/internal/payments"
	"github.com/gabrielmoura/cineprime-backend/internal/providers"
	"github.com/gabrielmoura/cineprime-backend/internal/users"
	"github.com/gabrielmoura/cineprime-backend/pkg/db/models"
	"github.com/gabrielmoura/cineprime-backend/pkg/enums"
)

type fakeTxRunner struct {
	rolledBack bool
}

func (f *fakeTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	if err := fn(nil); err != nil {
		f.rolledBack = true
		return err
	}
	return nil
}

type fakeIntentRepo struct {
	intents map[uuid.UUID]*models.PaymentIntent
}

func newFakeIntentRepo(seed ...*models.PaymentIntent) *fakeIntentRepo {
	repo := &fakeIntentRepo{intents: map[uuid.UUID]*models.PaymentIntent{}}
	for _, intent := range seed {
		repo.intents[intent.ID] = intent
	}
	return repo
}

func (f *fakeIntentRepo) WithTx(tx *gorm.DB) payments.Repository { return f }

func (f *fakeIntentRepo) Create(_ context.Context, intent *models.PaymentIntent) error {
	f.intents[intent.ID] = intent
	return nil
}

func (f *fakeIntentRepo) FindByID(_ context.Context, id uuid.UUID) (*models.PaymentIntent, error) {
	return f.intents[id], nil
}

func (f *fakeIntentRepo) FindByProviderPaymentID(_ context.Context, _ enums.Provider, _ string) (*models.PaymentIntent, error) {
	return nil, nil
}

func (f *fakeIntentRepo) FindLatestPendingByUser(_ context.Context, _ uuid.UUID, _ enums.Provider) (*models.PaymentIntent, error) {
	return nil, nil
}

func (f *fakeIntentRepo) AttachProviderPaymentID(_ context.Context, id uuid.UUID, providerPaymentID string) (bool, error) {
	intent := f.intents[id]
	if intent == nil || intent.Status != enums.PaymentStatusPending {
		return false, nil
	}
	intent.ProviderPaymentID = &providerPaymentID
	return true, nil
}

func (f *fakeIntentRepo) MarkPaid(_ context.Context, id uuid.UUID, providerPaymentID *string) (bool, error) {
	intent := f.intents[id]
	if intent == nil || intent.Status == enums.PaymentStatusPaid {
		return false, nil
	}
	intent.Status = enums.PaymentStatusPaid
	if providerPaymentID != nil {
		intent.ProviderPaymentID = providerPaymentID
	}
	return true, nil
}

func (f *fakeIntentRepo) MarkTerminal(_ context.Context, id uuid.UUID, status enums.PaymentStatus) (bool, error) {
	intent := f.intents[id]
	if intent == nil || intent.Status != enums.PaymentStatusPending {
		return false, nil
	}
	intent.Status = status
	return true, nil
}

type fakeLedgerRepo struct {
	created   []*models.Payment
	createErr error
}

func (f *fakeLedgerRepo) WithTx(tx *gorm.DB) ledger.Repository { return f }

func (f *fakeLedgerRepo) Create(_ context.Context, payment *models.Payment) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.created = append(f.created, payment)
	return nil
}

func (f *fakeLedgerRepo) ExistsByProviderPaymentID(_ context.Context, _ enums.Provider, _ string) (bool, error) {
	return false, nil
}

func (f *fakeLedgerRepo) ExistsInWindow(_ context.Context, _ uuid.UUID, _ decimal.Decimal, _ enums.Plan, _ time.Time, _ time.Duration) (bool, error) {
	return false, nil
}

func (f *fakeLedgerRepo) ListByUserID(_ context.Context, _ uuid.UUID) ([]models.Payment, error) {
	return nil, nil
}

type fakeUserRepo struct {
	updates map[uuid.UUID]users.EntitlementUpdate
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{updates: map[uuid.UUID]users.EntitlementUpdate{}}
}

func (f *fakeUserRepo) WithTx(tx *gorm.DB) users.Repository { return f }

func (f *fakeUserRepo) FindByID(_ context.Context, _ uuid.UUID) (*models.User, error) {
	return nil, nil
}

func (f *fakeUserRepo) FindByEmail(_ context.Context, _ string) (*models.User, error) {
	return nil, nil
}

func (f *fakeUserRepo) UpdateEntitlement(_ context.Context, userID uuid.UUID, update users.EntitlementUpdate) error {
	f.updates[userID] = update
	return nil
}

func newTestActivator(t *testing.T, intents *fakeIntentRepo, ledgerRepo *fakeLedgerRepo, userRepo *fakeUserRepo) *Activator {
	t.Helper()
	activator, err := NewActivator(ActivatorParams{
		TxRunner:   &fakeTxRunner{},
		IntentRepo: intents,
		LedgerRepo: ledgerRepo,
		UserRepo:   userRepo,
	})
	if err != nil {
		t.Fatalf("activator setup: %v", err)
	}
	return activator
}

func seedIntent(plan enums.Plan, amount string) *models.PaymentIntent {
	return &models.PaymentIntent{
		ID:       uuid.New(),
		UserID:   uuid.New(),
		Plan:     plan,
		Amount:   decimal.RequireFromString(amount),
		Status:   enums.PaymentStatusPending,
		Provider: enums.ProviderPushinPay,
	}
}

func approvedEvent(externalID, amount string) *providers.PaymentEvent {
	return &providers.PaymentEvent{
		Provider:   enums.ProviderPushinPay,
		ExternalID: externalID,
		Amount:     decimal.RequireFromString(amount),
		Status:     enums.EventStatusApproved,
		PayerEmail: "viewer@example.com",
	}
}

func TestActivateGrantsEntitlement(t *testing.T) {
	intent := seedIntent(enums.PlanMonthly, "19.90")
	intents := newFakeIntentRepo(intent)
	ledgerRepo := &fakeLedgerRepo{}
	userRepo := newFakeUserRepo()
	activator := newTestActivator(t, intents, ledgerRepo, userRepo)

	result, err := activator.Activate(context.Background(), intent, approvedEvent("TX-1", "19.90"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Activated {
		t.Fatalf("expected activation")
	}

	if intent.Status != enums.PaymentStatusPaid {
		t.Fatalf("intent must be paid, got %s", intent.Status)
	}
	if intent.ProviderPaymentID == nil || *intent.ProviderPaymentID != "TX-1" {
		t.Fatalf("provider payment id must be recorded on the intent")
	}

	if len(ledgerRepo.created) != 1 {
		t.Fatalf("expected one ledger entry, got %d", len(ledgerRepo.created))
	}
	entry := ledgerRepo.created[0]
	if entry.UserID != intent.UserID || entry.Plan != enums.PlanMonthly {
		t.Fatalf("ledger entry does not reflect the intent")
	}
	if entry.PayerEmail == nil || *entry.PayerEmail != "viewer@example.com" {
		t.Fatalf("payer email must be recorded on the ledger entry")
	}

	update, ok := userRepo.updates[intent.UserID]
	if !ok {
		t.Fatalf("user entitlement must be updated")
	}
	if !update.Premium || update.PaymentStatus != enums.PaymentStatusPaid {
		t.Fatalf("unexpected entitlement update %+v", update)
	}

	wantExpiry := update.PaymentDate.Add(30 * 24 * time.Hour)
	if !update.ExpireDate.Equal(wantExpiry) {
		t.Fatalf("expected 30 day window, got %s", update.ExpireDate.Sub(update.PaymentDate))
	}
	if !result.ExpireDate.Equal(update.ExpireDate) {
		t.Fatalf("result expiry must match the stored expiry")
	}
}

func TestActivatePlanDurations(t *testing.T) {
	cases := map[enums.Plan]time.Duration{
		enums.PlanMonthly:    30 * 24 * time.Hour,
		enums.PlanQuarterly:  90 * 24 * time.Hour,
		enums.PlanSemiannual: 180 * 24 * time.Hour,
		enums.PlanYearly:     365 * 24 * time.Hour,
		enums.PlanLifetime:   36500 * 24 * time.Hour,
	}
	for plan, want := range cases {
		intent := seedIntent(plan, "19.90")
		intents := newFakeIntentRepo(intent)
		userRepo := newFakeUserRepo()
		activator := newTestActivator(t, intents, &fakeLedgerRepo{}, userRepo)

		result, err := activator.Activate(context.Background(), intent, approvedEvent("TX-"+plan.String(), "19.90"))
		if err != nil {
			t.Fatalf("plan %s: unexpected error: %v", plan, err)
		}
		update := userRepo.updates[intent.UserID]
		if got := result.ExpireDate.Sub(update.PaymentDate); got != want {
			t.Fatalf("plan %s: expected %s window, got %s", plan, want, got)
		}
	}
}

func TestActivateSecondDeliveryIsNoop(t *testing.T) {
	intent := seedIntent(enums.PlanMonthly, "19.90")
	intents := newFakeIntentRepo(intent)
	ledgerRepo := &fakeLedgerRepo{}
	userRepo := newFakeUserRepo()
	activator := newTestActivator(t, intents, ledgerRepo, userRepo)

	event := approvedEvent("TX-1", "19.90")
	first, err := activator.Activate(context.Background(), intent, event)
	if err != nil || !first.Activated {
		t.Fatalf("first delivery must activate: %v", err)
	}

	second, err := activator.Activate(context.Background(), intent, event)
	if err != nil {
		t.Fatalf("unexpected error on redelivery: %v", err)
	}
	if second.Activated {
		t.Fatalf("redelivery must lose the conditional update race")
	}
	if len(ledgerRepo.created) != 1 {
		t.Fatalf("redelivery must not append a second ledger entry, got %d", len(ledgerRepo.created))
	}
	if len(userRepo.updates) != 1 {
		t.Fatalf("redelivery must not touch the user again")
	}
}

func TestActivateUniqueViolationIsTreatedAsDuplicate(t *testing.T) {
	intent := seedIntent(enums.PlanMonthly, "19.90")
	intents := newFakeIntentRepo(intent)
	ledgerRepo := &fakeLedgerRepo{createErr: errors.New(`duplicate key value violates unique constraint "ux_payments_provider_payment_id"`)}
	userRepo := newFakeUserRepo()
	activator := newTestActivator(t, intents, ledgerRepo, userRepo)

	result, err := activator.Activate(context.Background(), intent, approvedEvent("TX-1", "19.90"))
	if err != nil {
		t.Fatalf("duplicate ledger insert must not surface as error: %v", err)
	}
	if result.Activated {
		t.Fatalf("duplicate ledger insert must not report activation")
	}
	if len(userRepo.updates) != 0 {
		t.Fatalf("user must not be updated when the ledger insert conflicts")
	}
}

func TestActivateUnknownPlanDefaultsToMonthly(t *testing.T) {
	intent := seedIntent(enums.Plan("legacy"), "19.90")
	intents := newFakeIntentRepo(intent)
	userRepo := newFakeUserRepo()
	activator := newTestActivator(t, intents, &fakeLedgerRepo{}, userRepo)

	result, err := activator.Activate(context.Background(), intent, approvedEvent("TX-1", "19.90"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	update := userRepo.updates[intent.UserID]
	if got := result.ExpireDate.Sub(update.PaymentDate); got != 30*24*time.Hour {
		t.Fatalf("unknown plan must fall back to the monthly window, got %s", got)
	}
}
