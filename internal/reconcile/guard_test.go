package reconcile

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/gabrielmoura/cineprime-backend/internal/ledger"
	"github.com/gabrielmoura/cineprime-backend/internal/providers"
	"github.com/gabrielmoura/cineprime-backend/pkg/db/models"
	"github.com/gabrielmoura/cineprime-backend/pkg/enums"
)

type stubLedgerRepo struct {
	byProviderID map[string]bool
	inWindow     bool
	created      []*models.Payment
}

func newStubLedgerRepo() *stubLedgerRepo {
	return &stubLedgerRepo{byProviderID: map[string]bool{}}
}

func (s *stubLedgerRepo) WithTx(tx *gorm.DB) ledger.Repository { return s }

func (s *stubLedgerRepo) Create(_ context.Context, payment *models.Payment) error {
	s.created = append(s.created, payment)
	return nil
}

func (s *stubLedgerRepo) ExistsByProviderPaymentID(_ context.Context, provider enums.Provider, providerPaymentID string) (bool, error) {
	return s.byProviderID[string(provider)+":"+providerPaymentID], nil
}

func (s *stubLedgerRepo) ExistsInWindow(_ context.Context, _ uuid.UUID, _ decimal.Decimal, _ enums.Plan, _ time.Time, _ time.Duration) (bool, error) {
	return s.inWindow, nil
}

func (s *stubLedgerRepo) ListByUserID(_ context.Context, _ uuid.UUID) ([]models.Payment, error) {
	return nil, nil
}

func approvedEvent(externalID, amount string) *providers.PaymentEvent {
	return &providers.PaymentEvent{
		Provider:   enums.ProviderPushinPay,
		ExternalID: externalID,
		Amount:     decimal.RequireFromString(amount),
		Status:     enums.EventStatusApproved,
	}
}

func TestGuardActivatesCleanEvent(t *testing.T) {
	guard, err := NewGuard(newStubLedgerRepo())
	if err != nil {
		t.Fatalf("guard setup: %v", err)
	}

	intent := pendingIntent(uuid.New(), enums.ProviderPushinPay)
	decision, err := guard.Check(context.Background(), intent, approvedEvent("TX-1", "19.90"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decision != DecisionActivate {
		t.Fatalf("expected activate, got %s", decision)
	}
}

func TestGuardRejectsPaidIntent(t *testing.T) {
	guard, _ := NewGuard(newStubLedgerRepo())

	intent := pendingIntent(uuid.New(), enums.ProviderPushinPay)
	intent.Status = enums.PaymentStatusPaid

	decision, err := guard.Check(context.Background(), intent, approvedEvent("TX-1", "19.90"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decision != DecisionDuplicateIntent {
		t.Fatalf("expected duplicate_intent, got %s", decision)
	}
}

func TestGuardRejectsKnownProviderPaymentID(t *testing.T) {
	ledgerRepo := newStubLedgerRepo()
	ledgerRepo.byProviderID["pushinpay:TX-1"] = true
	guard, _ := NewGuard(ledgerRepo)

	intent := pendingIntent(uuid.New(), enums.ProviderPushinPay)
	decision, err := guard.Check(context.Background(), intent, approvedEvent("TX-1", "19.90"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decision != DecisionDuplicateLedger {
		t.Fatalf("expected duplicate_ledger, got %s", decision)
	}
}

func TestGuardRejectsWindowDuplicate(t *testing.T) {
	ledgerRepo := newStubLedgerRepo()
	ledgerRepo.inWindow = true
	guard, _ := NewGuard(ledgerRepo)

	intent := pendingIntent(uuid.New(), enums.ProviderPushinPay)
	// No external id, so only the heuristic window applies.
	event := approvedEvent("", "19.90")

	decision, err := guard.Check(context.Background(), intent, event)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decision != DecisionDuplicateWindow {
		t.Fatalf("expected duplicate_window, got %s", decision)
	}
}

func TestGuardDuplicateWinsOverAmountMismatch(t *testing.T) {
	ledgerRepo := newStubLedgerRepo()
	ledgerRepo.byProviderID["pushinpay:TX-1"] = true
	guard, _ := NewGuard(ledgerRepo)

	intent := pendingIntent(uuid.New(), enums.ProviderPushinPay)
	decision, err := guard.Check(context.Background(), intent, approvedEvent("TX-1", "999.00"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decision != DecisionDuplicateLedger {
		t.Fatalf("redelivery of an applied payment must not surface as mismatch, got %s", decision)
	}
}

func TestGuardAmountMismatch(t *testing.T) {
	guard, _ := NewGuard(newStubLedgerRepo())

	intent := pendingIntent(uuid.New(), enums.ProviderPushinPay)
	decision, err := guard.Check(context.Background(), intent, approvedEvent("TX-2", "18.00"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decision != DecisionAmountMismatch {
		t.Fatalf("expected amount_mismatch, got %s", decision)
	}
}

func TestGuardAcceptsAmountWithinTolerance(t *testing.T) {
	guard, _ := NewGuard(newStubLedgerRepo())

	intent := pendingIntent(uuid.New(), enums.ProviderPushinPay)
	decision, err := guard.Check(context.Background(), intent, approvedEvent("TX-3", "19.89"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decision != DecisionActivate {
		t.Fatalf("one cent difference is within tolerance, got %s", decision)
	}
}
