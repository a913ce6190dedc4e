package entitlement

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/gabrielmoura/cineprime-backend/internal/ledger"
	"github.com/gabrielmoura/cineprime-backend/internal/payments"
	"github.com/gabrielmoura/cineprime-backend/internal/providers"
	"github.com/gabrielmoura/cineprime-backend/internal/users"
	"github.com/gabrielmoura/cineprime-backend/pkg/db"
	"github.com/gabrielmoura/cineprime-backend/pkg/db/models"
	"github.com/gabrielmoura/cineprime-backend/pkg/enums"
	apperrors "github.com/gabrielmoura/cineprime-backend/pkg/errors"
	"github.com/gabrielmoura/cineprime-backend/pkg/logger"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Result reports what the activation transaction did.
type Result struct {
	Activated  bool
	ExpireDate time.Time
}

// Activator applies an approved payment: it flips the intent to paid,
// appends the ledger row, and grants the user's premium window, all in
// one transaction so redeliveries and crashes never leave a half-applied
// payment behind.
type Activator struct {
	runner  txRunner
	intents payments.Repository
	ledger  ledger.Repository
	users   users.Repository
	logg    *logger.Logger
}

// ActivatorParams wires the activator dependencies.
type ActivatorParams struct {
	TxRunner   txRunner
	IntentRepo payments.Repository
	LedgerRepo ledger.Repository
	UserRepo   users.Repository
	Logger     *logger.Logger
}

// NewActivator validates the wiring.
func NewActivator(params ActivatorParams) (*Activator, error) {
	if params.TxRunner == nil {
		return nil, apperrors.New(apperrors.CodeInternal, "tx runner required")
	}
	if params.IntentRepo == nil {
		return nil, apperrors.New(apperrors.CodeInternal, "intent repository required")
	}
	if params.LedgerRepo == nil {
		return nil, apperrors.New(apperrors.CodeInternal, "ledger repository required")
	}
	if params.UserRepo == nil {
		return nil, apperrors.New(apperrors.CodeInternal, "user repository required")
	}
	return &Activator{
		runner:  params.TxRunner,
		intents: params.IntentRepo,
		ledger:  params.LedgerRepo,
		users:   params.UserRepo,
		logg:    params.Logger,
	}, nil
}

// Activate applies the approved event to the matched intent. The
// conditional update on the intent row is the concurrency authority:
// whichever delivery wins the race applies the payment, every other one
// observes zero affected rows and returns Activated=false without error.
func (a *Activator) Activate(ctx context.Context, intent *models.PaymentIntent, event *providers.PaymentEvent) (*Result, error) {
	paymentDate := time.Now().UTC()

	plan := intent.Plan
	if !plan.IsValid() {
		if a.logg != nil {
			lctx := a.logg.WithUserID(ctx, intent.UserID.String())
			a.logg.Warn(lctx, "intent carries unknown plan, defaulting to monthly")
		}
		plan = enums.PlanMonthly
	}
	expireDate := paymentDate.Add(plan.Duration())

	result := &Result{ExpireDate: expireDate}

	err := a.runner.WithTx(ctx, func(tx *gorm.DB) error {
		intentRepo := a.intents.WithTx(tx)
		ledgerRepo := a.ledger.WithTx(tx)
		userRepo := a.users.WithTx(tx)

		var providerPaymentID *string
		if event.ExternalID != "" {
			id := event.ExternalID
			providerPaymentID = &id
		}

		updated, err := intentRepo.MarkPaid(ctx, intent.ID, providerPaymentID)
		if err != nil {
			return err
		}
		if !updated {
			// A concurrent delivery already applied this payment.
			return nil
		}

		entry := &models.Payment{
			ID:                uuid.New(),
			UserID:            intent.UserID,
			Plan:              plan,
			Amount:            event.Amount,
			Provider:          event.Provider,
			ProviderPaymentID: providerPaymentID,
			Status:            enums.PaymentStatusPaid,
			PaidAt:            paymentDate,
		}
		if event.PayerEmail != "" {
			email := event.PayerEmail
			entry.PayerEmail = &email
		}
		if err := ledgerRepo.Create(ctx, entry); err != nil {
			if db.IsUniqueViolation(err, "ux_payments_provider_payment_id") {
				// Ledger already holds this provider payment; the
				// rollback restores the intent and we drop the event.
				return apperrors.New(apperrors.CodeConflict, "payment already recorded")
			}
			return err
		}

		if err := userRepo.UpdateEntitlement(ctx, intent.UserID, users.EntitlementUpdate{
			Premium:       true,
			PaymentStatus: enums.PaymentStatusPaid,
			PaymentDate:   paymentDate,
			ExpireDate:    expireDate,
		}); err != nil {
			return err
		}

		result.Activated = true
		return nil
	})
	if err != nil {
		if typed := apperrors.As(err); typed != nil && typed.Code() == apperrors.CodeConflict {
			return &Result{Activated: false, ExpireDate: expireDate}, nil
		}
		return nil, err
	}
	return result, nil
}
