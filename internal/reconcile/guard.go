package reconcile

import (
	"context"
	"fmt"
	"time"

	"github.com/gabrielmoura/cineprime-backend/internal/ledger"
	"github.com/gabrielmoura/cineprime-backend/internal/providers"
	"github.com/gabrielmoura/cineprime-backend/pkg/db/models"
	"github.com/gabrielmoura/cineprime-backend/pkg/enums"
)

// DedupWindow bounds the heuristic duplicate search for ledger rows that
// carry no provider payment id.
const DedupWindow = 24 * time.Hour

// Decision is the guard's verdict for an approved event.
type Decision string

const (
	DecisionActivate        Decision = "activate"
	DecisionDuplicateIntent Decision = "duplicate_intent"
	DecisionDuplicateLedger Decision = "duplicate_ledger"
	DecisionDuplicateWindow Decision = "duplicate_window"
	DecisionAmountMismatch  Decision = "amount_mismatch"
)

// Guard decides whether an approved event may activate an intent or must
// be dropped as a duplicate or mismatch. All checks are advisory; the
// conditional status transition inside the activation transaction remains
// the authority under concurrent delivery.
type Guard struct {
	ledger ledger.Repository
}

// NewGuard builds the guard over the durable ledger.
func NewGuard(ledgerRepo ledger.Repository) (*Guard, error) {
	if ledgerRepo == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	return &Guard{ledger: ledgerRepo}, nil
}

// Check runs the duplicate and amount checks in order of cost. Duplicate
// verdicts come before the amount check so redeliveries of an already
// applied payment never surface as mismatches.
func (g *Guard) Check(ctx context.Context, intent *models.PaymentIntent, event *providers.PaymentEvent) (Decision, error) {
	if intent.Status == enums.PaymentStatusPaid {
		return DecisionDuplicateIntent, nil
	}

	if event.ExternalID != "" {
		exists, err := g.ledger.ExistsByProviderPaymentID(ctx, event.Provider, event.ExternalID)
		if err != nil {
			return "", err
		}
		if exists {
			return DecisionDuplicateLedger, nil
		}
	}

	exists, err := g.ledger.ExistsInWindow(ctx, intent.UserID, event.Amount, intent.Plan, time.Now().UTC(), DedupWindow)
	if err != nil {
		return "", err
	}
	if exists {
		return DecisionDuplicateWindow, nil
	}

	if !event.AmountMatches(intent.Amount) {
		return DecisionAmountMismatch, nil
	}

	return DecisionActivate, nil
}
