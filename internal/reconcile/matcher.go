package reconcile

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/gabrielmoura/cineprime-backend/internal/payments"
	"github.com/gabrielmoura/cineprime-backend/internal/providers"
	"github.com/gabrielmoura/cineprime-backend/internal/users"
	"github.com/gabrielmoura/cineprime-backend/pkg/db/models"
	"github.com/gabrielmoura/cineprime-backend/pkg/enums"
	"github.com/gabrielmoura/cineprime-backend/pkg/logger"
)

// Strategy is one matching heuristic. It returns nil when it does not
// apply, leaving the chain to try the next one.
type strategy struct {
	name  string
	match func(ctx context.Context, event *providers.PaymentEvent) (*models.PaymentIntent, error)
}

// Matcher resolves a canonical payment event to at most one payment intent
// through an ordered fallback chain. No match is an expected outcome for
// noise and test webhooks, not an error.
type Matcher struct {
	intents payments.Repository
	users   users.Repository
	logg    *logger.Logger
	chain   []strategy
}

// MatcherParams wires the matcher dependencies.
type MatcherParams struct {
	IntentRepo payments.Repository
	UserRepo   users.Repository
	Logger     *logger.Logger
}

// NewMatcher builds the matcher with its strategy chain.
func NewMatcher(params MatcherParams) (*Matcher, error) {
	if params.IntentRepo == nil {
		return nil, fmt.Errorf("intent repository required")
	}
	if params.UserRepo == nil {
		return nil, fmt.Errorf("user repository required")
	}

	m := &Matcher{
		intents: params.IntentRepo,
		users:   params.UserRepo,
		logg:    params.Logger,
	}
	m.chain = []strategy{
		{name: "composite_ref", match: m.matchCompositeRef},
		{name: "bare_ref", match: m.matchBareRef},
		{name: "provider_payment_id", match: m.matchProviderPaymentID},
		{name: "payer_email", match: m.matchPayerEmail},
	}
	return m, nil
}

// Resolve walks the strategy chain; first match wins. It returns the
// matched intent and the name of the strategy that produced it, or
// (nil, "") when nothing matched.
func (m *Matcher) Resolve(ctx context.Context, event *providers.PaymentEvent) (*models.PaymentIntent, string, error) {
	for _, s := range m.chain {
		intent, err := s.match(ctx, event)
		if err != nil {
			return nil, s.name, err
		}
		if intent != nil {
			return intent, s.name, nil
		}
	}
	return nil, "", nil
}

// matchCompositeRef handles Mercado Pago's composite external reference
// of the form userId_plan_intentId: the trailing segment is the intent id.
// Malformed segments never reach the database.
func (m *Matcher) matchCompositeRef(ctx context.Context, event *providers.PaymentEvent) (*models.PaymentIntent, error) {
	parts := strings.Split(event.CorrelationRef, "_")
	if len(parts) < 3 {
		return nil, nil
	}
	id, err := uuid.Parse(parts[len(parts)-1])
	if err != nil {
		return nil, nil
	}
	return m.intents.FindByID(ctx, id)
}

// matchBareRef covers refs that are themselves a well-formed intent id
// (PushinPay transaction refs recorded at session creation, legacy links).
func (m *Matcher) matchBareRef(ctx context.Context, event *providers.PaymentEvent) (*models.PaymentIntent, error) {
	id, err := uuid.Parse(strings.TrimSpace(event.CorrelationRef))
	if err != nil {
		return nil, nil
	}
	return m.intents.FindByID(ctx, id)
}

// matchProviderPaymentID covers intents whose provider transaction id was
// recorded at creation while the correlation ref failed to parse.
func (m *Matcher) matchProviderPaymentID(ctx context.Context, event *providers.PaymentEvent) (*models.PaymentIntent, error) {
	return m.intents.FindByProviderPaymentID(ctx, event.Provider, event.ExternalID)
}

// matchPayerEmail resolves the payer by email and picks their most recent
// pending intent for the provider. When no intent is open and the event
// came from Mercado Pago, a fresh pending intent is synthesized with the
// plan inferred from the charged amount; this is the only path in the
// system that creates rather than transitions an intent.
func (m *Matcher) matchPayerEmail(ctx context.Context, event *providers.PaymentEvent) (*models.PaymentIntent, error) {
	if event.PayerEmail == "" {
		return nil, nil
	}
	if event.Provider != enums.ProviderMercadoPago && !event.LandingFlow {
		return nil, nil
	}

	user, err := m.users.FindByEmail(ctx, event.PayerEmail)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, nil
	}

	intent, err := m.intents.FindLatestPendingByUser(ctx, user.ID, event.Provider)
	if err != nil {
		return nil, err
	}
	if intent != nil {
		return intent, nil
	}

	if event.Provider != enums.ProviderMercadoPago {
		return nil, nil
	}

	plan := enums.InferPlanFromAmount(event.Amount)
	synthesized := &models.PaymentIntent{
		ID:       uuid.New(),
		UserID:   user.ID,
		Plan:     plan,
		Amount:   event.Amount,
		Status:   enums.PaymentStatusPending,
		Provider: event.Provider,
	}
	if event.ExternalID != "" {
		externalID := event.ExternalID
		synthesized.ProviderPaymentID = &externalID
	}
	if err := m.intents.Create(ctx, synthesized); err != nil {
		return nil, err
	}

	if m.logg != nil {
		lctx := m.logg.WithFields(ctx, map[string]any{
			"user_id":       user.ID.String(),
			"inferred_plan": plan.String(),
		})
		m.logg.Info(lctx, "synthesized intent from payer email")
	}
	return synthesized, nil
}
