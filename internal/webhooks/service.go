package webhooks

import (
	"context"
	"errors"
	"time"

	"github.com/gabrielmoura/cineprime-backend/internal/entitlement"
	"github.com/gabrielmoura/cineprime-backend/internal/payments"
	"github.com/gabrielmoura/cineprime-backend/internal/providers"
	"github.com/gabrielmoura/cineprime-backend/internal/providers/mercadopago"
	"github.com/gabrielmoura/cineprime-backend/internal/providers/pushinpay"
	stripeadapter "github.com/gabrielmoura/cineprime-backend/internal/providers/stripe"
	"github.com/gabrielmoura/cineprime-backend/internal/reconcile"
	"github.com/gabrielmoura/cineprime-backend/pkg/enums"
	pkgerrors "github.com/gabrielmoura/cineprime-backend/pkg/errors"
	"github.com/gabrielmoura/cineprime-backend/pkg/logger"
	"github.com/gabrielmoura/cineprime-backend/pkg/metrics"
)

// Outcome is the pipeline's verdict for a delivery. Everything except a
// processing error acknowledges with 200 so providers stop redelivering.
type Outcome string

const (
	OutcomeActivated       Outcome = "activated"
	OutcomeDuplicate       Outcome = "duplicate"
	OutcomeAmountMismatch  Outcome = "amount_mismatch"
	OutcomeUnmatched       Outcome = "unmatched"
	OutcomeNoise           Outcome = "noise"
	OutcomeIgnoredStatus   Outcome = "ignored_status"
	OutcomeMarkedFailed    Outcome = "marked_failed"
	OutcomeMarkedCancelled Outcome = "marked_cancelled"
)

// ServiceParams wires the webhook pipeline.
type ServiceParams struct {
	MercadoPago *mercadopago.Adapter
	PushinPay   *pushinpay.Adapter
	Stripe      *stripeadapter.Adapter
	Matcher     *reconcile.Matcher
	Guard       *reconcile.Guard
	Activator   *entitlement.Activator
	IntentRepo  payments.Repository
	FastGuard   *FastGuard
	Metrics     *metrics.WebhookMetrics
	Logger      *logger.Logger
}

// Service runs the shared reconciliation pipeline behind the three
// provider endpoints: parse to the canonical event, match an intent,
// dedup, then activate or mark terminal.
type Service struct {
	mercadopago *mercadopago.Adapter
	pushinpay   *pushinpay.Adapter
	stripe      *stripeadapter.Adapter
	matcher     *reconcile.Matcher
	guard       *reconcile.Guard
	activator   *entitlement.Activator
	intents     payments.Repository
	fastGuard   *FastGuard
	metrics     *metrics.WebhookMetrics
	logg        *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	if params.MercadoPago == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "mercadopago adapter required")
	}
	if params.PushinPay == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "pushinpay adapter required")
	}
	if params.Stripe == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "stripe adapter required")
	}
	if params.Matcher == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "matcher required")
	}
	if params.Guard == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "guard required")
	}
	if params.Activator == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "activator required")
	}
	if params.IntentRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "intent repo required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger required")
	}
	return &Service{
		mercadopago: params.MercadoPago,
		pushinpay:   params.PushinPay,
		stripe:      params.Stripe,
		matcher:     params.Matcher,
		guard:       params.Guard,
		activator:   params.Activator,
		intents:     params.IntentRepo,
		fastGuard:   params.FastGuard,
		metrics:     params.Metrics,
		logg:        params.Logger,
	}, nil
}

// HandleMercadoPago processes a Mercado Pago notification body. The
// adapter does the authenticated payment lookup, so a dependency failure
// here must bubble up as a retryable error.
func (s *Service) HandleMercadoPago(ctx context.Context, body []byte) (Outcome, error) {
	return s.handle(ctx, enums.ProviderMercadoPago, func() (*providers.PaymentEvent, error) {
		return s.mercadopago.Parse(ctx, body)
	})
}

// HandlePushinPay processes a PushinPay delivery, which may arrive as
// JSON or as a form-urlencoded body.
func (s *Service) HandlePushinPay(ctx context.Context, contentType string, body []byte) (Outcome, error) {
	return s.handle(ctx, enums.ProviderPushinPay, func() (*providers.PaymentEvent, error) {
		return s.pushinpay.Parse(contentType, body)
	})
}

// HandleStripe processes a Stripe delivery. Signature verification
// happens inside the adapter before any field is trusted.
func (s *Service) HandleStripe(ctx context.Context, payload []byte, sigHeader string) (Outcome, error) {
	return s.handle(ctx, enums.ProviderStripe, func() (*providers.PaymentEvent, error) {
		return s.stripe.Parse(payload, sigHeader)
	})
}

func (s *Service) handle(ctx context.Context, provider enums.Provider, parse func() (*providers.PaymentEvent, error)) (Outcome, error) {
	started := time.Now()
	ctx = s.logg.WithProvider(ctx, provider.String())

	outcome, err := s.process(ctx, parse)
	if err == nil {
		s.observe(provider, outcome, started)
	}
	return outcome, err
}

func (s *Service) process(ctx context.Context, parse func() (*providers.PaymentEvent, error)) (Outcome, error) {
	event, err := parse()
	if err != nil {
		var noise providers.ErrNoise
		if errors.As(err, &noise) {
			s.logg.Info(s.logg.WithField(ctx, "reason", noise.Reason), "ignoring noise event")
			return OutcomeNoise, nil
		}
		return "", err
	}

	if event.ExternalID != "" {
		ctx = s.logg.WithEventID(ctx, event.ExternalID)
	}

	claimed, release, err := s.claim(ctx, event)
	if err != nil {
		return "", err
	}
	if claimed {
		s.logg.Info(ctx, "duplicate delivery short-circuited")
		return OutcomeDuplicate, nil
	}

	outcome, err := s.reconcile(ctx, event)
	if err != nil && release != nil {
		// Give the claim back so the provider's redelivery gets a clean
		// retry instead of a dedup hit.
		release()
	}
	return outcome, err
}

func (s *Service) reconcile(ctx context.Context, event *providers.PaymentEvent) (Outcome, error) {
	intent, strategy, err := s.matcher.Resolve(ctx, event)
	if err != nil {
		return "", err
	}
	if intent == nil {
		s.logg.Warn(ctx, "no intent matched, dropping event")
		return OutcomeUnmatched, nil
	}

	ctx = s.logg.WithFields(ctx, map[string]any{
		"intent_id":      intent.ID.String(),
		"match_strategy": strategy,
	})

	switch event.Status {
	case enums.EventStatusPending:
		s.logg.Info(ctx, "payment still pending, waiting for final status")
		return OutcomeIgnoredStatus, nil
	case enums.EventStatusRejected, enums.EventStatusCancelled:
		terminal := enums.PaymentStatusFailed
		outcome := OutcomeMarkedFailed
		if event.Status == enums.EventStatusCancelled {
			terminal = enums.PaymentStatusCancelled
			outcome = OutcomeMarkedCancelled
		}
		updated, err := s.intents.MarkTerminal(ctx, intent.ID, terminal)
		if err != nil {
			return "", err
		}
		if !updated {
			return OutcomeIgnoredStatus, nil
		}
		s.logg.Info(s.logg.WithField(ctx, "terminal_status", terminal.String()), "intent closed")
		return outcome, nil
	}

	decision, err := s.guard.Check(ctx, intent, event)
	if err != nil {
		return "", err
	}
	switch decision {
	case reconcile.DecisionActivate:
	case reconcile.DecisionAmountMismatch:
		s.logg.Warn(s.logg.WithFields(ctx, map[string]any{
			"expected_amount": intent.Amount.String(),
			"received_amount": event.Amount.String(),
		}), "amount mismatch, dropping event")
		return OutcomeAmountMismatch, nil
	default:
		s.logg.Info(s.logg.WithField(ctx, "decision", string(decision)), "duplicate payment, dropping event")
		return OutcomeDuplicate, nil
	}

	result, err := s.activator.Activate(ctx, intent, event)
	if err != nil {
		return "", err
	}
	if !result.Activated {
		s.logg.Info(ctx, "activation lost the race, already applied")
		return OutcomeDuplicate, nil
	}
	s.logg.Info(s.logg.WithField(ctx, "expire_date", result.ExpireDate), "entitlement activated")
	return OutcomeActivated, nil
}

// claim takes the redis fast-path dedup mark. The returned release func
// undoes the claim after a processing failure. The fast path is optional
// and never blocks the pipeline on redis trouble.
func (s *Service) claim(ctx context.Context, event *providers.PaymentEvent) (bool, func(), error) {
	if s.fastGuard == nil || event.ExternalID == "" {
		return false, nil, nil
	}
	// Providers reuse one transaction id across the whole lifecycle
	// (created then paid), so the claim must be scoped per status or the
	// pending delivery would swallow the approval that follows it.
	eventID := string(event.Provider) + ":" + event.ExternalID + ":" + string(event.Status)
	duplicate, err := s.fastGuard.CheckAndMark(ctx, eventID)
	if err != nil {
		s.logg.Warn(ctx, "idempotency fast path unavailable, falling back to ledger checks")
		return false, nil, nil
	}
	if duplicate {
		return true, nil, nil
	}
	release := func() {
		if err := s.fastGuard.Release(context.WithoutCancel(ctx), eventID); err != nil {
			s.logg.Warn(ctx, "failed to release idempotency claim")
		}
	}
	return false, release, nil
}

func (s *Service) observe(provider enums.Provider, outcome Outcome, started time.Time) {
	if s.metrics == nil {
		return
	}
	s.metrics.IncOutcome(provider.String(), string(outcome))
	s.metrics.ObserveDuration(provider.String(), time.Since(started))
}
