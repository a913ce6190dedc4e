package stripe

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/webhook"

	"github.com/gabrielmoura/cineprime-backend/internal/providers"
	"github.com/gabrielmoura/cineprime-backend/pkg/config"
	"github.com/gabrielmoura/cineprime-backend/pkg/enums"
	pkgerrors "github.com/gabrielmoura/cineprime-backend/pkg/errors"
)

// Adapter normalizes Stripe checkout-session events. Signature verification
// happens before any payload field is trusted, so a forged event never
// reaches the matcher or the stores.
type Adapter struct {
	signingSecret string
}

// NewAdapter builds the adapter from Stripe configuration.
func NewAdapter(cfg config.StripeConfig) (*Adapter, error) {
	if strings.TrimSpace(cfg.Secret) == "" {
		return nil, fmt.Errorf("stripe webhook signing secret is required")
	}
	return &Adapter{signingSecret: cfg.Secret}, nil
}

// Parse verifies the event signature and converts checkout-session events
// into canonical payment events. The session metadata discriminates the
// flow: paymentSessionId links back to an intent, a bare email marks the
// landing-page flow that resolves through the email fallback.
func (a *Adapter) Parse(payload []byte, sigHeader string) (*providers.PaymentEvent, error) {
	if sigHeader == "" {
		return nil, pkgerrors.New(pkgerrors.CodeSignature, "stripe signature missing")
	}

	event, err := webhook.ConstructEvent(payload, sigHeader, a.signingSecret)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeSignature, err, "verify stripe signature")
	}

	switch event.Type {
	case stripe.EventTypeCheckoutSessionCompleted, stripe.EventTypeCheckoutSessionExpired:
	default:
		return nil, providers.ErrNoise{Reason: fmt.Sprintf("unhandled event type %q", event.Type)}
	}
	if event.Data == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "stripe event data required")
	}

	var session stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode checkout session")
	}

	out := &providers.PaymentEvent{
		Provider:   enums.ProviderStripe,
		ExternalID: session.ID,
		Amount:     decimal.New(session.AmountTotal, -2),
		Status:     normalizeStatus(event.Type, session.PaymentStatus),
	}

	if ref := session.Metadata["paymentSessionId"]; ref != "" {
		out.CorrelationRef = ref
	} else if email := payerEmail(&session); email != "" {
		out.PayerEmail = email
		out.LandingFlow = true
	} else {
		out.CorrelationRef = session.ID
	}

	return out, nil
}

func payerEmail(session *stripe.CheckoutSession) string {
	if email := session.Metadata["email"]; email != "" {
		return strings.ToLower(strings.TrimSpace(email))
	}
	if session.CustomerDetails != nil && session.CustomerDetails.Email != "" {
		return strings.ToLower(strings.TrimSpace(session.CustomerDetails.Email))
	}
	return ""
}

func normalizeStatus(eventType stripe.EventType, paymentStatus stripe.CheckoutSessionPaymentStatus) enums.EventStatus {
	// An expired session is abandonment, not a payment refusal.
	if eventType == stripe.EventTypeCheckoutSessionExpired {
		return enums.EventStatusCancelled
	}
	switch paymentStatus {
	case stripe.CheckoutSessionPaymentStatusPaid, stripe.CheckoutSessionPaymentStatusNoPaymentRequired:
		return enums.EventStatusApproved
	default:
		return enums.EventStatusPending
	}
}
