package providers

import (
	"github.com/shopspring/decimal"

	"github.com/gabrielmoura/cineprime-backend/pkg/enums"
)

// AmountTolerance is the maximum accepted difference between the amount a
// provider reports and the amount the matched intent expects: one minor
// currency unit.
var AmountTolerance = decimal.New(1, -2)

// PaymentEvent is the canonical event every provider adapter converges to.
// The rest of the pipeline never sees provider wire formats.
type PaymentEvent struct {
	Provider enums.Provider
	// ExternalID is the provider-assigned transaction id.
	ExternalID string
	// Amount is expressed in currency units, not minor units.
	Amount decimal.Decimal
	Status enums.EventStatus
	// PayerEmail is set when the provider reports the payer's email.
	PayerEmail string
	// CorrelationRef is the provider-specific string linking the event back
	// to an internal intent. Format varies per provider and flow.
	CorrelationRef string
	// LandingFlow marks Stripe events whose metadata carried a bare email
	// instead of a payment session id; the matcher resolves those through
	// the email fallback rather than the correlation chain.
	LandingFlow bool
}

// AmountMatches reports whether the event amount is within tolerance of
// the expected amount.
func (e PaymentEvent) AmountMatches(expected decimal.Decimal) bool {
	return e.Amount.Sub(expected).Abs().LessThanOrEqual(AmountTolerance)
}

// ErrNoise marks a webhook that is understood but intentionally ignored
// (test events, provider noise). Handlers acknowledge it with 200.
type ErrNoise struct {
	Reason string
}

func (e ErrNoise) Error() string {
	return "noise event: " + e.Reason
}
