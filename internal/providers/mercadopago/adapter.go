package mercadopago

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/gabrielmoura/cineprime-backend/internal/providers"
	"github.com/gabrielmoura/cineprime-backend/pkg/enums"
	pkgerrors "github.com/gabrielmoura/cineprime-backend/pkg/errors"
)

// webhookPayload is Mercado Pago's notification body: an action plus the
// payment id. Everything else must come from the payment-lookup API.
type webhookPayload struct {
	Action string `json:"action"`
	Type   string `json:"type"`
	Data   struct {
		ID json.Number `json:"id"`
	} `json:"data"`
}

// Adapter normalizes Mercado Pago webhook deliveries into canonical
// payment events.
type Adapter struct {
	payments PaymentFetcher
}

// NewAdapter wires the adapter with a payment lookup client.
func NewAdapter(payments PaymentFetcher) (*Adapter, error) {
	if payments == nil {
		return nil, fmt.Errorf("payment fetcher required")
	}
	return &Adapter{payments: payments}, nil
}

// Parse validates the notification and performs the secondary authenticated
// lookup that yields amount, status, payer email and external reference.
func (a *Adapter) Parse(ctx context.Context, body []byte) (*providers.PaymentEvent, error) {
	var payload webhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode mercadopago webhook")
	}

	if !isPaymentNotification(payload) {
		return nil, providers.ErrNoise{Reason: fmt.Sprintf("unhandled action %q", payload.Action)}
	}
	id := payload.Data.ID.String()
	if id == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "mercadopago webhook missing payment id")
	}

	payment, err := a.payments.GetPayment(ctx, id)
	if err != nil {
		// A deleted payment 404s on every lookup. Surfacing that as an
		// error would make the provider redeliver forever, so it is noise.
		if typed := pkgerrors.As(err); typed != nil && typed.Code() == pkgerrors.CodeNotFound {
			return nil, providers.ErrNoise{Reason: fmt.Sprintf("payment %s not found upstream", id)}
		}
		return nil, err
	}

	return &providers.PaymentEvent{
		Provider:       enums.ProviderMercadoPago,
		ExternalID:     fmt.Sprintf("%d", payment.ID),
		Amount:         payment.TransactionAmount,
		Status:         normalizeStatus(payment.Status),
		PayerEmail:     strings.ToLower(strings.TrimSpace(payment.Payer.Email)),
		CorrelationRef: payment.ExternalReference,
	}, nil
}

func isPaymentNotification(payload webhookPayload) bool {
	if strings.HasPrefix(payload.Action, "payment.") {
		return true
	}
	return payload.Type == "payment"
}

func normalizeStatus(status string) enums.EventStatus {
	switch strings.ToLower(status) {
	case "approved", "accredited":
		return enums.EventStatusApproved
	case "pending", "in_process", "in_mediation", "authorized":
		return enums.EventStatusPending
	case "cancelled", "expired":
		return enums.EventStatusCancelled
	default:
		// rejected, refunded, charged_back
		return enums.EventStatusRejected
	}
}
