package pushinpay

import (
	"encoding/json"
	"net/url"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/gabrielmoura/cineprime-backend/internal/providers"
	"github.com/gabrielmoura/cineprime-backend/pkg/enums"
	pkgerrors "github.com/gabrielmoura/cineprime-backend/pkg/errors"
)

// webhookPayload is PushinPay's PIX notification. The value field arrives
// in centavos.
type webhookPayload struct {
	ID                        string `json:"id"`
	Status                    string `json:"status"`
	Value                     int64  `json:"value"`
	PayerName                 string `json:"payer_name"`
	PayerNationalRegistration string `json:"payer_national_registration"`
	EndToEndID                string `json:"end_to_end_id"`
}

// Adapter normalizes PushinPay webhook deliveries. PushinPay posts either
// JSON or form-encoded bodies depending on account configuration, so the
// adapter branches on content type.
type Adapter struct{}

func NewAdapter() *Adapter {
	return &Adapter{}
}

// Parse decodes the payload and produces a canonical event. Deliveries with
// a non-positive value or no payer identification at all are test/noise
// events and reported as such so the handler can no-op with a 200.
func (a *Adapter) Parse(contentType string, body []byte) (*providers.PaymentEvent, error) {
	payload, err := decodePayload(contentType, body)
	if err != nil {
		return nil, err
	}

	if payload.ID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "pushinpay webhook missing transaction id")
	}

	if payload.Value <= 0 {
		return nil, providers.ErrNoise{Reason: "non-positive value"}
	}
	if payload.PayerName == "" && payload.PayerNationalRegistration == "" && payload.EndToEndID == "" {
		return nil, providers.ErrNoise{Reason: "missing payer identification"}
	}

	// Transaction ids are UUIDs compared case-insensitively downstream;
	// normalize once here.
	externalID := strings.ToUpper(strings.TrimSpace(payload.ID))

	return &providers.PaymentEvent{
		Provider:       enums.ProviderPushinPay,
		ExternalID:     externalID,
		Amount:         decimal.New(payload.Value, -2),
		Status:         normalizeStatus(payload.Status),
		CorrelationRef: externalID,
	}, nil
}

func decodePayload(contentType string, body []byte) (*webhookPayload, error) {
	if strings.Contains(strings.ToLower(contentType), "application/x-www-form-urlencoded") {
		return decodeForm(body)
	}

	var payload webhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode pushinpay webhook")
	}
	return &payload, nil
}

func decodeForm(body []byte) (*webhookPayload, error) {
	values, err := url.ParseQuery(string(body))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode pushinpay form webhook")
	}

	payload := &webhookPayload{
		ID:                        values.Get("id"),
		Status:                    values.Get("status"),
		PayerName:                 values.Get("payer_name"),
		PayerNationalRegistration: values.Get("payer_national_registration"),
		EndToEndID:                values.Get("end_to_end_id"),
	}
	if raw := values.Get("value"); raw != "" {
		value, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "parse pushinpay value")
		}
		payload.Value = value
	}
	return payload, nil
}

func normalizeStatus(status string) enums.EventStatus {
	switch strings.ToLower(status) {
	case "paid", "approved", "confirmed":
		return enums.EventStatusApproved
	case "created", "pending", "processing":
		return enums.EventStatusPending
	case "expired", "canceled", "cancelled":
		return enums.EventStatusCancelled
	default:
		// refunded, chargeback
		return enums.EventStatusRejected
	}
}
