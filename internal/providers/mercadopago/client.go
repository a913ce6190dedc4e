package mercadopago

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/gabrielmoura/cineprime-backend/pkg/config"
	pkgerrors "github.com/gabrielmoura/cineprime-backend/pkg/errors"
)

// Payment is the subset of Mercado Pago's payment-lookup response the
// reconciliation pipeline needs.
type Payment struct {
	ID                int64           `json:"id"`
	Status            string          `json:"status"`
	TransactionAmount decimal.Decimal `json:"transaction_amount"`
	ExternalReference string          `json:"external_reference"`
	Payer             Payer           `json:"payer"`
}

type Payer struct {
	Email string `json:"email"`
}

// PaymentFetcher fetches authoritative payment data for a webhook id.
type PaymentFetcher interface {
	GetPayment(ctx context.Context, id string) (*Payment, error)
}

// Client calls the Mercado Pago payments API with a bearer access token.
// The webhook payload only carries an id, so every delivery requires one
// authenticated lookup before anything can be reconciled.
type Client struct {
	baseURL     string
	accessToken string
	httpClient  *http.Client
}

// NewClient builds a payments API client from configuration.
func NewClient(cfg config.MercadoPagoConfig) (*Client, error) {
	if strings.TrimSpace(cfg.AccessToken) == "" {
		return nil, fmt.Errorf("mercadopago access token is required")
	}
	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:     strings.TrimRight(cfg.APIBaseURL, "/"),
		accessToken: cfg.AccessToken,
		httpClient:  &http.Client{Timeout: timeout},
	}, nil
}

// GetPayment fetches a payment by id. Failures are dependency errors so the
// webhook handler surfaces a 5xx and the provider redelivers.
func (c *Client) GetPayment(ctx context.Context, id string) (*Payment, error) {
	url := fmt.Sprintf("%s/v1/payments/%s", c.baseURL, id)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build payment lookup request")
	}
	req.Header.Set("Authorization", "Bearer "+c.accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mercadopago payment lookup")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read payment lookup response")
	}

	if resp.StatusCode == http.StatusNotFound {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("payment %s not found", id))
	}
	if resp.StatusCode != http.StatusOK {
		return nil, pkgerrors.New(pkgerrors.CodeDependency,
			fmt.Sprintf("mercadopago payment lookup returned %d", resp.StatusCode))
	}

	var payment Payment
	if err := json.Unmarshal(body, &payment); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode payment lookup response")
	}
	return &payment, nil
}
