package webhooks

import (
	"context"
	"io"
	"net/http"

	"github.com/gabrielmoura/cineprime-backend/api/responses"
	"github.com/gabrielmoura/cineprime-backend/internal/webhooks"
	pkgerrors "github.com/gabrielmoura/cineprime-backend/pkg/errors"
	"github.com/gabrielmoura/cineprime-backend/pkg/logger"
)

type mercadoPagoService interface {
	HandleMercadoPago(ctx context.Context, body []byte) (webhooks.Outcome, error)
}

// MercadoPagoWebhook handles Mercado Pago payment notifications. The
// notification body only carries a payment id; the pipeline fetches the
// payment from the Mercado Pago API, so dependency failures surface as
// 503 and the provider redelivers.
func MercadoPagoWebhook(svc mercadoPagoService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "webhook service unavailable"))
			return
		}

		body, err := io.ReadAll(r.Body)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read request body"))
			return
		}

		outcome, err := svc.HandleMercadoPago(ctx, body)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]string{"outcome": string(outcome)})
	}
}
