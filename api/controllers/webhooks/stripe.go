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

type stripeService interface {
	HandleStripe(ctx context.Context, payload []byte, sigHeader string) (webhooks.Outcome, error)
}

// StripeWebhook handles Stripe checkout session events. Signature
// verification happens inside the pipeline before any field of the
// payload is trusted; an unverifiable delivery comes back as 401.
func StripeWebhook(svc stripeService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "webhook service unavailable"))
			return
		}

		payload, err := io.ReadAll(r.Body)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read request body"))
			return
		}

		outcome, err := svc.HandleStripe(ctx, payload, r.Header.Get("Stripe-Signature"))
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]string{"outcome": string(outcome)})
	}
}
