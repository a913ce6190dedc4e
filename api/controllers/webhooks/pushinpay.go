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

type pushinPayService interface {
	HandlePushinPay(ctx context.Context, contentType string, body []byte) (webhooks.Outcome, error)
}

// PushinPayWebhook handles PushinPay PIX notifications, which arrive as
// either JSON or form-urlencoded depending on the sender version.
func PushinPayWebhook(svc pushinPayService, logg *logger.Logger) http.HandlerFunc {
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

		outcome, err := svc.HandlePushinPay(ctx, r.Header.Get("Content-Type"), body)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]string{"outcome": string(outcome)})
	}
}
