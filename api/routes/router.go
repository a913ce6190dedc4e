package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gabrielmoura/cineprime-backend/api/controllers"
	webhookcontrollers "github.com/gabrielmoura/cineprime-backend/api/controllers/webhooks"
	"github.com/gabrielmoura/cineprime-backend/api/middleware"
	checkoutsvc "github.com/gabrielmoura/cineprime-backend/internal/checkout"
	"github.com/gabrielmoura/cineprime-backend/internal/webhooks"
	"github.com/gabrielmoura/cineprime-backend/pkg/config"
	"github.com/gabrielmoura/cineprime-backend/pkg/db"
	"github.com/gabrielmoura/cineprime-backend/pkg/logger"
	"github.com/gabrielmoura/cineprime-backend/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbClient db.Pinger,
	redisClient *redis.Client,
	webhookService *webhooks.Service,
	checkoutService checkoutsvc.Service,
	registry *prometheus.Registry,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		var cache controllers.Pinger
		if redisClient != nil {
			cache = redisClient
		}
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbClient, cache))
	})

	if registry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	}

	r.Route("/api/public", func(r chi.Router) {
		r.Get("/ping", controllers.Ping())
	})

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/mercadopago", webhookcontrollers.MercadoPagoWebhook(webhookService, logg))
		r.Post("/pushinpay", webhookcontrollers.PushinPayWebhook(webhookService, logg))
		r.Post("/stripe", webhookcontrollers.StripeWebhook(webhookService, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/checkout", controllers.CreateIntent(checkoutService, logg))
		r.Post("/checkout/{intentID}/provider-ref", controllers.AttachProviderRef(checkoutService, logg))
	})

	return r
}
