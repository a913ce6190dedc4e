package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/gabrielmoura/cineprime-backend/api/routes"
	"github.com/gabrielmoura/cineprime-backend/internal/checkout"
	"github.com/gabrielmoura/cineprime-backend/internal/entitlement"
	"github.com/gabrielmoura/cineprime-backend/internal/ledger"
	"github.com/gabrielmoura/cineprime-backend/internal/payments"
	"github.com/gabrielmoura/cineprime-backend/internal/providers/mercadopago"
	"github.com/gabrielmoura/cineprime-backend/internal/providers/pushinpay"
	stripeadapter "github.com/gabrielmoura/cineprime-backend/internal/providers/stripe"
	"github.com/gabrielmoura/cineprime-backend/internal/reconcile"
	"github.com/gabrielmoura/cineprime-backend/internal/users"
	"github.com/gabrielmoura/cineprime-backend/internal/webhooks"
	"github.com/gabrielmoura/cineprime-backend/pkg/config"
	"github.com/gabrielmoura/cineprime-backend/pkg/db"
	"github.com/gabrielmoura/cineprime-backend/pkg/logger"
	"github.com/gabrielmoura/cineprime-backend/pkg/metrics"
	"github.com/gabrielmoura/cineprime-backend/pkg/migrate"
	"github.com/gabrielmoura/cineprime-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	intentRepo := payments.NewRepository(dbClient.DB())
	ledgerRepo := ledger.NewRepository(dbClient.DB())
	userRepo := users.NewRepository(dbClient.DB())

	mpClient, err := mercadopago.NewClient(cfg.MercadoPago)
	if err != nil {
		logg.Error(context.Background(), "failed to create mercadopago client", err)
		os.Exit(1)
	}
	mpAdapter, err := mercadopago.NewAdapter(mpClient)
	if err != nil {
		logg.Error(context.Background(), "failed to create mercadopago adapter", err)
		os.Exit(1)
	}
	ppAdapter := pushinpay.NewAdapter()
	stripeAdapter, err := stripeadapter.NewAdapter(cfg.Stripe)
	if err != nil {
		logg.Error(context.Background(), "failed to create stripe adapter", err)
		os.Exit(1)
	}

	matcher, err := reconcile.NewMatcher(reconcile.MatcherParams{
		IntentRepo: intentRepo,
		UserRepo:   userRepo,
		Logger:     logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create matcher", err)
		os.Exit(1)
	}
	guard, err := reconcile.NewGuard(ledgerRepo)
	if err != nil {
		logg.Error(context.Background(), "failed to create guard", err)
		os.Exit(1)
	}
	activator, err := entitlement.NewActivator(entitlement.ActivatorParams{
		TxRunner:   dbClient,
		IntentRepo: intentRepo,
		LedgerRepo: ledgerRepo,
		UserRepo:   userRepo,
		Logger:     logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create activator", err)
		os.Exit(1)
	}

	fastGuard, err := webhooks.NewFastGuard(redisClient, cfg.Webhooks.FastDedupTTL, "payment-webhook")
	if err != nil {
		logg.Error(context.Background(), "failed to create idempotency guard", err)
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	webhookMetrics := metrics.NewWebhookMetrics(registry)

	webhookService, err := webhooks.NewService(webhooks.ServiceParams{
		MercadoPago: mpAdapter,
		PushinPay:   ppAdapter,
		Stripe:      stripeAdapter,
		Matcher:     matcher,
		Guard:       guard,
		Activator:   activator,
		IntentRepo:  intentRepo,
		FastGuard:   fastGuard,
		Metrics:     webhookMetrics,
		Logger:      logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create webhook service", err)
		os.Exit(1)
	}

	checkoutService, err := checkout.NewService(intentRepo, userRepo)
	if err != nil {
		logg.Error(context.Background(), "failed to create checkout service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr:    addr,
		Handler: routes.NewRouter(cfg, logg, dbClient, redisClient, webhookService, checkoutService, registry),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
