package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/beateur/ninowash-backend/api/routes"
	"github.com/beateur/ninowash-backend/internal/billing"
	"github.com/beateur/ninowash-backend/internal/bookings"
	"github.com/beateur/ninowash-backend/internal/notifications"
	"github.com/beateur/ninowash-backend/internal/scheduling"
	"github.com/beateur/ninowash-backend/internal/subscriptions"
	stripewebhook "github.com/beateur/ninowash-backend/internal/webhooks/stripe"
	"github.com/beateur/ninowash-backend/pkg/config"
	"github.com/beateur/ninowash-backend/pkg/db"
	"github.com/beateur/ninowash-backend/pkg/env"
	"github.com/beateur/ninowash-backend/pkg/logger"
	"github.com/beateur/ninowash-backend/pkg/metrics"
	"github.com/beateur/ninowash-backend/pkg/migrate"
	"github.com/beateur/ninowash-backend/pkg/outbox"
	"github.com/beateur/ninowash-backend/pkg/redis"
	pkgstripe "github.com/beateur/ninowash-backend/pkg/stripe"
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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		logg.Error(ctx, "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	stripeClient, err := pkgstripe.NewClient(ctx, cfg.Stripe, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap stripe", err)
		os.Exit(1)
	}

	outboxService := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)
	notifier, err := notifications.NewService(outboxService)
	if err != nil {
		logg.Error(ctx, "failed to create notification service", err)
		os.Exit(1)
	}

	schedulingRepo := scheduling.NewRepository(dbClient.DB())
	schedulingService, err := scheduling.NewService(scheduling.ServiceParams{
		Repo:   schedulingRepo,
		Logger: logg,
	})
	if err != nil {
		logg.Error(ctx, "failed to create scheduling service", err)
		os.Exit(1)
	}

	checkoutClient, err := billing.NewCheckoutClient(stripeClient, cfg.Stripe)
	if err != nil {
		logg.Error(ctx, "failed to create checkout client", err)
		os.Exit(1)
	}

	bookingRepo := bookings.NewRepository(dbClient.DB())
	bookingService, err := bookings.NewService(bookings.ServiceParams{
		Repo:     bookingRepo,
		Slots:    schedulingRepo,
		Tx:       dbClient,
		Outbox:   outboxService,
		Notifier: notifier,
		Checkout: checkoutClient,
		Logger:   logg,
		Config:   cfg.Booking,
	})
	if err != nil {
		logg.Error(ctx, "failed to create booking service", err)
		os.Exit(1)
	}

	billingRepo := billing.NewRepository(dbClient.DB())
	subscriptionService, err := subscriptions.NewService(subscriptions.ServiceParams{
		Repo:     billingRepo,
		Checkout: checkoutClient,
		Stripe:   subscriptions.NewStripeClient(stripeClient),
		Tx:       dbClient,
		Logger:   logg,
	})
	if err != nil {
		logg.Error(ctx, "failed to create subscription service", err)
		os.Exit(1)
	}

	ledger, err := subscriptions.NewLedger(billingRepo, logg)
	if err != nil {
		logg.Error(ctx, "failed to create subscription ledger", err)
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	webhookMetrics := metrics.NewWebhookMetrics(registry)

	webhookService, err := stripewebhook.NewService(stripewebhook.ServiceParams{
		BookingRepo:       bookingRepo,
		BillingRepo:       billingRepo,
		Ledger:            ledger,
		StripeClient:      subscriptions.NewStripeClient(stripeClient),
		TransactionRunner: dbClient,
		Notifier:          notifier,
		Logger:            logg,
		Metrics:           webhookMetrics,
	})
	if err != nil {
		logg.Error(ctx, "failed to create webhook service", err)
		os.Exit(1)
	}

	webhookGuard, err := stripewebhook.NewIdempotencyGuard(redisClient, cfg.Booking.WebhookEventTTL, "stripe-webhook")
	if err != nil {
		logg.Error(ctx, "failed to create webhook idempotency guard", err)
		os.Exit(1)
	}

	addr := ":" + env.Get("PORT", cfg.App.Port)

	startCtx := logg.WithFields(ctx, map[string]any{
		"env":        cfg.App.Env,
		"addr":       addr,
		"stripe_env": stripeClient.Environment(),
	})
	logg.Info(startCtx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(
			cfg,
			logg,
			dbClient,
			redisClient,
			schedulingService,
			bookingService,
			subscriptionService,
			stripeClient,
			webhookService,
			webhookGuard,
			registry,
		),
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(shutdownCtx, "api server shutdown failed", err)
			os.Exit(1)
		}
		logg.Info(context.Background(), "api server stopped")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	}
}
