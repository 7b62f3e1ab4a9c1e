package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/beateur/ninowash-backend/api/controllers"
	webhookcontrollers "github.com/beateur/ninowash-backend/api/controllers/webhooks"
	"github.com/beateur/ninowash-backend/api/middleware"
	"github.com/beateur/ninowash-backend/internal/bookings"
	"github.com/beateur/ninowash-backend/internal/scheduling"
	subscriptionsvc "github.com/beateur/ninowash-backend/internal/subscriptions"
	stripewebhook "github.com/beateur/ninowash-backend/internal/webhooks/stripe"
	pkgauth "github.com/beateur/ninowash-backend/pkg/auth"
	"github.com/beateur/ninowash-backend/pkg/config"
	"github.com/beateur/ninowash-backend/pkg/logger"
	pkgstripe "github.com/beateur/ninowash-backend/pkg/stripe"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP controllers.Pinger,
	redisP controllers.Pinger,
	schedulingService *scheduling.Service,
	bookingService *bookings.Service,
	subscriptionService *subscriptionsvc.Service,
	stripeClient *pkgstripe.Client,
	stripeWebhookService *stripewebhook.Service,
	stripeWebhookGuard *stripewebhook.IdempotencyGuard,
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
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisP))
	})

	if registry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/stripe", webhookcontrollers.StripeWebhook(stripeWebhookService, stripeClient, stripeWebhookGuard, logg))
	})

	r.Route("/api/v1/slots", func(r chi.Router) {
		r.Get("/pickup", controllers.PickupSlots(schedulingService, logg))
		r.Get("/delivery", controllers.DeliverySlots(schedulingService, logg))
	})

	// Booking creation and per-booking actions accept guests, identified by
	// the contact email on the booking.
	r.Route("/api/v1/bookings", func(r chi.Router) {
		r.Use(middleware.OptionalAuth(cfg.JWT, logg))
		r.Post("/", controllers.CreateBooking(bookingService, logg))
		r.With(middleware.Auth(cfg.JWT, logg)).Get("/", controllers.ListBookings(bookingService, logg))
		r.Route("/{bookingId}", func(r chi.Router) {
			r.Get("/", controllers.GetBooking(bookingService, logg))
			r.Patch("/", controllers.ModifyBooking(bookingService, logg))
			r.Post("/cancel", controllers.CancelBooking(bookingService, logg))
			r.Post("/checkout", controllers.StartBookingCheckout(bookingService, logg))
		})
	})

	r.Route("/api/v1/subscriptions", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Get("/current", controllers.CurrentSubscription(subscriptionService, logg))
		r.Get("/history", controllers.SubscriptionHistory(subscriptionService, logg))
		r.Get("/payments", controllers.SubscriptionPayments(subscriptionService, logg))
		r.Post("/", controllers.Subscribe(subscriptionService, logg))
		r.Post("/cancel", controllers.CancelSubscription(subscriptionService, logg))
		r.Post("/portal", controllers.SubscriptionPortal(subscriptionService, logg))
	})

	r.Route("/api/v1/staff", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.RequireRole(pkgauth.RoleStaff, logg))
		r.Post("/bookings/{bookingId}/advance", controllers.AdvanceBooking(bookingService, logg))
	})

	return r
}
