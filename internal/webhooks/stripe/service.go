package stripewebhook

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"
	"gorm.io/gorm"

	"github.com/beateur/ninowash-backend/internal/billing"
	"github.com/beateur/ninowash-backend/internal/bookings"
	"github.com/beateur/ninowash-backend/internal/notifications"
	"github.com/beateur/ninowash-backend/internal/subscriptions"
	"github.com/beateur/ninowash-backend/pkg/db/models"
	"github.com/beateur/ninowash-backend/pkg/enums"
	pkgerrors "github.com/beateur/ninowash-backend/pkg/errors"
	"github.com/beateur/ninowash-backend/pkg/logger"
	"github.com/beateur/ninowash-backend/pkg/metrics"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type confirmationNotifier interface {
	EnqueueBookingConfirmed(ctx context.Context, tx *gorm.DB, msg notifications.BookingConfirmedEmail) error
}

type subscriptionLedger interface {
	ReplaceActive(ctx context.Context, tx *gorm.DB, sub *models.Subscription) error
	SoftCancel(ctx context.Context, tx *gorm.DB, stripeSubscriptionID, reason string) (bool, error)
}

type ServiceParams struct {
	BookingRepo       bookings.Repository
	BillingRepo       billing.Repository
	Ledger            subscriptionLedger
	StripeClient      subscriptions.StripeSubscriptionClient
	TransactionRunner txRunner
	Notifier          confirmationNotifier
	Logger            *logger.Logger
	Metrics           *metrics.WebhookMetrics
}

// Service reconciles provider webhook events with local booking and
// subscription state. Every branch is independently idempotent: redelivered
// events converge on the same final state without duplicating side effects.
type Service struct {
	bookingRepo bookings.Repository
	billingRepo billing.Repository
	ledger      subscriptionLedger
	stripe      subscriptions.StripeSubscriptionClient
	txRunner    txRunner
	notifier    confirmationNotifier
	logg        *logger.Logger
	metrics     *metrics.WebhookMetrics

	now func() time.Time
}

func NewService(params ServiceParams) (*Service, error) {
	if params.BookingRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "booking repo required")
	}
	if params.BillingRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "billing repo required")
	}
	if params.Ledger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "subscription ledger required")
	}
	if params.StripeClient == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "stripe client required")
	}
	if params.TransactionRunner == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction runner required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger required")
	}
	return &Service{
		bookingRepo: params.BookingRepo,
		billingRepo: params.BillingRepo,
		ledger:      params.Ledger,
		stripe:      params.StripeClient,
		txRunner:    params.TransactionRunner,
		notifier:    params.Notifier,
		logg:        params.Logger,
		metrics:     params.Metrics,
		now:         time.Now,
	}, nil
}

// HandleEvent dispatches a verified Stripe event. Unknown event types are
// acknowledged without side effects so new provider events never cause retry
// storms. A lookup miss is logged and acknowledged; only transient failures
// return an error (and with it a retryable 5xx).
func (s *Service) HandleEvent(ctx context.Context, event *stripe.Event) error {
	if event == nil || event.Data == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "stripe event data required")
	}

	ctx = s.logg.WithEventType(ctx, string(event.Type))
	started := s.now()
	outcome, err := s.dispatch(ctx, event)
	s.metrics.ObserveDuration(string(event.Type), s.now().Sub(started))
	if err != nil {
		s.metrics.IncHandled(string(event.Type), metrics.OutcomeFailed)
		return err
	}
	s.metrics.IncHandled(string(event.Type), outcome)
	return nil
}

func (s *Service) dispatch(ctx context.Context, event *stripe.Event) (string, error) {
	switch event.Type {
	case stripe.EventTypeCheckoutSessionCompleted:
		var session stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
			return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode checkout session")
		}
		return s.handleCheckoutCompleted(ctx, &session)

	case stripe.EventTypeCustomerSubscriptionUpdated:
		var stripeSub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &stripeSub); err != nil {
			return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode subscription event")
		}
		return s.syncSubscription(ctx, &stripeSub)

	case stripe.EventTypeCustomerSubscriptionDeleted:
		var stripeSub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &stripeSub); err != nil {
			return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode subscription event")
		}
		return s.handleSubscriptionDeleted(ctx, &stripeSub)

	case stripe.EventTypeInvoicePaid:
		return s.handleInvoice(ctx, event, enums.PaymentRecordStatusSucceeded)

	case stripe.EventTypeInvoicePaymentFailed:
		return s.handleInvoice(ctx, event, enums.PaymentRecordStatusFailed)

	case stripe.EventTypePaymentIntentSucceeded:
		var intent stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
			return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode payment intent")
		}
		return s.handleIntentSucceeded(ctx, &intent)

	case stripe.EventTypePaymentIntentPaymentFailed:
		var intent stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
			return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode payment intent")
		}
		return s.handleIntentFailed(ctx, &intent)

	default:
		s.logg.Info(ctx, "ignoring unhandled stripe event type")
		return metrics.OutcomeIgnored, nil
	}
}

func (s *Service) handleCheckoutCompleted(ctx context.Context, session *stripe.CheckoutSession) (string, error) {
	switch session.Metadata[billing.MetadataContextKey] {
	case billing.MetadataContextSubscription:
		return s.checkoutSubscription(ctx, session)
	case billing.MetadataContextBooking:
		return s.checkoutBooking(ctx, session)
	default:
		// Sessions created outside this backend.
		s.logg.Warn(ctx, "checkout session without a known context, skipping")
		return metrics.OutcomeSkipped, nil
	}
}

func (s *Service) checkoutBooking(ctx context.Context, session *stripe.CheckoutSession) (string, error) {
	booking, err := s.lookupCheckoutBooking(ctx, session)
	if err != nil {
		return "", err
	}
	if booking == nil {
		logCtx := s.logg.WithField(ctx, "session_id", session.ID)
		s.logg.Warn(logCtx, "checkout session matches no booking, skipping")
		return metrics.OutcomeSkipped, nil
	}

	// Redelivery: the first delivery already marked the booking paid.
	if booking.PaymentStatus == enums.PaymentStatusPaid && booking.PaidAt != nil {
		return metrics.OutcomeSkipped, nil
	}

	err = s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.bookingRepo.WithTx(tx)
		fresh, err := repo.FindByID(ctx, booking.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload booking")
		}
		if fresh.PaymentStatus == enums.PaymentStatusPaid && fresh.PaidAt != nil {
			return nil
		}

		now := s.now()
		fresh.PaymentStatus = enums.PaymentStatusPaid
		fresh.PaidAt = &now
		if session.PaymentIntent != nil && session.PaymentIntent.ID != "" {
			intentID := session.PaymentIntent.ID
			fresh.StripeIntentID = &intentID
		}
		if bookings.CanTransition(fresh.Status, enums.BookingStatusConfirmed) {
			fresh.Status = enums.BookingStatusConfirmed
		}
		if err := repo.UpdateBooking(ctx, fresh); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update booking")
		}

		if s.notifier != nil {
			msg := notifications.BookingConfirmedEmail{
				BookingID:     fresh.ID,
				BookingNumber: fresh.Number,
				Email:         session.CustomerEmail,
				UserID:        fresh.UserID,
			}
			if err := s.notifier.EnqueueBookingConfirmed(ctx, tx, msg); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	logCtx := s.logg.WithBookingID(ctx, booking.ID.String())
	s.logg.Info(logCtx, "booking payment reconciled")
	return metrics.OutcomeProcessed, nil
}

// lookupCheckoutBooking resolves the booking by its stored session ID, then by
// the booking_id stamped on the session metadata. The fallback covers sessions
// whose ID never made it onto the booking row, e.g. a crash between creating
// the session and storing it. A nil booking with a nil error means no match.
func (s *Service) lookupCheckoutBooking(ctx context.Context, session *stripe.CheckoutSession) (*models.Booking, error) {
	booking, err := s.bookingRepo.FindByStripeSessionID(ctx, session.ID)
	if err == nil {
		return booking, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load booking by session")
	}

	raw := session.Metadata[billing.MetadataBookingIDKey]
	if raw == "" {
		return nil, nil
	}
	bookingID, err := uuid.Parse(raw)
	if err != nil {
		logCtx := s.logg.WithField(ctx, "booking_id", raw)
		s.logg.Warn(logCtx, "checkout session carries a malformed booking id")
		return nil, nil
	}
	booking, err = s.bookingRepo.FindByID(ctx, bookingID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load booking by id")
	}
	return booking, nil
}

func (s *Service) checkoutSubscription(ctx context.Context, session *stripe.CheckoutSession) (string, error) {
	if session.Subscription == nil || session.Subscription.ID == "" {
		s.logg.Warn(ctx, "subscription checkout session without subscription, skipping")
		return metrics.OutcomeSkipped, nil
	}

	stripeSub, err := s.stripe.Get(ctx, session.Subscription.ID, &stripe.SubscriptionParams{})
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "fetch stripe subscription")
	}
	// The session metadata is the fallback for subscriptions created before
	// the metadata was stamped on the subscription itself.
	if _, err := subscriptions.UserIDFromMetadata(stripeSub.Metadata); err != nil {
		if stripeSub.Metadata == nil {
			stripeSub.Metadata = map[string]string{}
		}
		for k, v := range session.Metadata {
			if _, exists := stripeSub.Metadata[k]; !exists {
				stripeSub.Metadata[k] = v
			}
		}
	}
	return s.syncSubscription(ctx, stripeSub)
}

// syncSubscription upserts the provider's view into the ledger. Missing
// identity metadata on an unknown subscription is a logged skip.
func (s *Service) syncSubscription(ctx context.Context, stripeSub *stripe.Subscription) (string, error) {
	if stripeSub == nil || stripeSub.ID == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "subscription id required")
	}

	var outcome string
	err := s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.billingRepo.WithTx(tx)
		stored, err := repo.FindSubscriptionByStripeID(ctx, stripeSub.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "find subscription")
		}

		var target *models.Subscription
		if stored != nil {
			if err := subscriptions.ApplyStripe(stored, stripeSub); err != nil {
				return err
			}
			target = stored
		} else {
			userID, err := subscriptions.UserIDFromMetadata(stripeSub.Metadata)
			if err != nil {
				logCtx := s.logg.WithField(ctx, "stripe_subscription_id", stripeSub.ID)
				s.logg.Warn(logCtx, "unknown subscription without user metadata, skipping")
				outcome = metrics.OutcomeSkipped
				return nil
			}
			built, err := subscriptions.BuildFromStripe(stripeSub, userID, subscriptions.PlanIDFromMetadata(stripeSub.Metadata))
			if err != nil {
				return err
			}
			target = built
		}

		if err := s.ledger.ReplaceActive(ctx, tx, target); err != nil {
			return err
		}
		outcome = metrics.OutcomeProcessed
		return nil
	})
	if err != nil {
		return "", err
	}
	return outcome, nil
}

func (s *Service) handleSubscriptionDeleted(ctx context.Context, stripeSub *stripe.Subscription) (string, error) {
	if stripeSub == nil || stripeSub.ID == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "subscription id required")
	}

	var outcome string
	err := s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		found, err := s.ledger.SoftCancel(ctx, tx, stripeSub.ID, "stripe subscription deleted")
		if err != nil {
			return err
		}
		if !found {
			logCtx := s.logg.WithField(ctx, "stripe_subscription_id", stripeSub.ID)
			s.logg.Warn(logCtx, "deleted subscription not in ledger, skipping")
			outcome = metrics.OutcomeSkipped
			return nil
		}
		outcome = metrics.OutcomeProcessed
		return nil
	})
	if err != nil {
		return "", err
	}
	return outcome, nil
}

// handleInvoice records the invoice on the payment ledger and refreshes the
// subscription status. Upserting by invoice ID makes redelivery harmless.
func (s *Service) handleInvoice(ctx context.Context, event *stripe.Event, status enums.PaymentRecordStatus) (string, error) {
	var invoice stripe.Invoice
	if err := json.Unmarshal(event.Data.Raw, &invoice); err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode invoice")
	}

	subscriptionID := event.GetObjectValue("subscription")
	if subscriptionID == "" {
		subscriptionID = event.GetObjectValue("parent", "subscription_details", "subscription")
	}
	if subscriptionID == "" {
		s.logg.Warn(ctx, "invoice without subscription reference, skipping")
		return metrics.OutcomeSkipped, nil
	}

	amountCents := invoice.AmountPaid
	if status == enums.PaymentRecordStatusFailed {
		amountCents = invoice.AmountDue
	}

	var outcome string
	err := s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.billingRepo.WithTx(tx)
		stored, err := repo.FindSubscriptionByStripeID(ctx, subscriptionID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "find subscription")
		}
		if stored == nil {
			logCtx := s.logg.WithFields(ctx, map[string]any{
				"stripe_subscription_id": subscriptionID,
				"stripe_invoice_id":      invoice.ID,
			})
			s.logg.Warn(logCtx, "invoice for unknown subscription, skipping")
			outcome = metrics.OutcomeSkipped
			return nil
		}

		payment := &models.Payment{
			SubscriptionID:  stored.ID,
			StripeInvoiceID: invoice.ID,
			AmountCents:     int(amountCents),
			Status:          status,
		}
		if err := repo.UpsertPaymentByInvoiceID(ctx, payment); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "upsert payment")
		}

		// A late invoice for a soft-cancelled subscription still lands on
		// the payment ledger, but must not revive the row.
		if !stored.Cancelled {
			switch status {
			case enums.PaymentRecordStatusSucceeded:
				stored.Status = enums.SubscriptionStatusActive
			case enums.PaymentRecordStatusFailed:
				stored.Status = enums.SubscriptionStatusPastDue
			}
			if err := repo.UpdateSubscription(ctx, stored); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update subscription status")
			}
		}
		outcome = metrics.OutcomeProcessed
		return nil
	})
	if err != nil {
		return "", err
	}
	return outcome, nil
}

func (s *Service) handleIntentSucceeded(ctx context.Context, intent *stripe.PaymentIntent) (string, error) {
	booking, err := s.bookingRepo.FindByStripeIntentID(ctx, intent.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			logCtx := s.logg.WithField(ctx, "intent_id", intent.ID)
			s.logg.Warn(logCtx, "payment intent matches no booking, skipping")
			return metrics.OutcomeSkipped, nil
		}
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load booking by intent")
	}

	if booking.PaymentStatus == enums.PaymentStatusPaid && booking.PaidAt != nil {
		return metrics.OutcomeSkipped, nil
	}

	err = s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.bookingRepo.WithTx(tx)
		fresh, err := repo.FindByID(ctx, booking.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload booking")
		}
		if fresh.PaymentStatus == enums.PaymentStatusPaid && fresh.PaidAt != nil {
			return nil
		}
		now := s.now()
		fresh.PaymentStatus = enums.PaymentStatusPaid
		fresh.PaidAt = &now
		if bookings.CanTransition(fresh.Status, enums.BookingStatusConfirmed) {
			fresh.Status = enums.BookingStatusConfirmed
		}
		if err := repo.UpdateBooking(ctx, fresh); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update booking")
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return metrics.OutcomeProcessed, nil
}

// handleIntentFailed records the failure on payment_status only. The booking
// keeps its lifecycle status so the customer can retry payment.
func (s *Service) handleIntentFailed(ctx context.Context, intent *stripe.PaymentIntent) (string, error) {
	booking, err := s.bookingRepo.FindByStripeIntentID(ctx, intent.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			logCtx := s.logg.WithField(ctx, "intent_id", intent.ID)
			s.logg.Warn(logCtx, "failed payment intent matches no booking, skipping")
			return metrics.OutcomeSkipped, nil
		}
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load booking by intent")
	}

	if booking.PaymentStatus == enums.PaymentStatusPaid {
		// A success already reconciled; a stale failure must not regress it.
		return metrics.OutcomeSkipped, nil
	}
	if booking.PaymentStatus == enums.PaymentStatusFailed {
		return metrics.OutcomeSkipped, nil
	}

	booking.PaymentStatus = enums.PaymentStatusFailed
	if err := s.bookingRepo.UpdateBooking(ctx, booking); err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update booking payment status")
	}
	return metrics.OutcomeProcessed, nil
}
