package stripewebhook

import (
	"context"
	"encoding/json"
	"io"
	"testing"
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
	"github.com/beateur/ninowash-backend/pkg/logger"
	"github.com/beateur/ninowash-backend/pkg/pagination"
)

type stubBookingRepo struct {
	bookings map[uuid.UUID]*models.Booking
}

func newStubBookingRepo() *stubBookingRepo {
	return &stubBookingRepo{bookings: map[uuid.UUID]*models.Booking{}}
}

func (s *stubBookingRepo) WithTx(_ *gorm.DB) bookings.Repository { return s }

func (s *stubBookingRepo) CreateBooking(_ context.Context, booking *models.Booking) error {
	booking.ID = uuid.New()
	copied := *booking
	s.bookings[booking.ID] = &copied
	return nil
}

func (s *stubBookingRepo) SetNumber(_ context.Context, id uuid.UUID, number string) error {
	if stored, ok := s.bookings[id]; ok {
		stored.Number = number
	}
	return nil
}

func (s *stubBookingRepo) UpdateBooking(_ context.Context, booking *models.Booking) error {
	copied := *booking
	s.bookings[booking.ID] = &copied
	return nil
}

func (s *stubBookingRepo) FindByID(_ context.Context, id uuid.UUID) (*models.Booking, error) {
	if stored, ok := s.bookings[id]; ok {
		copied := *stored
		return &copied, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubBookingRepo) FindByStripeSessionID(_ context.Context, sessionID string) (*models.Booking, error) {
	for _, stored := range s.bookings {
		if stored.StripeSessionID != nil && *stored.StripeSessionID == sessionID {
			copied := *stored
			return &copied, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubBookingRepo) FindByStripeIntentID(_ context.Context, intentID string) (*models.Booking, error) {
	for _, stored := range s.bookings {
		if stored.StripeIntentID != nil && *stored.StripeIntentID == intentID {
			copied := *stored
			return &copied, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubBookingRepo) ListByUser(_ context.Context, _ uuid.UUID, _ *pagination.Cursor, _ int) ([]models.Booking, error) {
	return nil, nil
}

func (s *stubBookingRepo) FindActiveServicesByIDs(_ context.Context, _ []uuid.UUID) ([]models.ServiceOffering, error) {
	return nil, nil
}

type stubBillingRepo struct {
	byStripeID map[string]*models.Subscription
	payments   map[string]*models.Payment
}

func newStubBillingRepo() *stubBillingRepo {
	return &stubBillingRepo{
		byStripeID: map[string]*models.Subscription{},
		payments:   map[string]*models.Payment{},
	}
}

func (s *stubBillingRepo) WithTx(_ *gorm.DB) billing.Repository { return s }

func (s *stubBillingRepo) CreateSubscription(_ context.Context, sub *models.Subscription) error {
	sub.ID = uuid.New()
	copied := *sub
	s.byStripeID[sub.StripeSubscriptionID] = &copied
	return nil
}

func (s *stubBillingRepo) UpdateSubscription(_ context.Context, sub *models.Subscription) error {
	copied := *sub
	s.byStripeID[sub.StripeSubscriptionID] = &copied
	return nil
}

func (s *stubBillingRepo) FindSubscriptionByStripeID(_ context.Context, stripeID string) (*models.Subscription, error) {
	if stored, ok := s.byStripeID[stripeID]; ok {
		copied := *stored
		return &copied, nil
	}
	return nil, nil
}

func (s *stubBillingRepo) FindLiveSubscriptionByUser(_ context.Context, userID uuid.UUID) (*models.Subscription, error) {
	for _, stored := range s.byStripeID {
		if stored.UserID == userID && !stored.Cancelled {
			copied := *stored
			return &copied, nil
		}
	}
	return nil, nil
}

func (s *stubBillingRepo) ListLiveSubscriptionsByUser(_ context.Context, userID uuid.UUID, excludeStripeID string) ([]models.Subscription, error) {
	var rows []models.Subscription
	for _, stored := range s.byStripeID {
		if stored.UserID == userID && !stored.Cancelled && stored.StripeSubscriptionID != excludeStripeID {
			rows = append(rows, *stored)
		}
	}
	return rows, nil
}

func (s *stubBillingRepo) ListSubscriptionsByUser(_ context.Context, _ uuid.UUID) ([]models.Subscription, error) {
	return nil, nil
}

func (s *stubBillingRepo) UpsertPaymentByInvoiceID(_ context.Context, payment *models.Payment) error {
	if existing, ok := s.payments[payment.StripeInvoiceID]; ok {
		existing.AmountCents = payment.AmountCents
		existing.Status = payment.Status
		return nil
	}
	payment.ID = uuid.New()
	copied := *payment
	s.payments[payment.StripeInvoiceID] = &copied
	return nil
}

func (s *stubBillingRepo) ListPaymentsBySubscription(_ context.Context, subscriptionID uuid.UUID) ([]models.Payment, error) {
	var rows []models.Payment
	for _, stored := range s.payments {
		if stored.SubscriptionID == subscriptionID {
			rows = append(rows, *stored)
		}
	}
	return rows, nil
}

type stubTx struct{}

func (stubTx) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(&gorm.DB{})
}

type stubStripeClient struct {
	subs map[string]*stripe.Subscription
}

func (s *stubStripeClient) Get(_ context.Context, id string, _ *stripe.SubscriptionParams) (*stripe.Subscription, error) {
	if sub, ok := s.subs[id]; ok {
		return sub, nil
	}
	return nil, &stripe.Error{Code: stripe.ErrorCodeResourceMissing}
}

func (s *stubStripeClient) Update(_ context.Context, id string, _ *stripe.SubscriptionParams) (*stripe.Subscription, error) {
	return s.subs[id], nil
}

func (s *stubStripeClient) Cancel(_ context.Context, id string, _ *stripe.SubscriptionCancelParams) (*stripe.Subscription, error) {
	return s.subs[id], nil
}

type stubNotifier struct {
	confirmed []notifications.BookingConfirmedEmail
}

func (s *stubNotifier) EnqueueBookingConfirmed(_ context.Context, _ *gorm.DB, msg notifications.BookingConfirmedEmail) error {
	s.confirmed = append(s.confirmed, msg)
	return nil
}

type webhookFixture struct {
	svc         *Service
	bookingRepo *stubBookingRepo
	billingRepo *stubBillingRepo
	stripe      *stubStripeClient
	notifier    *stubNotifier
}

var fixedNow = time.Date(2026, time.March, 8, 12, 0, 0, 0, time.UTC)

func newWebhookFixture(t *testing.T) *webhookFixture {
	t.Helper()

	f := &webhookFixture{
		bookingRepo: newStubBookingRepo(),
		billingRepo: newStubBillingRepo(),
		stripe:      &stubStripeClient{subs: map[string]*stripe.Subscription{}},
		notifier:    &stubNotifier{},
	}
	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})

	ledger, err := subscriptions.NewLedger(f.billingRepo, logg)
	if err != nil {
		t.Fatalf("NewLedger: %v", err)
	}

	svc, err := NewService(ServiceParams{
		BookingRepo:       f.bookingRepo,
		BillingRepo:       f.billingRepo,
		Ledger:            ledger,
		StripeClient:      f.stripe,
		TransactionRunner: stubTx{},
		Notifier:          f.notifier,
		Logger:            logg,
	})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	svc.now = func() time.Time { return fixedNow }
	f.svc = svc
	return f
}

func newEvent(t *testing.T, eventType stripe.EventType, object any) *stripe.Event {
	t.Helper()
	raw, err := json.Marshal(object)
	if err != nil {
		t.Fatalf("marshal event object: %v", err)
	}
	var asMap map[string]interface{}
	if err := json.Unmarshal(raw, &asMap); err != nil {
		t.Fatalf("unmarshal event object: %v", err)
	}
	return &stripe.Event{
		ID:   "evt_" + uuid.NewString(),
		Type: eventType,
		Data: &stripe.EventData{Raw: raw, Object: asMap},
	}
}

func seedUnpaidBooking(f *webhookFixture, sessionID string) *models.Booking {
	booking := &models.Booking{
		Status:          enums.BookingStatusPendingPayment,
		PaymentStatus:   enums.PaymentStatusPending,
		StripeSessionID: &sessionID,
	}
	_ = f.bookingRepo.CreateBooking(context.Background(), booking)
	f.bookingRepo.bookings[booking.ID].Number = "NW-000001"
	return f.bookingRepo.bookings[booking.ID]
}

func bookingSession(sessionID string) map[string]any {
	return map[string]any{
		"id":             sessionID,
		"metadata":       map[string]string{"context": "booking"},
		"payment_intent": map[string]any{"id": "pi_123"},
		"customer_email": "marie@example.com",
	}
}

func TestCheckoutCompletedConfirmsBooking(t *testing.T) {
	f := newWebhookFixture(t)
	booking := seedUnpaidBooking(f, "cs_123")

	event := newEvent(t, stripe.EventTypeCheckoutSessionCompleted, bookingSession("cs_123"))
	if err := f.svc.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("HandleEvent: %v", err)
	}

	stored := f.bookingRepo.bookings[booking.ID]
	if stored.Status != enums.BookingStatusConfirmed {
		t.Fatalf("status = %s, want confirmed", stored.Status)
	}
	if stored.PaymentStatus != enums.PaymentStatusPaid || stored.PaidAt == nil {
		t.Fatalf("payment not reconciled: %+v", stored)
	}
	if stored.StripeIntentID == nil || *stored.StripeIntentID != "pi_123" {
		t.Fatalf("intent id = %v", stored.StripeIntentID)
	}
	if len(f.notifier.confirmed) != 1 || f.notifier.confirmed[0].BookingNumber != "NW-000001" {
		t.Fatalf("confirmation email not queued: %+v", f.notifier.confirmed)
	}
}

func TestCheckoutCompletedRedeliveryIsIdempotent(t *testing.T) {
	f := newWebhookFixture(t)
	booking := seedUnpaidBooking(f, "cs_123")

	event := newEvent(t, stripe.EventTypeCheckoutSessionCompleted, bookingSession("cs_123"))
	if err := f.svc.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("first delivery: %v", err)
	}
	firstPaidAt := *f.bookingRepo.bookings[booking.ID].PaidAt

	// Redelivery past the transport guard must not touch anything.
	if err := f.svc.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("redelivery: %v", err)
	}
	if !f.bookingRepo.bookings[booking.ID].PaidAt.Equal(firstPaidAt) {
		t.Fatal("paid_at must be stable across redeliveries")
	}
	if len(f.notifier.confirmed) != 1 {
		t.Fatalf("confirmation email sent %d times, want 1", len(f.notifier.confirmed))
	}
}

func TestCheckoutCompletedUnknownSessionIsLoggedSkip(t *testing.T) {
	f := newWebhookFixture(t)

	event := newEvent(t, stripe.EventTypeCheckoutSessionCompleted, bookingSession("cs_unknown"))
	if err := f.svc.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("lookup miss must be acknowledged, got %v", err)
	}

	// A booking_id pointing at nothing is also acknowledged.
	session := bookingSession("cs_ghost")
	session["metadata"] = map[string]string{"context": "booking", "booking_id": uuid.NewString()}
	event = newEvent(t, stripe.EventTypeCheckoutSessionCompleted, session)
	if err := f.svc.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("metadata miss must be acknowledged, got %v", err)
	}
}

func TestCheckoutCompletedFallsBackToBookingMetadata(t *testing.T) {
	f := newWebhookFixture(t)
	booking := &models.Booking{
		Status:        enums.BookingStatusPendingPayment,
		PaymentStatus: enums.PaymentStatusPending,
	}
	_ = f.bookingRepo.CreateBooking(context.Background(), booking)
	f.bookingRepo.bookings[booking.ID].Number = "NW-000002"

	// The session ID was never written back to the booking row; the
	// booking_id stamped at session creation still identifies it.
	session := bookingSession("cs_unstored")
	session["metadata"] = map[string]string{"context": "booking", "booking_id": booking.ID.String()}
	event := newEvent(t, stripe.EventTypeCheckoutSessionCompleted, session)
	if err := f.svc.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("HandleEvent: %v", err)
	}

	stored := f.bookingRepo.bookings[booking.ID]
	if stored.Status != enums.BookingStatusConfirmed || stored.PaymentStatus != enums.PaymentStatusPaid || stored.PaidAt == nil {
		t.Fatalf("booking not reconciled through metadata: %+v", stored)
	}
}

func TestUnknownEventTypeIsAcknowledged(t *testing.T) {
	f := newWebhookFixture(t)

	event := newEvent(t, "charge.refunded", map[string]any{"id": "ch_1"})
	if err := f.svc.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("unknown event must be a no-op success, got %v", err)
	}
}

func stripeSubObject(id string, userID uuid.UUID, priceID string) map[string]any {
	return map[string]any{
		"id":       id,
		"status":   "active",
		"customer": map[string]any{"id": "cus_9"},
		"metadata": map[string]string{"user_id": userID.String(), "plan_id": priceID},
		"items": map[string]any{
			"data": []map[string]any{
				{
					"price":                map[string]any{"id": priceID},
					"current_period_start": 1767225600,
					"current_period_end":   1769904000,
				},
			},
		},
	}
}

func TestSubscriptionUpdatedCreatesLedgerRow(t *testing.T) {
	f := newWebhookFixture(t)
	userID := uuid.New()

	event := newEvent(t, stripe.EventTypeCustomerSubscriptionUpdated, stripeSubObject("sub_a", userID, "price_monthly"))
	if err := f.svc.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("HandleEvent: %v", err)
	}

	stored := f.billingRepo.byStripeID["sub_a"]
	if stored == nil || stored.UserID != userID || stored.PlanID != "price_monthly" {
		t.Fatalf("ledger row wrong: %+v", stored)
	}
}

func TestPlanChangeSoftCancelsOldSubscription(t *testing.T) {
	f := newWebhookFixture(t)
	userID := uuid.New()

	first := newEvent(t, stripe.EventTypeCustomerSubscriptionUpdated, stripeSubObject("sub_monthly", userID, "price_monthly"))
	if err := f.svc.HandleEvent(context.Background(), first); err != nil {
		t.Fatalf("first subscription: %v", err)
	}

	second := newEvent(t, stripe.EventTypeCustomerSubscriptionUpdated, stripeSubObject("sub_yearly", userID, "price_yearly"))
	if err := f.svc.HandleEvent(context.Background(), second); err != nil {
		t.Fatalf("plan change: %v", err)
	}

	old := f.billingRepo.byStripeID["sub_monthly"]
	if !old.Cancelled || old.CancellationReason == nil || *old.CancellationReason != "superseded by sub_yearly" {
		t.Fatalf("old subscription not soft-cancelled: %+v", old)
	}
	live, _ := f.billingRepo.ListLiveSubscriptionsByUser(context.Background(), userID, "")
	if len(live) != 1 || live[0].StripeSubscriptionID != "sub_yearly" {
		t.Fatalf("live rows = %+v", live)
	}
}

func TestSubscriptionUpdatedWithoutIdentityIsLoggedSkip(t *testing.T) {
	f := newWebhookFixture(t)

	object := stripeSubObject("sub_orphan", uuid.New(), "price_monthly")
	object["metadata"] = map[string]string{}
	event := newEvent(t, stripe.EventTypeCustomerSubscriptionUpdated, object)
	if err := f.svc.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("identity miss must be acknowledged, got %v", err)
	}
	if f.billingRepo.byStripeID["sub_orphan"] != nil {
		t.Fatal("no row must be written without identity")
	}
}

func TestSubscriptionDeletedSoftCancels(t *testing.T) {
	f := newWebhookFixture(t)
	userID := uuid.New()

	create := newEvent(t, stripe.EventTypeCustomerSubscriptionUpdated, stripeSubObject("sub_bye", userID, "price_monthly"))
	if err := f.svc.HandleEvent(context.Background(), create); err != nil {
		t.Fatalf("seed: %v", err)
	}

	deleted := newEvent(t, stripe.EventTypeCustomerSubscriptionDeleted, stripeSubObject("sub_bye", userID, "price_monthly"))
	if err := f.svc.HandleEvent(context.Background(), deleted); err != nil {
		t.Fatalf("HandleEvent: %v", err)
	}

	stored := f.billingRepo.byStripeID["sub_bye"]
	if !stored.Cancelled || stored.CancellationReason == nil || *stored.CancellationReason != "stripe subscription deleted" {
		t.Fatalf("not soft-cancelled: %+v", stored)
	}

	// Unknown subscription deletion is acknowledged.
	unknown := newEvent(t, stripe.EventTypeCustomerSubscriptionDeleted, stripeSubObject("sub_ghost", userID, "price_monthly"))
	if err := f.svc.HandleEvent(context.Background(), unknown); err != nil {
		t.Fatalf("unknown deletion must be acknowledged, got %v", err)
	}
}

func invoiceObject(invoiceID, subscriptionID string, amountPaid, amountDue int64) map[string]any {
	return map[string]any{
		"id":           invoiceID,
		"subscription": subscriptionID,
		"amount_paid":  amountPaid,
		"amount_due":   amountDue,
	}
}

func TestInvoicePaidUpsertsPaymentOnce(t *testing.T) {
	f := newWebhookFixture(t)
	userID := uuid.New()

	seed := newEvent(t, stripe.EventTypeCustomerSubscriptionUpdated, stripeSubObject("sub_inv", userID, "price_monthly"))
	if err := f.svc.HandleEvent(context.Background(), seed); err != nil {
		t.Fatalf("seed: %v", err)
	}
	f.billingRepo.byStripeID["sub_inv"].Status = enums.SubscriptionStatusPastDue

	paid := newEvent(t, stripe.EventTypeInvoicePaid, invoiceObject("in_1", "sub_inv", 2999, 0))
	if err := f.svc.HandleEvent(context.Background(), paid); err != nil {
		t.Fatalf("invoice.paid: %v", err)
	}
	// Redelivery.
	if err := f.svc.HandleEvent(context.Background(), paid); err != nil {
		t.Fatalf("invoice.paid redelivery: %v", err)
	}

	if len(f.billingRepo.payments) != 1 {
		t.Fatalf("payments = %d, want 1", len(f.billingRepo.payments))
	}
	payment := f.billingRepo.payments["in_1"]
	if payment.AmountCents != 2999 || payment.Status != enums.PaymentRecordStatusSucceeded {
		t.Fatalf("payment = %+v", payment)
	}
	if f.billingRepo.byStripeID["sub_inv"].Status != enums.SubscriptionStatusActive {
		t.Fatal("successful invoice must restore active status")
	}
}

func TestInvoicePaymentFailedMarksPastDue(t *testing.T) {
	f := newWebhookFixture(t)
	userID := uuid.New()

	seed := newEvent(t, stripe.EventTypeCustomerSubscriptionUpdated, stripeSubObject("sub_fail", userID, "price_monthly"))
	if err := f.svc.HandleEvent(context.Background(), seed); err != nil {
		t.Fatalf("seed: %v", err)
	}

	failed := newEvent(t, stripe.EventTypeInvoicePaymentFailed, invoiceObject("in_2", "sub_fail", 0, 2999))
	if err := f.svc.HandleEvent(context.Background(), failed); err != nil {
		t.Fatalf("invoice.payment_failed: %v", err)
	}

	payment := f.billingRepo.payments["in_2"]
	if payment == nil || payment.Status != enums.PaymentRecordStatusFailed || payment.AmountCents != 2999 {
		t.Fatalf("payment = %+v", payment)
	}
	if f.billingRepo.byStripeID["sub_fail"].Status != enums.SubscriptionStatusPastDue {
		t.Fatal("failed invoice must mark subscription past_due")
	}
}

func TestLateInvoiceDoesNotReviveCancelledSubscription(t *testing.T) {
	f := newWebhookFixture(t)
	userID := uuid.New()

	seed := newEvent(t, stripe.EventTypeCustomerSubscriptionUpdated, stripeSubObject("sub_late", userID, "price_monthly"))
	if err := f.svc.HandleEvent(context.Background(), seed); err != nil {
		t.Fatalf("seed: %v", err)
	}
	deleted := newEvent(t, stripe.EventTypeCustomerSubscriptionDeleted, stripeSubObject("sub_late", userID, "price_monthly"))
	if err := f.svc.HandleEvent(context.Background(), deleted); err != nil {
		t.Fatalf("delete: %v", err)
	}

	// An invoice delivered after the deletion lands on the payment ledger
	// but leaves the soft-cancelled row alone.
	paid := newEvent(t, stripe.EventTypeInvoicePaid, invoiceObject("in_late", "sub_late", 2999, 0))
	if err := f.svc.HandleEvent(context.Background(), paid); err != nil {
		t.Fatalf("late invoice.paid: %v", err)
	}

	stored := f.billingRepo.byStripeID["sub_late"]
	if !stored.Cancelled || stored.Status != enums.SubscriptionStatusCanceled {
		t.Fatalf("late invoice revived subscription: %+v", stored)
	}
	payment := f.billingRepo.payments["in_late"]
	if payment == nil || payment.Status != enums.PaymentRecordStatusSucceeded {
		t.Fatalf("payment not recorded: %+v", payment)
	}
}

func TestInvoiceForUnknownSubscriptionIsLoggedSkip(t *testing.T) {
	f := newWebhookFixture(t)

	event := newEvent(t, stripe.EventTypeInvoicePaid, invoiceObject("in_3", "sub_nowhere", 2999, 0))
	if err := f.svc.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("lookup miss must be acknowledged, got %v", err)
	}
	if len(f.billingRepo.payments) != 0 {
		t.Fatal("no payment row for unknown subscription")
	}
}

func TestPaymentIntentFailedLeavesBookingStatus(t *testing.T) {
	f := newWebhookFixture(t)
	intentID := "pi_bad"
	booking := &models.Booking{
		Status:         enums.BookingStatusPendingPayment,
		PaymentStatus:  enums.PaymentStatusPending,
		StripeIntentID: &intentID,
	}
	_ = f.bookingRepo.CreateBooking(context.Background(), booking)

	event := newEvent(t, stripe.EventTypePaymentIntentPaymentFailed, map[string]any{"id": intentID})
	if err := f.svc.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("HandleEvent: %v", err)
	}

	stored := f.bookingRepo.bookings[booking.ID]
	if stored.PaymentStatus != enums.PaymentStatusFailed {
		t.Fatalf("payment status = %s, want failed", stored.PaymentStatus)
	}
	if stored.Status != enums.BookingStatusPendingPayment {
		t.Fatalf("booking status must be untouched, got %s", stored.Status)
	}
}

func TestPaymentIntentFailedNeverRegressesPaidBooking(t *testing.T) {
	f := newWebhookFixture(t)
	intentID := "pi_late_failure"
	paidAt := fixedNow.Add(-time.Hour)
	booking := &models.Booking{
		Status:         enums.BookingStatusConfirmed,
		PaymentStatus:  enums.PaymentStatusPaid,
		StripeIntentID: &intentID,
		PaidAt:         &paidAt,
	}
	_ = f.bookingRepo.CreateBooking(context.Background(), booking)

	event := newEvent(t, stripe.EventTypePaymentIntentPaymentFailed, map[string]any{"id": intentID})
	if err := f.svc.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("HandleEvent: %v", err)
	}

	stored := f.bookingRepo.bookings[booking.ID]
	if stored.PaymentStatus != enums.PaymentStatusPaid || stored.Status != enums.BookingStatusConfirmed {
		t.Fatalf("stale failure regressed booking: %+v", stored)
	}
}

func TestPaymentIntentSucceededConfirmsBooking(t *testing.T) {
	f := newWebhookFixture(t)
	intentID := "pi_ok"
	booking := &models.Booking{
		Status:         enums.BookingStatusPendingPayment,
		PaymentStatus:  enums.PaymentStatusPending,
		StripeIntentID: &intentID,
	}
	_ = f.bookingRepo.CreateBooking(context.Background(), booking)

	event := newEvent(t, stripe.EventTypePaymentIntentSucceeded, map[string]any{"id": intentID})
	if err := f.svc.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("HandleEvent: %v", err)
	}

	stored := f.bookingRepo.bookings[booking.ID]
	if stored.Status != enums.BookingStatusConfirmed || stored.PaymentStatus != enums.PaymentStatusPaid {
		t.Fatalf("booking not reconciled: %+v", stored)
	}
}

func TestCheckoutSubscriptionContextFetchesAndSyncs(t *testing.T) {
	f := newWebhookFixture(t)
	userID := uuid.New()

	f.stripe.subs["sub_from_session"] = &stripe.Subscription{
		ID:       "sub_from_session",
		Status:   stripe.SubscriptionStatusActive,
		Customer: &stripe.Customer{ID: "cus_9"},
		Metadata: map[string]string{"user_id": userID.String(), "plan_id": "price_monthly"},
		Items: &stripe.SubscriptionItemList{
			Data: []*stripe.SubscriptionItem{
				{Price: &stripe.Price{ID: "price_monthly"}, CurrentPeriodStart: 1767225600, CurrentPeriodEnd: 1769904000},
			},
		},
	}

	session := map[string]any{
		"id":           "cs_sub",
		"metadata":     map[string]string{"context": "subscription", "user_id": userID.String()},
		"subscription": map[string]any{"id": "sub_from_session"},
	}
	event := newEvent(t, stripe.EventTypeCheckoutSessionCompleted, session)
	if err := f.svc.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("HandleEvent: %v", err)
	}

	stored := f.billingRepo.byStripeID["sub_from_session"]
	if stored == nil || stored.UserID != userID || stored.Status != enums.SubscriptionStatusActive {
		t.Fatalf("subscription not synced: %+v", stored)
	}
}
