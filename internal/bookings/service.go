package bookings

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/beateur/ninowash-backend/internal/notifications"
	"github.com/beateur/ninowash-backend/internal/scheduling"
	"github.com/beateur/ninowash-backend/pkg/config"
	"github.com/beateur/ninowash-backend/pkg/db/models"
	"github.com/beateur/ninowash-backend/pkg/enums"
	pkgerrors "github.com/beateur/ninowash-backend/pkg/errors"
	"github.com/beateur/ninowash-backend/pkg/logger"
	"github.com/beateur/ninowash-backend/pkg/outbox"
	"github.com/beateur/ninowash-backend/pkg/pagination"
	"github.com/beateur/ninowash-backend/pkg/types"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type paymentLinkNotifier interface {
	EnqueuePaymentLink(ctx context.Context, tx *gorm.DB, msg notifications.PaymentLinkEmail) error
}

// CheckoutStarter creates the hosted payment page for a booking.
type CheckoutStarter interface {
	StartBookingCheckout(ctx context.Context, booking *models.Booking) (sessionID, url string, err error)
}

// Actor identifies who is acting on a booking: an authenticated user or a
// guest proving ownership with the contact email.
type Actor struct {
	UserID     *uuid.UUID
	GuestEmail string
}

// ServiceParams carries the dependencies of the booking service.
type ServiceParams struct {
	Repo     Repository
	Slots    scheduling.Repository
	Tx       txRunner
	Outbox   outboxPublisher
	Notifier paymentLinkNotifier
	Checkout CheckoutStarter
	Logger   *logger.Logger
	Config   config.BookingConfig
}

// Service implements the booking command handler.
type Service struct {
	repo     Repository
	slots    scheduling.Repository
	tx       txRunner
	outbox   outboxPublisher
	notifier paymentLinkNotifier
	checkout CheckoutStarter
	logg     *logger.Logger
	cfg      config.BookingConfig

	now func() time.Time
}

// NewService validates dependencies and builds the booking service. The
// checkout starter is optional; without it bookings stay in pending_payment
// until a payment link is requested through another channel.
func NewService(params ServiceParams) (*Service, error) {
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "bookings repo required")
	}
	if params.Slots == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "slot repo required")
	}
	if params.Tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction runner required")
	}
	if params.Outbox == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "outbox publisher required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger required")
	}
	return &Service{
		repo:     params.Repo,
		slots:    params.Slots,
		tx:       params.Tx,
		outbox:   params.Outbox,
		notifier: params.Notifier,
		checkout: params.Checkout,
		logg:     params.Logger,
		cfg:      params.Config,
		now:      time.Now,
	}, nil
}

// BookingCreatedEvent is emitted when a booking row is persisted.
type BookingCreatedEvent struct {
	BookingID  uuid.UUID           `json:"booking_id"`
	Number     string              `json:"number"`
	Status     enums.BookingStatus `json:"status"`
	TotalCents int                 `json:"total_cents"`
	Guest      bool                `json:"guest"`
}

// BookingCancelledEvent is emitted when a booking is cancelled.
type BookingCancelledEvent struct {
	BookingID uuid.UUID `json:"booking_id"`
	Number    string    `json:"number"`
	Reason    string    `json:"reason"`
}

// Create persists a new booking in pending_payment with prices captured from
// the live catalog. Slot-scheduled bookings are checked against the lead time
// rules before anything is written.
func (s *Service) Create(ctx context.Context, input CreateBookingInput) (*models.Booking, error) {
	if len(input.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one service item required")
	}
	if input.Schedule.Slots == nil && input.Schedule.Legacy == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "scheduling information required")
	}
	if input.Identity.UserID == nil && input.Identity.Guest == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "booking owner required")
	}

	offerings, err := s.loadOfferings(ctx, input.Items)
	if err != nil {
		return nil, err
	}
	class := dominantClass(offerings)

	items := make([]models.BookingItem, 0, len(input.Items))
	totalCents := 0
	for _, line := range input.Items {
		offering := offerings[line.ServiceID]
		items = append(items, models.BookingItem{
			ServiceID:      line.ServiceID,
			Qty:            line.Qty,
			UnitPriceCents: offering.PriceCents,
		})
		totalCents += line.Qty * offering.PriceCents
	}

	booking := &models.Booking{
		Status:        enums.BookingStatusPendingPayment,
		PaymentStatus: enums.PaymentStatusPending,
		TotalCents:    totalCents,
		TotalAmount:   decimal.NewFromInt(int64(totalCents)).Div(decimal.NewFromInt(100)),
		Instructions:  input.Instructions,
		Items:         items,
	}

	if err := s.applyIdentity(booking, input); err != nil {
		return nil, err
	}
	if err := s.applySchedule(ctx, booking, input.Schedule, class); err != nil {
		return nil, err
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.CreateBooking(ctx, booking); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert booking")
		}
		booking.Number = FormatNumber(booking.Seq)
		if err := repo.SetNumber(ctx, booking.ID, booking.Number); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "assign booking number")
		}

		event := outbox.DomainEvent{
			EventType:     enums.OutboxEventBookingCreated,
			AggregateType: enums.OutboxAggregateBooking,
			AggregateID:   booking.ID,
			Actor:         actorRef(input.Identity),
			Data: BookingCreatedEvent{
				BookingID:  booking.ID,
				Number:     booking.Number,
				Status:     booking.Status,
				TotalCents: booking.TotalCents,
				Guest:      booking.IsGuest(),
			},
		}
		if err := s.outbox.Emit(ctx, tx, event); err != nil {
			return err
		}

		if s.notifier != nil && input.Identity.Guest != nil {
			msg := notifications.PaymentLinkEmail{
				BookingID:     booking.ID,
				BookingNumber: booking.Number,
				Email:         input.Identity.Guest.Email,
				AmountCents:   booking.TotalCents,
			}
			if err := s.notifier.EnqueuePaymentLink(ctx, tx, msg); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logCtx := s.logg.WithBookingID(ctx, booking.ID.String())
	s.logg.Info(logCtx, "booking created")
	return booking, nil
}

// StartCheckout creates the hosted payment page and records the session ID on
// the booking. Calling it again before payment replaces the session.
func (s *Service) StartCheckout(ctx context.Context, bookingID uuid.UUID, actor Actor) (string, error) {
	if s.checkout == nil {
		return "", pkgerrors.New(pkgerrors.CodeInternal, "checkout not configured")
	}
	booking, err := s.authorizedBooking(ctx, bookingID, actor)
	if err != nil {
		return "", err
	}
	if booking.Status != enums.BookingStatusPending && booking.Status != enums.BookingStatusPendingPayment {
		return "", pkgerrors.New(pkgerrors.CodeStateConflict, "booking is not awaiting payment")
	}

	sessionID, url, err := s.checkout.StartBookingCheckout(ctx, booking)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create checkout session")
	}

	booking.StripeSessionID = &sessionID
	if err := s.repo.UpdateBooking(ctx, booking); err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store checkout session")
	}
	return url, nil
}

// Get returns a booking after an ownership check.
func (s *Service) Get(ctx context.Context, bookingID uuid.UUID, actor Actor) (*models.Booking, error) {
	return s.authorizedBooking(ctx, bookingID, actor)
}

// BookingPage is one cursor-paginated slice of a user's booking history.
type BookingPage struct {
	Bookings   []models.Booking `json:"bookings"`
	NextCursor string           `json:"next_cursor,omitempty"`
}

// List returns the authenticated user's bookings, newest first.
func (s *Service) List(ctx context.Context, userID uuid.UUID, params pagination.Params) (*BookingPage, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}

	limit := pagination.NormalizeLimit(params.Limit)
	rows, err := s.repo.ListByUser(ctx, userID, cursor, pagination.LimitWithBuffer(params.Limit))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list bookings")
	}

	page := &BookingPage{Bookings: rows}
	if len(rows) > limit {
		page.Bookings = rows[:limit]
		last := page.Bookings[limit-1]
		page.NextCursor = pagination.EncodeCursor(pagination.Cursor{
			CreatedAt: last.CreatedAt,
			ID:        last.ID,
		})
	}
	return page, nil
}

// Modify updates the schedule and instructions of a booking that has not been
// picked up yet.
func (s *Service) Modify(ctx context.Context, bookingID uuid.UUID, actor Actor, req ModifyBookingRequest) (*models.Booking, error) {
	booking, err := s.authorizedBooking(ctx, bookingID, actor)
	if err != nil {
		return nil, err
	}
	if !IsModifiable(booking.Status) {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "booking can no longer be modified")
	}
	if past, err := s.pickupInPast(ctx, booking); err != nil {
		return nil, err
	} else if past {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "pickup window already passed")
	}

	if req.HasScheduleChange() {
		schedule, err := req.NormalizeSchedule(s.now())
		if err != nil {
			return nil, err
		}
		class, err := s.bookingClass(ctx, booking)
		if err != nil {
			return nil, err
		}
		if err := s.applySchedule(ctx, booking, schedule, class); err != nil {
			return nil, err
		}
	}
	if req.Instructions != nil {
		booking.Instructions = req.Instructions
	}

	if err := s.repo.UpdateBooking(ctx, booking); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update booking")
	}
	return booking, nil
}

// Cancel moves a booking to cancelled with a mandatory reason. Cancelling an
// already cancelled booking is a no-op.
func (s *Service) Cancel(ctx context.Context, bookingID uuid.UUID, actor Actor, reason string) error {
	reason = strings.TrimSpace(reason)
	minLen := s.cfg.MinCancelReasonLen
	if minLen <= 0 {
		minLen = 10
	}
	if len(reason) < minLen {
		return pkgerrors.New(pkgerrors.CodeValidation, "cancellation reason too short")
	}

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		booking, err := repo.FindByID(ctx, bookingID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "booking not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load booking")
		}
		if err := checkOwnership(booking, actor); err != nil {
			return err
		}
		if booking.Status == enums.BookingStatusCancelled {
			return nil
		}
		if !IsCancellable(booking.Status) {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "booking can no longer be cancelled")
		}

		now := s.now()
		booking.Status = enums.BookingStatusCancelled
		booking.CancellationReason = &reason
		booking.CancelledAt = &now
		if err := repo.UpdateBooking(ctx, booking); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update booking")
		}

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.OutboxEventBookingCancelled,
			AggregateType: enums.OutboxAggregateBooking,
			AggregateID:   booking.ID,
			Actor:         actorRefFromActor(actor),
			Data: BookingCancelledEvent{
				BookingID: booking.ID,
				Number:    booking.Number,
				Reason:    reason,
			},
		})
	})
}

// Advance moves a booking along the operational pipeline, e.g. picked_up to
// in_progress. Used by staff tooling, never by customers.
func (s *Service) Advance(ctx context.Context, bookingID uuid.UUID, target enums.BookingStatus) (*models.Booking, error) {
	if !target.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown booking status")
	}
	booking, err := s.repo.FindByID(ctx, bookingID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "booking not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load booking")
	}
	if booking.Status == target {
		return booking, nil
	}
	if !CanTransition(booking.Status, target) {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "transition not allowed").
			WithDetails(map[string]string{"from": booking.Status.String(), "to": target.String()})
	}
	booking.Status = target
	if err := s.repo.UpdateBooking(ctx, booking); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update booking")
	}
	return booking, nil
}

func (s *Service) loadOfferings(ctx context.Context, items []ItemRequest) (map[uuid.UUID]models.ServiceOffering, error) {
	ids := make([]uuid.UUID, 0, len(items))
	seen := make(map[uuid.UUID]bool, len(items))
	for _, line := range items {
		if line.Qty < 1 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "item quantity must be at least 1")
		}
		if seen[line.ServiceID] {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "duplicate service item")
		}
		seen[line.ServiceID] = true
		ids = append(ids, line.ServiceID)
	}

	rows, err := s.repo.FindActiveServicesByIDs(ctx, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load services")
	}
	byID := make(map[uuid.UUID]models.ServiceOffering, len(rows))
	for _, row := range rows {
		byID[row.ID] = row
	}
	for _, id := range ids {
		if _, ok := byID[id]; !ok {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown or inactive service").
				WithDetails(map[string]string{"service_id": id.String()})
		}
	}
	return byID, nil
}

func (s *Service) applyIdentity(booking *models.Booking, input CreateBookingInput) error {
	if input.Identity.UserID != nil {
		booking.UserID = input.Identity.UserID
		booking.PickupAddressID = input.PickupAddressID
		booking.DeliveryAddressID = input.DeliveryAddressID
		return nil
	}

	contact, err := json.Marshal(input.Identity.Guest)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "marshal guest contact")
	}
	booking.GuestContact = contact

	pickup, err := json.Marshal(input.GuestPickupAddress)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "marshal pickup address")
	}
	delivery, err := json.Marshal(input.GuestDeliveryAddress)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "marshal delivery address")
	}
	booking.GuestPickupAddress = pickup
	booking.GuestDeliveryAddress = delivery
	return nil
}

// applySchedule validates the selected mode against the slot catalog and the
// lead time rules, then writes it onto the booking.
func (s *Service) applySchedule(ctx context.Context, booking *models.Booking, schedule ScheduleSelection, class enums.ServiceClass) error {
	if schedule.Legacy != nil {
		booking.PickupSlotID = nil
		booking.DeliverySlotID = nil
		booking.PickupDate = &schedule.Legacy.PickupDate
		booking.PickupTimeRange = &schedule.Legacy.PickupTimeRange
		return nil
	}

	pickup, err := s.loadSlot(ctx, schedule.Slots.PickupSlotID, enums.SlotRolePickup)
	if err != nil {
		return err
	}
	delivery, err := s.loadSlot(ctx, schedule.Slots.DeliverySlotID, enums.SlotRoleDelivery)
	if err != nil {
		return err
	}

	now := s.now()
	boundary, ok := scheduling.DeliveryEarliestDate(*pickup, class, now)
	if !ok {
		warnCtx := s.logg.WithFields(ctx, map[string]any{
			"slot_id":  pickup.ID,
			"end_time": pickup.EndTime,
		})
		s.logg.Warn(warnCtx, "pickup slot end time unparseable, using start of today as delivery boundary")
	}
	if !scheduling.SlotStartsAtOrAfter(*delivery, boundary) {
		return pkgerrors.New(pkgerrors.CodeValidation, "delivery slot violates the service lead time").
			WithDetails(map[string]string{"earliest": boundary.Format(time.RFC3339)})
	}

	booking.PickupSlotID = &pickup.ID
	booking.DeliverySlotID = &delivery.ID
	booking.PickupDate = nil
	booking.PickupTimeRange = nil
	return nil
}

func (s *Service) loadSlot(ctx context.Context, id uuid.UUID, role enums.SlotRole) (*models.LogisticSlot, error) {
	slot, err := s.slots.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown slot").
				WithDetails(map[string]string{"slot_id": id.String()})
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load slot")
	}
	if slot.Role != role {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "slot has the wrong role").
			WithDetails(map[string]string{"slot_id": id.String(), "want": role.String()})
	}
	if !slot.Open {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "slot is no longer open").
			WithDetails(map[string]string{"slot_id": id.String()})
	}
	return slot, nil
}

// bookingClass re-derives the service class from the captured items.
func (s *Service) bookingClass(ctx context.Context, booking *models.Booking) (enums.ServiceClass, error) {
	ids := make([]uuid.UUID, 0, len(booking.Items))
	for _, item := range booking.Items {
		ids = append(ids, item.ServiceID)
	}
	rows, err := s.repo.FindActiveServicesByIDs(ctx, ids)
	if err != nil {
		return enums.ServiceClassStandard, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load services")
	}
	byID := make(map[uuid.UUID]models.ServiceOffering, len(rows))
	for _, row := range rows {
		byID[row.ID] = row
	}
	return dominantClass(byID), nil
}

// pickupInPast reports whether the pickup day has started. Changes are only
// allowed while the pickup date is strictly in the future.
func (s *Service) pickupInPast(ctx context.Context, booking *models.Booking) (bool, error) {
	now := s.now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	if booking.UsesSlots() {
		slot, err := s.slots.FindByID(ctx, *booking.PickupSlotID)
		if err != nil {
			return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load pickup slot")
		}
		return !slot.Date.After(today), nil
	}
	if booking.PickupDate == nil {
		return false, nil
	}
	return !booking.PickupDate.After(today), nil
}

func (s *Service) authorizedBooking(ctx context.Context, bookingID uuid.UUID, actor Actor) (*models.Booking, error) {
	booking, err := s.repo.FindByID(ctx, bookingID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "booking not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load booking")
	}
	if err := checkOwnership(booking, actor); err != nil {
		return nil, err
	}
	return booking, nil
}

func checkOwnership(booking *models.Booking, actor Actor) error {
	if booking.UserID != nil {
		if actor.UserID == nil || *actor.UserID != *booking.UserID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "booking does not belong to user")
		}
		return nil
	}

	var contact types.GuestContact
	if err := json.Unmarshal(booking.GuestContact, &contact); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "decode guest contact")
	}
	if actor.GuestEmail == "" || !strings.EqualFold(actor.GuestEmail, contact.Email) {
		return pkgerrors.New(pkgerrors.CodeForbidden, "guest email does not match booking")
	}
	return nil
}

// dominantClass is express only when every selected offering is express. A
// single standard item pulls the whole booking back to the standard lead time,
// since the slowest item governs when the laundry can come back.
func dominantClass(offerings map[uuid.UUID]models.ServiceOffering) enums.ServiceClass {
	if len(offerings) == 0 {
		return enums.ServiceClassStandard
	}
	for _, offering := range offerings {
		if offering.Class != enums.ServiceClassExpress {
			return enums.ServiceClassStandard
		}
	}
	return enums.ServiceClassExpress
}

func actorRef(identity Identity) *outbox.ActorRef {
	if identity.UserID != nil {
		return &outbox.ActorRef{UserID: identity.UserID}
	}
	if identity.Guest != nil {
		return &outbox.ActorRef{GuestEmail: identity.Guest.Email}
	}
	return nil
}

func actorRefFromActor(actor Actor) *outbox.ActorRef {
	if actor.UserID != nil {
		return &outbox.ActorRef{UserID: actor.UserID}
	}
	if actor.GuestEmail != "" {
		return &outbox.ActorRef{GuestEmail: actor.GuestEmail}
	}
	return nil
}
