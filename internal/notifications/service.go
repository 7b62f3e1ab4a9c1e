package notifications

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/beateur/ninowash-backend/pkg/enums"
	pkgerrors "github.com/beateur/ninowash-backend/pkg/errors"
	"github.com/beateur/ninowash-backend/pkg/outbox"
)

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// PaymentLinkEmail asks the mailer to send a checkout link for an unpaid
// booking. The link itself may be created later by the consumer when empty.
type PaymentLinkEmail struct {
	BookingID     uuid.UUID `json:"booking_id"`
	BookingNumber string    `json:"booking_number"`
	Email         string    `json:"email"`
	AmountCents   int       `json:"amount_cents"`
	CheckoutURL   string    `json:"checkout_url,omitempty"`
}

// BookingConfirmedEmail notifies the customer that payment cleared.
type BookingConfirmedEmail struct {
	BookingID     uuid.UUID  `json:"booking_id"`
	BookingNumber string     `json:"booking_number"`
	Email         string     `json:"email,omitempty"`
	UserID        *uuid.UUID `json:"user_id,omitempty"`
}

// Service queues notification events on the transactional outbox. Delivery is
// the consumer's job.
type Service struct {
	outbox outboxPublisher
}

// NewService builds the notification enqueuer.
func NewService(publisher outboxPublisher) (*Service, error) {
	if publisher == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "outbox publisher required")
	}
	return &Service{outbox: publisher}, nil
}

// EnqueuePaymentLink stores a payment link email event in the caller's
// transaction.
func (s *Service) EnqueuePaymentLink(ctx context.Context, tx *gorm.DB, msg PaymentLinkEmail) error {
	if msg.Email == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "recipient email required")
	}
	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.OutboxEventPaymentLinkEmail,
		AggregateType: enums.OutboxAggregateNotification,
		AggregateID:   msg.BookingID,
		Data:          msg,
	})
}

// EnqueueBookingConfirmed stores a confirmation email event in the caller's
// transaction.
func (s *Service) EnqueueBookingConfirmed(ctx context.Context, tx *gorm.DB, msg BookingConfirmedEmail) error {
	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.OutboxEventBookingConfirmed,
		AggregateType: enums.OutboxAggregateNotification,
		AggregateID:   msg.BookingID,
		Data:          msg,
	})
}
