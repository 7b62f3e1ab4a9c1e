package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/beateur/ninowash-backend/pkg/enums"
)

// Booking is a single customer order for pickup, processing and delivery.
//
// Two invariants are enforced by the command handler and checked by tests:
// exactly one of (UserID, GuestContact) identifies the owner, and exactly one
// of (slot pair, legacy date+time range) carries the schedule.
type Booking struct {
	ID uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	// Seq feeds the human-facing booking number, assigned on insert.
	Seq    int64  `gorm:"column:seq;autoIncrement;uniqueIndex"`
	Number string `gorm:"column:number;uniqueIndex"`

	Status        enums.BookingStatus `gorm:"column:status;not null;default:'pending'"`
	PaymentStatus enums.PaymentStatus `gorm:"column:payment_status;not null;default:'pending'"`

	UserID       *uuid.UUID      `gorm:"column:user_id;type:uuid;index"`
	GuestContact json.RawMessage `gorm:"column:guest_contact;type:jsonb"`

	PickupAddressID      *uuid.UUID      `gorm:"column:pickup_address_id;type:uuid"`
	DeliveryAddressID    *uuid.UUID      `gorm:"column:delivery_address_id;type:uuid"`
	GuestPickupAddress   json.RawMessage `gorm:"column:guest_pickup_address;type:jsonb"`
	GuestDeliveryAddress json.RawMessage `gorm:"column:guest_delivery_address;type:jsonb"`

	PickupSlotID   *uuid.UUID `gorm:"column:pickup_slot_id;type:uuid"`
	DeliverySlotID *uuid.UUID `gorm:"column:delivery_slot_id;type:uuid"`
	// Legacy scheduling fields kept for bookings created before slots existed.
	PickupDate      *time.Time `gorm:"column:pickup_date;type:date"`
	PickupTimeRange *string    `gorm:"column:pickup_time_range"`

	TotalCents  int             `gorm:"column:total_cents;not null;default:0"`
	TotalAmount decimal.Decimal `gorm:"column:total_amount;type:numeric(10,2);not null;default:0"`

	StripeSessionID *string `gorm:"column:stripe_session_id"`
	StripeIntentID  *string `gorm:"column:stripe_intent_id"`

	Instructions       *string    `gorm:"column:instructions"`
	CancellationReason *string    `gorm:"column:cancellation_reason"`
	CancelledAt        *time.Time `gorm:"column:cancelled_at"`
	PaidAt             *time.Time `gorm:"column:paid_at"`

	Items []BookingItem `gorm:"foreignKey:BookingID"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// UsesSlots reports whether the booking is scheduled by slot pair rather than
// the legacy free-text date/time fields.
func (b *Booking) UsesSlots() bool {
	return b.PickupSlotID != nil && b.DeliverySlotID != nil
}

// IsGuest reports whether the booking is owned by an embedded guest contact.
func (b *Booking) IsGuest() bool {
	return b.UserID == nil
}
