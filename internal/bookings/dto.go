package bookings

import (
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	pkgerrors "github.com/beateur/ninowash-backend/pkg/errors"
	"github.com/beateur/ninowash-backend/pkg/types"
)

// timeRangePattern accepts 24h windows such as "09:00-12:00".
var timeRangePattern = regexp.MustCompile(`^([01]\d|2[0-3]):[0-5]\d-([01]\d|2[0-3]):[0-5]\d$`)

const legacyDateLayout = "2006-01-02"

// ItemRequest is one requested service line.
type ItemRequest struct {
	ServiceID uuid.UUID `json:"service_id" validate:"required"`
	Qty       int       `json:"qty" validate:"required,min=1"`
}

// CreateBookingRequest is the wire shape for booking creation. Scheduling and
// identity both come in two mutually exclusive flavors; Normalize resolves
// them into the typed variants the service consumes.
type CreateBookingRequest struct {
	Items []ItemRequest `json:"items" validate:"required,min=1,dive"`

	PickupSlotID   *uuid.UUID `json:"pickup_slot_id"`
	DeliverySlotID *uuid.UUID `json:"delivery_slot_id"`

	// Legacy scheduling, kept for clients that predate slots.
	PickupDate      *string `json:"pickup_date"`
	PickupTimeRange *string `json:"pickup_time_range"`

	GuestContact *types.GuestContact `json:"guest_contact"`

	PickupAddressID      *uuid.UUID             `json:"pickup_address_id"`
	DeliveryAddressID    *uuid.UUID             `json:"delivery_address_id"`
	GuestPickupAddress   *types.AddressSnapshot `json:"guest_pickup_address"`
	GuestDeliveryAddress *types.AddressSnapshot `json:"guest_delivery_address"`

	Instructions *string `json:"instructions"`
}

// SlotPair schedules a booking on provider-defined windows.
type SlotPair struct {
	PickupSlotID   uuid.UUID
	DeliverySlotID uuid.UUID
}

// LegacySchedule carries the free-text scheduling older clients still send.
type LegacySchedule struct {
	PickupDate      time.Time
	PickupTimeRange string
}

// ScheduleSelection holds exactly one scheduling mode.
type ScheduleSelection struct {
	Slots  *SlotPair
	Legacy *LegacySchedule
}

// Identity holds exactly one booking owner.
type Identity struct {
	UserID *uuid.UUID
	Guest  *types.GuestContact
}

// CreateBookingInput is the normalized service-level input.
type CreateBookingInput struct {
	Items    []ItemRequest
	Schedule ScheduleSelection
	Identity Identity

	PickupAddressID      *uuid.UUID
	DeliveryAddressID    *uuid.UUID
	GuestPickupAddress   *types.AddressSnapshot
	GuestDeliveryAddress *types.AddressSnapshot

	Instructions *string
}

// Normalize validates the request's sum types and produces the service input.
// The authenticated user ID, when present, wins over any guest contact.
func (r CreateBookingRequest) Normalize(userID *uuid.UUID, now time.Time) (CreateBookingInput, error) {
	input := CreateBookingInput{
		Items:                r.Items,
		PickupAddressID:      r.PickupAddressID,
		DeliveryAddressID:    r.DeliveryAddressID,
		GuestPickupAddress:   r.GuestPickupAddress,
		GuestDeliveryAddress: r.GuestDeliveryAddress,
		Instructions:         r.Instructions,
	}

	schedule, err := r.normalizeSchedule(now)
	if err != nil {
		return CreateBookingInput{}, err
	}
	input.Schedule = schedule

	identity, err := r.normalizeIdentity(userID)
	if err != nil {
		return CreateBookingInput{}, err
	}
	input.Identity = identity

	if err := r.checkAddresses(identity); err != nil {
		return CreateBookingInput{}, err
	}
	return input, nil
}

func (r CreateBookingRequest) normalizeSchedule(now time.Time) (ScheduleSelection, error) {
	hasSlots := r.PickupSlotID != nil || r.DeliverySlotID != nil
	hasLegacy := r.PickupDate != nil || r.PickupTimeRange != nil

	switch {
	case hasSlots && hasLegacy:
		return ScheduleSelection{}, pkgerrors.New(pkgerrors.CodeValidation, "choose slot scheduling or legacy date, not both")
	case hasSlots:
		if r.PickupSlotID == nil || r.DeliverySlotID == nil {
			return ScheduleSelection{}, pkgerrors.New(pkgerrors.CodeValidation, "pickup and delivery slots are both required")
		}
		return ScheduleSelection{Slots: &SlotPair{
			PickupSlotID:   *r.PickupSlotID,
			DeliverySlotID: *r.DeliverySlotID,
		}}, nil
	case hasLegacy:
		if r.PickupDate == nil || r.PickupTimeRange == nil {
			return ScheduleSelection{}, pkgerrors.New(pkgerrors.CodeValidation, "pickup date and time range are both required")
		}
		if !timeRangePattern.MatchString(*r.PickupTimeRange) {
			return ScheduleSelection{}, pkgerrors.New(pkgerrors.CodeValidation, "time range must look like 09:00-12:00")
		}
		date, err := time.Parse(legacyDateLayout, *r.PickupDate)
		if err != nil {
			return ScheduleSelection{}, pkgerrors.New(pkgerrors.CodeValidation, "pickup date must look like 2026-03-10")
		}
		tomorrow := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, 1)
		if date.Before(tomorrow) {
			return ScheduleSelection{}, pkgerrors.New(pkgerrors.CodeValidation, "pickup date must be tomorrow or later")
		}
		return ScheduleSelection{Legacy: &LegacySchedule{
			PickupDate:      date,
			PickupTimeRange: *r.PickupTimeRange,
		}}, nil
	default:
		return ScheduleSelection{}, pkgerrors.New(pkgerrors.CodeValidation, "scheduling information required")
	}
}

func (r CreateBookingRequest) normalizeIdentity(userID *uuid.UUID) (Identity, error) {
	if userID != nil && *userID != uuid.Nil {
		return Identity{UserID: userID}, nil
	}
	if r.GuestContact == nil {
		return Identity{}, pkgerrors.New(pkgerrors.CodeValidation, "guest contact required for anonymous bookings")
	}
	if err := r.GuestContact.Validate(); err != nil {
		return Identity{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid guest contact")
	}
	return Identity{Guest: r.GuestContact}, nil
}

func (r CreateBookingRequest) checkAddresses(identity Identity) error {
	if identity.Guest != nil {
		if r.GuestPickupAddress == nil || r.GuestDeliveryAddress == nil {
			return pkgerrors.New(pkgerrors.CodeValidation, "guest bookings require pickup and delivery addresses")
		}
		if err := r.GuestPickupAddress.Validate(); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid pickup address")
		}
		if err := r.GuestDeliveryAddress.Validate(); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid delivery address")
		}
		return nil
	}
	if r.PickupAddressID == nil || r.DeliveryAddressID == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "pickup and delivery address ids required")
	}
	return nil
}

// ModifyBookingRequest carries the fields a customer may still change before
// pickup. Nil fields are left untouched.
type ModifyBookingRequest struct {
	PickupSlotID    *uuid.UUID `json:"pickup_slot_id"`
	DeliverySlotID  *uuid.UUID `json:"delivery_slot_id"`
	PickupDate      *string    `json:"pickup_date"`
	PickupTimeRange *string    `json:"pickup_time_range"`
	Instructions    *string    `json:"instructions"`
}

// HasScheduleChange reports whether any scheduling field was supplied.
func (r ModifyBookingRequest) HasScheduleChange() bool {
	return r.PickupSlotID != nil || r.DeliverySlotID != nil || r.PickupDate != nil || r.PickupTimeRange != nil
}

// NormalizeSchedule resolves the modify request's scheduling fields the same
// way creation does. Call only when HasScheduleChange reports true.
func (r ModifyBookingRequest) NormalizeSchedule(now time.Time) (ScheduleSelection, error) {
	proxy := CreateBookingRequest{
		PickupSlotID:    r.PickupSlotID,
		DeliverySlotID:  r.DeliverySlotID,
		PickupDate:      r.PickupDate,
		PickupTimeRange: r.PickupTimeRange,
	}
	return proxy.normalizeSchedule(now)
}

// CancelBookingRequest carries the mandatory cancellation reason.
type CancelBookingRequest struct {
	Reason string `json:"reason" validate:"required"`
}

// TrimmedReason returns the reason with surrounding whitespace removed.
func (r CancelBookingRequest) TrimmedReason() string {
	return strings.TrimSpace(r.Reason)
}
