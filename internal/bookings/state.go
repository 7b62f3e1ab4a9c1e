package bookings

import (
	"github.com/beateur/ninowash-backend/pkg/enums"
)

// allowedTransitions is the authoritative booking state machine. Anything not
// listed is rejected with a state conflict.
var allowedTransitions = map[enums.BookingStatus][]enums.BookingStatus{
	enums.BookingStatusPending: {
		enums.BookingStatusPendingPayment,
		enums.BookingStatusConfirmed,
		enums.BookingStatusCancelled,
	},
	enums.BookingStatusPendingPayment: {
		enums.BookingStatusConfirmed,
		enums.BookingStatusCancelled,
	},
	enums.BookingStatusConfirmed: {
		enums.BookingStatusPickedUp,
		enums.BookingStatusPastDue,
		enums.BookingStatusCancelled,
	},
	enums.BookingStatusPastDue: {
		enums.BookingStatusConfirmed,
		enums.BookingStatusCancelled,
	},
	enums.BookingStatusPickedUp: {
		enums.BookingStatusInProgress,
	},
	enums.BookingStatusInProgress: {
		enums.BookingStatusReady,
	},
	enums.BookingStatusReady: {
		enums.BookingStatusDelivered,
	},
	// delivered and cancelled are terminal.
	enums.BookingStatusDelivered: {},
	enums.BookingStatusCancelled: {},
}

// CanTransition reports whether the state machine allows moving a booking
// from one status to another.
func CanTransition(from, to enums.BookingStatus) bool {
	for _, candidate := range allowedTransitions[from] {
		if candidate == to {
			return true
		}
	}
	return false
}

// IsCancellable reports whether a booking in the given status may still be
// cancelled by the customer. Once the laundry is picked up it cannot.
func IsCancellable(status enums.BookingStatus) bool {
	return CanTransition(status, enums.BookingStatusCancelled)
}

// IsModifiable reports whether the customer may still edit the booking's
// schedule and instructions. A booking mid-checkout is locked; the caller
// additionally checks that the pickup date has not passed.
func IsModifiable(status enums.BookingStatus) bool {
	switch status {
	case enums.BookingStatusPending, enums.BookingStatusConfirmed:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether no further transitions exist for the status.
func IsTerminal(status enums.BookingStatus) bool {
	return len(allowedTransitions[status]) == 0
}
