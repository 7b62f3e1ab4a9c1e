package enums

// BookingStatus tracks a booking through pickup, processing and delivery.
type BookingStatus string

const (
	BookingStatusPending        BookingStatus = "pending"
	BookingStatusPendingPayment BookingStatus = "pending_payment"
	BookingStatusConfirmed      BookingStatus = "confirmed"
	BookingStatusPickedUp       BookingStatus = "picked_up"
	BookingStatusInProgress     BookingStatus = "in_progress"
	BookingStatusReady          BookingStatus = "ready"
	BookingStatusDelivered      BookingStatus = "delivered"
	BookingStatusCancelled      BookingStatus = "cancelled"
	// BookingStatusPastDue marks a payment problem on an otherwise confirmed
	// recurring relationship. It is not a terminal state.
	BookingStatusPastDue BookingStatus = "past_due"
)

var validBookingStatuses = []BookingStatus{
	BookingStatusPending,
	BookingStatusPendingPayment,
	BookingStatusConfirmed,
	BookingStatusPickedUp,
	BookingStatusInProgress,
	BookingStatusReady,
	BookingStatusDelivered,
	BookingStatusCancelled,
	BookingStatusPastDue,
}

// String implements fmt.Stringer.
func (s BookingStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is known.
func (s BookingStatus) IsValid() bool {
	for _, candidate := range validBookingStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}
