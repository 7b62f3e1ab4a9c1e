package enums

// OutboxEventType names the domain events relayed through the outbox.
type OutboxEventType string

const (
	OutboxEventBookingCreated   OutboxEventType = "booking.created"
	OutboxEventBookingConfirmed OutboxEventType = "booking.confirmed"
	OutboxEventBookingCancelled OutboxEventType = "booking.cancelled"
	OutboxEventPaymentLinkEmail OutboxEventType = "notification.payment_link_email"
)

// OutboxAggregateType names the aggregate an outbox event belongs to.
type OutboxAggregateType string

const (
	OutboxAggregateBooking      OutboxAggregateType = "booking"
	OutboxAggregateSubscription OutboxAggregateType = "subscription"
	OutboxAggregateNotification OutboxAggregateType = "notification"
)

// String implements fmt.Stringer.
func (t OutboxEventType) String() string {
	return string(t)
}

// String implements fmt.Stringer.
func (t OutboxAggregateType) String() string {
	return string(t)
}
