package models

import (
	"time"

	"github.com/google/uuid"
)

// BookingItem snapshots one service line within a booking. The unit price is
// captured at creation time and never re-derived from the live catalog, so
// historical totals stay intact when prices change.
type BookingItem struct {
	ID             uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	BookingID      uuid.UUID `gorm:"column:booking_id;type:uuid;not null;index"`
	ServiceID      uuid.UUID `gorm:"column:service_id;type:uuid;not null"`
	Qty            int       `gorm:"column:qty;not null"`
	UnitPriceCents int       `gorm:"column:unit_price_cents;not null"`
	CreatedAt      time.Time `gorm:"column:created_at;autoCreateTime"`
}
