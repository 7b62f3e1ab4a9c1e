package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/beateur/ninowash-backend/pkg/enums"
)

// LogisticSlot is a provider-defined date and half-open time window offered
// for pickup or delivery. Slots are immutable once a booking references them.
type LogisticSlot struct {
	ID        uuid.UUID      `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	Role      enums.SlotRole `gorm:"column:role;not null;index:idx_logistic_slots_role_date"`
	Date      time.Time      `gorm:"column:date;type:date;not null;index:idx_logistic_slots_role_date"`
	StartTime string         `gorm:"column:start_time;not null"`
	EndTime   string         `gorm:"column:end_time;not null"`
	Open      bool           `gorm:"column:open;not null;default:true"`
	CreatedAt time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}
