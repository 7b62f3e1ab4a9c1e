package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/beateur/ninowash-backend/pkg/enums"
)

// ServiceOffering is a bookable laundry service from the catalog.
type ServiceOffering struct {
	ID         uuid.UUID          `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	Name       string             `gorm:"column:name;not null"`
	Class      enums.ServiceClass `gorm:"column:class;not null;default:'standard'"`
	PriceCents int                `gorm:"column:price_cents;not null"`
	Active     bool               `gorm:"column:active;not null;default:true"`
	CreatedAt  time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}
