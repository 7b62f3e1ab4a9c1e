package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/beateur/ninowash-backend/pkg/enums"
)

// Payment records one provider invoice event, success or failure. Rows are
// upserted keyed by the provider invoice id so webhook redelivery never
// duplicates a financial record.
type Payment struct {
	ID              uuid.UUID                 `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	SubscriptionID  uuid.UUID                 `gorm:"column:subscription_id;type:uuid;not null;index"`
	StripeInvoiceID string                    `gorm:"column:stripe_invoice_id;not null;uniqueIndex"`
	AmountCents     int                       `gorm:"column:amount_cents;not null"`
	Status          enums.PaymentRecordStatus `gorm:"column:status;not null"`
	CreatedAt       time.Time                 `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time                 `gorm:"column:updated_at;autoUpdateTime"`
}
