package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/beateur/ninowash-backend/pkg/enums"
)

// Subscription persists Stripe subscription state per user. Rows are never
// hard-deleted; superseded or deleted subscriptions are soft-cancelled so
// billing history survives. For any user at most one row may have
// cancelled=false; the ledger enforces this on every insert.
type Subscription struct {
	ID     uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	UserID uuid.UUID `gorm:"column:user_id;type:uuid;not null;index"`
	PlanID string    `gorm:"column:plan_id;not null"`

	StripeSubscriptionID string `gorm:"column:stripe_subscription_id;not null;uniqueIndex"`
	StripeCustomerID     string `gorm:"column:stripe_customer_id"`

	Status             enums.SubscriptionStatus `gorm:"column:status;not null;default:'active'"`
	CurrentPeriodStart *time.Time               `gorm:"column:current_period_start"`
	CurrentPeriodEnd   *time.Time               `gorm:"column:current_period_end"`
	CancelAtPeriodEnd  bool                     `gorm:"column:cancel_at_period_end;not null;default:false"`

	Cancelled          bool       `gorm:"column:cancelled;not null;default:false;index"`
	CancelledAt        *time.Time `gorm:"column:cancelled_at"`
	CancellationReason *string    `gorm:"column:cancellation_reason"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
