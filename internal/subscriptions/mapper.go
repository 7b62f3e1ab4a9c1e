package subscriptions

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"

	"github.com/beateur/ninowash-backend/pkg/db/models"
	"github.com/beateur/ninowash-backend/pkg/enums"
	pkgerrors "github.com/beateur/ninowash-backend/pkg/errors"
)

// Metadata keys stamped on Stripe subscriptions at checkout time.
const (
	metadataUserIDKey = "user_id"
	metadataPlanIDKey = "plan_id"
)

// BuildFromStripe maps a Stripe subscription into the canonical model.
func BuildFromStripe(stripeSub *stripe.Subscription, userID uuid.UUID, planID string) (*models.Subscription, error) {
	if stripeSub == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "stripe subscription is nil")
	}
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	if planID == "" {
		planID = determinePriceID(stripeSub)
	}

	target := &models.Subscription{
		UserID:               userID,
		PlanID:               planID,
		StripeSubscriptionID: stripeSub.ID,
		StripeCustomerID:     customerID(stripeSub),
	}
	if err := ApplyStripe(target, stripeSub); err != nil {
		return nil, err
	}
	return target, nil
}

// ApplyStripe refreshes the mutable fields of a stored subscription with the
// provider's latest view. Identity fields are never overwritten.
func ApplyStripe(target *models.Subscription, stripeSub *stripe.Subscription) error {
	if target == nil {
		return pkgerrors.New(pkgerrors.CodeInternal, "target subscription is nil")
	}
	if stripeSub == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "stripe subscription is nil")
	}

	target.Status = mapStripeStatus(stripeSub.Status)
	if priceID := determinePriceID(stripeSub); priceID != "" {
		target.PlanID = priceID
	}
	if id := customerID(stripeSub); id != "" {
		target.StripeCustomerID = id
	}

	startTS, endTS := periodFromSubscription(stripeSub)
	target.CurrentPeriodStart = toTimePtr(startTS)
	target.CurrentPeriodEnd = toTimePtr(endTS)
	target.CancelAtPeriodEnd = stripeSub.CancelAtPeriodEnd
	return nil
}

// UserIDFromMetadata extracts the user ID stamped at checkout time.
func UserIDFromMetadata(metadata map[string]string) (uuid.UUID, error) {
	if metadata == nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "subscription metadata is required")
	}
	raw, ok := metadata[metadataUserIDKey]
	if !ok || strings.TrimSpace(raw) == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "user_id missing from metadata")
	}
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid user_id metadata")
	}
	return id, nil
}

// PlanIDFromMetadata extracts the plan stamped at checkout time, empty when
// absent.
func PlanIDFromMetadata(metadata map[string]string) string {
	return strings.TrimSpace(metadata[metadataPlanIDKey])
}

// IsEntitledStatus reports whether the status grants access to subscriber
// perks. past_due keeps access during the dunning window.
func IsEntitledStatus(status enums.SubscriptionStatus) bool {
	switch status {
	case enums.SubscriptionStatusActive, enums.SubscriptionStatusTrialing, enums.SubscriptionStatusPastDue:
		return true
	default:
		return false
	}
}

func mapStripeStatus(raw stripe.SubscriptionStatus) enums.SubscriptionStatus {
	mapped := enums.SubscriptionStatus(raw)
	if mapped.IsValid() {
		return mapped
	}
	return enums.SubscriptionStatusActive
}

func determinePriceID(sub *stripe.Subscription) string {
	if sub == nil || sub.Items == nil || len(sub.Items.Data) == 0 {
		return ""
	}
	if sub.Items.Data[0].Price != nil {
		return sub.Items.Data[0].Price.ID
	}
	return ""
}

func customerID(sub *stripe.Subscription) string {
	if sub == nil || sub.Customer == nil {
		return ""
	}
	return sub.Customer.ID
}

func periodFromSubscription(sub *stripe.Subscription) (int64, int64) {
	if sub == nil || sub.Items == nil || len(sub.Items.Data) == 0 {
		return 0, 0
	}
	item := sub.Items.Data[0]
	return item.CurrentPeriodStart, item.CurrentPeriodEnd
}

func toTimePtr(ts int64) *time.Time {
	if ts == 0 {
		return nil
	}
	t := time.Unix(ts, 0).UTC()
	return &t
}
