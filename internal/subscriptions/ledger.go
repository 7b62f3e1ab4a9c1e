package subscriptions

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/beateur/ninowash-backend/internal/billing"
	"github.com/beateur/ninowash-backend/pkg/db/models"
	pkgerrors "github.com/beateur/ninowash-backend/pkg/errors"
	"github.com/beateur/ninowash-backend/pkg/logger"
)

// Ledger guards the invariant that a user has at most one live (cancelled =
// false) subscription row. All writes happen inside the caller's transaction
// so the soft-cancel and the upsert land or fail together.
type Ledger struct {
	repo billing.Repository
	logg *logger.Logger

	now func() time.Time
}

// NewLedger builds the subscription ledger.
func NewLedger(repo billing.Repository, logg *logger.Logger) (*Ledger, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "billing repo required")
	}
	if logg == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger required")
	}
	return &Ledger{repo: repo, logg: logg, now: time.Now}, nil
}

// ReplaceActive upserts the subscription and soft-cancels any other live row
// the user holds. Called with the provider's latest view of a subscription
// that should now be the user's current one.
func (l *Ledger) ReplaceActive(ctx context.Context, tx *gorm.DB, sub *models.Subscription) error {
	if sub == nil {
		return pkgerrors.New(pkgerrors.CodeInternal, "subscription is nil")
	}
	repo := l.repo.WithTx(tx)

	others, err := repo.ListLiveSubscriptionsByUser(ctx, sub.UserID, sub.StripeSubscriptionID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list live subscriptions")
	}
	now := l.now()
	for i := range others {
		stale := &others[i]
		reason := fmt.Sprintf("superseded by %s", sub.StripeSubscriptionID)
		stale.Cancelled = true
		stale.CancelledAt = &now
		stale.CancellationReason = &reason
		if err := repo.UpdateSubscription(ctx, stale); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "soft-cancel superseded subscription")
		}
		logCtx := l.logg.WithFields(ctx, map[string]any{
			"user_id":         sub.UserID.String(),
			"superseded":      stale.StripeSubscriptionID,
			"replacement":     sub.StripeSubscriptionID,
			"superseded_plan": stale.PlanID,
		})
		l.logg.Info(logCtx, "soft-cancelled superseded subscription")
	}

	stored, err := repo.FindSubscriptionByStripeID(ctx, sub.StripeSubscriptionID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "find subscription")
	}
	if stored == nil {
		if err := repo.CreateSubscription(ctx, sub); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert subscription")
		}
		return nil
	}

	stored.PlanID = sub.PlanID
	stored.Status = sub.Status
	stored.StripeCustomerID = sub.StripeCustomerID
	stored.CurrentPeriodStart = sub.CurrentPeriodStart
	stored.CurrentPeriodEnd = sub.CurrentPeriodEnd
	stored.CancelAtPeriodEnd = sub.CancelAtPeriodEnd
	stored.Cancelled = sub.Cancelled
	stored.CancelledAt = sub.CancelledAt
	stored.CancellationReason = sub.CancellationReason
	if err := repo.UpdateSubscription(ctx, stored); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update subscription")
	}
	*sub = *stored
	return nil
}

// SoftCancel marks the subscription row identified by its Stripe ID as
// cancelled with the given reason. Missing rows are reported as (false, nil)
// so webhook handlers can log and skip.
func (l *Ledger) SoftCancel(ctx context.Context, tx *gorm.DB, stripeSubscriptionID, reason string) (bool, error) {
	repo := l.repo.WithTx(tx)
	stored, err := repo.FindSubscriptionByStripeID(ctx, stripeSubscriptionID)
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "find subscription")
	}
	if stored == nil {
		return false, nil
	}
	if stored.Cancelled {
		return true, nil
	}

	now := l.now()
	stored.Cancelled = true
	stored.CancelledAt = &now
	stored.CancellationReason = &reason
	stored.Status = mapStripeStatus("canceled")
	if err := repo.UpdateSubscription(ctx, stored); err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "soft-cancel subscription")
	}
	return true, nil
}
