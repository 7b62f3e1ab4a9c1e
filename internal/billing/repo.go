package billing

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/beateur/ninowash-backend/pkg/db/models"
)

// Repository handles subscription and payment persistence. Lookups by Stripe
// identifiers return (nil, nil) when no row exists so webhook branches can
// treat a miss as a logged skip rather than an error.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	CreateSubscription(ctx context.Context, subscription *models.Subscription) error
	UpdateSubscription(ctx context.Context, subscription *models.Subscription) error
	FindSubscriptionByStripeID(ctx context.Context, stripeSubscriptionID string) (*models.Subscription, error)
	FindLiveSubscriptionByUser(ctx context.Context, userID uuid.UUID) (*models.Subscription, error)
	ListLiveSubscriptionsByUser(ctx context.Context, userID uuid.UUID, excludeStripeID string) ([]models.Subscription, error)
	ListSubscriptionsByUser(ctx context.Context, userID uuid.UUID) ([]models.Subscription, error)

	UpsertPaymentByInvoiceID(ctx context.Context, payment *models.Payment) error
	ListPaymentsBySubscription(ctx context.Context, subscriptionID uuid.UUID) ([]models.Payment, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a billing repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CreateSubscription(ctx context.Context, subscription *models.Subscription) error {
	return r.db.WithContext(ctx).Create(subscription).Error
}

func (r *repository) UpdateSubscription(ctx context.Context, subscription *models.Subscription) error {
	return r.db.WithContext(ctx).Save(subscription).Error
}

func (r *repository) FindSubscriptionByStripeID(ctx context.Context, stripeSubscriptionID string) (*models.Subscription, error) {
	if stripeSubscriptionID == "" {
		return nil, gorm.ErrRecordNotFound
	}
	var sub models.Subscription
	if err := r.db.WithContext(ctx).
		Where("stripe_subscription_id = ?", stripeSubscriptionID).
		First(&sub).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &sub, nil
}

// FindLiveSubscriptionByUser returns the user's single not-yet-cancelled row,
// or (nil, nil) when the user has none.
func (r *repository) FindLiveSubscriptionByUser(ctx context.Context, userID uuid.UUID) (*models.Subscription, error) {
	var sub models.Subscription
	if err := r.db.WithContext(ctx).
		Where("user_id = ? AND cancelled = ?", userID, false).
		Order("created_at DESC").
		First(&sub).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &sub, nil
}

func (r *repository) ListLiveSubscriptionsByUser(ctx context.Context, userID uuid.UUID, excludeStripeID string) ([]models.Subscription, error) {
	query := r.db.WithContext(ctx).
		Where("user_id = ? AND cancelled = ?", userID, false)
	if excludeStripeID != "" {
		query = query.Where("stripe_subscription_id <> ?", excludeStripeID)
	}
	var subs []models.Subscription
	if err := query.Order("created_at ASC").Find(&subs).Error; err != nil {
		return nil, err
	}
	return subs, nil
}

func (r *repository) ListSubscriptionsByUser(ctx context.Context, userID uuid.UUID) ([]models.Subscription, error) {
	var subs []models.Subscription
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&subs).Error; err != nil {
		return nil, err
	}
	return subs, nil
}

// UpsertPaymentByInvoiceID inserts the payment or refreshes amount and status
// when the invoice was already recorded. Redelivered webhooks land here.
func (r *repository) UpsertPaymentByInvoiceID(ctx context.Context, payment *models.Payment) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "stripe_invoice_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"amount_cents", "status", "updated_at"}),
		}).
		Create(payment).Error
}

func (r *repository) ListPaymentsBySubscription(ctx context.Context, subscriptionID uuid.UUID) ([]models.Payment, error) {
	var payments []models.Payment
	if err := r.db.WithContext(ctx).
		Where("subscription_id = ?", subscriptionID).
		Order("created_at DESC").
		Find(&payments).Error; err != nil {
		return nil, err
	}
	return payments, nil
}
