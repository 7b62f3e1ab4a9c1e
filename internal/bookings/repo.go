package bookings

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/beateur/ninowash-backend/pkg/db/models"
	"github.com/beateur/ninowash-backend/pkg/pagination"
)

// Repository exposes booking persistence. Webhook reconciliation shares it
// through the Stripe lookup methods.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	CreateBooking(ctx context.Context, booking *models.Booking) error
	SetNumber(ctx context.Context, id uuid.UUID, number string) error
	UpdateBooking(ctx context.Context, booking *models.Booking) error

	FindByID(ctx context.Context, id uuid.UUID) (*models.Booking, error)
	FindByStripeSessionID(ctx context.Context, sessionID string) (*models.Booking, error)
	FindByStripeIntentID(ctx context.Context, intentID string) (*models.Booking, error)
	ListByUser(ctx context.Context, userID uuid.UUID, cursor *pagination.Cursor, limit int) ([]models.Booking, error)

	FindActiveServicesByIDs(ctx context.Context, ids []uuid.UUID) ([]models.ServiceOffering, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a bookings repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CreateBooking(ctx context.Context, booking *models.Booking) error {
	return r.db.WithContext(ctx).Create(booking).Error
}

// SetNumber assigns the human-facing number once the insert sequence is known.
func (r *repository) SetNumber(ctx context.Context, id uuid.UUID, number string) error {
	return r.db.WithContext(ctx).
		Model(&models.Booking{}).
		Where("id = ?", id).
		Update("number", number).
		Error
}

func (r *repository) UpdateBooking(ctx context.Context, booking *models.Booking) error {
	return r.db.WithContext(ctx).Omit("Items").Save(booking).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Booking, error) {
	var booking models.Booking
	err := r.db.WithContext(ctx).
		Preload("Items").
		First(&booking, "id = ?", id).
		Error
	if err != nil {
		return nil, err
	}
	return &booking, nil
}

func (r *repository) FindByStripeSessionID(ctx context.Context, sessionID string) (*models.Booking, error) {
	var booking models.Booking
	err := r.db.WithContext(ctx).
		First(&booking, "stripe_session_id = ?", sessionID).
		Error
	if err != nil {
		return nil, err
	}
	return &booking, nil
}

func (r *repository) FindByStripeIntentID(ctx context.Context, intentID string) (*models.Booking, error) {
	var booking models.Booking
	err := r.db.WithContext(ctx).
		First(&booking, "stripe_intent_id = ?", intentID).
		Error
	if err != nil {
		return nil, err
	}
	return &booking, nil
}

func (r *repository) ListByUser(ctx context.Context, userID uuid.UUID, cursor *pagination.Cursor, limit int) ([]models.Booking, error) {
	query := r.db.WithContext(ctx).
		Preload("Items").
		Where("user_id = ?", userID)
	if cursor != nil {
		query = query.Where(
			"(created_at < ?) OR (created_at = ? AND id < ?)",
			cursor.CreatedAt, cursor.CreatedAt, cursor.ID,
		)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}

	var rows []models.Booking
	err := query.
		Order("created_at DESC").
		Order("id DESC").
		Find(&rows).
		Error
	return rows, err
}

func (r *repository) FindActiveServicesByIDs(ctx context.Context, ids []uuid.UUID) ([]models.ServiceOffering, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var rows []models.ServiceOffering
	err := r.db.WithContext(ctx).
		Where("id IN ? AND active = ?", ids, true).
		Find(&rows).
		Error
	return rows, err
}
