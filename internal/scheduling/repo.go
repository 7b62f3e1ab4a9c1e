package scheduling

import (
	"context"
	"time"

	"github.com/beateur/ninowash-backend/pkg/db/models"
	"github.com/beateur/ninowash-backend/pkg/enums"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository exposes logistic slot reads for the scheduling flows.
type Repository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.LogisticSlot, error)
	ListOpen(ctx context.Context, role enums.SlotRole, from, to time.Time) ([]models.LogisticSlot, error)
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository builds a repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

// FindByID loads a single slot regardless of its open flag.
func (r *gormRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.LogisticSlot, error) {
	var slot models.LogisticSlot
	if err := r.db.WithContext(ctx).First(&slot, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &slot, nil
}

// ListOpen returns open slots of the given role whose date falls in [from, to],
// ordered chronologically.
func (r *gormRepository) ListOpen(ctx context.Context, role enums.SlotRole, from, to time.Time) ([]models.LogisticSlot, error) {
	var rows []models.LogisticSlot
	err := r.db.WithContext(ctx).
		Where("role = ? AND open = ?", role, true).
		Where("date >= ? AND date <= ?", from, to).
		Order("date ASC").
		Order("start_time ASC").
		Find(&rows).
		Error
	return rows, err
}
