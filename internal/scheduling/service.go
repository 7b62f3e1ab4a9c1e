package scheduling

import (
	"context"
	"errors"
	"time"

	"github.com/beateur/ninowash-backend/pkg/db/models"
	"github.com/beateur/ninowash-backend/pkg/enums"
	pkgerrors "github.com/beateur/ninowash-backend/pkg/errors"
	"github.com/beateur/ninowash-backend/pkg/logger"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// deliveryHorizon bounds how far ahead delivery options are offered.
const deliveryHorizon = 14 * 24 * time.Hour

// ServiceParams carries the dependencies required by the scheduling service.
type ServiceParams struct {
	Repo   Repository
	Logger *logger.Logger
}

// Service serves pickup and delivery slot availability.
type Service struct {
	repo Repository
	logg *logger.Logger
}

// NewService validates dependencies and builds the scheduling service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "scheduling repo required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger required")
	}
	return &Service{repo: params.Repo, logg: params.Logger}, nil
}

// PickupOptions lists open pickup slots from today through the horizon.
func (s *Service) PickupOptions(ctx context.Context, now time.Time) ([]models.LogisticSlot, error) {
	from := startOfDay(now)
	rows, err := s.repo.ListOpen(ctx, enums.SlotRolePickup, from, from.Add(deliveryHorizon))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list pickup slots")
	}
	return rows, nil
}

// DeliveryOptions lists open delivery slots compatible with the chosen pickup
// slot and service class. A slot qualifies when its start is not earlier than
// the pickup window end plus the class lead time.
func (s *Service) DeliveryOptions(ctx context.Context, pickupSlotID uuid.UUID, class enums.ServiceClass, now time.Time) ([]models.LogisticSlot, error) {
	pickup, err := s.repo.FindByID(ctx, pickupSlotID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "pickup slot not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load pickup slot")
	}
	if pickup.Role != enums.SlotRolePickup {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "slot is not a pickup slot")
	}

	earliest, ok := DeliveryEarliestDate(*pickup, class, now)
	if !ok {
		warnCtx := s.logg.WithFields(ctx, map[string]any{
			"slot_id":  pickup.ID,
			"end_time": pickup.EndTime,
		})
		s.logg.Warn(warnCtx, "pickup slot end time unparseable, using start of today as delivery boundary")
	}

	rows, err := s.repo.ListOpen(ctx, enums.SlotRoleDelivery, startOfDay(earliest), startOfDay(earliest).Add(deliveryHorizon))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list delivery slots")
	}

	eligible := make([]models.LogisticSlot, 0, len(rows))
	for _, slot := range rows {
		if SlotStartsAtOrAfter(slot, earliest) {
			eligible = append(eligible, slot)
		}
	}
	return eligible, nil
}

// SlotStartsAtOrAfter reports whether the slot's start moment is not earlier
// than the boundary. Slots with an unparseable start time only qualify when
// their whole day is past the boundary.
func SlotStartsAtOrAfter(slot models.LogisticSlot, boundary time.Time) bool {
	start, err := time.Parse(slotTimeLayout, slot.StartTime)
	if err != nil {
		return !startOfDay(slot.Date).Before(startOfDay(boundary).AddDate(0, 0, 1))
	}
	moment := time.Date(
		slot.Date.Year(), slot.Date.Month(), slot.Date.Day(),
		start.Hour(), start.Minute(), 0, 0,
		slot.Date.Location(),
	)
	return !moment.Before(boundary)
}
