package controllers

import (
	"net/http"
	"time"

	"github.com/beateur/ninowash-backend/api/responses"
	"github.com/beateur/ninowash-backend/api/validators"
	"github.com/beateur/ninowash-backend/internal/scheduling"
	"github.com/beateur/ninowash-backend/pkg/enums"
	pkgerrors "github.com/beateur/ninowash-backend/pkg/errors"
	"github.com/beateur/ninowash-backend/pkg/logger"
)

// PickupSlots lists the open pickup windows customers can book.
func PickupSlots(svc *scheduling.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rows, err := svc.PickupOptions(r.Context(), time.Now())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, rows)
	}
}

// DeliverySlots lists delivery windows compatible with a chosen pickup slot
// and service class.
func DeliverySlots(svc *scheduling.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		pickupSlotID, err := validators.ParseQueryUUID(r, "pickup_slot_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		class := enums.ServiceClass(validators.ParseQueryString(r, "class", enums.ServiceClassStandard.String()))
		if !class.IsValid() {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "unknown service class").
				WithDetails(map[string]string{"class": class.String()}))
			return
		}

		rows, err := svc.DeliveryOptions(r.Context(), pickupSlotID, class, time.Now())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, rows)
	}
}
