package controllers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/beateur/ninowash-backend/api/middleware"
	"github.com/beateur/ninowash-backend/api/responses"
	"github.com/beateur/ninowash-backend/api/validators"
	"github.com/beateur/ninowash-backend/internal/bookings"
	"github.com/beateur/ninowash-backend/pkg/enums"
	pkgerrors "github.com/beateur/ninowash-backend/pkg/errors"
	"github.com/beateur/ninowash-backend/pkg/logger"
	"github.com/beateur/ninowash-backend/pkg/pagination"
)

// bookingActor resolves who is acting: the authenticated user from the JWT, or
// a guest identified by the contact email on the booking.
func bookingActor(r *http.Request) bookings.Actor {
	if raw := middleware.UserIDFromContext(r.Context()); raw != "" {
		if id, err := uuid.Parse(raw); err == nil {
			return bookings.Actor{UserID: &id}
		}
	}
	return bookings.Actor{GuestEmail: validators.ParseQueryString(r, "guest_email", "")}
}

func bookingID(r *http.Request) (uuid.UUID, error) {
	raw := chi.URLParam(r, "bookingId")
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "booking id must be a uuid")
	}
	return id, nil
}

// CreateBooking accepts both authenticated and guest bookings.
func CreateBooking(svc *bookings.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req bookings.CreateBookingRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		actor := bookingActor(r)
		input, err := req.Normalize(actor.UserID, time.Now())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		booking, err := svc.Create(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, booking)
	}
}

func GetBooking(svc *bookings.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := bookingID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		booking, err := svc.Get(r.Context(), id, bookingActor(r))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, booking)
	}
}

func ListBookings(svc *bookings.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor := bookingActor(r)
		if actor.UserID == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing"))
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", 0)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		page, err := svc.List(r.Context(), *actor.UserID, pagination.Params{
			Limit:  limit,
			Cursor: validators.ParseQueryString(r, "cursor", ""),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, page)
	}
}

func ModifyBooking(svc *bookings.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := bookingID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req bookings.ModifyBookingRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		booking, err := svc.Modify(r.Context(), id, bookingActor(r), req)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, booking)
	}
}

func CancelBooking(svc *bookings.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := bookingID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req bookings.CancelBookingRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.Cancel(r.Context(), id, bookingActor(r), req.TrimmedReason()); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "cancelled"})
	}
}

// StartBookingCheckout opens a hosted payment page for an unpaid booking.
func StartBookingCheckout(svc *bookings.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := bookingID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		url, err := svc.StartCheckout(r.Context(), id, bookingActor(r))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"checkout_url": url})
	}
}

type advanceBookingRequest struct {
	Status string `json:"status" validate:"required"`
}

// AdvanceBooking moves a booking along the operational pipeline. Staff only.
func AdvanceBooking(svc *bookings.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := bookingID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req advanceBookingRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		booking, err := svc.Advance(r.Context(), id, enums.BookingStatus(req.Status))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, booking)
	}
}
