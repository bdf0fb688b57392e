package capacity

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/consultly-backend/api/controllers/actorcontext"
	"github.com/angelmondragon/consultly-backend/api/responses"
	"github.com/angelmondragon/consultly-backend/api/validators"
	"github.com/angelmondragon/consultly-backend/internal/booking"
	capacitysvc "github.com/angelmondragon/consultly-backend/internal/capacity"
	"github.com/angelmondragon/consultly-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/consultly-backend/pkg/errors"
	"github.com/angelmondragon/consultly-backend/pkg/logger"
)

type reservationReader interface {
	GetReservation(ctx context.Context, id uuid.UUID, actor booking.Actor) (*booking.ReservationView, error)
}

func unavailable() error {
	return pkgerrors.New(pkgerrors.CodeInternal, "capacity service unavailable")
}

// CreateSegment adds a time band to one of the caller's schedules.
func CreateSegment(svc capacitysvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable())
			return
		}
		actor, err := actorcontext.ResolveActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		scheduleID, err := actorcontext.PathUUID(r, "scheduleId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload createSegmentRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		input, err := payload.toInput()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		view, err := svc.CreateSegment(r.Context(), actor.UserID, scheduleID, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, view)
	}
}

func ListSegments(svc capacitysvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable())
			return
		}
		scheduleID, err := actorcontext.PathUUID(r, "scheduleId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		views, err := svc.ListSegments(r.Context(), scheduleID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, views)
	}
}

// SegmentStatus reports the live quota usage of a segment.
func SegmentStatus(svc capacitysvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable())
			return
		}
		segmentID, err := actorcontext.PathUUID(r, "segmentId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		status, err := svc.SegmentStatus(r.Context(), segmentID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, status)
	}
}

func CreateSLA(svc capacitysvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable())
			return
		}
		actor, err := actorcontext.ResolveActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		segmentID, err := actorcontext.PathUUID(r, "segmentId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload createSLARequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		view, err := svc.CreateSLA(r.Context(), actor.UserID, segmentID, capacitysvc.CreateSLAInput{
			Label:            validators.SanitizeString(payload.Label, 120),
			Cost:             payload.Cost,
			GracePeriodHours: payload.GracePeriodHours,
			Unit:             payload.Unit,
			Allocation:       payload.Allocation,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, view)
	}
}

func CreatePriority(svc capacitysvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable())
			return
		}
		actor, err := actorcontext.ResolveActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		slaID, err := actorcontext.PathUUID(r, "slaId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload createPriorityRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		view, err := svc.CreatePriority(r.Context(), actor.UserID, slaID, capacitysvc.CreatePriorityInput{
			Identifier: payload.Identifier,
			Label:      validators.SanitizeString(payload.Label, 120),
			Cost:       payload.Cost,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, view)
	}
}

// ReservationTotal sums the item costs of a reservation the caller can read.
// The status query selects WAITING or ACCEPT assigns and defaults to ACCEPT.
func ReservationTotal(svc capacitysvc.Service, reservations reservationReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil || reservations == nil {
			responses.WriteError(r.Context(), logg, w, unavailable())
			return
		}
		actor, err := actorcontext.ResolveActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		reservationID, err := actorcontext.PathUUID(r, "reservationId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		status := enums.AssignAccept
		if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
			parsed, err := enums.ParseAssignStatus(strings.ToUpper(raw))
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Validation("status", "must be WAITING or ACCEPT"))
				return
			}
			status = parsed
		}

		if _, err := reservations.GetReservation(r.Context(), reservationID, actor); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		total, err := svc.ReservationTotalCost(r.Context(), reservationID, status)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, total)
	}
}
