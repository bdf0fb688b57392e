package actorcontext

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/consultly-backend/api/middleware"
	"github.com/angelmondragon/consultly-backend/internal/booking"
	"github.com/angelmondragon/consultly-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/consultly-backend/pkg/errors"
)

// ResolveActor extracts the authenticated caller seeded by the auth middleware.
func ResolveActor(r *http.Request) (booking.Actor, error) {
	ctx := r.Context()
	raw := middleware.UserIDFromContext(ctx)
	if raw == "" {
		return booking.Actor{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context required")
	}
	userID, err := uuid.Parse(raw)
	if err != nil {
		return booking.Actor{}, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid user id")
	}
	role, err := enums.ParseUserRole(middleware.RoleFromContext(ctx))
	if err != nil {
		return booking.Actor{}, pkgerrors.Wrap(pkgerrors.CodeForbidden, err, "invalid role")
	}
	return booking.Actor{UserID: userID, Role: role}, nil
}

// PathUUID parses a chi URL parameter as a UUID.
func PathUUID(r *http.Request, name string) (uuid.UUID, error) {
	raw := strings.TrimSpace(chi.URLParam(r, name))
	if raw == "" {
		return uuid.Nil, pkgerrors.Validation(name, "is required")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid "+name).WithDetails(map[string]any{name: "must be a uuid"})
	}
	return id, nil
}
