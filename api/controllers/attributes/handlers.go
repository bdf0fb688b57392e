package attributes

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/consultly-backend/api/controllers/actorcontext"
	"github.com/angelmondragon/consultly-backend/api/responses"
	"github.com/angelmondragon/consultly-backend/api/validators"
	attributesvc "github.com/angelmondragon/consultly-backend/internal/attributes"
	"github.com/angelmondragon/consultly-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/consultly-backend/pkg/errors"
	"github.com/angelmondragon/consultly-backend/pkg/logger"
)

type defineAttributeRequest struct {
	ContentType enums.ContentType   `json:"content_type" validate:"required"`
	Identifier  string              `json:"identifier" validate:"required,max=64"`
	Type        enums.AttributeType `json:"type" validate:"required"`
	Label       string              `json:"label" validate:"max=120"`
}

type setValueRequest struct {
	Type  enums.AttributeType `json:"type" validate:"required"`
	Value json.RawMessage     `json:"value"`
}

func unavailable() error {
	return pkgerrors.New(pkgerrors.CodeInternal, "attributes service unavailable")
}

// DefineAttribute registers a typed attribute for a content type.
func DefineAttribute(svc attributesvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable())
			return
		}
		var payload defineAttributeRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		view, err := svc.DefineAttribute(r.Context(), attributesvc.DefineInput{
			ContentType: payload.ContentType,
			Identifier:  payload.Identifier,
			Type:        payload.Type,
			Label:       validators.SanitizeString(payload.Label, 120),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, view)
	}
}

func ListAttributes(svc attributesvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable())
			return
		}
		contentType, err := contentTypeParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		views, err := svc.ListAttributes(r.Context(), contentType)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, views)
	}
}

// SetValue upserts one typed value on an object. The declared type in the
// body must match the attribute definition.
func SetValue(svc attributesvc.Service, logg *logger.Logger) http.HandlerFunc {
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
		target, err := targetParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		identifier := strings.TrimSpace(chi.URLParam(r, "identifier"))

		var payload setValueRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		value, err := attributesvc.ParseValue(payload.Type, payload.Value)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Validation("value", err.Error()))
			return
		}

		view, err := svc.SetValue(r.Context(), actor, target, identifier, value)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}

func GetValues(svc attributesvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable())
			return
		}
		target, err := targetParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		views, err := svc.GetValues(r.Context(), target)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, views)
	}
}

func DeleteValue(svc attributesvc.Service, logg *logger.Logger) http.HandlerFunc {
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
		target, err := targetParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		identifier := strings.TrimSpace(chi.URLParam(r, "identifier"))
		if err := svc.DeleteValue(r.Context(), actor, target, identifier); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func contentTypeParam(r *http.Request) (enums.ContentType, error) {
	contentType, err := enums.ParseContentType(strings.TrimSpace(chi.URLParam(r, "contentType")))
	if err != nil {
		return "", pkgerrors.Validation("contentType", "unknown content type")
	}
	return contentType, nil
}

func targetParams(r *http.Request) (attributesvc.Target, error) {
	contentType, err := contentTypeParam(r)
	if err != nil {
		return attributesvc.Target{}, err
	}
	objectID, err := actorcontext.PathUUID(r, "objectId")
	if err != nil {
		return attributesvc.Target{}, err
	}
	return attributesvc.Target{ContentType: contentType, ObjectID: objectID}, nil
}
