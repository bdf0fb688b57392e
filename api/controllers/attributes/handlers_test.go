package attributes

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/consultly-backend/api/middleware"
	attributesvc "github.com/angelmondragon/consultly-backend/internal/attributes"
	"github.com/angelmondragon/consultly-backend/internal/booking"
	"github.com/angelmondragon/consultly-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/consultly-backend/pkg/errors"
	"github.com/angelmondragon/consultly-backend/pkg/logger"
)

type stubAttributesService struct {
	attributesvc.Service

	defined    attributesvc.DefineInput
	target     attributesvc.Target
	identifier string
	value      attributesvc.Value
	err        error
}

func (s *stubAttributesService) DefineAttribute(ctx context.Context, input attributesvc.DefineInput) (*attributesvc.AttributeView, error) {
	s.defined = input
	if s.err != nil {
		return nil, s.err
	}
	return &attributesvc.AttributeView{ID: uuid.New(), ContentType: input.ContentType, Identifier: input.Identifier, Type: input.Type}, nil
}

func (s *stubAttributesService) SetValue(ctx context.Context, actor booking.Actor, target attributesvc.Target, identifier string, value attributesvc.Value) (*attributesvc.ValueView, error) {
	s.target = target
	s.identifier = identifier
	s.value = value
	if s.err != nil {
		return nil, s.err
	}
	return &attributesvc.ValueView{Identifier: identifier, Type: value.Type, ContentType: target.ContentType, ObjectID: target.ObjectID, Value: value.Raw()}, nil
}

func (s *stubAttributesService) DeleteValue(ctx context.Context, actor booking.Actor, target attributesvc.Target, identifier string) error {
	s.target = target
	s.identifier = identifier
	return s.err
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
}

func withCaller(req *http.Request, userID uuid.UUID, role enums.UserRole) *http.Request {
	ctx := middleware.WithUserID(req.Context(), userID.String())
	ctx = middleware.WithRole(ctx, role)
	return req.WithContext(ctx)
}

func withParams(req *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for key, value := range params {
		rctx.URLParams.Add(key, value)
	}
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func TestDefineAttribute(t *testing.T) {
	svc := &stubAttributesService{}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/attributes", strings.NewReader(`{"content_type":"schedule","identifier":"lead_time_hours","type":"integer"}`))
	req = withCaller(req, uuid.New(), enums.UserRoleAdmin)
	resp := httptest.NewRecorder()
	DefineAttribute(svc, testLogger())(resp, req)

	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())
	require.Equal(t, enums.ContentSchedule, svc.defined.ContentType)
	require.Equal(t, enums.AttributeInteger, svc.defined.Type)
}

func TestSetValueParsesTypedBody(t *testing.T) {
	svc := &stubAttributesService{}
	objectID := uuid.New()
	req := httptest.NewRequest(http.MethodPut, "/api/v1/attributes/schedule/x/timezone", strings.NewReader(`{"type":"varchar","value":"Europe/Madrid"}`))
	req = withCaller(req, uuid.New(), enums.UserRoleProvider)
	req = withParams(req, map[string]string{"contentType": "schedule", "objectId": objectID.String(), "identifier": "timezone"})
	resp := httptest.NewRecorder()
	SetValue(svc, testLogger())(resp, req)

	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	require.Equal(t, attributesvc.Target{ContentType: enums.ContentSchedule, ObjectID: objectID}, svc.target)
	require.Equal(t, "timezone", svc.identifier)
	require.Equal(t, "Europe/Madrid", svc.value.Varchar)
}

func TestSetValueRejectsMismatchedScalar(t *testing.T) {
	req := httptest.NewRequest(http.MethodPut, "/api/v1/attributes/schedule/x/lead_time_hours", strings.NewReader(`{"type":"integer","value":"soon"}`))
	req = withCaller(req, uuid.New(), enums.UserRoleProvider)
	req = withParams(req, map[string]string{"contentType": "schedule", "objectId": uuid.NewString(), "identifier": "lead_time_hours"})
	resp := httptest.NewRecorder()
	SetValue(&stubAttributesService{}, testLogger())(resp, req)

	require.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestSetValueRejectsUnknownContentType(t *testing.T) {
	req := httptest.NewRequest(http.MethodPut, "/api/v1/attributes/invoice/x/foo", strings.NewReader(`{"type":"varchar","value":"x"}`))
	req = withCaller(req, uuid.New(), enums.UserRoleProvider)
	req = withParams(req, map[string]string{"contentType": "invoice", "objectId": uuid.NewString(), "identifier": "foo"})
	resp := httptest.NewRecorder()
	SetValue(&stubAttributesService{}, testLogger())(resp, req)

	require.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestDeleteValueNotFound(t *testing.T) {
	svc := &stubAttributesService{err: pkgerrors.New(pkgerrors.CodeNotFound, "attribute value not found")}
	req := httptest.NewRequest(http.MethodDelete, "/api/v1/attributes/segment/x/foo", nil)
	req = withCaller(req, uuid.New(), enums.UserRoleProvider)
	req = withParams(req, map[string]string{"contentType": "segment", "objectId": uuid.NewString(), "identifier": "foo"})
	resp := httptest.NewRecorder()
	DeleteValue(svc, testLogger())(resp, req)

	require.Equal(t, http.StatusNotFound, resp.Code)
	require.Equal(t, enums.ContentSegment, svc.target.ContentType)
}
