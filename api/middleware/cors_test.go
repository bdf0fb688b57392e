package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCORSPreflight(t *testing.T) {
	handler := CORS([]string{"https://app.consultly.io"})(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	preflight := func(origin string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodOptions, "/api/v1/assigns", nil)
		req.Header.Set("Origin", origin)
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)
		req.Header.Set("Access-Control-Request-Headers", "Idempotency-Key")
		resp := httptest.NewRecorder()
		handler.ServeHTTP(resp, req)
		return resp
	}

	allowed := preflight("https://app.consultly.io")
	require.Equal(t, "https://app.consultly.io", allowed.Header().Get("Access-Control-Allow-Origin"))
	require.Contains(t, allowed.Header().Get("Access-Control-Allow-Headers"), "Idempotency-Key")

	denied := preflight("https://evil.example")
	require.Empty(t, denied.Header().Get("Access-Control-Allow-Origin"))
}
