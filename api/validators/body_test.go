package validators

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	pkgerrors "github.com/angelmondragon/consultly-backend/pkg/errors"
)

type bandRequest struct {
	Label string `json:"label" validate:"max=8"`
	Open  string `json:"open" validate:"required,clock"`
}

func decode(t *testing.T, body string) (bandRequest, error) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	var out bandRequest
	err := DecodeJSONBody(req, &out)
	return out, err
}

func TestDecodeJSONBody(t *testing.T) {
	out, err := decode(t, `{"label":"morning","open":"09:00"}`)
	require.NoError(t, err)
	require.Equal(t, "morning", out.Label)

	_, err = decode(t, `{"label":"morning","open":"9am"}`)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	require.Equal(t, pkgerrors.CodeValidation, typed.Code())
	require.Equal(t, map[string]string{"open": "must be HH:MM or HH:MM:SS, at most 24:00"}, typed.Details())
}

func TestDecodeJSONBodyRejectsUnknownAndTrailing(t *testing.T) {
	_, err := decode(t, `{"open":"09:00","extra":1}`)
	require.Error(t, err)

	_, err = decode(t, `{"open":"09:00"}{"open":"10:00"}`)
	require.ErrorContains(t, err, "single JSON object")
}

func TestDecodeJSONBodyTooLarge(t *testing.T) {
	_, err := decode(t, `{"label":"`+strings.Repeat("x", MaxBodyBytes)+`","open":"09:00"}`)
	require.ErrorContains(t, err, "too large")
}

func TestParseClock(t *testing.T) {
	cases := map[string]time.Duration{
		"09:00":    9 * time.Hour,
		"17:30":    17*time.Hour + 30*time.Minute,
		"08:15:30": 8*time.Hour + 15*time.Minute + 30*time.Second,
		"24:00":    24 * time.Hour,
	}
	for raw, want := range cases {
		got, err := ParseClock(raw)
		require.NoError(t, err, raw)
		require.Equal(t, want, got, raw)
	}
	for _, raw := range []string{"", "9", "25:00", "12:60", "24:30", "aa:bb", "1:2:3:4"} {
		_, err := ParseClock(raw)
		require.Error(t, err, raw)
	}
}

func TestSanitizeString(t *testing.T) {
	require.Equal(t, "Consulta", SanitizeString("  Consulta\n", 0))
	require.Equal(t, "añoño", SanitizeString("añoñoñoño", 5))
	require.Equal(t, "ab", SanitizeString("a\x00b", 10))
	require.Equal(t, "ab", SanitizeString("ab c", 3))
}
