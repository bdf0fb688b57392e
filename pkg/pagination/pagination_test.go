package pagination

import (
	"encoding/base64"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestCursorRoundTripIsURLSafe(t *testing.T) {
	in := Cursor{CreatedAt: time.Date(2030, 1, 7, 9, 0, 0, 123, time.UTC), ID: uuid.New()}
	encoded := in.Encode()
	require.False(t, strings.ContainsAny(encoded, "+/="))

	out, err := ParseCursor(encoded)
	require.NoError(t, err)
	require.True(t, in.CreatedAt.Equal(out.CreatedAt))
	require.Equal(t, in.ID, out.ID)
}

func TestParseCursorAcceptsStdEncoding(t *testing.T) {
	id := uuid.New()
	raw := base64.StdEncoding.EncodeToString([]byte("2030-01-07T09:00:00Z|" + id.String()))
	out, err := ParseCursor(raw)
	require.NoError(t, err)
	require.Equal(t, id, out.ID)
}

func TestParseCursorRejectsGarbage(t *testing.T) {
	out, err := ParseCursor("   ")
	require.NoError(t, err)
	require.Nil(t, out)

	for _, bad := range []string{
		"!!!",
		base64.RawURLEncoding.EncodeToString([]byte("no-separator")),
		base64.RawURLEncoding.EncodeToString([]byte("yesterday|" + uuid.NewString())),
		base64.RawURLEncoding.EncodeToString([]byte("2030-01-07T09:00:00Z|not-a-uuid")),
	} {
		_, err = ParseCursor(bad)
		require.ErrorIs(t, err, ErrInvalidCursor, bad)
	}
}

func TestTrim(t *testing.T) {
	base := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	rows := make([]Cursor, 0, 4)
	for i := 0; i < 4; i++ {
		rows = append(rows, Cursor{CreatedAt: base.Add(-time.Duration(i) * time.Hour), ID: uuid.New()})
	}
	key := func(c Cursor) Cursor { return c }

	page, next := Trim(rows, 3, key)
	require.Len(t, page, 3)
	require.NotNil(t, next)
	require.Equal(t, rows[2].ID, next.ID)

	page, next = Trim(rows[:3], 3, key)
	require.Len(t, page, 3)
	require.Nil(t, next)
}

func TestNormalizeLimit(t *testing.T) {
	require.Equal(t, DefaultLimit, NormalizeLimit(0))
	require.Equal(t, MaxLimit, NormalizeLimit(MaxLimit+1))
	require.Equal(t, DefaultLimit, NormalizeLimit(-3))
	require.Equal(t, 7, NormalizeLimit(7))
}
