package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/angelmondragon/consultly-backend/api/responses"
	pkgerrors "github.com/angelmondragon/consultly-backend/pkg/errors"
	"github.com/angelmondragon/consultly-backend/pkg/logger"
	pkgredis "github.com/angelmondragon/consultly-backend/pkg/redis"
)

const (
	idempotencyHeader = "Idempotency-Key"
	replayedHeader    = "Idempotent-Replayed"
	maxIdempotencyKey = 255

	defaultIdempotencyTTL  = 24 * time.Hour
	criticalIdempotencyTTL = 7 * 24 * time.Hour
	// pendingTTL bounds how long a crashed request keeps its key reserved.
	pendingTTL = 2 * time.Minute
)

// idempotentRoutes maps "METHOD path-template" to the replay window. A "*"
// segment matches exactly one path segment. Booking transitions keep the
// longer window.
var idempotentRoutes = map[string]time.Duration{
	"POST /api/v1/schedules":                defaultIdempotencyTTL,
	"POST /api/v1/schedules/*/rules":        defaultIdempotencyTTL,
	"POST /api/v1/schedules/*/segments":     defaultIdempotencyTTL,
	"POST /api/v1/segments/*/slas":          defaultIdempotencyTTL,
	"POST /api/v1/slas/*/priorities":        defaultIdempotencyTTL,
	"POST /api/v1/issues":                   defaultIdempotencyTTL,
	"POST /api/v1/reservations":             defaultIdempotencyTTL,
	"POST /api/v1/reservation-items/*/pull": defaultIdempotencyTTL,
	"POST /api/v1/assigned/*/close":         defaultIdempotencyTTL,
	"POST /api/v1/attributes":               defaultIdempotencyTTL,
	"POST /api/v1/notifications/*/read":     defaultIdempotencyTTL,
	"POST /api/v1/notifications/read-all":   defaultIdempotencyTTL,
	"POST /api/v1/reservations/*/items":     criticalIdempotencyTTL,
	"POST /api/v1/assigns/*/transition":     criticalIdempotencyTTL,
	"POST /api/v1/assigns/*/assigned":       criticalIdempotencyTTL,
}

// replayRecord is what the store holds under a key. Pending marks a request
// that is still executing.
type replayRecord struct {
	Pending     bool   `json:"pending,omitempty"`
	Fingerprint string `json:"fp"`
	Status      int    `json:"status,omitempty"`
	ContentType string `json:"ct,omitempty"`
	Body        string `json:"body,omitempty"`
}

// Idempotency replays the first completed response for a repeated
// Idempotency-Key on the mutation routes above. The key is reserved before
// the handler runs so concurrent duplicates get a conflict instead of a
// second booking. Server errors release the key so the client may retry.
func Idempotency(store pkgredis.IdempotencyStore, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ttl, ok := routeTTL(r.Method, r.URL.Path)
			if !ok || store == nil {
				next.ServeHTTP(w, r)
				return
			}
			ctx := r.Context()

			clientKey := strings.TrimSpace(r.Header.Get(idempotencyHeader))
			switch {
			case clientKey == "":
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "Idempotency-Key header required"))
				return
			case len(clientKey) > maxIdempotencyKey:
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "Idempotency-Key header too long"))
				return
			}

			body, err := io.ReadAll(r.Body)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request"))
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			fp := fingerprint(r, body)
			key := store.IdempotencyKey("http:"+UserIDFromContext(ctx), clientKey)

			pending, _ := json.Marshal(replayRecord{Pending: true, Fingerprint: fp})
			reserved, err := store.SetNX(ctx, key, string(pending), pendingTTL)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reserve idempotency key"))
				return
			}
			if !reserved {
				replay(ctx, logg, store, w, key, fp)
				return
			}

			rec := &responseCapture{ResponseWriter: w}
			next.ServeHTTP(rec, r)

			status := rec.statusCode()
			if status >= http.StatusInternalServerError {
				if err := store.Del(ctx, key); err != nil {
					logError(ctx, logg, "release idempotency key", err)
				}
				return
			}
			done, _ := json.Marshal(replayRecord{
				Fingerprint: fp,
				Status:      status,
				ContentType: rec.Header().Get("Content-Type"),
				Body:        base64.StdEncoding.EncodeToString(rec.body.Bytes()),
			})
			if err := store.Set(ctx, key, string(done), ttl); err != nil {
				logError(ctx, logg, "persist idempotency record", err)
			}
		})
	}
}

func replay(ctx context.Context, logg *logger.Logger, store pkgredis.IdempotencyStore, w http.ResponseWriter, key, fp string) {
	raw, err := store.Get(ctx, key)
	if errors.Is(err, redis.Nil) {
		// released between SetNX and Get by a failed first attempt
		responses.WriteError(ctx, logg, w, inProgress())
		return
	}
	if err != nil {
		responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check idempotency"))
		return
	}

	var record replayRecord
	if err := json.Unmarshal([]byte(raw), &record); err != nil {
		responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode idempotency record"))
		return
	}
	switch {
	case record.Fingerprint != fp:
		responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeIdempotency, "idempotency key reused with different request").
			WithReason(pkgerrors.ReasonKeyFingerprintMismatch))
	case record.Pending:
		responses.WriteError(ctx, logg, w, inProgress())
	default:
		body, err := base64.StdEncoding.DecodeString(record.Body)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode idempotency record"))
			return
		}
		if record.ContentType != "" {
			w.Header().Set("Content-Type", record.ContentType)
		}
		w.Header().Set(replayedHeader, "true")
		w.WriteHeader(record.Status)
		_, _ = w.Write(body)
	}
}

func inProgress() error {
	return pkgerrors.New(pkgerrors.CodeIdempotency, "request with this Idempotency-Key is still in progress").
		WithReason(pkgerrors.ReasonRequestInProgress)
}

// fingerprint binds a key to the exact method, path and body it was first used with.
func fingerprint(r *http.Request, body []byte) string {
	h := sha256.New()
	h.Write([]byte(r.Method + " " + r.URL.Path + "\n"))
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}

func routeTTL(method, path string) (time.Duration, bool) {
	path = strings.TrimSuffix(path, "/")
	if path == "" {
		return 0, false
	}
	for route, ttl := range idempotentRoutes {
		m, tmpl, _ := strings.Cut(route, " ")
		if m == method && matchTemplate(tmpl, path) {
			return ttl, true
		}
	}
	return 0, false
}

func matchTemplate(tmpl, path string) bool {
	want := strings.Split(tmpl, "/")
	got := strings.Split(path, "/")
	if len(want) != len(got) {
		return false
	}
	for i := range want {
		if want[i] == "*" {
			if got[i] == "" {
				return false
			}
			continue
		}
		if want[i] != got[i] {
			return false
		}
	}
	return true
}

type responseCapture struct {
	http.ResponseWriter
	body   bytes.Buffer
	status int
}

func (r *responseCapture) WriteHeader(code int) {
	if r.status == 0 {
		r.status = code
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *responseCapture) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	r.body.Write(b)
	return r.ResponseWriter.Write(b)
}

func (r *responseCapture) statusCode() int {
	if r.status == 0 {
		return http.StatusOK
	}
	return r.status
}

func logError(ctx context.Context, logg *logger.Logger, msg string, err error) {
	if logg == nil || err == nil {
		return
	}
	logg.Error(ctx, msg, err)
}
