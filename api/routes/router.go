package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/consultly-backend/api/controllers"
	attributecontrollers "github.com/angelmondragon/consultly-backend/api/controllers/attributes"
	bookingcontrollers "github.com/angelmondragon/consultly-backend/api/controllers/booking"
	capacitycontrollers "github.com/angelmondragon/consultly-backend/api/controllers/capacity"
	schedulecontrollers "github.com/angelmondragon/consultly-backend/api/controllers/schedules"
	"github.com/angelmondragon/consultly-backend/api/middleware"
	"github.com/angelmondragon/consultly-backend/internal/attributes"
	"github.com/angelmondragon/consultly-backend/internal/booking"
	"github.com/angelmondragon/consultly-backend/internal/capacity"
	"github.com/angelmondragon/consultly-backend/internal/notifications"
	"github.com/angelmondragon/consultly-backend/internal/schedules"
	"github.com/angelmondragon/consultly-backend/pkg/auth/session"
	"github.com/angelmondragon/consultly-backend/pkg/config"
	"github.com/angelmondragon/consultly-backend/pkg/db"
	"github.com/angelmondragon/consultly-backend/pkg/enums"
	"github.com/angelmondragon/consultly-backend/pkg/logger"
	"github.com/angelmondragon/consultly-backend/pkg/metrics"
	"github.com/angelmondragon/consultly-backend/pkg/redis"
)

type sessionManager interface {
	session.RevocationChecker
	Revoke(ctx context.Context, accessID string, expiresAt time.Time) error
}

type redisStore interface {
	redis.IdempotencyStore
	IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error)
	RateLimitKey(scope string) string
	Ping(ctx context.Context) error
}

// Services bundles the domain services the API exposes.
type Services struct {
	Schedules     schedules.Service
	Capacity      capacity.Service
	Booking       booking.Service
	Attributes    attributes.Service
	Notifications notifications.Service
}

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient redisStore,
	sessionManager sessionManager,
	httpMetrics *metrics.HTTPMetrics,
	metricsHandler http.Handler,
	svcs Services,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.Metrics(httpMetrics),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	mutationPolicy := middleware.NewRateLimitPolicy(
		"mutations",
		cfg.RateLimit.MutationWindow,
		cfg.RateLimit.MutationLimit,
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, map[string]controllers.Pinger{
			"database": dbP,
			"redis":    redisClient,
		}))
	})
	if metricsHandler != nil {
		r.Handle("/metrics", metricsHandler)
	}

	r.Route("/api/public", func(r chi.Router) {
		r.Get("/ping", controllers.PublicPing())
	})

	r.Route("/api/auth", func(r chi.Router) {
		r.Post("/logout", controllers.AuthLogout(sessionManager, cfg.JWT, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, sessionManager, logg))
		r.Use(middleware.RateLimit(mutationPolicy, redisClient, logg))
		r.Use(middleware.Idempotency(redisClient, logg))

		provider := middleware.RequireRole(logg, enums.UserRoleProvider)
		client := middleware.RequireRole(logg, enums.UserRoleClient)
		consultant := middleware.RequireRole(logg, enums.UserRoleConsultant)
		admin := middleware.RequireRole(logg, enums.UserRoleAdmin)

		r.Get("/ping", controllers.PrivatePing())

		r.Route("/schedules", func(r chi.Router) {
			r.With(provider).Post("/", schedulecontrollers.CreateSchedule(svcs.Schedules, logg))
			r.With(provider).Get("/", schedulecontrollers.ListSchedules(svcs.Schedules, logg))
			r.Route("/{scheduleId}", func(r chi.Router) {
				r.With(provider).Get("/", schedulecontrollers.GetSchedule(svcs.Schedules, logg))
				r.With(provider).Patch("/", schedulecontrollers.UpdateSchedule(svcs.Schedules, logg))
				r.With(provider).Delete("/", schedulecontrollers.DeleteSchedule(svcs.Schedules, logg))
				r.With(provider).Post("/rules", schedulecontrollers.AddRule(svcs.Schedules, logg))
				r.With(provider).Delete("/rules/{ruleId}", schedulecontrollers.RemoveRule(svcs.Schedules, logg))
				r.Get("/availability", schedulecontrollers.ExpandAvailability(svcs.Schedules, logg))
				r.Get("/availability.ics", schedulecontrollers.ExportICS(svcs.Schedules, logg))
				r.With(provider).Post("/segments", capacitycontrollers.CreateSegment(svcs.Capacity, logg))
				r.Get("/segments", capacitycontrollers.ListSegments(svcs.Capacity, logg))
			})
		})

		r.Route("/segments/{segmentId}", func(r chi.Router) {
			r.Get("/status", capacitycontrollers.SegmentStatus(svcs.Capacity, logg))
			r.With(provider).Post("/slas", capacitycontrollers.CreateSLA(svcs.Capacity, logg))
		})
		r.With(provider).Post("/slas/{slaId}/priorities", capacitycontrollers.CreatePriority(svcs.Capacity, logg))

		r.Route("/issues", func(r chi.Router) {
			r.With(client).Post("/", bookingcontrollers.CreateIssue(svcs.Booking, logg))
			r.Get("/{issueId}", bookingcontrollers.GetIssue(svcs.Booking, logg))
		})

		r.Route("/reservations", func(r chi.Router) {
			r.Use(client)
			r.Post("/", bookingcontrollers.CreateReservation(svcs.Booking, logg))
			r.Get("/{reservationId}", bookingcontrollers.GetReservation(svcs.Booking, logg))
			r.Delete("/{reservationId}", bookingcontrollers.DeleteReservation(svcs.Booking, logg))
			r.Get("/{reservationId}/total", capacitycontrollers.ReservationTotal(svcs.Capacity, svcs.Booking, logg))
			r.Post("/{reservationId}/items", bookingcontrollers.CreateReservationItem(svcs.Booking, logg))
		})
		r.With(client).Post("/reservation-items/{itemId}/pull", bookingcontrollers.PullReservationItem(svcs.Booking, logg))

		r.Route("/assigns/{assignId}", func(r chi.Router) {
			r.With(consultant).Post("/transition", bookingcontrollers.TransitionAssign(svcs.Booking, logg))
			r.With(client).Post("/assigned", bookingcontrollers.CreateAssigned(svcs.Booking, logg))
		})
		r.With(consultant).Post("/assigned/{assignedId}/close", bookingcontrollers.CloseAssigned(svcs.Booking, logg))

		r.Route("/attributes", func(r chi.Router) {
			r.With(admin).Post("/", attributecontrollers.DefineAttribute(svcs.Attributes, logg))
			r.Get("/{contentType}", attributecontrollers.ListAttributes(svcs.Attributes, logg))
			r.Get("/{contentType}/{objectId}", attributecontrollers.GetValues(svcs.Attributes, logg))
			r.Put("/{contentType}/{objectId}/{identifier}", attributecontrollers.SetValue(svcs.Attributes, logg))
			r.Delete("/{contentType}/{objectId}/{identifier}", attributecontrollers.DeleteValue(svcs.Attributes, logg))
		})

		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", controllers.ListNotifications(svcs.Notifications, logg))
			r.Post("/{notificationId}/read", controllers.MarkNotificationRead(svcs.Notifications, logg))
			r.Post("/read-all", controllers.MarkAllNotificationsRead(svcs.Notifications, logg))
		})
	})

	return r
}
