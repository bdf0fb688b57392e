package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/consultly-backend/api/routes"
	"github.com/angelmondragon/consultly-backend/internal/attributes"
	"github.com/angelmondragon/consultly-backend/internal/booking"
	"github.com/angelmondragon/consultly-backend/internal/capacity"
	"github.com/angelmondragon/consultly-backend/internal/notifications"
	"github.com/angelmondragon/consultly-backend/internal/schedules"
	"github.com/angelmondragon/consultly-backend/pkg/auth/session"
	"github.com/angelmondragon/consultly-backend/pkg/config"
	"github.com/angelmondragon/consultly-backend/pkg/db"
	"github.com/angelmondragon/consultly-backend/pkg/instance"
	"github.com/angelmondragon/consultly-backend/pkg/logger"
	"github.com/angelmondragon/consultly-backend/pkg/metrics"
	"github.com/angelmondragon/consultly-backend/pkg/migrate"
	"github.com/angelmondragon/consultly-backend/pkg/outbox"
	"github.com/angelmondragon/consultly-backend/pkg/redis"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Fields:      map[string]string{"env": cfg.App.Env},
	})

	if err := run(cfg, logg); err != nil {
		logg.Error(context.Background(), "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logg *logger.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbClient, err := db.Open(ctx, cfg, logg)
	if err != nil {
		return err
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		return err
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		return err
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	sessionManager, err := session.NewManager(redisClient)
	if err != nil {
		return err
	}

	svcs, err := buildServices(ctx, cfg, logg, dbClient, redisClient)
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	httpMetrics := metrics.NewHTTPMetrics(registry)
	metricsHandler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	logCtx := logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": instance.GetID(),
	})

	server := &http.Server{
		Addr:              addr,
		Handler:           routes.NewRouter(cfg, logg, dbClient, redisClient, sessionManager, httpMetrics, metricsHandler, svcs),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logg.Info(logCtx, "starting api server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logg.Info(logCtx, "api server shutting down gracefully")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func buildServices(ctx context.Context, cfg *config.Config, logg *logger.Logger, dbClient *db.Client, redisClient *redis.Client) (routes.Services, error) {
	outboxSvc := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)

	attributesSvc, err := attributes.NewService(attributes.NewRepository(dbClient.DB()), dbClient, logg)
	if err != nil {
		return routes.Services{}, err
	}
	if err := attributesSvc.EnsureDefaults(ctx); err != nil {
		return routes.Services{}, err
	}

	scheduleOpts := []schedules.Option{schedules.WithLocationResolver(attributesSvc)}
	if cfg.FeatureFlags.AvailabilityCache {
		scheduleOpts = append(scheduleOpts, schedules.WithCache(schedules.NewRedisCache(redisClient)))
	}
	schedulesSvc, err := schedules.NewService(
		schedules.NewRepository(dbClient.DB()),
		dbClient,
		schedules.Config{
			MaxActiveSchedules: cfg.Booking.MaxActiveSchedules,
			MaxExpandInstants:  cfg.Booking.MaxExpandInstants,
			MaxExpandRange:     cfg.Booking.MaxExpandRange,
			CacheTTL:           cfg.Booking.AvailabilityTTL,
		},
		logg,
		scheduleOpts...,
	)
	if err != nil {
		return routes.Services{}, err
	}

	capacitySvc, err := capacity.NewService(capacity.NewRepository(dbClient.DB()), dbClient, logg)
	if err != nil {
		return routes.Services{}, err
	}

	notifier, err := notifications.NewAcceptedNotifier(dbClient, outboxSvc)
	if err != nil {
		return routes.Services{}, err
	}
	bookingSvc, err := booking.NewService(
		booking.NewRepository(dbClient.DB()),
		dbClient,
		capacitySvc,
		schedulesSvc,
		outboxSvc,
		logg,
		booking.WithNotifier(notifier),
		booking.WithPolicyResolver(attributesSvc),
	)
	if err != nil {
		return routes.Services{}, err
	}

	notificationsSvc, err := notifications.NewService(notifications.NewRepository(dbClient.DB()))
	if err != nil {
		return routes.Services{}, err
	}

	return routes.Services{
		Schedules:     schedulesSvc,
		Capacity:      capacitySvc,
		Booking:       bookingSvc,
		Attributes:    attributesSvc,
		Notifications: notificationsSvc,
	}, nil
}
