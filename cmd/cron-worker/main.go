package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/angelmondragon/consultly-backend/internal/attributes"
	"github.com/angelmondragon/consultly-backend/internal/booking"
	"github.com/angelmondragon/consultly-backend/internal/capacity"
	"github.com/angelmondragon/consultly-backend/internal/cron"
	"github.com/angelmondragon/consultly-backend/internal/notifications"
	"github.com/angelmondragon/consultly-backend/internal/schedules"
	"github.com/angelmondragon/consultly-backend/pkg/config"
	"github.com/angelmondragon/consultly-backend/pkg/db"
	"github.com/angelmondragon/consultly-backend/pkg/instance"
	"github.com/angelmondragon/consultly-backend/pkg/logger"
	"github.com/angelmondragon/consultly-backend/pkg/metrics"
	"github.com/angelmondragon/consultly-backend/pkg/migrate"
	"github.com/angelmondragon/consultly-backend/pkg/outbox"
	"github.com/angelmondragon/consultly-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "cron-worker"

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Fields:      map[string]string{"env": cfg.App.Env},
	})

	dbClient, err := db.Open(context.Background(), cfg, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	bookingSvc, err := newBookingService(cfg, logg, dbClient)
	if err != nil {
		logg.Error(context.Background(), "failed to create booking service", err)
		os.Exit(1)
	}

	registry, err := buildRegistry(cfg, logg, dbClient, bookingSvc)
	if err != nil {
		logg.Error(context.Background(), "failed to register cron jobs", err)
		os.Exit(1)
	}

	env := cfg.App.Env
	if env == "" {
		env = "local"
	}
	locks, err := cron.NewRedisLocker(redisClient, redisClient.LockKey("cron-worker:"+env), cfg.Cron.LockTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create cron locks", err)
		os.Exit(1)
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:      logg,
		Registry:    registry,
		Locks:       locks,
		Metrics:     metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
		LockRefresh: cfg.Cron.LockTTL / 3,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cron service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
		"jobs":        len(registry.Jobs()),
		"disabled":    registry.Disabled(),
		"instance":    instance.GetID(),
	})
	logg.Info(ctx, "starting cron worker")

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error { return service.Run(groupCtx) })
	group.Go(func() error {
		return metrics.Serve(groupCtx, cfg.Service.MetricsAddr, prometheus.DefaultGatherer, logg)
	})
	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}

// newBookingService wires the booking workflow for the expiry sweep. The
// sweep never books, but the constructor requires the full chain.
func newBookingService(cfg *config.Config, logg *logger.Logger, dbClient *db.Client) (booking.Service, error) {
	attributesSvc, err := attributes.NewService(attributes.NewRepository(dbClient.DB()), dbClient, logg)
	if err != nil {
		return nil, err
	}
	schedulesSvc, err := schedules.NewService(
		schedules.NewRepository(dbClient.DB()),
		dbClient,
		schedules.Config{
			MaxActiveSchedules: cfg.Booking.MaxActiveSchedules,
			MaxExpandInstants:  cfg.Booking.MaxExpandInstants,
			MaxExpandRange:     cfg.Booking.MaxExpandRange,
		},
		logg,
		schedules.WithLocationResolver(attributesSvc),
	)
	if err != nil {
		return nil, err
	}
	capacitySvc, err := capacity.NewService(capacity.NewRepository(dbClient.DB()), dbClient, logg)
	if err != nil {
		return nil, err
	}
	outboxSvc := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)
	return booking.NewService(
		booking.NewRepository(dbClient.DB()),
		dbClient,
		capacitySvc,
		schedulesSvc,
		outboxSvc,
		logg,
		booking.WithPolicyResolver(attributesSvc),
	)
}

func buildRegistry(cfg *config.Config, logg *logger.Logger, dbClient *db.Client, bookingSvc booking.Service) (*cron.Registry, error) {
	expiry, err := cron.NewAssignExpiryJob(cron.AssignExpiryJobParams{
		Logger:  logg,
		Booking: bookingSvc,
		Grace:   cfg.Booking.AssignExpiryGrace,
		Batch:   cfg.Booking.AssignExpiryBatch,
	})
	if err != nil {
		return nil, err
	}

	retention, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:       logg,
		Outbox:       outbox.NewRepository(dbClient.DB()),
		DLQ:          outbox.NewDLQRepository(dbClient.DB()),
		Retention:    cfg.Outbox.Retention,
		DLQRetention: cfg.Outbox.DLQRetention,
	})
	if err != nil {
		return nil, err
	}

	cleanup, err := cron.NewNotificationCleanupJob(cron.NotificationCleanupJobParams{
		Logger:     logg,
		Repository: notifications.NewRepository(dbClient.DB()),
		Retention:  cfg.Cron.NotificationRetention,
		Batch:      cfg.Cron.NotificationBatch,
	})
	if err != nil {
		return nil, err
	}

	return cron.NewRegistry(
		cron.Entry{Spec: cfg.Cron.AssignExpirySpec, Job: expiry},
		cron.Entry{Spec: cfg.Cron.OutboxRetentionSpec, Job: retention},
		cron.Entry{Spec: cfg.Cron.NotificationCleanupSpec, Job: cleanup},
	)
}
