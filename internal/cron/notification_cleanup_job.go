package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/consultly-backend/pkg/logger"
)

const (
	defaultNotificationRetention = 30 * 24 * time.Hour
	defaultNotificationBatch     = 500
	maxNotificationRounds        = 50
)

type NotificationCleanupJobParams struct {
	Logger     *logger.Logger
	Repository notificationsCleanupRepo
	Retention  time.Duration
	Batch      int
}

type notificationsCleanupRepo interface {
	DeleteOlderThan(ctx context.Context, cutoff time.Time, limit int) (int64, error)
}

// NewNotificationCleanupJob builds the job that prunes inbox entries past
// retention. Each batch is its own statement so a large backlog never holds
// one long lock.
func NewNotificationCleanupJob(params NotificationCleanupJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Repository == nil {
		return nil, fmt.Errorf("notifications repository required")
	}
	retention := params.Retention
	if retention <= 0 {
		retention = defaultNotificationRetention
	}
	batch := params.Batch
	if batch <= 0 {
		batch = defaultNotificationBatch
	}
	return &notificationCleanupJob{
		logg:      params.Logger,
		repo:      params.Repository,
		retention: retention,
		batch:     batch,
		now:       time.Now,
	}, nil
}

type notificationCleanupJob struct {
	logg      *logger.Logger
	repo      notificationsCleanupRepo
	retention time.Duration
	batch     int
	now       func() time.Time
}

func (j *notificationCleanupJob) Name() string { return "notification-cleanup" }

func (j *notificationCleanupJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.retention)
	var deleted int64
	rounds := 0
	for ; rounds < maxNotificationRounds; rounds++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		rows, err := j.repo.DeleteOlderThan(ctx, cutoff, j.batch)
		if err != nil {
			return fmt.Errorf("notification cleanup: %w", err)
		}
		deleted += rows
		if rows < int64(j.batch) {
			break
		}
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"cutoff":       cutoff,
		"retention":    j.retention.String(),
		"rows_deleted": deleted,
		"rounds":       rounds + 1,
	})
	if rounds == maxNotificationRounds {
		j.logg.Warn(logCtx, "notification cleanup stopped at round limit")
		return nil
	}
	j.logg.Info(logCtx, "notification cleanup complete")
	return nil
}
