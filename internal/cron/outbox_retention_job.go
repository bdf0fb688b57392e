package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/consultly-backend/pkg/logger"
	"go.uber.org/multierr"
)

const defaultOutboxRetention = 30 * 24 * time.Hour

type OutboxRetentionJobParams struct {
	Logger       *logger.Logger
	Outbox       publishedPurger
	DLQ          failedPurger
	Retention    time.Duration
	DLQRetention time.Duration
}

type publishedPurger interface {
	DeletePublishedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type failedPurger interface {
	DeleteFailedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

func NewOutboxRetentionJob(params OutboxRetentionJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox repository required")
	}
	if params.DLQ == nil {
		return nil, fmt.Errorf("dlq repository required")
	}
	retention := params.Retention
	if retention <= 0 {
		retention = defaultOutboxRetention
	}
	dlqRetention := params.DLQRetention
	if dlqRetention <= 0 {
		dlqRetention = defaultOutboxRetention
	}
	return &outboxRetentionJob{
		logg:         params.Logger,
		outbox:       params.Outbox,
		dlq:          params.DLQ,
		retention:    retention,
		dlqRetention: dlqRetention,
		now:          time.Now,
	}, nil
}

type outboxRetentionJob struct {
	logg         *logger.Logger
	outbox       publishedPurger
	dlq          failedPurger
	retention    time.Duration
	dlqRetention time.Duration
	now          func() time.Time
}

func (j *outboxRetentionJob) Name() string { return "outbox-retention" }

// Run purges published events and old DLQ rows. Both purges run even when
// the first fails.
func (j *outboxRetentionJob) Run(ctx context.Context) error {
	now := j.now().UTC()
	var errs error

	published, err := j.outbox.DeletePublishedBefore(ctx, now.Add(-j.retention))
	if err != nil {
		errs = multierr.Append(errs, fmt.Errorf("outbox retention: %w", err))
	}
	failed, err := j.dlq.DeleteFailedBefore(ctx, now.Add(-j.dlqRetention))
	if err != nil {
		errs = multierr.Append(errs, fmt.Errorf("dlq retention: %w", err))
	}
	if errs != nil {
		return errs
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"retention":     j.retention.String(),
		"dlq_retention": j.dlqRetention.String(),
		"published":     published,
		"dead_letters":  failed,
	})
	j.logg.Info(logCtx, "outbox retention cleanup complete")
	return nil
}
