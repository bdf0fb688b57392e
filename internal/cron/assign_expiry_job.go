package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/consultly-backend/pkg/logger"
)

const (
	defaultExpiryBatch = 200
	maxExpiryRounds    = 20
)

type assignExpirer interface {
	ExpireWaitingAssigns(ctx context.Context, grace time.Duration, limit int) (int, error)
}

// AssignExpiryJobParams configure the waiting assign sweeper.
type AssignExpiryJobParams struct {
	Logger  *logger.Logger
	Booking assignExpirer
	Grace   time.Duration
	Batch   int
}

// NewAssignExpiryJob builds the job that cancels WAITING assigns whose booked
// instant has passed.
func NewAssignExpiryJob(params AssignExpiryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Booking == nil {
		return nil, fmt.Errorf("booking service required")
	}
	if params.Grace < 0 {
		return nil, fmt.Errorf("grace must be non-negative")
	}
	batch := params.Batch
	if batch <= 0 {
		batch = defaultExpiryBatch
	}
	return &assignExpiryJob{
		logg:    params.Logger,
		booking: params.Booking,
		grace:   params.Grace,
		batch:   batch,
	}, nil
}

type assignExpiryJob struct {
	logg    *logger.Logger
	booking assignExpirer
	grace   time.Duration
	batch   int
}

func (j *assignExpiryJob) Name() string { return "assign-expiry" }

// Run drains expired assigns one batch per transaction. A full batch means
// more may be waiting, so it loops, bounded by maxExpiryRounds.
func (j *assignExpiryJob) Run(ctx context.Context) error {
	total := 0
	for round := 0; round < maxExpiryRounds; round++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		expired, err := j.booking.ExpireWaitingAssigns(ctx, j.grace, j.batch)
		if err != nil {
			return fmt.Errorf("assign expiry: %w", err)
		}
		total += expired
		if expired < j.batch {
			break
		}
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"grace":   j.grace.String(),
		"expired": total,
	})
	j.logg.Info(logCtx, "assign expiry complete")
	return nil
}
