package cron

import (
	"context"
	"fmt"
	"time"

	robfig "github.com/robfig/cron/v3"

	"github.com/angelmondragon/consultly-backend/pkg/logger"
	"github.com/angelmondragon/consultly-backend/pkg/metrics"
)

// ServiceParams configure the cron service.
type ServiceParams struct {
	Logger   *logger.Logger
	Registry *Registry
	Locks    Locker
	Metrics  *metrics.CronJobMetrics
	Location *time.Location
	// LockRefresh is how often a running job extends its lock. Zero leaves
	// the lock to expire on its own ttl.
	LockRefresh time.Duration
}

// Service executes registered jobs on their cron specs. Each run is guarded
// by a per-job lock so only one worker instance executes a job at a time.
type Service struct {
	logg     *logger.Logger
	registry *Registry
	locks    Locker
	metrics  *metrics.CronJobMetrics
	location *time.Location
	refresh  time.Duration
}

// NewService builds a cron service. Every registered spec is parsed up front.
func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Locks == nil {
		return nil, fmt.Errorf("locker required")
	}
	registry := params.Registry
	if registry == nil {
		registry = &Registry{}
	}
	for _, entry := range registry.Entries() {
		if _, err := robfig.ParseStandard(entry.Spec); err != nil {
			return nil, fmt.Errorf("job %s: invalid spec %q: %w", entry.Job.Name(), entry.Spec, err)
		}
	}
	location := params.Location
	if location == nil {
		location = time.UTC
	}
	return &Service{
		logg:     params.Logger,
		registry: registry,
		locks:    params.Locks,
		metrics:  params.Metrics,
		location: location,
		refresh:  params.LockRefresh,
	}, nil
}

// Run schedules every job and blocks until the context is canceled. Running
// jobs are allowed to finish before Run returns.
func (s *Service) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	adapter := cronLogger{ctx: ctx, logg: s.logg}
	scheduler := robfig.New(
		robfig.WithLocation(s.location),
		robfig.WithLogger(adapter),
		robfig.WithChain(robfig.Recover(adapter), robfig.SkipIfStillRunning(adapter)),
	)
	for _, entry := range s.registry.Entries() {
		job := entry.Job
		if _, err := scheduler.AddFunc(entry.Spec, func() { s.runGuarded(ctx, job) }); err != nil {
			return fmt.Errorf("schedule %s: %w", job.Name(), err)
		}
		s.logg.Info(s.logg.WithFields(ctx, map[string]any{"job": job.Name(), "spec": entry.Spec}), "job scheduled")
	}

	scheduler.Start()
	<-ctx.Done()
	s.logg.Info(ctx, "cron service context canceled")
	<-scheduler.Stop().Done()
	return ctx.Err()
}

// RunOnce runs every registered job once, in registration order.
func (s *Service) RunOnce(ctx context.Context) {
	for _, job := range s.registry.Jobs() {
		s.runGuarded(ctx, job)
	}
}

func (s *Service) runGuarded(ctx context.Context, job Job) {
	jobCtx := s.logg.WithField(ctx, "job", job.Name())
	lock := s.locks.For(job.Name())
	locked, err := lock.Acquire(jobCtx)
	if err != nil {
		s.logg.Error(jobCtx, "lock acquire failed", err)
		s.metrics.ObserveRun(job.Name(), metrics.CronFailed, 0)
		return
	}
	if !locked {
		s.logg.Info(jobCtx, "another cron instance holds the job lock; skipping")
		s.metrics.ObserveRun(job.Name(), metrics.CronSkipped, 0)
		return
	}
	defer func() {
		if relErr := lock.Release(jobCtx); relErr != nil {
			s.logg.Error(jobCtx, "failed to release cron lock", relErr)
		}
	}()

	runCtx, cancel := context.WithCancel(jobCtx)
	defer cancel()
	if s.refresh > 0 {
		go s.keepAlive(runCtx, cancel, lock)
	}
	s.runJob(runCtx, job)
}

// keepAlive extends lock until ctx ends. Losing the lock cancels the job so
// two workers never run it side by side for long.
func (s *Service) keepAlive(ctx context.Context, cancel context.CancelFunc, lock Lock) {
	ticker := time.NewTicker(s.refresh)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			ok, err := lock.Extend(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				s.logg.Warn(s.logg.WithError(ctx, err), "cron lock refresh failed")
				continue
			}
			if !ok {
				s.logg.Warn(ctx, "cron lock lost; canceling job")
				cancel()
				return
			}
		}
	}
}

func (s *Service) runJob(ctx context.Context, job Job) {
	jobCtx := s.logg.WithField(ctx, "event", "cron.job")
	s.logg.Debug(jobCtx, "job start")
	start := time.Now()
	err := job.Run(jobCtx)
	duration := time.Since(start)
	jobCtx = s.logg.WithField(jobCtx, "duration_ms", duration.Milliseconds())
	if err != nil {
		s.logg.Error(jobCtx, "job failed", err)
		s.metrics.ObserveRun(job.Name(), metrics.CronFailed, duration)
		return
	}
	s.logg.Debug(jobCtx, "job completed")
	s.metrics.ObserveRun(job.Name(), metrics.CronSucceeded, duration)
}

// cronLogger routes the scheduler's own messages into the service logger.
type cronLogger struct {
	ctx  context.Context
	logg *logger.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logg.Debug(l.logg.WithFields(l.ctx, pairs(keysAndValues)), "cron: "+msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logg.Error(l.logg.WithFields(l.ctx, pairs(keysAndValues)), "cron: "+msg, err)
}

func pairs(keysAndValues []any) map[string]any {
	fields := make(map[string]any, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		key, ok := keysAndValues[i].(string)
		if !ok {
			continue
		}
		fields[key] = keysAndValues[i+1]
	}
	return fields
}
