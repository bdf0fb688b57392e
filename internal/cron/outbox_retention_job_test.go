package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/angelmondragon/consultly-backend/pkg/logger"
)

func TestOutboxRetentionJobDeletesPublishedAndDeadLetters(t *testing.T) {
	now := time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC)
	outboxRepo := &fakePublishedPurger{}
	dlqRepo := &fakeFailedPurger{}
	job := newOutboxRetentionJob(t, outboxRepo, dlqRepo, 48*time.Hour)
	job.now = func() time.Time { return now }

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if want := now.Add(-defaultOutboxRetention); !outboxRepo.lastCutoff.Equal(want) {
		t.Fatalf("expected outbox cutoff %s, got %s", want, outboxRepo.lastCutoff)
	}
	if want := now.Add(-48 * time.Hour); !dlqRepo.lastCutoff.Equal(want) {
		t.Fatalf("expected dlq cutoff %s, got %s", want, dlqRepo.lastCutoff)
	}
}

func TestOutboxRetentionJobRunsBothPurgesOnError(t *testing.T) {
	outboxRepo := &fakePublishedPurger{err: errors.New("boom")}
	dlqRepo := &fakeFailedPurger{}
	job := newOutboxRetentionJob(t, outboxRepo, dlqRepo, 0)

	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if dlqRepo.called != 1 {
		t.Fatalf("expected dlq purge to still run, called %d", dlqRepo.called)
	}
}

func newOutboxRetentionJob(t *testing.T, outboxRepo *fakePublishedPurger, dlqRepo *fakeFailedPurger, dlqRetention time.Duration) *outboxRetentionJob {
	t.Helper()
	jobIface, err := NewOutboxRetentionJob(OutboxRetentionJobParams{
		Logger:       logger.Nop(),
		Outbox:       outboxRepo,
		DLQ:          dlqRepo,
		DLQRetention: dlqRetention,
	})
	if err != nil {
		t.Fatalf("NewOutboxRetentionJob: %v", err)
	}
	job, ok := jobIface.(*outboxRetentionJob)
	if !ok {
		t.Fatalf("expected outboxRetentionJob, got %T", jobIface)
	}
	return job
}

type fakePublishedPurger struct {
	lastCutoff time.Time
	err        error
}

func (f *fakePublishedPurger) DeletePublishedBefore(_ context.Context, cutoff time.Time) (int64, error) {
	f.lastCutoff = cutoff
	if f.err != nil {
		return 0, f.err
	}
	return 7, nil
}

type fakeFailedPurger struct {
	lastCutoff time.Time
	called     int
}

func (f *fakeFailedPurger) DeleteFailedBefore(_ context.Context, cutoff time.Time) (int64, error) {
	f.called++
	f.lastCutoff = cutoff
	return 2, nil
}
