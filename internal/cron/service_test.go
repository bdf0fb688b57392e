package cron

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/consultly-backend/pkg/logger"
	"github.com/angelmondragon/consultly-backend/pkg/metrics"
)

type fakeLock struct {
	mu       sync.Mutex
	acquired bool
	lost     bool
	extends  int
}

func (f *fakeLock) Acquire(context.Context) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.acquired {
		return false, nil
	}
	f.acquired = true
	return true, nil
}

func (f *fakeLock) Extend(context.Context) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.extends++
	return f.acquired && !f.lost, nil
}

func (f *fakeLock) Release(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.acquired = false
	return nil
}

type fakeLocker struct {
	mu    sync.Mutex
	locks map[string]*fakeLock
}

func (f *fakeLocker) For(job string) Lock {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.locks == nil {
		f.locks = map[string]*fakeLock{}
	}
	if _, ok := f.locks[job]; !ok {
		f.locks[job] = &fakeLock{}
	}
	return f.locks[job]
}

type testJob struct {
	mu   sync.Mutex
	name string
	err  error
	runs int
}

func (t *testJob) Name() string { return t.name }

func (t *testJob) Run(context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.runs++
	return t.err
}

func (t *testJob) count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.runs
}

func TestServiceRunOnceRunsAllJobsEvenOnFailure(t *testing.T) {
	success := &testJob{name: "success"}
	failure := &testJob{name: "fail", err: errors.New("boom")}
	registry := mustRegistry(t, Entry{Spec: "@daily", Job: success}, Entry{Spec: "@daily", Job: failure})
	service, err := NewService(ServiceParams{
		Logger:   logger.Nop(),
		Registry: registry,
		Locks:    &fakeLocker{},
	})
	require.NoError(t, err)

	service.RunOnce(context.Background())
	require.Equal(t, 1, success.count())
	require.Equal(t, 1, failure.count())
}

func TestServiceRejectsInvalidSpec(t *testing.T) {
	_, err := NewService(ServiceParams{
		Logger:   logger.Nop(),
		Registry: mustRegistry(t, Entry{Spec: "every now and then", Job: &testJob{name: "bad"}}),
		Locks:    &fakeLocker{},
	})
	require.Error(t, err)
}

func TestServiceSkipsJobWhenLockHeld(t *testing.T) {
	reg := prometheus.NewRegistry()
	job := &testJob{name: "held"}
	locks := &fakeLocker{}
	held, _ := locks.For("held").Acquire(context.Background())
	require.True(t, held)

	service, err := NewService(ServiceParams{
		Logger:   logger.Nop(),
		Registry: mustRegistry(t, Entry{Spec: "@every 1m", Job: job}),
		Locks:    locks,
		Metrics:  metrics.NewCronJobMetrics(reg),
	})
	require.NoError(t, err)

	service.RunOnce(context.Background())
	require.Equal(t, 0, job.count())

	families, err := reg.Gather()
	require.NoError(t, err)
	var skipped float64
	for _, mf := range families {
		if mf.GetName() != "cron_job_runs_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, label := range m.GetLabel() {
				if label.GetName() == "outcome" && label.GetValue() == "skipped" {
					skipped += m.GetCounter().GetValue()
				}
			}
		}
	}
	require.Equal(t, float64(1), skipped)
}

func TestServiceRunSchedulesUntilCanceled(t *testing.T) {
	job := &testJob{name: "tick"}
	service, err := NewService(ServiceParams{
		Logger:   logger.Nop(),
		Registry: mustRegistry(t, Entry{Spec: "@every 1s", Job: job}),
		Locks:    &fakeLocker{},
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- service.Run(ctx) }()

	require.Eventually(t, func() bool { return job.count() >= 1 }, 5*time.Second, 50*time.Millisecond)
	cancel()
	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("cron service did not stop")
	}
}

func TestRedisLockerIsolatesJobs(t *testing.T) {
	store := &memoryStore{values: map[string]string{}}
	locker, err := NewRedisLocker(store, "cs:lock:cron-worker:test", time.Minute)
	require.NoError(t, err)
	ctx := context.Background()

	first := locker.For("assign-expiry")
	ok, err := first.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = locker.For("assign-expiry").Acquire(ctx)
	require.NoError(t, err)
	require.False(t, ok)

	ok, err = locker.For("outbox-retention").Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, first.Release(ctx))
	_, held := store.values["cs:lock:cron-worker:test:assign-expiry"]
	require.False(t, held)
	_, held = store.values["cs:lock:cron-worker:test:outbox-retention"]
	require.True(t, held)
}

func TestRedisLockDoesNotTouchForeignOwner(t *testing.T) {
	store := &memoryStore{values: map[string]string{}}
	lock, err := NewRedisLock(store, "cs:lock:job", time.Minute)
	require.NoError(t, err)
	ctx := context.Background()

	ok, err := lock.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	ok, err = lock.Extend(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	// the key expired and another worker took it
	store.values["cs:lock:job"] = "someone-else"
	ok, err = lock.Extend(ctx)
	require.NoError(t, err)
	require.False(t, ok)
	require.NoError(t, lock.Release(ctx))
	require.Equal(t, "someone-else", store.values["cs:lock:job"])
}

type blockingJob struct {
	name     string
	canceled chan struct{}
}

func (b *blockingJob) Name() string { return b.name }

func (b *blockingJob) Run(ctx context.Context) error {
	<-ctx.Done()
	close(b.canceled)
	return ctx.Err()
}

func TestServiceCancelsJobWhenLockLost(t *testing.T) {
	locks := &fakeLocker{}
	job := &blockingJob{name: "slow", canceled: make(chan struct{})}
	service, err := NewService(ServiceParams{
		Logger:      logger.Nop(),
		Registry:    mustRegistry(t, Entry{Spec: "@daily", Job: job}),
		Locks:       locks,
		LockRefresh: 10 * time.Millisecond,
	})
	require.NoError(t, err)

	lock := locks.For("slow").(*fakeLock)
	lock.mu.Lock()
	lock.lost = true
	lock.mu.Unlock()

	done := make(chan struct{})
	go func() {
		service.RunOnce(context.Background())
		close(done)
	}()
	select {
	case <-job.canceled:
	case <-time.After(5 * time.Second):
		t.Fatal("job was not canceled after losing its lock")
	}
	<-done
	lock.mu.Lock()
	defer lock.mu.Unlock()
	require.GreaterOrEqual(t, lock.extends, 1)
	require.False(t, lock.acquired)
}

type memoryStore struct {
	mu     sync.Mutex
	values map[string]string
}

func (m *memoryStore) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.values[key]; ok {
		return false, nil
	}
	m.values[key] = value.(string)
	return true, nil
}

func (m *memoryStore) DeleteIfEquals(_ context.Context, key, value string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if current, ok := m.values[key]; !ok || current != value {
		return false, nil
	}
	delete(m.values, key)
	return true, nil
}

func (m *memoryStore) ExtendIfEquals(_ context.Context, key, value string, _ time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.values[key]
	return ok && current == value, nil
}
