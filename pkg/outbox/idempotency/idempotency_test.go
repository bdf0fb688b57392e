package idempotency

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type storedValue struct {
	value any
	ttl   time.Duration
}

type memoryStore struct {
	values   map[string]storedValue
	setNXErr error
	deleted  []string
}

func newMemoryStore() *memoryStore {
	return &memoryStore{values: map[string]storedValue{}}
}

func (m *memoryStore) SetNX(_ context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if m.setNXErr != nil {
		return false, m.setNXErr
	}
	if _, ok := m.values[key]; ok {
		return false, nil
	}
	m.values[key] = storedValue{value: value, ttl: ttl}
	return true, nil
}

func (m *memoryStore) Set(_ context.Context, key string, value any, ttl time.Duration) error {
	m.values[key] = storedValue{value: value, ttl: ttl}
	return nil
}

func (m *memoryStore) DeleteIfEquals(_ context.Context, key, value string) (bool, error) {
	if current, ok := m.values[key]; !ok || current.value != value {
		return false, nil
	}
	delete(m.values, key)
	m.deleted = append(m.deleted, key)
	return true, nil
}

func (m *memoryStore) IdempotencyKey(scope, id string) string {
	return "cs:idempotency:" + scope + ":" + id
}

func processedKey(eventID uuid.UUID) string {
	return "cs:idempotency:evt:processed:booking-notifications:" + eventID.String()
}

func TestClaimUsesLeaseThenCompleteUsesTTL(t *testing.T) {
	t.Setenv("CONSULTLY_INSTANCE_ID", "worker-1")
	store := newMemoryStore()
	manager, err := NewManager(store, 24*time.Hour, WithLease(time.Minute))
	require.NoError(t, err)
	eventID := uuid.New()

	already, err := manager.CheckAndMarkProcessed(context.Background(), "booking-notifications", eventID)
	require.NoError(t, err)
	require.False(t, already)
	claim := store.values[processedKey(eventID)]
	require.Equal(t, time.Minute, claim.ttl)
	require.Equal(t, "processing:worker-1", claim.value)

	require.NoError(t, manager.Complete(context.Background(), "booking-notifications", eventID))
	done := store.values[processedKey(eventID)]
	require.Equal(t, 24*time.Hour, done.ttl)
	require.Equal(t, "done:worker-1", done.value)

	already, err = manager.CheckAndMarkProcessed(context.Background(), "booking-notifications", eventID)
	require.NoError(t, err)
	require.True(t, already)
}

func TestLeaseNeverExceedsTTL(t *testing.T) {
	store := newMemoryStore()
	manager, err := NewManager(store, 30*time.Second)
	require.NoError(t, err)

	_, err = manager.CheckAndMarkProcessed(context.Background(), "booking-notifications", uuid.New())
	require.NoError(t, err)
	for _, v := range store.values {
		require.Equal(t, 30*time.Second, v.ttl)
	}
}

func TestCheckAndMarkProcessedError(t *testing.T) {
	store := newMemoryStore()
	store.setNXErr = errors.New("boom")
	manager, err := NewManager(store, time.Hour)
	require.NoError(t, err)

	_, err = manager.CheckAndMarkProcessed(context.Background(), "booking-notifications", uuid.New())
	require.ErrorContains(t, err, "boom")
}

func TestDeleteReleasesClaim(t *testing.T) {
	store := newMemoryStore()
	manager, err := NewManager(store, time.Hour)
	require.NoError(t, err)
	eventID := uuid.New()

	_, err = manager.CheckAndMarkProcessed(context.Background(), "booking-notifications", eventID)
	require.NoError(t, err)
	require.NoError(t, manager.Delete(context.Background(), "booking-notifications", eventID))
	require.Equal(t, []string{processedKey(eventID)}, store.deleted)

	already, err := manager.CheckAndMarkProcessed(context.Background(), "booking-notifications", eventID)
	require.NoError(t, err)
	require.False(t, already)
}

func TestKeyValidation(t *testing.T) {
	manager, err := NewManager(newMemoryStore(), time.Hour)
	require.NoError(t, err)

	_, err = manager.CheckAndMarkProcessed(context.Background(), "", uuid.New())
	require.Error(t, err)
	require.Error(t, manager.Complete(context.Background(), "booking-notifications", uuid.Nil))

	_, err = NewManager(nil, time.Hour)
	require.Error(t, err)
}

func TestDeleteLeavesForeignClaim(t *testing.T) {
	t.Setenv("CONSULTLY_INSTANCE_ID", "worker-1")
	store := newMemoryStore()
	manager, err := NewManager(store, time.Hour)
	require.NoError(t, err)
	eventID := uuid.New()
	store.values[processedKey(eventID)] = storedValue{value: "processing:worker-2", ttl: time.Minute}

	require.NoError(t, manager.Delete(context.Background(), "booking-notifications", eventID))
	require.Empty(t, store.deleted)
	require.Equal(t, "processing:worker-2", store.values[processedKey(eventID)].value)
}

func TestDeleteKeepsCompletedEvent(t *testing.T) {
	store := newMemoryStore()
	manager, err := NewManager(store, time.Hour)
	require.NoError(t, err)
	eventID := uuid.New()

	_, err = manager.CheckAndMarkProcessed(context.Background(), "booking-notifications", eventID)
	require.NoError(t, err)
	require.NoError(t, manager.Complete(context.Background(), "booking-notifications", eventID))
	require.NoError(t, manager.Delete(context.Background(), "booking-notifications", eventID))

	already, err := manager.CheckAndMarkProcessed(context.Background(), "booking-notifications", eventID)
	require.NoError(t, err)
	require.True(t, already)
}
