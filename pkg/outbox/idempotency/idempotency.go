package idempotency

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/consultly-backend/pkg/instance"
)

const defaultLease = 5 * time.Minute

// Store is the slice of the redis client the manager needs. *redis.Client
// satisfies it.
type Store interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	DeleteIfEquals(ctx context.Context, key, value string) (bool, error)
	IdempotencyKey(scope, id string) string
}

// Manager tracks processed event IDs per consumer in two phases. A claim is a
// short lease so a consumer that dies mid-event does not block redelivery for
// the full TTL; Complete promotes the key to the full TTL.
// Keys follow the `cs:idempotency:evt:processed:<consumer>:<event_id>` pattern.
type Manager struct {
	store Store
	ttl   time.Duration
	lease time.Duration
	owner string
}

// Option tunes a Manager.
type Option func(*Manager)

// WithLease overrides how long an in-flight claim blocks other deliveries.
func WithLease(lease time.Duration) Option {
	return func(m *Manager) {
		if lease > 0 {
			m.lease = lease
		}
	}
}

// NewManager builds an idempotency guard that marks events as processed for the given TTL.
func NewManager(store Store, ttl time.Duration, opts ...Option) (*Manager, error) {
	if store == nil {
		return nil, errors.New("idempotency store is required")
	}
	if ttl < 0 {
		return nil, errors.New("ttl must be non-negative")
	}
	m := &Manager{
		store: store,
		ttl:   ttl,
		lease: defaultLease,
		owner: instance.GetID(),
	}
	for _, opt := range opts {
		opt(m)
	}
	if ttl > 0 && m.lease > ttl {
		m.lease = ttl
	}
	return m, nil
}

// CheckAndMarkProcessed returns true if the event is done or claimed by
// another delivery, and otherwise claims it for the lease window.
func (m *Manager) CheckAndMarkProcessed(ctx context.Context, consumer string, eventID uuid.UUID) (bool, error) {
	key, err := m.processedKey(consumer, eventID)
	if err != nil {
		return false, err
	}
	set, err := m.store.SetNX(ctx, key, m.claimValue(), m.lease)
	if err != nil {
		return false, fmt.Errorf("claim %s: %w", key, err)
	}
	return !set, nil
}

// Complete marks a claimed event as processed for the full TTL.
func (m *Manager) Complete(ctx context.Context, consumer string, eventID uuid.UUID) error {
	key, err := m.processedKey(consumer, eventID)
	if err != nil {
		return err
	}
	if err := m.store.Set(ctx, key, "done:"+m.owner, m.ttl); err != nil {
		return fmt.Errorf("complete %s: %w", key, err)
	}
	return nil
}

// Delete releases this instance's claim so the next delivery processes the
// event again. A claim that already expired and was taken by another
// delivery, or one already completed, is left alone.
func (m *Manager) Delete(ctx context.Context, consumer string, eventID uuid.UUID) error {
	key, err := m.processedKey(consumer, eventID)
	if err != nil {
		return err
	}
	if _, err := m.store.DeleteIfEquals(ctx, key, m.claimValue()); err != nil {
		return fmt.Errorf("release %s: %w", key, err)
	}
	return nil
}

func (m *Manager) claimValue() string {
	return "processing:" + m.owner
}

func (m *Manager) processedKey(consumer string, eventID uuid.UUID) (string, error) {
	if consumer == "" {
		return "", errors.New("consumer name is required")
	}
	if eventID == uuid.Nil {
		return "", errors.New("event id is required")
	}
	scope := fmt.Sprintf("evt:processed:%s", consumer)
	return m.store.IdempotencyKey(scope, eventID.String()), nil
}
