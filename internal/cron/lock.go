package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const defaultLockTTL = 5 * time.Minute

// Lock coordinates exclusive cron runs.
type Lock interface {
	Acquire(ctx context.Context) (bool, error)
	// Extend pushes the expiry out by another ttl. It reports false once the
	// lock has been lost to expiry or another owner.
	Extend(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

// Locker hands out one lock per job name.
type Locker interface {
	For(job string) Lock
}

// redisStore is the slice of pkg/redis.Client the lock needs. The compare
// operations run as server side scripts, so a lock that expired and was
// taken by another worker is never deleted or extended by the old owner.
type redisStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	DeleteIfEquals(ctx context.Context, key, value string) (bool, error)
	ExtendIfEquals(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
}

// RedisLock implements Lock with SET NX PX and an owner token.
type RedisLock struct {
	client redisStore
	key    string
	ttl    time.Duration
	owner  string
}

// NewRedisLock constructs a Redis-backed lock.
func NewRedisLock(client redisStore, key string, ttl time.Duration) (*RedisLock, error) {
	if client == nil {
		return nil, errors.New("redis client required for lock")
	}
	if key == "" {
		return nil, errors.New("lock key is required")
	}
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	return &RedisLock{client: client, key: key, ttl: ttl}, nil
}

// Acquire tries to own the lock for the configured TTL.
func (l *RedisLock) Acquire(ctx context.Context) (bool, error) {
	owner := uuid.NewString()
	ok, err := l.client.SetNX(ctx, l.key, owner, l.ttl)
	if err != nil {
		return false, fmt.Errorf("setnx %s: %w", l.key, err)
	}
	if ok {
		l.owner = owner
	}
	return ok, nil
}

func (l *RedisLock) Extend(ctx context.Context) (bool, error) {
	if l.owner == "" {
		return false, nil
	}
	ok, err := l.client.ExtendIfEquals(ctx, l.key, l.owner, l.ttl)
	if err != nil {
		return false, fmt.Errorf("extend %s: %w", l.key, err)
	}
	if !ok {
		l.owner = ""
	}
	return ok, nil
}

// Release frees the lock only if this instance still owns it.
func (l *RedisLock) Release(ctx context.Context) error {
	if l.owner == "" {
		return nil
	}
	if _, err := l.client.DeleteIfEquals(ctx, l.key, l.owner); err != nil {
		return fmt.Errorf("release %s: %w", l.key, err)
	}
	l.owner = ""
	return nil
}

// RedisLocker builds a RedisLock per job under keyPrefix.
type RedisLocker struct {
	client    redisStore
	keyPrefix string
	ttl       time.Duration
}

// NewRedisLocker constructs a locker whose keys are keyPrefix + ":" + job.
func NewRedisLocker(client redisStore, keyPrefix string, ttl time.Duration) (*RedisLocker, error) {
	if client == nil {
		return nil, errors.New("redis client required for lock")
	}
	if keyPrefix == "" {
		return nil, errors.New("lock key prefix is required")
	}
	return &RedisLocker{client: client, keyPrefix: keyPrefix, ttl: ttl}, nil
}

func (l *RedisLocker) For(job string) Lock {
	lock, _ := NewRedisLock(l.client, l.keyPrefix+":"+job, l.ttl)
	return lock
}
