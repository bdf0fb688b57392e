package redis

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/consultly-backend/pkg/config"
)

func TestIncrWithTTLExpiresFromFirstHit(t *testing.T) {
	ctx := context.Background()
	mock := newFakeCommander()
	client := &Client{cmd: mock}
	key := client.RateLimitKey("mutation:user:u-1")

	for want := int64(1); want <= 3; want++ {
		count, err := client.IncrWithTTL(ctx, key, time.Minute)
		require.NoError(t, err)
		assert.Equal(t, want, count)
	}
	assert.Equal(t, time.Minute, mock.ttl[key])
	assert.Equal(t, 1, mock.expires)

	// a counter left without expiry is repaired on the next hit
	delete(mock.ttl, key)
	_, err := client.IncrWithTTL(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, time.Minute, mock.ttl[key])

	_, err = client.IncrWithTTL(ctx, key, 0)
	assert.Error(t, err)
}

func TestDeleteAndExtendIfEquals(t *testing.T) {
	ctx := context.Background()
	mock := newFakeCommander()
	client := &Client{cmd: mock}
	key := client.LockKey("cron-worker:dev:assign-expiry")
	ok, err := client.SetNX(ctx, key, "owner-a", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	extended, err := client.ExtendIfEquals(ctx, key, "owner-b", time.Hour)
	require.NoError(t, err)
	assert.False(t, extended)
	extended, err = client.ExtendIfEquals(ctx, key, "owner-a", time.Hour)
	require.NoError(t, err)
	assert.True(t, extended)
	assert.Equal(t, time.Hour, mock.ttl[key])

	deleted, err := client.DeleteIfEquals(ctx, key, "owner-b")
	require.NoError(t, err)
	assert.False(t, deleted)
	deleted, err = client.DeleteIfEquals(ctx, key, "owner-a")
	require.NoError(t, err)
	assert.True(t, deleted)
	_, err = client.Get(ctx, key)
	assert.True(t, IsNil(err))
}

func TestSetGetDelLifecycle(t *testing.T) {
	ctx := context.Background()
	client := &Client{cmd: newFakeCommander()}

	key := client.AvailabilityKey("sched-1", 42, "20240101T000000Z-20240201T000000Z")
	require.NoError(t, client.Set(ctx, key, "[]", 10*time.Minute))
	value, err := client.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "[]", value)

	require.NoError(t, client.Del(ctx, key))
	_, err = client.Get(ctx, key)
	assert.True(t, IsNil(err))
}

func TestUninitializedClientErrors(t *testing.T) {
	client := &Client{}
	_, err := client.Get(context.Background(), "k")
	assert.Error(t, err)
	_, err = client.DeleteIfEquals(context.Background(), "k", "v")
	assert.ErrorIs(t, err, ErrNotInitialized)
	assert.NoError(t, client.Close())

	var missing *Client
	assert.ErrorIs(t, missing.Ping(context.Background()), ErrNotInitialized)
	assert.NoError(t, missing.Close())
}

func TestKeyBuilders(t *testing.T) {
	client := &Client{}
	assert.Equal(t, "cs:idempotency:scope:id", client.IdempotencyKey("scope", "id"))
	assert.Equal(t, "cs:rate_limit:mutation:ip:1.2.3.4", client.RateLimitKey("mutation:ip:1.2.3.4"))
	assert.Equal(t, "cs:availability:sched:v7:w", client.AvailabilityKey("sched", 7, "w"))
	assert.Equal(t, "cs:revoked:jti", client.RevokedSessionKey("jti"))
	assert.Equal(t, "cs:lock", client.LockKey(""))
	assert.Equal(t, "cs:idempotency:id", client.IdempotencyKey("  ", "id"))
}

func TestOptionsFromConfig(t *testing.T) {
	opts, err := optionsFromConfig(config.RedisConfig{URL: "redis://:secret@cache:6380/3", PoolSize: 7, DialTimeout: time.Second})
	require.NoError(t, err)
	assert.Equal(t, "cache:6380", opts.Addr)
	assert.Equal(t, "secret", opts.Password)
	assert.Equal(t, 3, opts.DB)
	assert.Equal(t, 7, opts.PoolSize)
	assert.Equal(t, time.Second, opts.DialTimeout)

	opts, err = optionsFromConfig(config.RedisConfig{Address: "localhost:6379", DB: 2})
	require.NoError(t, err)
	assert.Equal(t, 2, opts.DB)

	_, err = optionsFromConfig(config.RedisConfig{})
	assert.Error(t, err)
}

// fakeCommander emulates the handful of commands and the three scripts the
// client sends.
type fakeCommander struct {
	redis.Scripter
	data    map[string]string
	ttl     map[string]time.Duration
	expires int
}

func newFakeCommander() *fakeCommander {
	return &fakeCommander{data: map[string]string{}, ttl: map[string]time.Duration{}}
}

func (m *fakeCommander) Ping(context.Context) *redis.StatusCmd {
	return redis.NewStatusResult("PONG", nil)
}

func (m *fakeCommander) Set(_ context.Context, key string, value any, ttl time.Duration) *redis.StatusCmd {
	m.data[key] = fmt.Sprint(value)
	m.ttl[key] = ttl
	return redis.NewStatusResult("OK", nil)
}

func (m *fakeCommander) Get(_ context.Context, key string) *redis.StringCmd {
	v, ok := m.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (m *fakeCommander) SetNX(_ context.Context, key string, value any, ttl time.Duration) *redis.BoolCmd {
	if _, exists := m.data[key]; exists {
		return redis.NewBoolResult(false, nil)
	}
	m.data[key] = fmt.Sprint(value)
	m.ttl[key] = ttl
	return redis.NewBoolResult(true, nil)
}

func (m *fakeCommander) Del(_ context.Context, keys ...string) *redis.IntCmd {
	for _, key := range keys {
		delete(m.data, key)
		delete(m.ttl, key)
	}
	return redis.NewIntResult(int64(len(keys)), nil)
}

func (m *fakeCommander) EvalSha(_ context.Context, sha string, keys []string, args ...any) *redis.Cmd {
	key := keys[0]
	switch sha {
	case incrWithTTLScript.Hash():
		var n int64
		fmt.Sscan(m.data[key], &n)
		n++
		m.data[key] = fmt.Sprint(n)
		if _, hasTTL := m.ttl[key]; n == 1 || !hasTTL {
			m.ttl[key] = time.Duration(args[0].(int64)) * time.Millisecond
			m.expires++
		}
		return redis.NewCmdResult(n, nil)
	case deleteIfEqualsScript.Hash():
		if m.data[key] != args[0].(string) {
			return redis.NewCmdResult(int64(0), nil)
		}
		delete(m.data, key)
		delete(m.ttl, key)
		return redis.NewCmdResult(int64(1), nil)
	case extendIfEqualsScript.Hash():
		if m.data[key] != args[0].(string) {
			return redis.NewCmdResult(int64(0), nil)
		}
		m.ttl[key] = time.Duration(args[1].(int64)) * time.Millisecond
		return redis.NewCmdResult(int64(1), nil)
	}
	return redis.NewCmdResult(nil, fmt.Errorf("unexpected script %s", sha))
}
