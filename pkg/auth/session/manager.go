package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	redisclient "github.com/angelmondragon/consultly-backend/pkg/redis"
	redislib "github.com/redis/go-redis/v9"
)

// minRevocationTTL keeps a revocation marker alive briefly even for tokens that
// are about to expire, covering clock skew between issuer and engine.
const minRevocationTTL = time.Minute

type sessionStore interface {
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
}

type sessionKeyer interface {
	RevokedSessionKey(accessID string) string
}

// Manager keeps the list of revoked access token ids in Redis. Access tokens
// are issued by the identity service; the engine only needs to refuse ids that
// were logged out before their natural expiry.
type Manager struct {
	store sessionStore
	keyer sessionKeyer
	now   func() time.Time
}

// RevocationChecker exposes the read-only surface needed by middleware.
type RevocationChecker interface {
	IsRevoked(ctx context.Context, accessID string) (bool, error)
}

// NewManager constructs a session manager backed by Redis.
func NewManager(client *redisclient.Client) (*Manager, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	return &Manager{
		store: client,
		keyer: client,
		now:   time.Now,
	}, nil
}

// Revoke marks the access id as revoked until the token would have expired.
func (m *Manager) Revoke(ctx context.Context, accessID string, expiresAt time.Time) error {
	if strings.TrimSpace(accessID) == "" {
		return fmt.Errorf("access id is required")
	}
	ttl := expiresAt.Sub(m.now())
	if ttl < minRevocationTTL {
		ttl = minRevocationTTL
	}
	return m.store.Set(ctx, m.keyer.RevokedSessionKey(accessID), "1", ttl)
}

// IsRevoked reports whether the access id was revoked.
func (m *Manager) IsRevoked(ctx context.Context, accessID string) (bool, error) {
	if strings.TrimSpace(accessID) == "" {
		return false, fmt.Errorf("access id is required")
	}
	if _, err := m.store.Get(ctx, m.keyer.RevokedSessionKey(accessID)); err != nil {
		if errors.Is(err, redislib.Nil) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
