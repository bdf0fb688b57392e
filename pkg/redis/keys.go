package redis

import (
	"fmt"
	"strings"
)

// Every key lives under keyNamespace, then one of the prefixes below.
const (
	keyNamespace       = "cs"
	idempotencyPrefix  = "idempotency"
	rateLimitPrefix    = "rate_limit"
	availabilityPrefix = "availability"
	lockPrefix         = "lock"
	revokedPrefix      = "revoked"
)

func joinKey(parts ...string) string {
	var b strings.Builder
	b.WriteString(keyNamespace)
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			b.WriteByte(':')
			b.WriteString(part)
		}
	}
	return b.String()
}

// IdempotencyKey scopes a client supplied Idempotency-Key.
func (c *Client) IdempotencyKey(scope, id string) string {
	return joinKey(idempotencyPrefix, scope, id)
}

func (c *Client) RateLimitKey(scope string) string {
	return joinKey(rateLimitPrefix, scope)
}

// AvailabilityKey returns the cache key for an expanded availability window.
// version changes whenever the schedule is edited, so stale windows are never read.
func (c *Client) AvailabilityKey(scheduleID string, version int64, window string) string {
	return joinKey(availabilityPrefix, scheduleID, fmt.Sprintf("v%d", version), window)
}

func (c *Client) LockKey(name string) string {
	return joinKey(lockPrefix, name)
}

// RevokedSessionKey returns the key marking an access token id as revoked.
func (c *Client) RevokedSessionKey(accessID string) string {
	return joinKey(revokedPrefix, accessID)
}
