//go:build db

package booking

import (
	"testing"

	"github.com/angelmondragon/consultly-backend/pkg/db/dbtest"
)

// These run the race scenarios against postgres, where the transactions
// really overlap and only the FOR UPDATE and advisory locks keep them apart.

func newPostgresFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	client, conn := dbtest.PostgresClient(t)
	return newFixtureOn(t, client, conn, opts...)
}

func TestPostgresConcurrentBookingsNeverExceedQuota(t *testing.T) {
	bookingsNeverExceedQuota(t, newPostgresFixture(t))
}

func TestPostgresConcurrentAcceptsOnSameIssue(t *testing.T) {
	acceptsOnSameIssue(t, newPostgresFixture(t))
}

func TestPostgresDailyLimitHoldsAcrossSegments(t *testing.T) {
	dailyLimitAcrossSegments(t, newPostgresFixture(t, WithPolicyResolver(stubPolicy{policy: Policy{MaxDailyBookings: 1}})))
}
