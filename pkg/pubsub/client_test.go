package pubsub

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/consultly-backend/pkg/config"
	"github.com/angelmondragon/consultly-backend/pkg/logger"
)

func TestClientOptionsPrecedence(t *testing.T) {
	creds := config.GCPConfig{CredentialsJSON: `{"type":"service_account"}`, ApplicationCredentials: "/secrets/sa.json"}

	assert.Len(t, clientOptions(creds, config.PubSubConfig{EmulatorHost: "localhost:8085"}), 3)
	assert.Len(t, clientOptions(creds, config.PubSubConfig{}), 1)
	assert.Len(t, clientOptions(config.GCPConfig{ApplicationCredentials: "/secrets/sa.json"}, config.PubSubConfig{}), 1)
	assert.Empty(t, clientOptions(config.GCPConfig{}, config.PubSubConfig{EmulatorHost: "  "}))
}

func TestResourceName(t *testing.T) {
	c := &Client{projectID: "consultly-dev"}

	name, err := c.resourceName("topics", " consultly-booking-events ")
	require.NoError(t, err)
	assert.Equal(t, "projects/consultly-dev/topics/consultly-booking-events", name)

	name, err = c.resourceName("subscriptions", "projects/other/subscriptions/inbox")
	require.NoError(t, err)
	assert.Equal(t, "projects/other/subscriptions/inbox", name)

	// a topic path is not a subscription path
	name, err = c.resourceName("subscriptions", "projects/other/topics/inbox")
	require.NoError(t, err)
	assert.Equal(t, "projects/consultly-dev/subscriptions/projects/other/topics/inbox", name)

	_, err = c.resourceName("subscriptions", "")
	assert.ErrorContains(t, err, "subscription name is required")
	_, err = (&Client{}).resourceName("topics", "t")
	assert.ErrorIs(t, err, errProjectIDRequired)
}

func TestNilClientIsSafe(t *testing.T) {
	var c *Client
	assert.Nil(t, c.Publisher("t"))
	assert.Nil(t, c.BookingSubscription())
	assert.NoError(t, c.Close())
	assert.Error(t, c.Ping(context.Background()))
}

func TestNewClientRequiresProject(t *testing.T) {
	_, err := NewClient(context.Background(), config.GCPConfig{}, config.PubSubConfig{}, RolePublisher, logger.Nop())
	assert.ErrorIs(t, err, errProjectIDRequired)
}
