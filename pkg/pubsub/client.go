package pubsub

import (
	"context"
	"errors"
	"fmt"
	"strings"

	pubsub "cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"

	"github.com/angelmondragon/consultly-backend/pkg/config"
	"github.com/angelmondragon/consultly-backend/pkg/logger"
)

// Role selects which resources a process needs to exist before it starts.
type Role int

const (
	// RolePublisher needs the booking topic.
	RolePublisher Role = iota + 1
	// RoleSubscriber needs the booking subscription.
	RoleSubscriber
)

type Client struct {
	client    *pubsub.Client
	projectID string
	cfg       config.PubSubConfig
	role      Role
}

var errProjectIDRequired = errors.New("gcp project id is required")

// NewClient creates a Pub/Sub v2 client and checks that the resources role
// depends on exist. Topics and subscriptions are provisioned outside the app.
func NewClient(ctx context.Context, gcp config.GCPConfig, cfg config.PubSubConfig, role Role, logg *logger.Logger) (*Client, error) {
	if strings.TrimSpace(gcp.ProjectID) == "" {
		return nil, errProjectIDRequired
	}
	psClient, err := pubsub.NewClient(ctx, gcp.ProjectID, clientOptions(gcp, cfg)...)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}

	c := &Client{client: psClient, projectID: gcp.ProjectID, cfg: cfg, role: role}
	if err := c.Ping(ctx); err != nil {
		_ = psClient.Close()
		return nil, err
	}
	if logg != nil {
		logg.Info(logg.WithFields(ctx, map[string]any{
			"project":  gcp.ProjectID,
			"emulator": cfg.EmulatorHost != "",
		}), "pubsub client initialized")
	}
	return c, nil
}

// clientOptions picks the emulator first, then inline credentials, then a
// credentials file. With none of them set the library falls back to ADC.
func clientOptions(gcp config.GCPConfig, cfg config.PubSubConfig) []option.ClientOption {
	switch {
	case strings.TrimSpace(cfg.EmulatorHost) != "":
		return []option.ClientOption{
			option.WithEndpoint(strings.TrimSpace(cfg.EmulatorHost)),
			option.WithoutAuthentication(),
			option.WithGRPCDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
		}
	case strings.TrimSpace(gcp.CredentialsJSON) != "":
		return []option.ClientOption{option.WithCredentialsJSON([]byte(gcp.CredentialsJSON))}
	case strings.TrimSpace(gcp.ApplicationCredentials) != "":
		return []option.ClientOption{option.WithCredentialsFile(gcp.ApplicationCredentials)}
	default:
		return nil
	}
}

// Ping checks that the resources the client's role depends on still exist.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.client == nil {
		return errors.New("pubsub client not initialized")
	}
	switch c.role {
	case RolePublisher:
		name, err := c.resourceName("topics", c.cfg.BookingTopic)
		if err != nil {
			return err
		}
		_, err = c.client.TopicAdminClient.GetTopic(ctx, &pubsubpb.GetTopicRequest{Topic: name})
		return describe("topic", name, err)
	case RoleSubscriber:
		name, err := c.resourceName("subscriptions", c.cfg.BookingSubscription)
		if err != nil {
			return err
		}
		_, err = c.client.SubscriptionAdminClient.GetSubscription(ctx, &pubsubpb.GetSubscriptionRequest{Subscription: name})
		return describe("subscription", name, err)
	default:
		return fmt.Errorf("unknown pubsub role %d", c.role)
	}
}

func describe(kind, name string, err error) error {
	switch {
	case err == nil:
		return nil
	case status.Code(err) == codes.NotFound:
		return fmt.Errorf("%s %q does not exist", kind, name)
	default:
		return fmt.Errorf("checking %s %q: %w", kind, name, err)
	}
}

// BookingSubscription returns the subscriber the notification inbox reads
// from, with flow control taken from config.
func (c *Client) BookingSubscription() *pubsub.Subscriber {
	if c == nil || c.client == nil {
		return nil
	}
	name, err := c.resourceName("subscriptions", c.cfg.BookingSubscription)
	if err != nil {
		return nil
	}
	sub := c.client.Subscriber(name)
	if c.cfg.MaxOutstanding > 0 {
		sub.ReceiveSettings.MaxOutstandingMessages = c.cfg.MaxOutstanding
	}
	if c.cfg.NumGoroutines > 0 {
		sub.ReceiveSettings.NumGoroutines = c.cfg.NumGoroutines
	}
	return sub
}

// Publisher returns a publisher handle for a topic id or full resource name.
func (c *Client) Publisher(topic string) *pubsub.Publisher {
	if c == nil || c.client == nil {
		return nil
	}
	name, err := c.resourceName("topics", topic)
	if err != nil {
		return nil
	}
	return c.client.Publisher(name)
}

// Close releases the Pub/Sub client resources.
func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

// resourceName expands an id into projects/<project>/<kind>/<id>. Full
// resource names pass through untouched.
func (c *Client) resourceName(kind, id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", fmt.Errorf("pubsub %s name is required", strings.TrimSuffix(kind, "s"))
	}
	if strings.HasPrefix(id, "projects/") && strings.Contains(id, "/"+kind+"/") {
		return id, nil
	}
	project := strings.TrimSpace(c.projectID)
	if project == "" {
		return "", errProjectIDRequired
	}
	return fmt.Sprintf("projects/%s/%s/%s", project, kind, id), nil
}
