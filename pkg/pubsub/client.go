// Package pubsub wraps the Google Pub/Sub v2 client used to announce
// submitted orders.
package pubsub

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	pubsub "cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	"github.com/laglue/storefront/pkg/config"
	"github.com/laglue/storefront/pkg/logger"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var (
	errProjectIDRequired = errors.New("gcp project id is required")
	errTopicRequired     = errors.New("pubsub topic name is required")
)

// topicAdmin is the slice of the topic admin API the client needs.
type topicAdmin interface {
	GetTopic(ctx context.Context, topic string) error
	CreateTopic(ctx context.Context, topic string) error
}

// Client owns the Pub/Sub connection and a single long-lived publisher for
// the orders topic.
type Client struct {
	client    *pubsub.Client
	admin     topicAdmin
	projectID string
	topic     string

	once      sync.Once
	publisher *pubsub.Publisher
}

// NewClient connects to Pub/Sub and checks the orders topic. With
// events.CreateTopic set a missing topic is created, which is what local
// runs against the emulator (PUBSUB_EMULATOR_HOST) rely on.
func NewClient(ctx context.Context, gcp config.GCPConfig, events config.EventsConfig, logg *logger.Logger) (*Client, error) {
	if strings.TrimSpace(gcp.ProjectID) == "" {
		return nil, errProjectIDRequired
	}
	if strings.TrimSpace(events.OrdersTopic) == "" {
		return nil, errTopicRequired
	}

	psClient, err := pubsub.NewClient(ctx, gcp.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}

	c := &Client{
		client:    psClient,
		admin:     grpcTopicAdmin{client: psClient},
		projectID: strings.TrimSpace(gcp.ProjectID),
		topic:     strings.TrimSpace(events.OrdersTopic),
	}
	if err := c.ensureTopic(ctx, events.CreateTopic); err != nil {
		_ = psClient.Close()
		return nil, err
	}

	if logg != nil {
		logg.Info(logg.WithField(ctx, "topic", c.topic), "pubsub client initialized")
	}
	return c, nil
}

func (c *Client) ensureTopic(ctx context.Context, create bool) error {
	name := c.topicResourceName(c.topic)
	if name == "" {
		return fmt.Errorf("topic %q not configured", c.topic)
	}
	err := c.admin.GetTopic(ctx, name)
	switch {
	case err == nil:
		return nil
	case status.Code(err) != codes.NotFound:
		return fmt.Errorf("checking topic %q: %w", c.topic, err)
	case !create:
		return fmt.Errorf("topic %q does not exist", c.topic)
	}
	if err := c.admin.CreateTopic(ctx, name); err != nil && status.Code(err) != codes.AlreadyExists {
		return fmt.Errorf("creating topic %q: %w", c.topic, err)
	}
	return nil
}

// OrdersPublisher returns the shared publisher for the orders topic.
func (c *Client) OrdersPublisher() *pubsub.Publisher {
	if c == nil || c.client == nil {
		return nil
	}
	c.once.Do(func() {
		if name := c.topicResourceName(c.topic); name != "" {
			c.publisher = c.client.Publisher(name)
		}
	})
	return c.publisher
}

// Ping verifies Pub/Sub connectivity by checking the topic still exists.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.admin == nil {
		return errors.New("pubsub client not initialized")
	}
	return c.ensureTopic(ctx, false)
}

// Close flushes pending publishes and releases the client.
func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	if c.publisher != nil {
		c.publisher.Stop()
	}
	return c.client.Close()
}

func (c *Client) topicResourceName(name string) string {
	n := strings.TrimSpace(name)
	if n == "" {
		return ""
	}
	if strings.HasPrefix(n, "projects/") && strings.Contains(n, "/topics/") {
		return n
	}
	if c.projectID == "" {
		return ""
	}
	return "projects/" + c.projectID + "/topics/" + n
}

type grpcTopicAdmin struct {
	client *pubsub.Client
}

func (a grpcTopicAdmin) GetTopic(ctx context.Context, topic string) error {
	_, err := a.client.TopicAdminClient.GetTopic(ctx, &pubsubpb.GetTopicRequest{Topic: topic})
	return err
}

func (a grpcTopicAdmin) CreateTopic(ctx context.Context, topic string) error {
	_, err := a.client.TopicAdminClient.CreateTopic(ctx, &pubsubpb.Topic{Name: topic})
	return err
}
