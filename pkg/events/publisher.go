package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/laglue/storefront/pkg/config"
	"github.com/laglue/storefront/pkg/logger"
	"github.com/laglue/storefront/pkg/pubsub"
)

const defaultPublishTimeout = 10 * time.Second

// Publisher delivers envelopes to a broker.
type Publisher interface {
	Publish(ctx context.Context, envelope Envelope) error
	Close() error
}

// Noop drops every event. It is used when no broker is configured.
type Noop struct{}

func (Noop) Publish(context.Context, Envelope) error { return nil }
func (Noop) Close() error                            { return nil }

// New builds the publisher selected by cfg.Events.Broker.
func New(ctx context.Context, cfg *config.Config, logg *logger.Logger) (Publisher, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	switch cfg.Events.Broker {
	case config.EventBrokerNone, "":
		return Noop{}, nil
	case config.EventBrokerPubSub:
		client, err := pubsub.NewClient(ctx, cfg.GCP, cfg.Events, logg)
		if err != nil {
			return nil, err
		}
		return NewPubSubPublisher(client, cfg.Events.Timeout)
	case config.EventBrokerKafka:
		return NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Events.OrdersTopic, cfg.Events.Timeout)
	default:
		return nil, fmt.Errorf("unsupported event broker %q", cfg.Events.Broker)
	}
}

func encode(envelope Envelope) ([]byte, error) {
	if envelope.Type == "" {
		return nil, errors.New("event type is required")
	}
	payload, err := json.Marshal(envelope)
	if err != nil {
		return nil, fmt.Errorf("encode envelope: %w", err)
	}
	return payload, nil
}

func withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		timeout = defaultPublishTimeout
	}
	return context.WithTimeout(ctx, timeout)
}
