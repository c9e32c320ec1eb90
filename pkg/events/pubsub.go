package events

import (
	"context"
	"errors"
	"fmt"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
)

type pubSubClient interface {
	OrdersPublisher() *gcppubsub.Publisher
	Close() error
}

type publisher interface {
	Publish(context.Context, *gcppubsub.Message) publishResult
}

type publishResult interface {
	Get(context.Context) (string, error)
}

// PubSubPublisher writes envelopes to the orders topic on Google Pub/Sub.
type PubSubPublisher struct {
	client  pubSubClient
	topic   publisher
	timeout time.Duration
}

func NewPubSubPublisher(client pubSubClient, timeout time.Duration) (*PubSubPublisher, error) {
	if client == nil {
		return nil, errors.New("pubsub client is required")
	}
	topic := newGCPPublisher(client.OrdersPublisher())
	if topic == nil {
		return nil, errors.New("pubsub orders topic not configured")
	}
	return &PubSubPublisher{client: client, topic: topic, timeout: timeout}, nil
}

func (p *PubSubPublisher) Publish(ctx context.Context, envelope Envelope) error {
	payload, err := encode(envelope)
	if err != nil {
		return err
	}
	msg := &gcppubsub.Message{
		Data:       payload,
		Attributes: envelope.attributes(),
	}

	publishCtx, cancel := withTimeout(ctx, p.timeout)
	defer cancel()
	result := p.topic.Publish(publishCtx, msg)
	if result == nil {
		return fmt.Errorf("publisher returned nil for %s", envelope.Type)
	}
	if _, err := result.Get(publishCtx); err != nil {
		return fmt.Errorf("publish %s: %w", envelope.Type, err)
	}
	return nil
}

func (p *PubSubPublisher) Close() error {
	if p == nil || p.client == nil {
		return nil
	}
	return p.client.Close()
}

func newGCPPublisher(p *gcppubsub.Publisher) publisher {
	if p == nil {
		return nil
	}
	return &gcpPublisher{Publisher: p}
}

type gcpPublisher struct {
	*gcppubsub.Publisher
}

func (p *gcpPublisher) Publish(ctx context.Context, msg *gcppubsub.Message) publishResult {
	if p == nil || p.Publisher == nil {
		return nil
	}
	return p.Publisher.Publish(ctx, msg)
}
