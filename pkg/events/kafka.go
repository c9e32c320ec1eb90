package events

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
)

type kafkaWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes envelopes to a Kafka topic keyed by envelope key.
type KafkaPublisher struct {
	writer  kafkaWriter
	timeout time.Duration
}

func NewKafkaPublisher(brokers []string, topic string, timeout time.Duration) (*KafkaPublisher, error) {
	addrs := make([]string, 0, len(brokers))
	for _, broker := range brokers {
		if broker = strings.TrimSpace(broker); broker != "" {
			addrs = append(addrs, broker)
		}
	}
	if len(addrs) == 0 {
		return nil, errors.New("kafka brokers are required")
	}
	if strings.TrimSpace(topic) == "" {
		return nil, errors.New("kafka topic is required")
	}
	writer := &kafka.Writer{
		Addr:     kafka.TCP(addrs...),
		Topic:    topic,
		Balancer: &kafka.LeastBytes{},
	}
	return newKafkaPublisher(writer, timeout), nil
}

func newKafkaPublisher(writer kafkaWriter, timeout time.Duration) *KafkaPublisher {
	return &KafkaPublisher{writer: writer, timeout: timeout}
}

func (k *KafkaPublisher) Publish(ctx context.Context, envelope Envelope) error {
	payload, err := encode(envelope)
	if err != nil {
		return err
	}
	headers := make([]kafka.Header, 0, 4)
	for name, value := range envelope.attributes() {
		headers = append(headers, kafka.Header{Key: name, Value: []byte(value)})
	}

	publishCtx, cancel := withTimeout(ctx, k.timeout)
	defer cancel()
	err = k.writer.WriteMessages(publishCtx, kafka.Message{
		Key:     []byte(envelope.Key),
		Value:   payload,
		Headers: headers,
		Time:    envelope.OccurredAt,
	})
	if err != nil {
		return fmt.Errorf("write %s: %w", envelope.Type, err)
	}
	return nil
}

func (k *KafkaPublisher) Close() error {
	if k == nil || k.writer == nil {
		return nil
	}
	return k.writer.Close()
}
