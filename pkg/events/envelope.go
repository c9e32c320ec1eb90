// Package events publishes storefront domain events to the configured broker.
package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const envelopeVersion = 1

// Event types emitted by the storefront.
const (
	TypeOrderSubmitted = "order.submitted"
)

// Envelope is the stable payload written to every broker.
type Envelope struct {
	Version    int             `json:"version"`
	EventID    string          `json:"eventId"`
	Type       string          `json:"type"`
	Key        string          `json:"key"`
	OccurredAt time.Time       `json:"occurredAt"`
	Data       json.RawMessage `json:"data"`
}

// NewEnvelope wraps data for publishing. key orders events on brokers that
// partition (the order code for order events).
func NewEnvelope(eventType, key string, occurredAt time.Time, data any) (Envelope, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return Envelope{}, fmt.Errorf("encode %s payload: %w", eventType, err)
	}
	return Envelope{
		Version:    envelopeVersion,
		EventID:    uuid.NewString(),
		Type:       eventType,
		Key:        key,
		OccurredAt: occurredAt.UTC(),
		Data:       payload,
	}, nil
}

func (e Envelope) attributes() map[string]string {
	return map[string]string{
		"event_type":  e.Type,
		"event_id":    e.EventID,
		"key":         e.Key,
		"occurred_at": e.OccurredAt.Format(time.RFC3339Nano),
	}
}
