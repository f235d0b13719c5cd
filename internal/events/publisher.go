// Package events delivers fire-and-forget identity events to downstream
// consumers. Delivery is at-most-once; a failed publish must never affect
// the operation that produced the event.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Event types carried in the envelope.
const (
	TypeUserRegistered = "UserRegistered"
	TypeUserUpdated    = "UserUpdated"
	TypeUserDeleted    = "UserDeleted"
)

// Envelope wraps an event payload with delivery metadata.
type Envelope struct {
	EventID    string         `json:"eventId"`
	Type       string         `json:"type"`
	OccurredAt time.Time      `json:"occurredAt"`
	Payload    map[string]any `json:"payload"`
}

// NewEnvelope stamps a payload with a fresh event id and occurrence time.
func NewEnvelope(eventType string, payload map[string]any) Envelope {
	return Envelope{
		EventID:    uuid.NewString(),
		Type:       eventType,
		OccurredAt: time.Now().UTC(),
		Payload:    payload,
	}
}

// Publisher delivers event envelopes keyed by account id.
type Publisher interface {
	Publish(ctx context.Context, key string, envelope Envelope) error
}

// RedisPublisher appends envelopes to a Redis stream. The account id rides
// along as the key field so consumers can partition per account.
type RedisPublisher struct {
	client *redis.Client
	stream string
}

// NewRedisPublisher builds a publisher writing to the named stream.
func NewRedisPublisher(client *redis.Client, stream string) *RedisPublisher {
	return &RedisPublisher{client: client, stream: stream}
}

// Publish appends one entry to the stream.
func (p *RedisPublisher) Publish(ctx context.Context, key string, envelope Envelope) error {
	payload, err := json.Marshal(envelope.Payload)
	if err != nil {
		return fmt.Errorf("encode event payload: %w", err)
	}

	err = p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		Values: map[string]any{
			"event_id":    envelope.EventID,
			"type":        envelope.Type,
			"occurred_at": envelope.OccurredAt.Format(time.RFC3339Nano),
			"key":         key,
			"payload":     string(payload),
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("xadd %s: %w", p.stream, err)
	}
	return nil
}

// LoggerPublisher writes envelopes to the structured logger. It serves
// development runs without a broker configured.
type LoggerPublisher struct {
	logger *slog.Logger
}

// NewLoggerPublisher constructs a logging publisher.
func NewLoggerPublisher(logger *slog.Logger) *LoggerPublisher {
	return &LoggerPublisher{logger: logger}
}

// Publish writes the envelope to the logger.
func (p *LoggerPublisher) Publish(_ context.Context, key string, envelope Envelope) error {
	if p == nil || p.logger == nil {
		return nil
	}
	p.logger.Info("user event",
		"event_id", envelope.EventID,
		"type", envelope.Type,
		"key", key,
		"payload", envelope.Payload,
	)
	return nil
}
