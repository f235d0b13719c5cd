package events

import (
	"context"
	"encoding/json"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/scmtp/user-service/internal/logging"
)

func TestRedisPublisherAppendsToStream(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	publisher := NewRedisPublisher(client, "user-events")
	envelope := NewEnvelope(TypeUserRegistered, map[string]any{
		"userId": "user-1",
		"email":  "a@b.com",
	})

	if err := publisher.Publish(context.Background(), "user-1", envelope); err != nil {
		t.Fatalf("publish: %v", err)
	}

	entries, err := client.XRange(context.Background(), "user-events", "-", "+").Result()
	if err != nil {
		t.Fatalf("xrange: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected one stream entry, got %d", len(entries))
	}

	values := entries[0].Values
	if values["type"] != TypeUserRegistered {
		t.Fatalf("expected type %s, got %v", TypeUserRegistered, values["type"])
	}
	if values["key"] != "user-1" {
		t.Fatalf("expected key user-1, got %v", values["key"])
	}
	if values["event_id"] != envelope.EventID {
		t.Fatalf("expected event id %s, got %v", envelope.EventID, values["event_id"])
	}

	var payload map[string]any
	raw, _ := values["payload"].(string)
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		t.Fatalf("payload is not json: %v", err)
	}
	if payload["email"] != "a@b.com" {
		t.Fatalf("unexpected payload: %+v", payload)
	}
}

func TestEnvelopesGetDistinctIDs(t *testing.T) {
	a := NewEnvelope(TypeUserUpdated, nil)
	b := NewEnvelope(TypeUserUpdated, nil)
	if a.EventID == b.EventID {
		t.Fatal("event ids must be unique")
	}
	if a.OccurredAt.IsZero() {
		t.Fatal("occurredAt must be stamped")
	}
}

func TestLoggerPublisherNeverFails(t *testing.T) {
	publisher := NewLoggerPublisher(logging.Discard())
	if err := publisher.Publish(context.Background(), "user-1", NewEnvelope(TypeUserDeleted, nil)); err != nil {
		t.Fatalf("logger publisher returned error: %v", err)
	}

	var nilPublisher *LoggerPublisher
	if err := nilPublisher.Publish(context.Background(), "", Envelope{}); err != nil {
		t.Fatalf("nil publisher returned error: %v", err)
	}
}
