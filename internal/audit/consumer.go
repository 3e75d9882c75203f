package audit

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go/jetstream"

	inats "github.com/aurapalm/aura/internal/nats"
)

const (
	consumerName = "audit-persister"
	// nakDelay spaces out redeliveries while the store is failing.
	nakDelay = 5 * time.Second
)

// Store persists audit entries.
type Store interface {
	Insert(ctx context.Context, e *Entry) error
}

// Consumer listens on every domain event subject and persists an audit entry
// per event.
type Consumer struct {
	store       Store
	consumerMgr *inats.ConsumerManager
}

// NewConsumer creates a new audit event Consumer.
func NewConsumer(store Store, consumerMgr *inats.ConsumerManager) *Consumer {
	return &Consumer{
		store:       store,
		consumerMgr: consumerMgr,
	}
}

// Start begins the consume loop. Blocks until ctx is cancelled.
func (c *Consumer) Start(ctx context.Context) error {
	consumer, err := c.consumerMgr.EnsureConsumer(ctx, inats.StreamEvents, consumerName, inats.SubjectEventPrefix+".>")
	if err != nil {
		return err
	}

	slog.Info("audit consumer started", "consumer", consumerName)

	for {
		msgs, err := consumer.Fetch(10, jetstream.FetchMaxWait(inats.FetchTimeout))
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			slog.Debug("audit consumer: fetching events", "error", err)
			continue
		}

		for msg := range msgs.Messages() {
			if c.handle(ctx, msg.Data()) {
				_ = msg.Ack()
			} else {
				_ = msg.NakWithDelay(nakDelay)
			}
		}

		if ctx.Err() != nil {
			return nil
		}
	}
}

// handle reports whether the message should be acked. Malformed payloads are
// acked so they are not redelivered forever.
func (c *Consumer) handle(ctx context.Context, data []byte) bool {
	var event inats.Event
	if err := json.Unmarshal(data, &event); err != nil {
		slog.Error("audit consumer: unmarshaling event", "error", err)
		return true
	}

	entry := entryFromEvent(event)
	if err := c.store.Insert(ctx, entry); err != nil {
		slog.Error("audit consumer: persisting audit log", "error", err, "event_type", event.Type)
		return false
	}

	slog.Debug("audit consumer: persisted event",
		"event_type", event.Type,
		"user_id", event.UserID,
		"resource_id", event.ResourceID,
	)
	return true
}

func entryFromEvent(event inats.Event) *Entry {
	e := &Entry{
		ID:           uuid.New(),
		EventID:      event.ID,
		EventType:    event.Type,
		Severity:     event.Severity,
		ResourceType: event.ResourceType,
		ResourceID:   event.ResourceID,
		CreatedAt:    event.Timestamp,
	}
	if e.EventID == uuid.Nil {
		e.EventID = uuid.New()
	}
	if e.Severity == "" {
		e.Severity = "info"
	}
	if event.UserID != uuid.Nil {
		uid := event.UserID
		e.UserID = &uid
	}
	if len(event.Details) > 0 {
		if data, err := json.Marshal(event.Details); err == nil {
			e.Details = data
		}
	}
	return e
}
