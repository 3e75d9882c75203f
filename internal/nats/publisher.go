package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// EventPublisher is what domain services depend on. Publishing is best-effort:
// the state change has already committed when an event is emitted.
type EventPublisher interface {
	Publish(ctx context.Context, event Event) error
}

// Publisher publishes domain events to NATS JetStream.
type Publisher struct {
	js jetstream.JetStream
}

// NewPublisher creates a new Publisher.
func NewPublisher(js jetstream.JetStream) *Publisher {
	return &Publisher{js: js}
}

// Publish sends the event with its id as the JetStream dedupe key.
func (p *Publisher) Publish(ctx context.Context, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshaling event %s: %w", event.Type, err)
	}
	msg := &nats.Msg{
		Subject: event.Subject(),
		Data:    payload,
		Header:  nats.Header{},
	}
	msg.Header.Set(jetstream.MsgIDHeader, event.ID.String())
	if _, err := p.js.PublishMsg(ctx, msg); err != nil {
		return fmt.Errorf("publishing to %s: %w", event.Subject(), err)
	}
	return nil
}

// NopPublisher drops events. Used when NATS_URL is unset.
type NopPublisher struct{}

func (NopPublisher) Publish(ctx context.Context, event Event) error {
	slog.Debug("event publishing disabled, dropping event", "type", event.Type)
	return nil
}

// PublishQuietly publishes and logs failures instead of returning them.
func PublishQuietly(ctx context.Context, p EventPublisher, event Event) {
	if p == nil {
		return
	}
	if err := p.Publish(ctx, event); err != nil {
		slog.Warn("publishing domain event", "error", err, "type", event.Type)
	}
}
