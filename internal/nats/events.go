package nats

import (
	"time"

	"github.com/google/uuid"
)

// FetchTimeout is the default timeout for batch fetching messages from consumers.
const FetchTimeout = 2 * time.Second

// StreamEvents holds every domain event; consumers filter by subject.
const StreamEvents = "AURA_EVENTS"

// SubjectEventPrefix is the root of all event subjects: aura.events.{type}.
const SubjectEventPrefix = "aura.events"

// Event types.
const (
	EventPaymentCompleted  = "payment.completed"
	EventPaymentFailed     = "payment.failed"
	EventCouponRedeemed    = "coupon.redeemed"
	EventPalmCompleted     = "palm.completed"
	EventPalmFailed        = "palm.failed"
	EventFeedbackSubmitted = "feedback.submitted"
	EventProfileUpdated    = "profile.updated"
)

// Event is a domain event published after a state change has been committed.
type Event struct {
	ID           uuid.UUID      `json:"id"`
	Type         string         `json:"type"`
	UserID       uuid.UUID      `json:"user_id"`
	Severity     string         `json:"severity"` // info, warn, error
	ResourceType string         `json:"resource_type,omitempty"`
	ResourceID   string         `json:"resource_id,omitempty"`
	Details      map[string]any `json:"details,omitempty"`
	Timestamp    time.Time      `json:"timestamp"`
}

// NewEvent fills in id, timestamp and a default severity.
func NewEvent(eventType string, userID uuid.UUID, resourceType, resourceID string, details map[string]any) Event {
	severity := "info"
	if eventType == EventPalmFailed || eventType == EventPaymentFailed {
		severity = "warn"
	}
	return Event{
		ID:           uuid.New(),
		Type:         eventType,
		UserID:       userID,
		Severity:     severity,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		Details:      details,
		Timestamp:    time.Now().UTC(),
	}
}

// Subject returns the subject the event is published on.
func (e Event) Subject() string {
	return SubjectEventPrefix + "." + e.Type
}
