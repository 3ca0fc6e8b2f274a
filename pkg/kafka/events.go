package kafka

import (
	"time"

	"github.com/google/uuid"
)

// Topic the support pipeline publishes to
const SupportEventsTopic = "support_events"

// Event types emitted by the mention pipeline
const (
	EventMentionIngested = "mention.ingested"
	EventResponseRouted  = "response.routed"
	EventResponseSent    = "response.sent"
	EventResponseFailed  = "response.failed"
)

// Event represents a generic pipeline event
type Event struct {
	ID        string                 `json:"id"`
	Type      string                 `json:"type"`
	Source    string                 `json:"source"`
	Data      map[string]interface{} `json:"data"`
	Timestamp time.Time              `json:"timestamp"`
}

// NewEvent builds an event with a fresh id and current timestamp
func NewEvent(eventType, source string, data map[string]interface{}) *Event {
	return &Event{
		ID:        uuid.New().String(),
		Type:      eventType,
		Source:    source,
		Data:      data,
		Timestamp: time.Now().UTC(),
	}
}
