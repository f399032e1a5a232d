package events

import (
	"encoding/json"
	"fmt"
	"time"
)

// Event statuses.
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// Event is a named message queued in the database until its handlers run.
type Event struct {
	ID          string
	Name        string // e.g. "workflow/execute"
	Payload     json.RawMessage
	Metadata    Metadata
	Status      string
	Error       string
	CreatedAt   time.Time
	ProcessedAt *time.Time
}

// Metadata carries request context alongside an event.
type Metadata struct {
	RequestID string `json:"requestId,omitempty"`
	UserID    string `json:"userId,omitempty"`
	Source    string `json:"source,omitempty"`
}

// New builds a pending event with payload marshaled to JSON.
func New(name string, payload any, meta Metadata) (*Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshaling %s payload: %w", name, err)
	}
	return &Event{
		Name:     name,
		Payload:  data,
		Metadata: meta,
	}, nil
}

// Decode unmarshals the payload into v.
func (e *Event) Decode(v any) error {
	if err := json.Unmarshal(e.Payload, v); err != nil {
		return fmt.Errorf("decoding %s payload: %w", e.Name, err)
	}
	return nil
}
