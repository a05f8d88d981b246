package generation

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/tripplanner/backend/internal/domain"
)

// EventType discriminates the payloads of the generate-stream protocol.
type EventType string

const (
	EventChunk    EventType = "chunk"
	EventComplete EventType = "complete"
	EventError    EventType = "error"
)

// User-facing error messages carried in the "error" field of an error event.
const (
	MsgValidationFailed  = "資料格式驗證失敗"
	MsgGenerationFailed  = "生成失敗"
	MsgPersistenceFailed = "儲存失敗"
)

// Payload is the itinerary document carried by a complete event.
type Payload struct {
	Title string       `json:"title"`
	Days  []domain.Day `json:"days"`
}

// Event is one message of the stream. Which fields are meaningful depends on
// Type:
//
//	chunk:    Content is the whole text accumulated so far
//	complete: Data is the validated itinerary with ids assigned; ID is nil
//	          when persistence failed under the best-effort policy
//	error:    Error is a short message, Details the underlying cause
type Event struct {
	Type    EventType
	Content string
	Data    *Payload
	ID      *uuid.UUID
	Error   string
	Details string
}

// Terminal reports whether no event may follow this one.
func (e Event) Terminal() bool {
	return e.Type == EventComplete || e.Type == EventError
}

// MarshalJSON writes only the fields of the event's type. A complete event
// always carries "id", null when nothing was persisted.
func (e Event) MarshalJSON() ([]byte, error) {
	switch e.Type {
	case EventChunk:
		return json.Marshal(struct {
			Type    EventType `json:"type"`
			Content string    `json:"content"`
		}{e.Type, e.Content})
	case EventComplete:
		return json.Marshal(struct {
			Type EventType  `json:"type"`
			Data *Payload   `json:"data"`
			ID   *uuid.UUID `json:"id"`
		}{e.Type, e.Data, e.ID})
	case EventError:
		return json.Marshal(struct {
			Type    EventType `json:"type"`
			Error   string    `json:"error"`
			Details string    `json:"details,omitempty"`
		}{e.Type, e.Error, e.Details})
	default:
		return nil, fmt.Errorf("generation.Event: unknown type %q", e.Type)
	}
}

// UnmarshalJSON accepts any of the three payload shapes.
func (e *Event) UnmarshalJSON(b []byte) error {
	var w struct {
		Type    EventType  `json:"type"`
		Content string     `json:"content"`
		Data    *Payload   `json:"data"`
		ID      *uuid.UUID `json:"id"`
		Error   string     `json:"error"`
		Details string     `json:"details"`
	}
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	switch w.Type {
	case EventChunk, EventComplete, EventError:
	default:
		return fmt.Errorf("generation.Event: unknown type %q", w.Type)
	}
	*e = Event{Type: w.Type, Content: w.Content, Data: w.Data, ID: w.ID, Error: w.Error, Details: w.Details}
	return nil
}
