// Package eventstream defines the events the proxy emits after a chat turn
// has been recorded, and the Publisher interface backends implement.
package eventstream

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/KimYongKuk/commercial-analysis/pkg/llm"
)

const (
	// SchemaVersionV1 is the first version of the event payload schema.
	SchemaVersionV1 = 1

	// EventTypeTurnRecorded is emitted after a conversation turn is persisted.
	EventTypeTurnRecorded = "jobflex.turn.recorded"
)

// TurnRecordedEvent is a transport-neutral event payload for a recorded turn.
type TurnRecordedEvent struct {
	SchemaVersion int                  `json:"schema_version"`
	EventType     string               `json:"event_type"`
	EventID       string               `json:"event_id"`
	EmittedAt     time.Time            `json:"emitted_at"`
	Source        EventSource          `json:"source"`
	Turn          llm.ConversationTurn `json:"turn"`
}

// EventSource identifies where the turn was proxied.
type EventSource struct {
	Service  string `json:"service"`
	Upstream string `json:"upstream,omitempty"`
}

// NewTurnRecordedEvent wraps turn in a v1 event with a fresh event ID.
func NewTurnRecordedEvent(turn *llm.ConversationTurn, source EventSource, emittedAt time.Time) (*TurnRecordedEvent, error) {
	if turn == nil {
		return nil, ErrNilTurnEvent
	}

	return &TurnRecordedEvent{
		SchemaVersion: SchemaVersionV1,
		EventType:     EventTypeTurnRecorded,
		EventID:       uuid.NewString(),
		EmittedAt:     emittedAt.UTC(),
		Source:        source,
		Turn:          *turn,
	}, nil
}

// Key partitions events so that turns of one conversation stay ordered.
// Turns without a conversation fall back to their own ID.
func (e *TurnRecordedEvent) Key() string {
	if e.Turn.ConversationID != "" {
		return e.Turn.ConversationID
	}
	return e.Turn.ID
}

// Marshal encodes event as the JSON wire payload shared by every backend.
func Marshal(event *TurnRecordedEvent) ([]byte, error) {
	if event == nil {
		return nil, ErrNilTurnEvent
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("marshaling turn event: %w", err)
	}
	return payload, nil
}
