package llm

import "time"

// TurnStatus is the outcome of a recorded turn.
type TurnStatus string

const (
	TurnCompleted TurnStatus = "completed"
	TurnFailed    TurnStatus = "failed"
)

// ConversationTurn is one proxied request/response pair as it is stored and
// published.
type ConversationTurn struct {
	ID             string     `json:"id"`
	ConversationID string     `json:"conversation_id"`
	User           string     `json:"user"`
	Query          string     `json:"query"`
	Answer         string     `json:"answer"`
	Error          string     `json:"error,omitempty"`
	Status         TurnStatus `json:"status"`

	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration_ns"`
}

// CompletedAt is StartedAt plus Duration.
func (t *ConversationTurn) CompletedAt() time.Time {
	return t.StartedAt.Add(t.Duration)
}
