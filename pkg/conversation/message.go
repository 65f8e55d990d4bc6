package conversation

import "time"

// Sender identifies who authored a Message.
type Sender string

const (
	SenderUser      Sender = "user"
	SenderAssistant Sender = "assistant"
)

// Message is one entry of the transcript.
type Message struct {
	// ID is unique within the engine and increases in creation order.
	ID        int       `json:"id"`
	Sender    Sender    `json:"sender"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`

	// Streaming is true only for the assistant reply of the turn in flight.
	Streaming bool `json:"streaming"`
}

// Snapshot is a consistent copy of the engine state.
type Snapshot struct {
	Transcript     []Message
	Loading        bool
	ConversationID string
}

// Last returns the most recent message, or false when the transcript is empty.
func (s Snapshot) Last() (Message, bool) {
	if len(s.Transcript) == 0 {
		return Message{}, false
	}
	return s.Transcript[len(s.Transcript)-1], true
}
