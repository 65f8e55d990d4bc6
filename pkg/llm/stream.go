package llm

import (
	"errors"
	"fmt"

	"github.com/tidwall/gjson"
)

// ErrMalformedFrame is returned by Decode when a frame payload is not a JSON
// object.
var ErrMalformedFrame = errors.New("malformed frame")

// Kind is the value of the "event" field of a decoded frame.
type Kind string

const (
	KindMessage        Kind = "message"
	KindAgentMessage   Kind = "agent_message"
	KindMessageReplace Kind = "message_replace"
	KindError          Kind = "error"
)

// Event is one decoded stream payload. The concrete type is one of *Delta,
// *Replace, *Failure or *Unrecognized.
type Event interface {
	// Kind returns the raw event type. It is empty when the payload had no
	// "event" field.
	Kind() Kind

	// ConversationID returns the correlation token carried by the payload,
	// if any. It may be present on every kind, including unrecognized ones.
	ConversationID() (string, bool)
}

type header struct {
	kind           Kind
	conversationID *string
}

func (h header) Kind() Kind { return h.kind }

func (h header) ConversationID() (string, bool) {
	if h.conversationID == nil {
		return "", false
	}
	return *h.conversationID, true
}

// Delta appends Answer to the accumulated reply. Emitted for "message" and
// "agent_message".
type Delta struct {
	header
	Answer *string
}

// Replace discards the accumulated reply in favor of Answer.
type Replace struct {
	header
	Answer *string
}

// Failure terminates the turn. Message is the upstream error text.
type Failure struct {
	header
	Message *string
}

// Unrecognized is any payload whose event type is absent or unknown.
type Unrecognized struct {
	header
}

// Decode parses one frame payload into an Event. Fields that are absent, or
// present with a non-string type, are left nil rather than defaulted.
func Decode(data []byte) (Event, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("%w: invalid JSON", ErrMalformedFrame)
	}

	rec := gjson.ParseBytes(data)
	if !rec.IsObject() {
		return nil, fmt.Errorf("%w: payload is not an object", ErrMalformedFrame)
	}

	h := header{conversationID: optionalString(rec.Get("conversation_id"))}
	if kind := optionalString(rec.Get("event")); kind != nil {
		h.kind = Kind(*kind)
	}

	switch h.kind {
	case KindMessage, KindAgentMessage:
		return &Delta{header: h, Answer: optionalString(rec.Get("answer"))}, nil
	case KindMessageReplace:
		return &Replace{header: h, Answer: optionalString(rec.Get("answer"))}, nil
	case KindError:
		return &Failure{header: h, Message: optionalString(rec.Get("message"))}, nil
	default:
		return &Unrecognized{header: h}, nil
	}
}

func optionalString(r gjson.Result) *string {
	if r.Type != gjson.String {
		return nil
	}
	s := r.Str
	return &s
}

// deref returns *s, or "" when s is nil.
func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
