// Package conversation implements the chat engine: it owns the transcript and
// the correlation token of one session and drives a single streaming turn at
// a time, mutating the assistant reply in place as events arrive.
package conversation

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"maps"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/KimYongKuk/commercial-analysis/pkg/llm"
	"github.com/KimYongKuk/commercial-analysis/pkg/logger"
)

var (
	// ErrEmptyQuery is returned by Submit for blank text.
	ErrEmptyQuery = errors.New("query is empty")

	// ErrBusy is returned by Submit while another turn is in flight.
	ErrBusy = errors.New("a turn is already in progress")
)

// Transport opens the response stream for one turn.
type Transport interface {
	Open(ctx context.Context, req *llm.ChatRequest) (io.ReadCloser, error)
}

// Engine holds the state of one chat session. It is safe for concurrent use;
// Submit rejects overlapping turns with ErrBusy.
type Engine struct {
	transport Transport
	logger    *slog.Logger
	now       func() time.Time
	observers []Observer

	user         string
	inputs       map[string]any
	fallbackText string
	errorText    string
	welcome      string

	mu             sync.Mutex
	transcript     []Message
	lastID         int
	loading        bool
	conversationID string
}

// New returns an Engine sending turns through transport.
func New(transport Transport, opts ...Option) *Engine {
	e := &Engine{
		transport:    transport,
		now:          time.Now,
		fallbackText: DefaultFallbackText,
		errorText:    DefaultErrorText,
	}
	for _, opt := range opts {
		opt(e)
	}

	e.logger = logger.OrNop(e.logger)
	if e.user == "" {
		e.user = "user-" + uuid.NewString()
	}
	if e.welcome != "" {
		e.appendLocked(SenderAssistant, e.welcome, false)
	}

	return e
}

// Submit runs one turn for text and blocks until it is finalized. It only
// returns an error when the turn is rejected before any state change; stream
// and transport faults end up in the transcript instead.
//
// ctx bounds the whole turn. Cancelling it is treated like a transport
// failure.
func (e *Engine) Submit(ctx context.Context, text string) error {
	if strings.TrimSpace(text) == "" {
		return ErrEmptyQuery
	}

	e.mu.Lock()
	if e.loading {
		e.mu.Unlock()
		return ErrBusy
	}
	e.loading = true
	e.appendLocked(SenderUser, text, false)
	reply := e.appendLocked(SenderAssistant, "", true)

	req := llm.NewChatRequest(text, e.conversationID, e.user)
	if e.inputs != nil {
		req.Inputs = maps.Clone(e.inputs)
	}
	e.mu.Unlock()
	e.notify()

	e.logger.Debug("turn started",
		"reply_id", e.messageID(reply),
		"conversation_id", req.ConversationID,
	)

	e.stream(ctx, reply, req)
	return nil
}

func (e *Engine) stream(ctx context.Context, reply int, req *llm.ChatRequest) {
	start := time.Now()

	body, err := e.transport.Open(ctx, req)
	if err != nil {
		e.logger.Warn("opening stream failed", "error", err)
		e.finish(reply, &e.fallbackText)
		return
	}
	defer body.Close()

	answer := &llm.Answer{ErrorFallback: e.errorText}
	dec := llm.NewStreamDecoder(body, e.logger)

	for ev, err := range dec.All() {
		if err != nil {
			e.logger.Warn("stream interrupted", "error", err)
			e.finish(reply, &e.fallbackText)
			return
		}

		terminal := answer.Apply(ev)
		e.apply(reply, answer)
		if terminal {
			break
		}
	}

	e.logger.Debug("turn finished",
		"failed", answer.Failed(),
		"malformed_frames", dec.Malformed(),
		"duration", time.Since(start),
	)
	e.finish(reply, nil)
}

// apply copies the accumulated answer into the reply message.
func (e *Engine) apply(reply int, answer *llm.Answer) {
	e.mu.Lock()
	changed := false

	if answer.ConversationID != "" && answer.ConversationID != e.conversationID {
		e.conversationID = answer.ConversationID
		changed = true
	}

	msg := &e.transcript[reply]
	if msg.Streaming && msg.Text != answer.Text {
		msg.Text = answer.Text
		changed = true
	}
	e.mu.Unlock()

	if changed {
		e.notify()
	}
}

// finish finalizes the reply, optionally replacing its text, and ends the
// turn.
func (e *Engine) finish(reply int, text *string) {
	e.mu.Lock()
	msg := &e.transcript[reply]
	if text != nil {
		msg.Text = *text
	}
	msg.Streaming = false
	e.loading = false
	e.mu.Unlock()

	e.notify()
}

// appendLocked adds a message and returns its transcript index. e.mu must be
// held, except during construction.
func (e *Engine) appendLocked(sender Sender, text string, streaming bool) int {
	e.lastID++
	e.transcript = append(e.transcript, Message{
		ID:        e.lastID,
		Sender:    sender,
		Text:      text,
		CreatedAt: e.now(),
		Streaming: streaming,
	})
	return len(e.transcript) - 1
}

func (e *Engine) messageID(index int) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.transcript[index].ID
}

func (e *Engine) notify() {
	if len(e.observers) == 0 {
		return
	}
	snap := e.Snapshot()
	for _, o := range e.observers {
		o(snap)
	}
}

// Snapshot returns a copy of the current state.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	return Snapshot{
		Transcript:     append([]Message(nil), e.transcript...),
		Loading:        e.loading,
		ConversationID: e.conversationID,
	}
}

// Transcript returns a copy of the messages in conversation order.
func (e *Engine) Transcript() []Message {
	return e.Snapshot().Transcript
}

// IsLoading reports whether a turn is in flight.
func (e *Engine) IsLoading() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.loading
}

// ConversationID returns the correlation token, or "" before the backend has
// assigned one.
func (e *Engine) ConversationID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.conversationID
}

// User returns the caller identity sent with each turn.
func (e *Engine) User() string { return e.user }
