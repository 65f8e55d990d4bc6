package conversation

import (
	"log/slog"
	"time"
)

// Text shown to the user.
const (
	// DefaultFallbackText replaces the reply when the transport fails.
	DefaultFallbackText = "죄송합니다. 서버와 연결할 수 없습니다. 잠시 후 다시 시도해주세요."

	// DefaultErrorText replaces an error event that carried no message.
	DefaultErrorText = "알 수 없는 오류가 발생했습니다."

	// DefaultWelcome is the greeting the chat command starts with.
	DefaultWelcome = "안녕하세요! JobFlex AI입니다. 분석 결과에 대해 궁금하신 점이 있으시면 언제든 물어보세요. 😊"
)

// Observer is called with a fresh Snapshot after every state change. Calls
// happen on the goroutine running Submit, outside the engine lock.
type Observer func(Snapshot)

// Option configures an Engine.
type Option func(*Engine)

// WithUser sets the caller identity sent with every turn.
func WithUser(user string) Option {
	return func(e *Engine) {
		e.user = user
	}
}

// WithLogger sets the engine logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// WithClock overrides time.Now for message timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// WithFallbackText overrides DefaultFallbackText.
func WithFallbackText(text string) Option {
	return func(e *Engine) {
		e.fallbackText = text
	}
}

// WithErrorText overrides DefaultErrorText.
func WithErrorText(text string) Option {
	return func(e *Engine) {
		e.errorText = text
	}
}

// WithWelcome adds a finalized assistant message as the first transcript
// entry.
func WithWelcome(text string) Option {
	return func(e *Engine) {
		e.welcome = text
	}
}

// WithObserver registers an observer. It may be given more than once.
func WithObserver(o Observer) Option {
	return func(e *Engine) {
		e.observers = append(e.observers, o)
	}
}

// WithInputs sets the structured inputs sent with every turn.
func WithInputs(inputs map[string]any) Option {
	return func(e *Engine) {
		e.inputs = inputs
	}
}

// WithConversationID seeds the correlation token, resuming an existing
// backend conversation.
func WithConversationID(id string) Option {
	return func(e *Engine) {
		e.conversationID = id
	}
}
