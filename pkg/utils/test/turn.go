package testutils

import (
	"time"

	"github.com/KimYongKuk/commercial-analysis/pkg/llm"
)

// BaseTime is a fixed instant test turns are stamped relative to.
var BaseTime = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

// NewTestTurn creates a completed turn started offset after BaseTime.
func NewTestTurn(id, conversationID, query string, offset time.Duration) *llm.ConversationTurn {
	return &llm.ConversationTurn{
		ID:             id,
		ConversationID: conversationID,
		User:           "user-test",
		Query:          query,
		Answer:         "answer to " + query,
		Status:         llm.TurnCompleted,
		StartedAt:      BaseTime.Add(offset),
		Duration:       1500 * time.Millisecond,
	}
}
