// Package storage defines how recorded chat turns are persisted and read back.
package storage

import (
	"context"
	"time"

	"github.com/KimYongKuk/commercial-analysis/pkg/llm"
)

// Driver defines the interface for persisting and retrieving conversation
// turns in a storage backend.
type Driver interface {
	// Put stores a turn. Returns true if the turn was newly inserted, false
	// if a turn with the same ID already exists, in which case Put is a
	// no-op.
	Put(ctx context.Context, turn *llm.ConversationTurn) (bool, error)

	// Get retrieves a turn by its ID.
	Get(ctx context.Context, id string) (*llm.ConversationTurn, error)

	// ListByConversation returns the turns of one conversation, oldest first.
	ListByConversation(ctx context.Context, conversationID string) ([]*llm.ConversationTurn, error)

	// Conversations summarizes every conversation with at least one turn,
	// most recently active first. Turns without a conversation ID are not
	// part of any conversation.
	Conversations(ctx context.Context) ([]ConversationSummary, error)

	// Close closes the store and releases any resources.
	Close() error
}

// ConversationSummary describes one backend conversation.
type ConversationSummary struct {
	ID         string    `json:"id"`
	User       string    `json:"user"`
	TurnCount  int       `json:"turn_count"`
	FirstQuery string    `json:"first_query"`
	StartedAt  time.Time `json:"started_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}
