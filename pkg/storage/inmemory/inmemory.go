// Package inmemory provides a map-backed storage.Driver for tests and for
// running the proxy without a database.
package inmemory

import (
	"cmp"
	"context"
	"errors"
	"slices"
	"sync"

	"github.com/KimYongKuk/commercial-analysis/pkg/llm"
	"github.com/KimYongKuk/commercial-analysis/pkg/storage"
)

// Driver implements storage.Driver using an in-memory map.
type Driver struct {
	// mu guards turns and order
	mu sync.RWMutex

	// turns is keyed by turn ID
	turns map[string]*llm.ConversationTurn

	// order holds turn IDs in insertion order
	order []string
}

// NewDriver creates a new in-memory driver.
func NewDriver() *Driver {
	return &Driver{
		turns: make(map[string]*llm.ConversationTurn),
	}
}

// Put stores a copy of turn. Returns false if the ID is already present.
func (s *Driver) Put(_ context.Context, turn *llm.ConversationTurn) (bool, error) {
	if turn == nil {
		return false, errors.New("cannot store nil turn")
	}
	if turn.ID == "" {
		return false, errors.New("cannot store turn without an id")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.turns[turn.ID]; ok {
		return false, nil
	}

	stored := *turn
	s.turns[turn.ID] = &stored
	s.order = append(s.order, turn.ID)
	return true, nil
}

// Get retrieves a turn by its ID.
func (s *Driver) Get(_ context.Context, id string) (*llm.ConversationTurn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	turn, ok := s.turns[id]
	if !ok {
		return nil, storage.NotFoundError{ID: id}
	}

	found := *turn
	return &found, nil
}

// ListByConversation returns the turns of one conversation, oldest first.
func (s *Driver) ListByConversation(_ context.Context, conversationID string) ([]*llm.ConversationTurn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*llm.ConversationTurn
	for _, id := range s.order {
		turn := s.turns[id]
		if turn.ConversationID == conversationID {
			found := *turn
			result = append(result, &found)
		}
	}

	slices.SortStableFunc(result, func(a, b *llm.ConversationTurn) int {
		return a.StartedAt.Compare(b.StartedAt)
	})
	return result, nil
}

// Conversations summarizes every conversation, most recently active first.
func (s *Driver) Conversations(_ context.Context) ([]storage.ConversationSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byID := make(map[string]*storage.ConversationSummary)
	for _, id := range s.order {
		turn := s.turns[id]
		if turn.ConversationID == "" {
			continue
		}

		summary, ok := byID[turn.ConversationID]
		if !ok {
			summary = &storage.ConversationSummary{
				ID:         turn.ConversationID,
				User:       turn.User,
				FirstQuery: turn.Query,
				StartedAt:  turn.StartedAt,
				UpdatedAt:  turn.StartedAt,
			}
			byID[turn.ConversationID] = summary
		}

		summary.TurnCount++
		if turn.StartedAt.Before(summary.StartedAt) {
			summary.StartedAt = turn.StartedAt
			summary.FirstQuery = turn.Query
			summary.User = turn.User
		}
		if turn.StartedAt.After(summary.UpdatedAt) {
			summary.UpdatedAt = turn.StartedAt
		}
	}

	result := make([]storage.ConversationSummary, 0, len(byID))
	for _, summary := range byID {
		result = append(result, *summary)
	}
	slices.SortFunc(result, func(a, b storage.ConversationSummary) int {
		if c := b.UpdatedAt.Compare(a.UpdatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})

	return result, nil
}

// Count returns the number of turns in the store.
func (s *Driver) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.turns)
}

// Close is a no-op for the in-memory driver.
func (s *Driver) Close() error {
	return nil
}
