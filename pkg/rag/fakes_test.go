package rag_test

import (
	"context"
	"errors"
	"slices"
	"sort"
	"strings"
	"sync"

	"github.com/KimYongKuk/commercial-analysis/pkg/rag"
	"github.com/KimYongKuk/commercial-analysis/pkg/vector"
)

// keywordEmbedder maps text onto one axis per keyword it contains.
type keywordEmbedder struct {
	keywords []string

	mu    sync.Mutex
	texts []string
	err   error
}

func (e *keywordEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.texts = append(e.texts, text)
	if e.err != nil {
		return nil, e.err
	}

	v := make([]float32, len(e.keywords)+1)
	v[len(e.keywords)] = 1
	for i, k := range e.keywords {
		if strings.Contains(text, k) {
			v[i] = 1
		}
	}
	return v, nil
}

func (e *keywordEmbedder) calls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.texts)
}

func (e *keywordEmbedder) Close() error { return nil }

// memoryStore is a vector.Driver ranking by squared euclidean distance.
type memoryStore struct {
	mu     sync.Mutex
	docs   map[string]vector.Document
	closed bool
}

func newMemoryStore() *memoryStore {
	return &memoryStore{docs: map[string]vector.Document{}}
}

func (s *memoryStore) Add(_ context.Context, docs []vector.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range docs {
		s.docs[d.ID] = d
	}
	return nil
}

func (s *memoryStore) Query(_ context.Context, embedding []float32, topK int) ([]vector.QueryResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []vector.QueryResult
	for _, d := range s.docs {
		var dist float64
		for i := range min(len(embedding), len(d.Embedding)) {
			diff := float64(embedding[i] - d.Embedding[i])
			dist += diff * diff
		}
		out = append(out, vector.QueryResult{Document: d, Score: vector.Score(dist)})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].ID < out[j].ID
	})
	if len(out) > topK {
		out = out[:topK]
	}
	return out, nil
}

func (s *memoryStore) Get(_ context.Context, ids []string) ([]vector.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []vector.Document
	for _, id := range ids {
		if d, ok := s.docs[id]; ok {
			out = append(out, d)
		}
	}
	return out, nil
}

func (s *memoryStore) Delete(_ context.Context, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		delete(s.docs, id)
	}
	return nil
}

func (s *memoryStore) Close() error {
	s.closed = true
	return nil
}

func (s *memoryStore) ids() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.docs))
	for id := range s.docs {
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}

// scriptedGenerator replays deltas, then returns err.
type scriptedGenerator struct {
	deltas []string
	usage  *rag.Usage
	err    error

	got []rag.Message
}

func (g *scriptedGenerator) Generate(_ context.Context, msgs []rag.Message, onDelta func(string) error) (*rag.Usage, error) {
	g.got = msgs
	for _, d := range g.deltas {
		if err := onDelta(d); err != nil {
			return nil, err
		}
	}
	return g.usage, g.err
}

var errBoom = errors.New("boom")
