// Package rag answers questions from a knowledge base of local documents:
// it retrieves the closest chunks from a vector store and streams a chat
// completion grounded on them.
package rag

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"

	"github.com/KimYongKuk/commercial-analysis/pkg/embeddings"
	"github.com/KimYongKuk/commercial-analysis/pkg/logger"
	"github.com/KimYongKuk/commercial-analysis/pkg/vector"
)

// DefaultTopK is how many chunks are retrieved per question.
const DefaultTopK = 3

// Messages surfaced to the user.
const (
	MessageNoResults     = "죄송합니다. 관련된 정보를 찾을 수 없습니다."
	MessageNotConfigured = "지식 베이스가 설정되지 않았습니다."
	MessageStreamFailed  = "RAG 스트리밍 오류: "
	MessageAnswerFailed  = "RAG 챗봇 오류가 발생했습니다: "
)

// Event kinds written to the client stream.
const (
	EventSources = "sources"
	EventAnswer  = "answer"
	EventError   = "error"
	EventDone    = "done"
)

// Request is the body of a knowledge base question.
type Request struct {
	Message             string    `json:"message"`
	ConversationHistory []Message `json:"conversation_history,omitempty"`
}

// Source is a retrieved chunk as shown to the client.
type Source struct {
	ID       string         `json:"id"`
	Content  string         `json:"content"`
	Metadata SourceMetadata `json:"metadata"`
	Score    float32        `json:"score"`
}

type SourceMetadata struct {
	Source string `json:"source"`
}

// Event is one frame of an answer stream.
type Event struct {
	Event   string   `json:"event"`
	Sources []Source `json:"sources,omitempty"`
	Content string   `json:"content,omitempty"`
	Message string   `json:"message,omitempty"`
}

// Frame encodes ev as one SSE data frame, blank line included.
func (ev Event) Frame() []byte {
	payload, err := json.Marshal(ev)
	if err != nil {
		// Strings and float32 scores always marshal.
		panic(err)
	}
	frame := make([]byte, 0, len(payload)+8)
	frame = append(frame, "data: "...)
	frame = append(frame, payload...)
	return append(frame, "\n\n"...)
}

// Result is a complete, non-streamed answer.
type Result struct {
	Reply   string
	Sources []Source
	Usage   *Usage
}

// Config wires a Chain.
type Config struct {
	Embedder  embeddings.Embedder
	Driver    vector.Driver
	Generator Generator

	// TopK defaults to DefaultTopK.
	TopK int

	// HistoryQueries defaults to DefaultHistoryQueries. A negative value
	// folds in every earlier question.
	HistoryQueries int

	Logger *slog.Logger
}

// Chain runs retrieval and generation for one question at a time. It is
// safe for concurrent use when its parts are.
type Chain struct {
	embedder       embeddings.Embedder
	driver         vector.Driver
	generator      Generator
	topK           int
	historyQueries int
	logger         *slog.Logger
}

// New validates cfg and returns a Chain.
func New(cfg Config) (*Chain, error) {
	switch {
	case cfg.Embedder == nil:
		return nil, errors.New("rag: embedder is required")
	case cfg.Driver == nil:
		return nil, errors.New("rag: vector driver is required")
	case cfg.Generator == nil:
		return nil, errors.New("rag: generator is required")
	}
	if cfg.TopK <= 0 {
		cfg.TopK = DefaultTopK
	}
	if cfg.HistoryQueries == 0 {
		cfg.HistoryQueries = DefaultHistoryQueries
	}

	return &Chain{
		embedder:       cfg.Embedder,
		driver:         cfg.Driver,
		generator:      cfg.Generator,
		topK:           cfg.TopK,
		historyQueries: cfg.HistoryQueries,
		logger:         logger.OrNop(cfg.Logger),
	}, nil
}

// Close releases the embedder and the vector driver.
func (c *Chain) Close() error {
	return errors.Join(c.embedder.Close(), c.driver.Close())
}

// Retrieve returns the chunks closest to query, searched together with the
// recent user questions of history.
func (c *Chain) Retrieve(ctx context.Context, query string, history []Message) ([]vector.QueryResult, error) {
	search := SearchQuery(query, history, c.historyQueries)

	emb, err := c.embedder.Embed(ctx, search)
	if err != nil {
		return nil, err
	}
	docs, err := c.driver.Query(ctx, emb, c.topK)
	if err != nil {
		return nil, err
	}

	c.logger.Debug("retrieved documents",
		"query_len", len(query),
		"search_len", len(search),
		"results", len(docs),
	)
	return docs, nil
}

// Stream answers req, calling emit for each event. The stream is a sources
// event, answer events, then done. An empty knowledge base answers with
// MessageNoResults and no sources. A generation failure after sources were
// sent becomes an error event followed by done. Stream returns an error when
// retrieval fails, before anything was emitted, or when emit fails.
func (c *Chain) Stream(ctx context.Context, req Request, emit func(Event) error) error {
	docs, err := c.Retrieve(ctx, req.Message, req.ConversationHistory)
	if err != nil {
		return err
	}

	if len(docs) == 0 {
		if err := emit(Event{Event: EventAnswer, Content: MessageNoResults}); err != nil {
			return err
		}
		return emit(Event{Event: EventDone})
	}

	if err := emit(Event{Event: EventSources, Sources: Sources(docs)}); err != nil {
		return err
	}

	var emitErr error
	_, genErr := c.generator.Generate(ctx, BuildMessages(req.Message, docs, req.ConversationHistory),
		func(delta string) error {
			emitErr = emit(Event{Event: EventAnswer, Content: delta})
			return emitErr
		})
	if emitErr != nil {
		return emitErr
	}
	if genErr != nil {
		c.logger.Warn("answer generation failed", "error", genErr)
		if err := emit(Event{Event: EventError, Message: genErr.Error()}); err != nil {
			return err
		}
	}

	return emit(Event{Event: EventDone})
}

// Answer runs req to completion without streaming.
func (c *Chain) Answer(ctx context.Context, req Request) (*Result, error) {
	docs, err := c.Retrieve(ctx, req.Message, req.ConversationHistory)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return &Result{Reply: MessageNoResults, Sources: []Source{}}, nil
	}

	var reply strings.Builder
	usage, err := c.generator.Generate(ctx, BuildMessages(req.Message, docs, req.ConversationHistory),
		func(delta string) error {
			reply.WriteString(delta)
			return nil
		})
	if err != nil {
		return nil, err
	}

	return &Result{Reply: reply.String(), Sources: Sources(docs), Usage: usage}, nil
}

// Sources converts query hits for the client.
func Sources(docs []vector.QueryResult) []Source {
	out := make([]Source, len(docs))
	for i, d := range docs {
		out[i] = Source{
			ID:       d.ID,
			Content:  d.Content,
			Metadata: SourceMetadata{Source: d.Source},
			Score:    d.Score,
		}
	}
	return out
}
