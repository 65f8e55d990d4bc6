package rag

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/tidwall/gjson"

	"github.com/KimYongKuk/commercial-analysis/pkg/client"
	"github.com/KimYongKuk/commercial-analysis/pkg/logger"
	"github.com/KimYongKuk/commercial-analysis/pkg/sse"
)

const (
	// DefaultModel is the chat completion model used for answers.
	DefaultModel = "gpt-4o-mini"

	// DefaultCompletionsPath is appended to the generator base URL.
	DefaultCompletionsPath = "/v1/chat/completions"

	DefaultTemperature = 0.7
	DefaultMaxTokens   = 1000
)

// Usage is the token accounting reported at the end of a completion.
type Usage struct {
	PromptTokens     int64 `json:"prompt_tokens"`
	CompletionTokens int64 `json:"completion_tokens"`
	TotalTokens      int64 `json:"total_tokens"`
}

// Generator streams a completion for msgs, calling onDelta with each piece
// of answer text in order. An error from onDelta stops the stream and is
// returned. Usage is nil when the service did not report it.
type Generator interface {
	Generate(ctx context.Context, msgs []Message, onDelta func(string) error) (*Usage, error)
}

// OpenAIConfig configures an OpenAI compatible chat completions generator.
type OpenAIConfig struct {
	// BaseURL is the scheme and host, e.g. https://api.openai.com.
	BaseURL string

	// Path defaults to DefaultCompletionsPath.
	Path string

	APIKey string

	// Model defaults to DefaultModel.
	Model string

	// Temperature and MaxTokens default to DefaultTemperature and
	// DefaultMaxTokens when zero.
	Temperature float64
	MaxTokens   int

	// IdleTimeout bounds the silence between stream chunks.
	IdleTimeout time.Duration

	Logger *slog.Logger
}

// OpenAI streams answers from /v1/chat/completions.
type OpenAI struct {
	client      *client.Client
	model       string
	temperature float64
	maxTokens   int
	logger      *slog.Logger
}

type completionRequest struct {
	Model         string         `json:"model"`
	Messages      []Message      `json:"messages"`
	Temperature   float64        `json:"temperature"`
	MaxTokens     int            `json:"max_tokens"`
	Stream        bool           `json:"stream"`
	StreamOptions *streamOptions `json:"stream_options,omitempty"`
}

type streamOptions struct {
	IncludeUsage bool `json:"include_usage"`
}

// NewOpenAI validates cfg and returns a generator.
func NewOpenAI(cfg OpenAIConfig) (*OpenAI, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("generator API key is required")
	}
	if cfg.Path == "" {
		cfg.Path = DefaultCompletionsPath
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = DefaultTemperature
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}

	c, err := client.New(client.Config{
		BaseURL:     cfg.BaseURL,
		Path:        cfg.Path,
		APIKey:      cfg.APIKey,
		IdleTimeout: cfg.IdleTimeout,
		Logger:      cfg.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("invalid generator endpoint: %w", err)
	}

	return &OpenAI{
		client:      c,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		logger:      logger.OrNop(cfg.Logger),
	}, nil
}

// Generate implements Generator. Chunks that are not JSON are skipped with a
// debug log; a chunk carrying an "error" object ends the stream with its
// message.
func (g *OpenAI) Generate(ctx context.Context, msgs []Message, onDelta func(string) error) (*Usage, error) {
	body, err := g.client.OpenJSON(ctx, completionRequest{
		Model:         g.model,
		Messages:      msgs,
		Temperature:   g.temperature,
		MaxTokens:     g.maxTokens,
		Stream:        true,
		StreamOptions: &streamOptions{IncludeUsage: true},
	}, nil)
	if err != nil {
		var statusErr *client.StatusError
		if errors.As(err, &statusErr) {
			if msg := gjson.Get(statusErr.Body, "error.message"); msg.Type == gjson.String {
				return nil, fmt.Errorf("completion failed with status %d: %s", statusErr.StatusCode, msg.Str)
			}
		}
		return nil, err
	}
	defer body.Close()

	var usage *Usage
	r := sse.NewReader(body)
	for {
		frame, err := r.Next()
		if err != nil {
			return usage, err
		}
		if frame == nil || frame.IsDone() {
			return usage, nil
		}
		if !gjson.Valid(frame.Data) {
			g.logger.Debug("skipping malformed completion chunk", "line", frame.Line)
			continue
		}

		chunk := gjson.Parse(frame.Data)
		if e := chunk.Get("error.message"); e.Exists() {
			return usage, fmt.Errorf("completion failed: %s", e.String())
		}
		if u := chunk.Get("usage"); u.IsObject() {
			usage = &Usage{
				PromptTokens:     u.Get("prompt_tokens").Int(),
				CompletionTokens: u.Get("completion_tokens").Int(),
				TotalTokens:      u.Get("total_tokens").Int(),
			}
		}
		if delta := chunk.Get("choices.0.delta.content").String(); delta != "" {
			if err := onDelta(delta); err != nil {
				return usage, err
			}
		}
	}
}

var _ Generator = (*OpenAI)(nil)
