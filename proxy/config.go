package proxy

import (
	"context"
	"time"

	"github.com/KimYongKuk/commercial-analysis/pkg/eventstream"
	"github.com/KimYongKuk/commercial-analysis/pkg/rag"
)

const (
	// DefaultUpstreamPath is the chat endpoint of the upstream service.
	DefaultUpstreamPath = "/ext/v1/chat"

	// DefaultUser is sent upstream when a request names no user.
	DefaultUser = "user-001"

	// DefaultTimeout bounds the wait for upstream headers and for each read
	// of the upstream stream.
	DefaultTimeout = 60 * time.Second
)

// Config is the proxy server configuration.
type Config struct {
	// ListenAddr is the address to listen on (e.g., ":8000")
	ListenAddr string

	Upstream Upstream

	// DefaultUser replaces a blank "user" in incoming requests.
	DefaultUser string

	// AllowOrigins is the CORS origin list. Defaults to "*".
	AllowOrigins string

	// Publisher is an optional event publisher for recorded turns.
	// If nil, publishing is disabled.
	Publisher eventstream.Publisher

	// Knowledge answers /api/rag-chat and /api/rag-chat-stream. If nil, those
	// routes report that no knowledge base is configured.
	Knowledge Knowledge
}

// Knowledge answers questions from the document knowledge base. *rag.Chain
// implements it.
type Knowledge interface {
	Stream(ctx context.Context, req rag.Request, emit func(rag.Event) error) error
	Answer(ctx context.Context, req rag.Request) (*rag.Result, error)
}

// Upstream describes the chat service requests are relayed to. It can be
// swapped at runtime with Proxy.SetUpstream.
type Upstream struct {
	// URL is the upstream base URL (e.g., "https://api.example.com")
	URL string

	// Path defaults to DefaultUpstreamPath.
	Path string

	// APIKey is sent as a bearer token. Requests are refused while it is empty.
	APIKey string

	// Timeout defaults to DefaultTimeout.
	Timeout time.Duration
}

func (u Upstream) withDefaults() Upstream {
	if u.Path == "" {
		u.Path = DefaultUpstreamPath
	}
	if u.Timeout <= 0 {
		u.Timeout = DefaultTimeout
	}
	return u
}
