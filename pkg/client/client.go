// Package client opens streaming chat turns against the jobflex proxy (or
// any backend speaking the same SSE protocol).
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/KimYongKuk/commercial-analysis/pkg/llm"
	"github.com/KimYongKuk/commercial-analysis/pkg/logger"
)

const (
	// DefaultPath is the proxy's chat endpoint.
	DefaultPath = "/api/chat"

	// DefaultIdleTimeout bounds the wait for response headers and for each
	// subsequent read of the body.
	DefaultIdleTimeout = 60 * time.Second

	maxErrorBody = 64 * 1024
)

// ErrIdleTimeout is returned when the server sends nothing for longer than
// the configured idle timeout.
var ErrIdleTimeout = errors.New("stream idle timeout")

// StatusError is returned by Open for non-2xx responses.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("server returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("server returned status %d: %s", e.StatusCode, e.Body)
}

// Config configures a Client.
type Config struct {
	// BaseURL is the scheme and host of the server, e.g. http://localhost:8000.
	BaseURL string

	// Path is appended to BaseURL. Defaults to DefaultPath.
	Path string

	// APIKey, when set, is sent as a bearer token.
	APIKey string

	// IdleTimeout defaults to DefaultIdleTimeout. A negative value disables it.
	IdleTimeout time.Duration

	// HTTPClient defaults to a client without an overall timeout, since a
	// stream may legitimately run for minutes.
	HTTPClient *http.Client

	Logger *slog.Logger
}

// Client opens chat streams.
type Client struct {
	endpoint    string
	apiKey      string
	idleTimeout time.Duration
	httpClient  *http.Client
	logger      *slog.Logger
}

// New validates cfg and returns a Client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("base URL is required")
	}

	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing base URL: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("unsupported base URL scheme %q", base.Scheme)
	}

	path := cfg.Path
	if path == "" {
		path = DefaultPath
	}

	idle := cfg.IdleTimeout
	if idle == 0 {
		idle = DefaultIdleTimeout
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	return &Client{
		endpoint:    strings.TrimRight(cfg.BaseURL, "/") + "/" + strings.TrimLeft(path, "/"),
		apiKey:      cfg.APIKey,
		idleTimeout: idle,
		httpClient:  httpClient,
		logger:      logger.OrNop(cfg.Logger),
	}, nil
}

// Endpoint is the full URL requests are posted to.
func (c *Client) Endpoint() string { return c.endpoint }

// Open posts req and returns the streaming response body. The caller must
// close it. Reads from the body fail with ErrIdleTimeout once the server has
// been silent for longer than the idle timeout.
func (c *Client) Open(ctx context.Context, req *llm.ChatRequest) (io.ReadCloser, error) {
	c.logger.Debug("opening chat stream",
		"endpoint", c.endpoint,
		"conversation_id", req.ConversationID,
		"query_len", len(req.Query),
	)
	return c.OpenJSON(ctx, req, nil)
}

// OpenJSON posts body encoded as JSON, with extra headers added to the
// request, and returns the streaming response body like Open.
func (c *Client) OpenJSON(ctx context.Context, body any, header http.Header) (io.ReadCloser, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	dog := newWatchdog(c.idleTimeout, cancel)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		dog.stop()
		cancel()
		return nil, fmt.Errorf("creating request: %w", err)
	}
	for k, v := range header {
		httpReq.Header[k] = v
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		dog.stop()
		cancel()
		if dog.expired() {
			return nil, fmt.Errorf("waiting for response: %w", ErrIdleTimeout)
		}
		return nil, fmt.Errorf("sending request: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer cancel()
		defer dog.stop()
		defer resp.Body.Close()

		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &StatusError{
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(msg)),
		}
	}

	dog.kick()
	return &idleReader{body: resp.Body, dog: dog, cancel: cancel}, nil
}
