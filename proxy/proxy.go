// Package proxy provides a chat proxy that relays the upstream event stream to
// clients verbatim while recording each conversation turn.
package proxy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/google/uuid"

	"github.com/KimYongKuk/commercial-analysis/pkg/client"
	"github.com/KimYongKuk/commercial-analysis/pkg/eventstream"
	"github.com/KimYongKuk/commercial-analysis/pkg/llm"
	"github.com/KimYongKuk/commercial-analysis/pkg/logger"
	"github.com/KimYongKuk/commercial-analysis/pkg/rag"
	"github.com/KimYongKuk/commercial-analysis/pkg/sse"
	"github.com/KimYongKuk/commercial-analysis/pkg/storage"
	"github.com/KimYongKuk/commercial-analysis/pkg/utils"
	"github.com/KimYongKuk/commercial-analysis/proxy/header"
	"github.com/KimYongKuk/commercial-analysis/proxy/worker"
)

const (
	// ServiceName identifies the proxy in published events.
	ServiceName = "jobflex-proxy"

	chatPath          = "/api/chat"
	ragChatPath       = "/api/rag-chat"
	ragChatStreamPath = "/api/rag-chat-stream"
)

// Proxy relays chat requests to the upstream service. The relay is
// transparent: every upstream byte reaches the client unchanged, and the
// reconstructed turn is enqueued for async storage via the worker pool.
type Proxy struct {
	config        Config
	workerPool    *worker.Pool
	logger        *slog.Logger
	server        *fiber.App
	headerHandler *header.Handler

	mu       sync.RWMutex
	upstream Upstream
	client   *client.Client
}

// New creates a new Proxy. The driver is injected to handle async
// persistence of conversation turns.
func New(config Config, driver storage.Driver, log *slog.Logger) (*Proxy, error) {
	log = logger.OrNop(log)

	if config.DefaultUser == "" {
		config.DefaultUser = DefaultUser
	}
	if config.AllowOrigins == "" {
		config.AllowOrigins = "*"
	}

	wp, err := worker.NewPool(&worker.Config{
		Driver:    driver,
		Publisher: config.Publisher,
		Source: eventstream.EventSource{
			Service:  ServiceName,
			Upstream: config.Upstream.URL,
		},
		Logger: log,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create worker pool: %w", err)
	}

	app := fiber.New(fiber.Config{
		// Disable startup message for cleaner logs
		DisableStartupMessage: true,
	})

	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: config.AllowOrigins,
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept",
	}))

	// Compressing an event stream buffers it.
	app.Use(compress.New(compress.Config{
		Next: func(c *fiber.Ctx) bool {
			return c.Path() == chatPath || c.Path() == ragChatStreamPath
		},
	}))

	p := &Proxy{
		config:        config,
		workerPool:    wp,
		logger:        log,
		server:        app,
		headerHandler: header.NewHandler(),
	}

	if err := p.SetUpstream(config.Upstream); err != nil {
		wp.Close()
		return nil, err
	}

	app.Get("/", p.handleRoot)
	app.Get("/health", p.handleHealth)
	app.Post(chatPath, p.handleChat)
	app.Post(ragChatPath, p.handleRAGChat)
	app.Post(ragChatStreamPath, p.handleRAGChatStream)

	return p, nil
}

// SetUpstream swaps the upstream service. Streams already in flight finish
// against the previous one.
func (p *Proxy) SetUpstream(u Upstream) error {
	u = u.withDefaults()

	c, err := client.New(client.Config{
		BaseURL:     u.URL,
		Path:        u.Path,
		APIKey:      u.APIKey,
		IdleTimeout: u.Timeout,
		Logger:      p.logger,
	})
	if err != nil {
		return fmt.Errorf("invalid upstream: %w", err)
	}

	p.mu.Lock()
	p.upstream = u
	p.client = c
	p.mu.Unlock()

	p.logger.Info("upstream configured",
		"endpoint", c.Endpoint(),
		"api_key_set", u.APIKey != "",
		"timeout", u.Timeout,
	)
	return nil
}

func (p *Proxy) current() (Upstream, *client.Client) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.upstream, p.client
}

// Run starts the proxy server on the given listening address
func (p *Proxy) Run() error {
	u, _ := p.current()
	p.logger.Info("starting proxy server",
		"listen", p.config.ListenAddr,
		"upstream", u.URL,
	)

	return p.server.Listen(p.config.ListenAddr)
}

// RunWithListener starts the proxy server using the provided listener.
func (p *Proxy) RunWithListener(listener net.Listener) error {
	u, _ := p.current()
	p.logger.Info("starting proxy server",
		"listen", listener.Addr().String(),
		"upstream", u.URL,
	)

	return p.server.Listener(listener)
}

// Close gracefully shuts down the proxy and waits for the worker pool to drain
func (p *Proxy) Close() error {
	err := p.server.Shutdown()
	p.workerPool.Close()
	return err
}

func (p *Proxy) handleRoot(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"message": "JobFlex chat proxy is running",
		"version": utils.Version,
	})
}

func (p *Proxy) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "healthy"})
}

// handleChat relays one chat request. Failures before the upstream stream
// starts are reported in-band as a single error event so that clients only
// ever have to parse an event stream.
func (p *Proxy) handleChat(c *fiber.Ctx) error {
	startTime := time.Now()

	var req llm.ChatRequest
	if err := json.Unmarshal(c.Body(), &req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	if strings.TrimSpace(req.Query) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "query is required"})
	}

	up := req.Upstream(p.config.DefaultUser)
	turn := &llm.ConversationTurn{
		ID:             uuid.NewString(),
		ConversationID: up.ConversationID,
		User:           up.User,
		Query:          up.Query,
		StartedAt:      startTime,
	}

	p.headerHandler.SetStreamHeaders(c)

	upstream, cl := p.current()
	if upstream.APIKey == "" {
		p.logger.Error("rejecting chat request: upstream API key is not configured")
		p.record(turn, nil, llm.MessageMissingAPIKey)
		return c.Send(llm.ErrorFrame(llm.MessageMissingAPIKey))
	}

	p.logger.Debug("forwarding chat request to upstream",
		"endpoint", cl.Endpoint(),
		"conversation_id", up.ConversationID,
		"user", up.User,
	)

	// Use context.Background() instead of c.Context() because fasthttp recycles
	// its RequestCtx after the handler returns, but the relay runs
	// asynchronously in a separate goroutine and needs the upstream connection
	// to remain open.
	body, err := cl.OpenJSON(context.Background(), up, p.headerHandler.UpstreamHeaders(c))
	if err != nil {
		msg := p.openFailureMessage(err)
		p.record(turn, nil, msg)
		return c.Send(llm.ErrorFrame(msg))
	}

	// Use io.Pipe + SetBodyStream instead of SetBodyStreamWriter: pw.Write
	// blocks until fasthttp's chunked writer consumes the data and flushes it
	// to the socket, so every upstream line reaches the client as it arrives.
	pr, pw := io.Pipe()
	go p.relay(body, pw, turn)

	// Unknown size (-1) triggers chunked transfer encoding in fasthttp.
	c.Context().Response.SetBodyStream(pr, -1)

	return nil
}

// relay copies the upstream stream to pw while decoding it, then records the
// reconstructed turn.
func (p *Proxy) relay(body io.ReadCloser, pw *io.PipeWriter, turn *llm.ConversationTurn) {
	defer pw.Close()
	defer body.Close()

	answer := &llm.Answer{ErrorFallback: llm.MessageUnknownError}
	dec := llm.NewDecoder(sse.NewTeeReader(body, pw), p.logger)

	var streamErr error
	for ev, err := range dec.All() {
		if err != nil {
			streamErr = err
			break
		}
		// Keep relaying after an error event; the client decides what to
		// do with whatever follows.
		answer.Apply(ev)
	}

	if answer.ConversationID != "" {
		turn.ConversationID = answer.ConversationID
	}

	switch {
	case streamErr == nil && answer.Failed():
		p.record(turn, nil, answer.Text)

	case streamErr == nil:
		p.record(turn, answer, "")

	case errors.Is(streamErr, io.ErrClosedPipe):
		p.logger.Info("client disconnected mid-stream",
			"turn_id", turn.ID,
			"conversation_id", turn.ConversationID,
		)
		p.record(turn, nil, "client disconnected")

	default:
		msg := llm.MessageNetworkPrefix + streamErr.Error()
		if errors.Is(streamErr, client.ErrIdleTimeout) {
			msg = llm.MessageTimeout
		}
		p.logger.Warn("upstream stream failed",
			"turn_id", turn.ID,
			"error", streamErr,
		)
		if _, err := pw.Write(llm.ErrorFrame(msg)); err != nil {
			p.logger.Debug("could not deliver error event", "error", err)
		}
		p.record(turn, nil, msg)
	}

	p.logger.Debug("chat stream finished",
		"turn_id", turn.ID,
		"skipped_frames", dec.Skipped(),
		"malformed_frames", dec.Malformed(),
	)
}

// openFailureMessage maps a failure to open the upstream stream to the text
// shown to the user.
func (p *Proxy) openFailureMessage(err error) string {
	var statusErr *client.StatusError
	switch {
	case errors.As(err, &statusErr):
		upErr := llm.ParseUpstreamError(statusErr.StatusCode, []byte(statusErr.Body))
		p.logger.Error("upstream returned error",
			"status", statusErr.StatusCode,
			"code", upErr.Code,
			"body", utils.Truncate(statusErr.Body, 512),
		)
		return upErr.Message

	case errors.Is(err, client.ErrIdleTimeout):
		p.logger.Error("upstream request timed out", "error", err)
		return llm.MessageTimeout

	default:
		p.logger.Error("upstream request failed", "error", err)
		return llm.MessageNetworkPrefix + err.Error()
	}
}

// record finalizes turn and hands it to the worker pool. A nil answer marks
// the turn failed with errText.
func (p *Proxy) record(turn *llm.ConversationTurn, answer *llm.Answer, errText string) {
	turn.Duration = time.Since(turn.StartedAt)
	if answer != nil {
		turn.Status = llm.TurnCompleted
		turn.Answer = answer.Text
	} else {
		turn.Status = llm.TurnFailed
		turn.Error = errText
	}

	p.workerPool.Enqueue(worker.Job{Turn: turn})
}
