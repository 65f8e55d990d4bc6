package proxy

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/KimYongKuk/commercial-analysis/pkg/llm"
	"github.com/KimYongKuk/commercial-analysis/pkg/rag"
)

// ragChatResponse is the body of a non-streamed knowledge base answer.
type ragChatResponse struct {
	Reply   string       `json:"reply"`
	Message string       `json:"message"`
	Sources []rag.Source `json:"sources"`
	Usage   *rag.Usage   `json:"usage"`
}

// parseRAGRequest decodes body. A non-empty problem is the text of a 400
// response.
func parseRAGRequest(body []byte) (req rag.Request, problem string) {
	if err := json.Unmarshal(body, &req); err != nil {
		return req, "invalid request body"
	}
	if strings.TrimSpace(req.Message) == "" {
		return req, "message is required"
	}
	return req, ""
}

func (p *Proxy) newRAGTurn(req rag.Request) *llm.ConversationTurn {
	return &llm.ConversationTurn{
		ID:        uuid.NewString(),
		User:      p.config.DefaultUser,
		Query:     req.Message,
		StartedAt: time.Now(),
	}
}

// handleRAGChat answers from the knowledge base in one JSON response.
func (p *Proxy) handleRAGChat(c *fiber.Ctx) error {
	req, problem := parseRAGRequest(c.Body())
	if problem != "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": problem})
	}
	turn := p.newRAGTurn(req)

	if p.config.Knowledge == nil {
		p.record(turn, nil, rag.MessageNotConfigured)
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": rag.MessageNotConfigured})
	}

	res, err := p.config.Knowledge.Answer(c.UserContext(), req)
	if err != nil {
		msg := rag.MessageAnswerFailed + err.Error()
		p.logger.Error("knowledge base answer failed", "turn_id", turn.ID, "error", err)
		p.record(turn, nil, msg)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": msg})
	}

	p.record(turn, &llm.Answer{Text: res.Reply}, "")
	return c.JSON(ragChatResponse{
		Reply:   res.Reply,
		Message: req.Message,
		Sources: res.Sources,
		Usage:   res.Usage,
	})
}

// handleRAGChatStream answers from the knowledge base as an event stream of
// sources, answer, error and done events. Like /api/chat, failures are
// reported in-band.
func (p *Proxy) handleRAGChatStream(c *fiber.Ctx) error {
	req, problem := parseRAGRequest(c.Body())
	if problem != "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": problem})
	}
	turn := p.newRAGTurn(req)

	p.headerHandler.SetStreamHeaders(c)

	if p.config.Knowledge == nil {
		p.record(turn, nil, rag.MessageNotConfigured)
		return c.Send(rag.Event{Event: rag.EventError, Message: rag.MessageNotConfigured}.Frame())
	}

	pr, pw := io.Pipe()
	go p.streamKnowledge(req, pw, turn)
	c.Context().Response.SetBodyStream(pr, -1)

	return nil
}

// streamKnowledge writes the answer events for req to pw and records the
// turn. Writes fail once the client hangs up, which stops generation.
func (p *Proxy) streamKnowledge(req rag.Request, pw *io.PipeWriter, turn *llm.ConversationTurn) {
	defer pw.Close()

	// fasthttp recycles the request context once the handler returns.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		answer strings.Builder
		failed string
	)
	err := p.config.Knowledge.Stream(ctx, req, func(ev rag.Event) error {
		switch ev.Event {
		case rag.EventAnswer:
			answer.WriteString(ev.Content)
		case rag.EventError:
			failed = ev.Message
		}
		_, err := pw.Write(ev.Frame())
		return err
	})

	switch {
	case errors.Is(err, io.ErrClosedPipe):
		p.logger.Info("client disconnected mid-stream", "turn_id", turn.ID)
		p.record(turn, nil, "client disconnected")

	case err != nil:
		msg := rag.MessageStreamFailed + err.Error()
		p.logger.Warn("knowledge base stream failed", "turn_id", turn.ID, "error", err)
		if _, werr := pw.Write(rag.Event{Event: rag.EventError, Message: msg}.Frame()); werr != nil {
			p.logger.Debug("could not deliver error event", "error", werr)
		}
		p.record(turn, nil, msg)

	case failed != "":
		p.record(turn, nil, failed)

	default:
		p.record(turn, &llm.Answer{Text: answer.String()}, "")
	}
}
