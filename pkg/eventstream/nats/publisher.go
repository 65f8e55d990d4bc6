// Package nats publishes turn events to a NATS subject.
package nats

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	natsgo "github.com/nats-io/nats.go"

	"github.com/KimYongKuk/commercial-analysis/pkg/eventstream"
	"github.com/KimYongKuk/commercial-analysis/pkg/logger"
)

// DefaultSubject is used when Config.Subject is empty.
const DefaultSubject = "jobflex.turn.recorded"

// Config configures a Publisher.
type Config struct {
	URL     string
	Token   string
	Subject string
	Logger  *slog.Logger
}

// conn is the subset of *natsgo.Conn the publisher needs.
type conn interface {
	PublishMsg(m *natsgo.Msg) error
	Drain() error
}

// Publisher sends one NATS message per event.
type Publisher struct {
	conn    conn
	subject string
	logger  *slog.Logger
}

// NewPublisher connects to the NATS server at cfg.URL.
func NewPublisher(cfg Config) (*Publisher, error) {
	if cfg.URL == "" {
		return nil, errors.New("nats: url is required")
	}
	log := logger.OrNop(cfg.Logger)

	opts := []natsgo.Option{
		natsgo.Name("jobflex-proxy"),
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(60),
		natsgo.ReconnectWait(2 * time.Second),
		natsgo.DisconnectErrHandler(func(_ *natsgo.Conn, err error) {
			if err != nil {
				log.Warn("nats disconnected", "error", err)
			}
		}),
		natsgo.ReconnectHandler(func(_ *natsgo.Conn) {
			log.Info("nats reconnected")
		}),
	}
	if cfg.Token != "" {
		opts = append(opts, natsgo.Token(cfg.Token))
	}

	nc, err := natsgo.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	subject := cfg.Subject
	if subject == "" {
		subject = DefaultSubject
	}

	return newPublisher(nc, subject, log), nil
}

func newPublisher(c conn, subject string, log *slog.Logger) *Publisher {
	return &Publisher{
		conn:    c,
		subject: subject,
		logger:  logger.OrNop(log),
	}
}

// PublishTurn publishes event. NATS publishing is fire-and-forget, so ctx is
// only checked before sending.
func (p *Publisher) PublishTurn(ctx context.Context, event *eventstream.TurnRecordedEvent) error {
	payload, err := eventstream.Marshal(event)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := natsgo.NewMsg(p.subject)
	msg.Data = payload
	msg.Header.Set("Event-Type", event.EventType)
	msg.Header.Set(natsgo.MsgIdHdr, event.EventID)

	if err := p.conn.PublishMsg(msg); err != nil {
		return fmt.Errorf("nats: publishing to %s: %w", p.subject, err)
	}

	p.logger.Debug("published turn event",
		"subject", p.subject,
		"event_id", event.EventID,
	)
	return nil
}

// Close drains pending messages and closes the connection.
func (p *Publisher) Close() error {
	return p.conn.Drain()
}
