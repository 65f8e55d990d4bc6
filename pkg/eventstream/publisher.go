package eventstream

import "context"

// Publisher publishes turn events to an event stream backend.
type Publisher interface {
	PublishTurn(ctx context.Context, event *TurnRecordedEvent) error
	Close() error
}

// Provider names accepted by the event_stream.provider setting.
const (
	ProviderNone  = ""
	ProviderKafka = "kafka"
	ProviderNATS  = "nats"
)
