package llm

import (
	"io"
	"iter"
	"log/slog"

	"github.com/KimYongKuk/commercial-analysis/pkg/logger"
	"github.com/KimYongKuk/commercial-analysis/pkg/sse"
)

// Decoder turns an SSE byte stream into Events. Empty and "[DONE]" frames are
// skipped. Malformed and oversized frames are logged and dropped; they never
// end the stream.
// A Decoder is single-use.
type Decoder struct {
	reader *sse.Reader
	logger *slog.Logger

	skipped   int
	malformed int
	oversized int
}

// NewDecoder returns a Decoder reading frames from r. A nil logger discards
// diagnostics.
func NewDecoder(r *sse.Reader, log *slog.Logger) *Decoder {
	return &Decoder{
		reader: r,
		logger: logger.OrNop(log),
	}
}

// NewStreamDecoder is shorthand for NewDecoder(sse.NewReader(src), log).
func NewStreamDecoder(src io.Reader, log *slog.Logger) *Decoder {
	return NewDecoder(sse.NewReader(src), log)
}

// Next returns the next decoded Event. It returns nil, nil when the source is
// exhausted. A non-nil error comes from the underlying source and means the
// stream was cut short.
func (d *Decoder) Next() (Event, error) {
	for {
		frame, err := d.reader.Next()
		if err != nil {
			return nil, err
		}
		if frame == nil {
			return nil, nil
		}

		if frame.Oversized {
			d.oversized++
			d.logger.Debug("dropping oversized frame",
				"line", frame.Line,
				"size", frame.Size,
			)
			continue
		}

		if frame.Data == "" || frame.IsDone() {
			d.skipped++
			continue
		}

		ev, err := Decode([]byte(frame.Data))
		if err != nil {
			d.malformed++
			d.logger.Debug("dropping malformed frame",
				"line", frame.Line,
				"payload", frame.Data,
				"error", err,
			)
			continue
		}

		return ev, nil
	}
}

// All ranges over the remaining events. A source error is yielded once as
// (nil, err) and ends the sequence.
func (d *Decoder) All() iter.Seq2[Event, error] {
	return func(yield func(Event, error) bool) {
		for {
			ev, err := d.Next()
			if err != nil {
				yield(nil, err)
				return
			}
			if ev == nil {
				return
			}
			if !yield(ev, nil) {
				return
			}
		}
	}
}

// Skipped reports how many empty or "[DONE]" frames were passed over.
func (d *Decoder) Skipped() int { return d.skipped }

// Malformed reports how many frames failed to decode.
func (d *Decoder) Malformed() int { return d.malformed }

// Oversized reports how many frames exceeded the reader's max line size.
func (d *Decoder) Oversized() int { return d.oversized }
