package sse

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"strings"
)

const (
	dataPrefix  = "data:"
	eventPrefix = "event:"

	readBufferSize = 64 * 1024

	// DefaultMaxLineSize bounds how much of a single line is buffered. A
	// message_replace frame carries the whole answer, so the bound is generous.
	DefaultMaxLineSize = 16 * 1024 * 1024
)

// Reader reads "data:" frames from a source io.Reader. When constructed with
// NewTeeReader it also writes every raw byte it consumes, verbatim, to a
// destination io.Writer.
//
// ┌──────────────────┐
// │ source io.Reader │
// └──────────────────┘
// │
// ▼
// ┌──────────────────┐   ┌─────────────────────────────────┐
// │  Reader.Next()   │──▶│ destination io.Writer (optional) │
// └──────────────────┘   └─────────────────────────────────┘
// │
// ▼
// ┌──────────────────┐
// │      Frame       │
// └──────────────────┘
//
// Lines are split on '\n' only after the terminator has arrived: a line whose
// bytes straddle two reads of the source is held in the line buffer and
// completed by the next read, so no frame is ever truncated. Because '\n'
// never occurs inside a multi-byte UTF-8 sequence, splitting on raw bytes
// cannot corrupt characters that straddle a read boundary either.
//
// A line longer than the max line size is not buffered. Its bytes are still
// forwarded to the destination, and a data line is reported as an Oversized
// frame with no Data so callers can log it and move on.
type Reader struct {
	src  *bufio.Reader
	dest io.Writer

	maxLineSize int
	buf         []byte

	// err is the sticky source error, io.EOF once the source is drained.
	err error

	// event is the "event:" field of the block currently being read.
	event string
	line  int
}

// NewReader returns a Reader that parses frames from src.
func NewReader(src io.Reader) *Reader {
	return NewTeeReader(src, nil)
}

// NewTeeReader returns a Reader that parses frames from src and writes all
// raw bytes through to dest. The dest writer typically backs an io.Pipe
// connected to a downstream HTTP response. A nil dest disables the tee.
func NewTeeReader(src io.Reader, dest io.Writer) *Reader {
	return &Reader{
		src:         bufio.NewReaderSize(src, readBufferSize),
		dest:        dest,
		maxLineSize: DefaultMaxLineSize,
	}
}

// SetMaxLineSize changes the longest line that is buffered. Values below 1
// restore DefaultMaxLineSize.
func (r *Reader) SetMaxLineSize(n int) {
	if n < 1 {
		n = DefaultMaxLineSize
	}
	r.maxLineSize = n
}

// Next returns the next "data:" frame. It blocks until a complete line is
// available from the source. Next returns nil, nil once the source is
// exhausted; a final line without a trailing newline is still yielded.
//
// Non-data lines (comments, "event:", "id:", "retry:", unknown fields) are
// consumed and, when teeing, forwarded, but never returned.
func (r *Reader) Next() (*Frame, error) {
	for {
		raw, err := r.readLine()
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}

		r.line++

		if raw.oversized {
			if raw.data {
				return &Frame{Event: r.event, Line: r.line, Oversized: true, Size: raw.size}, nil
			}
			continue
		}

		line := string(bytes.TrimRight(raw.bytes, "\r\n"))

		switch {
		case line == "":
			// A blank line ends the current event block.
			r.event = ""

		case strings.HasPrefix(line, ":"):
			// Comment or keep-alive.

		case strings.HasPrefix(line, eventPrefix):
			r.event = strings.TrimSpace(strings.TrimPrefix(line, eventPrefix))

		case strings.HasPrefix(line, dataPrefix):
			return &Frame{
				Data:  strings.TrimSpace(strings.TrimPrefix(line, dataPrefix)),
				Event: r.event,
				Line:  r.line,
			}, nil
		}
	}
}

// rawLine is one line read from the source, terminator included.
type rawLine struct {
	bytes []byte
	size  int

	// oversized lines keep no bytes; data records whether the line had the
	// "data:" prefix.
	oversized bool
	data      bool
}

// readLine reads up to and including the next '\n', or to the end of input.
// Every byte is teed as it arrives. io.EOF is returned only once no bytes
// remain.
func (r *Reader) readLine() (rawLine, error) {
	if r.err != nil {
		return rawLine{}, r.err
	}

	var line rawLine
	r.buf = r.buf[:0]

	for {
		chunk, err := r.src.ReadSlice('\n')

		if len(chunk) > 0 {
			if r.dest != nil {
				if _, werr := r.dest.Write(chunk); werr != nil {
					r.err = werr
					return rawLine{}, werr
				}
			}

			line.size += len(chunk)
			switch {
			case line.oversized:
			case line.size > r.maxLineSize:
				head := append(r.buf, chunk[:min(len(chunk), len(dataPrefix))]...)
				line.oversized = true
				line.data = bytes.HasPrefix(head, []byte(dataPrefix))
				r.buf = r.buf[:0]
			default:
				r.buf = append(r.buf, chunk...)
			}
		}

		switch {
		case err == nil:
		case errors.Is(err, bufio.ErrBufferFull):
			continue
		case errors.Is(err, io.EOF):
			r.err = io.EOF
			if line.size == 0 {
				return rawLine{}, io.EOF
			}
		default:
			r.err = err
			return rawLine{}, err
		}

		if !line.oversized {
			line.bytes = r.buf
		}
		return line, nil
	}
}
