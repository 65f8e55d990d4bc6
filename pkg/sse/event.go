// Package sse provides a minimal, purpose-built reader for line-framed
// Server-Sent Events streams. It splits an incrementally delivered byte stream
// into lines, recognizes "data:" frames, and can optionally forward the raw
// bytes verbatim to a second writer in a tee pipe fashion (used by the chat
// proxy to relay an upstream stream while inspecting it).
//
// A frame is a single "data:" line. Unlike a full SSE event dispatcher, the
// reader does not join consecutive data lines: the chat backend emits one JSON
// document per data line.
//
// This package intentionally does NOT provide SSE writer or server
// capabilities.
//
// Field handling follows the WHATWG event stream format:
// https://html.spec.whatwg.org/multipage/server-sent-events.html
package sse

// Frame is a single "data:" line extracted from the stream.
type Frame struct {
	// Data is the line content after the "data:" prefix with surrounding
	// whitespace trimmed. It may be empty.
	Data string

	// Event is the value of the most recent "event:" field in the current
	// event block, if the upstream sent one. Empty for the default type.
	Event string

	// Line is the 1-based line number of the frame within the stream.
	Line int

	// Oversized marks a data line longer than the reader's max line size.
	// Its bytes were skipped, so Data is empty; Size is the line length.
	Oversized bool
	Size      int
}

// DoneToken is the literal payload some upstreams send to mark the end of a
// stream. It carries no structured data.
const DoneToken = "[DONE]"

// IsDone reports whether the frame is the terminal "[DONE]" marker.
func (f *Frame) IsDone() bool {
	return f.Data == DoneToken
}
