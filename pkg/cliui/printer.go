package cliui

import (
	"io"
	"strings"
)

// ReplyPrinter writes a reply that grows while it streams. Each Update
// prints only what was appended since the last one; a reply that was
// replaced rather than extended is printed again on a fresh line.
type ReplyPrinter struct {
	w       io.Writer
	printed string
}

// NewReplyPrinter returns a ReplyPrinter writing to w.
func NewReplyPrinter(w io.Writer) *ReplyPrinter {
	return &ReplyPrinter{w: w}
}

// Update prints the reply as it stands now.
func (p *ReplyPrinter) Update(text string) {
	switch {
	case text == p.printed:
		return
	case strings.HasPrefix(text, p.printed):
		io.WriteString(p.w, text[len(p.printed):])
	default:
		io.WriteString(p.w, "\n"+text)
	}
	p.printed = text
}

// Finish ends the reply with a newline and resets the printer for the next
// one.
func (p *ReplyPrinter) Finish() {
	if p.printed != "" && !strings.HasSuffix(p.printed, "\n") {
		io.WriteString(p.w, "\n")
	}
	p.printed = ""
}
