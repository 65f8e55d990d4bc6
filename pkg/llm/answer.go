package llm

// Answer accumulates the assistant reply of one turn by applying decoded
// events in order. Once a Failure has been applied the answer is terminal and
// further events are ignored.
type Answer struct {
	// ErrorFallback replaces the text of a Failure whose message is absent or
	// empty.
	ErrorFallback string

	// Text is the reply so far. After a Failure it holds the error text.
	Text string

	// ConversationID is the latest non-empty correlation token seen.
	ConversationID string

	failed bool
}

// Apply folds ev into the answer and reports whether the turn is now
// terminal. Unrecognized events change nothing apart from the correlation
// token.
func (a *Answer) Apply(ev Event) bool {
	if a.failed {
		return true
	}

	if id, ok := ev.ConversationID(); ok && id != "" {
		a.ConversationID = id
	}

	switch e := ev.(type) {
	case *Delta:
		a.Text += deref(e.Answer)
	case *Replace:
		a.Text = deref(e.Answer)
	case *Failure:
		a.failed = true
		if msg := deref(e.Message); msg != "" {
			a.Text = msg
		} else {
			a.Text = a.ErrorFallback
		}
	}

	return a.failed
}

// Failed reports whether an error event ended the turn.
func (a *Answer) Failed() bool { return a.failed }
