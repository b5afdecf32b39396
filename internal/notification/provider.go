// Package notification wraps long-running calls so that a recipient is
// emailed when the call starts, finishes, or crashes.
//
// A Notifier holds the recipient/sender pair and an open mail Transport.
// Wrap, WrapNamed and Notifier.Run return callables whose results and
// errors are exactly those of the wrapped call; the notifications are a
// side effect.
package notification

import (
	"context"
	"strings"
)

// Message is the content handed to a Transport for one lifecycle event.
type Message struct {
	Subject string
	Lines   []string
}

// Body joins the message lines into a plain-text body.
func (m Message) Body() string {
	return strings.Join(m.Lines, "\n")
}

// Transport is the mail delivery collaborator. Send makes one delivery
// attempt and returns its error; it must not retry.
type Transport interface {
	// Name returns the transport identifier (e.g. "smtp").
	Name() string
	// Send delivers a plain-text message built from lines to a single recipient.
	Send(ctx context.Context, to, subject string, lines []string) error
}

// Traceback is implemented by errors that carry their own trace, such as the
// stderr tail of a failed process. The crash notification prefers it over
// the goroutine stack.
type Traceback interface {
	Traceback() string
}
