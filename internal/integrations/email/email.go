// Package email abstracts outbound notification mail. Delivery is
// best-effort; a failed send never rolls back the state change that
// triggered it.
package email

import "context"

// Message is a single outbound mail. To is a customer or wallet identifier;
// concrete senders resolve it to an address.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Sender delivers notification mail.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// Noop discards all mail. Used when no mail provider is configured.
type Noop struct{}

func (Noop) Send(context.Context, Message) error { return nil }
