// Package messaging carries signals between the background poll loop and
// the encounter processor, so polling cadence stays independent of
// processing latency. The gateway runs single-process; the only broker is
// the in-memory one.
package messaging

import "context"

// Topic names a message stream.
type Topic struct {
	Name string
}

type Message struct {
	Body          []byte
	ContentType   string
	CorrelationID *string
}

// Broker defines an interface for sending messages to and receiving messages
// from a message broker.
type Broker interface {
	SendMessage(ctx context.Context, topic Topic, message *Message) error
	// Receive registers a handler for a topic. Handlers are invoked on a
	// background context; an inbound request's lifetime must not bound the
	// processing it triggers.
	Receive(topic Topic, handler func(context.Context, Message) error) error
	Close(ctx context.Context) error
}
