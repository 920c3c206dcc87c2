// Package pubsub is the in-process event bus. Run lifecycle events are
// published here so observers (loggers, future notifiers) never sit on the
// execution path.
package pubsub

import (
	"context"
)

// Topics published by the execution runtime.
const (
	TopicExecutionCompleted = "execution.completed"
)

// Message is the structure passed between components on the bus.
type Message struct {
	// Topic identifies the channel the message belongs to.
	Topic string
	// SessionID identifies the session the message relates to, if any.
	SessionID string
	// Payload contains the raw message data, typically JSON.
	Payload []byte
	// Metadata can contain arbitrary key-value pairs for context.
	Metadata map[string]string
}

// Handler defines the function signature for processing a received message.
type Handler func(ctx context.Context, msg Message) error

// Publisher defines the contract for sending messages to the bus.
type Publisher interface {
	Publish(ctx context.Context, msg Message) error
	Close() error
}

// Subscriber defines the contract for receiving messages from the bus.
type Subscriber interface {
	// Subscribe starts listening to the given topic, processing messages
	// with the handler. It returns once the subscription is established.
	Subscribe(ctx context.Context, topic string, handler Handler) error
	Close() error
}
