// Package pubsub defines the minimal push-channel capability the sync
// engine depends on. Push transports are treated as at-most-once,
// duplicate-tolerant hints only; no delivery or ordering guarantees are
// assumed, and event payloads are never trusted as a data source.
package pubsub

import (
	"context"
	"encoding/json"
)

// Room-scoped topics.
const (
	// TopicMessagesChanged carries insert-like hints for a room's message
	// log. Any event on it is sufficient to trigger an incremental fetch.
	TopicMessagesChanged = "messages-changed"

	// TopicTyping carries short-lived typing announcements. Not persisted.
	TopicTyping = "typing"
)

// Handler receives the raw payload of one event.
type Handler func(payload []byte)

// Broker is a room-scoped publish/subscribe channel.
type Broker interface {
	Publish(ctx context.Context, roomID, topic string, payload []byte) error
	// Subscribe registers a handler for a room topic and returns an
	// unsubscribe function. Unsubscribing twice is safe.
	Subscribe(roomID, topic string, h Handler) (func(), error)
}

// Envelope is the topic-tagged frame carried over the websocket relay.
// The room is implied by the socket, so only the topic travels.
type Envelope struct {
	Topic   string          `json:"topic"`
	Payload json.RawMessage `json:"payload,omitempty"`
}
