package pubsub

import (
	"context"
	"sync"
)

// MemoryBroker is an in-process Broker for single-node deployments and
// tests. Handlers run on the publisher's goroutine and must not block.
type MemoryBroker struct {
	mu       sync.RWMutex
	nextID   int
	handlers map[string]map[int]Handler // "roomID/topic" -> subscriber id -> handler
}

// NewMemoryBroker creates an empty in-process broker.
func NewMemoryBroker() *MemoryBroker {
	return &MemoryBroker{
		handlers: make(map[string]map[int]Handler),
	}
}

func (b *MemoryBroker) key(roomID, topic string) string {
	return roomID + "/" + topic
}

// Publish delivers the payload to every current subscriber of the room topic.
func (b *MemoryBroker) Publish(ctx context.Context, roomID, topic string, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	b.mu.RLock()
	subs := make([]Handler, 0, len(b.handlers[b.key(roomID, topic)]))
	for _, h := range b.handlers[b.key(roomID, topic)] {
		subs = append(subs, h)
	}
	b.mu.RUnlock()

	for _, h := range subs {
		h(payload)
	}
	return nil
}

// Subscribe registers a handler and returns its unsubscribe function.
func (b *MemoryBroker) Subscribe(roomID, topic string, h Handler) (func(), error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	key := b.key(roomID, topic)
	if b.handlers[key] == nil {
		b.handlers[key] = make(map[int]Handler)
	}
	id := b.nextID
	b.nextID++
	b.handlers[key][id] = h

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(b.handlers[key], id)
			if len(b.handlers[key]) == 0 {
				delete(b.handlers, key)
			}
		})
	}, nil
}
