package websocket

import (
	"encoding/json"
	"log/slog"
	"sync"

	"roomsync/internal/pubsub"
)

// Bridge subscribes to a room's broker topics while that room has
// websocket clients, wrapping each event in an envelope and handing it
// to the hub. Subscriptions are reference counted per room.
type Bridge struct {
	hub    *Hub
	broker pubsub.Broker

	mu    sync.Mutex
	rooms map[string]*roomSub
}

type roomSub struct {
	refs   int
	unsubs []func()
}

// NewBridge creates a bridge between the broker and the hub.
func NewBridge(hub *Hub, broker pubsub.Broker) *Bridge {
	return &Bridge{
		hub:    hub,
		broker: broker,
		rooms:  make(map[string]*roomSub),
	}
}

// Acquire ensures the room's topics are subscribed. Call once per
// websocket client; pair with Release.
func (b *Bridge) Acquire(roomID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if sub, ok := b.rooms[roomID]; ok {
		sub.refs++
		return nil
	}

	sub := &roomSub{refs: 1}
	for _, topic := range []string{pubsub.TopicMessagesChanged, pubsub.TopicTyping} {
		topic := topic
		unsub, err := b.broker.Subscribe(roomID, topic, func(payload []byte) {
			b.forward(roomID, topic, payload)
		})
		if err != nil {
			for _, u := range sub.unsubs {
				u()
			}
			return err
		}
		sub.unsubs = append(sub.unsubs, unsub)
	}
	b.rooms[roomID] = sub
	return nil
}

// Release drops one reference; the last one tears the subscriptions down.
func (b *Bridge) Release(roomID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub, ok := b.rooms[roomID]
	if !ok {
		return
	}
	sub.refs--
	if sub.refs > 0 {
		return
	}
	for _, unsub := range sub.unsubs {
		unsub()
	}
	delete(b.rooms, roomID)
}

func (b *Bridge) forward(roomID, topic string, payload []byte) {
	frame, err := json.Marshal(pubsub.Envelope{Topic: topic, Payload: payload})
	if err != nil {
		slog.Error("bridge: marshal envelope", slog.String("error", err.Error()))
		return
	}
	b.hub.Broadcast(roomID, topic, frame)
}
