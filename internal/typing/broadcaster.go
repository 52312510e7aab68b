// Package typing implements the throttled typing broadcast and the
// receive-side tracker with client-side expiry.
package typing

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"roomsync/internal/domain"
	"roomsync/internal/observability"
	"roomsync/internal/pubsub"
)

// Event is the wire payload published on the typing topic. It carries no
// timestamp; receivers stamp arrival themselves.
type Event struct {
	PrincipalID string `json:"principal_id"`
	DisplayName string `json:"display_name"`
}

const (
	// publishThrottle is the leading-edge throttle window: the first
	// signal goes out immediately, later ones are dropped until it elapses.
	publishThrottle = 2 * time.Second

	// flagTTL clears the local is-typing flag after publish inactivity.
	// Local bookkeeping only, never transmitted.
	flagTTL = 3 * time.Second
)

// Broadcaster publishes typing signals for one principal in one room.
type Broadcaster struct {
	roomID    string
	principal domain.Principal
	broker    pubsub.Broker
	throttle  time.Duration
	ttl       time.Duration
	now       func() time.Time

	mu          sync.Mutex
	lastPublish time.Time
}

// NewBroadcaster creates a typing broadcaster with the reference timings.
func NewBroadcaster(broker pubsub.Broker, roomID string, principal domain.Principal) *Broadcaster {
	return &Broadcaster{
		roomID:    roomID,
		principal: principal,
		broker:    broker,
		throttle:  publishThrottle,
		ttl:       flagTTL,
		now:       time.Now,
	}
}

// Signal reports a local typing keystroke. Signals inside the throttle
// window are dropped; publish failures are logged once and otherwise
// invisible.
func (b *Broadcaster) Signal(ctx context.Context) {
	b.mu.Lock()
	now := b.now()
	if !b.lastPublish.IsZero() && now.Sub(b.lastPublish) < b.throttle {
		b.mu.Unlock()
		observability.TypingEventsDropped.Inc()
		return
	}
	b.lastPublish = now
	b.mu.Unlock()

	payload, err := json.Marshal(Event{
		PrincipalID: b.principal.ID,
		DisplayName: b.principal.DisplayName,
	})
	if err != nil {
		slog.Error("typing: marshal event", slog.String("error", err.Error()))
		return
	}

	if err := b.broker.Publish(ctx, b.roomID, pubsub.TopicTyping, payload); err != nil {
		slog.Debug("typing publish failed",
			slog.String("room_id", b.roomID),
			slog.String("error", err.Error()))
		return
	}
	observability.TypingEventsPublished.Inc()
}

// IsTyping reports whether this session published recently enough to still
// count itself as typing.
func (b *Broadcaster) IsTyping() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return !b.lastPublish.IsZero() && b.now().Sub(b.lastPublish) < b.ttl
}
