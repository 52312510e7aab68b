package typing

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roomsync/internal/domain"
	"roomsync/internal/pubsub"
)

type capturingBroker struct {
	mu       sync.Mutex
	payloads [][]byte
}

func (b *capturingBroker) Publish(ctx context.Context, roomID, topic string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.payloads = append(b.payloads, payload)
	return nil
}

func (b *capturingBroker) Subscribe(roomID, topic string, h pubsub.Handler) (func(), error) {
	return func() {}, nil
}

func (b *capturingBroker) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.payloads)
}

func newTestBroadcaster(broker pubsub.Broker) *Broadcaster {
	return NewBroadcaster(broker, "room-1", domain.Principal{ID: "p-1", DisplayName: "Alice"})
}

func TestBroadcaster_LeadingEdgeThrottle(t *testing.T) {
	broker := &capturingBroker{}
	b := newTestBroadcaster(broker)

	base := time.Now()
	b.now = func() time.Time { return base }

	b.Signal(context.Background())
	require.Equal(t, 1, broker.count(), "first signal publishes immediately")

	// Rapid keystrokes inside the window are dropped.
	b.Signal(context.Background())
	b.Signal(context.Background())
	assert.Equal(t, 1, broker.count())

	// Once the window elapses the next signal goes through.
	b.now = func() time.Time { return base.Add(publishThrottle) }
	b.Signal(context.Background())
	assert.Equal(t, 2, broker.count())
}

func TestBroadcaster_IsTypingClearsAfterTTL(t *testing.T) {
	broker := &capturingBroker{}
	b := newTestBroadcaster(broker)

	base := time.Now()
	b.now = func() time.Time { return base }
	assert.False(t, b.IsTyping(), "no signal yet")

	b.Signal(context.Background())
	assert.True(t, b.IsTyping())

	b.now = func() time.Time { return base.Add(flagTTL) }
	assert.False(t, b.IsTyping(), "flag clears after publish inactivity")
}

func TestTracker_IgnoresSelfAndKeepsArrivalOrder(t *testing.T) {
	tr := NewTracker("self")

	tr.Observe(Event{PrincipalID: "p-b", DisplayName: "B"})
	tr.Observe(Event{PrincipalID: "self", DisplayName: "Me"})
	tr.Observe(Event{PrincipalID: "p-a", DisplayName: "A"})

	// A repeat from B refreshes but does not reorder.
	tr.Observe(Event{PrincipalID: "p-b", DisplayName: "B"})

	active := tr.Active()
	require.Len(t, active, 2)
	assert.Equal(t, "B", active[0].DisplayName)
	assert.Equal(t, "A", active[1].DisplayName)
}

func TestTracker_ExpiresEntriesOnSweep(t *testing.T) {
	tr := NewTracker("self")

	base := time.Now()
	tr.now = func() time.Time { return base }
	tr.Observe(Event{PrincipalID: "p-1", DisplayName: "Alice"})
	require.Len(t, tr.Active(), 1)

	tr.now = func() time.Time { return base.Add(entryTTL) }
	tr.expire()
	assert.Empty(t, tr.Active())
}

func TestTracker_RefreshExtendsLifetime(t *testing.T) {
	tr := NewTracker("self")

	base := time.Now()
	tr.now = func() time.Time { return base }
	tr.Observe(Event{PrincipalID: "p-1", DisplayName: "Alice"})

	tr.now = func() time.Time { return base.Add(2 * time.Second) }
	tr.Observe(Event{PrincipalID: "p-1", DisplayName: "Alice"})

	// 4s after the first event but only 2s after the refresh.
	tr.now = func() time.Time { return base.Add(4 * time.Second) }
	tr.expire()
	assert.Len(t, tr.Active(), 1)
}

func TestTracker_HandlePayload(t *testing.T) {
	tr := NewTracker("self")

	tr.HandlePayload([]byte(`{"principal_id":"p-1","display_name":"Alice"}`))
	require.Len(t, tr.Active(), 1)

	tr.HandlePayload([]byte(`not json`))
	assert.Len(t, tr.Active(), 1, "malformed payload is dropped")
}

func TestTracker_StopIsIdempotent(t *testing.T) {
	tr := NewTracker("self")
	tr.Start(context.Background())
	tr.Stop()
	tr.Stop()
}

func TestRender(t *testing.T) {
	entry := func(name string) Entry { return Entry{DisplayName: name} }

	tests := []struct {
		name    string
		entries []Entry
		want    string
	}{
		{"none", nil, ""},
		{"one", []Entry{entry("Alice")}, "Alice is typing…"},
		{"two", []Entry{entry("Alice"), entry("Bob")}, "Alice and Bob are typing…"},
		{"three", []Entry{entry("Alice"), entry("Bob"), entry("Carol")}, "Alice, Bob and Carol are typing…"},
		{"four", []Entry{entry("B"), entry("A"), entry("C"), entry("D")}, "B, A and 2 others are typing…"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Render(tt.entries))
		})
	}
}
