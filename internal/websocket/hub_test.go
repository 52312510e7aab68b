package websocket

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roomsync/internal/domain"
	"roomsync/internal/pubsub"
)

func newHubForTest(t *testing.T) (*Hub, context.CancelFunc) {
	t.Helper()
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	return hub, cancel
}

func newClientForTest(hub *Hub, roomID, principalID string) *Client {
	return &Client{
		hub:       hub,
		send:      make(chan []byte, 4),
		principal: domain.Principal{ID: principalID, DisplayName: principalID},
		roomID:    roomID,
	}
}

func recvFrame(t *testing.T, c *Client) []byte {
	t.Helper()
	select {
	case frame := <-c.send:
		return frame
	case <-time.After(time.Second):
		t.Fatal("no frame received")
		return nil
	}
}

func TestHub_BroadcastReachesOnlyRoomClients(t *testing.T) {
	hub, cancel := newHubForTest(t)
	defer cancel()

	inRoom := newClientForTest(hub, "room-1", "p-1")
	otherRoom := newClientForTest(hub, "room-2", "p-2")
	hub.Register(inRoom)
	hub.Register(otherRoom)

	hub.Broadcast("room-1", pubsub.TopicMessagesChanged, []byte(`{"topic":"messages-changed"}`))

	frame := recvFrame(t, inRoom)
	assert.Contains(t, string(frame), "messages-changed")

	select {
	case <-otherRoom.send:
		t.Fatal("event leaked into another room")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHub_UnregisterStopsDelivery(t *testing.T) {
	hub, cancel := newHubForTest(t)
	defer cancel()

	client := newClientForTest(hub, "room-1", "p-1")
	hub.Register(client)
	hub.Unregister(client)

	hub.Broadcast("room-1", pubsub.TopicTyping, []byte(`{}`))

	// The send channel is closed on unregister.
	select {
	case _, ok := <-client.send:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("send channel not closed")
	}
}

func TestBridge_ForwardsBrokerEventsAsEnvelopes(t *testing.T) {
	hub, cancel := newHubForTest(t)
	defer cancel()

	client := newClientForTest(hub, "room-1", "p-1")
	hub.Register(client)

	broker := pubsub.NewMemoryBroker()
	bridge := NewBridge(hub, broker)
	require.NoError(t, bridge.Acquire("room-1"))
	defer bridge.Release("room-1")

	require.NoError(t, broker.Publish(context.Background(), "room-1", pubsub.TopicTyping,
		[]byte(`{"principal_id":"p-2","display_name":"Bob"}`)))

	var env pubsub.Envelope
	require.NoError(t, json.Unmarshal(recvFrame(t, client), &env))
	assert.Equal(t, pubsub.TopicTyping, env.Topic)
	assert.Contains(t, string(env.Payload), "p-2")
}

func TestBridge_ReleaseUnsubscribesOnLastRef(t *testing.T) {
	hub, cancel := newHubForTest(t)
	defer cancel()

	broker := pubsub.NewMemoryBroker()
	bridge := NewBridge(hub, broker)

	require.NoError(t, bridge.Acquire("room-1"))
	require.NoError(t, bridge.Acquire("room-1"))

	bridge.Release("room-1")
	bridge.mu.Lock()
	_, stillSubscribed := bridge.rooms["room-1"]
	bridge.mu.Unlock()
	assert.True(t, stillSubscribed, "one reference remains")

	bridge.Release("room-1")
	bridge.mu.Lock()
	_, stillSubscribed = bridge.rooms["room-1"]
	bridge.mu.Unlock()
	assert.False(t, stillSubscribed)

	// Releasing an unknown room is harmless.
	bridge.Release("room-1")
}
