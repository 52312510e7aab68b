package pubsub

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryBroker_PublishSubscribe(t *testing.T) {
	b := NewMemoryBroker()

	var got []string
	unsub, err := b.Subscribe("room1", TopicMessagesChanged, func(payload []byte) {
		got = append(got, string(payload))
	})
	require.NoError(t, err)
	defer unsub()

	err = b.Publish(context.Background(), "room1", TopicMessagesChanged, []byte("a"))
	require.NoError(t, err)
	err = b.Publish(context.Background(), "room1", TopicMessagesChanged, []byte("b"))
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b"}, got)
}

func TestMemoryBroker_TopicIsolation(t *testing.T) {
	b := NewMemoryBroker()

	var messages, typing int
	_, err := b.Subscribe("room1", TopicMessagesChanged, func([]byte) { messages++ })
	require.NoError(t, err)
	_, err = b.Subscribe("room1", TopicTyping, func([]byte) { typing++ })
	require.NoError(t, err)
	_, err = b.Subscribe("room2", TopicMessagesChanged, func([]byte) {
		t.Error("event leaked across rooms")
	})
	require.NoError(t, err)

	require.NoError(t, b.Publish(context.Background(), "room1", TopicMessagesChanged, nil))
	require.NoError(t, b.Publish(context.Background(), "room1", TopicTyping, nil))

	assert.Equal(t, 1, messages)
	assert.Equal(t, 1, typing)
}

func TestMemoryBroker_UnsubscribeIdempotent(t *testing.T) {
	b := NewMemoryBroker()

	calls := 0
	unsub, err := b.Subscribe("room1", TopicTyping, func([]byte) { calls++ })
	require.NoError(t, err)

	unsub()
	unsub() // second call must be a no-op

	require.NoError(t, b.Publish(context.Background(), "room1", TopicTyping, nil))
	assert.Zero(t, calls)
}

func TestMemoryBroker_PublishCancelledContext(t *testing.T) {
	b := NewMemoryBroker()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := b.Publish(ctx, "room1", TopicTyping, nil)
	assert.Error(t, err)
}
