//go:build integration
// +build integration

package messaging_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"roomsync/internal/messaging"
)

// setupNATS starts a NATS container and returns its client URL
func setupNATS(t *testing.T) (string, func()) {
	t.Helper()

	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "nats:2.10-alpine",
		ExposedPorts: []string{"4222/tcp"},
		WaitingFor: wait.ForAll(
			wait.ForLog("Server is ready"),
			wait.ForListeningPort("4222/tcp"),
		).WithDeadline(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err, "failed to start NATS container")

	host, err := container.Host(ctx)
	require.NoError(t, err)

	port, err := container.MappedPort(ctx, "4222")
	require.NoError(t, err)

	url := fmt.Sprintf("nats://%s:%s", host, port.Port())

	cleanup := func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	}
	return url, cleanup
}

func TestNATSBroker_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	url, cleanup := setupNATS(t)
	defer cleanup()

	ctx := context.Background()

	t.Run("publish reaches room topic subscriber", func(t *testing.T) {
		broker, err := messaging.NewNATSBroker(url, "roomsync-test")
		require.NoError(t, err)
		defer broker.Close()

		received := make(chan []byte, 1)
		unsub, err := broker.Subscribe("room-1", "typing", func(payload []byte) {
			received <- payload
		})
		require.NoError(t, err)
		defer unsub()

		require.NoError(t, broker.Publish(ctx, "room-1", "typing", []byte(`{"principal_id":"p-1"}`)))
		assert.JSONEq(t, `{"principal_id":"p-1"}`, string(waitFor(t, received)))
	})

	t.Run("events stay scoped to their room and topic", func(t *testing.T) {
		broker, err := messaging.NewNATSBroker(url, "roomsync-test")
		require.NoError(t, err)
		defer broker.Close()

		roomOne := make(chan []byte, 4)
		unsub, err := broker.Subscribe("room-1", "messages-changed", func(payload []byte) {
			roomOne <- payload
		})
		require.NoError(t, err)
		defer unsub()

		require.NoError(t, broker.Publish(ctx, "room-2", "messages-changed", []byte(`"other room"`)))
		require.NoError(t, broker.Publish(ctx, "room-1", "typing", []byte(`"other topic"`)))
		require.NoError(t, broker.Publish(ctx, "room-1", "messages-changed", []byte(`"mine"`)))

		assert.Equal(t, `"mine"`, string(waitFor(t, roomOne)))
		select {
		case extra := <-roomOne:
			t.Fatalf("received event for the wrong room or topic: %s", extra)
		case <-time.After(500 * time.Millisecond):
		}
	})

	t.Run("unsubscribe stops delivery and is idempotent", func(t *testing.T) {
		broker, err := messaging.NewNATSBroker(url, "roomsync-test")
		require.NoError(t, err)
		defer broker.Close()

		received := make(chan []byte, 1)
		unsub, err := broker.Subscribe("room-1", "typing", func(payload []byte) {
			received <- payload
		})
		require.NoError(t, err)

		unsub()
		unsub()

		require.NoError(t, broker.Publish(ctx, "room-1", "typing", []byte(`{}`)))
		select {
		case <-received:
			t.Fatal("received event after unsubscribe")
		case <-time.After(500 * time.Millisecond):
		}
	})

	t.Run("drain marks the connection closed", func(t *testing.T) {
		broker, err := messaging.NewNATSBroker(url, "roomsync-test")
		require.NoError(t, err)

		assert.False(t, broker.IsClosed())
		require.NoError(t, broker.Close())

		// Drain completes asynchronously.
		require.Eventually(t, broker.IsClosed, 5*time.Second, 50*time.Millisecond)
	})
}
