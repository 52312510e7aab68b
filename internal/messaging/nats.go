package messaging

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"roomsync/internal/pubsub"
)

// subjectPrefix namespaces all room event subjects: rooms.<room_id>.<topic>.
const subjectPrefix = "rooms."

// NATSBroker implements pubsub.Broker over NATS core subjects. Like the
// AMQP implementation it carries transient hints only.
type NATSBroker struct {
	conn *nats.Conn
}

// NewNATSBroker connects to NATS with infinite reconnects and returns a
// ready broker.
func NewNATSBroker(url, name string) (*NATSBroker, error) {
	opts := []nats.Option{
		nats.Name(name),
		nats.ReconnectWait(2 * time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				slog.Warn("nats disconnected", slog.String("error", err.Error()))
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			slog.Info("nats reconnected", slog.String("url", nc.ConnectedUrl()))
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			slog.Info("nats connection closed")
		}),
	}

	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	slog.Info("connected to nats", slog.String("url", nc.ConnectedUrl()))
	return &NATSBroker{conn: nc}, nil
}

func subject(roomID, topic string) string {
	return subjectPrefix + roomID + "." + topic
}

// Publish sends a room event on its subject.
func (b *NATSBroker) Publish(ctx context.Context, roomID, topic string, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := b.conn.Publish(subject(roomID, topic), payload); err != nil {
		return fmt.Errorf("nats publish %s: %w", subject(roomID, topic), err)
	}
	return nil
}

// Subscribe registers a handler for a room topic subject.
func (b *NATSBroker) Subscribe(roomID, topic string, h pubsub.Handler) (func(), error) {
	subj := subject(roomID, topic)
	sub, err := b.conn.Subscribe(subj, func(msg *nats.Msg) {
		h(msg.Data)
	})
	if err != nil {
		return nil, fmt.Errorf("nats subscribe %s: %w", subj, err)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			if err := sub.Unsubscribe(); err != nil {
				slog.Warn("nats unsubscribe failed",
					slog.String("subject", subj),
					slog.String("error", err.Error()))
			}
		})
	}, nil
}

// IsClosed reports whether the underlying connection is closed.
func (b *NATSBroker) IsClosed() bool {
	return b.conn == nil || b.conn.IsClosed()
}

// Close drains the connection, letting in-flight handlers finish.
func (b *NATSBroker) Close() error {
	if err := b.conn.Drain(); err != nil {
		return fmt.Errorf("nats drain: %w", err)
	}
	return nil
}
