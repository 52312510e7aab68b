package messaging

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"roomsync/internal/pubsub"
)

// eventsExchange is the single topic exchange carrying room-scoped push
// events. Routing keys are "<room_id>.<topic>".
const eventsExchange = "rooms.events"

// RabbitMQ implements pubsub.Broker over an AMQP topic exchange. Events are
// transient hints; queues are exclusive and auto-delete so nothing outlives
// its subscriber.
type RabbitMQ struct {
	conn    *amqp.Connection
	channel *amqp.Channel

	mu   sync.Mutex
	subs map[string]chan struct{} // consumer tag -> done
}

func NewRabbitMQ(url string) (*RabbitMQ, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	rmq := &RabbitMQ{
		conn:    conn,
		channel: ch,
		subs:    make(map[string]chan struct{}),
	}

	if err := rmq.setup(); err != nil {
		rmq.Close()
		return nil, err
	}

	return rmq, nil
}

// NewRabbitMQWithRetry dials RabbitMQ until it succeeds or the context
// expires, backing off linearly between attempts.
func NewRabbitMQWithRetry(ctx context.Context, url string) (*RabbitMQ, error) {
	var lastErr error
	for attempt := 1; ; attempt++ {
		rmq, err := NewRabbitMQ(url)
		if err == nil {
			return rmq, nil
		}
		lastErr = err

		delay := time.Duration(attempt) * time.Second
		if delay > 10*time.Second {
			delay = 10 * time.Second
		}
		slog.Warn("rabbitmq connection failed, retrying",
			slog.Int("attempt", attempt),
			slog.Duration("delay", delay),
			slog.String("error", err.Error()))

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("rabbitmq connection retries exhausted: %w", lastErr)
		case <-time.After(delay):
		}
	}
}

func (r *RabbitMQ) setup() error {
	if err := r.channel.ExchangeDeclare(
		eventsExchange, // name
		"topic",        // type
		true,           // durable
		false,          // auto-deleted
		false,          // internal
		false,          // no-wait
		nil,            // arguments
	); err != nil {
		return fmt.Errorf("failed to declare events exchange: %w", err)
	}

	slog.Info("rabbitmq setup completed successfully")
	return nil
}

func routingKey(roomID, topic string) string {
	return roomID + "." + topic
}

// Publish sends a room event to the topic exchange. Events carry no
// durability; a subscriber that is down simply misses the hint.
func (r *RabbitMQ) Publish(ctx context.Context, roomID, topic string, payload []byte) error {
	err := r.channel.PublishWithContext(
		ctx,
		eventsExchange,
		routingKey(roomID, topic),
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         payload,
			DeliveryMode: amqp.Transient,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish room event: %w", err)
	}
	return nil
}

// Subscribe binds an exclusive auto-delete queue to the room topic and
// pumps deliveries into the handler until unsubscribed.
func (r *RabbitMQ) Subscribe(roomID, topic string, h pubsub.Handler) (func(), error) {
	queue, err := r.channel.QueueDeclare(
		"",    // auto-generated name
		false, // durable
		true,  // delete when unused
		true,  // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return nil, fmt.Errorf("failed to declare subscriber queue: %w", err)
	}

	if err := r.channel.QueueBind(
		queue.Name,
		routingKey(roomID, topic),
		eventsExchange,
		false,
		nil,
	); err != nil {
		return nil, fmt.Errorf("failed to bind subscriber queue: %w", err)
	}

	tag := uuid.New().String()
	deliveries, err := r.channel.Consume(
		queue.Name, // queue
		tag,        // consumer
		true,       // auto-ack
		false,      // exclusive
		false,      // no-local
		false,      // no-wait
		nil,        // args
	)
	if err != nil {
		return nil, fmt.Errorf("failed to register consumer: %w", err)
	}

	done := make(chan struct{})
	r.mu.Lock()
	r.subs[tag] = done
	r.mu.Unlock()

	go func() {
		for {
			select {
			case <-done:
				return
			case d, ok := <-deliveries:
				if !ok {
					return
				}
				h(d.Body)
			}
		}
	}()

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			r.mu.Lock()
			delete(r.subs, tag)
			r.mu.Unlock()
			close(done)
			if err := r.channel.Cancel(tag, false); err != nil {
				slog.Warn("failed to cancel consumer",
					slog.String("tag", tag),
					slog.String("error", err.Error()))
			}
		})
	}
	return unsubscribe, nil
}

func (r *RabbitMQ) IsClosed() bool {
	return r.conn == nil || r.conn.IsClosed()
}

func (r *RabbitMQ) Close() error {
	r.mu.Lock()
	for tag, done := range r.subs {
		close(done)
		delete(r.subs, tag)
	}
	r.mu.Unlock()

	if r.channel != nil {
		r.channel.Close()
	}
	if r.conn != nil {
		return r.conn.Close()
	}
	return nil
}
