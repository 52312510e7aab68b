package apiclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"roomsync/internal/pubsub"
)

const (
	wsWriteWait      = 10 * time.Second
	wsReconnectBase  = time.Second
	wsReconnectLimit = 10 * time.Second
)

// WSBroker is the client side of the websocket relay for one room. It
// implements pubsub.Broker: incoming envelopes fan out to subscribers,
// Publish sends an envelope up the socket. The connection reconnects
// with capped linear backoff; events missed while disconnected are lost,
// which the watermark-based fetch path absorbs.
type WSBroker struct {
	url    string
	token  string
	roomID string

	mu       sync.Mutex
	conn     *websocket.Conn
	handlers map[string]map[int]pubsub.Handler
	nextID   int

	cancel   context.CancelFunc
	done     chan struct{}
	stopOnce sync.Once
}

// NewWSBroker creates a websocket broker for the room. wsBaseURL uses the
// ws or wss scheme.
func NewWSBroker(wsBaseURL, token, roomID string) *WSBroker {
	return &WSBroker{
		url:      fmt.Sprintf("%s/ws/rooms/%s", wsBaseURL, roomID),
		token:    token,
		roomID:   roomID,
		handlers: make(map[string]map[int]pubsub.Handler),
		done:     make(chan struct{}),
	}
}

// Connect dials the relay and starts the read loop. It returns after the
// first dial succeeds; later disconnects reconnect in the background.
func (b *WSBroker) Connect(ctx context.Context) error {
	ctx, b.cancel = context.WithCancel(ctx)

	conn, err := b.dial(ctx)
	if err != nil {
		b.cancel()
		close(b.done)
		return err
	}
	b.setConn(conn)

	go b.readLoop(ctx)
	return nil
}

func (b *WSBroker) dial(ctx context.Context) (*websocket.Conn, error) {
	header := http.Header{}
	if b.token != "" {
		header.Set("Authorization", "Bearer "+b.token)
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, b.url, header)
	if err != nil {
		return nil, fmt.Errorf("apiclient: websocket dial: %w", err)
	}
	return conn, nil
}

func (b *WSBroker) setConn(conn *websocket.Conn) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.conn = conn
}

func (b *WSBroker) readLoop(ctx context.Context) {
	defer close(b.done)

	backoff := wsReconnectBase
	for {
		b.mu.Lock()
		conn := b.conn
		b.mu.Unlock()

		_, raw, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			if backoff += wsReconnectBase; backoff > wsReconnectLimit {
				backoff = wsReconnectLimit
			}
			next, dialErr := b.dial(ctx)
			if dialErr != nil {
				continue
			}
			backoff = wsReconnectBase
			b.setConn(next)
			continue
		}

		var env pubsub.Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			continue
		}
		b.dispatch(env)
	}
}

func (b *WSBroker) dispatch(env pubsub.Envelope) {
	b.mu.Lock()
	handlers := make([]pubsub.Handler, 0, len(b.handlers[env.Topic]))
	for _, h := range b.handlers[env.Topic] {
		handlers = append(handlers, h)
	}
	b.mu.Unlock()

	for _, h := range handlers {
		h(env.Payload)
	}
}

// Publish sends an envelope up the socket. Only this broker's room is
// addressable.
func (b *WSBroker) Publish(ctx context.Context, roomID, topic string, payload []byte) error {
	if roomID != b.roomID {
		return fmt.Errorf("apiclient: websocket broker is bound to room %s", b.roomID)
	}

	raw, err := json.Marshal(pubsub.Envelope{Topic: topic, Payload: payload})
	if err != nil {
		return fmt.Errorf("apiclient: encode envelope: %w", err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.conn == nil {
		return fmt.Errorf("apiclient: websocket not connected")
	}
	b.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	if err := b.conn.WriteMessage(websocket.TextMessage, raw); err != nil {
		return fmt.Errorf("apiclient: websocket write: %w", err)
	}
	return nil
}

// Subscribe registers a handler for a topic on this room's socket.
func (b *WSBroker) Subscribe(roomID, topic string, h pubsub.Handler) (func(), error) {
	if roomID != b.roomID {
		return nil, fmt.Errorf("apiclient: websocket broker is bound to room %s", b.roomID)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.handlers[topic] == nil {
		b.handlers[topic] = make(map[int]pubsub.Handler)
	}
	b.nextID++
	id := b.nextID
	b.handlers[topic][id] = h

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(b.handlers[topic], id)
		})
	}, nil
}

// Close shuts the connection down. Idempotent.
func (b *WSBroker) Close() error {
	b.stopOnce.Do(func() {
		if b.cancel != nil {
			b.cancel()
		}
		b.mu.Lock()
		conn := b.conn
		b.mu.Unlock()
		if conn != nil {
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			conn.Close()
			<-b.done
		}
	})
	return nil
}
