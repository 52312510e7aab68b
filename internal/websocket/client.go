package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"roomsync/internal/domain"
	"roomsync/internal/pubsub"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 54 * time.Second // Must be less than pongWait
	maxMessageSize = 4096
)

// Client is one relay connection. Downstream it carries topic-tagged
// envelopes from the hub; upstream it accepts only typing envelopes,
// which are republished on the broker. Chat messages never travel on
// this socket.
type Client struct {
	hub       *Hub
	conn      *websocket.Conn
	send      chan []byte
	principal domain.Principal
	roomID    string
	broker    pubsub.Broker
	writeMu   sync.Mutex
	closed    atomic.Bool
	ctx       context.Context
	ctxCancel context.CancelFunc
}

// NewClient wraps an upgraded connection for the room.
func NewClient(ctx context.Context, hub *Hub, conn *websocket.Conn, principal domain.Principal, roomID string, broker pubsub.Broker) *Client {
	clientCtx, cancel := context.WithCancel(ctx)

	return &Client{
		hub:       hub,
		conn:      conn,
		send:      make(chan []byte, 256),
		principal: principal,
		roomID:    roomID,
		broker:    broker,
		ctx:       clientCtx,
		ctxCancel: cancel,
	}
}

// ReadPump consumes upstream frames until the connection dies. Only
// typing envelopes are honored; anything else is dropped.
func (c *Client) ReadPump() {
	defer func() {
		c.ctxCancel()
		c.hub.Unregister(c)
		c.closeConnection()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		slog.Warn("failed to set read deadline",
			slog.String("error", err.Error()),
			slog.String("principal_id", c.principal.ID),
			slog.String("room_id", c.roomID))
		return
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				slog.Warn("websocket error",
					slog.String("error", err.Error()),
					slog.String("principal_id", c.principal.ID))
			}
			break
		}

		var env pubsub.Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			slog.Warn("invalid envelope",
				slog.String("error", err.Error()),
				slog.String("principal_id", c.principal.ID))
			continue
		}
		if env.Topic != pubsub.TopicTyping {
			slog.Debug("dropping client frame on unsupported topic",
				slog.String("topic", env.Topic),
				slog.String("principal_id", c.principal.ID))
			continue
		}

		// The sender identity comes from the authenticated connection,
		// never from the frame body.
		payload, err := json.Marshal(struct {
			PrincipalID string `json:"principal_id"`
			DisplayName string `json:"display_name"`
		}{PrincipalID: c.principal.ID, DisplayName: c.principal.DisplayName})
		if err != nil {
			continue
		}

		ctx, cancel := context.WithTimeout(c.ctx, 5*time.Second)
		if err := c.broker.Publish(ctx, c.roomID, pubsub.TopicTyping, payload); err != nil {
			slog.Warn("typing relay publish failed",
				slog.String("error", err.Error()),
				slog.String("room_id", c.roomID))
		}
		cancel()
	}
}

// WritePump pumps events from the hub to the WebSocket connection
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.closeConnection()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			if !ok {
				// Hub closed the channel
				_ = c.writeMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.writeMessage(websocket.TextMessage, frame); err != nil {
				return
			}

		case <-ticker.C:
			if err := c.writeMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// writeMessage writes a message to the WebSocket connection in a thread-safe manner
func (c *Client) writeMessage(messageType int, data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.closed.Load() {
		return websocket.ErrCloseSent
	}

	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		slog.Warn("failed to set write deadline",
			slog.String("error", err.Error()),
			slog.String("principal_id", c.principal.ID),
			slog.String("room_id", c.roomID))
		return err
	}
	return c.conn.WriteMessage(messageType, data)
}

// closeConnection safely closes the WebSocket connection
func (c *Client) closeConnection() {
	if c.closed.CompareAndSwap(false, true) {
		c.writeMu.Lock()
		c.conn.Close()
		c.writeMu.Unlock()
	}
}
