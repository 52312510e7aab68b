package domain

import (
	"context"
	"time"
)

// MaxContentLength is the maximum message length in UTF-8 characters after trimming.
const MaxContentLength = 2000

// Message represents a chat message. The id is assigned by the message store
// and is strictly increasing within a room; content is immutable once created.
type Message struct {
	ID         int64             `json:"id"`
	RoomID     string            `json:"room_id"`
	AuthorID   *string           `json:"author_id,omitempty"`  // nil for guest authors
	SessionID  *string           `json:"session_id,omitempty"` // guest session, nil for authenticated authors
	AuthorName string            `json:"author_name"`
	Content    string            `json:"content"`
	CreatedAt  time.Time         `json:"created_at"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// AuthoredBy reports whether the message was written by the given principal.
func (m *Message) AuthoredBy(principalID string) bool {
	return m.AuthorID != nil && *m.AuthorID == principalID
}

// MessageRepository defines the interface for message data access
type MessageRepository interface {
	Create(ctx context.Context, message *Message) error
	// ListSince returns messages with id > sinceID in ascending id order.
	ListSince(ctx context.Context, roomID string, sinceID int64, limit int) ([]*Message, error)
	// ListPage returns messages with id < before (0 means "from newest") in
	// descending id order, for backward history pagination.
	ListPage(ctx context.Context, roomID string, before int64, limit int) ([]*Message, error)
}
