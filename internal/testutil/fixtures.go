package testutil

import (
	"fmt"
	"sync/atomic"
	"time"

	"roomsync/internal/domain"
)

// Counter for generating unique IDs
var idCounter atomic.Int64

// nextID generates a unique ID for test fixtures
func nextID(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, idCounter.Add(1))
}

// NewTestPrincipal creates a test principal with a unique id.
func NewTestPrincipal(name string) domain.Principal {
	return domain.Principal{
		ID:          nextID("principal"),
		DisplayName: name,
	}
}

// RoomOptions allows customizing room fixture creation
type RoomOptions struct {
	ID          string
	Name        string
	HasPassword bool
	CreatedAt   time.Time
	CreatedBy   string
}

// NewTestRoom creates a test room with sensible defaults
func NewTestRoom(opts ...func(*RoomOptions)) *domain.Room {
	o := &RoomOptions{
		ID:        nextID("room"),
		Name:      fmt.Sprintf("Test Room %d", idCounter.Load()),
		CreatedAt: time.Now(),
		CreatedBy: nextID("principal"),
	}
	for _, opt := range opts {
		opt(o)
	}

	return &domain.Room{
		ID:          o.ID,
		Name:        o.Name,
		HasPassword: o.HasPassword,
		CreatedAt:   o.CreatedAt,
		CreatedBy:   o.CreatedBy,
	}
}

// WithRoomID sets the room ID
func WithRoomID(id string) func(*RoomOptions) {
	return func(o *RoomOptions) {
		o.ID = id
	}
}

// WithRoomName sets the room name
func WithRoomName(name string) func(*RoomOptions) {
	return func(o *RoomOptions) {
		o.Name = name
	}
}

// MessageOptions allows customizing message fixture creation
type MessageOptions struct {
	ID         int64
	RoomID     string
	AuthorID   string
	AuthorName string
	Content    string
	CreatedAt  time.Time
}

// NewTestMessage creates a test message with sensible defaults
func NewTestMessage(opts ...func(*MessageOptions)) *domain.Message {
	o := &MessageOptions{
		ID:         idCounter.Add(1),
		RoomID:     "room-1",
		AuthorID:   nextID("principal"),
		AuthorName: fmt.Sprintf("user%d", idCounter.Load()),
		Content:    "Hello, World!",
		CreatedAt:  time.Now(),
	}
	for _, opt := range opts {
		opt(o)
	}

	authorID := o.AuthorID
	return &domain.Message{
		ID:         o.ID,
		RoomID:     o.RoomID,
		AuthorID:   &authorID,
		AuthorName: o.AuthorName,
		Content:    o.Content,
		CreatedAt:  o.CreatedAt,
	}
}

// WithMessageID sets the message id
func WithMessageID(id int64) func(*MessageOptions) {
	return func(o *MessageOptions) {
		o.ID = id
	}
}

// WithMessageRoomID sets the room the message belongs to
func WithMessageRoomID(roomID string) func(*MessageOptions) {
	return func(o *MessageOptions) {
		o.RoomID = roomID
	}
}

// WithAuthor sets the author id and display name
func WithAuthor(id, name string) func(*MessageOptions) {
	return func(o *MessageOptions) {
		o.AuthorID = id
		o.AuthorName = name
	}
}

// WithContent sets the message content
func WithContent(content string) func(*MessageOptions) {
	return func(o *MessageOptions) {
		o.Content = content
	}
}

// NewTestMessages creates count messages in the room with ascending ids
// starting at firstID.
func NewTestMessages(roomID string, firstID int64, count int) []*domain.Message {
	messages := make([]*domain.Message, count)
	for i := 0; i < count; i++ {
		messages[i] = NewTestMessage(
			WithMessageID(firstID+int64(i)),
			WithMessageRoomID(roomID),
		)
	}
	return messages
}
