package service

import (
	"context"
	"encoding/json"
	"strings"
	"unicode/utf8"

	"golang.org/x/crypto/bcrypt"

	"roomsync/internal/domain"
	"roomsync/internal/observability"
	"roomsync/internal/pubsub"
)

const maxRoomNameLength = 100

// RoomService owns the message log and room directory operations. Every
// read and write is membership-checked here, not in the handlers.
type RoomService struct {
	messages domain.MessageRepository
	rooms    domain.RoomDirectory
	broker   pubsub.Broker
	limiter  *SendLimiter
}

// NewRoomService creates the service. A nil limiter disables the
// per-principal send rate check.
func NewRoomService(messages domain.MessageRepository, rooms domain.RoomDirectory, broker pubsub.Broker, limiter *SendLimiter) *RoomService {
	return &RoomService{
		messages: messages,
		rooms:    rooms,
		broker:   broker,
		limiter:  limiter,
	}
}

// SendMessage validates, persists and announces one message. The
// returned message carries the store-assigned id.
func (s *RoomService) SendMessage(ctx context.Context, roomID string, author domain.Principal, content string) (*domain.Message, error) {
	content = strings.TrimSpace(content)
	if length := utf8.RuneCountInString(content); length == 0 || length > domain.MaxContentLength {
		return nil, domain.ErrInvalidContent
	}

	isMember, err := s.rooms.IsMember(ctx, roomID, author.ID)
	if err != nil {
		return nil, err
	}
	if !isMember {
		return nil, domain.ErrNotMember
	}

	if s.limiter != nil && !s.limiter.Allow(author.ID) {
		return nil, domain.ErrRateLimited
	}

	msg := &domain.Message{
		RoomID:     roomID,
		AuthorID:   &author.ID,
		AuthorName: author.DisplayName,
		Content:    content,
	}
	if err := s.messages.Create(ctx, msg); err != nil {
		return nil, err
	}

	s.announceChange(ctx, msg)
	return msg, nil
}

// announceChange publishes a messages-changed hint. The hint is advisory;
// a lost publish only delays readers until their next poll.
func (s *RoomService) announceChange(ctx context.Context, msg *domain.Message) {
	if s.broker == nil {
		return
	}
	payload, _ := json.Marshal(struct {
		RoomID string `json:"room_id"`
		ID     int64  `json:"id"`
	}{RoomID: msg.RoomID, ID: msg.ID})

	if err := s.broker.Publish(ctx, msg.RoomID, pubsub.TopicMessagesChanged, payload); err != nil {
		observability.Warn("message hint publish failed",
			"room_id", msg.RoomID, "error", err.Error())
	}
}

func clampLimit(limit int) int {
	if limit <= 0 || limit > 100 {
		return 50
	}
	return limit
}

// ListSince returns messages newer than sinceID in ascending id order.
func (s *RoomService) ListSince(ctx context.Context, roomID, principalID string, sinceID int64, limit int) ([]*domain.Message, error) {
	if err := s.requireMember(ctx, roomID, principalID); err != nil {
		return nil, err
	}
	return s.messages.ListSince(ctx, roomID, sinceID, clampLimit(limit))
}

// ListPage returns the history page below the cursor, newest first. A
// zero cursor means the newest page.
func (s *RoomService) ListPage(ctx context.Context, roomID, principalID string, before int64, limit int) ([]*domain.Message, error) {
	if err := s.requireMember(ctx, roomID, principalID); err != nil {
		return nil, err
	}
	return s.messages.ListPage(ctx, roomID, before, clampLimit(limit))
}

func (s *RoomService) requireMember(ctx context.Context, roomID, principalID string) error {
	isMember, err := s.rooms.IsMember(ctx, roomID, principalID)
	if err != nil {
		return err
	}
	if !isMember {
		return domain.ErrNotMember
	}
	return nil
}

// CreateRoom creates a room with the caller as owner. An empty password
// leaves the room open.
func (s *RoomService) CreateRoom(ctx context.Context, name, password string, owner domain.Principal) (*domain.Room, error) {
	name = strings.TrimSpace(name)
	if len(name) == 0 || len(name) > maxRoomNameLength {
		return nil, domain.ErrInvalidInput
	}

	var hash string
	if password != "" {
		hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			return nil, err
		}
		hash = string(hashed)
	}

	room := &domain.Room{Name: name}
	if err := s.rooms.CreateWithOwner(ctx, room, hash, owner.ID); err != nil {
		return nil, err
	}
	return room, nil
}

// JoinRoom adds the principal to the room, verifying the password when
// the room has one. Joining a room twice is a no-op.
func (s *RoomService) JoinRoom(ctx context.Context, roomID, password string, principal domain.Principal) error {
	hash, err := s.rooms.PasswordHash(ctx, roomID)
	if err != nil {
		return err
	}
	if hash != "" {
		if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
			return domain.ErrWrongPassword
		}
	}
	return s.rooms.AddMember(ctx, roomID, principal.ID, domain.RoleMember)
}

// ListRooms returns all rooms, newest first.
func (s *RoomService) ListRooms(ctx context.Context) ([]*domain.Room, error) {
	return s.rooms.List(ctx)
}

// GetRoom returns one room.
func (s *RoomService) GetRoom(ctx context.Context, roomID string) (*domain.Room, error) {
	return s.rooms.GetByID(ctx, roomID)
}

// IsMember reports room membership.
func (s *RoomService) IsMember(ctx context.Context, roomID, principalID string) (bool, error) {
	return s.rooms.IsMember(ctx, roomID, principalID)
}
