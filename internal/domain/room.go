package domain

import (
	"context"
	"time"
)

// Room represents a chat room
type Room struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	HasPassword bool      `json:"has_password"`
	CreatedAt   time.Time `json:"created_at"`
	CreatedBy   string    `json:"created_by"`
}

// Membership roles. The engine only reads these; role management is the
// directory service's concern.
const (
	RoleOwner  = "owner"
	RoleMember = "member"
)

// RoomDirectory defines the read/write surface of the room directory service.
// The sync engine itself only depends on the membership reads.
type RoomDirectory interface {
	CreateWithOwner(ctx context.Context, room *Room, passwordHash, ownerID string) error
	GetByID(ctx context.Context, id string) (*Room, error)
	List(ctx context.Context) ([]*Room, error)
	AddMember(ctx context.Context, roomID, principalID, role string) error
	IsMember(ctx context.Context, roomID, principalID string) (bool, error)
	Role(ctx context.Context, roomID, principalID string) (string, error)
	PasswordHash(ctx context.Context, roomID string) (string, error)
}
