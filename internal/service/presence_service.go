package service

import (
	"context"
	"time"

	"roomsync/internal/domain"
)

// PresenceService gates presence reads and writes on room membership.
type PresenceService struct {
	rooms domain.RoomDirectory
	store domain.PresenceStore
	now   func() time.Time
}

// NewPresenceService creates the service.
func NewPresenceService(rooms domain.RoomDirectory, store domain.PresenceStore) *PresenceService {
	return &PresenceService{rooms: rooms, store: store, now: time.Now}
}

// Heartbeat records the principal as alive in the room. Idempotent.
func (s *PresenceService) Heartbeat(ctx context.Context, roomID string, principal domain.Principal) error {
	isMember, err := s.rooms.IsMember(ctx, roomID, principal.ID)
	if err != nil {
		return err
	}
	if !isMember {
		return domain.ErrNotMember
	}

	return s.store.Upsert(ctx, domain.PresenceRecord{
		PrincipalID: principal.ID,
		RoomID:      roomID,
		DisplayName: principal.DisplayName,
		LastSeenAt:  s.now(),
	})
}

// Withdraw removes the principal's own presence record. Withdrawing an
// absent record is a no-op.
func (s *PresenceService) Withdraw(ctx context.Context, roomID, principalID string) error {
	return s.store.Remove(ctx, roomID, principalID)
}

// Online lists the room's currently online principals.
func (s *PresenceService) Online(ctx context.Context, roomID, principalID string) ([]domain.PresenceRecord, error) {
	isMember, err := s.rooms.IsMember(ctx, roomID, principalID)
	if err != nil {
		return nil, err
	}
	if !isMember {
		return nil, domain.ErrNotMember
	}
	return s.store.Online(ctx, roomID, s.now())
}
