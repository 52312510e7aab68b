package domain

import (
	"context"
	"time"
)

// OnlineWindow is the duration after which an un-renewed heartbeat is
// treated as offline. Staleness is solely time-based; there is no
// explicit "offline" event.
const OnlineWindow = 60 * time.Second

// PresenceRecord represents one principal's liveness in one room.
type PresenceRecord struct {
	PrincipalID string    `json:"principal_id"`
	RoomID      string    `json:"room_id"`
	DisplayName string    `json:"display_name"`
	LastSeenAt  time.Time `json:"last_seen_at"`
}

// OnlineAt reports whether the record counts as online at the given instant.
func (p PresenceRecord) OnlineAt(now time.Time, window time.Duration) bool {
	return now.Sub(p.LastSeenAt) < window
}

// PresenceStore defines the interface for presence record storage. Each
// principal mutates only its own record, so writes never contend.
type PresenceStore interface {
	Upsert(ctx context.Context, rec PresenceRecord) error
	Remove(ctx context.Context, roomID, principalID string) error
	Online(ctx context.Context, roomID string, now time.Time) ([]PresenceRecord, error)
}
