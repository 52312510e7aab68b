// Package presence holds the presence store and the client-side heartbeat
// loop. A principal is online in a room iff its last heartbeat is younger
// than the online window; there is no explicit offline event.
package presence

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"roomsync/internal/domain"
	"roomsync/internal/observability"
)

const (
	// presencePrefix is the Redis key prefix for per-room presence hashes.
	presencePrefix = "presence:"

	// hashTTL garbage-collects a room's presence hash once it goes quiet.
	// Individual stale fields are filtered by the online window, not TTL.
	hashTTL = 5 * time.Minute
)

// record is the stored form of one principal's liveness.
type record struct {
	DisplayName string `json:"display_name"`
	LastSeenAt  int64  `json:"last_seen_at"` // unix milliseconds
}

// Store manages presence records in Redis.
type Store struct {
	client *redis.Client
	window time.Duration
}

// NewStore creates a presence store connected to Redis.
func NewStore(redisAddr string) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr: redisAddr,
	})

	// Verify connection.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("presence: redis connection failed: %w", err)
	}

	return &Store{client: client, window: domain.OnlineWindow}, nil
}

// NewStoreWithClient wraps an existing Redis client; used by tests.
func NewStoreWithClient(client *redis.Client, window time.Duration) *Store {
	return &Store{client: client, window: window}
}

func key(roomID string) string {
	return presencePrefix + roomID
}

// Upsert records a heartbeat for the principal in the room. Idempotent.
func (s *Store) Upsert(ctx context.Context, rec domain.PresenceRecord) error {
	value, err := json.Marshal(record{
		DisplayName: rec.DisplayName,
		LastSeenAt:  rec.LastSeenAt.UnixMilli(),
	})
	if err != nil {
		return fmt.Errorf("presence: marshal record: %w", err)
	}

	pipe := s.client.Pipeline()
	pipe.HSet(ctx, key(rec.RoomID), rec.PrincipalID, value)
	pipe.Expire(ctx, key(rec.RoomID), hashTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("presence: upsert: %w", err)
	}
	return nil
}

// Remove deletes the principal's record on explicit leave. Removing an
// absent record is a no-op.
func (s *Store) Remove(ctx context.Context, roomID, principalID string) error {
	if err := s.client.HDel(ctx, key(roomID), principalID).Err(); err != nil {
		return fmt.Errorf("presence: remove: %w", err)
	}
	return nil
}

// Online returns the principals whose heartbeat falls inside the window.
func (s *Store) Online(ctx context.Context, roomID string, now time.Time) ([]domain.PresenceRecord, error) {
	fields, err := s.client.HGetAll(ctx, key(roomID)).Result()
	if err != nil {
		return nil, fmt.Errorf("presence: list: %w", err)
	}

	records := make([]domain.PresenceRecord, 0, len(fields))
	for principalID, raw := range fields {
		var rec record
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			// A malformed field is a bug, not a user condition; skip it
			// rather than failing the whole read.
			observability.Warn("presence: malformed record",
				"room_id", roomID, "principal_id", principalID)
			continue
		}
		records = append(records, domain.PresenceRecord{
			PrincipalID: principalID,
			RoomID:      roomID,
			DisplayName: rec.DisplayName,
			LastSeenAt:  time.UnixMilli(rec.LastSeenAt),
		})
	}

	online := FilterOnline(records, now, s.window)
	observability.PresenceOnline.WithLabelValues(roomID).Set(float64(len(online)))
	return online, nil
}

// FilterOnline keeps the records that count as online at the given instant.
func FilterOnline(records []domain.PresenceRecord, now time.Time, window time.Duration) []domain.PresenceRecord {
	online := make([]domain.PresenceRecord, 0, len(records))
	for _, rec := range records {
		if rec.OnlineAt(now, window) {
			online = append(online, rec)
		}
	}
	return online
}

// Client exposes the underlying Redis client for health checks.
func (s *Store) Client() *redis.Client {
	return s.client
}

// Close closes the Redis connection.
func (s *Store) Close() error {
	return s.client.Close()
}
