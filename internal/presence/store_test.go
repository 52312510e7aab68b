package presence

import (
	"testing"
	"time"

	"roomsync/internal/domain"

	"github.com/stretchr/testify/assert"
)

func TestFilterOnline_WindowBoundary(t *testing.T) {
	now := time.Now()
	window := 60 * time.Second

	records := []domain.PresenceRecord{
		{PrincipalID: "fresh", RoomID: "room-1", LastSeenAt: now.Add(-59 * time.Second)},
		{PrincipalID: "stale", RoomID: "room-1", LastSeenAt: now.Add(-61 * time.Second)},
		{PrincipalID: "exact", RoomID: "room-1", LastSeenAt: now.Add(-60 * time.Second)},
	}

	online := FilterOnline(records, now, window)

	ids := make([]string, 0, len(online))
	for _, rec := range online {
		ids = append(ids, rec.PrincipalID)
	}
	assert.Equal(t, []string{"fresh"}, ids,
		"59s-old heartbeat is online, 60s and 61s are offline")
}

func TestFilterOnline_Empty(t *testing.T) {
	online := FilterOnline(nil, time.Now(), domain.OnlineWindow)
	assert.Empty(t, online)
}

func TestPresenceRecord_OnlineAt(t *testing.T) {
	now := time.Now()
	rec := domain.PresenceRecord{LastSeenAt: now.Add(-30 * time.Second)}

	assert.True(t, rec.OnlineAt(now, domain.OnlineWindow))
	assert.False(t, rec.OnlineAt(now.Add(31*time.Second), domain.OnlineWindow))
}
