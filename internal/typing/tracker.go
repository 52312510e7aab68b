package typing

import (
	"context"
	"encoding/json"
	"log/slog"
	"sort"
	"sync"
	"time"
)

const (
	// entryTTL is how long a received typing event keeps its sender listed.
	entryTTL = 3 * time.Second

	// sweepInterval is the cadence of the expiry sweep. An expired entry
	// may linger up to entryTTL+sweepInterval before the sweep removes it.
	sweepInterval = 1 * time.Second
)

// Entry is one remote principal currently typing, in arrival order.
type Entry struct {
	PrincipalID  string
	DisplayName  string
	LastTypingAt time.Time
}

type trackedEntry struct {
	Entry
	arrival int
}

// Tracker accumulates typing events from other principals in one room and
// expires them with a periodic sweep. The local principal is filtered out.
type Tracker struct {
	selfID string
	ttl    time.Duration
	tick   time.Duration
	now    func() time.Time

	mu      sync.Mutex
	entries map[string]*trackedEntry
	seq     int

	cancel   context.CancelFunc
	done     chan struct{}
	stopOnce sync.Once
}

// NewTracker creates a tracker that ignores events from selfID.
func NewTracker(selfID string) *Tracker {
	return &Tracker{
		selfID:  selfID,
		ttl:     entryTTL,
		tick:    sweepInterval,
		now:     time.Now,
		entries: make(map[string]*trackedEntry),
		done:    make(chan struct{}),
	}
}

// Start launches the expiry sweep. It returns immediately.
func (t *Tracker) Start(ctx context.Context) {
	ctx, t.cancel = context.WithCancel(ctx)
	go t.sweep(ctx)
}

func (t *Tracker) sweep(ctx context.Context) {
	defer close(t.done)

	ticker := time.NewTicker(t.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.expire()
		}
	}
}

func (t *Tracker) expire() {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.now()
	for id, entry := range t.entries {
		if now.Sub(entry.LastTypingAt) >= t.ttl {
			delete(t.entries, id)
		}
	}
}

// Observe records a typing event. Repeat events from a known principal
// refresh the timestamp but keep the original arrival position.
func (t *Tracker) Observe(ev Event) {
	if ev.PrincipalID == "" || ev.PrincipalID == t.selfID {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.now()
	if existing, ok := t.entries[ev.PrincipalID]; ok {
		existing.LastTypingAt = now
		existing.DisplayName = ev.DisplayName
		return
	}
	t.seq++
	t.entries[ev.PrincipalID] = &trackedEntry{
		Entry: Entry{
			PrincipalID:  ev.PrincipalID,
			DisplayName:  ev.DisplayName,
			LastTypingAt: now,
		},
		arrival: t.seq,
	}
}

// HandlePayload decodes a typing payload from the broker and feeds it to
// Observe. Malformed payloads are logged and dropped.
func (t *Tracker) HandlePayload(payload []byte) {
	var ev Event
	if err := json.Unmarshal(payload, &ev); err != nil {
		slog.Debug("typing: malformed payload", slog.String("error", err.Error()))
		return
	}
	t.Observe(ev)
}

// Active returns the current entries in arrival order. Expiry is driven by
// the sweep, so an entry can outlive its TTL by at most one sweep interval.
func (t *Tracker) Active() []Entry {
	t.mu.Lock()
	defer t.mu.Unlock()

	tracked := make([]*trackedEntry, 0, len(t.entries))
	for _, entry := range t.entries {
		tracked = append(tracked, entry)
	}
	sort.Slice(tracked, func(i, j int) bool {
		return tracked[i].arrival < tracked[j].arrival
	})

	entries := make([]Entry, len(tracked))
	for i, entry := range tracked {
		entries[i] = entry.Entry
	}
	return entries
}

// Stop halts the sweep loop. Idempotent.
func (t *Tracker) Stop() {
	t.stopOnce.Do(func() {
		if t.cancel != nil {
			t.cancel()
			<-t.done
		}
	})
}
