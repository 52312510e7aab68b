package engine

import (
	"sort"
	"sync"

	"roomsync/internal/domain"
)

// Timeline is one room's ordered message history. Messages are kept in
// ascending id order and merged idempotently: an id already present is
// dropped no matter how many fetches return it.
type Timeline struct {
	mu   sync.Mutex
	msgs []domain.Message
	seen map[int64]struct{}
}

// NewTimeline creates an empty timeline.
func NewTimeline() *Timeline {
	return &Timeline{seen: make(map[int64]struct{})}
}

// Merge folds incoming messages into the timeline and returns only the
// ones that were actually new, in ascending id order. Merging the same
// batch twice adds nothing the second time.
func (t *Timeline) Merge(incoming []domain.Message) []domain.Message {
	t.mu.Lock()
	defer t.mu.Unlock()

	added := make([]domain.Message, 0, len(incoming))
	for _, msg := range incoming {
		if _, ok := t.seen[msg.ID]; ok {
			continue
		}
		t.seen[msg.ID] = struct{}{}
		added = append(added, msg)
	}
	if len(added) == 0 {
		return nil
	}

	t.msgs = append(t.msgs, added...)
	sort.Slice(t.msgs, func(i, j int) bool { return t.msgs[i].ID < t.msgs[j].ID })
	sort.Slice(added, func(i, j int) bool { return added[i].ID < added[j].ID })
	return added
}

// Messages returns a copy of the timeline in ascending id order.
func (t *Timeline) Messages() []domain.Message {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]domain.Message, len(t.msgs))
	copy(out, t.msgs)
	return out
}

// Oldest returns the smallest merged id, zero when the timeline is empty.
// It is the cursor for fetching the next older page.
func (t *Timeline) Oldest() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.msgs) == 0 {
		return 0
	}
	return t.msgs[0].ID
}

// Latest returns the largest merged id, zero when the timeline is empty.
func (t *Timeline) Latest() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.msgs) == 0 {
		return 0
	}
	return t.msgs[len(t.msgs)-1].ID
}

// Len returns the number of merged messages.
func (t *Timeline) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.msgs)
}
