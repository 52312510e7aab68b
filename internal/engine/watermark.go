// Package engine implements the message synchronization core: the
// per-room watermark, the ordered timeline with idempotent merge, the
// retrying fetcher, and the room session that orchestrates them.
package engine

import "sync"

// Watermark tracks the highest merged message id per room. Ids below or
// at the watermark have already been merged and are never re-requested.
type Watermark struct {
	mu     sync.Mutex
	byRoom map[string]int64
}

// NewWatermark creates an empty watermark store.
func NewWatermark() *Watermark {
	return &Watermark{byRoom: make(map[string]int64)}
}

// Get returns the room's watermark, zero when the room is unknown.
func (w *Watermark) Get(roomID string) int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.byRoom[roomID]
}

// Advance raises the room's watermark to id. Moves backward are ignored;
// the return value reports whether the watermark changed.
func (w *Watermark) Advance(roomID string, id int64) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if id <= w.byRoom[roomID] {
		return false
	}
	w.byRoom[roomID] = id
	return true
}

// Reset forgets the room's watermark, forcing the next sync to backfill.
func (w *Watermark) Reset(roomID string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.byRoom, roomID)
}
