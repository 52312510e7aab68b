package service

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	// Limiter is considered inactive if not used for this duration
	senderTTL = 15 * time.Minute
	// Time after which inactive sender limiters are removed
	senderCleanupInterval = 5 * time.Minute
)

type senderEntry struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// SendLimiter enforces a per-principal message send rate. It is separate
// from the per-IP HTTP limiter: one principal gets one budget no matter
// how many connections it holds.
type SendLimiter struct {
	mu      sync.Mutex
	senders map[string]*senderEntry
	rate    rate.Limit
	burst   int
	stopCh  chan struct{}
}

// NewSendLimiter creates a limiter allowing perMinute sends on average
// with a burst of burst.
func NewSendLimiter(perMinute int, burst int) *SendLimiter {
	sl := &SendLimiter{
		senders: make(map[string]*senderEntry),
		rate:    rate.Limit(float64(perMinute) / 60.0),
		burst:   burst,
		stopCh:  make(chan struct{}),
	}
	go sl.cleanupLoop()
	return sl
}

// Allow reports whether the principal may send now.
func (sl *SendLimiter) Allow(principalID string) bool {
	sl.mu.Lock()
	defer sl.mu.Unlock()

	entry, ok := sl.senders[principalID]
	if !ok {
		entry = &senderEntry{limiter: rate.NewLimiter(sl.rate, sl.burst)}
		sl.senders[principalID] = entry
	}
	entry.lastAccess = time.Now()
	return entry.limiter.Allow()
}

func (sl *SendLimiter) cleanupLoop() {
	ticker := time.NewTicker(senderCleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-sl.stopCh:
			return
		case <-ticker.C:
			sl.cleanup()
		}
	}
}

func (sl *SendLimiter) cleanup() {
	sl.mu.Lock()
	defer sl.mu.Unlock()

	now := time.Now()
	for key, entry := range sl.senders {
		if now.Sub(entry.lastAccess) > senderTTL {
			delete(sl.senders, key)
		}
	}
}

// Stop stops the cleanup goroutine
func (sl *SendLimiter) Stop() {
	close(sl.stopCh)
}
