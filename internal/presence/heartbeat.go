package presence

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"roomsync/internal/observability"
	"roomsync/internal/retry"
)

// Announcer is the transport for liveness announcements. Production uses
// the HTTP API client; tests use fakes.
type Announcer interface {
	Announce(ctx context.Context, roomID string) error
	Withdraw(ctx context.Context, roomID string) error
}

// ActivityMonitor reports when the consuming surface last saw user input.
// The heartbeat stretches its interval when the surface has been idle.
type ActivityMonitor interface {
	LastActivity() time.Time
}

// Heartbeat lifecycle states.
type State int32

const (
	StateIdle State = iota
	StateAnnouncing
	StateSteady
	StateStopped
)

// Config holds heartbeat tuning parameters. The active and idle intervals
// are deliberately independent of the message poll interval.
type Config struct {
	GraceDelay      time.Duration // wait before the first announce
	ActiveInterval  time.Duration // tick while the surface is active
	IdleInterval    time.Duration // tick while the surface is idle
	IdleAfter       time.Duration // inactivity needed to count as idle
	RetryAttempts   int
	RetryBase       time.Duration
	WithdrawTimeout time.Duration
}

// DefaultConfig returns the reference timings.
func DefaultConfig() Config {
	return Config{
		GraceDelay:      1 * time.Second,
		ActiveInterval:  15 * time.Second,
		IdleInterval:    60 * time.Second,
		IdleAfter:       30 * time.Second,
		RetryAttempts:   3,
		RetryBase:       2 * time.Second,
		WithdrawTimeout: 5 * time.Second,
	}
}

// Heartbeat periodically announces liveness for one (principal, room) pair.
type Heartbeat struct {
	roomID    string
	announcer Announcer
	activity  ActivityMonitor
	cfg       Config
	now       func() time.Time

	state    atomic.Int32
	cancel   context.CancelFunc
	done     chan struct{}
	stopOnce sync.Once
}

// NewHeartbeat creates a heartbeat for the room. A nil activity monitor
// pins the interval to ActiveInterval.
func NewHeartbeat(roomID string, announcer Announcer, activity ActivityMonitor, cfg Config) *Heartbeat {
	def := DefaultConfig()
	if cfg.GraceDelay <= 0 {
		cfg.GraceDelay = def.GraceDelay
	}
	if cfg.ActiveInterval <= 0 {
		cfg.ActiveInterval = def.ActiveInterval
	}
	if cfg.IdleInterval <= 0 {
		cfg.IdleInterval = def.IdleInterval
	}
	if cfg.IdleAfter <= 0 {
		cfg.IdleAfter = def.IdleAfter
	}
	if cfg.RetryAttempts <= 0 {
		cfg.RetryAttempts = def.RetryAttempts
	}
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = def.RetryBase
	}
	if cfg.WithdrawTimeout <= 0 {
		cfg.WithdrawTimeout = def.WithdrawTimeout
	}

	return &Heartbeat{
		roomID:    roomID,
		announcer: announcer,
		activity:  activity,
		cfg:       cfg,
		now:       time.Now,
		done:      make(chan struct{}),
	}
}

// Start launches the heartbeat loop. It returns immediately.
func (h *Heartbeat) Start(ctx context.Context) {
	ctx, h.cancel = context.WithCancel(ctx)
	go h.run(ctx)
}

func (h *Heartbeat) run(ctx context.Context) {
	defer close(h.done)

	// Grace delay lets membership side effects settle before the first
	// announce lands.
	grace := time.NewTimer(h.cfg.GraceDelay)
	select {
	case <-ctx.Done():
		grace.Stop()
		return
	case <-grace.C:
	}

	h.state.Store(int32(StateAnnouncing))
	h.announce(ctx)
	h.state.Store(int32(StateSteady))

	for {
		// The interval is re-evaluated on every tick, not fixed at start.
		timer := time.NewTimer(h.interval())
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			h.announce(ctx)
		}
	}
}

// announce sends one heartbeat with bounded linear retry. Exhausted
// retries are dropped silently; the next scheduled tick self-heals.
func (h *Heartbeat) announce(ctx context.Context) {
	err := retry.Do(ctx, h.cfg.RetryAttempts, retry.Linear(h.cfg.RetryBase), func(ctx context.Context) error {
		return h.announcer.Announce(ctx, h.roomID)
	})
	if err != nil {
		observability.PresenceHeartbeatsTotal.WithLabelValues("error").Inc()
		slog.Debug("presence heartbeat dropped",
			slog.String("room_id", h.roomID),
			slog.String("error", err.Error()))
		return
	}
	observability.PresenceHeartbeatsTotal.WithLabelValues("ok").Inc()
}

func (h *Heartbeat) interval() time.Duration {
	if h.activity != nil && h.now().Sub(h.activity.LastActivity()) > h.cfg.IdleAfter {
		return h.cfg.IdleInterval
	}
	return h.cfg.ActiveInterval
}

// Stop cancels the loop and sends one best-effort withdraw. Safe to call
// more than once; the withdraw failure is logged, never retried, and
// never blocks teardown.
func (h *Heartbeat) Stop() {
	h.stopOnce.Do(func() {
		if h.cancel != nil {
			h.cancel()
			<-h.done
		}

		ctx, cancel := context.WithTimeout(context.Background(), h.cfg.WithdrawTimeout)
		defer cancel()
		if err := h.announcer.Withdraw(ctx, h.roomID); err != nil {
			slog.Warn("presence withdraw failed",
				slog.String("room_id", h.roomID),
				slog.String("error", err.Error()))
		}

		h.state.Store(int32(StateStopped))
	})
}

// State returns the current lifecycle state.
func (h *Heartbeat) State() State {
	return State(h.state.Load())
}
