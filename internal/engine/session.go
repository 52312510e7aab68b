package engine

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"roomsync/internal/domain"
	"roomsync/internal/notify"
	"roomsync/internal/observability"
	"roomsync/internal/presence"
	"roomsync/internal/pubsub"
	"roomsync/internal/typing"
)

// Session lifecycle states.
type SessionState int32

const (
	SessionStarting SessionState = iota
	SessionSyncing
	SessionReconciling
	SessionStopped
)

func (s SessionState) String() string {
	switch s {
	case SessionStarting:
		return "starting"
	case SessionSyncing:
		return "syncing"
	case SessionReconciling:
		return "reconciling"
	case SessionStopped:
		return "stopped"
	}
	return "unknown"
}

// pollInterval is the steady-state incremental fetch cadence. Push events
// only pull the next fetch forward; polling never stops while connected.
const pollInterval = 3 * time.Second

// SessionDeps bundles what a room session needs. Broker, heartbeat,
// tracker and dispatcher are optional; a nil field disables that concern.
type SessionDeps struct {
	API        MessageAPI
	Broker     pubsub.Broker
	Watermarks *Watermark
	Heartbeat  *presence.Heartbeat
	Tracker    *typing.Tracker
	Dispatcher *notify.Dispatcher

	// OnNew is invoked with each batch of newly merged messages, in
	// ascending id order, from the sync goroutine.
	OnNew func([]domain.Message)
}

// Session synchronizes one room for one principal: an initial backfill,
// then watermark-based incremental fetches on a poll ticker, pulled
// forward by push hints. Push payloads are never merged directly.
type Session struct {
	roomID  string
	self    domain.Principal
	fetcher *Fetcher
	deps    SessionDeps

	timeline *Timeline

	state    atomic.Int32
	inflight atomic.Bool
	pushCh   chan struct{}

	unsubscribe func()
	cancel      context.CancelFunc
	done        chan struct{}
	stopOnce    sync.Once
}

// NewSession creates a session for the principal in the room.
func NewSession(roomID string, self domain.Principal, deps SessionDeps) *Session {
	if deps.Watermarks == nil {
		deps.Watermarks = NewWatermark()
	}
	return &Session{
		roomID:   roomID,
		self:     self,
		fetcher:  NewFetcher(deps.API),
		deps:     deps,
		timeline: NewTimeline(),
		pushCh:   make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
}

// Start backfills the newest page, then launches the sync loop and the
// presence and typing side loops. It blocks until the backfill finishes.
func (s *Session) Start(ctx context.Context) error {
	s.state.Store(int32(SessionStarting))
	ctx, s.cancel = context.WithCancel(ctx)

	if s.deps.Broker != nil {
		unsub, err := s.deps.Broker.Subscribe(s.roomID, pubsub.TopicMessagesChanged, func(payload []byte) {
			s.trigger()
		})
		if err != nil {
			s.cancel()
			close(s.done)
			s.state.Store(int32(SessionStopped))
			return err
		}
		s.unsubscribe = unsub

		if s.deps.Tracker != nil {
			unsubTyping, err := s.deps.Broker.Subscribe(s.roomID, pubsub.TopicTyping, s.deps.Tracker.HandlePayload)
			if err != nil {
				s.teardownAfterFailedStart()
				return err
			}
			prev := s.unsubscribe
			s.unsubscribe = func() {
				prev()
				unsubTyping()
			}
		}
	}

	if err := s.backfill(ctx); err != nil {
		s.teardownAfterFailedStart()
		return err
	}

	if s.deps.Heartbeat != nil {
		s.deps.Heartbeat.Start(ctx)
	}
	if s.deps.Tracker != nil {
		s.deps.Tracker.Start(ctx)
	}

	s.state.Store(int32(SessionSyncing))
	go s.run(ctx)
	return nil
}

func (s *Session) teardownAfterFailedStart() {
	if s.unsubscribe != nil {
		s.unsubscribe()
	}
	s.cancel()
	close(s.done)
	s.state.Store(int32(SessionStopped))
}

// backfill loads the newest page and seeds the watermark so incremental
// fetches start from the newest known id, not from zero.
func (s *Session) backfill(ctx context.Context) error {
	msgs, err := s.fetcher.Page(ctx, s.roomID, 0)
	if err != nil {
		observability.SyncFetchesTotal.WithLabelValues("initial", "error").Inc()
		return err
	}
	observability.SyncFetchesTotal.WithLabelValues("initial", "ok").Inc()

	added := s.timeline.Merge(msgs)
	if latest := s.timeline.Latest(); latest > 0 {
		s.deps.Watermarks.Advance(s.roomID, latest)
	}
	s.deliver(added)
	return nil
}

func (s *Session) run(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.syncOnce(ctx, "poll")
		case <-s.pushCh:
			s.syncOnce(ctx, "push")
		}
	}
}

// trigger requests an immediate sync. Coalesces while one is pending.
func (s *Session) trigger() {
	select {
	case s.pushCh <- struct{}{}:
	default:
	}
}

// syncOnce runs one incremental fetch-and-merge. At most one runs at a
// time; triggers arriving mid-flight are dropped, the watermark makes the
// next fetch pick their messages up anyway.
func (s *Session) syncOnce(ctx context.Context, trigger string) {
	if !s.inflight.CompareAndSwap(false, true) {
		return
	}
	defer s.inflight.Store(false)

	since := s.deps.Watermarks.Get(s.roomID)
	msgs, err := s.fetcher.Since(ctx, s.roomID, since)
	if err != nil {
		observability.SyncFetchesTotal.WithLabelValues(trigger, "error").Inc()
		observability.Warn("sync fetch failed",
			"room_id", s.roomID, "trigger", trigger, "error", err.Error())
		s.state.CompareAndSwap(int32(SessionSyncing), int32(SessionReconciling))
		return
	}
	observability.SyncFetchesTotal.WithLabelValues(trigger, "ok").Inc()

	// The session may have been stopped while the fetch was in flight;
	// a dead session must not mutate the timeline or the watermark.
	if s.State() == SessionStopped {
		return
	}

	added := s.timeline.Merge(msgs)
	if len(added) > 0 {
		s.deps.Watermarks.Advance(s.roomID, added[len(added)-1].ID)
		observability.SyncMessagesMerged.Add(float64(len(added)))
	}
	s.state.CompareAndSwap(int32(SessionReconciling), int32(SessionSyncing))
	s.deliver(added)
}

func (s *Session) deliver(added []domain.Message) {
	if len(added) == 0 {
		return
	}
	if s.deps.Dispatcher != nil {
		s.deps.Dispatcher.HandleNew(added)
	}
	if s.deps.OnNew != nil {
		s.deps.OnNew(added)
	}
}

// LoadOlder fetches and merges the page before the oldest merged message.
// It returns the newly merged messages, oldest first.
func (s *Session) LoadOlder(ctx context.Context) ([]domain.Message, error) {
	msgs, err := s.fetcher.Page(ctx, s.roomID, s.timeline.Oldest())
	if err != nil {
		return nil, err
	}
	return s.timeline.Merge(msgs), nil
}

// Messages returns the merged timeline in ascending id order.
func (s *Session) Messages() []domain.Message {
	return s.timeline.Messages()
}

// State returns the current lifecycle state.
func (s *Session) State() SessionState {
	return SessionState(s.state.Load())
}

// Stop tears the session down: sync loop, subscriptions, typing sweep,
// and the presence heartbeat with its final withdraw. Idempotent.
func (s *Session) Stop() {
	s.stopOnce.Do(func() {
		s.state.Store(int32(SessionStopped))
		if s.cancel != nil {
			s.cancel()
			<-s.done
		}
		if s.unsubscribe != nil {
			s.unsubscribe()
		}
		if s.deps.Tracker != nil {
			s.deps.Tracker.Stop()
		}
		if s.deps.Heartbeat != nil {
			s.deps.Heartbeat.Stop()
		}
	})
}
