// Package notify turns newly merged messages into user-facing alerts:
// a sound cue, a system notification, and an unread badge on the title.
package notify

import (
	"fmt"
	"sync"
	"time"

	"roomsync/internal/domain"
	"roomsync/internal/observability"
)

const (
	// soundDedupe collapses sound cues raised within the window into one.
	// The window is global across rooms.
	soundDedupe = 500 * time.Millisecond

	// notificationGap is the minimum spacing between system notifications.
	notificationGap = 2 * time.Second

	// NotificationTag is the fixed replace-tag for system notifications,
	// so a new one replaces the previous instead of stacking.
	NotificationTag = "roomsync-new-message"

	// NotificationTTL is how long a system notification stays up before
	// the sink auto-dismisses it.
	NotificationTTL = 5 * time.Second
)

// Notification is one system notification. Sinks honor Tag replacement
// and the auto-dismiss TTL.
type Notification struct {
	Tag   string
	Title string
	Body  string
	TTL   time.Duration
}

// Sink is the platform surface the dispatcher drives. Implementations
// must tolerate calls from the sync goroutine.
type Sink interface {
	PlaySound()
	ShowNotification(n Notification)
	SetUnreadBadge(count int)
}

// Dispatcher decides which alerts a batch of incoming messages produces.
// All timing state is internal; callers only feed it messages and focus
// transitions.
type Dispatcher struct {
	selfID string
	sink   Sink
	now    func() time.Time

	mu         sync.Mutex
	focused    bool
	permission bool
	unread     int
	lastSound  time.Time
	lastNotify time.Time
}

// NewDispatcher creates a dispatcher for the given principal. It starts
// focused with notification permission denied.
func NewDispatcher(selfID string, sink Sink) *Dispatcher {
	return &Dispatcher{
		selfID:  selfID,
		sink:    sink,
		now:     time.Now,
		focused: true,
	}
}

// SetPermission records whether system notifications may be shown.
func (d *Dispatcher) SetPermission(granted bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.permission = granted
}

// SetFocused records a focus transition. Gaining focus zeroes the unread
// count and clears the badge in the same step, so no alert raised after
// the transition can observe a stale count.
func (d *Dispatcher) SetFocused(focused bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.focused = focused
	if focused && d.unread > 0 {
		d.unread = 0
		d.sink.SetUnreadBadge(0)
	}
}

// Unread returns the current unread count.
func (d *Dispatcher) Unread() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.unread
}

// HandleNew processes a batch of newly merged messages. Messages authored
// by the local principal never alert. One batch raises at most one sound
// and one notification regardless of its size.
func (d *Dispatcher) HandleNew(msgs []domain.Message) {
	incoming := make([]domain.Message, 0, len(msgs))
	for _, msg := range msgs {
		if msg.AuthoredBy(d.selfID) {
			continue
		}
		incoming = append(incoming, msg)
	}
	if len(incoming) == 0 {
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	now := d.now()

	if d.focused {
		observability.NotificationsSuppressed.WithLabelValues("focused").Inc()
		return
	}

	d.unread += len(incoming)
	d.sink.SetUnreadBadge(d.unread)

	if now.Sub(d.lastSound) >= soundDedupe {
		d.lastSound = now
		d.sink.PlaySound()
		observability.NotificationsRaised.WithLabelValues("sound").Inc()
	} else {
		observability.NotificationsSuppressed.WithLabelValues("sound_dedupe").Inc()
	}

	if !d.permission {
		observability.NotificationsSuppressed.WithLabelValues("permission").Inc()
		return
	}
	if now.Sub(d.lastNotify) < notificationGap {
		observability.NotificationsSuppressed.WithLabelValues("notify_gap").Inc()
		return
	}
	d.lastNotify = now

	latest := incoming[len(incoming)-1]
	d.sink.ShowNotification(Notification{
		Tag:   NotificationTag,
		Title: latest.AuthorName,
		Body:  latest.Content,
		TTL:   NotificationTTL,
	})
	observability.NotificationsRaised.WithLabelValues("system").Inc()
}

// BadgeTitle renders the title with the unread badge prefix. A zero count
// returns the title unchanged.
func BadgeTitle(title string, unread int) string {
	if unread <= 0 {
		return title
	}
	return fmt.Sprintf("(%d) %s", unread, title)
}
