package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"roomsync/internal/apiclient"
	"roomsync/internal/domain"
	"roomsync/internal/engine"
	"roomsync/internal/notify"
	"roomsync/internal/observability"
	"roomsync/internal/presence"
	"roomsync/internal/typing"
)

func main() {
	var (
		server   = flag.String("server", envOr("ROOMSYNC_SERVER", "http://localhost:8080"), "server base URL")
		wsServer = flag.String("ws", envOr("ROOMSYNC_WS", "ws://localhost:8080"), "websocket base URL")
		name     = flag.String("name", "", "display name (required unless ROOMSYNC_TOKEN is set)")
		roomID   = flag.String("room", "", "room id to join (required)")
		create   = flag.String("create", "", "create a room with this name instead of joining")
		password = flag.String("password", "", "room password")
	)
	flag.Parse()

	observability.InitLogger(envOr("LOG_LEVEL", "warn"), "text")

	if *roomID == "" && *create == "" {
		fmt.Fprintln(os.Stderr, "either -room or -create is required")
		os.Exit(2)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	token := os.Getenv("ROOMSYNC_TOKEN")
	var self domain.Principal
	if token == "" {
		if *name == "" {
			fmt.Fprintln(os.Stderr, "-name is required when ROOMSYNC_TOKEN is not set")
			os.Exit(2)
		}
		info, err := apiclient.CreateSession(ctx, *server, *name)
		if err != nil {
			fatal("create session", err)
		}
		token = info.Token
		self = info.Principal
		fmt.Printf("session token (export ROOMSYNC_TOKEN to reuse): %s\n", token)
	}

	client := apiclient.New(*server, token)

	// A reused token carries no identity; resolve it so the dispatcher
	// and tracker can filter this principal's own messages and typing.
	if self.ID == "" {
		resolved, err := client.Whoami(ctx)
		if err != nil {
			fatal("resolve session", err)
		}
		self = resolved
	}

	if *create != "" {
		room, err := client.CreateRoom(ctx, *create, *password)
		if err != nil {
			fatal("create room", err)
		}
		fmt.Printf("created room %q (%s)\n", room.Name, room.ID)
		*roomID = room.ID
	} else if err := client.JoinRoom(ctx, *roomID, *password); err != nil {
		fatal("join room", err)
	}

	broker := apiclient.NewWSBroker(*wsServer, token, *roomID)
	if err := broker.Connect(ctx); err != nil {
		fatal("connect websocket", err)
	}
	defer broker.Close()

	term := newTerminal(self.DisplayName)
	dispatcher := notify.NewDispatcher(self.ID, term)
	dispatcher.SetPermission(true)

	tracker := typing.NewTracker(self.ID)
	broadcaster := typing.NewBroadcaster(broker, *roomID, self)
	heartbeat := presence.NewHeartbeat(*roomID, client, term, presence.Config{})

	session := engine.NewSession(*roomID, self, engine.SessionDeps{
		API:        client,
		Broker:     broker,
		Heartbeat:  heartbeat,
		Tracker:    tracker,
		Dispatcher: dispatcher,
		OnNew:      term.printMessages,
	})
	if err := session.Start(ctx); err != nil {
		fatal("start session", err)
	}
	defer session.Stop()

	go term.watchTyping(ctx, tracker)

	lines := make(chan string)
	go readLines(lines)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	for {
		select {
		case <-sigCh:
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			if quit := handleLine(ctx, line, client, *roomID, session, broadcaster, dispatcher, term); quit {
				return
			}
		}
	}
}

func handleLine(ctx context.Context, line string, client *apiclient.Client, roomID string,
	session *engine.Session, broadcaster *typing.Broadcaster, dispatcher *notify.Dispatcher, term *terminal) bool {

	line = strings.TrimSpace(line)
	switch {
	case line == "":
		return false
	case line == "/quit":
		return true
	case line == "/older":
		older, err := session.LoadOlder(ctx)
		if err != nil {
			fmt.Printf("! load older: %v\n", err)
			return false
		}
		if len(older) == 0 {
			fmt.Println("(no older messages)")
			return false
		}
		term.printMessages(older)
	case line == "/who":
		online, err := client.Online(ctx, roomID)
		if err != nil {
			fmt.Printf("! who: %v\n", err)
			return false
		}
		names := make([]string, len(online))
		for i, m := range online {
			names[i] = m.DisplayName
		}
		fmt.Printf("online: %s\n", strings.Join(names, ", "))
	case line == "/away":
		dispatcher.SetFocused(false)
		fmt.Println("(away; unread and alerts accumulate)")
	case line == "/back":
		dispatcher.SetFocused(true)
		fmt.Println("(back)")
	case strings.HasPrefix(line, "/"):
		fmt.Println("commands: /older /who /away /back /quit")
	default:
		term.touch()
		broadcaster.Signal(ctx)
		if _, err := client.SendMessage(ctx, roomID, line); err != nil {
			// Sends are never retried silently; the user decides.
			fmt.Printf("! send failed: %v\n", err)
		}
	}
	return false
}

func readLines(out chan<- string) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		out <- scanner.Text()
	}
	close(out)
}

// terminal is the client's output surface. It implements notify.Sink
// with the bell character standing in for the notification sound, and
// presence.ActivityMonitor from send timestamps.
type terminal struct {
	selfName string

	mu           sync.Mutex
	lastInput    time.Time
	lastTypeLine string
}

func newTerminal(selfName string) *terminal {
	return &terminal{selfName: selfName, lastInput: time.Now()}
}

func (t *terminal) touch() {
	t.mu.Lock()
	t.lastInput = time.Now()
	t.mu.Unlock()
}

// LastActivity implements presence.ActivityMonitor.
func (t *terminal) LastActivity() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastInput
}

// PlaySound implements notify.Sink.
func (t *terminal) PlaySound() {
	fmt.Print("\a")
}

// ShowNotification implements notify.Sink.
func (t *terminal) ShowNotification(n notify.Notification) {
	fmt.Printf("*** %s: %s\n", n.Title, n.Body)
}

// SetUnreadBadge implements notify.Sink.
func (t *terminal) SetUnreadBadge(count int) {
	if count > 0 {
		fmt.Printf("(%d unread)\n", count)
	}
}

func (t *terminal) printMessages(msgs []domain.Message) {
	for _, m := range msgs {
		fmt.Printf("[%s] %s: %s\n",
			m.CreatedAt.Local().Format("15:04:05"), m.AuthorName, m.Content)
	}
}

// watchTyping reprints the typing line whenever it changes.
func (t *terminal) watchTyping(ctx context.Context, tracker *typing.Tracker) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			line := typing.Render(tracker.Active())
			t.mu.Lock()
			changed := line != t.lastTypeLine
			t.lastTypeLine = line
			t.mu.Unlock()
			if changed && line != "" {
				fmt.Printf("~ %s\n", line)
			}
		}
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func fatal(what string, err error) {
	slog.Error(what, slog.String("error", err.Error()))
	fmt.Fprintf(os.Stderr, "%s: %v\n", what, err)
	os.Exit(1)
}
