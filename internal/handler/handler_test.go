package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roomsync/internal/domain"
	"roomsync/internal/middleware"
	"roomsync/internal/pubsub"
	"roomsync/internal/service"
	"roomsync/internal/testutil"
)

var (
	alice = domain.Principal{ID: "principal-alice", DisplayName: "Alice"}
	bob   = domain.Principal{ID: "principal-bob", DisplayName: "Bob"}
)

type testEnv struct {
	router   *chi.Mux
	messages *testutil.MockMessageRepository
	rooms    *testutil.MockRoomDirectory
	store    *testutil.MockPresenceStore
}

// newTestEnv wires handlers onto a router the way main does, minus the
// auth middleware; tests inject the principal directly.
func newTestEnv() *testEnv {
	messages := testutil.NewMockMessageRepository()
	rooms := testutil.NewMockRoomDirectory()
	store := testutil.NewMockPresenceStore()

	roomService := service.NewRoomService(messages, rooms, pubsub.NewMemoryBroker(), nil)
	presenceService := service.NewPresenceService(rooms, store)

	messageHandler := NewMessageHandler(roomService)
	roomHandler := NewRoomHandler(roomService)
	presenceHandler := NewPresenceHandler(presenceService)

	r := chi.NewRouter()
	r.Route("/api/v1/rooms", func(r chi.Router) {
		r.Get("/", roomHandler.List)
		r.Post("/", roomHandler.Create)
		r.Route("/{id}", func(r chi.Router) {
			r.Post("/join", roomHandler.Join)
			r.Get("/messages", messageHandler.List)
			r.Post("/messages", messageHandler.Send)
			r.Post("/presence", presenceHandler.Heartbeat)
			r.Delete("/presence", presenceHandler.Withdraw)
			r.Get("/presence", presenceHandler.Online)
		})
	})

	return &testEnv{router: r, messages: messages, rooms: rooms, store: store}
}

func (e *testEnv) serve(t *testing.T, principal *domain.Principal, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	if principal != nil {
		req = req.WithContext(middleware.WithPrincipal(req.Context(), principal))
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func TestListMessages_SinceModeAscending(t *testing.T) {
	env := newTestEnv()
	env.rooms.AddRoom(testutil.NewTestRoom(testutil.WithRoomID("room-1")), alice.ID)
	env.messages.Messages = testutil.NewTestMessages("room-1", 1, 5)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/rooms/room-1/messages?since=3", nil)
	w := env.serve(t, &alice, req)

	require.Equal(t, http.StatusOK, w.Code)
	resp := testutil.DecodeJSON[struct {
		Messages []domain.Message `json:"messages"`
	}](t, w)
	require.Len(t, resp.Messages, 2)
	assert.Equal(t, int64(4), resp.Messages[0].ID)
	assert.Equal(t, int64(5), resp.Messages[1].ID)
}

func TestListMessages_PageModeNewestFirst(t *testing.T) {
	env := newTestEnv()
	env.rooms.AddRoom(testutil.NewTestRoom(testutil.WithRoomID("room-1")), alice.ID)
	env.messages.Messages = testutil.NewTestMessages("room-1", 1, 5)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/rooms/room-1/messages?before=4&limit=2", nil)
	w := env.serve(t, &alice, req)

	require.Equal(t, http.StatusOK, w.Code)
	resp := testutil.DecodeJSON[struct {
		Messages []domain.Message `json:"messages"`
	}](t, w)
	require.Len(t, resp.Messages, 2)
	assert.Equal(t, int64(3), resp.Messages[0].ID)
	assert.Equal(t, int64(2), resp.Messages[1].ID)
}

func TestListMessages_NonMemberForbidden(t *testing.T) {
	env := newTestEnv()
	env.rooms.AddRoom(testutil.NewTestRoom(testutil.WithRoomID("room-1")), alice.ID)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/rooms/room-1/messages?since=0", nil)
	w := env.serve(t, &bob, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestListMessages_InvalidCursor(t *testing.T) {
	env := newTestEnv()
	env.rooms.AddRoom(testutil.NewTestRoom(testutil.WithRoomID("room-1")), alice.ID)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/rooms/room-1/messages?since=banana", nil)
	w := env.serve(t, &alice, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListMessages_Unauthenticated(t *testing.T) {
	env := newTestEnv()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/rooms/room-1/messages", nil)
	w := env.serve(t, nil, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestSendMessage_Created(t *testing.T) {
	env := newTestEnv()
	env.rooms.AddRoom(testutil.NewTestRoom(testutil.WithRoomID("room-1")), alice.ID)

	req := testutil.NewJSONRequest(t, http.MethodPost, "/api/v1/rooms/room-1/messages",
		SendMessageRequest{Content: "hello"})
	w := env.serve(t, &alice, req)

	require.Equal(t, http.StatusCreated, w.Code)
	msg := testutil.DecodeJSON[domain.Message](t, w)
	assert.Equal(t, int64(1), msg.ID)
	assert.Equal(t, "hello", msg.Content)
	assert.Equal(t, "Alice", msg.AuthorName)
}

func TestSendMessage_EmptyContentBadRequest(t *testing.T) {
	env := newTestEnv()
	env.rooms.AddRoom(testutil.NewTestRoom(testutil.WithRoomID("room-1")), alice.ID)

	req := testutil.NewJSONRequest(t, http.MethodPost, "/api/v1/rooms/room-1/messages",
		SendMessageRequest{Content: "   "})
	w := env.serve(t, &alice, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreateAndJoinRoom(t *testing.T) {
	env := newTestEnv()

	req := testutil.NewJSONRequest(t, http.MethodPost, "/api/v1/rooms",
		CreateRoomRequest{Name: "ops", Password: "hunter2"})
	w := env.serve(t, &alice, req)
	require.Equal(t, http.StatusCreated, w.Code)
	room := testutil.DecodeJSON[domain.Room](t, w)
	assert.True(t, room.HasPassword)

	// Wrong password is rejected.
	req = testutil.NewJSONRequest(t, http.MethodPost, "/api/v1/rooms/"+room.ID+"/join",
		JoinRoomRequest{Password: "nope"})
	w = env.serve(t, &bob, req)
	assert.Equal(t, http.StatusForbidden, w.Code)

	req = testutil.NewJSONRequest(t, http.MethodPost, "/api/v1/rooms/"+room.ID+"/join",
		JoinRoomRequest{Password: "hunter2"})
	w = env.serve(t, &bob, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestJoinRoom_NotFound(t *testing.T) {
	env := newTestEnv()

	req := testutil.NewJSONRequest(t, http.MethodPost, "/api/v1/rooms/missing/join", JoinRoomRequest{})
	w := env.serve(t, &bob, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestListRooms(t *testing.T) {
	env := newTestEnv()
	env.rooms.AddRoom(testutil.NewTestRoom(testutil.WithRoomID("room-1"), testutil.WithRoomName("general")))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/rooms", nil)
	w := env.serve(t, &alice, req)

	require.Equal(t, http.StatusOK, w.Code)
	resp := testutil.DecodeJSON[struct {
		Rooms []domain.Room `json:"rooms"`
	}](t, w)
	require.Len(t, resp.Rooms, 1)
	assert.Equal(t, "general", resp.Rooms[0].Name)
}

func TestPresenceLifecycle(t *testing.T) {
	env := newTestEnv()
	env.rooms.AddRoom(testutil.NewTestRoom(testutil.WithRoomID("room-1")), alice.ID)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/rooms/room-1/presence", nil)
	w := env.serve(t, &alice, req)
	require.Equal(t, http.StatusNoContent, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/rooms/room-1/presence", nil)
	w = env.serve(t, &alice, req)
	require.Equal(t, http.StatusOK, w.Code)
	resp := testutil.DecodeJSON[struct {
		Online []domain.PresenceRecord `json:"online"`
	}](t, w)
	require.Len(t, resp.Online, 1)
	assert.Equal(t, alice.ID, resp.Online[0].PrincipalID)

	req = httptest.NewRequest(http.MethodDelete, "/api/v1/rooms/room-1/presence", nil)
	w = env.serve(t, &alice, req)
	require.Equal(t, http.StatusNoContent, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/rooms/room-1/presence", nil)
	w = env.serve(t, &alice, req)
	resp = testutil.DecodeJSON[struct {
		Online []domain.PresenceRecord `json:"online"`
	}](t, w)
	assert.Empty(t, resp.Online)
}

func TestPresence_NonMemberForbidden(t *testing.T) {
	env := newTestEnv()
	env.rooms.AddRoom(testutil.NewTestRoom(testutil.WithRoomID("room-1")), alice.ID)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/rooms/room-1/presence", nil)
	w := env.serve(t, &bob, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestSessionMe_ResolvesCallerIdentity(t *testing.T) {
	h := NewSessionHandler(nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/session", nil)
	req = req.WithContext(middleware.WithPrincipal(req.Context(), &alice))
	w := httptest.NewRecorder()
	h.Me(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	got := testutil.DecodeJSON[domain.Principal](t, w)
	assert.Equal(t, alice.ID, got.ID)
	assert.Equal(t, "Alice", got.DisplayName)
}

func TestSessionMe_Unauthenticated(t *testing.T) {
	h := NewSessionHandler(nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/session", nil)
	w := httptest.NewRecorder()
	h.Me(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestHealth(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	Health(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "ok")
}

type fakeBrokerConn struct {
	closed bool
}

func (f *fakeBrokerConn) IsClosed() bool { return f.closed }

func TestReady_BrokerDown(t *testing.T) {
	handler := Ready(nil, nil, &fakeBrokerConn{closed: true})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/health/ready", nil).WithContext(ctx)
	w := httptest.NewRecorder()
	handler(w, req)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "not_ready")
}

func TestReady_AllSkippedIsReady(t *testing.T) {
	handler := Ready(nil, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/health/ready", nil)
	w := httptest.NewRecorder()
	handler(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}
