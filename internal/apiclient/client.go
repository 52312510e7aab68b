// Package apiclient is the HTTP client for the room sync API. It backs
// the sync engine's fetches and the presence heartbeat.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"roomsync/internal/domain"
)

// APIError is a non-2xx response. It carries the status so callers can
// separate transient failures from permanent ones.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("api error %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("api error %d", e.Status)
}

// StatusCode returns the HTTP status of the failed request.
func (e *APIError) StatusCode() int {
	return e.Status
}

// Client talks to one room sync server on behalf of one principal.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// New creates a client. The token authenticates every request as the
// principal it resolves to.
func New(baseURL, token string) *Client {
	return &Client{
		baseURL:    baseURL,
		token:      token,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	var reqBody io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("apiclient: encode request: %w", err)
		}
		reqBody = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("apiclient: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("apiclient: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("apiclient: read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var errResp struct {
			Error string `json:"error"`
		}
		json.Unmarshal(respBody, &errResp)
		return &APIError{Status: resp.StatusCode, Message: errResp.Error}
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("apiclient: decode response: %w", err)
		}
	}
	return nil
}

// wireMessage is the server's message representation.
type wireMessage struct {
	ID         int64             `json:"id"`
	RoomID     string            `json:"room_id"`
	AuthorID   *string           `json:"author_id,omitempty"`
	SessionID  *string           `json:"session_id,omitempty"`
	AuthorName string            `json:"author_name"`
	Content    string            `json:"content"`
	CreatedAt  time.Time         `json:"created_at"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

func (m wireMessage) toDomain() domain.Message {
	return domain.Message{
		ID:         m.ID,
		RoomID:     m.RoomID,
		AuthorID:   m.AuthorID,
		SessionID:  m.SessionID,
		AuthorName: m.AuthorName,
		Content:    m.Content,
		CreatedAt:  m.CreatedAt,
		Metadata:   m.Metadata,
	}
}

type messagesResponse struct {
	Messages []wireMessage `json:"messages"`
}

func toDomainMessages(wire []wireMessage) []domain.Message {
	msgs := make([]domain.Message, len(wire))
	for i, m := range wire {
		msgs[i] = m.toDomain()
	}
	return msgs
}

// FetchSince returns messages with id greater than sinceID, ascending.
func (c *Client) FetchSince(ctx context.Context, roomID string, sinceID int64, limit int) ([]domain.Message, error) {
	path := fmt.Sprintf("/api/v1/rooms/%s/messages?since=%d&limit=%d", url.PathEscape(roomID), sinceID, limit)
	var resp messagesResponse
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return toDomainMessages(resp.Messages), nil
}

// FetchPage returns up to limit messages with id below before, newest
// first. A zero cursor means the newest page.
func (c *Client) FetchPage(ctx context.Context, roomID string, before int64, limit int) ([]domain.Message, error) {
	path := fmt.Sprintf("/api/v1/rooms/%s/messages?limit=%d", url.PathEscape(roomID), limit)
	if before > 0 {
		path += fmt.Sprintf("&before=%d", before)
	}
	var resp messagesResponse
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return toDomainMessages(resp.Messages), nil
}

// SendMessage posts a message to the room and returns the stored form.
func (c *Client) SendMessage(ctx context.Context, roomID, content string) (domain.Message, error) {
	body := struct {
		Content string `json:"content"`
	}{Content: content}

	var resp wireMessage
	path := fmt.Sprintf("/api/v1/rooms/%s/messages", url.PathEscape(roomID))
	if err := c.do(ctx, http.MethodPost, path, body, &resp); err != nil {
		return domain.Message{}, err
	}
	return resp.toDomain(), nil
}

// Announce registers a presence heartbeat for the room.
func (c *Client) Announce(ctx context.Context, roomID string) error {
	path := fmt.Sprintf("/api/v1/rooms/%s/presence", url.PathEscape(roomID))
	return c.do(ctx, http.MethodPost, path, nil, nil)
}

// Withdraw removes this principal's presence record from the room.
func (c *Client) Withdraw(ctx context.Context, roomID string) error {
	path := fmt.Sprintf("/api/v1/rooms/%s/presence", url.PathEscape(roomID))
	return c.do(ctx, http.MethodDelete, path, nil, nil)
}

// OnlineMember is one currently online principal.
type OnlineMember struct {
	PrincipalID string    `json:"principal_id"`
	DisplayName string    `json:"display_name"`
	LastSeenAt  time.Time `json:"last_seen_at"`
}

// Online lists the room's currently online principals.
func (c *Client) Online(ctx context.Context, roomID string) ([]OnlineMember, error) {
	var resp struct {
		Online []OnlineMember `json:"online"`
	}
	path := fmt.Sprintf("/api/v1/rooms/%s/presence", url.PathEscape(roomID))
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Online, nil
}

// RoomInfo is the client-side view of a room.
type RoomInfo struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	HasPassword bool      `json:"has_password"`
	CreatedAt   time.Time `json:"created_at"`
}

// CreateRoom creates a room; an empty password leaves it open.
func (c *Client) CreateRoom(ctx context.Context, name, password string) (RoomInfo, error) {
	body := struct {
		Name     string `json:"name"`
		Password string `json:"password,omitempty"`
	}{Name: name, Password: password}

	var resp RoomInfo
	if err := c.do(ctx, http.MethodPost, "/api/v1/rooms", body, &resp); err != nil {
		return RoomInfo{}, err
	}
	return resp, nil
}

// JoinRoom joins the room, supplying the password when it has one.
func (c *Client) JoinRoom(ctx context.Context, roomID, password string) error {
	body := struct {
		Password string `json:"password,omitempty"`
	}{Password: password}
	path := fmt.Sprintf("/api/v1/rooms/%s/join", url.PathEscape(roomID))
	return c.do(ctx, http.MethodPost, path, body, nil)
}

// SessionInfo is an issued token and the principal it resolves to.
type SessionInfo struct {
	Token     string           `json:"token"`
	Principal domain.Principal `json:"principal"`
}

// CreateSession requests a fresh token for the display name. The only
// unauthenticated call; clients bootstrap their identity through it.
func CreateSession(ctx context.Context, baseURL, displayName string) (SessionInfo, error) {
	body := struct {
		DisplayName string `json:"display_name"`
	}{DisplayName: displayName}

	var resp SessionInfo
	c := New(baseURL, "")
	if err := c.do(ctx, http.MethodPost, "/api/v1/session", body, &resp); err != nil {
		return SessionInfo{}, err
	}
	return resp, nil
}

// Whoami resolves this client's token back to its principal. Clients
// reusing a stored token must call it before acting on identity.
func (c *Client) Whoami(ctx context.Context) (domain.Principal, error) {
	var principal domain.Principal
	if err := c.do(ctx, http.MethodGet, "/api/v1/session", nil, &principal); err != nil {
		return domain.Principal{}, err
	}
	return principal, nil
}

// ListRooms lists the rooms visible to this principal.
func (c *Client) ListRooms(ctx context.Context) ([]RoomInfo, error) {
	var resp struct {
		Rooms []RoomInfo `json:"rooms"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/v1/rooms", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Rooms, nil
}
