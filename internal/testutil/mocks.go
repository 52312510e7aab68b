// Package testutil provides shared test mocks and fixtures for the
// roomsync packages.
package testutil

import (
	"context"
	"sync"
	"time"

	"roomsync/internal/domain"
)

// MockMessageRepository implements domain.MessageRepository for testing
type MockMessageRepository struct {
	mu sync.RWMutex

	// Function overrides - set these to customize behavior
	CreateFunc    func(ctx context.Context, message *domain.Message) error
	ListSinceFunc func(ctx context.Context, roomID string, sinceID int64, limit int) ([]*domain.Message, error)
	ListPageFunc  func(ctx context.Context, roomID string, before int64, limit int) ([]*domain.Message, error)

	// In-memory storage for simple tests
	Messages []*domain.Message
	nextID   int64
}

// NewMockMessageRepository creates a new MockMessageRepository
func NewMockMessageRepository() *MockMessageRepository {
	return &MockMessageRepository{
		Messages: make([]*domain.Message, 0),
	}
}

func (m *MockMessageRepository) Create(ctx context.Context, message *domain.Message) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, message)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	message.ID = m.nextID
	if message.CreatedAt.IsZero() {
		message.CreatedAt = time.Now()
	}
	m.Messages = append(m.Messages, message)
	return nil
}

func (m *MockMessageRepository) ListSince(ctx context.Context, roomID string, sinceID int64, limit int) ([]*domain.Message, error) {
	if m.ListSinceFunc != nil {
		return m.ListSinceFunc(ctx, roomID, sinceID, limit)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*domain.Message, 0)
	for _, msg := range m.Messages {
		if msg.RoomID == roomID && msg.ID > sinceID {
			result = append(result, msg)
			if len(result) >= limit {
				break
			}
		}
	}
	return result, nil
}

func (m *MockMessageRepository) ListPage(ctx context.Context, roomID string, before int64, limit int) ([]*domain.Message, error) {
	if m.ListPageFunc != nil {
		return m.ListPageFunc(ctx, roomID, before, limit)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*domain.Message, 0)
	for i := len(m.Messages) - 1; i >= 0; i-- {
		msg := m.Messages[i]
		if msg.RoomID != roomID {
			continue
		}
		if before != 0 && msg.ID >= before {
			continue
		}
		result = append(result, msg)
		if len(result) >= limit {
			break
		}
	}
	return result, nil
}

// MockRoomDirectory implements domain.RoomDirectory for testing
type MockRoomDirectory struct {
	mu sync.RWMutex

	// Function overrides
	CreateWithOwnerFunc func(ctx context.Context, room *domain.Room, passwordHash, ownerID string) error
	GetByIDFunc         func(ctx context.Context, id string) (*domain.Room, error)
	ListFunc            func(ctx context.Context) ([]*domain.Room, error)
	AddMemberFunc       func(ctx context.Context, roomID, principalID, role string) error
	IsMemberFunc        func(ctx context.Context, roomID, principalID string) (bool, error)
	RoleFunc            func(ctx context.Context, roomID, principalID string) (string, error)
	PasswordHashFunc    func(ctx context.Context, roomID string) (string, error)

	// In-memory storage
	Rooms   map[string]*domain.Room
	Members map[string]map[string]string // roomID -> principalID -> role
	Hashes  map[string]string            // roomID -> password hash
}

// NewMockRoomDirectory creates a new MockRoomDirectory with initialized maps
func NewMockRoomDirectory() *MockRoomDirectory {
	return &MockRoomDirectory{
		Rooms:   make(map[string]*domain.Room),
		Members: make(map[string]map[string]string),
		Hashes:  make(map[string]string),
	}
}

// AddRoom seeds a room with members; the first member becomes the owner.
func (m *MockRoomDirectory) AddRoom(room *domain.Room, memberIDs ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Rooms[room.ID] = room
	for i, id := range memberIDs {
		if m.Members[room.ID] == nil {
			m.Members[room.ID] = make(map[string]string)
		}
		role := domain.RoleMember
		if i == 0 {
			role = domain.RoleOwner
		}
		m.Members[room.ID][id] = role
	}
}

func (m *MockRoomDirectory) CreateWithOwner(ctx context.Context, room *domain.Room, passwordHash, ownerID string) error {
	if m.CreateWithOwnerFunc != nil {
		return m.CreateWithOwnerFunc(ctx, room, passwordHash, ownerID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if room.ID == "" {
		room.ID = "room-" + room.Name
	}
	if room.CreatedAt.IsZero() {
		room.CreatedAt = time.Now()
	}
	room.CreatedBy = ownerID
	room.HasPassword = passwordHash != ""

	m.Rooms[room.ID] = room
	m.Hashes[room.ID] = passwordHash
	m.Members[room.ID] = map[string]string{ownerID: domain.RoleOwner}
	return nil
}

func (m *MockRoomDirectory) GetByID(ctx context.Context, id string) (*domain.Room, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	if room, ok := m.Rooms[id]; ok {
		return room, nil
	}
	return nil, domain.ErrRoomNotFound
}

func (m *MockRoomDirectory) List(ctx context.Context) ([]*domain.Room, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*domain.Room, 0, len(m.Rooms))
	for _, room := range m.Rooms {
		result = append(result, room)
	}
	return result, nil
}

func (m *MockRoomDirectory) AddMember(ctx context.Context, roomID, principalID, role string) error {
	if m.AddMemberFunc != nil {
		return m.AddMemberFunc(ctx, roomID, principalID, role)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.Rooms[roomID]; !ok {
		return domain.ErrRoomNotFound
	}
	if m.Members[roomID] == nil {
		m.Members[roomID] = make(map[string]string)
	}
	if _, ok := m.Members[roomID][principalID]; !ok {
		m.Members[roomID][principalID] = role
	}
	return nil
}

func (m *MockRoomDirectory) IsMember(ctx context.Context, roomID, principalID string) (bool, error) {
	if m.IsMemberFunc != nil {
		return m.IsMemberFunc(ctx, roomID, principalID)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	if members, ok := m.Members[roomID]; ok {
		_, isMember := members[principalID]
		return isMember, nil
	}
	return false, nil
}

func (m *MockRoomDirectory) Role(ctx context.Context, roomID, principalID string) (string, error) {
	if m.RoleFunc != nil {
		return m.RoleFunc(ctx, roomID, principalID)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	if role, ok := m.Members[roomID][principalID]; ok {
		return role, nil
	}
	return "", domain.ErrNotMember
}

func (m *MockRoomDirectory) PasswordHash(ctx context.Context, roomID string) (string, error) {
	if m.PasswordHashFunc != nil {
		return m.PasswordHashFunc(ctx, roomID)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	if _, ok := m.Rooms[roomID]; !ok {
		return "", domain.ErrRoomNotFound
	}
	return m.Hashes[roomID], nil
}

// MockPresenceStore implements domain.PresenceStore for testing
type MockPresenceStore struct {
	mu sync.RWMutex

	// Function overrides
	UpsertFunc func(ctx context.Context, rec domain.PresenceRecord) error
	RemoveFunc func(ctx context.Context, roomID, principalID string) error
	OnlineFunc func(ctx context.Context, roomID string, now time.Time) ([]domain.PresenceRecord, error)

	// In-memory storage
	Records map[string]map[string]domain.PresenceRecord // roomID -> principalID -> record
}

// NewMockPresenceStore creates a new MockPresenceStore
func NewMockPresenceStore() *MockPresenceStore {
	return &MockPresenceStore{
		Records: make(map[string]map[string]domain.PresenceRecord),
	}
}

func (m *MockPresenceStore) Upsert(ctx context.Context, rec domain.PresenceRecord) error {
	if m.UpsertFunc != nil {
		return m.UpsertFunc(ctx, rec)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Records[rec.RoomID] == nil {
		m.Records[rec.RoomID] = make(map[string]domain.PresenceRecord)
	}
	m.Records[rec.RoomID][rec.PrincipalID] = rec
	return nil
}

func (m *MockPresenceStore) Remove(ctx context.Context, roomID, principalID string) error {
	if m.RemoveFunc != nil {
		return m.RemoveFunc(ctx, roomID, principalID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.Records[roomID], principalID)
	return nil
}

func (m *MockPresenceStore) Online(ctx context.Context, roomID string, now time.Time) ([]domain.PresenceRecord, error) {
	if m.OnlineFunc != nil {
		return m.OnlineFunc(ctx, roomID, now)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]domain.PresenceRecord, 0)
	for _, rec := range m.Records[roomID] {
		if rec.OnlineAt(now, domain.OnlineWindow) {
			result = append(result, rec)
		}
	}
	return result, nil
}

// MockPrincipalResolver implements domain.PrincipalResolver for testing
type MockPrincipalResolver struct {
	mu sync.RWMutex

	// Function overrides
	ResolveFunc func(ctx context.Context, token string) (*domain.Principal, error)

	// In-memory storage: token -> principal
	Principals map[string]*domain.Principal
}

// NewMockPrincipalResolver creates a new MockPrincipalResolver
func NewMockPrincipalResolver() *MockPrincipalResolver {
	return &MockPrincipalResolver{
		Principals: make(map[string]*domain.Principal),
	}
}

// AddToken registers a token for a principal.
func (m *MockPrincipalResolver) AddToken(token string, principal *domain.Principal) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Principals[token] = principal
}

func (m *MockPrincipalResolver) Resolve(ctx context.Context, token string) (*domain.Principal, error) {
	if m.ResolveFunc != nil {
		return m.ResolveFunc(ctx, token)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	if principal, ok := m.Principals[token]; ok {
		return principal, nil
	}
	return nil, domain.ErrUnauthorized
}
