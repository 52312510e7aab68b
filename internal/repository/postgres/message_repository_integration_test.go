//go:build integration
// +build integration

package postgres_test

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"roomsync/internal/domain"
	"roomsync/internal/repository/postgres"

	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupPostgres starts a PostgreSQL container and returns a database connection
func setupPostgres(t *testing.T) (*sql.DB, func()) {
	t.Helper()

	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:15-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "testdb",
		},
		WaitingFor: wait.ForAll(
			wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
			wait.ForListeningPort("5432/tcp"),
		).WithDeadline(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err, "failed to start PostgreSQL container")

	host, err := container.Host(ctx)
	require.NoError(t, err)

	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	connStr := fmt.Sprintf("postgres://test:test@%s:%s/testdb?sslmode=disable", host, port.Port())

	// Wait for PostgreSQL to be fully ready
	time.Sleep(2 * time.Second)

	db, err := sql.Open("postgres", connStr)
	require.NoError(t, err, "failed to connect to PostgreSQL")

	err = runMigrations(db)
	require.NoError(t, err, "failed to run migrations")

	cleanup := func() {
		db.Close()
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	}

	return db, cleanup
}

// runMigrations creates the database schema for testing
func runMigrations(db *sql.DB) error {
	schema := `
		CREATE TABLE IF NOT EXISTS rooms (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			name VARCHAR(100) NOT NULL,
			password_hash TEXT,
			created_by TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);

		CREATE TABLE IF NOT EXISTS room_members (
			room_id UUID NOT NULL REFERENCES rooms(id) ON DELETE CASCADE,
			principal_id TEXT NOT NULL,
			role TEXT NOT NULL DEFAULT 'member',
			joined_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			PRIMARY KEY (room_id, principal_id)
		);

		CREATE TABLE IF NOT EXISTS messages (
			id BIGSERIAL PRIMARY KEY,
			room_id UUID NOT NULL REFERENCES rooms(id) ON DELETE CASCADE,
			author_id TEXT,
			session_id TEXT,
			author_name TEXT NOT NULL,
			content VARCHAR(2000) NOT NULL,
			metadata JSONB,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);

		CREATE INDEX IF NOT EXISTS idx_messages_room_id_id ON messages (room_id, id);
	`
	_, err := db.Exec(schema)
	return err
}

func TestMessageRepository_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	db, cleanup := setupPostgres(t)
	defer cleanup()

	ctx := context.Background()
	roomRepo := postgres.NewRoomRepository(db)
	messageRepo := postgres.NewMessageRepository(db)

	room := &domain.Room{Name: "general"}
	require.NoError(t, roomRepo.CreateWithOwner(ctx, room, "", "principal-1"))

	author := "principal-1"
	var ids []int64
	for i := 0; i < 5; i++ {
		msg := &domain.Message{
			RoomID:     room.ID,
			AuthorID:   &author,
			AuthorName: "alice",
			Content:    fmt.Sprintf("message %d", i),
		}
		require.NoError(t, messageRepo.Create(ctx, msg))
		ids = append(ids, msg.ID)
	}

	t.Run("ids_strictly_increase", func(t *testing.T) {
		for i := 1; i < len(ids); i++ {
			assert.Greater(t, ids[i], ids[i-1])
		}
	})

	t.Run("list_since_returns_only_newer_ascending", func(t *testing.T) {
		messages, err := messageRepo.ListSince(ctx, room.ID, ids[2], 500)
		require.NoError(t, err)
		require.Len(t, messages, 2)
		assert.Equal(t, ids[3], messages[0].ID)
		assert.Equal(t, ids[4], messages[1].ID)
	})

	t.Run("list_page_returns_newest_first", func(t *testing.T) {
		messages, err := messageRepo.ListPage(ctx, room.ID, 0, 3)
		require.NoError(t, err)
		require.Len(t, messages, 3)
		assert.Equal(t, ids[4], messages[0].ID)
		assert.Equal(t, ids[3], messages[1].ID)
		assert.Equal(t, ids[2], messages[2].ID)

		older, err := messageRepo.ListPage(ctx, room.ID, messages[2].ID, 3)
		require.NoError(t, err)
		require.Len(t, older, 2)
		assert.Equal(t, ids[1], older[0].ID)
	})

	t.Run("membership_reads", func(t *testing.T) {
		isMember, err := roomRepo.IsMember(ctx, room.ID, "principal-1")
		require.NoError(t, err)
		assert.True(t, isMember)

		isMember, err = roomRepo.IsMember(ctx, room.ID, "stranger")
		require.NoError(t, err)
		assert.False(t, isMember)

		role, err := roomRepo.Role(ctx, room.ID, "principal-1")
		require.NoError(t, err)
		assert.Equal(t, domain.RoleOwner, role)
	})
}
