package postgres

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"roomsync/internal/domain"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var messageColumns = []string{"id", "room_id", "author_id", "session_id", "author_name", "content", "metadata", "created_at"}

func TestMessageRepository_Create(t *testing.T) {
	t.Run("successful_creation", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		repo := NewMessageRepository(db)

		createdAt := time.Now()
		authorID := "principal-1"

		mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO messages")).
			WithArgs("room-1", authorID, nil, "alice", "Hello World", []byte("null")).
			WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).
				AddRow(int64(42), createdAt))

		message := &domain.Message{
			RoomID:     "room-1",
			AuthorID:   &authorID,
			AuthorName: "alice",
			Content:    "Hello World",
		}

		err = repo.Create(context.Background(), message)
		require.NoError(t, err)
		assert.Equal(t, int64(42), message.ID)
		assert.Equal(t, createdAt, message.CreatedAt)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("guest_message_with_metadata", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		repo := NewMessageRepository(db)

		sessionID := "guest-session-7"
		mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO messages")).
			WithArgs("room-1", nil, sessionID, "guest", "hi", []byte(`{"client":"web"}`)).
			WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).
				AddRow(int64(43), time.Now()))

		message := &domain.Message{
			RoomID:     "room-1",
			SessionID:  &sessionID,
			AuthorName: "guest",
			Content:    "hi",
			Metadata:   map[string]string{"client": "web"},
		}

		err = repo.Create(context.Background(), message)
		require.NoError(t, err)
		assert.Equal(t, int64(43), message.ID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("database_error", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		repo := NewMessageRepository(db)

		mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO messages")).
			WillReturnError(errors.New("connection reset"))

		err = repo.Create(context.Background(), &domain.Message{
			RoomID:     "room-1",
			AuthorName: "alice",
			Content:    "Hello",
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to create message")
	})
}

func TestMessageRepository_ListSince(t *testing.T) {
	t.Run("returns_ascending_ids", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		repo := NewMessageRepository(db)

		author := "principal-1"
		rows := sqlmock.NewRows(messageColumns).
			AddRow(int64(101), "room-1", author, nil, "alice", "first", []byte("{}"), time.Now()).
			AddRow(int64(102), "room-1", author, nil, "alice", "second", []byte("{}"), time.Now())

		mock.ExpectQuery(regexp.QuoteMeta("WHERE room_id = $1 AND id > $2")).
			WithArgs("room-1", int64(100), 500).
			WillReturnRows(rows)

		messages, err := repo.ListSince(context.Background(), "room-1", 100, 500)
		require.NoError(t, err)
		require.Len(t, messages, 2)
		assert.Equal(t, int64(101), messages[0].ID)
		assert.Equal(t, int64(102), messages[1].ID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("empty_result", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		repo := NewMessageRepository(db)

		mock.ExpectQuery(regexp.QuoteMeta("WHERE room_id = $1 AND id > $2")).
			WithArgs("room-1", int64(9000), 500).
			WillReturnRows(sqlmock.NewRows(messageColumns))

		messages, err := repo.ListSince(context.Background(), "room-1", 9000, 500)
		require.NoError(t, err)
		assert.Empty(t, messages)
	})

	t.Run("query_error", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		repo := NewMessageRepository(db)

		mock.ExpectQuery(regexp.QuoteMeta("WHERE room_id = $1 AND id > $2")).
			WillReturnError(errors.New("timeout"))

		_, err = repo.ListSince(context.Background(), "room-1", 0, 500)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to query messages since")
	})
}

func TestMessageRepository_ListPage(t *testing.T) {
	t.Run("returns_descending_page", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		repo := NewMessageRepository(db)

		author := "principal-1"
		rows := sqlmock.NewRows(messageColumns).
			AddRow(int64(99), "room-1", author, nil, "alice", "newer", []byte("{}"), time.Now()).
			AddRow(int64(98), "room-1", author, nil, "alice", "older", []byte("{}"), time.Now())

		mock.ExpectQuery(regexp.QuoteMeta(`WHERE room_id = $1 AND ($2 = 0 OR id < $2)`)).
			WithArgs("room-1", int64(100), 50).
			WillReturnRows(rows)

		messages, err := repo.ListPage(context.Background(), "room-1", 100, 50)
		require.NoError(t, err)
		require.Len(t, messages, 2)
		assert.Equal(t, int64(99), messages[0].ID)
		assert.Equal(t, int64(98), messages[1].ID)
	})

	t.Run("first_page_uses_zero_cursor", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		repo := NewMessageRepository(db)

		mock.ExpectQuery(regexp.QuoteMeta(`WHERE room_id = $1 AND ($2 = 0 OR id < $2)`)).
			WithArgs("room-1", int64(0), 50).
			WillReturnRows(sqlmock.NewRows(messageColumns))

		_, err = repo.ListPage(context.Background(), "room-1", 0, 50)
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
