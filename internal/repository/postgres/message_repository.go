package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"roomsync/internal/domain"
)

// MessageRepository implements domain.MessageRepository for PostgreSQL.
// Message ids come from a BIGSERIAL column, so they are strictly increasing
// within a room and never reused.
type MessageRepository struct {
	db *sql.DB
}

// NewMessageRepository creates a new PostgreSQL message repository
func NewMessageRepository(db *sql.DB) *MessageRepository {
	return &MessageRepository{db: db}
}

// Create inserts a new message; the database assigns id and created_at.
func (r *MessageRepository) Create(ctx context.Context, message *domain.Message) error {
	metadata, err := json.Marshal(message.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal message metadata: %w", err)
	}

	query := `
		INSERT INTO messages (room_id, author_id, session_id, author_name, content, metadata)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at
	`
	err = r.db.QueryRowContext(ctx, query,
		message.RoomID,
		message.AuthorID,
		message.SessionID,
		message.AuthorName,
		message.Content,
		metadata,
	).Scan(&message.ID, &message.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to create message: %w", err)
	}
	return nil
}

// ListSince retrieves messages with id greater than sinceID, ascending.
// This is the forward/incremental sync path.
func (r *MessageRepository) ListSince(ctx context.Context, roomID string, sinceID int64, limit int) ([]*domain.Message, error) {
	query := `
		SELECT id, room_id, author_id, session_id, author_name, content, metadata, created_at
		FROM messages
		WHERE room_id = $1 AND id > $2
		ORDER BY id ASC
		LIMIT $3
	`

	rows, err := r.db.QueryContext(ctx, query, roomID, sinceID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages since %d: %w", sinceID, err)
	}
	defer rows.Close()

	return scanMessages(rows, limit)
}

// ListPage retrieves up to limit messages older than before (0 means "from
// newest"), descending. This is the backward history pagination path;
// callers reverse before display.
func (r *MessageRepository) ListPage(ctx context.Context, roomID string, before int64, limit int) ([]*domain.Message, error) {
	query := `
		SELECT id, room_id, author_id, session_id, author_name, content, metadata, created_at
		FROM messages
		WHERE room_id = $1 AND ($2 = 0 OR id < $2)
		ORDER BY id DESC
		LIMIT $3
	`

	rows, err := r.db.QueryContext(ctx, query, roomID, before, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query message page: %w", err)
	}
	defer rows.Close()

	return scanMessages(rows, limit)
}

func scanMessages(rows *sql.Rows, capacity int) ([]*domain.Message, error) {
	messages := make([]*domain.Message, 0, capacity)
	for rows.Next() {
		msg := &domain.Message{}
		var metadata []byte
		err := rows.Scan(
			&msg.ID,
			&msg.RoomID,
			&msg.AuthorID,
			&msg.SessionID,
			&msg.AuthorName,
			&msg.Content,
			&metadata,
			&msg.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &msg.Metadata); err != nil {
				return nil, fmt.Errorf("failed to unmarshal message metadata: %w", err)
			}
		}
		messages = append(messages, msg)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating messages: %w", err)
	}
	return messages, nil
}
