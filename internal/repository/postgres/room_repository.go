package postgres

import (
	"context"
	"database/sql"

	"roomsync/internal/domain"
)

// RoomRepository implements domain.RoomDirectory for PostgreSQL
type RoomRepository struct {
	db *sql.DB
	tx *TxManager
}

// NewRoomRepository creates a new PostgreSQL room repository
func NewRoomRepository(db *sql.DB) *RoomRepository {
	return &RoomRepository{db: db, tx: NewTxManager(db)}
}

// CreateWithOwner inserts a room and its owner membership atomically.
func (r *RoomRepository) CreateWithOwner(ctx context.Context, room *domain.Room, passwordHash, ownerID string) error {
	return r.tx.WithTx(ctx, func(tx *sql.Tx) error {
		query := `
			INSERT INTO rooms (name, password_hash, created_by)
			VALUES ($1, NULLIF($2, ''), $3)
			RETURNING id, created_at
		`
		if err := tx.QueryRowContext(ctx, query,
			room.Name,
			passwordHash,
			ownerID,
		).Scan(&room.ID, &room.CreatedAt); err != nil {
			return err
		}
		room.CreatedBy = ownerID
		room.HasPassword = passwordHash != ""

		memberQuery := `
			INSERT INTO room_members (room_id, principal_id, role)
			VALUES ($1, $2, $3)
		`
		_, err := tx.ExecContext(ctx, memberQuery, room.ID, ownerID, domain.RoleOwner)
		return err
	})
}

// GetByID retrieves a room by ID
func (r *RoomRepository) GetByID(ctx context.Context, id string) (*domain.Room, error) {
	query := `
		SELECT id, name, password_hash IS NOT NULL, created_at, created_by
		FROM rooms
		WHERE id = $1
	`
	room := &domain.Room{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&room.ID,
		&room.Name,
		&room.HasPassword,
		&room.CreatedAt,
		&room.CreatedBy,
	)
	if err == sql.ErrNoRows {
		return nil, domain.ErrRoomNotFound
	}
	return room, err
}

// List retrieves all rooms
func (r *RoomRepository) List(ctx context.Context) ([]*domain.Room, error) {
	query := `
		SELECT id, name, password_hash IS NOT NULL, created_at, created_by
		FROM rooms
		ORDER BY created_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	rooms := make([]*domain.Room, 0)
	for rows.Next() {
		room := &domain.Room{}
		err := rows.Scan(
			&room.ID,
			&room.Name,
			&room.HasPassword,
			&room.CreatedAt,
			&room.CreatedBy,
		)
		if err != nil {
			return nil, err
		}
		rooms = append(rooms, room)
	}

	return rooms, rows.Err()
}

// AddMember adds a principal to a room
func (r *RoomRepository) AddMember(ctx context.Context, roomID, principalID, role string) error {
	query := `
		INSERT INTO room_members (room_id, principal_id, role)
		VALUES ($1, $2, $3)
		ON CONFLICT (room_id, principal_id) DO NOTHING
	`
	_, err := r.db.ExecContext(ctx, query, roomID, principalID, role)
	if IsForeignKeyViolation(err, "") {
		return domain.ErrRoomNotFound
	}
	return err
}

// IsMember checks if a principal is a member of a room
func (r *RoomRepository) IsMember(ctx context.Context, roomID, principalID string) (bool, error) {
	query := `
		SELECT EXISTS(
			SELECT 1 FROM room_members
			WHERE room_id = $1 AND principal_id = $2
		)
	`
	var exists bool
	err := r.db.QueryRowContext(ctx, query, roomID, principalID).Scan(&exists)
	return exists, err
}

// Role returns the principal's role in a room
func (r *RoomRepository) Role(ctx context.Context, roomID, principalID string) (string, error) {
	query := `
		SELECT role FROM room_members
		WHERE room_id = $1 AND principal_id = $2
	`
	var role string
	err := r.db.QueryRowContext(ctx, query, roomID, principalID).Scan(&role)
	if err == sql.ErrNoRows {
		return "", domain.ErrNotMember
	}
	return role, err
}

// PasswordHash returns the room's password hash, empty when the room is open.
func (r *RoomRepository) PasswordHash(ctx context.Context, roomID string) (string, error) {
	query := `
		SELECT COALESCE(password_hash, '') FROM rooms
		WHERE id = $1
	`
	var hash string
	err := r.db.QueryRowContext(ctx, query, roomID).Scan(&hash)
	if err == sql.ErrNoRows {
		return "", domain.ErrRoomNotFound
	}
	return hash, err
}
