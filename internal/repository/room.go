package repository

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/superchat/server/internal/domain"
)

type RoomRepo struct {
	db *sqlx.DB
}

func NewRoomRepo(db *sqlx.DB) *RoomRepo {
	return &RoomRepo{
		db: db,
	}
}

func (rr *RoomRepo) GetRoom(ctx context.Context, roomID int) (*domain.Room, error) {
	query := `
		SELECT id, name, description, is_public, created_by, created_at
		FROM rooms
		WHERE id = $1;
	`

	var room domain.Room
	err := rr.db.GetContext(ctx, &room, query, roomID)
	if err != nil {
		return nil, err
	}
	return &room, nil
}

func (rr *RoomRepo) ListPublicRooms(ctx context.Context) ([]domain.Room, error) {
	query := `
		SELECT r.id, r.name, r.description, r.is_public, r.created_by, r.created_at,
			u.username AS creator_name,
			COUNT(rp.user_id) AS participant_count
		FROM rooms r
		LEFT JOIN users u ON r.created_by = u.id
		LEFT JOIN room_participants rp ON r.id = rp.room_id
		WHERE r.is_public = TRUE
		GROUP BY r.id, u.username
		ORDER BY participant_count DESC, r.created_at DESC;
	`

	var rooms []domain.Room
	err := rr.db.SelectContext(ctx, &rooms, query)
	if err != nil && err != sql.ErrNoRows {
		return nil, err
	}
	return rooms, nil
}

func (rr *RoomRepo) IsMember(ctx context.Context, roomID, userID int) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM room_participants
			WHERE room_id = $1 AND user_id = $2
		);
	`

	var exists bool
	err := rr.db.GetContext(ctx, &exists, query, roomID, userID)
	return exists, err
}

// AddMember is idempotent: re-joining an existing member is not an error.
func (rr *RoomRepo) AddMember(ctx context.Context, roomID, userID int) error {
	query := `
		INSERT INTO room_participants (room_id, user_id)
		VALUES ($1, $2)
		ON CONFLICT (room_id, user_id) DO NOTHING;
	`

	_, err := rr.db.ExecContext(ctx, query, roomID, userID)
	return err
}
