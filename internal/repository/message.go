package repository

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/superchat/server/internal/domain"
)

type MessageRepo struct {
	db *sqlx.DB
}

func NewMessageRepo(db *sqlx.DB) *MessageRepo {
	return &MessageRepo{
		db: db,
	}
}

const messageColumns = `
	m.id, m.user_id, m.room_id, m.recipient_id, m.message_text, m.message_type,
	m.file_path, m.file_name, m.file_size, m.is_private, m.created_at,
	u.username, u.profile_picture
`

// InsertMessage persists one message row and returns the canonical record
// with server-assigned id and timestamp, joined with the author's display
// fields. Room and private appends share this path; the mutually exclusive
// room_id/recipient_id columns are enforced by the schema.
func (mr *MessageRepo) InsertMessage(ctx context.Context, msg *domain.Message) (*domain.Message, error) {
	query := `
		WITH inserted AS (
			INSERT INTO messages (
				user_id, room_id, recipient_id, message_text, message_type,
				file_path, file_name, file_size, is_private, created_at
			)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())
			RETURNING *
		)
		SELECT ` + messageColumns + `
		FROM inserted m
		JOIN users u ON m.user_id = u.id;
	`

	var stored domain.Message
	err := mr.db.GetContext(ctx, &stored, query,
		msg.UserID, msg.RoomID, msg.RecipientID, msg.Text, msg.Kind,
		msg.FilePath, msg.FileName, msg.FileSize, msg.IsPrivate,
	)
	if err != nil {
		return nil, err
	}
	return &stored, nil
}

func (mr *MessageRepo) GetMessage(ctx context.Context, messageID int) (*domain.Message, error) {
	query := `
		SELECT ` + messageColumns + `
		FROM messages m
		JOIN users u ON m.user_id = u.id
		WHERE m.id = $1;
	`

	var msg domain.Message
	err := mr.db.GetContext(ctx, &msg, query, messageID)
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

// PaginateRoomMessages returns the newest-first window for (page, pageSize).
// The service layer re-orders ascending for rendering.
func (mr *MessageRepo) PaginateRoomMessages(ctx context.Context, roomID, page, pageSize int) ([]domain.Message, error) {
	query := `
		SELECT ` + messageColumns + `
		FROM messages m
		JOIN users u ON m.user_id = u.id
		WHERE m.room_id = $1 AND m.is_private = FALSE
		ORDER BY m.created_at DESC
		LIMIT $2 OFFSET $3;
	`

	var messages []domain.Message
	err := mr.db.SelectContext(ctx, &messages, query, roomID, pageSize, (page-1)*pageSize)
	if err != nil && err != sql.ErrNoRows {
		return nil, err
	}
	return messages, nil
}

func (mr *MessageRepo) PaginatePrivateMessages(ctx context.Context, user1ID, user2ID, page, pageSize int) ([]domain.Message, error) {
	query := `
		SELECT ` + messageColumns + `
		FROM messages m
		JOIN users u ON m.user_id = u.id
		WHERE m.is_private
			AND ((m.user_id = $1 AND m.recipient_id = $2)
				OR (m.user_id = $2 AND m.recipient_id = $1))
		ORDER BY m.created_at DESC
		LIMIT $3 OFFSET $4;
	`

	var messages []domain.Message
	err := mr.db.SelectContext(ctx, &messages, query, user1ID, user2ID, pageSize, (page-1)*pageSize)
	if err != nil && err != sql.ErrNoRows {
		return nil, err
	}
	return messages, nil
}
