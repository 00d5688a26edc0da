package repository

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/superchat/server/internal/domain"
)

type ChatRepo struct {
	db *sqlx.DB
}

func NewChatRepo(db *sqlx.DB) *ChatRepo {
	return &ChatRepo{
		db: db,
	}
}

func (cr *ChatRepo) GetPrivateChat(ctx context.Context, chatID int) (*domain.PrivateChat, error) {
	query := `
		SELECT id, user1_id, user2_id, created_at
		FROM private_chats
		WHERE id = $1;
	`

	var chat domain.PrivateChat
	err := cr.db.GetContext(ctx, &chat, query, chatID)
	if err != nil {
		return nil, err
	}
	return &chat, nil
}

func (cr *ChatRepo) FindPrivateChat(ctx context.Context, user1ID, user2ID int) (*domain.PrivateChat, error) {
	query := `
		SELECT id, user1_id, user2_id, created_at
		FROM private_chats
		WHERE user1_id = $1 AND user2_id = $2;
	`

	var chat domain.PrivateChat
	err := cr.db.GetContext(ctx, &chat, query, user1ID, user2ID)
	if err != nil {
		return nil, err
	}
	return &chat, nil
}

// CreatePrivateChat expects user1ID < user2ID. The unique pair constraint
// makes a concurrent double-create fail on one side; the caller retries the
// lookup in that case.
func (cr *ChatRepo) CreatePrivateChat(ctx context.Context, user1ID, user2ID int) (*domain.PrivateChat, error) {
	query := `
		INSERT INTO private_chats (user1_id, user2_id)
		VALUES ($1, $2)
		RETURNING id, user1_id, user2_id, created_at;
	`

	var chat domain.PrivateChat
	err := cr.db.GetContext(ctx, &chat, query, user1ID, user2ID)
	if err != nil {
		return nil, err
	}
	return &chat, nil
}

func (cr *ChatRepo) ListPrivateChats(ctx context.Context, userID int) ([]domain.PrivateChatSummary, error) {
	query := `
		SELECT pc.id AS chat_id,
			u.id AS other_user_id,
			u.username AS other_username,
			u.profile_picture AS other_profile_picture,
			u.is_online AS other_is_online,
			pc.created_at,
			lm.message_text AS last_message,
			lm.created_at AS last_message_time
		FROM private_chats pc
		JOIN users u
			ON u.id = CASE WHEN pc.user1_id = $1 THEN pc.user2_id ELSE pc.user1_id END
		LEFT JOIN LATERAL (
			SELECT m.message_text, m.created_at
			FROM messages m
			WHERE m.is_private
				AND ((m.user_id = pc.user1_id AND m.recipient_id = pc.user2_id)
					OR (m.user_id = pc.user2_id AND m.recipient_id = pc.user1_id))
			ORDER BY m.created_at DESC
			LIMIT 1
		) lm ON TRUE
		WHERE pc.user1_id = $1 OR pc.user2_id = $1
		ORDER BY lm.created_at DESC NULLS LAST;
	`

	var chats []domain.PrivateChatSummary
	err := cr.db.SelectContext(ctx, &chats, query, userID)
	if err != nil && err != sql.ErrNoRows {
		return nil, err
	}
	return chats, nil
}
