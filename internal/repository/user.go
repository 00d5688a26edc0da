package repository

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/superchat/server/internal/domain"
)

type UserRepo struct {
	db *sqlx.DB
}

func NewUserRepo(db *sqlx.DB) *UserRepo {
	return &UserRepo{
		db: db,
	}
}

func (ur *UserRepo) GetUser(ctx context.Context, userID int) (*domain.User, error) {
	query := `
		SELECT id, username, email, profile_picture, status_message,
			is_online, last_seen, created_at
		FROM users
		WHERE id = $1;
	`

	var user domain.User
	err := ur.db.GetContext(ctx, &user, query, userID)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// SetOnline maintains the durable presence flag, updated at announce,
// close, login and logout boundaries.
func (ur *UserRepo) SetOnline(ctx context.Context, userID int, online bool) error {
	query := `
		UPDATE users
		SET is_online = $1, last_seen = NOW()
		WHERE id = $2;
	`

	_, err := ur.db.ExecContext(ctx, query, online, userID)
	return err
}

func (ur *UserRepo) ListOnlineUsers(ctx context.Context, excludeUserID int) ([]domain.User, error) {
	query := `
		SELECT id, username, email, profile_picture, status_message,
			is_online, last_seen, created_at
		FROM users
		WHERE is_online = TRUE AND id != $1
		ORDER BY username;
	`

	var users []domain.User
	err := ur.db.SelectContext(ctx, &users, query, excludeUserID)
	if err != nil && err != sql.ErrNoRows {
		return nil, err
	}
	return users, nil
}
