package service

import (
	"context"
	"log/slog"

	"github.com/superchat/server/internal/domain"
)

// PresenceService keeps the durable is_online flag and the Redis mirror in
// step. The flag is authoritative; the mirror only serves the online
// listing and goes stale harmlessly if the process dies.
type PresenceService struct {
	userRepo     UserRepoIn
	presenceRepo PresenceRepoIn
}

func NewPresenceService(userRepo UserRepoIn, presenceRepo PresenceRepoIn) PresenceServiceIn {
	return &PresenceService{
		userRepo:     userRepo,
		presenceRepo: presenceRepo,
	}
}

func (ps *PresenceService) MarkOnline(ctx context.Context, userID int) error {
	if err := ps.userRepo.SetOnline(ctx, userID, true); err != nil {
		slog.Error("Failed to set online flag", "user_id", userID, "error", err)
		return domain.ErrUnavailable
	}

	if err := ps.presenceRepo.Refresh(ctx, userID); err != nil {
		slog.Warn("Failed to refresh presence cache", "user_id", userID, "error", err)
	}
	return nil
}

func (ps *PresenceService) MarkOffline(ctx context.Context, userID int) error {
	if err := ps.userRepo.SetOnline(ctx, userID, false); err != nil {
		slog.Error("Failed to clear online flag", "user_id", userID, "error", err)
		return domain.ErrUnavailable
	}

	if err := ps.presenceRepo.Remove(ctx, userID); err != nil {
		slog.Warn("Failed to remove from presence cache", "user_id", userID, "error", err)
	}
	return nil
}

// Refresh keeps the Redis TTL window alive between announce and close,
// driven by the connection's pong handler.
func (ps *PresenceService) Refresh(ctx context.Context, userID int) error {
	return ps.presenceRepo.Refresh(ctx, userID)
}

// ListOnlineUsers serves from the Redis mirror and falls back to the
// durable flag when the cache is unreachable.
func (ps *PresenceService) ListOnlineUsers(ctx context.Context, selfID int) ([]domain.User, error) {
	ids, err := ps.presenceRepo.OnlineUserIDs(ctx)
	if err != nil {
		slog.Warn("Presence cache unreachable, falling back to store", "error", err)
		users, err := ps.userRepo.ListOnlineUsers(ctx, selfID)
		if err != nil {
			slog.Error("Failed to list online users", "error", err)
			return nil, domain.ErrUnavailable
		}
		return users, nil
	}

	users := make([]domain.User, 0, len(ids))
	for _, id := range ids {
		if id == selfID {
			continue
		}
		user, err := ps.userRepo.GetUser(ctx, id)
		if err != nil {
			continue
		}
		users = append(users, *user)
	}
	return users, nil
}
