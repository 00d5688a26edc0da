package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/superchat/server/internal/domain"
)

type TargetKind string

const (
	RoomTarget        TargetKind = "room"
	PrivateChatTarget TargetKind = "private"
)

// Target references a room or a private chat for authorization decisions.
type Target struct {
	Kind TargetKind
	ID   int
}

func Room(roomID int) Target {
	return Target{Kind: RoomTarget, ID: roomID}
}

func PrivateChat(chatID int) Target {
	return Target{Kind: PrivateChatTarget, ID: chatID}
}

// AccessService decides membership/authorization over current persisted
// state. Pure decision function, no side effects.
type AccessService struct {
	roomRepo RoomRepoIn
	chatRepo ChatRepoIn
}

func NewAccessService(roomRepo RoomRepoIn, chatRepo ChatRepoIn) AccessValidatorIn {
	return &AccessService{
		roomRepo: roomRepo,
		chatRepo: chatRepo,
	}
}

func (as *AccessService) CanRead(ctx context.Context, userID int, target Target) error {
	switch target.Kind {
	case RoomTarget:
		return as.checkRoomMembership(ctx, userID, target.ID)
	case PrivateChatTarget:
		return as.checkChatMembership(ctx, userID, target.ID)
	default:
		return domain.ErrInvalidRequest.WithMessage(fmt.Sprintf("unknown target kind %q", target.Kind))
	}
}

// CanAppend matches CanRead for both target kinds: appending requires the
// same membership that reading does.
func (as *AccessService) CanAppend(ctx context.Context, userID int, target Target) error {
	return as.CanRead(ctx, userID, target)
}

func (as *AccessService) CanJoin(ctx context.Context, userID, roomID int) error {
	room, err := as.roomRepo.GetRoom(ctx, roomID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrNotFound.WithMessage("Room not found")
		}
		slog.Error("Failed to get room", "room_id", roomID, "error", err)
		return domain.ErrUnavailable
	}

	if !room.IsPublic {
		return domain.ErrForbidden.WithMessage("This room is private")
	}
	return nil
}

func (as *AccessService) checkRoomMembership(ctx context.Context, userID, roomID int) error {
	member, err := as.roomRepo.IsMember(ctx, roomID, userID)
	if err != nil {
		slog.Error("Failed to check room membership", "room_id", roomID, "user_id", userID, "error", err)
		return domain.ErrUnavailable
	}

	if !member {
		return domain.ErrForbidden.WithMessage("You do not have access to this room")
	}
	return nil
}

func (as *AccessService) checkChatMembership(ctx context.Context, userID, chatID int) error {
	chat, err := as.chatRepo.GetPrivateChat(ctx, chatID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrNotFound.WithMessage("Chat not found")
		}
		slog.Error("Failed to get private chat", "chat_id", chatID, "error", err)
		return domain.ErrUnavailable
	}

	if !chat.Has(userID) {
		return domain.ErrForbidden.WithMessage("You do not have access to this chat")
	}
	return nil
}
