package service

import (
	"context"

	"github.com/superchat/server/internal/domain"
)

type UserRepoIn interface {
	GetUser(ctx context.Context, userID int) (*domain.User, error)
	SetOnline(ctx context.Context, userID int, online bool) error
	ListOnlineUsers(ctx context.Context, excludeUserID int) ([]domain.User, error)
}

type RoomRepoIn interface {
	GetRoom(ctx context.Context, roomID int) (*domain.Room, error)
	ListPublicRooms(ctx context.Context) ([]domain.Room, error)
	IsMember(ctx context.Context, roomID, userID int) (bool, error)
	AddMember(ctx context.Context, roomID, userID int) error
}

type ChatRepoIn interface {
	GetPrivateChat(ctx context.Context, chatID int) (*domain.PrivateChat, error)
	FindPrivateChat(ctx context.Context, user1ID, user2ID int) (*domain.PrivateChat, error)
	CreatePrivateChat(ctx context.Context, user1ID, user2ID int) (*domain.PrivateChat, error)
	ListPrivateChats(ctx context.Context, userID int) ([]domain.PrivateChatSummary, error)
}

type MessageRepoIn interface {
	InsertMessage(ctx context.Context, msg *domain.Message) (*domain.Message, error)
	GetMessage(ctx context.Context, messageID int) (*domain.Message, error)
	PaginateRoomMessages(ctx context.Context, roomID, page, pageSize int) ([]domain.Message, error)
	PaginatePrivateMessages(ctx context.Context, user1ID, user2ID, page, pageSize int) ([]domain.Message, error)
}

type PresenceRepoIn interface {
	Refresh(ctx context.Context, userID int) error
	Remove(ctx context.Context, userID int) error
	OnlineUserIDs(ctx context.Context) ([]int, error)
}

// AccessValidatorIn is the single authorization decision point. Both the
// HTTP handlers and the live channel re-validate through it; the hub never
// trusts that a prior REST join succeeded.
type AccessValidatorIn interface {
	CanRead(ctx context.Context, userID int, target Target) error
	CanAppend(ctx context.Context, userID int, target Target) error
	CanJoin(ctx context.Context, userID, roomID int) error
}

type MessageServiceIn interface {
	AppendRoomMessage(ctx context.Context, userID, roomID int, in *AppendMessageDTO) (*domain.Message, error)
	AppendPrivateMessage(ctx context.Context, userID, chatID int, in *AppendMessageDTO) (*domain.Message, error)
	ListRoomMessages(ctx context.Context, userID, roomID, page, pageSize int) ([]domain.Message, error)
	ListPrivateMessages(ctx context.Context, userID, chatID, page, pageSize int) ([]domain.Message, error)
	GetOrCreatePrivateChat(ctx context.Context, userID, otherUserID int) (*domain.PrivateChat, error)
	JoinRoom(ctx context.Context, userID, roomID int) error
	ListRooms(ctx context.Context) ([]domain.Room, error)
	ListPrivateChats(ctx context.Context, userID int) ([]domain.PrivateChatSummary, error)
	GetMessage(ctx context.Context, messageID int) (*domain.Message, error)
	GetUser(ctx context.Context, userID int) (*domain.User, error)
}

type PresenceServiceIn interface {
	MarkOnline(ctx context.Context, userID int) error
	MarkOffline(ctx context.Context, userID int) error
	Refresh(ctx context.Context, userID int) error
	ListOnlineUsers(ctx context.Context, selfID int) ([]domain.User, error)
}
