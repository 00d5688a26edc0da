package service

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"github.com/superchat/server/internal/domain"
)

const (
	DefaultPageSize = 50
	maxPageSize     = 100
)

// MessageService is the request/response history API over the persistence
// gateway. Every operation goes through the access validator; no operation
// touches the live channel, which is a separate best-effort step performed
// by the caller after a successful append.
type MessageService struct {
	access   AccessValidatorIn
	userRepo UserRepoIn
	roomRepo RoomRepoIn
	chatRepo ChatRepoIn
	msgRepo  MessageRepoIn
}

func NewMessageService(
	access AccessValidatorIn,
	userRepo UserRepoIn,
	roomRepo RoomRepoIn,
	chatRepo ChatRepoIn,
	msgRepo MessageRepoIn,
) MessageServiceIn {
	return &MessageService{
		access:   access,
		userRepo: userRepo,
		roomRepo: roomRepo,
		chatRepo: chatRepo,
		msgRepo:  msgRepo,
	}
}

func (ms *MessageService) AppendRoomMessage(ctx context.Context, userID, roomID int, in *AppendMessageDTO) (*domain.Message, error) {
	if err := ms.access.CanAppend(ctx, userID, Room(roomID)); err != nil {
		return nil, err
	}

	msg, err := buildMessage(userID, in)
	if err != nil {
		return nil, err
	}
	msg.RoomID = &roomID

	stored, err := ms.msgRepo.InsertMessage(ctx, msg)
	if err != nil {
		slog.Error("Failed to insert room message", "room_id", roomID, "user_id", userID, "error", err)
		return nil, domain.ErrUnavailable
	}
	return stored, nil
}

func (ms *MessageService) AppendPrivateMessage(ctx context.Context, userID, chatID int, in *AppendMessageDTO) (*domain.Message, error) {
	if err := ms.access.CanAppend(ctx, userID, PrivateChat(chatID)); err != nil {
		return nil, err
	}

	chat, err := ms.chatRepo.GetPrivateChat(ctx, chatID)
	if err != nil {
		slog.Error("Failed to get private chat", "chat_id", chatID, "error", err)
		return nil, domain.ErrUnavailable
	}

	msg, err := buildMessage(userID, in)
	if err != nil {
		return nil, err
	}
	recipientID := chat.Other(userID)
	msg.RecipientID = &recipientID
	msg.IsPrivate = true

	stored, err := ms.msgRepo.InsertMessage(ctx, msg)
	if err != nil {
		slog.Error("Failed to insert private message", "chat_id", chatID, "user_id", userID, "error", err)
		return nil, domain.ErrUnavailable
	}
	return stored, nil
}

func (ms *MessageService) ListRoomMessages(ctx context.Context, userID, roomID, page, pageSize int) ([]domain.Message, error) {
	if err := ms.access.CanRead(ctx, userID, Room(roomID)); err != nil {
		return nil, err
	}

	page, pageSize = normalizePage(page, pageSize)

	messages, err := ms.msgRepo.PaginateRoomMessages(ctx, roomID, page, pageSize)
	if err != nil {
		slog.Error("Failed to paginate room messages", "room_id", roomID, "error", err)
		return nil, domain.ErrUnavailable
	}
	return ascending(messages), nil
}

func (ms *MessageService) ListPrivateMessages(ctx context.Context, userID, chatID, page, pageSize int) ([]domain.Message, error) {
	if err := ms.access.CanRead(ctx, userID, PrivateChat(chatID)); err != nil {
		return nil, err
	}

	chat, err := ms.chatRepo.GetPrivateChat(ctx, chatID)
	if err != nil {
		slog.Error("Failed to get private chat", "chat_id", chatID, "error", err)
		return nil, domain.ErrUnavailable
	}

	page, pageSize = normalizePage(page, pageSize)

	messages, err := ms.msgRepo.PaginatePrivateMessages(ctx, chat.User1ID, chat.User2ID, page, pageSize)
	if err != nil {
		slog.Error("Failed to paginate private messages", "chat_id", chatID, "error", err)
		return nil, domain.ErrUnavailable
	}
	return ascending(messages), nil
}

func (ms *MessageService) GetOrCreatePrivateChat(ctx context.Context, userID, otherUserID int) (*domain.PrivateChat, error) {
	if userID == otherUserID {
		return nil, domain.ErrInvalidRequest.WithMessage("You cannot create a chat with yourself")
	}

	if _, err := ms.userRepo.GetUser(ctx, otherUserID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound.WithMessage("User not found")
		}
		slog.Error("Failed to get user", "user_id", otherUserID, "error", err)
		return nil, domain.ErrUnavailable
	}

	// canonical ordering: lower id first, one row per unordered pair
	user1ID, user2ID := userID, otherUserID
	if user1ID > user2ID {
		user1ID, user2ID = user2ID, user1ID
	}

	chat, err := ms.chatRepo.FindPrivateChat(ctx, user1ID, user2ID)
	if err == nil {
		return chat, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		slog.Error("Failed to find private chat", "error", err)
		return nil, domain.ErrUnavailable
	}

	chat, err = ms.chatRepo.CreatePrivateChat(ctx, user1ID, user2ID)
	if err != nil {
		// a concurrent create for the same pair hits the unique constraint;
		// the existing row wins
		existing, findErr := ms.chatRepo.FindPrivateChat(ctx, user1ID, user2ID)
		if findErr == nil {
			return existing, nil
		}
		slog.Error("Failed to create private chat", "error", err)
		return nil, domain.ErrUnavailable
	}
	return chat, nil
}

func (ms *MessageService) JoinRoom(ctx context.Context, userID, roomID int) error {
	if err := ms.access.CanJoin(ctx, userID, roomID); err != nil {
		return err
	}

	if err := ms.roomRepo.AddMember(ctx, roomID, userID); err != nil {
		slog.Error("Failed to add room member", "room_id", roomID, "user_id", userID, "error", err)
		return domain.ErrUnavailable
	}
	return nil
}

func (ms *MessageService) ListRooms(ctx context.Context) ([]domain.Room, error) {
	rooms, err := ms.roomRepo.ListPublicRooms(ctx)
	if err != nil {
		slog.Error("Failed to list public rooms", "error", err)
		return nil, domain.ErrUnavailable
	}
	return rooms, nil
}

func (ms *MessageService) ListPrivateChats(ctx context.Context, userID int) ([]domain.PrivateChatSummary, error) {
	chats, err := ms.chatRepo.ListPrivateChats(ctx, userID)
	if err != nil {
		slog.Error("Failed to list private chats", "user_id", userID, "error", err)
		return nil, domain.ErrUnavailable
	}
	return chats, nil
}

func (ms *MessageService) GetMessage(ctx context.Context, messageID int) (*domain.Message, error) {
	msg, err := ms.msgRepo.GetMessage(ctx, messageID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound.WithMessage("Message not found")
		}
		slog.Error("Failed to get message", "message_id", messageID, "error", err)
		return nil, domain.ErrUnavailable
	}
	return msg, nil
}

func (ms *MessageService) GetUser(ctx context.Context, userID int) (*domain.User, error) {
	user, err := ms.userRepo.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound.WithMessage("User not found")
		}
		slog.Error("Failed to get user", "user_id", userID, "error", err)
		return nil, domain.ErrUnavailable
	}
	return user, nil
}

func buildMessage(userID int, in *AppendMessageDTO) (*domain.Message, error) {
	if in.Text == "" && in.File == nil {
		return nil, domain.ErrInvalidRequest.WithMessage("Message is empty")
	}

	kind := in.Kind
	if kind == "" {
		kind = domain.KindText
		if in.File != nil {
			kind = in.File.Category
		}
	}
	if !kind.Valid() {
		return nil, domain.ErrInvalidRequest.WithMessage("Unknown message type")
	}

	msg := &domain.Message{
		UserID: userID,
		Text:   in.Text,
		Kind:   kind,
	}
	if in.File != nil {
		msg.FilePath = &in.File.Path
		msg.FileName = &in.File.Name
		msg.FileSize = &in.File.Size
	}
	return msg, nil
}

func normalizePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return page, pageSize
}

// ascending reverses the newest-first storage window so callers render
// oldest-first directly.
func ascending(messages []domain.Message) []domain.Message {
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages
}
