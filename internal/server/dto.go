package server

import (
	"github.com/superchat/server/internal/domain"
)

type AppendMessageJSON struct {
	Text string             `json:"message_text"`
	Kind domain.MessageKind `json:"message_type"`
	File *domain.FileRef    `json:"file,omitempty"`
}

// response
type JoinedRoomJSON struct {
	Message string `json:"message"`
}

type PrivateChatJSON struct {
	ChatID    int       `json:"chat_id"`
	OtherUser OtherUser `json:"other_user"`
}

type OtherUser struct {
	ID       int    `json:"id"`
	Username string `json:"username"`
}
