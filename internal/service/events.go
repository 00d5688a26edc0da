package service

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/superchat/server/internal/domain"
)

// Envelope is the tagged wire format for every live event, in both
// directions. Data has a fixed schema per Type and is validated at the
// registry boundary before fan-out.
type Envelope struct {
	Type domain.EventType `json:"type"`
	Data json.RawMessage  `json:"data,omitempty"`
}

func NewEnvelope(eventType domain.EventType, payload any) (*Envelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	return &Envelope{Type: eventType, Data: data}, nil
}

// Client frames.
type AnnounceFrame struct {
	Token string `json:"token"`
}

type SubscribeFrame struct {
	Channel string `json:"channel"`
}

type PublishMessageFrame struct {
	Channel   string `json:"channel"`
	MessageID int    `json:"message_id"`
}

type TypingFrame struct {
	RoomID   int  `json:"room_id"`
	IsTyping bool `json:"is_typing"`
}

// Server pushes.
type PresenceEvent struct {
	User   domain.User `json:"user"`
	Online bool        `json:"online"`
}

type MessageEvent struct {
	Channel string         `json:"channel"`
	Message domain.Message `json:"message"`
}

type TypingEvent struct {
	RoomID   int         `json:"room_id"`
	User     domain.User `json:"user"`
	IsTyping bool        `json:"is_typing"`
}

type ChannelKind string

const (
	RoomChannelKind ChannelKind = "room"
	UserChannelKind ChannelKind = "user"
)

// ParseChannel splits a fan-out address into its kind and id. Valid forms
// are "room:<roomID>" and "user:<userID>".
func ParseChannel(channel string) (ChannelKind, int, error) {
	kind, idStr, ok := strings.Cut(channel, ":")
	if !ok {
		return "", 0, fmt.Errorf("malformed channel %q", channel)
	}

	id, err := strconv.Atoi(idStr)
	if err != nil || id <= 0 {
		return "", 0, fmt.Errorf("malformed channel id %q", channel)
	}

	switch ChannelKind(kind) {
	case RoomChannelKind, UserChannelKind:
		return ChannelKind(kind), id, nil
	default:
		return "", 0, fmt.Errorf("unknown channel kind %q", kind)
	}
}
