package domain

import (
	"fmt"
	"time"
)

type User struct {
	ID            int       `json:"id" db:"id"`
	Username      string    `json:"username" db:"username"`
	Email         string    `json:"email,omitempty" db:"email"`
	AvatarPath    *string   `json:"profile_picture,omitempty" db:"profile_picture"`
	StatusMessage *string   `json:"status_message,omitempty" db:"status_message"`
	IsOnline      bool      `json:"is_online" db:"is_online"`
	LastSeen      time.Time `json:"last_seen" db:"last_seen"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}

type Room struct {
	ID          int       `json:"id" db:"id"`
	Name        string    `json:"name" db:"name"`
	Description *string   `json:"description,omitempty" db:"description"`
	IsPublic    bool      `json:"is_public" db:"is_public"`
	CreatedBy   *int      `json:"created_by,omitempty" db:"created_by"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`

	// filled by the public rooms listing
	CreatorName      *string `json:"creator_name,omitempty" db:"creator_name"`
	ParticipantCount int     `json:"participant_count" db:"participant_count"`
}

type Membership struct {
	ID       int        `json:"id" db:"id"`
	RoomID   int        `json:"room_id" db:"room_id"`
	UserID   int        `json:"user_id" db:"user_id"`
	Role     MemberRole `json:"role" db:"role"`
	JoinedAt time.Time  `json:"joined_at" db:"joined_at"`
}

// PrivateChat is the canonical 1:1 pairing. User1ID < User2ID always holds,
// so an unordered pair maps to exactly one row.
type PrivateChat struct {
	ID        int       `json:"id" db:"id"`
	User1ID   int       `json:"user1_id" db:"user1_id"`
	User2ID   int       `json:"user2_id" db:"user2_id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Other returns the pair member that is not userID.
func (pc *PrivateChat) Other(userID int) int {
	if pc.User1ID == userID {
		return pc.User2ID
	}
	return pc.User1ID
}

func (pc *PrivateChat) Has(userID int) bool {
	return pc.User1ID == userID || pc.User2ID == userID
}

// PrivateChatSummary is one row of the user's chat list, seen from the
// caller's side of the pair.
type PrivateChatSummary struct {
	ChatID          int        `json:"chat_id" db:"chat_id"`
	OtherUserID     int        `json:"other_user_id" db:"other_user_id"`
	OtherUsername   string     `json:"other_username" db:"other_username"`
	OtherAvatarPath *string    `json:"other_profile_picture,omitempty" db:"other_profile_picture"`
	OtherIsOnline   bool       `json:"other_is_online" db:"other_is_online"`
	CreatedAt       time.Time  `json:"created_at" db:"created_at"`
	LastMessage     *string    `json:"last_message,omitempty" db:"last_message"`
	LastMessageTime *time.Time `json:"last_message_time,omitempty" db:"last_message_time"`
}

// FileRef is the descriptor produced by the upload collaborator.
type FileRef struct {
	Path     string      `json:"path"`
	Name     string      `json:"name"`
	Size     int64       `json:"size"`
	Category MessageKind `json:"category"`
}

// Message is the canonical persisted record. Exactly one of RoomID and
// RecipientID is set, according to IsPrivate. Author display fields are
// joined in so receivers can render without a second fetch.
type Message struct {
	ID          int         `json:"id" db:"id"`
	UserID      int         `json:"user_id" db:"user_id"`
	RoomID      *int        `json:"room_id,omitempty" db:"room_id"`
	RecipientID *int        `json:"recipient_id,omitempty" db:"recipient_id"`
	Text        string      `json:"message_text" db:"message_text"`
	Kind        MessageKind `json:"message_type" db:"message_type"`
	FilePath    *string     `json:"file_path,omitempty" db:"file_path"`
	FileName    *string     `json:"file_name,omitempty" db:"file_name"`
	FileSize    *int64      `json:"file_size,omitempty" db:"file_size"`
	IsPrivate   bool        `json:"is_private" db:"is_private"`
	CreatedAt   time.Time   `json:"created_at" db:"created_at"`

	Username   string  `json:"username" db:"username"`
	AvatarPath *string `json:"profile_picture,omitempty" db:"profile_picture"`
}

type (
	MessageKind string

	MemberRole string

	EventType string
)

const (
	KindText     MessageKind = "text"
	KindImage    MessageKind = "image"
	KindVideo    MessageKind = "video"
	KindAudio    MessageKind = "audio"
	KindDocument MessageKind = "document"

	RoleMember MemberRole = "member"
	RoleAdmin  MemberRole = "admin"
	RoleOwner  MemberRole = "owner"

	// client frames
	AnnounceType       EventType = "announce"
	SubscribeType      EventType = "subscribe"
	UnsubscribeType    EventType = "unsubscribe"
	PublishMessageType EventType = "publish_message"
	TypingType         EventType = "typing"

	// server pushes
	PresenceType   EventType = "presence"
	NewMessageType EventType = "message"
	ErrorType      EventType = "error"
)

func (k MessageKind) Valid() bool {
	switch k {
	case KindText, KindImage, KindVideo, KindAudio, KindDocument:
		return true
	}
	return false
}

// Channel addresses for the live fan-out. Distinct from the persisted
// Room/PrivateChat entities: private delivery targets the recipient's user
// channel, not the chat id.
func RoomChannel(roomID int) string {
	return fmt.Sprintf("room:%d", roomID)
}

func UserChannel(userID int) string {
	return fmt.Sprintf("user:%d", userID)
}
