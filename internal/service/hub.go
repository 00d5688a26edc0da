package service

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/superchat/server/internal/domain"
)

// Hub is the process-wide connection registry and channel fan-out. One
// mutex guards all of its maps; nothing blocking runs under it — access
// checks and store lookups happen before the lock is taken. The registry
// is rebuilt from nothing on restart: clients re-announce and re-subscribe.
type Hub struct {
	mu       sync.RWMutex
	conns    map[uuid.UUID]*Client
	byUser   map[int]map[uuid.UUID]*Client
	channels map[string]map[uuid.UUID]*Client

	access   AccessValidatorIn
	presence PresenceServiceIn
	messages MessageServiceIn
	userRepo UserRepoIn

	jwtSecret string
}

func NewHub(access AccessValidatorIn, presence PresenceServiceIn, messages MessageServiceIn, userRepo UserRepoIn, jwtSecret string) *Hub {
	return &Hub{
		conns:     make(map[uuid.UUID]*Client),
		byUser:    make(map[int]map[uuid.UUID]*Client),
		channels:  make(map[string]map[uuid.UUID]*Client),
		access:    access,
		presence:  presence,
		messages:  messages,
		userRepo:  userRepo,
		jwtSecret: jwtSecret,
	}
}

func (h *Hub) register(client *Client) {
	h.mu.Lock()
	h.conns[client.id] = client
	h.mu.Unlock()

	slog.Info("Connection opened", "conn_id", client.id)
}

// Announce binds an identity to the connection, marks the durable online
// flag and tells everyone else the user joined. A connection announces at
// most once: rebinding would leave the first identity owning a phantom
// entry in byUser.
func (h *Hub) Announce(ctx context.Context, client *Client, user *domain.User) error {
	if client.User() != nil {
		return domain.ErrInvalidRequest.WithMessage("Connection already announced")
	}

	if err := h.presence.MarkOnline(ctx, user.ID); err != nil {
		return err
	}

	h.mu.Lock()
	client.user = user
	if h.byUser[user.ID] == nil {
		h.byUser[user.ID] = make(map[uuid.UUID]*Client)
	}
	h.byUser[user.ID][client.id] = client
	h.mu.Unlock()

	slog.Info("User announced", "conn_id", client.id, "user_id", user.ID)

	event, err := NewEnvelope(domain.PresenceType, PresenceEvent{User: *user, Online: true})
	if err != nil {
		return err
	}
	h.broadcast(event, client.id)
	return nil
}

// Subscribe re-validates access on every call instead of trusting a prior
// REST join: rooms require membership, user channels belong to their owner.
func (h *Hub) Subscribe(ctx context.Context, client *Client, channel string) error {
	user := client.User()
	if user == nil {
		return domain.ErrUnauthorizedError
	}

	kind, id, err := ParseChannel(channel)
	if err != nil {
		return domain.ErrInvalidRequest.WithMessage(err.Error())
	}

	switch kind {
	case RoomChannelKind:
		if err := h.access.CanRead(ctx, user.ID, Room(id)); err != nil {
			return err
		}
	case UserChannelKind:
		if id != user.ID {
			return domain.ErrForbidden.WithMessage("You can only subscribe to your own channel")
		}
	}

	h.mu.Lock()
	if h.channels[channel] == nil {
		h.channels[channel] = make(map[uuid.UUID]*Client)
	}
	h.channels[channel][client.id] = client
	client.subscriptions[channel] = struct{}{}
	h.mu.Unlock()

	slog.Info("Subscribed", "conn_id", client.id, "channel", channel)
	return nil
}

func (h *Hub) Unsubscribe(client *Client, channel string) {
	h.mu.Lock()
	h.dropSubscription(client, channel)
	h.mu.Unlock()
}

// PublishMessage fans out the canonical persisted record for a message the
// sender already appended through the store. The record is loaded by id, so
// a connection cannot publish content it never persisted, and CanAppend is
// re-checked against the channel.
func (h *Hub) PublishMessage(ctx context.Context, client *Client, frame *PublishMessageFrame) error {
	user := client.User()
	if user == nil {
		return domain.ErrUnauthorizedError
	}

	kind, id, err := ParseChannel(frame.Channel)
	if err != nil {
		return domain.ErrInvalidRequest.WithMessage(err.Error())
	}

	msg, err := h.messages.GetMessage(ctx, frame.MessageID)
	if err != nil {
		return err
	}
	if msg.UserID != user.ID {
		return domain.ErrForbidden.WithMessage("You can only publish your own messages")
	}

	switch kind {
	case RoomChannelKind:
		if msg.RoomID == nil || *msg.RoomID != id {
			return domain.ErrInvalidRequest.WithMessage("Message does not belong to this channel")
		}
		if err := h.access.CanAppend(ctx, user.ID, Room(id)); err != nil {
			return err
		}
	case UserChannelKind:
		if !msg.IsPrivate || msg.RecipientID == nil || *msg.RecipientID != id {
			return domain.ErrInvalidRequest.WithMessage("Message does not belong to this channel")
		}
	}

	event, err := NewEnvelope(domain.NewMessageType, MessageEvent{Channel: frame.Channel, Message: *msg})
	if err != nil {
		return err
	}

	// the sender renders its own copy from the append response
	h.publish(frame.Channel, event, client.id)
	return nil
}

// PublishTyping fans out an ephemeral typing signal. Never persisted, no
// acknowledgement, silently dropped for offline peers.
func (h *Hub) PublishTyping(ctx context.Context, client *Client, frame *TypingFrame) error {
	user := client.User()
	if user == nil {
		return domain.ErrUnauthorizedError
	}

	if err := h.access.CanRead(ctx, user.ID, Room(frame.RoomID)); err != nil {
		return err
	}

	event, err := NewEnvelope(domain.TypingType, TypingEvent{
		RoomID:   frame.RoomID,
		User:     *user,
		IsTyping: frame.IsTyping,
	})
	if err != nil {
		return err
	}

	h.publish(domain.RoomChannel(frame.RoomID), event, client.id)
	return nil
}

// Close removes the connection and its subscriptions. When the identity's
// last connection goes, the durable flag flips and presence:left goes out.
func (h *Hub) Close(ctx context.Context, client *Client) {
	h.mu.Lock()
	delete(h.conns, client.id)
	for channel := range client.subscriptions {
		h.dropSubscription(client, channel)
	}

	user := client.user
	lastConn := false
	if user != nil {
		delete(h.byUser[user.ID], client.id)
		if len(h.byUser[user.ID]) == 0 {
			delete(h.byUser, user.ID)
			lastConn = true
		}
	}
	// closed under the lock so no concurrent publish can hit a closed
	// channel; after this the connection is out of every map
	close(client.send)
	h.mu.Unlock()

	slog.Info("Connection closed", "conn_id", client.id)

	if !lastConn {
		return
	}

	if err := h.presence.MarkOffline(ctx, user.ID); err != nil {
		slog.Error("Failed to mark user offline", "user_id", user.ID, "error", err)
	}

	event, err := NewEnvelope(domain.PresenceType, PresenceEvent{User: *user, Online: false})
	if err != nil {
		slog.Error("Failed to build presence event", "error", err)
		return
	}
	h.broadcast(event, client.id)
}

// IsOnline reports whether the identity owns at least one live connection.
func (h *Hub) IsOnline(userID int) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.byUser[userID]) > 0
}

// publish delivers to every connection subscribed to channel, except the
// excluded one. Within a channel, publish order is delivery order;
// connections with a full outbound buffer are skipped, best effort.
func (h *Hub) publish(channel string, event *Envelope, exclude uuid.UUID) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for id, peer := range h.channels[channel] {
		if id == exclude {
			continue
		}
		peer.trySend(event)
	}
}

// broadcast delivers to every announced connection except the excluded one.
func (h *Hub) broadcast(event *Envelope, exclude uuid.UUID) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for id, peer := range h.conns {
		if id == exclude || peer.user == nil {
			continue
		}
		peer.trySend(event)
	}
}

// caller holds h.mu
func (h *Hub) dropSubscription(client *Client, channel string) {
	delete(client.subscriptions, channel)
	if subs := h.channels[channel]; subs != nil {
		delete(subs, client.id)
		if len(subs) == 0 {
			delete(h.channels, channel)
		}
	}
}
