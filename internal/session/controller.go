package session

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/superchat/server/internal/domain"
	"github.com/superchat/server/internal/service"
)

const (
	// typing indicators with no follow-up clear themselves after this
	DefaultTypingIdleTimeout = 1000 * time.Millisecond

	renderedSetLimit = 512
)

// HistoryAPI is the request/response side of the protocol, implemented
// over HTTP against the message store.
type HistoryAPI interface {
	ListRoomMessages(ctx context.Context, roomID, page, pageSize int) ([]domain.Message, error)
	ListPrivateMessages(ctx context.Context, chatID, page, pageSize int) ([]domain.Message, error)
	AppendRoomMessage(ctx context.Context, roomID int, in *service.AppendMessageDTO) (*domain.Message, error)
	AppendPrivateMessage(ctx context.Context, chatID int, in *service.AppendMessageDTO) (*domain.Message, error)
}

// LiveChannel is the push side, implemented over the websocket connection.
type LiveChannel interface {
	Subscribe(ctx context.Context, channel string) error
	Unsubscribe(ctx context.Context, channel string) error
	PublishMessage(ctx context.Context, channel string, messageID int) error
	PublishTyping(ctx context.Context, roomID int, isTyping bool) error
}

// Renderer receives what the controller decided to show.
type Renderer interface {
	RenderMessage(msg domain.Message)
	ShowTyping(user domain.User)
	ClearTyping()
}

type TargetKind int

const (
	NoTarget TargetKind = iota
	RoomTargetKind
	PrivateTargetKind
)

type activeTarget struct {
	kind        TargetKind
	roomID      int
	chatID      int
	otherUserID int
}

// Controller merges history fetched from the store with live events from
// the fan-out, rendering each message id at most once per active target.
type Controller struct {
	selfID   int
	history  HistoryAPI
	live     LiveChannel
	renderer Renderer

	typingIdle time.Duration

	mu          sync.Mutex
	target      activeTarget
	rendered    map[int]struct{}
	renderOrder []int
	typingTimer *time.Timer
}

func NewController(selfID int, history HistoryAPI, live LiveChannel, renderer Renderer) *Controller {
	return &Controller{
		selfID:     selfID,
		history:    history,
		live:       live,
		renderer:   renderer,
		typingIdle: DefaultTypingIdleTimeout,
		rendered:   make(map[int]struct{}),
	}
}

// SetTypingIdleTimeout overrides the stale-typing clear delay.
func (c *Controller) SetTypingIdleTimeout(d time.Duration) {
	c.mu.Lock()
	c.typingIdle = d
	c.mu.Unlock()
}

// Start subscribes the controller's own user channel so private messages
// reach it regardless of the active target.
func (c *Controller) Start(ctx context.Context) error {
	return c.live.Subscribe(ctx, domain.UserChannel(c.selfID))
}

// OpenRoom switches the active target to a room: leave the previous live
// channel, pull history once (rendered oldest-first), then subscribe for
// incremental events.
func (c *Controller) OpenRoom(ctx context.Context, roomID int) error {
	c.leaveCurrent(ctx)

	messages, err := c.history.ListRoomMessages(ctx, roomID, 1, service.DefaultPageSize)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.target = activeTarget{kind: RoomTargetKind, roomID: roomID}
	c.resetRenderedLocked()
	for _, msg := range messages {
		c.markRenderedLocked(msg.ID)
	}
	c.mu.Unlock()

	for _, msg := range messages {
		c.renderer.RenderMessage(msg)
	}

	return c.live.Subscribe(ctx, domain.RoomChannel(roomID))
}

// OpenPrivateChat switches to a 1:1 conversation. No extra subscription is
// needed: private events arrive on the own user channel from Start.
func (c *Controller) OpenPrivateChat(ctx context.Context, chatID, otherUserID int) error {
	c.leaveCurrent(ctx)

	messages, err := c.history.ListPrivateMessages(ctx, chatID, 1, service.DefaultPageSize)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.target = activeTarget{kind: PrivateTargetKind, chatID: chatID, otherUserID: otherUserID}
	c.resetRenderedLocked()
	for _, msg := range messages {
		c.markRenderedLocked(msg.ID)
	}
	c.mu.Unlock()

	for _, msg := range messages {
		c.renderer.RenderMessage(msg)
	}
	return nil
}

// SendRoomMessage persists through the store first, renders the returned
// canonical record, then publishes the live event carrying the canonical
// id. A live publish failure never undoes the send: the message is already
// in history.
func (c *Controller) SendRoomMessage(ctx context.Context, roomID int, in *service.AppendMessageDTO) (*domain.Message, error) {
	msg, err := c.history.AppendRoomMessage(ctx, roomID, in)
	if err != nil {
		return nil, err
	}

	c.renderOnce(*msg)

	if err := c.live.PublishMessage(ctx, domain.RoomChannel(roomID), msg.ID); err != nil {
		slog.Warn("Live publish failed, peers will catch up from history", "message_id", msg.ID, "error", err)
	}
	return msg, nil
}

func (c *Controller) SendPrivateMessage(ctx context.Context, chatID int, in *service.AppendMessageDTO) (*domain.Message, error) {
	msg, err := c.history.AppendPrivateMessage(ctx, chatID, in)
	if err != nil {
		return nil, err
	}

	c.renderOnce(*msg)

	if msg.RecipientID != nil {
		if err := c.live.PublishMessage(ctx, domain.UserChannel(*msg.RecipientID), msg.ID); err != nil {
			slog.Warn("Live publish failed, peers will catch up from history", "message_id", msg.ID, "error", err)
		}
	}
	return msg, nil
}

func (c *Controller) NotifyTyping(ctx context.Context, isTyping bool) {
	c.mu.Lock()
	target := c.target
	c.mu.Unlock()

	if target.kind != RoomTargetKind {
		return
	}
	if err := c.live.PublishTyping(ctx, target.roomID, isTyping); err != nil {
		slog.Warn("Failed to send typing signal", "room_id", target.roomID, "error", err)
	}
}

// HandleEvent consumes one envelope from the live channel.
func (c *Controller) HandleEvent(event *service.Envelope) {
	switch event.Type {
	case domain.NewMessageType:
		var me service.MessageEvent
		if err := unmarshalData(event, &me); err != nil {
			slog.Warn("Malformed message event", "error", err)
			return
		}
		c.handleMessage(me.Message)

	case domain.TypingType:
		var te service.TypingEvent
		if err := unmarshalData(event, &te); err != nil {
			slog.Warn("Malformed typing event", "error", err)
			return
		}
		c.handleTyping(te)

	case domain.PresenceType:
		// presence feeds the user list, not the message pane; nothing to
		// dedupe here

	default:
		slog.Warn("Unknown event type", "type", event.Type)
	}
}

func (c *Controller) handleMessage(msg domain.Message) {
	c.mu.Lock()

	if !c.belongsToTargetLocked(msg) {
		c.mu.Unlock()
		return
	}
	if _, seen := c.rendered[msg.ID]; seen {
		c.mu.Unlock()
		return
	}
	c.markRenderedLocked(msg.ID)
	c.mu.Unlock()

	c.renderer.RenderMessage(msg)
}

func (c *Controller) handleTyping(te service.TypingEvent) {
	c.mu.Lock()
	if c.target.kind != RoomTargetKind || c.target.roomID != te.RoomID || te.User.ID == c.selfID {
		c.mu.Unlock()
		return
	}

	if c.typingTimer != nil {
		c.typingTimer.Stop()
		c.typingTimer = nil
	}

	// render before arming the timer, so an immediately firing clear can
	// never race ahead of the show it is supposed to undo
	if te.IsTyping {
		c.renderer.ShowTyping(te.User)
		c.typingTimer = time.AfterFunc(c.typingIdle, func() {
			c.mu.Lock()
			c.typingTimer = nil
			c.mu.Unlock()
			c.renderer.ClearTyping()
		})
	} else {
		c.renderer.ClearTyping()
	}
	c.mu.Unlock()
}

func (c *Controller) leaveCurrent(ctx context.Context) {
	c.mu.Lock()
	target := c.target
	c.target = activeTarget{}
	if c.typingTimer != nil {
		c.typingTimer.Stop()
		c.typingTimer = nil
	}
	c.mu.Unlock()

	if target.kind == RoomTargetKind {
		if err := c.live.Unsubscribe(ctx, domain.RoomChannel(target.roomID)); err != nil {
			slog.Warn("Failed to unsubscribe", "room_id", target.roomID, "error", err)
		}
	}
}

func (c *Controller) renderOnce(msg domain.Message) {
	c.mu.Lock()
	if _, seen := c.rendered[msg.ID]; seen {
		c.mu.Unlock()
		return
	}
	c.markRenderedLocked(msg.ID)
	c.mu.Unlock()

	c.renderer.RenderMessage(msg)
}

// caller holds c.mu
func (c *Controller) belongsToTargetLocked(msg domain.Message) bool {
	switch c.target.kind {
	case RoomTargetKind:
		return !msg.IsPrivate && msg.RoomID != nil && *msg.RoomID == c.target.roomID
	case PrivateTargetKind:
		if !msg.IsPrivate || msg.RecipientID == nil {
			return false
		}
		other := c.target.otherUserID
		return (msg.UserID == other && *msg.RecipientID == c.selfID) ||
			(msg.UserID == c.selfID && *msg.RecipientID == other)
	default:
		return false
	}
}

// caller holds c.mu
func (c *Controller) markRenderedLocked(messageID int) {
	if _, ok := c.rendered[messageID]; ok {
		return
	}
	c.rendered[messageID] = struct{}{}
	c.renderOrder = append(c.renderOrder, messageID)

	if len(c.renderOrder) > renderedSetLimit {
		oldest := c.renderOrder[0]
		c.renderOrder = c.renderOrder[1:]
		delete(c.rendered, oldest)
	}
}

// caller holds c.mu
func (c *Controller) resetRenderedLocked() {
	c.rendered = make(map[int]struct{})
	c.renderOrder = nil
}

func unmarshalData(event *service.Envelope, out any) error {
	return json.Unmarshal(event.Data, out)
}
