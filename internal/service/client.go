package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/superchat/server/internal/domain"
	"github.com/superchat/server/internal/utils"
	"golang.org/x/sync/errgroup"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	sendBufferSize = 64
)

// Client is one live connection. Lifecycle: Connecting (no identity) until
// a valid announce frame arrives, then Announced, then subscribed to zero
// or more channels, then Closed. Never persisted.
type Client struct {
	id            uuid.UUID
	conn          *websocket.Conn
	send          chan *Envelope
	subscriptions map[string]struct{}
	hub           *Hub

	// set once by Hub.Announce under the hub lock
	user *domain.User
}

func NewClient(conn *websocket.Conn, hub *Hub) *Client {
	client := &Client{
		id:            uuid.New(),
		conn:          conn,
		send:          make(chan *Envelope, sendBufferSize),
		subscriptions: make(map[string]struct{}),
		hub:           hub,
	}

	hub.register(client)
	return client
}

// User returns the announced identity, nil while still Connecting.
func (c *Client) User() *domain.User {
	c.hub.mu.RLock()
	defer c.hub.mu.RUnlock()
	return c.user
}

// trySend queues an event for the write pump. Slow consumers lose events
// rather than stall the publisher.
func (c *Client) trySend(event *Envelope) {
	select {
	case c.send <- event:
	default:
		slog.Warn("Dropping event for slow consumer", "conn_id", c.id, "event", event.Type)
	}
}

// HandleConn runs the connection's read and write pumps until either side
// fails, then unregisters the connection.
func (h *Hub) HandleConn(ctx context.Context, client *Client) {
	defer func() {
		h.Close(context.WithoutCancel(ctx), client)
		client.conn.Close()
	}()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return h.read(ctx, client)
	})

	g.Go(func() error {
		return h.write(ctx, client)
	})

	err := g.Wait()
	if err != nil && err != context.Canceled {
		slog.Error("Error during handle conn", "conn_id", client.id, "error", err)
	}
}

func (h *Hub) read(ctx context.Context, client *Client) error {
	client.conn.SetReadDeadline(time.Now().Add(pongWait))
	client.conn.SetPongHandler(func(string) error {
		client.conn.SetReadDeadline(time.Now().Add(pongWait))

		if user := client.User(); user != nil {
			if err := h.presence.Refresh(ctx, user.ID); err != nil {
				slog.Warn("Failed to refresh presence", "user_id", user.ID, "error", err)
			}
		}
		return nil
	})

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			var frame Envelope
			if err := client.conn.ReadJSON(&frame); err != nil {
				if websocket.IsUnexpectedCloseError(err,
					websocket.CloseGoingAway,
					websocket.CloseAbnormalClosure,
					websocket.CloseNoStatusReceived,
					websocket.CloseNormalClosure) {
					slog.Error("Websocket close error", "conn_id", client.id, "error", err)
				}
				return context.Canceled
			}

			if err := h.dispatch(ctx, client, &frame); err != nil {
				if frame.Type == domain.AnnounceType {
					// an unauthenticated connection gets no second chance
					return err
				}
				client.sendError(err)
			}
		}
	}
}

func (h *Hub) dispatch(ctx context.Context, client *Client, frame *Envelope) error {
	switch frame.Type {
	case domain.AnnounceType:
		var announce AnnounceFrame
		if err := json.Unmarshal(frame.Data, &announce); err != nil {
			return domain.ErrInvalidRequest
		}

		claims, err := utils.ValidateAccessToken(announce.Token, h.jwtSecret)
		if err != nil {
			return err
		}

		user, err := h.userRepo.GetUser(ctx, claims.UserID)
		if err != nil {
			return domain.ErrInvalidToken
		}
		return h.Announce(ctx, client, user)

	case domain.SubscribeType:
		var sub SubscribeFrame
		if err := json.Unmarshal(frame.Data, &sub); err != nil {
			return domain.ErrInvalidRequest
		}
		return h.Subscribe(ctx, client, sub.Channel)

	case domain.UnsubscribeType:
		var sub SubscribeFrame
		if err := json.Unmarshal(frame.Data, &sub); err != nil {
			return domain.ErrInvalidRequest
		}
		h.Unsubscribe(client, sub.Channel)
		return nil

	case domain.PublishMessageType:
		var pub PublishMessageFrame
		if err := json.Unmarshal(frame.Data, &pub); err != nil {
			return domain.ErrInvalidRequest
		}
		return h.PublishMessage(ctx, client, &pub)

	case domain.TypingType:
		var typing TypingFrame
		if err := json.Unmarshal(frame.Data, &typing); err != nil {
			return domain.ErrInvalidRequest
		}
		return h.PublishTyping(ctx, client, &typing)

	default:
		slog.Warn("Unknown frame type", "conn_id", client.id, "type", frame.Type)
		return domain.ErrInvalidRequest.WithMessage("Unknown frame type")
	}
}

func (h *Hub) write(ctx context.Context, client *Client) error {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			client.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := client.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return err
			}
		case event, ok := <-client.send:
			if !ok {
				return nil
			}

			client.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := client.conn.WriteJSON(event); err != nil {
				slog.Error("Failed to write event", "conn_id", client.id, "error", err)
				return err
			}
		}
	}
}

func (c *Client) sendError(err error) {
	appErr, ok := err.(*domain.AppError)
	if !ok {
		appErr = domain.ErrInternalServerError
	}

	event, mErr := NewEnvelope(domain.ErrorType, appErr)
	if mErr != nil {
		return
	}
	c.trySend(event)
}
