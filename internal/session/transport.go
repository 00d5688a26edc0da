package session

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/superchat/server/internal/domain"
	"github.com/superchat/server/internal/service"
)

// RestHistory implements HistoryAPI against the server's HTTP surface.
type RestHistory struct {
	baseURL string
	token   string
	client  *http.Client
}

func NewRestHistory(baseURL, token string) *RestHistory {
	return &RestHistory{
		baseURL: baseURL,
		token:   token,
		client:  &http.Client{},
	}
}

func (rh *RestHistory) ListRoomMessages(ctx context.Context, roomID, page, pageSize int) ([]domain.Message, error) {
	url := fmt.Sprintf("%s/rooms/%d/messages?page=%d&page_size=%d", rh.baseURL, roomID, page, pageSize)

	var messages []domain.Message
	if err := rh.do(ctx, http.MethodGet, url, nil, &messages); err != nil {
		return nil, err
	}
	return messages, nil
}

func (rh *RestHistory) ListPrivateMessages(ctx context.Context, chatID, page, pageSize int) ([]domain.Message, error) {
	url := fmt.Sprintf("%s/private/%d/messages?page=%d&page_size=%d", rh.baseURL, chatID, page, pageSize)

	var messages []domain.Message
	if err := rh.do(ctx, http.MethodGet, url, nil, &messages); err != nil {
		return nil, err
	}
	return messages, nil
}

func (rh *RestHistory) AppendRoomMessage(ctx context.Context, roomID int, in *service.AppendMessageDTO) (*domain.Message, error) {
	url := fmt.Sprintf("%s/rooms/%d/messages", rh.baseURL, roomID)
	return rh.append(ctx, url, in)
}

func (rh *RestHistory) AppendPrivateMessage(ctx context.Context, chatID int, in *service.AppendMessageDTO) (*domain.Message, error) {
	url := fmt.Sprintf("%s/private/%d/messages", rh.baseURL, chatID)
	return rh.append(ctx, url, in)
}

func (rh *RestHistory) JoinRoom(ctx context.Context, roomID int) error {
	url := fmt.Sprintf("%s/rooms/%d/join", rh.baseURL, roomID)
	return rh.do(ctx, http.MethodPost, url, nil, nil)
}

func (rh *RestHistory) append(ctx context.Context, url string, in *service.AppendMessageDTO) (*domain.Message, error) {
	body := map[string]any{
		"message_text": in.Text,
		"message_type": in.Kind,
	}
	if in.File != nil {
		body["file"] = in.File
	}

	var msg domain.Message
	if err := rh.do(ctx, http.MethodPost, url, body, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

func (rh *RestHistory) do(ctx context.Context, method, url string, body, out any) error {
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+rh.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := rh.client.Do(req)
	if err != nil {
		return domain.ErrUnavailable.WithMessage(err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var envelope struct {
			Error domain.AppError `json:"error"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
			return domain.ErrInternalServerError
		}
		envelope.Error.Status = resp.StatusCode
		return &envelope.Error
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// WSLive implements LiveChannel over one websocket connection. A mutex
// serializes outbound frames; inbound events are pumped to a handler via
// Listen.
type WSLive struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func DialLive(ctx context.Context, wsURL string) (*WSLive, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return nil, err
	}
	return &WSLive{conn: conn}, nil
}

// Announce must run first: the server ignores everything else until the
// identity is bound.
func (wl *WSLive) Announce(ctx context.Context, token string) error {
	return wl.write(domain.AnnounceType, service.AnnounceFrame{Token: token})
}

func (wl *WSLive) Subscribe(ctx context.Context, channel string) error {
	return wl.write(domain.SubscribeType, service.SubscribeFrame{Channel: channel})
}

func (wl *WSLive) Unsubscribe(ctx context.Context, channel string) error {
	return wl.write(domain.UnsubscribeType, service.SubscribeFrame{Channel: channel})
}

func (wl *WSLive) PublishMessage(ctx context.Context, channel string, messageID int) error {
	return wl.write(domain.PublishMessageType, service.PublishMessageFrame{
		Channel:   channel,
		MessageID: messageID,
	})
}

func (wl *WSLive) PublishTyping(ctx context.Context, roomID int, isTyping bool) error {
	return wl.write(domain.TypingType, service.TypingFrame{
		RoomID:   roomID,
		IsTyping: isTyping,
	})
}

// Listen pumps inbound events into handle until the connection or the
// context dies.
func (wl *WSLive) Listen(ctx context.Context, handle func(*service.Envelope)) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			var event service.Envelope
			if err := wl.conn.ReadJSON(&event); err != nil {
				return err
			}
			handle(&event)
		}
	}
}

func (wl *WSLive) Close() error {
	return wl.conn.Close()
}

func (wl *WSLive) write(eventType domain.EventType, payload any) error {
	event, err := service.NewEnvelope(eventType, payload)
	if err != nil {
		return err
	}

	wl.mu.Lock()
	defer wl.mu.Unlock()
	return wl.conn.WriteJSON(event)
}
