package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/superchat/server/internal/domain"
	"github.com/superchat/server/internal/service"
)

type Handler struct {
	msgSrv      service.MessageServiceIn
	presenceSrv service.PresenceServiceIn
	hub         *service.Hub
	upgrader    *websocket.Upgrader
}

func NewHandler(msgSrv service.MessageServiceIn, presenceSrv service.PresenceServiceIn, hub *service.Hub) *Handler {
	return &Handler{
		msgSrv:      msgSrv,
		presenceSrv: presenceSrv,
		hub:         hub,
		upgrader: &websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferPool: &sync.Pool{},
		},
	}
}

// handleWS upgrades the connection and hands it to the hub. Identity is not
// known yet: the connection stays unusable until a valid announce frame.
func (h *Handler) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		handleError(w, err)
		return
	}

	client := service.NewClient(conn, h.hub)
	h.hub.HandleConn(r.Context(), client)
}

func (h *Handler) handleListRooms(w http.ResponseWriter, r *http.Request) {
	rooms, err := h.msgSrv.ListRooms(r.Context())
	if err != nil {
		handleError(w, err)
		return
	}
	writeJSON(w, 200, rooms)
}

func (h *Handler) handleJoinRoom(w http.ResponseWriter, r *http.Request) {
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		handleError(w, domain.ErrUnauthorizedError)
		return
	}

	roomID, err := strconv.Atoi(r.PathValue("room_id"))
	if err != nil {
		handleError(w, domain.ErrInvalidRequest)
		return
	}

	if err := h.msgSrv.JoinRoom(r.Context(), userID, roomID); err != nil {
		handleError(w, err)
		return
	}
	writeJSON(w, 200, &JoinedRoomJSON{Message: "Joined the room"})
}

func (h *Handler) handleListRoomMessages(w http.ResponseWriter, r *http.Request) {
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		handleError(w, domain.ErrUnauthorizedError)
		return
	}

	roomID, err := strconv.Atoi(r.PathValue("room_id"))
	if err != nil {
		handleError(w, domain.ErrInvalidRequest)
		return
	}

	page, pageSize := paginationParams(r)

	messages, err := h.msgSrv.ListRoomMessages(r.Context(), userID, roomID, page, pageSize)
	if err != nil {
		handleError(w, err)
		return
	}
	writeJSON(w, 200, messages)
}

func (h *Handler) handleAppendRoomMessage(w http.ResponseWriter, r *http.Request) {
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		handleError(w, domain.ErrUnauthorizedError)
		return
	}

	roomID, err := strconv.Atoi(r.PathValue("room_id"))
	if err != nil {
		handleError(w, domain.ErrInvalidRequest)
		return
	}

	var in AppendMessageJSON
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		handleError(w, domain.ErrInvalidRequest)
		return
	}

	msg, err := h.msgSrv.AppendRoomMessage(r.Context(), userID, roomID, &service.AppendMessageDTO{
		Text: in.Text,
		Kind: in.Kind,
		File: in.File,
	})
	if err != nil {
		handleError(w, err)
		return
	}
	writeJSON(w, 201, msg)
}

func (h *Handler) handleListPrivateChats(w http.ResponseWriter, r *http.Request) {
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		handleError(w, domain.ErrUnauthorizedError)
		return
	}

	chats, err := h.msgSrv.ListPrivateChats(r.Context(), userID)
	if err != nil {
		handleError(w, err)
		return
	}
	writeJSON(w, 200, chats)
}

func (h *Handler) handleCreatePrivateChat(w http.ResponseWriter, r *http.Request) {
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		handleError(w, domain.ErrUnauthorizedError)
		return
	}

	otherUserID, err := strconv.Atoi(r.PathValue("user_id"))
	if err != nil {
		handleError(w, domain.ErrInvalidRequest)
		return
	}

	chat, err := h.msgSrv.GetOrCreatePrivateChat(r.Context(), userID, otherUserID)
	if err != nil {
		handleError(w, err)
		return
	}

	other, err := h.msgSrv.GetUser(r.Context(), chat.Other(userID))
	if err != nil {
		handleError(w, err)
		return
	}

	writeJSON(w, 200, &PrivateChatJSON{
		ChatID: chat.ID,
		OtherUser: OtherUser{
			ID:       other.ID,
			Username: other.Username,
		},
	})
}

func (h *Handler) handleListPrivateMessages(w http.ResponseWriter, r *http.Request) {
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		handleError(w, domain.ErrUnauthorizedError)
		return
	}

	chatID, err := strconv.Atoi(r.PathValue("chat_id"))
	if err != nil {
		handleError(w, domain.ErrInvalidRequest)
		return
	}

	page, pageSize := paginationParams(r)

	messages, err := h.msgSrv.ListPrivateMessages(r.Context(), userID, chatID, page, pageSize)
	if err != nil {
		handleError(w, err)
		return
	}
	writeJSON(w, 200, messages)
}

func (h *Handler) handleAppendPrivateMessage(w http.ResponseWriter, r *http.Request) {
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		handleError(w, domain.ErrUnauthorizedError)
		return
	}

	chatID, err := strconv.Atoi(r.PathValue("chat_id"))
	if err != nil {
		handleError(w, domain.ErrInvalidRequest)
		return
	}

	var in AppendMessageJSON
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		handleError(w, domain.ErrInvalidRequest)
		return
	}

	msg, err := h.msgSrv.AppendPrivateMessage(r.Context(), userID, chatID, &service.AppendMessageDTO{
		Text: in.Text,
		Kind: in.Kind,
		File: in.File,
	})
	if err != nil {
		handleError(w, err)
		return
	}
	writeJSON(w, 201, msg)
}

func (h *Handler) handleOnlineUsers(w http.ResponseWriter, r *http.Request) {
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		handleError(w, domain.ErrUnauthorizedError)
		return
	}

	users, err := h.presenceSrv.ListOnlineUsers(r.Context(), userID)
	if err != nil {
		handleError(w, err)
		return
	}
	writeJSON(w, 200, users)
}

func paginationParams(r *http.Request) (int, int) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	pageSize, _ := strconv.Atoi(r.URL.Query().Get("page_size"))
	return page, pageSize
}
