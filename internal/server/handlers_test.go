package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/superchat/server/internal/domain"
	"github.com/superchat/server/internal/service"
	"github.com/superchat/server/internal/utils"
)

const testSecret = "test-secret"

type stubMsgService struct {
	rooms    []domain.Room
	messages []domain.Message
	chats    []domain.PrivateChatSummary

	joinErr   error
	appendErr error

	lastPage     int
	lastPageSize int
	joinedRoom   int
}

func (s *stubMsgService) AppendRoomMessage(_ context.Context, userID, roomID int, in *service.AppendMessageDTO) (*domain.Message, error) {
	if s.appendErr != nil {
		return nil, s.appendErr
	}
	return &domain.Message{ID: 101, UserID: userID, RoomID: &roomID, Text: in.Text, Kind: domain.KindText}, nil
}

func (s *stubMsgService) AppendPrivateMessage(_ context.Context, userID, _ int, in *service.AppendMessageDTO) (*domain.Message, error) {
	if s.appendErr != nil {
		return nil, s.appendErr
	}
	recipient := 2
	return &domain.Message{ID: 102, UserID: userID, RecipientID: &recipient, Text: in.Text, Kind: domain.KindText, IsPrivate: true}, nil
}

func (s *stubMsgService) ListRoomMessages(_ context.Context, _, _, page, pageSize int) ([]domain.Message, error) {
	s.lastPage, s.lastPageSize = page, pageSize
	return s.messages, nil
}

func (s *stubMsgService) ListPrivateMessages(_ context.Context, _, _, page, pageSize int) ([]domain.Message, error) {
	s.lastPage, s.lastPageSize = page, pageSize
	return s.messages, nil
}

func (s *stubMsgService) GetOrCreatePrivateChat(_ context.Context, userID, otherUserID int) (*domain.PrivateChat, error) {
	u1, u2 := userID, otherUserID
	if u2 < u1 {
		u1, u2 = u2, u1
	}
	return &domain.PrivateChat{ID: 7, User1ID: u1, User2ID: u2}, nil
}

func (s *stubMsgService) JoinRoom(_ context.Context, _, roomID int) error {
	if s.joinErr != nil {
		return s.joinErr
	}
	s.joinedRoom = roomID
	return nil
}

func (s *stubMsgService) ListRooms(_ context.Context) ([]domain.Room, error) {
	return s.rooms, nil
}

func (s *stubMsgService) ListPrivateChats(_ context.Context, _ int) ([]domain.PrivateChatSummary, error) {
	return s.chats, nil
}

func (s *stubMsgService) GetMessage(_ context.Context, messageID int) (*domain.Message, error) {
	return &domain.Message{ID: messageID}, nil
}

func (s *stubMsgService) GetUser(_ context.Context, userID int) (*domain.User, error) {
	return &domain.User{ID: userID, Username: "bob"}, nil
}

type stubPresenceService struct {
	online []domain.User
}

func (s *stubPresenceService) MarkOnline(_ context.Context, _ int) error  { return nil }
func (s *stubPresenceService) MarkOffline(_ context.Context, _ int) error { return nil }
func (s *stubPresenceService) Refresh(_ context.Context, _ int) error     { return nil }
func (s *stubPresenceService) ListOnlineUsers(_ context.Context, _ int) ([]domain.User, error) {
	return s.online, nil
}

func newTestServer(msgSrv *stubMsgService, presenceSrv *stubPresenceService) *Server {
	s := &Server{router: http.NewServeMux()}
	h := NewHandler(msgSrv, presenceSrv, nil)
	s.setupRoutes(h, testSecret)
	return s
}

func authToken(t *testing.T, userID int) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, utils.AccessClaims{
		UserID:   userID,
		Username: "alice",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	signed, err := token.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

func doRequest(t *testing.T, s *Server, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.Error.Code
}

func TestRoutesRequireAuth(t *testing.T) {
	s := newTestServer(&stubMsgService{}, &stubPresenceService{})

	rec := doRequest(t, s, http.MethodGet, "/rooms", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, domain.ErrUnauthorizedError.Code, errorCode(t, rec))
}

func TestRoutesRejectBadToken(t *testing.T) {
	s := newTestServer(&stubMsgService{}, &stubPresenceService{})

	rec := doRequest(t, s, http.MethodGet, "/rooms", "not-a-jwt", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, domain.ErrInvalidToken.Code, errorCode(t, rec))
}

func TestListRooms(t *testing.T) {
	msgSrv := &stubMsgService{rooms: []domain.Room{{ID: 1, Name: "General"}, {ID: 2, Name: "Music"}}}
	s := newTestServer(msgSrv, &stubPresenceService{})

	rec := doRequest(t, s, http.MethodGet, "/rooms", authToken(t, 1), "")
	require.Equal(t, http.StatusOK, rec.Code)

	var rooms []domain.Room
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rooms))
	require.Len(t, rooms, 2)
	assert.Equal(t, "General", rooms[0].Name)
}

func TestJoinRoom(t *testing.T) {
	msgSrv := &stubMsgService{}
	s := newTestServer(msgSrv, &stubPresenceService{})

	rec := doRequest(t, s, http.MethodPost, "/rooms/3/join", authToken(t, 1), "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 3, msgSrv.joinedRoom)
}

func TestJoinRoomNotFound(t *testing.T) {
	msgSrv := &stubMsgService{joinErr: domain.ErrNotFound}
	s := newTestServer(msgSrv, &stubPresenceService{})

	rec := doRequest(t, s, http.MethodPost, "/rooms/99/join", authToken(t, 1), "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, domain.ErrNotFound.Code, errorCode(t, rec))
}

func TestListRoomMessagesBadRoomID(t *testing.T) {
	s := newTestServer(&stubMsgService{}, &stubPresenceService{})

	rec := doRequest(t, s, http.MethodGet, "/rooms/abc/messages", authToken(t, 1), "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListRoomMessagesPassesPagination(t *testing.T) {
	msgSrv := &stubMsgService{}
	s := newTestServer(msgSrv, &stubPresenceService{})

	rec := doRequest(t, s, http.MethodGet, "/rooms/1/messages?page=3&page_size=10", authToken(t, 1), "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 3, msgSrv.lastPage)
	assert.Equal(t, 10, msgSrv.lastPageSize)
}

func TestAppendRoomMessage(t *testing.T) {
	s := newTestServer(&stubMsgService{}, &stubPresenceService{})

	rec := doRequest(t, s, http.MethodPost, "/rooms/1/messages", authToken(t, 1), `{"message_text":"hello"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	var msg domain.Message
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &msg))
	assert.Equal(t, 101, msg.ID)
	assert.Equal(t, "hello", msg.Text)
}

func TestAppendRoomMessageForbidden(t *testing.T) {
	msgSrv := &stubMsgService{appendErr: domain.ErrForbidden}
	s := newTestServer(msgSrv, &stubPresenceService{})

	rec := doRequest(t, s, http.MethodPost, "/rooms/1/messages", authToken(t, 1), `{"message_text":"hello"}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, domain.ErrForbidden.Code, errorCode(t, rec))
}

func TestAppendRoomMessageBadBody(t *testing.T) {
	s := newTestServer(&stubMsgService{}, &stubPresenceService{})

	rec := doRequest(t, s, http.MethodPost, "/rooms/1/messages", authToken(t, 1), "{broken")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreatePrivateChatReturnsOtherUser(t *testing.T) {
	s := newTestServer(&stubMsgService{}, &stubPresenceService{})

	rec := doRequest(t, s, http.MethodPost, "/private/2", authToken(t, 1), "")
	require.Equal(t, http.StatusOK, rec.Code)

	var chat PrivateChatJSON
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &chat))
	assert.Equal(t, 7, chat.ChatID)
	assert.Equal(t, 2, chat.OtherUser.ID)
	assert.Equal(t, "bob", chat.OtherUser.Username)
}

func TestAppendPrivateMessage(t *testing.T) {
	s := newTestServer(&stubMsgService{}, &stubPresenceService{})

	rec := doRequest(t, s, http.MethodPost, "/private/7/messages", authToken(t, 1), `{"message_text":"psst"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	var msg domain.Message
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &msg))
	assert.True(t, msg.IsPrivate)
}

func TestOnlineUsers(t *testing.T) {
	presence := &stubPresenceService{online: []domain.User{{ID: 2, Username: "bob", IsOnline: true}}}
	s := newTestServer(&stubMsgService{}, presence)

	rec := doRequest(t, s, http.MethodGet, "/users/online", authToken(t, 1), "")
	require.Equal(t, http.StatusOK, rec.Code)

	var users []domain.User
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &users))
	require.Len(t, users, 1)
	assert.Equal(t, "bob", users[0].Username)
}
