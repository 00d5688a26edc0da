package server

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/superchat/server/internal/config"
	"github.com/superchat/server/internal/repository"
	"github.com/superchat/server/internal/repository/cache"
	"github.com/superchat/server/internal/repository/database"
	"github.com/superchat/server/internal/service"
)

const presenceTTL = 90 * time.Second

type Option func(*Server)

func WithMigrateDown(m func() error) Option {
	return func(s *Server) {
		s.migrateDown = m
	}
}

type Server struct {
	router      *http.ServeMux
	migrateDown func() error
}

func NewServer(cfg *config.Config, opts ...Option) *Server {
	s := &Server{
		router: http.NewServeMux(),
	}

	for _, opt := range opts {
		opt(s)
	}

	userRepo := repository.NewUserRepo(database.Client())
	roomRepo := repository.NewRoomRepo(database.Client())
	chatRepo := repository.NewChatRepo(database.Client())
	msgRepo := repository.NewMessageRepo(database.Client())
	presenceRepo := repository.NewPresenceRepo(cache.Client(), presenceTTL)

	access := service.NewAccessService(roomRepo, chatRepo)
	msgService := service.NewMessageService(access, userRepo, roomRepo, chatRepo, msgRepo)
	presenceService := service.NewPresenceService(userRepo, presenceRepo)
	hub := service.NewHub(access, presenceService, msgService, userRepo, cfg.JWT.Secret)

	h := NewHandler(msgService, presenceService, hub)
	s.setupRoutes(h, cfg.JWT.Secret)

	return s
}

func (s *Server) setupRoutes(h *Handler, secret string) {
	auth := AuthMiddleware(secret)

	s.router.HandleFunc("/ws", h.handleWS)

	s.router.Handle("GET /rooms", auth(http.HandlerFunc(h.handleListRooms)))
	s.router.Handle("POST /rooms/{room_id}/join", auth(http.HandlerFunc(h.handleJoinRoom)))
	s.router.Handle("GET /rooms/{room_id}/messages", auth(http.HandlerFunc(h.handleListRoomMessages)))
	s.router.Handle("POST /rooms/{room_id}/messages", auth(http.HandlerFunc(h.handleAppendRoomMessage)))

	s.router.Handle("GET /private", auth(http.HandlerFunc(h.handleListPrivateChats)))
	s.router.Handle("POST /private/{user_id}", auth(http.HandlerFunc(h.handleCreatePrivateChat)))
	s.router.Handle("GET /private/{chat_id}/messages", auth(http.HandlerFunc(h.handleListPrivateMessages)))
	s.router.Handle("POST /private/{chat_id}/messages", auth(http.HandlerFunc(h.handleAppendPrivateMessage)))

	s.router.Handle("GET /users/online", auth(http.HandlerFunc(h.handleOnlineUsers)))
}

func (s *Server) Run(addr string) error {
	server := &http.Server{
		Addr:    addr,
		Handler: s.router,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Failed to start server", "error", err)
			return
		}
	}()
	slog.Info("Server is running", "addr", addr)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	<-quit

	ctx, shutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdown()

	if s.migrateDown != nil {
		if err := s.migrateDown(); err != nil {
			slog.Warn("Failed to migrate down", "error", err)
		}
		slog.Info("Migrations down")
	}

	slog.Info("Server exited")
	return server.Shutdown(ctx)
}
