package main

import (
	"context"
	"log"
	"log/slog"
	"path/filepath"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"
	"github.com/superchat/server/internal/config"
	"github.com/superchat/server/internal/repository/cache"
	"github.com/superchat/server/internal/repository/database"
	"github.com/superchat/server/internal/server"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Fatal("no .env file: ", err)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		return
	}

	cache.NewRedisClient(cfg.Redis.Addr())
	slog.Info("Redis inited")

	if err := database.NewPostgresClient(context.Background(), cfg.Database.DSN()); err != nil {
		log.Fatal(err)
	}
	slog.Info("Database inited")

	if err := goose.SetDialect("postgres"); err != nil {
		slog.Error("Failed to set dialect (migrations)", "error", err)
		return
	}

	migrationsPath := filepath.Join("internal", "repository", "database", "migrations")
	if err := goose.Up(database.Client().DB, migrationsPath); err != nil {
		slog.Error("Failed to migrate up", "error", err)
		return
	}
	slog.Info("Migrations completed")

	srv := server.NewServer(cfg)
	srv.Run(":" + cfg.App.Port)
}
