// Package main is the entry point for the quillpost API server. It reads the
// environment, builds the logger, and hands everything to internal/server.
package main

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/ymatsuda/quillpost/internal/server"
	"github.com/ymatsuda/quillpost/internal/storage"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	port := 8080
	if portStr := os.Getenv("PORT"); portStr != "" {
		var err error
		port, err = strconv.Atoi(portStr)
		if err != nil {
			logger.Error("invalid PORT value", slog.String("value", portStr))
			os.Exit(1)
		}
	}

	dbPath := "data/quillpost.db"
	if envDB := os.Getenv("DB_PATH"); envDB != "" {
		dbPath = envDB
	}

	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		// SQLite needs its parent directory to exist before the file is
		// created.
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			logger.Error("failed to create database directory",
				slog.String("dir", filepath.Dir(dbPath)),
				slog.String("error", err.Error()),
			)
			os.Exit(1)
		}
	}

	authSecret := os.Getenv("AUTH_SECRET")
	if authSecret == "" {
		logger.Error("AUTH_SECRET is required")
		os.Exit(1)
	}
	authIssuer := os.Getenv("AUTH_ISSUER")
	if authIssuer == "" {
		authIssuer = "quillpost"
	}

	webhookSecret := os.Getenv("WEBHOOK_SECRET")
	if webhookSecret == "" {
		logger.Warn("WEBHOOK_SECRET not set, identity webhook deliveries will be rejected")
	}

	cfg := server.Config{
		Port:           port,
		DatabaseURL:    databaseURL,
		DBPath:         dbPath,
		AuthSecret:     authSecret,
		AuthIssuer:     authIssuer,
		WebhookSecret:  webhookSecret,
		IdentityAPIURL: os.Getenv("IDENTITY_API_URL"),
		IdentityAPIKey: os.Getenv("IDENTITY_API_KEY"),
		Storage: storage.Config{
			Endpoint:  os.Getenv("STORAGE_ENDPOINT"),
			AccessKey: os.Getenv("STORAGE_ACCESS_KEY"),
			SecretKey: os.Getenv("STORAGE_SECRET_KEY"),
			Bucket:    os.Getenv("STORAGE_BUCKET"),
			UseSSL:    os.Getenv("STORAGE_USE_SSL") != "false",
		},
	}

	srv, err := server.New(context.Background(), cfg, logger)
	if err != nil {
		logger.Error("failed to create server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if err := srv.Start(); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
