package main

import (
	"log"
	"log/slog"
	"os"

	"conveyor/internal/config"
	"conveyor/internal/infra/db"
	httpinfra "conveyor/internal/infra/http"
)

func main() {
	cfg := config.FromEnv()
	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	store, err := db.NewStore(cfg)
	if err != nil {
		log.Fatalf("failed to init store: %v", err)
	}

	srv := httpinfra.NewServer(cfg, store, logger)
	if err := srv.Run(); err != nil {
		log.Fatalf("server exited: %v", err)
	}
}

func newLogger(level string) *slog.Logger {
	var l slog.Level
	switch level {
	case "debug":
		l = slog.LevelDebug
	case "warn":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	default:
		l = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: l}))
}
