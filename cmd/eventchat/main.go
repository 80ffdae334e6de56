package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"

	"github.com/tjfontaine/eventchat/internal/api/ollama"
	"github.com/tjfontaine/eventchat/internal/config"
	"github.com/tjfontaine/eventchat/internal/conversation"
	"github.com/tjfontaine/eventchat/internal/handlers"
	"github.com/tjfontaine/eventchat/internal/registry"
	"github.com/tjfontaine/eventchat/internal/relay"
	"github.com/tjfontaine/eventchat/internal/server"
	"github.com/tjfontaine/eventchat/internal/slots"
	"github.com/tjfontaine/eventchat/internal/storage"
	memorystore "github.com/tjfontaine/eventchat/internal/storage/memory"
	sqlitestore "github.com/tjfontaine/eventchat/internal/storage/sqlite"
	"github.com/tjfontaine/eventchat/internal/telemetry"
	"github.com/tjfontaine/eventchat/internal/tokens"
)

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	shutdownTracer, err := telemetry.InitTracer("eventchat", logger)
	if err != nil {
		log.Fatalf("Failed to initialize tracer: %v", err)
	}
	defer func() {
		if err := shutdownTracer(context.Background()); err != nil {
			logger.Error("failed to shutdown tracer", slog.String("error", err.Error()))
		}
	}()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	store, err := newTurnStore(cfg, logger)
	if err != nil {
		log.Fatalf("Failed to open turn store: %v", err)
	}
	defer store.Close()

	client := ollama.NewClient(
		ollama.WithBaseURL(cfg.Upstream.BaseURL),
		ollama.WithHeaderTimeout(cfg.UpstreamTimeout()),
		ollama.WithLogger(logger),
	)

	reg := registry.New()
	rel := relay.New(client, reg, slots.NewMemory(),
		relay.WithRecorder(conversation.NewRecorder(store, logger)),
		relay.WithTokenCounter(tokens.NewCounter()),
		relay.WithLogger(logger),
	)

	h := handlers.New(rel, reg, client, logger)

	srv := server.New(cfg.Server.Port, logger)
	// The chat route streams for the lifetime of the upstream response,
	// so only the short request/response routes get the blanket timeout.
	srv.Router.Post("/api/chat", h.HandleChat)
	srv.Router.Group(func(r chi.Router) {
		r.Use(server.TimeoutMiddleware(30 * time.Second))
		r.Post("/api/cancel", h.HandleCancel)
		r.Get("/api/models", h.HandleModels)
		r.Get("/healthz", h.HandleHealth)
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			log.Fatalf("Server error: %v", err)
		}
	case sig := <-sigChan:
		logger.Info("shutdown signal received", slog.String("signal", sig.String()))
	}

	if err := srv.Shutdown(30 * time.Second); err != nil {
		logger.Error("shutdown error", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.Info("server shutdown complete")
}

func newTurnStore(cfg *config.Config, logger *slog.Logger) (storage.TurnStore, error) {
	switch cfg.Storage.Type {
	case "sqlite":
		path := cfg.Storage.SQLite.Path
		if path == "" {
			path = "./data/eventchat.db"
		}
		logger.Info("using sqlite turn store", slog.String("path", path))
		return sqlitestore.New(path)
	default:
		logger.Info("using in-memory turn store")
		return memorystore.New(), nil
	}
}
