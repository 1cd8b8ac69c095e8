// Gemini chat demo server: Completion Proxy plus the web chat.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ashureev/gemini-chat/internal/api"
	"github.com/ashureev/gemini-chat/internal/chatsession"
	"github.com/ashureev/gemini-chat/internal/completion"
	"github.com/ashureev/gemini-chat/internal/config"
	"github.com/ashureev/gemini-chat/internal/conversation"
	"github.com/ashureev/gemini-chat/internal/markdown"
	"github.com/ashureev/gemini-chat/internal/middleware"
	"github.com/ashureev/gemini-chat/internal/store"
	"github.com/ashureev/gemini-chat/internal/tokens"
	"github.com/ashureev/gemini-chat/internal/ui"
	"github.com/ashureev/gemini-chat/web"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
)

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))
	slog.SetDefault(logger)

	slog.Info("Starting server", "port", cfg.Port, "model", cfg.Gemini.Model, "exchange_log", cfg.ExchangeLog.Enabled)

	completer, err := completion.NewClient(cfg.Gemini, logger)
	if err != nil {
		slog.Error("Failed to initialize completion client", "error", err)
		os.Exit(1)
	}
	counter := tokens.NewCounter(cfg.TokenEncoding, logger)
	counter.Warm()

	chatOpts := []api.ChatOption{
		api.WithTokenCounter(counter),
		api.WithLogger(logger),
	}

	var exchangesHandler *api.ExchangesHandler
	if cfg.ExchangeLog.Enabled {
		repo, err := store.NewSQLite(cfg.ExchangeLog.DBPath)
		if err != nil {
			slog.Error("Failed to initialize exchange log", "error", err)
			os.Exit(1)
		}
		defer func() {
			if closeErr := repo.Close(); closeErr != nil {
				slog.Error("Failed to close exchange log", "error", closeErr)
			}
		}()

		if err := repo.Ping(context.Background()); err != nil {
			slog.Error("Exchange log health check failed", "error", err)
			os.Exit(1)
		}
		slog.Info("Exchange log connected", "path", cfg.ExchangeLog.DBPath)

		chatOpts = append(chatOpts, api.WithExchangeRecorder(repo))
		exchangesHandler = api.NewExchangesHandler(repo)
	}

	// Initialize handlers.
	chatHandler := api.NewChatHandler(completer, cfg, chatOpts...)
	sm := chatsession.NewSessionManager()
	wsHandler := chatsession.NewWebSocketHandler(
		conversation.NewHTTPSender(cfg.ProxyURL, nil),
		sm,
		markdown.NewHTML(),
		cfg.AllowedOrigins,
		logger,
	)

	// Setup router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/health"))
	r.Use(middleware.CORS(cfg.AllowedOrigins))

	chatHandler.RegisterRoutes(r)
	api.NewConfigHandler(cfg, counter.Exact).RegisterRoutes(r)
	if exchangesHandler != nil {
		exchangesHandler.RegisterRoutes(r)
	}

	r.Get("/", ui.Handler(ui.Index()))
	r.Handle(web.StaticPrefix+"*", web.StaticHandler())
	r.Get("/ws/chat", wsHandler.ServeHTTP)

	// No WriteTimeout: upstream completions have no deadline of their own.
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      0,
		IdleTimeout:       120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Start server.
	go func() {
		slog.Info("Server listening", "addr", srv.Addr, "proxy_url", cfg.ProxyURL)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal.
	<-ctx.Done()
	stop()

	slog.Info("Shutting down gracefully...", "chat_sessions", sm.Count())

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Hijacked WebSocket connections are not closed by Shutdown.
	sm.CloseAll()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("Server stopped successfully")
}
