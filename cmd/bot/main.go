package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-telegram/bot"
	"github.com/joho/godotenv"
	"github.com/set-night/audiodesc"
	"github.com/set-night/audiodesc/internal/config"
	"github.com/set-night/audiodesc/internal/cryptox"
	"github.com/set-night/audiodesc/internal/handler"
	"github.com/set-night/audiodesc/internal/middleware"
	"github.com/set-night/audiodesc/internal/repository"
	"github.com/set-night/audiodesc/internal/repository/sqlite"
	"github.com/set-night/audiodesc/internal/service"
	"github.com/set-night/audiodesc/internal/telegram"
)

func main() {
	// A missing .env is fine, the environment may already be set
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "load .env: %v\n", err)
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Setup structured logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	}))
	slog.SetDefault(logger)

	// Setup context with graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cipher, err := newCipher(cfg)
	if err != nil {
		slog.Error("failed to init cipher", "error", err)
		os.Exit(1)
	}

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		slog.Error("failed to open store", "driver", cfg.StoreDriver, "error", err)
		os.Exit(1)
	}
	defer closeStore()

	// Initialize services
	dispatcher := service.NewDispatcher(cfg.DispatchCooldown, cfg.DispatchQueueSize)
	gemini := service.NewGeminiService(cfg.GeminiAPIKey, cfg.GeminiURL, cfg.GeminiModel)
	conversation := service.NewConversationService(store, cipher, gemini, dispatcher, cfg.SessionIdleTimeout)

	var sweeper *service.Sweeper
	if cfg.SweepSchedule != "" {
		sweeper, err = service.NewSweeper(cfg.SweepSchedule, conversation.SweepExpired)
		if err != nil {
			slog.Error("failed to create sweeper", "error", err)
			os.Exit(1)
		}
	}

	// Create bot
	b, err := bot.New(cfg.BotToken, bot.WithMiddlewares(
		middleware.Recover(),
		middleware.Logging(),
		middleware.RateLimit(cfg.RateLimitPerMinute),
	))
	if err != nil {
		slog.Error("failed to create bot", "error", err)
		os.Exit(1)
	}

	// Get bot info
	me, err := b.GetMe(ctx)
	if err != nil {
		slog.Error("failed to get bot info", "error", err)
		os.Exit(1)
	}
	slog.Info("bot info retrieved", "id", me.ID, "username", me.Username)

	if cfg.DropPendingUpdates {
		if _, err := b.DeleteWebhook(ctx, &bot.DeleteWebhookParams{DropPendingUpdates: true}); err != nil {
			slog.Warn("failed to drop pending updates", "error", err)
		}
	}

	// Initialize telegram logger
	tgLogger := telegram.NewTelegramLogger(b, cfg)

	// Initialize handler
	h := handler.New(handler.Deps{
		Bot:          b,
		Cfg:          cfg,
		Conversation: conversation,
		TgLogger:     tgLogger,
	})
	h.Register()

	if sweeper != nil {
		sweeper.Start()
	}

	// Start bot
	slog.Info("starting bot", "username", me.Username, "id", me.ID)
	b.Start(ctx)

	// Graceful shutdown
	if sweeper != nil {
		sweeper.Stop()
	}
	waitCtx, cancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
	defer cancel()
	if err := conversation.Wait(waitCtx); err != nil {
		slog.Warn("background deletions still pending at shutdown", "error", err)
	}
	dispatcher.Stop()

	slog.Info("bot stopped gracefully")
}

func newCipher(cfg *config.Config) (*cryptox.AESCipher, error) {
	if cfg.CipherKey != "" {
		return cryptox.NewFromBase64(cfg.CipherKey)
	}
	return cryptox.NewFromPassphrase(cfg.CipherPassphrase, cfg.CipherSalt)
}

func openStore(ctx context.Context, cfg *config.Config) (service.RecordStore, func(), error) {
	if cfg.StoreDriver == config.StoreSQLite {
		store, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return store, func() { _ = store.Close() }, nil
	}

	// Connect to database
	pool, err := repository.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}

	// Run migrations
	migrationsFS, err := fs.Sub(audiodesc.MigrationsFS, "migrations")
	if err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("load embedded migrations: %w", err)
	}
	if err := repository.RunMigrations(cfg.DatabaseURL, migrationsFS); err != nil {
		pool.Close()
		return nil, nil, err
	}
	return repository.NewStore(pool), pool.Close, nil
}
