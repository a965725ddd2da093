package handler

import (
	"context"

	"github.com/go-telegram/bot"
	"github.com/set-night/audiodesc/internal/config"
	"github.com/set-night/audiodesc/internal/domain"
	"github.com/set-night/audiodesc/internal/telegram"
)

// Conversation is the orchestrator as seen by the transport.
type Conversation interface {
	HasConsent(ctx context.Context, chatID int64) (bool, error)
	AcceptTerms(ctx context.Context, chatID int64) error
	ProcessFile(ctx context.Context, chatID int64, data []byte, mimeType string) (string, error)
	ProcessQuestion(ctx context.Context, chatID int64, question string) (string, error)
	ProcessCommand(ctx context.Context, chatID int64, command string) (domain.Reply, error)
	SweepExpired(ctx context.Context) (int, error)
}

type downloadFunc func(ctx context.Context, b *bot.Bot, fileID string) ([]byte, string, error)

// Handler holds all dependencies needed by message and callback handlers.
type Handler struct {
	bot          *bot.Bot
	cfg          *config.Config
	conversation Conversation
	tgLogger     *telegram.TelegramLogger
	download     downloadFunc
}

// Deps contains all dependencies required to construct a Handler.
type Deps struct {
	Bot          *bot.Bot
	Cfg          *config.Config
	Conversation Conversation
	TgLogger     *telegram.TelegramLogger
}

// New creates a new Handler from the provided dependencies.
func New(deps Deps) *Handler {
	return &Handler{
		bot:          deps.Bot,
		cfg:          deps.Cfg,
		conversation: deps.Conversation,
		tgLogger:     deps.TgLogger,
		download: func(ctx context.Context, b *bot.Bot, fileID string) ([]byte, string, error) {
			return telegram.DownloadFile(ctx, b, fileID, config.MaxDownloadSize)
		},
	}
}
