package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-telegram/bot"
	"github.com/set-night/audiodesc/internal/config"
)

// TelegramLogger mirrors important events into topics of an ops chat.
type TelegramLogger struct {
	bot *bot.Bot
	cfg *config.Config
}

func NewTelegramLogger(b *bot.Bot, cfg *config.Config) *TelegramLogger {
	return &TelegramLogger{bot: b, cfg: cfg}
}

type LogType string

const (
	LogTypeError   LogType = "error"
	LogTypeConsent LogType = "consent"
)

func (l *TelegramLogger) Log(logType LogType, message string) {
	if l == nil || l.cfg.LogTelegramChatID == 0 {
		return
	}

	topicID := l.getTopicID(logType)
	if topicID == 0 {
		return
	}

	// Truncate if too long
	if len([]rune(message)) > config.MaxTelegramMessageLen {
		message = string([]rune(message)[:config.MaxTelegramMessageLen-20]) + "\n\n... (truncated)"
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := l.bot.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:          l.cfg.LogTelegramChatID,
		Text:            message,
		MessageThreadID: topicID,
	})
	if err != nil {
		slog.Error("failed to send telegram log", "type", logType, "error", err)
	}
}

// LogError reports a failure without any user content.
func (l *TelegramLogger) LogError(err error, where string, chatID int64) {
	msg := fmt.Sprintf("❌ Error\n\nContext: %s\nChat: %d\nError: %s\nTime: %s",
		where, chatID, err.Error(), time.Now().UTC().Format("2006-01-02 15:04:05"))
	l.Log(LogTypeError, msg)
}

func (l *TelegramLogger) LogConsent(chatID int64) {
	l.Log(LogTypeConsent, fmt.Sprintf("✅ Consent accepted\n\nChat: %d", chatID))
}

func (l *TelegramLogger) getTopicID(logType LogType) int {
	switch logType {
	case LogTypeError:
		return l.cfg.LogTopicError
	case LogTypeConsent:
		return l.cfg.LogTopicConsent
	default:
		return 0
	}
}
