package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// Logging returns middleware that logs update processing time. Message
// text is never logged.
func Logging() bot.Middleware {
	return func(next bot.HandlerFunc) bot.HandlerFunc {
		return func(ctx context.Context, b *bot.Bot, update *models.Update) {
			start := time.Now()
			updateType, chatID := describe(update)

			next(ctx, b, update)

			slog.Debug("update processed",
				"update_id", update.ID,
				"type", updateType,
				"chat_id", chatID,
				"duration", time.Since(start),
			)
		}
	}
}

func describe(update *models.Update) (string, int64) {
	switch {
	case update.Message != nil:
		msg := update.Message
		kind := "text"
		switch {
		case len(msg.Photo) > 0:
			kind = "photo"
		case msg.Video != nil, msg.VideoNote != nil, msg.Animation != nil:
			kind = "video"
		case msg.Voice != nil, msg.Audio != nil:
			kind = "audio"
		case msg.Document != nil:
			kind = "document"
		}
		return "message:" + kind, msg.Chat.ID
	case update.CallbackQuery != nil:
		var chatID int64
		if update.CallbackQuery.Message.Message != nil {
			chatID = update.CallbackQuery.Message.Message.Chat.ID
		}
		return "callback_query", chatID
	default:
		return "unknown", 0
	}
}
