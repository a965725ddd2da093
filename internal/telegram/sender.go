package telegram

import (
	"context"
	"fmt"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/set-night/audiodesc/internal/config"
)

// SendLongMessage sends plain text, split into ordered parts when needed.
// Only the first part replies to replyToID.
func SendLongMessage(ctx context.Context, b *bot.Bot, chatID int64, text string, replyToID *int) error {
	for _, part := range SplitMessage(text, config.MaxTelegramMessageLen) {
		params := &bot.SendMessageParams{
			ChatID: chatID,
			Text:   part,
		}
		if replyToID != nil {
			params.ReplyParameters = &models.ReplyParameters{
				MessageID:                *replyToID,
				AllowSendingWithoutReply: true,
			}
			replyToID = nil
		}

		if _, err := b.SendMessage(ctx, params); err != nil {
			return fmt.Errorf("send message: %w", err)
		}
	}
	return nil
}

// SendWithKeyboard sends a single message carrying an inline keyboard.
func SendWithKeyboard(ctx context.Context, b *bot.Bot, chatID int64, text string, kb *models.InlineKeyboardMarkup) error {
	_, err := b.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:      chatID,
		Text:        text,
		ReplyMarkup: kb,
	})
	if err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	return nil
}

// StartTyping sends "typing..." action every 4 seconds until the returned cancel function is called.
func StartTyping(ctx context.Context, b *bot.Bot, chatID int64) context.CancelFunc {
	ctx, cancel := context.WithCancel(ctx)
	go func() {
		ticker := time.NewTicker(4 * time.Second)
		defer ticker.Stop()
		for {
			b.SendChatAction(ctx, &bot.SendChatActionParams{
				ChatID: chatID,
				Action: models.ChatActionTyping,
			})
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()
	return cancel
}
