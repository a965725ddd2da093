package handler

import (
	"context"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/set-night/audiodesc/internal/telegram"
)

// handleText routes commands and follow-up questions.
func (h *Handler) handleText(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}
	msg := update.Message
	text := strings.TrimSpace(msg.Text)
	if text == "" {
		return
	}

	if strings.HasPrefix(text, "/") {
		h.handleCommand(ctx, msg, text)
		return
	}

	chatID := msg.Chat.ID
	stopTyping := telegram.StartTyping(ctx, b, chatID)
	answer, err := h.conversation.ProcessQuestion(ctx, chatID, text)
	stopTyping()

	h.respond(ctx, chatID, &msg.ID, "question", answer, err)
}
