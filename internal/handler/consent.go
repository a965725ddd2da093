package handler

import (
	"context"
	"log/slog"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/set-night/audiodesc/internal/service"
)

func (h *Handler) handleAcceptTerms(ctx context.Context, b *bot.Bot, update *models.Update) {
	cq := update.CallbackQuery
	if cq == nil {
		return
	}
	b.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{CallbackQueryID: cq.ID})

	if cq.Message.Message == nil {
		return
	}
	chatID := cq.Message.Message.Chat.ID

	if err := h.conversation.AcceptTerms(ctx, chatID); err != nil {
		slog.Error("accept terms", "chat_id", chatID, "error", err)
		h.tgLogger.LogError(err, "accept terms", chatID)
		h.render(ctx, chatID, nil, failureReply)
		return
	}
	slog.Info("consent accepted", "chat_id", chatID)
	h.tgLogger.LogConsent(chatID)

	// Drop the button so it cannot be pressed twice.
	if _, err := b.EditMessageText(ctx, &bot.EditMessageTextParams{
		ChatID:    chatID,
		MessageID: cq.Message.Message.ID,
		Text:      consentAcceptedText,
	}); err != nil {
		slog.Debug("edit consent message", "chat_id", chatID, "error", err)
	}
	h.sendOrLog(ctx, chatID, service.WelcomeText)
}
