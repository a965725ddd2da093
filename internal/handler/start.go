package handler

import (
	"context"
	"log/slog"

	"github.com/go-telegram/bot/models"
	"github.com/set-night/audiodesc/internal/service"
)

const sweepCommand = "sweep"

func (h *Handler) handleCommand(ctx context.Context, msg *models.Message, text string) {
	chatID := msg.Chat.ID

	if service.CommandName(text) == sweepCommand && msg.From != nil && h.cfg.IsAdmin(msg.From.ID) {
		h.handleSweep(ctx, chatID)
		return
	}

	reply, err := h.conversation.ProcessCommand(ctx, chatID, text)
	if err != nil {
		slog.Error("process command", "chat_id", chatID, "error", err)
		h.tgLogger.LogError(err, "command", chatID)
		reply = failureReply
	}
	h.render(ctx, chatID, nil, reply)
}
