package handler

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/set-night/audiodesc/internal/config"
	"github.com/set-night/audiodesc/internal/domain"
	"github.com/set-night/audiodesc/internal/telegram"
)

// handleMedia describes an incoming attachment. A caption is treated as a
// follow-up question about the same file.
func (h *Handler) handleMedia(ctx context.Context, b *bot.Bot, update *models.Update) {
	msg := update.Message
	att, ok := telegram.AttachmentFrom(msg)
	if !ok {
		return
	}
	chatID := msg.Chat.ID

	// Nothing is fetched before consent.
	consented, err := h.conversation.HasConsent(ctx, chatID)
	if err != nil {
		h.respond(ctx, chatID, nil, "consent", "", err)
		return
	}
	if !consented {
		h.render(ctx, chatID, nil, domain.Reply{Kind: domain.ReplyConsentPrompt})
		return
	}

	if att.Size > config.MaxDownloadSize {
		h.sendOrLog(ctx, chatID, fileTooLargeText)
		return
	}

	stopTyping := telegram.StartTyping(ctx, b, chatID)
	defer stopTyping()

	status, err := b.SendMessage(ctx, &bot.SendMessageParams{ChatID: chatID, Text: processingText})
	if err != nil {
		slog.Warn("send status message", "chat_id", chatID, "error", err)
	}
	defer h.deleteStatus(ctx, chatID, status)

	data, path, err := h.download(ctx, b, att.FileID)
	if errors.Is(err, telegram.ErrFileTooLarge) {
		h.sendOrLog(ctx, chatID, fileTooLargeText)
		return
	}
	if err != nil {
		h.respond(ctx, chatID, &msg.ID, "download", "", err)
		return
	}

	name := att.FileName
	if name == "" {
		name = path
	}
	mimeType := telegram.ResolveMime(att.MimeType, name, data)

	answer, err := h.conversation.ProcessFile(ctx, chatID, data, mimeType)
	h.respond(ctx, chatID, &msg.ID, "file", answer, err)
	if err != nil {
		return
	}

	if caption := strings.TrimSpace(msg.Caption); caption != "" {
		answer, err = h.conversation.ProcessQuestion(ctx, chatID, caption)
		h.respond(ctx, chatID, &msg.ID, "caption", answer, err)
	}
}

func (h *Handler) deleteStatus(ctx context.Context, chatID int64, status *models.Message) {
	if status == nil {
		return
	}
	if _, err := h.bot.DeleteMessage(ctx, &bot.DeleteMessageParams{ChatID: chatID, MessageID: status.ID}); err != nil {
		slog.Debug("delete status message", "chat_id", chatID, "error", err)
	}
}

func (h *Handler) sendOrLog(ctx context.Context, chatID int64, text string) {
	if err := h.send(ctx, chatID, text); err != nil {
		slog.Error("send message", "chat_id", chatID, "error", err)
	}
}
