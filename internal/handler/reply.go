package handler

import (
	"context"
	"log/slog"

	"github.com/go-telegram/bot"
	"github.com/set-night/audiodesc/internal/domain"
	"github.com/set-night/audiodesc/internal/telegram"
)

var failureReply = domain.Reply{Kind: domain.ReplyFailure}

// respond renders the outcome of an orchestrator call. Failures are logged
// with detail and shown to the user only as a generic notice.
func (h *Handler) respond(ctx context.Context, chatID int64, replyTo *int, op string, text string, err error) {
	reply := domain.ReplyFor(text, err)
	if reply.Kind == domain.ReplyFailure {
		slog.Error("request failed", "op", op, "chat_id", chatID, "error", err)
		h.tgLogger.LogError(err, op, chatID)
	}
	h.render(ctx, chatID, replyTo, reply)
}

func (h *Handler) render(ctx context.Context, chatID int64, replyTo *int, reply domain.Reply) {
	var err error
	switch reply.Kind {
	case domain.ReplyAnswer:
		text := reply.Text
		if text == "" {
			text = emptyAnswerText
		}
		err = telegram.SendLongMessage(ctx, h.bot, chatID, text, replyTo)
	case domain.ReplyConsentPrompt:
		err = telegram.SendWithKeyboard(ctx, h.bot, chatID, consentText, telegram.ConsentKeyboard(h.cfg.PrivacyPolicyURL))
	case domain.ReplyNoContext:
		err = h.send(ctx, chatID, noContextText)
	case domain.ReplyExpired:
		err = h.send(ctx, chatID, expiredText)
	default:
		err = h.send(ctx, chatID, failureText)
	}
	if err != nil {
		slog.Error("send reply", "chat_id", chatID, "kind", reply.Kind, "error", err)
	}
}

func (h *Handler) send(ctx context.Context, chatID int64, text string) error {
	_, err := h.bot.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: chatID,
		Text:   text,
	})
	return err
}
