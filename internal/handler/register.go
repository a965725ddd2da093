package handler

import (
	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/set-night/audiodesc/internal/telegram"
)

// Register registers message and callback handlers on the bot instance.
// Commands and questions share one text handler so routing does not depend
// on handler match order.
func (h *Handler) Register() {
	h.bot.RegisterHandler(bot.HandlerTypeMessageText, "", bot.MatchTypePrefix, h.handleText)
	h.bot.RegisterHandlerMatchFunc(isMedia, h.handleMedia)

	h.bot.RegisterHandler(bot.HandlerTypeCallbackQueryData, telegram.CallbackAcceptTerms, bot.MatchTypeExact, h.handleAcceptTerms)
}

func isMedia(update *models.Update) bool {
	_, ok := telegram.AttachmentFrom(update.Message)
	return ok
}
