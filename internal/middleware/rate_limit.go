package middleware

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

const rateWindow = time.Minute

// RateLimit returns middleware that drops messages above limit per chat per
// minute. Callbacks always pass. A limit of zero disables the check.
func RateLimit(limit int) bot.Middleware {
	counter := newWindowCounter(rateWindow, time.Now)
	return func(next bot.HandlerFunc) bot.HandlerFunc {
		return func(ctx context.Context, b *bot.Bot, update *models.Update) {
			if limit <= 0 || update.Message == nil {
				next(ctx, b, update)
				return
			}

			chatID := update.Message.Chat.ID
			count := counter.hit(chatID)
			if count > limit {
				// Warn once per window
				if count == limit+1 {
					slog.Warn("rate limit exceeded", "chat_id", chatID, "limit", limit)
					b.SendMessage(ctx, &bot.SendMessageParams{
						ChatID: chatID,
						Text:   "⏳ Muitas mensagens seguidas. Aguarde um minuto e tente de novo.",
					})
				}
				return
			}

			next(ctx, b, update)
		}
	}
}

type windowCounter struct {
	mu     sync.Mutex
	window time.Duration
	now    func() time.Time
	start  time.Time
	counts map[int64]int
}

func newWindowCounter(window time.Duration, now func() time.Time) *windowCounter {
	return &windowCounter{window: window, now: now, start: now(), counts: make(map[int64]int)}
}

// hit records one message and returns the chat's count in the current window.
func (w *windowCounter) hit(chatID int64) int {
	w.mu.Lock()
	defer w.mu.Unlock()

	if now := w.now(); now.Sub(w.start) >= w.window {
		w.start = now
		clear(w.counts)
	}
	w.counts[chatID]++
	return w.counts[chatID]
}
