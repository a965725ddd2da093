package middleware

import (
	"context"
	"testing"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/stretchr/testify/assert"
)

func TestDescribe(t *testing.T) {
	typ, chat := describe(&models.Update{Message: &models.Message{Chat: models.Chat{ID: 5}, Voice: &models.Voice{}}})
	assert.Equal(t, "message:audio", typ)
	assert.Equal(t, int64(5), chat)

	typ, _ = describe(&models.Update{Message: &models.Message{Text: "oi"}})
	assert.Equal(t, "message:text", typ)

	typ, chat = describe(&models.Update{CallbackQuery: &models.CallbackQuery{
		Message: models.MaybeInaccessibleMessage{Message: &models.Message{Chat: models.Chat{ID: 9}}},
	}})
	assert.Equal(t, "callback_query", typ)
	assert.Equal(t, int64(9), chat)

	typ, _ = describe(&models.Update{})
	assert.Equal(t, "unknown", typ)
}

func TestRecoverAndPassThrough(t *testing.T) {
	called := false
	h := Recover()(Logging()(func(ctx context.Context, b *bot.Bot, update *models.Update) {
		called = true
		panic("boom")
	}))
	assert.NotPanics(t, func() { h(context.Background(), nil, &models.Update{}) })
	assert.True(t, called)

	passed := false
	limited := RateLimit(0)(func(ctx context.Context, b *bot.Bot, update *models.Update) { passed = true })
	limited(context.Background(), nil, &models.Update{Message: &models.Message{}})
	assert.True(t, passed)
}
