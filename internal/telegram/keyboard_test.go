package telegram

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConsentKeyboard(t *testing.T) {
	kb := ConsentKeyboard("")
	require.Len(t, kb.InlineKeyboard, 1)
	assert.Equal(t, CallbackAcceptTerms, kb.InlineKeyboard[0][0].CallbackData)

	kb = ConsentKeyboard("https://example.com/privacidade")
	require.Len(t, kb.InlineKeyboard, 2)
	assert.Equal(t, "https://example.com/privacidade", kb.InlineKeyboard[1][0].URL)
}
