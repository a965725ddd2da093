package telegram

import (
	"github.com/go-telegram/bot/models"
)

// CallbackAcceptTerms is the callback data of the consent button.
const CallbackAcceptTerms = "accept_terms"

// InlineButton creates a single inline keyboard button.
func InlineButton(text, callbackData string) models.InlineKeyboardButton {
	return models.InlineKeyboardButton{
		Text:         text,
		CallbackData: callbackData,
	}
}

// URLButton creates a URL inline keyboard button.
func URLButton(text, url string) models.InlineKeyboardButton {
	return models.InlineKeyboardButton{
		Text: text,
		URL:  url,
	}
}

// InlineKeyboard creates an inline keyboard from rows of buttons.
func InlineKeyboard(rows ...[]models.InlineKeyboardButton) *models.InlineKeyboardMarkup {
	return &models.InlineKeyboardMarkup{
		InlineKeyboard: rows,
	}
}

// ButtonRow creates a row of inline buttons.
func ButtonRow(buttons ...models.InlineKeyboardButton) []models.InlineKeyboardButton {
	return buttons
}

// ConsentKeyboard renders the accept button, plus a link to the privacy
// policy when one is configured.
func ConsentKeyboard(policyURL string) *models.InlineKeyboardMarkup {
	rows := [][]models.InlineKeyboardButton{
		ButtonRow(InlineButton("Li e aceito", CallbackAcceptTerms)),
	}
	if policyURL != "" {
		rows = append(rows, ButtonRow(URLButton("Política de privacidade", policyURL)))
	}
	return InlineKeyboard(rows...)
}
