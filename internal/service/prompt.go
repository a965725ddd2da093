package service

import (
	"context"
	"fmt"

	"github.com/set-night/audiodesc/internal/config"
	"github.com/set-night/audiodesc/internal/domain"
)

type promptKey struct {
	kind    domain.MediaKind
	variant string
}

var prompts = map[promptKey]string{
	{domain.MediaImage, domain.StyleShort}: fmt.Sprintf(
		"Faça uma audiodescrição curta desta imagem, com no máximo %d caracteres. "+
			"Diga o essencial: o que é, quem aparece e onde.", config.ShortDescriptionChars),
	{domain.MediaImage, domain.StyleLong}: "Faça uma audiodescrição detalhada desta imagem para uma pessoa cega. " +
		"Descreva o cenário, as pessoas, expressões, cores, textos visíveis e a disposição dos elementos.",
	{domain.MediaVideo, domain.VideoModeTranscript}: "Transcreva literalmente todas as falas deste vídeo, " +
		"indicando quem fala quando for possível, e inclua os textos que aparecerem na tela.",
	{domain.MediaVideo, domain.VideoModeNarrative}: "Faça uma audiodescrição cronológica deste vídeo. " +
		"Narre as cenas em ordem, as ações, os ambientes, as pessoas e as falas importantes.",
	{domain.MediaAudio, ""}:    "Transcreva este áudio literalmente, do início ao fim.",
	{domain.MediaDocument, ""}: "Resuma este documento de forma clara, destacando os pontos principais.",
	{domain.MediaUnknown, ""}:  "Analise este conteúdo e explique do que se trata.",
}

// variantPreference names the preference that picks the prompt variant for a
// media kind. Kinds not listed have a single prompt.
var variantPreference = map[domain.MediaKind]domain.PreferenceKey{
	domain.MediaImage: domain.PrefStyle,
	domain.MediaVideo: domain.PrefVideoMode,
}

// PromptFor returns the instruction for a media kind given the variant value
// of its preference. Unknown variants fall back to the default one.
func PromptFor(kind domain.MediaKind, variant string) string {
	if p, ok := prompts[promptKey{kind, variant}]; ok {
		return p
	}
	if pref, ok := variantPreference[kind]; ok {
		if p, ok := prompts[promptKey{kind, domain.DefaultPreferences[pref]}]; ok {
			return p
		}
	}
	if p, ok := prompts[promptKey{kind, ""}]; ok {
		return p
	}
	return prompts[promptKey{domain.MediaUnknown, ""}]
}

type preferenceReader interface {
	GetPreference(ctx context.Context, chatID int64, key domain.PreferenceKey) (string, bool, error)
}

// derivePrompt picks the initial instruction for a freshly uploaded file.
func derivePrompt(ctx context.Context, prefs preferenceReader, chatID int64, mimeType string) (string, error) {
	kind := domain.KindOf(mimeType)
	pref, ok := variantPreference[kind]
	if !ok {
		return PromptFor(kind, ""), nil
	}
	value, found, err := prefs.GetPreference(ctx, chatID, pref)
	if err != nil {
		return "", fmt.Errorf("get preference %s: %w", pref, err)
	}
	if !found {
		value = domain.DefaultPreferences[pref]
	}
	return PromptFor(kind, value), nil
}
