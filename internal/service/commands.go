package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/set-night/audiodesc/internal/domain"
)

const (
	HelpText = "Envie uma foto, vídeo, áudio ou documento e eu descrevo o conteúdo.\n" +
		"Depois, mande perguntas em texto sobre o mesmo arquivo.\n\n" +
		"Comandos:\n" +
		"/curto ou /short: descrições curtas de imagens\n" +
		"/longo ou /long: descrições detalhadas de imagens\n" +
		"/transcricao ou /transcript: vídeos com transcrição literal das falas\n" +
		"/narrativa ou /narrative: vídeos com audiodescrição cronológica\n" +
		"/ajuda ou /help: esta mensagem"

	WelcomeText = "Olá! Eu faço audiodescrição de imagens, vídeos, áudios e documentos.\n\n" + HelpText
)

type commandFunc func(s *ConversationService, ctx context.Context, chatID int64) (domain.Reply, error)

func setPreference(key domain.PreferenceKey, value, confirmation string) commandFunc {
	return func(s *ConversationService, ctx context.Context, chatID int64) (domain.Reply, error) {
		if err := s.store.SavePreference(ctx, chatID, key, value); err != nil {
			return domain.Reply{}, fmt.Errorf("save preference %s: %w", key, err)
		}
		return domain.Answer(confirmation), nil
	}
}

func replyText(text string) commandFunc {
	return func(*ConversationService, context.Context, int64) (domain.Reply, error) {
		return domain.Answer(text), nil
	}
}

func startCommand(s *ConversationService, ctx context.Context, chatID int64) (domain.Reply, error) {
	ok, err := s.store.HasAcceptedTerms(ctx, chatID)
	if err != nil {
		return domain.Reply{}, fmt.Errorf("check consent: %w", err)
	}
	if !ok {
		return domain.Reply{Kind: domain.ReplyConsentPrompt}, nil
	}
	return domain.Answer(WelcomeText), nil
}

var (
	shortStyle = setPreference(domain.PrefStyle, domain.StyleShort,
		"Pronto. As próximas imagens terão descrições curtas.")
	longStyle = setPreference(domain.PrefStyle, domain.StyleLong,
		"Pronto. As próximas imagens terão descrições detalhadas.")
	transcriptMode = setPreference(domain.PrefVideoMode, domain.VideoModeTranscript,
		"Pronto. Nos próximos vídeos vou transcrever as falas literalmente.")
	narrativeMode = setPreference(domain.PrefVideoMode, domain.VideoModeNarrative,
		"Pronto. Nos próximos vídeos vou narrar as cenas em ordem.")
	help = replyText(HelpText)
)

var commandTable = map[string]commandFunc{
	"start":       startCommand,
	"help":        help,
	"ajuda":       help,
	"short":       shortStyle,
	"curto":       shortStyle,
	"long":        longStyle,
	"longo":       longStyle,
	"transcript":  transcriptMode,
	"transcricao": transcriptMode,
	"narrative":   narrativeMode,
	"narrativa":   narrativeMode,
}

// ProcessCommand runs a bot command such as "/short" or "/help@bot".
// Unknown commands answer with the help text. Commands never touch the
// session, so they do not wait for the chat lock.
func (s *ConversationService) ProcessCommand(ctx context.Context, chatID int64, command string) (domain.Reply, error) {
	fn, ok := commandTable[CommandName(command)]
	if !ok {
		fn = help
	}
	return fn(s, ctx, chatID)
}

// CommandName normalizes "/Short@my_bot args" to "short".
func CommandName(text string) string {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return ""
	}
	name := strings.TrimPrefix(fields[0], "/")
	if at := strings.IndexByte(name, '@'); at >= 0 {
		name = name[:at]
	}
	return strings.ToLower(name)
}
