package domain

import "errors"

type ReplyKind int

const (
	// ReplyAnswer carries text for a chat bubble.
	ReplyAnswer ReplyKind = iota
	// ReplyConsentPrompt asks the transport to render the consent affordance.
	ReplyConsentPrompt
	ReplyNoContext
	ReplyExpired
	ReplyFailure
)

// Reply is what the transport renders. Text is empty for every kind except
// ReplyAnswer; the transport owns the wording of the others.
type Reply struct {
	Kind ReplyKind
	Text string
}

func Answer(text string) Reply {
	return Reply{Kind: ReplyAnswer, Text: text}
}

// ReplyFor maps an orchestrator result onto a reply variant.
func ReplyFor(text string, err error) Reply {
	switch {
	case err == nil:
		return Answer(text)
	case errors.Is(err, ErrConsentRequired):
		return Reply{Kind: ReplyConsentPrompt}
	case errors.Is(err, ErrSessionExpired):
		return Reply{Kind: ReplyExpired}
	case errors.Is(err, ErrNoContext):
		return Reply{Kind: ReplyNoContext}
	case errors.Is(err, ErrEmptyResponse):
		// Rendered as the transport's "no answer" notice.
		return Answer("")
	default:
		return Reply{Kind: ReplyFailure}
	}
}
