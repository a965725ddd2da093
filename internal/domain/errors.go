package domain

import (
	"errors"
	"fmt"
)

var (
	ErrConsentRequired   = errors.New("consent required")
	ErrNoContext         = errors.New("no active context")
	ErrSessionExpired    = fmt.Errorf("session expired: %w", ErrNoContext)
	ErrSessionNotFound   = errors.New("session not found")
	ErrQueueFull         = errors.New("dispatcher queue full")
	ErrDispatcherStopped = errors.New("dispatcher stopped")
	ErrEmptyResponse     = errors.New("provider returned empty response")
)

type ProviderErrorKind int

const (
	ProviderPermanent ProviderErrorKind = iota
	ProviderTransient
)

func (k ProviderErrorKind) String() string {
	switch k {
	case ProviderTransient:
		return "transient"
	default:
		return "permanent"
	}
}

// ProviderError is a classified failure reported by the AI client.
// Kind is derived from status codes, not from message text.
type ProviderError struct {
	Kind       ProviderErrorKind
	Op         string
	StatusCode int
	Status     string
	Message    string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s: provider %s error (%d %s): %s", e.Op, e.Kind, e.StatusCode, e.Status, e.Message)
}

// IsTransient reports whether err is a provider failure worth retrying.
func IsTransient(err error) bool {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Kind == ProviderTransient
	}
	return false
}
