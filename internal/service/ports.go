package service

import (
	"context"
	"time"

	"github.com/set-night/audiodesc/internal/domain"
)

// AIClient talks to the multimodal provider. Implementations own their retry
// policy and classify failures as *domain.ProviderError.
type AIClient interface {
	// Upload returns once the provider reports the resource ready for use.
	Upload(ctx context.Context, data []byte, mimeType string) (string, error)
	Query(ctx context.Context, ref, mimeType, prompt string, history []domain.Message) (string, error)
	// Delete is best effort.
	Delete(ctx context.Context, ref string) error
}

// RecordStore persists sessions, preferences and consent, keyed by chat id.
// GetSession returns domain.ErrSessionNotFound when nothing is stored.
type RecordStore interface {
	SaveSession(ctx context.Context, s domain.Session) error
	GetSession(ctx context.Context, chatID int64) (*domain.Session, error)
	ClearSession(ctx context.Context, chatID int64) error
	ListIdleSessions(ctx context.Context, before time.Time) ([]domain.Session, error)

	SavePreference(ctx context.Context, chatID int64, key domain.PreferenceKey, value string) error
	// GetPreference reports ok=false when the preference was never set.
	GetPreference(ctx context.Context, chatID int64, key domain.PreferenceKey) (string, bool, error)

	HasAcceptedTerms(ctx context.Context, chatID int64) (bool, error)
	AcceptTerms(ctx context.Context, chatID int64, at time.Time) error
}

type Cipher interface {
	Encrypt(plain string) (string, error)
	Decrypt(token string) (string, error)
}
