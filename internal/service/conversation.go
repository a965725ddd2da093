package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/set-night/audiodesc/internal/domain"
)

// ConversationService owns consent, the per-chat session lifecycle and the
// question/answer loop. All provider calls go through the shared dispatcher.
type ConversationService struct {
	store       RecordStore
	cipher      Cipher
	ai          AIClient
	dispatcher  *Dispatcher
	locks       *KeyLock
	tasks       *Tasks
	idleTimeout time.Duration
	now         func() time.Time
}

func NewConversationService(store RecordStore, cipher Cipher, ai AIClient, dispatcher *Dispatcher, idleTimeout time.Duration) *ConversationService {
	return &ConversationService{
		store:       store,
		cipher:      cipher,
		ai:          ai,
		dispatcher:  dispatcher,
		locks:       NewKeyLock(),
		tasks:       NewTasks(),
		idleTimeout: idleTimeout,
		now:         time.Now,
	}
}

// ProcessFile replaces the chat's session with a fresh upload and answers
// the instruction derived from the media type and stored preferences.
func (s *ConversationService) ProcessFile(ctx context.Context, chatID int64, data []byte, mimeType string) (string, error) {
	unlock := s.locks.Lock(chatID)
	defer unlock()

	if err := s.requireConsent(ctx, chatID); err != nil {
		return "", err
	}

	old, err := s.store.GetSession(ctx, chatID)
	switch {
	case err == nil:
		s.scheduleDelete(ctx, chatID, old.ResourceRef)
		if err := s.store.ClearSession(ctx, chatID); err != nil {
			return "", fmt.Errorf("clear previous session: %w", err)
		}
	case !errors.Is(err, domain.ErrSessionNotFound):
		return "", fmt.Errorf("get session: %w", err)
	}

	data, mimeType, err = NormalizeDocument(data, mimeType)
	if err != nil {
		return "", fmt.Errorf("normalize document: %w", err)
	}

	ref, err := Submit(ctx, s.dispatcher, "upload", func(ctx context.Context) (string, error) {
		return s.ai.Upload(ctx, data, mimeType)
	})
	if err != nil {
		return "", fmt.Errorf("upload: %w", err)
	}

	token, err := s.cipher.Encrypt(ref)
	if err != nil {
		s.scheduleDeletePlain(ctx, chatID, ref)
		return "", fmt.Errorf("encrypt resource ref: %w", err)
	}
	if err := s.store.SaveSession(ctx, domain.Session{
		ChatID:      chatID,
		ResourceRef: token,
		MimeType:    mimeType,
		UpdatedAt:   s.now(),
	}); err != nil {
		s.scheduleDeletePlain(ctx, chatID, ref)
		return "", fmt.Errorf("save session: %w", err)
	}

	prompt, err := derivePrompt(ctx, s.store, chatID, mimeType)
	if err != nil {
		return "", err
	}
	return s.ask(ctx, chatID, prompt)
}

// ProcessQuestion asks a follow-up about the chat's current file.
func (s *ConversationService) ProcessQuestion(ctx context.Context, chatID int64, question string) (string, error) {
	unlock := s.locks.Lock(chatID)
	defer unlock()

	if err := s.requireConsent(ctx, chatID); err != nil {
		return "", err
	}
	return s.ask(ctx, chatID, question)
}

// ask runs one question against the stored session. Caller holds the chat lock.
func (s *ConversationService) ask(ctx context.Context, chatID int64, question string) (string, error) {
	sess, err := s.store.GetSession(ctx, chatID)
	if errors.Is(err, domain.ErrSessionNotFound) {
		return "", domain.ErrNoContext
	}
	if err != nil {
		return "", fmt.Errorf("get session: %w", err)
	}

	if sess.IsIdle(s.now(), s.idleTimeout) {
		s.scheduleDelete(ctx, chatID, sess.ResourceRef)
		if err := s.store.ClearSession(ctx, chatID); err != nil {
			return "", fmt.Errorf("clear expired session: %w", err)
		}
		return "", domain.ErrSessionExpired
	}

	ref, err := s.cipher.Decrypt(sess.ResourceRef)
	if err != nil {
		return "", fmt.Errorf("decrypt resource ref: %w", err)
	}
	history, err := s.decryptHistory(sess.History)
	if err != nil {
		return "", err
	}

	answer, err := Submit(ctx, s.dispatcher, "query", func(ctx context.Context) (string, error) {
		return s.ai.Query(ctx, ref, sess.MimeType, question, history)
	})
	if err != nil {
		return "", fmt.Errorf("query: %w", err)
	}
	answer = Sanitize(answer)
	// Markup-only answers leave nothing to show or to replay as history.
	if answer == "" {
		return "", domain.ErrEmptyResponse
	}

	userTurn, err := s.encryptTurn(domain.RoleUser, question)
	if err != nil {
		return "", err
	}
	modelTurn, err := s.encryptTurn(domain.RoleModel, answer)
	if err != nil {
		return "", err
	}
	sess.History = append(sess.History, userTurn, modelTurn)
	sess.UpdatedAt = s.now()

	if err := s.store.SaveSession(ctx, *sess); err != nil {
		return "", fmt.Errorf("save session: %w", err)
	}
	return answer, nil
}

// AcceptTerms records consent. Accepting again only moves the timestamp.
func (s *ConversationService) AcceptTerms(ctx context.Context, chatID int64) error {
	unlock := s.locks.Lock(chatID)
	defer unlock()

	if err := s.store.AcceptTerms(ctx, chatID, s.now()); err != nil {
		return fmt.Errorf("accept terms: %w", err)
	}
	return nil
}

// SweepExpired clears every idle session and schedules deletion of its
// remote resource. It returns how many sessions were cleared.
func (s *ConversationService) SweepExpired(ctx context.Context) (int, error) {
	if s.idleTimeout <= 0 {
		return 0, nil
	}
	idle, err := s.store.ListIdleSessions(ctx, s.now().Add(-s.idleTimeout))
	if err != nil {
		return 0, fmt.Errorf("list idle sessions: %w", err)
	}

	cleared := 0
	for _, candidate := range idle {
		ok, err := s.expireIfIdle(ctx, candidate.ChatID)
		if err != nil {
			return cleared, err
		}
		if ok {
			cleared++
		}
	}
	return cleared, nil
}

func (s *ConversationService) expireIfIdle(ctx context.Context, chatID int64) (bool, error) {
	unlock := s.locks.Lock(chatID)
	defer unlock()

	// The session may have been used or replaced since it was listed.
	sess, err := s.store.GetSession(ctx, chatID)
	if errors.Is(err, domain.ErrSessionNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("get session %d: %w", chatID, err)
	}
	if !sess.IsIdle(s.now(), s.idleTimeout) {
		return false, nil
	}

	s.scheduleDelete(ctx, chatID, sess.ResourceRef)
	if err := s.store.ClearSession(ctx, chatID); err != nil {
		return false, fmt.Errorf("clear session %d: %w", chatID, err)
	}
	return true, nil
}

// HasConsent lets the transport skip fetching media a chat has not agreed
// to share yet.
func (s *ConversationService) HasConsent(ctx context.Context, chatID int64) (bool, error) {
	ok, err := s.store.HasAcceptedTerms(ctx, chatID)
	if err != nil {
		return false, fmt.Errorf("check consent: %w", err)
	}
	return ok, nil
}

// Wait blocks until scheduled deletions finish or ctx ends.
func (s *ConversationService) Wait(ctx context.Context) error {
	return s.tasks.Wait(ctx)
}

func (s *ConversationService) requireConsent(ctx context.Context, chatID int64) error {
	ok, err := s.HasConsent(ctx, chatID)
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrConsentRequired
	}
	return nil
}

// scheduleDelete removes a remote resource in the background given its
// cipher token. Not awaited, not retried.
func (s *ConversationService) scheduleDelete(ctx context.Context, chatID int64, token string) {
	s.tasks.Go(ctx, "delete resource", func(ctx context.Context) error {
		ref, err := s.cipher.Decrypt(token)
		if err != nil {
			return fmt.Errorf("decrypt resource ref of chat %d: %w", chatID, err)
		}
		return s.deleteRemote(ctx, chatID, ref)
	})
}

func (s *ConversationService) scheduleDeletePlain(ctx context.Context, chatID int64, ref string) {
	s.tasks.Go(ctx, "delete orphaned resource", func(ctx context.Context) error {
		return s.deleteRemote(ctx, chatID, ref)
	})
}

func (s *ConversationService) deleteRemote(ctx context.Context, chatID int64, ref string) error {
	if ref == "" {
		return nil
	}
	_, err := Submit(ctx, s.dispatcher, "delete", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, s.ai.Delete(ctx, ref)
	})
	if err != nil {
		return fmt.Errorf("delete resource of chat %d: %w", chatID, err)
	}
	slog.Debug("remote resource deleted", "chat_id", chatID)
	return nil
}

func (s *ConversationService) decryptHistory(turns []domain.Turn) ([]domain.Message, error) {
	history := make([]domain.Message, 0, len(turns))
	for i, turn := range turns {
		parts := make([]string, 0, len(turn.Parts))
		for _, p := range turn.Parts {
			plain, err := s.cipher.Decrypt(p)
			if err != nil {
				return nil, fmt.Errorf("decrypt history turn %d: %w", i, err)
			}
			parts = append(parts, plain)
		}
		history = append(history, domain.Message{Role: turn.Role, Parts: parts})
	}
	return history, nil
}

func (s *ConversationService) encryptTurn(role domain.Role, text string) (domain.Turn, error) {
	token, err := s.cipher.Encrypt(text)
	if err != nil {
		return domain.Turn{}, fmt.Errorf("encrypt %s turn: %w", role, err)
	}
	return domain.Turn{Role: role, Parts: []string{token}}, nil
}
