package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/set-night/audiodesc/internal/domain"
)

// Store keeps sessions, preferences and consent in Postgres.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

const upsertSession = `
INSERT INTO sessions (chat_id, resource_ref, mime_type, history, updated_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (chat_id) DO UPDATE SET
    resource_ref = EXCLUDED.resource_ref,
    mime_type    = EXCLUDED.mime_type,
    history      = EXCLUDED.history,
    updated_at   = EXCLUDED.updated_at`

func (s *Store) SaveSession(ctx context.Context, sess domain.Session) error {
	history, err := EncodeHistory(sess.History)
	if err != nil {
		return err
	}
	if _, err := s.pool.Exec(ctx, upsertSession,
		sess.ChatID, sess.ResourceRef, sess.MimeType, history, sess.UpdatedAt.UTC(),
	); err != nil {
		return fmt.Errorf("upsert session: %w", err)
	}
	return nil
}

func (s *Store) GetSession(ctx context.Context, chatID int64) (*domain.Session, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT chat_id, resource_ref, mime_type, history, updated_at FROM sessions WHERE chat_id = $1`, chatID)
	sess, err := scanSession(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	return sess, nil
}

func (s *Store) ClearSession(ctx context.Context, chatID int64) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM sessions WHERE chat_id = $1`, chatID); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func (s *Store) ListIdleSessions(ctx context.Context, before time.Time) ([]domain.Session, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT chat_id, resource_ref, mime_type, history, updated_at FROM sessions
		 WHERE updated_at < $1 ORDER BY updated_at`, before.UTC())
	if err != nil {
		return nil, fmt.Errorf("list idle sessions: %w", err)
	}
	defer rows.Close()

	var out []domain.Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		out = append(out, *sess)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return out, nil
}

func (s *Store) SavePreference(ctx context.Context, chatID int64, key domain.PreferenceKey, value string) error {
	if _, err := s.pool.Exec(ctx, `
		INSERT INTO preferences (chat_id, key, value, updated_at) VALUES ($1, $2, $3, now())
		ON CONFLICT (chat_id, key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`,
		chatID, string(key), value,
	); err != nil {
		return fmt.Errorf("upsert preference: %w", err)
	}
	return nil
}

func (s *Store) GetPreference(ctx context.Context, chatID int64, key domain.PreferenceKey) (string, bool, error) {
	var value string
	err := s.pool.QueryRow(ctx,
		`SELECT value FROM preferences WHERE chat_id = $1 AND key = $2`, chatID, string(key)).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get preference: %w", err)
	}
	return value, true, nil
}

func (s *Store) HasAcceptedTerms(ctx context.Context, chatID int64) (bool, error) {
	var accepted bool
	err := s.pool.QueryRow(ctx, `SELECT accepted FROM consents WHERE chat_id = $1`, chatID).Scan(&accepted)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("get consent: %w", err)
	}
	return accepted, nil
}

func (s *Store) AcceptTerms(ctx context.Context, chatID int64, at time.Time) error {
	if _, err := s.pool.Exec(ctx, `
		INSERT INTO consents (chat_id, accepted, accepted_at) VALUES ($1, TRUE, $2)
		ON CONFLICT (chat_id) DO UPDATE SET accepted = TRUE, accepted_at = EXCLUDED.accepted_at`,
		chatID, at.UTC(),
	); err != nil {
		return fmt.Errorf("upsert consent: %w", err)
	}
	return nil
}

func scanSession(row pgx.Row) (*domain.Session, error) {
	var (
		sess    domain.Session
		history []byte
	)
	if err := row.Scan(&sess.ChatID, &sess.ResourceRef, &sess.MimeType, &history, &sess.UpdatedAt); err != nil {
		return nil, err
	}
	turns, err := DecodeHistory(history)
	if err != nil {
		return nil, err
	}
	sess.History = turns
	sess.UpdatedAt = sess.UpdatedAt.UTC()
	return &sess, nil
}

// EncodeHistory serializes turns for the history column shared by both stores.
func EncodeHistory(turns []domain.Turn) ([]byte, error) {
	if turns == nil {
		turns = []domain.Turn{}
	}
	b, err := json.Marshal(turns)
	if err != nil {
		return nil, fmt.Errorf("encode history: %w", err)
	}
	return b, nil
}

// DecodeHistory is the inverse of EncodeHistory.
func DecodeHistory(raw []byte) ([]domain.Turn, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var turns []domain.Turn
	if err := json.Unmarshal(raw, &turns); err != nil {
		return nil, fmt.Errorf("decode history: %w", err)
	}
	return turns, nil
}
