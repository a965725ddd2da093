// Package sqlite is the single-file record store used by default.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/set-night/audiodesc/internal/domain"
	"github.com/set-night/audiodesc/internal/repository"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
    chat_id      INTEGER PRIMARY KEY,
    resource_ref TEXT    NOT NULL,
    mime_type    TEXT    NOT NULL,
    history      TEXT    NOT NULL DEFAULT '[]',
    updated_at   INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS sessions_updated_at_idx ON sessions (updated_at);
CREATE TABLE IF NOT EXISTS preferences (
    chat_id    INTEGER NOT NULL,
    key        TEXT    NOT NULL,
    value      TEXT    NOT NULL,
    updated_at INTEGER NOT NULL,
    PRIMARY KEY (chat_id, key)
);
CREATE TABLE IF NOT EXISTS consents (
    chat_id     INTEGER PRIMARY KEY,
    accepted    INTEGER NOT NULL,
    accepted_at INTEGER NOT NULL
);`

var (
	qb             = sq.StatementBuilder.PlaceholderFormat(sq.Question)
	sessionColumns = []string{"chat_id", "resource_ref", "mime_type", "history", "updated_at"}
)

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Store provides SQLite-backed persistence for sessions, preferences and consent.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) a SQLite store at path.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	cleanPath := filepath.Clean(path)
	if err := os.MkdirAll(filepath.Dir(cleanPath), 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	dsn := cleanPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	store, err := New(db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// New wraps an opened database and applies the schema. SQLite allows one
// writer, so the pool is capped at a single connection.
func New(db *sql.DB) (*Store, error) {
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) SaveSession(ctx context.Context, sess domain.Session) error {
	history, err := repository.EncodeHistory(sess.History)
	if err != nil {
		return err
	}
	query, args, err := qb.Insert("sessions").
		Columns(sessionColumns...).
		Values(sess.ChatID, sess.ResourceRef, sess.MimeType, string(history), toMillis(sess.UpdatedAt)).
		Suffix(`ON CONFLICT (chat_id) DO UPDATE SET
			resource_ref = excluded.resource_ref,
			mime_type = excluded.mime_type,
			history = excluded.history,
			updated_at = excluded.updated_at`).
		ToSql()
	if err != nil {
		return fmt.Errorf("build upsert session: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert session: %w", err)
	}
	return nil
}

func (s *Store) GetSession(ctx context.Context, chatID int64) (*domain.Session, error) {
	query, args, err := qb.Select(sessionColumns...).From("sessions").
		Where(sq.Eq{"chat_id": chatID}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build get session: %w", err)
	}
	sess, err := scanSession(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	return sess, nil
}

func (s *Store) ClearSession(ctx context.Context, chatID int64) error {
	query, args, err := qb.Delete("sessions").Where(sq.Eq{"chat_id": chatID}).ToSql()
	if err != nil {
		return fmt.Errorf("build delete session: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func (s *Store) ListIdleSessions(ctx context.Context, before time.Time) ([]domain.Session, error) {
	query, args, err := qb.Select(sessionColumns...).From("sessions").
		Where(sq.Lt{"updated_at": toMillis(before)}).
		OrderBy("updated_at").ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list idle sessions: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
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
	query, args, err := qb.Insert("preferences").
		Columns("chat_id", "key", "value", "updated_at").
		Values(chatID, string(key), value, toMillis(time.Now())).
		Suffix("ON CONFLICT (chat_id, key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("build upsert preference: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert preference: %w", err)
	}
	return nil
}

func (s *Store) GetPreference(ctx context.Context, chatID int64, key domain.PreferenceKey) (string, bool, error) {
	query, args, err := qb.Select("value").From("preferences").
		Where(sq.Eq{"chat_id": chatID, "key": string(key)}).ToSql()
	if err != nil {
		return "", false, fmt.Errorf("build get preference: %w", err)
	}
	var value string
	err = s.db.QueryRowContext(ctx, query, args...).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get preference: %w", err)
	}
	return value, true, nil
}

func (s *Store) HasAcceptedTerms(ctx context.Context, chatID int64) (bool, error) {
	query, args, err := qb.Select("accepted").From("consents").
		Where(sq.Eq{"chat_id": chatID}).ToSql()
	if err != nil {
		return false, fmt.Errorf("build get consent: %w", err)
	}
	var accepted bool
	err = s.db.QueryRowContext(ctx, query, args...).Scan(&accepted)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("get consent: %w", err)
	}
	return accepted, nil
}

func (s *Store) AcceptTerms(ctx context.Context, chatID int64, at time.Time) error {
	query, args, err := qb.Insert("consents").
		Columns("chat_id", "accepted", "accepted_at").
		Values(chatID, true, toMillis(at)).
		Suffix("ON CONFLICT (chat_id) DO UPDATE SET accepted = excluded.accepted, accepted_at = excluded.accepted_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("build upsert consent: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert consent: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*domain.Session, error) {
	var (
		sess      domain.Session
		history   string
		updatedAt int64
	)
	if err := row.Scan(&sess.ChatID, &sess.ResourceRef, &sess.MimeType, &history, &updatedAt); err != nil {
		return nil, err
	}
	turns, err := repository.DecodeHistory([]byte(history))
	if err != nil {
		return nil, err
	}
	sess.History = turns
	sess.UpdatedAt = fromMillis(updatedAt)
	return &sess, nil
}
