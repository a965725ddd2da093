//go:build integration

package repository

import (
	"context"
	"io/fs"
	"testing"
	"time"

	"github.com/set-night/audiodesc"
	"github.com/set-night/audiodesc/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx, "postgres:16",
		postgres.WithDatabase("audiodesc"),
		postgres.WithUsername("audiodesc"),
		postgres.WithPassword("audiodesc"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pgContainer.Terminate(ctx) })

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	migrationsFS, err := fs.Sub(audiodesc.MigrationsFS, "migrations")
	require.NoError(t, err)
	require.NoError(t, RunMigrations(connStr, migrationsFS))
	// Second run is a no-op.
	require.NoError(t, RunMigrations(connStr, migrationsFS))

	pool, err := NewPool(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	return NewStore(pool)
}

func TestStore_Postgres(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	t.Run("session lifecycle", func(t *testing.T) {
		_, err := s.GetSession(ctx, 1)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound)

		sess := domain.Session{ChatID: 1, ResourceRef: "tok", MimeType: "image/png", UpdatedAt: now}
		require.NoError(t, s.SaveSession(ctx, sess))

		got, err := s.GetSession(ctx, 1)
		require.NoError(t, err)
		assert.Empty(t, got.History)
		assert.True(t, now.Equal(got.UpdatedAt))

		sess.History = []domain.Turn{
			{Role: domain.RoleUser, Parts: []string{"q"}},
			{Role: domain.RoleModel, Parts: []string{"a"}},
		}
		sess.UpdatedAt = now.Add(time.Minute)
		require.NoError(t, s.SaveSession(ctx, sess))

		got, err = s.GetSession(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, sess.History, got.History)

		require.NoError(t, s.ClearSession(ctx, 1))
		_, err = s.GetSession(ctx, 1)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	})

	t.Run("idle sessions", func(t *testing.T) {
		require.NoError(t, s.SaveSession(ctx, domain.Session{ChatID: 10, ResourceRef: "a", MimeType: "x", UpdatedAt: now.Add(-time.Hour)}))
		require.NoError(t, s.SaveSession(ctx, domain.Session{ChatID: 11, ResourceRef: "b", MimeType: "x", UpdatedAt: now}))

		idle, err := s.ListIdleSessions(ctx, now.Add(-time.Minute))
		require.NoError(t, err)
		require.Len(t, idle, 1)
		assert.Equal(t, int64(10), idle[0].ChatID)
	})

	t.Run("preferences", func(t *testing.T) {
		_, ok, err := s.GetPreference(ctx, 2, domain.PrefStyle)
		require.NoError(t, err)
		assert.False(t, ok)

		require.NoError(t, s.SavePreference(ctx, 2, domain.PrefStyle, domain.StyleShort))
		require.NoError(t, s.SavePreference(ctx, 2, domain.PrefStyle, domain.StyleLong))
		v, ok, err := s.GetPreference(ctx, 2, domain.PrefStyle)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, domain.StyleLong, v)
	})

	t.Run("consent", func(t *testing.T) {
		ok, err := s.HasAcceptedTerms(ctx, 3)
		require.NoError(t, err)
		assert.False(t, ok)

		require.NoError(t, s.AcceptTerms(ctx, 3, now))
		require.NoError(t, s.AcceptTerms(ctx, 3, now.Add(time.Second)))
		ok, err = s.HasAcceptedTerms(ctx, 3)
		require.NoError(t, err)
		assert.True(t, ok)
	})
}
