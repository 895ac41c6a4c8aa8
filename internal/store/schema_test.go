package store

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kittclouds/bookshelf/internal/logger"
)

func TestOpenUpgradesOldDatabase(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "books.db")

	// A first-release database: no soft delete, no visits, no label sources.
	old, err := sql.Open("sqlite3", "file:"+filepath.ToSlash(path))
	require.NoError(t, err)
	_, err = old.Exec(`
		CREATE TABLE bookmarks (
			id TEXT PRIMARY KEY,
			url TEXT NOT NULL,
			title TEXT NOT NULL,
			profile_id TEXT NOT NULL,
			space_id TEXT NOT NULL,
			date_added INTEGER NOT NULL
		);
		CREATE TABLE bookmark_labels (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			bookmark_id TEXT NOT NULL,
			label TEXT NOT NULL,
			created_at INTEGER NOT NULL
		);
		INSERT INTO bookmarks VALUES ('b1', 'https://old.example', 'Old', 'p1', 's1', 1000);
		INSERT INTO bookmark_labels (bookmark_id, label, created_at) VALUES ('b1', 'legacy', 1000);
	`)
	require.NoError(t, err)
	require.NoError(t, old.Close())

	s, err := Open(ctx, Config{Path: path, EmbeddingDimensions: 3}, logger.Nop())
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Ready(ctx))
	require.NoError(t, s.Degraded())

	b, err := s.GetBookmark(ctx, "b1")
	require.NoError(t, err)
	require.NotNil(t, b)
	assert.Equal(t, "Old", b.Title)
	assert.Zero(t, b.VisitCount)
	assert.False(t, b.Deleted())
	require.Len(t, b.Labels, 1)
	assert.Equal(t, LabelSourceUser, b.Labels[0].Source)

	ok, err := s.DeleteBookmark(ctx, "b1")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestOpenIsIdempotent(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "books.db")

	s, err := Open(ctx, Config{Path: path}, nil)
	require.NoError(t, err)
	require.NoError(t, s.Ready(ctx))
	b, err := s.CreateBookmark(ctx, CreateBookmarkInput{URL: "https://a.com", Title: "A", ProfileID: "p1", SpaceID: "s1"})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Open(ctx, Config{Path: path}, nil)
	require.NoError(t, err)
	defer s.Close()
	require.NoError(t, s.Ready(ctx))
	require.NoError(t, s.Degraded())

	got, err := s.GetBookmark(ctx, b.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "A", got.Title)
}

func TestOpenDegradesWhenSchemaFails(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "missing", "dir", "books.db")

	s, err := Open(ctx, Config{Path: path, SchemaRetries: 1, SchemaRetryDelay: time.Millisecond}, nil)
	require.NoError(t, err)
	defer s.Close()

	// Ready never hangs, even when initialisation failed.
	require.NoError(t, s.Ready(ctx))
	assert.ErrorIs(t, s.Degraded(), ErrSchemaUnavailable)

	_, err = s.CreateBookmark(ctx, CreateBookmarkInput{URL: "https://a.com", Title: "A", ProfileID: "p1", SpaceID: "s1"})
	assert.ErrorIs(t, err, ErrSchemaUnavailable)

	_, err = s.ListBookmarks(ctx, BookmarkFilter{})
	assert.ErrorIs(t, err, ErrSchemaUnavailable)
}

func TestOperationsWaitForReadiness(t *testing.T) {
	s := newTestStore(t)

	// Swap in an unreleased gate to simulate a schema still in flight.
	released := s.gate
	s.gate = NewGate()
	t.Cleanup(func() { s.gate = released })

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := s.GetBookmark(ctx, "any")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	s.gate.Release(nil)
	_, err = s.GetBookmark(context.Background(), "any")
	assert.NoError(t, err)
}
