package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/kittclouds/bookshelf/internal/logger"
)

// schema defines every table. Statements are idempotent; existing data is
// never dropped or rewritten.
const schema = `
-- Bookmarks (soft delete via deleted_at)
CREATE TABLE IF NOT EXISTS bookmarks (
    id TEXT PRIMARY KEY,
    url TEXT NOT NULL,
    title TEXT NOT NULL,
    description TEXT,
    favicon TEXT,
    profile_id TEXT NOT NULL,
    space_id TEXT NOT NULL,
    is_global INTEGER NOT NULL DEFAULT 0,
    date_added INTEGER NOT NULL,
    date_modified INTEGER,
    deleted_at INTEGER,
    visit_count INTEGER NOT NULL DEFAULT 0,
    last_visited INTEGER
);

-- Labels: one row per (bookmark_id, label), enforced in Go
CREATE TABLE IF NOT EXISTS bookmark_labels (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    bookmark_id TEXT NOT NULL,
    label TEXT NOT NULL,
    source TEXT NOT NULL DEFAULT 'user',
    category TEXT,
    confidence REAL,
    created_at INTEGER NOT NULL
);

-- Collections (weak parent reference, soft delete)
CREATE TABLE IF NOT EXISTS bookmark_collections (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    description TEXT,
    profile_id TEXT NOT NULL,
    space_id TEXT,
    parent_id TEXT,
    is_auto INTEGER NOT NULL DEFAULT 0,
    rules TEXT,
    date_created INTEGER NOT NULL,
    date_modified INTEGER,
    deleted_at INTEGER
);

-- CollectionItems: junction with append-only positions
-- Note: No foreign keys - cascades are done by the purge operations
CREATE TABLE IF NOT EXISTS collection_items (
    collection_id TEXT NOT NULL,
    bookmark_id TEXT NOT NULL,
    position INTEGER NOT NULL,
    date_added INTEGER NOT NULL,
    PRIMARY KEY (collection_id, bookmark_id)
);

-- Snoozed items (external sweeper reads ready rows)
CREATE TABLE IF NOT EXISTS snoozed_items (
    id TEXT PRIMARY KEY,
    item_type TEXT NOT NULL,
    item_id TEXT NOT NULL,
    profile_id TEXT NOT NULL,
    space_id TEXT NOT NULL,
    snooze_until INTEGER NOT NULL,
    snooze_type TEXT NOT NULL,
    snooze_label TEXT,
    original_data TEXT,
    snoozed_at INTEGER NOT NULL,
    snoozed_from_space_id TEXT,
    notification_sent INTEGER NOT NULL DEFAULT 0,
    wake_up_notified_at INTEGER
);

-- Maps bookmark ids to the integer rowids used by the vec0 table
CREATE TABLE IF NOT EXISTS bookmark_vector_keys (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    bookmark_id TEXT NOT NULL UNIQUE
);
`

// indexes run after column upgrades so they may reference added columns.
const indexes = `
CREATE INDEX IF NOT EXISTS idx_bookmarks_dedupe ON bookmarks(url, profile_id, space_id);
CREATE INDEX IF NOT EXISTS idx_bookmarks_profile ON bookmarks(profile_id, space_id);
CREATE INDEX IF NOT EXISTS idx_bookmarks_added ON bookmarks(date_added DESC);
CREATE INDEX IF NOT EXISTS idx_bookmarks_deleted ON bookmarks(deleted_at);

CREATE INDEX IF NOT EXISTS idx_labels_bookmark ON bookmark_labels(bookmark_id);
CREATE INDEX IF NOT EXISTS idx_labels_label ON bookmark_labels(label);

CREATE INDEX IF NOT EXISTS idx_collections_profile ON bookmark_collections(profile_id);
CREATE INDEX IF NOT EXISTS idx_collections_parent ON bookmark_collections(parent_id);

CREATE INDEX IF NOT EXISTS idx_collection_items_bookmark ON collection_items(bookmark_id);
CREATE INDEX IF NOT EXISTS idx_collection_items_position ON collection_items(collection_id, position);

CREATE INDEX IF NOT EXISTS idx_snoozed_item ON snoozed_items(item_type, item_id);
CREATE INDEX IF NOT EXISTS idx_snoozed_ready ON snoozed_items(notification_sent, snooze_until);
`

type columnDef struct {
	table      string
	name       string
	definition string
}

// upgradeColumns lists columns added after the first release. Older
// databases get them through ALTER TABLE; definitions need defaults when
// NOT NULL.
var upgradeColumns = []columnDef{
	{"bookmarks", "description", "TEXT"},
	{"bookmarks", "favicon", "TEXT"},
	{"bookmarks", "is_global", "INTEGER NOT NULL DEFAULT 0"},
	{"bookmarks", "date_modified", "INTEGER"},
	{"bookmarks", "deleted_at", "INTEGER"},
	{"bookmarks", "visit_count", "INTEGER NOT NULL DEFAULT 0"},
	{"bookmarks", "last_visited", "INTEGER"},
	{"bookmark_labels", "source", "TEXT NOT NULL DEFAULT 'user'"},
	{"bookmark_labels", "category", "TEXT"},
	{"bookmark_labels", "confidence", "REAL"},
	{"bookmark_collections", "parent_id", "TEXT"},
	{"bookmark_collections", "is_auto", "INTEGER NOT NULL DEFAULT 0"},
	{"bookmark_collections", "rules", "TEXT"},
	{"bookmark_collections", "date_modified", "INTEGER"},
	{"bookmark_collections", "deleted_at", "INTEGER"},
	{"snoozed_items", "snoozed_from_space_id", "TEXT"},
	{"snoozed_items", "notification_sent", "INTEGER NOT NULL DEFAULT 0"},
	{"snoozed_items", "wake_up_notified_at", "INTEGER"},
}

// SchemaManager runs the schema migration with linear backoff.
type SchemaManager struct {
	Retries int
	Delay   time.Duration
	Migrate func(ctx context.Context) error
	Sleep   func(time.Duration)
	Log     logger.Logger
}

// Run executes Migrate once plus up to Retries retries, sleeping
// attempt×Delay before each retry. It returns the last error, wrapped in
// ErrSchemaUnavailable, when every attempt failed.
func (m *SchemaManager) Run(ctx context.Context) error {
	sleep := m.Sleep
	if sleep == nil {
		sleep = time.Sleep
	}

	var err error
	for attempt := 0; attempt <= m.Retries; attempt++ {
		if attempt > 0 {
			wait := time.Duration(attempt) * m.Delay
			m.Log.Warn("schema init failed, retrying",
				logger.Int("attempt", attempt),
				logger.Duration("next_retry_in", wait),
				logger.Error(err))
			sleep(wait)
		}

		if err = m.Migrate(ctx); err == nil {
			if attempt > 0 {
				m.Log.Info("schema ready after retry", logger.Int("attempts", attempt+1))
			}
			return nil
		}
	}

	m.Log.Error("schema init gave up, store is degraded",
		logger.Int("attempts", m.Retries+1),
		logger.Error(err))
	return fmt.Errorf("%w: %v", ErrSchemaUnavailable, err)
}

// migrate creates tables, adds missing columns, then indexes.
func (s *SQLiteStore) migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create tables: %w", err)
	}

	for _, c := range upgradeColumns {
		if err := addColumnIfNotExists(ctx, s.db, c); err != nil {
			return fmt.Errorf("add column %s.%s: %w", c.table, c.name, err)
		}
	}

	if _, err := s.db.ExecContext(ctx, indexes); err != nil {
		return fmt.Errorf("create indexes: %w", err)
	}

	// The vec0 table is optional: similarity lookups are disabled when the
	// extension refuses it, everything else keeps working.
	vecTable := fmt.Sprintf(
		`CREATE VIRTUAL TABLE IF NOT EXISTS bookmark_vectors USING vec0(embedding float[%d])`,
		s.cfg.EmbeddingDimensions)
	if _, err := s.db.ExecContext(ctx, vecTable); err != nil {
		s.log.Warn("vector index disabled", logger.Error(err))
		s.vectors = false
	} else {
		s.vectors = true
	}

	return nil
}

func addColumnIfNotExists(ctx context.Context, db *sql.DB, c columnDef) error {
	exists, err := columnExists(ctx, db, c.table, c.name)
	if err != nil || exists {
		return err
	}
	_, err = db.ExecContext(ctx, fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", c.table, c.name, c.definition))
	return err
}

func columnExists(ctx context.Context, db *sql.DB, table, column string) (bool, error) {
	rows, err := db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return false, err
	}
	defer rows.Close()

	found := false
	for rows.Next() {
		var cid, notNull, pk int
		var name, typ string
		var defaultValue any
		if err := rows.Scan(&cid, &name, &typ, &notNull, &defaultValue, &pk); err != nil {
			return false, err
		}
		if name == column {
			found = true
		}
	}
	return found, rows.Err()
}
