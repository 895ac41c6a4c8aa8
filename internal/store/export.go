package store

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kittclouds/bookshelf/internal/logger"
)

// backupVersion is bumped when the export layout changes.
const backupVersion = 1

// Backup is the portable JSON export of every table except the embedding
// index, which is derived data and can be rebuilt by the embedding pipeline.
type Backup struct {
	Version         int              `json:"version"`
	ExportedAt      int64            `json:"exportedAt"`
	Bookmarks       []*Bookmark      `json:"bookmarks"`
	Collections     []*Collection    `json:"collections"`
	CollectionItems []CollectionItem `json:"collectionItems"`
	SnoozedItems    []*SnoozedItem   `json:"snoozedItems"`
}

// Export serializes all database tables to JSON bytes, trashed rows included.
// This is a portable export that doesn't depend on sqlite3 serialization APIs.
// All tables are read from one snapshot.
func (s *SQLiteStore) Export(ctx context.Context) ([]byte, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}

	data := Backup{Version: backupVersion, ExportedAt: s.nowMillis()}
	err := s.withReadTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		query, args := buildBookmarkQuery(BookmarkFilter{IncludeDeleted: true})
		rows, err := tx.QueryContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("export bookmarks: %w", err)
		}
		if data.Bookmarks, err = scanBookmarks(rows); err != nil {
			return fmt.Errorf("export bookmarks: %w", err)
		}
		if err := attachLabels(ctx, tx, data.Bookmarks); err != nil {
			return fmt.Errorf("export labels: %w", err)
		}

		data.Collections, err = s.queryCollections(ctx, tx,
			`SELECT `+collectionColumns+` FROM bookmark_collections c ORDER BY c.date_created, c.id`, nil, false)
		if err != nil {
			return fmt.Errorf("export collections: %w", err)
		}

		if data.CollectionItems, err = exportCollectionItems(ctx, tx); err != nil {
			return err
		}

		data.SnoozedItems, err = s.listSnoozes(ctx, tx,
			`SELECT `+snoozeColumns+` FROM snoozed_items ORDER BY snooze_until ASC, id`)
		if err != nil {
			return fmt.Errorf("export snoozes: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, s.storageErr(err)
	}

	return json.Marshal(data)
}

func exportCollectionItems(ctx context.Context, q querier) ([]CollectionItem, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT collection_id, bookmark_id, position, date_added
		FROM collection_items ORDER BY collection_id, position
	`)
	if err != nil {
		return nil, fmt.Errorf("export collection items: %w", err)
	}
	defer rows.Close()

	items := []CollectionItem{}
	for rows.Next() {
		var it CollectionItem
		if err := rows.Scan(&it.CollectionID, &it.BookmarkID, &it.Position, &it.DateAdded); err != nil {
			return nil, fmt.Errorf("scan collection item: %w", err)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("export collection items: %w", err)
	}
	return items, nil
}

// validate rejects enum values the store would never write itself.
func (b *Backup) validate() error {
	for _, bm := range b.Bookmarks {
		if bm == nil {
			return invalidf("null bookmark in backup")
		}
		for _, l := range bm.Labels {
			if l.Source != "" && !l.Source.Valid() {
				return invalidf("bookmark %s: unknown label source %q", bm.ID, l.Source)
			}
		}
	}
	for _, c := range b.Collections {
		if c == nil {
			return invalidf("null collection in backup")
		}
	}
	for _, it := range b.SnoozedItems {
		if it == nil {
			return invalidf("null snooze in backup")
		}
		if !it.ItemType.Valid() {
			return invalidf("snooze %s: unknown item type %q", it.ID, it.ItemType)
		}
		if !it.SnoozeType.Valid() {
			return invalidf("snooze %s: unknown snooze type %q", it.ID, it.SnoozeType)
		}
	}
	return nil
}

// Import restores the database state from an exported JSON byte slice.
// Clears all existing data and re-inserts from the export, in one
// transaction. A label text repeated on a bookmark keeps its first row.
// Memberships whose bookmark or collection is missing from the backup are
// dropped.
func (s *SQLiteStore) Import(ctx context.Context, data []byte) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return invalidf("empty backup")
	}

	var backup Backup
	if err := json.Unmarshal(data, &backup); err != nil {
		return invalidf("import unmarshal: %v", err)
	}
	if backup.Version > backupVersion {
		return invalidf("backup version %d is newer than %d", backup.Version, backupVersion)
	}
	if err := backup.validate(); err != nil {
		return err
	}

	bookmarkIDs := make(map[string]struct{}, len(backup.Bookmarks))
	for _, b := range backup.Bookmarks {
		bookmarkIDs[b.ID] = struct{}{}
	}
	collectionIDs := make(map[string]struct{}, len(backup.Collections))
	for _, c := range backup.Collections {
		collectionIDs[c.ID] = struct{}{}
	}

	skipped := 0
	err := s.withTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		// Clear all tables
		tables := []string{"bookmark_labels", "collection_items", "bookmark_collections", "snoozed_items", "bookmarks"}
		for _, table := range tables {
			if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
				return fmt.Errorf("clear %s: %w", table, err)
			}
		}
		if s.vectors {
			if _, err := tx.ExecContext(ctx, "DELETE FROM bookmark_vectors"); err != nil {
				return fmt.Errorf("clear bookmark_vectors: %w", err)
			}
			if _, err := tx.ExecContext(ctx, "DELETE FROM bookmark_vector_keys"); err != nil {
				return fmt.Errorf("clear bookmark_vector_keys: %w", err)
			}
		}

		// Re-insert bookmarks with their labels
		for _, b := range backup.Bookmarks {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO bookmarks (id, url, title, description, favicon, profile_id, space_id,
					is_global, date_added, date_modified, deleted_at, visit_count, last_visited)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			`, b.ID, b.URL, b.Title, nullString(b.Description), nullString(b.Favicon), b.ProfileID,
				b.SpaceID, boolToInt(b.IsGlobal), b.DateAdded, nullInt64(b.DateModified),
				nullInt64(b.DeletedAt), b.VisitCount, nullInt64(b.LastVisited))
			if err != nil {
				return fmt.Errorf("import bookmark %s: %w", b.ID, err)
			}
			n, err := importLabels(ctx, tx, b)
			if err != nil {
				return err
			}
			skipped += n
		}

		// Re-insert collections
		for _, c := range backup.Collections {
			rules, err := marshalMap(c.Rules)
			if err != nil {
				return invalidf("rules of %s: %v", c.ID, err)
			}
			_, err = tx.ExecContext(ctx, `
				INSERT INTO bookmark_collections (id, name, description, profile_id, space_id, parent_id,
					is_auto, rules, date_created, date_modified, deleted_at)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			`, c.ID, c.Name, nullString(c.Description), c.ProfileID, nullString(c.SpaceID),
				nullString(c.ParentID), boolToInt(c.IsAuto), rules, c.DateCreated,
				nullInt64(c.DateModified), nullInt64(c.DeletedAt))
			if err != nil {
				return fmt.Errorf("import collection %s: %w", c.ID, err)
			}
		}

		// Re-insert memberships
		for _, it := range backup.CollectionItems {
			_, okBookmark := bookmarkIDs[it.BookmarkID]
			_, okCollection := collectionIDs[it.CollectionID]
			if !okBookmark || !okCollection {
				skipped++
				continue
			}
			if _, err := tx.ExecContext(ctx, `
				INSERT OR IGNORE INTO collection_items (collection_id, bookmark_id, position, date_added)
				VALUES (?, ?, ?, ?)
			`, it.CollectionID, it.BookmarkID, it.Position, it.DateAdded); err != nil {
				return fmt.Errorf("import collection item %s/%s: %w", it.CollectionID, it.BookmarkID, err)
			}
		}

		// Re-insert snoozes
		for _, it := range backup.SnoozedItems {
			original, err := marshalMap(it.OriginalData)
			if err != nil {
				return invalidf("original data of %s: %v", it.ID, err)
			}
			_, err = tx.ExecContext(ctx, `
				INSERT INTO snoozed_items (`+snoozeColumns+`)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			`, it.ID, string(it.ItemType), it.ItemID, it.ProfileID, it.SpaceID, it.SnoozeUntil,
				string(it.SnoozeType), nullString(it.SnoozeLabel), original, it.SnoozedAt,
				nullString(it.SnoozedFromSpaceID), boolToInt(it.NotificationSent), nullInt64(it.WakeUpNotifiedAt))
			if err != nil {
				return fmt.Errorf("import snooze %s: %w", it.ID, err)
			}
		}
		return nil
	})
	if err != nil {
		return s.storageErr(err)
	}
	if skipped > 0 {
		s.log.Warn("backup restored with dangling rows dropped", logger.Int("skipped", skipped))
	}
	return nil
}

// importLabels writes the labels of one restored bookmark, keeping the first
// row for each text. It returns how many rows were dropped.
func importLabels(ctx context.Context, tx *sql.Tx, b *Bookmark) (int, error) {
	seen := make(map[string]struct{}, len(b.Labels))
	skipped := 0
	for _, l := range b.Labels {
		text := strings.TrimSpace(l.Text)
		if text == "" {
			skipped++
			continue
		}
		if _, ok := seen[text]; ok {
			skipped++
			continue
		}
		seen[text] = struct{}{}

		source := l.Source
		if source == "" {
			source = LabelSourceUser
		}
		var confidence sql.NullFloat64
		if source == LabelSourceAI && l.Confidence != nil {
			confidence = sql.NullFloat64{Float64: *l.Confidence, Valid: true}
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO bookmark_labels (`+labelColumns+`)
			VALUES (?, ?, ?, ?, ?, ?)
		`, b.ID, text, string(source), nullString(l.Category), confidence, l.CreatedAt); err != nil {
			return skipped, fmt.Errorf("import label %q of %s: %w", text, b.ID, err)
		}
	}
	return skipped, nil
}
