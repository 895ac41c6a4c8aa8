package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

const bookmarkColumns = `b.id, b.url, b.title, b.description, b.favicon, b.profile_id, b.space_id,
	b.is_global, b.date_added, b.date_modified, b.deleted_at, b.visit_count, b.last_visited`

// =============================================================================
// Bookmark CRUD
// =============================================================================

// CreateBookmark inserts a bookmark with a fresh UUID and seeds its user
// labels in the same transaction. Uniqueness is not enforced; callers check
// BookmarkExists first.
func (s *SQLiteStore) CreateBookmark(ctx context.Context, in CreateBookmarkInput) (*Bookmark, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}

	in.URL = strings.TrimSpace(in.URL)
	in.Title = strings.TrimSpace(in.Title)
	if err := s.validateStruct(in); err != nil {
		return nil, err
	}

	now := s.nowMillis()
	b := &Bookmark{
		ID:          uuid.NewString(),
		URL:         in.URL,
		Title:       in.Title,
		Description: in.Description,
		Favicon:     in.Favicon,
		ProfileID:   in.ProfileID,
		SpaceID:     in.SpaceID,
		IsGlobal:    in.IsGlobal,
		DateAdded:   now,
	}
	if in.DateAdded > 0 {
		b.DateAdded = in.DateAdded
	}

	err := s.withTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO bookmarks (id, url, title, description, favicon, profile_id, space_id,
				is_global, date_added, visit_count)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 0)
		`, b.ID, b.URL, b.Title, nullString(b.Description), nullString(b.Favicon),
			b.ProfileID, b.SpaceID, boolToInt(b.IsGlobal), b.DateAdded)
		if err != nil {
			return fmt.Errorf("insert bookmark: %w", err)
		}

		if err := replaceUserLabels(ctx, tx, b.ID, normalizeLabelTexts(in.Labels), now); err != nil {
			return err
		}
		b.Labels, err = loadLabels(ctx, tx, b.ID)
		return err
	})
	if err != nil {
		return nil, s.storageErr(fmt.Errorf("create bookmark: %w", err))
	}
	return b, nil
}

// GetBookmark retrieves a bookmark with its labels. Returns nil if not found.
func (s *SQLiteStore) GetBookmark(ctx context.Context, id string) (*Bookmark, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx, `SELECT `+bookmarkColumns+` FROM bookmarks b WHERE b.id = ?`, id)
	b, err := scanBookmark(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, s.storageErr(fmt.Errorf("get bookmark: %w", err))
	}

	if b.Labels, err = loadLabels(ctx, s.db, b.ID); err != nil {
		return nil, s.storageErr(err)
	}
	return b, nil
}

// UpdateBookmark applies a partial patch and always stamps DateModified.
// Returns nil if the bookmark does not exist.
func (s *SQLiteStore) UpdateBookmark(ctx context.Context, id string, patch BookmarkPatch) (*Bookmark, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}

	var sets []string
	var args []any

	if patch.URL != nil {
		v := strings.TrimSpace(*patch.URL)
		if v == "" {
			return nil, invalidf("url must not be empty")
		}
		sets = append(sets, "url = ?")
		args = append(args, v)
	}
	if patch.Title != nil {
		v := strings.TrimSpace(*patch.Title)
		if v == "" {
			return nil, invalidf("title must not be empty")
		}
		sets = append(sets, "title = ?")
		args = append(args, v)
	}
	if patch.Description != nil {
		sets = append(sets, "description = ?")
		args = append(args, nullString(*patch.Description))
	}
	if patch.Favicon != nil {
		sets = append(sets, "favicon = ?")
		args = append(args, nullString(*patch.Favicon))
	}
	if patch.SpaceID != nil {
		if *patch.SpaceID == "" {
			return nil, invalidf("spaceId must not be empty")
		}
		sets = append(sets, "space_id = ?")
		args = append(args, *patch.SpaceID)
	}
	if patch.IsGlobal != nil {
		sets = append(sets, "is_global = ?")
		args = append(args, boolToInt(*patch.IsGlobal))
	}

	now := s.nowMillis()
	sets = append(sets, "date_modified = ?")
	args = append(args, now, id)

	found := false
	err := s.withTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `UPDATE bookmarks SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
		if err != nil {
			return fmt.Errorf("update bookmark: %w", err)
		}
		n, err := rowsAffected(res)
		if err != nil || n == 0 {
			return err
		}
		found = true

		if patch.Labels != nil {
			if err := replaceUserLabels(ctx, tx, id, normalizeLabelTexts(patch.Labels), now); err != nil {
				return err
			}
		}
		if len(patch.AddLabels) > 0 {
			if _, err := mergeLabels(ctx, tx, id, patch.AddLabels, now); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, s.storageErr(err)
	}
	if !found {
		return nil, nil
	}
	return s.GetBookmark(ctx, id)
}

// DeleteBookmark moves a live bookmark to the trash.
func (s *SQLiteStore) DeleteBookmark(ctx context.Context, id string) (bool, error) {
	if err := s.ready(ctx); err != nil {
		return false, err
	}
	now := s.nowMillis()
	res, err := s.db.ExecContext(ctx, `
		UPDATE bookmarks SET deleted_at = ?, date_modified = ?
		WHERE id = ? AND deleted_at IS NULL
	`, now, now, id)
	if err != nil {
		return false, s.storageErr(fmt.Errorf("delete bookmark: %w", err))
	}
	n, err := rowsAffected(res)
	return n > 0, err
}

// RestoreBookmark takes a bookmark out of the trash.
func (s *SQLiteStore) RestoreBookmark(ctx context.Context, id string) (bool, error) {
	if err := s.ready(ctx); err != nil {
		return false, err
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE bookmarks SET deleted_at = NULL, date_modified = ?
		WHERE id = ? AND deleted_at IS NOT NULL
	`, s.nowMillis(), id)
	if err != nil {
		return false, s.storageErr(fmt.Errorf("restore bookmark: %w", err))
	}
	n, err := rowsAffected(res)
	return n > 0, err
}

// PurgeBookmark hard-deletes a bookmark with its labels, collection
// memberships and embedding. All or nothing.
func (s *SQLiteStore) PurgeBookmark(ctx context.Context, id string) (bool, error) {
	if err := s.ready(ctx); err != nil {
		return false, err
	}

	found := false
	err := s.withTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM bookmark_labels WHERE bookmark_id = ?`, id); err != nil {
			return fmt.Errorf("purge labels: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM collection_items WHERE bookmark_id = ?`, id); err != nil {
			return fmt.Errorf("purge collection items: %w", err)
		}
		if err := s.deleteEmbeddingTx(ctx, tx, id); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM bookmarks WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("purge bookmark: %w", err)
		}
		n, err := rowsAffected(res)
		found = n > 0
		return err
	})
	if err != nil {
		return false, s.storageErr(err)
	}
	return found, nil
}

// DeleteBookmarks soft-deletes many bookmarks and returns how many moved to
// the trash.
func (s *SQLiteStore) DeleteBookmarks(ctx context.Context, ids []string) (int, error) {
	if err := s.ready(ctx); err != nil {
		return 0, err
	}
	ids = dedupe(ids)
	if len(ids) == 0 {
		return 0, nil
	}

	now := s.nowMillis()
	total := 0
	err := s.withTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		for _, part := range chunk(ids, 500) {
			args := []any{now, now}
			for _, id := range part {
				args = append(args, id)
			}
			res, err := tx.ExecContext(ctx, `
				UPDATE bookmarks SET deleted_at = ?, date_modified = ?
				WHERE deleted_at IS NULL AND id IN (`+placeholders(len(part))+`)
			`, args...)
			if err != nil {
				return fmt.Errorf("delete bookmarks: %w", err)
			}
			n, err := rowsAffected(res)
			if err != nil {
				return err
			}
			total += int(n)
		}
		return nil
	})
	if err != nil {
		return 0, s.storageErr(err)
	}
	return total, nil
}

// ListBookmarks returns bookmarks matching filter, newest first, or in
// collection position order when filtering by collection.
func (s *SQLiteStore) ListBookmarks(ctx context.Context, filter BookmarkFilter) ([]*Bookmark, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}

	query, args := buildBookmarkQuery(filter)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, s.storageErr(fmt.Errorf("list bookmarks: %w", err))
	}
	bookmarks, err := scanBookmarks(rows)
	if err != nil {
		return nil, s.storageErr(err)
	}
	if err := attachLabels(ctx, s.db, bookmarks); err != nil {
		return nil, s.storageErr(err)
	}
	return bookmarks, nil
}

func buildBookmarkQuery(f BookmarkFilter) (string, []any) {
	var where []string
	var args []any
	from := "bookmarks b"
	order := "b.date_added DESC, b.id"

	// A collection filter orders by position and overrides the label set.
	if f.CollectionID != "" {
		from = "bookmarks b JOIN collection_items ci ON ci.bookmark_id = b.id"
		where = append(where, "ci.collection_id = ?")
		args = append(args, f.CollectionID)
		order = "ci.position ASC"
	} else if labels := normalizeLabelTexts(f.Labels); len(labels) > 0 {
		where = append(where, `b.id IN (
			SELECT bookmark_id FROM bookmark_labels
			WHERE label IN (`+placeholders(len(labels))+`)
			GROUP BY bookmark_id
			HAVING COUNT(DISTINCT label) = ?)`)
		for _, l := range labels {
			args = append(args, l)
		}
		args = append(args, len(labels))
	}

	if f.ProfileID != "" {
		where = append(where, "(b.profile_id = ? OR b.is_global = 1)")
		args = append(args, f.ProfileID)
	}
	if f.SpaceID != "" {
		where = append(where, "(b.space_id = ? OR b.is_global = 1)")
		args = append(args, f.SpaceID)
	}
	if f.IsGlobal != nil {
		where = append(where, "b.is_global = ?")
		args = append(args, boolToInt(*f.IsGlobal))
	}
	if term := strings.TrimSpace(f.Search); term != "" {
		pattern := "%" + escapeLike(strings.ToLower(term)) + "%"
		where = append(where, `(LOWER(b.title) LIKE ? ESCAPE '\'
			OR LOWER(b.url) LIKE ? ESCAPE '\'
			OR LOWER(COALESCE(b.description, '')) LIKE ? ESCAPE '\')`)
		args = append(args, pattern, pattern, pattern)
	}

	switch {
	case f.OnlyDeleted:
		where = append(where, "b.deleted_at IS NOT NULL")
	case f.IncludeDeleted:
	default:
		where = append(where, "b.deleted_at IS NULL")
	}

	query := "SELECT " + bookmarkColumns + " FROM " + from
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY " + order
	return query, args
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// BookmarkExists reports whether any bookmark, trashed ones included, has
// this url in the profile and space.
func (s *SQLiteStore) BookmarkExists(ctx context.Context, url, profileID, spaceID string) (bool, error) {
	if err := s.ready(ctx); err != nil {
		return false, err
	}
	var one int
	err := s.db.QueryRowContext(ctx, `
		SELECT 1 FROM bookmarks WHERE url = ? AND profile_id = ? AND space_id = ? LIMIT 1
	`, strings.TrimSpace(url), profileID, spaceID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, s.storageErr(fmt.Errorf("bookmark exists: %w", err))
	}
	return true, nil
}

// IncrementVisitCount bumps the visit counter and moves LastVisited forward.
// Missing ids are ignored.
func (s *SQLiteStore) IncrementVisitCount(ctx context.Context, id string) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `
		UPDATE bookmarks
		SET visit_count = visit_count + 1,
			last_visited = MAX(COALESCE(last_visited, 0), ?)
		WHERE id = ?
	`, s.nowMillis(), id)
	if err != nil {
		return s.storageErr(fmt.Errorf("increment visit count: %w", err))
	}
	return nil
}

// ListBookmarksByURL returns the live bookmarks of every profile and space
// that share exactly this url.
func (s *SQLiteStore) ListBookmarksByURL(ctx context.Context, url string) ([]*Bookmark, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+bookmarkColumns+` FROM bookmarks b
		WHERE b.url = ? AND b.deleted_at IS NULL
		ORDER BY b.date_added DESC, b.id
	`, strings.TrimSpace(url))
	if err != nil {
		return nil, s.storageErr(fmt.Errorf("list bookmarks by url: %w", err))
	}
	bookmarks, err := scanBookmarks(rows)
	if err != nil {
		return nil, s.storageErr(err)
	}
	if err := attachLabels(ctx, s.db, bookmarks); err != nil {
		return nil, s.storageErr(err)
	}
	return bookmarks, nil
}

// =============================================================================
// Row mapping
// =============================================================================

func scanBookmark(row interface{ Scan(...any) error }) (*Bookmark, error) {
	var b Bookmark
	var description, favicon sql.NullString
	var isGlobal int
	var dateModified, deletedAt, lastVisited sql.NullInt64

	if err := row.Scan(
		&b.ID, &b.URL, &b.Title, &description, &favicon, &b.ProfileID, &b.SpaceID,
		&isGlobal, &b.DateAdded, &dateModified, &deletedAt, &b.VisitCount, &lastVisited,
	); err != nil {
		return nil, err
	}

	b.Description = description.String
	b.Favicon = favicon.String
	b.IsGlobal = isGlobal == 1
	b.DateModified = int64Ptr(dateModified)
	b.DeletedAt = int64Ptr(deletedAt)
	b.LastVisited = int64Ptr(lastVisited)
	b.Labels = []Label{}
	return &b, nil
}

// scanBookmarks drains and closes rows before any follow-up query runs, so a
// single-connection pool is never asked for a second connection.
func scanBookmarks(rows *sql.Rows) ([]*Bookmark, error) {
	defer rows.Close()
	bookmarks := []*Bookmark{}
	for rows.Next() {
		b, err := scanBookmark(rows)
		if err != nil {
			return nil, fmt.Errorf("scan bookmark: %w", err)
		}
		bookmarks = append(bookmarks, b)
	}
	return bookmarks, rows.Err()
}

func attachLabels(ctx context.Context, q querier, bookmarks []*Bookmark) error {
	if len(bookmarks) == 0 {
		return nil
	}
	ids := make([]string, len(bookmarks))
	for i, b := range bookmarks {
		ids[i] = b.ID
	}
	byBookmark, err := loadLabelsFor(ctx, q, ids)
	if err != nil {
		return err
	}
	for _, b := range bookmarks {
		if labels := byBookmark[b.ID]; labels != nil {
			b.Labels = labels
		}
	}
	return nil
}

func bookmarkRowExists(ctx context.Context, q querier, id string) (bool, error) {
	var one int
	err := q.QueryRowContext(ctx, `SELECT 1 FROM bookmarks WHERE id = ?`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check bookmark: %w", err)
	}
	return true, nil
}
