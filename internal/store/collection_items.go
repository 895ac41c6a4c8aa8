package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// =============================================================================
// Collection membership
// =============================================================================

// AddBookmarkToCollection appends a bookmark at max(position)+1. Returns false
// when the pair already exists, or when the bookmark or a live collection is
// missing.
func (s *SQLiteStore) AddBookmarkToCollection(ctx context.Context, bookmarkID, collectionID string) (bool, error) {
	if err := s.ready(ctx); err != nil {
		return false, err
	}

	added := false
	err := s.withTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		ok, err := membershipTargetsExist(ctx, tx, bookmarkID, collectionID)
		if err != nil || !ok {
			return err
		}
		added, err = appendItem(ctx, tx, bookmarkID, collectionID, s.nowMillis())
		return err
	})
	if err != nil {
		return false, s.storageErr(fmt.Errorf("add to collection: %w", err))
	}
	return added, nil
}

// RemoveBookmarkFromCollection deletes the membership row. Remaining
// positions are not renumbered.
func (s *SQLiteStore) RemoveBookmarkFromCollection(ctx context.Context, bookmarkID, collectionID string) (bool, error) {
	if err := s.ready(ctx); err != nil {
		return false, err
	}
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM collection_items WHERE collection_id = ? AND bookmark_id = ?
	`, collectionID, bookmarkID)
	if err != nil {
		return false, s.storageErr(fmt.Errorf("remove from collection: %w", err))
	}
	n, err := rowsAffected(res)
	return n > 0, err
}

// MoveBookmarkToCollection removes the bookmark from fromCollectionID and
// appends it to toCollectionID in one transaction. An empty fromCollectionID
// makes it a plain add.
func (s *SQLiteStore) MoveBookmarkToCollection(ctx context.Context, bookmarkID, fromCollectionID, toCollectionID string) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if toCollectionID == "" {
		return invalidf("destination collection is required")
	}

	err := s.withTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		ok, err := membershipTargetsExist(ctx, tx, bookmarkID, toCollectionID)
		if err != nil {
			return err
		}
		if !ok {
			return invalidf("bookmark %s or collection %s does not exist", bookmarkID, toCollectionID)
		}

		if fromCollectionID != "" && fromCollectionID != toCollectionID {
			if _, err := tx.ExecContext(ctx, `
				DELETE FROM collection_items WHERE collection_id = ? AND bookmark_id = ?
			`, fromCollectionID, bookmarkID); err != nil {
				return fmt.Errorf("remove from source: %w", err)
			}
		}

		_, err = appendItem(ctx, tx, bookmarkID, toCollectionID, s.nowMillis())
		return err
	})
	if err != nil {
		return s.storageErr(fmt.Errorf("move to collection: %w", err))
	}
	return nil
}

// ListCollectionItems returns a collection's membership rows by position.
func (s *SQLiteStore) ListCollectionItems(ctx context.Context, collectionID string) ([]CollectionItem, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT collection_id, bookmark_id, position, date_added
		FROM collection_items WHERE collection_id = ?
		ORDER BY position ASC
	`, collectionID)
	if err != nil {
		return nil, s.storageErr(fmt.Errorf("list collection items: %w", err))
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
	return items, rows.Err()
}

// CollectionsForBookmark returns the ids of live collections holding the
// bookmark, oldest membership first.
func (s *SQLiteStore) CollectionsForBookmark(ctx context.Context, bookmarkID string) ([]string, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT ci.collection_id
		FROM collection_items ci
		JOIN bookmark_collections c ON c.id = ci.collection_id
		WHERE ci.bookmark_id = ? AND c.deleted_at IS NULL
		ORDER BY ci.date_added, ci.collection_id
	`, bookmarkID)
	if err != nil {
		return nil, s.storageErr(fmt.Errorf("collections for bookmark: %w", err))
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// appendItem inserts the pair at max+1 (1 for an empty collection). It is a
// no-op when the pair exists.
func appendItem(ctx context.Context, q querier, bookmarkID, collectionID string, now int64) (bool, error) {
	var one int
	err := q.QueryRowContext(ctx, `
		SELECT 1 FROM collection_items WHERE collection_id = ? AND bookmark_id = ?
	`, collectionID, bookmarkID).Scan(&one)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return false, fmt.Errorf("check membership: %w", err)
	}

	var next int
	if err := q.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(position), 0) + 1 FROM collection_items WHERE collection_id = ?
	`, collectionID).Scan(&next); err != nil {
		return false, fmt.Errorf("next position: %w", err)
	}

	if _, err := q.ExecContext(ctx, `
		INSERT INTO collection_items (collection_id, bookmark_id, position, date_added)
		VALUES (?, ?, ?, ?)
	`, collectionID, bookmarkID, next, now); err != nil {
		return false, fmt.Errorf("insert collection item: %w", err)
	}
	return true, nil
}

func membershipTargetsExist(ctx context.Context, q querier, bookmarkID, collectionID string) (bool, error) {
	ok, err := bookmarkRowExists(ctx, q, bookmarkID)
	if err != nil || !ok {
		return false, err
	}
	var one int
	err = q.QueryRowContext(ctx, `
		SELECT 1 FROM bookmark_collections WHERE id = ? AND deleted_at IS NULL
	`, collectionID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check collection: %w", err)
	}
	return true, nil
}
