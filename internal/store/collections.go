package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

const collectionColumns = `c.id, c.name, c.description, c.profile_id, c.space_id, c.parent_id,
	c.is_auto, c.rules, c.date_created, c.date_modified, c.deleted_at`

// =============================================================================
// Collection CRUD
// =============================================================================

// CreateCollection inserts a collection. A parent, when given, must be a live
// collection of the same profile.
func (s *SQLiteStore) CreateCollection(ctx context.Context, in CreateCollectionInput) (*Collection, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}

	in.Name = strings.TrimSpace(in.Name)
	if err := s.validateStruct(in); err != nil {
		return nil, err
	}

	rules, err := marshalMap(in.Rules)
	if err != nil {
		return nil, invalidf("rules: %v", err)
	}

	c := &Collection{
		ID:          uuid.NewString(),
		Name:        in.Name,
		Description: in.Description,
		ProfileID:   in.ProfileID,
		SpaceID:     in.SpaceID,
		ParentID:    in.ParentID,
		IsAuto:      in.IsAuto,
		Rules:       in.Rules,
		DateCreated: s.nowMillis(),
	}

	err = s.withTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if c.ParentID != "" {
			if err := checkParent(ctx, tx, c.ParentID, c.ProfileID); err != nil {
				return err
			}
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO bookmark_collections (id, name, description, profile_id, space_id, parent_id,
				is_auto, rules, date_created)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, c.ID, c.Name, nullString(c.Description), c.ProfileID, nullString(c.SpaceID),
			nullString(c.ParentID), boolToInt(c.IsAuto), rules, c.DateCreated)
		if err != nil {
			return fmt.Errorf("insert collection: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, s.storageErr(fmt.Errorf("create collection: %w", err))
	}
	return c, nil
}

// GetCollection retrieves a collection, trashed or not, with its item count.
// Returns nil if not found.
func (s *SQLiteStore) GetCollection(ctx context.Context, id string) (*Collection, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT `+collectionColumns+`,
			CASE WHEN c.deleted_at IS NULL
				THEN (SELECT COUNT(*) FROM collection_items ci WHERE ci.collection_id = c.id)
				ELSE 0 END
		FROM bookmark_collections c WHERE c.id = ?
	`, id)
	c, err := scanCollection(row, true)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, s.storageErr(fmt.Errorf("get collection: %w", err))
	}
	return c, nil
}

// UpdateCollection applies a partial patch. A non-nil ParentID moves the
// collection; moving under one of its own descendants fails with
// ErrCollectionCycle. Returns nil if the collection does not exist.
func (s *SQLiteStore) UpdateCollection(ctx context.Context, id string, patch CollectionPatch) (*Collection, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}

	var sets []string
	var args []any
	if patch.Name != nil {
		v := strings.TrimSpace(*patch.Name)
		if v == "" {
			return nil, invalidf("name must not be empty")
		}
		sets = append(sets, "name = ?")
		args = append(args, v)
	}
	if patch.Description != nil {
		sets = append(sets, "description = ?")
		args = append(args, nullString(*patch.Description))
	}
	if patch.ParentID != nil {
		sets = append(sets, "parent_id = ?")
		args = append(args, nullString(*patch.ParentID))
	}
	sets = append(sets, "date_modified = ?")
	args = append(args, s.nowMillis(), id)

	found := false
	err := s.withTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		var profileID string
		err := tx.QueryRowContext(ctx, `SELECT profile_id FROM bookmark_collections WHERE id = ?`, id).Scan(&profileID)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("load collection: %w", err)
		}
		found = true

		if patch.ParentID != nil && *patch.ParentID != "" {
			if err := checkParent(ctx, tx, *patch.ParentID, profileID); err != nil {
				return err
			}
			if err := checkNoCycle(ctx, tx, id, *patch.ParentID); err != nil {
				return err
			}
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE bookmark_collections SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...); err != nil {
			return fmt.Errorf("update collection: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, s.storageErr(err)
	}
	if !found {
		return nil, nil
	}
	return s.GetCollection(ctx, id)
}

// DeleteCollection soft-deletes a live collection. Its live children are first
// reparented to its own parent, or to the root, so no subtree is cut off.
func (s *SQLiteStore) DeleteCollection(ctx context.Context, id string) (bool, error) {
	if err := s.ready(ctx); err != nil {
		return false, err
	}

	found := false
	err := s.withTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		var parentID sql.NullString
		err := tx.QueryRowContext(ctx, `
			SELECT parent_id FROM bookmark_collections WHERE id = ? AND deleted_at IS NULL
		`, id).Scan(&parentID)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("load collection: %w", err)
		}
		found = true

		now := s.nowMillis()
		if _, err := tx.ExecContext(ctx, `
			UPDATE bookmark_collections SET parent_id = ?, date_modified = ?
			WHERE parent_id = ? AND deleted_at IS NULL
		`, parentID, now, id); err != nil {
			return fmt.Errorf("reparent children: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `
			UPDATE bookmark_collections SET deleted_at = ?, date_modified = ? WHERE id = ?
		`, now, now, id); err != nil {
			return fmt.Errorf("delete collection: %w", err)
		}
		return nil
	})
	if err != nil {
		return false, s.storageErr(err)
	}
	return found, nil
}

// RestoreCollection takes a collection out of the trash. Children reparented
// by the delete stay where they are.
func (s *SQLiteStore) RestoreCollection(ctx context.Context, id string) (bool, error) {
	if err := s.ready(ctx); err != nil {
		return false, err
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE bookmark_collections SET deleted_at = NULL, date_modified = ?
		WHERE id = ? AND deleted_at IS NOT NULL
	`, s.nowMillis(), id)
	if err != nil {
		return false, s.storageErr(fmt.Errorf("restore collection: %w", err))
	}
	n, err := rowsAffected(res)
	return n > 0, err
}

// PurgeCollection hard-deletes a collection's items and then the collection.
func (s *SQLiteStore) PurgeCollection(ctx context.Context, id string) (bool, error) {
	if err := s.ready(ctx); err != nil {
		return false, err
	}

	found := false
	err := s.withTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM collection_items WHERE collection_id = ?`, id); err != nil {
			return fmt.Errorf("purge collection items: %w", err)
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM bookmark_collections WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("purge collection: %w", err)
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

// ListCollections returns live collections flattened depth-first with their
// depth and item counts. An empty profileID lists every profile.
func (s *SQLiteStore) ListCollections(ctx context.Context, profileID string) ([]*Collection, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}

	query := `
		SELECT ` + collectionColumns + `,
			(SELECT COUNT(*) FROM collection_items ci WHERE ci.collection_id = c.id)
		FROM bookmark_collections c
		WHERE c.deleted_at IS NULL`
	var args []any
	if profileID != "" {
		query += ` AND c.profile_id = ?`
		args = append(args, profileID)
	}

	cols, err := s.queryCollections(ctx, s.db, query, args, true)
	if err != nil {
		return nil, err
	}
	return flattenTree(cols), nil
}

// ListDeletedCollections returns trashed collections, most recently deleted
// first. Counts are always zero.
func (s *SQLiteStore) ListDeletedCollections(ctx context.Context, profileID string) ([]*Collection, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}

	query := `SELECT ` + collectionColumns + ` FROM bookmark_collections c WHERE c.deleted_at IS NOT NULL`
	var args []any
	if profileID != "" {
		query += ` AND c.profile_id = ?`
		args = append(args, profileID)
	}
	query += ` ORDER BY c.deleted_at DESC, c.id`

	return s.queryCollections(ctx, s.db, query, args, false)
}

func (s *SQLiteStore) queryCollections(ctx context.Context, q querier, query string, args []any, withCount bool) ([]*Collection, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, s.storageErr(fmt.Errorf("list collections: %w", err))
	}
	defer rows.Close()

	cols := []*Collection{}
	for rows.Next() {
		c, err := scanCollection(rows, withCount)
		if err != nil {
			return nil, fmt.Errorf("scan collection: %w", err)
		}
		cols = append(cols, c)
	}
	return cols, rows.Err()
}

// =============================================================================
// Parent checks
// =============================================================================

func checkParent(ctx context.Context, q querier, parentID, profileID string) error {
	var parentProfile string
	err := q.QueryRowContext(ctx, `
		SELECT profile_id FROM bookmark_collections WHERE id = ? AND deleted_at IS NULL
	`, parentID).Scan(&parentProfile)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s does not exist", ErrInvalidParent, parentID)
	}
	if err != nil {
		return fmt.Errorf("load parent: %w", err)
	}
	if parentProfile != profileID {
		return fmt.Errorf("%w: %s belongs to another profile", ErrInvalidParent, parentID)
	}
	return nil
}

// checkNoCycle walks up from newParentID and fails if it reaches id.
func checkNoCycle(ctx context.Context, q querier, id, newParentID string) error {
	seen := map[string]struct{}{}
	cur := newParentID
	for cur != "" {
		if cur == id {
			return fmt.Errorf("%w: %s is an ancestor of %s", ErrCollectionCycle, id, newParentID)
		}
		if _, ok := seen[cur]; ok {
			// Pre-existing loop that does not include id.
			return nil
		}
		seen[cur] = struct{}{}

		var parent sql.NullString
		err := q.QueryRowContext(ctx, `SELECT parent_id FROM bookmark_collections WHERE id = ?`, cur).Scan(&parent)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("walk ancestors: %w", err)
		}
		cur = parent.String
	}
	return nil
}

// =============================================================================
// Row mapping
// =============================================================================

func scanCollection(row interface{ Scan(...any) error }, withCount bool) (*Collection, error) {
	var c Collection
	var description, spaceID, parentID, rules sql.NullString
	var isAuto int
	var dateModified, deletedAt sql.NullInt64

	dest := []any{
		&c.ID, &c.Name, &description, &c.ProfileID, &spaceID, &parentID,
		&isAuto, &rules, &c.DateCreated, &dateModified, &deletedAt,
	}
	if withCount {
		dest = append(dest, &c.BookmarkCount)
	}
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}

	c.Description = description.String
	c.SpaceID = spaceID.String
	c.ParentID = parentID.String
	c.IsAuto = isAuto == 1
	c.DateModified = int64Ptr(dateModified)
	c.DeletedAt = int64Ptr(deletedAt)
	if rules.Valid && rules.String != "" {
		if err := json.Unmarshal([]byte(rules.String), &c.Rules); err != nil {
			return nil, fmt.Errorf("decode rules of %s: %w", c.ID, err)
		}
	}
	return &c, nil
}

// marshalMap serializes an opaque map column; nil maps are stored as NULL.
func marshalMap(m map[string]any) (sql.NullString, error) {
	if m == nil {
		return sql.NullString{}, nil
	}
	raw, err := json.Marshal(m)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(raw), Valid: true}, nil
}
