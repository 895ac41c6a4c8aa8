package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

// =============================================================================
// Embedding index (sqlite-vec)
// =============================================================================

// PutEmbedding stores or replaces the embedding of a bookmark. Vectors are
// produced by an external model and must match EmbeddingDimensions.
func (s *SQLiteStore) PutEmbedding(ctx context.Context, bookmarkID string, vector []float32) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if !s.vectors {
		return ErrVectorsUnavailable
	}
	encoded, err := s.encodeVector(vector)
	if err != nil {
		return err
	}

	err = s.withTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		ok, err := bookmarkRowExists(ctx, tx, bookmarkID)
		if err != nil {
			return err
		}
		if !ok {
			return invalidf("bookmark %s does not exist", bookmarkID)
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO bookmark_vector_keys (bookmark_id) VALUES (?)
			ON CONFLICT(bookmark_id) DO NOTHING
		`, bookmarkID); err != nil {
			return fmt.Errorf("insert vector key: %w", err)
		}

		var key int64
		if err := tx.QueryRowContext(ctx,
			`SELECT id FROM bookmark_vector_keys WHERE bookmark_id = ?`, bookmarkID).Scan(&key); err != nil {
			return fmt.Errorf("load vector key: %w", err)
		}

		// vec0 has no upsert.
		if _, err := tx.ExecContext(ctx, `DELETE FROM bookmark_vectors WHERE rowid = ?`, key); err != nil {
			return fmt.Errorf("clear vector: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO bookmark_vectors (rowid, embedding) VALUES (?, ?)`, key, encoded); err != nil {
			return fmt.Errorf("insert vector: %w", err)
		}
		return nil
	})
	if err != nil {
		return s.storageErr(fmt.Errorf("put embedding: %w", err))
	}
	return nil
}

// DeleteEmbedding drops a bookmark's embedding, if any.
func (s *SQLiteStore) DeleteEmbedding(ctx context.Context, bookmarkID string) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if !s.vectors {
		return ErrVectorsUnavailable
	}
	err := s.withTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		return s.deleteEmbeddingTx(ctx, tx, bookmarkID)
	})
	if err != nil {
		return s.storageErr(fmt.Errorf("delete embedding: %w", err))
	}
	return nil
}

// SimilarBookmarks returns the k nearest stored embeddings to vector,
// closest first.
func (s *SQLiteStore) SimilarBookmarks(ctx context.Context, vector []float32, k int) ([]SimilarBookmark, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	if !s.vectors {
		return nil, ErrVectorsUnavailable
	}
	if k <= 0 {
		return nil, invalidf("k must be positive")
	}
	encoded, err := s.encodeVector(vector)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT m.bookmark_id, knn.distance
		FROM (
			SELECT rowid, distance FROM bookmark_vectors
			WHERE embedding MATCH ? AND k = ?
		) knn
		JOIN bookmark_vector_keys m ON m.id = knn.rowid
		ORDER BY knn.distance
	`, encoded, k)
	if err != nil {
		return nil, s.storageErr(fmt.Errorf("similar bookmarks: %w", err))
	}
	defer rows.Close()

	hits := []SimilarBookmark{}
	for rows.Next() {
		var h SimilarBookmark
		if err := rows.Scan(&h.BookmarkID, &h.Distance); err != nil {
			return nil, fmt.Errorf("scan neighbour: %w", err)
		}
		hits = append(hits, h)
	}
	return hits, rows.Err()
}

// deleteEmbeddingTx is part of PurgeBookmark; it does nothing when the
// vector table is disabled.
func (s *SQLiteStore) deleteEmbeddingTx(ctx context.Context, q querier, bookmarkID string) error {
	if !s.vectors {
		return nil
	}
	var key int64
	err := q.QueryRowContext(ctx,
		`SELECT id FROM bookmark_vector_keys WHERE bookmark_id = ?`, bookmarkID).Scan(&key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load vector key: %w", err)
	}
	if _, err := q.ExecContext(ctx, `DELETE FROM bookmark_vectors WHERE rowid = ?`, key); err != nil {
		return fmt.Errorf("delete vector: %w", err)
	}
	if _, err := q.ExecContext(ctx, `DELETE FROM bookmark_vector_keys WHERE id = ?`, key); err != nil {
		return fmt.Errorf("delete vector key: %w", err)
	}
	return nil
}

// encodeVector renders the JSON text form accepted by vec0.
func (s *SQLiteStore) encodeVector(v []float32) (string, error) {
	if len(v) != s.cfg.EmbeddingDimensions {
		return "", invalidf("embedding has %d dimensions, want %d", len(v), s.cfg.EmbeddingDimensions)
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return "", invalidf("embedding: %v", err)
	}
	return string(raw), nil
}
