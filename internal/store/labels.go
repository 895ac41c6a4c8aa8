package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/kittclouds/bookshelf/internal/autolabel"
)

const labelColumns = `bookmark_id, label, source, category, confidence, created_at`

// =============================================================================
// Label CRUD
// =============================================================================

// GetLabels returns the labels of a bookmark in insertion order.
func (s *SQLiteStore) GetLabels(ctx context.Context, bookmarkID string) ([]Label, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	labels, err := loadLabels(ctx, s.db, bookmarkID)
	if err != nil {
		return nil, s.storageErr(fmt.Errorf("get labels: %w", err))
	}
	return labels, nil
}

// SetAILabels supersedes every ai label of the bookmark with labels, in one
// transaction. Text already carried by a user or auto label is skipped.
// Returns false when the bookmark does not exist.
func (s *SQLiteStore) SetAILabels(ctx context.Context, bookmarkID string, labels []LabelInput) (bool, error) {
	if err := s.ready(ctx); err != nil {
		return false, err
	}

	found := false
	err := s.withTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		var err error
		if found, err = bookmarkRowExists(ctx, tx, bookmarkID); err != nil || !found {
			return err
		}
		return replaceSourceLabels(ctx, tx, bookmarkID, LabelSourceAI, labels, s.nowMillis())
	})
	if err != nil {
		return false, s.storageErr(fmt.Errorf("set ai labels: %w", err))
	}
	return found, nil
}

// RemoveLabel detaches one label by text, whatever its source.
func (s *SQLiteStore) RemoveLabel(ctx context.Context, bookmarkID, text string) (bool, error) {
	if err := s.ready(ctx); err != nil {
		return false, err
	}
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM bookmark_labels WHERE bookmark_id = ? AND label = ?`,
		bookmarkID, strings.TrimSpace(text))
	if err != nil {
		return false, s.storageErr(fmt.Errorf("remove label: %w", err))
	}
	n, err := rowsAffected(res)
	return n > 0, err
}

// ListLabelVocabulary returns the distinct user and ai label texts of live
// bookmarks, optionally restricted to a profile. Auto labels are left out so
// the auto-labeller never feeds on its own output.
func (s *SQLiteStore) ListLabelVocabulary(ctx context.Context, profileID string) ([]string, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}

	query := `
		SELECT DISTINCT l.label
		FROM bookmark_labels l
		JOIN bookmarks b ON b.id = l.bookmark_id
		WHERE b.deleted_at IS NULL AND l.source IN ('user', 'ai')`
	var args []any
	if profileID != "" {
		query += ` AND b.profile_id = ?`
		args = append(args, profileID)
	}
	query += ` ORDER BY l.label`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, s.storageErr(fmt.Errorf("list label vocabulary: %w", err))
	}
	defer rows.Close()

	vocab := []string{}
	for rows.Next() {
		var text string
		if err := rows.Scan(&text); err != nil {
			return nil, fmt.Errorf("scan label: %w", err)
		}
		vocab = append(vocab, text)
	}
	return vocab, rows.Err()
}

// ApplyAutoLabels recomputes the auto labels of a bookmark from the profile's
// vocabulary and the bookmark's title and host. Returns the resulting label
// set, or nil when the bookmark does not exist.
func (s *SQLiteStore) ApplyAutoLabels(ctx context.Context, bookmarkID string) ([]Label, error) {
	b, err := s.GetBookmark(ctx, bookmarkID)
	if err != nil || b == nil {
		return nil, err
	}

	vocab, err := s.ListLabelVocabulary(ctx, b.ProfileID)
	if err != nil {
		return nil, err
	}

	labeler := autolabel.New(vocab, autolabel.Options{MaxKeywords: s.cfg.AutoLabelKeywords})
	suggestions := labeler.Suggest(b.Title, b.URL)

	inputs := make([]LabelInput, 0, len(suggestions))
	for _, sg := range suggestions {
		inputs = append(inputs, LabelInput{Text: sg.Text, Source: LabelSourceAuto, Category: string(sg.Kind)})
	}

	var labels []Label
	err = s.withTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if err := replaceSourceLabels(ctx, tx, bookmarkID, LabelSourceAuto, inputs, s.nowMillis()); err != nil {
			return err
		}
		var loadErr error
		labels, loadErr = loadLabels(ctx, tx, bookmarkID)
		return loadErr
	})
	if err != nil {
		return nil, s.storageErr(fmt.Errorf("apply auto labels: %w", err))
	}
	return labels, nil
}

// =============================================================================
// Label helpers (run inside the caller's transaction)
// =============================================================================

// normalizeLabelTexts trims, drops empties and removes duplicates, keeping
// first-seen order.
func normalizeLabelTexts(texts []string) []string {
	out := make([]string, 0, len(texts))
	seen := make(map[string]struct{}, len(texts))
	for _, t := range texts {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

// replaceUserLabels swaps the user label set; ai and auto labels stay.
func replaceUserLabels(ctx context.Context, q querier, bookmarkID string, texts []string, now int64) error {
	inputs := make([]LabelInput, 0, len(texts))
	for _, t := range texts {
		inputs = append(inputs, LabelInput{Text: t, Source: LabelSourceUser})
	}
	return replaceSourceLabels(ctx, q, bookmarkID, LabelSourceUser, inputs, now)
}

// replaceSourceLabels deletes every label of one source then merges labels
// in under that source.
func replaceSourceLabels(ctx context.Context, q querier, bookmarkID string, source LabelSource, labels []LabelInput, now int64) error {
	if _, err := q.ExecContext(ctx,
		`DELETE FROM bookmark_labels WHERE bookmark_id = ? AND source = ?`,
		bookmarkID, string(source)); err != nil {
		return fmt.Errorf("clear %s labels: %w", source, err)
	}

	forced := make([]LabelInput, len(labels))
	for i, l := range labels {
		l.Source = source
		forced[i] = l
	}
	_, err := mergeLabels(ctx, q, bookmarkID, forced, now)
	return err
}

// mergeLabels inserts labels whose text is not yet on the bookmark, under any
// source. It returns how many rows were added.
func mergeLabels(ctx context.Context, q querier, bookmarkID string, labels []LabelInput, now int64) (int, error) {
	if len(labels) == 0 {
		return 0, nil
	}

	existing, err := labelTextSet(ctx, q, bookmarkID)
	if err != nil {
		return 0, err
	}

	added := 0
	for _, l := range labels {
		text := strings.TrimSpace(l.Text)
		if text == "" {
			continue
		}
		if _, ok := existing[text]; ok {
			continue
		}

		source := l.Source
		if source == "" {
			source = LabelSourceUser
		}
		if !source.Valid() {
			return added, invalidf("unknown label source %q", l.Source)
		}

		// Confidence only means something for ai output.
		var confidence sql.NullFloat64
		if source == LabelSourceAI && l.Confidence != nil {
			confidence = sql.NullFloat64{Float64: *l.Confidence, Valid: true}
		}

		if _, err := q.ExecContext(ctx, `
			INSERT INTO bookmark_labels (`+labelColumns+`)
			VALUES (?, ?, ?, ?, ?, ?)
		`, bookmarkID, text, string(source), nullString(l.Category), confidence, now); err != nil {
			return added, fmt.Errorf("insert label %q: %w", text, err)
		}
		existing[text] = struct{}{}
		added++
	}
	return added, nil
}

func labelTextSet(ctx context.Context, q querier, bookmarkID string) (map[string]struct{}, error) {
	rows, err := q.QueryContext(ctx, `SELECT label FROM bookmark_labels WHERE bookmark_id = ?`, bookmarkID)
	if err != nil {
		return nil, fmt.Errorf("load label texts: %w", err)
	}
	defer rows.Close()

	set := map[string]struct{}{}
	for rows.Next() {
		var text string
		if err := rows.Scan(&text); err != nil {
			return nil, err
		}
		set[text] = struct{}{}
	}
	return set, rows.Err()
}

func loadLabels(ctx context.Context, q querier, bookmarkID string) ([]Label, error) {
	byBookmark, err := loadLabelsFor(ctx, q, []string{bookmarkID})
	if err != nil {
		return nil, err
	}
	if labels := byBookmark[bookmarkID]; labels != nil {
		return labels, nil
	}
	return []Label{}, nil
}

// loadLabelsFor fetches labels for many bookmarks with chunked IN queries.
func loadLabelsFor(ctx context.Context, q querier, ids []string) (map[string][]Label, error) {
	out := make(map[string][]Label, len(ids))
	for _, part := range chunk(dedupe(ids), 500) {
		args := make([]any, len(part))
		for i, id := range part {
			args[i] = id
		}

		rows, err := q.QueryContext(ctx, `
			SELECT `+labelColumns+`
			FROM bookmark_labels
			WHERE bookmark_id IN (`+placeholders(len(part))+`)
			ORDER BY created_at, id
		`, args...)
		if err != nil {
			return nil, fmt.Errorf("load labels: %w", err)
		}

		for rows.Next() {
			l, err := scanLabel(rows)
			if err != nil {
				rows.Close()
				return nil, err
			}
			out[l.BookmarkID] = append(out[l.BookmarkID], l)
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

func scanLabel(row interface{ Scan(...any) error }) (Label, error) {
	var l Label
	var source string
	var category sql.NullString
	var confidence sql.NullFloat64
	if err := row.Scan(&l.BookmarkID, &l.Text, &source, &category, &confidence, &l.CreatedAt); err != nil {
		return l, fmt.Errorf("scan label: %w", err)
	}
	l.Source = LabelSource(source)
	l.Category = category.String
	if confidence.Valid {
		c := confidence.Float64
		l.Confidence = &c
	}
	return l, nil
}
