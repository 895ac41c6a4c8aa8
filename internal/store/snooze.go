package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const snoozeColumns = `id, item_type, item_id, profile_id, space_id, snooze_until, snooze_type,
	snooze_label, original_data, snoozed_at, snoozed_from_space_id, notification_sent, wake_up_notified_at`

// Wake hour used by the tomorrow and next_week presets.
const presetWakeHour = 9

// WakeTime computes the wake instant of a preset relative to now, in now's
// location. Custom snoozes carry their own instant and are rejected here.
func WakeTime(t SnoozeType, now time.Time) (time.Time, error) {
	atNine := func(days int) time.Time {
		y, m, d := now.Date()
		return time.Date(y, m, d+days, presetWakeHour, 0, 0, 0, now.Location())
	}

	switch t {
	case SnoozeLaterToday:
		return now.Add(3 * time.Hour), nil
	case SnoozeTomorrow:
		return atNine(1), nil
	case SnoozeNextWeek:
		days := (8 - int(now.Weekday())) % 7
		if days == 0 {
			days = 7
		}
		return atNine(days), nil
	case SnoozeCustom:
		return time.Time{}, invalidf("custom snoozes need an explicit wake time")
	default:
		return time.Time{}, invalidf("unknown snooze type %q", t)
	}
}

// =============================================================================
// Snooze CRUD
// =============================================================================

// SnoozeItem records a deferred wake for a bookmark or tab. A zero SnoozeUntil
// is derived from the preset.
func (s *SQLiteStore) SnoozeItem(ctx context.Context, in SnoozeInput) (*SnoozedItem, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	if err := s.validateStruct(in); err != nil {
		return nil, err
	}
	if !in.ItemType.Valid() {
		return nil, invalidf("unknown item type %q", in.ItemType)
	}

	until, err := s.resolveWake(in.SnoozeType, in.SnoozeUntil)
	if err != nil {
		return nil, err
	}

	original, err := marshalMap(in.OriginalData)
	if err != nil {
		return nil, invalidf("originalData: %v", err)
	}

	item := &SnoozedItem{
		ID:                 uuid.NewString(),
		ItemType:           in.ItemType,
		ItemID:             in.ItemID,
		ProfileID:          in.ProfileID,
		SpaceID:            in.SpaceID,
		SnoozeUntil:        until,
		SnoozeType:         in.SnoozeType,
		SnoozeLabel:        in.SnoozeLabel,
		OriginalData:       in.OriginalData,
		SnoozedAt:          s.nowMillis(),
		SnoozedFromSpaceID: in.SnoozedFromSpaceID,
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO snoozed_items (`+snoozeColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0, NULL)
	`, item.ID, string(item.ItemType), item.ItemID, item.ProfileID, item.SpaceID,
		item.SnoozeUntil, string(item.SnoozeType), nullString(item.SnoozeLabel), original,
		item.SnoozedAt, nullString(item.SnoozedFromSpaceID))
	if err != nil {
		return nil, s.storageErr(fmt.Errorf("snooze item: %w", err))
	}
	return item, nil
}

// GetSnoozedItem retrieves a snooze record. Returns nil if not found.
func (s *SQLiteStore) GetSnoozedItem(ctx context.Context, id string) (*SnoozedItem, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	return s.getSnooze(ctx, `SELECT `+snoozeColumns+` FROM snoozed_items WHERE id = ?`, id)
}

// FindSnoozedItem returns the most recent snooze of an item, or nil.
func (s *SQLiteStore) FindSnoozedItem(ctx context.Context, itemType SnoozeItemType, itemID string) (*SnoozedItem, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	return s.getSnooze(ctx, `
		SELECT `+snoozeColumns+` FROM snoozed_items
		WHERE item_type = ? AND item_id = ?
		ORDER BY snoozed_at DESC, id LIMIT 1
	`, string(itemType), itemID)
}

// ListSnoozedItems returns every snooze of a profile (all profiles when
// empty), soonest wake first.
func (s *SQLiteStore) ListSnoozedItems(ctx context.Context, profileID string) ([]*SnoozedItem, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	query := `SELECT ` + snoozeColumns + ` FROM snoozed_items`
	var args []any
	if profileID != "" {
		query += ` WHERE profile_id = ?`
		args = append(args, profileID)
	}
	query += ` ORDER BY snooze_until ASC, id`
	return s.listSnoozes(ctx, s.db, query, args...)
}

// ListReadySnoozedItems returns snoozes due at now that have not been
// notified. A zero now means the current time.
func (s *SQLiteStore) ListReadySnoozedItems(ctx context.Context, now int64) ([]*SnoozedItem, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	if now == 0 {
		now = s.nowMillis()
	}
	return s.listSnoozes(ctx, s.db, `
		SELECT `+snoozeColumns+` FROM snoozed_items
		WHERE snooze_until <= ? AND notification_sent = 0
		ORDER BY snooze_until ASC, id
	`, now)
}

// MarkSnoozeNotified flags a snooze as notified. Returns false when the
// record is missing or was already notified.
func (s *SQLiteStore) MarkSnoozeNotified(ctx context.Context, id string) (bool, error) {
	if err := s.ready(ctx); err != nil {
		return false, err
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE snoozed_items SET notification_sent = 1, wake_up_notified_at = ?
		WHERE id = ? AND notification_sent = 0
	`, s.nowMillis(), id)
	if err != nil {
		return false, s.storageErr(fmt.Errorf("mark snooze notified: %w", err))
	}
	n, err := rowsAffected(res)
	return n > 0, err
}

// RescheduleSnooze moves the wake time and re-arms the notification. A zero
// until is derived from the preset.
func (s *SQLiteStore) RescheduleSnooze(ctx context.Context, id string, until int64, snoozeType SnoozeType, label string) (bool, error) {
	if err := s.ready(ctx); err != nil {
		return false, err
	}
	until, err := s.resolveWake(snoozeType, until)
	if err != nil {
		return false, err
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE snoozed_items
		SET snooze_until = ?, snooze_type = ?, snooze_label = ?,
			notification_sent = 0, wake_up_notified_at = NULL
		WHERE id = ?
	`, until, string(snoozeType), nullString(label), id)
	if err != nil {
		return false, s.storageErr(fmt.Errorf("reschedule snooze: %w", err))
	}
	n, err := rowsAffected(res)
	return n > 0, err
}

// DeleteSnoozedItem removes a snooze once its item has been restored.
func (s *SQLiteStore) DeleteSnoozedItem(ctx context.Context, id string) (bool, error) {
	if err := s.ready(ctx); err != nil {
		return false, err
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM snoozed_items WHERE id = ?`, id)
	if err != nil {
		return false, s.storageErr(fmt.Errorf("delete snooze: %w", err))
	}
	n, err := rowsAffected(res)
	return n > 0, err
}

func (s *SQLiteStore) resolveWake(t SnoozeType, until int64) (int64, error) {
	if !t.Valid() {
		return 0, invalidf("unknown snooze type %q", t)
	}
	if until > 0 {
		return until, nil
	}
	wake, err := WakeTime(t, s.now())
	if err != nil {
		return 0, err
	}
	return wake.UnixMilli(), nil
}

func (s *SQLiteStore) getSnooze(ctx context.Context, query string, args ...any) (*SnoozedItem, error) {
	item, err := scanSnooze(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, s.storageErr(fmt.Errorf("get snooze: %w", err))
	}
	return item, nil
}

func (s *SQLiteStore) listSnoozes(ctx context.Context, q querier, query string, args ...any) ([]*SnoozedItem, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, s.storageErr(fmt.Errorf("list snoozes: %w", err))
	}
	defer rows.Close()

	items := []*SnoozedItem{}
	for rows.Next() {
		item, err := scanSnooze(rows)
		if err != nil {
			return nil, fmt.Errorf("scan snooze: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func scanSnooze(row interface{ Scan(...any) error }) (*SnoozedItem, error) {
	var it SnoozedItem
	var itemType, snoozeType string
	var label, original, fromSpace sql.NullString
	var notified int
	var notifiedAt sql.NullInt64

	if err := row.Scan(
		&it.ID, &itemType, &it.ItemID, &it.ProfileID, &it.SpaceID, &it.SnoozeUntil, &snoozeType,
		&label, &original, &it.SnoozedAt, &fromSpace, &notified, &notifiedAt,
	); err != nil {
		return nil, err
	}

	it.ItemType = SnoozeItemType(itemType)
	it.SnoozeType = SnoozeType(snoozeType)
	it.SnoozeLabel = label.String
	it.SnoozedFromSpaceID = fromSpace.String
	it.NotificationSent = notified == 1
	it.WakeUpNotifiedAt = int64Ptr(notifiedAt)
	if original.Valid && original.String != "" {
		if err := json.Unmarshal([]byte(original.String), &it.OriginalData); err != nil {
			return nil, fmt.Errorf("decode original data of %s: %w", it.ID, err)
		}
	}
	return &it, nil
}
