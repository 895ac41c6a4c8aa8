package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWakeTime(t *testing.T) {
	monday := time.Date(2026, 3, 2, 10, 30, 0, 0, time.UTC)
	wednesday := time.Date(2026, 3, 4, 23, 0, 0, 0, time.UTC)
	sunday := time.Date(2026, 3, 8, 8, 0, 0, 0, time.UTC)
	nextMonday := time.Date(2026, 3, 9, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		typ  SnoozeType
		now  time.Time
		want time.Time
	}{
		{"later today", SnoozeLaterToday, monday, monday.Add(3 * time.Hour)},
		{"later today crosses midnight", SnoozeLaterToday, wednesday, time.Date(2026, 3, 5, 2, 0, 0, 0, time.UTC)},
		{"tomorrow", SnoozeTomorrow, monday, time.Date(2026, 3, 3, 9, 0, 0, 0, time.UTC)},
		{"tomorrow at month end", SnoozeTomorrow, time.Date(2026, 3, 31, 20, 0, 0, 0, time.UTC), time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)},
		{"next week from monday", SnoozeNextWeek, monday, nextMonday},
		{"next week from wednesday", SnoozeNextWeek, wednesday, nextMonday},
		{"next week from sunday", SnoozeNextWeek, sunday, nextMonday},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := WakeTime(tt.typ, tt.now)
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "want %s, got %s", tt.want, got)
		})
	}

	_, err := WakeTime(SnoozeCustom, monday)
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = WakeTime("someday", monday)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestSnoozeLifecycle(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	tomorrow, err := s.SnoozeItem(ctx, SnoozeInput{
		ItemType: SnoozeItemBookmark, ItemID: "b1", ProfileID: "p1", SpaceID: "s1",
		SnoozeType: SnoozeTomorrow, SnoozeLabel: "Tomorrow morning",
	})
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 3, 9, 0, 0, 0, time.UTC).UnixMilli(), tomorrow.SnoozeUntil)

	due := s.now().Add(-time.Minute).UnixMilli()
	tab, err := s.SnoozeItem(ctx, SnoozeInput{
		ItemType: SnoozeItemTab, ItemID: "tab-9", ProfileID: "p1", SpaceID: "s1",
		SnoozeType: SnoozeCustom, SnoozeUntil: due, SnoozedFromSpaceID: "s0",
		OriginalData: map[string]any{"url": "https://tab.example", "pinned": true},
	})
	require.NoError(t, err)

	all, err := s.ListSnoozedItems(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, tab.ID, all[0].ID, "soonest first")

	ready, err := s.ListReadySnoozedItems(ctx, 0)
	require.NoError(t, err)
	require.Len(t, ready, 1)
	assert.Equal(t, tab.ID, ready[0].ID)
	assert.Equal(t, "s0", ready[0].SnoozedFromSpaceID)
	assert.Equal(t, true, ready[0].OriginalData["pinned"])

	ok, err := s.MarkSnoozeNotified(ctx, tab.ID)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = s.MarkSnoozeNotified(ctx, tab.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	ready, err = s.ListReadySnoozedItems(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, ready)

	got, err := s.GetSnoozedItem(ctx, tab.ID)
	require.NoError(t, err)
	assert.True(t, got.NotificationSent)
	assert.NotNil(t, got.WakeUpNotifiedAt)

	// Rescheduling re-arms the notification.
	ok, err = s.RescheduleSnooze(ctx, tab.ID, 0, SnoozeLaterToday, "later")
	require.NoError(t, err)
	require.True(t, ok)
	got, err = s.GetSnoozedItem(ctx, tab.ID)
	require.NoError(t, err)
	assert.False(t, got.NotificationSent)
	assert.Nil(t, got.WakeUpNotifiedAt)
	assert.Equal(t, SnoozeLaterToday, got.SnoozeType)
	assert.Equal(t, "later", got.SnoozeLabel)

	ready, err = s.ListReadySnoozedItems(ctx, got.SnoozeUntil)
	require.NoError(t, err)
	assert.Len(t, ready, 1)

	_, err = s.RescheduleSnooze(ctx, tab.ID, 0, SnoozeCustom, "")
	assert.ErrorIs(t, err, ErrInvalidInput)

	ok, err = s.DeleteSnoozedItem(ctx, tab.ID)
	require.NoError(t, err)
	assert.True(t, ok)
	gone, err := s.GetSnoozedItem(ctx, tab.ID)
	require.NoError(t, err)
	assert.Nil(t, gone)
}

func TestFindSnoozedItemReturnsLatest(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	in := SnoozeInput{ItemType: SnoozeItemBookmark, ItemID: "b1", ProfileID: "p1", SpaceID: "s1", SnoozeType: SnoozeNextWeek}

	_, err := s.SnoozeItem(ctx, in)
	require.NoError(t, err)
	second, err := s.SnoozeItem(ctx, in)
	require.NoError(t, err)

	got, err := s.FindSnoozedItem(ctx, SnoozeItemBookmark, "b1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, second.ID, got.ID)

	none, err := s.FindSnoozedItem(ctx, SnoozeItemTab, "b1")
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestSnoozeItemValidates(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	tests := []struct {
		name string
		in   SnoozeInput
	}{
		{"missing item", SnoozeInput{ItemType: SnoozeItemTab, ProfileID: "p1", SpaceID: "s1", SnoozeType: SnoozeTomorrow}},
		{"unknown item type", SnoozeInput{ItemType: "window", ItemID: "w", ProfileID: "p1", SpaceID: "s1", SnoozeType: SnoozeTomorrow}},
		{"unknown snooze type", SnoozeInput{ItemType: SnoozeItemTab, ItemID: "t", ProfileID: "p1", SpaceID: "s1", SnoozeType: "someday"}},
		{"custom without time", SnoozeInput{ItemType: SnoozeItemTab, ItemID: "t", ProfileID: "p1", SpaceID: "s1", SnoozeType: SnoozeCustom}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.SnoozeItem(ctx, tt.in)
			assert.ErrorIs(t, err, ErrInvalidInput)
		})
	}
}
