package store

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

// newTestStore returns an in-memory store whose clock advances one
// millisecond per reading, so timestamps are strictly ordered.
func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore()
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	var tick atomic.Int64
	base := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	s.now = func() time.Time {
		return base.Add(time.Duration(tick.Add(1)) * time.Millisecond)
	}
	return s
}

func mustCreateBookmark(t *testing.T, s *SQLiteStore, in CreateBookmarkInput) *Bookmark {
	t.Helper()
	if in.ProfileID == "" {
		in.ProfileID = "p1"
	}
	if in.SpaceID == "" {
		in.SpaceID = "s1"
	}
	if in.Title == "" {
		in.Title = "Title of " + in.URL
	}
	b, err := s.CreateBookmark(context.Background(), in)
	if err != nil {
		t.Fatalf("Failed to create bookmark %s: %v", in.URL, err)
	}
	return b
}

func mustCreateCollection(t *testing.T, s *SQLiteStore, name, parentID string) *Collection {
	t.Helper()
	c, err := s.CreateCollection(context.Background(), CreateCollectionInput{
		Name:      name,
		ProfileID: "p1",
		ParentID:  parentID,
	})
	if err != nil {
		t.Fatalf("Failed to create collection %s: %v", name, err)
	}
	return c
}

func TestExportImport(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	// Create some data
	b := mustCreateBookmark(t, s, CreateBookmarkInput{URL: "https://go.dev", Title: "Go", Labels: []string{"lang"}})
	trashed := mustCreateBookmark(t, s, CreateBookmarkInput{URL: "https://old.example"})
	if _, err := s.DeleteBookmark(ctx, trashed.ID); err != nil {
		t.Fatalf("Failed to delete bookmark: %v", err)
	}
	conf := 0.8
	if _, err := s.SetAILabels(ctx, b.ID, []LabelInput{{Text: "programming", Confidence: &conf}}); err != nil {
		t.Fatalf("Failed to set ai labels: %v", err)
	}

	folder, err := s.CreateCollection(ctx, CreateCollectionInput{
		Name:      "Reading",
		ProfileID: "p1",
		Rules:     map[string]any{"label": "lang"},
	})
	if err != nil {
		t.Fatalf("Failed to create collection: %v", err)
	}
	if _, err := s.AddBookmarkToCollection(ctx, b.ID, folder.ID); err != nil {
		t.Fatalf("Failed to add to collection: %v", err)
	}

	snooze, err := s.SnoozeItem(ctx, SnoozeInput{
		ItemType: SnoozeItemTab, ItemID: "tab-1", ProfileID: "p1", SpaceID: "s1",
		SnoozeType: SnoozeTomorrow, OriginalData: map[string]any{"url": "https://tab.example"},
	})
	if err != nil {
		t.Fatalf("Failed to snooze: %v", err)
	}

	// Export
	data, err := s.Export(ctx)
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	if len(data) == 0 {
		t.Fatal("Exported data is empty")
	}

	// Create a NEW store to simulate a fresh start/reload
	s2 := newTestStore(t)
	mustCreateBookmark(t, s2, CreateBookmarkInput{URL: "https://replaced.example"})

	// Import
	if err := s2.Import(ctx, data); err != nil {
		t.Fatalf("Import failed: %v", err)
	}

	// Verify data in new store
	restored, err := s2.GetBookmark(ctx, b.ID)
	if err != nil || restored == nil {
		t.Fatalf("Failed to get restored bookmark: %v", err)
	}
	if restored.Title != b.Title {
		t.Errorf("Expected title %s, got %s", b.Title, restored.Title)
	}
	if len(restored.Labels) != 2 {
		t.Fatalf("Expected 2 labels, got %d", len(restored.Labels))
	}
	if c := restored.Labels[1].Confidence; c == nil || *c != conf {
		t.Errorf("Expected ai confidence %v, got %v", conf, c)
	}

	all, err := s2.ListBookmarks(ctx, BookmarkFilter{IncludeDeleted: true})
	if err != nil {
		t.Fatalf("Failed to list bookmarks: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("Expected 2 bookmarks after import, got %d", len(all))
	}

	folders, err := s2.ListCollections(ctx, "p1")
	if err != nil {
		t.Fatalf("Failed to list collections: %v", err)
	}
	if len(folders) != 1 {
		t.Fatalf("Expected 1 collection, got %d", len(folders))
	}
	if folders[0].Name != folder.Name || folders[0].BookmarkCount != 1 {
		t.Errorf("Unexpected collection %+v", folders[0])
	}
	if folders[0].Rules["label"] != "lang" {
		t.Errorf("Expected rules to survive, got %v", folders[0].Rules)
	}

	restoredSnooze, err := s2.GetSnoozedItem(ctx, snooze.ID)
	if err != nil || restoredSnooze == nil {
		t.Fatalf("Failed to get restored snooze: %v", err)
	}
	if restoredSnooze.OriginalData["url"] != "https://tab.example" {
		t.Errorf("Expected original data to survive, got %v", restoredSnooze.OriginalData)
	}
}

func TestImportRejectsGarbage(t *testing.T) {
	s := newTestStore(t)
	if err := s.Import(context.Background(), []byte("{not json")); err == nil {
		t.Fatal("Expected an error for invalid backup")
	}
	for _, data := range []string{"", "  \n"} {
		if err := s.Import(context.Background(), []byte(data)); !errors.Is(err, ErrInvalidInput) {
			t.Errorf("Import(%q) = %v, want ErrInvalidInput", data, err)
		}
	}
}

func mustMarshalBackup(t *testing.T, b Backup) []byte {
	t.Helper()
	data, err := json.Marshal(b)
	if err != nil {
		t.Fatalf("Failed to marshal backup: %v", err)
	}
	return data
}

func TestImportKeepsOneLabelPerText(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	conf := 0.9
	data := mustMarshalBackup(t, Backup{
		Version: backupVersion,
		Bookmarks: []*Bookmark{{
			ID: "b1", URL: "https://go.dev", Title: "Go", ProfileID: "p1", SpaceID: "s1", DateAdded: 1,
			Labels: []Label{
				{Text: "go", Source: LabelSourceUser, CreatedAt: 5},
				{Text: "go", Source: LabelSourceAI, Confidence: &conf, CreatedAt: 6},
				{Text: " ", Source: LabelSourceUser},
				{Text: "lang", Source: LabelSourceAuto, Confidence: &conf, CreatedAt: 7},
			},
		}},
		Collections: []*Collection{{ID: "c1", Name: "Reading", ProfileID: "p1", DateCreated: 1}},
		CollectionItems: []CollectionItem{
			{CollectionID: "c1", BookmarkID: "b1", Position: 0, DateAdded: 2},
			{CollectionID: "ghost", BookmarkID: "nobody", Position: 0, DateAdded: 2},
			{CollectionID: "c1", BookmarkID: "nobody", Position: 1, DateAdded: 2},
			{CollectionID: "ghost", BookmarkID: "b1", Position: 0, DateAdded: 2},
		},
	})
	if err := s.Import(ctx, data); err != nil {
		t.Fatalf("Import failed: %v", err)
	}

	labels, err := s.GetLabels(ctx, "b1")
	if err != nil {
		t.Fatalf("Failed to get labels: %v", err)
	}
	if len(labels) != 2 {
		t.Fatalf("Expected 2 labels, got %+v", labels)
	}
	if labels[0].Text != "go" || labels[0].Source != LabelSourceUser || labels[0].CreatedAt != 5 {
		t.Errorf("Expected the first go label to win, got %+v", labels[0])
	}
	if labels[1].Text != "lang" || labels[1].Confidence != nil {
		t.Errorf("Expected auto label without confidence, got %+v", labels[1])
	}

	var orphans int
	if err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM collection_items ci
		WHERE NOT EXISTS (SELECT 1 FROM bookmarks b WHERE b.id = ci.bookmark_id)
		   OR NOT EXISTS (SELECT 1 FROM bookmark_collections c WHERE c.id = ci.collection_id)
	`).Scan(&orphans); err != nil {
		t.Fatalf("Failed to count orphans: %v", err)
	}
	if orphans != 0 {
		t.Errorf("Expected no dangling memberships, got %d", orphans)
	}

	items, err := s.ListCollectionItems(ctx, "c1")
	if err != nil {
		t.Fatalf("Failed to list items: %v", err)
	}
	if len(items) != 1 || items[0].BookmarkID != "b1" {
		t.Errorf("Expected only b1 in c1, got %+v", items)
	}
}

func TestImportRejectsUnknownEnums(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	keep := mustCreateBookmark(t, s, CreateBookmarkInput{URL: "https://keep.example"})

	bookmark := func(source LabelSource) *Bookmark {
		return &Bookmark{
			ID: "b1", URL: "https://x.example", ProfileID: "p1", SpaceID: "s1", DateAdded: 1,
			Labels: []Label{{Text: "x", Source: source}},
		}
	}
	snooze := func(itemType SnoozeItemType, snoozeType SnoozeType) *SnoozedItem {
		return &SnoozedItem{
			ID: "z1", ItemType: itemType, ItemID: "tab-1", ProfileID: "p1", SpaceID: "s1",
			SnoozeUntil: 10, SnoozeType: snoozeType, SnoozedAt: 1,
		}
	}

	tests := []struct {
		name   string
		backup Backup
	}{
		{"label source", Backup{Bookmarks: []*Bookmark{bookmark("bogus")}}},
		{"snooze item type", Backup{SnoozedItems: []*SnoozedItem{snooze("spaceship", SnoozeTomorrow)}}},
		{"snooze type", Backup{SnoozedItems: []*SnoozedItem{snooze(SnoozeItemTab, "never")}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := s.Import(ctx, mustMarshalBackup(t, tt.backup))
			if !errors.Is(err, ErrInvalidInput) {
				t.Fatalf("Import() = %v, want ErrInvalidInput", err)
			}
		})
	}

	// A rejected backup leaves the current data untouched.
	got, err := s.GetBookmark(ctx, keep.ID)
	if err != nil || got == nil {
		t.Fatalf("Expected existing bookmark to survive, got %v, %v", got, err)
	}
}

func TestConfigDSN(t *testing.T) {
	cfg := Config{Path: "/tmp/books.db", BusyTimeout: 3 * time.Second}
	want := "file:/tmp/books.db?_pragma=busy_timeout(3000)&_pragma=journal_mode(wal)&_pragma=synchronous(normal)&_txlock=immediate"
	if got := cfg.DSN(); got != want {
		t.Errorf("DSN() = %s, want %s", got, want)
	}
	odd := Config{Path: "/tmp/what?#now/my books.db", BusyTimeout: time.Second}
	want = "file:/tmp/what%3F%23now/my%20books.db?_pragma=busy_timeout(1000)&_pragma=journal_mode(wal)&_pragma=synchronous(normal)&_txlock=immediate"
	if got := odd.DSN(); got != want {
		t.Errorf("DSN() = %s, want %s", got, want)
	}
	if got := (Config{Path: MemoryPath}).DSN(); got != MemoryPath {
		t.Errorf("DSN() = %s, want %s", got, MemoryPath)
	}
}
