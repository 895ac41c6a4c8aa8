package importer

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kittclouds/bookshelf/internal/logger"
	"github.com/kittclouds/bookshelf/internal/metrics"
	"github.com/kittclouds/bookshelf/internal/store"
)

func newStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	s, err := store.NewSQLiteStore()
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// failingStore refuses to create one url.
type failingStore struct {
	*store.SQLiteStore
	failURL string
}

func (f *failingStore) CreateBookmark(ctx context.Context, in store.CreateBookmarkInput) (*store.Bookmark, error) {
	if in.URL == f.failURL {
		return nil, errors.New("disk on fire")
	}
	return f.SQLiteStore.CreateBookmark(ctx, in)
}

func TestImportFiltersSchemes(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	m := metrics.NewCollector("test")
	im := New(s, logger.Nop(), WithMetrics(m))

	doc := `<DL><p>
		<DT><A HREF="javascript:alert(1)">X</A>
		<DT><A HREF="https://e.com">Y</A>
		<DT><A HREF="data:text/html,hi">Z</A>
		<DT><A HREF="https://blank-title.com">   </A>
	</DL>`

	stats, err := im.Import(ctx, doc, "p1", "s1")
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Total)
	assert.Equal(t, 1, stats.Imported)
	assert.Equal(t, 3, stats.Rejected)
	require.Len(t, stats.Outcomes, 1)
	assert.Equal(t, Imported, stats.Outcomes[0].Kind)

	list, err := s.ListBookmarks(ctx, store.BookmarkFilter{ProfileID: "p1"})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "https://e.com", list[0].URL)
	assert.Equal(t, "Y", list[0].Title)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.ImportEntries.WithLabelValues("imported")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.ImportEntries.WithLabelValues("rejected")))
}

func TestImportSkipsExistingIncludingTrashed(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	live, err := s.CreateBookmark(ctx, store.CreateBookmarkInput{URL: "https://a.com", Title: "A", ProfileID: "p1", SpaceID: "s1"})
	require.NoError(t, err)
	trashed, err := s.CreateBookmark(ctx, store.CreateBookmarkInput{URL: "https://b.com", Title: "B", ProfileID: "p1", SpaceID: "s1"})
	require.NoError(t, err)
	ok, err := s.DeleteBookmark(ctx, trashed.ID)
	require.NoError(t, err)
	require.True(t, ok)

	doc := `<DL>
		<DT><A HREF="https://a.com">A again</A>
		<DT><A HREF="https://b.com">B again</A>
		<DT><A HREF="https://c.com">C</A>
		<DT><A HREF="https://c.com">C twice</A>
	</DL>`

	stats, err := New(s, nil).Import(ctx, doc, "p1", "s1")
	require.NoError(t, err)
	assert.Equal(t, 4, stats.Total)
	assert.Equal(t, 1, stats.Imported)
	assert.Equal(t, 3, stats.Skipped)
	assert.Zero(t, stats.Errors)

	// Same url in another space is not a duplicate.
	stats, err = New(s, nil).Import(ctx, `<DL><DT><A HREF="https://a.com">A</A></DL>`, "p1", "s2")
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Imported)

	got, err := s.GetBookmark(ctx, live.ID)
	require.NoError(t, err)
	assert.Equal(t, "A", got.Title)
}

func TestImportCountsEntryErrorsAndContinues(t *testing.T) {
	ctx := context.Background()
	s := &failingStore{SQLiteStore: newStore(t), failURL: "https://bad.com"}

	doc := `<DL>
		<DT><A HREF="https://good.com">Good</A>
		<DT><A HREF="https://bad.com">Bad</A>
		<DT><A HREF="https://also-good.com">Also good</A>
	</DL>`

	stats, err := New(s, nil).Import(ctx, doc, "p1", "s1")
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 2, stats.Imported)
	assert.Equal(t, 1, stats.Errors)
	assert.Equal(t, Errored, stats.Outcomes[1].Kind)
	assert.Error(t, stats.Outcomes[1].Err)
}

func TestImportAbortsOnMalformedDocument(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	stats, err := New(s, nil).Import(ctx, `<DL><DT><A HREF="https://a.com">A</DL>`, "p1", "s1")
	assert.True(t, errors.Is(err, ErrMalformedDocument))
	assert.Zero(t, stats.Total)

	list, err := s.ListBookmarks(ctx, store.BookmarkFilter{})
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestImportRequiresProfileAndSpace(t *testing.T) {
	_, err := New(newStore(t), nil).Import(context.Background(), sampleExport, "", "s1")
	assert.True(t, errors.Is(err, store.ErrInvalidInput))
}

func TestImportKeepsDateIconAndTags(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	stats, err := New(s, nil).Import(ctx, sampleExport, "p1", "s1")
	require.NoError(t, err)
	require.Equal(t, 3, stats.Imported)

	b, err := s.GetBookmark(ctx, stats.Outcomes[0].BookmarkID)
	require.NoError(t, err)
	assert.Equal(t, int64(1700000100000), b.DateAdded)
	assert.Equal(t, "data:image/png;base64,AAA", b.Favicon)
	require.Len(t, b.Labels, 2)
	assert.Equal(t, "go", b.Labels[0].Text)
	assert.Equal(t, store.LabelSourceUser, b.Labels[0].Source)
}

func TestImportWithFoldersBuildsAndReusesCollections(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	im := New(s, nil, WithFolders(true))

	stats, err := im.Import(ctx, sampleExport, "p1", "s1")
	require.NoError(t, err)
	require.Equal(t, 3, stats.Imported)

	cols, err := s.ListCollections(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, cols, 2)
	assert.Equal(t, "Dev & Tools", cols[0].Name)
	assert.Equal(t, 0, cols[0].Depth)
	assert.Equal(t, 1, cols[0].BookmarkCount)
	assert.Equal(t, "Databases", cols[1].Name)
	assert.Equal(t, 1, cols[1].Depth)
	assert.Equal(t, cols[0].ID, cols[1].ParentID)

	more := `<DL><DT><H3>Dev &amp; Tools</H3><DL>
		<DT><A HREF="https://pkg.go.dev/">Packages</A>
	</DL></DL>`
	stats, err = im.Import(ctx, more, "p1", "s1")
	require.NoError(t, err)
	require.Equal(t, 1, stats.Imported)

	cols, err = s.ListCollections(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, cols, 2)
	assert.Equal(t, 2, cols[0].BookmarkCount)

	bookmarks, err := s.ListBookmarks(ctx, store.BookmarkFilter{CollectionID: cols[0].ID})
	require.NoError(t, err)
	require.Len(t, bookmarks, 2)
	assert.Equal(t, "https://go.dev/", bookmarks[0].URL)
	assert.Equal(t, "https://pkg.go.dev/", bookmarks[1].URL)
}

func TestImportWithAutoLabels(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	_, err := s.CreateBookmark(ctx, store.CreateBookmarkInput{
		URL: "https://seed.com", Title: "Seed", ProfileID: "p1", SpaceID: "s1", Labels: []string{"sqlite"},
	})
	require.NoError(t, err)

	stats, err := New(s, nil, WithAutoLabels(true)).Import(ctx,
		`<DL><DT><A HREF="https://www.sqlite.org/lang.html">SQLite query language</A></DL>`, "p1", "s1")
	require.NoError(t, err)
	require.Equal(t, 1, stats.Imported)

	labels, err := s.GetLabels(ctx, stats.Outcomes[0].BookmarkID)
	require.NoError(t, err)
	require.NotEmpty(t, labels)
	assert.Equal(t, "sqlite", labels[0].Text)
	for _, l := range labels {
		assert.Equal(t, store.LabelSourceAuto, l.Source)
	}
}
