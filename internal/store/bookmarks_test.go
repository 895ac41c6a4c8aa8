package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }
func boolPtr(b bool) *bool    { return &b }

func TestCreateAndGetBookmark(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	b, err := s.CreateBookmark(ctx, CreateBookmarkInput{
		URL:         "  https://go.dev  ",
		Title:       "Go",
		ProfileID:   "p1",
		SpaceID:     "s1",
		Description: "The Go site",
		Labels:      []string{"lang", " lang ", "", "docs"},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, b.ID)
	assert.Equal(t, "https://go.dev", b.URL)
	assert.Nil(t, b.DateModified)
	assert.Nil(t, b.DeletedAt)

	got, err := s.GetBookmark(ctx, b.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, b.DateAdded, got.DateAdded)
	assert.Equal(t, "The Go site", got.Description)
	require.Len(t, got.Labels, 2)
	assert.Equal(t, "lang", got.Labels[0].Text)
	assert.Equal(t, "docs", got.Labels[1].Text)
	assert.Equal(t, LabelSourceUser, got.Labels[0].Source)

	missing, err := s.GetBookmark(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestCreateBookmarkValidates(t *testing.T) {
	s := newTestStore(t)
	_, err := s.CreateBookmark(context.Background(), CreateBookmarkInput{URL: "https://a.com", Title: "   ", ProfileID: "p1", SpaceID: "s1"})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = s.CreateBookmark(context.Background(), CreateBookmarkInput{URL: "https://a.com", Title: "A"})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestUpdateBookmarkIsPartial(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	b := mustCreateBookmark(t, s, CreateBookmarkInput{URL: "https://a.com", Title: "A", Description: "keep me", Labels: []string{"x"}})

	got, err := s.UpdateBookmark(ctx, b.ID, BookmarkPatch{Title: strPtr("A2")})
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "A2", got.Title)
	assert.Equal(t, "https://a.com", got.URL)
	assert.Equal(t, "keep me", got.Description)
	require.NotNil(t, got.DateModified)
	assert.Greater(t, *got.DateModified, got.DateAdded)
	require.Len(t, got.Labels, 1)

	first := *got.DateModified
	got, err = s.UpdateBookmark(ctx, b.ID, BookmarkPatch{})
	require.NoError(t, err)
	assert.Greater(t, *got.DateModified, first)

	_, err = s.UpdateBookmark(ctx, b.ID, BookmarkPatch{URL: strPtr(" ")})
	assert.ErrorIs(t, err, ErrInvalidInput)

	missing, err := s.UpdateBookmark(ctx, "nope", BookmarkPatch{Title: strPtr("x")})
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestUpdateBookmarkLabels(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	b := mustCreateBookmark(t, s, CreateBookmarkInput{URL: "https://a.com", Labels: []string{"old"}})
	_, err := s.SetAILabels(ctx, b.ID, []LabelInput{{Text: "ai-topic"}})
	require.NoError(t, err)

	got, err := s.UpdateBookmark(ctx, b.ID, BookmarkPatch{Labels: []string{"new"}})
	require.NoError(t, err)
	texts := labelTexts(got.Labels)
	assert.ElementsMatch(t, []string{"ai-topic", "new"}, texts)

	got, err = s.UpdateBookmark(ctx, b.ID, BookmarkPatch{AddLabels: []LabelInput{{Text: "new"}, {Text: "extra"}}})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"ai-topic", "new", "extra"}, labelTexts(got.Labels))

	got, err = s.UpdateBookmark(ctx, b.ID, BookmarkPatch{Labels: []string{}})
	require.NoError(t, err)
	assert.Equal(t, []string{"ai-topic"}, labelTexts(got.Labels))
}

func TestSoftDeleteRestoreAndPurge(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	b := mustCreateBookmark(t, s, CreateBookmarkInput{URL: "https://a.com", Labels: []string{"x"}})
	col := mustCreateCollection(t, s, "C", "")
	_, err := s.AddBookmarkToCollection(ctx, b.ID, col.ID)
	require.NoError(t, err)

	ok, err := s.DeleteBookmark(ctx, b.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.DeleteBookmark(ctx, b.ID)
	require.NoError(t, err)
	assert.False(t, ok, "second delete is a no-op")

	live, err := s.ListBookmarks(ctx, BookmarkFilter{})
	require.NoError(t, err)
	assert.Empty(t, live)

	trash, err := s.ListBookmarks(ctx, BookmarkFilter{OnlyDeleted: true})
	require.NoError(t, err)
	require.Len(t, trash, 1)
	assert.True(t, trash[0].Deleted())

	got, err := s.GetBookmark(ctx, b.ID)
	require.NoError(t, err)
	require.NotNil(t, got, "trashed bookmarks stay reachable by id")

	ok, err = s.RestoreBookmark(ctx, b.ID)
	require.NoError(t, err)
	assert.True(t, ok)
	live, err = s.ListBookmarks(ctx, BookmarkFilter{})
	require.NoError(t, err)
	assert.Len(t, live, 1)

	ok, err = s.PurgeBookmark(ctx, b.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	got, err = s.GetBookmark(ctx, b.ID)
	require.NoError(t, err)
	assert.Nil(t, got)
	labels, err := s.GetLabels(ctx, b.ID)
	require.NoError(t, err)
	assert.Empty(t, labels)
	items, err := s.ListCollectionItems(ctx, col.ID)
	require.NoError(t, err)
	assert.Empty(t, items)

	ok, err = s.PurgeBookmark(ctx, b.ID)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDeleteBookmarksCountsOnlyLiveRows(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	a := mustCreateBookmark(t, s, CreateBookmarkInput{URL: "https://a.com"})
	b := mustCreateBookmark(t, s, CreateBookmarkInput{URL: "https://b.com"})
	c := mustCreateBookmark(t, s, CreateBookmarkInput{URL: "https://c.com"})
	_, err := s.DeleteBookmark(ctx, c.ID)
	require.NoError(t, err)

	n, err := s.DeleteBookmarks(ctx, []string{a.ID, b.ID, b.ID, c.ID, "missing"})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = s.DeleteBookmarks(ctx, nil)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestListBookmarksFilters(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	goDev := mustCreateBookmark(t, s, CreateBookmarkInput{URL: "https://go.dev", Title: "Go", Labels: []string{"lang", "google"}})
	rust := mustCreateBookmark(t, s, CreateBookmarkInput{URL: "https://rust-lang.org", Title: "Rust", Labels: []string{"lang"}})
	other := mustCreateBookmark(t, s, CreateBookmarkInput{URL: "https://other.example", Title: "100% pure", ProfileID: "p2", SpaceID: "s9"})
	global := mustCreateBookmark(t, s, CreateBookmarkInput{URL: "https://global.example", Title: "Everywhere", ProfileID: "p2", SpaceID: "s9", IsGlobal: true})

	tests := []struct {
		name   string
		filter BookmarkFilter
		want   []string
	}{
		{"all newest first", BookmarkFilter{}, []string{global.ID, other.ID, rust.ID, goDev.ID}},
		{"profile includes globals", BookmarkFilter{ProfileID: "p1"}, []string{global.ID, rust.ID, goDev.ID}},
		{"space includes globals", BookmarkFilter{SpaceID: "s9"}, []string{global.ID, other.ID}},
		{"globals only", BookmarkFilter{IsGlobal: boolPtr(true)}, []string{global.ID}},
		{"labels are anded", BookmarkFilter{Labels: []string{"lang", "google"}}, []string{goDev.ID}},
		{"single label", BookmarkFilter{Labels: []string{"lang"}}, []string{rust.ID, goDev.ID}},
		{"search is case insensitive", BookmarkFilter{Search: "RUST"}, []string{rust.ID}},
		{"search escapes wildcards", BookmarkFilter{Search: "100%"}, []string{other.ID}},
		{"search matches url", BookmarkFilter{Search: "go.dev"}, []string{goDev.ID}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.ListBookmarks(ctx, tt.filter)
			require.NoError(t, err)
			assert.Equal(t, tt.want, bookmarkIDs(got))
		})
	}
}

func TestListBookmarksByCollectionIgnoresLabels(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	a := mustCreateBookmark(t, s, CreateBookmarkInput{URL: "https://a.com", Labels: []string{"x"}})
	b := mustCreateBookmark(t, s, CreateBookmarkInput{URL: "https://b.com"})
	col := mustCreateCollection(t, s, "C", "")
	_, err := s.AddBookmarkToCollection(ctx, b.ID, col.ID)
	require.NoError(t, err)
	_, err = s.AddBookmarkToCollection(ctx, a.ID, col.ID)
	require.NoError(t, err)

	got, err := s.ListBookmarks(ctx, BookmarkFilter{CollectionID: col.ID, Labels: []string{"x"}})
	require.NoError(t, err)
	assert.Equal(t, []string{b.ID, a.ID}, bookmarkIDs(got))
}

func TestBookmarkExistsIncludesTrash(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	b := mustCreateBookmark(t, s, CreateBookmarkInput{URL: "https://a.com"})

	ok, err := s.BookmarkExists(ctx, "https://a.com", "p1", "s1")
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = s.DeleteBookmark(ctx, b.ID)
	require.NoError(t, err)
	ok, err = s.BookmarkExists(ctx, "https://a.com", "p1", "s1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.BookmarkExists(ctx, "https://a.com", "p1", "s2")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestIncrementVisitCount(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	b := mustCreateBookmark(t, s, CreateBookmarkInput{URL: "https://a.com"})

	require.NoError(t, s.IncrementVisitCount(ctx, b.ID))
	first, err := s.GetBookmark(ctx, b.ID)
	require.NoError(t, err)
	require.NotNil(t, first.LastVisited)

	require.NoError(t, s.IncrementVisitCount(ctx, b.ID))
	second, err := s.GetBookmark(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, second.VisitCount)
	assert.Greater(t, *second.LastVisited, *first.LastVisited)

	assert.NoError(t, s.IncrementVisitCount(ctx, "missing"))
}

func TestListBookmarksByURL(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	a := mustCreateBookmark(t, s, CreateBookmarkInput{URL: "https://a.com"})
	b := mustCreateBookmark(t, s, CreateBookmarkInput{URL: "https://a.com", ProfileID: "p2", SpaceID: "s2"})
	trashed := mustCreateBookmark(t, s, CreateBookmarkInput{URL: "https://a.com", SpaceID: "s3"})
	mustCreateBookmark(t, s, CreateBookmarkInput{URL: "https://a.com/other"})
	_, err := s.DeleteBookmark(ctx, trashed.ID)
	require.NoError(t, err)

	got, err := s.ListBookmarksByURL(ctx, "https://a.com")
	require.NoError(t, err)
	assert.Equal(t, []string{b.ID, a.ID}, bookmarkIDs(got))
}

func bookmarkIDs(bs []*Bookmark) []string {
	ids := make([]string, len(bs))
	for i, b := range bs {
		ids[i] = b.ID
	}
	return ids
}

func labelTexts(ls []Label) []string {
	out := make([]string, len(ls))
	for i, l := range ls {
		out[i] = l.Text
	}
	return out
}
