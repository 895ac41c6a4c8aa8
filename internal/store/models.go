// Package store provides SQLite-backed persistence for bookmarks, collections,
// labels and snoozed items. It is the single data layer behind the browser's
// bookmark feature; the HTTP API, CLI and importer all talk to it.
package store

import (
	"context"
	"fmt"
)

// =============================================================================
// Enumerations
// =============================================================================

// LabelSource records where a label came from. Each source has its own
// lifecycle: user labels are replaced as a set, ai labels are superseded as a
// batch, auto labels are recomputed by the auto-labeller.
type LabelSource string

const (
	LabelSourceUser LabelSource = "user"
	LabelSourceAI   LabelSource = "ai"
	LabelSourceAuto LabelSource = "auto"
)

// Valid reports whether s is one of the known sources.
func (s LabelSource) Valid() bool {
	switch s {
	case LabelSourceUser, LabelSourceAI, LabelSourceAuto:
		return true
	default:
		return false
	}
}

// ParseLabelSource converts a stored or user-supplied string into a LabelSource.
func ParseLabelSource(v string) (LabelSource, error) {
	s := LabelSource(v)
	if !s.Valid() {
		return "", fmt.Errorf("%w: unknown label source %q", ErrInvalidInput, v)
	}
	return s, nil
}

// SnoozeItemType is the kind of thing a snooze record points at.
type SnoozeItemType string

const (
	SnoozeItemBookmark SnoozeItemType = "bookmark"
	SnoozeItemTab      SnoozeItemType = "tab"
)

func (t SnoozeItemType) Valid() bool {
	switch t {
	case SnoozeItemBookmark, SnoozeItemTab:
		return true
	default:
		return false
	}
}

// SnoozeType is the preset the user picked when snoozing.
type SnoozeType string

const (
	SnoozeLaterToday SnoozeType = "later_today"
	SnoozeTomorrow   SnoozeType = "tomorrow"
	SnoozeNextWeek   SnoozeType = "next_week"
	SnoozeCustom     SnoozeType = "custom"
)

func (t SnoozeType) Valid() bool {
	switch t {
	case SnoozeLaterToday, SnoozeTomorrow, SnoozeNextWeek, SnoozeCustom:
		return true
	default:
		return false
	}
}

// =============================================================================
// Records
// =============================================================================

// Bookmark is a saved page. Timestamps are Unix milliseconds.
type Bookmark struct {
	ID           string  `json:"id"`
	URL          string  `json:"url"`
	Title        string  `json:"title"`
	Description  string  `json:"description,omitempty"`
	Favicon      string  `json:"favicon,omitempty"`
	ProfileID    string  `json:"profileId"`
	SpaceID      string  `json:"spaceId"`
	IsGlobal     bool    `json:"isGlobal"`
	DateAdded    int64   `json:"dateAdded"`
	DateModified *int64  `json:"dateModified,omitempty"`
	DeletedAt    *int64  `json:"deletedAt,omitempty"`
	VisitCount   int     `json:"visitCount"`
	LastVisited  *int64  `json:"lastVisited,omitempty"`
	Labels       []Label `json:"labels"`
}

// Deleted reports whether the bookmark sits in the trash.
func (b *Bookmark) Deleted() bool { return b.DeletedAt != nil }

// Label is a tag attached to a bookmark. At most one label per
// (BookmarkID, Text) exists, whatever its source.
type Label struct {
	BookmarkID string      `json:"bookmarkId"`
	Text       string      `json:"text"`
	Source     LabelSource `json:"source"`
	Category   string      `json:"category,omitempty"`
	Confidence *float64    `json:"confidence,omitempty"` // ai labels only
	CreatedAt  int64       `json:"createdAt"`
}

// Collection is a user folder. ParentID is a weak reference; a parent that no
// longer exists makes the collection a root.
type Collection struct {
	ID           string         `json:"id"`
	Name         string         `json:"name"`
	Description  string         `json:"description,omitempty"`
	ProfileID    string         `json:"profileId"`
	SpaceID      string         `json:"spaceId,omitempty"`
	ParentID     string         `json:"parentId,omitempty"`
	IsAuto       bool           `json:"isAuto"`
	Rules        map[string]any `json:"rules,omitempty"`
	DateCreated  int64          `json:"dateCreated"`
	DateModified *int64         `json:"dateModified,omitempty"`
	DeletedAt    *int64         `json:"deletedAt,omitempty"`

	// Populated by listings only.
	BookmarkCount int `json:"bookmarkCount"`
	Depth         int `json:"depth"`
}

// CollectionItem places a bookmark inside a collection at an append-only position.
type CollectionItem struct {
	CollectionID string `json:"collectionId"`
	BookmarkID   string `json:"bookmarkId"`
	Position     int    `json:"position"`
	DateAdded    int64  `json:"dateAdded"`
}

// SnoozedItem defers a bookmark or tab until SnoozeUntil. The external sweeper
// reads ready records, notifies, and deletes them once the item is restored.
type SnoozedItem struct {
	ID                 string         `json:"id"`
	ItemType           SnoozeItemType `json:"itemType"`
	ItemID             string         `json:"itemId"`
	ProfileID          string         `json:"profileId"`
	SpaceID            string         `json:"spaceId"`
	SnoozeUntil        int64          `json:"snoozeUntil"`
	SnoozeType         SnoozeType     `json:"snoozeType"`
	SnoozeLabel        string         `json:"snoozeLabel,omitempty"`
	OriginalData       map[string]any `json:"originalData,omitempty"`
	SnoozedAt          int64          `json:"snoozedAt"`
	SnoozedFromSpaceID string         `json:"snoozedFromSpaceId,omitempty"`
	NotificationSent   bool           `json:"notificationSent"`
	WakeUpNotifiedAt   *int64         `json:"wakeUpNotifiedAt,omitempty"`
}

// SimilarBookmark is one nearest-neighbour hit from the embedding index.
type SimilarBookmark struct {
	BookmarkID string  `json:"bookmarkId"`
	Distance   float64 `json:"distance"`
}

// =============================================================================
// Inputs, patches and filters
// =============================================================================

// CreateBookmarkInput carries the fields accepted by CreateBookmark.
// Labels are seeded as user labels.
type CreateBookmarkInput struct {
	URL         string   `json:"url" validate:"required"`
	Title       string   `json:"title" validate:"required"`
	ProfileID   string   `json:"profileId" validate:"required"`
	SpaceID     string   `json:"spaceId" validate:"required"`
	Description string   `json:"description,omitempty"`
	Favicon     string   `json:"favicon,omitempty"`
	IsGlobal    bool     `json:"isGlobal,omitempty"`
	Labels      []string `json:"labels,omitempty"`

	// DateAdded overrides the creation instant (imports keep ADD_DATE).
	DateAdded int64 `json:"dateAdded,omitempty"`
}

// LabelInput is a label to attach through the merge or ai paths.
type LabelInput struct {
	Text       string      `json:"text" validate:"required"`
	Source     LabelSource `json:"source"`
	Category   string      `json:"category,omitempty"`
	Confidence *float64    `json:"confidence,omitempty"`
}

// BookmarkPatch is a partial update. Nil fields are left untouched.
// A non-nil Labels slice (even empty) replaces every user label; AddLabels is
// merged without touching existing labels.
type BookmarkPatch struct {
	URL         *string      `json:"url,omitempty"`
	Title       *string      `json:"title,omitempty"`
	Description *string      `json:"description,omitempty"`
	Favicon     *string      `json:"favicon,omitempty"`
	SpaceID     *string      `json:"spaceId,omitempty"`
	IsGlobal    *bool        `json:"isGlobal,omitempty"`
	Labels      []string     `json:"labels"`
	AddLabels   []LabelInput `json:"addLabels,omitempty"`
}

// BookmarkFilter selects bookmarks for ListBookmarks. Zero values mean
// "no constraint". When CollectionID is set the result follows collection
// position order and Labels is not applied.
type BookmarkFilter struct {
	ProfileID      string   `json:"profileId,omitempty"`
	SpaceID        string   `json:"spaceId,omitempty"`
	IsGlobal       *bool    `json:"isGlobal,omitempty"`
	Search         string   `json:"search,omitempty"`
	Labels         []string `json:"labels,omitempty"`
	CollectionID   string   `json:"collectionId,omitempty"`
	IncludeDeleted bool     `json:"includeDeleted,omitempty"`
	OnlyDeleted    bool     `json:"onlyDeleted,omitempty"`
}

// CreateCollectionInput carries the fields accepted by CreateCollection.
type CreateCollectionInput struct {
	Name        string         `json:"name" validate:"required"`
	Description string         `json:"description,omitempty"`
	ProfileID   string         `json:"profileId" validate:"required"`
	SpaceID     string         `json:"spaceId,omitempty"`
	ParentID    string         `json:"parentId,omitempty"`
	IsAuto      bool           `json:"isAuto,omitempty"`
	Rules       map[string]any `json:"rules,omitempty"`
}

// CollectionPatch is a partial update of a collection. A non-nil ParentID
// moves the collection; an empty string moves it to the root.
type CollectionPatch struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
	ParentID    *string `json:"parentId,omitempty"`
}

// SnoozeInput carries the fields accepted by SnoozeItem. A zero SnoozeUntil
// is computed from SnoozeType.
type SnoozeInput struct {
	ItemType           SnoozeItemType `json:"itemType" validate:"required"`
	ItemID             string         `json:"itemId" validate:"required"`
	ProfileID          string         `json:"profileId" validate:"required"`
	SpaceID            string         `json:"spaceId" validate:"required"`
	SnoozeUntil        int64          `json:"snoozeUntil,omitempty"`
	SnoozeType         SnoozeType     `json:"snoozeType" validate:"required"`
	SnoozeLabel        string         `json:"snoozeLabel,omitempty"`
	OriginalData       map[string]any `json:"originalData,omitempty"`
	SnoozedFromSpaceID string         `json:"snoozedFromSpaceId,omitempty"`
}

// =============================================================================
// Storer
// =============================================================================

// Storer is the functional surface consumed by the UI, importer, HTTP API
// and CLI. SQLiteStore is the sole implementation.
type Storer interface {
	// Lifecycle
	Ready(ctx context.Context) error
	Degraded() error
	Close() error

	// Bookmarks
	CreateBookmark(ctx context.Context, in CreateBookmarkInput) (*Bookmark, error)
	GetBookmark(ctx context.Context, id string) (*Bookmark, error)
	UpdateBookmark(ctx context.Context, id string, patch BookmarkPatch) (*Bookmark, error)
	DeleteBookmark(ctx context.Context, id string) (bool, error)
	RestoreBookmark(ctx context.Context, id string) (bool, error)
	PurgeBookmark(ctx context.Context, id string) (bool, error)
	DeleteBookmarks(ctx context.Context, ids []string) (int, error)
	ListBookmarks(ctx context.Context, filter BookmarkFilter) ([]*Bookmark, error)
	BookmarkExists(ctx context.Context, url, profileID, spaceID string) (bool, error)
	IncrementVisitCount(ctx context.Context, id string) error
	ListBookmarksByURL(ctx context.Context, url string) ([]*Bookmark, error)

	// Labels
	GetLabels(ctx context.Context, bookmarkID string) ([]Label, error)
	SetAILabels(ctx context.Context, bookmarkID string, labels []LabelInput) (bool, error)
	RemoveLabel(ctx context.Context, bookmarkID, text string) (bool, error)
	ListLabelVocabulary(ctx context.Context, profileID string) ([]string, error)
	ApplyAutoLabels(ctx context.Context, bookmarkID string) ([]Label, error)

	// Collections
	CreateCollection(ctx context.Context, in CreateCollectionInput) (*Collection, error)
	GetCollection(ctx context.Context, id string) (*Collection, error)
	UpdateCollection(ctx context.Context, id string, patch CollectionPatch) (*Collection, error)
	DeleteCollection(ctx context.Context, id string) (bool, error)
	RestoreCollection(ctx context.Context, id string) (bool, error)
	PurgeCollection(ctx context.Context, id string) (bool, error)
	ListCollections(ctx context.Context, profileID string) ([]*Collection, error)
	ListDeletedCollections(ctx context.Context, profileID string) ([]*Collection, error)

	// Collection membership
	AddBookmarkToCollection(ctx context.Context, bookmarkID, collectionID string) (bool, error)
	RemoveBookmarkFromCollection(ctx context.Context, bookmarkID, collectionID string) (bool, error)
	MoveBookmarkToCollection(ctx context.Context, bookmarkID, fromCollectionID, toCollectionID string) error
	ListCollectionItems(ctx context.Context, collectionID string) ([]CollectionItem, error)
	CollectionsForBookmark(ctx context.Context, bookmarkID string) ([]string, error)

	// Snoozes
	SnoozeItem(ctx context.Context, in SnoozeInput) (*SnoozedItem, error)
	GetSnoozedItem(ctx context.Context, id string) (*SnoozedItem, error)
	FindSnoozedItem(ctx context.Context, itemType SnoozeItemType, itemID string) (*SnoozedItem, error)
	ListSnoozedItems(ctx context.Context, profileID string) ([]*SnoozedItem, error)
	ListReadySnoozedItems(ctx context.Context, now int64) ([]*SnoozedItem, error)
	MarkSnoozeNotified(ctx context.Context, id string) (bool, error)
	RescheduleSnooze(ctx context.Context, id string, until int64, snoozeType SnoozeType, label string) (bool, error)
	DeleteSnoozedItem(ctx context.Context, id string) (bool, error)

	// Embeddings
	PutEmbedding(ctx context.Context, bookmarkID string, vector []float32) error
	DeleteEmbedding(ctx context.Context, bookmarkID string) error
	SimilarBookmarks(ctx context.Context, vector []float32, k int) ([]SimilarBookmark, error)

	// Backup
	Export(ctx context.Context) ([]byte, error)
	Import(ctx context.Context, data []byte) error
}
