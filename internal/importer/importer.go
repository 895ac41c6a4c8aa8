// Package importer loads Netscape bookmark exports into the store. Each
// accepted entry is deduplicated against existing bookmarks (trashed ones
// included) and created otherwise; the run is folded into Stats.
package importer

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/kittclouds/bookshelf/internal/logger"
	"github.com/kittclouds/bookshelf/internal/metrics"
	"github.com/kittclouds/bookshelf/internal/store"
)

// Store is the part of the store the importer needs.
type Store interface {
	BookmarkExists(ctx context.Context, url, profileID, spaceID string) (bool, error)
	CreateBookmark(ctx context.Context, in store.CreateBookmarkInput) (*store.Bookmark, error)
	ListCollections(ctx context.Context, profileID string) ([]*store.Collection, error)
	CreateCollection(ctx context.Context, in store.CreateCollectionInput) (*store.Collection, error)
	AddBookmarkToCollection(ctx context.Context, bookmarkID, collectionID string) (bool, error)
	ApplyAutoLabels(ctx context.Context, bookmarkID string) ([]store.Label, error)
}

// allowedSchemes keeps script and data urls of hostile exports out.
var allowedSchemes = map[string]bool{
	"http":  true,
	"https": true,
	"ftp":   true,
	"file":  true,
}

// OutcomeKind tags the result of one accepted entry.
type OutcomeKind int

const (
	Imported OutcomeKind = iota
	Skipped
	Errored
)

func (k OutcomeKind) String() string {
	switch k {
	case Imported:
		return "imported"
	case Skipped:
		return "skipped"
	case Errored:
		return "errored"
	default:
		return "unknown"
	}
}

// Outcome is the per-entry result of an import.
type Outcome struct {
	Entry      Entry
	Kind       OutcomeKind
	BookmarkID string // set when imported
	Err        error  // set when errored
}

// Stats summarizes an import. Total counts accepted entries, so
// Total == Imported + Skipped + Errors; Rejected counts entries dropped for a
// blank title or url or a disallowed scheme.
type Stats struct {
	Total    int `json:"total"`
	Imported int `json:"imported"`
	Skipped  int `json:"skipped"`
	Errors   int `json:"errors"`
	Rejected int `json:"rejected"`

	Outcomes []Outcome `json:"-"`
}

// add folds one outcome into the stats.
func (s Stats) add(o Outcome) Stats {
	s.Total++
	switch o.Kind {
	case Imported:
		s.Imported++
	case Skipped:
		s.Skipped++
	case Errored:
		s.Errors++
	}
	s.Outcomes = append(s.Outcomes, o)
	return s
}

// Option configures an Importer.
type Option func(*Importer)

// WithFolders recreates the export's folders as collections and files every
// imported bookmark under its folder.
func WithFolders(enabled bool) Option {
	return func(im *Importer) { im.folders = enabled }
}

// WithAutoLabels applies auto labels to every imported bookmark.
func WithAutoLabels(enabled bool) Option {
	return func(im *Importer) { im.autoLabels = enabled }
}

// WithMetrics records outcomes on c.
func WithMetrics(c *metrics.Collector) Option {
	return func(im *Importer) { im.metrics = c }
}

// Importer runs imports against a Store.
type Importer struct {
	store      Store
	log        logger.Logger
	metrics    *metrics.Collector
	folders    bool
	autoLabels bool
}

// New creates an Importer.
func New(st Store, log logger.Logger, opts ...Option) *Importer {
	if log == nil {
		log = logger.Nop()
	}
	im := &Importer{store: st, log: log.Named("importer")}
	for _, opt := range opts {
		opt(im)
	}
	return im
}

// Import parses doc and imports its entries into (profileID, spaceID). A
// document-level parse failure aborts with a single error; per-entry failures
// are counted and the run continues.
func (im *Importer) Import(ctx context.Context, doc, profileID, spaceID string) (Stats, error) {
	var stats Stats
	if profileID == "" || spaceID == "" {
		return stats, fmt.Errorf("%w: profileId and spaceId are required", store.ErrInvalidInput)
	}

	entries, err := Parse(doc)
	if err != nil {
		im.metrics.ImportDocument("malformed")
		im.log.Warn("import aborted", logger.Error(err))
		return stats, err
	}

	run := &importRun{Importer: im, profileID: profileID, spaceID: spaceID}

	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		if reason := reject(e); reason != "" {
			stats.Rejected++
			im.metrics.ImportEntry("rejected")
			im.log.Debug("entry rejected", logger.String("href", e.Href), logger.String("reason", reason))
			continue
		}

		o := run.importEntry(ctx, e)
		if o.Kind == Errored {
			im.log.Warn("entry failed", logger.String("href", e.Href), logger.Error(o.Err))
		}
		im.metrics.ImportEntry(o.Kind.String())
		stats = stats.add(o)
	}

	im.metrics.ImportDocument("ok")
	im.log.Info("import finished",
		logger.Int("total", stats.Total),
		logger.Int("imported", stats.Imported),
		logger.Int("skipped", stats.Skipped),
		logger.Int("errors", stats.Errors),
		logger.Int("rejected", stats.Rejected))
	return stats, nil
}

// reject returns why an entry is discarded, or "" to accept it.
func reject(e Entry) string {
	if strings.TrimSpace(e.Href) == "" {
		return "empty href"
	}
	if strings.TrimSpace(e.Title) == "" {
		return "empty title"
	}
	u, err := url.Parse(e.Href)
	if err != nil {
		return "unparseable href"
	}
	if !allowedSchemes[strings.ToLower(u.Scheme)] {
		return "scheme not allowed"
	}
	return ""
}

// importRun carries per-run state: the folder path to collection id cache.
type importRun struct {
	*Importer
	profileID string
	spaceID   string

	collections map[string]string
}

func (r *importRun) importEntry(ctx context.Context, e Entry) Outcome {
	exists, err := r.store.BookmarkExists(ctx, e.Href, r.profileID, r.spaceID)
	if err != nil {
		return Outcome{Entry: e, Kind: Errored, Err: fmt.Errorf("check existing: %w", err)}
	}
	if exists {
		return Outcome{Entry: e, Kind: Skipped}
	}

	var collectionID string
	if r.folders && len(e.Folders) > 0 {
		if collectionID, err = r.collectionFor(ctx, e.Folders); err != nil {
			return Outcome{Entry: e, Kind: Errored, Err: fmt.Errorf("folder %q: %w", strings.Join(e.Folders, "/"), err)}
		}
	}

	b, err := r.store.CreateBookmark(ctx, store.CreateBookmarkInput{
		URL:       e.Href,
		Title:     e.Title,
		ProfileID: r.profileID,
		SpaceID:   r.spaceID,
		Favicon:   e.Icon,
		Labels:    e.Tags,
		DateAdded: e.AddDate,
	})
	if err != nil {
		return Outcome{Entry: e, Kind: Errored, Err: fmt.Errorf("create: %w", err)}
	}

	// The bookmark exists from here on; follow-up failures are logged only.
	if collectionID != "" {
		if _, err := r.store.AddBookmarkToCollection(ctx, b.ID, collectionID); err != nil {
			r.log.Warn("file bookmark under folder", logger.String("bookmark_id", b.ID), logger.Error(err))
		}
	}
	if r.autoLabels {
		if _, err := r.store.ApplyAutoLabels(ctx, b.ID); err != nil {
			r.log.Warn("auto labels", logger.String("bookmark_id", b.ID), logger.Error(err))
		}
	}
	return Outcome{Entry: e, Kind: Imported, BookmarkID: b.ID}
}

// collectionFor returns the collection for a folder path, reusing live
// collections of the profile with the same name under the same parent and
// creating the missing levels.
func (r *importRun) collectionFor(ctx context.Context, path []string) (string, error) {
	if r.collections == nil {
		if err := r.loadCollections(ctx); err != nil {
			return "", err
		}
	}

	parentID := ""
	for i, name := range path {
		key := folderKey(path[:i+1])
		if id, ok := r.collections[key]; ok {
			parentID = id
			continue
		}
		c, err := r.store.CreateCollection(ctx, store.CreateCollectionInput{
			Name:      name,
			ProfileID: r.profileID,
			SpaceID:   r.spaceID,
			ParentID:  parentID,
		})
		if err != nil {
			return "", err
		}
		r.collections[key] = c.ID
		parentID = c.ID
	}
	return parentID, nil
}

// loadCollections indexes existing collections by their name path. The
// listing is pre-order, so parents are indexed before their children.
func (r *importRun) loadCollections(ctx context.Context) error {
	cols, err := r.store.ListCollections(ctx, r.profileID)
	if err != nil {
		return fmt.Errorf("list collections: %w", err)
	}

	r.collections = make(map[string]string, len(cols))
	pathOf := make(map[string][]string, len(cols))
	for _, c := range cols {
		path := append(append([]string{}, pathOf[c.ParentID]...), c.Name)
		pathOf[c.ID] = path
		key := folderKey(path)
		if _, dup := r.collections[key]; !dup {
			r.collections[key] = c.ID
		}
	}
	return nil
}

func folderKey(path []string) string {
	return strings.Join(path, "\x00")
}
