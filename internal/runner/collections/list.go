// Package collections contains runners for the collection commands.
package collections

import (
	"context"
	"errors"
	"strings"

	"github.com/gosuri/uitable"

	"github.com/kittclouds/bookshelf/internal/printers"
	"github.com/kittclouds/bookshelf/internal/store"
)

// List configures `bookshelf collections`.
type List struct {
	Store     store.Storer
	ProfileID string
	Deleted   bool
	Printer   *printers.Printer
	ShowID    bool
}

// Do prints the collection tree, indented by depth, or the trash.
func (l *List) Do(ctx context.Context) error {
	if l.Store == nil {
		return errors.New("collections: no store")
	}

	var cols []*store.Collection
	var err error
	if l.Deleted {
		cols, err = l.Store.ListDeletedCollections(ctx, l.ProfileID)
	} else {
		cols, err = l.Store.ListCollections(ctx, l.ProfileID)
	}
	if err != nil {
		return err
	}
	if l.Printer.Format == printers.Table && len(cols) == 0 {
		l.Printer.None()
		return nil
	}

	header := []any{"Name", "Bookmarks", "Created"}
	if l.ShowID {
		header = append([]any{"ID"}, header...)
	}
	return l.Printer.Print(cols, header, func(tbl *uitable.Table) {
		for _, c := range cols {
			row := []any{strings.Repeat("  ", c.Depth) + c.Name, c.BookmarkCount, printers.Millis(c.DateCreated)}
			if l.ShowID {
				row = append([]any{c.ID}, row...)
			}
			tbl.AddRow(row...)
		}
	})
}
