// Package bookmarks contains runners for the bookmark commands.
package bookmarks

import (
	"context"
	"errors"
	"strings"

	"github.com/gosuri/uitable"

	"github.com/kittclouds/bookshelf/internal/printers"
	"github.com/kittclouds/bookshelf/internal/store"
)

// List configures `bookshelf list`.
type List struct {
	Store   store.Storer
	Filter  store.BookmarkFilter
	Printer *printers.Printer
	ShowID  bool
}

// Do prints the bookmarks matching the filter.
func (l *List) Do(ctx context.Context) error {
	if l.Store == nil {
		return errors.New("list: no store")
	}
	bookmarks, err := l.Store.ListBookmarks(ctx, l.Filter)
	if err != nil {
		return err
	}
	if l.Printer.Format == printers.Table && len(bookmarks) == 0 {
		l.Printer.None()
		return nil
	}

	header := []any{"Title", "URL", "Labels", "Added"}
	if l.ShowID {
		header = append([]any{"ID"}, header...)
	}
	return l.Printer.Print(bookmarks, header, func(tbl *uitable.Table) {
		for _, b := range bookmarks {
			texts := make([]string, 0, len(b.Labels))
			for _, lb := range b.Labels {
				texts = append(texts, lb.Text)
			}
			row := []any{b.Title, b.URL, strings.Join(texts, ", "), printers.Millis(b.DateAdded)}
			if l.ShowID {
				row = append([]any{b.ID}, row...)
			}
			tbl.AddRow(row...)
		}
	})
}
