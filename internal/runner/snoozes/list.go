// Package snoozes contains runners for the snooze commands.
package snoozes

import (
	"context"
	"errors"

	"github.com/fatih/color"
	"github.com/gosuri/uitable"

	"github.com/kittclouds/bookshelf/internal/printers"
	"github.com/kittclouds/bookshelf/internal/store"
)

// List configures `bookshelf snoozed`.
type List struct {
	Store     store.Storer
	ProfileID string
	// Ready lists only items due now that have not been notified.
	Ready   bool
	Printer *printers.Printer
}

// Do prints the snoozed items, soonest first.
func (l *List) Do(ctx context.Context) error {
	if l.Store == nil {
		return errors.New("snoozed: no store")
	}

	var items []*store.SnoozedItem
	var err error
	if l.Ready {
		items, err = l.Store.ListReadySnoozedItems(ctx, 0)
	} else {
		items, err = l.Store.ListSnoozedItems(ctx, l.ProfileID)
	}
	if err != nil {
		return err
	}
	if l.Printer.Format == printers.Table && len(items) == 0 {
		l.Printer.None()
		return nil
	}

	due := color.New(color.FgHiYellow)
	return l.Printer.Print(items, []any{"Item", "Type", "Until", "Label", "Notified"}, func(tbl *uitable.Table) {
		for _, it := range items {
			notified := ""
			if it.NotificationSent {
				notified = due.Sprint("yes")
			}
			tbl.AddRow(string(it.ItemType)+":"+it.ItemID, string(it.SnoozeType),
				printers.Millis(it.SnoozeUntil), it.SnoozeLabel, notified)
		}
	})
}
