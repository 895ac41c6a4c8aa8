package bookmarks

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/gosuri/uitable"

	"github.com/kittclouds/bookshelf/internal/importer"
	"github.com/kittclouds/bookshelf/internal/printers"
)

// Import configures `bookshelf import <file>`.
type Import struct {
	File      string
	ProfileID string
	SpaceID   string
	Importer  *importer.Importer
	Printer   *printers.Printer
}

// Do reads the export file and prints the run's statistics.
func (i *Import) Do(ctx context.Context) error {
	if i.Importer == nil {
		return errors.New("import: no importer")
	}
	raw, err := os.ReadFile(i.File)
	if err != nil {
		return fmt.Errorf("read %s: %w", i.File, err)
	}

	stats, err := i.Importer.Import(ctx, string(raw), i.ProfileID, i.SpaceID)
	if err != nil {
		return err
	}
	return i.Printer.Print(stats, []any{"Total", "Imported", "Skipped", "Errors", "Rejected"}, func(tbl *uitable.Table) {
		tbl.AddRow(stats.Total, stats.Imported, stats.Skipped, stats.Errors, stats.Rejected)
	})
}
