// Package backup contains the backup and restore runners.
package backup

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/kittclouds/bookshelf/internal/printers"
	"github.com/kittclouds/bookshelf/internal/store"
)

// Export configures `bookshelf backup [file]`. An empty File or "-" writes
// to Stdout.
type Export struct {
	Store   store.Storer
	File    string
	Stdout  io.Writer
	Printer *printers.Printer
}

// Do writes the JSON backup.
func (e *Export) Do(ctx context.Context) error {
	if e.Store == nil {
		return errors.New("backup: no store")
	}
	data, err := e.Store.Export(ctx)
	if err != nil {
		return err
	}

	if e.File == "" || e.File == "-" {
		out := e.Stdout
		if out == nil {
			out = os.Stdout
		}
		_, err := out.Write(data)
		return err
	}
	if err := os.WriteFile(e.File, data, 0o600); err != nil {
		return fmt.Errorf("write %s: %w", e.File, err)
	}
	e.Printer.Message("Backup written to %s (%d bytes)", e.File, len(data))
	return nil
}

// Restore configures `bookshelf restore <file>`.
type Restore struct {
	Store   store.Storer
	File    string
	Printer *printers.Printer
}

// Do replaces the database contents with the backup in File.
func (r *Restore) Do(ctx context.Context) error {
	if r.Store == nil {
		return errors.New("restore: no store")
	}
	data, err := os.ReadFile(r.File)
	if err != nil {
		return fmt.Errorf("read %s: %w", r.File, err)
	}
	if err := r.Store.Import(ctx, data); err != nil {
		return err
	}
	r.Printer.Message("Restored %s", r.File)
	return nil
}
