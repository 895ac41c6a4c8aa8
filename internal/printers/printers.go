// Package printers renders command results as a colored table, JSON or YAML.
package printers

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/gosuri/uitable"
	"gopkg.in/yaml.v3"
)

type Format string

const (
	Table Format = "table"
	JSON  Format = "json"
	YAML  Format = "yaml"
)

// ParseFormat accepts "", "table", "json" and "yaml".
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "", Table:
		return Table, nil
	case JSON, YAML:
		return f, nil
	default:
		return "", fmt.Errorf("unknown output format %q (want table, json or yaml)", s)
	}
}

// Printer writes results to Out. A nil Out means color.Output.
type Printer struct {
	Out    io.Writer
	Format Format
}

func (p *Printer) out() io.Writer {
	if p.Out == nil {
		return color.Output
	}
	return p.Out
}

// Print writes v in the printer's format. rows fills the table for the
// table format; header is rendered bold.
func (p *Printer) Print(v any, header []any, rows func(tbl *uitable.Table)) error {
	switch p.Format {
	case JSON:
		enc := json.NewEncoder(p.out())
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case YAML:
		enc := yaml.NewEncoder(p.out())
		enc.SetIndent(2)
		if err := enc.Encode(toPlain(v)); err != nil {
			return err
		}
		return enc.Close()
	}

	tbl := uitable.New()
	tbl.Separator = "  "
	tbl.MaxColWidth = 60
	if len(header) > 0 {
		bold := color.New(color.Bold)
		cells := make([]any, len(header))
		for i, h := range header {
			cells[i] = bold.Sprint(h)
		}
		tbl.AddRow(cells...)
	}
	rows(tbl)
	_, err := fmt.Fprintln(p.out(), tbl)
	return err
}

// Message prints a one-line status in table mode and nothing otherwise.
func (p *Printer) Message(format string, args ...any) {
	if p.Format != Table && p.Format != "" {
		return
	}
	_, _ = fmt.Fprintf(p.out(), format+"\n", args...)
}

// None prints the faint placeholder for an empty listing.
func (p *Printer) None() {
	_, _ = color.New(color.Faint, color.Italic).Fprintln(p.out(), " none")
}

// toPlain round-trips v through JSON so YAML keys follow the json tags.
func toPlain(v any) any {
	raw, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return v
	}
	return out
}

// Millis formats a Unix millisecond timestamp for tables.
func Millis(ms int64) string {
	if ms == 0 {
		return "-"
	}
	return time.UnixMilli(ms).Local().Format("2006-01-02 15:04")
}
