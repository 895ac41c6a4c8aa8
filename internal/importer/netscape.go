package importer

import (
	"errors"
	"fmt"
	"html"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"
)

var (
	// ErrEmptyDocument is returned for a blank export.
	ErrEmptyDocument = errors.New("import: empty document")
	// ErrMalformedDocument is returned when the export cannot be tokenized.
	ErrMalformedDocument = errors.New("import: malformed document")
)

// Entry is one anchor of a Netscape bookmark export.
type Entry struct {
	Href    string
	Title   string
	AddDate int64 // Unix millis, 0 when absent
	Icon    string
	Tags    []string
	Folders []string // enclosing folder names, outermost first
}

var (
	// Tokens in document order: folder headings, anchors, list open/close.
	tokenPattern = regexp.MustCompile(`(?is)<h3\b([^>]*)>(.*?)</h3\s*>|<a\b([^>]*)>(.*?)</a\s*>|<dl\b[^>]*>|</dl\s*>`)

	// Every anchor opening, matched or not.
	anchorOpenPattern = regexp.MustCompile(`(?i)<a[\s>]`)

	attrPattern = regexp.MustCompile(`(?is)([a-z_:-]+)\s*=\s*(?:"([^"]*)"|'([^']*)'|([^\s>]+))`)

	innerTagPattern = regexp.MustCompile(`(?s)<[^>]*>`)
)

// Parse extracts every anchor of a Netscape bookmark document with its folder
// path. Entries are returned as found; filtering is left to the caller.
func Parse(doc string) ([]Entry, error) {
	if strings.TrimSpace(doc) == "" {
		return nil, ErrEmptyDocument
	}
	if !utf8.ValidString(doc) {
		return nil, fmt.Errorf("%w: document is not valid UTF-8", ErrMalformedDocument)
	}

	tokens := tokenPattern.FindAllStringSubmatchIndex(doc, -1)

	anchors := 0
	for _, t := range tokens {
		if t[6] >= 0 {
			anchors++
		}
	}
	if opened := len(anchorOpenPattern.FindAllStringIndex(doc, -1)); opened > anchors {
		return nil, fmt.Errorf("%w: %d unterminated anchor(s)", ErrMalformedDocument, opened-anchors)
	}

	var (
		entries []Entry
		stack   []string // one slot per open <DL>, "" for unnamed lists
		pending string
		hasName bool
	)

	for _, t := range tokens {
		token := doc[t[0]:t[1]]
		lower := strings.ToLower(token)

		switch {
		case strings.HasPrefix(lower, "<h3"):
			pending = cleanText(doc[t[4]:t[5]])
			hasName = true

		case strings.HasPrefix(lower, "<a"):
			attrs := parseAttrs(doc[t[6]:t[7]])
			e := Entry{
				Href:    strings.TrimSpace(html.UnescapeString(attrs["href"])),
				Title:   cleanText(doc[t[8]:t[9]]),
				AddDate: parseSeconds(attrs["add_date"]),
				Icon:    attrs["icon"],
				Tags:    splitTags(attrs["tags"]),
				Folders: folderPath(stack),
			}
			entries = append(entries, e)

		case strings.HasPrefix(lower, "</dl"):
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}

		default: // <dl>
			if hasName {
				stack = append(stack, pending)
			} else {
				stack = append(stack, "")
			}
			pending, hasName = "", false
		}
	}
	return entries, nil
}

func parseAttrs(raw string) map[string]string {
	attrs := map[string]string{}
	for _, m := range attrPattern.FindAllStringSubmatch(raw, -1) {
		name := strings.ToLower(m[1])
		if _, dup := attrs[name]; dup {
			continue
		}
		val := m[2]
		if val == "" {
			val = m[3]
		}
		if val == "" {
			val = m[4]
		}
		attrs[name] = val
	}
	return attrs
}

// cleanText drops inner markup, decodes entities and collapses whitespace.
func cleanText(s string) string {
	s = innerTagPattern.ReplaceAllString(s, "")
	s = html.UnescapeString(s)
	return strings.Join(strings.Fields(s), " ")
}

// parseSeconds converts an ADD_DATE attribute (Unix seconds) to millis.
// Some browsers write microseconds; those are scaled down.
func parseSeconds(v string) int64 {
	n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
	if err != nil || n <= 0 {
		return 0
	}
	for n > 1e11 {
		n /= 1000
	}
	return n * 1000
}

func splitTags(v string) []string {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	var tags []string
	for _, t := range strings.Split(html.UnescapeString(v), ",") {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}

func folderPath(stack []string) []string {
	var path []string
	for _, name := range stack {
		if name != "" {
			path = append(path, name)
		}
	}
	return path
}
