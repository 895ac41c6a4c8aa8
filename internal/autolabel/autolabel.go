// Package autolabel derives "auto" labels for a bookmark from its title and
// url. A single Aho-Corasick automaton over the profile's existing label
// vocabulary finds known labels; English stopwords are filtered out of the
// remaining title words to pick keywords; the site name is added last.
package autolabel

import (
	"net/url"
	"sort"
	"strings"
	"unicode"

	"github.com/coregx/ahocorasick"
	"github.com/orsinium-labs/stopwords"
)

// Kind says which rule produced a suggestion. It is stored as the label
// category.
type Kind string

const (
	KindVocabulary Kind = "vocabulary"
	KindKeyword    Kind = "keyword"
	KindSite       Kind = "site"
)

// Suggestion is one proposed auto label.
type Suggestion struct {
	Text string
	Kind Kind
}

// Options tunes a Labeler.
type Options struct {
	// MaxKeywords caps title keywords; 0 disables keyword extraction.
	MaxKeywords int
	// MinKeywordLen drops short title words. Defaults to 3.
	MinKeywordLen int
	// NoSite disables the site-name label.
	NoSite bool
}

// extra words that are never useful as labels but are not English stopwords
var noiseWords = map[string]bool{
	"http": true, "https": true, "www": true, "com": true, "org": true, "net": true,
	"html": true, "htm": true, "php": true, "index": true, "home": true, "page": true,
}

// Labeler matches vocabulary and extracts keywords. It is immutable after
// New and safe for concurrent use.
type Labeler struct {
	opts Options

	// nil when the vocabulary is empty
	ac *ahocorasick.Automaton

	// Pattern index -> vocabulary text as the user wrote it
	patternText []string

	stop *stopwords.Stopwords
}

// New compiles the vocabulary. Texts that canonicalize to the same pattern
// collapse to the first one.
func New(vocabulary []string, opts Options) *Labeler {
	if opts.MinKeywordLen <= 0 {
		opts.MinKeywordLen = 3
	}

	l := &Labeler{opts: opts, stop: stopwords.MustGet("en")}

	seen := make(map[string]bool, len(vocabulary))
	var patterns []string
	for _, text := range vocabulary {
		key := Canonicalize(text)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		patterns = append(patterns, key)
		l.patternText = append(l.patternText, strings.TrimSpace(text))
	}

	if len(patterns) > 0 {
		// Standard semantics so overlapping search reports every hit;
		// matchVocabulary picks the longest itself.
		automaton, err := ahocorasick.NewBuilder().
			AddStrings(patterns).
			SetPrefilter(true).
			Build()
		if err == nil {
			l.ac = automaton
		}
	}
	return l
}

// Suggest returns labels for a bookmark, vocabulary matches first, then
// keywords, then the site. Each text appears once, compared case-insensitively.
func (l *Labeler) Suggest(title, rawURL string) []Suggestion {
	var out []Suggestion
	taken := map[string]bool{}
	add := func(text string, kind Kind) bool {
		key := strings.ToLower(text)
		if text == "" || taken[key] {
			return false
		}
		taken[key] = true
		out = append(out, Suggestion{Text: text, Kind: kind})
		return true
	}

	u, _ := url.Parse(strings.TrimSpace(rawURL))

	for _, text := range l.matchVocabulary(title + " " + urlText(u)) {
		add(text, KindVocabulary)
	}

	if l.opts.MaxKeywords > 0 {
		n := 0
		for _, word := range Tokens(Canonicalize(title)) {
			if n >= l.opts.MaxKeywords {
				break
			}
			if l.isKeyword(word) && add(word, KindKeyword) {
				n++
			}
		}
	}

	if !l.opts.NoSite {
		add(siteName(u), KindSite)
	}
	return out
}

// matchVocabulary scans text and returns the vocabulary entries found on word
// boundaries, in order of appearance. Overlapping hits keep the longest.
func (l *Labeler) matchVocabulary(text string) []string {
	if l.ac == nil {
		return nil
	}

	haystack := []byte(Canonicalize(text))
	var hits []span
	for _, m := range l.ac.FindAllOverlapping(haystack) {
		if onBoundary(haystack, m.Start, m.End) {
			hits = append(hits, span{start: m.Start, end: m.End, pattern: m.PatternID})
		}
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].start != hits[j].start {
			return hits[i].start < hits[j].start
		}
		return hits[i].end > hits[j].end
	})

	var found []string
	seen := map[int]bool{}
	covered := 0
	for _, h := range hits {
		if h.start < covered {
			continue
		}
		covered = h.end
		if !seen[h.pattern] {
			seen[h.pattern] = true
			found = append(found, l.patternText[h.pattern])
		}
	}
	return found
}

type span struct {
	start, end, pattern int
}

// onBoundary rejects matches inside a longer word ("go" in "google").
func onBoundary(h []byte, start, end int) bool {
	if start > 0 && isWordByte(h[start-1]) {
		return false
	}
	if end < len(h) && isWordByte(h[end]) {
		return false
	}
	return true
}

func isWordByte(b byte) bool {
	// Non-ASCII bytes belong to letters in canonical text.
	return b >= 0x80 || unicode.IsLetter(rune(b)) || unicode.IsDigit(rune(b))
}

func (l *Labeler) isKeyword(word string) bool {
	if len([]rune(word)) < l.opts.MinKeywordLen || noiseWords[word] {
		return false
	}
	if l.stop.Contains(word) {
		return false
	}
	for _, r := range word {
		if unicode.IsLetter(r) {
			return true
		}
	}
	return false
}

// urlText is the part of a url worth matching: host and path.
func urlText(u *url.URL) string {
	if u == nil {
		return ""
	}
	return u.Hostname() + " " + u.Path
}

// siteName reduces a host to its most specific registrable label:
// "www.github.com" -> "github", "news.ycombinator.com" -> "ycombinator".
func siteName(u *url.URL) string {
	if u == nil {
		return ""
	}
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	if host == "" || strings.Trim(host, "0123456789.:") == "" {
		// Empty, IPv4 or IPv6 hosts.
		return ""
	}
	parts := strings.Split(host, ".")
	if len(parts) == 1 {
		return parts[0]
	}
	return parts[len(parts)-2]
}
