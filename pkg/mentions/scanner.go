// Package mentions finds unlinked mentions: places where a note's content
// names another note's title without wrapping it in a [[...]] wiki-link.
// Titles are matched with an Aho-Corasick automaton, so a scan is O(n) in
// the content length regardless of corpus size.
package mentions

import (
	"regexp"
	"strings"

	ahocorasick "github.com/petar-dambovaliev/aho-corasick"

	"github.com/sagenotes/sage/internal/store"
)

var wikiLinkRe = regexp.MustCompile(`\[\[(.*?)\]\]`)

// Mention is one occurrence of a note title inside another note's content.
type Mention struct {
	TargetID string // note whose title was mentioned
	Start    int    // byte offset in content
	End      int
	Text     string // original text slice
}

// Scanner matches note titles in free text.
type Scanner struct {
	ac ahocorasick.AhoCorasick

	// Pattern index -> ID of the first note carrying that title, matching
	// the extractor's first-match rule for duplicate titles.
	patternIDs []string
}

// NewScanner builds the automaton from the corpus titles. Empty titles are
// skipped. Matching is ASCII case-insensitive and whole-word; non-ASCII
// title characters match exactly.
func NewScanner(corpus []*store.Note) *Scanner {
	s := &Scanner{}

	index := make(map[string]int)
	var patterns []string
	for _, note := range corpus {
		if note.Title == "" {
			continue
		}
		key := strings.ToLower(note.Title)
		if _, exists := index[key]; exists {
			continue // first note with this title wins
		}
		index[key] = len(patterns)
		patterns = append(patterns, note.Title)
		s.patternIDs = append(s.patternIDs, note.ID)
	}

	builder := ahocorasick.NewAhoCorasickBuilder(ahocorasick.Opts{
		AsciiCaseInsensitive: true,
		MatchOnlyWholeWords:  true,
		MatchKind:            ahocorasick.LeftMostLongestMatch,
	})
	s.ac = builder.Build(patterns)
	return s
}

// Unlinked returns the mentions in note's content that are not already
// wiki-links. Self-mentions are skipped.
func (s *Scanner) Unlinked(note *store.Note) []Mention {
	linked := wikiLinkRe.FindAllStringIndex(note.Content, -1)

	// Scan the original content: the automaton already folds ASCII case,
	// and lowering here would shift byte offsets for multibyte runes.
	matches := s.ac.FindAll(note.Content)

	var result []Mention
	for _, m := range matches {
		targetID := s.patternIDs[m.Pattern()]
		if targetID == note.ID {
			continue
		}
		if insideLink(linked, m.Start(), m.End()) {
			continue
		}
		result = append(result, Mention{
			TargetID: targetID,
			Start:    m.Start(),
			End:      m.End(),
			Text:     note.Content[m.Start():m.End()],
		})
	}
	return result
}

func insideLink(spans [][]int, start, end int) bool {
	for _, span := range spans {
		if start >= span[0] && end <= span[1] {
			return true
		}
	}
	return false
}
