// Package backlink implements wiki-link resolution and backlink
// reconciliation over a note corpus.
//
// A wiki-link is a [[Title]] token inside note content. Resolution is an
// exact, case-sensitive title match with no trimming; when several notes
// share a title, the first one in corpus scan order wins. Titles are not
// unique, so that order dependency is part of the contract.
package backlink

import (
	"regexp"

	"github.com/sagenotes/sage/internal/store"
)

// linkRe matches [[...]] tokens lazily: the first ]] after [[ terminates
// the token.
var linkRe = regexp.MustCompile(`\[\[(.*?)\]\]`)

// Titles returns the inner text of every wiki-link token in content, in
// document order, duplicates included.
func Titles(content string) []string {
	matches := linkRe.FindAllStringSubmatch(content, -1)
	if len(matches) == 0 {
		return nil
	}
	titles := make([]string, 0, len(matches))
	for _, m := range matches {
		titles = append(titles, m[1])
	}
	return titles
}

// ExtractTargets resolves the wiki-links in content against corpus and
// returns the distinct IDs of the matched notes, in first-mention order.
// excludeID never matches, so a note cannot target itself; when the first
// note carrying a title is the excluded one, the scan continues to the next.
// Pure: no side effects, no I/O.
func ExtractTargets(content string, corpus []*store.Note, excludeID string) []string {
	titles := Titles(content)
	if len(titles) == 0 {
		return nil
	}

	var ids []string
	seen := make(map[string]bool)
	for _, title := range titles {
		target := findByTitle(corpus, title, excludeID)
		if target == nil || seen[target.ID] {
			continue
		}
		seen[target.ID] = true
		ids = append(ids, target.ID)
	}
	return ids
}

// findByTitle is a first-match scan. Exact comparison, case-sensitive,
// no normalization.
func findByTitle(corpus []*store.Note, title, excludeID string) *store.Note {
	for _, note := range corpus {
		if note.Title == title && note.ID != excludeID {
			return note
		}
	}
	return nil
}
