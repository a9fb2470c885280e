package backlink

import "github.com/sagenotes/sage/internal/store"

// Reconcile restores backlink consistency after note n's content or title
// changed. It mutates Backlinks fields in place and returns every note whose
// set changed.
//
// Two passes run against the corpus:
//
//  1. n's own Backlinks are recomputed as the IDs of notes whose content
//     currently resolves to n.
//  2. For every note t that n now links to, n.ID is added to t.Backlinks;
//     for every note that lists n.ID but is no longer a target, it is
//     removed.
//
// Reconciliation happens only at the mutated note's own write time. A note
// written before its [[target]] existed stays stale until that note is
// itself edited; this staleness window is deliberate (no corpus-wide sweep
// on every change).
//
// Idempotent: reconciling twice on unchanged content yields identical sets.
func Reconcile(n *store.Note, corpus []*store.Note) []*store.Note {
	var changed []*store.Note

	// Pass 1: who links to n? Resolution runs against the full corpus so
	// duplicate titles keep their first-match winner.
	var incoming []string
	for _, m := range corpus {
		if m.ID == n.ID {
			continue
		}
		if containsID(ExtractTargets(m.Content, corpus, m.ID), n.ID) {
			incoming = append(incoming, m.ID)
		}
	}
	if !sameIDSet(n.Backlinks, incoming) {
		n.Backlinks = incoming
		changed = append(changed, n)
	}

	// Pass 2: propagate n's outgoing links to its targets.
	targets := make(map[string]bool)
	for _, id := range ExtractTargets(n.Content, corpus, n.ID) {
		targets[id] = true
	}
	for _, m := range corpus {
		if m.ID == n.ID {
			continue
		}
		switch {
		case targets[m.ID] && !containsID(m.Backlinks, n.ID):
			m.Backlinks = append(m.Backlinks, n.ID)
			changed = append(changed, m)
		case !targets[m.ID] && containsID(m.Backlinks, n.ID):
			m.Backlinks = removeID(m.Backlinks, n.ID)
			changed = append(changed, m)
		}
	}

	return changed
}

// SweepDeleted removes deletedID from every remaining note's Backlinks.
// Called after a note is removed from the corpus; the deleted note's own
// outgoing links need no cleanup. Returns the notes that changed.
func SweepDeleted(deletedID string, corpus []*store.Note) []*store.Note {
	var changed []*store.Note
	for _, m := range corpus {
		if containsID(m.Backlinks, deletedID) {
			m.Backlinks = removeID(m.Backlinks, deletedID)
			changed = append(changed, m)
		}
	}
	return changed
}

func containsID(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func removeID(ids []string, id string) []string {
	out := ids[:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

func sameIDSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	set := make(map[string]bool, len(a))
	for _, v := range a {
		set[v] = true
	}
	for _, v := range b {
		if !set[v] {
			return false
		}
	}
	return true
}
