// Package graph derives a node/edge view of the note corpus for
// visualization. The projection is recomputed from raw content on every
// call; it never reads or mutates cached backlink state, so it may diverge
// momentarily from the reconciler's view.
package graph

import (
	"sort"
	"strings"

	"github.com/sagenotes/sage/internal/store"
	"github.com/sagenotes/sage/pkg/backlink"
)

// Node is one note in the projection.
type Node struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// Edge is an undirected connection between two linked notes.
type Edge struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// Projection is the renderable graph.
type Projection struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// Options filter the projection. Query restricts nodes to case-insensitive
// title-substring matches; IncludeOrphans keeps nodes with no surviving edge.
type Options struct {
	Query          string
	IncludeOrphans bool
}

// noteGraph holds adjacency both ways so orphan checks are O(1).
type noteGraph struct {
	nodes    map[string]Node
	order    []string // insertion order of node IDs
	outbound map[string]map[string]bool
	inbound  map[string]map[string]bool
}

func newNoteGraph() *noteGraph {
	return &noteGraph{
		nodes:    make(map[string]Node),
		outbound: make(map[string]map[string]bool),
		inbound:  make(map[string]map[string]bool),
	}
}

func (g *noteGraph) ensureNode(id, label string) {
	if _, exists := g.nodes[id]; exists {
		return
	}
	g.nodes[id] = Node{ID: id, Label: label}
	g.order = append(g.order, id)
}

func (g *noteGraph) addEdge(sourceID, targetID string) {
	if g.outbound[sourceID] == nil {
		g.outbound[sourceID] = make(map[string]bool)
	}
	g.outbound[sourceID][targetID] = true

	if g.inbound[targetID] == nil {
		g.inbound[targetID] = make(map[string]bool)
	}
	g.inbound[targetID][sourceID] = true
}

func (g *noteGraph) isOrphan(id string) bool {
	return len(g.outbound[id]) == 0 && len(g.inbound[id]) == 0
}

// Project builds the graph from corpus. Wiki-links resolve by exact title
// against the first matching note in corpus order; a self-resolving link
// produces no edge. Repeated links and reverse links collapse into a single
// edge per unordered pair.
func Project(corpus []*store.Note, opts Options) *Projection {
	g := newNoteGraph()

	for _, note := range corpus {
		g.ensureNode(note.ID, labelFor(note))
	}

	seen := make(map[[2]string]bool)
	for _, note := range corpus {
		for _, title := range backlink.Titles(note.Content) {
			target := firstByTitle(corpus, title)
			if target == nil || target.ID == note.ID {
				continue
			}
			key := pairKey(note.ID, target.ID)
			if seen[key] {
				continue
			}
			seen[key] = true
			g.addEdge(note.ID, target.ID)
		}
	}

	return g.project(opts)
}

func (g *noteGraph) project(opts Options) *Projection {
	query := strings.ToLower(opts.Query)

	surviving := make(map[string]bool)
	for id, node := range g.nodes {
		if query == "" || strings.Contains(strings.ToLower(node.Label), query) {
			surviving[id] = true
		}
	}

	proj := &Projection{Nodes: []Node{}, Edges: []Edge{}}

	// Edges survive only when both endpoints do.
	connected := make(map[string]bool)
	for sourceID, targets := range g.outbound {
		if !surviving[sourceID] {
			continue
		}
		for targetID := range targets {
			if !surviving[targetID] {
				continue
			}
			proj.Edges = append(proj.Edges, Edge{From: sourceID, To: targetID})
			connected[sourceID] = true
			connected[targetID] = true
		}
	}
	sort.Slice(proj.Edges, func(i, j int) bool {
		if proj.Edges[i].From != proj.Edges[j].From {
			return proj.Edges[i].From < proj.Edges[j].From
		}
		return proj.Edges[i].To < proj.Edges[j].To
	})

	for _, id := range g.order {
		if !surviving[id] {
			continue
		}
		if !opts.IncludeOrphans && !connected[id] {
			continue
		}
		proj.Nodes = append(proj.Nodes, g.nodes[id])
	}

	return proj
}

func labelFor(note *store.Note) string {
	if note.Title == "" {
		return "Untitled Note"
	}
	return note.Title
}

// firstByTitle resolves like the extractor but without an exclusion: when
// the first title match is the linking note itself, the link stays
// unresolved instead of falling through to a later duplicate.
func firstByTitle(corpus []*store.Note, title string) *store.Note {
	for _, note := range corpus {
		if note.Title == title {
			return note
		}
	}
	return nil
}

func pairKey(a, b string) [2]string {
	if a > b {
		a, b = b, a
	}
	return [2]string{a, b}
}
