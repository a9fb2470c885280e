// Package search finds notes by meaning when embeddings are available and
// by substring when they are not. Semantic failure is never fatal: every
// error path falls back to the basic search.
package search

import (
	"context"
	"log/slog"
	"strings"

	"github.com/sagenotes/sage/internal/store"
	"github.com/sagenotes/sage/pkg/vector"
)

// DefaultThreshold is the minimum cosine similarity for a semantic hit.
const DefaultThreshold = 0.7

// Embedder turns text into a vector. Satisfied by the ai client.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// DefaultLimit caps semantic results when no limit is configured.
const DefaultLimit = 5

// Searcher queries the corpus.
type Searcher struct {
	embedder Embedder      // nil disables the semantic path
	index    *vector.Index // nil disables the semantic path
	limit    int
	log      *slog.Logger
}

// Option configures a Searcher.
type Option func(*Searcher)

// WithSemantic enables the semantic path.
func WithSemantic(e Embedder, ix *vector.Index) Option {
	return func(s *Searcher) {
		s.embedder = e
		s.index = ix
	}
}

// WithLimit caps the number of semantic hits. Non-positive values keep the
// default.
func WithLimit(limit int) Option {
	return func(s *Searcher) {
		if limit > 0 {
			s.limit = limit
		}
	}
}

// WithLogger injects a logger; slog.Default() otherwise.
func WithLogger(log *slog.Logger) Option {
	return func(s *Searcher) { s.log = log }
}

// New creates a Searcher. Without options it does substring search only.
func New(opts ...Option) *Searcher {
	s := &Searcher{limit: DefaultLimit, log: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Search returns matching notes from corpus, best first. The semantic path
// runs when configured; on any failure it degrades to Basic.
func (s *Searcher) Search(ctx context.Context, query string, corpus []*store.Note) []*store.Note {
	if s.embedder == nil || s.index == nil {
		return Basic(query, corpus)
	}

	embedding, err := s.embedder.Embed(ctx, query)
	if err != nil {
		s.log.Error("semantic search failed, falling back to substring", "error", err)
		return Basic(query, corpus)
	}

	ids, err := s.index.Search(embedding, s.limit)
	if err != nil {
		s.log.Error("semantic search failed, falling back to substring", "error", err)
		return Basic(query, corpus)
	}
	if len(ids) == 0 {
		return Basic(query, corpus)
	}

	byID := make(map[string]*store.Note, len(corpus))
	for _, n := range corpus {
		byID[n.ID] = n
	}

	var result []*store.Note
	for _, id := range ids {
		if n, ok := byID[id]; ok {
			result = append(result, n)
		}
	}
	return result
}

// Basic is the fallback: case-insensitive substring match over title and
// content, in corpus order.
func Basic(query string, corpus []*store.Note) []*store.Note {
	term := strings.ToLower(query)
	var result []*store.Note
	for _, n := range corpus {
		if strings.Contains(strings.ToLower(n.Title), term) ||
			strings.Contains(strings.ToLower(n.Content), term) {
			result = append(result, n)
		}
	}
	return result
}
