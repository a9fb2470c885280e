// Package notes owns the in-memory note corpus and its lifecycle: create,
// update, delete, the active/open-tab selection, backlink reconciliation and
// persistence.
//
// Mutations apply optimistically: in-memory state changes synchronously and
// the persistence call runs in the background. A persistence failure is
// logged and surfaced through Err but the in-memory state is not rolled
// back; responsiveness is favored over strict consistency. Reconciled
// backlink changes on neighboring notes are likewise not persisted
// separately from the primary note — a known consistency gap carried over
// deliberately.
package notes

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sagenotes/sage/internal/store"
	"github.com/sagenotes/sage/pkg/backlink"
)

// Indexer receives note content for embedding after each create/update.
// Indexing is fire-and-forget: a failure never rolls back the note.
type Indexer interface {
	IndexNote(ctx context.Context, note *store.Note) error
	RemoveNote(ctx context.Context, noteID string) error
}

// Store holds the authoritative in-memory corpus.
type Store struct {
	mu      sync.Mutex
	persist store.Storer
	indexer Indexer // nil when AI indexing is not configured
	log     *slog.Logger

	notes    []*store.Note
	activeID string
	open     []string // open tabs, deduplicated, insertion-ordered
	loading  bool
	err      error

	wg sync.WaitGroup
}

// Option configures a Store.
type Option func(*Store)

// WithIndexer enables embedding indexing on note writes.
func WithIndexer(ix Indexer) Option {
	return func(s *Store) { s.indexer = ix }
}

// WithLogger injects a logger; slog.Default() otherwise.
func WithLogger(log *slog.Logger) Option {
	return func(s *Store) { s.log = log }
}

// New creates a note store backed by the given persistence layer.
func New(persist store.Storer, opts ...Option) *Store {
	s := &Store{
		persist: persist,
		log:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewNote returns an empty placeholder note ready for Add.
func NewNote() *store.Note {
	now := time.Now().UnixMilli()
	return &store.Note{
		ID:        uuid.NewString(),
		Title:     "Untitled Note",
		Content:   "",
		Tags:      []string{},
		Backlinks: []string{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Load replaces the corpus with the persisted notes, most recently updated
// first. Backlinks are not persisted; they repopulate as notes are edited.
func (s *Store) Load() error {
	s.mu.Lock()
	s.loading = true
	s.err = nil
	s.mu.Unlock()

	loaded, err := s.persist.GetNotes()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading = false
	if err != nil {
		s.log.Error("loading notes failed", "error", err)
		s.err = err
		s.notes = nil
		return err
	}
	s.notes = loaded
	return nil
}

// Add inserts a new note. Its link targets are resolved against the current
// corpus immediately; other notes' backlink sets are not touched until they
// are themselves edited (the documented staleness window).
func (s *Store) Add(note *store.Note) *store.Note {
	s.mu.Lock()

	if note.ID == "" {
		note.ID = uuid.NewString()
	}
	note.Backlinks = backlink.ExtractTargets(note.Content, s.notes, note.ID)

	s.notes = append(s.notes, note)
	s.activeID = note.ID
	s.open = appendUnique(s.open, note.ID)
	s.err = nil

	// Derived fields are never persisted; dropping them here also keeps
	// the background save free of shared slice state.
	saved := *note
	saved.Backlinks = nil
	saved.Tags = nil
	s.mu.Unlock()

	s.persistAsync("save note", func() error {
		return s.persist.SaveNote(&saved)
	})
	s.indexAsync(&saved)
	return note
}

// Update applies an edited note: the corpus entry is replaced, backlinks
// reconcile against the full corpus, and the primary note is persisted.
func (s *Store) Update(note *store.Note) {
	s.mu.Lock()

	note.UpdatedAt = time.Now().UnixMilli()

	replaced := false
	for i, n := range s.notes {
		if n.ID == note.ID {
			s.notes[i] = note
			replaced = true
			break
		}
	}
	if !replaced {
		s.mu.Unlock()
		return
	}

	backlink.Reconcile(note, s.notes)
	s.err = nil

	// Derived fields are never persisted; dropping them here also keeps
	// the background save free of shared slice state.
	saved := *note
	saved.Backlinks = nil
	saved.Tags = nil
	s.mu.Unlock()

	s.persistAsync("save note", func() error {
		return s.persist.SaveNote(&saved)
	})
	s.indexAsync(&saved)
}

// Delete removes the note, sweeps it out of every backlink set, closes its
// tab and, when it was active, promotes the adjacent open tab.
func (s *Store) Delete(id string) {
	s.mu.Lock()

	kept := s.notes[:0]
	for _, n := range s.notes {
		if n.ID != id {
			kept = append(kept, n)
		}
	}
	s.notes = kept

	backlink.SweepDeleted(id, s.notes)

	idx := indexOf(s.open, id)
	if idx >= 0 {
		s.open = append(s.open[:idx], s.open[idx+1:]...)
	}
	if s.activeID == id {
		s.activeID = ""
		if len(s.open) > 0 {
			promote := idx - 1
			if promote < 0 {
				promote = 0
			}
			s.activeID = s.open[promote]
		}
	}
	s.err = nil
	s.mu.Unlock()

	s.persistAsync("delete note", func() error {
		if err := s.persist.DeleteNote(id); err != nil {
			return err
		}
		return s.persist.DeleteEmbedding(id)
	})
	if s.indexer != nil {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			if err := s.indexer.RemoveNote(context.Background(), id); err != nil {
				s.log.Error("removing note from index failed", "note", id, "error", err)
			}
		}()
	}
}

// SetActive makes the note the active tab, opening it when needed.
func (s *Store) SetActive(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.byIDLocked(id) == nil {
		return
	}
	s.activeID = id
	s.open = appendUnique(s.open, id)
}

// CloseNote closes a tab. Closing the active tab promotes the last
// remaining open note.
func (s *Store) CloseNote(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := indexOf(s.open, id)
	if idx >= 0 {
		s.open = append(s.open[:idx], s.open[idx+1:]...)
	}
	if s.activeID == id {
		s.activeID = ""
		if len(s.open) > 0 {
			s.activeID = s.open[len(s.open)-1]
		}
	}
}

// Active returns the active note, or nil.
func (s *Store) Active() *store.Note {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.byIDLocked(s.activeID)
}

// Note returns the note with the given id, or nil.
func (s *Store) Note(id string) *store.Note {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.byIDLocked(id)
}

// Notes returns the corpus in store order. The returned slice is a copy;
// the notes themselves are shared and must be mutated through Update only.
func (s *Store) Notes() []*store.Note {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*store.Note(nil), s.notes...)
}

// OpenNotes returns the open tab IDs in insertion order.
func (s *Store) OpenNotes() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.open...)
}

// Err returns the last persistence error, cleared by the next mutation.
func (s *Store) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Loading reports whether a Load is in flight.
func (s *Store) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

// Clear drops all in-memory state. Persisted data is untouched.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notes = nil
	s.activeID = ""
	s.open = nil
	s.err = nil
}

// Flush waits for in-flight persistence and indexing calls. Intended for
// tests and shutdown.
func (s *Store) Flush() {
	s.wg.Wait()
}

// =============================================================================
// Internals
// =============================================================================

func (s *Store) byIDLocked(id string) *store.Note {
	if id == "" {
		return nil
	}
	for _, n := range s.notes {
		if n.ID == id {
			return n
		}
	}
	return nil
}

func (s *Store) persistAsync(op string, fn func() error) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := fn(); err != nil {
			s.log.Error("persistence failed", "op", op, "error", err)
			s.mu.Lock()
			s.err = err
			s.mu.Unlock()
		}
	}()
}

func (s *Store) indexAsync(note *store.Note) {
	if s.indexer == nil {
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.indexer.IndexNote(context.Background(), note); err != nil {
			s.log.Error("indexing note failed", "note", note.ID, "error", err)
		}
	}()
}

func appendUnique(ids []string, id string) []string {
	if indexOf(ids, id) >= 0 {
		return ids
	}
	return append(ids, id)
}

func indexOf(ids []string, id string) int {
	for i, v := range ids {
		if v == id {
			return i
		}
	}
	return -1
}
