// Package folders manages the folder index. Assignment is authoritative on
// Note.FolderID; folder membership is a computed view, not a second source
// of truth. The store follows the same optimistic-update pattern as the
// note store.
package folders

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sagenotes/sage/internal/store"
)

// Folder is a folder plus its UI expansion state.
type Folder struct {
	ID       string
	Name     string
	Expanded bool
}

// Store holds the in-memory folder map.
type Store struct {
	mu      sync.Mutex
	persist store.Storer
	log     *slog.Logger

	folders map[string]*Folder
	loading bool
	err     error

	wg sync.WaitGroup
}

// Option configures a Store.
type Option func(*Store)

// WithLogger injects a logger; slog.Default() otherwise.
func WithLogger(log *slog.Logger) Option {
	return func(s *Store) { s.log = log }
}

// New creates a folder store backed by the given persistence layer.
func New(persist store.Storer, opts ...Option) *Store {
	s := &Store{
		persist: persist,
		log:     slog.Default(),
		folders: make(map[string]*Folder),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load replaces the folder map with the persisted folders, all expanded.
func (s *Store) Load() error {
	s.mu.Lock()
	s.loading = true
	s.mu.Unlock()

	loaded, err := s.persist.GetFolders()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading = false
	if err != nil {
		s.log.Error("loading folders failed", "error", err)
		s.err = err
		s.folders = make(map[string]*Folder)
		return err
	}
	s.folders = make(map[string]*Folder, len(loaded))
	for _, f := range loaded {
		s.folders[f.ID] = &Folder{ID: f.ID, Name: f.Name, Expanded: true}
	}
	return nil
}

// Add creates a folder and persists it in the background.
func (s *Store) Add(name string) *Folder {
	folder := &Folder{
		ID:       uuid.NewString(),
		Name:     name,
		Expanded: true,
	}

	s.mu.Lock()
	s.folders[folder.ID] = folder
	s.err = nil
	s.mu.Unlock()

	record := &store.Folder{ID: folder.ID, Name: name, CreatedAt: time.Now().UnixMilli()}
	s.persistAsync("save folder", func() error {
		return s.persist.SaveFolder(record)
	})
	return folder
}

// Delete removes the folder. Notes assigned to it become unassigned at the
// persistence layer; the in-memory notes are the caller's to refresh.
func (s *Store) Delete(id string) {
	s.mu.Lock()
	delete(s.folders, id)
	s.err = nil
	s.mu.Unlock()

	s.persistAsync("delete folder", func() error {
		return s.persist.DeleteFolder(id)
	})
}

// Toggle flips the folder's expansion state. Pure UI state, not persisted.
func (s *Store) Toggle(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if f, ok := s.folders[id]; ok {
		f.Expanded = !f.Expanded
	}
}

// MoveNote reassigns a note, optimistically on the note itself and
// asynchronously at the persistence layer. An empty folderID unassigns.
func (s *Store) MoveNote(note *store.Note, folderID string) {
	s.mu.Lock()
	note.FolderID = folderID
	s.err = nil
	s.mu.Unlock()

	noteID := note.ID
	s.persistAsync("move note", func() error {
		return s.persist.UpdateNoteFolder(noteID, folderID)
	})
}

// Folders returns the folders sorted by name.
func (s *Store) Folders() []*Folder {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := make([]*Folder, 0, len(s.folders))
	for _, f := range s.folders {
		copy := *f
		result = append(result, &copy)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Name < result[j].Name
	})
	return result
}

// Folder returns one folder by id, or nil.
func (s *Store) Folder(id string) *Folder {
	s.mu.Lock()
	defer s.mu.Unlock()
	if f, ok := s.folders[id]; ok {
		copy := *f
		return &copy
	}
	return nil
}

// Err returns the last persistence error, cleared by the next mutation.
func (s *Store) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Clear drops all in-memory state.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.folders = make(map[string]*Folder)
	s.err = nil
}

// Flush waits for in-flight persistence calls.
func (s *Store) Flush() {
	s.wg.Wait()
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

// NotesIn is the computed membership view: the notes assigned to folderID,
// in the given corpus order. An empty folderID selects unassigned notes.
func NotesIn(folderID string, corpus []*store.Note) []*store.Note {
	var result []*store.Note
	for _, n := range corpus {
		if n.FolderID == folderID {
			result = append(result, n)
		}
	}
	return result
}
