package store

import (
	"math"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// MemStore is an in-memory implementation of Storer for testing.
type MemStore struct {
	mu         sync.RWMutex
	notes      map[string]*Note
	folders    map[string]*Folder
	embeddings map[string]*embeddingRecord
}

type embeddingRecord struct {
	Vector  []float32
	Content string
}

// NewMemStore creates a new in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{
		notes:      make(map[string]*Note),
		folders:    make(map[string]*Folder),
		embeddings: make(map[string]*embeddingRecord),
	}
}

// Close is a no-op for MemStore.
func (s *MemStore) Close() error {
	return nil
}

// EnsureSchema is a no-op for MemStore.
func (s *MemStore) EnsureSchema() error {
	return nil
}

// =============================================================================
// Note CRUD
// =============================================================================

func (s *MemStore) GetNotes() ([]*Note, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*Note, 0, len(s.notes))
	for _, note := range s.notes {
		result = append(result, copyNote(note))
	}

	// Most recently updated first; id breaks ties so order is stable.
	sort.Slice(result, func(i, j int) bool {
		if result[i].UpdatedAt != result[j].UpdatedAt {
			return result[i].UpdatedAt > result[j].UpdatedAt
		}
		return result[i].ID < result[j].ID
	})

	return result, nil
}

func (s *MemStore) SaveNote(note *Note) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Derived fields are not persisted, matching SQLiteStore. Backlinks
	// are recomputed in memory by the reconciler after load.
	copy := copyNote(note)
	copy.Backlinks = []string{}
	copy.Tags = []string{}
	s.notes[note.ID] = copy
	return nil
}

func (s *MemStore) DeleteNote(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.notes, id)
	return nil
}

// =============================================================================
// Sharing
// =============================================================================

func (s *MemStore) GetPublicNote(publicID string) (*Note, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if publicID == "" {
		return nil, nil
	}
	for _, note := range s.notes {
		if note.IsPublic && note.PublicID == publicID {
			return copyNote(note), nil
		}
	}
	return nil, nil
}

func (s *MemStore) GenerateShareLink(noteID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	note, ok := s.notes[noteID]
	if !ok {
		return "", ErrNoteNotFound
	}
	if note.PublicID == "" {
		note.PublicID = uuid.NewString()
	}
	note.IsPublic = true
	return note.PublicID, nil
}

// =============================================================================
// Folder CRUD
// =============================================================================

func (s *MemStore) GetFolders() ([]*Folder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*Folder, 0, len(s.folders))
	for _, folder := range s.folders {
		copy := *folder
		result = append(result, &copy)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Name < result[j].Name
	})

	return result, nil
}

func (s *MemStore) SaveFolder(folder *Folder) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copy := *folder
	s.folders[folder.ID] = &copy
	return nil
}

func (s *MemStore) DeleteFolder(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.folders, id)
	for _, note := range s.notes {
		if note.FolderID == id {
			note.FolderID = ""
		}
	}
	return nil
}

func (s *MemStore) UpdateNoteFolder(noteID, folderID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	note, ok := s.notes[noteID]
	if !ok {
		return ErrNoteNotFound
	}
	note.FolderID = folderID
	return nil
}

// =============================================================================
// Embeddings
// =============================================================================

func (s *MemStore) SaveEmbedding(noteID string, embedding []float32, content string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Delete-then-insert, matching the SQLite implementation.
	delete(s.embeddings, noteID)

	vec := make([]float32, len(embedding))
	copy(vec, embedding)
	s.embeddings[noteID] = &embeddingRecord{Vector: vec, Content: content}
	return nil
}

func (s *MemStore) DeleteEmbedding(noteID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.embeddings, noteID)
	return nil
}

func (s *MemStore) MatchNotes(query []float32, threshold float32, limit int) ([]MatchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []MatchResult
	for noteID, rec := range s.embeddings {
		if len(rec.Vector) != len(query) {
			continue
		}
		sim := cosineSimilarity(query, rec.Vector)
		if sim >= threshold {
			result = append(result, MatchResult{
				NoteID:     noteID,
				Content:    rec.Content,
				Similarity: sim,
			})
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].Similarity != result[j].Similarity {
			return result[i].Similarity > result[j].Similarity
		}
		return result[i].NoteID < result[j].NoteID
	})

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// =============================================================================
// Helpers
// =============================================================================

func copyNote(note *Note) *Note {
	copy := *note
	if note.Tags != nil {
		copy.Tags = append([]string(nil), note.Tags...)
	}
	if note.Backlinks != nil {
		copy.Backlinks = append([]string(nil), note.Backlinks...)
	}
	return &copy
}

func cosineSimilarity(a, b []float32) float32 {
	var dot, magA, magB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		magA += float64(a[i]) * float64(a[i])
		magB += float64(b[i]) * float64(b[i])
	}
	if magA == 0 || magB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(magA) * math.Sqrt(magB)))
}

// Compile-time interface check
var _ Storer = (*MemStore)(nil)
