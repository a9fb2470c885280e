// Package store provides persistence for Sage notes.
// Storer abstracts the hosted backend; SQLiteStore is the production
// implementation and MemStore backs tests.
package store

// Note is a markdown note. Content is the source of truth for wiki-links;
// Backlinks is derived data maintained by the reconciler, never edited
// directly.
type Note struct {
	ID         string   `json:"id"`
	Title      string   `json:"title"`
	Content    string   `json:"content"`
	RawContent string   `json:"rawContent,omitempty"`
	FolderID   string   `json:"folderId,omitempty"`
	Tags       []string `json:"tags"`
	Backlinks  []string `json:"backlinks"`
	IsPublic   bool     `json:"isPublic,omitempty"`
	PublicID   string   `json:"publicId,omitempty"`
	CreatedAt  int64    `json:"createdAt"`
	UpdatedAt  int64    `json:"updatedAt"`
}

// Folder is an organizational bucket. Membership is authoritative on
// Note.FolderID; there is no cached member list here.
type Folder struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	CreatedAt int64  `json:"createdAt"`
}

// MatchResult is one hit from an embedding similarity query.
// Similarity is cosine similarity in [0, 1].
type MatchResult struct {
	NoteID     string  `json:"noteId"`
	Content    string  `json:"content"`
	Similarity float32 `json:"similarity"`
}

// Storer defines the consumed persistence contract.
// This allows swapping between MemStore (testing) and SQLiteStore (production).
type Storer interface {
	// Notes
	GetNotes() ([]*Note, error) // ordered by UpdatedAt descending
	SaveNote(note *Note) error  // upsert by id
	DeleteNote(id string) error

	// Sharing
	GetPublicNote(publicID string) (*Note, error) // nil when absent or private
	GenerateShareLink(noteID string) (string, error)

	// Folders
	GetFolders() ([]*Folder, error)
	SaveFolder(folder *Folder) error
	DeleteFolder(id string) error
	UpdateNoteFolder(noteID, folderID string) error // empty folderID clears

	// Embeddings. SaveEmbedding is delete-then-insert per note, no
	// update-in-place.
	SaveEmbedding(noteID string, embedding []float32, content string) error
	DeleteEmbedding(noteID string) error
	MatchNotes(query []float32, threshold float32, limit int) ([]MatchResult, error)

	// EnsureSchema re-applies the schema. Backs the single
	// refresh-and-retry path for embedding inserts.
	EnsureSchema() error

	// Lifecycle
	Close() error
}
