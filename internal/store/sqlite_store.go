// SQLite-backed persistence using ncruces/go-sqlite3/driver, which provides a
// database/sql interface. sqlite-vec supplies the vec0 virtual table used for
// embedding similarity queries.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	_ "github.com/asg017/sqlite-vec-go-bindings/ncruces"
	"github.com/google/uuid"
	_ "github.com/ncruces/go-sqlite3/driver"
)

// SQLiteStore is the SQLite-backed data store.
type SQLiteStore struct {
	mu sync.RWMutex
	db *sql.DB

	// Dimension of the vec0 table, 0 until the first embedding is saved.
	// The table is created lazily because vec0 fixes the dimension at
	// CREATE time and the embedding model decides it.
	vecDim int
}

// schema defines the notes, folders and embedding bookkeeping tables.
// The vec0 virtual table is created separately once the dimension is known.
const schema = `
CREATE TABLE IF NOT EXISTS notes (
    id TEXT PRIMARY KEY,
    title TEXT NOT NULL,
    content TEXT NOT NULL,
    raw_content TEXT,
    folder_id TEXT,
    is_public INTEGER DEFAULT 0,
    public_id TEXT,
    created_at INTEGER NOT NULL,
    updated_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_notes_updated ON notes(updated_at DESC);
CREATE INDEX IF NOT EXISTS idx_notes_folder ON notes(folder_id);
CREATE INDEX IF NOT EXISTS idx_notes_public ON notes(public_id) WHERE is_public = 1;

CREATE TABLE IF NOT EXISTS folders (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    created_at INTEGER NOT NULL
);

-- One row per embedded note. The rowid doubles as the vec0 rowid.
CREATE TABLE IF NOT EXISTS note_embeddings (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    note_id TEXT NOT NULL UNIQUE,
    content TEXT NOT NULL,
    dim INTEGER NOT NULL,
    created_at INTEGER NOT NULL
);
`

// NewSQLiteStore creates a new in-memory SQLite store.
func NewSQLiteStore() (*SQLiteStore, error) {
	return NewSQLiteStoreWithDSN(":memory:")
}

// NewSQLiteStoreWithDSN creates a store with a specific data source name.
// Use ":memory:" for in-memory or a file path for persistent storage.
func NewSQLiteStoreWithDSN(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Every pooled connection to ":memory:" opens its own private database,
	// so the pool must stay at a single connection.
	if dsn == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	s := &SQLiteStore{db: db}
	if err := s.EnsureSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// EnsureSchema (re)applies the schema. All statements are idempotent.
func (s *SQLiteStore) EnsureSchema() error {
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// =============================================================================
// Note CRUD
// =============================================================================

func (s *SQLiteStore) GetNotes() ([]*Note, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT id, title, content, raw_content, folder_id, is_public, public_id, created_at, updated_at
		FROM notes ORDER BY updated_at DESC, id ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var notes []*Note
	for rows.Next() {
		note, err := scanNote(rows)
		if err != nil {
			return nil, err
		}
		notes = append(notes, note)
	}
	return notes, rows.Err()
}

func (s *SQLiteStore) SaveNote(note *Note) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		INSERT INTO notes (id, title, content, raw_content, folder_id, is_public, public_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			content = excluded.content,
			raw_content = excluded.raw_content,
			folder_id = excluded.folder_id,
			is_public = excluded.is_public,
			public_id = excluded.public_id,
			updated_at = excluded.updated_at
	`, note.ID, note.Title, note.Content, nullable(note.RawContent), nullable(note.FolderID),
		boolToInt(note.IsPublic), nullable(note.PublicID), note.CreatedAt, note.UpdatedAt)
	return err
}

func (s *SQLiteStore) DeleteNote(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`DELETE FROM notes WHERE id = ?`, id)
	return err
}

// =============================================================================
// Sharing
// =============================================================================

// GetPublicNote is the unauthenticated read path. Returns nil for unknown
// tokens and for notes that are no longer public.
func (s *SQLiteStore) GetPublicNote(publicID string) (*Note, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if publicID == "" {
		return nil, nil
	}

	row := s.db.QueryRow(`
		SELECT id, title, content, raw_content, folder_id, is_public, public_id, created_at, updated_at
		FROM notes WHERE public_id = ? AND is_public = 1
	`, publicID)

	note, err := scanNote(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return note, nil
}

// GenerateShareLink marks the note public and returns its capability token.
// The token is generated once and reused on later calls.
func (s *SQLiteStore) GenerateShareLink(noteID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var publicID sql.NullString
	err := s.db.QueryRow(`SELECT public_id FROM notes WHERE id = ?`, noteID).Scan(&publicID)
	if err == sql.ErrNoRows {
		return "", ErrNoteNotFound
	}
	if err != nil {
		return "", err
	}

	token := publicID.String
	if token == "" {
		token = uuid.NewString()
	}

	_, err = s.db.Exec(`UPDATE notes SET is_public = 1, public_id = ? WHERE id = ?`, token, noteID)
	if err != nil {
		return "", err
	}
	return token, nil
}

// =============================================================================
// Folder CRUD
// =============================================================================

func (s *SQLiteStore) GetFolders() ([]*Folder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`SELECT id, name, created_at FROM folders ORDER BY name ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var folders []*Folder
	for rows.Next() {
		var folder Folder
		if err := rows.Scan(&folder.ID, &folder.Name, &folder.CreatedAt); err != nil {
			return nil, err
		}
		folders = append(folders, &folder)
	}
	return folders, rows.Err()
}

func (s *SQLiteStore) SaveFolder(folder *Folder) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		INSERT INTO folders (id, name, created_at) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name
	`, folder.ID, folder.Name, folder.CreatedAt)
	return err
}

func (s *SQLiteStore) DeleteFolder(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Notes keep existing, unassigned. No foreign keys; integrity is
	// managed at the application level.
	if _, err := s.db.Exec(`UPDATE notes SET folder_id = NULL WHERE folder_id = ?`, id); err != nil {
		return err
	}
	_, err := s.db.Exec(`DELETE FROM folders WHERE id = ?`, id)
	return err
}

func (s *SQLiteStore) UpdateNoteFolder(noteID, folderID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(`UPDATE notes SET folder_id = ? WHERE id = ?`, nullable(folderID), noteID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNoteNotFound
	}
	return nil
}

// =============================================================================
// Embeddings
// =============================================================================

// SaveEmbedding stores the note's embedding, delete-then-insert. The vec0
// table is created on first use with the embedding's dimension; later saves
// must match it.
func (s *SQLiteStore) SaveEmbedding(noteID string, embedding []float32, content string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(embedding) == 0 {
		return fmt.Errorf("empty embedding for note %s", noteID)
	}
	if err := s.ensureVecTable(len(embedding)); err != nil {
		return err
	}
	if s.vecDim != len(embedding) {
		return fmt.Errorf("embedding dimension mismatch: expected %d, got %d", s.vecDim, len(embedding))
	}

	// Delete any existing embedding first.
	if err := s.deleteEmbeddingLocked(noteID); err != nil {
		return err
	}

	res, err := s.db.Exec(`
		INSERT INTO note_embeddings (note_id, content, dim, created_at)
		VALUES (?, ?, ?, unixepoch() * 1000)
	`, noteID, content, len(embedding))
	if err != nil {
		return err
	}
	rowid, err := res.LastInsertId()
	if err != nil {
		return err
	}

	vec, err := json.Marshal(embedding)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`INSERT INTO note_vec (rowid, embedding) VALUES (?, ?)`, rowid, string(vec))
	return err
}

func (s *SQLiteStore) DeleteEmbedding(noteID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deleteEmbeddingLocked(noteID)
}

func (s *SQLiteStore) deleteEmbeddingLocked(noteID string) error {
	if s.vecDim != 0 {
		if _, err := s.db.Exec(`
			DELETE FROM note_vec WHERE rowid IN (SELECT id FROM note_embeddings WHERE note_id = ?)
		`, noteID); err != nil {
			return err
		}
	}
	_, err := s.db.Exec(`DELETE FROM note_embeddings WHERE note_id = ?`, noteID)
	return err
}

// MatchNotes runs a KNN query over the vec0 table and filters by cosine
// similarity threshold. Returns no results before any embedding is stored.
func (s *SQLiteStore) MatchNotes(query []float32, threshold float32, limit int) ([]MatchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.vecDim == 0 {
		return nil, nil
	}
	if len(query) != s.vecDim {
		return nil, fmt.Errorf("query dimension mismatch: expected %d, got %d", s.vecDim, len(query))
	}
	if limit <= 0 {
		limit = 5
	}

	vec, err := json.Marshal(query)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.Query(`
		SELECT e.note_id, e.content, v.distance
		FROM note_vec v
		JOIN note_embeddings e ON e.id = v.rowid
		WHERE v.embedding MATCH ? AND k = ?
		ORDER BY v.distance
	`, string(vec), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []MatchResult
	for rows.Next() {
		var m MatchResult
		var distance float32
		if err := rows.Scan(&m.NoteID, &m.Content, &distance); err != nil {
			return nil, err
		}
		// vec0 cosine distance is 1 - similarity.
		m.Similarity = 1 - distance
		if m.Similarity >= threshold {
			result = append(result, m)
		}
	}
	return result, rows.Err()
}

// ensureVecTable creates the vec0 virtual table once the embedding dimension
// is known, and recovers the dimension after a reopen.
func (s *SQLiteStore) ensureVecTable(dim int) error {
	if s.vecDim != 0 {
		return nil
	}

	// A previous run may have created the table with a stored dimension.
	var stored int
	err := s.db.QueryRow(`SELECT dim FROM note_embeddings LIMIT 1`).Scan(&stored)
	if err == nil && stored > 0 {
		dim = stored
	} else if err != nil && err != sql.ErrNoRows {
		return err
	}

	stmt := fmt.Sprintf(
		`CREATE VIRTUAL TABLE IF NOT EXISTS note_vec USING vec0(embedding float[%d] distance_metric=cosine)`, dim)
	if _, err := s.db.Exec(stmt); err != nil {
		return fmt.Errorf("failed to create vector table: %w", err)
	}
	s.vecDim = dim
	return nil
}

// =============================================================================
// Helpers
// =============================================================================

type rowScanner interface {
	Scan(dest ...any) error
}

func scanNote(row rowScanner) (*Note, error) {
	var note Note
	var rawContent, folderID, publicID sql.NullString
	var isPublic int

	err := row.Scan(&note.ID, &note.Title, &note.Content, &rawContent, &folderID,
		&isPublic, &publicID, &note.CreatedAt, &note.UpdatedAt)
	if err != nil {
		return nil, err
	}

	note.RawContent = rawContent.String
	note.FolderID = folderID.String
	note.PublicID = publicID.String
	note.IsPublic = isPublic != 0
	note.Tags = []string{}
	note.Backlinks = []string{}
	return &note, nil
}

func nullable(s string) any {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return s
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// Compile-time interface check
var _ Storer = (*SQLiteStore)(nil)
