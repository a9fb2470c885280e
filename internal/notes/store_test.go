package notes

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sagenotes/sage/internal/store"
)

// failingStore wraps a MemStore and fails every write, for the
// optimistic-update tests.
type failingStore struct {
	*store.MemStore
}

var errBoom = errors.New("boom")

func (f *failingStore) SaveNote(*store.Note) error   { return errBoom }
func (f *failingStore) DeleteNote(string) error      { return errBoom }
func (f *failingStore) DeleteEmbedding(string) error { return errBoom }

// recordingIndexer captures indexing calls.
type recordingIndexer struct {
	indexed []string
	removed []string
}

func (r *recordingIndexer) IndexNote(_ context.Context, n *store.Note) error {
	r.indexed = append(r.indexed, n.ID)
	return nil
}

func (r *recordingIndexer) RemoveNote(_ context.Context, id string) error {
	r.removed = append(r.removed, id)
	return nil
}

func addNote(s *Store, title, content string) *store.Note {
	n := NewNote()
	n.Title = title
	n.Content = content
	return s.Add(n)
}

func TestNewNoteDefaults(t *testing.T) {
	n := NewNote()
	assert.NotEmpty(t, n.ID)
	assert.Equal(t, "Untitled Note", n.Title)
	assert.Empty(t, n.Content)
	assert.NotZero(t, n.CreatedAt)
	assert.Equal(t, n.CreatedAt, n.UpdatedAt)
}

func TestAddBecomesActiveAndOpen(t *testing.T) {
	s := New(store.NewMemStore())
	defer s.Flush()

	a := addNote(s, "Alpha", "")
	b := addNote(s, "Beta", "")

	assert.Equal(t, b.ID, s.Active().ID)
	assert.Equal(t, []string{a.ID, b.ID}, s.OpenNotes())
	assert.Len(t, s.Notes(), 2)
}

func TestAddResolvesOwnTargets(t *testing.T) {
	s := New(store.NewMemStore())
	defer s.Flush()

	alpha := addNote(s, "Alpha", "")
	beta := addNote(s, "Beta", "See [[Alpha]]")

	// On create the note resolves its own links; Alpha stays stale until
	// it is edited itself.
	assert.Equal(t, []string{alpha.ID}, beta.Backlinks)
	assert.Empty(t, alpha.Backlinks)
}

func TestAddPersists(t *testing.T) {
	mem := store.NewMemStore()
	s := New(mem)

	a := addNote(s, "Alpha", "hello")
	s.Flush()

	persisted, err := mem.GetNotes()
	require.NoError(t, err)
	require.Len(t, persisted, 1)
	assert.Equal(t, a.ID, persisted[0].ID)
	assert.Equal(t, "hello", persisted[0].Content)
	assert.NoError(t, s.Err())
}

func TestUpdateReconcilesBacklinks(t *testing.T) {
	s := New(store.NewMemStore())
	defer s.Flush()

	alpha := addNote(s, "Alpha", "")
	beta := addNote(s, "Beta", "See [[Alpha]]")

	// Editing Alpha pulls in the pending backlink from Beta.
	alpha.Content = "now with content"
	s.Update(alpha)
	assert.Equal(t, []string{beta.ID}, alpha.Backlinks)

	// Beta drops its link; updating Beta pushes the removal.
	beta.Content = "no more links"
	s.Update(beta)
	assert.Empty(t, alpha.Backlinks)
}

func TestUpdateRefreshesTimestamp(t *testing.T) {
	s := New(store.NewMemStore())
	defer s.Flush()

	a := addNote(s, "Alpha", "")
	before := a.UpdatedAt

	a.Content = "edited"
	s.Update(a)
	assert.GreaterOrEqual(t, a.UpdatedAt, before)
}

func TestUpdateUnknownNoteIgnored(t *testing.T) {
	s := New(store.NewMemStore())
	defer s.Flush()

	ghost := NewNote()
	s.Update(ghost)
	assert.Empty(t, s.Notes())
}

func TestDeleteSweepsBacklinks(t *testing.T) {
	s := New(store.NewMemStore())
	defer s.Flush()

	alpha := addNote(s, "Alpha", "")
	beta := addNote(s, "Beta", "See [[Alpha]]")

	alpha.Content = "edited"
	s.Update(alpha)
	require.Equal(t, []string{beta.ID}, alpha.Backlinks)

	s.Delete(beta.ID)
	assert.Empty(t, alpha.Backlinks)
	assert.Len(t, s.Notes(), 1)
}

func TestDeletePromotesAdjacentTab(t *testing.T) {
	s := New(store.NewMemStore())
	defer s.Flush()

	a := addNote(s, "A", "")
	b := addNote(s, "B", "")
	c := addNote(s, "C", "")

	// Active is c (last added). Delete it: the tab to its left wins.
	s.Delete(c.ID)
	assert.Equal(t, b.ID, s.Active().ID)

	// Deleting the leftmost active tab promotes the new first tab.
	s.SetActive(a.ID)
	s.Delete(a.ID)
	assert.Equal(t, b.ID, s.Active().ID)
}

func TestDeleteInactiveKeepsActive(t *testing.T) {
	s := New(store.NewMemStore())
	defer s.Flush()

	a := addNote(s, "A", "")
	b := addNote(s, "B", "")

	s.Delete(a.ID)
	assert.Equal(t, b.ID, s.Active().ID)
	assert.Equal(t, []string{b.ID}, s.OpenNotes())
}

func TestDeleteLastNote(t *testing.T) {
	s := New(store.NewMemStore())
	defer s.Flush()

	a := addNote(s, "A", "")
	s.Delete(a.ID)

	assert.Nil(t, s.Active())
	assert.Empty(t, s.OpenNotes())
	assert.Empty(t, s.Notes())
}

func TestCloseNotePromotesLastOpen(t *testing.T) {
	s := New(store.NewMemStore())
	defer s.Flush()

	a := addNote(s, "A", "")
	b := addNote(s, "B", "")
	c := addNote(s, "C", "")

	s.CloseNote(c.ID)
	// The note itself stays in the corpus; only the tab closes.
	assert.Equal(t, b.ID, s.Active().ID)
	assert.Equal(t, []string{a.ID, b.ID}, s.OpenNotes())
	assert.NotNil(t, s.Note(c.ID))

	s.CloseNote(b.ID)
	s.CloseNote(a.ID)
	assert.Nil(t, s.Active())
}

func TestSetActiveOpensTab(t *testing.T) {
	s := New(store.NewMemStore())
	defer s.Flush()

	a := addNote(s, "A", "")
	b := addNote(s, "B", "")
	s.CloseNote(a.ID)

	s.SetActive(a.ID)
	assert.Equal(t, a.ID, s.Active().ID)
	assert.Equal(t, []string{b.ID, a.ID}, s.OpenNotes())

	// Unknown ids are ignored.
	s.SetActive("missing")
	assert.Equal(t, a.ID, s.Active().ID)
}

func TestOptimisticStateSurvivesPersistenceFailure(t *testing.T) {
	s := New(&failingStore{store.NewMemStore()})

	a := addNote(s, "Alpha", "content")
	s.Flush()

	// The write failed, but the note stays; the error is surfaced.
	assert.Error(t, s.Err())
	require.Len(t, s.Notes(), 1)
	assert.Equal(t, a.ID, s.Notes()[0].ID)

	// The next mutation clears the stale error before its own attempt.
	a.Content = "edited"
	s.Update(a)
	s.Flush()
	assert.Error(t, s.Err())
	assert.Equal(t, "edited", s.Note(a.ID).Content)
}

func TestLoad(t *testing.T) {
	mem := store.NewMemStore()
	seed := New(mem)
	addNote(seed, "Alpha", "persisted")
	seed.Flush()

	s := New(mem)
	require.NoError(t, s.Load())
	require.Len(t, s.Notes(), 1)
	assert.Equal(t, "Alpha", s.Notes()[0].Title)
	assert.False(t, s.Loading())
}

func TestIndexerCalls(t *testing.T) {
	ix := &recordingIndexer{}
	s := New(store.NewMemStore(), WithIndexer(ix))

	a := addNote(s, "Alpha", "")
	s.Flush()

	a.Content = "edited"
	s.Update(a)
	s.Flush()

	s.Delete(a.ID)
	s.Flush()

	assert.Equal(t, []string{a.ID, a.ID}, ix.indexed)
	assert.Equal(t, []string{a.ID}, ix.removed)
}

func TestClear(t *testing.T) {
	mem := store.NewMemStore()
	s := New(mem)
	addNote(s, "Alpha", "")
	s.Flush()

	s.Clear()
	assert.Empty(t, s.Notes())
	assert.Nil(t, s.Active())

	// Persisted data is untouched.
	persisted, err := mem.GetNotes()
	require.NoError(t, err)
	assert.Len(t, persisted, 1)
}
