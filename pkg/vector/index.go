// Package vector wraps an HNSW index with note-ID bookkeeping and snapshot
// persistence. HNSW keys are uint32, so string note IDs are mapped both ways
// and the mapping is persisted alongside the graph.
package vector

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"sync"

	"github.com/fogfish/hnsw"
	"github.com/fogfish/hnsw/vector"
	"github.com/hack-pad/hackpadfs"
	kvector "github.com/kshard/vector"
)

// Index is a cosine-similarity nearest-neighbor index over note embeddings.
type Index struct {
	mu    sync.RWMutex
	index *hnsw.HNSW[vector.VF32]
	fs    hackpadfs.FS
	path  string

	ids  map[string]uint32
	rev  map[uint32]string
	next uint32
}

// snapshot is the gob-encoded on-disk form.
type snapshot struct {
	Nodes hnsw.Nodes[vector.VF32]
	IDs   map[string]uint32
	Next  uint32
}

// NewIndex opens the index at path, loading an existing snapshot when one is
// present and starting empty otherwise.
func NewIndex(fs hackpadfs.FS, path string) (*Index, error) {
	x := &Index{
		fs:   fs,
		path: path,
		ids:  make(map[string]uint32),
		rev:  make(map[uint32]string),
		next: 1,
	}

	if err := x.Load(); err != nil {
		// No snapshot yet; start with a fresh cosine index.
		x.index = hnsw.New[vector.VF32](vector.SurfaceVF32(kvector.Cosine()))
	}

	return x, nil
}

// Add inserts or re-registers a note embedding. HNSW has no delete; when a
// note is re-embedded the old vector stays in the graph but loses its ID
// mapping, so it can no longer surface in results.
func (x *Index) Add(noteID string, vec []float32) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	if x.index == nil {
		return fmt.Errorf("index not initialized")
	}
	if x.index.Size() > 0 {
		dim := len(x.index.Head().Vec)
		if len(vec) != dim {
			return fmt.Errorf("vector dimension mismatch: expected %d, got %d", dim, len(vec))
		}
	}

	if old, ok := x.ids[noteID]; ok {
		delete(x.rev, old)
	}
	key := x.next
	x.next++
	x.ids[noteID] = key
	x.rev[key] = noteID

	x.index.Insert(vector.VF32{Key: key, Vec: vec})
	return nil
}

// Remove drops the note's ID mapping. The vector itself stays in the HNSW
// graph but is filtered out of every later search.
func (x *Index) Remove(noteID string) {
	x.mu.Lock()
	defer x.mu.Unlock()

	if key, ok := x.ids[noteID]; ok {
		delete(x.ids, noteID)
		delete(x.rev, key)
	}
}

// Search returns up to k note IDs nearest to vec, best first.
func (x *Index) Search(vec []float32, k int) ([]string, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	if x.index == nil {
		return nil, fmt.Errorf("index not initialized")
	}
	if x.index.Size() == 0 {
		return nil, nil
	}
	dim := len(x.index.Head().Vec)
	if len(vec) != dim {
		return nil, fmt.Errorf("vector dimension mismatch: expected %d, got %d", dim, len(vec))
	}

	ef := k * 2
	if ef < 100 {
		ef = 100
	}

	// Over-fetch to compensate for unmapped (removed/re-embedded) keys.
	results := x.index.Search(vector.VF32{Vec: vec}, k*2, ef)

	ids := make([]string, 0, k)
	for _, r := range results {
		noteID, ok := x.rev[r.Key]
		if !ok {
			continue
		}
		ids = append(ids, noteID)
		if len(ids) == k {
			break
		}
	}
	return ids, nil
}

// Size returns the number of live note mappings.
func (x *Index) Size() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.ids)
}

// Save persists the graph and the ID mapping to the filesystem.
func (x *Index) Save() error {
	x.mu.Lock()
	defer x.mu.Unlock()

	if x.index == nil {
		return nil
	}

	snap := snapshot{
		Nodes: x.index.Nodes(),
		IDs:   x.ids,
		Next:  x.next,
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(snap); err != nil {
		return fmt.Errorf("failed to encode index: %w", err)
	}
	if err := hackpadfs.WriteFullFile(x.fs, x.path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write index file: %w", err)
	}
	return nil
}

// Load reads a snapshot from the filesystem and rehydrates the index.
func (x *Index) Load() error {
	x.mu.Lock()
	defer x.mu.Unlock()

	content, err := hackpadfs.ReadFile(x.fs, x.path)
	if err != nil {
		return err
	}

	var snap snapshot
	if err := gob.NewDecoder(bytes.NewReader(content)).Decode(&snap); err != nil {
		return fmt.Errorf("failed to decode index: %w", err)
	}

	x.index = hnsw.FromNodes[vector.VF32](
		vector.SurfaceVF32(kvector.Cosine()),
		snap.Nodes,
	)
	x.ids = snap.IDs
	if x.ids == nil {
		x.ids = make(map[string]uint32)
	}
	x.rev = make(map[uint32]string, len(x.ids))
	for id, key := range x.ids {
		x.rev[key] = id
	}
	x.next = snap.Next
	if x.next == 0 {
		x.next = 1
	}
	return nil
}
