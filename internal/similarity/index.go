package similarity

import (
	"sync"

	"github.com/ppiankov/verifact/internal/model"
)

// Index is a nearest-neighbor capability over fact-check embeddings.
// Implementations must return the same result as FindBestMatch over the
// indexed entries.
type Index interface {
	Add(entry *model.FactCheckEntry)
	Best(query []float32) (Match, bool)
	Len() int
}

// LinearIndex scans every entry. Safe for concurrent use.
type LinearIndex struct {
	mu      sync.RWMutex
	entries []*model.FactCheckEntry
}

// NewLinearIndex builds an index over entries
func NewLinearIndex(entries []*model.FactCheckEntry) *LinearIndex {
	idx := &LinearIndex{entries: make([]*model.FactCheckEntry, 0, len(entries))}
	for _, e := range entries {
		idx.Add(e)
	}
	return idx
}

// Add appends an entry
func (x *LinearIndex) Add(entry *model.FactCheckEntry) {
	if entry == nil {
		return
	}
	x.mu.Lock()
	x.entries = append(x.entries, entry)
	x.mu.Unlock()
}

// Best returns the closest entry
func (x *LinearIndex) Best(query []float32) (Match, bool) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return FindBestMatch(query, x.entries)
}

// Len returns the number of indexed entries
func (x *LinearIndex) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.entries)
}
