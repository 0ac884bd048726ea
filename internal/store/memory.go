package store

import (
	"context"
	"sync"
	"time"

	"github.com/ppiankov/verifact/internal/model"
)

// MemoryStore keeps everything in process. Returned entries are copies.
type MemoryStore struct {
	mu      sync.RWMutex
	nextID  int64
	space   EmbeddingSpace
	entries []*model.FactCheckEntry
	images  []*model.ImageFingerprintEntry
}

// NewMemoryStore creates an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// QueryFactChecks returns entries matching f
func (s *MemoryStore) QueryFactChecks(ctx context.Context, f Filter) ([]*model.FactCheckEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	langs := languageSet(f.Languages)

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*model.FactCheckEntry
	for _, e := range s.entries {
		if langs != nil && !langs[e.Language] {
			continue
		}
		if f.Source != "" && e.Source != f.Source {
			continue
		}
		out = append(out, copyFactCheck(e))
		if f.Limit > 0 && len(out) == f.Limit {
			break
		}
	}
	return out, nil
}

// InsertFactCheck stores a copy of e and returns its id
func (s *MemoryStore) InsertFactCheck(ctx context.Context, e *model.FactCheckEntry) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := validateFactCheck(e, s.space); err != nil {
		return 0, err
	}
	if s.space.IsZero() {
		s.space = EmbeddingSpace{Model: e.EmbeddingModel, Dimension: len(e.Embedding)}
	}

	s.nextID++
	stored := copyFactCheck(e)
	stored.ID = s.nextID
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now().UTC()
	}
	s.entries = append(s.entries, stored)
	return stored.ID, nil
}

// CountFactChecks returns the number of entries
func (s *MemoryStore) CountFactChecks(context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.entries)), nil
}

// EmbeddingSpace returns the space fixed by the first insert
func (s *MemoryStore) EmbeddingSpace(context.Context) (EmbeddingSpace, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.space, nil
}

// QueryImages returns fingerprints matching f. Languages are ignored.
func (s *MemoryStore) QueryImages(ctx context.Context, f Filter) ([]*model.ImageFingerprintEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*model.ImageFingerprintEntry
	for _, e := range s.images {
		if f.Source != "" && e.Source != f.Source {
			continue
		}
		c := *e
		out = append(out, &c)
		if f.Limit > 0 && len(out) == f.Limit {
			break
		}
	}
	return out, nil
}

// InsertImage stores a copy of e and returns its id
func (s *MemoryStore) InsertImage(ctx context.Context, e *model.ImageFingerprintEntry) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if err := validateImage(e); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	stored := *e
	stored.ID = s.nextID
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now().UTC()
	}
	s.images = append(s.images, &stored)
	return stored.ID, nil
}

// CountImages returns the number of fingerprints
func (s *MemoryStore) CountImages(context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.images)), nil
}

// Close is a no-op
func (s *MemoryStore) Close() error {
	return nil
}

func copyFactCheck(e *model.FactCheckEntry) *model.FactCheckEntry {
	c := *e
	c.Embedding = append([]float32(nil), e.Embedding...)
	return &c
}
