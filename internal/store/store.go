// Package store persists fact-check entries and image fingerprints.
package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/ppiankov/verifact/internal/errs"
	"github.com/ppiankov/verifact/internal/model"
)

// Filter narrows a query. Zero values match everything.
type Filter struct {
	Languages []string // Entries in any of these languages
	Source    string   // Exact source match
	Limit     int      // Maximum rows, 0 for all
}

// EmbeddingSpace is the provider and dimension every stored vector comes
// from. The first insert fixes it; the zero value means an empty store.
type EmbeddingSpace struct {
	Model     string
	Dimension int
}

// IsZero reports whether no vector has been stored yet
func (sp EmbeddingSpace) IsZero() bool {
	return sp.Dimension == 0
}

// FactChecks is the persistence contract for fact-check entries.
// Query results are ordered by ascending id.
type FactChecks interface {
	QueryFactChecks(ctx context.Context, f Filter) ([]*model.FactCheckEntry, error)
	InsertFactCheck(ctx context.Context, e *model.FactCheckEntry) (int64, error)
	CountFactChecks(ctx context.Context) (int64, error)
	EmbeddingSpace(ctx context.Context) (EmbeddingSpace, error)
}

// Images is the persistence contract for image fingerprints
type Images interface {
	QueryImages(ctx context.Context, f Filter) ([]*model.ImageFingerprintEntry, error)
	InsertImage(ctx context.Context, e *model.ImageFingerprintEntry) (int64, error)
	CountImages(ctx context.Context) (int64, error)
}

// Store is both stores behind one backend
type Store interface {
	FactChecks
	Images
	Close() error
}

// Open selects the backend named by cfg.Driver
func Open(cfg model.StoreConfig) (Store, error) {
	switch strings.ToLower(cfg.Driver) {
	case "", "memory":
		return NewMemoryStore(), nil
	case "sqlite", "mysql":
		return OpenGorm(cfg)
	default:
		return nil, errs.New(errs.KindConfiguration, "open store", "unknown store driver: %s (supported: memory, sqlite, mysql)", cfg.Driver)
	}
}

// validateFactCheck applies the insert-time invariants against the store's
// established embedding space, zero if the store is empty.
func validateFactCheck(e *model.FactCheckEntry, space EmbeddingSpace) error {
	if e == nil {
		return errs.New(errs.KindInput, "insert fact-check", "entry is nil")
	}
	if err := e.Validate(); err != nil {
		return errs.Wrap(errs.KindInput, "insert fact-check", err)
	}
	if space.IsZero() {
		return nil
	}
	if len(e.Embedding) != space.Dimension {
		return errs.Wrap(errs.KindInput, "insert fact-check",
			fmt.Errorf("embedding has %d dimensions, store uses %d", len(e.Embedding), space.Dimension))
	}
	if e.EmbeddingModel != space.Model {
		return errs.Wrap(errs.KindInput, "insert fact-check",
			fmt.Errorf("embedding from %q, store uses %q", e.EmbeddingModel, space.Model))
	}
	return nil
}

func validateImage(e *model.ImageFingerprintEntry) error {
	if e == nil {
		return errs.New(errs.KindInput, "insert image", "entry is nil")
	}
	if err := e.Validate(); err != nil {
		return errs.Wrap(errs.KindInput, "insert image", err)
	}
	return nil
}

func languageSet(langs []string) map[string]bool {
	if len(langs) == 0 {
		return nil
	}
	set := make(map[string]bool, len(langs))
	for _, l := range langs {
		set[l] = true
	}
	return set
}
