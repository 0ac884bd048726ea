package store

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/verifact/internal/errs"
	"github.com/ppiankov/verifact/internal/model"
)

func factCheck(claim, lang string, vec ...float32) *model.FactCheckEntry {
	return &model.FactCheckEntry{
		Claim:     claim,
		Verdict:   model.VerdictFalse,
		Source:    "boomlive",
		Language:  lang,
		Embedding: vec,
	}
}

func image(phash string) *model.ImageFingerprintEntry {
	return &model.ImageFingerprintEntry{
		PHash:   phash,
		DHash:   "0000000000000000",
		AHash:   "ffffffffffffffff",
		Context: "flood photo from 2019",
		Source:  "altnews",
	}
}

// backends runs fn against every backend that needs no external service
func backends(t *testing.T, fn func(t *testing.T, s Store)) {
	t.Run("memory", func(t *testing.T) {
		fn(t, NewMemoryStore())
	})
	t.Run("sqlite", func(t *testing.T) {
		s, err := Open(model.StoreConfig{Driver: "sqlite", DSN: filepath.Join(t.TempDir(), "verifact.db")})
		require.NoError(t, err)
		t.Cleanup(func() { _ = s.Close() })
		fn(t, s)
	})
}

func TestStore_InsertAndQuery(t *testing.T) {
	backends(t, func(t *testing.T, s Store) {
		ctx := context.Background()

		id1, err := s.InsertFactCheck(ctx, factCheck("claim one", "en", 1, 0, 0))
		require.NoError(t, err)
		id2, err := s.InsertFactCheck(ctx, factCheck("claim two", "hi", 0, 1, 0))
		require.NoError(t, err)
		id3, err := s.InsertFactCheck(ctx, factCheck("claim three", "ta", 0, 0, 1))
		require.NoError(t, err)
		assert.Less(t, id1, id2)
		assert.Less(t, id2, id3)

		all, err := s.QueryFactChecks(ctx, Filter{})
		require.NoError(t, err)
		require.Len(t, all, 3)
		assert.Equal(t, []float32{0, 1, 0}, all[1].Embedding)
		assert.Equal(t, model.VerdictFalse, all[1].Verdict)

		hi, err := s.QueryFactChecks(ctx, Filter{Languages: []string{"hi", "en"}})
		require.NoError(t, err)
		require.Len(t, hi, 2)
		assert.Equal(t, id1, hi[0].ID)
		assert.Equal(t, id2, hi[1].ID)

		limited, err := s.QueryFactChecks(ctx, Filter{Limit: 1})
		require.NoError(t, err)
		assert.Len(t, limited, 1)

		n, err := s.CountFactChecks(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(3), n)
	})
}

func TestStore_DimensionFixedByFirstInsert(t *testing.T) {
	backends(t, func(t *testing.T, s Store) {
		ctx := context.Background()

		_, err := s.InsertFactCheck(ctx, factCheck("first", "en", 1, 0, 0))
		require.NoError(t, err)

		_, err = s.InsertFactCheck(ctx, factCheck("second", "en", 1, 0))
		require.Error(t, err)
		assert.True(t, errors.Is(err, errs.ErrInput))

		n, err := s.CountFactChecks(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)
	})
}

func TestStore_EmbeddingModelFixedByFirstInsert(t *testing.T) {
	backends(t, func(t *testing.T, s Store) {
		ctx := context.Background()

		space, err := s.EmbeddingSpace(ctx)
		require.NoError(t, err)
		assert.True(t, space.IsZero())

		first := factCheck("first", "en", 1, 0, 0)
		first.EmbeddingModel = "hashing-3"
		_, err = s.InsertFactCheck(ctx, first)
		require.NoError(t, err)

		space, err = s.EmbeddingSpace(ctx)
		require.NoError(t, err)
		assert.Equal(t, EmbeddingSpace{Model: "hashing-3", Dimension: 3}, space)

		// Same dimension, different provider
		other := factCheck("second", "en", 0, 1, 0)
		other.EmbeddingModel = "ollama:all-minilm"
		_, err = s.InsertFactCheck(ctx, other)
		require.Error(t, err)
		assert.True(t, errors.Is(err, errs.ErrInput))

		all, err := s.QueryFactChecks(ctx, Filter{})
		require.NoError(t, err)
		require.Len(t, all, 1)
		assert.Equal(t, "hashing-3", all[0].EmbeddingModel)
	})
}

func TestGormStore_EmbeddingSpaceSurvivesReopen(t *testing.T) {
	cfg := model.StoreConfig{Driver: "sqlite", DSN: filepath.Join(t.TempDir(), "verifact.db")}
	ctx := context.Background()

	s, err := Open(cfg)
	require.NoError(t, err)
	e := factCheck("first", "en", 1, 0)
	e.EmbeddingModel = "hashing-2"
	_, err = s.InsertFactCheck(ctx, e)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Open(cfg)
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	space, err := s.EmbeddingSpace(ctx)
	require.NoError(t, err)
	assert.Equal(t, EmbeddingSpace{Model: "hashing-2", Dimension: 2}, space)

	e = factCheck("second", "en", 0, 1)
	e.EmbeddingModel = "openai:text-embedding-3-small"
	_, err = s.InsertFactCheck(ctx, e)
	assert.True(t, errors.Is(err, errs.ErrInput))
}

func TestStore_RejectsInvalidEntries(t *testing.T) {
	backends(t, func(t *testing.T, s Store) {
		ctx := context.Background()

		_, err := s.InsertFactCheck(ctx, factCheck("", "en", 1))
		assert.True(t, errors.Is(err, errs.ErrInput))

		noVec := factCheck("claim", "en")
		_, err = s.InsertFactCheck(ctx, noVec)
		assert.True(t, errors.Is(err, errs.ErrInput))

		partial := image("00000000000000ff")
		partial.AHash = ""
		_, err = s.InsertImage(ctx, partial)
		assert.True(t, errors.Is(err, errs.ErrInput))

		n, err := s.CountImages(ctx)
		require.NoError(t, err)
		assert.Zero(t, n)
	})
}

func TestStore_Images(t *testing.T) {
	backends(t, func(t *testing.T, s Store) {
		ctx := context.Background()

		id, err := s.InsertImage(ctx, image("00000000000000ff"))
		require.NoError(t, err)
		assert.Positive(t, id)

		imgs, err := s.QueryImages(ctx, Filter{})
		require.NoError(t, err)
		require.Len(t, imgs, 1)
		assert.Equal(t, "00000000000000ff", imgs[0].PHash)
		assert.Equal(t, "flood photo from 2019", imgs[0].Context)

		none, err := s.QueryImages(ctx, Filter{Source: "pib"})
		require.NoError(t, err)
		assert.Empty(t, none)
	})
}

func TestMemoryStore_ConcurrentInsertsGetUniqueIDs(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	var wg sync.WaitGroup
	ids := make(chan int64, 50)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id, err := s.InsertFactCheck(ctx, factCheck("claim", "en", 1, 1))
			assert.NoError(t, err)
			ids <- id
		}()
	}
	wg.Wait()
	close(ids)

	seen := map[int64]bool{}
	for id := range ids {
		assert.False(t, seen[id], "duplicate id %d", id)
		seen[id] = true
	}
	assert.Len(t, seen, 50)
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	_, err := s.InsertFactCheck(ctx, factCheck("claim", "en", 1, 2))
	require.NoError(t, err)

	got, err := s.QueryFactChecks(ctx, Filter{})
	require.NoError(t, err)
	got[0].Embedding[0] = 99

	again, err := s.QueryFactChecks(ctx, Filter{})
	require.NoError(t, err)
	assert.Equal(t, float32(1), again[0].Embedding[0])
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open(model.StoreConfig{Driver: "postgres"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrConfiguration))
}
