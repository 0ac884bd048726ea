// Package dedup decides whether a candidate entry is already represented in
// the store. It only serves the insertion path.
package dedup

import (
	"context"

	"github.com/ppiankov/verifact/internal/imagehash"
	"github.com/ppiankov/verifact/internal/similarity"
	"github.com/ppiankov/verifact/internal/store"
)

// Decision explains a duplicate check
type Decision struct {
	Duplicate bool
	MatchedID int64   // Closest existing entry, 0 if the store was empty
	Score     float64 // Cosine similarity for text, combined distance for images
}

// Deduplicator checks candidates against the store
type Deduplicator struct {
	facts  store.FactChecks
	images store.Images

	textThreshold float64
	imageDistance int
	imageMode     imagehash.Mode
}

// Config holds the duplicate bounds
type Config struct {
	TextThreshold float64        // Duplicate iff cosine >= TextThreshold
	ImageDistance int            // Duplicate iff combined distance <= ImageDistance
	ImageMode     imagehash.Mode // How channel distances combine
}

// New creates a deduplicator over the given stores
func New(facts store.FactChecks, images store.Images, cfg Config) *Deduplicator {
	mode := cfg.ImageMode
	if mode == "" {
		mode = imagehash.ModeAverage
	}
	return &Deduplicator{
		facts:         facts,
		images:        images,
		textThreshold: cfg.TextThreshold,
		imageDistance: cfg.ImageDistance,
		imageMode:     mode,
	}
}

// IsDuplicateText compares embedding against every stored entry in the
// given languages. No languages means the whole store.
func (d *Deduplicator) IsDuplicateText(ctx context.Context, embedding []float32, languages ...string) (Decision, error) {
	entries, err := d.facts.QueryFactChecks(ctx, store.Filter{Languages: languages})
	if err != nil {
		return Decision{}, err
	}

	m, ok := similarity.FindBestMatch(embedding, entries)
	if !ok {
		return Decision{}, nil
	}
	return Decision{
		Duplicate: m.Score >= d.textThreshold,
		MatchedID: m.Entry.ID,
		Score:     m.Score,
	}, nil
}

// IsDuplicateImage compares a fingerprint against every stored image
func (d *Deduplicator) IsDuplicateImage(ctx context.Context, fp imagehash.Triplet) (Decision, error) {
	entries, err := d.images.QueryImages(ctx, store.Filter{})
	if err != nil {
		return Decision{}, err
	}

	m, ok := imagehash.FindBestImageMatch(fp, entries, d.imageMode)
	if !ok {
		return Decision{}, nil
	}
	return Decision{
		Duplicate: m.Distance <= d.imageDistance,
		MatchedID: m.Entry.ID,
		Score:     float64(m.Distance),
	}, nil
}
