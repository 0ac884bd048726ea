package model

import (
	"fmt"
	"time"
)

// SourceAI marks entries learned from the AI verification service
const SourceAI = "ai"

// FactCheckEntry is a previously adjudicated claim.
// Embedding is computed at insertion and replaced, never mutated, if Claim changes.
type FactCheckEntry struct {
	ID          int64     `json:"id" yaml:"id"`
	Claim       string    `json:"claim" yaml:"claim"`
	Verdict     Verdict   `json:"verdict" yaml:"verdict"`
	Explanation string    `json:"explanation,omitempty" yaml:"explanation,omitempty"`
	Source      string    `json:"source,omitempty" yaml:"source,omitempty"`
	SourceURL   string    `json:"source_url,omitempty" yaml:"source_url,omitempty"`
	Language    string    `json:"language" yaml:"language"`
	Embedding   []float32 `json:"-" yaml:"-"`
	// EmbeddingModel names the provider that produced Embedding
	EmbeddingModel string    `json:"-" yaml:"-"`
	Confidence     float64   `json:"confidence,omitempty" yaml:"confidence,omitempty"` // AI confidence for learned entries
	CreatedAt      time.Time `json:"created_at" yaml:"created_at"`
}

// Validate checks the fields required before insertion
func (e *FactCheckEntry) Validate() error {
	if e.Claim == "" {
		return fmt.Errorf("claim is empty")
	}
	if !e.Verdict.Valid() {
		return fmt.Errorf("invalid verdict %q", e.Verdict)
	}
	if len(e.Embedding) == 0 {
		return fmt.Errorf("embedding is missing")
	}
	return nil
}

// ImageFingerprintEntry is a previously seen image with its perceptual hashes.
// Hashes are hex encoded, HashHexLen characters each.
type ImageFingerprintEntry struct {
	ID                int64     `json:"id" yaml:"id"`
	PHash             string    `json:"phash" yaml:"phash"`
	DHash             string    `json:"dhash" yaml:"dhash"`
	AHash             string    `json:"ahash" yaml:"ahash"`
	Context           string    `json:"context,omitempty" yaml:"context,omitempty"`
	MisleadingContext string    `json:"misleading_context,omitempty" yaml:"misleading_context,omitempty"`
	Verdict           Verdict   `json:"verdict,omitempty" yaml:"verdict,omitempty"`
	Source            string    `json:"source,omitempty" yaml:"source,omitempty"`
	SourceURL         string    `json:"source_url,omitempty" yaml:"source_url,omitempty"`
	CreatedAt         time.Time `json:"created_at" yaml:"created_at"`
}

// HashHexLen is the hex length of a 64-bit perceptual hash
const HashHexLen = 16

// Validate rejects partial entries: all three hashes must be present and full length
func (e *ImageFingerprintEntry) Validate() error {
	for name, h := range map[string]string{"phash": e.PHash, "dhash": e.DHash, "ahash": e.AHash} {
		if h == "" {
			return fmt.Errorf("%s is missing", name)
		}
		if len(h) != HashHexLen {
			return fmt.Errorf("%s has length %d, want %d", name, len(h), HashHexLen)
		}
	}
	return nil
}

// ImageVerdict returns the verdict served on an image hit. Known images default to MISLEADING.
func (e *ImageFingerprintEntry) ImageVerdict() Verdict {
	if e.Verdict.Valid() {
		return e.Verdict
	}
	return VerdictMisleading
}
