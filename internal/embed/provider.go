// Package embed maps normalized claim text to fixed-dimension vectors.
package embed

import (
	"context"
	"math"
	"strings"

	"github.com/ppiankov/verifact/internal/errs"
)

// Provider embeds claim text. Implementations are deterministic for
// identical (text, language) and always return Dimension() values.
type Provider interface {
	// Name identifies the provider and model, used in cache keys
	Name() string

	// Dimension is the fixed vector length D
	Dimension() int

	// Embed returns the embedding of text. Empty or over-long input
	// fails with errs.ErrEmbeddingFailure.
	Embed(ctx context.Context, text, language string) ([]float32, error)
}

// DefaultMaxTokens is the token limit applied when none is configured
const DefaultMaxTokens = 512

// checkInput enforces the shared input contract
func checkInput(text string, maxTokens int) error {
	if strings.TrimSpace(text) == "" {
		return errs.New(errs.KindEmbeddingFailure, "embed", "empty input")
	}
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	if n := len(strings.Fields(text)); n > maxTokens {
		return errs.New(errs.KindEmbeddingFailure, "embed", "input has %d tokens, limit is %d", n, maxTokens)
	}
	return nil
}

// normalizeL2 scales v to unit length in place. Zero vectors are left alone.
func normalizeL2(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return v
	}
	norm := math.Sqrt(sum)
	for i := range v {
		v[i] = float32(float64(v[i]) / norm)
	}
	return v
}

// checkDimension rejects vectors of the wrong length
func checkDimension(name string, v []float32, want int) error {
	if want > 0 && len(v) != want {
		return errs.New(errs.KindEmbeddingFailure, "embed", "%s returned %d dimensions, want %d", name, len(v), want)
	}
	if len(v) == 0 {
		return errs.New(errs.KindEmbeddingFailure, "embed", "%s returned an empty vector", name)
	}
	return nil
}
