package embed

import (
	"context"
	"fmt"
	"hash/fnv"
	"strings"
)

// DefaultDimension matches the multilingual sentence models the store was
// originally populated with.
const DefaultDimension = 384

// HashingProvider is a local, dependency-free provider. It hashes word
// unigrams, word bigrams and character trigrams into a signed feature
// vector and L2-normalizes it.
type HashingProvider struct {
	dim       int
	maxTokens int
}

// NewHashingProvider creates a hashing provider. Zero values use the defaults.
func NewHashingProvider(dim, maxTokens int) *HashingProvider {
	if dim <= 0 {
		dim = DefaultDimension
	}
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	return &HashingProvider{dim: dim, maxTokens: maxTokens}
}

// Name returns the provider name
func (p *HashingProvider) Name() string {
	return fmt.Sprintf("hashing-%d", p.dim)
}

// Dimension returns D
func (p *HashingProvider) Dimension() int {
	return p.dim
}

// Embed hashes text into a unit vector. The language is ignored so the same
// text in two shards embeds identically.
func (p *HashingProvider) Embed(ctx context.Context, text, _ string) ([]float32, error) {
	if err := checkInput(text, p.maxTokens); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	vec := make([]float32, p.dim)
	words := strings.Fields(text)
	for i, w := range words {
		p.add(vec, "w:"+w, 1.0)
		if i > 0 {
			p.add(vec, "b:"+words[i-1]+" "+w, 1.0)
		}
		runes := []rune(" " + w + " ")
		for j := 0; j+3 <= len(runes); j++ {
			p.add(vec, "c:"+string(runes[j:j+3]), 0.5)
		}
	}

	return normalizeL2(vec), nil
}

func (p *HashingProvider) add(vec []float32, feature string, weight float32) {
	h := fnv.New64a()
	_, _ = h.Write([]byte(feature))
	sum := h.Sum64()
	idx := int(sum % uint64(p.dim))
	if sum>>63 == 1 {
		weight = -weight
	}
	vec[idx] += weight
}
