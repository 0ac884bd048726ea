package embed

import (
	"context"
	"encoding/binary"
	"math"

	"golang.org/x/sync/singleflight"

	"github.com/ppiankov/verifact/internal/cache"
	"github.com/ppiankov/verifact/internal/logging"
)

// CachedProvider memoizes another provider and coalesces concurrent
// requests for the same input.
type CachedProvider struct {
	inner Provider
	cache cache.Cache
	group singleflight.Group
}

// NewCachedProvider wraps inner with c
func NewCachedProvider(inner Provider, c cache.Cache) *CachedProvider {
	return &CachedProvider{inner: inner, cache: c}
}

// Name returns the wrapped provider's name
func (p *CachedProvider) Name() string {
	return p.inner.Name()
}

// Dimension returns the wrapped provider's dimension
func (p *CachedProvider) Dimension() int {
	return p.inner.Dimension()
}

// Embed returns a cached vector or computes and stores one
func (p *CachedProvider) Embed(ctx context.Context, text, language string) ([]float32, error) {
	key := cache.Key("embed", p.inner.Name(), language, text)

	if raw, ok := p.cache.Get(key); ok {
		if vec, ok := decodeVector(raw, p.inner.Dimension()); ok {
			return vec, nil
		}
		_ = p.cache.Delete(key)
	}

	v, err, _ := p.group.Do(key, func() (interface{}, error) {
		if raw, ok := p.cache.Get(key); ok {
			if vec, ok := decodeVector(raw, p.inner.Dimension()); ok {
				return vec, nil
			}
		}
		vec, err := p.inner.Embed(ctx, text, language)
		if err != nil {
			return nil, err
		}
		if err := p.cache.Set(key, encodeVector(vec), 0); err != nil {
			logging.Component("embed").WithError(err).Warn("failed to cache embedding")
		}
		return vec, nil
	})
	if err != nil {
		return nil, err
	}

	vec := v.([]float32)
	return append([]float32(nil), vec...), nil
}

func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, x := range v {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(x))
	}
	return buf
}

func decodeVector(buf []byte, dim int) ([]float32, bool) {
	if len(buf) == 0 || len(buf)%4 != 0 || (dim > 0 && len(buf)/4 != dim) {
		return nil, false
	}
	v := make([]float32, len(buf)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[4*i:]))
	}
	return v, true
}
