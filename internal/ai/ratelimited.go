package ai

import (
	"context"

	"github.com/ppiankov/verifact/internal/errs"
	"github.com/ppiankov/verifact/internal/ratelimit"
)

// RateLimited throttles calls per provider before they reach the network
type RateLimited struct {
	inner   Verifier
	limiter *ratelimit.Limiter
}

// NewRateLimited wraps inner with limiter
func NewRateLimited(inner Verifier, limiter *ratelimit.Limiter) *RateLimited {
	return &RateLimited{inner: inner, limiter: limiter}
}

// Name returns the wrapped provider's name
func (r *RateLimited) Name() string {
	return r.inner.Name()
}

// Verify waits for a token, then calls the wrapped verifier
func (r *RateLimited) Verify(ctx context.Context, req Request) (*Assessment, error) {
	if err := r.limiter.Wait(ctx, r.inner.Name()); err != nil {
		return nil, errs.Wrap(errs.KindAIUnavailable, "rate limit", err)
	}
	return r.inner.Verify(ctx, req)
}
