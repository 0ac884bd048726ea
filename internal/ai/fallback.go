package ai

import (
	"context"

	"github.com/ppiankov/verifact/internal/logging"
)

// ModelFallback tries models in order, moving on only when a model is
// rate limited. Any other error is returned as is.
type ModelFallback struct {
	inner  Verifier
	models []string
}

// NewModelFallback wraps inner with an ordered model list
func NewModelFallback(inner Verifier, models []string) *ModelFallback {
	return &ModelFallback{inner: inner, models: models}
}

// Name returns the wrapped provider's name
func (f *ModelFallback) Name() string {
	return f.inner.Name()
}

// Verify returns the first non-rate-limited answer
func (f *ModelFallback) Verify(ctx context.Context, req Request) (*Assessment, error) {
	if req.Model != "" || len(f.models) == 0 {
		return f.inner.Verify(ctx, req)
	}

	var lastErr error
	for _, m := range f.models {
		r := req
		r.Model = m
		a, err := f.inner.Verify(ctx, r)
		if err == nil {
			return a, nil
		}
		if !IsRateLimited(err) {
			return nil, err
		}
		logging.Component("ai").WithField("model", m).WithError(err).Warn("model rate limited, trying next")
		lastErr = err
		if ctx.Err() != nil {
			break
		}
	}
	return nil, lastErr
}
