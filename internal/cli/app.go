package cli

import (
	"fmt"
	"io"

	"github.com/ppiankov/verifact/internal/ai"
	"github.com/ppiankov/verifact/internal/cache"
	"github.com/ppiankov/verifact/internal/embed"
	"github.com/ppiankov/verifact/internal/engine"
	"github.com/ppiankov/verifact/internal/fetch"
	"github.com/ppiankov/verifact/internal/lock"
	"github.com/ppiankov/verifact/internal/logging"
	"github.com/ppiankov/verifact/internal/metrics"
	"github.com/ppiankov/verifact/internal/model"
	"github.com/ppiankov/verifact/internal/ratelimit"
	"github.com/ppiankov/verifact/internal/store"
)

// Per-host politeness for URL claims. robots.txt crawl delays override it.
const (
	fetchRequestsPerSecond = 1.0
	fetchBurst             = 2
)

// app is the wired engine and the resources it owns
type app struct {
	cfg    *model.Config
	store  store.Store
	locker lock.Locker
	engine *engine.Engine
}

// newApp builds every collaborator described by cfg
func newApp(cfg *model.Config) (*app, error) {
	c := cache.New(cfg.Cache)

	s, err := store.Open(cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	a := &app{cfg: cfg, store: s}
	if err := a.wire(c); err != nil {
		_ = s.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) wire(c cache.Cache) error {
	cfg := a.cfg

	embedder, err := embed.NewProvider(cfg.Embedding, c)
	if err != nil {
		return fmt.Errorf("embedding provider: %w", err)
	}

	verifier, err := ai.NewVerifier(ai.ConfigFromModel(cfg.AI, cfg.HTTP))
	if err != nil {
		return fmt.Errorf("AI provider: %w", err)
	}
	if verifier == nil {
		logging.Component("cli").Warn("no AI provider configured, store misses will be UNVERIFIED")
	}

	locker, err := lock.New(cfg.Lock)
	if err != nil {
		return fmt.Errorf("lock: %w", err)
	}
	a.locker = locker

	fetcher := fetch.NewFetcher(cfg.HTTP,
		fetch.WithCache(c, cfg.Cache.DiskTTL),
		fetch.WithLimiter(ratelimit.New(fetchRequestsPerSecond, fetchBurst)),
	)

	deps := engine.Deps{
		Store:    a.store,
		Embedder: embedder,
		Locker:   locker,
		Fetcher:  fetcher,
		Metrics:  metrics.New(),
	}
	if verifier != nil {
		deps.Verifier = verifier
	}

	a.engine, err = engine.New(cfg.Engine, deps)
	return err
}

// Close drains pending writebacks, then releases the lock backend and store
func (a *app) Close() error {
	if a.engine != nil {
		a.engine.Close()
	}
	if closer, ok := a.locker.(io.Closer); ok {
		_ = closer.Close()
	}
	return a.store.Close()
}
