// Package fetch retrieves the pages behind URL claims.
package fetch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"syscall"
	"time"

	"github.com/ppiankov/verifact/internal/cache"
	"github.com/ppiankov/verifact/internal/errs"
	"github.com/ppiankov/verifact/internal/logging"
	"github.com/ppiankov/verifact/internal/model"
	"github.com/ppiankov/verifact/internal/ratelimit"
)

const maxAttempts = 3

// fetchSleepFunc is swapped out in tests
var fetchSleepFunc = time.Sleep

// Fetcher fetches HTML over HTTP with retries, robots.txt checks, per-host
// rate limiting and an optional response cache
type Fetcher struct {
	httpClient *http.Client
	userAgent  string
	maxBytes   int64
	robots     *RobotsChecker
	limiter    *ratelimit.Limiter
	cache      cache.Cache
	cacheTTL   time.Duration
}

// Option configures a Fetcher
type Option func(*Fetcher)

// WithCache caches successful fetches for ttl
func WithCache(c cache.Cache, ttl time.Duration) Option {
	return func(f *Fetcher) {
		f.cache = c
		f.cacheTTL = ttl
	}
}

// WithLimiter throttles requests per host
func WithLimiter(l *ratelimit.Limiter) Option {
	return func(f *Fetcher) { f.limiter = l }
}

// NewFetcher creates a Fetcher from the HTTP settings
func NewFetcher(cfg model.HTTPConfig, opts ...Option) *Fetcher {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	maxBytes := cfg.MaxBodyBytes
	if maxBytes <= 0 {
		maxBytes = 2_000_000
	}

	f := &Fetcher{
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: &http.Transport{Proxy: ProxyFunc(cfg.HTTPProxy, cfg.HTTPSProxy)},
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 3 {
					return fmt.Errorf("stopped after 3 redirects")
				}
				return nil
			},
		},
		userAgent: cfg.UserAgent,
		maxBytes:  maxBytes,
		cache:     cache.Nop{},
	}
	if cfg.RespectRobots {
		f.robots = NewRobotsChecker(cfg.UserAgent, timeout)
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Result is a fetched page
type Result struct {
	HTML        string `json:"html"`
	FinalURL    string `json:"final_url"`
	StatusCode  int    `json:"status_code"`
	ContentType string `json:"content_type"`
}

// StatusError is a non-2xx response
type StatusError struct {
	Code   int
	Status string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status: %d %s", e.Code, e.Status)
}

// Fetch performs a single GET of rawURL
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{Code: resp.StatusCode, Status: resp.Status}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	return &Result{
		HTML:        string(body),
		FinalURL:    resp.Request.URL.String(),
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
	}, nil
}

// FetchWithRetry checks robots.txt and the cache, then fetches with up to
// three attempts. Only 5xx, 429 and connection errors are retried.
func (f *Fetcher) FetchWithRetry(ctx context.Context, rawURL string) (*Result, error) {
	key := cache.Key("page", rawURL)
	if raw, ok := f.cache.Get(key); ok {
		var cached Result
		if err := json.Unmarshal(raw, &cached); err == nil {
			return &cached, nil
		}
	}

	if f.robots != nil {
		allowed, delay, err := f.robots.CanFetch(ctx, rawURL)
		if err != nil {
			return nil, errs.Wrap(errs.KindInput, "fetch", err)
		}
		if !allowed {
			return nil, errs.New(errs.KindInput, "fetch", "%s is disallowed by robots.txt", rawURL)
		}
		if delay > 0 && f.limiter != nil {
			if host, err := ratelimit.Host(rawURL); err == nil {
				f.limiter.SetRate(host, 1/delay.Seconds(), 1)
			}
		}
	}

	log := logging.Component("fetch").WithField("url", rawURL)

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if f.limiter != nil {
			if err := f.limiter.WaitURL(ctx, rawURL); err != nil {
				return nil, err
			}
		}

		result, err := f.Fetch(ctx, rawURL)
		if err == nil {
			if raw, err := json.Marshal(result); err == nil {
				_ = f.cache.Set(key, raw, f.cacheTTL)
			}
			return result, nil
		}

		lastErr = err
		if !isRetryableFetchError(err) || attempt == maxAttempts || ctx.Err() != nil {
			break
		}

		backoff := time.Duration(attempt) * time.Second
		log.WithError(err).WithField("attempt", attempt).Debug("retrying fetch")
		fetchSleepFunc(backoff)
	}
	return nil, lastErr
}

// isRetryableFetchError reports whether a failed fetch may succeed on retry
func isRetryableFetchError(err error) bool {
	if err == nil {
		return false
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Code >= 500 || statusErr.Code == http.StatusTooManyRequests
	}

	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	msg := err.Error()
	return strings.Contains(msg, "connection refused") || strings.Contains(msg, "connection reset")
}
