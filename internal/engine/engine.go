// Package engine implements the hybrid verification flow: a similarity
// lookup against known fact-checks, an AI fallback on a miss, and learning
// of confident AI answers.
package engine

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ppiankov/verifact/internal/ai"
	"github.com/ppiankov/verifact/internal/embed"
	"github.com/ppiankov/verifact/internal/errs"
	"github.com/ppiankov/verifact/internal/fetch"
	"github.com/ppiankov/verifact/internal/imagehash"
	"github.com/ppiankov/verifact/internal/lock"
	"github.com/ppiankov/verifact/internal/logging"
	"github.com/ppiankov/verifact/internal/metrics"
	"github.com/ppiankov/verifact/internal/model"
	"github.com/ppiankov/verifact/internal/normalize"
	"github.com/ppiankov/verifact/internal/similarity"
	"github.com/ppiankov/verifact/internal/store"
)

// PageFetcher retrieves the HTML behind a URL claim
type PageFetcher interface {
	FetchWithRetry(ctx context.Context, rawURL string) (*fetch.Result, error)
}

// IndexFunc builds a nearest-neighbor index over candidate entries
type IndexFunc func(entries []*model.FactCheckEntry) similarity.Index

// Deps are the collaborators of an Engine. Store and Embedder are required.
type Deps struct {
	Store    store.Store
	Embedder embed.Provider

	// Verifier is the AI fallback. Nil disables it: every miss is UNVERIFIED.
	Verifier ai.Verifier

	Locker  lock.Locker
	Fetcher PageFetcher
	Metrics *metrics.EngineMetrics
	Index   IndexFunc
}

// Engine verifies claims. Safe for concurrent use.
type Engine struct {
	cfg      model.EngineConfig
	store    store.Store
	embedder embed.Provider
	verifier ai.Verifier
	fetcher  PageFetcher
	newIndex IndexFunc
	learner  *Learner
	metrics  *metrics.EngineMetrics
	log      *logrus.Entry
}

// New creates an engine
func New(cfg model.EngineConfig, deps Deps) (*Engine, error) {
	if deps.Store == nil {
		return nil, errs.New(errs.KindConfiguration, "engine", "store is required")
	}
	if deps.Embedder == nil {
		return nil, errs.New(errs.KindConfiguration, "engine", "embedding provider is required")
	}
	if err := checkEmbeddingSpace(deps.Store, deps.Embedder); err != nil {
		return nil, err
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.New()
	}
	if deps.Index == nil {
		deps.Index = func(entries []*model.FactCheckEntry) similarity.Index {
			return similarity.NewLinearIndex(entries)
		}
	}
	if cfg.AITimeout <= 0 {
		cfg.AITimeout = model.DefaultAITimeout
	}
	if cfg.FallbackLanguage == "" {
		cfg.FallbackLanguage = normalize.DefaultLanguage
	}

	return &Engine{
		cfg:      cfg,
		store:    deps.Store,
		embedder: deps.Embedder,
		verifier: deps.Verifier,
		fetcher:  deps.Fetcher,
		newIndex: deps.Index,
		learner:  NewLearner(deps.Store, deps.Embedder, deps.Locker, deps.Metrics, cfg),
		metrics:  deps.Metrics,
		log:      logging.Component("engine"),
	}, nil
}

// checkEmbeddingSpace refuses a store filled by a different embedding
// provider. Its vectors are not comparable with the configured ones.
func checkEmbeddingSpace(s store.FactChecks, p embed.Provider) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	space, err := s.EmbeddingSpace(ctx)
	if err != nil {
		return errs.Wrap(errs.KindStorage, "engine", err)
	}
	if space.IsZero() {
		return nil
	}
	if space.Model != p.Name() {
		return errs.New(errs.KindConfiguration, "engine",
			"store holds embeddings from %q, configured provider is %q", space.Model, p.Name())
	}
	if dim := p.Dimension(); dim > 0 && dim != space.Dimension {
		return errs.New(errs.KindConfiguration, "engine",
			"store holds %d-dimensional embeddings, configured provider produces %d", space.Dimension, dim)
	}
	return nil
}

// Learner exposes the writeback path for bulk ingestion
func (e *Engine) Learner() *Learner {
	return e.learner
}

// Metrics returns the engine's metrics
func (e *Engine) Metrics() *metrics.EngineMetrics {
	return e.metrics
}

// Wait blocks until pending writebacks have finished
func (e *Engine) Wait() {
	e.learner.Wait()
}

// Close drains pending writebacks. The store is owned by the caller.
func (e *Engine) Close() {
	e.learner.Close()
}

// TextRequest is a claim to verify
type TextRequest struct {
	Claim    string
	Language string
}

// ImageRequest is an image to verify. OCRText is the text an external OCR
// step extracted from the image, empty if none.
type ImageRequest struct {
	Image    io.Reader
	OCRText  string
	Language string
}

// URLRequest is a page whose content is the claim
type URLRequest struct {
	URL      string
	Language string
}

// run accumulates one request's result
type run struct {
	result *model.VerificationResult
	log    *logrus.Entry
}

func (e *Engine) newRun(kind, language string) *run {
	id := uuid.NewString()
	return &run{
		result: &model.VerificationResult{
			RequestID: id,
			Language:  normalize.CanonicalLanguage(language),
		},
		log: e.log.WithFields(logrus.Fields{"request_id": id, "kind": kind}),
	}
}

func (r *run) enter(s model.State) {
	r.result.Trail = append(r.result.Trail, s)
}

// respond closes the trail and records the deciding state
func (e *Engine) respond(r *run, decision model.State) *model.VerificationResult {
	r.result.Decision = decision
	r.enter(model.StateRespond)
	e.metrics.RecordVerification(string(decision))
	r.log.WithFields(logrus.Fields{
		"state":      decision,
		"verdict":    r.result.Verdict,
		"confidence": r.result.Confidence,
		"source":     r.result.MatchedSource,
	}).Debug("verification complete")
	return r.result
}

// VerifyText verifies a free-text claim. Only malformed input is returned
// as an error; every other failure degrades to an UNVERIFIED result.
func (e *Engine) VerifyText(ctx context.Context, req TextRequest) (*model.VerificationResult, error) {
	r := e.newRun("text", req.Language)
	r.enter(model.StateNormalize)

	claim, err := normalize.Normalize(req.Claim, req.Language)
	if err != nil {
		return nil, err
	}
	return e.verifyClaim(ctx, r, claim), nil
}

// VerifyURL fetches a page and verifies its visible text
func (e *Engine) VerifyURL(ctx context.Context, req URLRequest) (*model.VerificationResult, error) {
	if e.fetcher == nil {
		return nil, errs.New(errs.KindConfiguration, "verify url", "no page fetcher configured")
	}
	if strings.TrimSpace(req.URL) == "" {
		return nil, errs.New(errs.KindInput, "verify url", "url is empty")
	}

	r := e.newRun("url", req.Language)
	r.log = r.log.WithField("url", req.URL)
	r.enter(model.StateNormalize)

	page, err := e.fetcher.FetchWithRetry(ctx, req.URL)
	if err != nil {
		if errs.KindOf(err) == "" {
			err = errs.Wrap(errs.KindInput, "verify url", err)
		}
		return nil, err
	}

	claim, err := normalize.NormalizeHTML(page.HTML, req.Language)
	if err != nil {
		return nil, err
	}
	return e.verifyClaim(ctx, r, claim), nil
}

// VerifyImage matches an image against known fingerprints. On a miss the
// OCR text, if any, goes through the text path.
func (e *Engine) VerifyImage(ctx context.Context, req ImageRequest) (*model.VerificationResult, error) {
	if req.Image == nil {
		return nil, errs.New(errs.KindInput, "verify image", "image is empty")
	}
	img, err := imagehash.Decode(req.Image)
	if err != nil {
		return nil, errs.Wrap(errs.KindInput, "verify image", err)
	}

	r := e.newRun("image", req.Language)
	r.enter(model.StateNormalize)
	r.enter(model.StateStoreLookup)

	fp := imagehash.Compute(img)
	r.log = r.log.WithField("phash", fp.P.Hex())

	entries, err := e.store.QueryImages(ctx, store.Filter{})
	if err != nil {
		r.log.WithError(err).Warn("image lookup failed")
	} else if m, ok := imagehash.FindBestImageMatch(fp, entries, e.imageMode()); ok {
		if ClassifyImage(m.Distance, e.cfg.ImageMatchDistance) == model.StateStoreHit {
			r.enter(model.StateStoreHit)
			id := m.Entry.ID
			r.result.Verdict = m.Entry.ImageVerdict()
			r.result.Confidence = imagehash.Confidence(m.Distance)
			r.result.Explanation = imageExplanation(m.Entry)
			r.result.MatchedSource = model.MatchedStore
			r.result.MatchedEntryID = &id
			return e.respond(r, model.StateStoreHit), nil
		}
		r.log.WithFields(logrus.Fields{"entry_id": m.Entry.ID, "distance": m.Distance}).Debug("closest image above bound")
	}
	r.enter(model.StateStoreMiss)

	if claim, err := normalize.Normalize(req.OCRText, req.Language); err == nil {
		return e.verifyClaim(ctx, r, claim), nil
	}

	// Nothing to ask the AI about
	r.enter(model.StateAIFallback)
	r.enter(model.StateAILowConfidence)
	r.enter(model.StateSkipLearn)
	r.result.Verdict = model.VerdictUnverified
	r.result.MatchedSource = model.MatchedAIRejected
	r.result.Learn = model.StateSkipLearn
	return e.respond(r, model.StateAILowConfidence), nil
}

func imageExplanation(entry *model.ImageFingerprintEntry) string {
	if entry.MisleadingContext != "" {
		return entry.MisleadingContext
	}
	return entry.Context
}

func (e *Engine) imageMode() imagehash.Mode {
	if strings.EqualFold(e.cfg.ImageChannelMode, string(imagehash.ModeMinimum)) {
		return imagehash.ModeMinimum
	}
	return imagehash.ModeAverage
}

// lookupLanguages is the claim's language plus the fallback language
func (e *Engine) lookupLanguages(lang string) []string {
	if lang == e.cfg.FallbackLanguage {
		return []string{lang}
	}
	return []string{lang, e.cfg.FallbackLanguage}
}

// verifyClaim runs the text state machine from STORE_LOOKUP on
func (e *Engine) verifyClaim(ctx context.Context, r *run, claim normalize.Claim) *model.VerificationResult {
	r.result.Language = claim.Language
	r.enter(model.StateStoreLookup)

	vec, match, ok := e.lookup(ctx, r, claim)
	if ok && ClassifyStore(match.Score, e.cfg.MatchThreshold) == model.StateStoreHit {
		r.enter(model.StateStoreHit)
		id := match.Entry.ID
		r.result.Verdict = match.Entry.Verdict
		r.result.Confidence = clamp01(match.Score)
		r.result.Explanation = match.Entry.Explanation
		r.result.MatchedSource = model.MatchedStore
		r.result.MatchedEntryID = &id
		return e.respond(r, model.StateStoreHit)
	}
	r.enter(model.StateStoreMiss)

	return e.fallback(ctx, r, claim, vec)
}

// lookup embeds the claim and finds the closest stored entry. An embedding
// or storage failure is a miss.
func (e *Engine) lookup(ctx context.Context, r *run, claim normalize.Claim) ([]float32, similarity.Match, bool) {
	vec, err := e.embedder.Embed(ctx, claim.Text, claim.Language)
	if err != nil {
		r.log.WithError(err).Warn("embedding failed, treating as store miss")
		return nil, similarity.Match{}, false
	}

	entries, err := e.store.QueryFactChecks(ctx, store.Filter{Languages: e.lookupLanguages(claim.Language)})
	if err != nil {
		r.log.WithError(err).Warn("store lookup failed, treating as store miss")
		return vec, similarity.Match{}, false
	}

	match, ok := e.newIndex(entries).Best(vec)
	if ok {
		e.metrics.ObserveStoreScore(match.Score)
		r.log.WithFields(logrus.Fields{"entry_id": match.Entry.ID, "score": match.Score}).Debug("best store match")
	}
	return vec, match, ok
}

// fallback asks the AI and applies the return and learn thresholds
func (e *Engine) fallback(ctx context.Context, r *run, claim normalize.Claim, vec []float32) *model.VerificationResult {
	r.enter(model.StateAIFallback)

	assessment, err := e.askAI(ctx, claim)
	confidence := 0.0
	verdict := model.VerdictUnverified
	if err != nil {
		r.log.WithError(err).Warn("AI verification unavailable")
	} else {
		confidence = clamp01(assessment.Confidence)
		verdict = assessment.Verdict
	}
	r.result.Confidence = confidence

	state := model.StateAILowConfidence
	if err == nil {
		state = ClassifyAI(confidence, e.cfg.ReturnThreshold)
	}
	r.enter(state)
	if state == model.StateAIConfident {
		r.result.Verdict = verdict
		r.result.MatchedSource = model.MatchedAI
		r.result.Explanation = assessment.Explanation
	} else {
		r.result.Verdict = model.VerdictUnverified
		r.result.MatchedSource = model.MatchedAIRejected
		if assessment != nil {
			r.result.Explanation = assessment.Explanation
		}
	}

	learn := model.StateSkipLearn
	if err == nil && ctx.Err() == nil {
		learn = ClassifyLearn(confidence, e.cfg.LearnThreshold, verdict)
	}
	if learn == model.StateLearn {
		scheduled := e.learner.Schedule(ctx, Candidate{
			Claim:       claim.Text,
			Verdict:     verdict,
			Explanation: assessment.Explanation,
			Language:    claim.Language,
			Confidence:  confidence,
			Embedding:   vec,
		})
		if !scheduled {
			learn = model.StateSkipLearn
		}
	}
	r.enter(learn)
	r.result.Learn = learn

	return e.respond(r, state)
}

func (e *Engine) askAI(ctx context.Context, claim normalize.Claim) (*ai.Assessment, error) {
	if e.verifier == nil {
		return nil, errs.New(errs.KindAIUnavailable, "verify", "no AI provider configured")
	}

	ctx, cancel := context.WithTimeout(ctx, e.cfg.AITimeout)
	defer cancel()

	start := time.Now()
	a, err := e.verifier.Verify(ctx, ai.Request{Claim: claim.Text, Language: claim.Language})
	e.metrics.ObserveAICall(time.Since(start), err)
	if err != nil {
		if !errors.Is(err, errs.ErrAIUnavailable) {
			err = errs.Wrap(errs.KindAIUnavailable, "verify", err)
		}
		return nil, err
	}
	if a == nil {
		return nil, errs.New(errs.KindAIUnavailable, "verify", "empty assessment")
	}
	return a, nil
}

func clamp01(x float64) float64 {
	switch {
	case x < 0:
		return 0
	case x > 1:
		return 1
	}
	return x
}
