package engine

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ppiankov/verifact/internal/dedup"
	"github.com/ppiankov/verifact/internal/embed"
	"github.com/ppiankov/verifact/internal/errs"
	"github.com/ppiankov/verifact/internal/imagehash"
	"github.com/ppiankov/verifact/internal/lock"
	"github.com/ppiankov/verifact/internal/logging"
	"github.com/ppiankov/verifact/internal/metrics"
	"github.com/ppiankov/verifact/internal/model"
	"github.com/ppiankov/verifact/internal/normalize"
	"github.com/ppiankov/verifact/internal/store"
)

const imageShard = "images"

// Candidate is an AI answer eligible for learning
type Candidate struct {
	Claim       string
	Verdict     model.Verdict
	Explanation string
	Language    string
	Confidence  float64

	// Embedding of Claim. Computed on demand when nil.
	Embedding []float32
}

// Outcome reports what a writeback did
type Outcome struct {
	Inserted bool
	ID       int64
	Decision dedup.Decision
}

// Learner owns the mutating path into the stores. The duplicate check and
// the insert that follows it run under one lock per shard.
type Learner struct {
	facts    store.FactChecks
	images   store.Images
	dedup    *dedup.Deduplicator
	locker   lock.Locker
	embedder embed.Provider
	metrics  *metrics.EngineMetrics
	log      *logrus.Entry

	maxRunes int
	timeout  time.Duration

	mu      sync.Mutex
	closed  bool
	pending sync.WaitGroup
}

// NewLearner creates a learner over s
func NewLearner(s store.Store, embedder embed.Provider, locker lock.Locker, m *metrics.EngineMetrics, cfg model.EngineConfig) *Learner {
	if locker == nil {
		locker = lock.NewLocalLocker()
	}
	if m == nil {
		m = metrics.New()
	}
	mode := imagehash.Mode(strings.ToLower(cfg.ImageChannelMode))
	return &Learner{
		facts:  s,
		images: s,
		dedup: dedup.New(s, s, dedup.Config{
			TextThreshold: cfg.DedupThreshold,
			ImageDistance: cfg.ImageDedupDistance,
			ImageMode:     mode,
		}),
		locker:   locker,
		embedder: embedder,
		metrics:  m,
		log:      logging.Component("learn"),
		maxRunes: cfg.LearnClaimMaxRune,
		timeout:  cfg.WritebackTimeout,
	}
}

// Learn writes an AI answer back to the fact-check store unless an
// equivalent entry already exists. Duplicates are not errors.
func (l *Learner) Learn(ctx context.Context, c Candidate) (Outcome, error) {
	if !c.Verdict.Valid() || c.Verdict == model.VerdictUnverified {
		l.metrics.RecordWriteback(metrics.WritebackSkipped)
		return Outcome{}, nil
	}

	claim := c.Claim
	if l.maxRunes > 0 {
		claim = normalize.Truncate(claim, l.maxRunes)
	}

	return l.Ingest(ctx, &model.FactCheckEntry{
		Claim:       claim,
		Verdict:     c.Verdict,
		Explanation: c.Explanation,
		Source:      model.SourceAI,
		Language:    normalize.CanonicalLanguage(c.Language),
		Embedding:   c.Embedding,
		Confidence:  c.Confidence,
	})
}

// Ingest inserts a fact-check entry through the duplicate gate. The entry
// is embedded first when it carries no embedding.
func (l *Learner) Ingest(ctx context.Context, entry *model.FactCheckEntry) (Outcome, error) {
	if entry == nil || strings.TrimSpace(entry.Claim) == "" {
		return Outcome{}, errs.New(errs.KindInput, "ingest", "claim is empty")
	}
	if !entry.Verdict.Valid() {
		return Outcome{}, errs.New(errs.KindInput, "ingest", "invalid verdict %q", entry.Verdict)
	}
	if entry.Language == "" {
		entry.Language = normalize.DefaultLanguage
	}

	if len(entry.Embedding) == 0 {
		if l.embedder == nil {
			return Outcome{}, l.failed(errs.New(errs.KindWritebackFailure, "learn", "no embedding provider"))
		}
		vec, err := l.embedder.Embed(ctx, entry.Claim, entry.Language)
		if err != nil {
			return Outcome{}, l.failed(errs.Wrap(errs.KindWritebackFailure, "learn embed", err))
		}
		entry.Embedding = vec
	}
	// Vectors handed in without a model come from this learner's provider
	if entry.EmbeddingModel == "" && l.embedder != nil {
		entry.EmbeddingModel = l.embedder.Name()
	}

	release, err := l.locker.Lock(ctx, "facts:"+entry.Language)
	if err != nil {
		return Outcome{}, l.failed(errs.Wrap(errs.KindWritebackFailure, "learn lock", err))
	}
	defer release()

	decision, err := l.dedup.IsDuplicateText(ctx, entry.Embedding, entry.Language)
	if err != nil {
		return Outcome{}, l.failed(errs.Wrap(errs.KindWritebackFailure, "learn dedup", err))
	}
	if decision.Duplicate {
		l.metrics.RecordWriteback(metrics.WritebackDuplicate)
		l.log.WithFields(logrus.Fields{
			"entry_id": decision.MatchedID,
			"score":    decision.Score,
		}).Debug("duplicate claim discarded")
		return Outcome{Decision: decision}, nil
	}

	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	id, err := l.facts.InsertFactCheck(ctx, entry)
	if err != nil {
		return Outcome{}, l.failed(errs.Wrap(errs.KindWritebackFailure, "learn insert", err))
	}

	l.metrics.RecordWriteback(metrics.WritebackInserted)
	l.log.WithFields(logrus.Fields{
		"entry_id": id,
		"verdict":  entry.Verdict,
		"language": entry.Language,
	}).Info("learned new fact-check")
	return Outcome{Inserted: true, ID: id, Decision: decision}, nil
}

// IngestImage inserts an image fingerprint unless a near-identical image
// is already stored
func (l *Learner) IngestImage(ctx context.Context, entry *model.ImageFingerprintEntry) (Outcome, error) {
	if entry == nil {
		return Outcome{}, errs.New(errs.KindInput, "ingest image", "entry is nil")
	}
	if err := entry.Validate(); err != nil {
		return Outcome{}, errs.Wrap(errs.KindInput, "ingest image", err)
	}
	fp, err := imagehash.FromEntry(entry)
	if err != nil {
		return Outcome{}, errs.Wrap(errs.KindInput, "ingest image", err)
	}

	release, err := l.locker.Lock(ctx, imageShard)
	if err != nil {
		return Outcome{}, l.failed(errs.Wrap(errs.KindWritebackFailure, "ingest image lock", err))
	}
	defer release()

	decision, err := l.dedup.IsDuplicateImage(ctx, fp)
	if err != nil {
		return Outcome{}, l.failed(errs.Wrap(errs.KindWritebackFailure, "ingest image dedup", err))
	}
	if decision.Duplicate {
		l.metrics.RecordWriteback(metrics.WritebackDuplicate)
		return Outcome{Decision: decision}, nil
	}

	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	id, err := l.images.InsertImage(ctx, entry)
	if err != nil {
		return Outcome{}, l.failed(errs.Wrap(errs.KindWritebackFailure, "ingest image insert", err))
	}
	l.metrics.RecordWriteback(metrics.WritebackInserted)
	return Outcome{Inserted: true, ID: id, Decision: decision}, nil
}

// Schedule runs Learn in the background. The writeback outlives the
// caller's deadline but is dropped when the caller has already cancelled.
// It returns false when nothing was scheduled.
func (l *Learner) Schedule(parent context.Context, c Candidate) bool {
	if parent.Err() != nil {
		l.metrics.RecordWriteback(metrics.WritebackSkipped)
		return false
	}

	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		l.metrics.RecordWriteback(metrics.WritebackSkipped)
		return false
	}
	l.pending.Add(1)
	l.mu.Unlock()

	go func() {
		defer l.pending.Done()

		ctx := context.WithoutCancel(parent)
		if l.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, l.timeout)
			defer cancel()
		}

		if _, err := l.Learn(ctx, c); err != nil {
			l.log.WithError(err).Warn("writeback failed")
		}
	}()
	return true
}

// Wait blocks until every scheduled writeback has finished
func (l *Learner) Wait() {
	l.pending.Wait()
}

// Close stops accepting writebacks and waits for pending ones
func (l *Learner) Close() {
	l.mu.Lock()
	l.closed = true
	l.mu.Unlock()
	l.pending.Wait()
}

func (l *Learner) failed(err error) error {
	l.metrics.RecordWriteback(metrics.WritebackFailed)
	return err
}
