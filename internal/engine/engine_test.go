package engine

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/ppiankov/verifact/internal/ai"
	"github.com/ppiankov/verifact/internal/errs"
	"github.com/ppiankov/verifact/internal/fetch"
	"github.com/ppiankov/verifact/internal/imagehash"
	"github.com/ppiankov/verifact/internal/logging"
	"github.com/ppiankov/verifact/internal/metrics"
	"github.com/ppiankov/verifact/internal/model"
	"github.com/ppiankov/verifact/internal/store"
)

func TestMain(m *testing.M) {
	logging.SetOutput(io.Discard)
	goleak.VerifyTestMain(m)
}

const (
	storedClaim = "vaccine x causes disease y"
	queryClaim  = "does vaccine x cause disease y"
	novelClaim  = "drinking bleach cures the flu"
)

// stubEmbedder returns fixed vectors for known normalized texts
type stubEmbedder struct {
	vectors map[string][]float32
	calls   atomic.Int32
}

func newStubEmbedder() *stubEmbedder {
	return &stubEmbedder{vectors: map[string][]float32{
		storedClaim: {1, 0, 0},
		queryClaim:  {0.9, 0.43588989, 0}, // cosine 0.9 to storedClaim
		novelClaim:  {0, 0, 1},
	}}
}

func (s *stubEmbedder) Name() string   { return "stub" }
func (s *stubEmbedder) Dimension() int { return 3 }

func (s *stubEmbedder) Embed(_ context.Context, text, _ string) ([]float32, error) {
	s.calls.Add(1)
	v, ok := s.vectors[text]
	if !ok {
		return nil, errs.New(errs.KindEmbeddingFailure, "embed", "no vector for %q", text)
	}
	return append([]float32(nil), v...), nil
}

// stubVerifier answers every claim with the same assessment
type stubVerifier struct {
	assessment ai.Assessment
	err        error
	onCall     func(ctx context.Context)
	calls      atomic.Int32
}

func (s *stubVerifier) Name() string { return "stub" }

func (s *stubVerifier) Verify(ctx context.Context, _ ai.Request) (*ai.Assessment, error) {
	s.calls.Add(1)
	if s.onCall != nil {
		s.onCall(ctx)
	}
	if s.err != nil {
		return nil, s.err
	}
	a := s.assessment
	return &a, nil
}

func answer(v model.Verdict, confidence float64) *stubVerifier {
	return &stubVerifier{assessment: ai.Assessment{Verdict: v, Confidence: confidence, Explanation: "model says so"}}
}

func testConfig() model.EngineConfig {
	return model.DefaultConfig().Engine
}

func newEngine(t *testing.T, cfg model.EngineConfig, s store.Store, v ai.Verifier) *Engine {
	t.Helper()
	if s == nil {
		s = store.NewMemoryStore()
	}
	deps := Deps{Store: s, Embedder: newStubEmbedder(), Metrics: metrics.New()}
	if v != nil {
		deps.Verifier = v
	}
	e, err := New(cfg, deps)
	require.NoError(t, err)
	t.Cleanup(e.Close)
	return e
}

func seed(t *testing.T, s store.Store, claim string, vec []float32, verdict model.Verdict) int64 {
	t.Helper()
	id, err := s.InsertFactCheck(context.Background(), &model.FactCheckEntry{
		Claim:          claim,
		Verdict:        verdict,
		Language:       "en",
		Source:         "snopes",
		Embedding:      vec,
		EmbeddingModel: "stub",
	})
	require.NoError(t, err)
	return id
}

func count(t *testing.T, s store.Store) int64 {
	t.Helper()
	n, err := s.CountFactChecks(context.Background())
	require.NoError(t, err)
	return n
}

func TestNew_RequiresCollaborators(t *testing.T) {
	_, err := New(testConfig(), Deps{Embedder: newStubEmbedder()})
	assert.ErrorIs(t, err, errs.ErrConfiguration)

	_, err = New(testConfig(), Deps{Store: store.NewMemoryStore()})
	assert.ErrorIs(t, err, errs.ErrConfiguration)
}

func TestVerifyText_ExactMatchHitsAtAnyThreshold(t *testing.T) {
	for _, threshold := range []float64{0, 0.75, 0.99, 1} {
		s := store.NewMemoryStore()
		id := seed(t, s, storedClaim, []float32{1, 0, 0}, model.VerdictFalse)

		cfg := testConfig()
		cfg.MatchThreshold = threshold
		e := newEngine(t, cfg, s, nil)

		res, err := e.VerifyText(context.Background(), TextRequest{Claim: "Vaccine X causes disease Y", Language: "en"})
		require.NoError(t, err)
		assert.Equal(t, model.StateStoreHit, res.Decision, "threshold %v", threshold)
		assert.Equal(t, 1.0, res.Confidence)
		require.NotNil(t, res.MatchedEntryID)
		assert.Equal(t, id, *res.MatchedEntryID)
	}
}

func TestVerifyText_MatchThresholdIsInclusive(t *testing.T) {
	tests := []struct {
		name      string
		threshold float64
		want      model.State
	}{
		{"at threshold", 0.6, model.StateStoreHit},
		{"just above score", 0.6 + 1e-9, model.StateAILowConfidence},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := store.NewMemoryStore()
			seed(t, s, storedClaim, []float32{3, 4, 0}, model.VerdictTrue) // cosine 3/5 to {1,0,0}

			cfg := testConfig()
			cfg.MatchThreshold = tt.threshold
			e := newEngine(t, cfg, s, nil)

			res, err := e.VerifyText(context.Background(), TextRequest{Claim: storedClaim})
			require.NoError(t, err)
			assert.Equal(t, tt.want, res.Decision)
		})
	}
}

func TestVerifyText_SimilarClaimHitsStore(t *testing.T) {
	s := store.NewMemoryStore()
	seed(t, s, storedClaim, []float32{1, 0, 0}, model.VerdictFalse)
	v := answer(model.VerdictTrue, 0.99)
	e := newEngine(t, testConfig(), s, v)

	res, err := e.VerifyText(context.Background(), TextRequest{Claim: "Does vaccine X cause disease Y", Language: "en"})
	require.NoError(t, err)

	assert.Equal(t, model.VerdictFalse, res.Verdict)
	assert.Equal(t, model.MatchedStore, res.MatchedSource)
	assert.InDelta(t, 0.9, res.Confidence, 1e-6)
	assert.Equal(t, []model.State{
		model.StateNormalize, model.StateStoreLookup, model.StateStoreHit, model.StateRespond,
	}, res.Trail)
	assert.Zero(t, v.calls.Load(), "AI must not be called on a store hit")
	assert.NotEmpty(t, res.RequestID)
}

func TestVerifyText_ConfidentAIAnswerIsLearned(t *testing.T) {
	s := store.NewMemoryStore()
	e := newEngine(t, testConfig(), s, answer(model.VerdictMisleading, 0.95))

	res, err := e.VerifyText(context.Background(), TextRequest{Claim: "Drinking bleach cures the flu", Language: "en"})
	require.NoError(t, err)

	assert.Equal(t, model.VerdictMisleading, res.Verdict)
	assert.Equal(t, model.MatchedAI, res.MatchedSource)
	assert.Equal(t, 0.95, res.Confidence)
	assert.Equal(t, model.StateLearn, res.Learn)

	e.Wait()
	entries, err := s.QueryFactChecks(context.Background(), store.Filter{})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, novelClaim, entries[0].Claim)
	assert.Equal(t, model.SourceAI, entries[0].Source)
	assert.Equal(t, model.VerdictMisleading, entries[0].Verdict)
}

func TestVerifyText_LowConfidenceIsUnverified(t *testing.T) {
	s := store.NewMemoryStore()
	e := newEngine(t, testConfig(), s, answer(model.VerdictFalse, 0.5))

	res, err := e.VerifyText(context.Background(), TextRequest{Claim: novelClaim})
	require.NoError(t, err)

	assert.Equal(t, model.VerdictUnverified, res.Verdict)
	assert.Equal(t, model.MatchedAIRejected, res.MatchedSource)
	assert.Equal(t, model.StateSkipLearn, res.Learn)

	e.Wait()
	assert.Zero(t, count(t, s))
}

func TestVerifyText_AIThresholdBoundaries(t *testing.T) {
	tests := []struct {
		name        string
		confidence  float64
		wantVerdict model.Verdict
		wantLearn   model.State
		wantEntries int64
	}{
		{"below return", 0.6 - 1e-9, model.VerdictUnverified, model.StateSkipLearn, 0},
		{"at return", 0.6, model.VerdictFalse, model.StateSkipLearn, 0},
		{"below learn", 0.9 - 1e-9, model.VerdictFalse, model.StateSkipLearn, 0},
		{"at learn", 0.9, model.VerdictFalse, model.StateLearn, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := store.NewMemoryStore()
			e := newEngine(t, testConfig(), s, answer(model.VerdictFalse, tt.confidence))

			res, err := e.VerifyText(context.Background(), TextRequest{Claim: novelClaim})
			require.NoError(t, err)
			assert.Equal(t, tt.wantVerdict, res.Verdict)
			assert.Equal(t, tt.wantLearn, res.Learn)

			e.Wait()
			assert.Equal(t, tt.wantEntries, count(t, s))
		})
	}
}

func TestVerifyText_UnverifiedAnswerIsNotLearned(t *testing.T) {
	s := store.NewMemoryStore()
	e := newEngine(t, testConfig(), s, answer(model.VerdictUnverified, 0.99))

	res, err := e.VerifyText(context.Background(), TextRequest{Claim: novelClaim})
	require.NoError(t, err)
	assert.Equal(t, model.VerdictUnverified, res.Verdict)
	assert.Equal(t, model.MatchedAI, res.MatchedSource)
	assert.Equal(t, model.StateSkipLearn, res.Learn)

	e.Wait()
	assert.Zero(t, count(t, s))
}

func TestVerifyText_AIFailureDegradesToUnverified(t *testing.T) {
	tests := []struct {
		name     string
		verifier ai.Verifier
	}{
		{"transport error", &stubVerifier{err: errors.New("connection refused")}},
		{"timeout", &stubVerifier{err: context.DeadlineExceeded}},
		{"no provider", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEngine(t, testConfig(), nil, tt.verifier)

			res, err := e.VerifyText(context.Background(), TextRequest{Claim: novelClaim})
			require.NoError(t, err)
			assert.Equal(t, model.VerdictUnverified, res.Verdict)
			assert.Equal(t, 0.0, res.Confidence)
			assert.Equal(t, model.MatchedAIRejected, res.MatchedSource)
			assert.Equal(t, model.StateAILowConfidence, res.Decision)
		})
	}
}

// blockingVerifier answers only when its context ends
type blockingVerifier struct{}

func (blockingVerifier) Name() string { return "blocking" }

func (blockingVerifier) Verify(ctx context.Context, _ ai.Request) (*ai.Assessment, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestVerifyText_AIStageIsBounded(t *testing.T) {
	cfg := testConfig()
	cfg.AITimeout = 50 * time.Millisecond
	e := newEngine(t, cfg, nil, blockingVerifier{})

	done := make(chan *model.VerificationResult, 1)
	go func() {
		res, err := e.VerifyText(context.Background(), TextRequest{Claim: novelClaim})
		assert.NoError(t, err)
		done <- res
	}()

	select {
	case res := <-done:
		require.NotNil(t, res)
		assert.Equal(t, model.VerdictUnverified, res.Verdict)
		assert.Equal(t, 0.0, res.Confidence)
		assert.Equal(t, model.StateAILowConfidence, res.Decision)
		assert.Equal(t, model.StateSkipLearn, res.Learn)
	case <-time.After(5 * time.Second):
		t.Fatal("AI stage ignored the engine timeout")
	}
}

func TestNew_DefaultsAITimeout(t *testing.T) {
	cfg := testConfig()
	cfg.AITimeout = 0
	e := newEngine(t, cfg, nil, nil)
	assert.Equal(t, model.DefaultAITimeout, e.cfg.AITimeout)
}

func TestNew_RejectsForeignEmbeddingSpace(t *testing.T) {
	tests := []struct {
		name  string
		model string
		vec   []float32
	}{
		{"other provider, same dimension", "ollama:all-minilm", []float32{1, 0, 0}},
		{"same provider name, other dimension", "stub", []float32{1, 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := store.NewMemoryStore()
			_, err := s.InsertFactCheck(context.Background(), &model.FactCheckEntry{
				Claim: storedClaim, Verdict: model.VerdictFalse, Language: "en",
				Embedding: tt.vec, EmbeddingModel: tt.model,
			})
			require.NoError(t, err)

			_, err = New(testConfig(), Deps{Store: s, Embedder: newStubEmbedder()})
			assert.ErrorIs(t, err, errs.ErrConfiguration)
		})
	}
}

func TestLearner_StampsProviderOnLearnedEntries(t *testing.T) {
	s := store.NewMemoryStore()
	e := newEngine(t, testConfig(), s, answer(model.VerdictFalse, 0.97))

	_, err := e.VerifyText(context.Background(), TextRequest{Claim: novelClaim})
	require.NoError(t, err)
	e.Wait()

	space, err := s.EmbeddingSpace(context.Background())
	require.NoError(t, err)
	assert.Equal(t, store.EmbeddingSpace{Model: "stub", Dimension: 3}, space)

	// A second engine on the same store and provider starts fine
	_, err = New(testConfig(), Deps{Store: s, Embedder: newStubEmbedder()})
	assert.NoError(t, err)
}

func TestVerifyText_AIFailureIgnoresZeroReturnThreshold(t *testing.T) {
	cfg := testConfig()
	cfg.ReturnThreshold = 0
	e := newEngine(t, cfg, nil, &stubVerifier{err: errors.New("boom")})

	res, err := e.VerifyText(context.Background(), TextRequest{Claim: novelClaim})
	require.NoError(t, err)
	assert.Equal(t, model.VerdictUnverified, res.Verdict)
	assert.Equal(t, model.StateAILowConfidence, res.Decision)
}

func TestVerifyText_EmbeddingFailureIsStoreMiss(t *testing.T) {
	s := store.NewMemoryStore()
	seed(t, s, storedClaim, []float32{1, 0, 0}, model.VerdictFalse)
	v := answer(model.VerdictTrue, 0.8)
	e := newEngine(t, testConfig(), s, v)

	res, err := e.VerifyText(context.Background(), TextRequest{Claim: "a claim with no embedding"})
	require.NoError(t, err)

	assert.Contains(t, res.Trail, model.StateStoreMiss)
	assert.Equal(t, int32(1), v.calls.Load())
	assert.Equal(t, model.VerdictTrue, res.Verdict)
}

func TestVerifyText_EmptyClaimIsInputError(t *testing.T) {
	e := newEngine(t, testConfig(), nil, nil)

	_, err := e.VerifyText(context.Background(), TextRequest{Claim: "   "})
	assert.ErrorIs(t, err, errs.ErrInput)
}

func TestVerifyText_CancelledCallerSkipsWriteback(t *testing.T) {
	s := store.NewMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	v := answer(model.VerdictFalse, 0.99)
	v.onCall = func(context.Context) { cancel() }
	e := newEngine(t, testConfig(), s, v)

	res, err := e.VerifyText(ctx, TextRequest{Claim: novelClaim})
	require.NoError(t, err)
	assert.Equal(t, model.StateSkipLearn, res.Learn)

	e.Wait()
	assert.Zero(t, count(t, s))
}

func TestVerifyText_WritebackOutlivesCallerDeadline(t *testing.T) {
	s := store.NewMemoryStore()
	e := newEngine(t, testConfig(), s, answer(model.VerdictFalse, 0.99))

	ctx, cancel := context.WithCancel(context.Background())
	res, err := e.VerifyText(ctx, TextRequest{Claim: novelClaim})
	cancel()
	require.NoError(t, err)
	assert.Equal(t, model.StateLearn, res.Learn)

	e.Wait()
	assert.Equal(t, int64(1), count(t, s))
}

// failingStore rejects every fact-check insert
type failingStore struct {
	*store.MemoryStore
}

func (failingStore) InsertFactCheck(context.Context, *model.FactCheckEntry) (int64, error) {
	return 0, errs.New(errs.KindStorage, "insert", "disk full")
}

func TestVerifyText_WritebackFailureKeepsVerdict(t *testing.T) {
	e := newEngine(t, testConfig(), failingStore{store.NewMemoryStore()}, answer(model.VerdictMisleading, 0.95))

	res, err := e.VerifyText(context.Background(), TextRequest{Claim: novelClaim})
	require.NoError(t, err)
	assert.Equal(t, model.VerdictMisleading, res.Verdict)
	assert.Equal(t, model.MatchedAI, res.MatchedSource)

	e.Wait()
	snap, err := e.Metrics().Snapshot()
	require.NoError(t, err)
	assert.Equal(t, 1.0, snap["verifact_writebacks_total{result=failed}"])
}

func TestVerifyText_ConcurrentLearnsInsertOnce(t *testing.T) {
	s := store.NewMemoryStore()
	e := newEngine(t, testConfig(), s, answer(model.VerdictFalse, 0.97))

	const n = 25
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := e.VerifyText(context.Background(), TextRequest{Claim: novelClaim})
			if assert.NoError(t, err) {
				assert.Equal(t, model.VerdictFalse, res.Verdict)
			}
		}()
	}
	wg.Wait()
	e.Wait()

	assert.Equal(t, int64(1), count(t, s))
}

func TestVerifyText_LookupUsesClaimAndFallbackLanguage(t *testing.T) {
	s := store.NewMemoryStore()
	_, err := s.InsertFactCheck(context.Background(), &model.FactCheckEntry{
		Claim: storedClaim, Verdict: model.VerdictFalse, Language: "fr", Embedding: []float32{1, 0, 0}, EmbeddingModel: "stub",
	})
	require.NoError(t, err)
	e := newEngine(t, testConfig(), s, nil)

	res, err := e.VerifyText(context.Background(), TextRequest{Claim: storedClaim, Language: "hi"})
	require.NoError(t, err)
	assert.Equal(t, model.StateAILowConfidence, res.Decision, "a French entry must not serve a Hindi claim")

	seed(t, s, storedClaim, []float32{1, 0, 0}, model.VerdictFalse)
	res, err = e.VerifyText(context.Background(), TextRequest{Claim: storedClaim, Language: "hi"})
	require.NoError(t, err)
	assert.Equal(t, model.StateStoreHit, res.Decision, "English entries serve every language")
	assert.Equal(t, "hi", res.Language)
}

type stubFetcher struct {
	html string
	err  error
}

func (f stubFetcher) FetchWithRetry(context.Context, string) (*fetch.Result, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &fetch.Result{HTML: f.html, StatusCode: 200}, nil
}

func TestVerifyURL(t *testing.T) {
	s := store.NewMemoryStore()
	seed(t, s, storedClaim, []float32{1, 0, 0}, model.VerdictFalse)

	e, err := New(testConfig(), Deps{
		Store:    s,
		Embedder: newStubEmbedder(),
		Fetcher:  stubFetcher{html: "<html><body><p>Vaccine X causes disease Y</p><script>x()</script></body></html>"},
	})
	require.NoError(t, err)
	defer e.Close()

	res, err := e.VerifyURL(context.Background(), URLRequest{URL: "https://example.com/post"})
	require.NoError(t, err)
	assert.Equal(t, model.StateStoreHit, res.Decision)
	assert.Equal(t, model.VerdictFalse, res.Verdict)
}

func TestVerifyURL_FetchFailureIsInputError(t *testing.T) {
	e, err := New(testConfig(), Deps{
		Store:    store.NewMemoryStore(),
		Embedder: newStubEmbedder(),
		Fetcher:  stubFetcher{err: &fetch.StatusError{Code: 404, Status: "404 Not Found"}},
	})
	require.NoError(t, err)
	defer e.Close()

	_, err = e.VerifyURL(context.Background(), URLRequest{URL: "https://example.com/missing"})
	assert.ErrorIs(t, err, errs.ErrInput)

	e2 := newEngine(t, testConfig(), nil, nil)
	_, err = e2.VerifyURL(context.Background(), URLRequest{URL: "https://example.com"})
	assert.ErrorIs(t, err, errs.ErrConfiguration)
}

func testImage() image.Image {
	img := image.NewRGBA(image.Rect(0, 0, 64, 64))
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			v := uint8((x*4 + y*2) % 256)
			img.Set(x, y, color.RGBA{R: v, G: 255 - v, B: uint8((x * y) % 256), A: 255})
		}
	}
	return img
}

func encodePNG(t *testing.T, img image.Image) io.Reader {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return &buf
}

func seedImage(t *testing.T, s store.Store, fp imagehash.Triplet) int64 {
	t.Helper()
	entry := &model.ImageFingerprintEntry{MisleadingContext: "photo is from 2015", Source: "afp"}
	fp.Apply(entry)
	id, err := s.InsertImage(context.Background(), entry)
	require.NoError(t, err)
	return id
}

func TestVerifyImage_IdenticalPixelsHit(t *testing.T) {
	s := store.NewMemoryStore()
	id := seedImage(t, s, imagehash.Compute(testImage()))

	cfg := testConfig()
	cfg.ImageMatchDistance = 1
	e := newEngine(t, cfg, s, nil)

	res, err := e.VerifyImage(context.Background(), ImageRequest{Image: encodePNG(t, testImage())})
	require.NoError(t, err)

	assert.Equal(t, model.StateStoreHit, res.Decision)
	assert.Equal(t, model.VerdictMisleading, res.Verdict)
	assert.Equal(t, 1.0, res.Confidence)
	assert.Equal(t, "photo is from 2015", res.Explanation)
	require.NotNil(t, res.MatchedEntryID)
	assert.Equal(t, id, *res.MatchedEntryID)
}

func invert(fp imagehash.Triplet) imagehash.Triplet {
	return imagehash.Triplet{P: ^fp.P, D: ^fp.D, A: ^fp.A}
}

func TestVerifyImage_EmptyOCRIsUnverified(t *testing.T) {
	s := store.NewMemoryStore()
	seedImage(t, s, invert(imagehash.Compute(testImage())))
	v := answer(model.VerdictTrue, 0.99)
	e := newEngine(t, testConfig(), s, v)

	res, err := e.VerifyImage(context.Background(), ImageRequest{Image: encodePNG(t, testImage()), OCRText: "  "})
	require.NoError(t, err)

	assert.Equal(t, model.VerdictUnverified, res.Verdict)
	assert.Equal(t, model.StateAILowConfidence, res.Decision)
	assert.Equal(t, model.MatchedAIRejected, res.MatchedSource)
	assert.Zero(t, v.calls.Load())
}

func TestVerifyImage_MissFallsBackToOCRText(t *testing.T) {
	s := store.NewMemoryStore()
	seed(t, s, storedClaim, []float32{1, 0, 0}, model.VerdictFalse)
	e := newEngine(t, testConfig(), s, nil)

	res, err := e.VerifyImage(context.Background(), ImageRequest{
		Image:   encodePNG(t, testImage()),
		OCRText: "Vaccine X causes disease Y",
	})
	require.NoError(t, err)

	assert.Equal(t, model.StateStoreHit, res.Decision)
	assert.Equal(t, model.VerdictFalse, res.Verdict)
	assert.Equal(t, model.StateStoreMiss, res.Trail[2], "image lookup misses first")
}

func TestVerifyImage_BadImageIsInputError(t *testing.T) {
	e := newEngine(t, testConfig(), nil, nil)

	_, err := e.VerifyImage(context.Background(), ImageRequest{Image: bytes.NewReader([]byte("not an image"))})
	assert.ErrorIs(t, err, errs.ErrInput)

	_, err = e.VerifyImage(context.Background(), ImageRequest{})
	assert.ErrorIs(t, err, errs.ErrInput)
}

func TestVerifyImage_ZeroSizeImageIsInputError(t *testing.T) {
	e := newEngine(t, testConfig(), nil, nil)

	gif := []byte{
		'G', 'I', 'F', '8', '9', 'a',
		0, 0, 0, 0, 0x80, 0, 0,
		0, 0, 0, 0xff, 0xff, 0xff,
		0x2c, 0, 0, 0, 0, 0, 0, 0, 0, 0,
		2, 1, 0x2c, 0,
		0x3b,
	}
	_, err := e.VerifyImage(context.Background(), ImageRequest{Image: bytes.NewReader(gif), OCRText: storedClaim})
	assert.ErrorIs(t, err, errs.ErrInput)
	assert.ErrorIs(t, err, imagehash.ErrEmptyImage)
}

func TestEngine_ScheduleAfterClose(t *testing.T) {
	s := store.NewMemoryStore()
	e, err := New(testConfig(), Deps{Store: s, Embedder: newStubEmbedder(), Verifier: answer(model.VerdictFalse, 0.99)})
	require.NoError(t, err)
	e.Close()

	res, err := e.VerifyText(context.Background(), TextRequest{Claim: novelClaim})
	require.NoError(t, err)
	assert.Equal(t, model.VerdictFalse, res.Verdict)
	assert.Equal(t, model.StateSkipLearn, res.Learn)
	assert.Zero(t, count(t, s))
}

func TestEngine_WaitReturnsWithNothingPending(t *testing.T) {
	e := newEngine(t, testConfig(), nil, nil)

	done := make(chan struct{})
	go func() {
		e.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Wait blocked with no pending writebacks")
	}
}
