package embed

import (
	"context"
	"errors"
	"math"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"

	"github.com/ppiankov/verifact/internal/cache"
	"github.com/ppiankov/verifact/internal/errs"
	"github.com/ppiankov/verifact/internal/model"
)

func norm(v []float32) float64 {
	var s float64
	for _, x := range v {
		s += float64(x) * float64(x)
	}
	return math.Sqrt(s)
}

func TestHashingProvider_Deterministic(t *testing.T) {
	p := NewHashingProvider(0, 0)
	ctx := context.Background()

	a, err := p.Embed(ctx, "vaccine x causes disease y", "en")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	b, err := p.Embed(ctx, "vaccine x causes disease y", "en")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if len(a) != DefaultDimension {
		t.Errorf("Expected %d dimensions, got %d", DefaultDimension, len(a))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("Expected identical vectors, differ at %d", i)
		}
	}
	if n := norm(a); math.Abs(n-1) > 1e-5 {
		t.Errorf("Expected unit vector, got norm %f", n)
	}
}

func TestHashingProvider_RejectsBadInput(t *testing.T) {
	p := NewHashingProvider(64, 5)
	ctx := context.Background()

	if _, err := p.Embed(ctx, "   ", "en"); !errors.Is(err, errs.ErrEmbeddingFailure) {
		t.Errorf("Expected embedding failure for empty input, got %v", err)
	}
	if _, err := p.Embed(ctx, "one two three four five six", "en"); !errors.Is(err, errs.ErrEmbeddingFailure) {
		t.Errorf("Expected embedding failure for long input, got %v", err)
	}
	if _, err := p.Embed(ctx, "one two three four five", "en"); err != nil {
		t.Errorf("Expected input at the limit to embed, got %v", err)
	}
}

func TestOllamaProvider_Embed(t *testing.T) {
	p, err := NewOllamaProvider(OllamaConfig{BaseURL: "http://ollama.test", Model: "nomic-embed-text", Dimension: 3})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	httpmock.ActivateNonDefault(p.httpClient)
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder(http.MethodPost, "http://ollama.test/api/embeddings",
		func(req *http.Request) (*http.Response, error) {
			return httpmock.NewJsonResponse(http.StatusOK, map[string]any{
				"embedding": []float64{3, 0, 4},
			})
		})

	vec, err := p.Embed(context.Background(), "claim text", "en")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(vec) != 3 {
		t.Fatalf("Expected 3 dimensions, got %d", len(vec))
	}
	if math.Abs(float64(vec[0])-0.6) > 1e-6 || math.Abs(float64(vec[2])-0.8) > 1e-6 {
		t.Errorf("Expected normalized [0.6 0 0.8], got %v", vec)
	}
	if httpmock.GetTotalCallCount() != 1 {
		t.Errorf("Expected 1 call, got %d", httpmock.GetTotalCallCount())
	}
}

func TestOllamaProvider_DimensionMismatch(t *testing.T) {
	p, _ := NewOllamaProvider(OllamaConfig{BaseURL: "http://ollama.test", Model: "m", Dimension: 4})

	httpmock.ActivateNonDefault(p.httpClient)
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder(http.MethodPost, "http://ollama.test/api/embeddings",
		httpmock.NewStringResponder(http.StatusOK, `{"embedding":[1,2]}`))

	_, err := p.Embed(context.Background(), "claim", "en")
	if !errors.Is(err, errs.ErrEmbeddingFailure) {
		t.Errorf("Expected embedding failure, got %v", err)
	}
}

func TestOllamaProvider_APIError(t *testing.T) {
	p, _ := NewOllamaProvider(OllamaConfig{BaseURL: "http://ollama.test", Model: "m"})

	httpmock.ActivateNonDefault(p.httpClient)
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder(http.MethodPost, "http://ollama.test/api/embeddings",
		httpmock.NewStringResponder(http.StatusNotFound, `{"error":"model not found"}`))

	_, err := p.Embed(context.Background(), "claim", "en")
	if err == nil || !strings.Contains(err.Error(), "model not found") {
		t.Errorf("Expected model not found error, got %v", err)
	}
}

type countingProvider struct {
	calls atomic.Int32
	delay time.Duration
}

func (c *countingProvider) Name() string   { return "counting" }
func (c *countingProvider) Dimension() int { return 2 }
func (c *countingProvider) Embed(ctx context.Context, text, _ string) ([]float32, error) {
	c.calls.Add(1)
	time.Sleep(c.delay)
	return []float32{float32(len(text)), 1}, nil
}

func TestCachedProvider_MemoizesAndCoalesces(t *testing.T) {
	inner := &countingProvider{delay: 20 * time.Millisecond}
	p := NewCachedProvider(inner, cache.NewMemoryCache(time.Minute, time.Minute))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := p.Embed(context.Background(), "same claim", "en"); err != nil {
				t.Errorf("Expected no error, got %v", err)
			}
		}()
	}
	wg.Wait()

	vec, err := p.Embed(context.Background(), "same claim", "en")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if vec[0] != float32(len("same claim")) {
		t.Errorf("Expected cached vector, got %v", vec)
	}
	if n := inner.calls.Load(); n != 1 {
		t.Errorf("Expected 1 inner call, got %d", n)
	}
}

func TestNewProvider(t *testing.T) {
	p, err := NewProvider(model.EmbeddingConfig{Provider: "hashing", Dimension: 16}, nil)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if p.Dimension() != 16 {
		t.Errorf("Expected dimension 16, got %d", p.Dimension())
	}

	if _, err := NewProvider(model.EmbeddingConfig{Provider: "openai"}, nil); err == nil {
		t.Error("Expected error for openai without API key")
	}
	if _, err := NewProvider(model.EmbeddingConfig{Provider: "word2vec"}, nil); err == nil {
		t.Error("Expected error for unknown provider")
	}
}
