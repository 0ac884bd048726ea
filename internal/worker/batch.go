package worker

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/ppiankov/verifact/internal/engine"
	"github.com/ppiankov/verifact/internal/model"
)

// Verifier is the part of the engine a batch needs
type Verifier interface {
	VerifyText(ctx context.Context, req engine.TextRequest) (*model.VerificationResult, error)
	VerifyURL(ctx context.Context, req engine.URLRequest) (*model.VerificationResult, error)
}

// ClaimJob verifies one line of a batch. Lines that are http(s) URLs are
// verified through the page fetcher.
type ClaimJob struct {
	Index    int
	Claim    string
	Language string
	Verifier Verifier
}

// Execute executes the verification
func (j *ClaimJob) Execute(ctx context.Context) Result {
	var (
		res *model.VerificationResult
		err error
	)
	if isURL(j.Claim) {
		res, err = j.Verifier.VerifyURL(ctx, engine.URLRequest{URL: j.Claim, Language: j.Language})
	} else {
		res, err = j.Verifier.VerifyText(ctx, engine.TextRequest{Claim: j.Claim, Language: j.Language})
	}
	return &ClaimResult{Index: j.Index, Claim: j.Claim, Result: res, Error: err}
}

func isURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

// ClaimResult is the outcome of one ClaimJob
type ClaimResult struct {
	Index  int                       `json:"index"`
	Claim  string                    `json:"claim"`
	Result *model.VerificationResult `json:"result,omitempty"`
	Error  error                     `json:"-"`
}

// GetError returns the error from the verification
func (r *ClaimResult) GetError() error {
	return r.Error
}

// BatchVerifier verifies many claims concurrently
type BatchVerifier struct {
	verifier    Verifier
	concurrency int
}

// NewBatchVerifier creates a new batch verifier
func NewBatchVerifier(verifier Verifier, concurrency int) *BatchVerifier {
	return &BatchVerifier{
		verifier:    verifier,
		concurrency: concurrency,
	}
}

// VerifyClaims verifies claims concurrently and returns results in input order
func (b *BatchVerifier) VerifyClaims(ctx context.Context, claims []string, language string) []*ClaimResult {
	if len(claims) == 0 {
		return []*ClaimResult{}
	}

	pool := NewPool(ctx, b.concurrency)
	pool.Start()

	go func() {
		defer pool.Close()
		for i, claim := range claims {
			if !pool.Submit(&ClaimJob{Index: i, Claim: claim, Language: language, Verifier: b.verifier}) {
				return
			}
		}
	}()

	out := make([]*ClaimResult, 0, len(claims))
	done := make([]bool, len(claims))
	for result := range pool.Results() {
		r := result.(*ClaimResult)
		done[r.Index] = true
		out = append(out, r)
	}

	// Claims dropped by cancellation still get a result
	for i, claim := range claims {
		if done[i] {
			continue
		}
		err := ctx.Err()
		if err == nil {
			err = context.Canceled
		}
		out = append(out, &ClaimResult{Index: i, Claim: claim, Error: fmt.Errorf("not verified: %w", err)})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out
}

// VerifyFile reads claims from a file and verifies them concurrently
func (b *BatchVerifier) VerifyFile(ctx context.Context, filePath, language string) ([]*ClaimResult, error) {
	claims, err := ReadClaimsFromFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("read claims: %w", err)
	}

	return b.VerifyClaims(ctx, claims, language), nil
}

// Summary counts batch outcomes
type Summary struct {
	Total     int                   `json:"total"`
	Failed    int                   `json:"failed"`
	Verdicts  map[model.Verdict]int `json:"verdicts"`
	FromStore int                   `json:"from_store"`
	FromAI    int                   `json:"from_ai"`
}

// Summarize counts verdicts and sources across results
func Summarize(results []*ClaimResult) Summary {
	s := Summary{Total: len(results), Verdicts: make(map[model.Verdict]int)}
	for _, r := range results {
		if r.Error != nil || r.Result == nil {
			s.Failed++
			continue
		}
		s.Verdicts[r.Result.Verdict]++
		switch r.Result.MatchedSource {
		case model.MatchedStore:
			s.FromStore++
		case model.MatchedAI:
			s.FromAI++
		}
	}
	return s
}

// ReadClaimsFromFile reads claims from a file, one per line. Blank lines
// and # comments are skipped and repeated claims kept once.
func ReadClaimsFromFile(filePath string) ([]string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	var claims []string
	seen := make(map[string]bool)

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if !seen[line] {
			seen[line] = true
			claims = append(claims, line)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan file: %w", err)
	}

	return claims, nil
}
