package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ppiankov/verifact/internal/worker"
)

var (
	concurrency  int
	outputPath   string
	batchTimeout time.Duration
)

// batchCmd represents the batch command
var batchCmd = &cobra.Command{
	Use:   "batch <file>",
	Short: "Verify many claims from a file in parallel",
	Long: `Batch verifies claims concurrently:
- Read claims from input file (one per line, # for comments)
- Lines starting with http:// or https:// are verified as pages
- Verify in parallel with configurable worker count
- Write all results as one JSON document

Example:
  verifact batch claims.txt
  verifact batch claims.txt --concurrency 10 --output results.json
  verifact batch claims.txt --lang hi --timeout 5m`,
	Args: cobra.ExactArgs(1),
	RunE: runBatch,
}

func init() {
	rootCmd.AddCommand(batchCmd)

	batchCmd.Flags().IntVar(&concurrency, "concurrency", runtime.NumCPU(), "number of concurrent workers")
	batchCmd.Flags().StringVarP(&outputPath, "output", "o", "", "write results to this file instead of stdout")
	batchCmd.Flags().DurationVar(&batchTimeout, "timeout", 10*time.Minute, "total timeout for batch processing")
	batchCmd.Flags().StringVar(&language, "lang", "en", "claim language (BCP 47)")

	_ = viper.BindPFlag("concurrency.workers", batchCmd.Flags().Lookup("concurrency"))
}

type batchOutput struct {
	Summary worker.Summary        `json:"summary"`
	Results []*worker.ClaimResult `json:"results"`
	Errors  map[int]string        `json:"errors,omitempty"`
}

func runBatch(cmd *cobra.Command, args []string) (err error) {
	file := args[0]

	cfg, err := loadConfig(viper.GetViper())
	if err != nil {
		return err
	}

	// Ctrl-C stops the batch; unfinished claims are reported as not verified
	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(sigCtx, batchTimeout)
	defer cancel()

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  Verifact Batch Verification\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Input file:   %s\n", file)
	fmt.Fprintf(os.Stderr, "  Workers:      %d\n", cfg.Concurrency.Workers)
	fmt.Fprintf(os.Stderr, "  Store:        %s\n", cfg.Store.Driver)
	fmt.Fprintf(os.Stderr, "  AI provider:  %s\n", displayProvider(cfg.AI.Provider))
	fmt.Fprintf(os.Stderr, "  Timeout:      %v\n", batchTimeout)
	fmt.Fprintf(os.Stderr, "\n")

	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("close: %w", closeErr)
		}
	}()

	verifier := worker.NewBatchVerifier(a.engine, cfg.Concurrency.Workers)

	fmt.Fprintf(os.Stderr, "⚙️  Verifying claims with %d workers...\n\n", cfg.Concurrency.Workers)
	start := time.Now()
	results, err := verifier.VerifyFile(ctx, file, language)
	if err != nil {
		return fmt.Errorf("process file: %w", err)
	}

	out := batchOutput{Summary: worker.Summarize(results), Results: results}
	for _, r := range results {
		if r.Error != nil {
			if out.Errors == nil {
				out.Errors = make(map[int]string)
			}
			out.Errors[r.Index] = r.Error.Error()
			fmt.Fprintf(os.Stderr, "✗ %s: %v\n", truncateForDisplay(r.Claim), r.Error)
			continue
		}
		fmt.Fprintf(os.Stderr, "✓ %-10s %s\n", r.Result.Verdict, truncateForDisplay(r.Claim))
	}

	w := cmd.OutOrStdout()
	if outputPath != "" {
		f, err := os.Create(outputPath)
		if err != nil {
			return fmt.Errorf("create output: %w", err)
		}
		defer func() { _ = f.Close() }()
		w = f
	}
	if err := writeJSON(w, out); err != nil {
		return err
	}

	// Writebacks are part of the batch
	a.engine.Wait()

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  Batch Complete\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Total:       %d claims\n", out.Summary.Total)
	fmt.Fprintf(os.Stderr, "  From store:  %d\n", out.Summary.FromStore)
	fmt.Fprintf(os.Stderr, "  From AI:     %d\n", out.Summary.FromAI)
	fmt.Fprintf(os.Stderr, "  Failures:    %d\n", out.Summary.Failed)
	fmt.Fprintf(os.Stderr, "  Duration:    %v\n", time.Since(start).Round(time.Millisecond))
	if outputPath != "" {
		fmt.Fprintf(os.Stderr, "  Output:      %s\n", outputPath)
	}
	fmt.Fprintf(os.Stderr, "\n")
	if verbose {
		printMetrics(a)
	}

	return nil
}

func displayProvider(p string) string {
	if p == "" {
		return "disabled"
	}
	return p
}

// truncateForDisplay shortens a claim for one status line
func truncateForDisplay(s string) string {
	r := []rune(s)
	if len(r) > 70 {
		return string(r[:67]) + "..."
	}
	return s
}
