package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ppiankov/verifact/internal/engine"
	"github.com/ppiankov/verifact/internal/model"
)

var (
	language      string
	verifyTimeout time.Duration
	ocrText       string
	ocrFile       string
)

// verifyCmd represents the verify command
var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Verify a claim, image or page",
	Long: `Verify checks one input and prints the verification result as JSON.

Example:
  verifact verify text "Vaccine X causes disease Y"
  verifact verify text "मोदी ने कहा..." --lang hi
  verifact verify image photo.jpg --ocr-text "Flooding in 2024"
  verifact verify url https://example.com/viral-post`,
}

var verifyTextCmd = &cobra.Command{
	Use:   "text <claim>",
	Short: "Verify a text claim",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runVerify(cmd.OutOrStdout(), func(ctx context.Context, e *engine.Engine) (*model.VerificationResult, error) {
			return e.VerifyText(ctx, engine.TextRequest{Claim: args[0], Language: language})
		})
	},
}

var verifyImageCmd = &cobra.Command{
	Use:   "image <file>",
	Short: "Verify an image against known fingerprints",
	Long: `Verify an image against known fingerprints. Text extracted by an OCR
tool can be passed with --ocr-text or --ocr-file; it is verified as a claim
when the image itself is unknown.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		text := ocrText
		if ocrFile != "" {
			data, err := os.ReadFile(ocrFile)
			if err != nil {
				return fmt.Errorf("read OCR text: %w", err)
			}
			text = string(data)
		}

		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("open image: %w", err)
		}
		defer func() { _ = f.Close() }()

		return runVerify(cmd.OutOrStdout(), func(ctx context.Context, e *engine.Engine) (*model.VerificationResult, error) {
			return e.VerifyImage(ctx, engine.ImageRequest{Image: f, OCRText: text, Language: language})
		})
	},
}

var verifyURLCmd = &cobra.Command{
	Use:   "url <url>",
	Short: "Verify the visible text of a web page",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runVerify(cmd.OutOrStdout(), func(ctx context.Context, e *engine.Engine) (*model.VerificationResult, error) {
			return e.VerifyURL(ctx, engine.URLRequest{URL: args[0], Language: language})
		})
	},
}

func init() {
	rootCmd.AddCommand(verifyCmd)
	verifyCmd.AddCommand(verifyTextCmd, verifyImageCmd, verifyURLCmd)

	verifyCmd.PersistentFlags().StringVar(&language, "lang", "en", "claim language (BCP 47)")
	verifyCmd.PersistentFlags().DurationVar(&verifyTimeout, "timeout", 30*time.Second, "overall verification timeout")
	verifyImageCmd.Flags().StringVar(&ocrText, "ocr-text", "", "text extracted from the image")
	verifyImageCmd.Flags().StringVar(&ocrFile, "ocr-file", "", "file holding text extracted from the image")
}

type verifyFunc func(ctx context.Context, e *engine.Engine) (*model.VerificationResult, error)

// runVerify wires the engine, runs fn and prints the result. Pending
// writebacks finish before the command returns.
func runVerify(out io.Writer, fn verifyFunc) (err error) {
	cfg, err := loadConfig(viper.GetViper())
	if err != nil {
		return err
	}

	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("close: %w", closeErr)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), verifyTimeout)
	defer cancel()

	start := time.Now()
	result, err := fn(ctx, a.engine)
	if err != nil {
		return fmt.Errorf("verify failed: %w", err)
	}

	if err := writeJSON(out, result); err != nil {
		return err
	}

	if verbose {
		fmt.Fprintf(os.Stderr, "\n✓ %s via %s in %v\n", result.Verdict, result.Decision, time.Since(start).Round(time.Millisecond))
		a.engine.Wait()
		printMetrics(a)
	}
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	return nil
}

// printMetrics writes non-zero counters to stderr
func printMetrics(a *app) {
	snap, err := a.engine.Metrics().Snapshot()
	if err != nil {
		return
	}
	names := make([]string, 0, len(snap))
	for name, v := range snap {
		if v > 0 {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(os.Stderr, "  %-55s %v\n", name, snap[name])
	}
}
