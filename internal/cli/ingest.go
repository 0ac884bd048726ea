package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ppiankov/verifact/internal/ingest"
)

var ingestTimeout time.Duration

// ingestCmd represents the ingest command
var ingestCmd = &cobra.Command{
	Use:   "ingest <file>",
	Short: "Import scraped fact-checks and image fingerprints",
	Long: `Ingest imports a JSON or YAML document of fact-checks into the store.
Entries already represented in the store are skipped.

The document is either a list of fact-checks:

  - claim: Vaccine X causes disease Y
    verdict: FALSE
    source: snopes
    source_url: https://...
    language: en

or a mapping with fact_checks and images lists. Images give either a
path to the image file or precomputed phash/dhash/ahash values.

Example:
  verifact ingest scraped.json
  verifact ingest known-images.yaml --store sqlite --dsn verifact.db`,
	Args: cobra.ExactArgs(1),
	RunE: runIngest,
}

func init() {
	rootCmd.AddCommand(ingestCmd)
	ingestCmd.Flags().DurationVar(&ingestTimeout, "timeout", 30*time.Minute, "total timeout for the import")
}

func runIngest(cmd *cobra.Command, args []string) (err error) {
	f, err := ingest.LoadFile(args[0])
	if err != nil {
		return err
	}

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

	ctx, cancel := context.WithTimeout(context.Background(), ingestTimeout)
	defer cancel()

	fmt.Fprintf(os.Stderr, "⚙️  Importing %d fact-checks and %d images...\n", len(f.FactChecks), len(f.Images))
	report, err := ingest.NewImporter(a.engine.Learner()).Import(ctx, f)
	if err != nil {
		return fmt.Errorf("import: %w", err)
	}

	fmt.Fprintf(os.Stderr, "✓ Inserted %d, skipped %d duplicates, %d failed\n", report.Inserted, report.Duplicates, report.Failed)
	if verbose {
		for _, e := range report.Errors {
			fmt.Fprintf(os.Stderr, "  ✗ %s\n", e)
		}
	}
	return writeJSON(cmd.OutOrStdout(), report)
}
