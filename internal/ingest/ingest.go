// Package ingest imports scraped fact-checks and image fingerprints into
// the stores through the duplicate gate.
package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/ppiankov/verifact/internal/engine"
	"github.com/ppiankov/verifact/internal/imagehash"
	"github.com/ppiankov/verifact/internal/logging"
	"github.com/ppiankov/verifact/internal/model"
	"github.com/ppiankov/verifact/internal/normalize"
)

// Record is one scraped fact-check
type Record struct {
	Claim       string `yaml:"claim" json:"claim"`
	Verdict     string `yaml:"verdict" json:"verdict"`
	Explanation string `yaml:"explanation" json:"explanation"`
	Source      string `yaml:"source" json:"source"`
	SourceURL   string `yaml:"source_url" json:"source_url"`
	Language    string `yaml:"language" json:"language"`
}

// ImageRecord is one known image. Either Path or all three hashes must be set.
type ImageRecord struct {
	Path              string `yaml:"path" json:"path"`
	PHash             string `yaml:"phash" json:"phash"`
	DHash             string `yaml:"dhash" json:"dhash"`
	AHash             string `yaml:"ahash" json:"ahash"`
	Context           string `yaml:"context" json:"context"`
	MisleadingContext string `yaml:"misleading_context" json:"misleading_context"`
	Verdict           string `yaml:"verdict" json:"verdict"`
	Source            string `yaml:"source" json:"source"`
	SourceURL         string `yaml:"source_url" json:"source_url"`
}

// File is the import document. A bare list is read as fact-checks.
type File struct {
	FactChecks []Record      `yaml:"fact_checks" json:"fact_checks"`
	Images     []ImageRecord `yaml:"images" json:"images"`

	dir string // relative image paths resolve against this
}

// LoadFile reads a JSON or YAML import document
func LoadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read import file: %w", err)
	}

	var records []Record
	if err := yaml.Unmarshal(data, &records); err == nil {
		return &File{FactChecks: records, dir: filepath.Dir(path)}, nil
	}

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse import file: %w", err)
	}
	f.dir = filepath.Dir(path)
	return &f, nil
}

// Ingester is the duplicate-gated insertion path
type Ingester interface {
	Ingest(ctx context.Context, entry *model.FactCheckEntry) (engine.Outcome, error)
	IngestImage(ctx context.Context, entry *model.ImageFingerprintEntry) (engine.Outcome, error)
}

// Report counts import outcomes
type Report struct {
	Inserted   int      `json:"inserted"`
	Duplicates int      `json:"duplicates"`
	Failed     int      `json:"failed"`
	Errors     []string `json:"errors,omitempty"`
}

func (r *Report) add(out engine.Outcome, err error, what string) {
	switch {
	case err != nil:
		r.Failed++
		r.Errors = append(r.Errors, fmt.Sprintf("%s: %v", what, err))
	case out.Inserted:
		r.Inserted++
	default:
		r.Duplicates++
	}
}

// Importer feeds import documents to an Ingester
type Importer struct {
	ingester Ingester
}

// NewImporter creates an importer
func NewImporter(ingester Ingester) *Importer {
	return &Importer{ingester: ingester}
}

// Import inserts every record. A failed record does not stop the import;
// only a cancelled context does.
func (i *Importer) Import(ctx context.Context, f *File) (Report, error) {
	var report Report
	log := logging.Component("ingest")

	for n, rec := range f.FactChecks {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		entry, err := rec.entry()
		if err == nil {
			var out engine.Outcome
			out, err = i.ingester.Ingest(ctx, entry)
			report.add(out, err, fmt.Sprintf("fact_checks[%d]", n))
		} else {
			report.add(engine.Outcome{}, err, fmt.Sprintf("fact_checks[%d]", n))
		}
	}

	for n, rec := range f.Images {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		entry, err := rec.entry(f.dir)
		if err == nil {
			var out engine.Outcome
			out, err = i.ingester.IngestImage(ctx, entry)
			report.add(out, err, fmt.Sprintf("images[%d]", n))
		} else {
			report.add(engine.Outcome{}, err, fmt.Sprintf("images[%d]", n))
		}
	}

	log.WithField("inserted", report.Inserted).
		WithField("duplicates", report.Duplicates).
		WithField("failed", report.Failed).
		Info("import finished")
	return report, nil
}

func (r Record) entry() (*model.FactCheckEntry, error) {
	claim, err := normalize.Normalize(r.Claim, r.Language)
	if err != nil {
		return nil, err
	}
	verdict := model.ParseVerdict(r.Verdict)
	return &model.FactCheckEntry{
		Claim:       claim.Text,
		Verdict:     verdict,
		Explanation: r.Explanation,
		Source:      r.Source,
		SourceURL:   r.SourceURL,
		Language:    claim.Language,
	}, nil
}

func (r ImageRecord) entry(dir string) (*model.ImageFingerprintEntry, error) {
	entry := &model.ImageFingerprintEntry{
		PHash:             r.PHash,
		DHash:             r.DHash,
		AHash:             r.AHash,
		Context:           r.Context,
		MisleadingContext: r.MisleadingContext,
		Source:            r.Source,
		SourceURL:         r.SourceURL,
	}
	if r.Verdict != "" {
		entry.Verdict = model.ParseVerdict(r.Verdict)
	}

	if r.Path != "" {
		path := r.Path
		if !filepath.IsAbs(path) && dir != "" {
			path = filepath.Join(dir, path)
		}
		fp, err := fingerprintFile(path)
		if err != nil {
			return nil, err
		}
		fp.Apply(entry)
	}
	return entry, nil
}

// fingerprintFile hashes the image at path
func fingerprintFile(path string) (imagehash.Triplet, error) {
	f, err := os.Open(path)
	if err != nil {
		return imagehash.Triplet{}, fmt.Errorf("open image: %w", err)
	}
	defer func() { _ = f.Close() }()

	img, err := imagehash.Decode(f)
	if err != nil {
		return imagehash.Triplet{}, err
	}
	return imagehash.Compute(img), nil
}
