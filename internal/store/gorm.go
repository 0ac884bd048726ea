package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/ppiankov/verifact/internal/errs"
	"github.com/ppiankov/verifact/internal/logging"
	"github.com/ppiankov/verifact/internal/model"
)

// factCheckRecord is the fact_checks row. Embeddings are JSON text so the
// schema works on both sqlite and mysql.
type factCheckRecord struct {
	ID          int64   `gorm:"primaryKey;autoIncrement"`
	Claim       string  `gorm:"type:text;not null"`
	Verdict     string  `gorm:"size:16;not null;index"`
	Explanation string  `gorm:"type:text"`
	Source      string  `gorm:"size:64;index"`
	SourceURL   string  `gorm:"size:1024"`
	Language    string  `gorm:"size:16;not null;index"`
	Embedding   string  `gorm:"type:text;not null"`
	Dimension   int     `gorm:"not null"`
	Model       string  `gorm:"column:embedding_model;size:128;not null;default:''"`
	Confidence  float64 `gorm:"default:0"`
	CreatedAt   time.Time
}

func (factCheckRecord) TableName() string { return "fact_checks" }

type imageRecord struct {
	ID                int64  `gorm:"primaryKey;autoIncrement"`
	PHash             string `gorm:"column:phash;size:16;not null;index"`
	DHash             string `gorm:"column:dhash;size:16;not null"`
	AHash             string `gorm:"column:ahash;size:16;not null"`
	Context           string `gorm:"type:text"`
	MisleadingContext string `gorm:"type:text"`
	Verdict           string `gorm:"size:16"`
	Source            string `gorm:"size:64;index"`
	SourceURL         string `gorm:"size:1024"`
	CreatedAt         time.Time
}

func (imageRecord) TableName() string { return "image_fingerprints" }

// GormStore persists entries through gorm on sqlite or mysql
type GormStore struct {
	db *gorm.DB

	mu    sync.Mutex
	space EmbeddingSpace
}

// OpenGorm connects, migrates and returns a GormStore
func OpenGorm(cfg model.StoreConfig) (*GormStore, error) {
	logLevel := logger.Silent
	if cfg.Debug {
		logLevel = logger.Info
	}
	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
	}

	var dialector gorm.Dialector
	switch cfg.Driver {
	case "sqlite":
		dialector = sqlite.Open(cfg.DSN)
	case "mysql":
		dialector = mysql.Open(cfg.DSN)
	default:
		return nil, errs.New(errs.KindConfiguration, "open store", "driver %q is not a gorm driver", cfg.Driver)
	}

	db, err := gorm.Open(dialector, gormConfig)
	if err != nil {
		return nil, errs.Wrap(errs.KindStorage, "open store", fmt.Errorf("failed to open %s database: %w", cfg.Driver, err))
	}
	if cfg.Driver == "sqlite" {
		// A single connection keeps sqlite writers from tripping over SQLITE_BUSY
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.SetMaxOpenConns(1)
		}
	}

	return NewGormStore(db)
}

// NewGormStore migrates the schema on db
func NewGormStore(db *gorm.DB) (*GormStore, error) {
	if err := db.AutoMigrate(&factCheckRecord{}, &imageRecord{}); err != nil {
		return nil, errs.Wrap(errs.KindStorage, "migrate", err)
	}

	s := &GormStore{db: db}

	var first factCheckRecord
	err := db.Select("dimension", "embedding_model").Order("id").Limit(1).Find(&first).Error
	if err != nil {
		return nil, errs.Wrap(errs.KindStorage, "load embedding space", err)
	}
	s.space = EmbeddingSpace{Model: first.Model, Dimension: first.Dimension}

	logging.Component("store").WithFields(map[string]interface{}{
		"dimension":       s.space.Dimension,
		"embedding_model": s.space.Model,
	}).Debug("gorm store ready")
	return s, nil
}

// QueryFactChecks returns entries matching f
func (s *GormStore) QueryFactChecks(ctx context.Context, f Filter) ([]*model.FactCheckEntry, error) {
	q := s.db.WithContext(ctx).Model(&factCheckRecord{}).Order("id")
	if len(f.Languages) > 0 {
		q = q.Where("language IN ?", f.Languages)
	}
	if f.Source != "" {
		q = q.Where("source = ?", f.Source)
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}

	var rows []factCheckRecord
	if err := q.Find(&rows).Error; err != nil {
		return nil, errs.Wrap(errs.KindStorage, "query fact-checks", err)
	}

	out := make([]*model.FactCheckEntry, 0, len(rows))
	for i := range rows {
		e, err := rows[i].toModel()
		if err != nil {
			logging.Component("store").WithError(err).WithField("entry_id", rows[i].ID).Warn("skipping unreadable fact-check")
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

// InsertFactCheck stores e and returns its id
func (s *GormStore) InsertFactCheck(ctx context.Context, e *model.FactCheckEntry) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := validateFactCheck(e, s.space); err != nil {
		return 0, err
	}

	rec, err := factCheckFromModel(e)
	if err != nil {
		return 0, errs.Wrap(errs.KindStorage, "insert fact-check", err)
	}
	if err := s.db.WithContext(ctx).Create(rec).Error; err != nil {
		return 0, errs.Wrap(errs.KindStorage, "insert fact-check", err)
	}
	if s.space.IsZero() {
		s.space = EmbeddingSpace{Model: rec.Model, Dimension: rec.Dimension}
	}
	return rec.ID, nil
}

// EmbeddingSpace returns the space of the first stored row
func (s *GormStore) EmbeddingSpace(context.Context) (EmbeddingSpace, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.space, nil
}

// CountFactChecks returns the number of rows
func (s *GormStore) CountFactChecks(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&factCheckRecord{}).Count(&n).Error; err != nil {
		return 0, errs.Wrap(errs.KindStorage, "count fact-checks", err)
	}
	return n, nil
}

// QueryImages returns fingerprints matching f. Languages are ignored.
func (s *GormStore) QueryImages(ctx context.Context, f Filter) ([]*model.ImageFingerprintEntry, error) {
	q := s.db.WithContext(ctx).Model(&imageRecord{}).Order("id")
	if f.Source != "" {
		q = q.Where("source = ?", f.Source)
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}

	var rows []imageRecord
	if err := q.Find(&rows).Error; err != nil {
		return nil, errs.Wrap(errs.KindStorage, "query images", err)
	}

	out := make([]*model.ImageFingerprintEntry, len(rows))
	for i := range rows {
		out[i] = rows[i].toModel()
	}
	return out, nil
}

// InsertImage stores e and returns its id
func (s *GormStore) InsertImage(ctx context.Context, e *model.ImageFingerprintEntry) (int64, error) {
	if err := validateImage(e); err != nil {
		return 0, err
	}
	rec := imageFromModel(e)
	if err := s.db.WithContext(ctx).Create(rec).Error; err != nil {
		return 0, errs.Wrap(errs.KindStorage, "insert image", err)
	}
	return rec.ID, nil
}

// CountImages returns the number of rows
func (s *GormStore) CountImages(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&imageRecord{}).Count(&n).Error; err != nil {
		return 0, errs.Wrap(errs.KindStorage, "count images", err)
	}
	return n, nil
}

// Close releases the underlying connection pool
func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func factCheckFromModel(e *model.FactCheckEntry) (*factCheckRecord, error) {
	vec, err := json.Marshal(e.Embedding)
	if err != nil {
		return nil, fmt.Errorf("marshal embedding: %w", err)
	}
	created := e.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	return &factCheckRecord{
		Claim:       e.Claim,
		Verdict:     string(e.Verdict),
		Explanation: e.Explanation,
		Source:      e.Source,
		SourceURL:   e.SourceURL,
		Language:    e.Language,
		Embedding:   string(vec),
		Dimension:   len(e.Embedding),
		Model:       e.EmbeddingModel,
		Confidence:  e.Confidence,
		CreatedAt:   created,
	}, nil
}

func (r *factCheckRecord) toModel() (*model.FactCheckEntry, error) {
	var vec []float32
	if err := json.Unmarshal([]byte(r.Embedding), &vec); err != nil {
		return nil, fmt.Errorf("unmarshal embedding: %w", err)
	}
	return &model.FactCheckEntry{
		ID:             r.ID,
		Claim:          r.Claim,
		Verdict:        model.Verdict(r.Verdict),
		Explanation:    r.Explanation,
		Source:         r.Source,
		SourceURL:      r.SourceURL,
		Language:       r.Language,
		Embedding:      vec,
		EmbeddingModel: r.Model,
		Confidence:     r.Confidence,
		CreatedAt:      r.CreatedAt,
	}, nil
}

func imageFromModel(e *model.ImageFingerprintEntry) *imageRecord {
	created := e.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	return &imageRecord{
		PHash:             e.PHash,
		DHash:             e.DHash,
		AHash:             e.AHash,
		Context:           e.Context,
		MisleadingContext: e.MisleadingContext,
		Verdict:           string(e.Verdict),
		Source:            e.Source,
		SourceURL:         e.SourceURL,
		CreatedAt:         created,
	}
}

func (r *imageRecord) toModel() *model.ImageFingerprintEntry {
	return &model.ImageFingerprintEntry{
		ID:                r.ID,
		PHash:             r.PHash,
		DHash:             r.DHash,
		AHash:             r.AHash,
		Context:           r.Context,
		MisleadingContext: r.MisleadingContext,
		Verdict:           model.Verdict(r.Verdict),
		Source:            r.Source,
		SourceURL:         r.SourceURL,
		CreatedAt:         r.CreatedAt,
	}
}
