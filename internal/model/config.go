package model

import (
	"fmt"
	"runtime"
	"time"

	"github.com/ppiankov/verifact/internal/logging"
)

// Config is the complete verifact configuration
type Config struct {
	Engine      EngineConfig      `yaml:"engine" mapstructure:"engine"`
	Embedding   EmbeddingConfig   `yaml:"embedding" mapstructure:"embedding"`
	AI          AIConfig          `yaml:"ai" mapstructure:"ai"`
	Store       StoreConfig       `yaml:"store" mapstructure:"store"`
	Lock        LockConfig        `yaml:"lock" mapstructure:"lock"`
	Cache       CacheConfig       `yaml:"cache" mapstructure:"cache"`
	HTTP        HTTPConfig        `yaml:"http" mapstructure:"http"`
	Concurrency ConcurrencyConfig `yaml:"concurrency" mapstructure:"concurrency"`
	Logging     logging.Config    `yaml:"logging" mapstructure:"logging"`
}

// EngineConfig holds the decision thresholds. All comparisons are inclusive at the lower bound.
type EngineConfig struct {
	MatchThreshold  float64 `yaml:"match_threshold" mapstructure:"match_threshold"`   // Store similarity to serve a stored verdict
	ReturnThreshold float64 `yaml:"return_threshold" mapstructure:"return_threshold"` // AI confidence to return the AI verdict
	LearnThreshold  float64 `yaml:"learn_threshold" mapstructure:"learn_threshold"`   // AI confidence to write back
	DedupThreshold  float64 `yaml:"dedup_threshold" mapstructure:"dedup_threshold"`   // Similarity at which a new claim is a duplicate

	ImageMatchDistance int    `yaml:"image_match_distance" mapstructure:"image_match_distance"` // Max averaged Hamming distance for an image hit
	ImageDedupDistance int    `yaml:"image_dedup_distance" mapstructure:"image_dedup_distance"` // Max averaged distance for an image duplicate
	ImageChannelMode   string `yaml:"image_channel_mode" mapstructure:"image_channel_mode"`     // average or minimum

	FallbackLanguage  string        `yaml:"fallback_language" mapstructure:"fallback_language"` // Also searched for every query
	LearnClaimMaxRune int           `yaml:"learn_claim_max_runes" mapstructure:"learn_claim_max_runes"`
	WritebackTimeout  time.Duration `yaml:"writeback_timeout" mapstructure:"writeback_timeout"`

	AITimeout time.Duration `yaml:"ai_timeout" mapstructure:"ai_timeout"` // Bounds the whole AI stage, rate limiting and model fallback included
}

// DefaultAITimeout bounds the AI stage when none is configured
const DefaultAITimeout = 8 * time.Second

// EmbeddingConfig selects the embedding provider
type EmbeddingConfig struct {
	Provider  string        `yaml:"provider" mapstructure:"provider"` // hashing, openai, ollama
	Model     string        `yaml:"model" mapstructure:"model"`
	APIKey    string        `yaml:"-" mapstructure:"api_key"`
	BaseURL   string        `yaml:"base_url,omitempty" mapstructure:"base_url"`
	Dimension int           `yaml:"dimension" mapstructure:"dimension"`
	MaxTokens int           `yaml:"max_tokens" mapstructure:"max_tokens"`
	Timeout   time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// AIConfig selects the external AI verification service
type AIConfig struct {
	Provider          string        `yaml:"provider" mapstructure:"provider"` // openai, anthropic, ollama, "" (disabled)
	Models            []string      `yaml:"models" mapstructure:"models"`     // Tried in order on rate limiting
	APIKey            string        `yaml:"-" mapstructure:"api_key"`
	BaseURL           string        `yaml:"base_url,omitempty" mapstructure:"base_url"`
	Timeout           time.Duration `yaml:"timeout" mapstructure:"timeout"`
	MaxTokens         int           `yaml:"max_tokens" mapstructure:"max_tokens"`
	Temperature       float32       `yaml:"temperature" mapstructure:"temperature"`
	RequestsPerSecond float64       `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	Burst             int           `yaml:"burst" mapstructure:"burst"`
}

// StoreConfig selects the persistence backend
type StoreConfig struct {
	Driver string `yaml:"driver" mapstructure:"driver"` // memory, sqlite, mysql
	DSN    string `yaml:"dsn" mapstructure:"dsn"`       // sqlite path or mysql DSN
	Debug  bool   `yaml:"debug" mapstructure:"debug"`
}

// LockConfig selects how writeback check-then-insert is serialized
type LockConfig struct {
	Backend       string        `yaml:"backend" mapstructure:"backend"` // local or redis
	RedisAddr     string        `yaml:"redis_addr" mapstructure:"redis_addr"`
	RedisPassword string        `yaml:"-" mapstructure:"redis_password"`
	RedisDB       int           `yaml:"redis_db" mapstructure:"redis_db"`
	TTL           time.Duration `yaml:"ttl" mapstructure:"ttl"`
	RetryInterval time.Duration `yaml:"retry_interval" mapstructure:"retry_interval"`
}

// CacheConfig contains caching settings
type CacheConfig struct {
	Enabled   bool          `yaml:"enabled" mapstructure:"enabled"`
	Dir       string        `yaml:"dir" mapstructure:"dir"`
	MemoryTTL time.Duration `yaml:"memory_ttl" mapstructure:"memory_ttl"`
	DiskTTL   time.Duration `yaml:"disk_ttl" mapstructure:"disk_ttl"`
}

// HTTPConfig contains URL fetching settings
type HTTPConfig struct {
	Timeout       time.Duration `yaml:"timeout" mapstructure:"timeout"`
	UserAgent     string        `yaml:"user_agent" mapstructure:"user_agent"`
	MaxBodyBytes  int64         `yaml:"max_body_bytes" mapstructure:"max_body_bytes"`
	RespectRobots bool          `yaml:"respect_robots" mapstructure:"respect_robots"`
	HTTPProxy     string        `yaml:"http_proxy,omitempty" mapstructure:"http_proxy"`
	HTTPSProxy    string        `yaml:"https_proxy,omitempty" mapstructure:"https_proxy"`
}

// ConcurrencyConfig contains worker settings
type ConcurrencyConfig struct {
	Workers int `yaml:"workers" mapstructure:"workers"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Engine: EngineConfig{
			MatchThreshold:     0.75,
			ReturnThreshold:    0.6,
			LearnThreshold:     0.9,
			DedupThreshold:     0.75,
			ImageMatchDistance: 5,
			ImageDedupDistance: 5,
			ImageChannelMode:   "average",
			FallbackLanguage:   "en",
			LearnClaimMaxRune:  500,
			WritebackTimeout:   10 * time.Second,
			AITimeout:          DefaultAITimeout,
		},
		Embedding: EmbeddingConfig{
			Provider:  "hashing",
			Dimension: 384,
			MaxTokens: 512,
			Timeout:   15 * time.Second,
		},
		AI: AIConfig{
			Provider:          "",
			Timeout:           8 * time.Second,
			MaxTokens:         1024,
			Temperature:       0.2,
			RequestsPerSecond: 2,
			Burst:             5,
		},
		Store: StoreConfig{
			Driver: "sqlite",
			DSN:    "verifact.db",
		},
		Lock: LockConfig{
			Backend:       "local",
			RedisAddr:     "localhost:6379",
			TTL:           30 * time.Second,
			RetryInterval: 100 * time.Millisecond,
		},
		Cache: CacheConfig{
			Enabled:   true,
			Dir:       ".verifact-cache",
			MemoryTTL: 30 * time.Minute,
			DiskTTL:   7 * 24 * time.Hour,
		},
		HTTP: HTTPConfig{
			Timeout:       10 * time.Second,
			UserAgent:     "verifact/0.1 (+https://github.com/ppiankov/verifact)",
			MaxBodyBytes:  2_000_000,
			RespectRobots: true,
		},
		Concurrency: ConcurrencyConfig{
			Workers: runtime.NumCPU(),
		},
		Logging: logging.Config{
			Level:  "info",
			Format: "text",
		},
	}
}

// Validate checks threshold ranges and backend names
func (c *Config) Validate() error {
	for name, v := range map[string]float64{
		"engine.match_threshold":  c.Engine.MatchThreshold,
		"engine.return_threshold": c.Engine.ReturnThreshold,
		"engine.learn_threshold":  c.Engine.LearnThreshold,
		"engine.dedup_threshold":  c.Engine.DedupThreshold,
	} {
		if v < 0 || v > 1 {
			return fmt.Errorf("%s must be in [0,1], got %v", name, v)
		}
	}
	for name, v := range map[string]int{
		"engine.image_match_distance": c.Engine.ImageMatchDistance,
		"engine.image_dedup_distance": c.Engine.ImageDedupDistance,
	} {
		if v < 0 || v > 64 {
			return fmt.Errorf("%s must be in [0,64], got %d", name, v)
		}
	}
	if c.Engine.AITimeout < 0 {
		return fmt.Errorf("engine.ai_timeout must not be negative, got %v", c.Engine.AITimeout)
	}
	if c.Engine.WritebackTimeout <= 0 {
		return fmt.Errorf("engine.writeback_timeout must be positive, got %v", c.Engine.WritebackTimeout)
	}
	// A lock that expires mid-writeback no longer serializes dedup and insert
	if c.Lock.TTL > 0 && c.Engine.WritebackTimeout >= c.Lock.TTL {
		return fmt.Errorf("engine.writeback_timeout (%v) must be shorter than lock.ttl (%v)", c.Engine.WritebackTimeout, c.Lock.TTL)
	}
	switch c.Engine.ImageChannelMode {
	case "average", "minimum":
	default:
		return fmt.Errorf("engine.image_channel_mode must be average or minimum, got %q", c.Engine.ImageChannelMode)
	}
	switch c.Store.Driver {
	case "memory", "sqlite", "mysql":
	default:
		return fmt.Errorf("unknown store driver %q (supported: memory, sqlite, mysql)", c.Store.Driver)
	}
	switch c.Lock.Backend {
	case "local", "redis":
	default:
		return fmt.Errorf("unknown lock backend %q (supported: local, redis)", c.Lock.Backend)
	}
	if c.Embedding.Dimension <= 0 {
		return fmt.Errorf("embedding.dimension must be positive")
	}
	return nil
}
