// Package config loads taskextract configuration.
//
// Sources, highest precedence first:
//  1. Environment variables prefixed TASKEXTRACT_
//  2. YAML config file
//  3. Defaults from Default()
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/fyrsmithlabs/taskextract/internal/logging"
	"github.com/fyrsmithlabs/taskextract/internal/telemetry"
)

// Config is the complete configuration.
type Config struct {
	Extraction ExtractionConfig `koanf:"extraction"`
	Weights    WeightsConfig    `koanf:"weights"`
	Intent     IntentConfig     `koanf:"intent"`
	Entities   EntitiesConfig   `koanf:"entities"`
	Metrics    MetricsConfig    `koanf:"metrics"`
	Logging    logging.Config   `koanf:"logging"`
	Telemetry  telemetry.Config `koanf:"telemetry"`
}

// ExtractionConfig controls the pipeline.
type ExtractionConfig struct {
	// ConfidenceThreshold is the minimum final confidence for a valid task.
	ConfidenceThreshold float64  `koanf:"confidence_threshold"`
	CacheSize           int      `koanf:"cache_size"`
	Concurrency         int      `koanf:"concurrency"`
	ItemTimeout         Duration `koanf:"item_timeout"`
	MaxTextLength       int      `koanf:"max_text_length"`
}

// WeightsConfig holds the per-signal weights of the confidence aggregate.
type WeightsConfig struct {
	NER       float64 `koanf:"ner"`
	Intent    float64 `koanf:"intent"`
	Sentiment float64 `koanf:"sentiment"`
}

// IntentConfig selects and tunes the intent classifier.
type IntentConfig struct {
	Backend   string            `koanf:"backend"` // heuristic, semantic, anthropic
	Threshold float64           `koanf:"threshold"`
	CacheSize int               `koanf:"cache_size"`
	Mapping   map[string]string `koanf:"mapping"` // raw label -> intent; "" unmaps
	Anthropic AnthropicConfig   `koanf:"anthropic"`
	Semantic  SemanticConfig    `koanf:"semantic"`
}

// AnthropicConfig configures the remote classifier backend.
type AnthropicConfig struct {
	APIKey     Secret   `koanf:"api_key"`
	Model      string   `koanf:"model"`
	BaseURL    string   `koanf:"base_url"`
	Timeout    Duration `koanf:"timeout"`
	MaxRetries int      `koanf:"max_retries"`
	RateLimit  float64  `koanf:"rate_limit"` // requests per second
	Burst      int      `koanf:"burst"`
}

// SemanticConfig configures the exemplar-similarity backend.
type SemanticConfig struct {
	Provider  string              `koanf:"provider"` // hashing, fastembed, tei
	Model     string              `koanf:"model"`
	CacheDir  string              `koanf:"cache_dir"`
	BaseURL   string              `koanf:"base_url"` // tei
	TopK      int                 `koanf:"top_k"`
	Exemplars map[string][]string `koanf:"exemplars"`
}

// EntitiesConfig selects the entity recognizer.
type EntitiesConfig struct {
	Backend           string  `koanf:"backend"` // lexical, prose
	MaxKeywords       int     `koanf:"max_keywords"`
	KeywordConfidence float64 `koanf:"keyword_confidence"`
}

// MetricsConfig configures the ops endpoint.
type MetricsConfig struct {
	Addr string `koanf:"addr"`
}

// DefaultMapping is the default raw label to intent mapping.
func DefaultMapping() map[string]string {
	return map[string]string{
		"create_task":      "TASK_CREATION",
		"update_status":    "STATUS_UPDATE",
		"schedule_meeting": "MEETING_REQUEST",
		"request_info":     "INFORMATION_REQUEST",
	}
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Extraction: ExtractionConfig{
			ConfidenceThreshold: 0.8,
			CacheSize:           1024,
			Concurrency:         4,
			ItemTimeout:         Duration(2 * time.Second),
			MaxTextLength:       20000,
		},
		Weights: WeightsConfig{NER: 0.4, Intent: 0.4, Sentiment: 0.2},
		Intent: IntentConfig{
			Backend:   "heuristic",
			Threshold: 0.6,
			CacheSize: 1024,
			Mapping:   DefaultMapping(),
			Anthropic: AnthropicConfig{
				Model:      "claude-3-5-haiku-20241022",
				BaseURL:    "https://api.anthropic.com",
				Timeout:    Duration(30 * time.Second),
				MaxRetries: 3,
				RateLimit:  50.0 / 60.0,
				Burst:      5,
			},
			Semantic: SemanticConfig{
				Provider: "hashing",
				Model:    "BAAI/bge-small-en-v1.5",
				TopK:     5,
			},
		},
		Entities: EntitiesConfig{
			Backend:           "lexical",
			MaxKeywords:       10,
			KeywordConfidence: 0.6,
		},
		Metrics:   MetricsConfig{Addr: ""},
		Logging:   *logging.NewDefaultConfig(),
		Telemetry: *telemetry.NewDefaultConfig(),
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	var errs []error

	e := c.Extraction
	if e.ConfidenceThreshold <= 0 || e.ConfidenceThreshold > 1 {
		errs = append(errs, fmt.Errorf("extraction.confidence_threshold must be in (0,1], got %v", e.ConfidenceThreshold))
	}
	if e.CacheSize < 0 {
		errs = append(errs, fmt.Errorf("extraction.cache_size must be >= 0, got %d", e.CacheSize))
	}
	if e.Concurrency < 1 {
		errs = append(errs, fmt.Errorf("extraction.concurrency must be >= 1, got %d", e.Concurrency))
	}
	if e.ItemTimeout.Duration() <= 0 {
		errs = append(errs, errors.New("extraction.item_timeout must be positive"))
	}

	w := c.Weights
	if w.NER < 0 || w.Intent < 0 || w.Sentiment < 0 {
		errs = append(errs, errors.New("weights must be non-negative"))
	}
	if w.NER+w.Intent+w.Sentiment <= 0 {
		errs = append(errs, errors.New("weights must sum to a positive value"))
	}

	switch c.Intent.Backend {
	case "heuristic", "semantic", "anthropic":
	default:
		errs = append(errs, fmt.Errorf("intent.backend must be heuristic, semantic or anthropic, got %q", c.Intent.Backend))
	}
	if c.Intent.Threshold < 0 || c.Intent.Threshold > 1 {
		errs = append(errs, fmt.Errorf("intent.threshold must be in [0,1], got %v", c.Intent.Threshold))
	}
	switch c.Intent.Semantic.Provider {
	case "hashing", "fastembed", "tei":
	default:
		errs = append(errs, fmt.Errorf("intent.semantic.provider must be hashing, fastembed or tei, got %q", c.Intent.Semantic.Provider))
	}
	if c.Intent.Semantic.TopK < 1 {
		errs = append(errs, fmt.Errorf("intent.semantic.top_k must be >= 1, got %d", c.Intent.Semantic.TopK))
	}
	if c.Intent.CacheSize < 0 {
		errs = append(errs, fmt.Errorf("intent.cache_size must be >= 0, got %d", c.Intent.CacheSize))
	}

	switch c.Entities.Backend {
	case "lexical", "prose":
	default:
		errs = append(errs, fmt.Errorf("entities.backend must be lexical or prose, got %q", c.Entities.Backend))
	}
	if c.Entities.KeywordConfidence < 0 || c.Entities.KeywordConfidence > 1 {
		errs = append(errs, fmt.Errorf("entities.keyword_confidence must be in [0,1], got %v", c.Entities.KeywordConfidence))
	}

	if err := c.Logging.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("logging: %w", err))
	}
	if err := c.Telemetry.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("telemetry: %w", err))
	}

	return errors.Join(errs...)
}
