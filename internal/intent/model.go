// Package intent classifies the communicative intent of a text.
//
// A Model produces a raw label with a confidence. The Classifier maps raw
// labels to intent names through explicit configuration, applies the
// confidence threshold and memoizes results. Three backends are provided:
// weighted regex patterns (heuristic), nearest exemplars in an embedding
// space (semantic) and a remote Claude model (anthropic).
package intent

import (
	"context"
	"fmt"
	"net/http"

	"github.com/fyrsmithlabs/taskextract/internal/config"
	"github.com/fyrsmithlabs/taskextract/internal/embeddings"
	"github.com/fyrsmithlabs/taskextract/internal/logging"
	"github.com/fyrsmithlabs/taskextract/internal/secrets"
	"github.com/fyrsmithlabs/taskextract/pkg/task"
)

// Raw labels produced by the built-in backends.
const (
	LabelCreateTask      = "create_task"
	LabelUpdateStatus    = "update_status"
	LabelScheduleMeeting = "schedule_meeting"
	LabelRequestInfo     = "request_info"
	LabelChitchat        = "chitchat"
)

// Labels returns the built-in raw labels in tie-break order.
func Labels() []string {
	return []string{
		LabelCreateTask,
		LabelScheduleMeeting,
		LabelRequestInfo,
		LabelUpdateStatus,
		LabelChitchat,
	}
}

// Backend names.
const (
	BackendHeuristic = "heuristic"
	BackendSemantic  = "semantic"
	BackendAnthropic = "anthropic"
)

// Prediction is a model's raw output.
type Prediction struct {
	Label      string
	Confidence float64
}

// Model is the capability every intent backend provides.
type Model interface {
	Classify(ctx context.Context, text string) (Prediction, error)
	Name() string
}

// BatchModel is implemented by backends that classify many texts in one
// call more cheaply than one at a time.
type BatchModel interface {
	Model
	ClassifyBatch(ctx context.Context, texts []string) ([]Prediction, error)
}

// Deps are the collaborators a backend may need.
type Deps struct {
	Logger           *logging.Logger
	Scrubber         *secrets.Scrubber
	HTTPClient       *http.Client
	EmbeddingMetrics *embeddings.Metrics
}

// NewModel builds the backend selected by cfg.Backend. Any failure to
// configure or load it is reported as task.ErrModelUnavailable.
func NewModel(ctx context.Context, cfg config.IntentConfig, deps Deps) (Model, error) {
	if deps.Logger == nil {
		deps.Logger = logging.NewNop()
	}

	switch cfg.Backend {
	case BackendHeuristic, "":
		h, err := NewHeuristic(DefaultPatterns())
		if err != nil {
			return nil, task.ModelUnavailable(BackendHeuristic, err)
		}
		return h, nil

	case BackendSemantic:
		provider, err := embeddings.NewProvider(embeddings.ProviderConfig{
			Provider: cfg.Semantic.Provider,
			Model:    cfg.Semantic.Model,
			CacheDir: cfg.Semantic.CacheDir,
			BaseURL:  cfg.Semantic.BaseURL,
		})
		if err != nil {
			return nil, task.ModelUnavailable(BackendSemantic, err)
		}
		provider = embeddings.Instrument(provider, cfg.Semantic.Model, deps.EmbeddingMetrics)

		exemplars := cfg.Semantic.Exemplars
		if len(exemplars) == 0 {
			exemplars = DefaultExemplars()
		}
		s, err := NewSemantic(ctx, provider, exemplars, cfg.Semantic.TopK)
		if err != nil {
			_ = provider.Close()
			return nil, task.ModelUnavailable(BackendSemantic, err)
		}
		return s, nil

	case BackendAnthropic:
		a, err := NewAnthropic(AnthropicConfig{
			APIKey:     cfg.Anthropic.APIKey.Value(),
			Model:      cfg.Anthropic.Model,
			BaseURL:    cfg.Anthropic.BaseURL,
			Timeout:    cfg.Anthropic.Timeout.Duration(),
			MaxRetries: cfg.Anthropic.MaxRetries,
			RateLimit:  cfg.Anthropic.RateLimit,
			Burst:      cfg.Anthropic.Burst,
			Labels:     Labels(),
		}, deps)
		if err != nil {
			return nil, task.ModelUnavailable(BackendAnthropic, err)
		}
		return a, nil

	default:
		return nil, task.ModelUnavailable(cfg.Backend, fmt.Errorf("unknown intent backend %q", cfg.Backend))
	}
}
