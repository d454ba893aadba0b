// Package extractor turns unstructured communication text into structured,
// confidence-scored task records.
//
// Each request runs a small state machine:
//
//	RECEIVED -> EXTRACTING_SIGNALS -> AGGREGATING -> ASSEMBLING -> DONE
//	RECEIVED -> REJECTED
//
// Entities, intent and sentiment are computed concurrently from the
// normalized text, combined into one weighted confidence, and assembled
// into a task record only when the decision is valid. A failing signal
// degrades to zero confidence instead of failing the request.
//
// Results are memoized in a bounded LRU keyed by a hash of the normalized
// text and source type. Identical inputs from different callers share one
// entry.
package extractor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/taskextract/internal/assemble"
	"github.com/fyrsmithlabs/taskextract/internal/cache"
	"github.com/fyrsmithlabs/taskextract/internal/confidence"
	"github.com/fyrsmithlabs/taskextract/internal/config"
	"github.com/fyrsmithlabs/taskextract/internal/entities"
	"github.com/fyrsmithlabs/taskextract/internal/intent"
	"github.com/fyrsmithlabs/taskextract/internal/logging"
	"github.com/fyrsmithlabs/taskextract/internal/sentiment"
	"github.com/fyrsmithlabs/taskextract/internal/textproc"
	"github.com/fyrsmithlabs/taskextract/pkg/task"
)

const (
	instrumentationName = "github.com/fyrsmithlabs/taskextract/pkg/extractor"
	extractionCacheName = "extraction"
)

// Extractor owns every pipeline component and the result cache. It is
// safe for concurrent use.
type Extractor struct {
	// aggregator is swapped whole by Rescore; each request loads it once.
	aggregator  atomic.Pointer[confidence.Aggregator]
	entities    *entities.Extractor
	classifier  *intent.Classifier
	model       intent.Model
	scorer      *sentiment.Scorer
	assembler   *assemble.Assembler
	cache       *cache.LRU[string, task.ExtractionResult]
	validate    textproc.ValidateOptions
	itemTimeout time.Duration
	concurrency int

	logger  *logging.Logger
	tracer  trace.Tracer
	metrics *Metrics
}

// New builds an Extractor from cfg; nil selects config.Default(). Backend
// construction failures are reported as task.ErrModelUnavailable.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*Extractor, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = logging.NewNop()
	}
	if o.tracer == nil {
		o.tracer = otel.Tracer(instrumentationName)
	}
	if o.clock == nil {
		o.clock = time.Now
	}

	aggregator, err := newAggregator(cfg.Weights, cfg.Extraction.ConfidenceThreshold)
	if err != nil {
		return nil, err
	}

	rec := o.recognizer
	if rec == nil {
		if rec, err = entities.NewRecognizer(cfg.Entities.Backend, o.clock); err != nil {
			return nil, err
		}
	}

	model := o.intentModel
	if model == nil {
		model, err = intent.NewModel(ctx, cfg.Intent, intent.Deps{
			Logger:           o.logger,
			Scrubber:         o.scrubber,
			HTTPClient:       o.httpClient,
			EmbeddingMetrics: o.embeddingMetrics,
		})
		if err != nil {
			return nil, err
		}
	}

	cacheMetrics := cache.NewMetrics()
	classifier, err := intent.NewClassifier(model, intent.Options{
		Mapping:       cfg.Intent.Mapping,
		Threshold:     cfg.Intent.Threshold,
		CacheSize:     cfg.Intent.CacheSize,
		MaxTextLength: cfg.Extraction.MaxTextLength,
		Logger:        o.logger,
		Metrics:       intent.NewMetrics(),
		CacheObserver: cacheMetrics,
	})
	if err != nil {
		_ = closeModel(model)
		return nil, fmt.Errorf("creating intent classifier: %w", err)
	}

	results := cache.New[string, task.ExtractionResult](extractionCacheName, cfg.Extraction.CacheSize)
	results.SetObserver(cacheMetrics)

	e := &Extractor{
		entities: entities.NewExtractor(rec, entities.Options{
			MaxKeywords:       cfg.Entities.MaxKeywords,
			KeywordConfidence: cfg.Entities.KeywordConfidence,
			Logger:            o.logger,
		}),
		classifier:  classifier,
		model:       model,
		scorer:      sentiment.New(),
		assembler:   assemble.New(o.categoryRules),
		cache:       results,
		validate:    textproc.ValidateOptions{MaxLength: cfg.Extraction.MaxTextLength},
		itemTimeout: cfg.Extraction.ItemTimeout.Duration(),
		concurrency: cfg.Extraction.Concurrency,
		logger:      o.logger.Named("extractor"),
		tracer:      o.tracer,
		metrics:     NewMetrics(),
	}
	e.aggregator.Store(aggregator)

	e.logger.Info(ctx, "extractor ready",
		zap.String("entities.backend", e.entities.Backend()),
		zap.String("intent.backend", model.Name()),
	)
	return e, nil
}

// Extract runs the pipeline on one request. Invalid requests are rejected
// with task.ErrInvalidInput; every other failure degrades the affected
// signal and still produces a result.
func (e *Extractor) Extract(ctx context.Context, req task.ExtractionRequest) (task.ExtractionResult, error) {
	return e.run(ctx, req)
}

// ExtractTask is Extract with the request given as arguments.
func (e *Extractor) ExtractTask(ctx context.Context, text string, source task.SourceType, useCache bool) (task.ExtractionResult, error) {
	return e.Extract(ctx, task.ExtractionRequest{Text: text, SourceType: source, UseCache: useCache})
}

// ClassifyIntent classifies one text without running the full pipeline.
func (e *Extractor) ClassifyIntent(ctx context.Context, text string, useCache bool) (task.IntentResult, error) {
	return e.classifier.ClassifyIntent(ctx, text, useCache)
}

// BatchClassifyIntents classifies texts, preserving order and isolating
// invalid elements.
func (e *Extractor) BatchClassifyIntents(ctx context.Context, texts []string, useCache bool) ([]task.IntentResult, error) {
	return e.classifier.BatchClassifyIntents(ctx, texts, useCache)
}

// Threshold returns the current validity threshold.
func (e *Extractor) Threshold() float64 { return e.aggregator.Load().Threshold() }

// Rescore replaces the signal weights and the validity threshold. Requests
// already aggregating keep the previous values. Cached results are dropped
// since their validity may no longer hold. Invalid values leave the
// current scoring in place.
func (e *Extractor) Rescore(ctx context.Context, w config.WeightsConfig, threshold float64) error {
	agg, err := newAggregator(w, threshold)
	if err != nil {
		return err
	}
	e.aggregator.Store(agg)
	e.cache.Purge()
	e.logger.Info(ctx, "scoring updated",
		zap.Float64("weights.ner", w.NER),
		zap.Float64("weights.intent", w.Intent),
		zap.Float64("weights.sentiment", w.Sentiment),
		zap.Float64("threshold", threshold),
	)
	return nil
}

func newAggregator(w config.WeightsConfig, threshold float64) (*confidence.Aggregator, error) {
	agg, err := confidence.New(confidence.Weights{
		NER:       w.NER,
		Intent:    w.Intent,
		Sentiment: w.Sentiment,
	}, threshold)
	if err != nil {
		return nil, fmt.Errorf("creating confidence aggregator: %w", err)
	}
	return agg, nil
}

// Concurrency returns the configured default batch concurrency.
func (e *Extractor) Concurrency() int { return e.concurrency }

// CacheStats returns extraction cache counters.
func (e *Extractor) CacheStats() cache.Stats { return e.cache.Stats() }

// IntentCacheStats returns intent cache counters.
func (e *Extractor) IntentCacheStats() cache.Stats { return e.classifier.CacheStats() }

// PurgeCache drops every cached extraction result.
func (e *Extractor) PurgeCache() {
	e.cache.Purge()
}

// Close releases model resources.
func (e *Extractor) Close() error {
	return closeModel(e.model)
}

func closeModel(m intent.Model) error {
	if c, ok := m.(io.Closer); ok {
		if err := c.Close(); err != nil {
			return fmt.Errorf("closing intent model: %w", err)
		}
	}
	return nil
}

// ErrCanceled marks batch slots that never started.
var ErrCanceled = errors.New("canceled before start")
