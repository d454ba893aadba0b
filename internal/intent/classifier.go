package intent

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"math"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/taskextract/internal/cache"
	"github.com/fyrsmithlabs/taskextract/internal/logging"
	"github.com/fyrsmithlabs/taskextract/internal/textproc"
	"github.com/fyrsmithlabs/taskextract/pkg/task"
)

var tracer = otel.Tracer("github.com/fyrsmithlabs/taskextract/internal/intent")

const cacheName = "intent"

// Options configures a Classifier.
type Options struct {
	// Mapping maps raw model labels to intent names. Labels absent from
	// the map, or mapped to "", never resolve.
	Mapping map[string]string
	// Threshold is the minimum confidence for a mapped label to resolve.
	Threshold float64
	// CacheSize bounds the intent cache; zero disables it.
	CacheSize int
	// MaxTextLength in runes; zero means the textproc default.
	MaxTextLength int

	Logger  *logging.Logger
	Metrics *Metrics
	// CacheObserver receives cache events, e.g. cache.NewMetrics().
	CacheObserver cache.Observer
}

// Classifier turns model predictions into intent results.
type Classifier struct {
	model     Model
	mapping   map[string]string
	threshold float64
	maxLen    int
	cache     *cache.LRU[string, task.IntentResult]
	logger    *logging.Logger
	metrics   *Metrics
}

// NewClassifier creates a classifier over model.
func NewClassifier(model Model, opts Options) (*Classifier, error) {
	if model == nil {
		return nil, errors.New("intent model is required")
	}
	if opts.Mapping == nil {
		return nil, errors.New("intent mapping is required")
	}
	if opts.Threshold < 0 || opts.Threshold > 1 || math.IsNaN(opts.Threshold) {
		return nil, fmt.Errorf("intent threshold must be in [0,1], got %v", opts.Threshold)
	}

	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}

	lru := cache.New[string, task.IntentResult](cacheName, opts.CacheSize)
	if opts.CacheObserver != nil {
		lru.SetObserver(opts.CacheObserver)
	}

	return &Classifier{
		model:     model,
		mapping:   maps.Clone(opts.Mapping),
		threshold: opts.Threshold,
		maxLen:    opts.MaxTextLength,
		cache:     lru,
		logger:    logger.Named("intent"),
		metrics:   opts.Metrics,
	}, nil
}

// Backend returns the model's name.
func (c *Classifier) Backend() string { return c.model.Name() }

// Threshold returns the resolution threshold.
func (c *Classifier) Threshold() float64 { return c.threshold }

// CacheStats returns intent cache counters.
func (c *Classifier) CacheStats() cache.Stats { return c.cache.Stats() }

// ClassifyIntent classifies one text. Empty or whitespace-only text is
// rejected with task.ErrInvalidInput before the cache or the model is
// consulted. With useCache false the cache is neither read nor written.
func (c *Classifier) ClassifyIntent(ctx context.Context, text string, useCache bool) (task.IntentResult, error) {
	normalized, err := c.prepare(text)
	if err != nil {
		return task.IntentResult{}, err
	}
	return c.classifyPrepared(ctx, normalized, useCache)
}

// ClassifyNormalized classifies text that has already been validated and
// normalized by the caller.
func (c *Classifier) ClassifyNormalized(ctx context.Context, normalized string, useCache bool) (task.IntentResult, error) {
	if normalized == "" {
		return task.IntentResult{}, task.NewInputError("text", "must not be empty")
	}
	return c.classifyPrepared(ctx, normalized, useCache)
}

func (c *Classifier) classifyPrepared(ctx context.Context, normalized string, useCache bool) (task.IntentResult, error) {
	key := textproc.CacheKey(normalized, "")
	if useCache {
		if r, ok := c.cache.Get(key); ok {
			return r, nil
		}
	}

	pred, err := c.predict(ctx, normalized)
	if err != nil {
		return task.IntentResult{}, err
	}

	r := c.resolve(pred)
	if useCache {
		c.cache.Put(key, r)
	}
	return r, nil
}

// BatchClassifyIntents classifies texts, preserving order. An invalid
// element gets a slot with Error set and does not fail the batch; an empty
// texts slice is rejected. Backends implementing BatchModel receive every
// uncached valid text in a single call.
func (c *Classifier) BatchClassifyIntents(ctx context.Context, texts []string, useCache bool) ([]task.IntentResult, error) {
	if len(texts) == 0 {
		return nil, task.NewInputError("texts", "must not be empty")
	}

	results := make([]task.IntentResult, len(texts))
	var (
		pending    []int
		normalized = make([]string, len(texts))
		keys       = make([]string, len(texts))
	)
	for i, t := range texts {
		n, err := c.prepare(t)
		if err != nil {
			results[i] = task.IntentResult{Error: err.Error()}
			continue
		}
		normalized[i] = n
		keys[i] = textproc.CacheKey(n, "")
		if useCache {
			if r, ok := c.cache.Get(keys[i]); ok {
				results[i] = r
				continue
			}
		}
		pending = append(pending, i)
	}

	if len(pending) == 0 {
		return results, nil
	}

	if bm, ok := c.model.(BatchModel); ok && len(pending) > 1 {
		batch := make([]string, len(pending))
		for j, i := range pending {
			batch[j] = normalized[i]
		}
		preds, err := c.predictBatch(ctx, bm, batch)
		if err == nil {
			for j, i := range pending {
				results[i] = c.resolve(preds[j])
				if useCache {
					c.cache.Put(keys[i], results[i])
				}
			}
			return results, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			for _, i := range pending {
				results[i] = task.IntentResult{Error: ctxErr.Error()}
			}
			return results, ctxErr
		}
		c.logger.Warn(ctx, "batch classification failed, classifying individually",
			zap.String("backend", c.model.Name()),
			zap.Int("count", len(pending)),
			zap.Error(err),
		)
	}

	for _, i := range pending {
		if ctxErr := ctx.Err(); ctxErr != nil {
			results[i] = task.IntentResult{Error: ctxErr.Error()}
			continue
		}
		pred, err := c.predict(ctx, normalized[i])
		if err != nil {
			results[i] = task.IntentResult{Error: err.Error()}
			continue
		}
		results[i] = c.resolve(pred)
		if useCache {
			c.cache.Put(keys[i], results[i])
		}
	}
	return results, ctx.Err()
}

func (c *Classifier) prepare(text string) (string, error) {
	if err := textproc.Validate(text, textproc.ValidateOptions{MaxLength: c.maxLen}); err != nil {
		return "", err
	}
	n := textproc.Normalize(text, "")
	if n == "" {
		return "", task.NewInputError("text", "no content after normalization")
	}
	return n, nil
}

// resolve applies the mapping and threshold. RawLabel and Confidence are
// kept even when the intent does not resolve.
func (c *Classifier) resolve(p Prediction) task.IntentResult {
	conf := p.Confidence
	if math.IsNaN(conf) || conf < 0 {
		conf = 0
	}
	conf = min(conf, 1)

	r := task.IntentResult{RawLabel: p.Label, Confidence: conf}
	if name := c.mapping[p.Label]; name != "" && conf >= c.threshold {
		r.Intent = name
	}

	if c.metrics != nil {
		intent := r.Intent
		if intent == "" {
			intent = "none"
		}
		c.metrics.ClassificationsTotal.WithLabelValues(c.model.Name(), intent).Inc()
	}
	return r
}

func (c *Classifier) predict(ctx context.Context, text string) (p Prediction, err error) {
	ctx, span := tracer.Start(ctx, "intent.Classify")
	defer span.End()
	span.SetAttributes(
		attribute.String("backend", c.model.Name()),
		attribute.Int("text.length", len(text)),
	)

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("intent model %s panicked: %v", c.model.Name(), r)
		}
		c.observe(start, err)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return
		}
		span.SetAttributes(
			attribute.String("intent.raw_label", p.Label),
			attribute.Float64("intent.confidence", p.Confidence),
		)
	}()

	p, err = c.model.Classify(ctx, text)
	if err != nil {
		return Prediction{}, fmt.Errorf("classifying intent with %s: %w", c.model.Name(), err)
	}
	return p, nil
}

func (c *Classifier) predictBatch(ctx context.Context, bm BatchModel, texts []string) (preds []Prediction, err error) {
	ctx, span := tracer.Start(ctx, "intent.ClassifyBatch")
	defer span.End()
	span.SetAttributes(
		attribute.String("backend", bm.Name()),
		attribute.Int("batch.size", len(texts)),
	)

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("intent model %s panicked: %v", bm.Name(), r)
		}
		c.observe(start, err)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	}()

	preds, err = bm.ClassifyBatch(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("batch classifying intents with %s: %w", bm.Name(), err)
	}
	if len(preds) != len(texts) {
		return nil, fmt.Errorf("batch classifying intents with %s: got %d predictions for %d texts", bm.Name(), len(preds), len(texts))
	}
	return preds, nil
}

func (c *Classifier) observe(start time.Time, err error) {
	if c.metrics == nil {
		return
	}
	backend := c.model.Name()
	c.metrics.Duration.WithLabelValues(backend).Observe(time.Since(start).Seconds())
	if err != nil {
		c.metrics.ErrorsTotal.WithLabelValues(backend).Inc()
	}
}
