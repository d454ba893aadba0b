package entities

import (
	"context"
	"fmt"

	"github.com/fyrsmithlabs/taskextract/internal/logging"
	"go.uber.org/zap"
)

// Defaults for Extractor.
const (
	DefaultMaxKeywords       = 10
	DefaultKeywordConfidence = 0.6
)

// Result is the entity/keyword signal for one text.
type Result struct {
	Entities   []Entity `json:"entities"`
	Keywords   []string `json:"keywords"`
	Confidence float64  `json:"confidence"`
	// Degraded is set when the recognizer failed and the result is empty.
	Degraded bool `json:"degraded,omitempty"`
}

// Options configures an Extractor.
type Options struct {
	MaxKeywords       int
	KeywordConfidence float64
	Logger            *logging.Logger
}

// Extractor combines a Recognizer with keyword ranking.
type Extractor struct {
	rec               Recognizer
	maxKeywords       int
	keywordConfidence float64
	logger            *logging.Logger
}

// NewExtractor wraps rec. Zero option values select the defaults.
func NewExtractor(rec Recognizer, opts Options) *Extractor {
	if opts.MaxKeywords <= 0 {
		opts.MaxKeywords = DefaultMaxKeywords
	}
	if opts.KeywordConfidence <= 0 {
		opts.KeywordConfidence = DefaultKeywordConfidence
	}
	if opts.Logger == nil {
		opts.Logger = logging.NewNop()
	}
	return &Extractor{
		rec:               rec,
		maxKeywords:       opts.MaxKeywords,
		keywordConfidence: opts.KeywordConfidence,
		logger:            opts.Logger.Named("entities"),
	}
}

// Backend returns the recognizer name.
func (e *Extractor) Backend() string { return e.rec.Name() }

// Extract never returns an error. Recognizer failures and panics produce
// an empty, degraded result with zero confidence.
func (e *Extractor) Extract(ctx context.Context, text string) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Warn(ctx, "entity recognizer panicked",
				zap.String("backend", e.rec.Name()),
				zap.String("panic", fmt.Sprint(r)))
			res = Result{Entities: []Entity{}, Keywords: []string{}, Degraded: true}
		}
	}()

	ents, err := e.rec.Recognize(ctx, text)
	if err != nil {
		e.logger.Warn(ctx, "entity recognition failed",
			zap.String("backend", e.rec.Name()),
			zap.Error(err))
		return Result{Entities: []Entity{}, Keywords: []string{}, Degraded: true}
	}
	if ents == nil {
		ents = []Entity{}
	}

	keywords := Keywords(text, e.maxKeywords)
	if keywords == nil {
		keywords = []string{}
	}

	return Result{
		Entities:   ents,
		Keywords:   keywords,
		Confidence: e.confidence(ents, keywords),
	}
}

func (e *Extractor) confidence(ents []Entity, keywords []string) float64 {
	if len(ents) == 0 {
		if len(keywords) > 0 {
			return e.keywordConfidence
		}
		return 0
	}
	var sum float64
	for _, ent := range ents {
		sum += ent.Confidence
	}
	return clamp01(sum / float64(len(ents)))
}

func clamp01(v float64) float64 {
	switch {
	case v != v || v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
