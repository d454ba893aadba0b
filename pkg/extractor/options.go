package extractor

import (
	"net/http"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/fyrsmithlabs/taskextract/internal/embeddings"
	"github.com/fyrsmithlabs/taskextract/internal/entities"
	"github.com/fyrsmithlabs/taskextract/internal/intent"
	"github.com/fyrsmithlabs/taskextract/internal/logging"
	"github.com/fyrsmithlabs/taskextract/internal/secrets"
)

type options struct {
	logger           *logging.Logger
	tracer           trace.Tracer
	clock            func() time.Time
	intentModel      intent.Model
	recognizer       entities.Recognizer
	categoryRules    map[string][]string
	scrubber         *secrets.Scrubber
	httpClient       *http.Client
	embeddingMetrics *embeddings.Metrics
}

// Option configures an Extractor.
type Option func(*options)

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithTracer sets the tracer used for pipeline spans.
func WithTracer(t trace.Tracer) Option {
	return func(o *options) { o.tracer = t }
}

// WithClock sets the reference time used to resolve relative dates.
func WithClock(clock func() time.Time) Option {
	return func(o *options) { o.clock = clock }
}

// WithIntentModel replaces the configured intent backend.
func WithIntentModel(m intent.Model) Option {
	return func(o *options) { o.intentModel = m }
}

// WithRecognizer replaces the configured entity recognizer.
func WithRecognizer(r entities.Recognizer) Option {
	return func(o *options) { o.recognizer = r }
}

// WithCategoryRules replaces the default task category rules.
func WithCategoryRules(rules map[string][]string) Option {
	return func(o *options) { o.categoryRules = rules }
}

// WithScrubber sets the secret scrubber used before text leaves the
// process.
func WithScrubber(s *secrets.Scrubber) Option {
	return func(o *options) { o.scrubber = s }
}

// WithHTTPClient sets the HTTP client for remote backends.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.httpClient = c }
}

// WithEmbeddingMetrics records embedding generation metrics.
func WithEmbeddingMetrics(m *embeddings.Metrics) Option {
	return func(o *options) { o.embeddingMetrics = m }
}
