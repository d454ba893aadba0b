package extractor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/fyrsmithlabs/taskextract/internal/assemble"
	"github.com/fyrsmithlabs/taskextract/internal/entities"
	"github.com/fyrsmithlabs/taskextract/internal/logging"
	"github.com/fyrsmithlabs/taskextract/internal/sentiment"
	"github.com/fyrsmithlabs/taskextract/internal/textproc"
	"github.com/fyrsmithlabs/taskextract/pkg/task"
)

// Stage is a pipeline state.
type Stage string

const (
	StageReceived          Stage = "RECEIVED"
	StageExtractingSignals Stage = "EXTRACTING_SIGNALS"
	StageAggregating       Stage = "AGGREGATING"
	StageAssembling        Stage = "ASSEMBLING"
	StageDone              Stage = "DONE"
	StageRejected          Stage = "REJECTED"
)

// transitions lists the legal successors of each stage. RECEIVED -> DONE
// is a cache hit; AGGREGATING -> DONE is an invalid decision.
var transitions = map[Stage][]Stage{
	StageReceived:          {StageExtractingSignals, StageRejected, StageDone},
	StageExtractingSignals: {StageAggregating},
	StageAggregating:       {StageAssembling, StageDone},
	StageAssembling:        {StageDone},
}

// CanTransition reports whether from -> to is a legal pipeline step.
func CanTransition(from, to Stage) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transition is possible from s.
func (s Stage) Terminal() bool { return s == StageDone || s == StageRejected }

// Signal names used in logs, metrics and spans.
const (
	componentEntities  = "entities"
	componentIntent    = "intent"
	componentSentiment = "sentiment"
)

type pipelineRun struct {
	stage Stage
	span  trace.Span
}

func (p *pipelineRun) advance(next Stage) {
	if !CanTransition(p.stage, next) {
		panic(fmt.Sprintf("extractor: illegal stage transition %s -> %s", p.stage, next))
	}
	p.stage = next
	p.span.AddEvent(string(next))
}

// signals collects the concurrently computed signal results. A signal that
// has not finished when the item deadline passes is treated as degraded.
type signals struct {
	mu        sync.Mutex
	entities  entities.Result
	intent    task.IntentResult
	sentiment sentiment.Result
	done      map[string]bool
	degraded  map[string]bool
}

func (s *signals) finish(component string, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn()
	s.done[component] = true
}

func (s *signals) degrade(component string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.done[component] = true
	s.degraded[component] = true
}

type signalSnapshot struct {
	entities    entities.Result
	intent      task.IntentResult
	sentiment   sentiment.Result
	confidences task.ComponentConfidences
	degraded    []string
}

// snapshot freezes the collected signals. Unfinished signals become
// degraded and contribute zero confidence.
func (s *signals) snapshot() signalSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range []string{componentEntities, componentIntent, componentSentiment} {
		if !s.done[c] {
			s.degraded[c] = true
		}
	}

	snap := signalSnapshot{
		entities:  s.entities,
		intent:    s.intent,
		sentiment: s.sentiment,
	}
	if s.degraded[componentEntities] || s.entities.Degraded {
		snap.entities = entities.Result{Entities: []entities.Entity{}, Keywords: []string{}}
		s.degraded[componentEntities] = true
	}
	if s.degraded[componentIntent] {
		snap.intent = task.IntentResult{}
	}
	if s.degraded[componentSentiment] {
		snap.sentiment = sentiment.Result{Priority: sentiment.PriorityLow, UrgencyIndicators: []string{}}
	}
	for _, c := range []string{componentEntities, componentIntent, componentSentiment} {
		if s.degraded[c] {
			snap.degraded = append(snap.degraded, c)
		}
	}

	snap.confidences = task.ComponentConfidences{
		NER:       snap.entities.Confidence,
		Intent:    snap.intent.Confidence,
		Sentiment: snap.sentiment.Confidence,
	}
	return snap
}

func (e *Extractor) run(ctx context.Context, req task.ExtractionRequest) (task.ExtractionResult, error) {
	start := time.Now()

	if logging.RequestIDFromContext(ctx) == "" {
		ctx = logging.WithRequestID(ctx, uuid.NewString())
	}
	if req.SourceType.Valid() {
		ctx = logging.WithSourceType(ctx, req.SourceType.String())
	}

	ctx, span := e.tracer.Start(ctx, "extractor.Extract",
		trace.WithAttributes(
			attribute.String("source.type", req.SourceType.String()),
			attribute.Bool("cache.enabled", req.UseCache),
		))
	defer span.End()

	p := &pipelineRun{stage: StageReceived, span: span}
	span.AddEvent(string(StageReceived))

	normalized, err := textproc.Prepare(req.Text, req.SourceType, e.validate)
	if err != nil {
		p.advance(StageRejected)
		e.finish(p, "rejected")
		span.RecordError(err)
		span.SetStatus(codes.Error, "rejected")
		e.logger.Debug(ctx, "request rejected", zap.Error(err))
		return task.ExtractionResult{}, err
	}
	if err := ctx.Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "canceled")
		e.metrics.ExtractionsTotal.WithLabelValues("failed").Inc()
		return task.ExtractionResult{}, err
	}

	textFields := logging.TextFields(normalized, textproc.Fingerprint(normalized))
	key := textproc.CacheKey(normalized, req.SourceType)

	if req.UseCache {
		if cached, ok := e.cache.Get(key); ok {
			span.SetAttributes(attribute.Bool("cache.hit", true))
			p.advance(StageDone)
			e.finish(p, "cached")
			e.logger.Debug(ctx, "extraction served from cache", textFields...)
			return cached.Clone(), nil
		}
	}

	p.advance(StageExtractingSignals)
	snap := e.collect(ctx, normalized, req.UseCache)
	for _, c := range snap.degraded {
		e.metrics.DegradedTotal.WithLabelValues(c).Inc()
		span.AddEvent("degraded", trace.WithAttributes(attribute.String("component", c)))
	}

	p.advance(StageAggregating)
	decision := e.aggregator.Load().Aggregate(snap.confidences, snap.intent.Resolved())
	result := task.ExtractionResult{
		Valid:                decision.Valid,
		FinalConfidence:      decision.FinalConfidence,
		Intent:               snap.intent.Intent,
		RawIntentLabel:       snap.intent.RawLabel,
		ComponentConfidences: snap.confidences,
	}

	if decision.Valid {
		p.advance(StageAssembling)
		info := e.assembler.Assemble(assemble.Input{
			Text:      normalized,
			Entities:  snap.entities.Entities,
			Keywords:  snap.entities.Keywords,
			Intent:    snap.intent,
			Sentiment: snap.sentiment,
		})
		result.TaskInfo = &info
	}
	p.advance(StageDone)

	if req.UseCache && len(snap.degraded) == 0 {
		e.cache.Put(key, result.Clone())
	}

	outcome := "invalid"
	if result.Valid {
		outcome = "valid"
	}
	e.finish(p, outcome)
	e.metrics.Duration.Observe(time.Since(start).Seconds())
	e.metrics.FinalConfidence.Observe(result.FinalConfidence)

	span.SetAttributes(
		attribute.Bool("result.valid", result.Valid),
		attribute.Float64("result.final_confidence", result.FinalConfidence),
		attribute.String("result.intent", result.Intent),
	)

	fields := append(textFields,
		zap.Bool("valid", result.Valid),
		zap.Float64("final_confidence", result.FinalConfidence),
		zap.String("intent", result.Intent),
		zap.Strings("degraded", snap.degraded),
		zap.Duration("duration", time.Since(start)),
	)
	e.logger.Info(ctx, "extraction complete", fields...)
	return result, nil
}

func (e *Extractor) finish(p *pipelineRun, outcome string) {
	e.metrics.TerminalStage.WithLabelValues(string(p.stage)).Inc()
	e.metrics.ExtractionsTotal.WithLabelValues(outcome).Inc()
}

// collect runs the three signals concurrently. It returns when all of them
// finished or the item deadline passed, whichever comes first.
func (e *Extractor) collect(ctx context.Context, normalized string, useCache bool) signalSnapshot {
	itemCtx := ctx
	if e.itemTimeout > 0 {
		var cancel context.CancelFunc
		itemCtx, cancel = context.WithTimeout(ctx, e.itemTimeout)
		defer cancel()
	}

	s := &signals{done: make(map[string]bool, 3), degraded: make(map[string]bool, 3)}

	var g errgroup.Group
	g.Go(e.signal(itemCtx, s, componentEntities, func() error {
		r := e.entities.Extract(itemCtx, normalized)
		s.finish(componentEntities, func() { s.entities = r })
		return nil
	}))
	g.Go(e.signal(itemCtx, s, componentIntent, func() error {
		r, err := e.classifier.ClassifyNormalized(itemCtx, normalized, useCache)
		if err != nil {
			return err
		}
		s.finish(componentIntent, func() { s.intent = r })
		return nil
	}))
	g.Go(e.signal(itemCtx, s, componentSentiment, func() error {
		r := e.scorer.Score(normalized)
		s.finish(componentSentiment, func() { s.sentiment = r })
		return nil
	}))

	done := make(chan struct{})
	go func() {
		_ = g.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-itemCtx.Done():
		e.logger.Warn(ctx, "signal deadline exceeded", zap.Error(itemCtx.Err()))
	}
	return s.snapshot()
}

// signal wraps fn so that an error or panic degrades the component instead
// of failing the extraction.
func (e *Extractor) signal(ctx context.Context, s *signals, component string, fn func() error) func() error {
	return func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("%s signal panicked: %v", component, r)
			}
			if err != nil {
				s.degrade(component)
				e.logger.Warn(ctx, "signal degraded",
					zap.String("component", component),
					zap.Error(err))
			}
		}()
		return fn()
	}
}
