package extractor

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/fyrsmithlabs/taskextract/internal/logging"
	"github.com/fyrsmithlabs/taskextract/pkg/task"
)

// ExtractBatch runs the pipeline on every request with at most concurrency
// pipelines in flight. The result slice always has len(reqs) elements in
// input order. A failing request is isolated to its slot (Valid false,
// FinalConfidence 0, Error set).
//
// When ctx is canceled, requests that have not started get a slot wrapping
// ErrCanceled, started requests run to completion, and ctx.Err() is
// returned alongside the full result slice.
func (e *Extractor) ExtractBatch(ctx context.Context, reqs []task.ExtractionRequest, concurrency int) ([]task.ExtractionResult, error) {
	if concurrency < 1 {
		return nil, task.NewInputError("concurrency", fmt.Sprintf("must be at least 1, got %d", concurrency))
	}
	results := make([]task.ExtractionResult, len(reqs))
	if len(reqs) == 0 {
		return results, nil
	}

	start := time.Now()
	batchID := logging.BatchIDFromContext(ctx)
	if batchID == "" {
		batchID = uuid.NewString()
		ctx = logging.WithBatchID(ctx, batchID)
	}

	ctx, span := e.tracer.Start(ctx, "extractor.ExtractBatch",
		trace.WithAttributes(
			attribute.String("batch.id", batchID),
			attribute.Int("batch.size", len(reqs)),
			attribute.Int("batch.concurrency", concurrency),
		))
	defer span.End()

	var (
		failed   atomic.Int64
		canceled atomic.Int64
	)

	// Started items detach from cancellation so they can finish.
	itemCtx := context.WithoutCancel(ctx)

	var g errgroup.Group
	g.SetLimit(concurrency)
	for i, req := range reqs {
		if err := ctx.Err(); err != nil {
			results[i] = task.Failed(fmt.Errorf("%w: %w", ErrCanceled, err))
			canceled.Add(1)
			continue
		}
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				results[i] = task.Failed(fmt.Errorf("%w: %w", ErrCanceled, err))
				canceled.Add(1)
				return nil
			}
			res, err := e.extractItem(itemCtx, req)
			if err != nil {
				results[i] = task.Failed(err)
				failed.Add(1)
				return nil
			}
			results[i] = res
			return nil
		})
	}
	_ = g.Wait()

	e.metrics.BatchDuration.Observe(time.Since(start).Seconds())
	e.metrics.BatchItems.Observe(float64(len(reqs)))
	e.metrics.CanceledItemTotal.Add(float64(canceled.Load()))

	span.SetAttributes(
		attribute.Int64("batch.failed", failed.Load()),
		attribute.Int64("batch.canceled", canceled.Load()),
	)
	e.logger.Info(ctx, "batch complete",
		zap.Int("size", len(reqs)),
		zap.Int("concurrency", concurrency),
		zap.Int64("failed", failed.Load()),
		zap.Int64("canceled", canceled.Load()),
		zap.Duration("duration", time.Since(start)),
	)

	if err := ctx.Err(); err != nil {
		return results, err
	}
	return results, nil
}

// BatchExtractTasks runs ExtractBatch over texts sharing one source type
// and cache policy.
func (e *Extractor) BatchExtractTasks(ctx context.Context, texts []string, concurrency int, source task.SourceType, useCache bool) ([]task.ExtractionResult, error) {
	reqs := make([]task.ExtractionRequest, len(texts))
	for i, t := range texts {
		reqs[i] = task.ExtractionRequest{Text: t, SourceType: source, UseCache: useCache}
	}
	return e.ExtractBatch(ctx, reqs, concurrency)
}

// extractItem runs one batch element, converting a panic into an error so
// that it stays in its slot.
func (e *Extractor) extractItem(ctx context.Context, req task.ExtractionRequest) (res task.ExtractionResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("extraction panicked: %v", r)
			e.logger.Error(ctx, "batch item panicked", zap.String("panic", fmt.Sprint(r)))
		}
	}()
	return e.run(ctx, req)
}
