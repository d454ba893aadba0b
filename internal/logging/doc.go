// Package logging provides structured logging for the extraction engine.
//
// Logger wraps Zap with:
//   - a Trace level (-2, below Debug) for per-stage pipeline events
//   - stdout output plus optional OpenTelemetry output via otelzap
//   - context field injection (trace_id, span_id, request.id, source.type, batch.id)
//   - key and pattern based redaction
//   - level-aware sampling (errors are never sampled)
//
// Usage:
//
//	logger, err := logging.NewLogger(logging.NewDefaultConfig(), nil)
//	if err != nil {
//	    return err
//	}
//	defer logger.Sync()
//
//	ctx = logging.WithRequestID(ctx, uuid.NewString())
//	ctx = logging.WithSourceType(ctx, "EMAIL")
//	logger.Info(ctx, "extraction complete", zap.Float64("final_confidence", 0.93))
//
// Communication text is never logged. Use TextFields to log its length and
// fingerprint instead.
package logging
