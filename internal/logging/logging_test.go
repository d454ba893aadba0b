package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestNewLogger(t *testing.T) {
	logger, err := NewLogger(NewDefaultConfig(), nil)
	require.NoError(t, err)
	require.NotNil(t, logger)
	assert.True(t, logger.Enabled(zapcore.InfoLevel))
	assert.False(t, logger.Enabled(zapcore.DebugLevel))
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "defaults", mutate: func(*Config) {}},
		{name: "bad format", mutate: func(c *Config) { c.Format = "xml" }, wantErr: "format"},
		{name: "no outputs", mutate: func(c *Config) { c.Output = OutputConfig{} }, wantErr: "output"},
		{name: "zero tick", mutate: func(c *Config) { c.Sampling.Tick = 0 }, wantErr: "tick"},
		{name: "bad pattern", mutate: func(c *Config) { c.Redaction.Patterns = []string{"("} }, wantErr: "invalid redaction pattern"},
		{name: "empty field value", mutate: func(c *Config) { c.Fields = map[string]string{"k": ""} }, wantErr: "empty value"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLevelFromString(t *testing.T) {
	l, err := LevelFromString("trace")
	require.NoError(t, err)
	assert.Equal(t, TraceLevel, l)

	l, err = LevelFromString("warn")
	require.NoError(t, err)
	assert.Equal(t, zapcore.WarnLevel, l)

	_, err = LevelFromString("loud")
	assert.Error(t, err)
}

func TestLogger_ContextFields(t *testing.T) {
	tl := NewTestLogger()

	traceID, _ := trace.TraceIDFromHex("0102030405060708090a0b0c0d0e0f10")
	spanID, _ := trace.SpanIDFromHex("0102030405060708")
	sc := trace.NewSpanContext(trace.SpanContextConfig{TraceID: traceID, SpanID: spanID, TraceFlags: trace.FlagsSampled})

	ctx := trace.ContextWithSpanContext(context.Background(), sc)
	ctx = WithRequestID(ctx, "req-1")
	ctx = WithBatchID(ctx, "batch_7")
	ctx = WithSourceType(ctx, "EMAIL")

	tl.Info(ctx, "extraction complete", zap.Float64("final_confidence", 0.9))

	tl.AssertLogged(t, zapcore.InfoLevel, "extraction complete")
	tl.AssertField(t, "extraction complete", "request.id", "req-1")
	tl.AssertField(t, "extraction complete", "batch.id", "batch_7")
	tl.AssertField(t, "extraction complete", "source.type", "EMAIL")
	tl.AssertField(t, "extraction complete", "trace_id", traceID.String())
}

func TestWithRequestID_PanicsOnInvalid(t *testing.T) {
	assert.Panics(t, func() { WithRequestID(context.Background(), "") })
	assert.Panics(t, func() { WithRequestID(context.Background(), "has space") })
	assert.NotPanics(t, func() { WithRequestID(context.Background(), "8c5f-42_a") })
}

func TestFromContext(t *testing.T) {
	assert.NotNil(t, FromContext(context.Background()))

	tl := NewTestLogger()
	ctx := WithLogger(context.Background(), tl.Logger)
	assert.Same(t, tl.Logger, FromContext(ctx))
}

func TestTraceLevel(t *testing.T) {
	tl := NewTestLogger()
	tl.Trace(context.Background(), "stage transition", zap.String("stage", "AGGREGATING"))
	tl.AssertLogged(t, TraceLevel, "stage transition")
}

func TestRedactingEncoder(t *testing.T) {
	enc, err := NewRedactingEncoder(newEncoder("json"), NewDefaultConfig().Redaction)
	require.NoError(t, err)

	var buf bytes.Buffer
	core := zapcore.NewCore(enc, zapcore.AddSync(&buf), zapcore.DebugLevel)
	z := zap.New(core)

	z.Info("request",
		zap.String("api_key", "sk-ant-REDACTED"),
		zap.String("header", "Bearer abc.def"),
		zap.String("text", "Please send the contract"),
		zap.String("stage", "DONE"),
	)

	var out map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	assert.Equal(t, "[REDACTED]", out["api_key"])
	assert.Equal(t, "[REDACTED:pattern]", out["header"])
	assert.Equal(t, "[REDACTED]", out["text"])
	assert.Equal(t, "DONE", out["stage"])
}

func TestRedactingEncoder_WithFields(t *testing.T) {
	enc, err := NewRedactingEncoder(newEncoder("json"), NewDefaultConfig().Redaction)
	require.NoError(t, err)

	var buf bytes.Buffer
	z := zap.New(zapcore.NewCore(enc, zapcore.AddSync(&buf), zapcore.DebugLevel)).
		With(zap.String("token", "abc"))
	z.Info("hello")

	assert.NotContains(t, buf.String(), `"token":"abc"`)
	assert.Contains(t, buf.String(), `"token":"[REDACTED]"`)
}

func TestSampledCore_ErrorsNeverSampled(t *testing.T) {
	var buf bytes.Buffer
	base := zapcore.NewCore(newEncoder("json"), zapcore.AddSync(&buf), zapcore.DebugLevel)
	core := newSampledCore(base, SamplingConfig{Enabled: true, Tick: 1e9, Initial: 1, Thereafter: 0})
	z := zap.New(core)

	for i := 0; i < 5; i++ {
		z.Info("repeated")
		z.Error("failure")
	}

	assert.Equal(t, 1, bytes.Count(buf.Bytes(), []byte(`"repeated"`)))
	assert.Equal(t, 5, bytes.Count(buf.Bytes(), []byte(`"failure"`)))
}

func TestTextFields(t *testing.T) {
	fields := TextFields("héllo", "abc123")
	require.Len(t, fields, 2)
	assert.Equal(t, int64(5), fields[0].Integer)
	assert.Equal(t, "abc123", fields[1].String)
}
