package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 0.4, cfg.Weights.NER)
	assert.Equal(t, 0.4, cfg.Weights.Intent)
	assert.Equal(t, 0.2, cfg.Weights.Sentiment)
	assert.Equal(t, "TASK_CREATION", cfg.Intent.Mapping["create_task"])
}

func TestLoad_NoFile(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default().Extraction, cfg.Extraction)
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
extraction:
  confidence_threshold: 0.9
  cache_size: 64
  item_timeout: 500ms
weights:
  ner: 0.5
  intent: 0.3
  sentiment: 0.2
intent:
  backend: semantic
  mapping:
    follow_up: TASK_CREATION
    chitchat: ""
logging:
  level: debug
  format: console
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 0.9, cfg.Extraction.ConfidenceThreshold)
	assert.Equal(t, 64, cfg.Extraction.CacheSize)
	assert.Equal(t, 500*time.Millisecond, cfg.Extraction.ItemTimeout.Duration())
	assert.Equal(t, 4, cfg.Extraction.Concurrency, "unset keys keep defaults")
	assert.Equal(t, 0.5, cfg.Weights.NER)
	assert.Equal(t, "semantic", cfg.Intent.Backend)
	assert.Equal(t, "TASK_CREATION", cfg.Intent.Mapping["follow_up"])
	assert.Equal(t, "TASK_CREATION", cfg.Intent.Mapping["create_task"])
	assert.Equal(t, "", cfg.Intent.Mapping["chitchat"])
	assert.Equal(t, zapcore.DebugLevel, cfg.Logging.Level)
	assert.Equal(t, "console", cfg.Logging.Format)
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := writeConfig(t, "extraction:\n  confidence_threshold: 0.9\n")

	t.Setenv("TASKEXTRACT_EXTRACTION_CONFIDENCE_THRESHOLD", "0.85")
	t.Setenv("TASKEXTRACT_INTENT_BACKEND", "anthropic")
	t.Setenv("TASKEXTRACT_INTENT_ANTHROPIC_API_KEY", "sk-test-123")
	t.Setenv("TASKEXTRACT_INTENT_ANTHROPIC_MAX_RETRIES", "5")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 0.85, cfg.Extraction.ConfidenceThreshold)
	assert.Equal(t, "anthropic", cfg.Intent.Backend)
	assert.Equal(t, "sk-test-123", cfg.Intent.Anthropic.APIKey.Value())
	assert.Equal(t, 5, cfg.Intent.Anthropic.MaxRetries)
}

func TestLoad_AnthropicKeyFallback(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "sk-fallback")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "sk-fallback", cfg.Intent.Anthropic.APIKey.Value())
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{"threshold above one", "extraction:\n  confidence_threshold: 1.5\n", "confidence_threshold"},
		{"zero concurrency", "extraction:\n  concurrency: 0\n", "concurrency"},
		{"negative weight", "weights:\n  ner: -1\n", "non-negative"},
		{"zero weights", "weights:\n  ner: 0\n  intent: 0\n  sentiment: 0\n", "positive"},
		{"unknown intent backend", "intent:\n  backend: magic\n", "intent.backend"},
		{"unknown entity backend", "entities:\n  backend: spacy\n", "entities.backend"},
		{"bad log format", "logging:\n  format: xml\n", "logging"},
		{"malformed yaml", "extraction: [", "failed to load"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoad_FileChecks(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = Load(t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "regular file")

	path := writeConfig(t, "extraction:\n  cache_size: 1\n")
	require.NoError(t, os.Chmod(path, 0o666))
	_, err = Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "world-writable")
}

func TestEnvKey(t *testing.T) {
	tests := map[string]string{
		"TASKEXTRACT_EXTRACTION_CACHE_SIZE":       "extraction.cache_size",
		"TASKEXTRACT_INTENT_SEMANTIC_TOP_K":       "intent.semantic.top_k",
		"TASKEXTRACT_LOGGING_OUTPUT_STDERR":       "logging.output.stderr",
		"TASKEXTRACT_TELEMETRY_METRICS_ENABLED":   "telemetry.metrics.enabled",
		"TASKEXTRACT_METRICS_ADDR":                "metrics.addr",
		"TASKEXTRACT_TELEMETRY_SAMPLING_RATE":     "telemetry.sampling.rate",
		"TASKEXTRACT_ENTITIES_KEYWORD_CONFIDENCE": "entities.keyword_confidence",
	}
	for in, want := range tests {
		assert.Equal(t, want, envKey(in), in)
	}
}

func TestSecret_NeverLeaks(t *testing.T) {
	s := Secret("sk-live-abc")
	assert.Equal(t, "[REDACTED]", s.String())
	assert.Equal(t, "[REDACTED]", fmt.Sprintf("%v", s))
	assert.NotContains(t, fmt.Sprintf("%#v", s), "sk-live")

	b, err := json.Marshal(struct{ Key Secret }{s})
	require.NoError(t, err)
	assert.NotContains(t, string(b), "sk-live")
	assert.Equal(t, "sk-live-abc", s.Value())
	assert.False(t, Secret("").IsSet())
}

func TestDuration_Text(t *testing.T) {
	var d Duration
	require.NoError(t, d.UnmarshalText([]byte("1m30s")))
	assert.Equal(t, 90*time.Second, d.Duration())

	assert.Error(t, d.UnmarshalText([]byte("-1s")))
	assert.Error(t, d.UnmarshalText([]byte("-5")))
	assert.Error(t, d.UnmarshalText([]byte("soon")))

	b, err := d.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "1m30s", string(b))

	require.NoError(t, d.UnmarshalText([]byte(" 1500 ")))
	assert.Equal(t, 1500*time.Millisecond, d.Duration())
}

func TestSecret_TrimsWhitespace(t *testing.T) {
	var s Secret
	require.NoError(t, s.UnmarshalText([]byte("  sk-abc\n")))
	assert.Equal(t, "sk-abc", s.Value())

	require.NoError(t, s.UnmarshalText([]byte("   ")))
	assert.False(t, s.IsSet())
}
