package config

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

const (
	// EnvPrefix prefixes every environment override.
	EnvPrefix = "TASKEXTRACT_"

	maxConfigFileSize = 1024 * 1024 // 1MB
)

// nestedSections are second-level keys whose env names would otherwise be
// split at the wrong underscore.
var nestedSections = []string{"anthropic", "semantic", "output", "sampling", "redaction", "metrics", "shutdown"}

// Load reads configuration from path (optional; "" skips the file), applies
// environment overrides and validates the result.
//
// Environment variables map to keys by stripping the prefix, lowercasing and
// splitting the first underscore into section and field:
//
//	TASKEXTRACT_EXTRACTION_CONFIDENCE_THRESHOLD -> extraction.confidence_threshold
//	TASKEXTRACT_INTENT_BACKEND                  -> intent.backend
//	TASKEXTRACT_INTENT_ANTHROPIC_API_KEY        -> intent.anthropic.api_key
//
// ANTHROPIC_API_KEY is honoured when intent.anthropic.api_key is unset.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		content, err := readConfigFile(path)
		if err != nil {
			return nil, err
		}
		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := Default()
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if !cfg.Intent.Anthropic.APIKey.IsSet() {
		if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" {
			cfg.Intent.Anthropic.APIKey = Secret(key)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// envKey maps TASKEXTRACT_SECTION_FIELD_NAME to section.field_name, keeping
// known nested sections as their own level.
func envKey(s string) string {
	lower := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	section, field, ok := strings.Cut(lower, "_")
	if !ok {
		return lower
	}
	for _, nested := range nestedSections {
		if rest, found := strings.CutPrefix(field, nested+"_"); found {
			return section + "." + nested + "." + rest
		}
	}
	return section + "." + field
}

// readConfigFile reads path through one file descriptor, rejecting
// non-regular, world-writable and oversized files.
func readConfigFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("config file %s is not a regular file", path)
	}
	if info.Mode().Perm()&0o002 != 0 {
		return nil, fmt.Errorf("insecure config file permissions: %v (world-writable)", info.Mode().Perm())
	}
	if info.Size() > maxConfigFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxConfigFileSize)
	}

	content, err := io.ReadAll(io.LimitReader(f, maxConfigFileSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return content, nil
}
