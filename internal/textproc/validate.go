package textproc

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/fyrsmithlabs/taskextract/pkg/task"
)

// DefaultMaxLength is the default limit on input length, in runes.
const DefaultMaxLength = 20000

// ValidateOptions bounds accepted input.
type ValidateOptions struct {
	// MaxLength in runes; zero means DefaultMaxLength, negative disables.
	MaxLength int
}

// Validate rejects text the pipeline must not process. Every failure is a
// *task.InputError.
func Validate(text string, opts ValidateOptions) error {
	if !utf8.ValidString(text) {
		return task.NewInputError("text", "not valid UTF-8")
	}
	if strings.TrimSpace(text) == "" {
		return task.NewInputError("text", "must not be empty")
	}

	maxLen := opts.MaxLength
	if maxLen == 0 {
		maxLen = DefaultMaxLength
	}
	if maxLen > 0 {
		if n := utf8.RuneCountInString(text); n > maxLen {
			return task.NewInputError("text", fmt.Sprintf("length %d exceeds maximum %d", n, maxLen))
		}
	}

	for i, r := range text {
		if r == '\n' || r == '\t' || r == '\r' {
			continue
		}
		if unicode.IsControl(r) {
			return task.NewInputError("text", fmt.Sprintf("control character %U at byte %d", r, i))
		}
	}
	return nil
}

// Prepare validates text and returns its normalized form. Normalization can
// strip everything (e.g. an email that is only quoted history), which is
// reported as empty input.
func Prepare(text string, source task.SourceType, opts ValidateOptions) (string, error) {
	if !source.Valid() {
		return "", task.NewInputError("source_type", fmt.Sprintf("unknown source type %q", source))
	}
	if err := Validate(text, opts); err != nil {
		return "", err
	}
	normalized := Normalize(text, source)
	if normalized == "" {
		return "", task.NewInputError("text", "no content after normalization")
	}
	return normalized, nil
}

// CacheKey is the content hash that keys cached results. Identical
// normalized text from the same source type maps to the same key no matter
// who submitted it.
func CacheKey(normalized string, source task.SourceType) string {
	h := sha256.New()
	h.Write([]byte(source))
	h.Write([]byte{0})
	h.Write([]byte(normalized))
	return hex.EncodeToString(h.Sum(nil))
}

// Fingerprint is a short, log-safe identifier for text.
func Fingerprint(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:6])
}
