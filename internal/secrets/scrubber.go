package secrets

import (
	"regexp"
	"slices"
	"strings"
)

// Finding is one detected secret, without its value.
type Finding struct {
	RuleID     string `json:"rule_id"`
	Severity   string `json:"severity"`
	StartIndex int    `json:"start_index"`
	EndIndex   int    `json:"end_index"`
	Line       int    `json:"line"`
}

// Result is the outcome of a scrub.
type Result struct {
	Scrubbed string    `json:"scrubbed"`
	Findings []Finding `json:"findings,omitempty"`
}

// HasFindings reports whether any secret was detected.
func (r Result) HasFindings() bool { return len(r.Findings) > 0 }

// RuleIDs returns the distinct rule IDs that matched, in first-seen order.
func (r Result) RuleIDs() []string {
	var ids []string
	for _, f := range r.Findings {
		if !slices.Contains(ids, f.RuleID) {
			ids = append(ids, f.RuleID)
		}
	}
	return ids
}

// Scrubber detects and redacts secrets. It is safe for concurrent use.
type Scrubber struct {
	enabled   bool
	redaction string
	rules     []*compiledRule
	allow     []*regexp.Regexp
}

// New compiles cfg. A nil cfg uses DefaultConfig.
func New(cfg *Config) (*Scrubber, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	s := &Scrubber{enabled: cfg.Enabled, redaction: cfg.RedactionString}
	if s.redaction == "" {
		s.redaction = "[REDACTED]"
	}
	if !cfg.Enabled {
		return s, nil
	}
	rules, allow, err := cfg.compile()
	if err != nil {
		return nil, err
	}
	s.rules, s.allow = rules, allow
	return s, nil
}

// MustNew is New that panics on an invalid configuration.
func MustNew(cfg *Config) *Scrubber {
	s, err := New(cfg)
	if err != nil {
		panic(err)
	}
	return s
}

// Enabled reports whether scrubbing is active.
func (s *Scrubber) Enabled() bool { return s != nil && s.enabled }

// Redact returns content with secrets replaced.
func (s *Scrubber) Redact(content string) string {
	return s.Scrub(content).Scrubbed
}

// Scrub detects secrets and returns the redacted content with findings.
// Overlapping matches are merged into one redacted span.
func (s *Scrubber) Scrub(content string) Result {
	if !s.Enabled() || content == "" {
		return Result{Scrubbed: content}
	}

	var findings []Finding
	for _, rule := range s.rules {
		if !rule.applies(content) {
			continue
		}
		for _, m := range rule.pattern.FindAllStringIndex(content, -1) {
			if s.allowed(content[m[0]:m[1]]) {
				continue
			}
			findings = append(findings, Finding{
				RuleID:     rule.ID,
				Severity:   rule.Severity,
				StartIndex: m[0],
				EndIndex:   m[1],
				Line:       strings.Count(content[:m[0]], "\n") + 1,
			})
		}
	}
	if len(findings) == 0 {
		return Result{Scrubbed: content}
	}

	slices.SortFunc(findings, func(a, b Finding) int { return a.StartIndex - b.StartIndex })

	var b strings.Builder
	pos, end := 0, -1
	for _, f := range findings {
		switch {
		case f.StartIndex >= end:
			b.WriteString(content[pos:f.StartIndex])
			b.WriteString(s.redaction)
			end = f.EndIndex
		case f.EndIndex > end:
			end = f.EndIndex
		}
		pos = max(pos, end)
	}
	b.WriteString(content[pos:])

	return Result{Scrubbed: b.String(), Findings: findings}
}

func (r *compiledRule) applies(content string) bool {
	if len(r.keywords) == 0 {
		return true
	}
	for _, kw := range r.keywords {
		if kw.MatchString(content) {
			return true
		}
	}
	return false
}

func (s *Scrubber) allowed(match string) bool {
	for _, re := range s.allow {
		if re.MatchString(match) {
			return true
		}
	}
	return false
}
