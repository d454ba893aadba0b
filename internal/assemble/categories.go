package assemble

import (
	"math"
	"regexp"
	"slices"
	"strings"
)

// TagThreshold is the minimum category score that becomes a tag.
const TagThreshold = 0.5

// DefaultCategoryRules maps categories to keywords and phrases that
// indicate them.
var DefaultCategoryRules = map[string][]string{
	"engineering":   {"bug", "fix", "deploy", "deployment", "code", "api", "server", "build", "release", "merge", "pull request", "pr", "database", "migration", "refactor", "outage", "production", "staging", "test", "tests", "ci", "pipeline", "ssl", "certificate"},
	"documentation": {"docs", "documentation", "readme", "wiki", "write-up", "runbook", "guide", "notes", "minutes", "spec"},
	"meeting":       {"meeting", "call", "sync", "standup", "stand-up", "agenda", "calendar", "invite", "1:1", "retro", "catch-up"},
	"reporting":     {"report", "reports", "dashboard", "metrics", "summary", "quarterly", "kpi", "kpis", "analysis", "numbers", "figures", "forecast"},
	"review":        {"review", "feedback", "approve", "approval", "proofread", "sign off", "sign-off", "code review"},
	"customer":      {"customer", "customers", "client", "clients", "account", "support", "ticket", "escalation", "user", "users"},
	"finance":       {"invoice", "invoices", "budget", "expense", "expenses", "payment", "payroll", "billing", "receipt", "cost", "costs", "reimbursement", "purchase order"},
	"operations":    {"onboarding", "hiring", "vendor", "order", "shipping", "inventory", "travel", "office", "equipment", "logistics", "contract", "renewal", "license"},
	"presentation":  {"slides", "deck", "presentation", "demo", "keynote"},
}

// intentCategory nudges the category matching an intent.
var intentCategory = map[string]string{
	"MEETING_REQUEST": "meeting",
}

type categoryRule struct {
	name string
	re   *regexp.Regexp
}

// Categorizer scores text against keyword rules.
type Categorizer struct {
	rules []categoryRule
}

// NewCategorizer compiles rules; nil or empty rules select
// DefaultCategoryRules.
func NewCategorizer(rules map[string][]string) *Categorizer {
	if len(rules) == 0 {
		rules = DefaultCategoryRules
	}

	names := make([]string, 0, len(rules))
	for n := range rules {
		names = append(names, n)
	}
	slices.Sort(names)

	c := &Categorizer{}
	for _, n := range names {
		kws := slices.Clone(rules[n])
		if len(kws) == 0 {
			continue
		}
		// Longest first so phrases win over their prefixes.
		slices.SortFunc(kws, func(a, b string) int { return len(b) - len(a) })
		quoted := make([]string, len(kws))
		for i, k := range kws {
			quoted[i] = regexp.QuoteMeta(strings.ToLower(k))
		}
		c.rules = append(c.rules, categoryRule{
			name: n,
			re:   regexp.MustCompile(`(?i)(?:^|[^\pL\pN])(` + strings.Join(quoted, "|") + `)(?:$|[^\pL\pN])`),
		})
	}
	return c
}

// Score returns a score in [0,1] for every category. Each keyword hit
// halves the remaining distance to 1, so one hit scores 0.5.
func (c *Categorizer) Score(text, intent string) map[string]float64 {
	out := make(map[string]float64, len(c.rules))
	for _, r := range c.rules {
		hits := countMatches(r.re, text)
		if intentCategory[intent] == r.name {
			hits++
		}
		out[r.name] = 1 - math.Pow(0.5, float64(hits))
	}
	return out
}

// countMatches counts non-overlapping keyword hits. The pattern consumes
// one boundary character on each side, so matching resumes one byte
// before the previous match end.
func countMatches(re *regexp.Regexp, text string) int {
	n := 0
	for off := 0; off < len(text); {
		loc := re.FindStringSubmatchIndex(text[off:])
		if loc == nil {
			break
		}
		n++
		next := off + loc[3]
		if next <= off {
			next = off + 1
		}
		off = next
	}
	return n
}

// Tags returns the categories scoring at least TagThreshold, highest
// first, ties by name.
func Tags(scores map[string]float64) []string {
	var tags []string
	for n, s := range scores {
		if s >= TagThreshold {
			tags = append(tags, n)
		}
	}
	slices.SortFunc(tags, func(a, b string) int {
		if scores[a] != scores[b] {
			if scores[a] > scores[b] {
				return -1
			}
			return 1
		}
		return strings.Compare(a, b)
	})
	return tags
}
