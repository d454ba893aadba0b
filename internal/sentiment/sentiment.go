// Package sentiment scores message tone and detects urgency cues.
package sentiment

import (
	"math"
	"regexp"
	"strings"
	"unicode"
)

// Priority levels derived from urgency.
const (
	PriorityHigh   = "high"
	PriorityMedium = "medium"
	PriorityLow    = "low"
)

// Result is the sentiment/urgency signal for one text.
type Result struct {
	// Score is the tone in [-1, 1].
	Score             float64  `json:"score"`
	UrgencyIndicators []string `json:"urgency_indicators"`
	Confidence        float64  `json:"confidence"`
	Priority          string   `json:"priority"`
}

// Scorer is a lexicon scorer. The zero value is ready to use.
type Scorer struct{}

// New returns a Scorer.
func New() *Scorer { return &Scorer{} }

// Score analyzes text. It never fails.
func (s *Scorer) Score(text string) Result {
	words := tokenize(text)
	res := Result{
		Score:             polarity(words),
		UrgencyIndicators: urgency(text, words),
		Confidence:        confidence(text, words),
	}
	res.Priority = priority(res.UrgencyIndicators)
	return res
}

func tokenize(text string) []string {
	return strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\''
	})
}

// polarity sums lexicon weights with negation and intensifier handling and
// squashes the total into [-1, 1].
func polarity(words []string) float64 {
	var total float64
	for i, w := range words {
		lw := strings.ToLower(w)
		v, ok := lexicon[lw]
		if !ok {
			continue
		}
		for back := 1; back <= 3 && i-back >= 0; back++ {
			prev := strings.ToLower(words[i-back])
			if negators[prev] {
				v = -v * 0.75
				break
			}
		}
		if i > 0 {
			if boost, ok := intensifiers[strings.ToLower(words[i-1])]; ok {
				v *= boost
			}
		}
		total += v
	}
	if total == 0 {
		return 0
	}
	// alpha controls how fast the score saturates.
	const alpha = 4.0
	return total / math.Sqrt(total*total+alpha)
}

func confidence(text string, words []string) float64 {
	if strings.IndexFunc(text, unicode.IsLetter) < 0 {
		return 0
	}
	if len(words) < 3 {
		return 0.5
	}
	return 1.0
}

func priority(indicators []string) string {
	for _, ind := range indicators {
		if criticalCues[ind] {
			return PriorityHigh
		}
	}
	switch {
	case len(indicators) >= 2:
		return PriorityHigh
	case len(indicators) == 1:
		return PriorityMedium
	default:
		return PriorityLow
	}
}

var deadlinePattern = regexp.MustCompile(`(?i)\b(asap|a\.s\.a\.p|urgent(?:ly)?|immediately|right away|eod|eow|end of (?:the )?day|today|tonight|tomorrow|overdue|deadline|time[- ]sensitive|by (?:monday|tuesday|wednesday|thursday|friday|saturday|sunday|noon|tonight|tomorrow|eod))\b`)

var criticalPattern = regexp.MustCompile(`(?i)\b(critical|blocker|blocking|outage|emergency|sev[- ]?[01]|p0|production (?:is )?down)\b`)

// criticalCues force high priority.
var criticalCues = map[string]bool{
	"critical": true, "blocker": true, "blocking": true, "outage": true,
	"emergency": true, "sev0": true, "sev1": true, "p0": true, "production down": true,
	"asap": true, "urgent": true, "immediately": true,
}

// urgency returns normalized indicators in order found, deduplicated.
func urgency(text string, words []string) []string {
	type hit struct {
		pos int
		cue string
	}
	var hits []hit
	for _, re := range []*regexp.Regexp{deadlinePattern, criticalPattern} {
		for _, m := range re.FindAllStringIndex(text, -1) {
			hits = append(hits, hit{m[0], normalizeCue(text[m[0]:m[1]])})
		}
	}
	if i := strings.Index(text, "!!"); i >= 0 {
		hits = append(hits, hit{i, "!!"})
	}
	for _, w := range words {
		if isShouting(w) {
			hits = append(hits, hit{strings.Index(text, w), "ALL_CAPS"})
			break
		}
	}

	// Insertion sort keeps equal positions in discovery order.
	for i := 1; i < len(hits); i++ {
		for j := i; j > 0 && hits[j].pos < hits[j-1].pos; j-- {
			hits[j], hits[j-1] = hits[j-1], hits[j]
		}
	}

	out := []string{}
	seen := map[string]bool{}
	for _, h := range hits {
		if !seen[h.cue] {
			seen[h.cue] = true
			out = append(out, h.cue)
		}
	}
	return out
}

func normalizeCue(s string) string {
	s = strings.ToLower(strings.Join(strings.Fields(s), " "))
	switch s {
	case "a.s.a.p":
		return "asap"
	case "urgently":
		return "urgent"
	case "sev 0", "sev-0":
		return "sev0"
	case "sev 1", "sev-1":
		return "sev1"
	case "production is down":
		return "production down"
	case "time sensitive":
		return "time-sensitive"
	}
	return s
}

// isShouting reports an all-caps word of 4+ letters that is not a common
// acronym.
func isShouting(w string) bool {
	letters := 0
	for _, r := range w {
		if !unicode.IsLetter(r) {
			continue
		}
		if !unicode.IsUpper(r) {
			return false
		}
		letters++
	}
	return letters >= 4 && !acronyms[w]
}

var acronyms = map[string]bool{
	"ASAP": true, "HTTP": true, "JSON": true, "HTML": true, "FYI": true, "TODO": true,
	"AWS": true, "EOD": true, "EOW": true, "SLA": true, "API": true, "URL": true, "CSV": true,
	"OKR": true, "OKRS": true, "KPI": true, "KPIS": true, "NASA": true, "GDPR": true, "SOC2": true,
}

var negators = map[string]bool{
	"not": true, "no": true, "never": true, "don't": true, "doesn't": true, "didn't": true,
	"isn't": true, "wasn't": true, "aren't": true, "won't": true, "can't": true, "cannot": true,
	"without": true, "hardly": true,
}

var intensifiers = map[string]float64{
	"very": 1.5, "really": 1.4, "extremely": 1.8, "super": 1.5, "so": 1.3, "totally": 1.4,
	"slightly": 0.6, "somewhat": 0.7, "bit": 0.7,
}

var lexicon = map[string]float64{
	"good": 1, "great": 1.5, "excellent": 2, "awesome": 2, "amazing": 2, "thanks": 1, "thank": 1,
	"appreciate": 1.5, "appreciated": 1.5, "happy": 1.5, "glad": 1, "love": 2, "nice": 1,
	"perfect": 2, "well": 0.5, "success": 1.5, "successful": 1.5, "resolved": 1, "fixed": 1,
	"congrats": 2, "congratulations": 2, "pleased": 1.5, "helpful": 1, "smooth": 1, "ready": 0.5,
	"bad": -1, "terrible": -2, "awful": -2, "horrible": -2, "poor": -1, "wrong": -1, "broken": -1.5,
	"fail": -1.5, "failed": -1.5, "failing": -1.5, "failure": -1.5, "error": -1, "errors": -1,
	"bug": -1, "bugs": -1, "issue": -0.5, "issues": -0.5, "problem": -1, "problems": -1,
	"late": -1, "delay": -1, "delayed": -1, "angry": -2, "upset": -1.5, "frustrated": -1.5,
	"disappointed": -1.5, "unhappy": -1.5, "concern": -0.5, "concerned": -1, "worried": -1,
	"crash": -2, "crashed": -2, "outage": -2, "blocked": -1, "blocker": -1, "sorry": -0.5,
	"unfortunately": -1, "missing": -1, "missed": -1, "complaint": -1.5,
}
