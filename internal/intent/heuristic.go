package intent

import (
	"context"
	"fmt"
	"regexp"
	"slices"
	"strings"

	"github.com/fyrsmithlabs/taskextract/internal/textproc"
)

const (
	// corroborationBonus is added per additional matching pattern of the
	// winning label.
	corroborationBonus = 0.05
	maxHeuristicScore  = 0.99

	// noMatchConfidence is reported for text no pattern recognises.
	noMatchConfidence = 0.5
)

// Pattern is a weighted regular expression that votes for a raw label.
// When Exclude is set, a match only counts if Exclude does not match the
// matched text.
type Pattern struct {
	Label   string
	Name    string
	Regex   string
	Weight  float64
	Exclude string
}

// subjectPronouns rejects modal sentences whose subject is not a person
// ("This will fix ...", "We can review ...").
const subjectPronouns = `^(?i:i|you|we|they|he|she|it|this|that|these|those|there|which|who|what|everyone|someone|nobody|anyone)\b`

const (
	weekdays = `(?:monday|tuesday|wednesday|thursday|friday|saturday|sunday|mon|tue|tues|wed|thu|thurs|fri)`
	deadline = `(?:` + weekdays + `|today|tonight|tomorrow|eod|eow|cob|noon|end of (?:the )?(?:day|week|month)|next week|this week)`
)

// DefaultPatterns returns the built-in pattern set. Patterns are matched
// case-insensitively.
func DefaultPatterns() []Pattern {
	verb := textproc.ActionVerbAlternation()

	return []Pattern{
		// create_task
		{LabelCreateTask, "please_verb", `\bplease\s+(?:also\s+|just\s+|kindly\s+)?` + verb + `\b`, 0.9, ""},
		{LabelCreateTask, "assign_to", `\bassign(?:ed)?\b.{0,60}?\bto\s+@?\w`, 0.9, ""},
		{LabelCreateTask, "request_modal", `\b(?:can|could|would|will)\s+you\s+(?:please\s+)?(?:also\s+)?` + verb + `\b`, 0.85, ""},
		{LabelCreateTask, "imperative", `(?:^|[.!?;:]\s+)` + verb + `\b`, 0.85, ""},
		{LabelCreateTask, "need_you", `\b(?:i need you to|i'd like you to|i would like you to|we need you to)\b`, 0.9, ""},
		{LabelCreateTask, "need_to", `\b(?:need|needs|have|has)\s+to\s+` + verb + `\b`, 0.8, ""},
		{LabelCreateTask, "modal_obligation", `\b(?:should|must)\s+` + verb + `\b`, 0.75, ""},
		{LabelCreateTask, "deadline", `\b(?:by|before|due)\s+` + deadline + `\b`, 0.7, ""},
		{LabelCreateTask, "todo", `\b(?:todo|to-do|action item|action items)\b`, 0.9, ""},
		{LabelCreateTask, "reminder", `\b(?:don't forget|do not forget|remember)\s+to\b`, 0.8, ""},
		{LabelCreateTask, "make_sure", `\b(?:make sure|ensure)\b`, 0.75, ""},
		{LabelCreateTask, "delegate", `\b(?:have|get|let|ask|tell|remind)\s+(?:@\w+|(?-i:[A-Z][a-z]+)|me|us|someone|everyone|the team)\s+(?:to\s+)?` + verb + `\b`, 0.9, `^let\s+(?:me|us)\b`},
		{LabelCreateTask, "named_modal", `\b(?-i:[A-Z][a-z]+)\s+(?:will|is going to|needs to|has to|should|can)\s+(?:please\s+)?` + verb + `\b`, 0.85, subjectPronouns},

		// schedule_meeting
		{LabelScheduleMeeting, "schedule_meeting", `\b(?:schedule|set up|setup|book|arrange|organize|plan|put)\b.{0,40}?\b(?:meeting|call|sync|1:1|one-on-one|standup|stand-up|catch-up|catch up|demo|interview|retro)\b`, 0.95, ""},
		{LabelScheduleMeeting, "lets_meet", `\blet'?s\s+(?:meet|sync|catch up|hop on a call|jump on a call|get together|set up a call)\b`, 0.9, ""},
		{LabelScheduleMeeting, "availability", `\b(?:are you|is everyone|is anyone|would you be|are we|is the team)\s+(?:free|available)\b|\bwhat time works\b|\bwork for (?:you|everyone|the team)\b`, 0.9, ""},
		{LabelScheduleMeeting, "meeting_time", `\b(?:meeting|call|sync|standup)\b.{0,30}?\b(?:at \d|tomorrow|on ` + weekdays + `|next week|this afternoon|this morning)\b`, 0.8, ""},
		{LabelScheduleMeeting, "invite", `\b(?:calendar invite|meeting invite|send (?:out )?(?:an |the )?invite|invite (?:you|everyone|the team))\b`, 0.85, ""},
		{LabelScheduleMeeting, "can_we_meet", `\b(?:can|could|shall|should)\s+we\s+(?:meet|sync|catch up|talk)\b`, 0.9, ""},
		{LabelScheduleMeeting, "meet_when", `\bmeet\b.{0,30}?\b(?:` + weekdays + `|at \d|tomorrow|today|next week|this (?:afternoon|morning|week))\b`, 0.85, ""},
		{LabelScheduleMeeting, "meeting_noun", `\b(?:meeting|call|sync|standup|1:1|catch-up)\b`, 0.6, ""},

		// request_info
		{LabelRequestInfo, "wh_question", `(?:^|[.!?]\s+)(?:what|when|where|who|why|how|which|whose)\b[^.!?]*\?`, 0.8, ""},
		{LabelRequestInfo, "yes_no_question", `(?:^|[.!?]\s+)(?:is|are|was|were|do|does|did|has|have|had)\s[^.!?]*\?`, 0.75, ""},
		{LabelRequestInfo, "info_request", `\b(?:do you know|does anyone know|any idea|can you tell me|could you tell me|let me know|wondering if|was wondering|can you confirm|could you confirm|need to know|want to know|curious)\b`, 0.85, ""},
		{LabelRequestInfo, "send_info", `\b(?:send|share|forward|give)\s+(?:me|us)\s+(?:the\s+|your\s+)?(?:details|info|information|link|numbers|figures|specs|address|status|eta|contact)\b`, 0.92, ""},

		// update_status
		{LabelUpdateStatus, "completed", `\b(?:i|we|i've|we've|i have|we have|just|already|has been|have been|was|were|team)\s+(?:just\s+|already\s+|finally\s+)?(?:finished|completed|deployed|shipped|merged|released|fixed|resolved|submitted|sent|closed|wrapped up|uploaded|published|sorted)\b`, 0.9, ""},
		{LabelUpdateStatus, "state", `\b(?:is|are|was|were|it's|now)\s+(?:now\s+|all\s+)?(?:done|complete|completed|finished|live|blocked|delayed|on track|in progress|in review|merged|deployed|resolved|fixed|ready)\b`, 0.85, ""},
		{LabelUpdateStatus, "progress", `\b(?:status update|quick update|progress update|fyi|heads[- ]up)\b|^update\b`, 0.8, ""},
		{LabelUpdateStatus, "working_on", `\b(?:i'm|i am|we're|we are|still)\s+(?:still\s+|currently\s+)?(?:working on|blocked|waiting on|waiting for|making progress|on track|behind)\b`, 0.85, ""},
		{LabelUpdateStatus, "percent", `\b\d{1,3}\s?%\s+(?:done|complete)\b`, 0.85, ""},

		// chitchat
		{LabelChitchat, "greeting_only", `^\W*(?:hi|hello|hey|yo|good (?:morning|afternoon|evening))(?:\s+(?:there|all|everyone|team|folks|\w+))?\W*$`, 0.9, ""},
		{LabelChitchat, "thanks_only", `^\W*(?:thanks|thank you|thx|cheers|ty)\b(?:\W+\w+){0,4}\W*$`, 0.9, ""},
		{LabelChitchat, "small_talk", `\b(?:how are you|how's it going|how was your (?:weekend|day|trip|vacation|holiday)|have a (?:great|good|nice) (?:day|weekend|one)|grab (?:lunch|coffee|a coffee|drinks)|happy (?:birthday|friday|monday))\b`, 0.85, ""},
		{LabelChitchat, "reaction", `\b(?:haha|lol|lmao|congrats|congratulations|nice one|great job|well done|no worries)\b`, 0.7, ""},
	}
}

type compiledPattern struct {
	Pattern
	regex   *regexp.Regexp
	exclude *regexp.Regexp
}

func (p compiledPattern) match(text string) bool {
	if p.exclude == nil {
		return p.regex.MatchString(text)
	}
	for _, m := range p.regex.FindAllString(text, -1) {
		if !p.exclude.MatchString(m) {
			return true
		}
	}
	return false
}

// Heuristic classifies with weighted regular expressions. The label whose
// best pattern weighs most wins; each further pattern of that label adds a
// small corroboration bonus.
type Heuristic struct {
	patterns []compiledPattern
	order    map[string]int
}

// NewHeuristic compiles patterns.
func NewHeuristic(patterns []Pattern) (*Heuristic, error) {
	if len(patterns) == 0 {
		return nil, fmt.Errorf("no patterns")
	}

	h := &Heuristic{order: make(map[string]int)}
	for i, l := range Labels() {
		h.order[l] = i
	}
	for _, p := range patterns {
		if p.Weight <= 0 || p.Weight > 1 {
			return nil, fmt.Errorf("pattern %s: weight must be in (0,1], got %v", p.Name, p.Weight)
		}
		re, err := regexp.Compile("(?i)" + p.Regex)
		if err != nil {
			return nil, fmt.Errorf("pattern %s: %w", p.Name, err)
		}
		cp := compiledPattern{Pattern: p, regex: re}
		if p.Exclude != "" {
			if cp.exclude, err = regexp.Compile("(?i)" + p.Exclude); err != nil {
				return nil, fmt.Errorf("pattern %s exclude: %w", p.Name, err)
			}
		}
		if _, ok := h.order[p.Label]; !ok {
			h.order[p.Label] = len(h.order)
		}
		h.patterns = append(h.patterns, cp)
	}
	return h, nil
}

// Name implements Model.
func (h *Heuristic) Name() string { return BackendHeuristic }

// Classify implements Model.
func (h *Heuristic) Classify(ctx context.Context, text string) (Prediction, error) {
	if err := ctx.Err(); err != nil {
		return Prediction{}, err
	}

	type score struct {
		best    float64
		matches int
	}
	scores := make(map[string]*score)
	for _, p := range h.patterns {
		if !p.match(text) {
			continue
		}
		s, ok := scores[p.Label]
		if !ok {
			s = &score{}
			scores[p.Label] = s
		}
		s.matches++
		s.best = max(s.best, p.Weight)
	}

	if len(scores) == 0 {
		return Prediction{Label: LabelChitchat, Confidence: noMatchConfidence}, nil
	}

	labels := make([]string, 0, len(scores))
	for l := range scores {
		labels = append(labels, l)
	}
	slices.SortFunc(labels, func(a, b string) int { return h.order[a] - h.order[b] })

	var (
		bestLabel string
		bestScore float64
	)
	for _, l := range labels {
		s := scores[l]
		v := min(s.best+corroborationBonus*float64(s.matches-1), maxHeuristicScore)
		if v > bestScore {
			bestLabel, bestScore = l, v
		}
	}
	return Prediction{Label: bestLabel, Confidence: bestScore}, nil
}

// Matches returns the names of the patterns that match text, for
// diagnostics.
func (h *Heuristic) Matches(text string) []string {
	var names []string
	for _, p := range h.patterns {
		if p.match(text) {
			names = append(names, p.Label+"/"+p.Name)
		}
	}
	return names
}

// ClassifyBatch implements BatchModel.
func (h *Heuristic) ClassifyBatch(ctx context.Context, texts []string) ([]Prediction, error) {
	out := make([]Prediction, len(texts))
	for i, t := range texts {
		p, err := h.Classify(ctx, strings.TrimSpace(t))
		if err != nil {
			return nil, err
		}
		out[i] = p
	}
	return out, nil
}

var _ BatchModel = (*Heuristic)(nil)
