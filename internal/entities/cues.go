package entities

import (
	"regexp"
	"slices"
	"strings"

	"github.com/fyrsmithlabs/taskextract/internal/textproc"
)

// CueKind names the construction that marked a name as addressed or
// assigned.
type CueKind string

const (
	CueAssignment CueKind = "assignment" // assign ... to X, ask X to, need X to, for X to
	CueVocative   CueKind = "vocative"   // Hey X, Dear X, "X, please", "..., X?"
	CueMention    CueKind = "mention"    // @X
	CueModal      CueKind = "modal"      // X will, X can, X should
)

// Cue is a name span introduced by an assignment or address construction.
type Cue struct {
	Name  string
	Kind  CueKind
	Start int
	End   int
}

const nameRE = `@?(?:(?:Mr|Mrs|Ms|Dr)\.?\s+)?([A-Z][a-zA-Z'\-]*[a-z][a-zA-Z'\-]*)`

type cueRule struct {
	kind CueKind
	re   *regexp.Regexp
	// known restricts the rule to gazetteer first names.
	known bool
}

// Patterns are case-sensitive on the name group; lead words accept a
// leading capital explicitly.
var cueRules = []cueRule{
	{CueAssignment, regexp.MustCompile(`\b(?:[Hh]ave|[Gg]et|[Ll]et)\s+` + nameRE + `\s+` + textproc.ActionVerbAlternation() + `\b`), false},
	{CueAssignment, regexp.MustCompile(`\b[Aa]ssign(?:ed|ing)?\b[^.!?\n]{0,60}?\bto\s+` + nameRE), false},
	{CueAssignment, regexp.MustCompile(`\b(?:[Aa]sk|[Tt]ell|[Rr]emind|[Gg]et|[Hh]ave)\s+` + nameRE + `\s+to\b`), false},
	{CueAssignment, regexp.MustCompile(`\b(?:need|want|would like|'d like|expect)\s+` + nameRE + `\s+to\b`), false},
	{CueAssignment, regexp.MustCompile(`\bfor\s+` + nameRE + `\s+to\b`), false},
	{CueAssignment, regexp.MustCompile(`\b(?:owner|assignee)\s*[:=]\s*` + nameRE), false},
	{CueVocative, regexp.MustCompile(`\b(?:[Hh]ey|[Hh]i|[Hh]ello|[Dd]ear|[Yy]o|[Mm]orning)\s+` + nameRE), false},
	{CueVocative, regexp.MustCompile(`(?m)^\s*` + nameRE + `\s*,`), true},
	{CueVocative, regexp.MustCompile(nameRE + `,\s+(?:please|could|can|would|will|do|are)\b`), false},
	{CueVocative, regexp.MustCompile(`(?m),\s+` + nameRE + `\s*[?.!]*\s*$`), false},
	{CueVocative, regexp.MustCompile(`(?m)^\s*` + nameRE + `\s+(?:please|pls|can you|could you|would you)\b`), true},
	{CueMention, regexp.MustCompile(`(?:^|[\s(])@([A-Za-z][A-Za-z0-9_.\-]*[A-Za-z0-9])`), false},
	{CueModal, regexp.MustCompile(nameRE + `\s+(?:will|can|should|could|must|needs to|has to|is going to)\b`), true},
}

// FindCues returns every cue in text ordered by name position. Names that
// are common capitalized words (pronouns, weekdays, greetings) are skipped.
func FindCues(text string) []Cue {
	var cues []Cue
	for _, rule := range cueRules {
		for _, m := range rule.re.FindAllStringSubmatchIndex(text, -1) {
			start, end := m[2], m[3]
			if start > 0 && isWordByte(text[start-1]) {
				continue
			}
			name := strings.TrimSuffix(strings.TrimSuffix(text[start:end], "'s"), "-")
			end = start + len(name)
			if rule.kind != CueMention && isNonName(name) {
				continue
			}
			if rule.known && !IsKnownFirstName(name) {
				continue
			}
			if rule.kind != CueMention && isLocation(name) {
				continue
			}
			if slices.ContainsFunc(cues, func(c Cue) bool { return c.Start == start }) {
				continue
			}
			cues = append(cues, Cue{Name: name, Kind: rule.kind, Start: start, End: end})
		}
	}
	slices.SortStableFunc(cues, func(a, b Cue) int { return a.Start - b.Start })
	return cues
}

// nonNames are capitalized words that never start a person name.
var nonNames = toSet(`
i me my we us our you your he she it they them their this that these those there here
what when where who why how which whose whom
a an the and or but so if then also just maybe perhaps yes no not ok okay
please thanks thank hey hi hello dear yo morning afternoon evening good great cool sure
team all everyone everybody folks guys guys' anyone someone somebody nobody
monday tuesday wednesday thursday friday saturday sunday today tomorrow tonight yesterday
january february march april may june july august september october november december
mon tue tues wed thu thur thurs fri sat sun jan feb mar apr jun jul aug sep sept oct nov dec
eod eow asap fyi re fwd subject from to cc bcc sent speaker note notes update agenda
let lets let's can could would should will shall must might need needs do does did done
is are was were be been being have has had get got make made keep go going
q1 q2 q3 q4 pm am mr mrs ms dr
`)

func isWordByte(b byte) bool {
	return b == '_' || b >= '0' && b <= '9' || b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z'
}

func isNonName(word string) bool {
	return nonNames[strings.ToLower(strings.TrimPrefix(word, "@"))]
}

func toSet(words string) map[string]bool {
	set := make(map[string]bool)
	for _, w := range strings.Fields(words) {
		set[w] = true
	}
	return set
}
