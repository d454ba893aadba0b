package assemble

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/fyrsmithlabs/taskextract/internal/entities"
	"github.com/fyrsmithlabs/taskextract/internal/textproc"
)

const (
	maxTitleWords     = 10
	maxTitleRunes     = 80
	maxFallbackRunes  = 60
	maxKeywordCluster = 4
)

var tokenPattern = regexp.MustCompile(`[\p{L}\p{N}][\p{L}\p{N}'\-]*|[^\s\p{L}\p{N}]`)

type token struct {
	text       string
	lower      string
	start, end int
	word       bool
}

func tokenize(text string) []token {
	locs := tokenPattern.FindAllStringIndex(text, -1)
	toks := make([]token, len(locs))
	for i, l := range locs {
		t := text[l[0]:l[1]]
		r, _ := utf8.DecodeRuneInString(t)
		toks[i] = token{
			text:  t,
			lower: strings.ToLower(t),
			start: l[0],
			end:   l[1],
			word:  unicode.IsLetter(r) || unicode.IsDigit(r),
		}
	}
	return toks
}

// spanStops end a verb-object span.
var spanStops = map[string]bool{
	"by": true, "before": true, "until": true, "till": true, "due": true,
	"for": true, "to": true, "in": true, "at": true, "on": true, "from": true,
	"with": true, "after": true, "during": true, "via": true, "per": true,
	"and": true, "but": true, "or": true, "so": true, "because": true,
	"since": true, "if": true, "when": true, "while": true, "as": true,
	"then": true, "which": true, "who": true, "where": true,
	"please": true, "thanks": true, "asap": true,
	"today": true, "tomorrow": true, "tonight": true, "eod": true, "eow": true, "cob": true,
	"monday": true, "tuesday": true, "wednesday": true, "thursday": true,
	"friday": true, "saturday": true, "sunday": true,
}

// timeNouns end a span when introduced by "this" or "next".
var timeNouns = map[string]bool{
	"week": true, "month": true, "quarter": true, "year": true,
	"morning": true, "afternoon": true, "evening": true, "weekend": true,
	"monday": true, "tuesday": true, "wednesday": true, "thursday": true,
	"friday": true, "saturday": true, "sunday": true,
}

// nounMarkers before a verb form mean it is used as a noun ("the review").
var nounMarkers = map[string]bool{
	"the": true, "a": true, "an": true, "my": true, "your": true, "our": true,
	"their": true, "his": true, "her": true, "its": true, "this": true, "that": true,
	"these": true, "those": true,
}

// functionWords may sit right before an action verb without turning it
// into a noun. Any other lowercase content word does ("code review",
// "status update").
var functionWords = toSet(`
i you we they he she it me us him them someone somebody everyone everybody anyone nobody one
will would can could should shall must may might do does did am is are was were be been
need needs want wants have has had help try let lets go come
please pls plz also just then now first next still really ok okay so yes sure asap
and or but if when while once after before to for of in on at by with about from into
hi hey hello thanks team all folks guys
`)

// delegations hand a task to someone: "ask Priya to send ..." names the
// task by its second verb.
var delegations = map[string]bool{
	"ask": true, "remind": true, "tell": true, "get": true, "have": true,
}

// trailing words that never end a title.
var danglers = map[string]bool{
	"the": true, "a": true, "an": true, "of": true, "my": true, "your": true,
	"our": true, "their": true, "this": true, "that": true,
}

// Title derives a short imperative title from text: the first action verb
// and its object, stopping at a preposition, conjunction, date or
// punctuation. It falls back to a keyword cluster, then to the first
// sentence. The result is capitalized.
func Title(text string, ents []entities.Entity, keywords []string) string {
	toks := tokenize(text)
	dates := dateSpans(ents)

	for i, tok := range toks {
		if !tok.word || !textproc.IsActionVerb(tok.lower) {
			continue
		}
		if nounPosition(toks, i) || delegates(toks, i) {
			continue
		}
		last := verbObjectEnd(toks, i, dates)
		if last > i {
			return capitalize(clip(text[tok.start:toks[last].end], maxTitleRunes))
		}
	}

	if t := keywordCluster(text, keywords); t != "" {
		return capitalize(t)
	}
	return capitalize(clip(firstSentence(text), maxFallbackRunes))
}

// nounPosition reports whether the verb form at i is used as a noun: it
// follows a determiner or a lowercase content word. Capitalized words are
// names unless they open the sentence.
func nounPosition(toks []token, i int) bool {
	if i == 0 || !toks[i-1].word {
		return false
	}
	prev := toks[i-1]
	switch {
	case nounMarkers[prev.lower]:
		return true
	case functionWords[prev.lower], strings.ContainsRune(prev.lower, '\''),
		strings.HasSuffix(prev.lower, "ly"), textproc.IsActionVerb(prev.lower):
		return false
	case entities.IsKnownFirstName(prev.text):
		return false
	case prev.text != prev.lower && !sentenceStart(toks, i-1):
		return false
	}
	return true
}

// delegates reports whether the verb at i hands off a later action verb
// within a few words ("ask @priya to send", "remind the team to file").
func delegates(toks []token, i int) bool {
	if !delegations[toks[i].lower] {
		return false
	}
	for j, words := i+1, 0; j < len(toks) && words < 4; j++ {
		t := toks[j]
		if !t.word {
			if t.text == "@" {
				continue
			}
			return false
		}
		if t.lower == "to" {
			return j+1 < len(toks) && textproc.IsActionVerb(toks[j+1].lower)
		}
		words++
	}
	return false
}

func sentenceStart(toks []token, i int) bool {
	if i == 0 {
		return true
	}
	switch toks[i-1].text {
	case ".", "!", "?", ":", ";":
		return true
	}
	return false
}

// verbObjectEnd returns the index of the last token of the span opened by
// the verb at i, or i when the verb has no object.
func verbObjectEnd(toks []token, i int, dates [][2]int) int {
	last := i
	words := 1
	for j := i + 1; j < len(toks) && words < maxTitleWords; j++ {
		t := toks[j]
		if !t.word || spanStops[t.lower] || inSpans(dates, t.start, t.end) {
			break
		}
		if (t.lower == "this" || t.lower == "next") && j+1 < len(toks) && timeNouns[toks[j+1].lower] {
			break
		}
		last = j
		words++
	}
	for last > i && danglers[toks[last].lower] {
		last--
	}
	return last
}

func dateSpans(ents []entities.Entity) [][2]int {
	var spans [][2]int
	for _, e := range ents {
		if e.Kind == entities.KindDate {
			spans = append(spans, [2]int{e.Start, e.End})
		}
	}
	return spans
}

func inSpans(spans [][2]int, s, e int) bool {
	for _, sp := range spans {
		if s < sp[1] && sp[0] < e {
			return true
		}
	}
	return false
}

// keywordCluster joins up to maxKeywordCluster keywords in the order they
// appear in text.
func keywordCluster(text string, keywords []string) string {
	if len(keywords) == 0 {
		return ""
	}
	lower := strings.ToLower(text)

	type kw struct {
		word string
		pos  int
	}
	var found []kw
	for _, k := range keywords {
		if p := indexWord(lower, k); p >= 0 {
			found = append(found, kw{k, p})
		}
		if len(found) == maxKeywordCluster {
			break
		}
	}
	// Insertion sort; at most maxKeywordCluster entries.
	for i := 1; i < len(found); i++ {
		for j := i; j > 0 && found[j].pos < found[j-1].pos; j-- {
			found[j], found[j-1] = found[j-1], found[j]
		}
	}

	words := make([]string, len(found))
	for i, f := range found {
		words[i] = f.word
	}
	return strings.Join(words, " ")
}

// indexWord finds word in s at word boundaries.
func indexWord(s, word string) int {
	for off := 0; off < len(s); {
		i := strings.Index(s[off:], word)
		if i < 0 {
			return -1
		}
		i += off
		end := i + len(word)
		before := i == 0 || !isWordRune(s[:i], true)
		after := end == len(s) || !isWordRune(s[end:], false)
		if before && after {
			return i
		}
		off = i + 1
	}
	return -1
}

func isWordRune(s string, last bool) bool {
	var r rune
	if last {
		r, _ = utf8.DecodeLastRuneInString(s)
	} else {
		r, _ = utf8.DecodeRuneInString(s)
	}
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

func firstSentence(text string) string {
	text = strings.TrimSpace(text)
	if i := strings.IndexAny(text, ".!?\n"); i >= 0 {
		text = text[:i]
	}
	return strings.TrimSpace(text)
}

// clip truncates s to at most n runes at a word boundary.
func clip(s string, n int) string {
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	cut := string(runes[:n])
	if i := strings.LastIndexByte(cut, ' '); i > 0 {
		cut = cut[:i]
	}
	return strings.TrimRight(cut, " ,;:-")
}

func toSet(words string) map[string]bool {
	set := make(map[string]bool)
	for _, w := range strings.Fields(words) {
		set[w] = true
	}
	return set
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}
