package entities

import (
	"context"
	"regexp"
	"slices"
	"strings"
	"time"
	"unicode"
)

// Confidence assigned per evidence level.
const (
	confCueKnown = 0.95
	confCue      = 0.9
	confKnown    = 0.85
	confOrg      = 0.8
	confLocation = 0.8
	confOther    = 0.7
)

// Lexical is a deterministic recognizer built on capitalization, a
// first-name gazetteer and address/assignment cues.
type Lexical struct {
	dates *dateFinder
}

// NewLexical returns a lexical recognizer. clock supplies the reference
// time for relative dates; nil uses time.Now.
func NewLexical(clock func() time.Time) *Lexical {
	return &Lexical{dates: newDateFinder(clock)}
}

func (l *Lexical) Name() string { return BackendLexical }

// Recognize returns entities ordered by position.
func (l *Lexical) Recognize(ctx context.Context, text string) ([]Entity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ents := l.dates.find(text)
	cues := FindCues(text)

	for _, c := range cues {
		if c.Kind == CueMention && !overlaps(ents, c.Start, c.End) {
			ents = append(ents, Entity{Text: c.Name, Kind: KindPerson, Start: c.Start, End: c.End, Confidence: cueConfidence(c.Name)})
		}
	}

	toks := tokenize(text)
	for i := 0; i < len(toks); i++ {
		tk := toks[i]
		if !tk.capitalized || isNonName(tk.text) || overlaps(ents, tk.start, tk.end) {
			continue
		}
		cue, hasCue := cueAt(cues, tk.start)
		initial := sentenceInitial(text, tk.start)
		known := IsKnownFirstName(tk.text)

		if initial && !hasCue && !known && !isLocation(tk.text) {
			continue
		}

		j := i
		for j+1 < len(toks) && extends(text, toks[j], toks[j+1], cues) && !overlaps(ents, toks[j+1].start, toks[j+1].end) {
			j++
		}
		span := Entity{Text: text[tk.start:toks[j].end], Start: tk.start, End: toks[j].end}

		switch {
		case j > i && isOrgSuffix(toks[j].text):
			span.Kind, span.Confidence = KindOrg, confOrg
		case hasCue:
			span.Kind, span.Confidence = KindPerson, cueConfidence(cue.Name)
		case known && (!initial || !determiners[nextWord(toks, j)]):
			span.Kind, span.Confidence = KindPerson, confKnown
		case isLocation(tk.text):
			span.Kind, span.Confidence = KindLocation, confLocation
		case !initial && !known:
			span.Kind, span.Confidence = KindOther, confOther
		default:
			continue
		}
		ents = append(ents, span)
		i = j
	}

	sortByStart(ents)
	return ents, nil
}

func cueConfidence(name string) float64 {
	if IsKnownFirstName(name) {
		return confCueKnown
	}
	return confCue
}

type token struct {
	text        string
	start, end  int
	capitalized bool
}

var wordPattern = regexp.MustCompile(`[A-Za-z][A-Za-z'\-]*[A-Za-z]|[A-Za-z]`)

func tokenize(text string) []token {
	idx := wordPattern.FindAllStringIndex(text, -1)
	toks := make([]token, 0, len(idx))
	for _, m := range idx {
		word := text[m[0]:m[1]]
		if trimmed := strings.TrimSuffix(word, "'s"); trimmed != "" {
			word = trimmed
		}
		toks = append(toks, token{
			text:        word,
			start:       m[0],
			end:         m[0] + len(word),
			capitalized: isCapitalized(word),
		})
	}
	return toks
}

// isCapitalized is true for Title-case words; ALL-CAPS words are shouting
// or acronyms.
func isCapitalized(word string) bool {
	if word == "" || !unicode.IsUpper(rune(word[0])) {
		return false
	}
	return strings.IndexFunc(word[1:], unicode.IsLower) >= 0
}

// extends reports whether next continues a name run started before it.
func extends(text string, cur, next token, cues []Cue) bool {
	if !next.capitalized || isNonName(next.text) {
		return false
	}
	if _, ok := cueAt(cues, next.start); ok {
		return false
	}
	return strings.TrimSpace(text[cur.end:next.start]) == "" && !strings.Contains(text[cur.end:next.start], "\n")
}

func cueAt(cues []Cue, start int) (Cue, bool) {
	i := slices.IndexFunc(cues, func(c Cue) bool { return c.Start == start })
	if i < 0 {
		return Cue{}, false
	}
	return cues[i], true
}

// sentenceInitial reports whether the word at pos opens a sentence, line or
// list item.
func sentenceInitial(text string, pos int) bool {
	for i := pos - 1; i >= 0; i-- {
		switch c := text[i]; c {
		case ' ', '\t', '"', '(':
			continue
		case '.', '!', '?', '\n', ':', '-', '*', '>':
			return true
		default:
			return false
		}
	}
	return true
}

var determiners = toSet(`the a an this that these those it its all my our your his her their some any up down out off`)

func nextWord(toks []token, i int) string {
	if i+1 >= len(toks) {
		return ""
	}
	return strings.ToLower(toks[i+1].text)
}

func sortByStart(ents []Entity) {
	slices.SortStableFunc(ents, func(a, b Entity) int { return a.Start - b.Start })
}
