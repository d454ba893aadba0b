package entities

import (
	"slices"
	"strings"
	"unicode"
)

// Keywords returns up to max lowercase content words ranked by frequency,
// ties broken by first occurrence.
func Keywords(text string, max int) []string {
	if max <= 0 {
		return nil
	}

	type stat struct {
		count int
		first int
	}
	stats := make(map[string]*stat)
	var order []string

	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\'' && r != '-'
	})
	for i, w := range words {
		w = strings.Trim(w, "'-")
		w = strings.TrimSuffix(w, "'s")
		if len([]rune(w)) < 3 || stopwords[w] || !hasLetter(w) {
			continue
		}
		if s, ok := stats[w]; ok {
			s.count++
			continue
		}
		stats[w] = &stat{count: 1, first: i}
		order = append(order, w)
	}

	slices.SortStableFunc(order, func(a, b string) int {
		if d := stats[b].count - stats[a].count; d != 0 {
			return d
		}
		return stats[a].first - stats[b].first
	})
	if len(order) > max {
		order = order[:max]
	}
	return order
}

func hasLetter(s string) bool {
	return strings.IndexFunc(s, unicode.IsLetter) >= 0
}

// IsStopword reports whether a lowercase word carries no topical content.
func IsStopword(word string) bool {
	return stopwords[word]
}

var stopwords = toSet(`
a about above after again against all also am an and any are aren't as at be because been before being below between both but by
can can't cannot could couldn't did didn't do does doesn't doing don't down during each few for from further get got had hadn't has hasn't
have haven't having he he'd he'll he's her here here's hers herself him himself his how how's i i'd i'll i'm i've if in into is isn't it
it's its itself just let let's me more most mustn't my myself no nor not now of off on once only or other ought our ours ourselves out
over own please same shan't she she'd she'll she's should shouldn't so some such than that that's the their theirs them themselves then
there there's these they they'd they'll they're they've this those through to too under until up very was wasn't we we'd we'll we're
we've were weren't what what's when when's where where's which while who who's whom why why's will with won't would wouldn't you you'd
you'll you're you've your yours yourself yourselves hey hi hello thanks thank dear yes okay ok sure also really just still maybe
`)
