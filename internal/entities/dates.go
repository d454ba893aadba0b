package entities

import (
	"regexp"
	"strings"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
)

const dateConfidence = 0.9

// dateFinder resolves relative and absolute date expressions.
type dateFinder struct {
	parser *when.Parser
	clock  func() time.Time
}

func newDateFinder(clock func() time.Time) *dateFinder {
	if clock == nil {
		clock = time.Now
	}
	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)
	return &dateFinder{parser: w, clock: clock}
}

// find returns DATE entities in text order.
func (d *dateFinder) find(text string) []Entity {
	base := d.clock()
	var out []Entity

	offset := 0
	for offset < len(text) {
		r, err := d.parser.Parse(text[offset:], base)
		if err != nil || r == nil {
			break
		}
		start := offset + r.Index
		end := start + len(r.Text)
		if end <= offset || end > len(text) {
			break
		}
		if span := strings.TrimSpace(text[start:end]); span != "" {
			start += strings.Index(text[start:end], span)
			end = start + len(span)
			t := r.Time
			out = append(out, Entity{Text: span, Kind: KindDate, Start: start, End: end, Confidence: dateConfidence, Time: &t})
		}
		offset = end
	}

	for _, m := range fallbackDate.FindAllStringSubmatchIndex(text, -1) {
		start, end := m[2], m[3]
		if overlaps(out, start, end) {
			continue
		}
		span := text[start:end]
		t, ok := resolveFallback(strings.ToLower(span), base)
		if !ok {
			continue
		}
		out = append(out, Entity{Text: span, Kind: KindDate, Start: start, End: end, Confidence: dateConfidence, Time: &t})
	}

	sortByStart(out)
	return out
}

var fallbackDate = regexp.MustCompile(`(?i)\b((?:next\s+|this\s+)?(?:monday|tuesday|wednesday|thursday|friday|saturday|sunday)|today|tonight|tomorrow|eod|eow|end of (?:the )?(?:day|week|month)|next week)\b`)

var weekdays = map[string]time.Weekday{
	"sunday": time.Sunday, "monday": time.Monday, "tuesday": time.Tuesday, "wednesday": time.Wednesday,
	"thursday": time.Thursday, "friday": time.Friday, "saturday": time.Saturday,
}

// resolveFallback maps a lowercased date phrase to a calendar day.
func resolveFallback(phrase string, base time.Time) (time.Time, bool) {
	day := time.Date(base.Year(), base.Month(), base.Day(), 0, 0, 0, 0, base.Location())
	switch {
	case phrase == "today" || phrase == "tonight" || phrase == "eod" || strings.HasSuffix(phrase, "of day") || strings.HasSuffix(phrase, "of the day"):
		return day, true
	case phrase == "tomorrow":
		return day.AddDate(0, 0, 1), true
	case phrase == "eow" || strings.HasSuffix(phrase, "week") && strings.HasPrefix(phrase, "end"):
		return nextWeekday(day, time.Friday, false), true
	case phrase == "next week":
		return nextWeekday(day, time.Monday, true), true
	case strings.HasSuffix(phrase, "month"):
		return time.Date(day.Year(), day.Month()+1, 0, 0, 0, 0, 0, day.Location()), true
	}
	fields := strings.Fields(phrase)
	wd, ok := weekdays[fields[len(fields)-1]]
	if !ok {
		return time.Time{}, false
	}
	return nextWeekday(day, wd, fields[0] == "next"), true
}

// nextWeekday returns the first wd on or after day; strict skips day itself.
func nextWeekday(day time.Time, wd time.Weekday, strict bool) time.Time {
	diff := (int(wd) - int(day.Weekday()) + 7) % 7
	if diff == 0 && strict {
		diff = 7
	}
	return day.AddDate(0, 0, diff)
}
