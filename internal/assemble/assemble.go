// Package assemble builds the structured task record from the text and
// the signals computed for it.
package assemble

import (
	"slices"
	"strings"
	"time"

	"github.com/fyrsmithlabs/taskextract/internal/entities"
	"github.com/fyrsmithlabs/taskextract/internal/sentiment"
	"github.com/fyrsmithlabs/taskextract/pkg/task"
)

// Input is everything the assembler reads. Entity offsets refer to Text.
type Input struct {
	Text      string
	Entities  []entities.Entity
	Keywords  []string
	Intent    task.IntentResult
	Sentiment sentiment.Result
}

// Assembler turns signals into a task.TaskInfo.
type Assembler struct {
	categorizer *Categorizer
}

// New returns an Assembler using category rules; nil selects
// DefaultCategoryRules.
func New(rules map[string][]string) *Assembler {
	return &Assembler{categorizer: NewCategorizer(rules)}
}

var defaultAssembler = New(nil)

// Assemble builds a task with the default category rules.
func Assemble(in Input) task.TaskInfo {
	return defaultAssembler.Assemble(in)
}

// Assemble builds the task record. It never fails; fields it cannot
// derive are left empty or nil.
func (a *Assembler) Assemble(in Input) task.TaskInfo {
	scores := a.categorizer.Score(in.Text, in.Intent.Intent)

	info := task.TaskInfo{
		Title:               Title(in.Text, in.Entities, in.Keywords),
		Assignee:            Assignee(in.Text, in.Entities),
		DueDateHint:         DueDate(in.Entities),
		Entities:            uniqueTexts(in.Entities),
		Keywords:            slices.Clone(in.Keywords),
		SentimentScore:      max(-1, min(1, in.Sentiment.Score)),
		UrgencyIndicators:   slices.Clone(in.Sentiment.UrgencyIndicators),
		CategoryPredictions: scores,
		Tags:                Tags(scores),
		Priority:            in.Sentiment.Priority,
	}
	if info.Keywords == nil {
		info.Keywords = []string{}
	}
	if info.UrgencyIndicators == nil {
		info.UrgencyIndicators = []string{}
	}
	return info
}

// Assignee returns the first PERSON entity, in text order, that an
// assignment or address cue points at.
func Assignee(text string, ents []entities.Entity) *string {
	cues := entities.FindCues(text)
	if len(cues) == 0 {
		return nil
	}

	people := make([]entities.Entity, 0, len(ents))
	for _, e := range ents {
		if e.Kind == entities.KindPerson {
			people = append(people, e)
		}
	}
	slices.SortStableFunc(people, func(a, b entities.Entity) int { return a.Start - b.Start })

	for _, p := range people {
		for _, c := range cues {
			if c.Start < p.End && p.Start < c.End {
				name := strings.TrimPrefix(p.Text, "@")
				return &name
			}
		}
	}
	return nil
}

// DueDate returns the date of the first resolved DATE entity, at midnight
// in its own location.
func DueDate(ents []entities.Entity) *time.Time {
	first := -1
	for i, e := range ents {
		if e.Kind != entities.KindDate || e.Time == nil {
			continue
		}
		if first < 0 || e.Start < ents[first].Start {
			first = i
		}
	}
	if first < 0 {
		return nil
	}
	t := *ents[first].Time
	d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	return &d
}

func uniqueTexts(ents []entities.Entity) []string {
	out := make([]string, 0, len(ents))
	seen := make(map[string]bool, len(ents))
	for _, e := range ents {
		k := strings.ToLower(e.Text)
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, e.Text)
	}
	return out
}
