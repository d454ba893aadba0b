package entities

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/fyrsmithlabs/taskextract/internal/logging"
	"github.com/fyrsmithlabs/taskextract/pkg/task"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

// Wednesday.
var fixedNow = time.Date(2024, 6, 5, 9, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return fixedNow }

func byKind(ents []Entity, kind Kind) []Entity {
	var out []Entity
	for _, e := range ents {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

func TestFindCues(t *testing.T) {
	tests := []struct {
		text  string
		names []string
		kind  CueKind
	}{
		{"Please complete the quarterly report by Monday and assign it to Sarah.", []string{"Sarah"}, CueAssignment},
		{"Hey Bob, could you finish the code review?", []string{"Bob"}, CueVocative},
		{"Ask Priya to update the roadmap.", []string{"Priya"}, CueAssignment},
		{"I need Carlos to sign off on the budget.", []string{"Carlos"}, CueAssignment},
		{"@jordan can you review this PR?", []string{"jordan"}, CueMention},
		{"Sarah will handle the deploy.", []string{"Sarah"}, CueModal},
		{"Dear Ms Okafor, please find the contract attached.", []string{"Okafor"}, CueVocative},
		{"The report will be late.", nil, ""},
		{"Monday, please send it over.", nil, ""},
		{"Thanks, that works for me.", nil, ""},
		{"Please have Tina prepare the budget.", []string{"Tina"}, CueAssignment},
		{"Let Mark fix the build before the demo.", []string{"Mark"}, CueAssignment},
		{"Can you send the slide deck, Priya?", []string{"Priya"}, CueVocative},
		{"Emma please review the contract.", []string{"Emma"}, CueVocative},
		{"The offsite moved from Denver to Seattle, Austin.", nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			cues := FindCues(tt.text)
			var names []string
			for _, c := range cues {
				names = append(names, c.Name)
			}
			assert.Equal(t, tt.names, names)
			if len(cues) > 0 {
				assert.Equal(t, tt.kind, cues[0].Kind)
				assert.Equal(t, cues[0].Name, tt.text[cues[0].Start:cues[0].End])
			}
		})
	}
}

func TestLexical_QuarterlyReport(t *testing.T) {
	rec := NewLexical(fixedClock)
	ents, err := rec.Recognize(context.Background(), "Please complete the quarterly report by Monday and assign it to Sarah.")
	require.NoError(t, err)

	people := byKind(ents, KindPerson)
	require.Len(t, people, 1)
	assert.Equal(t, "Sarah", people[0].Text)
	assert.Equal(t, confCueKnown, people[0].Confidence)

	dates := byKind(ents, KindDate)
	require.NotEmpty(t, dates)
	assert.Contains(t, strings.ToLower(dates[0].Text), "monday")
	require.NotNil(t, dates[0].Time)
	assert.Equal(t, time.Monday, dates[0].Time.Weekday())
	assert.False(t, dates[0].Time.Before(time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC)))

	for i := 1; i < len(ents); i++ {
		assert.LessOrEqual(t, ents[i-1].Start, ents[i].Start, "entities are ordered")
	}
}

func TestLexical_Vocative(t *testing.T) {
	ents, err := NewLexical(fixedClock).Recognize(context.Background(), "Hey Bob, could you finish the code review?")
	require.NoError(t, err)
	people := byKind(ents, KindPerson)
	require.Len(t, people, 1)
	assert.Equal(t, "Bob", people[0].Text)
}

func TestLexical_Spans(t *testing.T) {
	tests := []struct {
		name string
		text string
		kind Kind
		want []string
	}{
		{"multi-word person", "Assign the audit to Maria Lopez.", KindPerson, []string{"Maria Lopez"}},
		{"possessive", "Grab Sarah's notes from the share.", KindPerson, []string{"Sarah"}},
		{"mention", "@sam please rebase the branch", KindPerson, []string{"sam"}},
		{"verb not a name", "Mark the task as done.", KindPerson, nil},
		{"org suffix", "We met with Acme Corp in London.", KindOrg, []string{"Acme Corp"}},
		{"location", "We met with Acme Corp in London.", KindLocation, []string{"London"}},
		{"shouting ignored", "URGENT fix the build", KindPerson, nil},
	}

	rec := NewLexical(fixedClock)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ents, err := rec.Recognize(context.Background(), tt.text)
			require.NoError(t, err)
			got := Texts(byKind(ents, tt.kind))
			if tt.want == nil {
				assert.Empty(t, got)
				return
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLexical_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewLexical(nil).Recognize(ctx, "Hey Bob")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestResolveFallback(t *testing.T) {
	day := func(d int) time.Time { return time.Date(2024, 6, d, 0, 0, 0, 0, time.UTC) }
	tests := map[string]time.Time{
		"today":          day(5),
		"eod":            day(5),
		"tomorrow":       day(6),
		"friday":         day(7),
		"eow":            day(7),
		"end of week":    day(7),
		"monday":         day(10),
		"wednesday":      day(5),
		"next wednesday": day(12),
		"next week":      day(10),
		"end of month":   day(30),
	}
	for phrase, want := range tests {
		got, ok := resolveFallback(phrase, fixedNow)
		require.True(t, ok, phrase)
		assert.Equal(t, want, got, phrase)
	}

	_, ok := resolveFallback("someday", fixedNow)
	assert.False(t, ok)
}

func TestKeywords(t *testing.T) {
	assert.Equal(t, []string{"report", "budget", "review"},
		Keywords("report report budget review budget report", 10))
	assert.Equal(t, []string{"complete", "quarterly"},
		Keywords("Please complete the quarterly report", 2))
	assert.Empty(t, Keywords("the and of it", 10))
	assert.Nil(t, Keywords("anything", 0))
	assert.True(t, IsStopword("the"))
}

type failingRecognizer struct{ err error }

func (f failingRecognizer) Name() string { return "failing" }

func (f failingRecognizer) Recognize(context.Context, string) ([]Entity, error) {
	if f.err == nil {
		panic("model crashed")
	}
	return nil, f.err
}

func TestExtractor_Degrades(t *testing.T) {
	for name, rec := range map[string]Recognizer{
		"error": failingRecognizer{err: errors.New("model offline")},
		"panic": failingRecognizer{},
	} {
		t.Run(name, func(t *testing.T) {
			logger := logging.NewTestLogger()
			ex := NewExtractor(rec, Options{Logger: logger.Logger})

			res := ex.Extract(context.Background(), "Hey Bob, could you finish the code review?")
			assert.True(t, res.Degraded)
			assert.Zero(t, res.Confidence)
			assert.Empty(t, res.Entities)
			assert.Empty(t, res.Keywords)
			assert.Len(t, logger.FilterMessage("entity recogni").All(), 1)
			assert.Equal(t, zapcore.WarnLevel, logger.All()[0].Level)
		})
	}
}

func TestExtractor_Confidence(t *testing.T) {
	ex := NewExtractor(NewLexical(fixedClock), Options{})
	ctx := context.Background()

	res := ex.Extract(ctx, "Please complete the quarterly report by Monday and assign it to Sarah.")
	assert.False(t, res.Degraded)
	assert.GreaterOrEqual(t, res.Confidence, 0.9)
	assert.LessOrEqual(t, res.Confidence, 1.0)
	assert.Contains(t, res.Keywords, "quarterly")

	res = ex.Extract(ctx, "the quarterly numbers look fine")
	assert.Empty(t, res.Entities)
	assert.Equal(t, DefaultKeywordConfidence, res.Confidence)

	res = ex.Extract(ctx, "?? !!")
	assert.Zero(t, res.Confidence)
	assert.NotNil(t, res.Entities)
	assert.NotNil(t, res.Keywords)
}

func TestNewRecognizer(t *testing.T) {
	rec, err := NewRecognizer("", fixedClock)
	require.NoError(t, err)
	assert.Equal(t, BackendLexical, rec.Name())

	rec, err = NewRecognizer("PROSE", fixedClock)
	require.NoError(t, err)
	assert.Equal(t, BackendProse, rec.Name())

	_, err = NewRecognizer("spacy", fixedClock)
	assert.ErrorIs(t, err, task.ErrModelUnavailable)
}

func TestProse_FindsCuedNames(t *testing.T) {
	rec, err := NewProse(fixedClock)
	require.NoError(t, err)

	ents, err := rec.Recognize(context.Background(), "Please complete the quarterly report by Monday and assign it to Sarah.")
	require.NoError(t, err)

	people := byKind(ents, KindPerson)
	require.Len(t, people, 1)
	assert.Equal(t, "Sarah", people[0].Text)
	assert.Equal(t, confCueKnown, people[0].Confidence)
	assert.NotContains(t, Texts(ents), "Please")
	assert.NotContains(t, Texts(byKind(ents, KindLocation)), "Sarah")
	assert.NotEmpty(t, byKind(ents, KindDate))
}

func TestProse_SharesLoadedModel(t *testing.T) {
	rec, err := NewProse(fixedClock)
	require.NoError(t, err)
	model := rec.model
	require.NotNil(t, model)

	texts := []string{
		"Hey Bob, could you finish the code review?",
		"Ask Priya to send the slide deck by Thursday.",
		"Carlos will test the release candidate tomorrow.",
	}
	var wg sync.WaitGroup
	for _, text := range texts {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ents, err := rec.Recognize(context.Background(), text)
			assert.NoError(t, err)
			assert.NotEmpty(t, byKind(ents, KindPerson), text)
		}()
	}
	wg.Wait()
	assert.Same(t, model, rec.model)
}
