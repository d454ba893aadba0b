package assemble

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/taskextract/internal/entities"
	"github.com/fyrsmithlabs/taskextract/internal/sentiment"
	"github.com/fyrsmithlabs/taskextract/pkg/task"
)

// Wednesday.
var fixedNow = time.Date(2024, 6, 5, 9, 0, 0, 0, time.UTC)

func recognize(t *testing.T, text string) []entities.Entity {
	t.Helper()
	ents, err := entities.NewLexical(func() time.Time { return fixedNow }).Recognize(context.Background(), text)
	require.NoError(t, err)
	return ents
}

func TestAssemble_QuarterlyReport(t *testing.T) {
	text := "Please complete the quarterly report by Monday and assign it to Sarah."
	ents := recognize(t, text)

	info := Assemble(Input{
		Text:      text,
		Entities:  ents,
		Keywords:  entities.Keywords(text, 10),
		Intent:    task.IntentResult{Intent: "TASK_CREATION", RawLabel: "create_task", Confidence: 0.99},
		Sentiment: sentiment.New().Score(text),
	})

	assert.Equal(t, "Complete the quarterly report", info.Title)
	require.NotNil(t, info.Assignee)
	assert.Equal(t, "Sarah", *info.Assignee)
	require.NotNil(t, info.DueDateHint)
	assert.Equal(t, time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC), *info.DueDateHint)
	assert.Contains(t, info.Entities, "Sarah")
	assert.Contains(t, info.Keywords, "quarterly")
	assert.Contains(t, info.Tags, "reporting")
	assert.Equal(t, 0.75, info.CategoryPredictions["reporting"], "quarterly + report")
	assert.Equal(t, sentiment.PriorityMedium, info.Priority)
	assert.Equal(t, []string{"by monday"}, info.UrgencyIndicators)
}

func TestAssemble_CodeReview(t *testing.T) {
	text := "Hey Bob, could you finish the code review?"
	info := Assemble(Input{
		Text:     text,
		Entities: recognize(t, text),
		Keywords: entities.Keywords(text, 10),
	})

	assert.Equal(t, "Finish the code review", info.Title)
	require.NotNil(t, info.Assignee)
	assert.Equal(t, "Bob", *info.Assignee)
	assert.Nil(t, info.DueDateHint)
	assert.Contains(t, info.Tags, "review")
	assert.NotNil(t, info.Keywords)
	assert.NotNil(t, info.UrgencyIndicators)
}

func TestTitle(t *testing.T) {
	tests := []struct {
		text     string
		keywords []string
		want     string
	}{
		{"Can you send the invoice to the client?", nil, "Send the invoice"},
		{"We need to update the onboarding docs this week.", nil, "Update the onboarding docs"},
		{"Please pick up the dry cleaning after work.", nil, "Pick up the dry cleaning"},
		{"Fix the bug in the login page", nil, "Fix the bug"},
		{"I think the review went well, prepare the slides for Friday.", nil, "Prepare the slides"},
		{"Budget numbers for Q3 seem off.", []string{"numbers", "budget"}, "Budget numbers"},
		{"Hello there. Nice weather.", nil, "Hello there"},
		{"Ask Priya to send the slide deck by Thursday.", nil, "Send the slide deck"},
		{"Can you remind @omar to file the expense report?", nil, "File the expense report"},
		{"Please have Tina prepare the budget.", nil, "Prepare the budget"},
		{"Carlos will test the release candidate tomorrow.", nil, "Test the release candidate"},
		{"Ask the vendor about pricing.", nil, "Ask the vendor about pricing"},
		{"The code review is blocked, please check the build logs.", nil, "Check the build logs"},
		{"Quick status update: merge the hotfix today.", nil, "Merge the hotfix"},
		{"Status update went out. Update the tracker.", nil, "Update the tracker"},
		{"", nil, ""},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			assert.Equal(t, tt.want, Title(tt.text, nil, tt.keywords))
		})
	}
}

func TestTitle_StopsAtDateEntity(t *testing.T) {
	text := "Submit the expense form 6/14 please"
	ents := []entities.Entity{{Text: "6/14", Kind: entities.KindDate, Start: 24, End: 28}}
	assert.Equal(t, "Submit the expense form", Title(text, ents, nil))
}

func TestTitle_Bounds(t *testing.T) {
	text := "Summarize the incredibly long and winding discussion"
	got := Title(text, nil, nil)
	assert.Equal(t, "Summarize the incredibly long", got)

	long := "Word word word word word word word word word word word word word word word word"
	assert.LessOrEqual(t, len([]rune(Title(long, nil, nil))), maxFallbackRunes)
}

func TestAssignee(t *testing.T) {
	t.Run("no cue", func(t *testing.T) {
		ents := []entities.Entity{{Text: "Sarah", Kind: entities.KindPerson, Start: 0, End: 5}}
		assert.Nil(t, Assignee("Sarah liked the demo.", ents))
	})

	t.Run("first cued person in text order", func(t *testing.T) {
		text := "Ask Priya to update the roadmap and tell Omar to review it."
		ents := []entities.Entity{
			{Text: "Omar", Kind: entities.KindPerson, Start: 41, End: 45},
			{Text: "Priya", Kind: entities.KindPerson, Start: 4, End: 9},
		}
		got := Assignee(text, ents)
		require.NotNil(t, got)
		assert.Equal(t, "Priya", *got)
	})

	t.Run("cue without person entity", func(t *testing.T) {
		assert.Nil(t, Assignee("Ask Priya to update the roadmap.", nil))
	})
}

func TestDueDate(t *testing.T) {
	mon := time.Date(2024, 6, 10, 17, 30, 0, 0, time.UTC)
	fri := time.Date(2024, 6, 7, 9, 0, 0, 0, time.UTC)

	assert.Nil(t, DueDate(nil))
	assert.Nil(t, DueDate([]entities.Entity{{Text: "soon", Kind: entities.KindDate}}))

	got := DueDate([]entities.Entity{
		{Text: "Monday", Kind: entities.KindDate, Start: 30, End: 36, Time: &mon},
		{Text: "Friday", Kind: entities.KindDate, Start: 10, End: 16, Time: &fri},
	})
	require.NotNil(t, got)
	assert.Equal(t, time.Date(2024, 6, 7, 0, 0, 0, 0, time.UTC), *got)
}

func TestCategorizer(t *testing.T) {
	c := NewCategorizer(nil)

	scores := c.Score("Please review the invoice and the budget before the client call.", "")
	assert.Equal(t, 0.5, scores["review"])
	assert.Equal(t, 0.75, scores["finance"])
	assert.Equal(t, 0.5, scores["customer"])
	assert.Equal(t, 0.5, scores["meeting"])
	assert.Equal(t, 0.0, scores["engineering"])
	for _, s := range scores {
		assert.GreaterOrEqual(t, s, 0.0)
		assert.LessOrEqual(t, s, 1.0)
	}

	assert.Equal(t, []string{"finance", "customer", "meeting", "review"}, Tags(scores))
}

func TestCategorizer_IntentNudge(t *testing.T) {
	c := NewCategorizer(nil)
	scores := c.Score("Are you free on Thursday?", "MEETING_REQUEST")
	assert.Equal(t, 0.5, scores["meeting"])
}

func TestCategorizer_WordBoundaries(t *testing.T) {
	c := NewCategorizer(map[string][]string{"eng": {"api", "pr"}})
	assert.Equal(t, 0.0, c.Score("The rapid approach", "")["eng"])
	assert.Equal(t, 0.75, c.Score("Open a PR for the API", "")["eng"])
}
