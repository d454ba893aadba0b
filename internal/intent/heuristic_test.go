package intent

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeuristic_Classify(t *testing.T) {
	h, err := NewHeuristic(DefaultPatterns())
	require.NoError(t, err)

	tests := []struct {
		text    string
		label   string
		minConf float64
	}{
		{"Please complete the quarterly report by Monday and assign it to Sarah.", LabelCreateTask, 0.99},
		{"Hey Bob, could you finish the code review?", LabelCreateTask, 0.85},
		{"Don't forget to renew the SSL certificate before Friday.", LabelCreateTask, 0.8},
		{"Send me the numbers for Q3.", LabelRequestInfo, 0.9},
		{"I finished the deployment last night.", LabelUpdateStatus, 0.9},
		{"Quick update: the migration is on track.", LabelUpdateStatus, 0.85},
		{"Can we schedule a meeting for Thursday afternoon?", LabelScheduleMeeting, 0.95},
		{"Let's sync tomorrow at 10am to go over the plan.", LabelScheduleMeeting, 0.9},
		{"What is the status of the budget approval?", LabelRequestInfo, 0.8},
		{"Do you know where the latest contract is?", LabelRequestInfo, 0.85},
		{"Thanks so much!", LabelChitchat, 0.9},
		{"Good morning team", LabelChitchat, 0.9},
		{"Can we meet Thursday at 3pm?", LabelScheduleMeeting, 0.9},
		{"Could we meet tomorrow to walk through the roadmap?", LabelScheduleMeeting, 0.9},
		{"Mark will prepare the sprint demo for Friday.", LabelCreateTask, 0.85},
		{"Carlos will test the release candidate tomorrow.", LabelCreateTask, 0.85},
		{"Please have Tina prepare the budget.", LabelCreateTask, 0.9},
		{"Ask Priya to send the slide deck by Thursday.", LabelCreateTask, 0.9},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			p, err := h.Classify(context.Background(), tt.text)
			require.NoError(t, err)
			assert.Equal(t, tt.label, p.Label, "matches: %v", h.Matches(tt.text))
			assert.GreaterOrEqual(t, p.Confidence, tt.minConf)
			assert.LessOrEqual(t, p.Confidence, maxHeuristicScore)
		})
	}
}

func TestHeuristic_NoMatch(t *testing.T) {
	h, err := NewHeuristic(DefaultPatterns())
	require.NoError(t, err)

	p, err := h.Classify(context.Background(), "The weather is lovely")
	require.NoError(t, err)
	assert.Equal(t, Prediction{Label: LabelChitchat, Confidence: noMatchConfidence}, p)
}

func TestHeuristic_CorroborationBonus(t *testing.T) {
	h, err := NewHeuristic([]Pattern{
		{"a", "one", `\bfoo\b`, 0.7, ""},
		{"a", "two", `\bbar\b`, 0.6, ""},
		{"b", "three", `\bbaz\b`, 0.72, ""},
	})
	require.NoError(t, err)

	p, err := h.Classify(context.Background(), "foo bar baz")
	require.NoError(t, err)
	assert.Equal(t, "a", p.Label)
	assert.InDelta(t, 0.75, p.Confidence, 1e-9)

	p, err = h.Classify(context.Background(), "foo baz")
	require.NoError(t, err)
	assert.Equal(t, "b", p.Label)
}

func TestHeuristic_TieBreaksByLabelOrder(t *testing.T) {
	h, err := NewHeuristic([]Pattern{
		{LabelRequestInfo, "q", `\bx\b`, 0.8, ""},
		{LabelCreateTask, "t", `\bx\b`, 0.8, ""},
	})
	require.NoError(t, err)

	p, err := h.Classify(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, LabelCreateTask, p.Label)
}

func TestNewHeuristic_Invalid(t *testing.T) {
	_, err := NewHeuristic(nil)
	assert.Error(t, err)

	_, err = NewHeuristic([]Pattern{{"a", "bad", `(`, 0.5, ""}})
	assert.Error(t, err)

	_, err = NewHeuristic([]Pattern{{"a", "heavy", `x`, 1.5, ""}})
	assert.Error(t, err)
}

func TestHeuristic_NamedModalSkipsPronounSubjects(t *testing.T) {
	h, err := NewHeuristic(DefaultPatterns())
	require.NoError(t, err)

	for _, text := range []string{
		"This will fix the login bug.",
		"We can review it later.",
		"It should update on its own.",
	} {
		assert.NotContains(t, h.Matches(text), LabelCreateTask+"/named_modal", text)
	}
	assert.Contains(t, h.Matches("Ok, Emma will review the contract."), LabelCreateTask+"/named_modal")

	assert.NotContains(t, h.Matches("Let me check the logs."), LabelCreateTask+"/delegate")
	assert.Contains(t, h.Matches("Let Yuki handle the escalation."), LabelCreateTask+"/delegate")
}

func TestHeuristic_Exclude(t *testing.T) {
	h, err := NewHeuristic([]Pattern{
		{"a", "will", `\b\w+ will go\b`, 0.8, `^it\b`},
	})
	require.NoError(t, err)

	assert.Empty(t, h.Matches("it will go"))
	assert.Equal(t, []string{"a/will"}, h.Matches("it will go and Rex will go"))

	_, err = NewHeuristic([]Pattern{{"a", "bad", `x`, 0.5, `(`}})
	assert.Error(t, err)
}

func TestHeuristic_Canceled(t *testing.T) {
	h, err := NewHeuristic(DefaultPatterns())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = h.Classify(ctx, "Please send the report")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestHeuristic_ClassifyBatch(t *testing.T) {
	h, err := NewHeuristic(DefaultPatterns())
	require.NoError(t, err)

	preds, err := h.ClassifyBatch(context.Background(), []string{
		"Please send the invoice.",
		"Thanks!",
	})
	require.NoError(t, err)
	require.Len(t, preds, 2)
	assert.Equal(t, LabelCreateTask, preds[0].Label)
	assert.Equal(t, LabelChitchat, preds[1].Label)
}
