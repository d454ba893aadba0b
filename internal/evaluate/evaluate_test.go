package evaluate

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/taskextract/pkg/extractor"
	"github.com/fyrsmithlabs/taskextract/pkg/task"
)

func TestDefaultCases(t *testing.T) {
	cases := DefaultCases()
	assert.GreaterOrEqual(t, len(cases), 20)
	for _, c := range cases {
		assert.True(t, c.Source.Valid(), c.Name)
		assert.NotEmpty(t, c.Text, c.Name)
	}
}

func TestHeldOutCases(t *testing.T) {
	held := HeldOutCases()
	assert.GreaterOrEqual(t, len(held), 20)

	labeled := make(map[string]bool)
	for _, c := range DefaultCases() {
		labeled[c.Text] = true
	}
	for _, c := range held {
		assert.False(t, labeled[c.Text], "%s also appears in the labeled split", c.Name)
	}
}

func TestBuiltinCases(t *testing.T) {
	cases, err := BuiltinCases("")
	require.NoError(t, err)
	assert.Equal(t, DefaultCases(), cases)

	cases, err = BuiltinCases(SplitHeldOut)
	require.NoError(t, err)
	assert.Equal(t, HeldOutCases(), cases)

	_, err = BuiltinCases("train")
	assert.ErrorContains(t, err, "unknown dataset split")
}

func newDefaultExtractor(t *testing.T) *extractor.Extractor {
	t.Helper()
	ex, err := extractor.New(context.Background(), nil,
		extractor.WithClock(func() time.Time { return time.Date(2024, 6, 5, 9, 0, 0, 0, time.UTC) }))
	require.NoError(t, err)
	t.Cleanup(func() { ex.Close() })
	return ex
}

func TestAccuracy_DefaultConfig(t *testing.T) {
	for _, split := range []string{SplitLabeled, SplitHeldOut} {
		t.Run(split, func(t *testing.T) {
			cases, err := BuiltinCases(split)
			require.NoError(t, err)

			rep, err := Run(context.Background(), newDefaultExtractor(t), cases, 4)
			require.NoError(t, err)

			for _, f := range rep.Failures {
				t.Logf("%s: %s", f.Case, strings.Join(f.Reasons, "; "))
			}
			assert.GreaterOrEqual(t, rep.Accuracy, 0.95)
			assert.Equal(t, rep.Total, rep.Passed+len(rep.Failures))
		})
	}
}

func TestParse(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		cases, err := Parse(strings.NewReader(`
cases:
  - name: one
    source: CHAT
    text: "Tom, please send the deck."
    expect:
      title: send the deck
      assignee: Tom
  - name: two
    source: EMAIL
    text: "thanks!"
    expect:
      valid: false
`))
		require.NoError(t, err)
		require.Len(t, cases, 2)
		assert.True(t, cases[0].Expect.WantValid())
		require.NotNil(t, cases[0].Expect.Assignee)
		assert.Equal(t, "Tom", *cases[0].Expect.Assignee)
		assert.False(t, cases[1].Expect.WantValid())
	})

	tests := []struct {
		name string
		doc  string
		want string
	}{
		{"empty", "", "empty"},
		{"no cases", "cases: []", "no cases"},
		{"unknown field", "cases:\n  - name: a\n    source: CHAT\n    text: x\n    bogus: 1\n", "bogus"},
		{"bad source", "cases:\n  - name: a\n    source: FAX\n    text: x\n    expect: {title: x}\n", "unknown source"},
		{"duplicate", "cases:\n  - {name: a, source: CHAT, text: x, expect: {title: x}}\n  - {name: a, source: CHAT, text: y, expect: {title: y}}\n", "duplicate"},
		{"missing title", "cases:\n  - {name: a, source: CHAT, text: x}\n", "expected title"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(tt.doc))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestCheck(t *testing.T) {
	sarah := "Sarah"
	bob := "Bob"
	valid := task.ExtractionResult{
		Valid:  true,
		Intent: "TASK_CREATION",
		TaskInfo: &task.TaskInfo{
			Title:    "Complete the quarterly report",
			Assignee: &sarah,
		},
	}

	assert.Empty(t, Check(Expectation{Title: "QUARTERLY report", Assignee: &sarah, Intent: "TASK_CREATION"}, valid))
	assert.NotEmpty(t, Check(Expectation{Title: "budget"}, valid))
	assert.NotEmpty(t, Check(Expectation{Title: "report", Assignee: &bob}, valid))
	assert.NotEmpty(t, Check(Expectation{Title: "report", Assignee: &sarah, Intent: "MEETING_REQUEST"}, valid))
	assert.NotEmpty(t, Check(Expectation{Title: "report"}, valid), "unexpected assignee")

	no := false
	assert.Empty(t, Check(Expectation{Valid: &no}, task.ExtractionResult{}))
	assert.NotEmpty(t, Check(Expectation{Valid: &no}, valid))
	assert.NotEmpty(t, Check(Expectation{Title: "x"}, task.Failed(errors.New("boom"))))
}

type failingExtractor struct{}

func (failingExtractor) ExtractBatch(context.Context, []task.ExtractionRequest, int) ([]task.ExtractionResult, error) {
	return nil, context.Canceled
}

func TestRun_PropagatesBatchError(t *testing.T) {
	_, err := Run(context.Background(), failingExtractor{}, DefaultCases(), 2)
	assert.ErrorIs(t, err, context.Canceled)
}
