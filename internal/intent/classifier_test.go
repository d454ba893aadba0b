package intent

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/taskextract/internal/config"
	"github.com/fyrsmithlabs/taskextract/pkg/task"
)

// fakeModel answers from a fixed table and counts calls.
type fakeModel struct {
	mu      sync.Mutex
	answers map[string]Prediction
	def     Prediction
	err     error
	panics  bool
	calls   int
	texts   []string
}

func (f *fakeModel) Name() string { return "fake" }

func (f *fakeModel) Classify(_ context.Context, text string) (Prediction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.texts = append(f.texts, text)
	if f.panics {
		panic("model exploded")
	}
	if f.err != nil {
		return Prediction{}, f.err
	}
	if p, ok := f.answers[text]; ok {
		return p, nil
	}
	return f.def, nil
}

func (f *fakeModel) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// fakeBatchModel adds ClassifyBatch on top of fakeModel.
type fakeBatchModel struct {
	*fakeModel
	batchErr   error
	batchCalls int
	batchSizes []int
}

func (f *fakeBatchModel) ClassifyBatch(ctx context.Context, texts []string) ([]Prediction, error) {
	f.mu.Lock()
	f.batchCalls++
	f.batchSizes = append(f.batchSizes, len(texts))
	err := f.batchErr
	f.mu.Unlock()
	if err != nil {
		return nil, err
	}

	out := make([]Prediction, len(texts))
	for i, t := range texts {
		f.mu.Lock()
		p, ok := f.answers[t]
		f.mu.Unlock()
		if !ok {
			p = f.def
		}
		out[i] = p
	}
	return out, nil
}

func newTestClassifier(t *testing.T, m Model, threshold float64) *Classifier {
	t.Helper()
	c, err := NewClassifier(m, Options{
		Mapping:   config.DefaultMapping(),
		Threshold: threshold,
		CacheSize: 16,
	})
	require.NoError(t, err)
	return c
}

func TestClassifyIntent_EmptyTextRejectedBeforeModel(t *testing.T) {
	m := &fakeModel{def: Prediction{Label: LabelCreateTask, Confidence: 0.9}}
	c := newTestClassifier(t, m, 0.6)

	for _, text := range []string{"", "   ", "\n\t "} {
		_, err := c.ClassifyIntent(context.Background(), text, true)
		require.Error(t, err)
		assert.ErrorIs(t, err, task.ErrInvalidInput)
		assert.True(t, task.IsInvalidInput(err))
	}
	assert.Equal(t, 0, m.Calls())
	assert.Equal(t, 0, c.CacheStats().Size)
	assert.Zero(t, c.CacheStats().Misses, "cache must not be consulted")
}

func TestClassifyIntent_MappingAndThreshold(t *testing.T) {
	m := &fakeModel{answers: map[string]Prediction{
		"please send it":  {Label: LabelCreateTask, Confidence: 0.9},
		"maybe send it":   {Label: LabelCreateTask, Confidence: 0.5},
		"hello there":     {Label: LabelChitchat, Confidence: 0.95},
		"what is this":    {Label: "unknown_label", Confidence: 0.99},
		"exactly at edge": {Label: LabelRequestInfo, Confidence: 0.6},
	}}
	c := newTestClassifier(t, m, 0.6)

	tests := []struct {
		text string
		want task.IntentResult
	}{
		{"please send it", task.IntentResult{Intent: "TASK_CREATION", RawLabel: LabelCreateTask, Confidence: 0.9}},
		{"maybe send it", task.IntentResult{Intent: "", RawLabel: LabelCreateTask, Confidence: 0.5}},
		{"hello there", task.IntentResult{Intent: "", RawLabel: LabelChitchat, Confidence: 0.95}},
		{"what is this", task.IntentResult{Intent: "", RawLabel: "unknown_label", Confidence: 0.99}},
		{"exactly at edge", task.IntentResult{Intent: "INFORMATION_REQUEST", RawLabel: LabelRequestInfo, Confidence: 0.6}},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			got, err := c.ClassifyIntent(context.Background(), tt.text, false)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.want.Intent != "", got.Resolved())
		})
	}
}

func TestClassifyIntent_ConfidenceClamped(t *testing.T) {
	m := &fakeModel{def: Prediction{Label: LabelCreateTask, Confidence: 1.7}}
	c := newTestClassifier(t, m, 0.6)

	got, err := c.ClassifyIntent(context.Background(), "do it", false)
	require.NoError(t, err)
	assert.Equal(t, 1.0, got.Confidence)

	m.def = Prediction{Label: LabelCreateTask, Confidence: -0.2}
	got, err = c.ClassifyIntent(context.Background(), "do it", false)
	require.NoError(t, err)
	assert.Equal(t, 0.0, got.Confidence)
	assert.False(t, got.Resolved())
}

func TestClassifyIntent_Cache(t *testing.T) {
	m := &fakeModel{def: Prediction{Label: LabelCreateTask, Confidence: 0.9}}
	c := newTestClassifier(t, m, 0.6)
	ctx := context.Background()

	first, err := c.ClassifyIntent(ctx, "Please send the report", true)
	require.NoError(t, err)
	second, err := c.ClassifyIntent(ctx, "  Please   send the report ", true)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, m.Calls(), "normalized duplicate is a cache hit")

	_, err = c.ClassifyIntent(ctx, "Please send the report", false)
	require.NoError(t, err)
	assert.Equal(t, 2, m.Calls(), "useCache=false bypasses the read")

	_, err = c.ClassifyIntent(ctx, "A brand new text", false)
	require.NoError(t, err)
	assert.Equal(t, 1, c.CacheStats().Size, "useCache=false does not write")

	_, err = c.ClassifyIntent(ctx, "A brand new text", true)
	require.NoError(t, err)
	assert.Equal(t, 4, m.Calls())
	assert.Equal(t, 2, c.CacheStats().Size)
}

func TestClassifyIntent_ModelError(t *testing.T) {
	boom := errors.New("backend down")
	m := &fakeModel{err: boom}
	c := newTestClassifier(t, m, 0.6)

	_, err := c.ClassifyIntent(context.Background(), "Please send it", true)
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "fake")
	assert.Equal(t, 0, c.CacheStats().Size, "failures are not cached")
}

func TestClassifyIntent_ModelPanic(t *testing.T) {
	c := newTestClassifier(t, &fakeModel{panics: true}, 0.6)

	_, err := c.ClassifyIntent(context.Background(), "Please send it", true)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panicked")
}

func TestBatchClassifyIntents_IsolatesInvalidElements(t *testing.T) {
	m := &fakeModel{answers: map[string]Prediction{
		"Please send the report": {Label: LabelCreateTask, Confidence: 0.9},
		"Are you free at 3?":     {Label: LabelScheduleMeeting, Confidence: 0.8},
	}}
	c := newTestClassifier(t, m, 0.6)

	got, err := c.BatchClassifyIntents(context.Background(), []string{
		"Please send the report",
		"   ",
		"Are you free at 3?",
		"",
	}, true)
	require.NoError(t, err)
	require.Len(t, got, 4)

	assert.Equal(t, "TASK_CREATION", got[0].Intent)
	assert.Empty(t, got[0].Error)
	assert.NotEmpty(t, got[1].Error)
	assert.Empty(t, got[1].Intent)
	assert.Equal(t, "MEETING_REQUEST", got[2].Intent)
	assert.NotEmpty(t, got[3].Error)
	assert.Equal(t, 2, m.Calls())
}

func TestBatchClassifyIntents_EmptySlice(t *testing.T) {
	c := newTestClassifier(t, &fakeModel{}, 0.6)

	_, err := c.BatchClassifyIntents(context.Background(), nil, true)
	assert.ErrorIs(t, err, task.ErrInvalidInput)

	_, err = c.BatchClassifyIntents(context.Background(), []string{}, true)
	assert.ErrorIs(t, err, task.ErrInvalidInput)
}

func TestBatchClassifyIntents_UsesBatchModel(t *testing.T) {
	m := &fakeBatchModel{fakeModel: &fakeModel{def: Prediction{Label: LabelRequestInfo, Confidence: 0.85}}}
	c := newTestClassifier(t, m, 0.6)
	ctx := context.Background()

	_, err := c.ClassifyIntent(ctx, "cached one", true)
	require.NoError(t, err)
	require.Equal(t, 1, m.Calls())

	got, err := c.BatchClassifyIntents(ctx, []string{"cached one", "two", "", "three"}, true)
	require.NoError(t, err)
	require.Len(t, got, 4)

	assert.Equal(t, 1, m.batchCalls)
	assert.Equal(t, []int{2}, m.batchSizes, "only uncached valid texts reach the model")
	assert.Equal(t, 1, m.Calls())
	for _, i := range []int{0, 1, 3} {
		assert.Equal(t, "INFORMATION_REQUEST", got[i].Intent, i)
	}
	assert.NotEmpty(t, got[2].Error)
	assert.Equal(t, 3, c.CacheStats().Size)
}

func TestBatchClassifyIntents_BatchFailureFallsBack(t *testing.T) {
	m := &fakeBatchModel{
		fakeModel: &fakeModel{def: Prediction{Label: LabelCreateTask, Confidence: 0.9}},
		batchErr:  errors.New("batch endpoint unavailable"),
	}
	c := newTestClassifier(t, m, 0.6)

	got, err := c.BatchClassifyIntents(context.Background(), []string{"one", "two"}, false)
	require.NoError(t, err)
	assert.Equal(t, 1, m.batchCalls)
	assert.Equal(t, 2, m.Calls())
	for _, r := range got {
		assert.Equal(t, "TASK_CREATION", r.Intent)
	}
}

func TestBatchClassifyIntents_PerItemModelErrors(t *testing.T) {
	m := &fakeModel{err: errors.New("nope")}
	c := newTestClassifier(t, m, 0.6)

	got, err := c.BatchClassifyIntents(context.Background(), []string{"one", "two"}, true)
	require.NoError(t, err)
	for _, r := range got {
		assert.Contains(t, r.Error, "nope")
	}
}

func TestBatchClassifyIntents_Canceled(t *testing.T) {
	m := &fakeModel{def: Prediction{Label: LabelCreateTask, Confidence: 0.9}}
	c := newTestClassifier(t, m, 0.6)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	got, err := c.BatchClassifyIntents(ctx, []string{"one", "two"}, true)
	assert.ErrorIs(t, err, context.Canceled)
	require.Len(t, got, 2)
	for _, r := range got {
		assert.NotEmpty(t, r.Error)
	}
	assert.Equal(t, 0, m.Calls())
}

func TestNewClassifier_Validation(t *testing.T) {
	_, err := NewClassifier(nil, Options{Mapping: config.DefaultMapping()})
	assert.Error(t, err)

	_, err = NewClassifier(&fakeModel{}, Options{})
	assert.Error(t, err, "mapping is explicit configuration")

	_, err = NewClassifier(&fakeModel{}, Options{Mapping: config.DefaultMapping(), Threshold: 1.2})
	assert.Error(t, err)
}

func TestClassifier_MappingIsCopied(t *testing.T) {
	mapping := map[string]string{LabelCreateTask: "TASK_CREATION"}
	c, err := NewClassifier(&fakeModel{def: Prediction{Label: LabelCreateTask, Confidence: 0.9}}, Options{
		Mapping:   mapping,
		Threshold: 0.5,
	})
	require.NoError(t, err)

	mapping[LabelCreateTask] = "CHANGED"
	got, err := c.ClassifyIntent(context.Background(), "do it", false)
	require.NoError(t, err)
	assert.Equal(t, "TASK_CREATION", got.Intent)
}

func TestClassifier_Metrics(t *testing.T) {
	metrics := NewMetrics()
	c, err := NewClassifier(&fakeModel{def: Prediction{Label: LabelScheduleMeeting, Confidence: 0.9}}, Options{
		Mapping:   config.DefaultMapping(),
		Threshold: 0.5,
		Metrics:   metrics,
	})
	require.NoError(t, err)

	counter := metrics.ClassificationsTotal.WithLabelValues("fake", "MEETING_REQUEST")
	before := testutil.ToFloat64(counter)

	_, err = c.ClassifyIntent(context.Background(), "sync at 3?", false)
	require.NoError(t, err)
	assert.Equal(t, before+1, testutil.ToFloat64(counter))
}
