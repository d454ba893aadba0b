package confidence

import (
	"math"
	"testing"

	"github.com/fyrsmithlabs/taskextract/pkg/task"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name      string
		w         Weights
		threshold float64
		wantErr   string
	}{
		{"defaults", DefaultWeights(), 0.8, ""},
		{"threshold one", DefaultWeights(), 1, ""},
		{"zero threshold", DefaultWeights(), 0, "threshold"},
		{"threshold above one", DefaultWeights(), 1.2, "threshold"},
		{"nan threshold", DefaultWeights(), math.NaN(), "threshold"},
		{"negative weight", Weights{NER: -0.1, Intent: 1}, 0.8, "non-negative"},
		{"zero sum", Weights{}, 0.8, "positive"},
		{"inf weight", Weights{NER: math.Inf(1)}, 0.8, "non-negative"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := New(tt.w, tt.threshold)
			if tt.wantErr == "" {
				require.NoError(t, err)
				assert.Equal(t, tt.threshold, a.Threshold())
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestAggregate(t *testing.T) {
	a, err := New(DefaultWeights(), 0.8)
	require.NoError(t, err)

	tests := []struct {
		name      string
		c         task.ComponentConfidences
		resolved  bool
		wantFinal float64
		wantValid bool
	}{
		{"all high", task.ComponentConfidences{NER: 0.925, Intent: 0.99, Sentiment: 1}, true, 0.966, true},
		{"unresolved intent", task.ComponentConfidences{NER: 1, Intent: 1, Sentiment: 1}, false, 1, false},
		{"below threshold", task.ComponentConfidences{NER: 0.6, Intent: 0.7, Sentiment: 1}, true, 0.72, false},
		{"just above threshold", task.ComponentConfidences{NER: 0.8, Intent: 0.76, Sentiment: 1}, true, 0.824, true},
		{"zero component degrades", task.ComponentConfidences{NER: 0, Intent: 1, Sentiment: 1}, true, 0.6, false},
		{"all zero", task.ComponentConfidences{}, true, 0, false},
		{"clamped", task.ComponentConfidences{NER: 2, Intent: -1, Sentiment: math.NaN()}, true, 0.4, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := a.Aggregate(tt.c, tt.resolved)
			assert.InDelta(t, tt.wantFinal, d.FinalConfidence, 1e-9)
			assert.Equal(t, tt.wantValid, d.Valid)
			assert.GreaterOrEqual(t, d.FinalConfidence, 0.0)
			assert.LessOrEqual(t, d.FinalConfidence, 1.0)
		})
	}
}

func TestAggregate_NormalizesWeights(t *testing.T) {
	a, err := New(Weights{NER: 2, Intent: 2, Sentiment: 1}, 0.5)
	require.NoError(t, err)
	d := a.Aggregate(task.ComponentConfidences{NER: 0.5, Intent: 0.5, Sentiment: 0.5}, true)
	assert.InDelta(t, 0.5, d.FinalConfidence, 1e-9)
	assert.True(t, d.Valid)
}

func TestClamp(t *testing.T) {
	assert.Equal(t, 0.0, Clamp(math.NaN()))
	assert.Equal(t, 0.0, Clamp(-3))
	assert.Equal(t, 1.0, Clamp(7))
	assert.Equal(t, 0.25, Clamp(0.25))
}
