package intent

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/taskextract/internal/config"
	"github.com/fyrsmithlabs/taskextract/internal/embeddings"
	"github.com/fyrsmithlabs/taskextract/pkg/task"
)

func TestSemantic_NearestExemplarWins(t *testing.T) {
	provider := embeddings.NewHashingProvider(256)
	s, err := NewSemantic(context.Background(), provider, map[string][]string{
		"deploy": {"deploy the server release", "roll out the new server build"},
		"food":   {"order pizza and sandwiches for lunch"},
	}, 1)
	require.NoError(t, err)
	assert.Equal(t, BackendSemantic, s.Name())

	p, err := s.Classify(context.Background(), "deploy the release to the server")
	require.NoError(t, err)
	assert.Equal(t, "deploy", p.Label)
	assert.Equal(t, 1.0, p.Confidence)

	p, err = s.Classify(context.Background(), "pizza for lunch")
	require.NoError(t, err)
	assert.Equal(t, "food", p.Label)
}

func TestSemantic_TopKVote(t *testing.T) {
	provider := embeddings.NewHashingProvider(256)
	s, err := NewSemantic(context.Background(), provider, map[string][]string{
		"deploy": {"deploy the server release", "deploy the server build"},
		"food":   {"order pizza and sandwiches for lunch"},
	}, 10)
	require.NoError(t, err)

	p, err := s.Classify(context.Background(), "deploy the server release tonight")
	require.NoError(t, err)
	assert.Equal(t, "deploy", p.Label)
	assert.Greater(t, p.Confidence, 0.5)
	assert.LessOrEqual(t, p.Confidence, 1.0)
}

func TestNewSemantic_Invalid(t *testing.T) {
	ctx := context.Background()
	provider := embeddings.NewHashingProvider(64)

	_, err := NewSemantic(ctx, nil, DefaultExemplars(), 3)
	assert.Error(t, err)

	_, err = NewSemantic(ctx, provider, nil, 3)
	assert.Error(t, err)

	_, err = NewSemantic(ctx, provider, map[string][]string{"a": {""}}, 3)
	assert.Error(t, err)
}

func TestNewModel(t *testing.T) {
	ctx := context.Background()

	t.Run("heuristic default", func(t *testing.T) {
		m, err := NewModel(ctx, config.IntentConfig{}, Deps{})
		require.NoError(t, err)
		assert.Equal(t, BackendHeuristic, m.Name())
	})

	t.Run("semantic with default exemplars", func(t *testing.T) {
		m, err := NewModel(ctx, config.IntentConfig{
			Backend:  BackendSemantic,
			Semantic: config.SemanticConfig{Provider: "hashing", TopK: 1},
		}, Deps{})
		require.NoError(t, err)
		assert.Equal(t, BackendSemantic, m.Name())

		p, err := m.Classify(ctx, "Can we schedule a meeting for Thursday afternoon?")
		require.NoError(t, err)
		assert.Equal(t, LabelScheduleMeeting, p.Label)
	})

	t.Run("semantic with bad provider", func(t *testing.T) {
		_, err := NewModel(ctx, config.IntentConfig{
			Backend:  BackendSemantic,
			Semantic: config.SemanticConfig{Provider: "word2vec"},
		}, Deps{})
		assert.ErrorIs(t, err, task.ErrModelUnavailable)
	})

	t.Run("anthropic without key", func(t *testing.T) {
		_, err := NewModel(ctx, config.IntentConfig{Backend: BackendAnthropic}, Deps{})
		assert.ErrorIs(t, err, task.ErrModelUnavailable)
	})

	t.Run("unknown backend", func(t *testing.T) {
		_, err := NewModel(ctx, config.IntentConfig{Backend: "oracle"}, Deps{})
		require.Error(t, err)
		assert.ErrorIs(t, err, task.ErrModelUnavailable)
		assert.Contains(t, err.Error(), "oracle")
	})
}

func TestDefaultExemplars_CoverLabels(t *testing.T) {
	ex := DefaultExemplars()
	for _, l := range Labels() {
		assert.NotEmpty(t, ex[l], l)
	}
}
