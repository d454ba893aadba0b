package intent

import (
	"context"
	"errors"
	"fmt"
	"slices"

	chromem "github.com/philippgille/chromem-go"

	"github.com/fyrsmithlabs/taskextract/internal/embeddings"
)

const (
	exemplarCollection = "intent_exemplars"
	labelMetadataKey   = "label"
	defaultTopK        = 5
)

// DefaultExemplars returns example utterances for each built-in raw label.
func DefaultExemplars() map[string][]string {
	return map[string][]string{
		LabelCreateTask: {
			"Please complete the report by Friday.",
			"Could you review the pull request today?",
			"Can you send the invoice to the client?",
			"Assign the migration ticket to Priya.",
			"Please prepare the slides for the board meeting.",
			"Fix the login bug before the release.",
			"We need to update the onboarding docs this week.",
			"Don't forget to submit your expense report.",
		},
		LabelUpdateStatus: {
			"I finished the quarterly report.",
			"The deployment is done and everything is live.",
			"We shipped the new billing page yesterday.",
			"Quick update: the API migration is on track.",
			"I'm still working on the test failures.",
			"The ticket is blocked waiting on legal review.",
		},
		LabelScheduleMeeting: {
			"Can we schedule a meeting for Thursday afternoon?",
			"Let's set up a call to discuss the roadmap.",
			"Are you free tomorrow at 3pm for a quick sync?",
			"I'll send a calendar invite for the design review.",
			"Let's meet next week to plan the launch.",
		},
		LabelRequestInfo: {
			"What is the status of the budget approval?",
			"Do you know where the latest contract is?",
			"When is the launch date?",
			"Can you tell me who owns the payments service?",
			"Send me the link to the dashboard.",
			"How many users signed up last week?",
		},
		LabelChitchat: {
			"Hi everyone!",
			"Thanks so much, have a great weekend.",
			"How was your vacation?",
			"Haha that's hilarious.",
			"Good morning team.",
			"Want to grab lunch?",
		},
	}
}

// Semantic classifies by similarity-weighted vote among the nearest
// exemplar utterances in an embedding space.
type Semantic struct {
	provider   embeddings.Provider
	collection *chromem.Collection
	topK       int
}

// NewSemantic embeds exemplars into an in-memory chromem collection.
func NewSemantic(ctx context.Context, provider embeddings.Provider, exemplars map[string][]string, topK int) (*Semantic, error) {
	if provider == nil {
		return nil, errors.New("embedding provider is required")
	}
	if len(exemplars) == 0 {
		return nil, errors.New("no exemplars")
	}
	if topK < 1 {
		topK = defaultTopK
	}

	db := chromem.NewDB()
	collection, err := db.GetOrCreateCollection(exemplarCollection, nil, func(ctx context.Context, text string) ([]float32, error) {
		return provider.EmbedQuery(ctx, text)
	})
	if err != nil {
		return nil, fmt.Errorf("creating exemplar collection: %w", err)
	}

	labels := make([]string, 0, len(exemplars))
	for l := range exemplars {
		labels = append(labels, l)
	}
	slices.Sort(labels)

	var (
		texts []string
		owner []string
	)
	for _, l := range labels {
		for _, ex := range exemplars[l] {
			if ex == "" {
				continue
			}
			texts = append(texts, ex)
			owner = append(owner, l)
		}
	}
	if len(texts) == 0 {
		return nil, errors.New("no exemplars")
	}

	vectors, err := provider.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embedding exemplars: %w", err)
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("embedding exemplars: got %d vectors for %d texts", len(vectors), len(texts))
	}

	docs := make([]chromem.Document, len(texts))
	for i := range texts {
		docs[i] = chromem.Document{
			ID:        fmt.Sprintf("%s_%d", owner[i], i),
			Content:   texts[i],
			Metadata:  map[string]string{labelMetadataKey: owner[i]},
			Embedding: vectors[i],
		}
	}
	// Embeddings are precomputed, so one goroutine suffices.
	if err := collection.AddDocuments(ctx, docs, 1); err != nil {
		return nil, fmt.Errorf("adding exemplars: %w", err)
	}

	return &Semantic{provider: provider, collection: collection, topK: topK}, nil
}

// Name implements Model.
func (s *Semantic) Name() string { return BackendSemantic }

// Classify implements Model. Confidence is the winning label's share of
// the positive similarity mass among the top-k exemplars.
func (s *Semantic) Classify(ctx context.Context, text string) (Prediction, error) {
	k := min(s.topK, s.collection.Count())
	results, err := s.collection.Query(ctx, text, k, nil, nil)
	if err != nil {
		return Prediction{}, fmt.Errorf("querying exemplars: %w", err)
	}

	votes := make(map[string]float64)
	var total float64
	for _, r := range results {
		if r.Similarity <= 0 {
			continue
		}
		sim := float64(r.Similarity)
		votes[r.Metadata[labelMetadataKey]] += sim
		total += sim
	}
	if total == 0 {
		return Prediction{Label: LabelChitchat, Confidence: 0}, nil
	}

	labels := make([]string, 0, len(votes))
	for l := range votes {
		labels = append(labels, l)
	}
	slices.Sort(labels)

	var best string
	for _, l := range labels {
		if best == "" || votes[l] > votes[best] {
			best = l
		}
	}
	return Prediction{Label: best, Confidence: votes[best] / total}, nil
}

// Close releases the embedding provider.
func (s *Semantic) Close() error {
	return s.provider.Close()
}

var _ Model = (*Semantic)(nil)
