package embeddings

import (
	"context"
	"fmt"
	"math"
	"strings"
	"unicode"

	"github.com/cespare/xxhash/v2"
)

// DefaultHashingDimension is the hashing provider's default vector size.
const DefaultHashingDimension = 512

// HashingProvider embeds text by feature hashing word unigrams, word
// bigrams and character trigrams into a fixed-size, L2-normalized vector.
// Output is deterministic and needs no model files.
type HashingProvider struct {
	dimension int
}

// NewHashingProvider returns a hashing provider. dimension <= 0 selects
// DefaultHashingDimension.
func NewHashingProvider(dimension int) *HashingProvider {
	if dimension <= 0 {
		dimension = DefaultHashingDimension
	}
	return &HashingProvider{dimension: dimension}
}

// EmbedDocuments embeds each text.
func (p *HashingProvider) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("%w: texts cannot be empty", ErrEmptyInput)
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out[i] = p.embed(text)
	}
	return out, nil
}

// EmbedQuery embeds a single text.
func (p *HashingProvider) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: text cannot be empty", ErrEmptyInput)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return p.embed(text), nil
}

// Dimension returns the vector size.
func (p *HashingProvider) Dimension() int { return p.dimension }

// Close is a no-op.
func (p *HashingProvider) Close() error { return nil }

func (p *HashingProvider) embed(text string) []float32 {
	vec := make([]float32, p.dimension)
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\''
	})

	for i, w := range words {
		p.add(vec, "w:"+w, 1.0)
		if i > 0 {
			p.add(vec, "b:"+words[i-1]+" "+w, 0.7)
		}
		padded := []rune(" " + w + " ")
		for j := 0; j+3 <= len(padded); j++ {
			p.add(vec, "c:"+string(padded[j:j+3]), 0.3)
		}
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		return vec
	}
	scale := float32(1 / math.Sqrt(norm))
	for i := range vec {
		vec[i] *= scale
	}
	return vec
}

// add hashes feature into vec with a sign bit so collisions tend to cancel.
func (p *HashingProvider) add(vec []float32, feature string, weight float32) {
	h := xxhash.Sum64String(feature)
	idx := int(h % uint64(p.dimension))
	if h&(1<<63) != 0 {
		weight = -weight
	}
	vec[idx] += weight
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
