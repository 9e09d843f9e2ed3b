package embedding

import (
	"context"
	"strings"

	"github.com/hyperjump/kanren/pkg/utils"
)

// MockEmbedder is a deterministic bag-of-words embedder for tests. Each lowercased word is hashed
// into one dimension, so texts that share words score higher than texts that share none.
type MockEmbedder struct {
	dimensions int
}

// NewMockEmbedder returns a mock embedder with the given dimensions (384 when not positive).
func NewMockEmbedder(dimensions int) *MockEmbedder {
	if dimensions <= 0 {
		dimensions = 384
	}
	return &MockEmbedder{dimensions: dimensions}
}

// Embed returns the unit-length word histogram of text. Text without words maps to the first axis.
func (e *MockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	emb := make([]float32, e.dimensions)
	words := strings.Fields(strings.ToLower(text))
	if len(words) == 0 {
		emb[0] = 1
		return emb, nil
	}
	for _, w := range words {
		emb[HashString(w)%e.dimensions]++
	}
	utils.NormalizeL2(emb)
	return emb, nil
}

func (e *MockEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for _, text := range texts {
		emb, err := e.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		out = append(out, emb)
	}
	return out, nil
}

func (e *MockEmbedder) Dimensions() int { return e.dimensions }

func (e *MockEmbedder) Close() error { return nil }
