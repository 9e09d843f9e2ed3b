// Package vector provides nearest-neighbour indexes over normalized embeddings.
package vector

import (
	"context"
	"sort"
)

// VectorIndex stores vectors by insertion position and answers inner-product top-k queries.
// Positions start at 0 and follow the order of Add calls.
type VectorIndex interface {
	Add(ctx context.Context, vectors [][]float32) error
	Search(ctx context.Context, query []float32, k int) ([]VectorResult, error)
	Size() int
	Type() string
	Close() error
}

// VectorResult is a single search hit.
type VectorResult struct {
	Index int
	Score float64 // Inner product; cosine similarity for normalized vectors
}

// sortResults orders hits by score descending, breaking ties by the lower position.
func sortResults(results []VectorResult) {
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Index < results[j].Index
	})
}
