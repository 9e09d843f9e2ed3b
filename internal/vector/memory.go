package vector

import (
	"context"
	"fmt"
	"sync"
)

// MemoryIndex is a brute-force inner product index. It is the default backend; alignment
// indexes live only for one computation and hold a single video's units.
type MemoryIndex struct {
	dimensions int
	vectors    [][]float32
	mu         sync.RWMutex
}

// NewMemoryIndex creates an in-memory vector index with the given dimension.
func NewMemoryIndex(dimensions int) (*MemoryIndex, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive")
	}
	return &MemoryIndex{
		dimensions: dimensions,
		vectors:    make([][]float32, 0),
	}, nil
}

// Type returns the index type identifier.
func (m *MemoryIndex) Type() string {
	return string(IndexTypeMemory)
}

// Add appends vectors after the existing ones.
func (m *MemoryIndex) Add(ctx context.Context, vectors [][]float32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, v := range vectors {
		if len(v) != m.dimensions {
			return fmt.Errorf("vector dimension mismatch: got %d, expected %d", len(v), m.dimensions)
		}
	}
	for _, v := range vectors {
		vec := make([]float32, m.dimensions)
		copy(vec, v)
		m.vectors = append(m.vectors, vec)
	}
	return nil
}

// Search returns the top-k positions by inner product.
func (m *MemoryIndex) Search(ctx context.Context, query []float32, k int) ([]VectorResult, error) {
	if len(query) != m.dimensions {
		return nil, fmt.Errorf("query dimension mismatch: got %d, expected %d", len(query), m.dimensions)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if k <= 0 || len(m.vectors) == 0 {
		return nil, nil
	}
	scores := make([]VectorResult, len(m.vectors))
	for i, vec := range m.vectors {
		scores[i] = VectorResult{Index: i, Score: InnerProduct(query, vec)}
	}
	sortResults(scores)
	if k > len(scores) {
		k = len(scores)
	}
	return scores[:k], nil
}

// Size returns the number of vectors in the index.
func (m *MemoryIndex) Size() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.vectors)
}

// Close is a no-op for MemoryIndex.
func (m *MemoryIndex) Close() error {
	return nil
}
