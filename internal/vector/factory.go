package vector

import (
	"context"
	"fmt"
)

// IndexType represents the type of vector index to use.
type IndexType string

const (
	// IndexTypeMemory uses in-memory brute-force search.
	IndexTypeMemory IndexType = "memory"
	// IndexTypeFAISS uses FAISS IndexFlatIP. Requires the faiss build tag.
	IndexTypeFAISS IndexType = "faiss"
	// IndexTypeQdrant stores vectors in a temporary collection on a Qdrant server.
	IndexTypeQdrant IndexType = "qdrant"
)

// FactoryOption configures NewVectorIndex.
type FactoryOption func(*factoryOptions)

type factoryOptions struct {
	qdrantAddress string
}

// WithQdrantAddress sets the gRPC address used by the qdrant backend.
func WithQdrantAddress(addr string) FactoryOption {
	return func(o *factoryOptions) { o.qdrantAddress = addr }
}

// NewVectorIndex creates a vector index of the specified type.
// Supported types: "memory" (default), "faiss", "qdrant".
func NewVectorIndex(ctx context.Context, indexType string, dimensions int, opts ...FactoryOption) (VectorIndex, error) {
	o := factoryOptions{qdrantAddress: DefaultQdrantAddress}
	for _, opt := range opts {
		opt(&o)
	}
	switch IndexType(indexType) {
	case IndexTypeMemory, "":
		return NewMemoryIndex(dimensions)
	case IndexTypeFAISS:
		return NewFAISSIndex(dimensions)
	case IndexTypeQdrant:
		return NewQdrantIndex(ctx, o.qdrantAddress, dimensions)
	default:
		return nil, fmt.Errorf("unknown index type: %s (supported: memory, faiss, qdrant)", indexType)
	}
}

// IsFAISSAvailable returns true if FAISS support is compiled in.
func IsFAISSAvailable() bool {
	idx, err := NewFAISSIndex(1)
	if err != nil {
		return false
	}
	_ = idx.Close()
	return true
}
