package vector

import (
	"context"
	"testing"
)

func TestNewVectorIndex_Memory(t *testing.T) {
	ctx := context.Background()
	idx, err := NewVectorIndex(ctx, "memory", 3)
	if err != nil {
		t.Fatalf("NewVectorIndex(memory): %v", err)
	}
	defer idx.Close()

	if err := idx.Add(ctx, [][]float32{{1, 0, 0}}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if idx.Size() != 1 {
		t.Errorf("Size=%d, want 1", idx.Size())
	}
	if idx.Type() != "memory" {
		t.Errorf("Type=%s", idx.Type())
	}
}

func TestNewVectorIndex_Empty(t *testing.T) {
	idx, err := NewVectorIndex(context.Background(), "", 3)
	if err != nil {
		t.Fatalf("NewVectorIndex(''): %v", err)
	}
	defer idx.Close()

	if idx.Size() != 0 {
		t.Errorf("Size=%d, want 0", idx.Size())
	}
}

func TestNewVectorIndex_Unknown(t *testing.T) {
	_, err := NewVectorIndex(context.Background(), "unknown", 3)
	if err == nil {
		t.Error("expected error for unknown index type")
	}
}

func TestNewVectorIndex_InvalidDimension(t *testing.T) {
	_, err := NewVectorIndex(context.Background(), "memory", 0)
	if err == nil {
		t.Error("expected error for zero dimension")
	}
}

func TestNewVectorIndex_QdrantRequiresAddress(t *testing.T) {
	_, err := NewVectorIndex(context.Background(), "qdrant", 3, WithQdrantAddress(""))
	if err == nil {
		t.Error("expected error for empty qdrant address")
	}
}

func TestNewVectorIndex_FAISS(t *testing.T) {
	if !IsFAISSAvailable() {
		t.Skip("FAISS not available (build with -tags=faiss)")
	}
	ctx := context.Background()
	idx, err := NewVectorIndex(ctx, "faiss", 3)
	if err != nil {
		t.Fatalf("NewVectorIndex(faiss): %v", err)
	}
	defer idx.Close()

	if err := idx.Add(ctx, [][]float32{{1, 0, 0}, {0, 1, 0}}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	results, err := idx.Search(ctx, []float32{0, 1, 0}, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 || results[0].Index != 1 {
		t.Errorf("results = %+v", results)
	}
}
