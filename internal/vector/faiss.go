//go:build faiss && cgo
// +build faiss,cgo

package vector

/*
#cgo CFLAGS: -I/opt/homebrew/include -I/usr/local/include
#cgo LDFLAGS: -L/opt/homebrew/lib -L/usr/local/lib -lfaiss_c

#include <stdlib.h>
#include <faiss/c_api/Index_c.h>
#include <faiss/c_api/IndexFlat_c.h>
#include <faiss/c_api/error_c.h>
*/
import "C"

import (
	"context"
	"fmt"
	"sync"
	"unsafe"
)

// FAISSIndex wraps IndexFlatIP. FAISS labels are insertion positions, which is exactly the
// VectorIndex contract, so no ID mapping is kept.
type FAISSIndex struct {
	index      *C.FaissIndexFlatIP
	dimensions int
	mu         sync.RWMutex
}

// NewFAISSIndex creates a FAISS index with the given dimension using inner product.
func NewFAISSIndex(dimensions int) (*FAISSIndex, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive")
	}

	var index *C.FaissIndexFlatIP
	ret := C.faiss_IndexFlatIP_new_with(&index, C.idx_t(dimensions))
	if ret != 0 {
		return nil, fmt.Errorf("failed to create FAISS index: %s", faissLastError())
	}
	return &FAISSIndex{index: index, dimensions: dimensions}, nil
}

func faissLastError() string {
	cErr := C.faiss_get_last_error()
	if cErr == nil {
		return "unknown error"
	}
	return C.GoString(cErr)
}

// Add appends vectors after the existing ones.
func (f *FAISSIndex) Add(ctx context.Context, vectors [][]float32) error {
	if len(vectors) == 0 {
		return nil
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	n := len(vectors)
	flat := make([]float32, n*f.dimensions)
	for i, vec := range vectors {
		if len(vec) != f.dimensions {
			return fmt.Errorf("vector dimension mismatch: got %d, expected %d", len(vec), f.dimensions)
		}
		copy(flat[i*f.dimensions:(i+1)*f.dimensions], vec)
	}
	ret := C.faiss_Index_add(f.index, C.idx_t(n), (*C.float)(unsafe.Pointer(&flat[0])))
	if ret != 0 {
		return fmt.Errorf("failed to add vectors to FAISS index: %s", faissLastError())
	}
	return nil
}

// Search returns the top-k positions by inner product.
func (f *FAISSIndex) Search(ctx context.Context, query []float32, k int) ([]VectorResult, error) {
	if len(query) != f.dimensions {
		return nil, fmt.Errorf("query dimension mismatch: got %d, expected %d", len(query), f.dimensions)
	}
	f.mu.RLock()
	defer f.mu.RUnlock()

	if k <= 0 {
		return nil, nil
	}
	ntotal := int(C.faiss_Index_ntotal(f.index))
	if ntotal == 0 {
		return nil, nil
	}
	if k > ntotal {
		k = ntotal
	}

	distances := make([]float32, k)
	labels := make([]int64, k)
	ret := C.faiss_Index_search(
		f.index,
		1,
		(*C.float)(unsafe.Pointer(&query[0])),
		C.idx_t(k),
		(*C.float)(unsafe.Pointer(&distances[0])),
		(*C.idx_t)(unsafe.Pointer(&labels[0])),
	)
	if ret != 0 {
		return nil, fmt.Errorf("FAISS search failed: %s", faissLastError())
	}

	results := make([]VectorResult, 0, k)
	for i := 0; i < k; i++ {
		if labels[i] < 0 {
			continue
		}
		results = append(results, VectorResult{Index: int(labels[i]), Score: float64(distances[i])})
	}
	// FAISS does not guarantee a tie order.
	sortResults(results)
	return results, nil
}

// Size returns the number of vectors in the index.
func (f *FAISSIndex) Size() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.index == nil {
		return 0
	}
	return int(C.faiss_Index_ntotal(f.index))
}

// Close frees the FAISS index resources.
func (f *FAISSIndex) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.index != nil {
		C.faiss_Index_free(f.index)
		f.index = nil
	}
	return nil
}

// Type returns the index type identifier.
func (f *FAISSIndex) Type() string {
	return string(IndexTypeFAISS)
}
