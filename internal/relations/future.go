package relations

import (
	"context"

	"github.com/hyperjump/kanren/internal/models"
)

// Future is the pending result of a background computation.
type Future struct {
	done  chan struct{}
	graph *models.RelationshipGraph
	err   error
}

func newFuture() *Future {
	return &Future{done: make(chan struct{})}
}

func (f *Future) resolve(g *models.RelationshipGraph, err error) {
	f.graph, f.err = g, err
	close(f.done)
}

// Done is closed once the result is available.
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// Wait returns the result, or ctx's error if ctx ends first.
func (f *Future) Wait(ctx context.Context) (*models.RelationshipGraph, error) {
	select {
	case <-f.done:
		return f.graph, f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
