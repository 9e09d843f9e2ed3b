package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// ErrClosed is returned when enqueueing on a stopped worker.
var ErrClosed = errors.New("worker closed")

// Worker consumes jobs of type J from a buffered queue on a single goroutine. A failing or
// panicking job is reported to done and the worker moves on.
type Worker[J Job] struct {
	name   string
	queue  chan J
	handle func(context.Context, J) error
	done   func(context.Context, J, error)
	logger *zap.Logger

	mu      sync.RWMutex
	closed  bool
	started bool
	stopped chan struct{}
}

// NewWorker creates a worker. done is called after every job with the job's error, or nil.
func NewWorker[J Job](name string, size int, handle func(context.Context, J) error, done func(context.Context, J, error), logger *zap.Logger) *Worker[J] {
	if size <= 0 {
		size = 1
	}
	return &Worker[J]{
		name:    name,
		queue:   make(chan J, size),
		handle:  handle,
		done:    done,
		logger:  logger,
		stopped: make(chan struct{}),
	}
}

// Start runs the consume loop until the queue is closed or ctx is done.
func (w *Worker[J]) Start(ctx context.Context) {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return
	}
	w.started = true
	w.mu.Unlock()
	go func() {
		defer close(w.stopped)
		for {
			select {
			case <-ctx.Done():
				return
			case job, ok := <-w.queue:
				if !ok {
					return
				}
				err := w.process(ctx, job)
				if w.done != nil {
					w.done(ctx, job, err)
				}
			}
		}
	}()
}

func (w *Worker[J]) process(ctx context.Context, job J) (err error) {
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("job panicked",
				zap.String("worker", w.name),
				zap.String("video_id", job.Video()),
				zap.Int("scene_index", job.Scene()),
				zap.Any("panic", r))
			err = fmt.Errorf("%s job panicked: %v", w.name, r)
		}
	}()
	return w.handle(ctx, job)
}

// Enqueue adds job to the queue, blocking while it is full.
func (w *Worker[J]) Enqueue(ctx context.Context, job J) error {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		return ErrClosed
	}
	select {
	case w.queue <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Len returns the number of queued jobs.
func (w *Worker[J]) Len() int {
	return len(w.queue)
}

// Close stops accepting jobs, lets the queued ones finish, and waits for the loop to exit.
func (w *Worker[J]) Close() {
	w.mu.Lock()
	if !w.closed {
		w.closed = true
		close(w.queue)
	}
	started := w.started
	w.mu.Unlock()
	if started {
		<-w.stopped
	}
}
