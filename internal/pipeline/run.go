package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hyperjump/kanren/internal/models"
	"github.com/hyperjump/kanren/internal/ocr"
)

// Run tracks one submission of a video. All counters are guarded by mu.
type Run struct {
	ID         string
	VideoID    string
	Preference ocr.Preference
	StartedAt  time.Time

	mu                 sync.Mutex
	detectionTotal     int
	detectionCompleted int
	ocrTotal           int
	ocrCompleted       int
	ocrQueued          bool
	lastError          string
	done               chan struct{}
}

func newRun(videoID string, pref ocr.Preference, detections int) *Run {
	return &Run{
		ID:             uuid.New().String(),
		VideoID:        videoID,
		Preference:     pref,
		StartedAt:      time.Now(),
		detectionTotal: detections,
		done:           make(chan struct{}),
	}
}

// Done is closed when detection and OCR counters have both reached their totals.
func (r *Run) Done() <-chan struct{} {
	return r.done
}

// Wait blocks until the run finishes or ctx is done.
func (r *Run) Wait(ctx context.Context) error {
	select {
	case <-r.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Status returns a snapshot of the counters.
func (r *Run) Status() models.ProcessingStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return models.ProcessingStatus{
		VideoID:            r.VideoID,
		DetectionTotal:     r.detectionTotal,
		DetectionCompleted: r.detectionCompleted,
		OcrTotal:           r.ocrTotal,
		OcrCompleted:       r.ocrCompleted,
		AllComplete:        r.finishedLocked(),
		Error:              r.lastError,
	}
}

func (r *Run) finishedLocked() bool {
	return r.ocrQueued && r.detectionCompleted >= r.detectionTotal && r.ocrCompleted >= r.ocrTotal
}

func (r *Run) finished() bool {
	select {
	case <-r.done:
		return true
	default:
		return false
	}
}

// detectionDone counts one finished detection job and reports whether it was the last one.
func (r *Run) detectionDone() (completed, total int, last bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.detectionCompleted++
	return r.detectionCompleted, r.detectionTotal, r.detectionCompleted == r.detectionTotal
}

// queueOCR records the OCR job count once. It reports false if OCR was already queued.
func (r *Run) queueOCR(total int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ocrQueued {
		return false
	}
	r.ocrQueued = true
	r.ocrTotal = total
	return true
}

// ocrDone counts one finished OCR job and reports whether the run is now complete.
func (r *Run) ocrDone() (completed, total int, last bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ocrCompleted++
	return r.ocrCompleted, r.ocrTotal, r.finishedLocked()
}

func (r *Run) fail(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastError = msg
}

func (r *Run) finish() {
	r.mu.Lock()
	defer r.mu.Unlock()
	select {
	case <-r.done:
	default:
		close(r.done)
	}
}
