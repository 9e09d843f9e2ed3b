package progress

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hyperjump/kanren/pkg/utils"
)

// DefaultBufferSize is the per-subscriber queue length.
const DefaultBufferSize = 64

// MemoryBroker delivers events in-process. A subscriber whose queue is full misses the event.
type MemoryBroker struct {
	bufferSize int
	logger     *zap.Logger
	mu         sync.RWMutex
	subs       map[string]map[string]chan Event
	closed     bool
}

// MemoryOption configures a MemoryBroker.
type MemoryOption func(*MemoryBroker)

// WithBufferSize sets the per-subscriber queue length.
func WithBufferSize(n int) MemoryOption {
	return func(b *MemoryBroker) {
		if n > 0 {
			b.bufferSize = n
		}
	}
}

// WithLogger sets the logger used to report dropped events.
func WithLogger(l *zap.Logger) MemoryOption {
	return func(b *MemoryBroker) { b.logger = utils.OrNop(l) }
}

// NewMemoryBroker creates an in-process broker.
func NewMemoryBroker(opts ...MemoryOption) *MemoryBroker {
	b := &MemoryBroker{
		bufferSize: DefaultBufferSize,
		logger:     zap.NewNop(),
		subs:       make(map[string]map[string]chan Event),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Publish sends ev to every subscriber of videoID without blocking.
func (b *MemoryBroker) Publish(ctx context.Context, videoID string, ev Event) error {
	ev.VideoID = videoID
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for id, ch := range b.subs[videoID] {
		select {
		case ch <- ev:
		default:
			b.logger.Debug("dropping event for slow subscriber",
				zap.String("video_id", videoID),
				zap.String("subscriber", id),
				zap.String("type", string(ev.Type)))
		}
	}
	return nil
}

// Subscribe registers a new subscriber for videoID.
func (b *MemoryBroker) Subscribe(ctx context.Context, videoID string) (*Subscription, error) {
	id := uuid.New().String()
	ch := make(chan Event, b.bufferSize)
	ch <- connectedEvent(videoID)

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(ch)
		return nil, context.Canceled
	}
	if b.subs[videoID] == nil {
		b.subs[videoID] = make(map[string]chan Event)
	}
	b.subs[videoID][id] = ch
	b.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	go func() {
		<-ctx.Done()
		b.remove(videoID, id)
	}()
	return &Subscription{ID: id, VideoID: videoID, events: ch, cancel: cancel}, nil
}

func (b *MemoryBroker) remove(videoID, id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch, ok := b.subs[videoID][id]
	if !ok {
		return
	}
	delete(b.subs[videoID], id)
	if len(b.subs[videoID]) == 0 {
		delete(b.subs, videoID)
	}
	close(ch)
}

// Subscribers returns the number of live subscribers of videoID.
func (b *MemoryBroker) Subscribers(videoID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[videoID])
}

// Close ends every subscription.
func (b *MemoryBroker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	for videoID, subs := range b.subs {
		for _, ch := range subs {
			close(ch)
		}
		delete(b.subs, videoID)
	}
	return nil
}
