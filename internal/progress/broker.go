// Package progress fans out per-video progress events to subscribers.
package progress

import (
	"context"
	"sync"
	"time"
)

// EventType names a progress event.
type EventType string

const (
	EventConnected         EventType = "connected"
	EventOcrProgress       EventType = "ocr_progress"
	EventOcrComplete       EventType = "ocr_complete"
	EventOcrError          EventType = "ocr_error"
	EventEmbeddingProgress EventType = "embedding_progress"
	EventEmbeddingComplete EventType = "embedding_complete"
	EventEmbeddingError    EventType = "embedding_error"
)

// Event is one progress notification for a video.
type Event struct {
	Type       EventType `json:"type"`
	VideoID    string    `json:"video_id"`
	Total      int       `json:"total,omitempty"`
	Completed  int       `json:"completed,omitempty"`
	Percent    float64   `json:"percent,omitempty"`
	SceneIndex *int      `json:"scene_index,omitempty"`
	Message    string    `json:"message,omitempty"`
	Error      string    `json:"error,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// Percent returns completed/total as a percentage rounded to one decimal, or 0 when total is 0.
func Percent(completed, total int) float64 {
	if total <= 0 {
		return 0
	}
	return float64(int(float64(completed)/float64(total)*1000+0.5)) / 10
}

// Broker publishes events to every live subscriber of a video. Events are not replayed:
// a subscriber only sees events published after it subscribed.
type Broker interface {
	Publish(ctx context.Context, videoID string, ev Event) error
	// Subscribe registers a subscriber. The first event delivered is always EventConnected.
	// The subscription ends when ctx is done or Close is called.
	Subscribe(ctx context.Context, videoID string) (*Subscription, error)
	Close() error
}

// Subscription is a live event stream for one video.
type Subscription struct {
	ID      string
	VideoID string
	events  <-chan Event
	once    sync.Once
	cancel  func()
}

// Events returns the stream. It is closed when the subscription ends.
func (s *Subscription) Events() <-chan Event {
	return s.events
}

// Close ends the subscription.
func (s *Subscription) Close() {
	s.once.Do(s.cancel)
}

func connectedEvent(videoID string) Event {
	return Event{Type: EventConnected, VideoID: videoID, Message: "connected", Timestamp: time.Now()}
}
