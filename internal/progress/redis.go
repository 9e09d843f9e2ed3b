package progress

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/hyperjump/kanren/pkg/utils"
)

// DefaultRedisAddr is the local Redis endpoint.
const DefaultRedisAddr = "localhost:6379"

// Channel returns the pub/sub channel carrying a video's events.
func Channel(videoID string) string {
	return "kanren:progress:" + videoID
}

// RedisBroker distributes events through Redis pub/sub so that subscribers in other
// processes see them.
type RedisBroker struct {
	client     *redis.Client
	bufferSize int
	logger     *zap.Logger
}

// NewRedisBroker connects to addr and verifies the connection.
func NewRedisBroker(ctx context.Context, addr string, bufferSize int, logger *zap.Logger) (*RedisBroker, error) {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return &RedisBroker{client: client, bufferSize: bufferSize, logger: utils.OrNop(logger)}, nil
}

// Publish sends ev on the video's channel.
func (b *RedisBroker) Publish(ctx context.Context, videoID string, ev Event) error {
	ev.VideoID = videoID
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := b.client.Publish(ctx, Channel(videoID), payload).Err(); err != nil {
		return fmt.Errorf("publish event: %w", err)
	}
	return nil
}

// Subscribe opens a Redis subscription for videoID.
func (b *RedisBroker) Subscribe(ctx context.Context, videoID string) (*Subscription, error) {
	pubsub := b.client.Subscribe(ctx, Channel(videoID))
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("subscribe: %w", err)
	}

	out := make(chan Event, b.bufferSize)
	out <- connectedEvent(videoID)

	ctx, cancel := context.WithCancel(ctx)
	id := uuid.New().String()
	go func() {
		defer close(out)
		defer pubsub.Close()
		msgs := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var ev Event
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					b.logger.Warn("discarding malformed event", zap.String("video_id", videoID), zap.Error(err))
					continue
				}
				select {
				case out <- ev:
				default:
					b.logger.Debug("dropping event for slow subscriber",
						zap.String("video_id", videoID), zap.String("subscriber", id))
				}
			}
		}
	}()
	return &Subscription{ID: id, VideoID: videoID, events: out, cancel: cancel}, nil
}

// Close closes the Redis client.
func (b *RedisBroker) Close() error {
	return b.client.Close()
}
