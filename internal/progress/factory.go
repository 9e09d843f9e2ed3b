package progress

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// NewBroker creates the broker named by backend: "memory" (default) or "redis".
func NewBroker(ctx context.Context, backend, redisAddr string, bufferSize int, logger *zap.Logger) (Broker, error) {
	switch backend {
	case "memory", "":
		return NewMemoryBroker(WithBufferSize(bufferSize), WithLogger(logger)), nil
	case "redis":
		if redisAddr == "" {
			redisAddr = DefaultRedisAddr
		}
		return NewRedisBroker(ctx, redisAddr, bufferSize, logger)
	default:
		return nil, fmt.Errorf("unknown progress backend: %s (supported: memory, redis)", backend)
	}
}
