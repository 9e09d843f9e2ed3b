package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"time"

	"github.com/gofrs/flock"
)

const lockRetryDelay = 50 * time.Millisecond

var unsafeLockChars = regexp.MustCompile(`[^A-Za-z0-9_.-]`)

// LockManager hands out per-video write locks. Inside the process a mutex per video serializes
// writers; when a directory is configured, a lock file per video extends that to other
// processes sharing the database.
type LockManager struct {
	dir   string
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewLockManager creates a lock manager. An empty dir disables cross-process lock files.
func NewLockManager(dir string) *LockManager {
	return &LockManager{dir: dir, locks: make(map[string]*sync.Mutex)}
}

func (m *LockManager) mutex(videoID string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.locks[videoID]
	if !ok {
		l = &sync.Mutex{}
		m.locks[videoID] = l
	}
	return l
}

// Lock blocks until the video's write lock is held or ctx is done. The returned func releases it.
func (m *LockManager) Lock(ctx context.Context, videoID string) (func(), error) {
	l := m.mutex(videoID)
	acquired := make(chan struct{})
	go func() {
		l.Lock()
		close(acquired)
	}()
	select {
	case <-acquired:
	case <-ctx.Done():
		// Release the mutex once the pending Lock returns.
		go func() {
			<-acquired
			l.Unlock()
		}()
		return nil, ctx.Err()
	}

	if m.dir == "" {
		return l.Unlock, nil
	}
	if err := os.MkdirAll(m.dir, 0755); err != nil {
		l.Unlock()
		return nil, fmt.Errorf("create lock dir: %w", err)
	}
	fl := flock.New(filepath.Join(m.dir, unsafeLockChars.ReplaceAllString(videoID, "_")+".lock"))
	ok, err := fl.TryLockContext(ctx, lockRetryDelay)
	if err != nil || !ok {
		l.Unlock()
		if err == nil {
			err = fmt.Errorf("lock file busy")
		}
		return nil, fmt.Errorf("lock video %s: %w", videoID, err)
	}
	return func() {
		_ = fl.Unlock()
		l.Unlock()
	}, nil
}
