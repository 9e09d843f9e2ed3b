// Package watcher watches inbox directories with fsnotify and hands settled transcript and scene
// files to an import callback.
package watcher

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/hyperjump/kanren/pkg/utils"
)

const defaultDebounce = 400 * time.Millisecond

// DefaultExtensions are the inbox file types.
var DefaultExtensions = []string{".srt", ".json"}

// Watcher calls onFile for every matching file that is created or rewritten under its roots,
// once writes to it have paused for the debounce interval.
type Watcher struct {
	roots      []string
	extensions []string
	recursive  bool
	onFile     func(ctx context.Context, path string)
	debounce   time.Duration
	logger     *zap.Logger

	mu      sync.Mutex
	fsw     *fsnotify.Watcher
	pending map[string]*time.Timer
	ctx     context.Context
	done    chan struct{}
	stop    sync.Once
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(w *Watcher) { w.logger = utils.OrNop(l) }
}

// WithDebounce sets how long a file must stay unchanged before onFile runs.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// New creates a watcher over roots. An empty extensions list uses DefaultExtensions.
func New(roots, extensions []string, recursive bool, onFile func(ctx context.Context, path string), opts ...Option) *Watcher {
	if len(extensions) == 0 {
		extensions = DefaultExtensions
	}
	w := &Watcher{
		roots:      roots,
		extensions: extensions,
		recursive:  recursive,
		onFile:     onFile,
		debounce:   defaultDebounce,
		logger:     zap.NewNop(),
		pending:    make(map[string]*time.Timer),
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start watches every root, creating missing ones, until ctx is done or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.fsw != nil {
		return nil
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	for _, root := range w.roots {
		if err := os.MkdirAll(root, 0755); err != nil {
			_ = fsw.Close()
			return err
		}
		if err := w.addTree(fsw, root); err != nil {
			_ = fsw.Close()
			return err
		}
	}
	w.fsw = fsw
	w.ctx = ctx
	w.logger.Info("watching inbox",
		zap.Strings("roots", w.roots),
		zap.Strings("extensions", w.extensions),
		zap.Bool("recursive", w.recursive))
	go w.loop(ctx, fsw.Events, fsw.Errors)
	return nil
}

// addTree registers dir, and its subdirectories when recursive.
func (w *Watcher) addTree(fsw *fsnotify.Watcher, dir string) error {
	if !w.recursive {
		return fsw.Add(dir)
	}
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return fsw.Add(path)
		}
		return nil
	})
}

func (w *Watcher) loop(ctx context.Context, events <-chan fsnotify.Event, errs <-chan error) {
	for {
		select {
		case <-ctx.Done():
			w.Stop()
			return
		case <-w.done:
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			w.handle(ev)
		case err, ok := <-errs:
			if !ok {
				return
			}
			w.logger.Warn("watch error", zap.Error(err))
		}
	}
}

func (w *Watcher) handle(ev fsnotify.Event) {
	if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
		if ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename) {
			w.cancel(ev.Name)
		}
		return
	}
	info, err := os.Stat(ev.Name)
	if err != nil {
		return
	}
	if info.IsDir() {
		w.handleNewDirectory(ev.Name)
		return
	}
	if matchExtension(ev.Name, w.extensions) {
		w.schedule(ev.Name)
	}
}

// handleNewDirectory watches a directory moved or created under a root and imports its files,
// which may have arrived before the watch was in place.
func (w *Watcher) handleNewDirectory(dir string) {
	w.mu.Lock()
	fsw := w.fsw
	w.mu.Unlock()
	if fsw == nil {
		return
	}
	if w.recursive {
		if err := w.addTree(fsw, dir); err != nil {
			w.logger.Warn("watch new directory", zap.String("path", dir), zap.Error(err))
		}
	}
	w.walk(dir, w.schedule)
}

func (w *Watcher) schedule(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.pending[path]; ok {
		t.Stop()
	}
	w.pending[path] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.pending, path)
		ctx := w.ctx
		w.mu.Unlock()
		if ctx == nil || ctx.Err() != nil {
			return
		}
		w.logger.Debug("inbox file settled", zap.String("path", path))
		w.onFile(ctx, path)
	})
}

func (w *Watcher) cancel(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.pending[path]; ok {
		t.Stop()
		delete(w.pending, path)
	}
}

func (w *Watcher) walk(root string, fn func(path string)) {
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if path != root && !w.recursive {
				return filepath.SkipDir
			}
			return nil
		}
		if matchExtension(path, w.extensions) {
			fn(path)
		}
		return nil
	})
}

// SyncExisting passes every matching file already under the roots to onFile, in walk order.
func (w *Watcher) SyncExisting(ctx context.Context) {
	for _, root := range w.roots {
		w.walk(root, func(path string) { w.onFile(ctx, path) })
	}
}

// Roots returns the watched root directories.
func (w *Watcher) Roots() []string {
	return append([]string(nil), w.roots...)
}

// Stop releases the fsnotify watcher and drops pending callbacks.
func (w *Watcher) Stop() {
	w.mu.Lock()
	for path, t := range w.pending {
		t.Stop()
		delete(w.pending, path)
	}
	fsw := w.fsw
	w.mu.Unlock()
	if fsw != nil {
		_ = fsw.Close()
	}
	w.stop.Do(func() { close(w.done) })
}

func matchExtension(path string, extensions []string) bool {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	for _, e := range extensions {
		if strings.TrimPrefix(strings.ToLower(e), ".") == ext {
			return true
		}
	}
	return false
}
