// Package ingest stores transcript and scene files for a video and drops relationship graphs
// built from the documents they replace.
package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/kanren/internal/extract"
	"github.com/hyperjump/kanren/internal/models"
	"github.com/hyperjump/kanren/internal/storage"
	"github.com/hyperjump/kanren/internal/videoid"
	"github.com/hyperjump/kanren/pkg/utils"
)

// Invalidator drops a video's relationship graph.
type Invalidator interface {
	Invalidate(ctx context.Context, videoID string) error
}

// Request describes one file import. Empty fields are taken from the file name.
type Request struct {
	VideoID string
	Path    string
	Kind    videoid.FileKind
	Source  models.TranscriptSource
}

// Result reports what an import stored.
type Result struct {
	VideoID string                  `json:"video_id"`
	Kind    videoid.FileKind        `json:"kind"`
	Source  models.TranscriptSource `json:"source,omitempty"`
	Count   int                     `json:"count"`
	Skipped bool                    `json:"skipped,omitempty"`
}

type fileStamp struct {
	mtime time.Time
	size  int64
}

// Importer parses files and writes them to storage.
type Importer struct {
	store       storage.Storage
	invalidator Invalidator
	logger      *zap.Logger

	mu   sync.Mutex
	seen map[string]fileStamp
}

// Option configures an Importer.
type Option func(*Importer)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(i *Importer) { i.logger = utils.OrNop(l) }
}

// WithInvalidator drops stale relationship graphs after every import.
func WithInvalidator(inv Invalidator) Option {
	return func(i *Importer) { i.invalidator = inv }
}

// NewImporter creates an importer writing to store.
func NewImporter(store storage.Storage, opts ...Option) *Importer {
	i := &Importer{store: store, logger: zap.NewNop(), seen: make(map[string]fileStamp)}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// ImportFile stores the document at req.Path. A file already imported with the same
// modification time and size is skipped.
func (i *Importer) ImportFile(ctx context.Context, req Request) (*Result, error) {
	absPath, err := filepath.Abs(req.Path)
	if err != nil {
		return nil, fmt.Errorf("absolute path: %w", err)
	}
	info, err := os.Stat(absPath)
	if err != nil {
		return nil, fmt.Errorf("stat file: %w", err)
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("not a regular file: %s", absPath)
	}
	if err := i.resolve(&req, absPath); err != nil {
		return nil, err
	}

	stamp := fileStamp{mtime: info.ModTime(), size: info.Size()}
	i.mu.Lock()
	prev, ok := i.seen[absPath]
	i.mu.Unlock()
	if ok && prev.size == stamp.size && prev.mtime.Equal(stamp.mtime) {
		i.logger.Debug("import skipping unchanged file", zap.String("path", absPath))
		return &Result{VideoID: req.VideoID, Kind: req.Kind, Source: req.Source, Skipped: true}, nil
	}

	res, err := i.save(ctx, req, absPath)
	if err != nil {
		return nil, err
	}
	i.mu.Lock()
	i.seen[absPath] = stamp
	i.mu.Unlock()
	return res, nil
}

// resolve fills the request's empty fields from the file name.
func (i *Importer) resolve(req *Request, absPath string) error {
	parsed, perr := videoid.ParseFileName(absPath)
	if req.VideoID == "" {
		if perr != nil {
			return perr
		}
		req.VideoID = parsed.VideoID
	}
	if err := videoid.Validate(req.VideoID); err != nil {
		return err
	}
	if req.Kind == "" {
		req.Kind = videoid.KindTranscript
		if perr == nil {
			req.Kind = parsed.Kind
		}
	}
	if req.Kind == videoid.KindTranscript && req.Source == "" {
		req.Source = models.TranscriptYouTube
		if perr == nil && parsed.Qualifier == string(models.TranscriptWhisper) {
			req.Source = models.TranscriptWhisper
		}
	}
	return nil
}

func (i *Importer) save(ctx context.Context, req Request, absPath string) (*Result, error) {
	res := &Result{VideoID: req.VideoID, Kind: req.Kind}
	switch req.Kind {
	case videoid.KindTranscript:
		if req.Source != models.TranscriptYouTube && req.Source != models.TranscriptWhisper {
			return nil, fmt.Errorf("unknown transcript source %q (supported: youtube, whisper)", req.Source)
		}
		entries, err := extract.ParseTranscriptFile(absPath)
		if err != nil {
			return nil, err
		}
		if err := i.store.SaveTranscript(ctx, req.VideoID, req.Source, entries); err != nil {
			return nil, fmt.Errorf("save transcript: %w", err)
		}
		res.Source, res.Count = req.Source, len(entries)
	case videoid.KindScenes:
		content, err := os.ReadFile(absPath)
		if err != nil {
			return nil, fmt.Errorf("read file: %w", err)
		}
		if ext := strings.ToLower(filepath.Ext(absPath)); ext != ".json" {
			return nil, fmt.Errorf("scene documents must be json, got %q", ext)
		}
		scenes, err := extract.ParseScenes(content)
		if err != nil {
			return nil, err
		}
		if err := i.store.SaveScenes(ctx, req.VideoID, scenes); err != nil {
			return nil, fmt.Errorf("save scenes: %w", err)
		}
		res.Count = len(scenes)
	default:
		return nil, fmt.Errorf("unknown document kind %q", req.Kind)
	}

	if i.invalidator != nil {
		if err := i.invalidator.Invalidate(ctx, req.VideoID); err != nil {
			return nil, err
		}
	}
	i.logger.Info("imported file",
		zap.String("path", absPath),
		zap.String("video_id", req.VideoID),
		zap.String("kind", string(req.Kind)),
		zap.Int("count", res.Count))
	return res, nil
}

// ImportInboxFile imports a watched file whose name carries the video ID. Errors are logged.
func (i *Importer) ImportInboxFile(ctx context.Context, path string) {
	if _, err := i.ImportFile(ctx, Request{Path: path}); err != nil {
		i.logger.Warn("inbox import failed", zap.String("path", path), zap.Error(err))
	}
}

// ImportDirectory walks dir and imports every regular file whose extension is in exts (all
// files when exts is empty). Scene documents are imported before transcripts so a video's
// first graph sees both. Returns the results and the first error encountered.
func (i *Importer) ImportDirectory(ctx context.Context, dir string, exts []string) ([]*Result, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("absolute path: %w", err)
	}
	info, err := os.Stat(absDir)
	if err != nil {
		return nil, fmt.Errorf("stat directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("not a directory: %s", absDir)
	}
	var scenes, transcripts []string
	err = filepath.WalkDir(absDir, func(path string, d os.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() || !extensionAllowed(path, exts) {
			return nil
		}
		if finfo, statErr := os.Stat(path); statErr != nil || !finfo.Mode().IsRegular() {
			return nil
		}
		if parsed, perr := videoid.ParseFileName(path); perr == nil && parsed.Kind == videoid.KindScenes {
			scenes = append(scenes, path)
		} else {
			transcripts = append(transcripts, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	results := make([]*Result, 0, len(scenes)+len(transcripts))
	for _, path := range append(scenes, transcripts...) {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		res, err := i.ImportFile(ctx, Request{Path: path})
		if err != nil {
			return results, fmt.Errorf("%s: %w", path, err)
		}
		results = append(results, res)
	}
	return results, nil
}

func extensionAllowed(path string, exts []string) bool {
	if len(exts) == 0 {
		return true
	}
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	for _, a := range exts {
		if strings.ToLower(strings.TrimPrefix(a, ".")) == ext {
			return true
		}
	}
	return false
}
