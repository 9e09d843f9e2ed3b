// Package relations serves lookups over a video's relationship graph, computing the graph on
// first use when it has not been persisted yet.
package relations

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/hyperjump/kanren/internal/errors"
	"github.com/hyperjump/kanren/internal/keyword"
	"github.com/hyperjump/kanren/internal/models"
	"github.com/hyperjump/kanren/internal/storage"
	"github.com/hyperjump/kanren/internal/timeline"
	"github.com/hyperjump/kanren/pkg/utils"
)

// Computer builds and persists the relationship graph of a video.
type Computer interface {
	Compute(ctx context.Context, videoID string) (*models.RelationshipGraph, error)
}

// Store answers relationship lookups. A missing graph is computed at most once at a time per
// video; a failed computation is returned and not cached.
type Store struct {
	store    storage.Storage
	computer Computer
	keywords keyword.KeywordIndex
	logger   *zap.Logger
	mapper   []timeline.Option

	mu    sync.Mutex
	locks map[string]*sync.Mutex
	wg    sync.WaitGroup
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Store) { s.logger = utils.OrNop(l) }
}

// WithKeywordIndex sets the index whose units Invalidate removes along with the graph.
func WithKeywordIndex(k keyword.KeywordIndex) Option {
	return func(s *Store) { s.keywords = k }
}

// WithSceneWindow sets the buffer and missing-end values used by SceneForTranscript.
func WithSceneWindow(buffer, missingEnd float64) Option {
	return func(s *Store) {
		s.mapper = []timeline.Option{timeline.WithBuffer(buffer), timeline.WithMissingEnd(missingEnd)}
	}
}

// NewStore creates a Store reading from store and computing with computer.
func NewStore(store storage.Storage, computer Computer, opts ...Option) *Store {
	s := &Store{
		store:    store,
		computer: computer,
		logger:   zap.NewNop(),
		locks:    make(map[string]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) videoLock(videoID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[videoID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[videoID] = l
	}
	return l
}

// Graph returns the persisted graph of videoID, computing it first when absent.
func (s *Store) Graph(ctx context.Context, videoID string) (*models.RelationshipGraph, error) {
	g, err := s.store.GetRelationships(ctx, videoID)
	if err == nil {
		return g, nil
	}
	if !stderrors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("load relationships: %w", err)
	}

	l := s.videoLock(videoID)
	l.Lock()
	defer l.Unlock()
	// Another caller may have finished while we waited.
	g, err = s.store.GetRelationships(ctx, videoID)
	if err == nil {
		return g, nil
	}
	if !stderrors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("load relationships: %w", err)
	}
	s.logger.Info("relationships missing, computing", zap.String("video_id", videoID))
	return s.run(ctx, videoID)
}

// run computes the graph with markers maintained around it. The caller holds the video lock.
func (s *Store) run(ctx context.Context, videoID string) (*models.RelationshipGraph, error) {
	if err := s.store.ClearMarker(ctx, videoID, storage.StageEmbedding, storage.MarkerError); err != nil {
		s.logger.Warn("clear error marker", zap.String("video_id", videoID), zap.Error(err))
	}
	if err := s.store.SetMarker(ctx, videoID, storage.StageEmbedding, storage.MarkerProgress, "computing relationships"); err != nil {
		s.logger.Warn("set progress marker", zap.String("video_id", videoID), zap.Error(err))
	}
	defer func() {
		if err := s.store.ClearMarker(context.WithoutCancel(ctx), videoID, storage.StageEmbedding, storage.MarkerProgress); err != nil {
			s.logger.Warn("clear progress marker", zap.String("video_id", videoID), zap.Error(err))
		}
	}()

	g, err := s.computer.Compute(ctx, videoID)
	if err != nil {
		if merr := s.store.SetMarker(context.WithoutCancel(ctx), videoID, storage.StageEmbedding, storage.MarkerError, err.Error()); merr != nil {
			s.logger.Warn("set error marker", zap.String("video_id", videoID), zap.Error(merr))
		}
		return nil, err
	}
	return g, nil
}

// TranscriptMatches returns the OCR matches of transcript sentence i, best first. A sentence
// without matches yields an empty list.
func (s *Store) TranscriptMatches(ctx context.Context, videoID string, i int) ([]models.TranscriptMatch, error) {
	g, err := s.Graph(ctx, videoID)
	if err != nil {
		return nil, err
	}
	for _, r := range g.TranscriptToOcr {
		if r.TranscriptIndex == i {
			return r.Matches, nil
		}
	}
	return []models.TranscriptMatch{}, nil
}

// OcrMatches returns the transcript matches of the OCR unit in sceneIndex whose text equals text.
func (s *Store) OcrMatches(ctx context.Context, videoID string, sceneIndex int, text string) ([]models.OcrMatch, error) {
	g, err := s.Graph(ctx, videoID)
	if err != nil {
		return nil, err
	}
	for _, r := range g.OcrToTranscript {
		if r.SceneIndex == sceneIndex && r.OcrText == text {
			return r.Matches, nil
		}
	}
	return []models.OcrMatch{}, nil
}

// SceneForTranscript returns the candidate scenes of transcript sentence i.
func (s *Store) SceneForTranscript(ctx context.Context, videoID string, i int) ([]int, error) {
	g, err := s.Graph(ctx, videoID)
	if err != nil {
		return nil, err
	}
	scenes, err := s.store.GetScenes(ctx, videoID)
	if stderrors.Is(err, storage.ErrNotFound) {
		return nil, errors.MissingInputf("relations.SceneForTranscript", videoID, "no scene data available")
	}
	if err != nil {
		return nil, fmt.Errorf("load scenes: %w", err)
	}
	return timeline.SceneForTranscript(g, scenes, i, s.mapper...), nil
}

// Invalidate drops the persisted graph and its keyword units so the next lookup recomputes both.
func (s *Store) Invalidate(ctx context.Context, videoID string) error {
	if err := s.store.DeleteRelationships(ctx, videoID); err != nil {
		return fmt.Errorf("invalidate relationships: %w", err)
	}
	if s.keywords != nil {
		if err := s.keywords.DeleteVideo(ctx, videoID); err != nil {
			return fmt.Errorf("invalidate keyword units: %w", err)
		}
	}
	return nil
}

// Status reports the background computation state of videoID.
func (s *Store) Status(ctx context.Context, videoID string) (models.EmbeddingStatus, error) {
	st := models.EmbeddingStatus{VideoID: videoID, Status: models.EmbeddingNotStarted}

	m, err := s.store.GetMarker(ctx, videoID, storage.StageEmbedding, storage.MarkerError)
	if err != nil {
		return st, fmt.Errorf("read error marker: %w", err)
	}
	if m != nil {
		st.Status = models.EmbeddingError
		st.Error = m.Message
		return st, nil
	}

	_, err = s.store.GetRelationships(ctx, videoID)
	switch {
	case err == nil:
		st.Status = models.EmbeddingCompleted
		return st, nil
	case !stderrors.Is(err, storage.ErrNotFound):
		return st, fmt.Errorf("load relationships: %w", err)
	}

	m, err = s.store.GetMarker(ctx, videoID, storage.StageEmbedding, storage.MarkerProgress)
	if err != nil {
		return st, fmt.Errorf("read progress marker: %w", err)
	}
	if m != nil {
		st.Status = models.EmbeddingProcessing
		st.Message = m.Message
	}
	return st, nil
}

// ComputeAsync recomputes the graph of videoID in the background. The computation outlives ctx
// cancellation; Wait on the store drains it at shutdown.
func (s *Store) ComputeAsync(ctx context.Context, videoID string) *Future {
	f := newFuture()
	bg := context.WithoutCancel(ctx)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		l := s.videoLock(videoID)
		l.Lock()
		defer l.Unlock()
		g, err := s.run(bg, videoID)
		if err != nil {
			s.logger.Error("relationship computation failed", zap.String("video_id", videoID), zap.Error(err))
		}
		f.resolve(g, err)
	}()
	return f
}

// Wait blocks until every background computation has finished.
func (s *Store) Wait() {
	s.wg.Wait()
}
