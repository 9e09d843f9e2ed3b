// Package align builds the bidirectional relationship graph between a video's transcript
// sentences and its on-screen text.
package align

import (
	"context"
	stderrors "errors"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/kanren/internal/embedding"
	"github.com/hyperjump/kanren/internal/errors"
	"github.com/hyperjump/kanren/internal/extract"
	"github.com/hyperjump/kanren/internal/keyword"
	"github.com/hyperjump/kanren/internal/models"
	"github.com/hyperjump/kanren/internal/progress"
	"github.com/hyperjump/kanren/internal/storage"
	"github.com/hyperjump/kanren/internal/timeline"
	"github.com/hyperjump/kanren/internal/vector"
	"github.com/hyperjump/kanren/pkg/utils"
)

// NoOCRMessage is the graph message when a video has no on-screen text.
const NoOCRMessage = "No OCR text found"

// Options holds the matching parameters.
type Options struct {
	TopK                int
	SimilarityThreshold float64
	SceneBuffer         float64
	MissingEnd          float64
	IndexType           string
	QdrantAddress       string
}

// DefaultOptions returns the standard matching parameters.
func DefaultOptions() Options {
	return Options{
		TopK:                5,
		SimilarityThreshold: 0.5,
		SceneBuffer:         timeline.DefaultBuffer,
		MissingEnd:          timeline.DefaultMissingEnd,
		IndexType:           string(vector.IndexTypeMemory),
		QdrantAddress:       vector.DefaultQdrantAddress,
	}
}

// Engine aligns transcript and OCR units. Compute adds loading and persistence around Align.
type Engine struct {
	embedder embedding.Embedder
	store    storage.Storage
	keywords keyword.KeywordIndex
	broker   progress.Broker
	opts     Options
	logger   *zap.Logger
	now      func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithOptions sets the matching parameters.
func WithOptions(o Options) Option {
	return func(e *Engine) { e.opts = o }
}

// WithKeywordIndex indexes every computed graph's units for keyword search.
func WithKeywordIndex(k keyword.KeywordIndex) Option {
	return func(e *Engine) { e.keywords = k }
}

// WithBroker publishes embedding_* progress events.
func WithBroker(b progress.Broker) Option {
	return func(e *Engine) { e.broker = b }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) { e.logger = utils.OrNop(l) }
}

// NewEngine creates an engine. A nil embedder makes every computation fail with ModelUnavailable.
func NewEngine(embedder embedding.Embedder, store storage.Storage, opts ...Option) *Engine {
	e := &Engine{
		embedder: embedder,
		store:    store,
		opts:     DefaultOptions(),
		logger:   zap.NewNop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.opts.TopK <= 0 {
		e.opts.TopK = 5
	}
	return e
}

// Compute loads the transcript (whisper preferred) and scenes of videoID, aligns them, and
// persists the graph.
func (e *Engine) Compute(ctx context.Context, videoID string) (*models.RelationshipGraph, error) {
	const op = "align.Compute"
	graph, err := e.compute(ctx, videoID)
	if err != nil {
		e.publish(ctx, videoID, progress.Event{Type: progress.EventEmbeddingError, Error: err.Error()})
		return nil, err
	}
	e.publish(ctx, videoID, progress.Event{
		Type:      progress.EventEmbeddingComplete,
		Total:     len(graph.TranscriptToOcr) + len(graph.OcrToTranscript),
		Completed: len(graph.TranscriptToOcr) + len(graph.OcrToTranscript),
		Percent:   100,
		Message:   fmt.Sprintf("%d transcript and %d OCR relationships", len(graph.TranscriptToOcr), len(graph.OcrToTranscript)),
	})
	e.logger.Info("relationships computed",
		zap.String("op", op),
		zap.String("video_id", videoID),
		zap.Int("transcript_sentences", len(graph.TranscriptSentences)),
		zap.Int("ocr_texts", len(graph.OcrTexts)),
		zap.Int("transcript_to_ocr", len(graph.TranscriptToOcr)),
		zap.Int("ocr_to_transcript", len(graph.OcrToTranscript)))
	return graph, nil
}

func (e *Engine) compute(ctx context.Context, videoID string) (*models.RelationshipGraph, error) {
	const op = "align.Compute"
	e.publish(ctx, videoID, progress.Event{Type: progress.EventEmbeddingProgress, Message: "Loading transcript and scenes"})

	entries, source, err := e.store.PreferredTranscript(ctx, videoID)
	if stderrors.Is(err, storage.ErrNotFound) {
		return nil, errors.MissingInputf(op, videoID, "no transcript available")
	}
	if err != nil {
		return nil, errors.Processing(op, videoID, fmt.Errorf("load transcript: %w", err))
	}
	scenes, err := e.store.GetScenes(ctx, videoID)
	if stderrors.Is(err, storage.ErrNotFound) {
		return nil, errors.MissingInputf(op, videoID, "no scene data available")
	}
	if err != nil {
		return nil, errors.Processing(op, videoID, fmt.Errorf("load scenes: %w", err))
	}
	e.logger.Debug("alignment inputs loaded",
		zap.String("video_id", videoID),
		zap.String("transcript_source", string(source)),
		zap.Int("entries", len(entries)),
		zap.Int("scenes", len(scenes)))

	transcript := extract.TranscriptUnits(entries)
	ocr := extract.OcrUnits(scenes)
	graph, err := e.Align(ctx, videoID, transcript, ocr, scenes)
	if err != nil {
		return nil, err
	}

	if err := e.store.SaveRelationships(ctx, graph); err != nil {
		return nil, errors.Processing(op, videoID, fmt.Errorf("save relationships: %w", err))
	}
	if e.keywords != nil {
		if err := e.keywords.IndexUnits(ctx, videoID, graph.TranscriptSentences, graph.OcrTexts); err != nil {
			e.logger.Warn("keyword indexing failed", zap.String("video_id", videoID), zap.Error(err))
		}
	}
	return graph, nil
}

// Align matches transcript units against OCR units in both directions. All texts are embedded
// in a single batch call. Transcript-to-OCR matches are limited to OCR units from the scenes
// the sentence's start time maps to, unless it maps to none.
func (e *Engine) Align(ctx context.Context, videoID string, transcript, ocr []models.TextUnit, scenes []models.Scene) (*models.RelationshipGraph, error) {
	const op = "align.Align"
	graph := &models.RelationshipGraph{
		SchemaVersion:       models.RelationshipSchemaVersion,
		Success:             true,
		VideoID:             videoID,
		TranscriptSentences: copyUnits(transcript),
		OcrTexts:            copyUnits(ocr),
		OcrToTranscript:     []models.OcrRelationship{},
		TranscriptToOcr:     []models.TranscriptRelationship{},
		CreatedAt:           e.now(),
	}
	if len(ocr) == 0 {
		graph.Message = NoOCRMessage
		return graph, nil
	}
	if len(transcript) == 0 {
		return graph, nil
	}
	if e.embedder == nil {
		return nil, errors.ModelUnavailable(op, fmt.Errorf("no embedder configured"))
	}

	texts := make([]string, 0, len(transcript)+len(ocr))
	for _, u := range transcript {
		texts = append(texts, u.Text)
	}
	for _, u := range ocr {
		texts = append(texts, u.Text)
	}
	e.publish(ctx, videoID, progress.Event{
		Type:    progress.EventEmbeddingProgress,
		Total:   len(texts),
		Message: fmt.Sprintf("Embedding %d texts", len(texts)),
	})
	vecs, err := e.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, errors.Processing(op, videoID, fmt.Errorf("embed: %w", err))
	}
	if len(vecs) != len(texts) {
		return nil, errors.Processing(op, videoID, fmt.Errorf("embedder returned %d vectors for %d texts", len(vecs), len(texts)))
	}
	utils.NormalizeAll(vecs)
	split := len(transcript)
	for i := range graph.TranscriptSentences {
		graph.TranscriptSentences[i].Embedding = vecs[i]
	}
	for i := range graph.OcrTexts {
		graph.OcrTexts[i].Embedding = vecs[split+i]
	}
	defer graph.StripEmbeddings()

	dims := len(vecs[0])
	e.publish(ctx, videoID, progress.Event{
		Type:      progress.EventEmbeddingProgress,
		Total:     len(texts),
		Completed: len(texts),
		Message:   "Matching on-screen text to transcript",
	})
	if graph.OcrToTranscript, err = e.matchOcrToTranscript(ctx, dims, graph.TranscriptSentences, graph.OcrTexts); err != nil {
		return nil, errors.Processing(op, videoID, err)
	}
	mapper := timeline.NewMapper(scenes, timeline.WithBuffer(e.opts.SceneBuffer), timeline.WithMissingEnd(e.opts.MissingEnd))
	if graph.TranscriptToOcr, err = e.matchTranscriptToOcr(ctx, dims, mapper, graph.TranscriptSentences, graph.OcrTexts); err != nil {
		return nil, errors.Processing(op, videoID, err)
	}
	return graph, nil
}

func (e *Engine) newIndex(ctx context.Context, dims int, units []models.TextUnit) (vector.VectorIndex, error) {
	idx, err := vector.NewVectorIndex(ctx, e.opts.IndexType, dims, vector.WithQdrantAddress(e.opts.QdrantAddress))
	if err != nil {
		return nil, errors.ModelUnavailable("align.index", err)
	}
	vecs := make([][]float32, len(units))
	for i := range units {
		vecs[i] = units[i].Embedding
	}
	if err := idx.Add(ctx, vecs); err != nil {
		_ = idx.Close()
		return nil, fmt.Errorf("index vectors: %w", err)
	}
	return idx, nil
}

func (e *Engine) matchOcrToTranscript(ctx context.Context, dims int, transcript, ocr []models.TextUnit) ([]models.OcrRelationship, error) {
	idx, err := e.newIndex(ctx, dims, transcript)
	if err != nil {
		return nil, err
	}
	defer idx.Close()

	k := min(e.opts.TopK, len(transcript))
	out := []models.OcrRelationship{}
	for j := range ocr {
		hits, err := idx.Search(ctx, ocr[j].Embedding, k)
		if err != nil {
			return nil, fmt.Errorf("search transcript index: %w", err)
		}
		var matches []models.OcrMatch
		for _, h := range hits {
			if h.Score <= e.opts.SimilarityThreshold {
				continue
			}
			t := &transcript[h.Index]
			matches = append(matches, models.OcrMatch{
				TranscriptIndex: h.Index,
				Similarity:      similarity(h.Score),
				Text:            t.Text,
				Start:           t.Start,
			})
		}
		if len(matches) == 0 {
			continue
		}
		out = append(out, models.OcrRelationship{
			OcrIndex:   j,
			OcrText:    ocr[j].Text,
			SceneIndex: ocr[j].Scene(),
			Timestamp:  ocr[j].Start,
			Matches:    matches,
		})
	}
	return out, nil
}

// similarity caps an inner product of unit vectors at 1; rounding can push it just above.
func similarity(score float64) float64 {
	return math.Min(score, 1)
}

func (e *Engine) matchTranscriptToOcr(ctx context.Context, dims int, mapper *timeline.Mapper, transcript, ocr []models.TextUnit) ([]models.TranscriptRelationship, error) {
	idx, err := e.newIndex(ctx, dims, ocr)
	if err != nil {
		return nil, err
	}
	defer idx.Close()

	k := min(e.opts.TopK, len(ocr))
	out := []models.TranscriptRelationship{}
	for i := range transcript {
		hits, err := idx.Search(ctx, transcript[i].Embedding, k)
		if err != nil {
			return nil, fmt.Errorf("search ocr index: %w", err)
		}
		allowed := sceneSet(mapper.Candidates(transcript[i].Start))
		var matches []models.TranscriptMatch
		for _, h := range hits {
			o := &ocr[h.Index]
			if h.Score <= e.opts.SimilarityThreshold {
				continue
			}
			if len(allowed) > 0 && !allowed[o.Scene()] {
				continue
			}
			matches = append(matches, models.TranscriptMatch{
				OcrIndex:   h.Index,
				Similarity: similarity(h.Score),
				Text:       o.Text,
				SceneIndex: o.Scene(),
				Timestamp:  o.Start,
				BBox:       o.BBox,
			})
		}
		if len(matches) == 0 {
			continue
		}
		out = append(out, models.TranscriptRelationship{
			TranscriptIndex: i,
			TranscriptText:  transcript[i].Text,
			Timestamp:       transcript[i].Start,
			Matches:         matches,
		})
	}
	return out, nil
}

func sceneSet(scenes []int) map[int]bool {
	set := make(map[int]bool, len(scenes))
	for _, s := range scenes {
		set[s] = true
	}
	return set
}

// copyUnits copies units so that embeddings never reach the caller's slices.
func copyUnits(units []models.TextUnit) []models.TextUnit {
	out := make([]models.TextUnit, len(units))
	copy(out, units)
	return out
}

func (e *Engine) publish(ctx context.Context, videoID string, ev progress.Event) {
	if e.broker == nil {
		return
	}
	if err := e.broker.Publish(ctx, videoID, ev); err != nil {
		e.logger.Debug("progress publish failed", zap.String("video_id", videoID), zap.Error(err))
	}
}
