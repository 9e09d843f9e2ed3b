package relations

import (
	"context"
	stderrors "errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hyperjump/kanren/internal/errors"
	"github.com/hyperjump/kanren/internal/keyword"
	"github.com/hyperjump/kanren/internal/models"
	"github.com/hyperjump/kanren/internal/storage"
)

// fakeComputer persists a fixed graph and counts invocations.
type fakeComputer struct {
	store storage.Storage
	calls atomic.Int32
	delay time.Duration
	fail  atomic.Int32 // number of calls left to fail
	gate  chan struct{}
}

func (c *fakeComputer) Compute(ctx context.Context, videoID string) (*models.RelationshipGraph, error) {
	c.calls.Add(1)
	if c.gate != nil {
		<-c.gate
	}
	time.Sleep(c.delay)
	if c.fail.Load() > 0 {
		c.fail.Add(-1)
		return nil, errors.MissingInputf("compute", videoID, "no scene data available")
	}
	g := sampleGraph(videoID)
	if err := c.store.SaveRelationships(ctx, g); err != nil {
		return nil, err
	}
	return g, nil
}

func sampleGraph(videoID string) *models.RelationshipGraph {
	return &models.RelationshipGraph{
		SchemaVersion: models.RelationshipSchemaVersion,
		Success:       true,
		VideoID:       videoID,
		TranscriptSentences: []models.TextUnit{
			{Text: "intro", Start: 1, Origin: models.OriginTranscript},
			{Text: "loss functions", Start: 33, Origin: models.OriginTranscript},
		},
		OcrTexts: []models.TextUnit{
			{Text: "Loss", Start: 30, Origin: models.OriginOcrBox, SceneIndex: models.IntPtr(1)},
		},
		OcrToTranscript: []models.OcrRelationship{
			{OcrIndex: 0, OcrText: "Loss", SceneIndex: 1, Timestamp: 30,
				Matches: []models.OcrMatch{{TranscriptIndex: 1, Similarity: 0.8, Text: "loss functions", Start: 33}}},
		},
		TranscriptToOcr: []models.TranscriptRelationship{
			{TranscriptIndex: 1, TranscriptText: "loss functions", Timestamp: 33,
				Matches: []models.TranscriptMatch{{OcrIndex: 0, Similarity: 0.8, Text: "Loss", SceneIndex: 1, Timestamp: 30}}},
		},
		CreatedAt: time.Now(),
	}
}

func newFixture(t *testing.T) (*storage.SQLiteStorage, *fakeComputer, *Store) {
	t.Helper()
	dir := t.TempDir()
	st, err := storage.NewSQLiteStorage(filepath.Join(dir, "kanren.db"), storage.WithLockDir(filepath.Join(dir, "locks")))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { st.Close() })
	comp := &fakeComputer{store: st}
	return st, comp, NewStore(st, comp)
}

func TestStore_RecomputesOnceUnderConcurrency(t *testing.T) {
	_, comp, s := newFixture(t)
	comp.delay = 50 * time.Millisecond
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m, err := s.TranscriptMatches(ctx, "v1", 1)
			if err == nil && (len(m) != 1 || m[0].Text != "Loss") {
				err = stderrors.New("unexpected matches")
			}
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatal(err)
		}
	}
	if n := comp.calls.Load(); n != 1 {
		t.Errorf("compute ran %d times", n)
	}
}

func TestStore_Lookups(t *testing.T) {
	st, _, s := newFixture(t)
	ctx := context.Background()
	scenes := []models.Scene{
		{Timestamp: "00:00", TimeSeconds: models.Float64Ptr(0)},
		{Timestamp: "00:30", TimeSeconds: models.Float64Ptr(30)},
	}
	if err := st.SaveScenes(ctx, "v1", scenes); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name  string
		run   func() (int, error)
		count int
	}{
		{"transcript without matches", func() (int, error) {
			m, err := s.TranscriptMatches(ctx, "v1", 0)
			return len(m), err
		}, 0},
		{"ocr exact text", func() (int, error) {
			m, err := s.OcrMatches(ctx, "v1", 1, "Loss")
			return len(m), err
		}, 1},
		{"ocr text is case sensitive", func() (int, error) {
			m, err := s.OcrMatches(ctx, "v1", 1, "loss")
			return len(m), err
		}, 0},
		{"ocr wrong scene", func() (int, error) {
			m, err := s.OcrMatches(ctx, "v1", 0, "Loss")
			return len(m), err
		}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, err := tt.run()
			if err != nil {
				t.Fatal(err)
			}
			if n != tt.count {
				t.Errorf("got %d matches, want %d", n, tt.count)
			}
		})
	}

	got, err := s.SceneForTranscript(ctx, "v1", 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0] != 1 {
		t.Errorf("SceneForTranscript = %v", got)
	}
	if got, _ := s.SceneForTranscript(ctx, "v1", 99); len(got) != 0 {
		t.Errorf("out of range index = %v", got)
	}
}

func TestStore_FailureNotCached(t *testing.T) {
	_, comp, s := newFixture(t)
	comp.fail.Store(1)
	ctx := context.Background()

	if _, err := s.Graph(ctx, "v1"); !errors.Is(err, errors.KindMissingInput) {
		t.Fatalf("expected missing input, got %v", err)
	}
	st, err := s.Status(ctx, "v1")
	if err != nil {
		t.Fatal(err)
	}
	if st.Status != models.EmbeddingError || st.Error == "" {
		t.Errorf("status after failure = %+v", st)
	}

	if _, err := s.Graph(ctx, "v1"); err != nil {
		t.Fatal(err)
	}
	if comp.calls.Load() != 2 {
		t.Errorf("compute ran %d times", comp.calls.Load())
	}
	if st, _ := s.Status(ctx, "v1"); st.Status != models.EmbeddingCompleted {
		t.Errorf("status after success = %+v", st)
	}
}

func TestStore_ComputeAsyncAndStatus(t *testing.T) {
	_, comp, s := newFixture(t)
	comp.gate = make(chan struct{})
	ctx := context.Background()

	if st, _ := s.Status(ctx, "v1"); st.Status != models.EmbeddingNotStarted {
		t.Fatalf("initial status = %+v", st)
	}
	f := s.ComputeAsync(ctx, "v1")
	deadline := time.Now().Add(time.Second)
	for {
		st, err := s.Status(ctx, "v1")
		if err != nil {
			t.Fatal(err)
		}
		if st.Status == models.EmbeddingProcessing {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("never reached processing, last %+v", st)
		}
		time.Sleep(5 * time.Millisecond)
	}
	close(comp.gate)

	wctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	g, err := f.Wait(wctx)
	if err != nil || g == nil {
		t.Fatalf("Wait = %v, %v", g, err)
	}
	s.Wait()
	if st, _ := s.Status(ctx, "v1"); st.Status != models.EmbeddingCompleted {
		t.Errorf("final status = %+v", st)
	}
}

func TestStore_Invalidate(t *testing.T) {
	_, comp, s := newFixture(t)
	ctx := context.Background()
	if _, err := s.Graph(ctx, "v1"); err != nil {
		t.Fatal(err)
	}
	if err := s.Invalidate(ctx, "v1"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Graph(ctx, "v1"); err != nil {
		t.Fatal(err)
	}
	if comp.calls.Load() != 2 {
		t.Errorf("compute ran %d times after invalidate", comp.calls.Load())
	}
}

func TestStore_InvalidateDropsKeywordUnits(t *testing.T) {
	st, comp, _ := newFixture(t)
	kw, err := keyword.NewBleveIndex("")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { kw.Close() })
	s := NewStore(st, comp, WithKeywordIndex(kw))
	ctx := context.Background()

	g, err := s.Graph(ctx, "v1")
	if err != nil {
		t.Fatal(err)
	}
	if err := kw.IndexUnits(ctx, "v1", g.TranscriptSentences, g.OcrTexts); err != nil {
		t.Fatal(err)
	}
	if hits, err := kw.Search(ctx, "v1", "loss", 10, nil); err != nil || len(hits) == 0 {
		t.Fatalf("search before invalidate = %v, %v", hits, err)
	}

	if err := s.Invalidate(ctx, "v1"); err != nil {
		t.Fatal(err)
	}
	hits, err := kw.Search(ctx, "v1", "loss", 10, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 0 {
		t.Errorf("search after invalidate returned %d stale hits", len(hits))
	}
}
