package storage

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/hyperjump/kanren/internal/models"
)

func newTestStore(t *testing.T) *SQLiteStorage {
	t.Helper()
	dir := t.TempDir()
	store, err := NewSQLiteStorage(filepath.Join(dir, "test.db"), WithLockDir(filepath.Join(dir, "locks")))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSQLiteStorage_Scenes(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if _, err := store.GetScenes(ctx, "v1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	scenes := []models.Scene{
		{Timestamp: "00:00", TimeSeconds: models.Float64Ptr(0), Fullsize: "a.jpg"},
		{Timestamp: "00:10", TimeSeconds: models.Float64Ptr(10)},
	}
	if err := store.SaveScenes(ctx, "v1", scenes); err != nil {
		t.Fatal(err)
	}
	got, err := store.GetScenes(ctx, "v1")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[1].Start() != 10 || got[0].Fullsize != "a.jpg" {
		t.Errorf("got %+v", got)
	}

	err = store.UpdateScenes(ctx, "v1", func(s []models.Scene) error {
		s[0].Detections = &models.DetectionSet{Success: true, Detections: []models.Detection{}}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	got, _ = store.GetScenes(ctx, "v1")
	if !got[0].HasDetections() {
		t.Error("update was not persisted")
	}

	boom := errors.New("boom")
	if err := store.UpdateScenes(ctx, "v1", func([]models.Scene) error { return boom }); !errors.Is(err, boom) {
		t.Errorf("expected fn error, got %v", err)
	}
	if err := store.UpdateScenes(ctx, "missing", func([]models.Scene) error { return nil }); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for missing video, got %v", err)
	}
}

func TestSQLiteStorage_ConcurrentUpdates(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	scenes := make([]models.Scene, 8)
	if err := store.SaveScenes(ctx, "v1", scenes); err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	for i := 0; i < len(scenes); i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			err := store.UpdateScenes(ctx, "v1", func(s []models.Scene) error {
				s[i].Detections = &models.DetectionSet{Success: true}
				return nil
			})
			if err != nil {
				t.Error(err)
			}
		}(i)
	}
	wg.Wait()

	got, _ := store.GetScenes(ctx, "v1")
	for i, s := range got {
		if !s.HasDetections() {
			t.Errorf("scene %d lost its update", i)
		}
	}
}

func TestSQLiteStorage_Transcripts(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if _, _, err := store.PreferredTranscript(ctx, "v1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	yt := []models.TranscriptEntry{{Text: "youtube", Start: 1}}
	if err := store.SaveTranscript(ctx, "v1", models.TranscriptYouTube, yt); err != nil {
		t.Fatal(err)
	}
	entries, src, err := store.PreferredTranscript(ctx, "v1")
	if err != nil || src != models.TranscriptYouTube || entries[0].Text != "youtube" {
		t.Fatalf("got %v %s %v", entries, src, err)
	}

	ws := []models.TranscriptEntry{{Text: "whisper", Start: 1}}
	if err := store.SaveTranscript(ctx, "v1", models.TranscriptWhisper, ws); err != nil {
		t.Fatal(err)
	}
	entries, src, _ = store.PreferredTranscript(ctx, "v1")
	if src != models.TranscriptWhisper || entries[0].Text != "whisper" {
		t.Errorf("whisper transcript should be preferred, got %s", src)
	}
}

func TestSQLiteStorage_Relationships(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	graph := &models.RelationshipGraph{
		Success:             true,
		VideoID:             "v1",
		TranscriptSentences: []models.TextUnit{{Text: "hi", Origin: models.OriginTranscript, Embedding: []float32{1}}},
	}
	if err := store.SaveRelationships(ctx, graph); err != nil {
		t.Fatal(err)
	}
	got, err := store.GetRelationships(ctx, "v1")
	if err != nil {
		t.Fatal(err)
	}
	if got.SchemaVersion != models.RelationshipSchemaVersion || got.CreatedAt.IsZero() {
		t.Errorf("got %+v", got)
	}
	if got.TranscriptSentences[0].Embedding != nil {
		t.Error("embedding should not be persisted")
	}

	if err := store.DeleteRelationships(ctx, "v1"); err != nil {
		t.Fatal(err)
	}
	if _, err := store.GetRelationships(ctx, "v1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestSQLiteStorage_OtherSchemaVersionIsAbsent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	if err := store.SaveRelationships(ctx, &models.RelationshipGraph{VideoID: "v1", SchemaVersion: 1}); err != nil {
		t.Fatal(err)
	}
	if _, err := store.GetRelationships(ctx, "v1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestSQLiteStorage_Markers(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	m, err := store.GetMarker(ctx, "v1", StageOCR, MarkerError)
	if err != nil || m != nil {
		t.Fatalf("expected no marker, got %v %v", m, err)
	}
	if err := store.SetMarker(ctx, "v1", StageOCR, MarkerError, "scene 3: decode failed"); err != nil {
		t.Fatal(err)
	}
	m, err = store.GetMarker(ctx, "v1", StageOCR, MarkerError)
	if err != nil || m == nil || m.Message != "scene 3: decode failed" {
		t.Fatalf("got %+v %v", m, err)
	}
	if other, _ := store.GetMarker(ctx, "v1", StageEmbedding, MarkerError); other != nil {
		t.Error("markers must be scoped by stage")
	}
	if err := store.ClearMarker(ctx, "v1", StageOCR, MarkerError); err != nil {
		t.Fatal(err)
	}
	if m, _ := store.GetMarker(ctx, "v1", StageOCR, MarkerError); m != nil {
		t.Error("marker should be cleared")
	}
}

func TestSQLiteStorage_ListVideos(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	_ = store.SaveScenes(ctx, "a", make([]models.Scene, 3))
	_ = store.SaveTranscript(ctx, "b", models.TranscriptYouTube, nil)

	videos, err := store.ListVideos(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(videos) != 2 {
		t.Fatalf("expected 2 videos, got %d", len(videos))
	}
	byID := map[string]VideoSummary{}
	for _, v := range videos {
		byID[v.ID] = v
	}
	if byID["a"].SceneCount != 3 || byID["a"].HasTranscript {
		t.Errorf("a = %+v", byID["a"])
	}
	if !byID["b"].HasTranscript || byID["b"].SceneCount != 0 {
		t.Errorf("b = %+v", byID["b"])
	}
	n, _ := store.CountVideos(ctx)
	if n != 2 {
		t.Errorf("CountVideos=%d", n)
	}
}

func TestSQLiteStorage_InMemory(t *testing.T) {
	store, err := NewSQLiteStorage(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	ctx := context.Background()
	if err := store.SaveScenes(ctx, "v", []models.Scene{{}}); err != nil {
		t.Fatal(err)
	}
	if _, err := store.GetScenes(ctx, "v"); err != nil {
		t.Fatal(err)
	}
}
