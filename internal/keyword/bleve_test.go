package keyword

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/hyperjump/kanren/internal/models"
)

func testUnits() ([]models.TextUnit, []models.TextUnit) {
	transcript := []models.TextUnit{
		{Text: "Today we cover gradient descent", Start: 1, Origin: models.OriginTranscript},
		{Text: "Bayes theorem shows up next", Start: 12, Origin: models.OriginTranscript},
	}
	ocr := []models.TextUnit{
		{Text: "Gradient Descent", Start: 0, Origin: models.OriginOcrBox, SceneIndex: models.IntPtr(0)},
		{Text: "Bayes' Rule", Start: 10, Origin: models.OriginOcrFreeform, SceneIndex: models.IntPtr(1)},
	}
	return transcript, ocr
}

func TestBleveIndex_SearchScopedToVideo(t *testing.T) {
	idx, err := NewBleveIndex(filepath.Join(t.TempDir(), "bleve"))
	if err != nil {
		t.Fatalf("NewBleveIndex: %v", err)
	}
	defer idx.Close()
	ctx := context.Background()

	transcript, ocr := testUnits()
	if err := idx.IndexUnits(ctx, "v1", transcript, ocr); err != nil {
		t.Fatalf("IndexUnits: %v", err)
	}
	if err := idx.IndexUnits(ctx, "v2", transcript[:1], nil); err != nil {
		t.Fatalf("IndexUnits: %v", err)
	}

	results, err := idx.Search(ctx, "v1", "gradient", 10, nil)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 hits in v1, got %d", len(results))
	}
	for _, r := range results {
		if r.VideoID != "v1" {
			t.Errorf("hit from wrong video: %+v", r)
		}
	}

	results, err = idx.Search(ctx, "v1", "gradient", 10, &SearchOptions{Origin: models.OriginOcrBox})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 || results[0].Index != 0 || results[0].Text != "Gradient Descent" {
		t.Fatalf("origin filter: %+v", results)
	}
	if results[0].SceneIndex == nil || *results[0].SceneIndex != 0 {
		t.Errorf("scene index not stored: %+v", results[0])
	}
}

func TestBleveIndex_Fuzzy(t *testing.T) {
	idx, err := NewBleveIndex("")
	if err != nil {
		t.Fatal(err)
	}
	defer idx.Close()
	ctx := context.Background()
	transcript, ocr := testUnits()
	_ = idx.IndexUnits(ctx, "v1", transcript, ocr)

	exact, _ := idx.Search(ctx, "v1", "gradeint", 10, nil)
	if len(exact) != 0 {
		t.Errorf("misspelling should not match without fuzzy, got %d", len(exact))
	}
	fuzzy, err := idx.Search(ctx, "v1", "gradiant", 10, &SearchOptions{FuzzyEnabled: true})
	if err != nil {
		t.Fatal(err)
	}
	if len(fuzzy) == 0 {
		t.Error("fuzzy search should tolerate one edit")
	}
}

func TestBleveIndex_ReindexReplaces(t *testing.T) {
	idx, _ := NewBleveIndex("")
	defer idx.Close()
	ctx := context.Background()
	transcript, ocr := testUnits()
	_ = idx.IndexUnits(ctx, "v1", transcript, ocr)
	if n, _ := idx.DocCount(); n != 4 {
		t.Fatalf("DocCount=%d, want 4", n)
	}
	_ = idx.IndexUnits(ctx, "v1", transcript[:1], nil)
	if n, _ := idx.DocCount(); n != 1 {
		t.Errorf("DocCount=%d after reindex, want 1", n)
	}
	if err := idx.DeleteVideo(ctx, "v1"); err != nil {
		t.Fatal(err)
	}
	if n, _ := idx.DocCount(); n != 0 {
		t.Errorf("DocCount=%d after delete, want 0", n)
	}
}

func TestBleveIndex_EmptyQuery(t *testing.T) {
	idx, _ := NewBleveIndex("")
	defer idx.Close()
	results, err := idx.Search(context.Background(), "v1", "  ", 10, nil)
	if err != nil || len(results) != 0 {
		t.Errorf("results=%v err=%v", results, err)
	}
}

func TestBleveIndex_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bleve")
	idx, err := NewBleveIndex(path)
	if err != nil {
		t.Fatal(err)
	}
	transcript, _ := testUnits()
	_ = idx.IndexUnits(context.Background(), "v1", transcript, nil)
	_ = idx.Close()

	idx, err = NewBleveIndex(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer idx.Close()
	if n, _ := idx.DocCount(); n != 2 {
		t.Errorf("DocCount=%d after reopen, want 2", n)
	}
}
