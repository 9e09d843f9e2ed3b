package detect

import (
	"reflect"
	"testing"

	"github.com/hyperjump/kanren/internal/models"
)

func text(class string, conf float64, x1, y1, x2, y2 float64) models.Detection {
	return models.NewDetection(class, conf, models.NewRect(x1, y1, x2, y2))
}

func TestMergeOverlapping_FullContainment(t *testing.T) {
	in := []models.Detection{
		text("title", 0.6, 0, 0, 100, 100),
		text("page-text", 0.9, 10, 10, 90, 90),
	}
	out := MergeOverlapping(in, 0.7)
	if len(out) != 1 {
		t.Fatalf("expected 1 detection, got %d", len(out))
	}
	if out[0].BBox != models.NewRect(0, 0, 100, 100) {
		t.Errorf("bbox = %v", out[0].BBox)
	}
	if out[0].Class != "page-text" || out[0].Confidence != 0.9 || out[0].OcrClass != "page-text" {
		t.Errorf("class/confidence should come from the more confident box: %+v", out[0])
	}
}

func TestMergeOverlapping_Symmetric(t *testing.T) {
	a := text("title", 0.8, 0, 0, 50, 20)
	b := text("caption", 0.8, 2, 1, 52, 21)
	ab := MergeOverlapping([]models.Detection{a, b}, 0.7)
	ba := MergeOverlapping([]models.Detection{b, a}, 0.7)
	if len(ab) != 1 || len(ba) != 1 {
		t.Fatalf("expected single merged box, got %d and %d", len(ab), len(ba))
	}
	if !reflect.DeepEqual(ab[0], ba[0]) {
		t.Errorf("order dependent merge:\n%+v\n%+v", ab[0], ba[0])
	}
	if ab[0].Class != "caption" {
		t.Errorf("tie should go to lexically smaller class, got %s", ab[0].Class)
	}
}

func TestMergeOverlapping_Idempotent(t *testing.T) {
	in := []models.Detection{
		text("page-text", 0.5, 0, 0, 40, 40),
		text("page-text", 0.7, 100, 100, 200, 200),
		text("title", 0.9, 5, 5, 38, 38),
		text("page-text", 0.4, 110, 105, 195, 199),
		text("caption", 0.3, 300, 300, 320, 310),
	}
	once := MergeOverlapping(in, 0.7)
	snapshot := append([]models.Detection(nil), once...)
	twice := MergeOverlapping(once, 0.7)
	if !reflect.DeepEqual(snapshot, twice) {
		t.Errorf("second pass changed result:\n%+v\n%+v", snapshot, twice)
	}
	if len(snapshot) != 3 {
		t.Errorf("expected 3 boxes after merge, got %d", len(snapshot))
	}
}

func TestMergeOverlapping_GrownBoxReachesEarlierAnchor(t *testing.T) {
	// c only overlaps enough once a and b have merged into a larger box.
	in := []models.Detection{
		text("page-text", 0.5, 0, 0, 60, 10),
		text("page-text", 0.5, 100, 0, 140, 10),
		text("page-text", 0.5, 90, 0, 150, 10),
		text("page-text", 0.5, 30, 0, 150, 10),
	}
	out := MergeOverlapping(in, 0.7)
	again := MergeOverlapping(append([]models.Detection(nil), out...), 0.7)
	if len(out) != len(again) {
		t.Errorf("not a fixed point: %d then %d", len(out), len(again))
	}
}

func TestMergeOverlapping_NonTextUntouched(t *testing.T) {
	pic := models.NewDetection("picture", 0.99, models.NewRect(0, 0, 100, 100))
	in := []models.Detection{
		pic,
		text("page-text", 0.5, 1, 1, 99, 99),
	}
	out := MergeOverlapping(in, 0.7)
	if len(out) != 2 {
		t.Fatalf("non-text box must not merge, got %d", len(out))
	}
	if !reflect.DeepEqual(out[0], pic) {
		t.Errorf("picture changed: %+v", out[0])
	}
}

func TestMergeOverlapping_DisjointAndTouching(t *testing.T) {
	in := []models.Detection{
		text("page-text", 0.5, 0, 0, 10, 10),
		text("page-text", 0.5, 10, 0, 20, 10),
		text("page-text", 0.5, 50, 50, 60, 60),
	}
	if out := MergeOverlapping(in, 0.7); len(out) != 3 {
		t.Errorf("expected no merges, got %d boxes", len(out))
	}
}
