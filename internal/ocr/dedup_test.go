package ocr

import (
	"image"
	"testing"

	"github.com/hyperjump/kanren/internal/extract"
	"github.com/hyperjump/kanren/internal/models"
)

func box(x1, y1, x2, y2 float64) models.Rect { return models.NewRect(x1, y1, x2, y2) }

func TestDeduplicate_BestDetectionClaimsText(t *testing.T) {
	dets := []models.Detection{
		models.NewDetection("title", 0.9, box(0, 0, 100, 20)),
		models.NewDetection("picture", 0.9, box(0, 0, 100, 20)),
		models.NewDetection("page-text", 0.8, box(0, 0, 100, 30)),
	}
	results := []models.FreeformOcrResult{
		{Text: "Gradient Descent", Confidence: 0.95, BBox: box(0, 0, 100, 21)},
	}
	Deduplicate(dets, results, 0.3)

	r := results[0]
	if !r.Matched {
		t.Fatal("result should be matched")
	}
	if len(r.Matches) != 2 {
		t.Fatalf("expected 2 candidates (picture excluded), got %+v", r.Matches)
	}
	if r.Matches[0].Index != 0 || r.Matches[1].Index != 2 || r.Matches[0].IoU < r.Matches[1].IoU {
		t.Errorf("candidates not ranked by IoU: %+v", r.Matches)
	}
	if dets[0].Text() != "Gradient Descent" || *dets[0].OcrSource != models.OcrSourceSecondary || dets[0].MatchIoU == nil {
		t.Errorf("best detection not updated: %+v", dets[0])
	}
	if dets[2].OcrText != nil || dets[2].MatchIoU != nil {
		t.Errorf("only the best detection takes the text: %+v", dets[2])
	}
	if dets[1].OcrText != nil {
		t.Error("non-text detection must not take text")
	}
}

func TestDeduplicate_Conservation(t *testing.T) {
	dets := []models.Detection{
		models.NewDetection("page-text", 0.8, box(0, 0, 10, 10)),
	}
	results := []models.FreeformOcrResult{
		{Text: "weak overlap", BBox: box(7, 0, 17, 10)},  // IoU 30/170
		{Text: "strong overlap", BBox: box(1, 0, 11, 10)}, // IoU 90/110
		{Text: "elsewhere", BBox: box(50, 50, 60, 60)},
	}
	Deduplicate(dets, results, 0.3)
	want := []bool{false, true, false}
	for i, r := range results {
		if r.Matched != want[i] {
			t.Errorf("result %d (%s) matched=%v, want %v", i, r.Text, r.Matched, want[i])
		}
	}
	if dets[0].Text() != "strong overlap" {
		t.Errorf("detection text = %q", dets[0].Text())
	}
}

func TestDeduplicate_ClaimedTextReachesAlignment(t *testing.T) {
	for _, primaryFirst := range []bool{false, true} {
		det := models.NewDetection("title", 0.9, box(0, 0, 100, 20))
		if primaryFirst {
			det.SetText("Gradient Descnet", models.OcrSourcePrimary)
		}
		scene := models.Scene{Timestamp: "00:10", TimeSeconds: models.Float64Ptr(10), Duration: 5}
		scene.Detections = &models.DetectionSet{Success: true, Detections: []models.Detection{det}}
		scene.Freeform = &models.FreeformSet{Success: true, Results: []models.FreeformOcrResult{
			{Text: "Gradient Descent", Confidence: 0.9, BBox: box(0, 0, 100, 20)},
		}}
		Deduplicate(scene.Detections.Detections, scene.Freeform.Results, 0.3)

		units := extract.OcrUnits([]models.Scene{scene})
		if len(units) != 1 {
			t.Fatalf("primaryFirst=%v: got %d units, want 1: %+v", primaryFirst, len(units), units)
		}
		if units[0].Text != "Gradient Descent" || units[0].Origin != models.OriginOcrBox || units[0].Start != 10 {
			t.Errorf("primaryFirst=%v: unit = %+v", primaryFirst, units[0])
		}
	}
}

func TestDeduplicate_RerunReleasesStaleClaims(t *testing.T) {
	dets := []models.Detection{
		models.NewDetection("title", 0.9, box(0, 0, 100, 20)),
		models.NewDetection("caption", 0.9, box(0, 50, 100, 70)),
	}
	dets[1].SetText("Figure 1", models.OcrSourcePrimary)
	dets[1].MatchIoU = models.Float64Ptr(0.9)

	Deduplicate(dets, []models.FreeformOcrResult{{Text: "old line", BBox: box(0, 0, 100, 20)}}, 0.3)
	if dets[0].Text() != "old line" {
		t.Fatalf("first run did not claim: %+v", dets[0])
	}

	results := []models.FreeformOcrResult{{Text: "moved line", BBox: box(300, 300, 400, 320)}}
	Deduplicate(dets, results, 0.3)
	if results[0].Matched {
		t.Error("second run result should be unmatched")
	}
	if dets[0].MatchIoU != nil || dets[0].OcrText != nil || dets[0].OcrSource != nil {
		t.Errorf("stale freeform claim kept: %+v", dets[0])
	}
	if dets[1].MatchIoU != nil || dets[1].Text() != "Figure 1" {
		t.Errorf("primary text should survive with its claim cleared: %+v", dets[1])
	}
}

func TestDeduplicate_NoDetections(t *testing.T) {
	results := []models.FreeformOcrResult{{Text: "alone", BBox: box(0, 0, 5, 5)}}
	Deduplicate(nil, results, 0.3)
	if results[0].Matched {
		t.Error("nothing to match against")
	}
}

func TestParsePreference(t *testing.T) {
	p, err := ParsePreference("")
	if err != nil || p != PreferTesseract {
		t.Errorf("default = %v, %v", p, err)
	}
	p, _ = ParsePreference("both")
	if !p.UsesBox() || !p.UsesFreeform() {
		t.Error("both should use both engines")
	}
	p, _ = ParsePreference("freeform")
	if p.UsesBox() {
		t.Error("freeform should skip box engine")
	}
	if _, err := ParsePreference("surya"); err == nil {
		t.Error("expected error for unknown preference")
	}
}

func TestCrop(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 100, 50))
	sub, err := Crop(img, box(10, 10, 200, 40))
	if err != nil {
		t.Fatal(err)
	}
	if sub.Bounds() != image.Rect(10, 10, 100, 40) {
		t.Errorf("bounds = %v", sub.Bounds())
	}
	if _, err := Crop(img, box(200, 200, 300, 300)); err == nil {
		t.Error("expected error for box outside image")
	}
}
