package extract

import (
	"strings"

	"github.com/hyperjump/kanren/internal/models"
)

// OcrReport lists every OCR line of a video the way clients display it, and counts text boxes
// that are still waiting for recognition.
func OcrReport(scenes []models.Scene) *models.OcrTextReport {
	report := &models.OcrTextReport{Success: true, OcrResults: []models.OcrTextItem{}}
	for si := range scenes {
		scene := &scenes[si]
		if scene.HasDetections() {
			for di := range scene.Detections.Detections {
				d := &scene.Detections.Detections[di]
				if d.NeedsOCR && d.OcrText == nil {
					report.PendingOcrCount++
				}
				if strings.TrimSpace(d.Text()) == "" || !primaryOrUnclaimed(d) {
					continue
				}
				source := models.OcrSourcePrimary
				if d.OcrSource != nil {
					source = *d.OcrSource
				}
				matchIoU := 1.0
				if d.MatchIoU != nil {
					matchIoU = *d.MatchIoU
				}
				report.OcrResults = append(report.OcrResults, models.OcrTextItem{
					SceneIndex:  si,
					Timestamp:   scene.Timestamp,
					TimeSeconds: scene.Start(),
					Text:        d.Text(),
					Confidence:  d.Confidence,
					BBox:        d.BBox,
					OcrClass:    d.OcrClass,
					OcrSource:   source,
					Matched:     true,
					MatchIoU:    matchIoU,
				})
			}
		}
		if scene.Freeform != nil && scene.Freeform.Success {
			for _, r := range scene.Freeform.Results {
				if r.Matched || strings.TrimSpace(r.Text) == "" {
					continue
				}
				report.OcrResults = append(report.OcrResults, models.OcrTextItem{
					SceneIndex:  si,
					Timestamp:   scene.Timestamp,
					TimeSeconds: scene.Start(),
					Text:        r.Text,
					Confidence:  r.Confidence,
					BBox:        r.BBox,
					OcrClass:    "unmatched",
					OcrSource:   models.OcrSourceSecondary,
				})
			}
		}
	}
	report.OcrCount = len(report.OcrResults)
	report.ProcessingComplete = report.PendingOcrCount == 0
	return report
}

// primaryOrUnclaimed hides boxes whose text came from a freeform claim; the report lists those
// lines once, the way the recognition engines reported them.
func primaryOrUnclaimed(d *models.Detection) bool {
	if d.OcrSource != nil && *d.OcrSource == models.OcrSourcePrimary {
		return true
	}
	return d.MatchIoU == nil
}
