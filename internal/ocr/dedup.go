package ocr

import (
	"sort"

	"github.com/hyperjump/kanren/internal/models"
)

// DefaultDedupThreshold is the IoU above which a freeform line is attributed to a detection.
const DefaultDedupThreshold = 0.3

// Deduplicate reconciles freeform results against the text-bearing detections of one scene.
// A result whose best IoU exceeds threshold is marked matched, records every candidate above
// threshold ranked by IoU, and writes its text into the best detection, which becomes the
// authoritative copy. Results that match nothing are left unmatched and survive as
// standalone text. Claims left by an earlier run are cleared first. Both slices are modified
// in place.
func Deduplicate(detections []models.Detection, results []models.FreeformOcrResult, threshold float64) {
	if threshold <= 0 {
		threshold = DefaultDedupThreshold
	}
	for i := range detections {
		releaseClaim(&detections[i])
	}
	for r := range results {
		res := &results[r]
		res.Matched = false
		res.Matches = nil
		for i := range detections {
			d := &detections[i]
			if !d.NeedsOCR {
				continue
			}
			iou := res.BBox.IoU(d.BBox)
			if iou > threshold {
				res.Matches = append(res.Matches, models.FreeformMatch{
					Index:    i,
					IoU:      iou,
					Class:    d.Class,
					OcrClass: d.OcrClass,
				})
			}
		}
		if len(res.Matches) == 0 {
			continue
		}
		sort.SliceStable(res.Matches, func(a, b int) bool { return res.Matches[a].IoU > res.Matches[b].IoU })
		res.Matched = true
		best := res.Matches[0]
		d := &detections[best.Index]
		d.SetText(res.Text, models.OcrSourceSecondary)
		iou := best.IoU
		d.MatchIoU = &iou
	}
}

// releaseClaim drops a freeform claim on d. Text written by the freeform engine goes with it;
// primary text stays.
func releaseClaim(d *models.Detection) {
	d.MatchIoU = nil
	if d.OcrSource != nil && *d.OcrSource == models.OcrSourceSecondary {
		d.OcrText = nil
		d.OcrSource = nil
	}
}
