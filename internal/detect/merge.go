package detect

import "github.com/hyperjump/kanren/internal/models"

// DefaultMergeThreshold is the IoU/containment ratio above which two text boxes are merged.
const DefaultMergeThreshold = 0.7

// MergeOverlapping coalesces overlapping text-bearing detections in place and returns the
// shortened slice. Two boxes merge when their IoU or either one-way containment exceeds
// threshold; the survivor takes the union box and the higher-confidence class. Boxes that
// do not need OCR are never touched. The result is a fixed point: running it again is a no-op.
func MergeOverlapping(detections []models.Detection, threshold float64) []models.Detection {
	if threshold <= 0 {
		threshold = DefaultMergeThreshold
	}
	for i := 0; i < len(detections); {
		if !detections[i].NeedsOCR {
			i++
			continue
		}
		absorbed := false
		for j := i + 1; j < len(detections); {
			if !detections[j].NeedsOCR || !shouldMerge(detections[i].BBox, detections[j].BBox, threshold) {
				j++
				continue
			}
			detections[i] = mergePair(detections[i], detections[j])
			detections = append(detections[:j], detections[j+1:]...)
			absorbed = true
			// The grown box may now overlap boxes already passed over.
			j = i + 1
		}
		if absorbed {
			// Earlier anchors were checked against the smaller box.
			i = 0
			continue
		}
		i++
	}
	return detections
}

func shouldMerge(a, b models.Rect, threshold float64) bool {
	if _, ok := a.Intersection(b); !ok {
		return false
	}
	return a.IoU(b) > threshold || a.Containment(b) > threshold || b.Containment(a) > threshold
}

// mergePair returns a detection covering both boxes, labelled by the more confident one.
// Ties go to the lexically smaller class so that input order does not matter.
func mergePair(a, b models.Detection) models.Detection {
	winner := a
	if b.Confidence > a.Confidence || (b.Confidence == a.Confidence && b.Class < a.Class) {
		winner = b
	}
	winner.BBox = a.BBox.Union(b.BBox)
	return winner
}
