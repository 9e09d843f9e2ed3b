package detect

import (
	"sort"

	"github.com/hyperjump/kanren/internal/models"
)

// NonMaxSuppression keeps the most confident box among same-class boxes whose IoU exceeds
// threshold. Output is sorted by confidence descending.
func NonMaxSuppression(dets []models.Detection, threshold float64) []models.Detection {
	sorted := append([]models.Detection(nil), dets...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Confidence > sorted[j].Confidence })
	kept := make([]models.Detection, 0, len(sorted))
	for _, d := range sorted {
		suppressed := false
		for _, k := range kept {
			if k.Class == d.Class && k.BBox.IoU(d.BBox) > threshold {
				suppressed = true
				break
			}
		}
		if !suppressed {
			kept = append(kept, d)
		}
	}
	return kept
}

// DecodeYOLO turns a YOLOv8 output tensor laid out as [4+classes][anchors] into detections
// in model-input coordinates. Anchors whose best class score is below minConf are dropped.
func DecodeYOLO(output []float32, anchors int, classes []string, minConf float64) []models.Detection {
	nc := len(classes)
	if anchors <= 0 || len(output) < (4+nc)*anchors {
		return nil
	}
	var dets []models.Detection
	for a := 0; a < anchors; a++ {
		best, bestScore := -1, float32(0)
		for c := 0; c < nc; c++ {
			if s := output[(4+c)*anchors+a]; s > bestScore {
				best, bestScore = c, s
			}
		}
		if best < 0 || float64(bestScore) < minConf {
			continue
		}
		cx := float64(output[a])
		cy := float64(output[anchors+a])
		w := float64(output[2*anchors+a])
		h := float64(output[3*anchors+a])
		box := models.NewRect(cx-w/2, cy-h/2, cx+w/2, cy+h/2)
		dets = append(dets, models.NewDetection(classes[best], float64(bestScore), box))
	}
	return dets
}
