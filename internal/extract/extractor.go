// Package extract turns materialized transcripts and scene documents into the TextUnit
// streams used for alignment, and parses transcript files into entries.
package extract

import (
	"strings"

	"github.com/hyperjump/kanren/internal/models"
)

// TranscriptUnits returns one unit per transcript entry with start and duration taken verbatim.
// Entries whose text is empty after trimming are skipped.
func TranscriptUnits(entries []models.TranscriptEntry) []models.TextUnit {
	units := make([]models.TextUnit, 0, len(entries))
	for _, e := range entries {
		text := strings.TrimSpace(e.Text)
		if text == "" {
			continue
		}
		units = append(units, models.TextUnit{
			Text:     text,
			Start:    e.Start,
			Duration: e.Duration,
			Origin:   models.OriginTranscript,
		})
	}
	return units
}

// OcrUnits returns the on-screen text of every scene. Every detection with text contributes a
// unit, including boxes whose text was written by a matched freeform line. Only unmatched freeform
// lines contribute their own units, so a claimed line is counted once through its box. Each unit
// inherits its scene's start time and duration.
func OcrUnits(scenes []models.Scene) []models.TextUnit {
	var units []models.TextUnit
	for si := range scenes {
		scene := &scenes[si]
		if scene.HasDetections() {
			for di := range scene.Detections.Detections {
				d := &scene.Detections.Detections[di]
				text := strings.TrimSpace(d.Text())
				if text == "" {
					continue
				}
				bbox := d.BBox
				units = append(units, models.TextUnit{
					Text:           text,
					Start:          scene.Start(),
					Duration:       scene.Duration,
					Origin:         models.OriginOcrBox,
					SceneIndex:     models.IntPtr(si),
					BBox:           &bbox,
					DetectionIndex: models.IntPtr(di),
				})
			}
		}
		if scene.Freeform != nil && scene.Freeform.Success {
			for ri := range scene.Freeform.Results {
				r := &scene.Freeform.Results[ri]
				text := strings.TrimSpace(r.Text)
				if r.Matched || text == "" {
					continue
				}
				bbox := r.BBox
				units = append(units, models.TextUnit{
					Text:        text,
					Start:       scene.Start(),
					Duration:    scene.Duration,
					Origin:      models.OriginOcrFreeform,
					SceneIndex:  models.IntPtr(si),
					BBox:        &bbox,
					ResultIndex: models.IntPtr(ri),
				})
			}
		}
	}
	return units
}
