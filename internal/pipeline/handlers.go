package pipeline

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/hyperjump/kanren/internal/detect"
	"github.com/hyperjump/kanren/internal/models"
	"github.com/hyperjump/kanren/internal/ocr"
)

func (p *Pipeline) handleDetection(ctx context.Context, job DetectionJob) error {
	img, err := p.loadImage(job.ImagePath)
	if err == nil {
		var dets []models.Detection
		dets, err = p.models.Detector.Detect(ctx, img)
		if err == nil {
			dets = detect.MergeOverlapping(dets, p.opts.MergeThreshold)
			p.logger.Debug("scene detected",
				zap.String("video_id", job.VideoID),
				zap.Int("scene_index", job.SceneIndex),
				zap.Int("detections", len(dets)))
			return p.updateScene(ctx, job.VideoID, job.SceneIndex, func(s *models.Scene) {
				s.Detections = &models.DetectionSet{Success: true, Detections: dets}
			})
		}
	}
	// Record the failure on the scene so OCR skips it and readers see why.
	msg := err.Error()
	if uerr := p.updateScene(ctx, job.VideoID, job.SceneIndex, func(s *models.Scene) {
		s.Detections = &models.DetectionSet{Success: false, Detections: []models.Detection{}, Error: msg}
	}); uerr != nil {
		p.logger.Warn("record detection failure", zap.String("video_id", job.VideoID), zap.Error(uerr))
	}
	return fmt.Errorf("detect scene %d: %w", job.SceneIndex, err)
}

func (p *Pipeline) handleOCR(ctx context.Context, job Job) error {
	switch j := job.(type) {
	case TesseractJob:
		return p.handleTesseract(ctx, j)
	case FreeformJob:
		return p.handleFreeform(ctx, j)
	default:
		return fmt.Errorf("unexpected job %T on OCR queue", job)
	}
}

// handleTesseract recognizes every text box of the scene. Recognition runs without the video
// lock; results are applied to boxes whose geometry is unchanged.
func (p *Pipeline) handleTesseract(ctx context.Context, job TesseractJob) error {
	scenes, err := p.store.GetScenes(ctx, job.VideoID)
	if err != nil {
		return fmt.Errorf("load scenes: %w", err)
	}
	if job.SceneIndex >= len(scenes) || !scenes[job.SceneIndex].HasDetections() {
		return nil
	}
	img, err := p.loadImage(job.ImagePath)
	if err != nil {
		return err
	}

	dets := scenes[job.SceneIndex].Detections.Detections
	texts := make(map[int]string)
	boxes := make(map[int]models.Rect)
	for i, d := range dets {
		if !d.NeedsOCR {
			continue
		}
		text, err := p.models.BoxOCR.Recognize(ctx, img, d.BBox)
		if err != nil {
			return fmt.Errorf("recognize box %d of scene %d: %w", i, job.SceneIndex, err)
		}
		texts[i] = text
		boxes[i] = d.BBox
	}
	return p.updateScene(ctx, job.VideoID, job.SceneIndex, func(s *models.Scene) {
		if !s.HasDetections() {
			return
		}
		for i, text := range texts {
			if i < len(s.Detections.Detections) && s.Detections.Detections[i].BBox == boxes[i] {
				s.Detections.Detections[i].SetText(text, models.OcrSourcePrimary)
			}
		}
	})
}

// handleFreeform recognizes free text lines and reconciles them with the scene's boxes.
func (p *Pipeline) handleFreeform(ctx context.Context, job FreeformJob) error {
	img, err := p.loadImage(job.ImagePath)
	if err != nil {
		return err
	}
	lines, err := p.models.FreeformOCR.Lines(ctx, img)
	if err != nil {
		msg := err.Error()
		if uerr := p.updateScene(ctx, job.VideoID, job.SceneIndex, func(s *models.Scene) {
			s.Freeform = &models.FreeformSet{Success: false, Results: []models.FreeformOcrResult{}, Error: msg}
		}); uerr != nil {
			p.logger.Warn("record freeform failure", zap.String("video_id", job.VideoID), zap.Error(uerr))
		}
		return fmt.Errorf("freeform ocr scene %d: %w", job.SceneIndex, err)
	}
	if lines == nil {
		lines = []models.FreeformOcrResult{}
	}
	return p.updateScene(ctx, job.VideoID, job.SceneIndex, func(s *models.Scene) {
		if s.HasDetections() {
			ocr.Deduplicate(s.Detections.Detections, lines, p.opts.DedupThreshold)
		}
		s.Freeform = &models.FreeformSet{Success: true, Results: lines}
	})
}

// updateScene applies fn to one scene under the video's write lock.
func (p *Pipeline) updateScene(ctx context.Context, videoID string, index int, fn func(*models.Scene)) error {
	return p.store.UpdateScenes(ctx, videoID, func(scenes []models.Scene) error {
		if index < 0 || index >= len(scenes) {
			return fmt.Errorf("scene %d out of range (%d scenes)", index, len(scenes))
		}
		fn(&scenes[index])
		return nil
	})
}
