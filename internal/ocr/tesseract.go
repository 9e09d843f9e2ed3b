//go:build cgo
// +build cgo

package ocr

import (
	"context"
	"fmt"
	"image"
	"strings"
	"sync"

	"github.com/otiai10/gosseract/v2"

	"github.com/hyperjump/kanren/internal/models"
	"github.com/hyperjump/kanren/pkg/utils"
)

// TesseractEngine is the box-anchored engine: it crops each detection and runs Tesseract on it.
type TesseractEngine struct {
	client *gosseract.Client
	mu     sync.Mutex
}

// NewTesseractEngine creates a Tesseract client for the given languages (e.g. "eng").
func NewTesseractEngine(languages ...string) (*TesseractEngine, error) {
	client, err := newClient(languages)
	if err != nil {
		return nil, err
	}
	if err := client.SetPageSegMode(gosseract.PSM_SINGLE_BLOCK); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("set page segmentation mode: %w", err)
	}
	return &TesseractEngine{client: client}, nil
}

func newClient(languages []string) (*gosseract.Client, error) {
	client := gosseract.NewClient()
	if len(languages) > 0 {
		if err := client.SetLanguage(languages...); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("set tesseract language: %w", err)
		}
	}
	return client, nil
}

// Recognize returns the whitespace-collapsed text inside box.
func (e *TesseractEngine) Recognize(ctx context.Context, img image.Image, box models.Rect) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	crop, err := Crop(img, box)
	if err != nil {
		return "", err
	}
	data, err := encodePNG(crop)
	if err != nil {
		return "", err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.client.SetImageFromBytes(data); err != nil {
		return "", fmt.Errorf("set image: %w", err)
	}
	text, err := e.client.Text()
	if err != nil {
		return "", fmt.Errorf("tesseract: %w", err)
	}
	return utils.CollapseWhitespace(text), nil
}

// Close releases the Tesseract client.
func (e *TesseractEngine) Close() error {
	return e.client.Close()
}

// TesseractLines is the freeform engine: Tesseract layout analysis over the whole frame,
// reported one text line at a time.
type TesseractLines struct {
	client        *gosseract.Client
	minConfidence float64
	mu            sync.Mutex
}

// NewTesseractLines creates a line-level engine. Lines below minConfidence (0-1) are dropped.
func NewTesseractLines(minConfidence float64, languages ...string) (*TesseractLines, error) {
	client, err := newClient(languages)
	if err != nil {
		return nil, err
	}
	if err := client.SetPageSegMode(gosseract.PSM_AUTO); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("set page segmentation mode: %w", err)
	}
	return &TesseractLines{client: client, minConfidence: minConfidence}, nil
}

// Lines returns every confident text line in img with its bounding box.
func (e *TesseractLines) Lines(ctx context.Context, img image.Image) ([]models.FreeformOcrResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := encodePNG(img)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.client.SetImageFromBytes(data); err != nil {
		return nil, fmt.Errorf("set image: %w", err)
	}
	boxes, err := e.client.GetBoundingBoxes(gosseract.RIL_TEXTLINE)
	if err != nil {
		return nil, fmt.Errorf("tesseract layout: %w", err)
	}
	results := make([]models.FreeformOcrResult, 0, len(boxes))
	for _, b := range boxes {
		conf := b.Confidence / 100
		text := utils.CollapseWhitespace(b.Word)
		if conf < e.minConfidence || strings.TrimSpace(text) == "" {
			continue
		}
		results = append(results, models.FreeformOcrResult{
			Text:       text,
			Confidence: conf,
			BBox: models.NewRect(
				float64(b.Box.Min.X), float64(b.Box.Min.Y),
				float64(b.Box.Max.X), float64(b.Box.Max.Y),
			),
		})
	}
	return results, nil
}

// Close releases the Tesseract client.
func (e *TesseractLines) Close() error {
	return e.client.Close()
}
