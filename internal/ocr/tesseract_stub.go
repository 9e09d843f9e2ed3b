//go:build !cgo
// +build !cgo

package ocr

import (
	"context"
	"errors"
	"image"

	"github.com/hyperjump/kanren/internal/models"
)

var errNoTesseract = errors.New("tesseract requires CGO; build with CGO_ENABLED=1 and libtesseract")

// TesseractEngine stub type when built without CGO (see tesseract.go for real implementation).
type TesseractEngine struct{}

// NewTesseractEngine returns an error when built without CGO.
func NewTesseractEngine(...string) (*TesseractEngine, error) {
	return nil, errNoTesseract
}

// Recognize is not available without CGO.
func (e *TesseractEngine) Recognize(context.Context, image.Image, models.Rect) (string, error) {
	return "", errNoTesseract
}

// Close is a no-op without CGO.
func (e *TesseractEngine) Close() error { return nil }

// TesseractLines stub type when built without CGO.
type TesseractLines struct{}

// NewTesseractLines returns an error when built without CGO.
func NewTesseractLines(float64, ...string) (*TesseractLines, error) {
	return nil, errNoTesseract
}

// Lines is not available without CGO.
func (e *TesseractLines) Lines(context.Context, image.Image) ([]models.FreeformOcrResult, error) {
	return nil, errNoTesseract
}

// Close is a no-op without CGO.
func (e *TesseractLines) Close() error { return nil }
