//go:build !cgo
// +build !cgo

package detect

import (
	"context"
	"errors"
	"image"

	"github.com/hyperjump/kanren/internal/models"
)

// YOLODetector stub type when built without CGO (see yolo.go for real implementation).
type YOLODetector struct{}

// YOLOOptions configures a YOLODetector.
type YOLOOptions struct {
	ModelPath         string
	SharedLibraryPath string
	InputSize         int
	Classes           []string
	MinConfidence     float64
	NMSThreshold      float64
}

// NewYOLODetector returns an error when built without CGO (ONNX not available).
func NewYOLODetector(_ YOLOOptions) (*YOLODetector, error) {
	return nil, errors.New("YOLO detector requires CGO; build with CGO_ENABLED=1 and onnxruntime")
}

// Detect is not available without CGO.
func (d *YOLODetector) Detect(context.Context, image.Image) ([]models.Detection, error) {
	return nil, errors.New("YOLO detector not available")
}

// Close is a no-op without CGO.
func (d *YOLODetector) Close() error { return nil }
