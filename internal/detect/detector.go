// Package detect locates layout regions in scene images and coalesces overlapping text boxes.
package detect

import (
	"context"
	"image"

	"github.com/hyperjump/kanren/internal/models"
)

// Detector finds labelled boxes in an image.
type Detector interface {
	Detect(ctx context.Context, img image.Image) ([]models.Detection, error)
	Close() error
}
