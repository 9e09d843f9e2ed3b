// Package ocr provides the box-anchored and freeform text recognition capabilities and the
// reconciliation between them.
package ocr

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"

	"github.com/hyperjump/kanren/internal/models"
)

// BoxEngine recognizes the text inside one detected box.
type BoxEngine interface {
	Recognize(ctx context.Context, img image.Image, box models.Rect) (string, error)
	Close() error
}

// FreeformEngine finds and recognizes text lines without prior boxes.
type FreeformEngine interface {
	Lines(ctx context.Context, img image.Image) ([]models.FreeformOcrResult, error)
	Close() error
}

// Preference selects which engines run for a video.
type Preference string

const (
	PreferTesseract Preference = "tesseract"
	PreferFreeform  Preference = "freeform"
	PreferBoth      Preference = "both"
)

// ParsePreference validates s, defaulting to PreferTesseract when empty.
func ParsePreference(s string) (Preference, error) {
	switch Preference(s) {
	case "":
		return PreferTesseract, nil
	case PreferTesseract, PreferFreeform, PreferBoth:
		return Preference(s), nil
	}
	return "", fmt.Errorf("unknown OCR preference %q (supported: tesseract, freeform, both)", s)
}

// UsesBox reports whether the box-anchored engine runs under p.
func (p Preference) UsesBox() bool { return p == PreferTesseract || p == PreferBoth }

// UsesFreeform reports whether the freeform engine runs under p.
func (p Preference) UsesFreeform() bool { return p == PreferFreeform || p == PreferBoth }

type subImager interface {
	SubImage(r image.Rectangle) image.Image
}

// Crop returns the part of img inside box, clipped to the image bounds.
func Crop(img image.Image, box models.Rect) (image.Image, error) {
	r := image.Rect(int(box[0]), int(box[1]), int(box[2]+0.5), int(box[3]+0.5)).
		Add(img.Bounds().Min).
		Intersect(img.Bounds())
	if r.Empty() {
		return nil, fmt.Errorf("box %v outside image bounds %v", box, img.Bounds())
	}
	si, ok := img.(subImager)
	if !ok {
		return nil, fmt.Errorf("image type %T does not support cropping", img)
	}
	return si.SubImage(r), nil
}

func encodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}
