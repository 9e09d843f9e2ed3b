package detect

import (
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg"
	_ "image/png"
	"os"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// LoadImage decodes a JPEG, PNG, or WebP file.
func LoadImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open image: %w", err)
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode image %s: %w", path, err)
	}
	return img, nil
}

// Letterbox describes how a source image was fitted into a square model input.
type Letterbox struct {
	Scale float64
	PadX  float64
	PadY  float64
}

// ToSource maps a box in model-input coordinates back to source-image pixels.
func (l Letterbox) ToSource(x1, y1, x2, y2 float64, bounds image.Rectangle) [4]float64 {
	clampX := func(v float64) float64 { return clamp(v, 0, float64(bounds.Dx())) }
	clampY := func(v float64) float64 { return clamp(v, 0, float64(bounds.Dy())) }
	return [4]float64{
		clampX((x1 - l.PadX) / l.Scale),
		clampY((y1 - l.PadY) / l.Scale),
		clampX((x2 - l.PadX) / l.Scale),
		clampY((y2 - l.PadY) / l.Scale),
	}
}

// LetterboxResize scales img to fit a size x size canvas, preserving aspect ratio and
// padding with grey, as YOLO-family models expect.
func LetterboxResize(img image.Image, size int) (*image.RGBA, Letterbox) {
	b := img.Bounds()
	w, h := float64(b.Dx()), float64(b.Dy())
	scale := float64(size) / w
	if s := float64(size) / h; s < scale {
		scale = s
	}
	nw, nh := int(w*scale+0.5), int(h*scale+0.5)
	padX := (size - nw) / 2
	padY := (size - nh) / 2

	dst := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.Draw(dst, dst.Bounds(), &image.Uniform{C: color.RGBA{114, 114, 114, 255}}, image.Point{}, draw.Src)
	target := image.Rect(padX, padY, padX+nw, padY+nh)
	draw.CatmullRom.Scale(dst, target, img, b, draw.Over, nil)
	return dst, Letterbox{Scale: scale, PadX: float64(padX), PadY: float64(padY)}
}

// CHWTensor converts an RGBA image to a normalized planar float32 tensor [3][H][W].
func CHWTensor(img *image.RGBA) []float32 {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	plane := w * h
	out := make([]float32, 3*plane)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			off := img.PixOffset(b.Min.X+x, b.Min.Y+y)
			i := y*w + x
			out[i] = float32(img.Pix[off]) / 255
			out[plane+i] = float32(img.Pix[off+1]) / 255
			out[2*plane+i] = float32(img.Pix[off+2]) / 255
		}
	}
	return out
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
