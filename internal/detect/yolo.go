//go:build cgo
// +build cgo

package detect

import (
	"context"
	"fmt"
	"image"
	"math"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/hyperjump/kanren/internal/models"
)

// YOLODetector runs a YOLOv8 layout model through ONNX Runtime. It requires CGO and the
// onnxruntime shared library.
type YOLODetector struct {
	session   *ort.DynamicAdvancedSession
	inputSize int
	classes   []string
	minConf   float64
	nms       float64
	mu        sync.Mutex
}

// YOLOOptions configures a YOLODetector.
type YOLOOptions struct {
	ModelPath         string
	SharedLibraryPath string
	InputSize         int
	Classes           []string
	MinConfidence     float64
	NMSThreshold      float64
}

// NewYOLODetector loads the model at opts.ModelPath. InitializeEnvironment is called if not already done.
func NewYOLODetector(opts YOLOOptions) (*YOLODetector, error) {
	if len(opts.Classes) == 0 {
		return nil, fmt.Errorf("detector classes must not be empty")
	}
	if !ort.IsInitialized() {
		if opts.SharedLibraryPath != "" {
			ort.SetSharedLibraryPath(opts.SharedLibraryPath)
		}
		if err := ort.InitializeEnvironment(); err != nil {
			return nil, fmt.Errorf("failed to initialize ONNX runtime: %w", err)
		}
	}
	session, err := ort.NewDynamicAdvancedSession(opts.ModelPath, []string{"images"}, []string{"output0"}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create ONNX session: %w", err)
	}
	return &YOLODetector{
		session:   session,
		inputSize: opts.InputSize,
		classes:   opts.Classes,
		minConf:   opts.MinConfidence,
		nms:       opts.NMSThreshold,
	}, nil
}

// Detect letterboxes img, runs inference, and returns boxes in source-image pixels.
func (d *YOLODetector) Detect(ctx context.Context, img image.Image) ([]models.Detection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	resized, lb := LetterboxResize(img, d.inputSize)
	size := int64(d.inputSize)
	input, err := ort.NewTensor(ort.NewShape(1, 3, size, size), CHWTensor(resized))
	if err != nil {
		return nil, fmt.Errorf("failed to create input tensor: %w", err)
	}
	defer input.Destroy()

	d.mu.Lock()
	outputs := []ort.Value{nil}
	err = d.session.Run([]ort.Value{input}, outputs)
	d.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}
	defer outputs[0].Destroy()

	out, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return nil, fmt.Errorf("output tensor is not float32")
	}
	shape := out.GetShape()
	if len(shape) != 3 {
		return nil, fmt.Errorf("unexpected output shape %v", shape)
	}
	dets := DecodeYOLO(out.GetData(), int(shape[2]), d.classes, d.minConf)
	dets = NonMaxSuppression(dets, d.nms)
	bounds := img.Bounds()
	for i := range dets {
		b := dets[i].BBox
		dets[i].BBox = models.Rect(lb.ToSource(b[0], b[1], b[2], b[3], bounds))
		dets[i].Confidence = math.Round(dets[i].Confidence*1000) / 1000
	}
	return dets, nil
}

// Close destroys the session.
func (d *YOLODetector) Close() error {
	if d.session != nil {
		err := d.session.Destroy()
		d.session = nil
		return err
	}
	return nil
}
