package models

import "strings"

// OcrSource identifies which recognition engine produced a detection's text.
type OcrSource string

const (
	// OcrSourcePrimary is the box-anchored engine (Tesseract per detected box).
	OcrSourcePrimary OcrSource = "primary"
	// OcrSourceSecondary is the freeform text-line engine.
	OcrSourceSecondary OcrSource = "secondary"
)

// textClasses are detector classes whose boxes carry readable text.
var textClasses = map[string]bool{
	"title":      true,
	"page-text":  true,
	"other-text": true,
	"caption":    true,
}

// IsTextClass reports whether class is a text-bearing detector class (case-insensitive).
func IsTextClass(class string) bool {
	return textClasses[strings.ToLower(class)]
}

// Detection is one object-detector box within a scene.
type Detection struct {
	Class      string     `json:"class"`
	Confidence float64    `json:"confidence"`
	BBox       Rect       `json:"bbox"`
	NeedsOCR   bool       `json:"needs_ocr"`
	OcrClass   string     `json:"ocr_class,omitempty"`
	OcrText    *string    `json:"ocr_text,omitempty"`
	OcrSource  *OcrSource `json:"ocr_source,omitempty"`
	// MatchIoU is set when a freeform result claimed this box.
	MatchIoU *float64 `json:"match_iou,omitempty"`
}

// NewDetection builds a detection and derives NeedsOCR/OcrClass from the class label.
func NewDetection(class string, confidence float64, bbox Rect) Detection {
	d := Detection{Class: class, Confidence: confidence, BBox: bbox}
	if IsTextClass(class) {
		d.NeedsOCR = true
		d.OcrClass = strings.ToLower(class)
	}
	return d
}

// SetText records recognized text and the engine that produced it.
func (d *Detection) SetText(text string, source OcrSource) {
	d.OcrText = &text
	d.OcrSource = &source
}

// Text returns the recognized text or "".
func (d *Detection) Text() string {
	if d.OcrText == nil {
		return ""
	}
	return *d.OcrText
}

// DetectionSet is the detector output for one scene.
type DetectionSet struct {
	Success    bool        `json:"success"`
	Detections []Detection `json:"detections"`
	Error      string      `json:"error,omitempty"`
}

// FreeformMatch is one detection a freeform result overlaps above the dedup threshold.
type FreeformMatch struct {
	Index    int     `json:"index"`
	IoU      float64 `json:"iou"`
	Class    string  `json:"class"`
	OcrClass string  `json:"ocr_class"`
}

// FreeformOcrResult is one text line from the freeform engine.
type FreeformOcrResult struct {
	Text       string          `json:"text"`
	Confidence float64         `json:"confidence"`
	BBox       Rect            `json:"bbox"`
	Matched    bool            `json:"matched"`
	Matches    []FreeformMatch `json:"matches,omitempty"`
}

// FreeformSet is the freeform engine output for one scene.
type FreeformSet struct {
	Success bool                `json:"success"`
	Results []FreeformOcrResult `json:"results"`
	Error   string              `json:"error,omitempty"`
}

// Scene is a contiguous time range of a video bounded by two visual cuts.
type Scene struct {
	Timestamp   string        `json:"timestamp"`
	TimeSeconds *float64      `json:"time_seconds,omitempty"`
	Duration    float64       `json:"duration,omitempty"`
	Thumbnail   string        `json:"thumbnail,omitempty"`
	Fullsize    string        `json:"fullsize,omitempty"`
	Detections  *DetectionSet `json:"detections,omitempty"`
	Freeform    *FreeformSet  `json:"freeform,omitempty"`
}

// Start returns the scene start time in seconds, defaulting to 0.
func (s *Scene) Start() float64 {
	if s.TimeSeconds == nil {
		return 0
	}
	return *s.TimeSeconds
}

// HasDetections reports whether detection ran successfully for this scene.
func (s *Scene) HasDetections() bool {
	return s.Detections != nil && s.Detections.Success
}

// TranscriptEntry is one timed transcript line.
type TranscriptEntry struct {
	Text     string  `json:"text"`
	Start    float64 `json:"start"`
	Duration float64 `json:"duration"`
}

// TranscriptSource identifies where a transcript came from.
type TranscriptSource string

const (
	TranscriptYouTube TranscriptSource = "youtube"
	TranscriptWhisper TranscriptSource = "whisper"
)
