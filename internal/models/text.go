package models

// Origin identifies the stream a TextUnit came from.
type Origin string

const (
	OriginTranscript  Origin = "transcript"
	OriginOcrBox      Origin = "ocr_box"
	OriginOcrFreeform Origin = "ocr_freeform"
)

// TextUnit is the normalized record used as alignment input.
type TextUnit struct {
	Text           string  `json:"text"`
	Start          float64 `json:"start"`
	Duration       float64 `json:"duration"`
	Origin         Origin  `json:"type"`
	SceneIndex     *int    `json:"scene_index,omitempty"`
	BBox           *Rect   `json:"bbox,omitempty"`
	DetectionIndex *int    `json:"detection_index,omitempty"`
	ResultIndex    *int    `json:"result_index,omitempty"`
	// Embedding is transient and never serialized.
	Embedding []float32 `json:"-"`
}

// Scene returns the owning scene index, or -1 for units without one.
func (u *TextUnit) Scene() int {
	if u.SceneIndex == nil {
		return -1
	}
	return *u.SceneIndex
}

// IntPtr returns a pointer to v.
func IntPtr(v int) *int { return &v }

// Float64Ptr returns a pointer to v.
func Float64Ptr(v float64) *float64 { return &v }
