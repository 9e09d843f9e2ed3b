package models

// ProcessingStatus reports detection and OCR progress for one video.
type ProcessingStatus struct {
	VideoID            string `json:"video_id"`
	DetectionTotal     int    `json:"detection_total"`
	DetectionCompleted int    `json:"detection_completed"`
	OcrTotal           int    `json:"ocr_total"`
	OcrCompleted       int    `json:"ocr_completed"`
	AllComplete        bool   `json:"all_complete"`
	Error              string `json:"error,omitempty"`
}

// EmbeddingState is the lifecycle of a background alignment computation.
type EmbeddingState string

const (
	EmbeddingNotStarted EmbeddingState = "not_started"
	EmbeddingProcessing EmbeddingState = "processing"
	EmbeddingCompleted  EmbeddingState = "completed"
	EmbeddingError      EmbeddingState = "error"
)

// EmbeddingStatus is the polled state of the relationship computation.
type EmbeddingStatus struct {
	VideoID string         `json:"video_id"`
	Status  EmbeddingState `json:"status"`
	Message string         `json:"message,omitempty"`
	Error   string         `json:"error,omitempty"`
}

// OcrTextItem is one OCR line as reported to clients.
type OcrTextItem struct {
	SceneIndex  int       `json:"scene_index"`
	Timestamp   string    `json:"timestamp"`
	TimeSeconds float64   `json:"time_seconds"`
	Text        string    `json:"text"`
	Confidence  float64   `json:"confidence"`
	BBox        Rect      `json:"bbox"`
	OcrClass    string    `json:"ocr_class"`
	OcrSource   OcrSource `json:"ocr_source"`
	Matched     bool      `json:"matched"`
	MatchIoU    float64   `json:"match_iou,omitempty"`
}

// OcrTextReport lists a video's OCR text and how much OCR work is still pending.
type OcrTextReport struct {
	Success            bool          `json:"success"`
	OcrCount           int           `json:"ocr_count"`
	OcrResults         []OcrTextItem `json:"ocr_results"`
	PendingOcrCount    int           `json:"pending_ocr_count"`
	ProcessingComplete bool          `json:"processing_complete"`
}
