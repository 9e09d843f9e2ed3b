package models

import "time"

// RelationshipSchemaVersion is the only relationship document layout read or written.
const RelationshipSchemaVersion = 2

// OcrMatch is a transcript sentence matched to an OCR unit.
type OcrMatch struct {
	TranscriptIndex int     `json:"transcript_index"`
	Similarity      float64 `json:"similarity"`
	Text            string  `json:"text"`
	Start           float64 `json:"start"`
}

// TranscriptMatch is an OCR unit matched to a transcript sentence.
type TranscriptMatch struct {
	OcrIndex   int     `json:"ocr_index"`
	Similarity float64 `json:"similarity"`
	Text       string  `json:"text"`
	SceneIndex int     `json:"scene_index"`
	Timestamp  float64 `json:"timestamp"`
	BBox       *Rect   `json:"bbox,omitempty"`
}

// OcrRelationship groups the ranked transcript matches of one OCR unit.
type OcrRelationship struct {
	OcrIndex   int        `json:"ocr_index"`
	OcrText    string     `json:"ocr_text"`
	SceneIndex int        `json:"scene_index"`
	Timestamp  float64    `json:"timestamp"`
	Matches    []OcrMatch `json:"matches"`
}

// TranscriptRelationship groups the ranked OCR matches of one transcript sentence.
type TranscriptRelationship struct {
	TranscriptIndex int               `json:"transcript_index"`
	TranscriptText  string            `json:"transcript_text"`
	Timestamp       float64           `json:"timestamp"`
	Matches         []TranscriptMatch `json:"matches"`
}

// RelationshipGraph is the persisted alignment result for one video.
type RelationshipGraph struct {
	SchemaVersion       int                      `json:"schema_version"`
	Success             bool                     `json:"success"`
	VideoID             string                   `json:"video_id"`
	Message             string                   `json:"message,omitempty"`
	Error               string                   `json:"error,omitempty"`
	TranscriptSentences []TextUnit               `json:"transcript_sentences"`
	OcrTexts            []TextUnit               `json:"ocr_texts"`
	OcrToTranscript     []OcrRelationship        `json:"ocr_to_transcript_relationships"`
	TranscriptToOcr     []TranscriptRelationship `json:"transcript_to_ocr_relationships"`
	CreatedAt           time.Time                `json:"created_at"`
}

// StripEmbeddings clears transient vectors from both unit lists.
func (g *RelationshipGraph) StripEmbeddings() {
	for i := range g.TranscriptSentences {
		g.TranscriptSentences[i].Embedding = nil
	}
	for i := range g.OcrTexts {
		g.OcrTexts[i].Embedding = nil
	}
}
