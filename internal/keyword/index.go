// Package keyword indexes a video's text units for keyword search.
package keyword

import (
	"context"

	"github.com/hyperjump/kanren/internal/models"
)

// SearchOptions optional parameters for keyword search. Nil means use defaults.
type SearchOptions struct {
	// Origin restricts hits to one text stream. Empty searches every stream.
	Origin models.Origin
	// FuzzyEnabled enables fuzzy matching for OCR misreads and typos.
	FuzzyEnabled bool
	// Fuzziness is the maximum Levenshtein edit distance for fuzzy matching (1 or 2).
	// Default is 1 when FuzzyEnabled is true.
	Fuzziness int
}

// KeywordIndex defines keyword search over text units.
type KeywordIndex interface {
	// IndexUnits replaces every indexed unit of videoID with the given units.
	IndexUnits(ctx context.Context, videoID string, transcript, ocr []models.TextUnit) error
	Search(ctx context.Context, videoID, query string, limit int, opts *SearchOptions) ([]*KeywordResult, error)
	DeleteVideo(ctx context.Context, videoID string) error
	DocCount() (uint64, error)
	Close() error
}

// KeywordResult is a single keyword search hit. Index is the unit's position in its graph list
// (transcript_sentences for transcript units, ocr_texts otherwise).
type KeywordResult struct {
	ID         string        `json:"id"`
	VideoID    string        `json:"video_id"`
	Origin     models.Origin `json:"type"`
	Index      int           `json:"index"`
	Text       string        `json:"text"`
	Start      float64       `json:"start"`
	SceneIndex *int          `json:"scene_index,omitempty"`
	Score      float64       `json:"score"`
}
