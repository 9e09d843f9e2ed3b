// Package storage persists the per-video documents: scenes, transcripts, relationship graphs,
// and the progress and error markers of background stages.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/hyperjump/kanren/internal/models"
)

// ErrNotFound is returned when a requested document does not exist.
var ErrNotFound = errors.New("not found")

// Stage names a background stage that can carry markers.
type Stage string

const (
	StageOCR        Stage = "ocr"
	StageEmbedding  Stage = "embedding"
	StageTranscript Stage = "transcript"
)

// MarkerKind distinguishes in-flight markers from failure markers.
type MarkerKind string

const (
	MarkerProgress MarkerKind = "progress"
	MarkerError    MarkerKind = "error"
)

// Marker is the persisted signal that a stage is running or has failed.
type Marker struct {
	VideoID   string     `json:"video_id"`
	Stage     Stage      `json:"stage"`
	Kind      MarkerKind `json:"kind"`
	Message   string     `json:"message,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// VideoSummary describes which documents exist for a video.
type VideoSummary struct {
	ID               string    `json:"id"`
	SceneCount       int       `json:"scene_count"`
	HasTranscript    bool      `json:"has_transcript"`
	HasRelationships bool      `json:"has_relationships"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// Storage defines per-video document persistence. Writes for one video are serialized by a
// per-video lock held inside each call.
type Storage interface {
	// Scenes
	SaveScenes(ctx context.Context, videoID string, scenes []models.Scene) error
	GetScenes(ctx context.Context, videoID string) ([]models.Scene, error)
	// UpdateScenes runs fn on the current scenes under the video's write lock and saves the
	// result. fn must not call back into the store.
	UpdateScenes(ctx context.Context, videoID string, fn func([]models.Scene) error) error

	// Transcripts
	SaveTranscript(ctx context.Context, videoID string, source models.TranscriptSource, entries []models.TranscriptEntry) error
	GetTranscript(ctx context.Context, videoID string, source models.TranscriptSource) ([]models.TranscriptEntry, error)
	// PreferredTranscript returns the whisper transcript when present, else the youtube one.
	PreferredTranscript(ctx context.Context, videoID string) ([]models.TranscriptEntry, models.TranscriptSource, error)

	// Relationship graphs
	SaveRelationships(ctx context.Context, graph *models.RelationshipGraph) error
	GetRelationships(ctx context.Context, videoID string) (*models.RelationshipGraph, error)
	DeleteRelationships(ctx context.Context, videoID string) error

	// Markers
	SetMarker(ctx context.Context, videoID string, stage Stage, kind MarkerKind, message string) error
	GetMarker(ctx context.Context, videoID string, stage Stage, kind MarkerKind) (*Marker, error)
	ClearMarker(ctx context.Context, videoID string, stage Stage, kind MarkerKind) error

	// Stats
	ListVideos(ctx context.Context) ([]VideoSummary, error)
	CountVideos(ctx context.Context) (int64, error)

	Close() error
}
