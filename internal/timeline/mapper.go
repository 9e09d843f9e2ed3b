// Package timeline maps transcript times onto the scene windows of a video.
package timeline

import (
	"math"

	"github.com/hyperjump/kanren/internal/models"
)

const (
	// DefaultBuffer lets a sentence that starts shortly before a cut belong to the next scene.
	DefaultBuffer = 5.0
	// DefaultMissingEnd closes a window whose following scene has no time.
	DefaultMissingEnd = 120.0
)

// Mapper assigns times to scene windows. Scene i covers [t_i, t_{i+1}); the last scene is open-ended.
type Mapper struct {
	scenes     []models.Scene
	buffer     float64
	missingEnd float64
}

// Option configures a Mapper.
type Option func(*Mapper)

// WithBuffer sets the look-ahead buffer in seconds.
func WithBuffer(seconds float64) Option {
	return func(m *Mapper) {
		if seconds >= 0 {
			m.buffer = seconds
		}
	}
}

// WithMissingEnd sets how long a window lasts when the next scene has no time.
func WithMissingEnd(seconds float64) Option {
	return func(m *Mapper) {
		if seconds > 0 {
			m.missingEnd = seconds
		}
	}
}

// NewMapper creates a mapper over scenes, which must be in time order.
func NewMapper(scenes []models.Scene, opts ...Option) *Mapper {
	m := &Mapper{scenes: scenes, buffer: DefaultBuffer, missingEnd: DefaultMissingEnd}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Window returns the [start, end) range of scene i.
func (m *Mapper) Window(i int) (start, end float64) {
	start = m.scenes[i].Start()
	if i == len(m.scenes)-1 {
		return start, math.Inf(1)
	}
	next := m.scenes[i+1].TimeSeconds
	if next == nil {
		return start, start + m.missingEnd
	}
	return start, *next
}

// Candidates returns every scene a sentence starting at t may belong to, in scene order.
// A sentence belongs to a scene when it starts inside the window, starts within the buffer
// before the window, or precedes the first scene.
func (m *Mapper) Candidates(t float64) []int {
	var out []int
	for i := range m.scenes {
		start, end := m.Window(i)
		switch {
		case start <= t && t < end:
		case i == 0 && t < start:
		case start-m.buffer <= t && t < start:
		default:
			continue
		}
		out = append(out, i)
	}
	return out
}

// Map returns the candidate scenes of every unit.
func (m *Mapper) Map(units []models.TextUnit) [][]int {
	out := make([][]int, len(units))
	for i := range units {
		out[i] = m.Candidates(units[i].Start)
	}
	return out
}

// SceneForTranscript returns the scenes of the i-th transcript sentence of graph.
// An out-of-range index yields no scenes.
func SceneForTranscript(graph *models.RelationshipGraph, scenes []models.Scene, i int, opts ...Option) []int {
	if graph == nil || i < 0 || i >= len(graph.TranscriptSentences) {
		return []int{}
	}
	c := NewMapper(scenes, opts...).Candidates(graph.TranscriptSentences[i].Start)
	if c == nil {
		return []int{}
	}
	return c
}
