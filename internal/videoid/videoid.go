// Package videoid validates video identifiers and derives them from inbox file names or content.
package videoid

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
)

const hashPrefix = "v-"

// MaxLength bounds an ID so it stays usable as a file name.
const MaxLength = 128

var valid = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// Validate reports whether id is usable as a video ID: letters, digits, '-' and '_' only.
func Validate(id string) error {
	if id == "" {
		return fmt.Errorf("video id is empty")
	}
	if len(id) > MaxLength {
		return fmt.Errorf("video id longer than %d characters", MaxLength)
	}
	if !valid.MatchString(id) {
		return fmt.Errorf("video id %q contains characters other than letters, digits, '-' and '_'", id)
	}
	return nil
}

// FromContent returns a stable ID for content. Identical content always yields the same ID.
func FromContent(content []byte) string {
	hash := sha256.Sum256(content)
	return hashPrefix + hex.EncodeToString(hash[:8])
}

// FileKind is the document type an inbox file holds.
type FileKind string

const (
	KindTranscript FileKind = "transcript"
	KindScenes     FileKind = "scenes"
)

// ParsedName is what an inbox file name says about its content.
type ParsedName struct {
	VideoID string
	Kind    FileKind
	// Qualifier is the middle part of the name, such as "whisper" in "abc.whisper.srt".
	Qualifier string
}

// ParseFileName splits names of the form <video-id>[.<qualifier>].<ext>. A "scenes" qualifier
// marks a scene document; anything else is a transcript.
func ParseFileName(path string) (ParsedName, error) {
	base := filepath.Base(path)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	id, qualifier, _ := strings.Cut(stem, ".")
	if err := Validate(id); err != nil {
		return ParsedName{}, fmt.Errorf("%s: %w", base, err)
	}
	p := ParsedName{VideoID: id, Kind: KindTranscript, Qualifier: strings.ToLower(qualifier)}
	if p.Qualifier == "scenes" {
		p.Kind = KindScenes
	}
	return p, nil
}
