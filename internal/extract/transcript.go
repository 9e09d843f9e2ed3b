package extract

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/hyperjump/kanren/internal/models"
	"github.com/hyperjump/kanren/pkg/utils"
)

// ParseTranscriptFile reads a transcript from path; the format is chosen by extension.
func ParseTranscriptFile(path string) ([]models.TranscriptEntry, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	return ParseTranscript(content, strings.ToLower(filepath.Ext(path)))
}

// ParseTranscript parses content as ".srt" subtitles or ".json" entries
// ([{text, start, duration}]). ext should include the leading dot.
func ParseTranscript(content []byte, ext string) ([]models.TranscriptEntry, error) {
	switch ext {
	case ".srt":
		return ParseSRT(validUTF8(content))
	case ".json", "":
		var entries []models.TranscriptEntry
		if err := json.Unmarshal(content, &entries); err != nil {
			return nil, fmt.Errorf("parse transcript json: %w", err)
		}
		return entries, nil
	default:
		return nil, fmt.Errorf("unsupported transcript format %q", ext)
	}
}

// ParseSRT parses SubRip text. Each cue becomes one entry whose text lines are joined with
// single spaces; duration is end minus start.
//
//	1
//	00:00:00,000 --> 00:00:01,830
//	I'm happy to
//	have you here today.
func ParseSRT(text string) ([]models.TranscriptEntry, error) {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.TrimPrefix(text, "\ufeff")
	var entries []models.TranscriptEntry
	for _, block := range strings.Split(text, "\n\n") {
		lines := strings.Split(strings.TrimSpace(block), "\n")
		timing := -1
		for i, l := range lines {
			if strings.Contains(l, "-->") {
				timing = i
				break
			}
		}
		if timing < 0 {
			continue
		}
		parts := strings.SplitN(lines[timing], "-->", 2)
		start, err := parseSRTTime(parts[0])
		if err != nil {
			return nil, err
		}
		// Cue settings may follow the end time.
		endField := strings.Fields(parts[1])
		if len(endField) == 0 {
			return nil, fmt.Errorf("srt: missing end time in %q", lines[timing])
		}
		end, err := parseSRTTime(endField[0])
		if err != nil {
			return nil, err
		}
		body := utils.CollapseWhitespace(strings.Join(lines[timing+1:], " "))
		if body == "" {
			continue
		}
		entries = append(entries, models.TranscriptEntry{
			Text:     body,
			Start:    start,
			Duration: end - start,
		})
	}
	return entries, nil
}

// parseSRTTime parses HH:MM:SS,mmm (a '.' separator is also accepted).
func parseSRTTime(s string) (float64, error) {
	s = strings.TrimSpace(strings.Replace(s, ",", ".", 1))
	fields := strings.Split(s, ":")
	if len(fields) != 3 {
		return 0, fmt.Errorf("srt: invalid timestamp %q", s)
	}
	h, err := strconv.Atoi(fields[0])
	if err != nil {
		return 0, fmt.Errorf("srt: invalid hours in %q: %w", s, err)
	}
	m, err := strconv.Atoi(fields[1])
	if err != nil {
		return 0, fmt.Errorf("srt: invalid minutes in %q: %w", s, err)
	}
	sec, err := strconv.ParseFloat(fields[2], 64)
	if err != nil {
		return 0, fmt.Errorf("srt: invalid seconds in %q: %w", s, err)
	}
	return float64(h*3600+m*60) + sec, nil
}

// ParseScenes decodes a scene-list document.
func ParseScenes(content []byte) ([]models.Scene, error) {
	var scenes []models.Scene
	if err := json.Unmarshal(content, &scenes); err != nil {
		return nil, fmt.Errorf("parse scenes json: %w", err)
	}
	return scenes, nil
}
