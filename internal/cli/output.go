// Package cli renders command output for Kanren as tables or JSON.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"

	"github.com/hyperjump/kanren/internal/models"
	"github.com/hyperjump/kanren/pkg/utils"
)

// OutputFormat is the format for command output.
type OutputFormat string

const (
	// OutputAuto picks text on a terminal and JSON otherwise.
	OutputAuto OutputFormat = "auto"
	// OutputText is human-readable tables.
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

const cellWidth = 60

// ParseFormat validates a -output flag value.
func ParseFormat(s string) (OutputFormat, error) {
	switch OutputFormat(s) {
	case "", OutputAuto:
		return OutputAuto, nil
	case OutputText, OutputJSON:
		return OutputFormat(s), nil
	}
	return "", fmt.Errorf("unknown output format %q (supported: auto, text, json)", s)
}

// Resolve turns OutputAuto into a concrete format for w.
func (f OutputFormat) Resolve(w io.Writer) OutputFormat {
	if f != OutputAuto {
		return f
	}
	if IsTerminal(w) {
		return OutputText
	}
	return OutputJSON
}

// IsTerminal reports whether w is an interactive terminal.
func IsTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// renderTable draws rows under headers; columns listed in right are right-aligned.
func renderTable(headers []string, rows [][]string, right ...int) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	header := make(table.Row, len(headers))
	for i, h := range headers {
		header[i] = h
	}
	tw.AppendHeader(header)
	for _, row := range rows {
		r := make(table.Row, len(headers))
		for i := range headers {
			if i < len(row) {
				r[i] = row[i]
			}
		}
		tw.AppendRow(r)
	}
	configs := make([]table.ColumnConfig, 0, len(right))
	for _, c := range right {
		configs = append(configs, table.ColumnConfig{Number: c, Align: text.AlignRight, AlignHeader: text.AlignLeft})
	}
	tw.SetColumnConfigs(configs)
	return tw.Render()
}

// FormatSeconds renders seconds as M:SS, or H:MM:SS from one hour on.
func FormatSeconds(s float64) string {
	total := int(s)
	h, m, sec := total/3600, (total%3600)/60, total%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, sec)
	}
	return fmt.Sprintf("%d:%02d", m, sec)
}

func similarity(v float64) string {
	return strconv.FormatFloat(v, 'f', 3, 64)
}

// WriteGraph writes a relationship graph.
func WriteGraph(w io.Writer, g *models.RelationshipGraph, format OutputFormat) error {
	if format.Resolve(w) == OutputJSON {
		return writeJSON(w, g)
	}
	fmt.Fprintf(w, "Video %s: %d transcript sentences, %d OCR texts\n",
		g.VideoID, len(g.TranscriptSentences), len(g.OcrTexts))
	if g.Message != "" {
		fmt.Fprintln(w, g.Message)
	}

	var rows [][]string
	for _, r := range g.TranscriptToOcr {
		for _, m := range r.Matches {
			rows = append(rows, []string{
				strconv.Itoa(r.TranscriptIndex),
				FormatSeconds(r.Timestamp),
				utils.Truncate(r.TranscriptText, cellWidth),
				strconv.Itoa(m.SceneIndex),
				utils.Truncate(m.Text, cellWidth),
				similarity(m.Similarity),
			})
		}
	}
	fmt.Fprintf(w, "\nTranscript to OCR (%d sentences)\n", len(g.TranscriptToOcr))
	fmt.Fprintln(w, renderTable([]string{"#", "Time", "Sentence", "Scene", "On screen", "Similarity"}, rows, 1, 4, 6))

	rows = rows[:0]
	for _, r := range g.OcrToTranscript {
		for _, m := range r.Matches {
			rows = append(rows, []string{
				strconv.Itoa(r.OcrIndex),
				strconv.Itoa(r.SceneIndex),
				utils.Truncate(r.OcrText, cellWidth),
				FormatSeconds(m.Start),
				utils.Truncate(m.Text, cellWidth),
				similarity(m.Similarity),
			})
		}
	}
	fmt.Fprintf(w, "\nOCR to transcript (%d texts)\n", len(g.OcrToTranscript))
	fmt.Fprintln(w, renderTable([]string{"#", "Scene", "On screen", "Time", "Sentence", "Similarity"}, rows, 1, 2, 6))
	return nil
}

// Lookup is the answer to a transcript-sentence query.
type Lookup struct {
	VideoID         string                   `json:"video_id"`
	TranscriptIndex int                      `json:"transcript_index"`
	SceneIndices    []int                    `json:"scene_indices"`
	Matches         []models.TranscriptMatch `json:"matches"`
}

// WriteLookup writes the OCR matches and candidate scenes of one sentence.
func WriteLookup(w io.Writer, l *Lookup, format OutputFormat) error {
	if format.Resolve(w) == OutputJSON {
		return writeJSON(w, l)
	}
	fmt.Fprintf(w, "Sentence %d of %s, candidate scenes %v\n", l.TranscriptIndex, l.VideoID, l.SceneIndices)
	if len(l.Matches) == 0 {
		fmt.Fprintln(w, "No on-screen text matches.")
		return nil
	}
	rows := make([][]string, 0, len(l.Matches))
	for _, m := range l.Matches {
		rows = append(rows, []string{
			strconv.Itoa(m.OcrIndex),
			strconv.Itoa(m.SceneIndex),
			FormatSeconds(m.Timestamp),
			utils.Truncate(m.Text, cellWidth),
			similarity(m.Similarity),
		})
	}
	fmt.Fprintln(w, renderTable([]string{"OCR #", "Scene", "Time", "Text", "Similarity"}, rows, 1, 2, 5))
	return nil
}

// VideoStatus combines the processing and relationship state of a video.
type VideoStatus struct {
	Processing    models.ProcessingStatus `json:"processing"`
	Relationships models.EmbeddingStatus  `json:"relationships"`
	SceneCount    int                     `json:"scene_count"`
	OcrReport     *models.OcrTextReport   `json:"ocr,omitempty"`
}

// WriteStatus writes the status of one video.
func WriteStatus(w io.Writer, s *VideoStatus, format OutputFormat) error {
	if format.Resolve(w) == OutputJSON {
		return writeJSON(w, s)
	}
	rows := [][]string{
		{"Scenes", strconv.Itoa(s.SceneCount)},
		{"Detection", fmt.Sprintf("%d/%d", s.Processing.DetectionCompleted, s.Processing.DetectionTotal)},
		{"OCR", fmt.Sprintf("%d/%d", s.Processing.OcrCompleted, s.Processing.OcrTotal)},
		{"Relationships", string(s.Relationships.Status)},
	}
	if s.OcrReport != nil {
		rows = append(rows,
			[]string{"OCR texts", strconv.Itoa(s.OcrReport.OcrCount)},
			[]string{"Pending boxes", strconv.Itoa(s.OcrReport.PendingOcrCount)})
	}
	if s.Processing.Error != "" {
		rows = append(rows, []string{"Processing error", utils.Truncate(s.Processing.Error, cellWidth)})
	}
	if s.Relationships.Error != "" {
		rows = append(rows, []string{"Relationship error", utils.Truncate(s.Relationships.Error, cellWidth)})
	}
	fmt.Fprintf(w, "Video %s\n", s.Processing.VideoID)
	fmt.Fprintln(w, renderTable([]string{"", ""}, rows))
	return nil
}
