package cli

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/hyperjump/kanren/internal/models"
)

func sampleGraph() *models.RelationshipGraph {
	return &models.RelationshipGraph{
		SchemaVersion: models.RelationshipSchemaVersion,
		Success:       true,
		VideoID:       "lecture-1",
		TranscriptSentences: []models.TextUnit{
			{Text: "Let's look at gradient descent", Start: 62, Origin: models.OriginTranscript},
		},
		OcrTexts: []models.TextUnit{
			{Text: "Gradient Descent", Start: 60, Origin: models.OriginOcrBox, SceneIndex: models.IntPtr(2)},
		},
		TranscriptToOcr: []models.TranscriptRelationship{{
			TranscriptIndex: 0,
			TranscriptText:  "Let's look at gradient descent",
			Timestamp:       62,
			Matches: []models.TranscriptMatch{
				{OcrIndex: 0, Similarity: 0.8123, Text: "Gradient Descent", SceneIndex: 2, Timestamp: 60},
			},
		}},
		OcrToTranscript: []models.OcrRelationship{{
			OcrIndex:   0,
			OcrText:    "Gradient Descent",
			SceneIndex: 2,
			Timestamp:  60,
			Matches: []models.OcrMatch{
				{TranscriptIndex: 0, Similarity: 0.8123, Text: "Let's look at gradient descent", Start: 62},
			},
		}},
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    OutputFormat
		wantErr bool
	}{
		{"", OutputAuto, false},
		{"auto", OutputAuto, false},
		{"text", OutputText, false},
		{"json", OutputJSON, false},
		{"yaml", "", true},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseFormat(%q) err=%v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseFormat(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestResolve_autoOnBufferIsJSON(t *testing.T) {
	var buf bytes.Buffer
	if got := OutputAuto.Resolve(&buf); got != OutputJSON {
		t.Errorf("auto on a buffer resolved to %q, want json", got)
	}
	if got := OutputText.Resolve(&buf); got != OutputText {
		t.Errorf("explicit text resolved to %q", got)
	}
}

func TestFormatSeconds(t *testing.T) {
	tests := map[float64]string{
		0:      "0:00",
		62.7:   "1:02",
		3599:   "59:59",
		3723.2: "1:02:03",
	}
	for in, want := range tests {
		if got := FormatSeconds(in); got != want {
			t.Errorf("FormatSeconds(%v) = %q, want %q", in, got, want)
		}
	}
}

func TestWriteGraph_text(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteGraph(&buf, sampleGraph(), OutputText); err != nil {
		t.Fatalf("WriteGraph: %v", err)
	}
	out := buf.String()
	for _, sub := range []string{"lecture-1", "1 transcript sentences", "Transcript to OCR", "OCR to transcript", "Gradient Descent", "0.812", "1:02"} {
		if !strings.Contains(out, sub) {
			t.Errorf("text output missing %q:\n%s", sub, out)
		}
	}
}

func TestWriteGraph_JSON(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteGraph(&buf, sampleGraph(), OutputJSON); err != nil {
		t.Fatalf("WriteGraph: %v", err)
	}
	var decoded models.RelationshipGraph
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v\n%s", err, buf.String())
	}
	if decoded.VideoID != "lecture-1" || len(decoded.TranscriptToOcr) != 1 {
		t.Errorf("decoded graph = %+v", decoded)
	}
}

func TestWriteLookup_noMatches(t *testing.T) {
	var buf bytes.Buffer
	l := &Lookup{VideoID: "v", TranscriptIndex: 3, SceneIndices: []int{1, 2}}
	if err := WriteLookup(&buf, l, OutputText); err != nil {
		t.Fatalf("WriteLookup: %v", err)
	}
	if !strings.Contains(buf.String(), "No on-screen text matches") || !strings.Contains(buf.String(), "[1 2]") {
		t.Errorf("unexpected output:\n%s", buf.String())
	}
}

func TestWriteStatus_text(t *testing.T) {
	s := &VideoStatus{
		Processing: models.ProcessingStatus{
			VideoID: "v", DetectionTotal: 3, DetectionCompleted: 2, OcrTotal: 4, OcrCompleted: 1,
			Error: "scene 2: decode failed",
		},
		Relationships: models.EmbeddingStatus{VideoID: "v", Status: models.EmbeddingProcessing},
		SceneCount:    3,
	}
	var buf bytes.Buffer
	if err := WriteStatus(&buf, s, OutputText); err != nil {
		t.Fatalf("WriteStatus: %v", err)
	}
	out := buf.String()
	for _, sub := range []string{"2/3", "1/4", "processing", "decode failed"} {
		if !strings.Contains(out, sub) {
			t.Errorf("status output missing %q:\n%s", sub, out)
		}
	}
}
