package videoid

import (
	"strings"
	"testing"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		id string
		ok bool
	}{
		{"dQw4w9WgXcQ", true},
		{"lecture_01-b", true},
		{"", false},
		{"../etc", false},
		{"a b", false},
		{strings.Repeat("a", MaxLength+1), false},
	}
	for _, tt := range tests {
		if err := Validate(tt.id); (err == nil) != tt.ok {
			t.Errorf("Validate(%q) = %v", tt.id, err)
		}
	}
}

func TestFromContent(t *testing.T) {
	a := FromContent([]byte("scenes"))
	if a != FromContent([]byte("scenes")) {
		t.Error("same content should give same id")
	}
	if a == FromContent([]byte("other")) {
		t.Error("different content should give different ids")
	}
	if err := Validate(a); err != nil {
		t.Errorf("derived id invalid: %v", err)
	}
}

func TestParseFileName(t *testing.T) {
	tests := []struct {
		path      string
		id        string
		kind      FileKind
		qualifier string
		wantErr   bool
	}{
		{"/inbox/abc123.srt", "abc123", KindTranscript, "", false},
		{"/inbox/abc123.whisper.srt", "abc123", KindTranscript, "whisper", false},
		{"abc123.Scenes.json", "abc123", KindScenes, "scenes", false},
		{"bad id.srt", "", "", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got, err := ParseFileName(tt.path)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if got.VideoID != tt.id || got.Kind != tt.kind || got.Qualifier != tt.qualifier {
				t.Errorf("got %+v", got)
			}
		})
	}
}
