package models

import (
	"encoding/json"
	"math"
	"testing"
)

func TestRect_IoU(t *testing.T) {
	tests := []struct {
		name string
		a, b Rect
		want float64
	}{
		{"identical", NewRect(0, 0, 10, 10), NewRect(0, 0, 10, 10), 1},
		{"disjoint", NewRect(0, 0, 10, 10), NewRect(20, 20, 30, 30), 0},
		{"edge touching", NewRect(0, 0, 10, 10), NewRect(10, 0, 20, 10), 0},
		{"half overlap", NewRect(0, 0, 10, 10), NewRect(5, 0, 15, 10), 50.0 / 150.0},
		{"degenerate", NewRect(0, 0, 0, 0), NewRect(0, 0, 0, 0), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.a.IoU(tt.b)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("IoU = %v, want %v", got, tt.want)
			}
			if back := tt.b.IoU(tt.a); math.Abs(back-got) > 1e-9 {
				t.Errorf("IoU not symmetric: %v vs %v", got, back)
			}
		})
	}
}

func TestRect_ContainmentAndUnion(t *testing.T) {
	outer := NewRect(0, 0, 100, 100)
	inner := NewRect(10, 10, 90, 90)
	if c := inner.Containment(outer); c != 1 {
		t.Errorf("inner in outer = %v, want 1", c)
	}
	if c := outer.Containment(inner); math.Abs(c-0.64) > 1e-9 {
		t.Errorf("outer in inner = %v, want 0.64", c)
	}
	if u := inner.Union(outer); u != outer {
		t.Errorf("Union = %v", u)
	}
	if c := NewRect(5, 5, 5, 5).Containment(outer); c != 0 {
		t.Errorf("zero-area containment = %v", c)
	}
}

func TestRect_JSONArray(t *testing.T) {
	data, err := json.Marshal(NewRect(1, 2, 3, 4))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "[1,2,3,4]" {
		t.Errorf("got %s", data)
	}
}

func TestNewDetection_TextClasses(t *testing.T) {
	d := NewDetection("Page-Text", 0.9, NewRect(0, 0, 1, 1))
	if !d.NeedsOCR || d.OcrClass != "page-text" {
		t.Errorf("got %+v", d)
	}
	if NewDetection("picture", 0.9, Rect{}).NeedsOCR {
		t.Error("picture should not need OCR")
	}
}

func TestTextUnit_EmbeddingNotSerialized(t *testing.T) {
	u := TextUnit{Text: "x", Origin: OriginTranscript, Embedding: []float32{1, 2}}
	data, err := json.Marshal(u)
	if err != nil {
		t.Fatal(err)
	}
	var m map[string]interface{}
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatal(err)
	}
	if _, ok := m["embedding"]; ok {
		t.Errorf("embedding serialized: %s", data)
	}
}
