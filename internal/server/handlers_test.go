package server

import (
	"bufio"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/hyperjump/kanren/internal/align"
	"github.com/hyperjump/kanren/internal/config"
	"github.com/hyperjump/kanren/internal/embedding"
	"github.com/hyperjump/kanren/internal/errors"
	"github.com/hyperjump/kanren/internal/keyword"
	"github.com/hyperjump/kanren/internal/pipeline"
	"github.com/hyperjump/kanren/internal/progress"
	"github.com/hyperjump/kanren/internal/relations"
	"github.com/hyperjump/kanren/internal/storage"
)

const scenesJSON = `[
 {"timestamp":"00:00","time_seconds":0,"duration":30,
  "detections":{"success":true,"detections":[
   {"class":"title","confidence":0.9,"bbox":[0,0,100,20],"needs_ocr":true,"ocr_class":"title","ocr_text":"Gradient Descent","ocr_source":"primary"}]}},
 {"timestamp":"00:30","time_seconds":30,"duration":30,
  "detections":{"success":true,"detections":[
   {"class":"page-text","confidence":0.8,"bbox":[0,30,100,90],"needs_ocr":true,"ocr_class":"page-text"}]}}
]`

const transcriptSRT = `1
00:00:01,000 --> 00:00:04,000
Today we look at gradient descent

2
00:00:31,000 --> 00:00:35,000
Next the learning rate
`

type testEnv struct {
	srv      *Server
	store    *storage.SQLiteStorage
	keywords *keyword.BleveIndex
	broker   *progress.MemoryBroker
}

func newTestEnv(t *testing.T, withPipeline bool) *testEnv {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.NewSQLiteStorage(filepath.Join(dir, "kanren.db"), storage.WithLockDir(filepath.Join(dir, "locks")))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })
	kw, err := keyword.NewBleveIndex("")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { kw.Close() })
	broker := progress.NewMemoryBroker()
	t.Cleanup(func() { broker.Close() })

	engine := align.NewEngine(embedding.NewMockEmbedder(16), store, align.WithKeywordIndex(kw), align.WithBroker(broker))
	rel := relations.NewStore(store, engine, relations.WithKeywordIndex(kw))
	t.Cleanup(rel.Wait)
	deps := Deps{
		Store:     store,
		Relations: rel,
		Keywords:  kw,
		Broker:    broker,
		Backends:  map[string]string{"embedding": "mock"},
		DiskPaths: map[string]string{"database": filepath.Join(dir, "kanren.db")},
	}
	if withPipeline {
		p := pipeline.New(store, pipeline.Models{}, pipeline.WithBroker(broker))
		ctx, cancel := context.WithCancel(context.Background())
		p.Start(ctx)
		t.Cleanup(func() {
			p.Close()
			cancel()
		})
		deps.Pipeline = p
	}
	return &testEnv{
		srv:      NewServer(deps, &config.ServerConfig{Port: 8080}, nil),
		store:    store,
		keywords: kw,
		broker:   broker,
	}
}

func (e *testEnv) do(t *testing.T, method, path, contentType, body string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	r := httptest.NewRequest(method, path, strings.NewReader(body))
	if contentType != "" {
		r.Header.Set("Content-Type", contentType)
	}
	w := httptest.NewRecorder()
	e.srv.Handler().ServeHTTP(w, r)
	var out map[string]interface{}
	_ = json.Unmarshal(w.Body.Bytes(), &out)
	return w, out
}

func (e *testEnv) seed(t *testing.T) {
	t.Helper()
	if w, out := e.do(t, http.MethodPut, "/api/v1/videos/lec1/scenes", "application/json", scenesJSON); w.Code != http.StatusOK {
		t.Fatalf("put scenes: %d %v", w.Code, out)
	}
	if w, out := e.do(t, http.MethodPut, "/api/v1/videos/lec1/transcript?source=whisper", "application/x-subrip", transcriptSRT); w.Code != http.StatusOK {
		t.Fatalf("put transcript: %d %v", w.Code, out)
	}
}

func TestHandleHealth(t *testing.T) {
	env := newTestEnv(t, false)
	w, out := env.do(t, http.MethodGet, "/health", "", "")
	if w.Code != http.StatusOK || out["status"] != "ok" {
		t.Errorf("health: %d %v", w.Code, out)
	}
}

func TestRelationshipsLifecycle(t *testing.T) {
	env := newTestEnv(t, false)
	env.seed(t)

	w, out := env.do(t, http.MethodGet, "/api/v1/videos/lec1/relationships/status", "", "")
	if w.Code != http.StatusOK || out["status"] != "not_started" {
		t.Fatalf("status before: %d %v", w.Code, out)
	}

	// The graph is computed on first read.
	w, out = env.do(t, http.MethodGet, "/api/v1/videos/lec1/relationships", "", "")
	if w.Code != http.StatusOK || out["success"] != true {
		t.Fatalf("relationships: %d %v", w.Code, out)
	}
	if n := len(out["transcript_sentences"].([]interface{})); n != 2 {
		t.Errorf("transcript_sentences = %d", n)
	}
	if n := len(out["ocr_texts"].([]interface{})); n != 1 {
		t.Errorf("ocr_texts = %d", n)
	}

	w, out = env.do(t, http.MethodGet, "/api/v1/videos/lec1/relationships/status", "", "")
	if out["status"] != "completed" {
		t.Errorf("status after: %v", out)
	}

	w, out = env.do(t, http.MethodGet, "/api/v1/videos/lec1/transcript/1/scenes", "", "")
	if w.Code != http.StatusOK || fmt.Sprint(out["scene_indices"]) != "[1]" {
		t.Errorf("scenes for sentence 1: %d %v", w.Code, out)
	}
	w, out = env.do(t, http.MethodGet, "/api/v1/videos/lec1/transcript/0/ocr", "", "")
	if w.Code != http.StatusOK || out["matches"] == nil {
		t.Errorf("ocr for sentence 0: %d %v", w.Code, out)
	}
	w, out = env.do(t, http.MethodGet, "/api/v1/videos/lec1/ocr/match?scene=0&text=Gradient+Descent", "", "")
	if w.Code != http.StatusOK || out["matches"] == nil {
		t.Errorf("ocr match: %d %v", w.Code, out)
	}

	w, out = env.do(t, http.MethodGet, "/api/v1/videos/lec1/search?q=gradient", "", "")
	if w.Code != http.StatusOK || len(out["results"].([]interface{})) != 2 {
		t.Errorf("search: %d %v", w.Code, out)
	}

	// Replacing the transcript drops the graph.
	env.do(t, http.MethodPut, "/api/v1/videos/lec1/transcript", "application/json", `[{"text":"hello","start":0,"duration":1}]`)
	if _, err := env.store.GetRelationships(context.Background(), "lec1"); !stderrors.Is(err, storage.ErrNotFound) {
		t.Errorf("graph should be invalidated, got %v", err)
	}
	hits, err := env.keywords.Search(context.Background(), "lec1", "gradient", 10, nil)
	if err != nil || len(hits) != 0 {
		t.Errorf("keyword units should be invalidated, got %d hits, %v", len(hits), err)
	}
}

func TestComputeRelationshipsAsync(t *testing.T) {
	env := newTestEnv(t, false)
	env.seed(t)

	w, out := env.do(t, http.MethodPost, "/api/v1/videos/lec1/relationships", "", "")
	if w.Code != http.StatusAccepted || out["status"] != "processing" {
		t.Fatalf("post: %d %v", w.Code, out)
	}
	deadline := time.Now().Add(5 * time.Second)
	for {
		_, out = env.do(t, http.MethodGet, "/api/v1/videos/lec1/relationships/status", "", "")
		if out["status"] == "completed" {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("never completed: %v", out)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestErrorResponses(t *testing.T) {
	env := newTestEnv(t, false)
	tests := []struct {
		name, method, path string
		want               int
	}{
		{"missing inputs", http.MethodGet, "/api/v1/videos/none/relationships", http.StatusNotFound},
		{"missing scenes", http.MethodGet, "/api/v1/videos/none/scenes", http.StatusNotFound},
		{"invalid id", http.MethodGet, "/api/v1/videos/bad.id/scenes", http.StatusBadRequest},
		{"bad index", http.MethodGet, "/api/v1/videos/lec1/transcript/x/ocr", http.StatusBadRequest},
		{"bad scene param", http.MethodGet, "/api/v1/videos/lec1/ocr/match?scene=a&text=b", http.StatusBadRequest},
		{"no pipeline", http.MethodPost, "/api/v1/videos/lec1/ocr", http.StatusServiceUnavailable},
		{"empty query", http.MethodGet, "/api/v1/videos/lec1/search", http.StatusBadRequest},
		{"bad source", http.MethodPut, "/api/v1/videos/lec1/transcript?source=tv", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, out := env.do(t, tt.method, tt.path, "", "")
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d (%v)", w.Code, tt.want, out)
			}
			if out["success"] != false || out["error"] == "" {
				t.Errorf("body = %v", out)
			}
		})
	}
}

func TestOCREndpoints(t *testing.T) {
	env := newTestEnv(t, true)
	env.seed(t)

	w, out := env.do(t, http.MethodPost, "/api/v1/videos/lec1/ocr?preference=both", "", "")
	if w.Code != http.StatusAccepted || out["run_id"] == "" {
		t.Fatalf("start: %d %v", w.Code, out)
	}
	if w, _ := env.do(t, http.MethodPost, "/api/v1/videos/lec1/ocr?preference=magic", "", ""); w.Code != http.StatusBadRequest {
		t.Errorf("bad preference: %d", w.Code)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := env.srv.deps.Pipeline.Wait(ctx, "lec1"); err != nil {
		t.Fatal(err)
	}
	_, out = env.do(t, http.MethodGet, "/api/v1/videos/lec1/ocr/status", "", "")
	if out["all_complete"] != true {
		t.Errorf("status: %v", out)
	}
	_, out = env.do(t, http.MethodGet, "/api/v1/videos/lec1/ocr", "", "")
	if out["ocr_count"] != float64(1) || out["pending_ocr_count"] != float64(1) || out["processing_complete"] != false {
		t.Errorf("report: %v", out)
	}
}

func TestHandleStatus(t *testing.T) {
	env := newTestEnv(t, false)
	env.seed(t)
	w, out := env.do(t, http.MethodGet, "/api/v1/status", "", "")
	if w.Code != http.StatusOK || out["videos"] != float64(1) {
		t.Errorf("status: %d %v", w.Code, out)
	}
	if _, ok := out["disk_usage_bytes"]; !ok {
		t.Errorf("missing disk usage: %v", out)
	}
}

func TestHandleEvents(t *testing.T) {
	env := newTestEnv(t, false)
	ts := httptest.NewServer(env.srv.Handler())
	defer ts.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/api/v1/videos/lec1/events", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content type = %q", ct)
	}

	lines := bufio.NewScanner(resp.Body)
	next := func() string {
		for lines.Scan() {
			if l := lines.Text(); strings.HasPrefix(l, "event: ") {
				return strings.TrimPrefix(l, "event: ")
			}
		}
		return ""
	}
	if ev := next(); ev != "connected" {
		t.Fatalf("first event = %q", ev)
	}
	_ = env.broker.Publish(context.Background(), "lec1", progress.Event{Type: progress.EventOcrProgress, Total: 2, Completed: 1})
	if ev := next(); ev != "ocr_progress" {
		t.Errorf("second event = %q", ev)
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{errors.MissingInputf("op", "v", "no transcript"), http.StatusNotFound},
		{errors.ModelUnavailable("op", stderrors.New("no onnx")), http.StatusServiceUnavailable},
		{errors.Processing("op", "v", stderrors.New("boom")), http.StatusInternalServerError},
		{fmt.Errorf("scenes: %w", storage.ErrNotFound), http.StatusNotFound},
		{stderrors.New("plain"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := statusFor(tt.err); got != tt.want {
			t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}
