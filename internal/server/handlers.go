package server

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hyperjump/kanren/internal/errors"
	"github.com/hyperjump/kanren/internal/extract"
	"github.com/hyperjump/kanren/internal/keyword"
	"github.com/hyperjump/kanren/internal/models"
	"github.com/hyperjump/kanren/internal/ocr"
	"github.com/hyperjump/kanren/internal/storage"
	"github.com/hyperjump/kanren/internal/videoid"
)

// maxBodyBytes bounds uploaded scene and transcript documents.
const maxBodyBytes = 32 << 20

func (s *Server) validateVideoID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := videoid.Validate(chi.URLParam(r, "id")); err != nil {
			s.respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	videos, err := s.deps.Store.CountVideos(ctx)
	if err != nil {
		s.logger.Error("status: count videos failed", zap.Error(err))
		s.respondErr(w, err)
		return
	}
	resp := map[string]interface{}{
		"videos":   videos,
		"backends": s.deps.Backends,
	}
	if s.deps.Keywords != nil {
		if n, err := s.deps.Keywords.DocCount(); err == nil {
			resp["keyword_units"] = n
		}
	}
	if s.deps.Watch != nil {
		resp["watch_directories"] = s.deps.Watch.Roots()
	}
	if len(s.deps.DiskPaths) > 0 {
		usage, total, err := storage.DiskUsage(s.deps.DiskPaths)
		if err == nil {
			resp["disk_usage"] = usage
			resp["disk_usage_bytes"] = total
		} else {
			s.logger.Warn("status: disk usage failed", zap.Error(err))
		}
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handlePutScenes(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "failed to read body")
		return
	}
	scenes, err := extract.ParseScenes(body)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.deps.Store.SaveScenes(r.Context(), id, scenes); err != nil {
		s.logger.Error("save scenes failed", zap.String("video_id", id), zap.Error(err))
		s.respondErr(w, err)
		return
	}
	if err := s.deps.Relations.Invalidate(r.Context(), id); err != nil {
		s.logger.Warn("invalidate relationships", zap.String("video_id", id), zap.Error(err))
	}
	s.logger.Debug("scenes stored", zap.String("video_id", id), zap.Int("scenes", len(scenes)))
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"success": true, "video_id": id, "scene_count": len(scenes)})
}

func (s *Server) handleGetScenes(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	scenes, err := s.deps.Store.GetScenes(r.Context(), id)
	if err != nil {
		s.respondErr(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"success": true, "video_id": id, "scenes": scenes})
}

// transcriptFormat maps a Content-Type to the extension ParseTranscript expects.
func transcriptFormat(contentType string) string {
	mt, _, _ := mime.ParseMediaType(contentType)
	switch mt {
	case "application/x-subrip", "text/srt", "text/plain":
		return ".srt"
	default:
		return ".json"
	}
}

func (s *Server) handlePutTranscript(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	source := models.TranscriptSource(r.URL.Query().Get("source"))
	switch source {
	case "":
		source = models.TranscriptYouTube
	case models.TranscriptYouTube, models.TranscriptWhisper:
	default:
		s.respondError(w, http.StatusBadRequest, fmt.Sprintf("unknown transcript source %q", source))
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "failed to read body")
		return
	}
	entries, err := extract.ParseTranscript(body, transcriptFormat(r.Header.Get("Content-Type")))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.deps.Store.SaveTranscript(r.Context(), id, source, entries); err != nil {
		s.logger.Error("save transcript failed", zap.String("video_id", id), zap.Error(err))
		s.respondErr(w, err)
		return
	}
	if err := s.deps.Relations.Invalidate(r.Context(), id); err != nil {
		s.logger.Warn("invalidate relationships", zap.String("video_id", id), zap.Error(err))
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true, "video_id": id, "source": source, "entry_count": len(entries),
	})
}

func (s *Server) handleStartOCR(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if s.deps.Pipeline == nil {
		s.respondError(w, http.StatusServiceUnavailable, "processing pipeline not enabled")
		return
	}
	pref, err := ocr.ParsePreference(r.URL.Query().Get("preference"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	// The run continues after this request returns.
	run, err := s.deps.Pipeline.Submit(context.WithoutCancel(r.Context()), id, pref)
	if err != nil {
		s.respondErr(w, err)
		return
	}
	s.respondJSON(w, http.StatusAccepted, map[string]interface{}{
		"success":    true,
		"video_id":   id,
		"run_id":     run.ID,
		"preference": run.Preference,
		"status":     run.Status(),
	})
}

func (s *Server) handleGetOCR(w http.ResponseWriter, r *http.Request) {
	scenes, err := s.deps.Store.GetScenes(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondErr(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, extract.OcrReport(scenes))
}

func (s *Server) handleOCRStatus(w http.ResponseWriter, r *http.Request) {
	if s.deps.Pipeline == nil {
		s.respondError(w, http.StatusServiceUnavailable, "processing pipeline not enabled")
		return
	}
	st, err := s.deps.Pipeline.Status(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondErr(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, st)
}

func (s *Server) handleOCRMatch(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	scene, err := strconv.Atoi(r.URL.Query().Get("scene"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "scene must be an integer")
		return
	}
	text := r.URL.Query().Get("text")
	if text == "" {
		s.respondError(w, http.StatusBadRequest, "text is required")
		return
	}
	matches, err := s.deps.Relations.OcrMatches(r.Context(), id, scene, text)
	if err != nil {
		s.respondErr(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true, "scene_index": scene, "ocr_text": text, "matches": matches,
	})
}

func (s *Server) handleComputeRelationships(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s.deps.Relations.ComputeAsync(r.Context(), id)
	s.respondJSON(w, http.StatusAccepted, map[string]interface{}{
		"success": true, "video_id": id, "status": models.EmbeddingProcessing,
	})
}

func (s *Server) handleGetRelationships(w http.ResponseWriter, r *http.Request) {
	g, err := s.deps.Relations.Graph(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondErr(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, g)
}

func (s *Server) handleRelationshipStatus(w http.ResponseWriter, r *http.Request) {
	st, err := s.deps.Relations.Status(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondErr(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, st)
}

func transcriptIndex(r *http.Request) (int, error) {
	i, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil || i < 0 {
		return 0, fmt.Errorf("transcript index must be a non-negative integer")
	}
	return i, nil
}

func (s *Server) handleTranscriptOCR(w http.ResponseWriter, r *http.Request) {
	i, err := transcriptIndex(r)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	matches, err := s.deps.Relations.TranscriptMatches(r.Context(), chi.URLParam(r, "id"), i)
	if err != nil {
		s.respondErr(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true, "transcript_index": i, "matches": matches,
	})
}

func (s *Server) handleTranscriptScenes(w http.ResponseWriter, r *http.Request) {
	i, err := transcriptIndex(r)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	scenes, err := s.deps.Relations.SceneForTranscript(r.Context(), chi.URLParam(r, "id"), i)
	if err != nil {
		s.respondErr(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true, "transcript_index": i, "scene_indices": scenes,
	})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	if s.deps.Keywords == nil {
		s.respondError(w, http.StatusServiceUnavailable, "keyword index not enabled")
		return
	}
	q := r.URL.Query()
	query := strings.TrimSpace(q.Get("q"))
	if query == "" {
		s.respondError(w, http.StatusBadRequest, "q is required")
		return
	}
	limit := 10
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			s.respondError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}
	opts := &keyword.SearchOptions{Origin: models.Origin(q.Get("type"))}
	if fuzzy := q.Get("fuzzy"); fuzzy != "" {
		n, err := strconv.Atoi(fuzzy)
		if err != nil || n < 0 || n > 2 {
			s.respondError(w, http.StatusBadRequest, "fuzzy must be 0, 1 or 2")
			return
		}
		opts.FuzzyEnabled, opts.Fuzziness = n > 0, n
	}
	id := chi.URLParam(r, "id")
	s.logger.Debug("search request", zap.String("video_id", id), zap.String("query", query), zap.Int("limit", limit))
	hits, err := s.deps.Keywords.Search(r.Context(), id, query, limit, opts)
	if err != nil {
		s.logger.Error("search failed", zap.Error(err))
		s.respondErr(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"success": true, "query": query, "results": hits})
}

// statusFor maps an error to the HTTP status of its failure kind.
func statusFor(err error) int {
	if stderrors.Is(err, storage.ErrNotFound) {
		return http.StatusNotFound
	}
	switch errors.KindOf(err) {
	case errors.KindMissingInput:
		return http.StatusNotFound
	case errors.KindModelUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) respondErr(w http.ResponseWriter, err error) {
	s.respondJSON(w, statusFor(err), errors.Result(err))
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]interface{}{"success": false, "error": message})
}
