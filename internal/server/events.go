package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

const keepAliveInterval = 15 * time.Second

// handleEvents streams a video's progress events as Server-Sent Events until the client leaves.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if s.deps.Broker == nil {
		s.respondError(w, http.StatusServiceUnavailable, "progress events not enabled")
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		s.respondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}
	id := chi.URLParam(r, "id")
	ctx := r.Context()
	sub, err := s.deps.Broker.Subscribe(ctx, id)
	if err != nil {
		s.respondErr(w, err)
		return
	}
	defer sub.Close()
	s.logger.Debug("event stream opened", zap.String("video_id", id), zap.String("subscriber", sub.ID))

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ticker := time.NewTicker(keepAliveInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case ev, ok := <-sub.Events():
			if !ok {
				return
			}
			data, err := json.Marshal(ev)
			if err != nil {
				s.logger.Warn("encode event", zap.Error(err))
				continue
			}
			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, data); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
