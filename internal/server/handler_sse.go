package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/maugonzalezv/OS-Scheduler-ClientServer/pkg/model"
)

// handleSSEStatus streams dispatcher status via Server-Sent Events.
// GET /api/v1/sse/status
func (s *Server) handleSSEStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "SSE not supported", http.StatusInternalServerError)
		return
	}

	last := s.dispatcher.Status()
	if err := sendSSEEvent(w, flusher, "init", last); err != nil {
		s.logger.Debug("sse client disconnected", "error", err)
		return
	}

	ticker := time.NewTicker(s.sseInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			cur := s.dispatcher.Status()
			if cur == last {
				fmt.Fprintf(w, ": heartbeat\n\n")
				flusher.Flush()
				continue
			}
			if err := sendSSEEvent(w, flusher, "update", cur); err != nil {
				s.logger.Debug("sse client disconnected", "error", err)
				return
			}
			last = cur
		}
	}
}

func sendSSEEvent(w http.ResponseWriter, flusher http.Flusher, event string, data model.DispatcherStatus) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return err
	}

	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, jsonData)
	if err != nil {
		return err
	}

	flusher.Flush()
	return nil
}
