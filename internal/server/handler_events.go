package server

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/maugonzalezv/OS-Scheduler-ClientServer/internal/hub"
	"github.com/maugonzalezv/OS-Scheduler-ClientServer/pkg/model"
)

// triggerResponse summarizes what a trigger queued.
type triggerResponse struct {
	Event   string  `json:"event"`
	Batches int     `json:"batches"`
	Sizes   []int   `json:"sizes"`
	Empty   []int64 `json:"empty"`
	Skipped []int64 `json:"skipped"`
	NoFiles bool    `json:"no_files"`
}

func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	respondOK(w, RequestIDFromContext(r.Context()), s.hub.Registry().Events())
}

func (s *Server) handleCreateEvent(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	name := chi.URLParam(r, "name")

	if err := s.hub.Registry().AddEvent(name); err != nil {
		if errors.Is(err, hub.ErrEventExists) {
			respondError(w, reqID, http.StatusConflict,
				&model.APIError{Code: model.ErrConflict, Message: err.Error()})
			return
		}
		respondInternal(w, reqID, err)
		return
	}
	s.logger.Info("event created", "event", name)
	respondCreated(w, reqID, model.EventInfo{Name: name, Subscribers: []int64{}, WaitQueue: []int64{}})
}

func (s *Server) handleDeleteEvent(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	name := chi.URLParam(r, "name")

	if err := s.hub.Registry().RemoveEvent(name); err != nil {
		if errors.Is(err, hub.ErrEventNotFound) {
			respondError(w, reqID, http.StatusNotFound, model.NewNotFoundError("event", name))
			return
		}
		respondInternal(w, reqID, err)
		return
	}
	s.logger.Info("event removed", "event", name)
	respondOK(w, reqID, map[string]string{"event": name})
}

func (s *Server) handleTriggerEvent(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	name := chi.URLParam(r, "name")

	plan, err := s.hub.Trigger(name)
	if err != nil {
		if errors.Is(err, hub.ErrEventNotFound) {
			respondError(w, reqID, http.StatusNotFound, model.NewNotFoundError("event", name))
			return
		}
		respondInternal(w, reqID, err)
		return
	}
	respondOK(w, reqID, triggerResponse{
		Event:   plan.Event,
		Batches: len(plan.Batches),
		Sizes:   plan.Sizes(),
		Empty:   nonNil(plan.Empty),
		Skipped: nonNil(plan.Skipped),
		NoFiles: plan.NoFiles,
	})
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	respondOK(w, RequestIDFromContext(r.Context()), s.hub.Registry().Sessions())
}

func nonNil(ids []int64) []int64 {
	if ids == nil {
		return []int64{}
	}
	return ids
}
