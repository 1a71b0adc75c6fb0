package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/maugonzalezv/OS-Scheduler-ClientServer/internal/simulation"
	"github.com/maugonzalezv/OS-Scheduler-ClientServer/pkg/model"
)

// maxSimulationBody caps POST /simulations request bodies.
const maxSimulationBody = 1 << 20

type simulationResponse struct {
	ID     string             `json:"id,omitempty"`
	Result *simulation.Result `json:"result"`
}

func (s *Server) handleListBatches(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	opts := listOptions(r)
	opts.Event = r.URL.Query().Get("event")
	opts.Status = r.URL.Query().Get("status")

	if s.store == nil {
		respondList(w, reqID, []*model.BatchResult{}, opts, 0)
		return
	}
	list, total, err := s.store.ListBatches(r.Context(), opts)
	if err != nil {
		respondInternal(w, reqID, err)
		return
	}
	respondList(w, reqID, list, opts, total)
}

func (s *Server) handleGetBatch(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	id := chi.URLParam(r, "id")

	var res *model.BatchResult
	if s.store != nil {
		var err error
		if res, err = s.store.GetBatch(r.Context(), id); err != nil {
			respondInternal(w, reqID, err)
			return
		}
	}
	if res == nil {
		respondError(w, reqID, http.StatusNotFound, model.NewNotFoundError("batch", id))
		return
	}
	respondOK(w, reqID, res)
}

func (s *Server) handleListSimulations(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	opts := listOptions(r)

	if s.store == nil {
		respondList(w, reqID, []*model.SimulationRun{}, opts, 0)
		return
	}
	list, total, err := s.store.ListSimulations(r.Context(), opts)
	if err != nil {
		respondInternal(w, reqID, err)
		return
	}
	respondList(w, reqID, list, opts, total)
}

func (s *Server) handleGetSimulation(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	id := chi.URLParam(r, "id")

	var run *model.SimulationRun
	if s.store != nil {
		var err error
		if run, err = s.store.GetSimulation(r.Context(), id); err != nil {
			respondInternal(w, reqID, err)
			return
		}
	}
	if run == nil {
		respondError(w, reqID, http.StatusNotFound, model.NewNotFoundError("simulation", id))
		return
	}
	respondOK(w, reqID, run)
}

func (s *Server) handleCreateSimulation(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())

	var req simulation.Request
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxSimulationBody)).Decode(&req); err != nil {
		respondError(w, reqID, http.StatusBadRequest, model.NewValidationError("invalid JSON body: "+err.Error()))
		return
	}
	if len(req.Processes) == 0 {
		respondError(w, reqID, http.StatusBadRequest, model.NewValidationError("at least one process is required",
			model.FieldError{Field: "processes", Message: "must not be empty"}))
		return
	}
	if req.Workers < 0 {
		respondError(w, reqID, http.StatusBadRequest, model.NewValidationError("workers must be positive",
			model.FieldError{Field: "workers", Message: "must be >= 1"}))
		return
	}

	req.MaxTicks = s.maxTicks
	res, err := simulation.Simulate(r.Context(), req)
	if err != nil {
		var unknown *model.UnknownPolicyError
		if errors.As(err, &unknown) {
			respondError(w, reqID, http.StatusBadRequest, model.NewValidationError(err.Error(),
				model.FieldError{Field: "policy", Message: "unknown policy"}))
			return
		}
		respondInternal(w, reqID, err)
		return
	}

	resp := simulationResponse{Result: res}
	if s.store != nil {
		run := res.Record(req.Quantum)
		// The run already finished; persist it even if the client went away.
		if err := s.store.RecordSimulation(context.WithoutCancel(r.Context()), run); err != nil {
			s.logger.Error("record simulation", "error", err)
		} else {
			resp.ID = run.ID
		}
	}
	s.logger.Info("simulation complete",
		"policy", res.Policy,
		"processes", len(res.Processes),
		"makespan", res.Summary.Makespan,
	)
	respondCreated(w, reqID, resp)
}
