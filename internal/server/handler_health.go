package server

import (
	"net/http"
	"runtime"
	"time"
)

type healthResponse struct {
	Status     string `json:"status"`
	Name       string `json:"name"`
	Version    string `json:"version"`
	GoVersion  string `json:"go_version"`
	Uptime     string `json:"uptime"`
	Dispatcher string `json:"dispatcher"`
	History    string `json:"history"`
	Sessions   int    `json:"sessions"`
}

type endpointInfo struct {
	Path        string   `json:"path"`
	Methods     []string `json:"methods"`
	Description string   `json:"description"`
}

type discoveryResponse struct {
	Name      string         `json:"name"`
	Version   string         `json:"version"`
	Endpoints []endpointInfo `json:"endpoints"`
}

func (s *Server) handleDiscovery(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	respondOK(w, reqID, discoveryResponse{
		Name:    s.info.Name,
		Version: "v1",
		Endpoints: []endpointInfo{
			{"/api/v1/health", []string{"GET"}, "Server health and version"},
			{"/api/v1/status", []string{"GET"}, "Dispatcher state"},
			{"/api/v1/events", []string{"GET"}, "Events with subscribers and wait queues"},
			{"/api/v1/events/{name}", []string{"POST", "DELETE"}, "Create or remove an event"},
			{"/api/v1/events/{name}/trigger", []string{"POST"}, "Partition the file pool across waiting sessions"},
			{"/api/v1/sessions", []string{"GET"}, "Connected sessions"},
			{"/api/v1/batches", []string{"GET"}, "Batch outcome history"},
			{"/api/v1/batches/{id}", []string{"GET"}, "Single batch outcome"},
			{"/api/v1/simulations", []string{"GET", "POST"}, "Run or list headless scheduling simulations"},
			{"/api/v1/simulations/{id}", []string{"GET"}, "Single simulation run"},
			{"/api/v1/sse/status", []string{"GET"}, "Dispatcher state as server-sent events"},
		},
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())

	dispatcher := "idle"
	if !s.dispatcher.Status().Idle() {
		dispatcher = "busy"
	}
	history := "disabled"
	if s.store != nil {
		history = "sqlite"
	}

	respondOK(w, reqID, healthResponse{
		Status:     "healthy",
		Name:       s.info.Name,
		Version:    s.info.Version,
		GoVersion:  runtime.Version(),
		Uptime:     time.Since(s.startTime).Round(time.Second).String(),
		Dispatcher: dispatcher,
		History:    history,
		Sessions:   len(s.hub.Registry().Sessions()),
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	respondOK(w, RequestIDFromContext(r.Context()), s.dispatcher.Status())
}
