// Package api exposes the bridge's commands (list ports, start, stop,
// status) and its event stream over HTTP for the user interface.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/chase3718/serial-midi-bridge/internal/bridge"
	"github.com/chase3718/serial-midi-bridge/internal/serialport"
)

// Pipeline is the part of the coordinator the HTTP layer drives.
type Pipeline interface {
	Start(port string) (*bridge.Run, error)
	Stop()
	Status() bridge.Status
}

// Server routes UI requests to the pipeline.
type Server struct {
	pipeline Pipeline
	ports    func() []serialport.PortInfo
	events   http.Handler
	gatherer prometheus.Gatherer
	log      *slog.Logger
}

// NewServer wires the handlers. ports is typically serialport.List bound to
// a logger; events is the WebSocket handler.
func NewServer(p Pipeline, ports func() []serialport.PortInfo, events http.Handler, gatherer prometheus.Gatherer, log *slog.Logger) *Server {
	return &Server{pipeline: p, ports: ports, events: events, gatherer: gatherer, log: log}
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/ports", s.handlePorts)
	mux.HandleFunc("POST /api/start", s.handleStart)
	mux.HandleFunc("POST /api/stop", s.handleStop)
	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.Handle("GET /events", s.events)
	mux.Handle("GET /metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	return mux
}

func (s *Server) handlePorts(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.ports())
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PortName string `json:"port_name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	run, err := s.pipeline.Start(req.PortName)
	if errors.Is(err, bridge.ErrNoPort) {
		http.Error(w, "port_name required", http.StatusBadRequest)
		return
	}
	if err != nil {
		s.log.Error("api: start failed", "port", req.PortName, "err", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"ok": true, "run": run.ID, "port_name": run.Port})
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	s.pipeline.Stop()
	writeJSON(w, http.StatusAccepted, map[string]any{"ok": true})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.pipeline.Status())
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}
