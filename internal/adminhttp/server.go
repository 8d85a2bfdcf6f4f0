// Package adminhttp exposes the machine's health and diagnostic surface
// over gorilla/mux, grounded in cmd/memoria/dump.go (per-process memory
// dumps) and cmd/memoria/metricas.go (per-process access counters),
// collapsed into a read-only inspection API since this repo's core stays
// single-process rather than serving live cross-module RPC.
package adminhttp

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/nachos-go/kernel/internal/frame"
	"github.com/nachos-go/kernel/internal/process"
	"github.com/nachos-go/kernel/internal/transport"
)

// Server exposes /health, /frames and /processes over the shared
// transport.Server wrapper, so an operator (or an integration test) can
// watch a running machine without instrumenting the syscall path.
type Server struct {
	inner *transport.Server
	addr string
	allocator *frame.Allocator
	processes *process.Table
}

// New builds an admin server bound to addr. Call ListenAndServe to run it.
func New(addr string, log *slog.Logger, allocator *frame.Allocator, processes *process.Table) *Server {
	s := &Server{
		inner: transport.NewServer("admin", log),
		addr: addr,
		allocator: allocator,
		processes: processes,
	}
	s.inner.Router().HandleFunc("/frames", s.handleFrames).Methods(http.MethodGet)
	s.inner.Router().HandleFunc("/processes", s.handleProcesses).Methods(http.MethodGet)
	return s
}

// ListenAndServe blocks serving the admin API.
func (s *Server) ListenAndServe() error {
	return s.inner.ListenAndServe(s.addr)
}

// frameSnapshot mirrors what dump/metrics handlers report about the frame
// pool, minus the per-process byte dump itself (which belongs to a
// debugging workflow this repo doesn't reproduce).
type frameSnapshot struct {
	Total int `json:"total"`
	Free int `json:"free"`
	Owned int `json:"owned"`
}

func (s *Server) handleFrames(w http.ResponseWriter, r *http.Request) {
	free, owned, total := s.allocator.PinnedAccountingSnapshot()
	writeJSON(w, frameSnapshot{Total: total, Free: free, Owned: owned})
}

type processSummary struct {
	Live int `json:"live"`
}

func (s *Server) handleProcesses(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, processSummary{Live: s.processes.LiveCount()})
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
