package transport

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
)

// HandlerFunc processes one decoded Envelope and returns the value to encode
// back to the caller.
type HandlerFunc func(*Envelope) (interface{}, error)

// Server is a small JSON-RPC-over-HTTP server shared by every module
// binary, replacing hand-rolled http.ServeMux dispatch
// (utils.HTTPServer) with gorilla/mux routing so each message kind gets its
// own path instead of being multiplexed by a numeric field inside the body.
type Server struct {
	name string
	log *slog.Logger
	router *mux.Router
	handlers map[string]HandlerFunc
}

// NewServer creates a Server for the named module.
func NewServer(name string, log *slog.Logger) *Server {
	return &Server{
		name: name,
		log: log,
		router: mux.NewRouter(),
		handlers: make(map[string]HandlerFunc),
	}
}

// Handle registers the handler invoked for envelopes of the given kind.
func (s *Server) Handle(kind string, h HandlerFunc) {
	s.handlers[kind] = h
}

// Router exposes the underlying mux.Router so callers (e.g. adminhttp) can
// graft additional routes onto the same listener.
func (s *Server) Router() *mux.Router {
	return s.router
}

// build wires /rpc/{kind} routes plus /health onto the router. Called lazily
// by ListenAndServe so Handle calls made after construction still land.
func (s *Server) build() {
	s.router.HandleFunc("/rpc/{kind}", func(w http.ResponseWriter, r *http.Request) {
		kind := mux.Vars(r)["kind"]

		var env Envelope
		if err := json.NewDecoder(r.Body).Decode(&env); err != nil {
			http.Error(w, fmt.Sprintf("decode envelope: %v", err), http.StatusBadRequest)
			return
		}

		h, ok := s.handlers[kind]
		if !ok {
			http.Error(w, fmt.Sprintf("no handler for kind %q", kind), http.StatusNotFound)
			return
		}

		result, err := h(&env)
		if err != nil {
			s.log.Error("rpc handler failed", "kind", kind, "origin", env.Origin, "error", err)
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(result)
	}).Methods(http.MethodPost)

	s.router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok", "module": s.name})
	}).Methods(http.MethodGet)
}

// ListenAndServe blocks serving the module's RPC and health endpoints.
func (s *Server) ListenAndServe(addr string) error {
	s.build()
	s.log.Info("http server starting", "module", s.name, "addr", addr)
	return http.ListenAndServe(addr, s.router)
}
