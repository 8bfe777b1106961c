// Package httpserver is the peer-facing HTTP surface SPEC_FULL.md §6
// describes: the wire protocol other probes' PeerClient instances speak
// against. Routed with gorilla/mux, the path-parameterized router the
// wider example pack reaches for (prysmaticlabs-prysm's gateway uses it
// the same way: one mux.Router, one handler per templated path).
package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/nmxmxh/netcoord/internal/probe"
	"github.com/nmxmxh/netcoord/internal/telemetry/logging"
)

// Server serves the peer-facing endpoints against a single Probe.
type Server struct {
	probe  *probe.Probe
	log    *logging.Logger
	router *mux.Router
}

// New builds a Server and registers all routes.
func New(p *probe.Probe, log *logging.Logger) *Server {
	if log == nil {
		log = logging.New("httpserver")
	}
	s := &Server{probe: p, log: log, router: mux.NewRouter()}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	s.router.HandleFunc("/echo/{msg}", s.handleEcho).Methods(http.MethodGet)
	s.router.HandleFunc("/resolved", s.handleResolved).Methods(http.MethodGet)
	s.router.HandleFunc("/estimate/{from}/{to}", s.handleEstimate).Methods(http.MethodGet)
	s.router.HandleFunc("/connected/{from}", s.handleConnected).Methods(http.MethodGet)
	s.router.HandleFunc("/best_endpoint/{to}", s.handleBestEndpoint).Methods(http.MethodGet)
	s.router.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	s.router.HandleFunc("/debug/telemetry", s.handleDebugTelemetry).Methods(http.MethodGet)
	s.router.HandleFunc("/debug/peers", s.handleDebugPeers).Methods(http.MethodGet)
}

// handleEcho echoes the path parameter back verbatim; the caller computes
// round-trip time from its own clock, as the wire protocol requires no
// server-side timestamp of its own.
func (s *Server) handleEcho(w http.ResponseWriter, r *http.Request) {
	msg := mux.Vars(r)["msg"]
	w.Header().Set("Content-Type", "text/plain")
	_, _ = w.Write([]byte(msg))
}

func (s *Server) handleResolved(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.probe.ResolvedSnapshot())
}

// handleEstimate maps any failure to the sentinel -1, per spec: the caller
// always gets a 200 plain-text decimal, never a 404/400.
func (s *Server) handleEstimate(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	estimate, err := s.probe.Estimate(vars["from"], vars["to"])
	if err != nil {
		s.log.Debug("estimate failed", logging.String("from", vars["from"]), logging.String("to", vars["to"]), logging.Err(err))
		estimate = -1
	}
	w.Header().Set("Content-Type", "text/plain")
	_, _ = w.Write([]byte(strconv.FormatFloat(estimate, 'f', -1, 64)))
}

// handleConnected enqueues the announcing peer as pending so the next
// optimizer round resolves and admits it, then echoes from back.
func (s *Server) handleConnected(w http.ResponseWriter, r *http.Request) {
	from := mux.Vars(r)["from"]
	s.probe.AddPendingPeer(from)
	w.Header().Set("Content-Type", "text/plain")
	_, _ = w.Write([]byte(from))
}

func (s *Server) handleBestEndpoint(w http.ResponseWriter, r *http.Request) {
	to := mux.Vars(r)["to"]
	endpoint, err := s.probe.GetBestEndpointTo(to)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain")
	_, _ = w.Write([]byte(endpoint))
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.probe.StatusSnapshot())
}

func (s *Server) handleDebugTelemetry(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.probe.TelemetrySnapshot())
}

func (s *Server) handleDebugPeers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.probe.PeersSnapshot())
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, probe.ErrNotAPeer), errors.Is(err, probe.ErrOffline), errors.Is(err, probe.ErrNotResolved):
		http.Error(w, err.Error(), http.StatusNotFound)
	default:
		http.Error(w, err.Error(), http.StatusBadRequest)
	}
}
