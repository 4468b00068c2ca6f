package server

import (
	"net/http"
	"time"

	cerrors "github.com/edgeops/opsctl/pkg/errors"
	"github.com/edgeops/opsctl/pkg/serializer"
)

// Probe states reported by /health and /ready.
const (
	probeHealthy  = "healthy"
	probeReady    = "ready"
	probeNotReady = "not_ready"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondProbe(w, r, http.StatusOK, probeHealthy, "")
}

// handleReady reports 503 until Run has started listening, so the agent is
// not sent bundle requests it cannot serve yet.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	ready := s.ready
	s.mu.RUnlock()

	if !ready {
		s.respondProbe(w, r, http.StatusServiceUnavailable, probeNotReady, "agent is starting")
		return
	}
	s.respondProbe(w, r, http.StatusOK, probeReady, "")
}

func (s *Server) respondProbe(w http.ResponseWriter, r *http.Request, status int, state, reason string) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		WriteError(w, r, http.StatusMethodNotAllowed, cerrors.ErrCodeMethodNotAllowed,
			"Method not allowed", false, nil)
		return
	}

	resp := HealthResponse{
		Status:    state,
		Name:      name,
		Version:   version,
		Timestamp: time.Now().UTC(),
		Reason:    reason,
	}
	s.mu.RLock()
	started := s.started
	s.mu.RUnlock()
	if !started.IsZero() {
		resp.Uptime = time.Since(started).Round(time.Second).String()
	}
	serializer.RespondJSON(w, status, resp)
}
