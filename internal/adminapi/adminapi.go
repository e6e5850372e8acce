// Package adminapi exposes a small read-only HTTP surface for
// operators and the monitor TUI (cmd/netnexus-monitor, component P):
// process health, the registered module table, and the live CLI
// session count. It never mutates daemon state — every configuration
// change still goes through the CLI engine itself, per spec.md's
// Non-goals around a second control path.
package adminapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/netnexus/controlplane/internal/domain/registry"
)

// SessionCounter reports how many CLI sessions are currently open. The
// TCP server satisfies this narrow interface; the websocket console does
// not, so its sessions are not counted.
type SessionCounter interface {
	SessionCount() int
}

// Handler serves the admin HTTP surface.
type Handler struct {
	reg      *registry.Registry
	sessions SessionCounter
	started  time.Time
}

// New builds a chi router exposing the admin endpoints. sessions may be
// nil, in which case /sessions reports a count of 0.
func New(reg *registry.Registry, sessions SessionCounter) http.Handler {
	h := &Handler{reg: reg, sessions: sessions, started: startTime()}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/healthz", h.healthz)
	r.Get("/modules", h.modules)
	r.Get("/sessions", h.sessions_)
	r.Get("/metrics", h.metrics)
	return r
}

// startTime exists so tests can observe Handler.started deterministically
// without this package reaching for time.Now() at init.
func startTime() time.Time { return time.Now() }

type healthResponse struct {
	Status        string `json:"status"`
	UptimeSeconds int64  `json:"uptime_seconds"`
}

func (h *Handler) healthz(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	if h.reg.ShutdownRequested() {
		status = "shutting_down"
	}
	writeJSON(w, healthResponse{Status: status, UptimeSeconds: int64(time.Since(h.started).Seconds())})
}

type moduleInfo struct {
	ModuleID uint32 `json:"module_id"`
	Name     string `json:"name"`
}

func (h *Handler) modules(w http.ResponseWriter, r *http.Request) {
	descs := h.reg.Descriptors()
	out := make([]moduleInfo, 0, len(descs))
	for _, d := range descs {
		out = append(out, moduleInfo{ModuleID: d.ModuleID, Name: d.Name})
	}
	writeJSON(w, out)
}

type sessionsResponse struct {
	Count int `json:"count"`
}

func (h *Handler) sessions_(w http.ResponseWriter, r *http.Request) {
	count := 0
	if h.sessions != nil {
		count = h.sessions.SessionCount()
	}
	writeJSON(w, sessionsResponse{Count: count})
}

// metrics is a documented stub: spec.md's Non-goals exclude a metrics
// pipeline, so the route exists and returns an empty object rather than
// 404ing. The monitor TUI (component P) does not poll it.
func (h *Handler) metrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
