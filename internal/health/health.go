// Package health provides the liveness and readiness endpoints served
// alongside the metrics listener.
//
//   - /healthz — liveness; a process that can serve HTTP is alive.
//   - /readyz  — readiness; 200 only when every registered probe passes.
//
// Responses are JSON with a top-level "status" ("ok" or "fail") and a
// "checks" map with one entry per probe.
package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/voxos-ai/voxos/pkg/provider/llm"
)

// probeTimeout bounds a single readiness probe.
const probeTimeout = 5 * time.Second

// Probe is a named readiness check. Check returns nil when the dependency is
// usable and must respect context cancellation.
type Probe struct {
	Name  string
	Check func(ctx context.Context) error
}

// Backend probes the model backend by asking it to enumerate models. A
// backend that cannot list models ([llm.ErrNoModelListing]) is still
// considered reachable.
func Backend(p llm.Provider) Probe {
	return Probe{
		Name: "backend",
		Check: func(ctx context.Context) error {
			_, err := p.Models(ctx)
			if errors.Is(err, llm.ErrNoModelListing) {
				return nil
			}
			return err
		},
	}
}

// Pinger is the slice of the conversation archive the readiness probe needs.
type Pinger interface {
	TurnCount() (int, error)
}

// Archive probes the conversation archive with a cheap read.
func Archive(a Pinger) Probe {
	return Probe{
		Name: "archive",
		Check: func(context.Context) error {
			_, err := a.TurnCount()
			return err
		},
	}
}

type result struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// Handler serves the two endpoints. The probe list is fixed at construction;
// the handler is safe for concurrent use.
type Handler struct {
	probes []Probe
}

// New creates a Handler evaluating the given probes, in order, on each
// /readyz request.
func New(probes ...Probe) *Handler {
	p := make([]Probe, len(probes))
	copy(p, probes)
	return &Handler{probes: p}
}

// Healthz always answers 200 OK.
func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, result{Status: "ok"})
}

// Readyz answers 200 only when every probe passes, 503 otherwise. Each probe
// runs under a [probeTimeout] deadline derived from the request context.
func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]string, len(h.probes))
	ok := true

	for _, p := range h.probes {
		ctx, cancel := context.WithTimeout(r.Context(), probeTimeout)
		err := p.Check(ctx)
		cancel()

		if err != nil {
			checks[p.Name] = "fail: " + err.Error()
			ok = false
		} else {
			checks[p.Name] = "ok"
		}
	}

	res := result{Status: "ok", Checks: checks}
	status := http.StatusOK
	if !ok {
		res.Status = "fail"
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, res)
}

// Register adds the /healthz and /readyz routes to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", h.Healthz)
	mux.HandleFunc("GET /readyz", h.Readyz)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"status":"error"}`, http.StatusInternalServerError)
	}
}
