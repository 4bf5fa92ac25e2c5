// Package health serves the practice server's liveness and readiness
// endpoints.
//
//   - /healthz — liveness; a process that reaches the handler can serve
//     HTTP, so it always answers 200.
//   - /readyz  — readiness; runs the registered checks (exercise library,
//     progress breaker, database) in parallel and answers 503 while any
//     of them fails, keeping the server out of rotation.
package health

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

// readyTimeout bounds a /readyz evaluation. The deadline is shared by all
// checks since they run in parallel.
const readyTimeout = 3 * time.Second

// Checker covers one dependency of the practice server.
type Checker struct {
	// Name keys the check in the /readyz response, e.g. "exercises",
	// "progress-breaker", "database".
	Name string

	// Check returns nil while the dependency can serve practice sessions.
	// It must respect ctx cancellation.
	Check func(ctx context.Context) error
}

// checkStatus is one entry in the readiness response body.
type checkStatus struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// response is the body of both endpoints.
type response struct {
	Status string                 `json:"status"`
	Checks map[string]checkStatus `json:"checks,omitempty"`
}

// Handler serves /healthz and /readyz. The check list is fixed at
// construction; the handler is safe for concurrent use.
type Handler struct {
	checkers []Checker
}

// New creates a [Handler] evaluating the given checkers on each /readyz
// request.
func New(checkers ...Checker) *Handler {
	return &Handler{checkers: append([]Checker(nil), checkers...)}
}

// Healthz reports liveness and always answers 200.
func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, response{Status: "ok"})
}

// Readyz runs every check in parallel under a shared [readyTimeout]
// deadline. It answers 200 with per-check statuses when all pass, 503
// otherwise.
func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()

	errs := make([]error, len(h.checkers))
	var wg sync.WaitGroup
	for i, c := range h.checkers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = c.Check(ctx)
		}()
	}
	wg.Wait()

	res := response{Status: "ok", Checks: make(map[string]checkStatus, len(h.checkers))}
	code := http.StatusOK
	for i, c := range h.checkers {
		if err := errs[i]; err != nil {
			slog.Warn("health: readiness check failed", "check", c.Name, "err", err)
			res.Checks[c.Name] = checkStatus{Status: "fail", Error: err.Error()}
			res.Status = "fail"
			code = http.StatusServiceUnavailable
			continue
		}
		res.Checks[c.Name] = checkStatus{Status: "ok"}
	}
	writeJSON(w, code, res)
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
		slog.Warn("health: write response", "err", err)
	}
}
