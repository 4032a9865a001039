// Package health serves the readiness endpoint. Required dependencies make the
// service unavailable when down; optional ones only degrade it.
package health

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
)

// Checker verifies that a dependency is reachable.
type Checker interface {
	Check(ctx context.Context) error
}

// CheckFunc adapts a plain function to Checker.
type CheckFunc func(ctx context.Context) error

func (f CheckFunc) Check(ctx context.Context) error { return f(ctx) }

const (
	StatusOK       = "ok"
	StatusDegraded = "degraded"
	StatusError    = "error"
)

type Handler struct {
	required map[string]Checker
	optional map[string]Checker
	timeout  time.Duration
	logger   *slog.Logger
}

func NewHandler(logger *slog.Logger, required, optional map[string]Checker) *Handler {
	return &Handler{required: required, optional: optional, timeout: 3 * time.Second, logger: logger}
}

func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.check)
	return r
}

type Response struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

func (h *Handler) check(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	resp := Response{Status: StatusOK, Checks: make(map[string]string, len(h.required)+len(h.optional))}
	var mu sync.Mutex
	var wg sync.WaitGroup

	run := func(name string, c Checker, failed string) {
		defer wg.Done()
		err := c.Check(ctx)

		mu.Lock()
		defer mu.Unlock()
		if err == nil {
			resp.Checks[name] = StatusOK
			return
		}
		h.logger.Error("health check failed", "name", name, "error", err)
		resp.Checks[name] = StatusError
		if resp.Status != StatusError {
			resp.Status = failed
		}
	}

	for name, c := range h.required {
		wg.Add(1)
		go run(name, c, StatusError)
	}
	for name, c := range h.optional {
		wg.Add(1)
		go run(name, c, StatusDegraded)
	}
	wg.Wait()

	status := http.StatusOK
	if resp.Status == StatusError {
		status = http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(resp)
}
