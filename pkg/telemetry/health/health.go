// Package health exposes liveness and readiness probes for the
// enforcement agent's operational endpoint.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"
)

// CheckFunc probes one component. A nil return means healthy.
type CheckFunc func(ctx context.Context) error

// CheckResult is the outcome of a single component check.
type CheckResult struct {
	Status   string        `json:"status"`
	Message  string        `json:"message,omitempty"`
	Duration time.Duration `json:"duration_ms,omitempty"`
}

// Status aggregates the component checks for one probe.
type Status struct {
	Status    string                 `json:"status"`
	Checks    map[string]CheckResult `json:"checks,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

// Checker runs registered component checks for the readiness probe.
type Checker struct {
	mu      sync.RWMutex
	checks  map[string]CheckFunc
	timeout time.Duration
}

// New creates a checker. timeout bounds each component check; zero
// defaults to 5 seconds.
func New(timeout time.Duration) *Checker {
	if timeout == 0 {
		timeout = 5 * time.Second
	}
	return &Checker{
		checks:  make(map[string]CheckFunc),
		timeout: timeout,
	}
}

// Register adds or replaces a named component check.
func (c *Checker) Register(name string, check CheckFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checks[name] = check
}

// Readiness runs all registered checks and aggregates them. Any
// unhealthy component degrades the overall status.
func (c *Checker) Readiness(ctx context.Context) Status {
	c.mu.RLock()
	checks := make(map[string]CheckFunc, len(c.checks))
	for name, check := range c.checks {
		checks[name] = check
	}
	c.mu.RUnlock()

	results := make(map[string]CheckResult, len(checks))
	status := "ready"
	for name, check := range checks {
		result := c.run(ctx, check)
		results[name] = result
		if result.Status != "ok" {
			status = "degraded"
		}
	}

	return Status{
		Status:    status,
		Checks:    results,
		Timestamp: time.Now().UTC(),
	}
}

func (c *Checker) run(ctx context.Context, check CheckFunc) CheckResult {
	checkCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	err := check(checkCtx)
	duration := time.Since(start)

	if err != nil {
		return CheckResult{Status: "unhealthy", Message: err.Error(), Duration: duration}
	}
	return CheckResult{Status: "ok", Duration: duration}
}

// LivenessHandler answers the liveness probe: the process is up.
func (c *Checker) LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		writeJSON(w, r, http.StatusOK, Status{
			Status:    "ok",
			Timestamp: time.Now().UTC(),
		})
	}
}

// ReadinessHandler answers the readiness probe, returning 503 when any
// component check fails.
func (c *Checker) ReadinessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		status := c.Readiness(r.Context())
		code := http.StatusOK
		if status.Status != "ready" {
			code = http.StatusServiceUnavailable
		}
		writeJSON(w, r, code, status)
	}
}

// Mount registers the probe endpoints on mux under /health and /ready.
func (c *Checker) Mount(mux *http.ServeMux) {
	mux.HandleFunc("/health", c.LivenessHandler())
	mux.HandleFunc("/ready", c.ReadinessHandler())
}

func writeJSON(w http.ResponseWriter, r *http.Request, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if r.Method != http.MethodHead {
		_ = json.NewEncoder(w).Encode(v)
	}
}
