// Package health runs named dependency probes concurrently and folds them
// into one report. The indexer uses it as a preflight check of its sink and
// serves the same report next to the metrics endpoint.
package health

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"maps"
	"net/http"
	"slices"
	"strings"
	"sync"
	"time"

	apperrors "github.com/Adithya-Monish-Kumar-K/forum-search-index/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// Status is the health of one component or of the whole report.
type Status string

const (
	StatusUp   Status = "up"
	StatusDown Status = "down"
)

// Check probes one dependency. A nil error means healthy.
type Check func(ctx context.Context) error

// ComponentHealth is the result of one check.
type ComponentHealth struct {
	Status  Status `json:"status"`
	Message string `json:"message,omitempty"`
	Latency string `json:"latency"`
}

// Report aggregates every check. Status is down if any component is down.
type Report struct {
	Status     Status                     `json:"status"`
	Components map[string]ComponentHealth `json:"components"`
	Timestamp  string                     `json:"timestamp"`
}

// Err returns nil for a healthy report, otherwise an ErrSinkUnavailable
// naming the failed components.
func (r Report) Err() error {
	if r.Status == StatusUp {
		return nil
	}
	var failed []string
	for _, name := range slices.Sorted(maps.Keys(r.Components)) {
		if c := r.Components[name]; c.Status == StatusDown {
			failed = append(failed, name+": "+c.Message)
		}
	}
	return fmt.Errorf("%w: %s", apperrors.ErrSinkUnavailable, strings.Join(failed, "; "))
}

// Checker holds the registered checks.
type Checker struct {
	mu      sync.RWMutex
	checks  map[string]Check
	timeout time.Duration
	logger  *slog.Logger
}

// NewChecker returns a Checker that gives each probe at most timeout.
func NewChecker(timeout time.Duration) *Checker {
	return &Checker{
		checks:  make(map[string]Check),
		timeout: timeout,
		logger:  slog.Default().With("component", "health"),
	}
}

// Register adds or replaces the check called name.
func (c *Checker) Register(name string, check Check) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checks[name] = check
}

// Run executes every check concurrently.
func (c *Checker) Run(ctx context.Context) Report {
	c.mu.RLock()
	checks := maps.Clone(c.checks)
	c.mu.RUnlock()

	report := Report{
		Status:     StatusUp,
		Components: make(map[string]ComponentHealth, len(checks)),
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
	}
	var mu sync.Mutex
	var g errgroup.Group
	for name, check := range checks {
		g.Go(func() error {
			checkCtx, cancel := context.WithTimeout(ctx, c.timeout)
			defer cancel()
			start := time.Now()
			err := check(checkCtx)
			result := ComponentHealth{
				Status:  StatusUp,
				Latency: time.Since(start).Round(time.Millisecond).String(),
			}
			if err != nil {
				result.Status = StatusDown
				result.Message = err.Error()
				c.logger.Warn("health check failed", "check", name, "error", err)
			}
			mu.Lock()
			report.Components[name] = result
			if result.Status == StatusDown {
				report.Status = StatusDown
			}
			mu.Unlock()
			return nil
		})
	}
	g.Wait()
	return report
}

// Handler serves the current report as JSON, with 503 when anything is down.
func (c *Checker) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		report := c.Run(r.Context())
		w.Header().Set("Content-Type", "application/json")
		if report.Status == StatusUp {
			w.WriteHeader(http.StatusOK)
		} else {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(report)
	}
}
