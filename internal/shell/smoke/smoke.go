// Package smoke runs HTTP smoke probes against a running service.
package smoke

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"
)

// =============================================================================
// Probe Types
// =============================================================================

// Probe describes one HTTP check.
type Probe struct {
	Name         string
	URL          string
	ExpectStatus []int         // Empty means any 2xx
	Timeout      time.Duration // Per-attempt timeout; DefaultProbeTimeout when 0
}

// Config describes a smoke run.
type Config struct {
	Probes         []Probe
	Deadline       time.Duration // Total budget per probe; DefaultDeadline when 0
	InitialBackoff time.Duration // DefaultInitialBackoff when 0
	MaxBackoff     time.Duration // DefaultMaxBackoff when 0
	Concurrency    int           // Parallel probes; DefaultConcurrency when 0
}

// Result is the outcome of one probe.
type Result struct {
	Probe    string
	URL      string
	OK       bool
	Status   int // Last observed HTTP status, 0 if never reached
	Attempts int
	Latency  time.Duration // Latency of the final attempt
	Err      error         // Cause of failure, nil on success
}

const (
	DefaultProbeTimeout   = 5 * time.Second
	DefaultDeadline       = 60 * time.Second
	DefaultInitialBackoff = 200 * time.Millisecond
	DefaultMaxBackoff     = 2 * time.Second
	DefaultConcurrency    = 4
)

var ErrProbeFailed = errors.New("smoke probe failed")

// DefaultProbes returns the standard probe set for a deployed detection
// service.
func DefaultProbes(baseURL string) []Probe {
	return []Probe{
		{Name: "health", URL: baseURL + "/health", ExpectStatus: []int{http.StatusOK}},
		{Name: "ready", URL: baseURL + "/ready", ExpectStatus: []int{http.StatusOK}},
		{Name: "root", URL: baseURL + "/", ExpectStatus: []int{http.StatusOK}},
		{Name: "metrics", URL: baseURL + "/metrics", ExpectStatus: []int{http.StatusOK}},
		{Name: "openapi", URL: baseURL + "/api/v1/openapi.json", ExpectStatus: []int{http.StatusOK}},
	}
}

// =============================================================================
// Runner
// =============================================================================

// Runner executes smoke probes with retry and backoff.
type Runner struct {
	client *http.Client
	logger *slog.Logger
}

// NewRunner creates a Runner. A nil client uses http.DefaultClient and a nil
// logger discards output.
func NewRunner(client *http.Client, logger *slog.Logger) *Runner {
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Runner{
		client: client,
		logger: logger.With("component", "smoke"),
	}
}

// Run executes all probes and returns one Result per probe, in probe order.
// The returned error is non-nil when any probe failed.
func (r *Runner) Run(ctx context.Context, cfg Config) ([]Result, error) {
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}

	results := make([]Result, len(cfg.Probes))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i, probe := range cfg.Probes {
		g.Go(func() error {
			results[i] = r.runProbe(gctx, probe, cfg)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return results, err
	}

	for _, res := range results {
		if !res.OK {
			return results, fmt.Errorf("%w: %s", ErrProbeFailed, res.Probe)
		}
	}
	return results, nil
}

// runProbe polls one probe with exponential backoff until it passes or the
// deadline expires.
func (r *Runner) runProbe(ctx context.Context, probe Probe, cfg Config) Result {
	deadline := cfg.Deadline
	if deadline <= 0 {
		deadline = DefaultDeadline
	}
	backoff := cfg.InitialBackoff
	if backoff <= 0 {
		backoff = DefaultInitialBackoff
	}
	maxBackoff := cfg.MaxBackoff
	if maxBackoff <= 0 {
		maxBackoff = DefaultMaxBackoff
	}

	ctx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	result := Result{Probe: probe.Name, URL: probe.URL}

	for {
		result.Attempts++
		start := time.Now()
		status, err := r.attempt(ctx, probe)
		result.Latency = time.Since(start)
		result.Status = status

		if err == nil {
			result.OK = true
			r.logger.Debug("probe passed",
				"probe", probe.Name,
				"attempts", result.Attempts,
				"latency_ms", result.Latency.Milliseconds())
			return result
		}
		result.Err = err

		select {
		case <-ctx.Done():
			r.logger.Warn("probe failed",
				"probe", probe.Name,
				"attempts", result.Attempts,
				"error", err)
			return result
		case <-time.After(backoff):
		}

		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

// attempt performs a single HTTP GET and checks the status.
func (r *Runner) attempt(ctx context.Context, probe Probe) (int, error) {
	timeout := probe.Timeout
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, probe.URL, nil)
	if err != nil {
		return 0, err
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if !statusAccepted(resp.StatusCode, probe.ExpectStatus) {
		return resp.StatusCode, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return resp.StatusCode, nil
}

func statusAccepted(status int, expected []int) bool {
	if len(expected) == 0 {
		return status >= 200 && status < 300
	}
	for _, want := range expected {
		if status == want {
			return true
		}
	}
	return false
}
