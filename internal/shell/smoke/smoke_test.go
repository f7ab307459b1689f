package smoke

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Test Helpers
// =============================================================================

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig(probes ...Probe) Config {
	return Config{
		Probes:         probes,
		Deadline:       3 * time.Second,
		InitialBackoff: 10 * time.Millisecond,
		MaxBackoff:     50 * time.Millisecond,
	}
}

// =============================================================================
// Runner Tests
// =============================================================================

func TestRun_AllProbesPass(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	runner := NewRunner(srv.Client(), testLogger())
	results, err := runner.Run(context.Background(), testConfig(
		Probe{Name: "health", URL: srv.URL + "/health", ExpectStatus: []int{200}},
		Probe{Name: "ready", URL: srv.URL + "/ready", ExpectStatus: []int{200}},
	))
	require.NoError(t, err)

	require.Len(t, results, 2)
	for _, res := range results {
		assert.True(t, res.OK)
		assert.Equal(t, 200, res.Status)
		assert.Equal(t, 1, res.Attempts)
		assert.NoError(t, res.Err)
	}
}

func TestRun_RetriesUntilReady(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	runner := NewRunner(srv.Client(), testLogger())
	results, err := runner.Run(context.Background(), testConfig(
		Probe{Name: "ready", URL: srv.URL + "/ready", ExpectStatus: []int{200}},
	))
	require.NoError(t, err)

	require.Len(t, results, 1)
	assert.True(t, results[0].OK)
	assert.Equal(t, 3, results[0].Attempts)
}

func TestRun_FailsAfterDeadline(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	runner := NewRunner(srv.Client(), testLogger())
	cfg := testConfig(Probe{Name: "ready", URL: srv.URL + "/ready", ExpectStatus: []int{200}})
	cfg.Deadline = 100 * time.Millisecond

	results, err := runner.Run(context.Background(), cfg)
	require.ErrorIs(t, err, ErrProbeFailed)

	require.Len(t, results, 1)
	assert.False(t, results[0].OK)
	assert.Equal(t, 500, results[0].Status)
	assert.Greater(t, results[0].Attempts, 1)
	assert.ErrorContains(t, results[0].Err, "unexpected status 500")
}

func TestRun_ConnectionRefused(t *testing.T) {
	runner := NewRunner(nil, testLogger())
	cfg := testConfig(Probe{Name: "ready", URL: "http://127.0.0.1:1/ready"})
	cfg.Deadline = 100 * time.Millisecond

	results, err := runner.Run(context.Background(), cfg)
	require.ErrorIs(t, err, ErrProbeFailed)
	assert.False(t, results[0].OK)
	assert.Equal(t, 0, results[0].Status)
}

func TestRun_ContextCanceled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	runner := NewRunner(srv.Client(), testLogger())
	results, err := runner.Run(ctx, testConfig(
		Probe{Name: "ready", URL: srv.URL + "/ready", ExpectStatus: []int{200}},
	))
	require.Error(t, err)
	assert.False(t, results[0].OK)
}

func TestStatusAccepted(t *testing.T) {
	assert.True(t, statusAccepted(200, nil))
	assert.True(t, statusAccepted(204, nil))
	assert.False(t, statusAccepted(301, nil))
	assert.True(t, statusAccepted(503, []int{200, 503}))
	assert.False(t, statusAccepted(404, []int{200}))
}

func TestDefaultProbes(t *testing.T) {
	probes := DefaultProbes("http://localhost:8000")
	require.Len(t, probes, 5)
	assert.Equal(t, "http://localhost:8000/health", probes[0].URL)
	assert.Equal(t, "http://localhost:8000/ready", probes[1].URL)
}

// =============================================================================
// Process Tests
// =============================================================================

func TestStartProcess_AndStop(t *testing.T) {
	p, err := StartProcess(context.Background(), []string{"sleep", "30"}, nil, testLogger())
	require.NoError(t, err)

	assert.False(t, p.Exited())
	require.NoError(t, p.Stop())

	// Exit state must survive the stop and repeated queries.
	assert.True(t, p.Exited())
	assert.True(t, p.Exited())
	assert.NoError(t, p.Stop())
}

func TestStartProcess_EmptyCommand(t *testing.T) {
	_, err := StartProcess(context.Background(), nil, nil, testLogger())
	assert.Error(t, err)
}

func TestStartProcess_ExitDetected(t *testing.T) {
	p, err := StartProcess(context.Background(), []string{"true"}, nil, testLogger())
	require.NoError(t, err)

	assert.Eventually(t, p.Exited, 2*time.Second, 10*time.Millisecond)
	assert.NoError(t, p.Stop())
}
