package e2e

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/VIDIPKUMAR/DefectDetectAI/internal/shell/api"
	"github.com/VIDIPKUMAR/DefectDetectAI/internal/shell/params"
	"github.com/VIDIPKUMAR/DefectDetectAI/internal/shell/smoke"
)

// =============================================================================
// Smoke Tests
// =============================================================================

// TestE2E_HealthCheck verifies the server is running and responding.
func TestE2E_HealthCheck(t *testing.T) {
	resp := HTTPGet(t, baseURL+"/health")
	body := decodeJSON[api.HealthResponse](t, resp)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "healthy", body.Status)
}

// TestE2E_ReadyCheck verifies the store and detector are wired up.
func TestE2E_ReadyCheck(t *testing.T) {
	resp := HTTPGet(t, baseURL+"/ready")
	body := decodeJSON[api.ReadyResponse](t, resp)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body.Checks["database"])
	assert.Equal(t, "ok", body.Checks["detector"])
}

// TestE2E_SmokeProbes runs the full probe set against the live server.
func TestE2E_SmokeProbes(t *testing.T) {
	runner := smoke.NewRunner(testClient, nil)
	results, err := runner.Run(context.Background(), smoke.Config{
		Probes:   smoke.DefaultProbes(baseURL),
		Deadline: 10 * time.Second,
	})
	require.NoError(t, err)
	require.Len(t, results, 5)
	for _, res := range results {
		assert.True(t, res.OK, "probe %s failed: %v", res.Probe, res.Err)
	}
}

// =============================================================================
// Detection Flow Tests
// =============================================================================

// TestE2E_DetectCleanImage verifies a uniform image yields no defects.
func TestE2E_DetectCleanImage(t *testing.T) {
	result := DetectImage(t, "clean.png", cleanImagePNG(t))

	assert.Equal(t, "success", result.Status)
	assert.Equal(t, 0, result.DefectsFound)
	assert.Equal(t, "accepted", result.Verdict)
	assert.NotEmpty(t, result.ID)
}

// TestE2E_DetectDefectImage verifies a blob image is flagged and persisted.
func TestE2E_DetectDefectImage(t *testing.T) {
	result := DetectImage(t, "blob.png", defectImagePNG(t))

	assert.Equal(t, "success", result.Status)
	assert.Greater(t, result.DefectsFound, 0)
	assert.Equal(t, "rejected", result.Verdict)
	require.NotEmpty(t, result.Defects)
	assert.NotEmpty(t, result.Defects[0].Class)

	// The inspection must be retrievable by ID.
	resp := HTTPGet(t, fmt.Sprintf("%s/api/v1/inspections/%s", baseURL, result.ID))
	fetched := decodeJSON[api.DetectResponse](t, resp)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, result.ID, fetched.ID)
	assert.Equal(t, result.DefectsFound, fetched.DefectsFound)
}

// TestE2E_DetectRejectsNonImage verifies garbage uploads get a 400.
func TestE2E_DetectRejectsNonImage(t *testing.T) {
	resp := PostDetect(t, "notes.txt", []byte("not an image"))
	body := decodeJSON[api.ErrorResponse](t, resp)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.NotEmpty(t, body.Error)
}

// TestE2E_BatchDetect verifies a mixed batch is summarized correctly.
func TestE2E_BatchDetect(t *testing.T) {
	resp := PostBatchDetect(t, []upload{
		{"clean.png", cleanImagePNG(t)},
		{"blob.png", defectImagePNG(t)},
	})
	body := decodeJSON[api.BatchDetectResponse](t, resp)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 2, body.TotalImages)
	assert.Equal(t, 1, body.ImagesWithDefects)
	assert.Greater(t, body.TotalDefects, 0)
	require.Len(t, body.Results, 2)
}

// TestE2E_HistoryAndStats verifies inspections accumulate across requests.
func TestE2E_HistoryAndStats(t *testing.T) {
	DetectImage(t, "history.png", defectImagePNG(t))

	resp := HTTPGet(t, baseURL+"/api/v1/history?limit=5")
	history := decodeJSON[api.HistoryResponse](t, resp)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Greater(t, history.Count, 0)
	require.NotEmpty(t, history.Inspections)
	assert.NotEmpty(t, history.Inspections[0].ID)

	resp = HTTPGet(t, baseURL+"/api/v1/stats")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()
}

// TestE2E_InspectionNotFound verifies unknown IDs yield a 404.
func TestE2E_InspectionNotFound(t *testing.T) {
	resp := HTTPGet(t, baseURL+"/api/v1/inspections/00000000-0000-0000-0000-000000000000")
	body := decodeJSON[api.ErrorResponse](t, resp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.NotEmpty(t, body.Error)
}

// =============================================================================
// Params Hot Reload
// =============================================================================

// TestE2E_ParamsHotReload rewrites the params file and waits for the running
// detector to pick it up.
func TestE2E_ParamsHotReload(t *testing.T) {
	before := testWatcher.ReloadCount()

	// Raise min_area so the blob fixture falls below the defect floor.
	strict := []byte(`max_side: 1024
low_threshold: 10
high_threshold: 50
min_area: 100000
max_area: 200000
min_aspect_ratio: 0.1
max_aspect_ratio: 10.0
base_confidence: 0.85
`)
	require.NoError(t, os.WriteFile(paramsFile, strict, 0o644))

	require.Eventually(t, func() bool {
		return testWatcher.ReloadCount() > before
	}, 10*time.Second, 100*time.Millisecond, "params reload never observed")

	result := DetectImage(t, "strict.png", defectImagePNG(t))
	assert.Equal(t, 0, result.DefectsFound)
	assert.Equal(t, "accepted", result.Verdict)

	// Restore defaults for any tests running after this one.
	require.NoError(t, os.WriteFile(paramsFile, params.DefaultsYAML(), 0o644))
	require.Eventually(t, func() bool {
		return testWatcher.ReloadCount() > before+1
	}, 10*time.Second, 100*time.Millisecond)
}
