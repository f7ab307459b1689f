package params

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/VIDIPKUMAR/DefectDetectAI/internal/core/detect"
)

func writeParamsFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "params.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const validYAML = `max_side: 512
low_threshold: 20
high_threshold: 60
min_area: 50
max_area: 4000
min_aspect_ratio: 0.2
max_aspect_ratio: 8.0
base_confidence: 0.9
`

// =============================================================================
// Load / Parse
// =============================================================================

func TestLoad_ValidFile(t *testing.T) {
	p, err := Load(writeParamsFile(t, validYAML))
	require.NoError(t, err)

	assert.Equal(t, 512, p.MaxSide)
	assert.Equal(t, 20, p.LowThreshold)
	assert.Equal(t, 60, p.HighThreshold)
	assert.Equal(t, 0.9, p.BaseConfidence)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestParse_RejectsInvalidYAML(t *testing.T) {
	_, err := Parse([]byte("max_side: [unclosed"))
	assert.ErrorContains(t, err, "invalid YAML")
}

func TestParse_RejectsSchemaViolations(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"missing field", "max_side: 512\n"},
		{"wrong type", strings.Replace(validYAML, "max_side: 512", "max_side: big", 1)},
		{"unknown field", validYAML + "unknown_knob: 1\n"},
		{"out of range", strings.Replace(validYAML, "base_confidence: 0.9", "base_confidence: 2.0", 1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.content))
			assert.ErrorContains(t, err, "schema validation failed")
		})
	}
}

func TestParse_RejectsInconsistentThresholds(t *testing.T) {
	content := `max_side: 512
low_threshold: 60
high_threshold: 20
min_area: 50
max_area: 4000
min_aspect_ratio: 0.2
max_aspect_ratio: 8.0
base_confidence: 0.9
`
	_, err := Parse([]byte(content))
	assert.ErrorIs(t, err, detect.ErrInvalidParams)
}

func TestDefaults(t *testing.T) {
	assert.Equal(t, detect.DefaultParams(), Defaults())
	assert.NotEmpty(t, DefaultsYAML())
}

// =============================================================================
// Watcher
// =============================================================================

func TestWatcher_ReloadsOnWrite(t *testing.T) {
	path := writeParamsFile(t, validYAML)
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	reloaded := make(chan detect.Params, 1)
	w, err := NewWatcher(path, logger, func(p detect.Params, err error) {
		if err == nil {
			reloaded <- p
		}
	})
	require.NoError(t, err)
	defer w.Close()

	assert.Equal(t, 512, w.Current().MaxSide)

	updated := "max_side: 256\n" + validYAML[len("max_side: 512\n"):]
	require.NoError(t, os.WriteFile(path, []byte(updated), 0o644))

	select {
	case p := <-reloaded:
		assert.Equal(t, 256, p.MaxSide)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for reload")
	}

	assert.Equal(t, 256, w.Current().MaxSide)
	assert.GreaterOrEqual(t, w.ReloadCount(), uint32(1))
}

func TestWatcher_KeepsPreviousParamsOnInvalidWrite(t *testing.T) {
	path := writeParamsFile(t, validYAML)
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	failed := make(chan error, 1)
	w, err := NewWatcher(path, logger, func(p detect.Params, err error) {
		if err != nil {
			failed <- err
		}
	})
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, os.WriteFile(path, []byte("max_side: nope\n"), 0o644))

	select {
	case reloadErr := <-failed:
		assert.Error(t, reloadErr)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for reload failure")
	}

	assert.Equal(t, 512, w.Current().MaxSide)
}

func TestWatcher_InitialLoadFailure(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	_, err := NewWatcher(filepath.Join(t.TempDir(), "missing.yaml"), logger, func(detect.Params, error) {})
	assert.Error(t, err)
}
