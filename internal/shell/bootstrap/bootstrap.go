// Package bootstrap prepares a working directory for the detection service:
// directory layout, detection params installation and environment checks.
package bootstrap

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/VIDIPKUMAR/DefectDetectAI/internal/core/monitoring"
	"github.com/VIDIPKUMAR/DefectDetectAI/internal/shell/params"
)

// =============================================================================
// Params Sources
// =============================================================================

// ParamsSource identifies where the installed params file came from.
type ParamsSource string

const (
	ParamsFromFile     ParamsSource = "file"     // user-supplied file
	ParamsFromExample  ParamsSource = "example"  // example file in the working tree
	ParamsFromDefaults ParamsSource = "defaults" // embedded defaults
	ParamsExisting     ParamsSource = "existing" // dest already present
)

// =============================================================================
// Directory Layout
// =============================================================================

// EnsureDirs creates the service's directory layout: the upload area under
// the data dir, the models dir and the logs dir. It returns the paths it
// ensured.
func EnsureDirs(dataDir, modelsDir, logsDir string) ([]string, error) {
	dirs := []string{
		filepath.Join(dataDir, "upload"),
		modelsDir,
		logsDir,
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	return dirs, nil
}

// =============================================================================
// Params Installation
// =============================================================================

// InstallParams writes a detection params file to dest using the fallback
// chain: the requested file, then the example file, then embedded defaults.
// Candidate files are validated before installation so a broken file never
// shadows a working fallback. An existing dest is left untouched.
func InstallParams(requested, example, dest string, logger *slog.Logger) (ParamsSource, error) {
	if _, err := os.Stat(dest); err == nil {
		logger.Info("params file already present", "path", dest)
		return ParamsExisting, nil
	}

	for _, candidate := range []struct {
		path   string
		source ParamsSource
	}{
		{requested, ParamsFromFile},
		{example, ParamsFromExample},
	} {
		if candidate.path == "" {
			continue
		}
		data, err := os.ReadFile(candidate.path)
		if err != nil {
			if candidate.source == ParamsFromFile {
				// A file the user asked for must exist
				return "", fmt.Errorf("params file %s: %w", candidate.path, err)
			}
			continue
		}
		if _, err := params.Parse(data); err != nil {
			return "", fmt.Errorf("params file %s is invalid: %w", candidate.path, err)
		}
		if err := writeFile(dest, data); err != nil {
			return "", err
		}
		logger.Info("installed params file", "source", candidate.path, "dest", dest)
		return candidate.source, nil
	}

	if err := writeFile(dest, params.DefaultsYAML()); err != nil {
		return "", err
	}
	logger.Info("installed default params", "dest", dest)
	return ParamsFromDefaults, nil
}

func writeFile(dest string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", filepath.Dir(dest), err)
	}
	if err := os.WriteFile(dest, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", dest, err)
	}
	return nil
}

// =============================================================================
// Environment Checks
// =============================================================================

// CheckEnvironment verifies the surroundings the service will run in. Every
// check is advisory: callers report failures but proceed. Docker and Redis
// pings are optional and skipped when nil.
func CheckEnvironment(databaseDSN string, dockerPing, redisPing func() error) []monitoring.Check {
	var checks []monitoring.Check

	checks = append(checks, checkWritable(databaseDSN))

	if dockerPing != nil {
		check := monitoring.Check{Name: "docker", OK: true, Optional: true}
		if err := dockerPing(); err != nil {
			check.OK = false
			check.Detail = err.Error()
		}
		checks = append(checks, check)
	}

	if redisPing != nil {
		check := monitoring.Check{Name: "redis", OK: true, Optional: true}
		if err := redisPing(); err != nil {
			check.OK = false
			check.Detail = err.Error()
		}
		checks = append(checks, check)
	}

	return checks
}

// checkWritable probes that the database file's directory accepts writes.
func checkWritable(dsn string) monitoring.Check {
	check := monitoring.Check{Name: "database_writable", OK: true, Optional: true}

	dir := filepath.Dir(dsn)
	if dsn == ":memory:" || dsn == "" {
		return check
	}

	probe, err := os.CreateTemp(dir, ".write-probe-*")
	if err != nil {
		check.OK = false
		check.Detail = fmt.Sprintf("directory %s is not writable: %v", dir, err)
		return check
	}
	probe.Close()
	os.Remove(probe.Name())
	return check
}
