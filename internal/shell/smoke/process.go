package smoke

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"syscall"
	"time"
)

// =============================================================================
// Server Process Management
// =============================================================================

// Process is a spawned server under test. The caller stops it when the
// probes finish; readiness is established by the probes themselves rather
// than a fixed startup sleep.
type Process struct {
	cmd    *exec.Cmd
	logger *slog.Logger
	done   chan error
}

// StopTimeout is how long Stop waits after SIGTERM before killing.
const StopTimeout = 10 * time.Second

// StartProcess launches the given command with the extra environment
// appended to the current one. Stdout and stderr pass through.
func StartProcess(ctx context.Context, argv []string, extraEnv []string, logger *slog.Logger) (*Process, error) {
	if len(argv) == 0 {
		return nil, fmt.Errorf("empty command")
	}

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Env = append(os.Environ(), extraEnv...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start %s: %w", argv[0], err)
	}

	p := &Process{
		cmd:    cmd,
		logger: logger.With("component", "smoke", "pid", cmd.Process.Pid),
		done:   make(chan error, 1),
	}
	go func() {
		p.done <- cmd.Wait()
	}()

	p.logger.Info("server process started", "command", argv[0])
	return p, nil
}

// Exited reports whether the process has already terminated.
func (p *Process) Exited() bool {
	select {
	case err := <-p.done:
		p.done <- err
		return true
	default:
		return false
	}
}

// Stop terminates the process with SIGTERM, escalating to SIGKILL after
// StopTimeout.
func (p *Process) Stop() error {
	if p.Exited() {
		return nil
	}

	if err := p.cmd.Process.Signal(syscall.SIGTERM); err != nil {
		return fmt.Errorf("failed to signal process: %w", err)
	}

	// Re-send the exit result so Exited keeps reporting true afterwards.
	select {
	case err := <-p.done:
		p.done <- err
		p.logger.Info("server process stopped")
		return nil
	case <-time.After(StopTimeout):
		p.logger.Warn("server process did not exit, killing")
		if err := p.cmd.Process.Kill(); err != nil {
			return fmt.Errorf("failed to kill process: %w", err)
		}
		err := <-p.done
		p.done <- err
		return nil
	}
}
