package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/VIDIPKUMAR/DefectDetectAI/internal/shell/smoke"
)

// NewSmokeCmd creates the smoke command.
func NewSmokeCmd() *cobra.Command {
	var (
		baseURL  string
		deadline time.Duration
		spawn    string
	)

	cmd := &cobra.Command{
		Use:   "smoke",
		Short: "Run smoke probes against a detection service",
		Long: `Smoke polls the service's health, readiness, root, metrics and OpenAPI endpoints
with exponential backoff until each answers or the deadline expires.

With --spawn the server process is started first and terminated when the
probes finish; readiness is established by the probes, not a fixed wait.

The command exits non-zero when any probe fails.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := newLogger(cmd)
			out := cmd.OutOrStdout()
			ctx := cmd.Context()

			if spawn != "" {
				proc, err := smoke.StartProcess(ctx, strings.Fields(spawn), nil, logger)
				if err != nil {
					return err
				}
				defer func() {
					if err := proc.Stop(); err != nil {
						logger.Warn("failed to stop server process", "error", err)
					}
				}()
			}

			runner := smoke.NewRunner(nil, logger)
			results, err := runner.Run(ctx, smoke.Config{
				Probes:   smoke.DefaultProbes(strings.TrimRight(baseURL, "/")),
				Deadline: deadline,
			})

			for _, res := range results {
				status := "PASS"
				detail := fmt.Sprintf("status=%d attempts=%d latency=%s", res.Status, res.Attempts, res.Latency.Round(time.Millisecond))
				if !res.OK {
					status = "FAIL"
					if res.Err != nil {
						detail = res.Err.Error()
					}
				}
				fmt.Fprintf(out, "%-4s %-10s %s\n", status, res.Probe, detail)
			}

			return err
		},
	}

	cmd.Flags().StringVar(&baseURL, "base-url", "http://localhost:8000", "Base URL of the service under test")
	cmd.Flags().DurationVar(&deadline, "timeout", smoke.DefaultDeadline, "Per-probe deadline")
	cmd.Flags().StringVar(&spawn, "spawn", "", "Server command to start before probing (optional)")

	return cmd
}
