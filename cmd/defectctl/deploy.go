package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/VIDIPKUMAR/DefectDetectAI/internal/core/compose"
	"github.com/VIDIPKUMAR/DefectDetectAI/internal/shell/deploy"
	"github.com/VIDIPKUMAR/DefectDetectAI/internal/shell/docker"
)

// NewDeployCmd creates the deploy command.
func NewDeployCmd() *cobra.Command {
	var (
		stackFile    string
		stackName    string
		down         bool
		downVolumes  bool
		readyURL     string
		readyTimeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "deploy",
		Short: "Deploy the detection stack to a local Docker daemon",
		Long: `Deploy parses a compose-style stack file, builds or pulls the images,
ensures the stack network and named volumes, and starts the containers in
dependency order. The deployed API's readiness endpoint is polled with
backoff before the command reports success.

With --down the stack's containers and network are removed; named volumes
are retained unless --volumes is also given.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := newLogger(cmd)
			out := cmd.OutOrStdout()

			data, err := os.ReadFile(stackFile)
			if err != nil {
				return fmt.Errorf("failed to read stack file: %w", err)
			}
			stack, err := compose.ParseStack(string(data))
			if err != nil {
				return err
			}

			cli, err := docker.NewDockerClient("")
			if err != nil {
				return err
			}
			defer cli.Close()

			orch := deploy.NewOrchestrator(cli, logger, stackName)

			if down {
				if err := orch.Down(stack, deploy.DownOptions{RemoveVolumes: downVolumes}); err != nil {
					return err
				}
				fmt.Fprintf(out, "stack %s removed\n", stackName)
				return nil
			}

			result, err := orch.Up(cmd.Context(), stack, deploy.UpOptions{
				ContextDir:   filepath.Dir(stackFile),
				ReadyURL:     readyURL,
				ReadyTimeout: readyTimeout,
			})
			if err != nil {
				return err
			}

			for svc, id := range result.Containers {
				fmt.Fprintf(out, "service %-10s %s\n", svc, id)
			}
			if result.Endpoint != "" {
				fmt.Fprintf(out, "ready at %s\n", result.Endpoint)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&stackFile, "file", "f", "stack.yaml", "Stack file to deploy")
	cmd.Flags().StringVar(&stackName, "name", "defectdetect", "Stack name used to prefix and label resources")
	cmd.Flags().BoolVar(&down, "down", false, "Tear the stack down instead of deploying")
	cmd.Flags().BoolVar(&downVolumes, "volumes", false, "With --down, also remove the stack's named volumes")
	cmd.Flags().StringVar(&readyURL, "ready-url", "http://localhost:8000/ready", "Readiness endpoint to poll after start")
	cmd.Flags().DurationVar(&readyTimeout, "ready-timeout", 2*time.Minute, "How long to wait for readiness")

	return cmd
}
