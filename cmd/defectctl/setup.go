package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/VIDIPKUMAR/DefectDetectAI/internal/shell/bootstrap"
	"github.com/VIDIPKUMAR/DefectDetectAI/internal/shell/docker"
)

// NewSetupCmd creates the setup command.
func NewSetupCmd() *cobra.Command {
	var (
		dataDir     string
		modelsDir   string
		logsDir     string
		paramsFile  string
		exampleFile string
		destFile    string
		databaseDSN string
		checkDocker bool
	)

	cmd := &cobra.Command{
		Use:   "setup",
		Short: "Prepare the working directory for the detection service",
		Long: `Setup creates the service's directory layout (upload area, models, logs)
and installs a detection params file. The params file comes from the first
available source: a file given with --params, the example file in the working
tree, or built-in defaults.

Environment checks (database directory writable, Docker reachable) are
advisory: failures are reported but never abort setup.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := newLogger(cmd)
			out := cmd.OutOrStdout()

			dirs, err := bootstrap.EnsureDirs(dataDir, modelsDir, logsDir)
			if err != nil {
				return err
			}
			for _, dir := range dirs {
				fmt.Fprintf(out, "dir     %s\n", dir)
			}

			source, err := bootstrap.InstallParams(paramsFile, exampleFile, destFile, logger)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "params  %s (%s)\n", destFile, source)

			var dockerPing func() error
			if checkDocker {
				dockerPing = func() error {
					cli, err := docker.NewDockerClient("")
					if err != nil {
						return err
					}
					defer cli.Close()
					return cli.Ping()
				}
			}

			for _, check := range bootstrap.CheckEnvironment(databaseDSN, dockerPing, nil) {
				status := "ok"
				if !check.OK {
					status = "warn: " + check.Detail
				}
				fmt.Fprintf(out, "check   %-20s %s\n", check.Name, status)
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&dataDir, "data", "./data", "Data directory")
	cmd.Flags().StringVar(&modelsDir, "models", "./models", "Models directory")
	cmd.Flags().StringVar(&logsDir, "logs", "./logs", "Logs directory")
	cmd.Flags().StringVar(&paramsFile, "params", "", "Params file to install (optional)")
	cmd.Flags().StringVar(&exampleFile, "example", "params.example.yaml", "Example params file fallback")
	cmd.Flags().StringVar(&destFile, "dest", "./models/params.yaml", "Where to install the params file")
	cmd.Flags().StringVar(&databaseDSN, "database-dsn", "./data/defectdetect.db", "Database path to verify")
	cmd.Flags().BoolVar(&checkDocker, "check-docker", false, "Also verify the Docker daemon is reachable")

	return cmd
}
