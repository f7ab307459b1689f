package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for defectctl.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "defectctl",
		Short: "Operations tooling for the defect detection service",
		Long: `defectctl prepares, tests and deploys the visual defect detection service.

  setup   - create the working directory layout and install detection params
  smoke   - probe a running service until it answers or a deadline expires
  deploy  - build and run the service stack on a local Docker daemon`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")

	cmd.AddCommand(NewSetupCmd())
	cmd.AddCommand(NewSmokeCmd())
	cmd.AddCommand(NewDeployCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	// .env values feed config resolution but never override a set variable
	_ = godotenv.Load()

	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// newLogger builds the CLI logger, honoring the --verbose flag.
func newLogger(cmd *cobra.Command) *slog.Logger {
	level := slog.LevelInfo
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		level = slog.LevelDebug
	}
	return slog.New(tint.NewHandler(os.Stderr, &tint.Options{Level: level}))
}
