// Package cli implements the gridctl operator tool using Cobra. It covers the
// offline side of gridguard: scoring historical telemetry, opening captured
// alert streams, managing keys and reading the alert archive.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/smukkama/gridguard/pkg/config"
)

// newRootCmd builds the command tree. Subcommands read their defaults from
// the environment-backed configuration loaded before they run.
func newRootCmd() *cobra.Command {
	var cfg config.Config

	root := &cobra.Command{
		Use:   "gridctl",
		Short: "Operate the gridguard anomaly alerting pipeline",
		Long: `gridctl evaluates the detection model on labelled telemetry,
decrypts captured alert streams against the key directory, and manages
the key pool and the decrypted alert archive.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			cfg = *loaded
			return nil
		},
	}

	root.AddCommand(
		newEvaluateCmd(&cfg),
		newDecryptCmd(&cfg),
		newKeysCmd(&cfg),
		newAlertsCmd(&cfg),
	)
	return root
}

// Execute runs the root command. Called from main.go.
func Execute(version string) {
	root := newRootCmd()
	root.Version = version

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// stringOr returns flag unless it is empty
func stringOr(flag, fallback string) string {
	if flag != "" {
		return flag
	}
	return fallback
}
