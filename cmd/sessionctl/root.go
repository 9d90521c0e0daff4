package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/sessionforge/sessionctl/internal/config"
	"github.com/sessionforge/sessionctl/internal/telemetry"
)

// version and commit are set at build time via -ldflags.
var (
	version = "dev"
	commit  = "unknown"
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "sessionctl",
		Short:         "sessionctl",
		Long:          "sessionctl manages coding-agent sessions, their workspace branches, and the changesets proposed from them.",
		SilenceErrors: true,
		SilenceUsage:  true,
		CompletionOptions: cobra.CompletionOptions{
			HiddenDefaultCmd: true,
		},
		// Telemetry preference is read straight from settings, never through
		// newApp, so a command that can't open its storage backend still
		// gets tracked (or not) correctly rather than silently skipping it.
		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			dir, err := os.Getwd()
			if err != nil {
				return
			}
			settings, err := config.Load(dir)
			if err != nil {
				return
			}

			client := telemetry.NewClient(version, settings.Telemetry, os.Getenv("SESSIONCTL_TELEMETRY_OPTOUT"))
			defer client.Close()
			client.TrackCommand(cmd, settings.DefaultRepoBackend, settings.Backend)
		},
	}

	cmd.AddCommand(newSessionCmd())
	cmd.AddCommand(newChangesetCmd())
	cmd.AddCommand(newMigrateCmd())
	cmd.AddCommand(newDoctorCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Printf("sessionctl %s (%s)\n", version, commit)
		},
	}
}
