package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/sessionforge/sessionctl/internal/migrate"
)

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Move sessions from the legacy per-repo layout to the flat layout",
	}
	cmd.AddCommand(newMigratePlanCmd())
	cmd.AddCommand(newMigrateRunCmd())
	cmd.AddCommand(newMigrateRollbackCmd())
	return cmd
}

func newMigratePlanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "plan",
		Short: "Preview which sessions would move and where",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			sessions, err := migrate.Detect(cmd.Context(), a.baseDir)
			if err != nil {
				return err
			}
			if len(sessions) == 0 {
				cmd.Println("nothing to migrate")
				return nil
			}
			plan := migrate.PlanMoves(a.baseDir, sessions, time.Now())
			for _, move := range plan.Moves {
				cmd.Printf("%s  ->  %s\n", move.Session.Path, move.Destination)
			}
			cmd.Printf("\nbackup would be written to %s\n", plan.BackupDir)
			return nil
		},
	}
}

func newMigrateRunCmd() *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Move legacy sessions into the flat layout, backing up first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			sessions, err := migrate.Detect(cmd.Context(), a.baseDir)
			if err != nil {
				return err
			}
			plan := migrate.PlanMoves(a.baseDir, sessions, time.Now())

			if !dryRun {
				if err := migrate.Backup(cmd.Context(), plan); err != nil {
					return err
				}
			}

			report := migrate.Migrate(cmd.Context(), plan, dryRun)
			for _, id := range report.MigratedSessions {
				cmd.Printf("moved %s\n", id)
			}
			for _, failed := range report.FailedSessions {
				cmd.Printf("failed %s: %s\n", failed.ID, failed.Error)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "report what would move without touching anything")
	return cmd
}

func newMigrateRollbackCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rollback <backup-dir>",
		Short: "Restore sessions from a migration backup",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := migrate.Rollback(cmd.Context(), args[0]); err != nil {
				return err
			}
			cmd.Println("rollback complete")
			return nil
		},
	}
}
