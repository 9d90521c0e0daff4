package main

import (
	"os"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/sessionforge/sessionctl/internal/sessionrecord"
)

// orphanedSession is a session record whose workspace directory no longer
// exists on disk — typically left behind by a manual `rm -rf` of a session
// workdir that skipped `session delete`.
type orphanedSession struct {
	rec     sessionrecord.Record
	workdir string
}

func newDoctorCmd() *cobra.Command {
	var fix bool

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Find and optionally remove orphaned session records",
		Long:  "Scans every registered session for a missing workspace directory and offers to delete the orphaned record.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}

			records, err := a.store.List(cmd.Context())
			if err != nil {
				return err
			}

			var orphans []orphanedSession
			for _, rec := range records {
				workdir, err := a.store.GetSessionWorkdir(cmd.Context(), rec.Session)
				if err != nil {
					continue
				}
				if _, statErr := os.Stat(workdir); os.IsNotExist(statErr) {
					orphans = append(orphans, orphanedSession{rec: rec, workdir: workdir})
				}
			}

			if len(orphans) == 0 {
				cmd.Println("no orphaned sessions found")
				return nil
			}

			for _, o := range orphans {
				cmd.Printf("orphaned: %s (workdir missing: %s)\n", o.rec.Session, o.workdir)
			}

			if !fix {
				cmd.Println("\nrerun with --fix to remove these records")
				return nil
			}

			for _, o := range orphans {
				confirmed, err := confirmDiscard(o.rec.Session)
				if err != nil {
					return err
				}
				if !confirmed {
					continue
				}
				if _, err := a.store.Delete(cmd.Context(), o.rec.Session); err != nil {
					return err
				}
				cmd.Printf("removed %s\n", o.rec.Session)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&fix, "fix", false, "prompt to remove each orphaned session record")
	return cmd
}

func confirmDiscard(session string) (bool, error) {
	var confirmed bool
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Remove session " + session + "?").
				Value(&confirmed),
		),
	)
	if err := form.Run(); err != nil {
		return false, err
	}
	return confirmed, nil
}
