package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/sessionforge/sessionctl/internal/approval"
	"github.com/sessionforge/sessionctl/internal/changeset"
	"github.com/sessionforge/sessionctl/internal/sessionrecord"
)

func newChangesetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "changeset",
		Short: "Propose, approve, and merge changesets for a session",
	}
	cmd.AddCommand(newChangesetListCmd())
	cmd.AddCommand(newChangesetCreateCmd())
	cmd.AddCommand(newChangesetApproveCmd())
	cmd.AddCommand(newChangesetMergeCmd())
	cmd.AddCommand(newChangesetDiffCmd())
	return cmd
}

// sessionAdapter resolves the session record and its changeset.Adapter
// together, since every changeset subcommand needs both.
func sessionAdapter(a *app, cmd *cobra.Command, session string) (changeset.Adapter, *sessionrecord.Record, error) {
	rec, err := a.store.Get(cmd.Context(), session)
	if err != nil {
		return nil, nil, err
	}
	if rec == nil {
		return nil, nil, fmt.Errorf("session %q not found", session)
	}
	workdir := a.store.GetRepoPath(rec)
	adapter, err := a.changesetAdapter(rec.RepoURL, workdir)
	if err != nil {
		return nil, nil, err
	}
	return adapter, rec, nil
}

func newChangesetListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list <session>",
		Short: "List open changesets for a session's repository",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			adapter, _, err := sessionAdapter(a, cmd, args[0])
			if err != nil {
				return err
			}
			changesets, err := adapter.List(cmd.Context())
			if err != nil {
				return err
			}
			for _, cs := range changesets {
				cmd.Printf("%s\t%s\t%s\n", cs.ID, cs.Status, cs.Title)
			}
			return nil
		},
	}
}

func newChangesetCreateCmd() *cobra.Command {
	var source, target, title, body string

	cmd := &cobra.Command{
		Use:   "create <session>",
		Short: "Propose a changeset from the session's branch",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			adapter, rec, err := sessionAdapter(a, cmd, args[0])
			if err != nil {
				return err
			}
			if source == "" {
				source = rec.Branch
			}
			opts := approval.CreateOptions{SourceBranch: source, TargetBranch: target, Title: title, Body: body}
			updated, err := a.engine.Create(cmd.Context(), rec.Session, adapter, opts)
			if err != nil {
				return err
			}
			cmd.Printf("proposed changeset %s for session %s\n", updated.PRBranch, rec.Session)
			return nil
		},
	}
	cmd.Flags().StringVar(&source, "source", "", "source branch (defaults to the session's branch)")
	cmd.Flags().StringVar(&target, "target", "main", "target branch")
	cmd.Flags().StringVar(&title, "title", "", "changeset title")
	cmd.Flags().StringVar(&body, "body", "", "changeset description")
	return cmd
}

func newChangesetApproveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "approve <session>",
		Short: "Record approval for a session's changeset",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			adapter, rec, err := sessionAdapter(a, cmd, args[0])
			if err != nil {
				return err
			}
			updated, err := a.engine.Approve(cmd.Context(), rec.Session, adapter)
			if err != nil {
				return err
			}
			cmd.Printf("approved changeset %s\n", updated.PRBranch)
			return nil
		},
	}
}

func newChangesetMergeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "merge <session>",
		Short: "Merge a session's approved changeset",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			adapter, rec, err := sessionAdapter(a, cmd, args[0])
			if err != nil {
				return err
			}
			updated, err := a.engine.Merge(cmd.Context(), rec.Session, adapter)
			if err != nil {
				return err
			}
			cmd.Printf("merged changeset %s\n", updated.PRBranch)
			return nil
		},
	}
}

func newChangesetDiffCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "diff <session>",
		Short: "Show the diff of a session's changeset",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			adapter, rec, err := sessionAdapter(a, cmd, args[0])
			if err != nil {
				return err
			}
			if rec.PRBranch == "" {
				return fmt.Errorf("session %q has no changeset", args[0])
			}
			details, err := adapter.GetDetails(cmd.Context(), rec.PRBranch)
			if err != nil {
				return err
			}
			cmd.Print(pageDiff(details.Diff))
			return nil
		},
	}
}

// pageDiff truncates diff to the terminal's height when stdout is an
// interactive terminal, leaving it untouched for a pipe or redirect where
// the whole diff is the expected output.
func pageDiff(diff string) string {
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return diff + "\n"
	}
	_, height, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || height <= 1 {
		return diff + "\n"
	}

	lines := strings.Split(diff, "\n")
	limit := height - 1
	if len(lines) <= limit {
		return diff + "\n"
	}
	return strings.Join(lines[:limit], "\n") + fmt.Sprintf("\n... %d more lines, output is longer than your terminal; redirect to a file to see it all\n", len(lines)-limit)
}
