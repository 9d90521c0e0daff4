package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/sessionforge/sessionctl/internal/sessionrecord"
)

func newSessionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Manage sessions",
	}
	cmd.AddCommand(newSessionListCmd())
	cmd.AddCommand(newSessionShowCmd())
	cmd.AddCommand(newSessionCreateCmd())
	cmd.AddCommand(newSessionUpdateCmd())
	cmd.AddCommand(newSessionDeleteCmd())
	return cmd
}

func newSessionListCmd() *cobra.Command {
	var repoName, branch, taskID string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List sessions",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}

			filter := sessionrecord.Filter{}
			if repoName != "" {
				filter.RepoName = &repoName
			}
			if branch != "" {
				filter.Branch = &branch
			}
			if taskID != "" {
				filter.TaskID = &taskID
			}

			records, err := a.store.List(cmd.Context())
			if err != nil {
				return err
			}

			for _, rec := range records {
				if !filter.Match(rec) {
					continue
				}
				cmd.Printf("%s\t%s\t%s\n", rec.Session, rec.RepoName, rec.Branch)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&repoName, "repo", "", "filter by repository name")
	cmd.Flags().StringVar(&branch, "branch", "", "filter by branch name")
	cmd.Flags().StringVar(&taskID, "task", "", "filter by task ID")
	return cmd
}

func newSessionShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <session>",
		Short: "Show one session's full record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			rec, err := a.store.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if rec == nil {
				return fmt.Errorf("session %q not found", args[0])
			}
			cmd.Printf("session:     %s\n", rec.Session)
			cmd.Printf("repo:        %s (%s)\n", rec.RepoName, rec.RepoURL)
			cmd.Printf("branch:      %s\n", rec.Branch)
			cmd.Printf("createdAt:   %s\n", rec.CreatedAt.Format(time.RFC3339))
			if rec.TaskID != "" {
				cmd.Printf("task:        %s\n", rec.TaskID)
			}
			if rec.PRBranch != "" {
				cmd.Printf("prBranch:    %s\n", rec.PRBranch)
				cmd.Printf("prApproved:  %v\n", rec.PRApproved)
			}
			return nil
		},
	}
}

func newSessionCreateCmd() *cobra.Command {
	var repoName, repoURL, branch, taskID string

	cmd := &cobra.Command{
		Use:   "create <session>",
		Short: "Register a new session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			rec := sessionrecord.Record{
				Session:   args[0],
				RepoName:  repoName,
				RepoURL:   repoURL,
				Branch:    branch,
				CreatedAt: time.Now(),
			}
			if taskID != "" {
				id, err := normalizeTaskID(taskID)
				if err != nil {
					return err
				}
				rec.TaskID = id
			}
			if err := a.store.Add(cmd.Context(), rec); err != nil {
				return err
			}
			cmd.Printf("created session %s\n", rec.Session)
			return nil
		},
	}
	cmd.Flags().StringVar(&repoName, "repo", "", "repository name (owner/repo)")
	cmd.Flags().StringVar(&repoURL, "repo-url", "", "repository URL")
	cmd.Flags().StringVar(&branch, "branch", "", "workspace branch name")
	cmd.Flags().StringVar(&taskID, "task", "", "linked task ID")
	return cmd
}

func newSessionUpdateCmd() *cobra.Command {
	var branch string

	cmd := &cobra.Command{
		Use:   "update <session>",
		Short: "Update a session's branch",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			patch := sessionrecord.Patch{}
			if branch != "" {
				patch.Branch = &branch
			}
			rec, err := a.store.Update(cmd.Context(), args[0], patch)
			if err != nil {
				return err
			}
			cmd.Printf("updated session %s (branch=%s)\n", rec.Session, rec.Branch)
			return nil
		},
	}
	cmd.Flags().StringVar(&branch, "branch", "", "new workspace branch name")
	return cmd
}

func newSessionDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <session>",
		Short: "Remove a session's record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			existed, err := a.store.Delete(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if !existed {
				return fmt.Errorf("session %q not found", args[0])
			}
			cmd.Printf("deleted session %s\n", args[0])
			return nil
		},
	}
}
