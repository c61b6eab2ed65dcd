package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/odvcencio/gitcenter/pkg/object"
	"github.com/odvcencio/gitcenter/pkg/repo"
)

func newLogCmd(a *app) *cobra.Command {
	var oneline bool
	var limit int

	cmd := &cobra.Command{
		Use:   "log [rev]",
		Short: "Show first-parent commit history",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rev := "HEAD"
			if len(args) == 1 {
				rev = args[0]
			}
			return a.withRepo(cmd.Context(), func(r *repo.Repo) error {
				ctx := cmd.Context()
				start, err := r.Refs.Lookup(ctx, rev)
				if err != nil {
					return fmt.Errorf("cannot resolve %s: %w", rev, err)
				}
				startCommit, err := r.Peel(ctx, start, object.TypeCommit)
				if err != nil {
					return err
				}
				entries, err := r.Log(ctx, startCommit, limit)
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				for i, e := range entries {
					if oneline {
						subject, _, _ := strings.Cut(e.Commit.MessageText(), "\n")
						fmt.Fprintf(out, "%s %s\n", shortID(e.ID), subject)
						continue
					}
					if i > 0 {
						fmt.Fprintln(out)
					}
					printCommit(out, e.ID, e.Commit)
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&oneline, "oneline", false, "one line per commit")
	cmd.Flags().IntVarP(&limit, "max-count", "n", 0, "limit the number of commits")

	return cmd
}
