package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/odvcencio/gitcenter/pkg/repo"
)

func newBranchCmd(a *app) *cobra.Command {
	var deleteBranch string
	var switchTo string
	var verbose bool

	cmd := &cobra.Command{
		Use:   "branch [name [start]]",
		Short: "List, create, switch or delete branches",
		Args:  cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withRepo(cmd.Context(), func(r *repo.Repo) error {
				ctx := cmd.Context()
				out := cmd.OutOrStdout()

				switch {
				case deleteBranch != "":
					if err := r.DeleteBranch(ctx, deleteBranch); err != nil {
						return err
					}
					fmt.Fprintf(out, "deleted branch '%s'\n", deleteBranch)
					return nil
				case switchTo != "":
					return r.SwitchBranch(ctx, switchTo)
				case len(args) > 0:
					start := "HEAD"
					if len(args) == 2 {
						start = args[1]
					}
					target, err := r.Refs.Lookup(ctx, start)
					if err != nil {
						return fmt.Errorf("cannot resolve %s: %w", start, err)
					}
					return r.CreateBranch(ctx, args[0], target)
				}

				branches, err := r.ListBranches(ctx)
				if err != nil {
					return err
				}
				current, _ := r.CurrentBranch(ctx)
				for _, b := range branches {
					marker := "  "
					if b.Name == current {
						marker = "* "
					}
					if verbose {
						fmt.Fprintf(out, "%s%s %s\n", marker, b.Name, shortID(b.Target))
					} else {
						fmt.Fprintf(out, "%s%s\n", marker, b.Name)
					}
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&deleteBranch, "delete", "d", "", "delete the named branch")
	cmd.Flags().StringVarP(&switchTo, "switch", "s", "", "point HEAD at the named branch")
	cmd.Flags().BoolVar(&verbose, "show-hash", false, "show branch targets when listing")

	return cmd
}
