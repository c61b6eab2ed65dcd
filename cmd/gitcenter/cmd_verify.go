package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/odvcencio/gitcenter/pkg/object"
	"github.com/odvcencio/gitcenter/pkg/repo"
)

func newVerifyCmd(a *app) *cobra.Command {
	var concurrency int

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Check that every reachable object is present and intact",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withRepo(cmd.Context(), func(r *repo.Repo) error {
				report, err := r.Verify(cmd.Context(), concurrency)
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				for _, p := range report.BrokenRefs {
					fmt.Fprintf(out, "broken ref %s: %v\n", p.Name, p.Err)
				}
				for _, p := range report.Missing {
					fmt.Fprintf(out, "missing %s\n", p.ID)
				}
				for _, p := range report.Corrupt {
					fmt.Fprintf(out, "corrupt %s: %v\n", p.ID, p.Err)
				}
				if !report.OK() {
					return fmt.Errorf("verify failed: %d missing, %d corrupt, %d broken ref(s)",
						len(report.Missing), len(report.Corrupt), len(report.BrokenRefs))
				}

				fmt.Fprintf(out,
					"ok: verified %d ref(s), %d object(s) (%d commit, %d tree, %d blob, %d tag)\n",
					report.Refs,
					report.Objects,
					report.ByType[object.TypeCommit],
					report.ByType[object.TypeTree],
					report.ByType[object.TypeBlob],
					report.ByType[object.TypeTag],
				)
				return nil
			})
		},
	}

	cmd.Flags().IntVarP(&concurrency, "jobs", "j", repo.DefaultVerifyConcurrency, "parallel object reads")

	return cmd
}
